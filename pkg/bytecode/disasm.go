package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// skipAssemblyStream scans an item-name-assembly mini-opcode stream
// (§4.2.3) starting right after an 'I' or a nested 'D I', without
// evaluating it, purely to find out how many bytes it occupies. The
// grammar is shared with pkg/item.Assemble; this copy only walks
// structure, it never resolves locals or items, so disassembly never
// needs an Itemstore.
func skipAssemblyStream(code []byte, pos int) (int, error) {
	for {
		if pos >= len(code) {
			return pos, fmt.Errorf("bytecode: truncated item-name assembly")
		}
		tag := code[pos]
		pos++
		switch tag {
		case 'E':
			return pos, nil
		case 'L':
			if pos+2 > len(code) {
				return pos, fmt.Errorf("bytecode: truncated literal layer")
			}
			n := int(binary.LittleEndian.Uint16(code[pos : pos+2]))
			pos += 2 + n
		case 'D':
			if pos >= len(code) {
				return pos, fmt.Errorf("bytecode: truncated local/deref substitution")
			}
			sub := code[pos]
			pos++
			switch sub {
			case 'V':
				pos++ // local index byte
			case 'I':
				var err error
				pos, err = skipAssemblyStream(code, pos)
				if err != nil {
					return pos, err
				}
			default:
				return pos, fmt.Errorf("bytecode: unknown assembly substitution %q", sub)
			}
		default:
			return pos, fmt.Errorf("bytecode: unknown assembly tag %q", tag)
		}
	}
}

// skipParamList scans the optional `P <len><name>… <0><0>` parameter
// list following ASSIGN_CODE_ITEM's opcode byte (§4.3.2 `B`).
func skipParamList(code []byte, pos int) (int, bool, error) {
	if pos >= len(code) || code[pos] != 'P' {
		return pos, false, nil
	}
	pos++
	for {
		if pos >= len(code) {
			return pos, true, fmt.Errorf("bytecode: truncated parameter list")
		}
		n := int(code[pos])
		pos++
		if n == 0 {
			if pos >= len(code) {
				return pos, true, fmt.Errorf("bytecode: truncated parameter list terminator")
			}
			pos++ // terminator's second 0 byte
			return pos, true, nil
		}
		if pos+n > len(code) {
			return pos, true, fmt.Errorf("bytecode: truncated parameter name")
		}
		pos += n
	}
}

// decodeAt decodes the instruction at pos (which must point at an
// opcode byte), returning a human-readable rendering and the offset of
// the next instruction.
func decodeAt(code []byte, pos int) (string, int, error) {
	op := Op(code[pos])
	start := pos
	pos++

	switch op {
	case PushInt:
		if pos+8 > len(code) {
			return "", pos, fmt.Errorf("bytecode: truncated PUSH_INT")
		}
		v := int64(binary.LittleEndian.Uint64(code[pos : pos+8]))
		pos += 8
		return fmt.Sprintf("%d: PUSH_INT %d", start, v), pos, nil

	case PushStr:
		if pos+2 > len(code) {
			return "", pos, fmt.Errorf("bytecode: truncated PUSH_STR")
		}
		n := int(binary.LittleEndian.Uint16(code[pos : pos+2]))
		pos += 2
		if pos+n > len(code) {
			return "", pos, fmt.Errorf("bytecode: truncated PUSH_STR payload")
		}
		s := string(code[pos : pos+n])
		pos += n
		return fmt.Sprintf("%d: PUSH_STR %q", start, s), pos, nil

	case GetLocal, SaveLocal, IncLocal, DecLocal, FetchItem:
		if pos+1 > len(code) {
			return "", pos, fmt.Errorf("bytecode: truncated %s", op)
		}
		idx := code[pos]
		pos++
		return fmt.Sprintf("%d: %s %d", start, op, idx), pos, nil

	case Libcall:
		if pos+2 > len(code) {
			return "", pos, fmt.Errorf("bytecode: truncated LIBCALL")
		}
		lib, fn := code[pos], code[pos+1]
		pos += 2
		return fmt.Sprintf("%d: LIBCALL lib=%d func=%d", start, lib, fn), pos, nil

	case Jump, JumpIfFalse:
		if pos+2 > len(code) {
			return "", pos, fmt.Errorf("bytecode: truncated %s", op)
		}
		off := int16(binary.LittleEndian.Uint16(code[pos : pos+2]))
		pos += 2
		return fmt.Sprintf("%d: %s %+d", start, op, off), pos, nil

	case BeginAssembly:
		next, err := skipAssemblyStream(code, pos)
		if err != nil {
			return "", next, err
		}
		return fmt.Sprintf("%d: BEGIN_ITEM_ASSEMBLY <%d bytes>", start, next-pos), next, nil

	case AssignCode:
		var err error
		pos, _, err = skipParamList(code, pos)
		if err != nil {
			return "", pos, err
		}
		if pos+2 > len(code) {
			return "", pos, fmt.Errorf("bytecode: truncated ASSIGN_CODE_ITEM source length")
		}
		n := int(binary.LittleEndian.Uint16(code[pos : pos+2]))
		pos += 2 + n
		if pos > len(code) {
			return "", pos, fmt.Errorf("bytecode: truncated ASSIGN_CODE_ITEM source")
		}
		return fmt.Sprintf("%d: ASSIGN_CODE_ITEM <%d byte source>", start, n), pos, nil

	case Add, Div, Mul, Sub, Neg, Eq, NotEq, Lt, Gt, Le, Ge, Not, And, Or,
		Halt, AssignItem, Delete, Exists:
		return fmt.Sprintf("%d: %s", start, op), pos, nil

	default:
		return fmt.Sprintf("%d: %s", start, op), pos, nil
	}
}

// Disassemble renders every instruction of a code item's body (the
// bytes after the two-byte header) one per line, in the style of
// original_source/src/sdiss.c.
func Disassemble(code []byte) (string, error) {
	hdr, err := ParseHeader(code)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "locals=%d params=%d\n", hdr.Locals, hdr.Params)
	pos := HeaderLen
	for pos < len(code) {
		line, next, err := decodeAt(code, pos)
		if err != nil {
			return b.String(), err
		}
		b.WriteString(line)
		b.WriteByte('\n')
		if Op(code[pos]) == Halt {
			break
		}
		pos = next
	}
	return b.String(), nil
}
