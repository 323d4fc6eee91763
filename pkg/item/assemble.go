package item

import (
	"encoding/binary"
	"io"
	"strconv"
	"strings"

	"github.com/kristofer/sind/pkg/value"
)

// LocalLookup resolves a local variable slot to its value during name
// assembly; the interpreter supplies this since only it knows the
// current call frame's locals.
type LocalLookup func(idx int) (value.Value, bool)

// Assemble interprets a stream of item-name mini-opcodes (§4.2.3):
//
//	L<len><bytes>  literal layer
//	D V <idx>      substitute local variable at index
//	D I …E         substitute the value of a nested dereferenced item
//	E              end of assembly
//
// It returns the assembled dot-joined name and the number of bytes of
// stream consumed (including the terminating E), so callers embedding
// an assembly inside a larger instruction stream (as `D I` does, and as
// BEGIN_ITEM_ASSEMBLY's caller does for the enclosing instruction
// pointer) can resume parsing afterwards.
func (s *Itemstore) Assemble(stream []byte, locals LocalLookup) (name string, consumed int, err error) {
	var layers []string
	pos := 0
	for {
		if pos >= len(stream) {
			return "", pos, io.ErrUnexpectedEOF
		}
		tag := stream[pos]
		pos++
		switch tag {
		case 'E':
			return strings.Join(layers, "."), pos, nil

		case 'L':
			if pos+2 > len(stream) {
				return "", pos, io.ErrUnexpectedEOF
			}
			n := int(binary.LittleEndian.Uint16(stream[pos : pos+2]))
			pos += 2
			if pos+n > len(stream) {
				return "", pos, io.ErrUnexpectedEOF
			}
			layer := string(stream[pos : pos+n])
			pos += n
			if !ValidLayer(layer) {
				return "", pos, ErrBadLayer
			}
			layers = append(layers, layer)

		case 'D':
			if pos >= len(stream) {
				return "", pos, io.ErrUnexpectedEOF
			}
			sub := stream[pos]
			pos++
			switch sub {
			case 'V':
				if pos >= len(stream) {
					return "", pos, io.ErrUnexpectedEOF
				}
				idx := int(stream[pos])
				pos++
				v, ok := locals(idx)
				if !ok {
					return "", pos, ErrBadLayer
				}
				layer, lok := renderLayer(v)
				if !lok {
					return "", pos, ErrBadLayer
				}
				layers = append(layers, layer)

			case 'I':
				nestedName, n, nerr := s.Assemble(stream[pos:], locals)
				pos += n
				if nerr != nil {
					return "", pos, nerr
				}
				target, ferr := s.Find(nestedName)
				if ferr != nil {
					return "", pos, ferr
				}
				if target.IsCode {
					return "", pos, ErrBadLayer
				}
				layer, lok := renderLayer(target.Val)
				if !lok {
					return "", pos, ErrBadLayer
				}
				layers = append(layers, layer)

			default:
				return "", pos, ErrBadLayer
			}

		default:
			return "", pos, ErrBadLayer
		}
	}
}

// renderLayer renders a string or int value as a candidate layer name
// (§4.2.3: "Integer substitutions are rendered in base 10").
func renderLayer(v value.Value) (string, bool) {
	switch v.Kind {
	case value.Int:
		return strconv.FormatInt(v.I, 10), true
	case value.Str:
		return v.S, true
	default:
		return "", false
	}
}
