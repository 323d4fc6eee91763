package bytecode

import (
	"strings"
	"testing"
)

func TestParseHeader(t *testing.T) {
	if _, err := ParseHeader([]byte{1}); err == nil {
		t.Fatal("expected error for too-short blob")
	}
	if _, err := ParseHeader([]byte{1, 2}); err == nil {
		t.Fatal("expected error when params > locals")
	}
	h, err := ParseHeader([]byte{2, 2})
	if err != nil {
		t.Fatal(err)
	}
	if h.Locals != 2 || h.Params != 2 {
		t.Fatalf("got %+v", h)
	}
}

func TestUndefinedOpcodeDispatchesToDiagnosticString(t *testing.T) {
	// §8: "unused bytes map to a diagnostic handler" — assert the
	// String() rendering of an unused byte is visibly distinct from
	// every defined mnemonic.
	for b := 0; b < 256; b++ {
		op := Op(b)
		switch op {
		case PushInt, PushStr, GetLocal, SaveLocal, IncLocal, DecLocal,
			Add, Div, Mul, Sub, Neg, Eq, NotEq, Lt, Gt, Le, Ge, Not, And, Or,
			Jump, JumpIfFalse, Halt, BeginAssembly, AssemblyEnd,
			AssignItem, AssignCode, FetchItem, Libcall, Delete, Exists:
			continue
		default:
			if !strings.HasPrefix(op.String(), "UNDEFINED") {
				t.Fatalf("byte %d renders as %q, not an UNDEFINED diagnostic", b, op.String())
			}
		}
	}
}

func TestDisassembleIntExpression(t *testing.T) {
	// Scenario 1 from §8: locals=0 params=0, p<8:1>, p<8:2>, a, h
	code := []byte{0, 0, byte(PushInt)}
	code = append(code, encodeInt64(1)...)
	code = append(code, byte(PushInt))
	code = append(code, encodeInt64(2)...)
	code = append(code, byte(Add), byte(Halt))

	out, err := Disassemble(code)
	if err != nil {
		t.Fatal(err)
	}
	if out == "" {
		t.Fatal("expected non-empty disassembly")
	}
}

func encodeInt64(v int64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}
