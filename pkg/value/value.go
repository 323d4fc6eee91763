// Package value implements the runtime Value type shared by the
// itemstore, the interpreter's operand stack, and libcalls.
//
// A Value is a tagged union over {nil, bool, int64, string}. It is the
// only kind of thing that can sit on the operand stack, be held by a
// value item, or be returned from a code item. Strings are the only
// variant with heap-owned payload; copying a Value copies the payload,
// and the owner of a Value slot is responsible for dropping the prior
// string when the slot is overwritten (see Drop).
package value

import "strconv"

// Kind identifies which variant of Value is populated.
type Kind byte

const (
	Nil Kind = iota
	Bool
	Int
	Str
)

// Value is a small tagged union. Only the field matching Kind is
// meaningful; the others are zero.
type Value struct {
	Kind Kind
	I    int64
	S    string
}

func Nothing() Value           { return Value{Kind: Nil} }
func FromBool(b bool) Value    { return Value{Kind: Bool, I: boolToInt(b)} }
func FromInt(i int64) Value    { return Value{Kind: Int, I: i} }
func FromString(s string) Value { return Value{Kind: Str, S: s} }

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (v Value) IsNil() bool  { return v.Kind == Nil }
func (v Value) IsBool() bool { return v.Kind == Bool }
func (v Value) IsInt() bool  { return v.Kind == Int }
func (v Value) IsStr() bool  { return v.Kind == Str }

// AsBool returns the boolean payload; valid only when Kind == Bool.
func (v Value) AsBool() bool { return v.I != 0 }

// Copy returns an independent Value; for strings this duplicates the
// backing Go string header (Go strings are immutable, so no bytes are
// actually copied, but the copy is conceptually owned by the caller —
// this mirrors the teacher's GET_LOCAL "strings duplicated" contract).
func (v Value) Copy() Value { return v }

// Drop is a no-op under Go's GC but documents every call site where the
// reference semantics of §3.2/§5 ("String payloads are uniquely owned")
// require the prior occupant of a slot to be released before
// overwriting it — SAVE_LOCAL and item replacement call this before
// assigning a new Value into the slot.
func (v Value) Drop() {}

func (v Value) String() string {
	switch v.Kind {
	case Nil:
		return "nil"
	case Bool:
		return strconv.FormatBool(v.AsBool())
	case Int:
		return strconv.FormatInt(v.I, 10)
	case Str:
		return v.S
	default:
		return "?"
	}
}

// ToBool coerces a Value per §4.1: bool -> self, int -> (i != 0),
// str -> true, nil -> false.
func (v Value) ToBool() bool {
	switch v.Kind {
	case Bool:
		return v.AsBool()
	case Int:
		return v.I != 0
	case Str:
		return true
	default:
		return false
	}
}

// Add implements §4.1's Add contract: int+int -> int, nil treated as 0
// in int contexts, str+str -> concatenation, any other pair -> nil.
func Add(a, b Value) (Value, bool) {
	if a.Kind == Str && b.Kind == Str {
		return FromString(a.S + b.S), true
	}
	ai, aok := asIntForAdd(a)
	bi, bok := asIntForAdd(b)
	if aok && bok {
		return FromInt(ai + bi), true
	}
	return Nothing(), false
}

func asIntForAdd(v Value) (int64, bool) {
	switch v.Kind {
	case Int:
		return v.I, true
	case Nil:
		return 0, true
	default:
		return 0, false
	}
}

// intBinOp implements the int-only contract shared by Subtract,
// Multiply, Divide, and Negate: any other type yields nil with the
// caller expected to log a diagnostic.
func intBinOp(a, b Value, op func(x, y int64) (int64, bool)) (Value, bool) {
	if a.Kind != Int || b.Kind != Int {
		return Nothing(), false
	}
	r, ok := op(a.I, b.I)
	if !ok {
		// Division by zero: yields 0 with a diagnostic, not a fault.
		return FromInt(0), true
	}
	return FromInt(r), true
}

func Sub(a, b Value) (Value, bool) {
	return intBinOp(a, b, func(x, y int64) (int64, bool) { return x - y, true })
}

func Mul(a, b Value) (Value, bool) {
	return intBinOp(a, b, func(x, y int64) (int64, bool) { return x * y, true })
}

func Div(a, b Value) (Value, bool) {
	return intBinOp(a, b, func(x, y int64) (int64, bool) {
		if y == 0 {
			return 0, false
		}
		return x / y, true
	})
}

func Neg(a Value) (Value, bool) {
	if a.Kind != Int {
		return Nothing(), false
	}
	return FromInt(-a.I), true
}

// Equal implements §4.1: same-type int/bool/str compared by
// payload/contents; all cross-type pairs (including nil/nil, per the
// Open Question in §9) are non-equal.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case Int, Bool:
		return a.I == b.I
	case Str:
		return a.S == b.S
	default:
		// Nil/Nil: the reference implementation pushes false for this
		// case (§9 Open Question) — preserved here rather than guessed
		// as true.
		return false
	}
}

func NotEqual(a, b Value) bool { return !Equal(a, b) }

// cmp returns (ok, less, greater) for the int/int and bool/bool
// orderings defined by §4.1; any other type pairing is not ordered.
func cmp(a, b Value) (ok bool, less bool, greater bool) {
	if a.Kind != b.Kind || (a.Kind != Int && a.Kind != Bool) {
		return false, false, false
	}
	return true, a.I < b.I, a.I > b.I
}

func Less(a, b Value) bool {
	ok, l, _ := cmp(a, b)
	return ok && l
}

func LessEqual(a, b Value) bool {
	ok, _, g := cmp(a, b)
	return ok && !g
}

func Greater(a, b Value) bool {
	ok, _, g := cmp(a, b)
	return ok && g
}

func GreaterEqual(a, b Value) bool {
	ok, l, _ := cmp(a, b)
	return ok && !l
}

func Not(a Value) Value { return FromBool(!a.ToBool()) }

func And(a, b Value) Value { return FromBool(a.ToBool() && b.ToBool()) }

func Or(a, b Value) Value { return FromBool(a.ToBool() || b.ToBool()) }
