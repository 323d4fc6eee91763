package value

import "testing"

func TestAdd(t *testing.T) {
	cases := []struct {
		name string
		a, b Value
		want Value
		ok   bool
	}{
		{"int+int", FromInt(1), FromInt(2), FromInt(3), true},
		{"nil+int", Nothing(), FromInt(5), FromInt(5), true},
		{"int+nil", FromInt(5), Nothing(), FromInt(5), true},
		{"str+str", FromString("ab"), FromString("cd"), FromString("abcd"), true},
		{"str+int", FromString("ab"), FromInt(1), Nothing(), false},
		{"bool+int", FromBool(true), FromInt(1), Nothing(), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := Add(c.a, c.b)
			if ok != c.ok {
				t.Fatalf("ok = %v, want %v", ok, c.ok)
			}
			if ok && !Equal(got, c.want) {
				t.Fatalf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestDivideByZero(t *testing.T) {
	got, ok := Div(FromInt(10), FromInt(0))
	if !ok {
		t.Fatalf("division by zero should not report failure, it should yield 0")
	}
	if got.I != 0 {
		t.Fatalf("got %v, want 0", got)
	}
}

func TestEqualityAcrossTypes(t *testing.T) {
	if Equal(FromInt(0), FromBool(false)) {
		t.Fatal("cross-type equality must be false")
	}
	if Equal(Nothing(), Nothing()) {
		t.Fatal("nil == nil is false per the reference implementation (§9)")
	}
}

func TestOrdering(t *testing.T) {
	if !Less(FromInt(1), FromInt(2)) {
		t.Fatal("1 < 2")
	}
	if Less(FromString("a"), FromString("b")) {
		t.Fatal("strings are not ordered per §4.1")
	}
	if !LessEqual(FromInt(2), FromInt(2)) {
		t.Fatal("2 <= 2")
	}
	if !GreaterEqual(FromBool(true), FromBool(false)) {
		t.Fatal("true >= false")
	}
}

func TestToBool(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Nothing(), false},
		{FromBool(false), false},
		{FromBool(true), true},
		{FromInt(0), false},
		{FromInt(7), true},
		{FromString(""), true},
	}
	for _, c := range cases {
		if got := c.v.ToBool(); got != c.want {
			t.Fatalf("%v.ToBool() = %v, want %v", c.v, got, c.want)
		}
	}
}
