package libcall

import (
	"strings"
	"unicode"

	"github.com/kristofer/sind/pkg/value"
	"github.com/kristofer/sind/pkg/vm"
)

// lcStrCapitalise implements str.capitalise (§4.4): uppercases the
// first rune of the top-of-stack string in place, or nil on a type
// mismatch, per lc_str_capitalise.
func lcStrCapitalise(m *vm.Interp) error {
	v, err := m.PopArg()
	if err != nil {
		return err
	}
	if v.Kind != value.Str || v.S == "" {
		return m.PushResult(value.Nothing())
	}
	r := []rune(v.S)
	r[0] = unicode.ToUpper(r[0])
	return m.PushResult(value.FromString(string(r)))
}

// lcStrUpper implements str.upper (§4.4).
func lcStrUpper(m *vm.Interp) error {
	v, err := m.PopArg()
	if err != nil {
		return err
	}
	if v.Kind != value.Str {
		return m.PushResult(value.Nothing())
	}
	return m.PushResult(value.FromString(strings.ToUpper(v.S)))
}

// lcStrLower implements str.lower (§4.4).
func lcStrLower(m *vm.Interp) error {
	v, err := m.PopArg()
	if err != nil {
		return err
	}
	if v.Kind != value.Str {
		return m.PushResult(value.Nothing())
	}
	return m.PushResult(value.FromString(strings.ToLower(v.S)))
}
