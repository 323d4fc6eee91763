// Package vmerr implements the global error-kind table of §7: the
// kinds visible as integer codes assigned to the reserved item
// `sys.error`, and their human messages.
//
// Adapted from the teacher's pkg/vm/errors.go RuntimeError/StackFrame
// pair: the kind registry below is the "what kind" half, and pkg/vm's
// abort handling (mirroring RuntimeError) is the "how it propagates"
// half.
package vmerr

// Kind is one of §7's error kinds, stored as sys.error's int payload.
type Kind int

const (
	None Kind = iota
	CompSyntax
	CompMaxDepth
	CompTooManyLocals
	CompLocalBeforeDef
	CompUnknownChar
	CompUnknownLib
	CompWrongArgs
	CompInUse
	RuntimeSigusr1
	RuntimeInvalidArgs
	RuntimeNoSuchItem
)

var messages = map[Kind]string{
	None:                "no error",
	CompSyntax:          "syntax error",
	CompMaxDepth:        "maximum nesting depth exceeded",
	CompTooManyLocals:   "too many local variables",
	CompLocalBeforeDef:  "local variable referenced before definition",
	CompUnknownChar:     "unknown character",
	CompUnknownLib:      "unknown library call",
	CompWrongArgs:       "wrong number or type of arguments",
	CompInUse:           "item is in use and cannot be replaced",
	RuntimeSigusr1:      "bytecode execution aborted",
	RuntimeInvalidArgs:  "invalid arguments to library call",
	RuntimeNoSuchItem:   "no such item",
}

// String returns the human-readable description of a kind.
func (k Kind) String() string {
	if m, ok := messages[k]; ok {
		return m
	}
	return "unknown error kind"
}
