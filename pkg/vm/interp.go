// Package vm implements the stack-based bytecode interpreter: the
// operand stack and call frames (§3.3), the dispatch loop and
// fetch-and-invoke protocol (§4.3), the libcall registry hookup
// (§4.4), and abort/safe-point recovery (§4.5).
//
// Adapted from the teacher's pkg/vm: the overall shape (a VM struct
// holding a value stack, a call-frame stack, and a Run entry point)
// comes from kristofer-smog's pkg/vm/vm.go, and the recoverable-error
// shape comes from its pkg/vm/errors.go RuntimeError/StackFrame pair —
// but the instruction set, the item-invocation protocol, and the
// item-backed locals/globals model are entirely spec.md's, not
// smog's.
package vm

import (
	"fmt"

	"github.com/kristofer/sind/pkg/item"
	"github.com/kristofer/sind/pkg/value"
	"github.com/kristofer/sind/pkg/vmerr"
)

// StackSize and MaxCallDepth are the fixed limits of §3.3: 1024 slots
// for both the operand stack and the call stack.
const (
	StackSize   = 1024
	MaxCallDepth = 1024
)

// Frame is a saved call-stack entry (§3.3's Frame / the GLOSSARY
// entry): the callee being invoked (for inuse bookkeeping and stack
// traces) and the caller's {base, locals, params} geometry to restore
// on return. The caller's instruction pointer is implicit in the Go
// call stack (execLoop's local ip survives the nested invoke call in
// abort.go), not stored here.
type Frame struct {
	Callee       *item.Item
	CallerName   string
	CallerBase   int
	CallerLocals int
	CallerParams int
}

// LibcallFunc is a host-provided built-in operation (§4.4). It must
// pop exactly the arguments its signature promises and push exactly
// one result.
type LibcallFunc func(vm *Interp) error

// Compiler is the external source-language front end (§1: "Out of
// scope, treated as external collaborator... we specify only the
// contract"). ASSIGN_CODE_ITEM (§4.3.2 `B`) invokes it to turn an
// embedded source snippet into a bytecode blob.
type Compiler interface {
	// Compile compiles source against the given parameter names and
	// returns the bytecode blob plus a reconstructed source rendering
	// per §6.4 ("code { param, … } (body);").
	Compile(source string, params []string) (code []byte, reconstructed string, err error)
}

// SourceWriter persists the reconstructed source of a code item, per
// §6.4's source-directory layout. Optional — a nil SourceWriter simply
// skips the write.
type SourceWriter interface {
	WriteSource(fqName string, reconstructed string) error
}

// Logger is the minimal logging surface the interpreter needs; see
// internal/logging for the concrete implementation.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}

// Interp is one virtual machine: an operand stack, a call-frame stack,
// and a reference to the shared itemstore and libcall registry.
// cmd/sind runs the boot item, every task firing and every input-item
// run on one shared Interp; tasks do not get an Interp of their own.
// Run resets the operand and call stacks on every call, and execution
// is single-threaded and cooperative (§5).
type Interp struct {
	Store    *item.Itemstore
	Libcalls map[[2]byte]LibcallFunc
	Compiler Compiler
	Source   SourceWriter
	Log      Logger

	stack [StackSize]value.Value
	top   int

	base   int
	locals int
	params int

	frames []Frame
}

// New creates an interpreter sharing store and the given libcall
// registry.
func New(store *item.Itemstore, libcalls map[[2]byte]LibcallFunc) *Interp {
	if libcalls == nil {
		libcalls = make(map[[2]byte]LibcallFunc)
	}
	return &Interp{Store: store, Libcalls: libcalls, Log: nopLogger{}}
}

func (vm *Interp) push(v value.Value) error {
	if vm.top >= StackSize {
		return vm.raiseAbort(vmerr.RuntimeSigusr1, "operand stack overflow")
	}
	vm.stack[vm.top] = v
	vm.top++
	return nil
}

func (vm *Interp) pop() (value.Value, error) {
	if vm.top <= vm.base {
		return value.Nothing(), vm.raiseAbort(vmerr.RuntimeSigusr1, "operand stack underflow")
	}
	vm.top--
	v := vm.stack[vm.top]
	vm.stack[vm.top] = value.Value{}
	return v, nil
}

func (vm *Interp) peek() (value.Value, error) {
	if vm.top <= vm.base {
		return value.Nothing(), vm.raiseAbort(vmerr.RuntimeSigusr1, "operand stack underflow")
	}
	return vm.stack[vm.top-1], nil
}

// PopArg pops a single value for a libcall; it is the same as pop but
// exported for pkg/libcall's handlers.
func (vm *Interp) PopArg() (value.Value, error) { return vm.pop() }

// PushResult pushes a libcall's single result value.
func (vm *Interp) PushResult(v value.Value) error { return vm.push(v) }

// Depth reports the interpreter's current call-stack depth, for
// diagnostics.
func (vm *Interp) Depth() int { return len(vm.frames) }

// localSlot returns the operand-stack index of local slot idx of the
// current frame, or
// an error if idx is out of range (idx must be < locals, §3.3).
func (vm *Interp) localSlot(idx int) (int, error) {
	if idx < 0 || idx >= vm.locals {
		return 0, fmt.Errorf("vm: local index %d out of range (locals=%d)", idx, vm.locals)
	}
	return vm.base + idx, nil
}

// GetLocal implements the assembly substitution `D V <idx>` (§4.2.3)
// on behalf of pkg/item.Assemble, which cannot reach into the
// interpreter's frame itself.
func (vm *Interp) GetLocal(idx int) (value.Value, bool) {
	slot, err := vm.localSlot(idx)
	if err != nil {
		return value.Value{}, false
	}
	return vm.stack[slot], true
}

// SetRuntimeError is setError exported for pkg/libcall's handlers,
// which must set sys.error themselves on a bad-typed argument (§4.4:
// "Libcalls whose arguments are the wrong type MUST set sys.error to
// INVALID_ARGS").
func (vm *Interp) SetRuntimeError(kind vmerr.Kind, detail string) {
	vm.setError(kind, detail)
}

// setError populates the reserved sys.error / sys.error.msg items on
// first failure, per §3.2/§7.
func (vm *Interp) setError(kind vmerr.Kind, detail string) {
	vm.Store.InsertValueItem("sys.error", value.FromInt(int64(kind)))
	msg := kind.String()
	if detail != "" {
		msg = msg + ": " + detail
	}
	vm.Store.InsertValueItem("sys.error.msg", value.FromString(msg))
	vm.Log.Warnf("sind: %s", msg)
}

// typeError is the non-fatal degrade-to-nil path of §4.1/§7: "Type
// mismatches within expressions degrade to nil and a log line; they
// are not error kinds."
func (vm *Interp) typeError(op string) {
	vm.Log.Debugf("sind: type error in %s", op)
}
