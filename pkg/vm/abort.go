package vm

import (
	"fmt"

	"github.com/kristofer/sind/pkg/bytecode"
	"github.com/kristofer/sind/pkg/item"
	"github.com/kristofer/sind/pkg/value"
	"github.com/kristofer/sind/pkg/vmerr"
)

// abortSignal is the "logical abort-current-bytecode" signal of §4.5:
// a fatal condition (call-stack or operand-stack overflow) that must
// unwind every frame back to the outermost Run call. It is threaded
// through as a normal Go error return rather than panic/recover, so
// every stack-frame's inuse-clearing code runs unconditionally as the
// call stack unwinds (see invoke's sequencing below) instead of
// relying on a recover() to run cleanup.
type abortSignal struct {
	Kind vmerr.Kind
	Msg  string
}

func (a *abortSignal) Error() string { return fmt.Sprintf("%s: %s", a.Kind, a.Msg) }

func (vm *Interp) raiseAbort(kind vmerr.Kind, msg string) error {
	return &abortSignal{Kind: kind, Msg: msg}
}

// Run is the single outermost interpreter re-entry point — the "safe
// point" of §4.5 and §9's design note. It is called by the boot
// sequence, by the input pump for each invocation of the configured
// input item, and by the scheduler for each task firing. Every call
// starts from a fresh operand stack and call-frame stack; on an
// abortSignal it reconstructs fresh stacks again before returning, so
// a fatal condition in one task/line invocation can never corrupt the
// next one.
func (vm *Interp) Run(it *item.Item, args []value.Value) (value.Value, error) {
	vm.resetStacks()

	argsBase := vm.top
	for _, a := range args {
		if err := vm.push(a); err != nil {
			vm.resetStacks()
			return value.Nothing(), err
		}
	}

	hdr, err := bytecode.ParseHeader(it.Code)
	if err != nil {
		vm.resetStacks()
		return value.Nothing(), err
	}
	vm.adaptArity(argsBase, int(hdr.Params))

	result, runErr := vm.invoke(it)
	if ab, ok := runErr.(*abortSignal); ok {
		vm.setError(ab.Kind, ab.Msg)
		vm.Log.Warnf("sind: long-unwind recovery: %s", ab.Error())
		vm.resetStacks()
		return value.Nothing(), ab
	}
	if runErr != nil {
		vm.resetStacks()
		return value.Nothing(), runErr
	}
	return result, nil
}

// resetStacks clears the operand stack and call-frame stack. Every
// item that was mid-call has already had InUse cleared by invoke's
// unconditional post-execLoop line as the Go call stack unwound; this
// only needs to reclaim the VM's own bookkeeping (§8 invariant 2).
func (vm *Interp) resetStacks() {
	for i := 0; i < vm.top; i++ {
		vm.stack[i] = value.Value{}
	}
	vm.top = 0
	vm.base = 0
	vm.locals = 0
	vm.params = 0
	vm.frames = vm.frames[:0]
}

// adaptArity implements the argument-adaptation rule shared by the
// FETCH_ITEM opcode and top-level Run invocations (§4.3.3 steps 2-3):
// extras beyond params are discarded LIFO, missing args are padded
// with nil.
func (vm *Interp) adaptArity(argsBase, params int) {
	for vm.top-argsBase > params {
		vm.top--
		vm.stack[vm.top] = value.Value{}
	}
	for vm.top-argsBase < params {
		vm.stack[vm.top] = value.Nothing()
		vm.top++
	}
}

// invoke performs the fetch-and-invoke protocol of §4.3.3 steps 1 and
// 3-6 for a code item whose arguments are already the top `params`
// values of the operand stack: it pushes a call frame, rebases the
// stack so those arguments become the callee's first locals, runs the
// callee to HALT or abort, and restores the caller's frame geometry.
// Argument adaptation (step 2) is the caller's responsibility via
// adaptArity, since it differs between FETCH_ITEM (adapts to the
// callee's own declared params) and Run (adapts before the first
// invocation).
func (vm *Interp) invoke(it *item.Item) (value.Value, error) {
	hdr, err := bytecode.ParseHeader(it.Code)
	if err != nil {
		return value.Nothing(), err
	}
	if len(vm.frames) >= MaxCallDepth {
		return value.Nothing(), vm.raiseAbort(vmerr.RuntimeSigusr1, "call stack overflow")
	}

	newBase := vm.top - int(hdr.Params)
	if newBase < 0 {
		newBase = 0
	}

	savedBase, savedLocals, savedParams := vm.base, vm.locals, vm.params
	vm.frames = append(vm.frames, Frame{
		Callee:       it,
		CallerName:   it.FullyQualifiedName(),
		CallerBase:   savedBase,
		CallerLocals: savedLocals,
		CallerParams: savedParams,
	})

	vm.base, vm.locals, vm.params = newBase, int(hdr.Locals), int(hdr.Params)
	vm.top = newBase + int(hdr.Locals)

	// Locals beyond the declared params reuse physical stack slots a
	// prior, already-returned callee may have left dirty (the operand
	// stack is never zeroed between sibling FETCH_ITEM calls within the
	// same Run — only Run's own entry/exit resets it). Zero-fill them
	// here so every local a callee hasn't explicitly written still
	// reads nil, per §4.1/§8.
	for i := newBase + int(hdr.Params); i < vm.top; i++ {
		vm.stack[i] = value.Value{}
	}

	it.InUse = true
	result, runErr := vm.execLoop(it.Code)
	// Cleared unconditionally on every exit path, including an abort
	// propagating out of execLoop (§3.2, §8 invariant 2).
	it.InUse = false

	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.base, vm.locals, vm.params = savedBase, savedLocals, savedParams

	return result, runErr
}
