package libcall

import (
	"github.com/kristofer/sind/pkg/value"
	"github.com/kristofer/sind/pkg/vm"
	"github.com/kristofer/sind/pkg/vmerr"
)

// lcTaskNewGameTask implements task.newgametask(name, start_decis,
// repeat_decis) (§4.4), grounded on lc_task_newgametask's exact
// argument order and validation: pop repeat, then start, then name,
// all three must be the right type or the call degrades to
// RUNTIME_INVALIDARGS and nil.
func lcTaskNewGameTask(host Host) vm.LibcallFunc {
	return func(m *vm.Interp) error {
		repeat, err := m.PopArg()
		if err != nil {
			return err
		}
		start, err := m.PopArg()
		if err != nil {
			return err
		}
		name, err := m.PopArg()
		if err != nil {
			return err
		}
		if repeat.Kind != value.Int || start.Kind != value.Int || name.Kind != value.Str {
			m.SetRuntimeError(vmerr.RuntimeInvalidArgs, "task.newgametask")
			return m.PushResult(value.Nothing())
		}
		id, terr := host.NewTask(name.S, start.I, repeat.I)
		if terr != nil {
			m.SetRuntimeError(vmerr.RuntimeNoSuchItem, name.S)
			return m.PushResult(value.Nothing())
		}
		return m.PushResult(value.FromInt(id))
	}
}

// lcTaskKillTask implements task.killtask(id) (§4.4): pushes bool of
// whether a live task was found and cancelled.
func lcTaskKillTask(host Host) vm.LibcallFunc {
	return func(m *vm.Interp) error {
		id, err := m.PopArg()
		if err != nil {
			return err
		}
		if id.Kind != value.Int {
			m.SetRuntimeError(vmerr.RuntimeInvalidArgs, "task.killtask")
			return m.PushResult(value.Nothing())
		}
		return m.PushResult(value.FromBool(host.KillTask(id.I)))
	}
}
