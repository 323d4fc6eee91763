package libcall

import (
	"github.com/kristofer/sind/pkg/value"
	"github.com/kristofer/sind/pkg/vm"
	"github.com/kristofer/sind/pkg/vmerr"
)

// lcSysBackup implements sys.backup (§4.4): no arguments, pushes nil,
// per original_source/src/libcall.c's lc_sys_backup.
func lcSysBackup(host Host) vm.LibcallFunc {
	return func(m *vm.Interp) error {
		if err := host.Backup(); err != nil {
			m.SetRuntimeError(vmerr.RuntimeInvalidArgs, err.Error())
		}
		return m.PushResult(value.Nothing())
	}
}

// lcSysLog implements sys.log (§4.4): pops one value and writes it to
// the log at debug level, per lc_sys_log's type switch (string/int/bool logged, nil
// silently ignored).
func lcSysLog(host Host) vm.LibcallFunc {
	return func(m *vm.Interp) error {
		v, err := m.PopArg()
		if err != nil {
			return err
		}
		switch v.Kind {
		case value.Str:
			m.Log.Debugf("%s", v.S)
		case value.Int:
			m.Log.Debugf("%d", v.I)
		case value.Bool:
			m.Log.Debugf("%t", v.AsBool())
		case value.Nil:
			// One cannot logically output nil.
		default:
			m.Log.Warnf("sys.log called with unknown value type")
		}
		return m.PushResult(value.Nothing())
	}
}

// lcSysShutdown implements sys.shutdown (§4.4, §6.1): stops the event
// loop with safe_shutdown true, so the itemstore is saved on exit.
func lcSysShutdown(host Host) vm.LibcallFunc {
	return func(m *vm.Interp) error {
		host.Shutdown(true)
		return m.PushResult(value.Nothing())
	}
}

// lcSysAbort implements sys.abort (§4.4, §6.1): stops the event loop
// without saving.
func lcSysAbort(host Host) vm.LibcallFunc {
	return func(m *vm.Interp) error {
		host.Shutdown(false)
		return m.PushResult(value.Nothing())
	}
}
