package libcall

import (
	"github.com/kristofer/sind/pkg/value"
	"github.com/kristofer/sind/pkg/vm"
	"github.com/kristofer/sind/pkg/vmerr"
)

// lcNetInput implements net.input() (§4.4, §4.7): called by the
// configured input item, which the event loop runs once per
// connection slot on every tick, advancing the fair round-robin
// scanner and reporting one event kind (0 none, 1 connected, 2
// disconnected, 3 data). Host.PollInput has already populated the
// reserved `<input>.line`/`<input>.text` cells before this returns, per
// lc_net_input's set_item calls.
func lcNetInput(host Host) vm.LibcallFunc {
	return func(m *vm.Interp) error {
		kind, _, _ := host.PollInput()
		return m.PushResult(value.FromInt(int64(kind)))
	}
}

// lcNetWrite implements net.write(line, value) (§4.4): encodes value
// as text and enqueues it on the given line, per lc_net_write's type
// switch (string/int/bool/nil).
func lcNetWrite(host Host) vm.LibcallFunc {
	return func(m *vm.Interp) error {
		out, err := m.PopArg()
		if err != nil {
			return err
		}
		line, err := m.PopArg()
		if err != nil {
			return err
		}
		if line.Kind != value.Int {
			m.SetRuntimeError(vmerr.RuntimeInvalidArgs, "net.write")
			return m.PushResult(value.Nothing())
		}
		text := renderForWire(out)
		if text != "" || out.Kind != value.Nil {
			if !host.WriteLine(int(line.I), text) {
				m.SetRuntimeError(vmerr.RuntimeInvalidArgs, "net.write: bad line")
			}
		}
		return m.PushResult(value.Nothing())
	}
}

// renderForWire stringifies a value for net.write, matching
// lc_net_write's switch: nil writes nothing.
func renderForWire(v value.Value) string {
	switch v.Kind {
	case value.Nil:
		return ""
	default:
		return v.String()
	}
}
