package libcall

// Host is everything a libcall handler needs from the surrounding
// runtime beyond the operand stack and itemstore it already reaches
// through *vm.Interp — the scheduler, the network pump, and the
// process lifecycle. cmd/sind supplies the concrete implementation;
// keeping it as an interface here is what lets pkg/libcall depend on
// pkg/vm/pkg/task/pkg/network without any of those depending back on
// pkg/libcall.
type Host interface {
	// Backup snapshots the itemstore to a timestamped sibling file,
	// snappy-compressed, per sys.backup (§4.4).
	Backup() error

	// Shutdown stops the event loop. safe selects whether the
	// itemstore is saved on the way out (sys.shutdown vs sys.abort).
	Shutdown(safe bool)

	// NewTask schedules itemName per task.newgametask's contract:
	// startDecis/repeatDecis are tenths of a second, repeatDecis == 0
	// means one-shot. It returns an error only if itemName does not
	// name a live item.
	NewTask(itemName string, startDecis, repeatDecis int64) (id int64, err error)

	// KillTask cancels a task by id; ok is false if no such task is
	// live (task.killtask pushes false rather than erroring).
	KillTask(id int64) (ok bool)

	// PollInput advances the fair round-robin input scanner one step,
	// returning the event kind net.input() reports (0 none, 1
	// connected, 2 disconnected, 3 data) plus the affected line number
	// and, for a data event, the one buffered command.
	PollInput() (kind int, line int, text string)

	// WriteLine enqueues text for output on the given line, per
	// net.write. It returns false if line is out of range.
	WriteLine(line int, text string) (ok bool)
}
