package compiler

import (
	"testing"

	"github.com/kristofer/sind/pkg/item"
	"github.com/kristofer/sind/pkg/libcall"
	"github.com/kristofer/sind/pkg/value"
	"github.com/kristofer/sind/pkg/vm"
)

type fakeHost struct {
	tasks map[string]int64
	next  int64
}

func newFakeHost() *fakeHost { return &fakeHost{tasks: make(map[string]int64)} }

func (h *fakeHost) Backup() error { return nil }
func (h *fakeHost) Shutdown(bool) {}
func (h *fakeHost) NewTask(name string, start, repeat int64) (int64, error) {
	id := h.next
	h.next++
	h.tasks[name] = id
	return id, nil
}
func (h *fakeHost) KillTask(int64) bool                  { return true }
func (h *fakeHost) PollInput() (int, int, string)        { return 0, 0, "" }
func (h *fakeHost) WriteLine(line int, text string) bool { return true }

// run compiles src as a top-level unit (no params) and executes it
// against a fresh store wired with the real libcall table, returning
// the store for assertions.
func run(t *testing.T, src string) (*item.Itemstore, *fakeHost) {
	t.Helper()
	host := newFakeHost()
	table := libcall.Build(host)
	comp := New(table)
	store := item.New()
	machine := vm.New(store, table.Handlers())
	machine.Compiler = comp

	code, _, err := comp.Compile(src, nil)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	it, err := store.InsertCodeItem("boot", code)
	if err != nil {
		t.Fatalf("insert error: %v", err)
	}
	if _, err := machine.Run(it, nil); err != nil {
		t.Fatalf("run error: %v", err)
	}
	return store, host
}

func findInt(t *testing.T, store *item.Itemstore, name string) int64 {
	t.Helper()
	it, err := store.Find(name)
	if err != nil {
		t.Fatalf("find %s: %v", name, err)
	}
	if it.Val.Kind != value.Int {
		t.Fatalf("%s: got kind %v, want int", name, it.Val.Kind)
	}
	return it.Val.I
}

func TestArithmeticPrecedenceAndItemAssign(t *testing.T) {
	store, _ := run(t, `$counter := 1 + 2 * 3;`)
	if got := findInt(t, store, "counter"); got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}

func TestIfElseBranchesOnComparison(t *testing.T) {
	store, _ := run(t, `
		x := 5;
		if (x > 3) {
			$flag := true;
		} else {
			$flag := false;
		}
	`)
	it, err := store.Find("flag")
	if err != nil {
		t.Fatal(err)
	}
	if it.Val.Kind != value.Bool || !it.Val.AsBool() {
		t.Fatalf("got %+v, want true", it.Val)
	}
}

func TestWhileLoopAccumulates(t *testing.T) {
	store, _ := run(t, `
		i := 0;
		while (i < 5) {
			i := i + 1;
		}
		$result := i;
	`)
	if got := findInt(t, store, "result"); got != 5 {
		t.Fatalf("got %d, want 5", got)
	}
}

func TestLibCallNewGameTaskIntegration(t *testing.T) {
	store, host := run(t, `$taskid := task.newgametask("tick", 5, 0);`)
	got := findInt(t, store, "taskid")
	if host.tasks["tick"] != got {
		t.Fatalf("host task id %d != stored id %d", host.tasks["tick"], got)
	}
}

func TestCodeAssignAndFetchInvocation(t *testing.T) {
	store, _ := run(t, `
		$greet := code { name } ( $greet.last := name; );
		$greet("bob");
	`)
	it, err := store.Find("greet.last")
	if err != nil {
		t.Fatal(err)
	}
	if it.Val.Kind != value.Str || it.Val.S != "bob" {
		t.Fatalf("got %+v, want \"bob\"", it.Val)
	}
}

func TestDeleteAndExists(t *testing.T) {
	store, _ := run(t, `
		$thing := 1;
		delete $thing;
		$gone := exists $thing;
	`)
	it, err := store.Find("gone")
	if err != nil {
		t.Fatal(err)
	}
	if it.Val.Kind != value.Bool || it.Val.AsBool() {
		t.Fatalf("got %+v, want false", it.Val)
	}
}

func TestStringConcatViaAdd(t *testing.T) {
	store, _ := run(t, `$greeting := "hello, " + "world";`)
	it, err := store.Find("greeting")
	if err != nil {
		t.Fatal(err)
	}
	if it.Val.Kind != value.Str || it.Val.S != "hello, world" {
		t.Fatalf("got %+v", it.Val)
	}
}
