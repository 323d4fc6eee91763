package libcall

import (
	"testing"

	"github.com/kristofer/sind/pkg/bytecode"
	"github.com/kristofer/sind/pkg/item"
	"github.com/kristofer/sind/pkg/value"
	"github.com/kristofer/sind/pkg/vm"
)

type fakeHost struct {
	backedUp    bool
	shutdown    bool
	safe        bool
	tasks       map[string]int64
	nextID      int64
	killed      []int64
	pollKind    int
	writtenLine int
	writtenText string
}

func newFakeHost() *fakeHost {
	return &fakeHost{tasks: make(map[string]int64)}
}

func (h *fakeHost) Backup() error { h.backedUp = true; return nil }
func (h *fakeHost) Shutdown(safe bool) {
	h.shutdown = true
	h.safe = safe
}
func (h *fakeHost) NewTask(itemName string, start, repeat int64) (int64, error) {
	id := h.nextID
	h.nextID++
	h.tasks[itemName] = id
	return id, nil
}
func (h *fakeHost) KillTask(id int64) bool {
	h.killed = append(h.killed, id)
	return true
}
func (h *fakeHost) PollInput() (int, int, string) { return h.pollKind, 0, "" }
func (h *fakeHost) WriteLine(line int, text string) bool {
	h.writtenLine = line
	h.writtenText = text
	return true
}

func encodeInt64(v int64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func encodeU16(v int) []byte { return []byte{byte(v), byte(v >> 8)} }

func TestLookupResolvesDeclaredCalls(t *testing.T) {
	table := Build(newFakeHost())
	lib, fn, args, ok := table.Lookup("str", "upper")
	if !ok || args != 1 {
		t.Fatalf("got lib=%d fn=%d args=%d ok=%v", lib, fn, args, ok)
	}
	if _, _, _, ok := table.Lookup("nosuch", "lib"); ok {
		t.Fatal("expected lookup miss")
	}
}

func TestStrUpperViaLibcallOpcode(t *testing.T) {
	host := newFakeHost()
	table := Build(host)
	store := item.New()
	machine := vm.New(store, table.Handlers())

	libIdx, fnIdx, _, _ := table.Lookup("str", "upper")
	var body []byte
	body = append(body, byte(bytecode.PushStr))
	body = append(body, encodeU16(3)...)
	body = append(body, []byte("abc")...)
	body = append(body, byte(bytecode.Libcall), libIdx, fnIdx)
	body = append(body, byte(bytecode.Halt))
	code := append([]byte{0, 0}, body...)

	it, err := store.InsertCodeItem("up", code)
	if err != nil {
		t.Fatal(err)
	}
	result, err := machine.Run(it, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != value.Str || result.S != "ABC" {
		t.Fatalf("got %+v, want \"ABC\"", result)
	}
}

func TestTaskNewGameTaskViaLibcallOpcode(t *testing.T) {
	host := newFakeHost()
	table := Build(host)
	store := item.New()
	machine := vm.New(store, table.Handlers())
	libIdx, fnIdx, _, _ := table.Lookup("task", "newgametask")

	var body []byte
	body = append(body, byte(bytecode.PushStr))
	body = append(body, encodeU16(4)...)
	body = append(body, []byte("tick")...)
	body = append(body, byte(bytecode.PushInt))
	body = append(body, encodeInt64(5)...)
	body = append(body, byte(bytecode.PushInt))
	body = append(body, encodeInt64(0)...)
	body = append(body, byte(bytecode.Libcall), libIdx, fnIdx)
	body = append(body, byte(bytecode.Halt))
	code := append([]byte{0, 0}, body...)

	it, err := store.InsertCodeItem("boot", code)
	if err != nil {
		t.Fatal(err)
	}
	result, err := machine.Run(it, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != value.Int {
		t.Fatalf("got %+v, want int task id", result)
	}
	if host.tasks["tick"] != result.I {
		t.Fatalf("host saw task id %d, vm got %d", host.tasks["tick"], result.I)
	}
}

func TestTaskNewGameTaskInvalidArgsDegradesToNil(t *testing.T) {
	host := newFakeHost()
	table := Build(host)
	store := item.New()
	machine := vm.New(store, table.Handlers())
	libIdx, fnIdx, _, _ := table.Lookup("task", "newgametask")

	var body []byte
	body = append(body, byte(bytecode.PushInt)) // wrong type for name
	body = append(body, encodeInt64(1)...)
	body = append(body, byte(bytecode.PushInt))
	body = append(body, encodeInt64(5)...)
	body = append(body, byte(bytecode.PushInt))
	body = append(body, encodeInt64(0)...)
	body = append(body, byte(bytecode.Libcall), libIdx, fnIdx)
	body = append(body, byte(bytecode.Halt))
	code := append([]byte{0, 0}, body...)

	it, err := store.InsertCodeItem("badboot", code)
	if err != nil {
		t.Fatal(err)
	}
	result, err := machine.Run(it, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsNil() {
		t.Fatalf("got %+v, want nil", result)
	}
	errItem, ferr := store.Find("sys.error")
	if ferr != nil {
		t.Fatal(ferr)
	}
	if errItem.Val.I == 0 {
		t.Fatal("expected sys.error to be set")
	}
}
