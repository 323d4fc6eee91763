package item

import (
	"bytes"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kristofer/sind/pkg/value"
)

// snapshot is a Parent-free, deterministically ordered view of a
// subtree, used so go-cmp can diff two trees "ignoring hashmap bucket
// order" as required by §8's round-trip law without tripping over the
// cyclic Parent pointers in the live Item graph.
type snapshot struct {
	Name     string
	IsCode   bool
	Val      value.Value
	Code     []byte
	Children []snapshot
}

func snap(it *Item) snapshot {
	s := snapshot{Name: it.Name, IsCode: it.IsCode, Val: it.Val, Code: it.Code}
	it.Children.each(func(name string, child *Item) {
		s.Children = append(s.Children, snap(child))
	})
	sort.Slice(s.Children, func(i, j int) bool { return s.Children[i].Name < s.Children[j].Name })
	return s
}

func TestInsertFindParentInvariant(t *testing.T) {
	s := New()
	if _, err := s.InsertValueItem("a.b.c", value.FromInt(7)); err != nil {
		t.Fatal(err)
	}
	it, err := s.Find("a.b.c")
	if err != nil {
		t.Fatal(err)
	}
	if it.Val.I != 7 {
		t.Fatalf("got %v", it.Val)
	}
	// invariant 1 (§8): for every live item x whose parent is p, p.children[x.name] == x
	for cur := it; cur.Parent != nil; cur = cur.Parent {
		got, ok := cur.Parent.Children.get(cur.Name)
		if !ok || got != cur {
			t.Fatalf("parent/child invariant broken at %q", cur.Name)
		}
	}
	// Intermediate layers were created as nil value items.
	mid, err := s.Find("a.b")
	if err != nil {
		t.Fatal(err)
	}
	if mid.IsCode || !mid.Val.IsNil() {
		t.Fatalf("intermediate item should be nil value item, got %+v", mid)
	}
}

func TestLayerValidation(t *testing.T) {
	s := New()
	if _, err := s.InsertValueItem("bad name", value.FromInt(1)); err != ErrBadLayer {
		t.Fatalf("got %v, want ErrBadLayer", err)
	}
	nine := "a.a.a.a.a.a.a.a.a"
	if _, err := s.InsertValueItem(nine, value.FromInt(1)); err != ErrTooDeep {
		t.Fatalf("got %v, want ErrTooDeep", err)
	}
}

func TestInUseProtectsCodeItem(t *testing.T) {
	s := New()
	it, err := s.InsertCodeItem("self", []byte{0, 0, 'h'})
	if err != nil {
		t.Fatal(err)
	}
	it.InUse = true
	if _, err := s.InsertCodeItem("self", []byte{0, 0, 'h'}); err != ErrInUse {
		t.Fatalf("got %v, want ErrInUse", err)
	}
	if err := s.Delete("self"); err != ErrInUse {
		t.Fatalf("got %v, want ErrInUse", err)
	}
}

func TestResizeGrowsBucketsAtLoadFactor(t *testing.T) {
	m := newChildMap()
	for i := 0; i < 13; i++ { // 13/16 = 0.8125 > 0.75, must have resized by then
		it := newItem("x")
		m.put(string(rune('a'+i)), it)
	}
	if len(m.buckets) <= initialCapacity {
		t.Fatalf("expected resize, bucket count is still %d", len(m.buckets))
	}
}

func TestAssembleLiteralAndLocal(t *testing.T) {
	s := New()
	locals := func(idx int) (value.Value, bool) {
		if idx == 0 {
			return value.FromInt(42), true
		}
		return value.Value{}, false
	}
	// L "foo" D V 0 E  ->  "foo.42"
	stream := []byte{'L', 3, 0, 'f', 'o', 'o', 'D', 'V', 0, 'E'}
	name, n, err := s.Assemble(stream, locals)
	if err != nil {
		t.Fatal(err)
	}
	if name != "foo.42" {
		t.Fatalf("got %q", name)
	}
	if n != len(stream) {
		t.Fatalf("consumed %d, want %d", n, len(stream))
	}
}

func TestAssembleNestedDeref(t *testing.T) {
	s := New()
	if _, err := s.InsertValueItem("cfg.target", value.FromString("bar")); err != nil {
		t.Fatal(err)
	}
	locals := func(int) (value.Value, bool) { return value.Value{}, false }
	// L "foo" D I L "cfg" L "target" E E  -> nested assembles "cfg.target" -> "bar" -> "foo.bar"
	stream := []byte{
		'L', 3, 0, 'f', 'o', 'o',
		'D', 'I',
		'L', 3, 0, 'c', 'f', 'g',
		'L', 6, 0, 't', 'a', 'r', 'g', 'e', 't',
		'E',
		'E',
	}
	name, _, err := s.Assemble(stream, locals)
	if err != nil {
		t.Fatal(err)
	}
	if name != "foo.bar" {
		t.Fatalf("got %q", name)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	s := New()
	must := func(_ *Item, err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	must(s.InsertValueItem("sys.error", value.FromInt(0)))
	must(s.InsertValueItem("sys.error.msg", value.FromString("")))
	must(s.InsertValueItem("foo", value.FromInt(7)))
	must(s.InsertCodeItem("input", []byte{1, 0, 'p', 1, 0, 0, 0, 0, 0, 0, 0, 0, 'h'}))

	var buf bytes.Buffer
	if err := Save(&buf, s); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(&buf)
	if err != nil {
		t.Fatal(err)
	}

	want := snap(s.Root)
	got := snap(loaded.Root)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	// Idempotent under repeated application (§8 round-trip laws).
	var buf2 bytes.Buffer
	if err := Save(&buf2, loaded); err != nil {
		t.Fatal(err)
	}
	loaded2, err := Load(&buf2)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, snap(loaded2.Root)); diff != "" {
		t.Fatalf("second round trip mismatch (-want +got):\n%s", diff)
	}
}
