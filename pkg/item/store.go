package item

import (
	"strings"

	lru "github.com/hashicorp/golang-lru"

	"github.com/kristofer/sind/pkg/value"
)

// resolveCacheSize bounds the domain-stack LRU that short-circuits
// repeated fully-qualified name walks (SPEC_FULL.md, Domain Stack).
// It is purely a latency optimization over the authoritative tree
// walk — every write path below invalidates it.
const resolveCacheSize = 4096

// Itemstore is the tree of items anchored at a nameless Root, plus a
// resolve cache (§4.2.1/§4.2.2 describe the authoritative walk; the
// cache is additive).
type Itemstore struct {
	Root    *Item
	resolve *lru.Cache
}

// New creates an itemstore with a freshly allocated root.
func New() *Itemstore {
	c, _ := lru.New(resolveCacheSize)
	return &Itemstore{Root: NewRoot(), resolve: c}
}

// tokenize splits a fully-qualified name on '.' and validates both the
// overall depth (<=8 layers, §3.2) and each layer (§3.2's regex).
func tokenize(fqName string) ([]string, error) {
	if fqName == "" {
		return nil, ErrEmptyName
	}
	layers := strings.Split(fqName, ".")
	if len(layers) > MaxDepth {
		return nil, ErrTooDeep
	}
	for _, l := range layers {
		if !ValidLayer(l) {
			return nil, ErrBadLayer
		}
	}
	return layers, nil
}

func (s *Itemstore) invalidate(fqName string) {
	if s.resolve != nil {
		s.resolve.Remove(fqName)
	}
}

// Find walks a fully-qualified name down from the root. It does not
// create intermediate items — use Insert* for that. Per §4.2.2, this
// is the shared tokenize-and-walk used by finding, deleting, and
// setting by name.
func (s *Itemstore) Find(fqName string) (*Item, error) {
	if s.resolve != nil {
		if v, ok := s.resolve.Get(fqName); ok {
			return v.(*Item), nil
		}
	}
	layers, err := tokenize(fqName)
	if err != nil {
		return nil, err
	}
	cur := s.Root
	for _, l := range layers {
		child, ok := cur.Children.get(l)
		if !ok {
			return nil, ErrNotFound
		}
		cur = child
	}
	if s.resolve != nil {
		s.resolve.Add(fqName, cur)
	}
	return cur, nil
}

// Exists reports whether fqName names a live item.
func (s *Itemstore) Exists(fqName string) bool {
	_, err := s.Find(fqName)
	return err == nil
}

// walkOrCreate walks a fully-qualified name from the root, creating
// missing intermediate items as nil-valued value items, per §4.2.2.
// It returns the final item's parent and its leaf layer name so the
// caller can decide how to populate (or replace) the leaf.
func (s *Itemstore) walkOrCreate(fqName string) (parent *Item, leaf string, existing *Item, err error) {
	layers, err := tokenize(fqName)
	if err != nil {
		return nil, "", nil, err
	}
	cur := s.Root
	for i, l := range layers {
		last := i == len(layers)-1
		child, ok := cur.Children.get(l)
		if !ok {
			if last {
				return cur, l, nil, nil
			}
			child = newItem(l)
			child.Parent = cur
			child.SetValue(value.Nothing())
			cur.Children.put(l, child)
		}
		if last {
			return cur, l, child, nil
		}
		cur = child
	}
	// Unreachable: fqName is non-empty after tokenize.
	return nil, "", nil, ErrEmptyName
}

// InsertValueItem creates or updates the value item at fqName, per
// §4.2.2 and the ASSIGN_ITEM opcode (§4.3.2 `C`). A code item
// currently InUse at that path cannot be replaced; it fails with
// ErrInUse.
func (s *Itemstore) InsertValueItem(fqName string, v value.Value) (*Item, error) {
	parent, leaf, existing, err := s.walkOrCreate(fqName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.InUse {
			return nil, ErrInUse
		}
		existing.SetValue(v)
		s.invalidate(fqName)
		return existing, nil
	}
	it := newItem(leaf)
	it.Parent = parent
	it.SetValue(v)
	parent.Children.put(leaf, it)
	s.invalidate(fqName)
	return it, nil
}

// InsertCodeItem creates or updates the code item at fqName, per
// §4.2.2 and the ASSIGN_CODE_ITEM opcode (§4.3.2 `B`).
func (s *Itemstore) InsertCodeItem(fqName string, code []byte) (*Item, error) {
	parent, leaf, existing, err := s.walkOrCreate(fqName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.InUse {
			return nil, ErrInUse
		}
		existing.SetCode(code)
		s.invalidate(fqName)
		return existing, nil
	}
	it := newItem(leaf)
	it.Parent = parent
	it.SetCode(code)
	parent.Children.put(leaf, it)
	s.invalidate(fqName)
	return it, nil
}

// Walk visits every item in the tree in a depth-first, children-each
// order, calling fn with each item's fully-qualified name. It is used
// by the admin introspection endpoint's item-count snapshot and by the
// itemtree offline inspector's table rendering (SPEC_FULL.md, Domain
// Stack: tablewriter/websocket).
func (s *Itemstore) Walk(fn func(fqName string, it *Item)) {
	var walk func(it *Item)
	walk = func(it *Item) {
		it.Children.each(func(name string, child *Item) {
			fn(child.FullyQualifiedName(), child)
			walk(child)
		})
	}
	walk(s.Root)
}

// Count reports the total number of items in the tree, for the admin
// snapshot's item-count field.
func (s *Itemstore) Count() int {
	n := 0
	s.Walk(func(string, *Item) { n++ })
	return n
}

// Delete removes the item named by fqName from its parent, per the
// `W` DELETE opcode (§4.3.2). It refuses to delete an item that is
// InUse (§3.2's invariant; §8's boundary behaviors).
func (s *Itemstore) Delete(fqName string) error {
	it, err := s.Find(fqName)
	if err != nil {
		return err
	}
	if it.InUse {
		return ErrInUse
	}
	it.Parent.Children.delete(it.Name)
	s.invalidate(fqName)
	if s.resolve != nil {
		prefix := fqName + "."
		for _, k := range s.resolve.Keys() {
			if key, ok := k.(string); ok && strings.HasPrefix(key, prefix) {
				s.resolve.Remove(k)
			}
		}
	}
	return nil
}
