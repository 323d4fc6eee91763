// Package item implements the itemstore: a hierarchical, namespaced
// tree of named cells ("items") that hold either a value or a bytecode
// blob, per spec §3.2 and §4.2.
//
// The tree is arena-free in the C sense (design note in §9 asks for
// "arena-and-index" to avoid weak parent back-references); under Go's
// garbage collector a plain parent pointer carries none of the
// lifetime hazards that note exists to avoid, so Item holds a direct
// *Item parent. What is kept faithful to §4.2.1 is the *shape* of the
// children map: a hand-rolled chained-hash table (childMap, in
// hash.go) with the exact resize and hashing rules spec.md pins down,
// rather than Go's built-in map (whose hashing and growth policy are
// unspecified and would not satisfy the testable properties in §8).
package item

import (
	"errors"
	"regexp"
	"strings"

	"github.com/kristofer/sind/pkg/value"
)

var (
	ErrBadLayer    = errors.New("item: layer name invalid")
	ErrTooDeep     = errors.New("item: name exceeds 8 layers")
	ErrInUse       = errors.New("item: code item is in use")
	ErrNotFound    = errors.New("item: no such item")
	ErrNotCode     = errors.New("item: item is not a code item")
	ErrNotValue    = errors.New("item: item is not a value item")
	ErrEmptyName   = errors.New("item: empty fully-qualified name")
)

// MaxLayerLen, MaxDepth mirror §3.2's limits: a layer is 1..32 chars,
// and a fully-qualified name is at most 8 layers deep.
const (
	MaxLayerLen = 32
	MaxDepth    = 8
)

var layerPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,32}$`)

// ValidLayer reports whether s is an acceptable layer name: 1..32
// characters drawn from [A-Za-z0-9_], per §3.2's invariant and §8's
// quantified invariant 4.
func ValidLayer(s string) bool {
	return layerPattern.MatchString(s)
}

// Item is a single named cell in the tree. It is either a value item
// (Val is meaningful) or a code item (Code is meaningful); never both,
// per §3.2's invariant that a code item has no string payload
// simultaneously with bytecode.
type Item struct {
	Name     string
	Parent   *Item
	Children *childMap

	// InUse is set for the duration a code item sits on the
	// interpreter's call chain; it forbids replacement and deletion
	// (§3.2, §5). It is never true for value items.
	InUse bool

	IsCode bool
	Val    value.Value
	Code   []byte
}

// newItem allocates a detached item with an empty children map.
func newItem(name string) *Item {
	return &Item{Name: name, Children: newChildMap()}
}

// NewRoot creates the tree's unique root item. The root has no parent
// and is never itself addressable by a fully-qualified name (§3.2:
// "the fully-qualified item name is the dot-joined sequence of
// ancestor layers from the child of the root down to the item").
func NewRoot() *Item {
	return newItem("")
}

// FullyQualifiedName reconstructs the dot-joined path from the child
// of the root down to it, per §3.2.
func (it *Item) FullyQualifiedName() string {
	if it.Parent == nil {
		return ""
	}
	var parts []string
	for cur := it; cur.Parent != nil; cur = cur.Parent {
		parts = append(parts, cur.Name)
	}
	// parts was built leaf-to-root; reverse it.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// SetValue replaces the item's payload with a value, clearing any
// bytecode. Callers must have already checked InUse.
func (it *Item) SetValue(v value.Value) {
	it.Val.Drop()
	it.Val = v
	it.Code = nil
	it.IsCode = false
}

// SetCode replaces the item's payload with bytecode, clearing any
// value. Callers must have already checked InUse.
func (it *Item) SetCode(code []byte) {
	it.Val.Drop()
	it.Val = value.Nothing()
	it.Code = code
	it.IsCode = true
}
