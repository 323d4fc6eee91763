// Persistence format for the itemstore, per §4.2.4 and §6.3: an
// unversioned, header-less depth-first preorder traversal of the tree.
// Grounded on original_source/src/item.c's save/load pair; the Go
// encoding below reproduces the exact byte layout spec.md pins down so
// that a file written by one build can still be read by another within
// the same build (the format itself explicitly has no cross-version
// compatibility story, per spec.md §4.2.4/§9).
package item

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/kristofer/sind/pkg/value"
)

const nameFieldLen = 33

const (
	itemTypeValue uint32 = 0
	itemTypeCode  uint32 = 1
)

// Save writes the tree rooted at s.Root in the format described by
// §4.2.4: a 33-byte NUL-padded name, a 4-byte type tag, the payload,
// and a 4-byte child count followed by each child recursively.
func Save(w io.Writer, s *Itemstore) error {
	return writeNode(w, s.Root)
}

func writeNode(w io.Writer, it *Item) error {
	var nameBuf [nameFieldLen]byte
	if len(it.Name) >= nameFieldLen {
		return fmt.Errorf("item: name %q too long to persist", it.Name)
	}
	copy(nameBuf[:], it.Name)
	if _, err := w.Write(nameBuf[:]); err != nil {
		return err
	}

	if it.IsCode {
		if err := writeUint32(w, itemTypeCode); err != nil {
			return err
		}
		if err := writeUint32(w, uint32(len(it.Code))); err != nil {
			return err
		}
		if _, err := w.Write(it.Code); err != nil {
			return err
		}
	} else {
		if err := writeUint32(w, itemTypeValue); err != nil {
			return err
		}
		if err := writeUint32(w, uint32(it.Val.Kind)); err != nil {
			return err
		}
		switch it.Val.Kind {
		case value.Int:
			if err := binary.Write(w, binary.LittleEndian, it.Val.I); err != nil {
				return err
			}
		case value.Str:
			b := []byte(it.Val.S)
			if err := writeUint32(w, uint32(len(b))); err != nil {
				return err
			}
			if _, err := w.Write(b); err != nil {
				return err
			}
		case value.Bool:
			if err := binary.Write(w, binary.LittleEndian, it.Val.I); err != nil {
				return err
			}
		case value.Nil:
			// no payload
		}
	}

	if err := writeUint32(w, uint32(it.Children.len())); err != nil {
		return err
	}

	var childErr error
	it.Children.each(func(_ string, child *Item) {
		if childErr != nil {
			return
		}
		childErr = writeNode(w, child)
	})
	return childErr
}

// Load reconstructs an itemstore from r. The root is special-cased
// (no parent, never inserted into any parent's children map); every
// descendant is read recursively and linked to its parent.
func Load(r io.Reader) (*Itemstore, error) {
	root, err := readNode(r, nil)
	if err != nil {
		return nil, err
	}
	s := New()
	s.Root = root
	return s, nil
}

func readNode(r io.Reader, parent *Item) (*Item, error) {
	var nameBuf [nameFieldLen]byte
	if _, err := io.ReadFull(r, nameBuf[:]); err != nil {
		return nil, err
	}
	name := cStringFromBuf(nameBuf[:])

	it := newItem(name)
	it.Parent = parent

	typeTag, err := readUint32(r)
	if err != nil {
		return nil, err
	}

	switch typeTag {
	case itemTypeCode:
		// Deserialized code items pass through a distinct path from
		// value items (§9's Open Question about a prior revision's
		// make_item(type=value) bug): the length is read and validated
		// before any allocation happens.
		n, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		if n < 2 {
			return nil, fmt.Errorf("item: code item %q has a %d-byte payload, shorter than the two-byte bytecode header", name, n)
		}
		code := make([]byte, n)
		if _, err := io.ReadFull(r, code); err != nil {
			return nil, err
		}
		it.IsCode = true
		it.Code = code

	case itemTypeValue:
		kind, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		switch value.Kind(kind) {
		case value.Int:
			var i int64
			if err := binary.Read(r, binary.LittleEndian, &i); err != nil {
				return nil, err
			}
			it.Val = value.FromInt(i)
		case value.Bool:
			var i int64
			if err := binary.Read(r, binary.LittleEndian, &i); err != nil {
				return nil, err
			}
			it.Val = value.FromBool(i != 0)
		case value.Str:
			n, err := readUint32(r)
			if err != nil {
				return nil, err
			}
			buf := make([]byte, n)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, err
			}
			it.Val = value.FromString(string(buf))
		case value.Nil:
			it.Val = value.Nothing()
		default:
			return nil, fmt.Errorf("item: unknown value kind tag %d", kind)
		}

	default:
		return nil, fmt.Errorf("item: unknown item type tag %d", typeTag)
	}

	numChildren, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < numChildren; i++ {
		child, err := readNode(r, it)
		if err != nil {
			return nil, err
		}
		it.Children.put(child.Name, child)
	}

	return it, nil
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func cStringFromBuf(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}
