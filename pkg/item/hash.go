package item

import "encoding/binary"

// hashLayer implements §4.2.1's lookup hash: keys of <=4 bytes are
// hashed by a direct byte copy into a 32-bit word (so short layer names
// hash to themselves, byte for byte); longer keys use MurmurHash3-32
// with seed 0.
func hashLayer(s string) uint32 {
	if len(s) <= 4 {
		var buf [4]byte
		copy(buf[:], s)
		return binary.LittleEndian.Uint32(buf[:])
	}
	return murmur3_32([]byte(s), 0)
}

// murmur3_32 is the standard 32-bit MurmurHash3 finalized over an
// arbitrary-length byte slice, used for layer keys longer than 4 bytes.
func murmur3_32(data []byte, seed uint32) uint32 {
	const (
		c1 uint32 = 0xcc9e2d51
		c2 uint32 = 0x1b873593
	)

	h := seed
	length := len(data)
	nblocks := length / 4

	for i := 0; i < nblocks; i++ {
		k := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		k *= c1
		k = (k << 15) | (k >> 17)
		k *= c2

		h ^= k
		h = (h << 13) | (h >> 19)
		h = h*5 + 0xe6546b64
	}

	tail := data[nblocks*4:]
	var k1 uint32
	switch len(tail) {
	case 3:
		k1 ^= uint32(tail[2]) << 16
		fallthrough
	case 2:
		k1 ^= uint32(tail[1]) << 8
		fallthrough
	case 1:
		k1 ^= uint32(tail[0])
		k1 *= c1
		k1 = (k1 << 15) | (k1 >> 17)
		k1 *= c2
		h ^= k1
	}

	h ^= uint32(length)
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}

// bucketEntry is one link in a chained-hashing bucket: a layer name and
// the item it maps to. Collisions chain through next.
type bucketEntry struct {
	key  string
	val  *Item
	next *bucketEntry
}

// childMap is the hierarchical name -> child Item map described by
// §4.2.1: chained hashing, resized when entries/buckets exceeds 0.75,
// doubling the bucket count plus one.
type childMap struct {
	buckets []*bucketEntry
	count   int
}

const initialCapacity = 16

func newChildMap() *childMap {
	return &childMap{buckets: make([]*bucketEntry, initialCapacity)}
}

func (m *childMap) bucketIndex(key string) int {
	return int(hashLayer(key) % uint32(len(m.buckets)))
}

// get returns the child mapped to key, if any.
func (m *childMap) get(key string) (*Item, bool) {
	for e := m.buckets[m.bucketIndex(key)]; e != nil; e = e.next {
		if e.key == key {
			return e.val, true
		}
	}
	return nil, false
}

// put inserts key -> val without checking for an existing mapping —
// per §4.2.1, "Insertion does not dedupe; callers must check first."
func (m *childMap) put(key string, val *Item) {
	idx := m.bucketIndex(key)
	m.buckets[idx] = &bucketEntry{key: key, val: val, next: m.buckets[idx]}
	m.count++
	if float64(m.count)/float64(len(m.buckets)) > 0.75 {
		m.resize()
	}
}

func (m *childMap) resize() {
	newSize := len(m.buckets)*2 + 1
	old := m.buckets
	m.buckets = make([]*bucketEntry, newSize)
	for _, head := range old {
		for e := head; e != nil; e = e.next {
			idx := m.bucketIndex(e.key)
			m.buckets[idx] = &bucketEntry{key: e.key, val: e.val, next: m.buckets[idx]}
		}
	}
}

// delete removes key's mapping, if present.
func (m *childMap) delete(key string) {
	idx := m.bucketIndex(key)
	var prev *bucketEntry
	for e := m.buckets[idx]; e != nil; e = e.next {
		if e.key == key {
			if prev == nil {
				m.buckets[idx] = e.next
			} else {
				prev.next = e.next
			}
			m.count--
			return
		}
		prev = e
	}
}

// each calls fn for every child in unspecified (bucket) order — callers
// that need a stable order (e.g. persistence) should sort externally;
// §8's round-trip law only requires equality "ignoring hashmap bucket
// order".
func (m *childMap) each(fn func(name string, it *Item)) {
	for _, head := range m.buckets {
		for e := head; e != nil; e = e.next {
			fn(e.key, e.val)
		}
	}
}

func (m *childMap) len() int { return m.count }
