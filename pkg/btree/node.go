package btree

import (
	"fmt"

	"github.com/pkg/errors"
)

const nodeHeaderSize = 24

// node represents one B-tree node, stored in exactly one block. The
// keys/values/children arrays are fixed-capacity slots; numKeys is
// the sole authority on which slots are valid. Unused slots hold zero
// but zero is not itself a marker of invalidity for keys or values.
type node struct {
	// temporary state info
	dirty bool

	// node data
	id       uint64
	parent   uint64
	numKeys  uint64
	keys     [MaxKeys]uint64
	values   [MaxKeys]uint64
	children [MaxChildren]uint64
}

// isLeaf returns true if this node has no children. Block id 0 never
// refers to a real node, so a zero first child is a safe sentinel.
func (n *node) isLeaf() bool { return n.children[0] == 0 }

func (n *node) isFull() bool { return n.numKeys == MaxKeys }

// search performs a linear scan over the valid entries for the given
// key and returns the index where it should be and a flag indicating
// whether the key exists. For an internal node the returned index is
// also the child slot to descend into when the key is absent.
func (n *node) search(key uint64) (idx int, found bool) {
	for idx = 0; idx < int(n.numKeys); idx++ {
		if key == n.keys[idx] {
			return idx, true
		} else if key < n.keys[idx] {
			return idx, false
		}
	}

	return idx, false
}

// insertAt inserts the entry at the given index, shifting the
// following entries one slot right. The caller guarantees the node is
// not full.
func (n *node) insertAt(idx int, key, val uint64) {
	n.dirty = true
	for i := int(n.numKeys); i > idx; i-- {
		n.keys[i] = n.keys[i-1]
		n.values[i] = n.values[i-1]
	}

	n.keys[idx] = key
	n.values[idx] = val
	n.numKeys++
}

func (n *node) String() string {
	s := "{"
	for i := 0; i < int(n.numKeys); i++ {
		s += fmt.Sprintf("%d ", n.keys[i])
	}
	s += "} "
	s += fmt.Sprintf(
		"[id=%d, size=%d, leaf=%t, parent=%d]",
		n.id, n.numKeys, n.isLeaf(), n.parent,
	)

	return s
}

func (n node) MarshalBinary() ([]byte, error) {
	buf := make([]byte, BlockSize)
	offset := 0

	// Note: update nodeHeaderSize if this is updated.
	bin.PutUint64(buf[offset:offset+8], n.id)
	offset += 8

	bin.PutUint64(buf[offset:offset+8], n.parent)
	offset += 8

	bin.PutUint64(buf[offset:offset+8], n.numKeys)
	offset += 8

	for i := 0; i < MaxKeys; i++ {
		bin.PutUint64(buf[offset:offset+8], n.keys[i])
		offset += 8
	}

	for i := 0; i < MaxKeys; i++ {
		bin.PutUint64(buf[offset:offset+8], n.values[i])
		offset += 8
	}

	for i := 0; i < MaxChildren; i++ {
		bin.PutUint64(buf[offset:offset+8], n.children[i])
		offset += 8
	}

	// rest of the block stays zero padding
	return buf, nil
}

func (n *node) UnmarshalBinary(d []byte) error {
	if n == nil {
		return errors.New("cannot unmarshal into nil node")
	} else if len(d) < BlockSize {
		return errors.New("in-sufficient data for unmarshal")
	}

	offset := 0

	n.id = bin.Uint64(d[offset : offset+8])
	offset += 8

	n.parent = bin.Uint64(d[offset : offset+8])
	offset += 8

	n.numKeys = bin.Uint64(d[offset : offset+8])
	offset += 8

	for i := 0; i < MaxKeys; i++ {
		n.keys[i] = bin.Uint64(d[offset : offset+8])
		offset += 8
	}

	for i := 0; i < MaxKeys; i++ {
		n.values[i] = bin.Uint64(d[offset : offset+8])
		offset += 8
	}

	for i := 0; i < MaxChildren; i++ {
		n.children[i] = bin.Uint64(d[offset : offset+8])
		offset += 8
	}

	return nil
}
