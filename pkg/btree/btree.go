// Package btree implements a single-file, disk-resident B-tree index
// mapping unsigned 64-bit keys to unsigned 64-bit values. Every node
// occupies one fixed-size block in the file and is read/written as a
// whole, so memory use stays constant regardless of how many entries
// the index holds.
package btree

import (
	"encoding/binary"
	"fmt"

	"go-bindex/pkg/customerrors"
	"go-bindex/pkg/pager"
	"go-bindex/pkg/stack"

	"github.com/pkg/errors"
)

// bin is the byte order used for all marshals/unmarshals.
var bin = binary.BigEndian

const (
	// BlockSize is the fixed size of every block in the file. Block 0
	// is the header, every block after it is a node.
	BlockSize = 512

	// Degree is the minimal branching factor t. It is fixed by the
	// file format and not stored in the file.
	Degree = 10

	MaxKeys     = 2*Degree - 1
	MaxChildren = 2 * Degree
)

// Create creates the named file as a new, empty B-tree index. Fails
// if a file already exists at that path.
func Create(fileName string) (*BTree, error) {
	p, err := pager.Create(fileName, BlockSize, 0644)
	if err != nil {
		return nil, err
	}

	tree := &BTree{
		file:  fileName,
		pager: p,
		meta: &metadata{
			dirty: true,
			root:  0,
			next:  1,
		},
	}

	if err := tree.writeMeta(); err != nil {
		_ = tree.Close()
		return nil, errors.Wrap(err, "failed to write meta after create")
	}

	return tree, nil
}

// Open opens the named file as a B-tree index file and returns an
// instance for use. Fails if the file does not exist, is shorter than
// one block or does not carry the format signature.
func Open(fileName string) (*BTree, error) {
	p, err := pager.Open(fileName, BlockSize, 0644)
	if err != nil {
		return nil, err
	}

	tree := &BTree{
		file:  fileName,
		pager: p,
		meta:  &metadata{},
	}

	d, err := p.ReadBlock(0)
	if err != nil {
		_ = tree.Close()
		return nil, err
	}

	if err := tree.meta.UnmarshalBinary(d); err != nil {
		_ = tree.Close()
		return nil, errors.Wrap(err, "failed to read meta while opening index")
	}

	return tree, nil
}

// BTree represents an on-disk B-tree. Each node in the tree is mapped
// to a single block in the file. The header block holds the root
// block id and the allocation counter; both are rewritten on every
// change.
type BTree struct {
	file  string
	pager *pager.Pager
	meta  *metadata
}

// Get fetches the value associated with the given key. The second
// return value reports whether the key exists.
func (tree *BTree) Get(key uint64) (uint64, bool, error) {
	id := tree.meta.root
	for id != 0 {
		n, err := tree.fetch(id)
		if err != nil {
			return 0, false, err
		}

		idx, found := n.search(key)
		if found {
			return n.values[idx], true, nil
		} else if n.isLeaf() {
			return 0, false, nil
		}

		id = n.children[idx]
	}

	return 0, false, nil
}

// Put inserts the key-value pair into the B-tree. Keys are unique;
// inserting a key that is already present returns ErrKeyExists and
// leaves the tree unmodified.
func (tree *BTree) Put(key, val uint64) error {
	if _, found, err := tree.Get(key); err != nil {
		return err
	} else if found {
		return customerrors.ErrKeyExists
	}

	if tree.meta.root == 0 {
		root, err := tree.alloc()
		if err != nil {
			return err
		}

		root.numKeys = 1
		root.keys[0] = key
		root.values[0] = val
		if err := tree.write(root); err != nil {
			return err
		}
		return tree.setRoot(root.id)
	}

	cur, err := tree.fetch(tree.meta.root)
	if err != nil {
		return err
	}

	// a full root is split before descending, through a freshly
	// allocated root that adopts the old one as its only child
	if cur.isFull() {
		newRoot, err := tree.alloc()
		if err != nil {
			return err
		}

		newRoot.children[0] = cur.id
		cur.parent = newRoot.id
		if err := tree.split(newRoot, 0, cur); err != nil {
			return err
		}
		if err := tree.setRoot(newRoot.id); err != nil {
			return err
		}
		cur = newRoot
	}

	// proactive split discipline: every child is split while still at
	// its parent, so the node finally entered always has a free slot.
	// This keeps the walk purely iterative with at most three nodes
	// resident (current, child, new sibling).
	for !cur.isLeaf() {
		idx, _ := cur.search(key)
		child, err := tree.fetch(cur.children[idx])
		if err != nil {
			return err
		}

		if child.isFull() {
			if err := tree.split(cur, idx, child); err != nil {
				return err
			}

			// the median moved up into cur at idx; re-evaluate which
			// of the two halves the key belongs in
			if key > cur.keys[idx] {
				idx++
				child, err = tree.fetch(cur.children[idx])
				if err != nil {
					return err
				}
			}
		}

		cur = child
	}

	idx, _ := cur.search(key)
	cur.insertAt(idx, key, val)
	return tree.write(cur)
}

// Count returns the number of entries in the entire tree.
func (tree *BTree) Count() (uint64, error) {
	counter := uint64(0)
	err := tree.Scan(func(_, _ uint64) (bool, error) {
		counter++
		return false, nil
	})
	return counter, err
}

// Close releases the underlying pager. Every mutation was written
// through immediately, so there is nothing left to flush.
func (tree *BTree) Close() error {
	if tree.pager == nil {
		return nil
	}

	err := tree.pager.Close()
	tree.pager = nil
	return err
}

func (tree *BTree) String() string {
	return fmt.Sprintf(
		"BTree{file='%s', root=%d, next=%d}",
		tree.file, tree.meta.root, tree.meta.next,
	)
}

// Print dumps the tree structure to stdout, one node per line,
// indented by depth.
func (tree *BTree) Print() {
	fmt.Println("============== btree =============")
	type printFrame struct {
		id     uint64
		indent int
	}

	s := stack.New[printFrame](8)
	if tree.meta.root != 0 {
		s.Push(printFrame{id: tree.meta.root})
	}

	for !s.Empty() {
		top := s.Pop()

		n, err := tree.fetch(top.id)
		if err != nil {
			fmt.Printf("%*s<error: %v>\n", top.indent, "", err)
			continue
		}

		fmt.Printf("%*s%v\n", top.indent, "", n)
		if !n.isLeaf() {
			for i := int(n.numKeys); i >= 0; i-- {
				s.Push(printFrame{id: n.children[i], indent: top.indent + 4})
			}
		}
	}
	fmt.Println("==================================")
}

// split relieves the full child at parent.children[index]. The upper
// half of the child moves into a freshly allocated right sibling and
// the median entry rises into the parent. Children moved to the
// sibling get their parent pointer rewritten and persisted; the
// format guarantees parent links stay consistent across every
// structural change.
func (tree *BTree) split(parent *node, index int, child *node) error {
	sibling, err := tree.alloc()
	if err != nil {
		return err
	}

	sibling.parent = parent.id
	sibling.numKeys = Degree - 1
	for i := 0; i < Degree-1; i++ {
		sibling.keys[i] = child.keys[Degree+i]
		sibling.values[i] = child.values[Degree+i]
		child.keys[Degree+i] = 0
		child.values[Degree+i] = 0
	}

	if !child.isLeaf() {
		for i := 0; i < Degree; i++ {
			sibling.children[i] = child.children[Degree+i]
			child.children[Degree+i] = 0
		}

		for i := 0; i < Degree; i++ {
			moved, err := tree.fetch(sibling.children[i])
			if err != nil {
				return err
			}
			moved.parent = sibling.id
			if err := tree.write(moved); err != nil {
				return err
			}
		}
	}

	medianKey := child.keys[Degree-1]
	medianVal := child.values[Degree-1]
	child.keys[Degree-1] = 0
	child.values[Degree-1] = 0
	child.numKeys = Degree - 1

	for i := int(parent.numKeys); i > index; i-- {
		parent.keys[i] = parent.keys[i-1]
		parent.values[i] = parent.values[i-1]
		parent.children[i+1] = parent.children[i]
	}
	parent.keys[index] = medianKey
	parent.values[index] = medianVal
	parent.children[index+1] = sibling.id
	parent.numKeys++

	// all three writes must land for the split to be structurally
	// complete; a crash in between leaves the file inconsistent and
	// is not repaired here
	if err := tree.write(child); err != nil {
		return err
	}
	if err := tree.write(sibling); err != nil {
		return err
	}
	return tree.write(parent)
}

// fetch reads and decodes the node stored in the given block. Block
// id 0 never refers to a node and yields nil.
func (tree *BTree) fetch(id uint64) (*node, error) {
	if id == 0 {
		return nil, nil
	}

	d, err := tree.pager.ReadBlock(id)
	if err != nil {
		return nil, err
	}

	n := &node{}
	if err := n.UnmarshalBinary(d); err != nil {
		return nil, errors.Wrapf(err, "failed to decode node at block %d", id)
	}

	n.dirty = false
	return n, nil
}

// write encodes the node and writes it in place at its own block.
func (tree *BTree) write(n *node) error {
	d, err := n.MarshalBinary()
	if err != nil {
		return err
	}

	if err := tree.pager.WriteBlock(n.id, d); err != nil {
		return err
	}

	n.dirty = false
	return nil
}

// alloc hands out a zero-valued node stamped with the next free block
// id. The header is persisted immediately so the counter survives
// even if the node itself is written later.
func (tree *BTree) alloc() (*node, error) {
	n := &node{
		dirty: true,
		id:    tree.meta.next,
	}

	tree.meta.next++
	tree.meta.dirty = true
	if err := tree.writeMeta(); err != nil {
		return nil, errors.Wrap(err, "failed to write meta after alloc")
	}

	return n, nil
}

func (tree *BTree) setRoot(id uint64) error {
	tree.meta.root = id
	tree.meta.dirty = true
	return tree.writeMeta()
}

func (tree *BTree) writeMeta() error {
	if !tree.meta.dirty {
		return nil
	}

	d, err := tree.meta.MarshalBinary()
	if err != nil {
		return err
	}

	if err := tree.pager.WriteBlock(0, d); err != nil {
		return err
	}

	tree.meta.dirty = false
	return nil
}
