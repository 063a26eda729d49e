package btree

import (
	"go-bindex/pkg/stack"
)

// frame is one entry of the explicit traversal stack: a block id and
// the index of the next entry to emit from that node.
type frame struct {
	id  uint64
	idx int
}

// Scan walks the whole tree in ascending key order and passes each
// entry to scanFn. Scan stops early when scanFn returns 'true'. The
// recursive in-order walk is simulated with an explicit stack of
// (block id, next index) pairs, so auxiliary memory is bounded by the
// tree's height and only one node is resident at a time. Each call
// starts a fresh traversal.
func (tree *BTree) Scan(scanFn func(key, val uint64) (bool, error)) error {
	if tree.meta.root == 0 {
		return nil
	}

	s := stack.New[frame](8)
	cur := tree.meta.root

	for cur != 0 || !s.Empty() {
		if cur != 0 {
			// slide down to the leftmost child, remembering the path
			n, err := tree.fetch(cur)
			if err != nil {
				return err
			}

			s.Push(frame{id: cur, idx: 0})
			cur = n.children[0] // 0 for a leaf
			continue
		}

		top := s.Pop()
		n, err := tree.fetch(top.id)
		if err != nil {
			return err
		}

		if top.idx >= int(n.numKeys) {
			// node fully drained, stays popped
			continue
		}

		if stop, err := scanFn(n.keys[top.idx], n.values[top.idx]); err != nil {
			return err
		} else if stop {
			return nil
		}

		s.Push(frame{id: top.id, idx: top.idx + 1})
		if !n.isLeaf() {
			cur = n.children[top.idx+1]
		}
	}

	return nil
}
