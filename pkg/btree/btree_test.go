package btree

import (
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"go-bindex/pkg/customerrors"

	"github.com/stretchr/testify/require"
)

func testTree(t *testing.T) *BTree {
	t.Helper()

	tree, err := Create(filepath.Join(t.TempDir(), "btree_test.bin"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tree.Close() })
	return tree
}

func TestCreateExisting(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "btree_test.bin")

	tree, err := Create(fileName)
	require.NoError(t, err)
	require.NoError(t, tree.Close())

	_, err = Create(fileName)
	require.Error(t, err)
}

func TestOpenBadMagic(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "btree_test.bin")
	require.NoError(t, os.WriteFile(fileName, make([]byte, BlockSize), 0644))

	_, err := Open(fileName)
	require.ErrorIs(t, err, customerrors.ErrInvalidMagic)
}

func TestSearchEmpty(t *testing.T) {
	tree := testTree(t)

	_, found, err := tree.Get(5)
	require.NoError(t, err)
	require.False(t, found)
}

func TestInsertScan(t *testing.T) {
	tree := testTree(t)

	require.NoError(t, tree.Put(10, 100))
	require.NoError(t, tree.Put(20, 200))
	require.NoError(t, tree.Put(5, 50))

	got := [][2]uint64{}
	require.NoError(t, tree.Scan(func(key, val uint64) (bool, error) {
		got = append(got, [2]uint64{key, val})
		return false, nil
	}))

	require.Equal(t, [][2]uint64{{5, 50}, {10, 100}, {20, 200}}, got)
}

func TestScanStop(t *testing.T) {
	tree := testTree(t)

	for key := uint64(1); key <= 10; key++ {
		require.NoError(t, tree.Put(key, key))
	}

	seen := 0
	require.NoError(t, tree.Scan(func(key, _ uint64) (bool, error) {
		seen++
		return key == 3, nil
	}))
	require.Equal(t, 3, seen)
}

func TestRootSplit(t *testing.T) {
	tree := testTree(t)

	// 20 ascending keys: the 20th insertion lands on a full root and
	// must split it
	for key := uint64(0); key < 20; key++ {
		require.NoError(t, tree.Put(key, key*10))
	}

	root, err := tree.fetch(tree.meta.root)
	require.NoError(t, err)
	require.Equal(t, uint64(1), root.numKeys)
	require.False(t, root.isLeaf())
	require.Equal(t, uint64(0), root.parent)

	left, err := tree.fetch(root.children[0])
	require.NoError(t, err)
	right, err := tree.fetch(root.children[1])
	require.NoError(t, err)
	require.Equal(t, uint64(Degree-1), left.numKeys)
	require.Equal(t, uint64(Degree), right.numKeys)
	require.Equal(t, root.id, left.parent)
	require.Equal(t, root.id, right.parent)

	for key := uint64(0); key < 20; key++ {
		val, found, err := tree.Get(key)
		require.NoError(t, err)
		require.True(t, found, "key %d lost after split", key)
		require.Equal(t, key*10, val)
	}
}

func TestDuplicateKey(t *testing.T) {
	tree := testTree(t)

	require.NoError(t, tree.Put(7, 70))
	require.ErrorIs(t, tree.Put(7, 71), customerrors.ErrKeyExists)

	val, found, err := tree.Get(7)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(70), val)

	count, err := tree.Count()
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)
}

func TestBulkRandom(t *testing.T) {
	tree := testTree(t)

	n := 1000
	rnd := rand.New(rand.NewSource(0))
	inserted := map[uint64]uint64{}
	for len(inserted) < n {
		key := rnd.Uint64()%100000 + 1
		if _, ok := inserted[key]; ok {
			continue
		}
		inserted[key] = key * 2
		require.NoError(t, tree.Put(key, key*2))
	}

	// every inserted key resolves to its value
	for key, val := range inserted {
		got, found, err := tree.Get(key)
		require.NoError(t, err)
		require.True(t, found, "key %d not found", key)
		require.Equal(t, val, got)
	}

	// keys never inserted resolve to nothing
	for key := uint64(100001); key < 100100; key++ {
		_, found, err := tree.Get(key)
		require.NoError(t, err)
		require.False(t, found)
	}

	// scan yields exactly the inserted set in strictly ascending order
	want := make([]uint64, 0, n)
	for key := range inserted {
		want = append(want, key)
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	got := make([]uint64, 0, n)
	require.NoError(t, tree.Scan(func(key, val uint64) (bool, error) {
		require.Equal(t, inserted[key], val)
		got = append(got, key)
		return false, nil
	}))
	require.Equal(t, want, got)

	checkInvariants(t, tree)
}

func TestReopen(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "btree_test.bin")

	tree, err := Create(fileName)
	require.NoError(t, err)
	for key := uint64(1); key <= 100; key++ {
		require.NoError(t, tree.Put(key, key+1000))
	}
	require.NoError(t, tree.Close())

	tree, err = Open(fileName)
	require.NoError(t, err)
	defer tree.Close()

	for key := uint64(1); key <= 100; key++ {
		val, found, err := tree.Get(key)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, key+1000, val)
	}

	require.ErrorIs(t, tree.Put(50, 0), customerrors.ErrKeyExists)
}

// checkInvariants walks every allocated block and verifies the B-tree
// structural contract: fan-out bounds, sorted keys and parent links.
func checkInvariants(t *testing.T, tree *BTree) {
	t.Helper()

	for id := uint64(1); id < tree.meta.next; id++ {
		n, err := tree.fetch(id)
		require.NoError(t, err)
		require.Equal(t, id, n.id)

		require.LessOrEqual(t, n.numKeys, uint64(MaxKeys))
		if n.id != tree.meta.root {
			require.GreaterOrEqual(t, n.numKeys, uint64(Degree-1))
		} else {
			require.Equal(t, uint64(0), n.parent)
		}

		for i := 1; i < int(n.numKeys); i++ {
			require.Less(t, n.keys[i-1], n.keys[i])
		}

		if n.isLeaf() {
			continue
		}

		for i := 0; i <= int(n.numKeys); i++ {
			require.NotZero(t, n.children[i])
			child, err := tree.fetch(n.children[i])
			require.NoError(t, err)
			require.Equal(t, n.id, child.parent,
				"stale parent pointer on block %d", child.id)
		}
	}
}
