package lsm

import (
	"math/rand"
	"path/filepath"
	"sort"
	"testing"

	"github.com/btree-query-bench/idxsql/dbms/index"
	"github.com/btree-query-bench/idxsql/dbms/index/bptree"
	"github.com/btree-query-bench/idxsql/dbms/pager"
	"github.com/btree-query-bench/idxsql/dbms/recfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	key int64
	rid recfile.RecordID
}

func drain(t *testing.T, idx index.Index, from int64) []entry {
	t.Helper()
	it, err := idx.Scan(from)
	require.NoError(t, err)
	var out []entry
	for it.Next() {
		out = append(out, entry{it.Key(), it.RecordID()})
	}
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
	return out
}

func TestEncoding_PreservesOrder(t *testing.T) {
	t.Parallel()

	keys := []int64{-1 << 63, -1000, -1, 0, 1, 42, 1<<63 - 1}
	for i := 1; i < len(keys); i++ {
		a := encodeEntry(keys[i-1], recfile.RecordID{Page: 9, Slot: 9})
		b := encodeEntry(keys[i], recfile.RecordID{})
		assert.Negative(t, compareBytes(a, b), "%d < %d", keys[i-1], keys[i])
	}

	k, rid, err := decodeEntry(encodeEntry(-77, recfile.RecordID{Page: 3, Slot: 4}))
	require.NoError(t, err)
	assert.Equal(t, int64(-77), k)
	assert.Equal(t, recfile.RecordID{Page: 3, Slot: 4}, rid)

	_, _, err = decodeEntry([]byte{1, 2, 3})
	assert.Error(t, err)
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

// The B+ tree and Pebble must agree on every scan.
func TestLSM_MatchesBPTree(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	l, err := Open(filepath.Join(dir, "pebble"), nil)
	require.NoError(t, err)
	defer l.Close()
	tree, err := bptree.Open(filepath.Join(dir, "t.idx"), pager.ModeWrite,
		bptree.WithLeafCapacity(6), bptree.WithInternalCapacity(4))
	require.NoError(t, err)
	defer tree.Close()

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 2000; i++ {
		k := int64(rng.Intn(400) - 200)
		rid := recfile.RecordID{Page: pager.PageID(i / 37), Slot: uint32(i % 37)}
		require.NoError(t, l.Insert(k, rid))
		require.NoError(t, tree.Insert(k, rid))
	}
	require.NoError(t, l.Flush())

	for _, from := range []int64{-1000, -200, -1, 0, 150, 199, 200} {
		fromLSM := drain(t, l, from)
		fromTree := drain(t, tree, from)
		require.Len(t, fromTree, len(fromLSM), "from %d", from)
		assert.ElementsMatch(t, fromLSM, fromTree, "from %d", from)
		assert.True(t, sort.SliceIsSorted(fromLSM, func(i, j int) bool { return fromLSM[i].key < fromLSM[j].key }))
		for i := range fromLSM {
			assert.Equal(t, fromLSM[i].key, fromTree[i].key)
		}
	}
}
