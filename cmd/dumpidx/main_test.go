package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/btree-query-bench/idxsql/dbms/index/bptree"
	"github.com/btree-query-bench/idxsql/dbms/pager"
	"github.com/btree-query-bench/idxsql/dbms/recfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.idx")

	tree, err := bptree.Open(path, pager.ModeWrite,
		bptree.WithLeafCapacity(4), bptree.WithInternalCapacity(4))
	require.NoError(t, err)
	for k := int64(1); k <= 5; k++ {
		require.NoError(t, tree.Insert(k, recfile.RecordID{Page: 0, Slot: uint32(k)}))
	}
	require.NoError(t, tree.Close())

	dotPath := filepath.Join(dir, "t.dot")
	var out bytes.Buffer
	require.NoError(t, dump(&out, path, true, dotPath, true))

	got := out.String()
	assert.True(t, strings.HasPrefix(got, "root: 3\nheight: 2\n"), got)
	assert.Contains(t, got, "level 2 (internal): 1 nodes, 1 keys")
	assert.Contains(t, got, "level 1 (leaf): 2 nodes, 5 keys, 62.5% full")
	assert.Contains(t, got, "page 2 slot 2: 5 -> (0,5)")
	assert.Contains(t, got, "entries: 5\n")
	assert.Contains(t, got, "verify: ok\n")

	dot, err := os.ReadFile(dotPath)
	require.NoError(t, err)
	assert.Contains(t, string(dot), "digraph")
}

func TestDump_EmptyAndMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.idx")

	tree, err := bptree.Open(path, pager.ModeWrite)
	require.NoError(t, err)
	require.NoError(t, tree.Close())

	var out bytes.Buffer
	require.NoError(t, dump(&out, path, false, "", false))
	assert.Equal(t, "root: none\nheight: 0\n", out.String())

	assert.Error(t, dump(&out, filepath.Join(dir, "missing.idx"), false, "", false))
}
