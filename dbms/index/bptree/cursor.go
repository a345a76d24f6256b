package bptree

import (
	"github.com/btree-query-bench/idxsql/dbms/index/btpage"
	"github.com/btree-query-bench/idxsql/dbms/pager"
	"github.com/btree-query-bench/idxsql/dbms/recfile"
	"github.com/cockroachdb/errors"
)

// Cursor is a scan position inside the leaf chain. It is created by Locate,
// moves forward only and keeps a private copy of the leaf it is on. A cursor
// does not see inserts made after it loaded its current leaf.
type Cursor struct {
	page btpage.Link
	slot int

	cached btpage.Link
	leaf   *btpage.LeafNode
	buf    pager.Page
}

// load returns the leaf at id, reading it only when it is not the cached one.
func (c *Cursor) load(pg *pager.Pager, id pager.PageID, capacity int) (*btpage.LeafNode, error) {
	if cid, ok := c.cached.Get(); ok && cid == id {
		return c.leaf, nil
	}
	if err := pg.Read(id, &c.buf); err != nil {
		return nil, err
	}
	leaf, err := btpage.DecodeLeaf(&c.buf, capacity)
	if err != nil {
		return nil, errors.Wrapf(err, "page %d", id)
	}
	c.cached, c.leaf = btpage.LinkTo(id), leaf
	return leaf, nil
}

// Iterator adapts a Cursor to index.Iterator.
type Iterator struct {
	tree *Tree
	cur  *Cursor
	done bool

	key int64
	rid recfile.RecordID
	err error
}

func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	key, rid, err := it.tree.ReadForward(it.cur)
	if err != nil {
		it.done = true
		if !errors.Is(err, ErrInvalidCursor) {
			it.err = err
		}
		return false
	}
	it.key, it.rid = key, rid
	return true
}

func (it *Iterator) Key() int64                 { return it.key }
func (it *Iterator) RecordID() recfile.RecordID { return it.rid }
func (it *Iterator) Err() error                 { return it.err }

func (it *Iterator) Close() error {
	it.done = true
	it.cur = nil
	return nil
}
