// Package bptree implements a disk-resident B+ tree mapping int64 keys to
// record ids.
//
// Page 0 of the index file holds the header (root page and height). Every
// other page is a leaf or an internal node as laid out by package btpage.
// Leaves are chained left to right through their next link for range
// scans. Leaf splits copy the first key of the new leaf up into the parent;
// internal splits push the middle key up and keep it in neither half.
//
// A Tree is not safe for concurrent use.
package bptree

import (
	"github.com/btree-query-bench/idxsql/dbms/index"
	"github.com/btree-query-bench/idxsql/dbms/index/btpage"
	"github.com/btree-query-bench/idxsql/dbms/pager"
	"github.com/btree-query-bench/idxsql/dbms/recfile"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const headerPage = pager.PageID(0)

var (
	ErrNoSuchRecord  = errors.New("bptree: no such record")
	ErrInvalidCursor = errors.New("bptree: invalid cursor")
)

var _ index.Index = (*Tree)(nil)

// Tree is an open B+ tree index file.
type Tree struct {
	pg     *pager.Pager
	root   btpage.Link
	height int32 // 0 empty, 1 leaf root, n internal levels above the leaves plus one
	opts   options
	log    *zap.Logger
	buf    pager.Page
}

// Open opens the index file at path. In ModeWrite a missing file is created
// with an empty header page. In ModeRead the file must exist; an empty one is
// treated as an empty tree.
func Open(path string, mode pager.Mode, opts ...Option) (*Tree, error) {
	o := buildOptions(opts)
	pg, err := pager.Open(path, mode, pager.Options{CachePages: o.cachePages, Metrics: o.metrics})
	if err != nil {
		return nil, err
	}
	t := &Tree{pg: pg, opts: o, log: o.logger.With(zap.String("index", path))}

	if pg.EndPid() == 0 {
		if mode == pager.ModeWrite {
			if err := t.writeHeader(); err != nil {
				pg.Close()
				return nil, err
			}
		}
		return t, nil
	}
	if err := t.readHeader(); err != nil {
		pg.Close()
		return nil, errors.Wrapf(err, "bptree: open %s", path)
	}
	t.log.Debug("opened index", zap.Stringer("root", t.root), zap.Int32("height", t.height))
	return t, nil
}

// Close persists the header when the tree was opened for writing and releases
// the file. Closing twice is a no-op.
func (t *Tree) Close() error {
	if t.pg == nil {
		return nil
	}
	var err error
	if t.pg.Mode() == pager.ModeWrite {
		err = t.writeHeader()
	}
	if cerr := t.pg.Close(); err == nil {
		err = cerr
	}
	t.pg = nil
	return err
}

// Root returns the root page, absent for an empty tree.
func (t *Tree) Root() btpage.Link { return t.root }

// Height returns the number of levels; 0 for an empty tree.
func (t *Tree) Height() int { return int(t.height) }

// ─── Insert ───────────────────────────────────────────────────────────────────

// promotion is the (separator, new page) pair a split hands to the parent.
type promotion struct {
	key  int64
	page pager.PageID
}

// Insert adds (key, rid). Duplicate keys are kept.
func (t *Tree) Insert(key int64, rid recfile.RecordID) error {
	if t.pg == nil {
		return pager.ErrClosed
	}
	rootID, ok := t.root.Get()
	if !ok {
		leaf := btpage.NewLeaf(t.opts.leafCapacity)
		if err := leaf.Insert(key, rid); err != nil {
			return err
		}
		id := t.pg.EndPid()
		if err := t.writeLeaf(id, leaf); err != nil {
			return err
		}
		t.setRoot(id, 1)
		return nil
	}

	up, err := t.insert(rootID, t.height, key, rid)
	if err != nil || up == nil {
		return err
	}

	root := btpage.NewInternal(t.opts.internalCapacity)
	root.InitializeRoot(rootID, up.key, up.page)
	id := t.pg.EndPid()
	if err := t.writeInternal(id, root); err != nil {
		return err
	}
	t.setRoot(id, t.height+1)
	t.log.Debug("root split",
		zap.Uint32("old_root", uint32(rootID)),
		zap.Uint32("new_root", uint32(id)),
		zap.Int32("height", t.height))
	return nil
}

// insert adds (key, rid) below page id, which sits at the given level
// (1 = leaf). It returns the pair the caller must absorb when id split, or
// nil.
func (t *Tree) insert(id pager.PageID, level int32, key int64, rid recfile.RecordID) (*promotion, error) {
	if level == 1 {
		return t.insertLeaf(id, key, rid)
	}

	node, err := t.readInternal(id)
	if err != nil {
		return nil, err
	}
	idx := node.ChildIndex(key)
	up, err := t.insert(node.Child(idx), level-1, key, rid)
	if err != nil || up == nil {
		return nil, err
	}

	err = node.InsertAt(idx, up.key, up.page)
	if err == nil {
		return nil, t.writeInternal(id, node)
	}
	if !errors.Is(err, btpage.ErrNodeFull) {
		return nil, err
	}
	return t.splitInternal(id, node, idx, up)
}

func (t *Tree) insertLeaf(id pager.PageID, key int64, rid recfile.RecordID) (*promotion, error) {
	leaf, err := t.readLeaf(id)
	if err != nil {
		return nil, err
	}
	err = leaf.Insert(key, rid)
	if err == nil {
		return nil, t.writeLeaf(id, leaf)
	}
	if !errors.Is(err, btpage.ErrNodeFull) {
		return nil, err
	}

	sibling, sep := leaf.InsertAndSplit(key, rid)
	siblingID := t.pg.EndPid()
	// New node first: the old node must not point at a page that is not
	// written yet.
	if err := t.writeLeaf(siblingID, sibling); err != nil {
		return nil, err
	}
	leaf.SetNext(btpage.LinkTo(siblingID))
	if err := t.writeLeaf(id, leaf); err != nil {
		return nil, err
	}

	t.opts.metrics.NodeSplits.WithLabelValues("leaf").Inc()
	t.log.Debug("leaf split",
		zap.Uint32("page", uint32(id)),
		zap.Uint32("sibling", uint32(siblingID)),
		zap.Int64("separator", sep))
	return &promotion{key: sep, page: siblingID}, nil
}

func (t *Tree) splitInternal(id pager.PageID, node *btpage.InternalNode, idx int, up *promotion) (*promotion, error) {
	sibling, sep, err := node.InsertAndSplitAt(idx, up.key, up.page)
	if err != nil {
		return nil, err
	}
	siblingID := t.pg.EndPid()
	if err := t.writeInternal(siblingID, sibling); err != nil {
		return nil, err
	}
	if err := t.writeInternal(id, node); err != nil {
		return nil, err
	}

	t.opts.metrics.NodeSplits.WithLabelValues("internal").Inc()
	t.log.Debug("internal split",
		zap.Uint32("page", uint32(id)),
		zap.Uint32("sibling", uint32(siblingID)),
		zap.Int64("separator", sep))
	return &promotion{key: sep, page: siblingID}, nil
}

func (t *Tree) setRoot(id pager.PageID, height int32) {
	t.root = btpage.LinkTo(id)
	t.height = height
	t.opts.metrics.TreeHeight.Set(float64(height))
}

// ─── Locate ───────────────────────────────────────────────────────────────────

// Locate returns a cursor at the first entry with a key >= key. A key above
// every stored key yields a cursor that is already exhausted. An empty tree
// has nothing to locate and returns ErrNoSuchRecord.
func (t *Tree) Locate(key int64) (*Cursor, error) {
	if t.pg == nil {
		return nil, pager.ErrClosed
	}
	id, ok := t.root.Get()
	if !ok {
		return nil, errors.Wrapf(ErrNoSuchRecord, "locate %d in empty index", key)
	}
	for level := t.height; level > 1; level-- {
		node, err := t.readInternal(id)
		if err != nil {
			return nil, err
		}
		// Equal keys go left: duplicates of a separator can end the left
		// subtree.
		id = node.Child(node.LowerChildIndex(key))
	}

	c := &Cursor{}
	leaf, err := c.load(t.pg, id, t.opts.leafCapacity)
	if err != nil {
		return nil, err
	}
	c.page = btpage.LinkTo(id)
	c.slot = leaf.Locate(key)
	return c, nil
}

// ReadForward returns the entry under c and advances c. Once the last entry
// of the last leaf has been returned, the next call reports ErrInvalidCursor.
func (t *Tree) ReadForward(c *Cursor) (int64, recfile.RecordID, error) {
	if t.pg == nil {
		return 0, recfile.RecordID{}, pager.ErrClosed
	}
	if c == nil {
		return 0, recfile.RecordID{}, ErrInvalidCursor
	}
	for hopped := false; ; hopped = true {
		id, ok := c.page.Get()
		if !ok || id == headerPage || id >= t.pg.EndPid() {
			return 0, recfile.RecordID{}, errors.Wrapf(ErrInvalidCursor, "cursor at page %s", c.page)
		}
		leaf, err := c.load(t.pg, id, t.opts.leafCapacity)
		if err != nil {
			return 0, recfile.RecordID{}, err
		}
		if c.slot < leaf.Count() {
			e := leaf.Entry(c.slot)
			c.slot++
			return e.Key, e.RID, nil
		}
		// Leaves never shrink: an empty leaf on the chain means damage.
		if hopped && leaf.Count() == 0 {
			return 0, recfile.RecordID{}, errors.Wrapf(ErrCorruptIndex, "empty leaf %d in chain", id)
		}
		c.page = leaf.Next()
		c.slot = 0
	}
}

// Scan implements index.Index.
func (t *Tree) Scan(from int64) (index.Iterator, error) {
	c, err := t.Locate(from)
	if errors.Is(err, ErrNoSuchRecord) {
		return &Iterator{tree: t, done: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Iterator{tree: t, cur: c}, nil
}

// ─── Node I/O ─────────────────────────────────────────────────────────────────

func (t *Tree) readLeaf(id pager.PageID) (*btpage.LeafNode, error) {
	if err := t.pg.Read(id, &t.buf); err != nil {
		return nil, err
	}
	n, err := btpage.DecodeLeaf(&t.buf, t.opts.leafCapacity)
	return n, errors.Wrapf(err, "page %d", id)
}

func (t *Tree) readInternal(id pager.PageID) (*btpage.InternalNode, error) {
	if err := t.pg.Read(id, &t.buf); err != nil {
		return nil, err
	}
	n, err := btpage.DecodeInternal(&t.buf, t.opts.internalCapacity)
	return n, errors.Wrapf(err, "page %d", id)
}

func (t *Tree) writeLeaf(id pager.PageID, n *btpage.LeafNode) error {
	n.Encode(&t.buf)
	return t.pg.Write(id, &t.buf)
}

func (t *Tree) writeInternal(id pager.PageID, n *btpage.InternalNode) error {
	n.Encode(&t.buf)
	return t.pg.Write(id, &t.buf)
}

// ─── Header ───────────────────────────────────────────────────────────────────

func (t *Tree) writeHeader() error {
	btpage.Header{Root: t.root, Height: t.height}.Encode(&t.buf)
	return t.pg.Write(headerPage, &t.buf)
}

func (t *Tree) readHeader() error {
	if err := t.pg.Read(headerPage, &t.buf); err != nil {
		return err
	}
	h, err := btpage.DecodeHeader(&t.buf)
	if err != nil {
		return err
	}
	if id, ok := h.Root.Get(); ok && (id == headerPage || id >= t.pg.EndPid()) {
		return errors.Wrapf(btpage.ErrCorruptHeader, "root page %d outside [1, %d)", id, t.pg.EndPid())
	}
	t.root, t.height = h.Root, h.Height
	t.opts.metrics.TreeHeight.Set(float64(h.Height))
	return nil
}
