package bptree

import (
	"math"

	"github.com/btree-query-bench/idxsql/dbms/index/btpage"
	"github.com/btree-query-bench/idxsql/dbms/pager"
	"github.com/cockroachdb/errors"
)

var ErrCorruptIndex = errors.New("bptree: index structure violated")

// Node is one page visited by Walk. Exactly one of Leaf and Internal is set.
type Node struct {
	ID       pager.PageID
	Level    int // 1 for leaves
	Leaf     *btpage.LeafNode
	Internal *btpage.InternalNode
}

// Walk visits every node depth-first, parents before children and children
// left to right. Leaves are therefore visited in chain order.
func (t *Tree) Walk(fn func(Node) error) error {
	if t.pg == nil {
		return pager.ErrClosed
	}
	id, ok := t.root.Get()
	if !ok {
		return nil
	}
	return t.walk(id, int(t.height), fn)
}

func (t *Tree) walk(id pager.PageID, level int, fn func(Node) error) error {
	if level == 1 {
		leaf, err := t.readLeaf(id)
		if err != nil {
			return err
		}
		return fn(Node{ID: id, Level: 1, Leaf: leaf})
	}
	node, err := t.readInternal(id)
	if err != nil {
		return err
	}
	if err := fn(Node{ID: id, Level: level, Internal: node}); err != nil {
		return err
	}
	for i := 0; i <= node.Count(); i++ {
		if err := t.walk(node.Child(i), level-1, fn); err != nil {
			return err
		}
	}
	return nil
}

// Verify checks the structural invariants of the tree: every leaf at the same
// depth, node sizes within capacity, keys inside the range their parent
// separators allow and a leaf chain that matches the in-order leaf sequence.
func (t *Tree) Verify() error {
	if t.pg == nil {
		return pager.ErrClosed
	}
	id, ok := t.root.Get()
	if !ok {
		if t.height != 0 {
			return errors.Wrapf(ErrCorruptIndex, "no root with height %d", t.height)
		}
		return nil
	}
	v := &verifier{tree: t}
	if err := v.check(id, int(t.height), math.MinInt64, math.MaxInt64, true); err != nil {
		return err
	}
	if v.prevLeaf.Valid() && v.prevNext.Valid() {
		return errors.Wrapf(ErrCorruptIndex, "last leaf %s links to %s", v.prevLeaf, v.prevNext)
	}
	return nil
}

type verifier struct {
	tree     *Tree
	prevLeaf btpage.Link
	prevNext btpage.Link
}

// check verifies the subtree at id. Separators bound children inclusively on
// both sides because duplicates of a separator may stay left of it.
func (v *verifier) check(id pager.PageID, level int, lo, hi int64, isRoot bool) error {
	if level == 1 {
		leaf, err := v.tree.readLeaf(id)
		if err != nil {
			return err
		}
		if err := checkSize(id, leaf.Count(), leaf.Capacity(), isRoot); err != nil {
			return err
		}
		for i := 0; i < leaf.Count(); i++ {
			k := leaf.Key(i)
			if k < lo || k > hi || (i > 0 && k < leaf.Key(i-1)) {
				return errors.Wrapf(ErrCorruptIndex, "leaf %d: key %d at slot %d out of order or outside [%d, %d]", id, k, i, lo, hi)
			}
		}
		if v.prevLeaf.Valid() {
			if next, ok := v.prevNext.Get(); !ok || next != id {
				return errors.Wrapf(ErrCorruptIndex, "leaf %s links to %s, expected %d", v.prevLeaf, v.prevNext, id)
			}
		}
		v.prevLeaf, v.prevNext = btpage.LinkTo(id), leaf.Next()
		return nil
	}

	node, err := v.tree.readInternal(id)
	if err != nil {
		return err
	}
	if err := checkSize(id, node.Count(), node.Capacity(), isRoot); err != nil {
		return err
	}
	for i := 0; i < node.Count(); i++ {
		k := node.Key(i)
		if k < lo || k > hi || (i > 0 && k < node.Key(i-1)) {
			return errors.Wrapf(ErrCorruptIndex, "internal %d: separator %d out of order or outside [%d, %d]", id, k, lo, hi)
		}
	}
	for i := 0; i <= node.Count(); i++ {
		clo, chi := lo, hi
		if i > 0 {
			clo = node.Key(i - 1)
		}
		if i < node.Count() {
			chi = node.Key(i)
		}
		if err := v.check(node.Child(i), level-1, clo, chi, false); err != nil {
			return err
		}
	}
	return nil
}

func checkSize(id pager.PageID, n, capacity int, isRoot bool) error {
	if n > capacity || (n == 0 && !isRoot) {
		return errors.Wrapf(ErrCorruptIndex, "page %d holds %d of %d", id, n, capacity)
	}
	return nil
}
