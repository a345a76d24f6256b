package btpage

import (
	"encoding/binary"
	"sort"

	"github.com/btree-query-bench/idxsql/dbms/pager"
	"github.com/cockroachdb/errors"
)

// InternalNode is the decoded form of an internal page. It holds n sorted
// keys and n+1 children; child i covers keys in [keys[i-1], keys[i]).
type InternalNode struct {
	keys     []int64
	children []pager.PageID
	capacity int
}

// NewInternal returns an internal node holding at most capacity keys. The
// capacity is clamped like NewLeaf's, against MaxInternalKeys.
func NewInternal(capacity int) *InternalNode {
	c := clampCapacity(capacity, MaxInternalKeys)
	return &InternalNode{
		keys:     make([]int64, 0, c+1),
		children: make([]pager.PageID, 0, c+2),
		capacity: c,
	}
}

// InitializeRoot turns n into a root with exactly two children.
func (n *InternalNode) InitializeRoot(left pager.PageID, key int64, right pager.PageID) {
	n.keys = append(n.keys[:0], key)
	n.children = append(n.children[:0], left, right)
}

func (n *InternalNode) Count() int               { return len(n.keys) }
func (n *InternalNode) Capacity() int            { return n.capacity }
func (n *InternalNode) Key(i int) int64          { return n.keys[i] }
func (n *InternalNode) Child(i int) pager.PageID { return n.children[i] }
func (n *InternalNode) Full() bool               { return len(n.keys) >= n.capacity }

// ChildIndex returns the child to follow for key. A key equal to a separator
// goes right, which is where a copied-up leaf key lives.
func (n *InternalNode) ChildIndex(key int64) int {
	return sort.Search(len(n.keys), func(i int) bool {
		return n.keys[i] > key
	})
}

// LowerChildIndex returns the leftmost child that can hold key. A key equal to
// a separator goes left, because duplicates of the separator may remain at the
// end of the left subtree after a split.
func (n *InternalNode) LowerChildIndex(key int64) int {
	return sort.Search(len(n.keys), func(i int) bool {
		return n.keys[i] >= key
	})
}

// Insert adds key with its right child at the position ChildIndex picks.
func (n *InternalNode) Insert(key int64, child pager.PageID) error {
	return n.InsertAt(n.ChildIndex(key), key, child)
}

// InsertAt places key at position idx and child right after it. idx is the
// index of the child that split, so the new child ends up as its right
// neighbour even when key repeats an existing separator.
func (n *InternalNode) InsertAt(idx int, key int64, child pager.PageID) error {
	if idx < 0 || idx > len(n.keys) {
		return errors.Newf("btpage: insert position %d outside [0, %d]", idx, len(n.keys))
	}
	if n.Full() {
		return errors.Wrapf(ErrNodeFull, "internal node holds %d keys", len(n.keys))
	}
	n.insertAt(idx, key, child)
	return nil
}

func (n *InternalNode) insertAt(idx int, key int64, child pager.PageID) {
	n.keys = append(n.keys, 0)
	copy(n.keys[idx+1:], n.keys[idx:])
	n.keys[idx] = key

	n.children = append(n.children, 0)
	copy(n.children[idx+2:], n.children[idx+1:])
	n.children[idx+1] = child
}

// InsertAndSplit is InsertAndSplitAt at the position ChildIndex picks.
func (n *InternalNode) InsertAndSplit(key int64, child pager.PageID) (*InternalNode, int64, error) {
	return n.InsertAndSplitAt(n.ChildIndex(key), key, child)
}

// InsertAndSplitAt inserts (key, child) at idx and splits the combined node.
// The middle key moves up to the caller and is kept in neither half; the
// lower half stays in n and the upper half is returned.
func (n *InternalNode) InsertAndSplitAt(idx int, key int64, child pager.PageID) (*InternalNode, int64, error) {
	if idx < 0 || idx > len(n.keys) {
		return nil, 0, errors.Newf("btpage: insert position %d outside [0, %d]", idx, len(n.keys))
	}
	n.insertAt(idx, key, child)

	mid := len(n.keys) / 2
	promoted := n.keys[mid]

	sibling := NewInternal(n.capacity)
	sibling.keys = append(sibling.keys, n.keys[mid+1:]...)
	sibling.children = append(sibling.children, n.children[mid+1:]...)
	n.keys = n.keys[:mid]
	n.children = n.children[:mid+1]

	return sibling, promoted, nil
}

// Encode writes the node into p.
func (n *InternalNode) Encode(p *pager.Page) {
	*p = pager.Page{}
	p[OffType] = TypeInternal
	setCount(p, len(n.keys))
	if len(n.children) > 0 {
		binary.LittleEndian.PutUint32(p[OffLink:OffLink+4], uint32(n.children[0]))
	}
	off := OffEntries
	for i, k := range n.keys {
		binary.LittleEndian.PutUint64(p[off:off+8], uint64(k))
		binary.LittleEndian.PutUint32(p[off+8:off+12], uint32(n.children[i+1]))
		off += InternalEntrySize
	}
}

// DecodeInternal parses an internal page. capacity is applied as in
// NewInternal.
func DecodeInternal(p *pager.Page, capacity int) (*InternalNode, error) {
	if t := PageType(p); t != TypeInternal {
		return nil, errors.Wrapf(ErrCorruptPage, "page type %d is not internal", t)
	}
	cnt := count(p)
	if cnt == 0 || cnt > MaxInternalKeys {
		return nil, errors.Wrapf(ErrCorruptPage, "internal key count %d outside [1, %d]", cnt, MaxInternalKeys)
	}

	n := NewInternal(capacity)
	if cnt > n.capacity {
		n.keys = make([]int64, 0, cnt+1)
		n.children = make([]pager.PageID, 0, cnt+2)
	}
	n.children = append(n.children, pager.PageID(binary.LittleEndian.Uint32(p[OffLink:OffLink+4])))
	off := OffEntries
	for i := 0; i < cnt; i++ {
		n.keys = append(n.keys, int64(binary.LittleEndian.Uint64(p[off:off+8])))
		n.children = append(n.children, pager.PageID(binary.LittleEndian.Uint32(p[off+8:off+12])))
		off += InternalEntrySize
	}
	return n, nil
}
