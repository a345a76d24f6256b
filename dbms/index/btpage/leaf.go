package btpage

import (
	"encoding/binary"
	"sort"

	"github.com/btree-query-bench/idxsql/dbms/pager"
	"github.com/btree-query-bench/idxsql/dbms/recfile"
	"github.com/cockroachdb/errors"
)

// LeafEntry is one (key, record id) pair stored in a leaf.
type LeafEntry struct {
	Key int64
	RID recfile.RecordID
}

// LeafNode is the decoded form of a leaf page. Entries are kept sorted by
// key; equal keys keep their insertion order.
type LeafNode struct {
	entries  []LeafEntry
	next     Link
	capacity int
}

// NewLeaf returns an empty leaf holding at most capacity entries. A
// capacity outside [MinCapacity, MaxLeafEntries] is clamped, 0 selects the
// page maximum.
func NewLeaf(capacity int) *LeafNode {
	c := clampCapacity(capacity, MaxLeafEntries)
	return &LeafNode{entries: make([]LeafEntry, 0, c+1), capacity: c}
}

func (n *LeafNode) Count() int                 { return len(n.entries) }
func (n *LeafNode) Capacity() int              { return n.capacity }
func (n *LeafNode) Entry(i int) LeafEntry      { return n.entries[i] }
func (n *LeafNode) Key(i int) int64            { return n.entries[i].Key }
func (n *LeafNode) RID(i int) recfile.RecordID { return n.entries[i].RID }

// Next returns the right sibling in the leaf chain.
func (n *LeafNode) Next() Link { return n.next }

func (n *LeafNode) SetNext(l Link) { n.next = l }

// Full reports whether another Insert would overflow the node.
func (n *LeafNode) Full() bool { return len(n.entries) >= n.capacity }

// Locate returns the index of the first entry with key >= key, or Count()
// when every key is smaller.
func (n *LeafNode) Locate(key int64) int {
	return sort.Search(len(n.entries), func(i int) bool {
		return n.entries[i].Key >= key
	})
}

// upperBound is the first entry with key > key. New duplicates go there so
// that equal keys stay in insertion order.
func (n *LeafNode) upperBound(key int64) int {
	return sort.Search(len(n.entries), func(i int) bool {
		return n.entries[i].Key > key
	})
}

// Insert adds (key, rid) in sorted position. It returns ErrNodeFull and
// leaves the node unchanged when there is no room.
func (n *LeafNode) Insert(key int64, rid recfile.RecordID) error {
	if n.Full() {
		return errors.Wrapf(ErrNodeFull, "leaf holds %d entries", len(n.entries))
	}
	n.insert(key, rid)
	return nil
}

func (n *LeafNode) insert(key int64, rid recfile.RecordID) {
	i := n.upperBound(key)
	n.entries = append(n.entries, LeafEntry{})
	copy(n.entries[i+1:], n.entries[i:])
	n.entries[i] = LeafEntry{Key: key, RID: rid}
}

// InsertAndSplit inserts (key, rid) into the full node and moves the upper
// half of the combined entries into a new sibling. The sibling inherits the
// node's next link; pointing the node at the sibling is left to the caller,
// which knows the sibling's page id. The returned key is the sibling's first
// key and is copied, not moved, into the parent.
func (n *LeafNode) InsertAndSplit(key int64, rid recfile.RecordID) (*LeafNode, int64) {
	n.insert(key, rid)

	mid := len(n.entries) / 2
	sibling := NewLeaf(n.capacity)
	sibling.entries = append(sibling.entries, n.entries[mid:]...)
	sibling.next = n.next
	n.entries = n.entries[:mid]

	return sibling, sibling.entries[0].Key
}

// Encode writes the node into p.
func (n *LeafNode) Encode(p *pager.Page) {
	*p = pager.Page{}
	p[OffType] = TypeLeaf
	setCount(p, len(n.entries))
	putLink(p[OffLink:OffLink+4], n.next)
	off := OffEntries
	for _, e := range n.entries {
		binary.LittleEndian.PutUint64(p[off:off+8], uint64(e.Key))
		binary.LittleEndian.PutUint32(p[off+8:off+12], uint32(e.RID.Page))
		binary.LittleEndian.PutUint32(p[off+12:off+16], e.RID.Slot)
		off += LeafEntrySize
	}
}

// DecodeLeaf parses a leaf page. capacity is applied as in NewLeaf.
func DecodeLeaf(p *pager.Page, capacity int) (*LeafNode, error) {
	if t := PageType(p); t != TypeLeaf {
		return nil, errors.Wrapf(ErrCorruptPage, "page type %d is not a leaf", t)
	}
	cnt := count(p)
	if cnt > MaxLeafEntries {
		return nil, errors.Wrapf(ErrCorruptPage, "leaf count %d exceeds %d", cnt, MaxLeafEntries)
	}

	n := NewLeaf(capacity)
	if cnt > n.capacity {
		// Written with a larger capacity; keep every entry.
		n.entries = make([]LeafEntry, 0, cnt+1)
	}
	n.next = readLink(p[OffLink : OffLink+4])
	off := OffEntries
	for i := 0; i < cnt; i++ {
		n.entries = append(n.entries, LeafEntry{
			Key: int64(binary.LittleEndian.Uint64(p[off : off+8])),
			RID: recfile.RecordID{
				Page: pager.PageID(binary.LittleEndian.Uint32(p[off+8 : off+12])),
				Slot: binary.LittleEndian.Uint32(p[off+12 : off+16]),
			},
		})
		off += LeafEntrySize
	}
	return n, nil
}
