// Package btpage provides the on-disk page layout of the B+ tree index: leaf
// and internal node codecs plus the header page.
//
// Leaf page layout:
//
//	[0]      1 byte   page type (TypeLeaf)
//	[1-2]    2 bytes  number of entries
//	[3-6]    4 bytes  next leaf page ID (InvalidPage on the rightmost leaf)
//	[7-15]   reserved
//	[16+]    entries, 16 bytes each: key int64, record page uint32, record slot uint32
//
// Internal page layout:
//
//	[0]      1 byte   page type (TypeInternal)
//	[1-2]    2 bytes  number of keys
//	[3-6]    4 bytes  first child page ID
//	[7-15]   reserved
//	[16+]    entries, 12 bytes each: key int64, child page ID to the right of key uint32
//
// Header page (page 0) layout:
//
//	[0-3]    4 bytes  root page ID (InvalidPage when the tree is empty)
//	[4-7]    4 bytes  tree height, int32
package btpage

import (
	"encoding/binary"
	"fmt"

	"github.com/btree-query-bench/idxsql/dbms/pager"
	"github.com/cockroachdb/errors"
)

const (
	TypeLeaf     = byte(1)
	TypeInternal = byte(2)

	OffType    = 0
	OffCount   = 1
	OffLink    = 3 // next leaf, or first child of an internal node
	OffEntries = 16

	LeafEntrySize     = 8 + 4 + 4
	InternalEntrySize = 8 + 4

	MaxLeafEntries  = (pager.PageSize - OffEntries) / LeafEntrySize     // 255
	MaxInternalKeys = (pager.PageSize - OffEntries) / InternalEntrySize // 340

	// MinCapacity is the smallest capacity that still leaves both halves of
	// a split non-empty.
	MinCapacity = 2

	InvalidPage = uint32(0xFFFFFFFF)
)

var (
	ErrNodeFull    = errors.New("btpage: node full")
	ErrCorruptPage = errors.New("btpage: corrupt page")
)

// Link is an optional page reference. The zero value refers to no page.
type Link struct {
	id    pager.PageID
	valid bool
}

// NoLink is the absent reference.
var NoLink Link

// LinkTo returns a reference to page id.
func LinkTo(id pager.PageID) Link {
	return Link{id: id, valid: true}
}

// Get returns the referenced page and whether there is one.
func (l Link) Get() (pager.PageID, bool) {
	return l.id, l.valid
}

// Valid reports whether l refers to a page.
func (l Link) Valid() bool {
	return l.valid
}

func (l Link) String() string {
	if !l.valid {
		return "none"
	}
	return fmt.Sprintf("%d", l.id)
}

func putLink(b []byte, l Link) {
	v := InvalidPage
	if l.valid {
		v = uint32(l.id)
	}
	binary.LittleEndian.PutUint32(b, v)
}

func readLink(b []byte) Link {
	v := binary.LittleEndian.Uint32(b)
	if v == InvalidPage {
		return NoLink
	}
	return LinkTo(pager.PageID(v))
}

// PageType returns the node type byte of p.
func PageType(p *pager.Page) byte {
	return p[OffType]
}

func count(p *pager.Page) int {
	return int(binary.LittleEndian.Uint16(p[OffCount : OffCount+2]))
}

func setCount(p *pager.Page, n int) {
	binary.LittleEndian.PutUint16(p[OffCount:OffCount+2], uint16(n))
}

func clampCapacity(capacity, max int) int {
	if capacity <= 0 || capacity > max {
		return max
	}
	if capacity < MinCapacity {
		return MinCapacity
	}
	return capacity
}
