package btpage

import (
	"encoding/binary"

	"github.com/btree-query-bench/idxsql/dbms/pager"
	"github.com/cockroachdb/errors"
)

const (
	offRoot   = 0
	offHeight = 4
)

var ErrCorruptHeader = errors.New("btpage: corrupt header page")

// Header is the tree metadata persisted in page 0.
type Header struct {
	Root   Link
	Height int32
}

// Encode writes h into p. Bytes past the two fields are zeroed.
func (h Header) Encode(p *pager.Page) {
	*p = pager.Page{}
	putLink(p[offRoot:offRoot+4], h.Root)
	binary.LittleEndian.PutUint32(p[offHeight:offHeight+4], uint32(h.Height))
}

// DecodeHeader reads the header fields from p. An empty tree must have no
// root and a non-empty tree must have one.
func DecodeHeader(p *pager.Page) (Header, error) {
	h := Header{
		Root:   readLink(p[offRoot : offRoot+4]),
		Height: int32(binary.LittleEndian.Uint32(p[offHeight : offHeight+4])),
	}
	if h.Height < 0 {
		return Header{}, errors.Wrapf(ErrCorruptHeader, "negative height %d", h.Height)
	}
	if (h.Height == 0) == h.Root.Valid() {
		return Header{}, errors.Wrapf(ErrCorruptHeader, "root %s with height %d", h.Root, h.Height)
	}
	return h, nil
}
