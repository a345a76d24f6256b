// Package recfile stores (key, value) tuples in fixed-size slots on top of the
// pager. Tuples are only ever appended, so a RecordID stays valid for the life
// of the file.
//
// Page layout:
//
//	[0-3]   uint32  number of used slots
//	[4+]    slots, recordSize bytes each:
//	        [0-7]  int64  key
//	        [8]    uint8  value length
//	        [9+]   value bytes, MaxValueLength reserved
package recfile

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/btree-query-bench/idxsql/dbms/pager"
	"github.com/cockroachdb/errors"
)

const (
	MaxValueLength = 100

	offCount   = 0
	offRecords = 4

	recordSize     = 8 + 1 + MaxValueLength
	RecordsPerPage = (pager.PageSize - offRecords) / recordSize
)

var (
	ErrNoSuchRecord = errors.New("recfile: no such record")
	ErrCorruptPage  = errors.New("recfile: corrupt page")
)

// RecordID locates a tuple: page number and slot within the page.
type RecordID struct {
	Page pager.PageID
	Slot uint32
}

// Less orders ids by storage position.
func (r RecordID) Less(o RecordID) bool {
	if r.Page != o.Page {
		return r.Page < o.Page
	}
	return r.Slot < o.Slot
}

// Next returns the id following r in storage order.
func (r RecordID) Next() RecordID {
	if r.Slot+1 >= RecordsPerPage {
		return RecordID{Page: r.Page + 1}
	}
	return RecordID{Page: r.Page, Slot: r.Slot + 1}
}

// RecordFile is a table of tuples backed by one page file.
type RecordFile struct {
	pg  *pager.Pager
	end RecordID
	buf pager.Page
}

// Open opens the record file at path.
func Open(path string, mode pager.Mode, opts pager.Options) (*RecordFile, error) {
	pg, err := pager.Open(path, mode, opts)
	if err != nil {
		return nil, err
	}
	rf := &RecordFile{pg: pg}
	if err := rf.loadEnd(); err != nil {
		pg.Close()
		return nil, err
	}
	return rf, nil
}

// loadEnd derives the end id from the slot count of the last page.
func (rf *RecordFile) loadEnd() error {
	endPid := rf.pg.EndPid()
	if endPid == 0 {
		rf.end = RecordID{}
		return nil
	}
	last := endPid - 1
	if err := rf.pg.Read(last, &rf.buf); err != nil {
		return err
	}
	n, err := slotCount(&rf.buf)
	if err != nil {
		return errors.Wrapf(err, "page %d", last)
	}
	if n == RecordsPerPage {
		rf.end = RecordID{Page: endPid}
	} else {
		rf.end = RecordID{Page: last, Slot: n}
	}
	return nil
}

// Append stores a tuple after the last one and returns its id. Values longer
// than MaxValueLength are truncated on a rune boundary.
func (rf *RecordFile) Append(key int64, value string) (RecordID, error) {
	rid := rf.end
	if rid.Slot == 0 {
		rf.buf = pager.Page{}
	} else if err := rf.pg.Read(rid.Page, &rf.buf); err != nil {
		return RecordID{}, err
	}

	writeRecord(&rf.buf, rid.Slot, key, truncate(value))
	binary.LittleEndian.PutUint32(rf.buf[offCount:offCount+4], rid.Slot+1)
	if err := rf.pg.Write(rid.Page, &rf.buf); err != nil {
		return RecordID{}, err
	}
	rf.end = rid.Next()
	return rid, nil
}

// Read returns the tuple stored at rid.
func (rf *RecordFile) Read(rid RecordID) (int64, string, error) {
	if !rid.Less(rf.end) {
		return 0, "", errors.Wrapf(ErrNoSuchRecord, "record (%d,%d)", rid.Page, rid.Slot)
	}
	if err := rf.pg.Read(rid.Page, &rf.buf); err != nil {
		return 0, "", err
	}
	key, value, err := readRecord(&rf.buf, rid.Slot)
	if err != nil {
		return 0, "", errors.Wrapf(err, "record (%d,%d)", rid.Page, rid.Slot)
	}
	return key, value, nil
}

// EndRID returns the id one past the last stored tuple.
func (rf *RecordFile) EndRID() RecordID {
	return rf.end
}

// Close releases the underlying page file.
func (rf *RecordFile) Close() error {
	return rf.pg.Close()
}

// --- page layout helpers ---

func slotCount(p *pager.Page) (uint32, error) {
	n := binary.LittleEndian.Uint32(p[offCount : offCount+4])
	if n > RecordsPerPage {
		return 0, errors.Wrapf(ErrCorruptPage, "slot count %d exceeds %d", n, RecordsPerPage)
	}
	return n, nil
}

func writeRecord(p *pager.Page, slot uint32, key int64, value string) {
	off := offRecords + int(slot)*recordSize
	binary.LittleEndian.PutUint64(p[off:off+8], uint64(key))
	p[off+8] = byte(len(value))
	clear(p[off+9 : off+recordSize])
	copy(p[off+9:], value)
}

func readRecord(p *pager.Page, slot uint32) (int64, string, error) {
	n, err := slotCount(p)
	if err != nil {
		return 0, "", err
	}
	if slot >= n {
		return 0, "", ErrNoSuchRecord
	}
	off := offRecords + int(slot)*recordSize
	key := int64(binary.LittleEndian.Uint64(p[off : off+8]))
	vl := int(p[off+8])
	if vl > MaxValueLength {
		return 0, "", errors.Wrapf(ErrCorruptPage, "value length %d", vl)
	}
	return key, string(p[off+9 : off+9+vl]), nil
}

func truncate(s string) string {
	if len(s) <= MaxValueLength {
		return s
	}
	i := MaxValueLength
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i]
}
