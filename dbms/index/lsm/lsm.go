// Package lsm wraps Pebble (CockroachDB's LSM storage engine) behind the
// common Index interface so it can be benchmarked alongside the B+ tree and
// used to cross-check its scans.
package lsm

import (
	"encoding/binary"

	"github.com/btree-query-bench/idxsql/dbms/index"
	"github.com/btree-query-bench/idxsql/dbms/pager"
	"github.com/btree-query-bench/idxsql/dbms/recfile"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

// Each entry is stored as an empty value under
//
//	[0-7]   key, big-endian with the sign bit flipped
//	[8-11]  record page, big-endian
//	[12-15] record slot, big-endian
//
// so duplicate keys become distinct Pebble keys ordered by record id.
const entryKeyLen = 8 + 4 + 4

var _ index.Index = (*LSM)(nil)

type LSM struct {
	db *pebble.DB
}

// Open opens (or creates) a Pebble database in dir. A nil logger discards
// Pebble's own log output.
func Open(dir string, logger *zap.Logger) (*LSM, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := &pebble.Options{
		MemTableSize: 16 << 20,
		// Keep several memtables so one can be flushed while another is active.
		MemTableStopWritesThreshold: 4,
		L0CompactionThreshold:       4,
		L0StopWritesThreshold:       12,
		Logger:                      pebbleLogger{logger.Sugar().Named("pebble")},
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "lsm: open %s", dir)
	}
	return &LSM{db: db}, nil
}

// Close flushes in-memory state and shuts Pebble down.
func (l *LSM) Close() error {
	return errors.Wrap(l.db.Close(), "lsm: close")
}

// Insert adds (key, rid). Inserting the same pair twice stores it once.
func (l *LSM) Insert(key int64, rid recfile.RecordID) error {
	return errors.Wrap(l.db.Set(encodeEntry(key, rid), nil, pebble.NoSync), "lsm: insert")
}

// Scan returns an iterator over all entries with key >= from.
func (l *LSM) Scan(from int64) (index.Iterator, error) {
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: encodeKey(from),
	})
	if err != nil {
		return nil, errors.Wrap(err, "lsm: scan")
	}
	iter.First()
	return &scanIterator{iter: iter, first: true}, nil
}

// Flush forces the memtable to disk.
func (l *LSM) Flush() error {
	return errors.Wrap(l.db.Flush(), "lsm: flush")
}

// ─── Key encoding ─────────────────────────────────────────────────────────────

// encodeKey flips the sign bit so negative keys sort before positive ones
// under bytewise comparison.
func encodeKey(k int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(k)^(1<<63))
	return b
}

func encodeEntry(k int64, rid recfile.RecordID) []byte {
	b := make([]byte, entryKeyLen)
	binary.BigEndian.PutUint64(b[0:8], uint64(k)^(1<<63))
	binary.BigEndian.PutUint32(b[8:12], uint32(rid.Page))
	binary.BigEndian.PutUint32(b[12:16], rid.Slot)
	return b
}

func decodeEntry(b []byte) (int64, recfile.RecordID, error) {
	if len(b) != entryKeyLen {
		return 0, recfile.RecordID{}, errors.Newf("lsm: unexpected key length %d", len(b))
	}
	k := int64(binary.BigEndian.Uint64(b[0:8]) ^ (1 << 63))
	rid := recfile.RecordID{
		Page: pager.PageID(binary.BigEndian.Uint32(b[8:12])),
		Slot: binary.BigEndian.Uint32(b[12:16]),
	}
	return k, rid, nil
}

// ─── Scan Iterator ────────────────────────────────────────────────────────────

type scanIterator struct {
	iter  *pebble.Iterator
	first bool
	key   int64
	rid   recfile.RecordID
	err   error
}

func (it *scanIterator) Next() bool {
	if it.err != nil {
		return false
	}
	var valid bool
	if it.first {
		// First() already ran in Scan.
		it.first = false
		valid = it.iter.Valid()
	} else {
		valid = it.iter.Next()
	}
	if !valid {
		it.err = it.iter.Error()
		return false
	}
	it.key, it.rid, it.err = decodeEntry(it.iter.Key())
	return it.err == nil
}

func (it *scanIterator) Key() int64                 { return it.key }
func (it *scanIterator) RecordID() recfile.RecordID { return it.rid }
func (it *scanIterator) Err() error                 { return it.err }
func (it *scanIterator) Close() error               { return it.iter.Close() }

// pebbleLogger routes Pebble's log lines into zap.
type pebbleLogger struct {
	s *zap.SugaredLogger
}

func (l pebbleLogger) Infof(format string, args ...interface{})  { l.s.Infof(format, args...) }
func (l pebbleLogger) Errorf(format string, args ...interface{}) { l.s.Errorf(format, args...) }
func (l pebbleLogger) Fatalf(format string, args ...interface{}) { l.s.Fatalf(format, args...) }
