// Package index defines the interface shared by the secondary index backends.
package index

import "github.com/btree-query-bench/idxsql/dbms/recfile"

// Index maps integer keys to record ids. Duplicate keys are allowed.
type Index interface {
	Insert(key int64, rid recfile.RecordID) error
	// Scan returns an iterator positioned at the first entry with a key
	// greater than or equal to from. Entries come back in key order.
	Scan(from int64) (Iterator, error)
	Close() error
}

// Iterator walks index entries in ascending key order.
type Iterator interface {
	Next() bool
	Key() int64
	RecordID() recfile.RecordID
	Err() error
	Close() error
}
