package main

import (
	"math/rand"

	"github.com/btree-query-bench/idxsql/dbms/index"
	"github.com/btree-query-bench/idxsql/dbms/pager"
	"github.com/btree-query-bench/idxsql/dbms/recfile"
)

type WorkloadType string

const (
	OLTP      WorkloadType = "OLTP (90/10)"
	OLAP      WorkloadType = "OLAP (10/90)"
	Reporting WorkloadType = "Reporting (Range)"
)

const rangeWidth = 100

// ExecuteWorkload runs a mixed distribution of ops over keys in [0, keySpace).
// Lookups position a scan at the key and read one entry; range ops read
// rangeWidth keys forward.
func ExecuteWorkload(idx index.Index, wType WorkloadType, ops, keySpace int, rng *rand.Rand) error {
	for i := 0; i < ops; i++ {
		choice := rng.Intn(100)
		key := int64(rng.Intn(keySpace))

		var err error
		switch wType {
		case OLTP:
			if choice < 90 {
				err = lookup(idx, key, key)
			} else {
				err = idx.Insert(key, fakeRID(i))
			}
		case OLAP:
			if choice < 10 {
				err = lookup(idx, key, key)
			} else {
				err = idx.Insert(key, fakeRID(i))
			}
		case Reporting:
			err = lookup(idx, key, key+rangeWidth)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// lookup reads every entry with a key in [lo, hi].
func lookup(idx index.Index, lo, hi int64) error {
	it, err := idx.Scan(lo)
	if err != nil {
		return err
	}
	for it.Next() && it.Key() <= hi {
	}
	if err := it.Err(); err != nil {
		it.Close()
		return err
	}
	return it.Close()
}

// fakeRID spreads inserted entries over record pages the way an appending
// record file would.
func fakeRID(i int) recfile.RecordID {
	return recfile.RecordID{
		Page: pager.PageID(i / recfile.RecordsPerPage),
		Slot: uint32(i % recfile.RecordsPerPage),
	}
}
