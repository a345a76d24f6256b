package engine

import (
	"cmp"
	"math"
	"strings"

	"github.com/btree-query-bench/idxsql/dbms/sql"
)

// keyRange is the inclusive key interval a set of conditions allows.
type keyRange struct {
	lo, hi  int64
	bounded bool // some condition other than <> restricts the key
}

func (r keyRange) empty() bool { return r.lo > r.hi }

// keyBounds folds every key condition except <> into one interval.
func keyBounds(conds []sql.Cond) keyRange {
	r := keyRange{lo: math.MinInt64, hi: math.MaxInt64}
	for _, c := range conds {
		if c.Attr != sql.AttrKey {
			continue
		}
		switch c.Op {
		case sql.OpEQ:
			r.lo, r.hi = max(r.lo, c.Key), min(r.hi, c.Key)
		case sql.OpGE:
			r.lo = max(r.lo, c.Key)
		case sql.OpGT:
			if c.Key == math.MaxInt64 {
				return keyRange{lo: 1, hi: 0, bounded: true}
			}
			r.lo = max(r.lo, c.Key+1)
		case sql.OpLE:
			r.hi = min(r.hi, c.Key)
		case sql.OpLT:
			if c.Key == math.MinInt64 {
				return keyRange{lo: 1, hi: 0, bounded: true}
			}
			r.hi = min(r.hi, c.Key-1)
		default:
			continue
		}
		r.bounded = true
	}
	return r
}

// needsValue reports whether answering s requires reading tuples.
func needsValue(s *sql.SelectStmt) bool {
	if s.Attr == sql.AttrValue || s.Attr == sql.AttrStar {
		return true
	}
	for _, c := range s.Conds {
		if c.Attr == sql.AttrValue {
			return true
		}
	}
	return false
}

// matchKey checks the key conditions of conds against key.
func matchKey(conds []sql.Cond, key int64) bool {
	for _, c := range conds {
		if c.Attr == sql.AttrKey && !c.Op.Holds(cmp.Compare(key, c.Key)) {
			return false
		}
	}
	return true
}

// matchValue checks the value conditions of conds against value. Values
// compare bytewise.
func matchValue(conds []sql.Cond, value string) bool {
	for _, c := range conds {
		if c.Attr == sql.AttrValue && !c.Op.Holds(strings.Compare(value, c.Value)) {
			return false
		}
	}
	return true
}
