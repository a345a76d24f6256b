// Package engine executes parsed statements against tables stored in a data
// directory. A table t is the record file t.tbl plus, optionally, the B+ tree
// index t.idx over its keys.
package engine

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/btree-query-bench/idxsql/dbms/index/bptree"
	"github.com/btree-query-bench/idxsql/dbms/metrics"
	"github.com/btree-query-bench/idxsql/dbms/pager"
	"github.com/btree-query-bench/idxsql/dbms/recfile"
	"github.com/btree-query-bench/idxsql/dbms/sql"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

var ErrNoSuchTable = errors.New("engine: no such table")

// Config holds the engine settings. Zero values fall back to defaults.
type Config struct {
	Dir          string // data directory, "." when empty
	CachePages   int    // page cache size per open file
	LeafCapacity int    // leaf capacity for newly written index pages, 0 = page maximum
	Logger       *zap.Logger
	Metrics      *metrics.Collectors
}

type Engine struct {
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Collectors
}

func New(cfg Config) *Engine {
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop()
	}
	return &Engine{cfg: cfg, log: cfg.Logger, metrics: cfg.Metrics}
}

func (e *Engine) tablePath(table string) string {
	return filepath.Join(e.cfg.Dir, table+".tbl")
}

func (e *Engine) indexPath(table string) string {
	return filepath.Join(e.cfg.Dir, table+".idx")
}

func (e *Engine) pagerOptions() pager.Options {
	return pager.Options{CachePages: e.cfg.CachePages, Metrics: e.metrics}
}

func (e *Engine) openIndex(table string, mode pager.Mode) (*bptree.Tree, error) {
	return bptree.Open(e.indexPath(table), mode,
		bptree.WithLeafCapacity(e.cfg.LeafCapacity),
		bptree.WithCachePages(e.cfg.CachePages),
		bptree.WithLogger(e.log),
		bptree.WithMetrics(e.metrics))
}

// Exec runs one statement and writes its result rows to w.
func (e *Engine) Exec(stmt sql.Statement, w io.Writer) error {
	switch s := stmt.(type) {
	case *sql.SelectStmt:
		return e.Select(s, w)
	case *sql.LoadStmt:
		_, err := e.Load(s)
		return err
	case *sql.QuitStmt:
		return nil
	default:
		return errors.Newf("engine: unsupported statement %T", stmt)
	}
}

// ─── Select ───────────────────────────────────────────────────────────────────

// Select answers s. The index is used when the table has one and either the
// conditions bound the key or the query never needs tuple values; otherwise
// the record file is scanned in storage order.
func (e *Engine) Select(s *sql.SelectStmt, w io.Writer) error {
	rf, err := recfile.Open(e.tablePath(s.Table), pager.ModeRead, e.pagerOptions())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(ErrNoSuchTable, "table %s", s.Table)
		}
		return err
	}
	defer rf.Close()

	out := bufio.NewWriter(w)
	emit := func(key int64, value string) {
		switch s.Attr {
		case sql.AttrKey:
			fmt.Fprintf(out, "%d\n", key)
		case sql.AttrValue:
			fmt.Fprintf(out, "%s\n", value)
		case sql.AttrStar:
			fmt.Fprintf(out, "%d '%s'\n", key, value)
		}
	}

	kr := keyBounds(s.Conds)
	count := 0
	switch {
	case kr.empty():
		e.log.Debug("select on empty key range", zap.String("table", s.Table))
	case e.useIndex(s, kr):
		count, err = e.selectIndex(s, kr, rf, emit)
	default:
		count, err = e.selectScan(s, rf, emit)
	}
	if err != nil {
		return err
	}

	if s.Attr == sql.AttrCount {
		fmt.Fprintf(out, "%d\n", count)
	}
	return out.Flush()
}

func (e *Engine) useIndex(s *sql.SelectStmt, kr keyRange) bool {
	if _, err := os.Stat(e.indexPath(s.Table)); err != nil {
		return false
	}
	return kr.bounded || !needsValue(s)
}

func (e *Engine) selectScan(s *sql.SelectStmt, rf *recfile.RecordFile, emit func(int64, string)) (int, error) {
	e.log.Debug("select by table scan", zap.String("table", s.Table))
	count := 0
	for rid := (recfile.RecordID{}); rid.Less(rf.EndRID()); rid = rid.Next() {
		key, value, err := rf.Read(rid)
		if err != nil {
			return 0, errors.Wrapf(err, "reading a tuple from table %s", s.Table)
		}
		if !matchKey(s.Conds, key) || !matchValue(s.Conds, value) {
			continue
		}
		count++
		emit(key, value)
	}
	return count, nil
}

func (e *Engine) selectIndex(s *sql.SelectStmt, kr keyRange, rf *recfile.RecordFile, emit func(int64, string)) (int, error) {
	tree, err := e.openIndex(s.Table, pager.ModeRead)
	if err != nil {
		return 0, err
	}
	defer tree.Close()
	e.log.Debug("select by index",
		zap.String("table", s.Table),
		zap.Int64("lo", kr.lo),
		zap.Int64("hi", kr.hi),
		zap.Int("height", tree.Height()))

	cur, err := tree.Locate(kr.lo)
	if errors.Is(err, bptree.ErrNoSuchRecord) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	withValue := needsValue(s)
	count := 0
	for {
		key, rid, err := tree.ReadForward(cur)
		if errors.Is(err, bptree.ErrInvalidCursor) {
			break
		}
		if err != nil {
			return 0, err
		}
		if key > kr.hi {
			break
		}
		if !matchKey(s.Conds, key) {
			continue
		}

		var value string
		if withValue {
			if _, value, err = rf.Read(rid); err != nil {
				return 0, errors.Wrapf(err, "reading a tuple from table %s", s.Table)
			}
			if !matchValue(s.Conds, value) {
				continue
			}
		}
		count++
		emit(key, value)
	}
	return count, nil
}

// ─── Load ─────────────────────────────────────────────────────────────────────

// LoadResult counts what happened to the lines of a load file.
type LoadResult struct {
	Loaded       int
	Malformed    int
	AppendFailed int
	IndexFailed  int
}

// Load appends every well-formed line of s.File to the table. The index is
// maintained when WITH INDEX is given or the table already has one, so an
// existing index never falls behind its table. A new index first covers the
// tuples already in the table. Bad lines and failed index inserts are logged
// and skipped.
func (e *Engine) Load(s *sql.LoadStmt) (LoadResult, error) {
	var res LoadResult

	f, err := os.Open(s.File)
	if err != nil {
		return res, errors.Wrap(err, "cannot open load file")
	}
	defer f.Close()

	rf, err := recfile.Open(e.tablePath(s.Table), pager.ModeWrite, e.pagerOptions())
	if err != nil {
		return res, errors.Wrapf(err, "cannot access or create table %s", s.Table)
	}

	var tree *bptree.Tree
	withIndex := s.WithIndex
	if !withIndex {
		_, statErr := os.Stat(e.indexPath(s.Table))
		withIndex = statErr == nil
	}
	if withIndex {
		if tree, err = e.openIndex(s.Table, pager.ModeWrite); err != nil {
			rf.Close()
			return res, errors.Wrapf(err, "cannot access or create index for %s", s.Table)
		}
		if err := e.backfill(s.Table, tree, rf); err != nil {
			tree.Close()
			rf.Close()
			if rmErr := os.Remove(e.indexPath(s.Table)); rmErr != nil {
				e.log.Error("could not remove partial index", zap.String("table", s.Table), zap.Error(rmErr))
			}
			return res, err
		}
	}

	closeAll := func(err error) error {
		if tree != nil {
			if cerr := tree.Close(); err == nil {
				err = cerr
			}
		}
		if cerr := rf.Close(); err == nil {
			err = cerr
		}
		return err
	}

	log := e.log.With(zap.String("file", s.File), zap.String("table", s.Table))
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for line := 1; sc.Scan(); line++ {
		key, value, err := ParseLoadLine(sc.Text())
		if err != nil {
			log.Warn("could not parse line", zap.Int("line", line), zap.Error(err))
			res.Malformed++
			e.metrics.LoadLines.WithLabelValues("malformed").Inc()
			continue
		}
		rid, err := rf.Append(key, value)
		if err != nil {
			log.Warn("could not append tuple", zap.Int("line", line), zap.Int64("key", key), zap.Error(err))
			res.AppendFailed++
			e.metrics.LoadLines.WithLabelValues("append_failed").Inc()
			continue
		}
		if tree != nil {
			if err := tree.Insert(key, rid); err != nil {
				log.Warn("could not insert key into index", zap.Int("line", line), zap.Int64("key", key), zap.Error(err))
				res.IndexFailed++
				e.metrics.LoadLines.WithLabelValues("index_failed").Inc()
				continue
			}
		}
		res.Loaded++
		e.metrics.LoadLines.WithLabelValues("loaded").Inc()
	}
	if err := sc.Err(); err != nil {
		return res, closeAll(errors.Wrapf(err, "reading %s", s.File))
	}

	log.Info("load finished",
		zap.Int("loaded", res.Loaded),
		zap.Int("malformed", res.Malformed),
		zap.Int("index_failed", res.IndexFailed),
		zap.Bool("index", tree != nil))
	return res, closeAll(nil)
}

// backfill indexes the tuples already in rf when tree is empty, so an index
// created on a populated table covers every row.
func (e *Engine) backfill(table string, tree *bptree.Tree, rf *recfile.RecordFile) error {
	if tree.Height() != 0 {
		return nil
	}
	n := 0
	for rid := (recfile.RecordID{}); rid.Less(rf.EndRID()); rid = rid.Next() {
		key, _, err := rf.Read(rid)
		if err != nil {
			return errors.Wrapf(err, "backfilling index for %s", table)
		}
		if err := tree.Insert(key, rid); err != nil {
			return errors.Wrapf(err, "backfilling index for %s", table)
		}
		n++
	}
	if n > 0 {
		e.log.Info("indexed existing tuples", zap.String("table", table), zap.Int("tuples", n))
	}
	return nil
}
