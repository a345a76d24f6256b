// Command bench measures the B+ tree index at several node capacities against
// the Pebble LSM backend and writes a CSV, a PNG chart and a Prometheus
// textfile with the storage metrics of the run.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/btree-query-bench/idxsql/dbms/index"
	"github.com/btree-query-bench/idxsql/dbms/index/bptree"
	"github.com/btree-query-bench/idxsql/dbms/index/lsm"
	"github.com/btree-query-bench/idxsql/dbms/logging"
	"github.com/btree-query-bench/idxsql/dbms/metrics"
	"github.com/btree-query-bench/idxsql/dbms/pager"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type config struct {
	scale      int
	capacities []int
	cachePages int
	workDir    string
	outDir     string
	seed       int64
}

func main() {
	scale := flag.Int("n", 100000, "keys loaded per backend")
	caps := flag.String("caps", "8,32,128,255", "comma separated B+ tree node capacities")
	cache := flag.Int("cache", 256, "page cache size for the B+ tree")
	workDir := flag.String("work", "", "directory for index files, a temp dir when empty")
	outDir := flag.String("out", "results", "directory for the CSV, chart and metrics files")
	seed := flag.Int64("seed", 1, "workload random seed")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger, err := logging.New(*level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	capacities, err := parseCaps(*caps)
	if err != nil {
		logger.Fatal("bad -caps", zap.Error(err))
	}
	cfg := config{
		scale:      *scale,
		capacities: capacities,
		cachePages: *cache,
		workDir:    *workDir,
		outDir:     *outDir,
		seed:       *seed,
	}
	if err := run(cfg, logger); err != nil {
		logger.Fatal("benchmark failed", zap.Error(err))
	}
}

func parseCaps(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, errors.Wrapf(err, "capacity %q", f)
		}
		out = append(out, n)
	}
	return out, nil
}

func run(cfg config, logger *zap.Logger) error {
	if cfg.scale <= 0 {
		return errors.Newf("bench: -n must be positive, got %d", cfg.scale)
	}
	if cfg.workDir == "" {
		dir, err := os.MkdirTemp("", "idxbench")
		if err != nil {
			return errors.Wrap(err, "work dir")
		}
		defer os.RemoveAll(dir)
		cfg.workDir = dir
	}
	if err := os.MkdirAll(cfg.outDir, 0755); err != nil {
		return errors.Wrap(err, "results dir")
	}

	f, err := os.Create(filepath.Join(cfg.outDir, "results.csv"))
	if err != nil {
		return errors.Wrap(err, "results csv")
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	var results []BenchResult

	for _, c := range cfg.capacities {
		path := filepath.Join(cfg.workDir, fmt.Sprintf("bptree-%d.idx", c))
		t, err := bptree.Open(path, pager.ModeWrite,
			bptree.WithLeafCapacity(c),
			bptree.WithInternalCapacity(c),
			bptree.WithCachePages(cfg.cachePages),
			bptree.WithLogger(logger),
			bptree.WithMetrics(m))
		if err != nil {
			return err
		}
		rs, err := runSuite(w, "BPlusTree", strconv.Itoa(c), t, cfg, logger)
		if err == nil {
			err = t.Verify()
		}
		if cerr := t.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		results = append(results, rs...)
	}

	l, err := lsm.Open(filepath.Join(cfg.workDir, "pebble"), logger)
	if err != nil {
		return err
	}
	rs, err := runSuite(w, "LSM-Pebble", "default", l, cfg, logger)
	if cerr := l.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	results = append(results, rs...)

	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "results csv")
	}
	if err := saveChart(filepath.Join(cfg.outDir, "latency.png"), results); err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(filepath.Join(cfg.outDir, "metrics.prom"), reg); err != nil {
		return errors.Wrap(err, "metrics textfile")
	}
	logger.Info("benchmark complete", zap.String("out", cfg.outDir))
	return nil
}

// runSuite loads cfg.scale random keys into idx and times each workload.
func runSuite(w *csv.Writer, name, conf string, idx index.Index, cfg config, logger *zap.Logger) ([]BenchResult, error) {
	logger.Info("testing", zap.String("structure", name), zap.String("config", conf))
	rng := rand.New(rand.NewSource(cfg.seed))
	n := cfg.scale
	var out []BenchResult

	record := func(op string, elapsed time.Duration, ops int, mem MemoryStats) error {
		res := BenchResult{
			Name:      name,
			Config:    conf,
			Operation: op,
			LatencyNs: elapsed.Nanoseconds() / int64(max(ops, 1)),
			MemMB:     mem.AllocMB,
			Objects:   mem.HeapObjects,
		}
		out = append(out, res)
		return Record(w, res)
	}

	// Initial load
	keys := rng.Perm(n)
	start := time.Now()
	for i, k := range keys {
		if err := idx.Insert(int64(k), fakeRID(i)); err != nil {
			return nil, errors.Wrapf(err, "%s load key %d", name, k)
		}
	}
	if err := record("Load_Random", time.Since(start), n, GetDetailedMem()); err != nil {
		return nil, err
	}

	for _, wl := range []struct {
		typ WorkloadType
		op  string
		ops int
	}{
		{OLTP, "Workload_OLTP", n / 2},
		{OLAP, "Workload_OLAP", n / 2},
		{Reporting, "Workload_Range", 100},
	} {
		start = time.Now()
		if err := ExecuteWorkload(idx, wl.typ, wl.ops, n, rng); err != nil {
			return nil, errors.Wrapf(err, "%s %s", name, wl.op)
		}
		if err := record(wl.op, time.Since(start), wl.ops, GetDetailedMem()); err != nil {
			return nil, err
		}
	}
	return out, nil
}
