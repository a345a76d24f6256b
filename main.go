// Command idxsql is an interactive shell over record files with B+ tree
// indexes.
//
//	idxsql [-dir D] [-cache N] [-leaf-cap N] [-log-level L] [-metrics ADDR]
//
// Statements are read one per line from stdin:
//
//	LOAD movie FROM 'movie.del' WITH INDEX
//	SELECT * FROM movie WHERE key > 100 AND key <= 200
//	SELECT COUNT(*) FROM movie
//	QUIT
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/btree-query-bench/idxsql/dbms/engine"
	"github.com/btree-query-bench/idxsql/dbms/logging"
	"github.com/btree-query-bench/idxsql/dbms/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	dir := flag.String("dir", ".", "directory holding the .tbl and .idx files")
	cache := flag.Int("cache", 64, "page cache size per open file, 0 disables caching")
	leafCap := flag.Int("leaf-cap", 0, "leaf capacity for new index pages, 0 uses the page maximum")
	level := flag.String("log-level", "warn", "log level: debug, info, warn or error")
	metricsAddr := flag.String("metrics", "", "serve Prometheus metrics on this address, e.g. :9100")
	flag.Parse()

	logger, err := logging.New(*level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	e := engine.New(engine.Config{
		Dir:          *dir,
		CachePages:   *cache,
		LeafCapacity: *leafCap,
		Logger:       logger,
		Metrics:      m,
	})
	if err := e.Run(os.Stdin, os.Stdout); err != nil {
		logger.Error("session ended", zap.Error(err))
		os.Exit(1)
	}
}
