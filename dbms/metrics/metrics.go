// Package metrics holds the Prometheus collectors shared by the pager, the
// B+ tree and the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "idxsql"

// Collectors groups every metric the storage layers report.
type Collectors struct {
	PageIO     *prometheus.CounterVec // op=read|write, source=disk|cache
	NodeSplits *prometheus.CounterVec // kind=leaf|internal
	TreeHeight prometheus.Gauge
	LoadLines  *prometheus.CounterVec // outcome=loaded|malformed|append_failed|index_failed
}

// New builds the collectors and registers them on reg. A nil reg leaves them
// unregistered, which is what tests and library callers usually want.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		PageIO: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pager",
			Name:      "page_io_total",
			Help:      "Page transfers by operation and source.",
		}, []string{"op", "source"}),
		NodeSplits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bptree",
			Name:      "node_splits_total",
			Help:      "Node splits by node kind.",
		}, []string{"kind"}),
		TreeHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bptree",
			Name:      "height",
			Help:      "Height of the most recently modified tree.",
		}),
		LoadLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "load_lines_total",
			Help:      "Load-file lines by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(c.PageIO, c.NodeSplits, c.TreeHeight, c.LoadLines)
	}
	return c
}

// Nop returns unregistered collectors.
func Nop() *Collectors { return New(nil) }
