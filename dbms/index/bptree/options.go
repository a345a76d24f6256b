package bptree

import (
	"github.com/btree-query-bench/idxsql/dbms/metrics"
	"go.uber.org/zap"
)

type options struct {
	leafCapacity     int
	internalCapacity int
	cachePages       int
	logger           *zap.Logger
	metrics          *metrics.Collectors
}

// Option configures a Tree at Open.
type Option func(*options)

// WithLeafCapacity caps the entries per leaf. Values are clamped to
// [btpage.MinCapacity, btpage.MaxLeafEntries]; 0 keeps the page maximum.
func WithLeafCapacity(n int) Option {
	return func(o *options) { o.leafCapacity = n }
}

// WithInternalCapacity caps the keys per internal node, clamped like
// WithLeafCapacity.
func WithInternalCapacity(n int) Option {
	return func(o *options) { o.internalCapacity = n }
}

// WithCachePages sets the size of the pager's page cache.
func WithCachePages(n int) Option {
	return func(o *options) { o.cachePages = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *metrics.Collectors) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.metrics == nil {
		o.metrics = metrics.Nop()
	}
	return o
}
