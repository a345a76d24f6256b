// Package pager implements a file of fixed-size pages. Pages are addressed by
// a dense PageID; new pages are allocated only by writing at EndPid, so the
// file grows append-only.
package pager

import (
	"os"

	"github.com/btree-query-bench/idxsql/dbms/metrics"
	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/ristretto/v2"
)

const PageSize = 4096 // matches the OS page size

// PageID indexes a page inside one page file.
type PageID uint32

// Page is a raw 4 KB block read from or written to disk.
type Page [PageSize]byte

// Mode selects how a page file is opened.
type Mode byte

const (
	ModeRead  Mode = 'r' // file must exist, writes are rejected
	ModeWrite Mode = 'w' // file is created if absent
)

var (
	ErrInvalidMode = errors.New("pager: invalid open mode")
	ErrReadOnly    = errors.New("pager: file opened read-only")
	ErrPageRange   = errors.New("pager: page id out of range")
	ErrClosed      = errors.New("pager: file closed")
	ErrLocked      = errors.New("pager: file locked by another process")
	ErrTornFile    = errors.New("pager: file size is not a multiple of the page size")
)

// Options tunes a Pager. The zero value disables caching.
type Options struct {
	CachePages int // pages held in the page cache, 0 disables it
	Metrics    *metrics.Collectors
}

// Pager manages a file of fixed-size pages and caches recently used ones.
type Pager struct {
	file    *os.File
	path    string
	mode    Mode
	endPid  PageID // one past the highest allocated page
	cache   *ristretto.Cache[uint64, *Page]
	metrics *metrics.Collectors
}

// Open opens the page file at path. ModeWrite creates the file when it does
// not exist; ModeRead requires it.
func Open(path string, mode Mode, opts Options) (*Pager, error) {
	var flag int
	switch mode {
	case ModeRead:
		flag = os.O_RDONLY
	case ModeWrite:
		flag = os.O_RDWR | os.O_CREATE
	default:
		return nil, errors.Wrapf(ErrInvalidMode, "%q", rune(mode))
	}

	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "pager open %s", path)
	}
	if err := lockFile(f, mode == ModeWrite); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "pager open %s", path)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "pager stat %s", path)
	}
	if info.Size()%PageSize != 0 {
		f.Close()
		return nil, errors.Wrapf(ErrTornFile, "%s has %d bytes", path, info.Size())
	}

	p := &Pager{
		file:    f,
		path:    path,
		mode:    mode,
		endPid:  PageID(info.Size() / PageSize),
		metrics: opts.Metrics,
	}
	if p.metrics == nil {
		p.metrics = metrics.Nop()
	}
	if opts.CachePages > 0 {
		p.cache, err = ristretto.NewCache(&ristretto.Config[uint64, *Page]{
			NumCounters:        int64(opts.CachePages) * 10,
			MaxCost:            int64(opts.CachePages),
			BufferItems:        64,
			IgnoreInternalCost: true,
		})
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "pager cache")
		}
	}
	return p, nil
}

// Read copies page id into dst.
func (p *Pager) Read(id PageID, dst *Page) error {
	if p.file == nil {
		return ErrClosed
	}
	if id >= p.endPid {
		return errors.Wrapf(ErrPageRange, "read page %d of %s (end %d)", id, p.path, p.endPid)
	}
	if p.cache != nil {
		if pg, ok := p.cache.Get(uint64(id)); ok {
			*dst = *pg
			p.metrics.PageIO.WithLabelValues("read", "cache").Inc()
			return nil
		}
	}
	if _, err := p.file.ReadAt(dst[:], p.offset(id)); err != nil {
		return errors.Wrapf(err, "pager: read page %d", id)
	}
	p.metrics.PageIO.WithLabelValues("read", "disk").Inc()
	p.remember(id, dst)
	return nil
}

// Write stores src as page id. Writing at EndPid appends a new page; writing
// past it is an error because the file never has holes.
func (p *Pager) Write(id PageID, src *Page) error {
	if p.file == nil {
		return ErrClosed
	}
	if p.mode != ModeWrite {
		return errors.Wrapf(ErrReadOnly, "write page %d of %s", id, p.path)
	}
	if id > p.endPid {
		return errors.Wrapf(ErrPageRange, "write page %d of %s (end %d)", id, p.path, p.endPid)
	}
	if _, err := p.file.WriteAt(src[:], p.offset(id)); err != nil {
		return errors.Wrapf(err, "pager: write page %d", id)
	}
	if id == p.endPid {
		p.endPid++
	}
	p.metrics.PageIO.WithLabelValues("write", "disk").Inc()
	if p.cache != nil {
		// Drop first so a rejected Set can never leave an older copy behind.
		p.cache.Del(uint64(id))
	}
	p.remember(id, src)
	return nil
}

// EndPid returns one past the highest allocated page id.
func (p *Pager) EndPid() PageID {
	return p.endPid
}

// Mode reports how the file was opened.
func (p *Pager) Mode() Mode {
	return p.mode
}

// Path returns the file path the pager was opened with.
func (p *Pager) Path() string {
	return p.path
}

// Sync flushes written pages to stable storage.
func (p *Pager) Sync() error {
	if p.file == nil {
		return ErrClosed
	}
	if p.mode != ModeWrite {
		return nil
	}
	return errors.Wrapf(p.file.Sync(), "pager: sync %s", p.path)
}

// Close flushes and closes the underlying file. Closing twice is a no-op.
func (p *Pager) Close() error {
	if p.file == nil {
		return nil
	}
	if p.cache != nil {
		p.cache.Close()
		p.cache = nil
	}
	var err error
	if p.mode == ModeWrite {
		err = p.file.Sync()
	}
	if cerr := p.file.Close(); err == nil {
		err = cerr
	}
	p.file = nil
	return errors.Wrapf(err, "pager: close %s", p.path)
}

// --- internal helpers ---

func (p *Pager) offset(id PageID) int64 {
	return int64(id) * PageSize
}

func (p *Pager) remember(id PageID, pg *Page) {
	if p.cache == nil {
		return
	}
	cp := new(Page)
	*cp = *pg
	p.cache.Set(uint64(id), cp, 1)
}
