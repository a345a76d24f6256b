package pager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btree-query-bench/idxsql/dbms/metrics"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled(b byte) *Page {
	p := new(Page)
	for i := range p {
		p[i] = b
	}
	return p
}

func TestPager_AppendReadWrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pages.db")
	pg, err := Open(path, ModeWrite, Options{})
	require.NoError(t, err)
	assert.Equal(t, PageID(0), pg.EndPid())

	require.NoError(t, pg.Write(0, filled('a')))
	require.NoError(t, pg.Write(1, filled('b')))
	assert.Equal(t, PageID(2), pg.EndPid())

	t.Run("write past end is rejected", func(t *testing.T) {
		err := pg.Write(3, filled('x'))
		assert.True(t, errors.Is(err, ErrPageRange))
		assert.Equal(t, PageID(2), pg.EndPid())
	})

	t.Run("read past end is rejected", func(t *testing.T) {
		var dst Page
		assert.True(t, errors.Is(pg.Read(2, &dst), ErrPageRange))
	})

	t.Run("overwrite in place", func(t *testing.T) {
		require.NoError(t, pg.Write(0, filled('c')))
		var dst Page
		require.NoError(t, pg.Read(0, &dst))
		assert.Equal(t, *filled('c'), dst)
		assert.Equal(t, PageID(2), pg.EndPid())
	})

	require.NoError(t, pg.Close())
	require.NoError(t, pg.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2*PageSize), info.Size())
}

func TestPager_Reopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pages.db")
	pg, err := Open(path, ModeWrite, Options{})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, pg.Write(PageID(i), filled(byte('0'+i))))
	}
	require.NoError(t, pg.Close())

	ro, err := Open(path, ModeRead, Options{})
	require.NoError(t, err)
	defer ro.Close()

	assert.Equal(t, PageID(3), ro.EndPid())
	var dst Page
	require.NoError(t, ro.Read(2, &dst))
	assert.Equal(t, *filled('2'), dst)

	err = ro.Write(0, filled('z'))
	assert.True(t, errors.Is(err, ErrReadOnly))
}

func TestPager_OpenErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing.db"), ModeRead, Options{})
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = Open(filepath.Join(dir, "x.db"), Mode('a'), Options{})
	assert.True(t, errors.Is(err, ErrInvalidMode))

	torn := filepath.Join(dir, "torn.db")
	require.NoError(t, os.WriteFile(torn, make([]byte, PageSize+10), 0644))
	_, err = Open(torn, ModeRead, Options{})
	assert.True(t, errors.Is(err, ErrTornFile))
}

func TestPager_ClosedFile(t *testing.T) {
	t.Parallel()

	pg, err := Open(filepath.Join(t.TempDir(), "pages.db"), ModeWrite, Options{})
	require.NoError(t, err)
	require.NoError(t, pg.Close())

	var dst Page
	assert.True(t, errors.Is(pg.Read(0, &dst), ErrClosed))
	assert.True(t, errors.Is(pg.Write(0, &dst), ErrClosed))
}

func TestPager_CacheServesLatestWrite(t *testing.T) {
	t.Parallel()

	m := metrics.Nop()
	pg, err := Open(filepath.Join(t.TempDir(), "pages.db"), ModeWrite, Options{CachePages: 8, Metrics: m})
	require.NoError(t, err)
	defer pg.Close()

	require.NoError(t, pg.Write(0, filled('a')))
	require.NoError(t, pg.Write(0, filled('b')))

	var dst Page
	for i := 0; i < 5; i++ {
		require.NoError(t, pg.Read(0, &dst))
		assert.Equal(t, *filled('b'), dst)
	}

	reads := testutil.ToFloat64(m.PageIO.WithLabelValues("read", "cache")) +
		testutil.ToFloat64(m.PageIO.WithLabelValues("read", "disk"))
	assert.Equal(t, float64(5), reads)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.PageIO.WithLabelValues("write", "disk")))
}
