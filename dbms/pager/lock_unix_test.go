//go:build unix

package pager

import (
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPager_WriterExcludesOthers(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pages.db")
	w, err := Open(path, ModeWrite, Options{})
	require.NoError(t, err)

	_, err = Open(path, ModeWrite, Options{})
	assert.True(t, errors.Is(err, ErrLocked))
	_, err = Open(path, ModeRead, Options{})
	assert.True(t, errors.Is(err, ErrLocked))

	require.NoError(t, w.Close())

	r1, err := Open(path, ModeRead, Options{})
	require.NoError(t, err)
	defer r1.Close()
	r2, err := Open(path, ModeRead, Options{})
	require.NoError(t, err)
	defer r2.Close()
}
