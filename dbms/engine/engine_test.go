package engine

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/btree-query-bench/idxsql/dbms/metrics"
	"github.com/btree-query-bench/idxsql/dbms/sql"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func writeLoadFile(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func query(t *testing.T, e *Engine, q string) string {
	t.Helper()
	stmt, err := sql.Parse(q)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, e.Exec(stmt, &buf), q)
	return buf.String()
}

func TestEngine_LoadAndSelect(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	file := writeLoadFile(t, dir, "movie.del", []string{
		"3,'Casablanca'",
		"1,\"Alien\"",
		"2,Brazil",
		"4,'Dune'",
		"2,'Blade Runner'",
	})

	for _, withIndex := range []bool{false, true} {
		name := fmt.Sprintf("index=%v", withIndex)
		t.Run(name, func(t *testing.T) {
			e := New(Config{Dir: t.TempDir(), LeafCapacity: 2})
			res, err := e.Load(&sql.LoadStmt{Table: "movie", File: file, WithIndex: withIndex})
			require.NoError(t, err)
			assert.Equal(t, LoadResult{Loaded: 5}, res)

			assert.Equal(t, "5\n", query(t, e, "SELECT COUNT(*) FROM movie"))
			assert.Equal(t, "2 'Brazil'\n2 'Blade Runner'\n", query(t, e, "SELECT * FROM movie WHERE key = 2"))
			assert.Equal(t, "Dune\n", query(t, e, "SELECT value FROM movie WHERE key > 3"))
			assert.Equal(t, "0\n", query(t, e, "SELECT COUNT(*) FROM movie WHERE key > 3 AND key < 4"))
			assert.Equal(t, "Casablanca\n", query(t, e, "SELECT value FROM movie WHERE value >= 'C' AND value < 'D'"))
			assert.Equal(t, "3\n", query(t, e, "SELECT COUNT(*) FROM movie WHERE key <> 2"))

			keys := query(t, e, "SELECT key FROM movie WHERE key >= 2 AND key <= 3")
			if withIndex {
				assert.Equal(t, "2\n2\n3\n", keys)
			} else {
				assert.Equal(t, "3\n2\n2\n", keys)
			}
		})
	}
}

func TestEngine_IndexAndScanAgree(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	rng := rand.New(rand.NewSource(11))
	var lines []string
	for i := 0; i < 600; i++ {
		lines = append(lines, fmt.Sprintf("%d,'v%03d'", rng.Intn(200)-100, rng.Intn(1000)))
	}
	file := writeLoadFile(t, dir, "data.del", lines)

	scan := New(Config{Dir: filepath.Join(dir, "scan")})
	indexed := New(Config{Dir: filepath.Join(dir, "indexed"), LeafCapacity: 8, CachePages: 16})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "scan"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "indexed"), 0755))

	_, err := scan.Load(&sql.LoadStmt{Table: "t", File: file})
	require.NoError(t, err)
	_, err = indexed.Load(&sql.LoadStmt{Table: "t", File: file, WithIndex: true})
	require.NoError(t, err)

	sortedLines := func(s string) []string {
		out := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
		sort.Strings(out)
		return out
	}
	for _, q := range []string{
		"SELECT * FROM t WHERE key = 17",
		"SELECT * FROM t WHERE key >= -20 AND key < 35",
		"SELECT key FROM t WHERE key > 90",
		"SELECT key FROM t",
		"SELECT COUNT(*) FROM t",
		"SELECT COUNT(*) FROM t WHERE key <= -50 AND value > 'v500'",
		"SELECT value FROM t WHERE key < -99",
		"SELECT * FROM t WHERE key > 500",
	} {
		assert.Equal(t, sortedLines(query(t, scan, q)), sortedLines(query(t, indexed, q)), q)
	}
}

func TestEngine_LoadWarnings(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	core, logs := observer.New(zapcore.WarnLevel)
	m := metrics.Nop()
	e := New(Config{Dir: dir, Logger: zap.New(core), Metrics: m})

	file := writeLoadFile(t, dir, "bad.del", []string{
		"1,ok",
		"garbage",
		"2 missing comma",
		"3,'fine'",
	})
	res, err := e.Load(&sql.LoadStmt{Table: "t", File: file, WithIndex: true})
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Loaded: 2, Malformed: 2}, res)

	warned := logs.FilterMessage("could not parse line").All()
	require.Len(t, warned, 2)
	assert.Equal(t, int64(2), warned[0].ContextMap()["line"])
	assert.Equal(t, int64(3), warned[1].ContextMap()["line"])
	assert.Equal(t, file, warned[0].ContextMap()["file"])

	assert.Equal(t, float64(2), testutil.ToFloat64(m.LoadLines.WithLabelValues("malformed")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.LoadLines.WithLabelValues("loaded")))
	assert.Equal(t, "1\n3\n", query(t, e, "SELECT key FROM t"))
}

func TestEngine_LoadKeepsExistingIndex(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	e := New(Config{Dir: dir})

	first := writeLoadFile(t, dir, "a.del", []string{"1,a", "2,b"})
	second := writeLoadFile(t, dir, "b.del", []string{"3,c"})

	_, err := e.Load(&sql.LoadStmt{Table: "t", File: first, WithIndex: true})
	require.NoError(t, err)
	_, err = e.Load(&sql.LoadStmt{Table: "t", File: second})
	require.NoError(t, err)

	assert.Equal(t, "3 'c'\n", query(t, e, "SELECT * FROM t WHERE key = 3"))
}

func TestEngine_IndexCreatedOnPopulatedTable(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	core, logs := observer.New(zapcore.InfoLevel)
	e := New(Config{Dir: dir, LeafCapacity: 2, Logger: zap.New(core)})

	before := writeLoadFile(t, dir, "a.del", []string{"1,a", "2,b", "3,c"})
	after := writeLoadFile(t, dir, "b.del", []string{"4,d"})

	_, err := e.Load(&sql.LoadStmt{Table: "t", File: before})
	require.NoError(t, err)
	res, err := e.Load(&sql.LoadStmt{Table: "t", File: after, WithIndex: true})
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Loaded: 1}, res)

	indexed := logs.FilterMessage("indexed existing tuples").All()
	require.Len(t, indexed, 1)
	assert.Equal(t, int64(3), indexed[0].ContextMap()["tuples"])

	assert.Equal(t, "4\n", query(t, e, "SELECT COUNT(*) FROM t"))
	assert.Equal(t, "1\n2\n3\n4\n", query(t, e, "SELECT key FROM t"))
	assert.Equal(t, "2 'b'\n", query(t, e, "SELECT * FROM t WHERE key = 2"))
	assert.Equal(t, "2 'b'\n", query(t, e, "SELECT * FROM t WHERE value = 'b'"))
	assert.Equal(t, "3\n", query(t, e, "SELECT COUNT(*) FROM t WHERE key >= 2"))
}

func TestEngine_FailedIndexedLoadLeavesNoIndex(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	e := New(Config{Dir: dir})

	rows := writeLoadFile(t, dir, "a.del", []string{"1,a", "2,b"})
	_, err := e.Load(&sql.LoadStmt{Table: "t", File: rows})
	require.NoError(t, err)

	_, err = e.Load(&sql.LoadStmt{Table: "t", File: filepath.Join(dir, "missing.del"), WithIndex: true})
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "t.idx"))
	assert.Equal(t, "2\n", query(t, e, "SELECT COUNT(*) FROM t"))

	_, err = e.Load(&sql.LoadStmt{Table: "u", File: filepath.Join(dir, "missing.del"), WithIndex: true})
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "u.idx"))
	assert.NoFileExists(t, filepath.Join(dir, "u.tbl"))
}

func TestEngine_Errors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	e := New(Config{Dir: dir})

	stmt, err := sql.Parse("SELECT * FROM nope")
	require.NoError(t, err)
	err = e.Exec(stmt, &bytes.Buffer{})
	assert.True(t, errors.Is(err, ErrNoSuchTable))

	_, err = e.Load(&sql.LoadStmt{Table: "t", File: filepath.Join(dir, "missing.del")})
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestEngine_Run(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	file := writeLoadFile(t, dir, "m.del", []string{"10,ten", "20,twenty"})

	core, logs := observer.New(zapcore.ErrorLevel)
	e := New(Config{Dir: dir, Logger: zap.New(core)})

	in := strings.Join([]string{
		fmt.Sprintf("LOAD m FROM '%s' WITH INDEX", file),
		"",
		"SELECT * FROM m WHERE key > 10",
		"SELECT bogus",
		"SELECT * FROM missing",
		"SELECT COUNT(*) FROM m",
		"QUIT",
		"SELECT * FROM m",
	}, "\n")
	var out bytes.Buffer
	require.NoError(t, e.Run(strings.NewReader(in), &out))

	got := out.String()
	assert.Contains(t, got, Prompt+"20 'twenty'\n")
	assert.Contains(t, got, "Error: syntax error")
	assert.Contains(t, got, "no such table")
	assert.Contains(t, got, Prompt+"2\n")
	assert.Equal(t, 7, strings.Count(got, Prompt))
	assert.Equal(t, 1, logs.FilterMessage("statement failed").Len())

	t.Run("end of input", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, e.Run(strings.NewReader("SELECT COUNT(*) FROM m\n"), &out))
		assert.Equal(t, Prompt+"2\n"+Prompt+"\n", out.String())
	})
}
