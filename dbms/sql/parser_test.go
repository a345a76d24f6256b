package sql

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexer_Operators(t *testing.T) {
	t.Parallel()

	l := NewLexer(`= <> != < <= > >= * ( ) ; -12 34 'a b' "c" key`)
	var kinds []TokenKind
	var values []string
	for tok := l.NextToken(); tok.Kind != END; tok = l.NextToken() {
		kinds = append(kinds, tok.Kind)
		values = append(values, tok.Value)
	}
	assert.Equal(t, []TokenKind{EQ, NE, NE, LT, LE, GT, GE, ASTERISK, LPAREN, RPAREN, SEMICOLON, INT, INT, STRING, STRING, IDENT}, kinds)
	assert.Equal(t, "-12", values[11])
	assert.Equal(t, "a b", values[13])
}

func TestParse_Select(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  *SelectStmt
	}{
		{
			input: "SELECT * FROM movie",
			want:  &SelectStmt{Attr: AttrStar, Table: "movie"},
		},
		{
			input: "select count(*) from movie;",
			want:  &SelectStmt{Attr: AttrCount, Table: "movie"},
		},
		{
			input: "SELECT key FROM movie WHERE key > 100 AND key <= 200",
			want: &SelectStmt{Attr: AttrKey, Table: "movie", Conds: []Cond{
				{Attr: AttrKey, Op: OpGT, Key: 100, Value: "100"},
				{Attr: AttrKey, Op: OpLE, Key: 200, Value: "200"},
			}},
		},
		{
			input: "SELECT value FROM t2 WHERE value <> 'Die Hard' and key = -5",
			want: &SelectStmt{Attr: AttrValue, Table: "t2", Conds: []Cond{
				{Attr: AttrValue, Op: OpNE, Value: "Die Hard"},
				{Attr: AttrKey, Op: OpEQ, Key: -5, Value: "-5"},
			}},
		},
		{
			input: `SELECT * FROM t WHERE key != "7" AND value >= 10`,
			want: &SelectStmt{Attr: AttrStar, Table: "t", Conds: []Cond{
				{Attr: AttrKey, Op: OpNE, Key: 7, Value: "7"},
				{Attr: AttrValue, Op: OpGE, Value: "10"},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			stmt, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt)
		})
	}
}

func TestParse_LoadAndQuit(t *testing.T) {
	t.Parallel()

	stmt, err := Parse("LOAD movie FROM 'movie.del' WITH INDEX")
	require.NoError(t, err)
	assert.Equal(t, &LoadStmt{Table: "movie", File: "movie.del", WithIndex: true}, stmt)

	stmt, err = Parse(`load movie from "/tmp/m.del"`)
	require.NoError(t, err)
	assert.Equal(t, &LoadStmt{Table: "movie", File: "/tmp/m.del"}, stmt)

	for _, q := range []string{"QUIT", "exit", "quit;"} {
		stmt, err := Parse(q)
		require.NoError(t, err)
		assert.Equal(t, &QuitStmt{}, stmt)
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	for _, input := range []string{
		"",
		"DELETE FROM t",
		"SELECT FROM t",
		"SELECT name FROM t",
		"SELECT * t",
		"SELECT * FROM",
		"SELECT * FROM t WHERE",
		"SELECT * FROM t WHERE key 5",
		"SELECT * FROM t WHERE key = 'abc'",
		"SELECT * FROM t WHERE key = 99999999999999999999",
		"SELECT * FROM t WHERE value = 'open",
		"SELECT COUNT(key) FROM t",
		"SELECT * FROM t extra",
		"LOAD t FROM file.del",
		"LOAD t FROM 'f' WITH",
		"QUIT now",
	} {
		_, err := Parse(input)
		assert.True(t, errors.Is(err, ErrSyntax), "%q: %v", input, err)
	}
}

func TestComparator_Holds(t *testing.T) {
	t.Parallel()

	for op, want := range map[Comparator][3]bool{
		OpEQ: {false, true, false},
		OpNE: {true, false, true},
		OpGT: {false, false, true},
		OpLT: {true, false, false},
		OpGE: {false, true, true},
		OpLE: {true, true, false},
	} {
		assert.Equal(t, want, [3]bool{op.Holds(-1), op.Holds(0), op.Holds(1)}, op.String())
	}
}
