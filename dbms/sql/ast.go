// Package sql parses the statements the query shell understands:
//
//	SELECT key|value|*|COUNT(*) FROM table [WHERE cond [AND cond]...]
//	LOAD table FROM 'file' [WITH INDEX]
//	QUIT | EXIT
//
// where cond is `key|value op literal` and op is one of = <> != < <= > >=.
package sql

// Statement is one parsed command.
type Statement interface {
	statement()
}

// Attr is what a SELECT returns or a condition tests.
type Attr int

const (
	AttrKey Attr = iota + 1
	AttrValue
	AttrStar
	AttrCount
)

func (a Attr) String() string {
	switch a {
	case AttrKey:
		return "key"
	case AttrValue:
		return "value"
	case AttrStar:
		return "*"
	case AttrCount:
		return "COUNT(*)"
	default:
		return "unknown"
	}
}

type Comparator int

const (
	OpEQ Comparator = iota
	OpNE
	OpGT
	OpLT
	OpGE
	OpLE
)

func (c Comparator) String() string {
	return [...]string{"=", "<>", ">", "<", ">=", "<="}[c]
}

// Holds reports whether a value comparing to the literal as diff (negative,
// zero or positive) satisfies the comparator.
func (c Comparator) Holds(diff int) bool {
	switch c {
	case OpEQ:
		return diff == 0
	case OpNE:
		return diff != 0
	case OpGT:
		return diff > 0
	case OpLT:
		return diff < 0
	case OpGE:
		return diff >= 0
	case OpLE:
		return diff <= 0
	}
	return false
}

// Cond is one WHERE term. Key conditions carry the parsed integer in Key;
// value conditions carry the literal text in Value.
type Cond struct {
	Attr  Attr
	Op    Comparator
	Key   int64
	Value string
}

type SelectStmt struct {
	Attr  Attr
	Table string
	Conds []Cond
}

type LoadStmt struct {
	Table     string
	File      string
	WithIndex bool
}

type QuitStmt struct{}

func (*SelectStmt) statement() {}
func (*LoadStmt) statement()   {}
func (*QuitStmt) statement()   {}
