package sql

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

var ErrSyntax = errors.New("syntax error")

type Parser struct {
	l         *Lexer
	curToken  Token
	peekToken Token
}

func NewParser(l *Lexer) *Parser {
	p := &Parser{l: l}
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a single statement.
func Parse(input string) (Statement, error) {
	return NewParser(NewLexer(input)).ParseStatement()
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrSyntax, "at offset %d: "+format, append([]interface{}{p.curToken.Pos}, args...)...)
}

func (p *Parser) unexpected(want string) error {
	got := p.curToken.Kind.String()
	if p.curToken.Value != "" && p.curToken.Kind != END {
		got += " " + strconv.Quote(p.curToken.Value)
	}
	return p.errorf("expected %s, got %s", want, got)
}

func (p *Parser) expect(kind TokenKind) error {
	if p.curToken.Kind != kind {
		return p.unexpected(kind.String())
	}
	p.nextToken()
	return nil
}

// ParseStatement parses one statement. A trailing semicolon is allowed;
// anything after it is an error.
func (p *Parser) ParseStatement() (Statement, error) {
	var (
		stmt Statement
		err  error
	)
	switch p.curToken.Kind {
	case SELECT:
		stmt, err = p.parseSelect()
	case LOAD:
		stmt, err = p.parseLoad()
	case QUIT, EXIT:
		p.nextToken()
		stmt = &QuitStmt{}
	default:
		return nil, p.unexpected("SELECT, LOAD or QUIT")
	}
	if err != nil {
		return nil, err
	}
	if p.curToken.Kind == SEMICOLON {
		p.nextToken()
	}
	if p.curToken.Kind != END {
		return nil, p.unexpected("end of statement")
	}
	return stmt, nil
}

// --- SELECT ---
func (p *Parser) parseSelect() (*SelectStmt, error) {
	p.nextToken() // consume SELECT

	stmt := &SelectStmt{}
	switch {
	case p.curToken.Kind == ASTERISK:
		stmt.Attr = AttrStar
		p.nextToken()
	case p.curToken.Kind == COUNT:
		p.nextToken()
		for _, k := range []TokenKind{LPAREN, ASTERISK, RPAREN} {
			if err := p.expect(k); err != nil {
				return nil, err
			}
		}
		stmt.Attr = AttrCount
	default:
		a, err := p.parseAttr()
		if err != nil {
			return nil, err
		}
		stmt.Attr = a
	}

	if err := p.expect(FROM); err != nil {
		return nil, err
	}
	table, err := p.parseTable()
	if err != nil {
		return nil, err
	}
	stmt.Table = table

	if p.curToken.Kind != WHERE {
		return stmt, nil
	}
	p.nextToken()
	for {
		c, err := p.parseCond()
		if err != nil {
			return nil, err
		}
		stmt.Conds = append(stmt.Conds, c)
		if p.curToken.Kind != AND {
			return stmt, nil
		}
		p.nextToken()
	}
}

func (p *Parser) parseAttr() (Attr, error) {
	if p.curToken.Kind == IDENT {
		switch strings.ToLower(p.curToken.Value) {
		case "key":
			p.nextToken()
			return AttrKey, nil
		case "value":
			p.nextToken()
			return AttrValue, nil
		}
	}
	return 0, p.unexpected("key or value")
}

func (p *Parser) parseTable() (string, error) {
	if p.curToken.Kind != IDENT {
		return "", p.unexpected("table name")
	}
	name := p.curToken.Value
	p.nextToken()
	return name, nil
}

func (p *Parser) parseCond() (Cond, error) {
	attr, err := p.parseAttr()
	if err != nil {
		return Cond{}, err
	}
	c := Cond{Attr: attr}

	switch p.curToken.Kind {
	case EQ:
		c.Op = OpEQ
	case NE:
		c.Op = OpNE
	case GT:
		c.Op = OpGT
	case LT:
		c.Op = OpLT
	case GE:
		c.Op = OpGE
	case LE:
		c.Op = OpLE
	default:
		return Cond{}, p.unexpected("comparison operator")
	}
	p.nextToken()

	lit := p.curToken
	if lit.Kind != INT && lit.Kind != STRING {
		return Cond{}, p.unexpected("literal")
	}
	if attr == AttrKey {
		// A quoted key literal is accepted as long as it holds an integer.
		k, err := strconv.ParseInt(strings.TrimSpace(lit.Value), 10, 64)
		if err != nil {
			return Cond{}, p.errorf("key literal %q is not a 64-bit integer", lit.Value)
		}
		c.Key = k
	}
	c.Value = lit.Value
	p.nextToken()
	return c, nil
}

// --- LOAD ---
func (p *Parser) parseLoad() (*LoadStmt, error) {
	p.nextToken() // consume LOAD

	table, err := p.parseTable()
	if err != nil {
		return nil, err
	}
	if err := p.expect(FROM); err != nil {
		return nil, err
	}
	if p.curToken.Kind != STRING {
		return nil, p.unexpected("quoted file name")
	}
	stmt := &LoadStmt{Table: table, File: p.curToken.Value}
	p.nextToken()

	if p.curToken.Kind == WITH {
		p.nextToken()
		if err := p.expect(INDEX); err != nil {
			return nil, err
		}
		stmt.WithIndex = true
	}
	return stmt, nil
}
