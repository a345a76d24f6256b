package sql

import "strings"

type TokenKind int

const (
	IDENT TokenKind = iota
	INT
	STRING

	// keywords
	SELECT
	FROM
	WHERE
	AND
	COUNT
	LOAD
	WITH
	INDEX
	QUIT
	EXIT

	// punctuation and operators
	ASTERISK
	LPAREN
	RPAREN
	SEMICOLON
	EQ
	NE
	LT
	LE
	GT
	GE

	END
	INVALID
)

var kindNames = map[TokenKind]string{
	IDENT: "IDENT", INT: "INT", STRING: "STRING",
	SELECT: "SELECT", FROM: "FROM", WHERE: "WHERE", AND: "AND", COUNT: "COUNT",
	LOAD: "LOAD", WITH: "WITH", INDEX: "INDEX", QUIT: "QUIT", EXIT: "EXIT",
	ASTERISK: "*", LPAREN: "(", RPAREN: ")", SEMICOLON: ";",
	EQ: "=", NE: "<>", LT: "<", LE: "<=", GT: ">", GE: ">=",
	END: "end of input", INVALID: "INVALID",
}

func (k TokenKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "UNKNOWN"
}

var keywords = map[string]TokenKind{
	"SELECT": SELECT,
	"FROM":   FROM,
	"WHERE":  WHERE,
	"AND":    AND,
	"COUNT":  COUNT,
	"LOAD":   LOAD,
	"WITH":   WITH,
	"INDEX":  INDEX,
	"QUIT":   QUIT,
	"EXIT":   EXIT,
}

type Token struct {
	Kind  TokenKind
	Value string
	Pos   int
}

// Lexer splits one statement into tokens. Keywords are case-insensitive.
type Lexer struct {
	input   string
	pos     int
	readPos int
	ch      byte
}

func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) NextToken() Token {
	l.skipWhiteSpaces()
	start := l.pos

	single := func(kind TokenKind) Token {
		tok := Token{Kind: kind, Value: string(l.ch), Pos: start}
		l.readChar()
		return tok
	}

	switch l.ch {
	case 0:
		return Token{Kind: END, Pos: start}
	case '*':
		return single(ASTERISK)
	case '(':
		return single(LPAREN)
	case ')':
		return single(RPAREN)
	case ';':
		return single(SEMICOLON)
	case '=':
		return single(EQ)
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Kind: NE, Value: "!=", Pos: start}
		}
		return single(INVALID)
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			l.readChar()
			return Token{Kind: LE, Value: "<=", Pos: start}
		case '>':
			l.readChar()
			l.readChar()
			return Token{Kind: NE, Value: "<>", Pos: start}
		}
		return single(LT)
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Kind: GE, Value: ">=", Pos: start}
		}
		return single(GT)
	case '\'', '"':
		s, ok := l.readString()
		if !ok {
			return Token{Kind: INVALID, Value: l.input[start:], Pos: start}
		}
		return Token{Kind: STRING, Value: s, Pos: start}
	case '-':
		if isDigit(l.peekChar()) {
			l.readChar()
			return Token{Kind: INT, Value: "-" + l.readNumber(), Pos: start}
		}
		return single(INVALID)
	}

	switch {
	case isLetter(l.ch):
		word := l.readWord()
		if kind, ok := keywords[strings.ToUpper(word)]; ok {
			return Token{Kind: kind, Value: word, Pos: start}
		}
		return Token{Kind: IDENT, Value: word, Pos: start}
	case isDigit(l.ch):
		return Token{Kind: INT, Value: l.readNumber(), Pos: start}
	default:
		return single(INVALID)
	}
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) skipWhiteSpaces() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// readString consumes a literal quoted with the current character. It
// reports false when the closing quote is missing.
func (l *Lexer) readString() (string, bool) {
	quote := l.ch
	l.readChar()
	start := l.pos
	for l.ch != quote {
		if l.ch == 0 {
			return "", false
		}
		l.readChar()
	}
	s := l.input[start:l.pos]
	l.readChar()
	return s, true
}

func (l *Lexer) readWord() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func isLetter(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
