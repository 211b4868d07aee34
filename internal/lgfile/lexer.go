package lgfile

import (
	"strings"
	"unicode/utf8"

	"github.com/leapstack-labs/leaplg/internal/lg"
)

// TokenType identifies the type of token.
type TokenType int

// TokenType constants for variant token types.
const (
	TokenText      TokenType = iota // Literal text
	TokenEscape                     // \x
	TokenExpr                       // {expr} or @{expr}
	TokenRef                        // [Name] or [Name(args)]
	TokenMultiLine                  // ```...```
	TokenEOF                        // End of input
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "TEXT"
	case TokenEscape:
		return "ESCAPE"
	case TokenExpr:
		return "EXPR"
	case TokenRef:
		return "REF"
	case TokenMultiLine:
		return "MULTILINE"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Token represents a lexical token. Value keeps the delimiters.
type Token struct {
	Type  TokenType
	Value string
	Pos   lg.Position
}

const fence = "```"

// Lexer tokenizes the text of one variant.
type Lexer struct {
	input    string
	file     string
	pos      int // current position in input
	line     int // current line number (1-based)
	col      int // current column number (1-based)
	lastLine int // line at start of current token
	lastCol  int // column at start of current token
}

// NewLexer creates a lexer for input, which starts at start in its file.
func NewLexer(input string, start lg.Position) *Lexer {
	line, col := start.Line, start.Column
	if line == 0 {
		line = 1
	}
	if col == 0 {
		col = 1
	}
	return &Lexer{
		input: input,
		file:  start.File,
		line:  line,
		col:   col,
	}
}

// Tokenize converts the input into a slice of tokens.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token

	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}

	return tokens, nil
}

func (l *Lexer) nextToken() (Token, error) {
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.position()}, nil
	}

	switch {
	case l.matchString(fence):
		return l.scanMultiLine()
	case l.matchString(`\`):
		return l.scanEscape()
	case l.matchString("@{"), l.matchString("{"):
		return l.scanExpression()
	case l.matchString("["):
		return l.scanRef()
	default:
		return l.scanText()
	}
}

// atDelimiter reports whether a non-text token starts here.
func (l *Lexer) atDelimiter() bool {
	return l.matchString(fence) || l.matchString(`\`) || l.matchString("@{") ||
		l.matchString("{") || l.matchString("[")
}

func (l *Lexer) scanText() (Token, error) {
	l.markStart()
	start := l.pos

	for l.pos < len(l.input) && !l.atDelimiter() {
		l.advance()
	}

	if l.pos == start {
		return Token{}, NewLexError(l.position(), "unexpected state in lexer")
	}

	return Token{
		Type:  TokenText,
		Value: l.input[start:l.pos],
		Pos:   l.startPosition(),
	}, nil
}

// scanEscape consumes a backslash and the rune after it. Whether the pair
// is a known escape is left to the static checker.
func (l *Lexer) scanEscape() (Token, error) {
	l.markStart()
	start := l.pos
	l.advance()
	l.advance()
	return Token{
		Type:  TokenEscape,
		Value: l.input[start:l.pos],
		Pos:   l.startPosition(),
	}, nil
}

// scanExpression scans {expr} or @{expr}, tracking nested braces and
// quoted strings.
func (l *Lexer) scanExpression() (Token, error) {
	l.markStart()
	start := l.pos
	if l.peek() == '@' {
		l.advance()
	}
	if !l.scanBalanced('{', '}') {
		return Token{}, NewLexError(l.startPosition(), "unclosed expression: missing '}'")
	}
	return Token{
		Type:  TokenExpr,
		Value: l.input[start:l.pos],
		Pos:   l.startPosition(),
	}, nil
}

// scanRef scans [Name] or [Name(args)], allowing nested brackets in
// arguments.
func (l *Lexer) scanRef() (Token, error) {
	l.markStart()
	start := l.pos
	if !l.scanBalanced('[', ']') {
		return Token{}, NewLexError(l.startPosition(), "unclosed template reference: missing ']'")
	}
	return Token{
		Type:  TokenRef,
		Value: l.input[start:l.pos],
		Pos:   l.startPosition(),
	}, nil
}

// scanMultiLine scans ```...```, which may span lines.
func (l *Lexer) scanMultiLine() (Token, error) {
	l.markStart()
	start := l.pos
	for range fence {
		l.advance()
	}
	for l.pos < len(l.input) {
		if l.matchString(fence) {
			for range fence {
				l.advance()
			}
			return Token{
				Type:  TokenMultiLine,
				Value: l.input[start:l.pos],
				Pos:   l.startPosition(),
			}, nil
		}
		l.advance()
	}
	return Token{}, NewLexError(l.startPosition(), "unclosed multi-line text: missing '```'")
}

// scanBalanced consumes from the current open rune to its matching close
// and reports whether the close was found.
func (l *Lexer) scanBalanced(open, closing rune) bool {
	depth := 0
	var quote rune
	for l.pos < len(l.input) {
		r := l.peek()
		l.advance()
		if quote != 0 {
			switch r {
			case '\\':
				l.advance()
			case quote:
				quote = 0
			}
			continue
		}
		switch r {
		case '"', '\'':
			if depth > 0 {
				quote = r
			}
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return true
			}
		}
	}
	return false
}

// Helper methods

func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

func (l *Lexer) matchString(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

func (l *Lexer) markStart() {
	l.lastLine = l.line
	l.lastCol = l.col
}

func (l *Lexer) position() lg.Position {
	return lg.Position{File: l.file, Line: l.line, Column: l.col}
}

func (l *Lexer) startPosition() lg.Position {
	return lg.Position{File: l.file, Line: l.lastLine, Column: l.lastCol}
}

// Segments converts tokens into template segments.
func Segments(tokens []Token) []lg.Segment {
	segs := make([]lg.Segment, 0, len(tokens))
	for _, tok := range tokens {
		switch tok.Type {
		case TokenText:
			segs = append(segs, lg.NewLiteral(tok.Pos, tok.Value))
		case TokenEscape:
			segs = append(segs, lg.NewEscape(tok.Pos, tok.Value))
		case TokenExpr:
			segs = append(segs, lg.NewExpression(tok.Pos, tok.Value))
		case TokenRef:
			segs = append(segs, lg.NewTemplateRef(tok.Pos, tok.Value))
		case TokenMultiLine:
			segs = append(segs, lg.NewMultiLineText(tok.Pos, tok.Value))
		}
	}
	return segs
}
