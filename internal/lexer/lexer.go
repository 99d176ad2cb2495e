// Package lexer turns Pile source text into a stream of tokens with precise
// line/column spans. It consumes a code-point (rune) stream, not a byte
// stream, so multi-byte UTF-8 text keeps accurate columns.
package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/marc-dantas/pile/internal/perr"
	"github.com/marc-dantas/pile/internal/token"
)

// Lexer lazily pulls tokens out of a source string. Call Next until ok is
// false; a non-nil error aborts the stream immediately (spec §4.1: a token
// error is fatal, there is no recovery).
type Lexer struct {
	file string
	src  []rune
	pos  int
	line int
	col  int
}

// New builds a Lexer over source text attributed to file (used in spans).
func New(file, source string) *Lexer {
	return &Lexer{
		file: file,
		src:  []rune(source),
		pos:  0,
		line: 1,
		col:  1,
	}
}

func (l *Lexer) peek() (rune, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *Lexer) peekAt(off int) (rune, bool) {
	i := l.pos + off
	if i >= len(l.src) {
		return 0, false
	}
	return l.src[i], true
}

func (l *Lexer) advance() rune {
	c := l.src[l.pos]
	l.pos++
	return c
}

func (l *Lexer) span() token.FileSpan {
	return token.FileSpan{File: l.file, Span: token.Span{Line: l.line, Col: l.col}}
}

func isDigit(c rune) bool { return c >= '0' && c <= '9' }

// Next returns the next token. ok is false at end of input with a nil error;
// a non-nil error means the stream ended on a malformed literal.
func (l *Lexer) Next() (tok token.Token, ok bool, err error) {
	for {
		c, has := l.peek()
		if !has {
			return token.Token{}, false, nil
		}

		switch {
		case c == '\n':
			l.advance()
			l.line++
			l.col = 1
			continue

		case unicode.IsSpace(c):
			l.advance()
			l.col++
			continue

		case c == '#':
			for {
				d, has := l.peek()
				if !has || d == '\n' {
					break
				}
				l.advance()
			}
			continue

		case c == '"':
			return l.lexString()

		case c == '\'':
			return l.lexChar()

		case isDigit(c) || (c == '-' && startsNumber(l)):
			return l.lexNumber()

		default:
			return l.lexWord()
		}
	}
}

// startsNumber reports whether a '-' at the cursor is immediately followed
// by a digit or a '.', per spec §4.1 rule 6.
func startsNumber(l *Lexer) bool {
	d, has := l.peekAt(1)
	if !has {
		return false
	}
	return isDigit(d) || d == '.'
}

func (l *Lexer) lexString() (token.Token, bool, error) {
	startSpan := l.span()
	l.advance() // opening quote
	l.col++
	var buf strings.Builder
	for {
		c, has := l.peek()
		if !has {
			return token.Token{}, false, perr.NewToken(startSpan, fmt.Sprintf("unterminated string literal %q", buf.String())).
				WithHelp(`try adding a closing " at the end of the string`)
		}
		l.advance()
		l.col++
		if c == '"' {
			break
		}
		if c == '\\' {
			e, has := l.peek()
			if !has {
				return token.Token{}, false, perr.NewToken(l.span(), "unterminated string literal").
					WithHelp(`try adding a closing " at the end of the string`)
			}
			l.advance()
			l.col++
			escaped, err := escapeChar(e)
			if err != nil {
				return token.Token{}, false, perr.NewToken(l.span(), err.Error())
			}
			buf.WriteRune(escaped)
			continue
		}
		if c == '\n' {
			l.line++
			l.col = 1
		}
		buf.WriteRune(c)
	}
	return token.Token{Value: buf.String(), Kind: token.String, Span: startSpan}, true, nil
}

func escapeChar(e rune) (rune, error) {
	switch e {
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	case '"':
		return '"', nil
	case '0':
		return 0, nil
	default:
		return 0, fmt.Errorf("unknown escape sequence `\\%c`", e)
	}
}

func (l *Lexer) lexChar() (token.Token, bool, error) {
	startSpan := l.span()
	l.advance() // opening quote
	l.col++
	c, has := l.peek()
	if !has {
		return token.Token{}, false, perr.NewToken(startSpan, "unterminated character literal")
	}
	l.advance()
	l.col++
	var value rune
	if c == '\\' {
		e, has := l.peek()
		if !has {
			return token.Token{}, false, perr.NewToken(l.span(), "unterminated character literal")
		}
		l.advance()
		l.col++
		escaped, err := escapeChar(e)
		if err != nil {
			return token.Token{}, false, perr.NewToken(l.span(), err.Error())
		}
		value = escaped
	} else {
		value = c
	}
	closing, has := l.peek()
	if !has || closing != '\'' {
		return token.Token{}, false, perr.NewToken(l.span(), "unterminated character literal").
			WithHelp("character literals hold exactly one character")
	}
	l.advance()
	l.col++
	return token.Token{Value: strconv.Itoa(int(value)), Kind: token.Int, Span: startSpan}, true, nil
}

func (l *Lexer) lexNumber() (token.Token, bool, error) {
	startSpan := l.span()
	var buf strings.Builder
	isFloat := false

	if c, _ := l.peek(); c == '-' {
		buf.WriteRune(l.advance())
		l.col++
	}

	for {
		c, has := l.peek()
		if !has {
			break
		}
		if isDigit(c) {
			buf.WriteRune(l.advance())
			l.col++
			continue
		}
		if c == '.' {
			isFloat = true
			buf.WriteRune(l.advance())
			l.col++
			continue
		}
		if unicode.IsSpace(c) {
			break
		}
		return token.Token{}, false, perr.NewToken(l.span(), fmt.Sprintf("invalid character `%c` found in number literal", c))
	}

	kind := token.Int
	if isFloat {
		kind = token.Float
	}
	return token.Token{Value: buf.String(), Kind: kind, Span: startSpan}, true, nil
}

func (l *Lexer) lexWord() (token.Token, bool, error) {
	startSpan := l.span()
	var buf strings.Builder
	for {
		c, has := l.peek()
		if !has || unicode.IsSpace(c) {
			break
		}
		buf.WriteRune(l.advance())
		l.col++
	}
	return token.Token{Value: buf.String(), Kind: token.Word, Span: startSpan}, true, nil
}

// All drains the lexer into a slice, for callers (the parser, tests) that
// prefer to work over a fully materialised token list.
func All(l *Lexer) ([]token.Token, error) {
	var toks []token.Token
	for {
		tok, ok, err := l.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return toks, nil
		}
		toks = append(toks, tok)
	}
}
