// Package parser builds a Pile tree (internal/ast) out of a token stream,
// matching proc/if/else/loop/def/array/as..let/for/import blocks against
// their closing "end" word.
package parser

import (
	"fmt"
	"strconv"

	"github.com/marc-dantas/pile/internal/ast"
	"github.com/marc-dantas/pile/internal/perr"
	"github.com/marc-dantas/pile/internal/token"
)

// Parser is a recursive-descent parser over an already-lexed token slice.
type Parser struct {
	file string
	toks []token.Token
	pos  int
}

// New builds a Parser over toks, attributing its diagnostics to file.
func New(file string, toks []token.Token) *Parser {
	return &Parser{file: file, toks: toks}
}

// Parse consumes the whole token stream and returns the top-level node list.
func Parse(file string, toks []token.Token) ([]ast.Node, error) {
	return New(file, toks).Parse()
}

func (p *Parser) Parse() ([]ast.Node, error) {
	var nodes []ast.Node
	for {
		tok, ok := p.next()
		if !ok {
			return nodes, nil
		}
		node, err := p.parseExpr(tok)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
}

func (p *Parser) next() (token.Token, bool) {
	if p.pos >= len(p.toks) {
		return token.Token{}, false
	}
	t := p.toks[p.pos]
	p.pos++
	return t, true
}

func (p *Parser) lastSpan() token.FileSpan {
	if p.pos == 0 {
		return token.FileSpan{File: p.file, Span: token.Span{Line: 1, Col: 1}}
	}
	return p.toks[p.pos-1].Span
}

func isWordEnd(t token.Token, word string) bool {
	return t.Kind == token.Word && t.Value == word
}

// isValidIdentifier checks spec §4.2: non-empty, not digit-led, alphanumeric
// or underscore only, and not a reserved word or operator spelling.
func isValidIdentifier(name string) bool {
	if name == "" {
		return false
	}
	if name[0] >= '0' && name[0] <= '9' {
		return false
	}
	for _, c := range name {
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	if ast.Keywords[name] {
		return false
	}
	if _, isOp := ast.LookupOp(name); isOp {
		return false
	}
	return true
}

func (p *Parser) expectIdentifier(context string) (token.Token, error) {
	tok, ok := p.next()
	if !ok {
		return token.Token{}, perr.NewParse(p.lastSpan(), fmt.Sprintf("unexpected end of file while parsing: expected a valid identifier for %s but got the end of the file", context))
	}
	if !isValidIdentifier(tok.Value) {
		return token.Token{}, perr.NewParse(tok.Span, fmt.Sprintf("unexpected token while parsing: expected a valid identifier but got %q", tok.Value))
	}
	return tok, nil
}

func (p *Parser) parseExpr(tok token.Token) (ast.Node, error) {
	switch tok.Kind {
	case token.Int:
		v, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, perr.NewParse(tok.Span, fmt.Sprintf("malformed integer literal %q", tok.Value))
		}
		return ast.NewIntLit(tok.Span, v), nil
	case token.Float:
		v, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, perr.NewParse(tok.Span, fmt.Sprintf("malformed float literal %q", tok.Value))
		}
		return ast.NewFloatLit(tok.Span, v), nil
	case token.String:
		return ast.NewStringLit(tok.Span, tok.Value), nil
	case token.Word:
		return p.parseWord(tok)
	default:
		return nil, perr.NewParse(tok.Span, fmt.Sprintf("unexpected token kind for %q", tok.Value))
	}
}

func (p *Parser) parseWord(tok token.Token) (ast.Node, error) {
	switch tok.Value {
	case "proc":
		return p.parseNamedBlock(tok, "proc", func(s token.FileSpan, n string, b []ast.Node) ast.Node { return ast.NewProc(s, n, b) })
	case "def":
		return p.parseNamedBlock(tok, "def", func(s token.FileSpan, n string, b []ast.Node) ast.Node { return ast.NewDef(s, n, b) })
	case "loop":
		return p.parseSimpleBlock(tok, "loop", func(s token.FileSpan, b []ast.Node) ast.Node { return ast.NewLoop(s, b) })
	case "array":
		return p.parseSimpleBlock(tok, "array", func(s token.FileSpan, b []ast.Node) ast.Node { return ast.NewArray(s, b) })
	case "for":
		return p.parseFor(tok)
	case "let":
		return p.parseLet(tok)
	case "as":
		return p.parseAsLet(tok)
	case "if":
		return p.parseIf(tok)
	case "import":
		return p.parseImport(tok)
	case "end":
		return nil, perr.NewParse(tok.Span, "found unmatched block: `end` provided without a beginning (`if`, `proc`, `def`, `loop`, `array`, `for`, or `as..let`)")
	}
	if kind, ok := ast.LookupOp(tok.Value); ok {
		return ast.NewOperation(tok.Span, kind), nil
	}
	return ast.NewSymbol(tok.Span, tok.Value), nil
}

// parseBody reads nodes until a top-level "end" word, returning the body and
// the "end" token itself (its span closes the block).
func (p *Parser) parseBody(openSpan token.FileSpan, kind string) ([]ast.Node, token.Token, error) {
	var body []ast.Node
	for {
		tok, ok := p.next()
		if !ok {
			return nil, token.Token{}, perr.NewParse(openSpan, fmt.Sprintf("unterminated `%s` block: no matching `end`", kind)).
				WithHelp("perhaps you forgot to write `end`?")
		}
		if isWordEnd(tok, "end") {
			return body, tok, nil
		}
		node, err := p.parseExpr(tok)
		if err != nil {
			return nil, token.Token{}, err
		}
		body = append(body, node)
	}
}

func (p *Parser) parseNamedBlock(open token.Token, kind string, build func(token.FileSpan, string, []ast.Node) ast.Node) (ast.Node, error) {
	name, err := p.expectIdentifier(kind)
	if err != nil {
		return nil, err
	}
	body, _, err := p.parseBody(open.Span, kind)
	if err != nil {
		return nil, err
	}
	return build(open.Span, name.Value, body), nil
}

func (p *Parser) parseSimpleBlock(open token.Token, kind string, build func(token.FileSpan, []ast.Node) ast.Node) (ast.Node, error) {
	body, _, err := p.parseBody(open.Span, kind)
	if err != nil {
		return nil, err
	}
	return build(open.Span, body), nil
}

func (p *Parser) parseFor(open token.Token) (ast.Node, error) {
	v, err := p.expectIdentifier("for")
	if err != nil {
		return nil, err
	}
	body, _, err := p.parseBody(open.Span, "for")
	if err != nil {
		return nil, err
	}
	return ast.NewFor(open.Span, v.Value, body), nil
}

func (p *Parser) parseLet(open token.Token) (ast.Node, error) {
	name, err := p.expectIdentifier("let")
	if err != nil {
		return nil, err
	}
	return ast.NewLet(open.Span, name.Value), nil
}

func (p *Parser) parseAsLet(open token.Token) (ast.Node, error) {
	var vars []string
	for {
		tok, ok := p.next()
		if !ok {
			return nil, perr.NewParse(open.Span, "unexpected end of file while parsing: expected `let` to close the variable list of an `as` block")
		}
		if isWordEnd(tok, "let") {
			break
		}
		if !isValidIdentifier(tok.Value) {
			return nil, perr.NewParse(tok.Span, fmt.Sprintf("unexpected token while parsing: expected a valid identifier but got %q", tok.Value))
		}
		vars = append(vars, tok.Value)
	}
	body, _, err := p.parseBody(open.Span, "as..let")
	if err != nil {
		return nil, err
	}
	return ast.NewAsLet(open.Span, vars, body), nil
}

func (p *Parser) parseIf(open token.Token) (ast.Node, error) {
	var thenBody []ast.Node
	for {
		tok, ok := p.next()
		if !ok {
			return nil, perr.NewParse(open.Span, "unterminated `if` block: no matching `end`").
				WithHelp("perhaps you forgot to write `end`?")
		}
		if isWordEnd(tok, "end") {
			return ast.NewIf(open.Span, thenBody, nil), nil
		}
		if isWordEnd(tok, "else") {
			elseBody, _, err := p.parseBody(tok.Span, "else")
			if err != nil {
				return nil, err
			}
			return ast.NewIf(open.Span, thenBody, elseBody), nil
		}
		node, err := p.parseExpr(tok)
		if err != nil {
			return nil, err
		}
		thenBody = append(thenBody, node)
	}
}

func (p *Parser) parseImport(open token.Token) (ast.Node, error) {
	tok, ok := p.next()
	if !ok {
		return nil, perr.NewParse(open.Span, "unexpected end of file while parsing: expected a string path for `import`")
	}
	if tok.Kind != token.String {
		return nil, perr.NewParse(tok.Span, fmt.Sprintf("unexpected token while parsing: expected a string but got %q", tok.Value))
	}
	return ast.NewImport(open.Span, tok.Value), nil
}
