// Package ast defines the tree produced by the parser: literal and operator
// leaves, and the block forms (proc/def/if/loop/array/as..let/for/import)
// matched by "end".
package ast

import "github.com/marc-dantas/pile/internal/token"

// OpKind enumerates the built-in operator words (spec §3).
type OpKind int

const (
	Add OpKind = iota
	Sub
	Mul
	Div
	Mod
	Exp
	Gt
	Lt
	Eq
	Ge
	Le
	Ne
	Shl
	Shr
	Bor
	Band
	BNot
	Dup
	Drop
	Swap
	Over
	Rot
	Index    // @
	StoreAt  // !
	IsNil    // ?
	Trace
	Break
	Continue
	Return
	True
	False
	Nil
)

func (k OpKind) String() string {
	switch k {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Mod:
		return "%"
	case Exp:
		return "**"
	case Gt:
		return ">"
	case Lt:
		return "<"
	case Eq:
		return "="
	case Ge:
		return ">="
	case Le:
		return "<="
	case Ne:
		return "!="
	case Shl:
		return "<<"
	case Shr:
		return ">>"
	case Bor:
		return "|"
	case Band:
		return "&"
	case BNot:
		return "~"
	case Dup:
		return "dup"
	case Drop:
		return "drop"
	case Swap:
		return "swap"
	case Over:
		return "over"
	case Rot:
		return "rot"
	case Index:
		return "@"
	case StoreAt:
		return "!"
	case IsNil:
		return "?"
	case Trace:
		return "trace"
	case Break:
		return "break"
	case Continue:
		return "continue"
	case Return:
		return "return"
	case True:
		return "true"
	case False:
		return "false"
	case Nil:
		return "nil"
	default:
		return "?op"
	}
}

// operatorWords maps every operator spelling to its OpKind; used by both
// the parser (to classify a Word token) and identifier validation (to
// reject an operator spelling as a name).
var operatorWords = map[string]OpKind{
	"+": Add, "-": Sub, "*": Mul, "/": Div, "%": Mod, "**": Exp,
	">": Gt, "<": Lt, "=": Eq, ">=": Ge, "<=": Le, "!=": Ne,
	"<<": Shl, ">>": Shr, "|": Bor, "&": Band, "~": BNot,
	"dup": Dup, "drop": Drop, "swap": Swap, "over": Over, "rot": Rot,
	"@": Index, "!": StoreAt, "?": IsNil, "trace": Trace,
	"break": Break, "continue": Continue, "return": Return,
	"true": True, "false": False, "nil": Nil,
}

// LookupOp reports whether word names a built-in operator.
func LookupOp(word string) (OpKind, bool) {
	k, ok := operatorWords[word]
	return k, ok
}

// Keywords that open or shape a block; reserved identically to the
// original implementation's is_reserved_word.
var Keywords = map[string]bool{
	"proc": true, "def": true, "if": true, "else": true, "loop": true,
	"array": true, "as": true, "let": true, "for": true, "import": true,
	"end": true, "return": true, "continue": true, "break": true,
	"true": true, "false": true, "nil": true,
}

// Node is any tree element; every variant carries a Span for diagnostics.
type Node interface {
	Span() token.FileSpan
}

type base struct{ span token.FileSpan }

func (b base) Span() token.FileSpan { return b.span }

// IntLit is an integer literal leaf.
type IntLit struct {
	base
	Value int64
}

// FloatLit is a floating-point literal leaf.
type FloatLit struct {
	base
	Value float64
}

// StringLit is a string literal leaf.
type StringLit struct {
	base
	Value string
}

// Symbol is any bare word that isn't a keyword or operator: a procedure
// call, a definition reference, or a variable read.
type Symbol struct {
	base
	Name string
}

// Let is the standalone "let NAME" leaf: binds the top of stack to NAME in
// whatever scope is innermost, without opening a scope of its own.
type Let struct {
	base
	Name string
}

// Operation is a leaf wrapping one of the built-in operator words.
type Operation struct {
	base
	Kind OpKind
}

// Proc is a named, callable block: "proc NAME ... end".
type Proc struct {
	base
	Name string
	Body []Node
}

// Def is a named, once-computed value block: "def NAME ... end".
type Def struct {
	base
	Name string
	Body []Node
}

// If is a two-branch conditional: "if ... [else ...] end".
type If struct {
	base
	Then []Node
	Else []Node // nil when no else branch
}

// Loop is an unconditional loop body, left via break or return: "loop ... end".
type Loop struct {
	base
	Body []Node
}

// Array is an array literal block: "array ... end".
type Array struct {
	base
	Body []Node
}

// AsLet binds the top N stack values to N names in a fresh scope:
// "as V1 V2 ... let ... end".
type AsLet struct {
	base
	Vars []string
	Body []Node
}

// For is a named-loop-variable block: "for VAR ... end".
type For struct {
	base
	Var  string
	Body []Node
}

// Import re-compiles another source file in place: `import "path"`.
type Import struct {
	base
	Path string
}

func NewIntLit(span token.FileSpan, v int64) *IntLit       { return &IntLit{base{span}, v} }
func NewFloatLit(span token.FileSpan, v float64) *FloatLit { return &FloatLit{base{span}, v} }
func NewStringLit(span token.FileSpan, v string) *StringLit { return &StringLit{base{span}, v} }
func NewSymbol(span token.FileSpan, name string) *Symbol    { return &Symbol{base{span}, name} }
func NewLet(span token.FileSpan, name string) *Let          { return &Let{base{span}, name} }
func NewOperation(span token.FileSpan, kind OpKind) *Operation {
	return &Operation{base{span}, kind}
}
func NewProc(span token.FileSpan, name string, body []Node) *Proc {
	return &Proc{base{span}, name, body}
}
func NewDef(span token.FileSpan, name string, body []Node) *Def {
	return &Def{base{span}, name, body}
}
func NewIf(span token.FileSpan, then, els []Node) *If { return &If{base{span}, then, els} }
func NewLoop(span token.FileSpan, body []Node) *Loop  { return &Loop{base{span}, body} }
func NewArray(span token.FileSpan, body []Node) *Array { return &Array{base{span}, body} }
func NewAsLet(span token.FileSpan, vars []string, body []Node) *AsLet {
	return &AsLet{base{span}, vars, body}
}
func NewFor(span token.FileSpan, v string, body []Node) *For {
	return &For{base{span}, v, body}
}
func NewImport(span token.FileSpan, path string) *Import { return &Import{base{span}, path} }

// Walk calls fn for node and, if fn returns true, recurses into its
// children in source order.
func Walk(node Node, fn func(Node) bool) {
	if !fn(node) {
		return
	}
	switch n := node.(type) {
	case *Proc:
		walkAll(n.Body, fn)
	case *Def:
		walkAll(n.Body, fn)
	case *If:
		walkAll(n.Then, fn)
		walkAll(n.Else, fn)
	case *Loop:
		walkAll(n.Body, fn)
	case *Array:
		walkAll(n.Body, fn)
	case *AsLet:
		walkAll(n.Body, fn)
	case *For:
		walkAll(n.Body, fn)
	}
}

func walkAll(nodes []Node, fn func(Node) bool) {
	for _, n := range nodes {
		Walk(n, fn)
	}
}
