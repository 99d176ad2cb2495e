// Package compiler linearises a Pile tree (internal/ast) into a flat
// instruction vector with backpatched jumps and a parallel span table, the
// shape internal/vm executes directly.
package compiler

import (
	"fmt"

	"github.com/marc-dantas/pile/internal/ast"
	"github.com/marc-dantas/pile/internal/lexer"
	"github.com/marc-dantas/pile/internal/parser"
	"github.com/marc-dantas/pile/internal/perr"
	"github.com/marc-dantas/pile/internal/token"
)

// Importer resolves the source text behind an `import "path"` node. The
// compiler never touches the filesystem directly; callers wire in their own
// search-path policy (spec §6: import search paths are a caller concern).
type Importer interface {
	Load(path string) (string, error)
}

// Program is the compiler's output: a flat instruction vector and the span
// table SetSpan instructions index into.
type Program struct {
	Instrs []Instr
	Spans  []token.FileSpan
}

type loopFrame struct {
	start  Addr
	breaks []Addr
}

// Compiler walks a tree and emits Instrs/Spans. It is single-use: build one
// per compilation (a fresh Compiler per top-level Compile call).
type Compiler struct {
	filename  string
	importer  Importer
	instrs    []Instr
	spans     []token.FileSpan
	procs     map[string]Addr
	loopStack []loopFrame
	importing map[string]bool
}

// Compile compiles a top-level node list into a Program, wrapping it in
// BeginScope/EndScope (spec §4.3's closing sentence).
func Compile(nodes []ast.Node, filename string, importer Importer) (*Program, error) {
	c := &Compiler{
		filename:  filename,
		importer:  importer,
		procs:     make(map[string]Addr),
		importing: map[string]bool{filename: true},
	}
	c.emit(Instr{Code: BeginScope})
	if err := c.compileAll(nodes); err != nil {
		return nil, err
	}
	c.emit(Instr{Code: EndScope})
	return &Program{Instrs: c.instrs, Spans: c.spans}, nil
}

func (c *Compiler) here() Addr { return Addr(len(c.instrs)) }

func (c *Compiler) emit(i Instr) Addr {
	c.instrs = append(c.instrs, i)
	return c.here() - 1
}

func (c *Compiler) patch(at Addr, target Addr) {
	c.instrs[at].Addr = target
}

// setSpan records span in the span table and emits the SetSpan instruction
// that precedes any instruction able to fail (spec's P3 invariant).
func (c *Compiler) setSpan(span token.FileSpan) {
	id := Addr(len(c.spans))
	c.spans = append(c.spans, span)
	c.emit(Instr{Code: SetSpan, Addr: id})
}

func (c *Compiler) compileAll(nodes []ast.Node) error {
	for _, n := range nodes {
		if err := c.compileNode(n); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileNode(n ast.Node) error {
	switch node := n.(type) {
	case *ast.IntLit:
		c.setSpan(node.Span())
		c.emit(Instr{Code: Push, Value: Int(node.Value)})
		return nil

	case *ast.FloatLit:
		c.setSpan(node.Span())
		c.emit(Instr{Code: Push, Value: Float(node.Value)})
		return nil

	case *ast.StringLit:
		c.setSpan(node.Span())
		c.emit(Instr{Code: PushString, Text: node.Value})
		return nil

	case *ast.Let:
		c.setSpan(node.Span())
		c.emit(Instr{Code: SetVariable, Name: node.Name})
		return nil

	case *ast.Symbol:
		return c.compileSymbol(node)

	case *ast.Operation:
		return c.compileOperation(node)

	case *ast.Proc:
		return c.compileProc(node)

	case *ast.Def:
		return c.compileDef(node)

	case *ast.If:
		return c.compileIf(node)

	case *ast.Loop:
		return c.compileLoop(node)

	case *ast.Array:
		c.setSpan(node.Span())
		c.emit(Instr{Code: BeginArray})
		if err := c.compileAll(node.Body); err != nil {
			return err
		}
		c.emit(Instr{Code: EndArray})
		return nil

	case *ast.AsLet:
		return c.compileAsLet(node)

	case *ast.For:
		return c.compileFor(node)

	case *ast.Import:
		return c.compileImport(node)

	default:
		return perr.NewParse(n.Span(), fmt.Sprintf("internal error: cannot compile node %T", n))
	}
}

// compileSymbol resolves a bare word at compile time: a known procedure
// call, a builtin dispatch, or (falling through to runtime) a binding read.
func (c *Compiler) compileSymbol(node *ast.Symbol) error {
	c.setSpan(node.Span())
	if addr, ok := c.procs[node.Name]; ok {
		c.emit(Instr{Code: Call, Addr: addr})
		return nil
	}
	if b, ok := LookupBuiltin(node.Name); ok {
		c.emit(Instr{Code: ExecBuiltin, Builtin: b})
		return nil
	}
	c.emit(Instr{Code: PushBinding, Name: node.Name})
	return nil
}

func (c *Compiler) compileOperation(node *ast.Operation) error {
	c.setSpan(node.Span())
	switch node.Kind {
	case ast.Dup:
		c.emit(Instr{Code: Dup})
	case ast.Drop:
		c.emit(Instr{Code: Drop})
	case ast.Swap:
		c.emit(Instr{Code: Swap})
	case ast.Over:
		c.emit(Instr{Code: Over})
	case ast.Rot:
		c.emit(Instr{Code: Rotate})
	case ast.True:
		c.emit(Instr{Code: Push, Value: Bool(true)})
	case ast.False:
		c.emit(Instr{Code: Push, Value: Bool(false)})
	case ast.Nil:
		c.emit(Instr{Code: Push, Value: Nil()})
	case ast.Break:
		if len(c.loopStack) == 0 {
			// Outside a loop, break is silently elided (spec §4.3/§9):
			// drop the SetSpan we just emitted along with it.
			c.instrs = c.instrs[:len(c.instrs)-1]
			c.spans = c.spans[:len(c.spans)-1]
			return nil
		}
		at := c.emit(Instr{Code: Jump})
		top := len(c.loopStack) - 1
		c.loopStack[top].breaks = append(c.loopStack[top].breaks, at)
	case ast.Continue:
		if len(c.loopStack) == 0 {
			c.instrs = c.instrs[:len(c.instrs)-1]
			c.spans = c.spans[:len(c.spans)-1]
			return nil
		}
		top := c.loopStack[len(c.loopStack)-1]
		c.emit(Instr{Code: Jump, Addr: top.start})
	case ast.Return:
		c.emit(Instr{Code: EndScope})
		c.emit(Instr{Code: Return})
	default:
		c.emit(Instr{Code: ExecOp, Op: opFromKind(node.Kind)})
	}
	return nil
}

func opFromKind(k ast.OpKind) Op {
	switch k {
	case ast.Add:
		return OpAdd
	case ast.Sub:
		return OpSub
	case ast.Mul:
		return OpMul
	case ast.Div:
		return OpDiv
	case ast.Mod:
		return OpMod
	case ast.Exp:
		return OpExp
	case ast.Gt:
		return OpGt
	case ast.Lt:
		return OpLt
	case ast.Eq:
		return OpEq
	case ast.Ge:
		return OpGe
	case ast.Le:
		return OpLe
	case ast.Ne:
		return OpNe
	case ast.Shl:
		return OpShl
	case ast.Shr:
		return OpShr
	case ast.Bor:
		return OpBor
	case ast.Band:
		return OpBand
	case ast.BNot:
		return OpBNot
	case ast.Index:
		return OpIndex
	case ast.StoreAt:
		return OpStoreAt
	case ast.IsNil:
		return OpIsNil
	case ast.Trace:
		return OpTrace
	default:
		return OpTrace // unreachable: every other kind is handled in compileOperation
	}
}

// compileProc emits a forward Jump over the body so the body is skipped on
// the natural fall-through path, records the entry address in procs
// *before* compiling the body (so the body can call itself), and wraps the
// body in its own scope. Only procedures compiled so far are in procs: a
// name that refers to a procedure defined later in the source compiles to
// PushBinding, not Call.
func (c *Compiler) compileProc(node *ast.Proc) error {
	c.setSpan(node.Span())
	skip := c.emit(Instr{Code: Jump})
	entry := c.here()
	c.procs[node.Name] = entry
	c.emit(Instr{Code: BeginScope})
	if err := c.compileAll(node.Body); err != nil {
		return err
	}
	c.emit(Instr{Code: EndScope})
	c.emit(Instr{Code: Return})
	c.patch(skip, c.here())
	return nil
}

// compileDef compiles its body inline (it runs exactly once, at the point
// the def is first reached) and binds the resulting value under name.
func (c *Compiler) compileDef(node *ast.Def) error {
	if err := c.compileAll(node.Body); err != nil {
		return err
	}
	c.setSpan(node.Span())
	c.emit(Instr{Code: SetDefinition, Name: node.Name})
	return nil
}

// compileIf does not open a lexical scope around either branch (canonical
// choice recorded in DESIGN.md: only proc and as..let open scopes).
func (c *Compiler) compileIf(node *ast.If) error {
	c.setSpan(node.Span())
	jumpIfNot := c.emit(Instr{Code: JumpIfNot})
	if err := c.compileAll(node.Then); err != nil {
		return err
	}
	jumpEnd := c.emit(Instr{Code: Jump})
	c.patch(jumpIfNot, c.here())
	if node.Else != nil {
		if err := c.compileAll(node.Else); err != nil {
			return err
		}
	}
	c.patch(jumpEnd, c.here())
	return nil
}

// compileLoop has no implicit scope either; break/continue are resolved via
// the loop stack pushed here.
func (c *Compiler) compileLoop(node *ast.Loop) error {
	start := c.here()
	c.loopStack = append(c.loopStack, loopFrame{start: start})
	if err := c.compileAll(node.Body); err != nil {
		return err
	}
	c.setSpan(node.Span())
	c.emit(Instr{Code: Jump, Addr: start})
	top := c.loopStack[len(c.loopStack)-1]
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
	after := c.here()
	for _, b := range top.breaks {
		c.patch(b, after)
	}
	return nil
}

// compileAsLet binds the declared variables in reverse order so the
// rightmost name binds the top of stack, then compiles the body, all inside
// a fresh scope (the only other block shape besides proc that opens one).
func (c *Compiler) compileAsLet(node *ast.AsLet) error {
	c.setSpan(node.Span())
	c.emit(Instr{Code: BeginScope})
	for i := len(node.Vars) - 1; i >= 0; i-- {
		c.emit(Instr{Code: SetVariable, Name: node.Vars[i]})
	}
	if err := c.compileAll(node.Body); err != nil {
		return err
	}
	c.emit(Instr{Code: EndScope})
	return nil
}

// compileFor is sugar over a loop binding its cursor variable each pass:
// it repeatedly pops a value into Var and runs the body, forwarding the
// control-flow primitives break/continue like any other loop. The spec
// names `for VAR … end` as a block shape but leaves its desugaring to the
// implementer; this follows the only reading consistent with Pile being
// stack-oriented (no hidden iterable argument): the loop body itself is
// responsible for producing the next value or breaking.
func (c *Compiler) compileFor(node *ast.For) error {
	c.setSpan(node.Span())
	c.emit(Instr{Code: BeginScope})
	start := c.here()
	c.loopStack = append(c.loopStack, loopFrame{start: start})
	c.emit(Instr{Code: SetVariable, Name: node.Var})
	if err := c.compileAll(node.Body); err != nil {
		return err
	}
	c.emit(Instr{Code: Jump, Addr: start})
	top := c.loopStack[len(c.loopStack)-1]
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
	after := c.here()
	for _, b := range top.breaks {
		c.patch(b, after)
	}
	c.emit(Instr{Code: EndScope})
	return nil
}

// compileImport re-invokes the lexer and parser on the referenced file and
// compiles the resulting tree in place, saving and restoring the current
// filename so spans in the imported file name the right source.
func (c *Compiler) compileImport(node *ast.Import) error {
	if c.importing[node.Path] {
		return perr.NewParse(node.Span(), fmt.Sprintf("circular import of %q", node.Path))
	}
	src, err := c.importer.Load(node.Path)
	if err != nil {
		return perr.Wrap(node.Span(), fmt.Sprintf("failed to import %q", node.Path), err)
	}

	savedFile := c.filename
	c.filename = node.Path
	c.importing[node.Path] = true

	toks, err := lexer.All(lexer.New(node.Path, src))
	if err != nil {
		c.filename = savedFile
		return err
	}
	nodes, err := parser.Parse(node.Path, toks)
	if err != nil {
		c.filename = savedFile
		return err
	}
	err = c.compileAll(nodes)

	delete(c.importing, node.Path)
	c.filename = savedFile
	return err
}
