// Package vm is Pile's stack virtual machine: it drives a compiled
// Program (internal/compiler) to completion, owning the operand stack,
// call stack, lexical scopes, interned strings, array heap and opaque
// file-like handles described in spec §4.4.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/marc-dantas/pile/internal/compiler"
	"github.com/marc-dantas/pile/internal/token"
)

const (
	stdinName  = "STDIN"
	stdoutName = "STDOUT"
	stderrName = "STDERR"
)

// Executor holds every piece of mutable state a running program touches.
type Executor struct {
	prog *compiler.Program

	pc        compiler.Addr
	stack     []compiler.Value
	callStack []compiler.Addr
	scopes    []map[string]compiler.Value

	definitions map[string]compiler.Value

	strings     []string
	internIndex map[string]int

	arrays      map[int][]compiler.Value
	nextArray   int
	arrayStarts []int

	datas       map[int]*handle
	nextData    int
	stdinHandle *handle

	spanID int // index into prog.Spans; -1 until the first SetSpan

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// Option configures an Executor at construction time.
type Option func(*Executor)

// WithStdin overrides the stream `input`/`inputln` read from.
func WithStdin(r io.Reader) Option { return func(e *Executor) { e.stdin = r } }

// WithStdout overrides the stream `print`/`println` write to.
func WithStdout(w io.Writer) Option { return func(e *Executor) { e.stdout = w } }

// WithStderr overrides the stream `eprint`/`eprintln` write to.
func WithStderr(w io.Writer) Option { return func(e *Executor) { e.stderr = w } }

// New builds an Executor ready to Run prog. Standard streams default to
// os.Stdin/os.Stdout/os.Stderr; tests substitute buffers via the Option
// constructors.
func New(prog *compiler.Program, opts ...Option) *Executor {
	e := &Executor{
		prog:        prog,
		scopes:      []map[string]compiler.Value{},
		definitions: make(map[string]compiler.Value),
		internIndex: make(map[string]int),
		arrays:      make(map[int][]compiler.Value),
		datas:       make(map[int]*handle),
		spanID:      -1,
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.stdinHandle = newStreamHandle("<stdin>", e.stdin, nil)
	e.bindStream(stdinName, e.stdinHandle)
	e.bindStream(stdoutName, newStreamHandle("<stdout>", nil, e.stdout))
	e.bindStream(stderrName, newStreamHandle("<stderr>", nil, e.stderr))
	return e
}

func (e *Executor) bindStream(name string, h *handle) {
	id := e.nextData
	e.nextData++
	e.datas[id] = h
	e.definitions[name] = compiler.Data(id)
}

// currentSpan returns the FileSpan the nearest preceding SetSpan recorded,
// or a zero span before the first one is ever executed.
func (e *Executor) currentSpan() token.FileSpan {
	if e.spanID < 0 || e.spanID >= len(e.prog.Spans) {
		return token.FileSpan{}
	}
	return e.prog.Spans[e.spanID]
}

func (e *Executor) push(v compiler.Value) { e.stack = append(e.stack, v) }

func (e *Executor) pop(op string) (compiler.Value, error) {
	if len(e.stack) == 0 {
		return compiler.Value{}, errStackUnderflow(e.currentSpan(), op, 1)
	}
	v := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return v, nil
}

func (e *Executor) popN(op string, n int) ([]compiler.Value, error) {
	if len(e.stack) < n {
		return nil, errStackUnderflow(e.currentSpan(), op, n)
	}
	vs := make([]compiler.Value, n)
	copy(vs, e.stack[len(e.stack)-n:])
	e.stack = e.stack[:len(e.stack)-n]
	return vs, nil
}

func (e *Executor) top() (compiler.Value, bool) {
	if len(e.stack) == 0 {
		return compiler.Value{}, false
	}
	return e.stack[len(e.stack)-1], true
}

// intern returns the stable id for s, interning it on first sight (spec's
// P4: equal text maps to equal id).
func (e *Executor) intern(s string) int {
	if id, ok := e.internIndex[s]; ok {
		return id
	}
	id := len(e.strings)
	e.strings = append(e.strings, s)
	e.internIndex[s] = id
	return id
}

func (e *Executor) text(v compiler.Value) string {
	if v.Kind != compiler.VString {
		return ""
	}
	return e.strings[v.ID]
}

func (e *Executor) scope() map[string]compiler.Value {
	return e.scopes[len(e.scopes)-1]
}

func (e *Executor) lookupBinding(name string) (compiler.Value, bool) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if v, ok := e.scopes[i][name]; ok {
			return v, true
		}
	}
	if v, ok := e.definitions[name]; ok {
		return v, true
	}
	return compiler.Value{}, false
}

// knownNames collects every name PushBinding could have resolved against,
// for the fuzzy "did you mean" suggestion on InvalidSymbol.
func (e *Executor) knownNames() []string {
	seen := make(map[string]bool)
	var names []string
	for i := len(e.scopes) - 1; i >= 0; i-- {
		for name := range e.scopes[i] {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	for name := range e.definitions {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func suggest(name string, candidates []string) string {
	matches := fuzzy.RankFindFold(name, candidates)
	if len(matches) == 0 {
		return ""
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if m.Distance < best.Distance {
			best = m
		}
	}
	return best.Target
}

// Run executes prog from address 0 until pc reaches the end of the
// instruction vector, or until a builtin calls exit, or until an error is
// raised. A nil error and a non-negative exitCode both mean success; a
// negative exitCode with a nil error means the program ran off the end
// normally.
func (e *Executor) Run() (exitCode int, err error) {
	exitCode = -1
	for int(e.pc) < len(e.prog.Instrs) {
		instr := e.prog.Instrs[e.pc]
		code, runErr := e.step(instr)
		if runErr != nil {
			return 1, runErr
		}
		if code != nil {
			return *code, nil
		}
	}
	return exitCode, nil
}

// step executes one instruction, advancing pc unless the instruction itself
// sets it (Jump/JumpIfNot/Call/Return). A non-nil *int return means the
// program called exit with that code.
func (e *Executor) step(instr compiler.Instr) (*int, error) {
	next := e.pc + 1
	switch instr.Code {
	case compiler.SetSpan:
		e.spanID = int(instr.Addr)

	case compiler.Push:
		e.push(instr.Value)

	case compiler.PushString:
		e.push(compiler.Str(e.intern(instr.Text)))

	case compiler.PushBinding:
		v, ok := e.lookupBinding(instr.Name)
		if !ok {
			return nil, errInvalidSymbol(e.currentSpan(), instr.Name, suggest(instr.Name, e.knownNames()))
		}
		e.push(v)

	case compiler.SetVariable:
		v, err := e.pop("let")
		if err != nil {
			return nil, err
		}
		e.scope()[instr.Name] = v

	case compiler.SetDefinition:
		v, err := e.pop("def")
		if err != nil {
			return nil, errEmptyDefinition(e.currentSpan(), instr.Name)
		}
		e.definitions[instr.Name] = v

	case compiler.BeginScope:
		e.scopes = append(e.scopes, make(map[string]compiler.Value))

	case compiler.EndScope:
		e.scopes = e.scopes[:len(e.scopes)-1]

	case compiler.Dup:
		v, err := e.pop("dup")
		if err != nil {
			return nil, err
		}
		e.push(v)
		e.push(v)

	case compiler.Drop:
		if _, err := e.pop("drop"); err != nil {
			return nil, err
		}

	case compiler.Swap:
		vs, err := e.popN("swap", 2)
		if err != nil {
			return nil, err
		}
		e.push(vs[1])
		e.push(vs[0])

	case compiler.Over:
		vs, err := e.popN("over", 2)
		if err != nil {
			return nil, err
		}
		e.push(vs[0])
		e.push(vs[1])
		e.push(vs[0])

	case compiler.Rotate:
		vs, err := e.popN("rot", 3)
		if err != nil {
			return nil, err
		}
		e.push(vs[1])
		e.push(vs[2])
		e.push(vs[0])

	case compiler.ExecOp:
		if err := e.execOp(instr.Op); err != nil {
			return nil, err
		}

	case compiler.ExecBuiltin:
		code, err := e.execBuiltin(instr.Builtin)
		if err != nil {
			return nil, err
		}
		if code != nil {
			return code, nil
		}

	case compiler.Jump:
		next = instr.Addr

	case compiler.JumpIfNot:
		v, err := e.pop("if")
		if err != nil {
			return nil, err
		}
		if !v.Truthy() {
			next = instr.Addr
		}

	case compiler.Call:
		e.callStack = append(e.callStack, next)
		next = instr.Addr

	case compiler.Return:
		if len(e.callStack) == 0 {
			return nil, errStackUnderflow(e.currentSpan(), "return", 1)
		}
		next = e.callStack[len(e.callStack)-1]
		e.callStack = e.callStack[:len(e.callStack)-1]

	case compiler.BeginArray:
		e.arrayStarts = append(e.arrayStarts, len(e.stack))

	case compiler.EndArray:
		start := e.arrayStarts[len(e.arrayStarts)-1]
		e.arrayStarts = e.arrayStarts[:len(e.arrayStarts)-1]
		elems := make([]compiler.Value, len(e.stack)-start)
		copy(elems, e.stack[start:])
		e.stack = e.stack[:start]
		id := e.nextArray
		e.nextArray++
		e.arrays[id] = elems
		e.push(compiler.Arr(id))

	default:
		return nil, fmt.Errorf("unimplemented instruction %s", instr.Code)
	}
	e.pc = next
	return nil, nil
}
