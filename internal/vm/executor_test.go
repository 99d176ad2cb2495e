package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marc-dantas/pile/internal/compiler"
	"github.com/marc-dantas/pile/internal/lexer"
	"github.com/marc-dantas/pile/internal/parser"
	"github.com/marc-dantas/pile/internal/perr"
)

type noImporter struct{}

func (noImporter) Load(path string) (string, error) { return "", nil }

func runSrc(t *testing.T, src string, opts ...Option) (stdout, stderr string, code int) {
	t.Helper()
	toks, err := lexer.All(lexer.New("t.pile", src))
	require.NoError(t, err)
	nodes, err := parser.Parse("t.pile", toks)
	require.NoError(t, err)
	prog, err := compiler.Compile(nodes, "t.pile", noImporter{})
	require.NoError(t, err)

	var outBuf, errBuf bytes.Buffer
	allOpts := append([]Option{WithStdout(&outBuf), WithStderr(&errBuf)}, opts...)
	exec := New(prog, allOpts...)
	code, runErr := exec.Run()
	require.NoError(t, runErr)
	return outBuf.String(), errBuf.String(), code
}

// TestScenarioAddAndPrintln is spec §8 scenario 1.
func TestScenarioAddAndPrintln(t *testing.T) {
	t.Parallel()
	stdout, _, code := runSrc(t, `1 2 + println`)
	assert.Equal(t, "3\n", stdout)
	assert.Equal(t, 0, code)
}

// TestScenarioProcCall is spec §8 scenario 2.
func TestScenarioProcCall(t *testing.T) {
	t.Parallel()
	stdout, _, _ := runSrc(t, `proc sq dup * end 5 sq println`)
	assert.Equal(t, "25\n", stdout)
}

// TestScenarioAsLetBindsTopValues is the first half of spec §8 scenario 3:
// a and b bind 3 and 4 inside the block. The second half, that the names do
// not leak out of the as..let scope, is TestScenarioAsLetLeakCausesInvalidSymbol.
func TestScenarioAsLetBindsTopValues(t *testing.T) {
	t.Parallel()
	stdout, _, _ := runSrc(t, `3 4 as a b let a b + end println`)
	assert.Equal(t, "7\n", stdout)
}

func TestScenarioAsLetLeakCausesInvalidSymbol(t *testing.T) {
	t.Parallel()

	toks, err := lexer.All(lexer.New("t.pile", `3 4 as a b let a b + end a`))
	require.NoError(t, err)
	nodes, err := parser.Parse("t.pile", toks)
	require.NoError(t, err)
	prog, err := compiler.Compile(nodes, "t.pile", noImporter{})
	require.NoError(t, err)

	exec := New(prog, WithStdout(&bytes.Buffer{}), WithStderr(&bytes.Buffer{}))
	_, runErr := exec.Run()
	require.Error(t, runErr, "`a` must not be visible once its as..let block has closed")
}

// TestScenarioArrayIndex is spec §8 scenario 4.
func TestScenarioArrayIndex(t *testing.T) {
	t.Parallel()
	stdout, _, _ := runSrc(t, `array 10 20 30 end 1 @ println`)
	assert.Equal(t, "20\n", stdout)
}

// TestScenarioDivisionByZero is spec §8 scenario 5.
func TestScenarioDivisionByZero(t *testing.T) {
	t.Parallel()

	toks, err := lexer.All(lexer.New("t.pile", `10 0 /`))
	require.NoError(t, err)
	nodes, err := parser.Parse("t.pile", toks)
	require.NoError(t, err)
	prog, err := compiler.Compile(nodes, "t.pile", noImporter{})
	require.NoError(t, err)

	exec := New(prog, WithStdout(&bytes.Buffer{}), WithStderr(&bytes.Buffer{}))
	_, runErr := exec.Run()
	require.Error(t, runErr)
	assert.Contains(t, strings.ToLower(runErr.Error()), "division by zero")
}

// TestScenarioLoopBreak is spec §8 scenario 6.
func TestScenarioLoopBreak(t *testing.T) {
	t.Parallel()
	stdout, _, _ := runSrc(t, `loop 1 break end 42 println`)
	assert.Equal(t, "42\n", stdout)
}

// TestStackPrimitives verifies dup/drop/swap/over/rot against their
// documented stack effects (spec's P5).
func TestStackPrimitives(t *testing.T) {
	t.Parallel()

	stdout, _, _ := runSrc(t, `1 dup + println`)
	assert.Equal(t, "2\n", stdout)

	stdout, _, _ = runSrc(t, `1 2 swap println println`)
	assert.Equal(t, "1\n2\n", stdout)

	stdout, _, _ = runSrc(t, `1 2 over println println println`)
	assert.Equal(t, "1\n2\n1\n", stdout)

	stdout, _, _ = runSrc(t, `1 2 3 rot println println println`)
	assert.Equal(t, "1\n3\n2\n", stdout)
}

// TestStringIntern verifies two identical string literals intern to the
// same id (spec's P4), observable via `=` comparing equal.
func TestStringIntern(t *testing.T) {
	t.Parallel()
	stdout, _, _ := runSrc(t, `"hi" "hi" = println`)
	assert.Equal(t, "true\n", stdout)
}

// TestRecursiveProcedure verifies a procedure can call itself before its
// own compilation finishes (spec's forward-jump / procs-map design).
func TestRecursiveProcedure(t *testing.T) {
	t.Parallel()
	stdout, _, _ := runSrc(t, `
proc countdown
  dup 0 <= if drop else dup println 1 - countdown end
end
3 countdown
`)
	assert.Equal(t, "3\n2\n1\n", stdout)
}

// TestBuiltinTypeConversions exercises toint/tofloat/tostring/tobool and
// round-trips per spec's P6.
func TestBuiltinTypeConversions(t *testing.T) {
	t.Parallel()

	stdout, _, _ := runSrc(t, `42 tostring toint println`)
	assert.Equal(t, "42\n", stdout)

	stdout, _, _ = runSrc(t, `"3.5" tofloat println`)
	assert.Equal(t, "3.5\n", stdout)

	stdout, _, _ = runSrc(t, `"nope" toint println`)
	assert.Equal(t, "nil\n", stdout)

	stdout, _, _ = runSrc(t, `0 tobool println`)
	assert.Equal(t, "false\n", stdout)
}

// TestArrayStoreAt verifies `!` mutates the array in place and the
// mutation is visible through a later `@`.
func TestArrayStoreAt(t *testing.T) {
	t.Parallel()
	stdout, _, _ := runSrc(t, `array 1 2 3 end let xs xs 0 99 ! xs 0 @ println`)
	assert.Equal(t, "99\n", stdout)
}

// TestArrayOutOfBoundsIsReported verifies an out-of-range index is a typed
// runtime error, not a panic.
func TestArrayOutOfBoundsIsReported(t *testing.T) {
	t.Parallel()

	toks, err := lexer.All(lexer.New("t.pile", `array 1 2 end 5 @`))
	require.NoError(t, err)
	nodes, err := parser.Parse("t.pile", toks)
	require.NoError(t, err)
	prog, err := compiler.Compile(nodes, "t.pile", noImporter{})
	require.NoError(t, err)

	exec := New(prog, WithStdout(&bytes.Buffer{}), WithStderr(&bytes.Buffer{}))
	_, runErr := exec.Run()
	require.Error(t, runErr)
	assert.Contains(t, strings.ToLower(runErr.Error()), "out of bounds")
}

// TestDefRunsBodyOnceAndBindsName verifies a def's body executes exactly
// once, at compile-reachable time, and is thereafter a plain binding.
func TestDefRunsBodyOnceAndBindsName(t *testing.T) {
	t.Parallel()
	stdout, _, _ := runSrc(t, `def greeting "hello" end greeting println greeting println`)
	assert.Equal(t, "hello\nhello\n", stdout)
}

// TestExitStopsExecutionWithCode verifies `exit` halts the program
// immediately with the popped code, skipping later instructions.
func TestExitStopsExecutionWithCode(t *testing.T) {
	t.Parallel()

	toks, err := lexer.All(lexer.New("t.pile", `1 println 7 exit 2 println`))
	require.NoError(t, err)
	nodes, err := parser.Parse("t.pile", toks)
	require.NoError(t, err)
	prog, err := compiler.Compile(nodes, "t.pile", noImporter{})
	require.NoError(t, err)

	var out bytes.Buffer
	exec := New(prog, WithStdout(&out), WithStderr(&bytes.Buffer{}))
	code, runErr := exec.Run()
	require.NoError(t, runErr)
	assert.Equal(t, 7, code)
	assert.Equal(t, "1\n", out.String())
}

// TestTraceDoesNotPopTheStack verifies trace inspects without consuming.
func TestTraceDoesNotPopTheStack(t *testing.T) {
	t.Parallel()
	stdout, stderr, _ := runSrc(t, `5 trace println`)
	assert.Equal(t, "5\n", stdout)
	assert.Contains(t, stderr, "int(5)")
}

// TestInvalidSymbolSuggestsClosestName verifies the fuzzy "did you mean"
// help text fires for a near-miss binding name.
func TestInvalidSymbolSuggestsClosestName(t *testing.T) {
	t.Parallel()

	toks, err := lexer.All(lexer.New("t.pile", `0 let counter counte`))
	require.NoError(t, err)
	nodes, err := parser.Parse("t.pile", toks)
	require.NoError(t, err)
	prog, err := compiler.Compile(nodes, "t.pile", noImporter{})
	require.NoError(t, err)

	exec := New(prog, WithStdout(&bytes.Buffer{}), WithStderr(&bytes.Buffer{}))
	_, runErr := exec.Run()
	require.Error(t, runErr)
	pe, ok := runErr.(*perr.Error)
	require.True(t, ok)
	assert.Contains(t, pe.Help, "counter")
}
