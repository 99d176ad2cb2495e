package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marc-dantas/pile/internal/lexer"
	"github.com/marc-dantas/pile/internal/parser"
)

type noImporter struct{}

func (noImporter) Load(path string) (string, error) { return "", nil }

func compileSrc(t *testing.T, src string) *Program {
	t.Helper()
	toks, err := lexer.All(lexer.New("t.pile", src))
	require.NoError(t, err)
	nodes, err := parser.Parse("t.pile", toks)
	require.NoError(t, err)
	prog, err := Compile(nodes, "t.pile", noImporter{})
	require.NoError(t, err)
	return prog
}

func codes(prog *Program) []Code {
	out := make([]Code, len(prog.Instrs))
	for i, ins := range prog.Instrs {
		out[i] = ins.Code
	}
	return out
}

// TestCompileWrapsProgramInScope verifies the whole program is bracketed in
// BeginScope/EndScope, per spec §4.3's closing rule.
func TestCompileWrapsProgramInScope(t *testing.T) {
	t.Parallel()

	prog := compileSrc(t, `1 2 +`)
	require.NotEmpty(t, prog.Instrs)
	assert.Equal(t, BeginScope, prog.Instrs[0].Code)
	assert.Equal(t, EndScope, prog.Instrs[len(prog.Instrs)-1].Code)
}

// TestCompileIfBackpatchesBothJumps verifies JumpIfNot lands on the else
// branch (or the end, with no else) and the then-branch's closing Jump
// lands after the whole if.
func TestCompileIfBackpatchesBothJumps(t *testing.T) {
	t.Parallel()

	prog := compileSrc(t, `if 1 else 2 end`)

	var jumpIfNot, jumpEnd *Instr
	for i := range prog.Instrs {
		switch prog.Instrs[i].Code {
		case JumpIfNot:
			jumpIfNot = &prog.Instrs[i]
		case Jump:
			if jumpEnd == nil {
				jumpEnd = &prog.Instrs[i]
			}
		}
	}
	require.NotNil(t, jumpIfNot)
	require.NotNil(t, jumpEnd)
	assert.True(t, int(jumpIfNot.Addr) <= len(prog.Instrs))
	assert.True(t, int(jumpEnd.Addr) <= len(prog.Instrs))
	assert.NotEqual(t, Addr(0), jumpIfNot.Addr)
}

// TestCompileProcEmitsForwardJumpAndReturn verifies a proc is compiled as a
// skip-jump, a scoped body, and a trailing Return, with the skip backpatched
// past the body.
func TestCompileProcEmitsForwardJumpAndReturn(t *testing.T) {
	t.Parallel()

	prog := compileSrc(t, `proc sq dup * end 5 sq`)

	var skip, call *Instr
	for i := range prog.Instrs {
		switch prog.Instrs[i].Code {
		case Jump:
			if skip == nil {
				skip = &prog.Instrs[i]
			}
		case Call:
			call = &prog.Instrs[i]
		}
	}
	require.NotNil(t, skip, "proc compiles to a forward skip-jump over its body")
	require.NotNil(t, call)

	skipTarget := skip.Addr
	require.True(t, int(skipTarget) > 0 && int(skipTarget) <= len(prog.Instrs))
	assert.Equal(t, Return, prog.Instrs[skipTarget-1].Code, "skip-jump lands right after the body's Return")
	assert.Less(t, call.Addr, skipTarget, "the call's entry address lies inside the skipped body range")
}

// TestCompileLoopBackpatchesBreak verifies a break inside a loop resolves
// to the instruction right after the loop's closing jump, and that the
// loop's own jump returns to loop_start.
func TestCompileLoopBackpatchesBreak(t *testing.T) {
	t.Parallel()

	prog := compileSrc(t, `loop 1 break end 42`)

	var loopJump *Instr
	var breakJump *Instr
	loopJumpAt := -1
	seenJumps := 0
	for i := range prog.Instrs {
		if prog.Instrs[i].Code == Jump {
			seenJumps++
			if seenJumps == 1 {
				breakJump = &prog.Instrs[i]
			} else if seenJumps == 2 {
				loopJump = &prog.Instrs[i]
				loopJumpAt = i
			}
		}
	}
	require.NotNil(t, breakJump)
	require.NotNil(t, loopJump)
	assert.Equal(t, Addr(loopJumpAt+1), breakJump.Addr, "break lands just past the loop's closing jump")
	// loop_start is the first instruction after the program's BeginScope.
	assert.Equal(t, Addr(1), loopJump.Addr, "the loop's closing jump returns to loop_start")
}

// TestCompileBreakOutsideLoopIsElided verifies a break with no enclosing
// loop produces no Jump instruction at all (spec §4.3: "silently elided").
func TestCompileBreakOutsideLoopIsElided(t *testing.T) {
	t.Parallel()

	prog := compileSrc(t, `break 1`)
	for _, ins := range prog.Instrs {
		assert.NotEqual(t, Jump, ins.Code)
	}
}

// TestCompileAsLetBindsVariablesInReverse verifies the SetVariable
// instructions come in reverse declaration order, so the rightmost declared
// name binds the value that was on top of the stack.
func TestCompileAsLetBindsVariablesInReverse(t *testing.T) {
	t.Parallel()

	prog := compileSrc(t, `as a b let a end`)

	var names []string
	for _, ins := range prog.Instrs {
		if ins.Code == SetVariable {
			names = append(names, ins.Name)
		}
	}
	require.Equal(t, []string{"b", "a"}, names)
}

// TestCompileSymbolDispatch verifies a bare word resolves, at compile
// time, to a Call when it names a known proc, to ExecBuiltin when it names
// a builtin, and otherwise to PushBinding.
func TestCompileSymbolDispatch(t *testing.T) {
	t.Parallel()

	prog := compileSrc(t, `proc greet end greet println somevar`)
	var sawCall, sawBuiltin, sawBinding bool
	for _, ins := range prog.Instrs {
		switch ins.Code {
		case Call:
			sawCall = true
		case ExecBuiltin:
			sawBuiltin = true
		case PushBinding:
			if ins.Name == "somevar" {
				sawBinding = true
			}
		}
	}
	assert.True(t, sawCall)
	assert.True(t, sawBuiltin)
	assert.True(t, sawBinding)
}
