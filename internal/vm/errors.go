package vm

import (
	"fmt"

	"github.com/marc-dantas/pile/internal/perr"
	"github.com/marc-dantas/pile/internal/token"
)

// The executor never recovers from any of these; the caller of Run formats
// and reports the first one it sees (spec §4.4.3).

func errStackUnderflow(span token.FileSpan, op string, expected int) *perr.Error {
	return perr.NewRuntime(span, fmt.Sprintf("stack underflow: `%s` expects %d value(s) on the stack", op, expected))
}

func errUnexpectedType(span token.FileSpan, op, wanted, got string) *perr.Error {
	return perr.NewRuntime(span, fmt.Sprintf("unexpected type for `%s`: expected %s but got %s", op, wanted, got))
}

func errInvalidSymbol(span token.FileSpan, name string, suggestion string) *perr.Error {
	e := perr.NewRuntime(span, fmt.Sprintf("invalid symbol `%s`: no such procedure, builtin, variable or definition", name))
	if suggestion != "" {
		e.WithHelp(fmt.Sprintf("did you mean `%s`?", suggestion))
	}
	return e
}

func errEmptyDefinition(span token.FileSpan, name string) *perr.Error {
	return perr.NewRuntime(span, fmt.Sprintf("empty definition `%s`: nothing on the stack to capture", name))
}

func errArrayOutOfBounds(span token.FileSpan, index, length int) *perr.Error {
	return perr.NewRuntime(span, fmt.Sprintf("array index %d out of bounds for array of length %d", index, length))
}

func errStringOutOfBounds(span token.FileSpan, index, length int) *perr.Error {
	return perr.NewRuntime(span, fmt.Sprintf("string index %d out of bounds for string of length %d", index, length))
}

func errDivisionByZero(span token.FileSpan, op string) *perr.Error {
	return perr.NewRuntime(span, fmt.Sprintf("division by zero in `%s`", op))
}

// wrapRuntime is the `Custom(message)` variant (spec §4.4.3): any I/O
// failure surfaced by a builtin is reported with its underlying cause.
func wrapRuntime(span token.FileSpan, message string, cause error) *perr.Error {
	return perr.Wrap(span, message, cause)
}
