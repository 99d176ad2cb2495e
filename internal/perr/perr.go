// Package perr is Pile's single error type: every token, parse and runtime
// failure in the pipeline carries a file location and an optional help line,
// the way pkgs/errors.DevCmdError in the teacher carries a type, a message
// and free-form context, specialised here to the one piece of context every
// Pile diagnostic actually needs.
package perr

import (
	"fmt"

	"github.com/marc-dantas/pile/internal/token"
)

// Stage identifies which pipeline phase raised the error.
type Stage string

const (
	StageToken   Stage = "token error"
	StageParse   Stage = "parse error"
	StageRuntime Stage = "runtime error"
)

// Error is the diagnostic carried out of the lexer, parser and executor.
type Error struct {
	Stage   Stage
	Span    token.FileSpan
	Message string
	Help    string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s (caused by: %v)", e.Span, e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Span, e.Stage, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithHelp attaches a one-line suggestion to the error and returns it.
func (e *Error) WithHelp(help string) *Error {
	e.Help = help
	return e
}

// NewToken builds a lexer diagnostic.
func NewToken(span token.FileSpan, message string) *Error {
	return &Error{Stage: StageToken, Span: span, Message: message}
}

// NewParse builds a parser diagnostic.
func NewParse(span token.FileSpan, message string) *Error {
	return &Error{Stage: StageParse, Span: span, Message: message}
}

// NewRuntime builds an executor diagnostic.
func NewRuntime(span token.FileSpan, message string) *Error {
	return &Error{Stage: StageRuntime, Span: span, Message: message}
}

// Wrap builds a runtime diagnostic around an I/O (or other) failure, the
// "Custom(message)" variant from spec §4.4.3.
func Wrap(span token.FileSpan, message string, cause error) *Error {
	return &Error{Stage: StageRuntime, Span: span, Message: message, Cause: cause}
}
