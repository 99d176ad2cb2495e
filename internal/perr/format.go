package perr

import (
	"fmt"
	"io"
	"strings"
)

// wrapWidth mirrors spec §7: diagnostics wrap their message around 50 cols.
const wrapWidth = 50

// Formatter renders a diagnostic as:
//
//	pile: error at file:line:col:
//	    |    stage:
//	    |        wrapped message
//	    +    wrapped help
//
// the same shape the original implementation's throw() produces, carried
// forward so a reader of either pipeline sees the same diagnostic.
type Formatter struct {
	Color bool
}

func (f Formatter) Format(err *Error) string {
	stage := string(err.Stage)
	if f.Color {
		stage = "\x1b[31m" + stage + "\x1b[0m"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "pile: error at %s:\n", err.Span)
	fmt.Fprintf(&b, "    |    %s:\n", stage)
	for _, line := range wrap(err.Message, wrapWidth) {
		fmt.Fprintf(&b, "    |        %s\n", line)
	}
	for _, line := range wrap(err.Help, wrapWidth) {
		fmt.Fprintf(&b, "    +    %s\n", line)
	}
	return b.String()
}

// Fprint writes the formatted error to w.
func (f Formatter) Fprint(w io.Writer, err *Error) {
	fmt.Fprint(w, f.Format(err))
}

func wrap(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			lines = append(lines, line)
			line = w
			continue
		}
		line += " " + w
	}
	return append(lines, line)
}
