// Package disasm renders a compiled Program as a human-readable instruction
// listing (spec §6) and a content fingerprint over that listing.
package disasm

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/marc-dantas/pile/internal/compiler"
)

// Listing formats one line per instruction:
//
//	  0xAAAAAAAAAAAAAAAA | <mnemonic>[ operand][ ; <file>:<line>:<col>]
//
// the trailing "; file:line:col" comment follows any setspan instruction,
// naming the span it just recorded.
func Listing(prog *compiler.Program) string {
	var b strings.Builder
	for addr, instr := range prog.Instrs {
		fmt.Fprintf(&b, "  0x%016X | %s", addr, instr.Code)
		if operand := instr.Operand(); operand != "" {
			b.WriteByte(' ')
			b.WriteString(operand)
		}
		if instr.Code == compiler.SetSpan {
			if int(instr.Addr) < len(prog.Spans) {
				fmt.Fprintf(&b, " ; %s", prog.Spans[instr.Addr])
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Fingerprint hashes each instruction's mnemonic and operand (a setspan's
// operand is its span id) with blake2b-256, the same content-hash role the
// teacher's plan writer gives contract hashes, repurposed here to let two
// disassembly dumps be compared for equality without a diff tool. The
// "; file:line:col" span comments are left out, so file paths do not
// affect the result.
func Fingerprint(prog *compiler.Program) string {
	h, _ := blake2b.New256(nil)
	for _, instr := range prog.Instrs {
		fmt.Fprintf(h, "%s %s\n", instr.Code, instr.Operand())
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Fprint writes the listing followed by a "; fingerprint <hex>" trailer.
func Fprint(w io.Writer, prog *compiler.Program) error {
	if _, err := io.WriteString(w, Listing(prog)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "; fingerprint %s\n", Fingerprint(prog))
	return err
}
