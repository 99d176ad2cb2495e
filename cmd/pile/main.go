// Command pile runs Pile source files: lex, parse, compile and execute, or
// stop early to print the tree (-P) or the instruction listing (-D).
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marc-dantas/pile/internal/ast"
	"github.com/marc-dantas/pile/internal/compiler"
	"github.com/marc-dantas/pile/internal/disasm"
	"github.com/marc-dantas/pile/internal/lexer"
	"github.com/marc-dantas/pile/internal/parser"
	"github.com/marc-dantas/pile/internal/perr"
	"github.com/marc-dantas/pile/internal/vm"
)

// version is overridable at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		parseOnly   bool
		disassemble bool
		showVersion bool
		importPaths []string
	)

	root := &cobra.Command{
		Use:           "pile <program.pile>",
		Short:         "Run a Pile program",
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Printf("pile %s\n", version)
				return nil
			}
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one program path, got %d", len(args))
			}
			return execute(args[0], importPaths, parseOnly, disassemble)
		},
	}
	root.Flags().BoolVarP(&parseOnly, "parse-only", "P", false, "print the parsed tree and exit")
	root.Flags().BoolVarP(&disassemble, "disassemble", "D", false, "print the compiled instruction listing and exit")
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "print the version and exit")
	root.Flags().StringArrayVarP(&importPaths, "import", "I", nil, "additional import search path (repeatable)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}

// exitCode is set by execute: 1 after a read, token, parse, compile or
// runtime error, otherwise the status the program passed to `exit` (0 when
// it runs off the end). cobra's Execute reports only flag errors and a wrong
// argument count.
var exitCode int

func execute(path string, importPaths []string, parseOnly, disassemble bool) error {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pile: cannot read %q: %v\n", path, err)
		exitCode = 1
		return nil
	}

	toks, err := lexer.All(lexer.New(path, string(src)))
	if err != nil {
		report(err)
		exitCode = 1
		return nil
	}

	nodes, err := parser.Parse(path, toks)
	if err != nil {
		report(err)
		exitCode = 1
		return nil
	}

	if parseOnly {
		printTree(os.Stdout, nodes, 0)
		exitCode = 0
		return nil
	}

	imp := &fileImporter{searchPaths: append(append([]string{}, importPaths...), filepath.Dir(path))}
	prog, err := compiler.Compile(nodes, path, imp)
	if err != nil {
		report(err)
		exitCode = 1
		return nil
	}

	if disassemble {
		disasm.Fprint(os.Stdout, prog)
		exitCode = 0
		return nil
	}

	executor := vm.New(prog)
	code, runErr := executor.Run()
	if runErr != nil {
		report(runErr)
		exitCode = 1
		return nil
	}
	if code < 0 {
		code = 0
	}
	exitCode = code
	return nil
}

func report(err error) {
	if pe, ok := err.(*perr.Error); ok {
		(perr.Formatter{Color: isTerminal(os.Stderr)}).Fprint(os.Stderr, pe)
		return
	}
	fmt.Fprintln(os.Stderr, err)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// fileImporter resolves `import "path"` nodes against a caller-supplied
// list of search directories plus the main program file's directory
// (spec §6: "Import search paths come from -I flags plus a caller-supplied
// default list").
type fileImporter struct {
	searchPaths []string
}

func (f *fileImporter) Load(path string) (string, error) {
	if filepath.IsAbs(path) {
		b, err := os.ReadFile(path)
		return string(b), err
	}
	var firstErr error
	for _, dir := range f.searchPaths {
		full := filepath.Join(dir, path)
		b, err := os.ReadFile(full)
		if err == nil {
			return string(b), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return "", firstErr
}

func printTree(w *os.File, nodes []ast.Node, depth int) {
	for _, n := range nodes {
		printNode(w, n, depth)
	}
}

func printNode(w *os.File, n ast.Node, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	switch node := n.(type) {
	case *ast.IntLit:
		fmt.Fprintf(w, "%sIntLit(%d)\n", indent, node.Value)
	case *ast.FloatLit:
		fmt.Fprintf(w, "%sFloatLit(%g)\n", indent, node.Value)
	case *ast.StringLit:
		fmt.Fprintf(w, "%sStringLit(%q)\n", indent, node.Value)
	case *ast.Symbol:
		fmt.Fprintf(w, "%sSymbol(%s)\n", indent, node.Name)
	case *ast.Let:
		fmt.Fprintf(w, "%sLet(%s)\n", indent, node.Name)
	case *ast.Operation:
		fmt.Fprintf(w, "%sOperation(%s)\n", indent, node.Kind)
	case *ast.Proc:
		fmt.Fprintf(w, "%sProc(%s)\n", indent, node.Name)
		printTree(w, node.Body, depth+1)
	case *ast.Def:
		fmt.Fprintf(w, "%sDef(%s)\n", indent, node.Name)
		printTree(w, node.Body, depth+1)
	case *ast.If:
		fmt.Fprintf(w, "%sIf\n", indent)
		printTree(w, node.Then, depth+1)
		if node.Else != nil {
			fmt.Fprintf(w, "%sElse\n", indent)
			printTree(w, node.Else, depth+1)
		}
	case *ast.Loop:
		fmt.Fprintf(w, "%sLoop\n", indent)
		printTree(w, node.Body, depth+1)
	case *ast.Array:
		fmt.Fprintf(w, "%sArray\n", indent)
		printTree(w, node.Body, depth+1)
	case *ast.AsLet:
		fmt.Fprintf(w, "%sAsLet(%v)\n", indent, node.Vars)
		printTree(w, node.Body, depth+1)
	case *ast.For:
		fmt.Fprintf(w, "%sFor(%s)\n", indent, node.Var)
		printTree(w, node.Body, depth+1)
	case *ast.Import:
		fmt.Fprintf(w, "%sImport(%q)\n", indent, node.Path)
	default:
		fmt.Fprintf(w, "%s?node\n", indent)
	}
}
