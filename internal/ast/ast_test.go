package ast

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/marc-dantas/pile/internal/token"
)

func kindOf(n Node) string {
	switch v := n.(type) {
	case *IntLit:
		return fmt.Sprintf("IntLit(%d)", v.Value)
	case *Symbol:
		return fmt.Sprintf("Symbol(%s)", v.Name)
	case *Operation:
		return fmt.Sprintf("Operation(%s)", v.Kind)
	case *Proc:
		return fmt.Sprintf("Proc(%s)", v.Name)
	case *If:
		return "If"
	default:
		return fmt.Sprintf("%T", n)
	}
}

// walkKinds flattens a tree into its node-kind sequence in source order,
// the shape a structural diff over two trees actually wants to compare
// (spans differ by construction; the shape shouldn't).
func walkKinds(nodes []Node) []string {
	var out []string
	for _, n := range nodes {
		Walk(n, func(n Node) bool {
			out = append(out, kindOf(n))
			return true
		})
	}
	return out
}

// TestWalkVisitsChildrenInSourceOrder verifies Walk descends into every
// block body in order, and that two trees built identically except for
// their file/span produce the same shape (compared with go-cmp rather
// than field-by-field, since spans are deliberately excluded).
func TestWalkVisitsChildrenInSourceOrder(t *testing.T) {
	t.Parallel()

	buildTree := func(file string) []Node {
		return []Node{
			NewProc(token.FileSpan{File: file, Span: token.Span{Line: 1, Col: 1}}, "sq", []Node{
				NewOperation(token.FileSpan{File: file, Span: token.Span{Line: 2, Col: 1}}, Dup),
				NewOperation(token.FileSpan{File: file, Span: token.Span{Line: 2, Col: 5}}, Mul),
			}),
			NewIntLit(token.FileSpan{File: file, Span: token.Span{Line: 3, Col: 1}}, 5),
			NewSymbol(token.FileSpan{File: file, Span: token.Span{Line: 3, Col: 3}}, "sq"),
		}
	}

	a := walkKinds(buildTree("a.pile"))
	b := walkKinds(buildTree("b.pile"))

	require.NotEmpty(t, a)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("tree shape differs despite only filenames changing (-a +b):\n%s", diff)
	}

	want := []string{"Proc(sq)", "Operation(dup)", "Operation(*)", "IntLit(5)", "Symbol(sq)"}
	if diff := cmp.Diff(want, a); diff != "" {
		t.Fatalf("unexpected tree shape (-want +got):\n%s", diff)
	}
}
