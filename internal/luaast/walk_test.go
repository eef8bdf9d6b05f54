// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luaast

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestInspect(t *testing.T) {
	chunk := &Chunk{Body: []Stmt{
		&LocalStmt{
			Names:  []*Ident{{Name: "a"}},
			Values: []Expr{&BinaryExpr{Op: OpAdd, Left: &Ident{Name: "b"}, Right: &Ident{Name: "c"}}},
		},
		&FunctionStmt{
			Name: &MemberExpr{Object: &Ident{Name: "t"}, Key: &StringLit{Raw: "f"}},
			Func: &FunctionExpr{
				Params: []*Ident{{Name: "x"}},
				Body: []Stmt{
					&ReturnStmt{Values: []Expr{&CallExpr{
						Callee: &Ident{Name: "g"},
						Method: &Ident{Name: "m"},
						Args:   []Expr{&Ident{Name: "x"}},
					}}},
				},
			},
		},
		&NumericForStmt{
			Var:   &Ident{Name: "i"},
			Init:  &NumberLit{Raw: "1"},
			Limit: &Ident{Name: "n"},
			Body: []Stmt{
				&IfStmt{
					Cond: &Ident{Name: "i"},
					Else: &BlockStmt{Body: []Stmt{&BreakStmt{}}},
				},
			},
		},
	}}

	var names []string
	Inspect(chunk, func(n Node) bool {
		if id, ok := n.(*Ident); ok {
			names = append(names, id.Name)
		}
		return true
	})
	want := []string{"a", "b", "c", "t", "x", "g", "m", "x", "i", "n", "i"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("identifiers visited (-want +got):\n%s", diff)
	}
}

func TestInspectPrune(t *testing.T) {
	chunk := &Chunk{Body: []Stmt{
		&CallStmt{Call: &CallExpr{
			Callee: &Ident{Name: "f"},
			Args: []Expr{&FunctionExpr{Body: []Stmt{
				&CallStmt{Call: &CallExpr{Callee: &Ident{Name: "inner"}}},
			}}},
		}},
	}}

	var names []string
	Inspect(chunk, func(n Node) bool {
		switch n := n.(type) {
		case *FunctionExpr:
			return false
		case *Ident:
			names = append(names, n.Name)
		}
		return true
	})
	if diff := cmp.Diff([]string{"f"}, names); diff != "" {
		t.Errorf("identifiers visited (-want +got):\n%s", diff)
	}
}

func TestIsMultiValued(t *testing.T) {
	tests := []struct {
		e    Expr
		want bool
	}{
		{&CallExpr{Callee: &Ident{Name: "f"}}, true},
		{&VarargExpr{}, true},
		{&ParenExpr{Inner: &VarargExpr{}}, false},
		{&Ident{Name: "f"}, false},
	}
	for _, test := range tests {
		if got := IsMultiValued(test.e); got != test.want {
			t.Errorf("IsMultiValued(%T) = %t; want %t", test.e, got, test.want)
		}
	}
}
