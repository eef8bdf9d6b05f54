// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luaast

import "fmt"

// A Visitor's Visit method is invoked for each node encountered by [Walk].
// If the result visitor w is not nil,
// Walk visits each of the children of node with the visitor w,
// followed by a call of w.Visit(nil).
type Visitor interface {
	Visit(node Node) (w Visitor)
}

// Walk traverses a syntax tree in depth-first order.
// It starts by calling v.Visit(node); node must not be nil.
// Children are visited in source order.
func Walk(v Visitor, node Node) {
	if v = v.Visit(node); v == nil {
		return
	}

	switch n := node.(type) {
	case *Chunk:
		walkStmts(v, n.Body)
	case *AssignStmt:
		walkExprs(v, n.Targets)
		walkExprs(v, n.Values)
	case *CallStmt:
		Walk(v, n.Call)
	case *LocalStmt:
		for _, name := range n.Names {
			Walk(v, name)
		}
		walkExprs(v, n.Values)
	case *FunctionStmt:
		Walk(v, n.Name)
		Walk(v, n.Func)
	case *DoStmt:
		walkStmts(v, n.Body)
	case *WhileStmt:
		Walk(v, n.Cond)
		walkStmts(v, n.Body)
	case *RepeatStmt:
		walkStmts(v, n.Body)
		Walk(v, n.Cond)
	case *IfStmt:
		Walk(v, n.Cond)
		walkStmts(v, n.Then)
		if n.Else != nil {
			Walk(v, n.Else)
		}
	case *BlockStmt:
		walkStmts(v, n.Body)
	case *NumericForStmt:
		Walk(v, n.Var)
		Walk(v, n.Init)
		Walk(v, n.Limit)
		if n.Step != nil {
			Walk(v, n.Step)
		}
		walkStmts(v, n.Body)
	case *GenericForStmt:
		for _, name := range n.Names {
			Walk(v, name)
		}
		walkExprs(v, n.Exprs)
		walkStmts(v, n.Body)
	case *ReturnStmt:
		walkExprs(v, n.Values)
	case *BreakStmt:
		// No children.

	case *Ident, *NilLit, *BoolLit, *NumberLit, *StringLit, *VarargExpr:
		// Leaves.
	case *FunctionExpr:
		for _, param := range n.Params {
			Walk(v, param)
		}
		walkStmts(v, n.Body)
	case *BinaryExpr:
		Walk(v, n.Left)
		Walk(v, n.Right)
	case *UnaryExpr:
		Walk(v, n.Operand)
	case *MemberExpr:
		Walk(v, n.Object)
		Walk(v, n.Key)
	case *CallExpr:
		Walk(v, n.Callee)
		if n.Method != nil {
			Walk(v, n.Method)
		}
		walkExprs(v, n.Args)
	case *ParenExpr:
		Walk(v, n.Inner)
	case *TableExpr:
		for _, f := range n.Fields {
			Walk(v, f)
		}
	case *TableField:
		Walk(v, n.Key)
		Walk(v, n.Value)
	default:
		panic(fmt.Sprintf("luaast.Walk: unexpected node type %T", n))
	}

	v.Visit(nil)
}

func walkStmts(v Visitor, list []Stmt) {
	for _, s := range list {
		Walk(v, s)
	}
}

func walkExprs(v Visitor, list []Expr) {
	for _, e := range list {
		Walk(v, e)
	}
}

type inspector func(Node) bool

func (f inspector) Visit(node Node) Visitor {
	if f(node) {
		return f
	}
	return nil
}

// Inspect traverses a syntax tree in depth-first order:
// It starts by calling f(node); node must not be nil.
// If f returns true, Inspect invokes f recursively
// for each of the non-nil children of node,
// followed by a call of f(nil).
func Inspect(node Node, f func(Node) bool) {
	Walk(inspector(f), node)
}
