// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luaast

import (
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-yaml"
)

// Dump writes a YAML rendering of the tree rooted at c to w.
// Each node becomes a mapping whose first key is "type".
// Literals are rendered as written in the source.
func Dump(w io.Writer, c *Chunk) error {
	data, err := yaml.Marshal(dumpNode(c))
	if err != nil {
		return fmt.Errorf("dump syntax tree: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("dump syntax tree: %w", err)
	}
	return nil
}

func dumpNode(node Node) any {
	switch n := node.(type) {
	case nil:
		return nil
	case *Chunk:
		return yaml.MapSlice{
			{Key: "type", Value: "Chunk"},
			{Key: "body", Value: dumpStmts(n.Body)},
		}
	case *AssignStmt:
		return yaml.MapSlice{
			{Key: "type", Value: "AssignStmt"},
			{Key: "left", Value: dumpExprs(n.Targets)},
			{Key: "right", Value: dumpExprs(n.Values)},
		}
	case *CallStmt:
		m := dumpNode(n.Call).(yaml.MapSlice)
		m[0].Value = "CallStmt"
		return m
	case *LocalStmt:
		names := make([]any, 0, len(n.Names))
		for _, name := range n.Names {
			names = append(names, dumpNode(name))
		}
		return yaml.MapSlice{
			{Key: "type", Value: "VarDecStmt"},
			{Key: "nameList", Value: names},
			{Key: "exprList", Value: dumpExprs(n.Values)},
		}
	case *FunctionStmt:
		return yaml.MapSlice{
			{Key: "type", Value: "FunDecStmt"},
			{Key: "id", Value: dumpNode(n.Name)},
			{Key: "method", Value: n.Method},
			{Key: "params", Value: dumpParams(n.Func)},
			{Key: "body", Value: dumpStmts(n.Func.Body)},
			{Key: "isLocal", Value: n.Local},
		}
	case *DoStmt:
		return yaml.MapSlice{
			{Key: "type", Value: "DoStmt"},
			{Key: "body", Value: dumpStmts(n.Body)},
		}
	case *WhileStmt:
		return yaml.MapSlice{
			{Key: "type", Value: "WhileStmt"},
			{Key: "test", Value: dumpNode(n.Cond)},
			{Key: "body", Value: dumpStmts(n.Body)},
		}
	case *RepeatStmt:
		return yaml.MapSlice{
			{Key: "type", Value: "RepeatStmt"},
			{Key: "body", Value: dumpStmts(n.Body)},
			{Key: "test", Value: dumpNode(n.Cond)},
		}
	case *IfStmt:
		var alt any
		if n.Else != nil {
			alt = dumpNode(n.Else)
		}
		return yaml.MapSlice{
			{Key: "type", Value: "IfStmt"},
			{Key: "test", Value: dumpNode(n.Cond)},
			{Key: "then", Value: dumpStmts(n.Then)},
			{Key: "else", Value: alt},
		}
	case *BlockStmt:
		return yaml.MapSlice{
			{Key: "type", Value: "BlockStmt"},
			{Key: "body", Value: dumpStmts(n.Body)},
		}
	case *NumericForStmt:
		init := yaml.MapSlice{
			{Key: "type", Value: "AssignExpr"},
			{Key: "left", Value: []any{dumpNode(n.Var)}},
			{Key: "right", Value: []any{dumpNode(n.Init)}},
		}
		var step any
		if n.Step != nil {
			step = dumpNode(n.Step)
		}
		return yaml.MapSlice{
			{Key: "type", Value: "ForStmt"},
			{Key: "init", Value: []any{init, dumpNode(n.Limit), step}},
			{Key: "body", Value: dumpStmts(n.Body)},
		}
	case *GenericForStmt:
		names := make([]any, 0, len(n.Names))
		for _, name := range n.Names {
			names = append(names, dumpNode(name))
		}
		return yaml.MapSlice{
			{Key: "type", Value: "ForInStmt"},
			{Key: "nameList", Value: names},
			{Key: "exprList", Value: dumpExprs(n.Exprs)},
			{Key: "body", Value: dumpStmts(n.Body)},
		}
	case *ReturnStmt:
		return yaml.MapSlice{
			{Key: "type", Value: "ReturnStmt"},
			{Key: "body", Value: dumpExprs(n.Values)},
		}
	case *BreakStmt:
		return yaml.MapSlice{{Key: "type", Value: "BreakStmt"}}

	case *Ident:
		return yaml.MapSlice{
			{Key: "type", Value: "Id"},
			{Key: "value", Value: n.Name},
		}
	case *NilLit:
		return yaml.MapSlice{{Key: "type", Value: "Nil"}}
	case *BoolLit:
		return yaml.MapSlice{
			{Key: "type", Value: "Boolean"},
			{Key: "value", Value: n.Value},
		}
	case *NumberLit:
		return yaml.MapSlice{
			{Key: "type", Value: "Number"},
			{Key: "value", Value: n.Raw},
		}
	case *StringLit:
		return yaml.MapSlice{
			{Key: "type", Value: "String"},
			{Key: "value", Value: quoted(n.Raw)},
		}
	case *VarargExpr:
		return yaml.MapSlice{{Key: "type", Value: "VarArg"}}
	case *FunctionExpr:
		return yaml.MapSlice{
			{Key: "type", Value: "FunDecExpr"},
			{Key: "params", Value: dumpParams(n)},
			{Key: "body", Value: dumpStmts(n.Body)},
		}
	case *BinaryExpr:
		return yaml.MapSlice{
			{Key: "type", Value: "BinaryExpr"},
			{Key: "op", Value: quoted(n.Op.String())},
			{Key: "left", Value: dumpNode(n.Left)},
			{Key: "right", Value: dumpNode(n.Right)},
		}
	case *UnaryExpr:
		return yaml.MapSlice{
			{Key: "type", Value: "UnaryExpr"},
			{Key: "op", Value: quoted(n.Op.String())},
			{Key: "arg", Value: dumpNode(n.Operand)},
		}
	case *MemberExpr:
		return yaml.MapSlice{
			{Key: "type", Value: "MemberExpr"},
			{Key: "obj", Value: dumpNode(n.Object)},
			{Key: "prop", Value: dumpNode(n.Key)},
			{Key: "computed", Value: n.Computed},
		}
	case *CallExpr:
		m := yaml.MapSlice{
			{Key: "type", Value: "CallExpr"},
			{Key: "callee", Value: dumpNode(n.Callee)},
		}
		if n.Method != nil {
			m = append(m, yaml.MapItem{Key: "method", Value: dumpNode(n.Method)})
		}
		return append(m, yaml.MapItem{Key: "args", Value: dumpExprs(n.Args)})
	case *ParenExpr:
		return yaml.MapSlice{
			{Key: "type", Value: "ParenExpr"},
			{Key: "expr", Value: dumpNode(n.Inner)},
		}
	case *TableExpr:
		props := make([]any, 0, len(n.Fields))
		for _, f := range n.Fields {
			props = append(props, dumpNode(f))
		}
		return yaml.MapSlice{
			{Key: "type", Value: "ObjExpr"},
			{Key: "props", Value: props},
		}
	case *TableField:
		if fn, ok := n.Value.(*FunctionExpr); ok && n.Method {
			return yaml.MapSlice{
				{Key: "type", Value: "ObjMethod"},
				{Key: "key", Value: dumpNode(n.Key)},
				{Key: "params", Value: dumpParams(fn)},
				{Key: "body", Value: dumpStmts(fn.Body)},
			}
		}
		return yaml.MapSlice{
			{Key: "type", Value: "ObjProp"},
			{Key: "key", Value: dumpNode(n.Key)},
			{Key: "value", Value: dumpNode(n.Value)},
			{Key: "computed", Value: n.Kind != NamedField},
		}
	default:
		panic(fmt.Sprintf("luaast.Dump: unexpected node type %T", n))
	}
}

func dumpStmts(list []Stmt) []any {
	result := make([]any, 0, len(list))
	for _, s := range list {
		result = append(result, dumpNode(s))
	}
	return result
}

func dumpExprs(list []Expr) []any {
	result := make([]any, 0, len(list))
	for _, e := range list {
		result = append(result, dumpNode(e))
	}
	return result
}

// dumpParams lists the parameters of fn,
// with a trailing VarArg entry for a vararg function.
func dumpParams(fn *FunctionExpr) []any {
	params := make([]any, 0, len(fn.Params)+1)
	for _, p := range fn.Params {
		params = append(params, dumpNode(p))
	}
	if fn.IsVararg {
		params = append(params, yaml.MapSlice{{Key: "type", Value: "VarArg"}})
	}
	return params
}

// quoted is a string that is always written as a double-quoted YAML scalar.
// Operator spellings like "-" or "&" and arbitrary string literal text
// would otherwise be read back as indicators or other types.
type quoted string

var _ yaml.BytesMarshaler = quoted("")

func (q quoted) MarshalYAML() ([]byte, error) {
	return []byte(strconv.Quote(string(q))), nil
}
