// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

// Package luaast declares the types used to represent syntax trees
// for the Lua dialect accepted by [zb.256lights.llc/luac53/internal/luaparse].
//
// The set of node types is closed:
// only types in this package implement [Stmt] and [Expr].
// Every node is owned by exactly one parent
// and trees never contain cycles.
package luaast

import (
	"zb.256lights.llc/luac53/internal/lualex"
)

// Node is the interface implemented by all syntax tree nodes.
type Node interface {
	// Span returns the range of source text that the node covers.
	Span() lualex.Span
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Chunk is the root of a syntax tree:
// the body of the implicit main function of a source file.
type Chunk struct {
	Loc  lualex.Span
	Body []Stmt
}

func (c *Chunk) Span() lualex.Span { return c.Loc }

// Statements.
type (
	// AssignStmt is a (possibly multiple) assignment.
	// Targets are [*Ident] or [*MemberExpr] nodes.
	AssignStmt struct {
		Loc     lualex.Span
		Targets []Expr
		Values  []Expr
	}

	// CallStmt is a function call evaluated for its side effects.
	CallStmt struct {
		Loc  lualex.Span
		Call *CallExpr
	}

	// LocalStmt declares one or more local variables.
	LocalStmt struct {
		Loc    lualex.Span
		Names  []*Ident
		Values []Expr
	}

	// FunctionStmt is a function declaration.
	// Name is an [*Ident] or a chain of [*MemberExpr] nodes.
	// If Method is true, the declaration used the colon syntax
	// and Func.Params starts with the implicit self parameter.
	// Local declarations always have an [*Ident] name.
	FunctionStmt struct {
		Loc    lualex.Span
		Name   Expr
		Method bool
		Local  bool
		Func   *FunctionExpr
	}

	// DoStmt is a do ... end block.
	DoStmt struct {
		Loc  lualex.Span
		Body []Stmt
	}

	// WhileStmt is a while loop.
	WhileStmt struct {
		Loc  lualex.Span
		Cond Expr
		Body []Stmt
	}

	// RepeatStmt is a repeat ... until loop.
	// The scope of Body extends into Cond.
	RepeatStmt struct {
		Loc  lualex.Span
		Body []Stmt
		Cond Expr
	}

	// IfStmt is a conditional.
	// Else is nil, an [*IfStmt] for an elseif clause,
	// or a [*BlockStmt] for an else clause.
	IfStmt struct {
		Loc  lualex.Span
		Cond Expr
		Then []Stmt
		Else Stmt
	}

	// BlockStmt is the body of an else clause.
	BlockStmt struct {
		Loc  lualex.Span
		Body []Stmt
	}

	// NumericForStmt is a for loop over an arithmetic progression.
	// Step is nil if omitted.
	NumericForStmt struct {
		Loc   lualex.Span
		Var   *Ident
		Init  Expr
		Limit Expr
		Step  Expr
		Body  []Stmt
	}

	// GenericForStmt is a for ... in loop.
	GenericForStmt struct {
		Loc   lualex.Span
		Names []*Ident
		Exprs []Expr
		Body  []Stmt
	}

	// ReturnStmt returns from the enclosing function.
	ReturnStmt struct {
		Loc    lualex.Span
		Values []Expr
	}

	// BreakStmt exits the innermost loop.
	BreakStmt struct {
		Loc lualex.Span
	}
)

func (s *AssignStmt) Span() lualex.Span     { return s.Loc }
func (s *CallStmt) Span() lualex.Span       { return s.Loc }
func (s *LocalStmt) Span() lualex.Span      { return s.Loc }
func (s *FunctionStmt) Span() lualex.Span   { return s.Loc }
func (s *DoStmt) Span() lualex.Span         { return s.Loc }
func (s *WhileStmt) Span() lualex.Span      { return s.Loc }
func (s *RepeatStmt) Span() lualex.Span     { return s.Loc }
func (s *IfStmt) Span() lualex.Span         { return s.Loc }
func (s *BlockStmt) Span() lualex.Span      { return s.Loc }
func (s *NumericForStmt) Span() lualex.Span { return s.Loc }
func (s *GenericForStmt) Span() lualex.Span { return s.Loc }
func (s *ReturnStmt) Span() lualex.Span     { return s.Loc }
func (s *BreakStmt) Span() lualex.Span      { return s.Loc }

func (*AssignStmt) stmtNode()     {}
func (*CallStmt) stmtNode()       {}
func (*LocalStmt) stmtNode()      {}
func (*FunctionStmt) stmtNode()   {}
func (*DoStmt) stmtNode()         {}
func (*WhileStmt) stmtNode()      {}
func (*RepeatStmt) stmtNode()     {}
func (*IfStmt) stmtNode()         {}
func (*BlockStmt) stmtNode()      {}
func (*NumericForStmt) stmtNode() {}
func (*GenericForStmt) stmtNode() {}
func (*ReturnStmt) stmtNode()     {}
func (*BreakStmt) stmtNode()      {}

// Expressions.
type (
	// Ident is a name.
	Ident struct {
		Loc  lualex.Span
		Name string
	}

	// NilLit is the nil literal.
	NilLit struct {
		Loc lualex.Span
	}

	// BoolLit is true or false.
	BoolLit struct {
		Loc   lualex.Span
		Value bool
	}

	// NumberLit is a numeral, kept as written.
	NumberLit struct {
		Loc lualex.Span
		Raw string
	}

	// StringLit is a string literal.
	// Raw is the text between the delimiters as written:
	// escape sequences in short strings are not decoded.
	StringLit struct {
		Loc  lualex.Span
		Raw  string
		Long bool
	}

	// VarargExpr is the ... expression.
	VarargExpr struct {
		Loc lualex.Span
	}

	// FunctionExpr is a function body.
	// Loc.End is just past the closing end keyword.
	FunctionExpr struct {
		Loc      lualex.Span
		Params   []*Ident
		IsVararg bool
		Body     []Stmt
	}

	// BinaryExpr is an infix operation.
	BinaryExpr struct {
		Loc   lualex.Span
		Op    BinaryOp
		Left  Expr
		Right Expr
	}

	// UnaryExpr is a prefix operation.
	UnaryExpr struct {
		Loc     lualex.Span
		Op      UnaryOp
		Operand Expr
	}

	// MemberExpr is an indexing operation.
	// For a.name, Key is a [*StringLit] and Computed is false.
	// For a[k], Computed is true.
	MemberExpr struct {
		Loc      lualex.Span
		Object   Expr
		Key      Expr
		Computed bool
	}

	// CallExpr is a function call.
	// Method is non-nil for obj:name(args) calls.
	CallExpr struct {
		Loc    lualex.Span
		Callee Expr
		Method *Ident
		Args   []Expr
	}

	// ParenExpr is a parenthesized expression.
	// Parentheses truncate multiple results to a single value.
	ParenExpr struct {
		Loc   lualex.Span
		Inner Expr
	}

	// TableExpr is a table constructor.
	TableExpr struct {
		Loc    lualex.Span
		Fields []*TableField
	}
)

func (e *Ident) Span() lualex.Span        { return e.Loc }
func (e *NilLit) Span() lualex.Span       { return e.Loc }
func (e *BoolLit) Span() lualex.Span      { return e.Loc }
func (e *NumberLit) Span() lualex.Span    { return e.Loc }
func (e *StringLit) Span() lualex.Span    { return e.Loc }
func (e *VarargExpr) Span() lualex.Span   { return e.Loc }
func (e *FunctionExpr) Span() lualex.Span { return e.Loc }
func (e *BinaryExpr) Span() lualex.Span   { return e.Loc }
func (e *UnaryExpr) Span() lualex.Span    { return e.Loc }
func (e *MemberExpr) Span() lualex.Span   { return e.Loc }
func (e *CallExpr) Span() lualex.Span     { return e.Loc }
func (e *ParenExpr) Span() lualex.Span    { return e.Loc }
func (e *TableExpr) Span() lualex.Span    { return e.Loc }

func (*Ident) exprNode()        {}
func (*NilLit) exprNode()       {}
func (*BoolLit) exprNode()      {}
func (*NumberLit) exprNode()    {}
func (*StringLit) exprNode()    {}
func (*VarargExpr) exprNode()   {}
func (*FunctionExpr) exprNode() {}
func (*BinaryExpr) exprNode()   {}
func (*UnaryExpr) exprNode()    {}
func (*MemberExpr) exprNode()   {}
func (*CallExpr) exprNode()     {}
func (*ParenExpr) exprNode()    {}
func (*TableExpr) exprNode()    {}

// Value returns the numeric value of the literal.
func (e *NumberLit) Value() (lualex.Number, error) {
	return lualex.ParseNumeral(e.Raw)
}

// Value returns the string with escape sequences decoded.
func (e *StringLit) Value() (string, error) {
	if e.Long {
		return e.Raw, nil
	}
	return lualex.Unescape(e.Raw)
}

// TableField is a single entry in a [TableExpr].
// Positional fields are given a [*NumberLit] key
// counting up from 1 in the order they appear.
type TableField struct {
	Loc   lualex.Span
	Kind  FieldKind
	Key   Expr
	Value Expr
	// Method is true if Value is a [*FunctionExpr].
	Method bool
}

func (f *TableField) Span() lualex.Span { return f.Loc }

// FieldKind is an enumeration of the forms of [TableField].
type FieldKind int

// [FieldKind] values.
const (
	// PositionalField is an entry without a key: {v}.
	PositionalField FieldKind = 1 + iota // positional
	// NamedField is an entry with a name key: {name = v}.
	NamedField // named
	// ComputedField is an entry with an expression key: {[k] = v}.
	ComputedField // computed
)

// IsMultiValued reports whether e can produce a variable number of results,
// namely whether e is a function call or a vararg expression.
func IsMultiValued(e Expr) bool {
	switch e.(type) {
	case *CallExpr, *VarargExpr:
		return true
	default:
		return false
	}
}
