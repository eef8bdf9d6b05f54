// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luaparse

import (
	"strconv"

	"zb.256lights.llc/luac53/internal/luaast"
	"zb.256lights.llc/luac53/internal/lualex"
)

// operatorPrecedence is the binding power table for [luaast.BinaryOp].
// An operator whose right power is lower than its left power
// is right associative.
var operatorPrecedence = [...]struct {
	left  uint8
	right uint8
}{
	luaast.OpOr:     {2, 2},
	luaast.OpAnd:    {4, 4},
	luaast.OpBOr:    {6, 6},
	luaast.OpBXor:   {6, 6},
	luaast.OpBAnd:   {8, 8},
	luaast.OpEq:     {10, 10},
	luaast.OpNE:     {10, 10},
	luaast.OpLT:     {12, 12},
	luaast.OpLE:     {12, 12},
	luaast.OpGT:     {12, 12},
	luaast.OpGE:     {12, 12},
	luaast.OpShl:    {14, 14},
	luaast.OpShr:    {14, 14},
	luaast.OpConcat: {16, 15}, // right associative
	luaast.OpAdd:    {18, 18},
	luaast.OpSub:    {18, 18},
	luaast.OpMul:    {20, 20},
	luaast.OpDiv:    {20, 20},
	luaast.OpIDiv:   {20, 20},
	luaast.OpMod:    {20, 20},
	luaast.OpPow:    {26, 25}, // right associative
}

// unaryPrecedence is the limit used to parse the operand of a unary operator.
// Only exponentiation binds tighter.
const unaryPrecedence = 22

// expression parses an expression.
func (p *parser) expression() (luaast.Expr, error) {
	return p.subExpression(0)
}

// expressionList parses one or more comma-separated expressions.
//
//	explist ::= exp {',' exp}
func (p *parser) expressionList() ([]luaast.Expr, error) {
	var list []luaast.Expr
	for {
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		list = append(list, e)
		if !p.accept(",") {
			return list, nil
		}
	}
}

// binaryOperator returns the binary operator for the current token, if any.
func (p *parser) binaryOperator() (luaast.BinaryOp, bool) {
	if p.curr.Kind != lualex.SignToken && p.curr.Kind != lualex.KeywordToken {
		return 0, false
	}
	return luaast.BinaryOpFor(p.curr.Value)
}

// subExpression parses expressions joined by binary operators
// whose left binding power is greater than limit.
//
//	subexpr ::= (simpleexp | unop subexpr) {binop subexpr}
func (p *parser) subExpression(limit int) (luaast.Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	start := p.curr.Span.Start
	var e luaast.Expr
	if op, ok := p.unaryOperator(); ok {
		p.advance()
		operand, err := p.subExpression(unaryPrecedence)
		if err != nil {
			return nil, err
		}
		e = &luaast.UnaryExpr{Loc: p.span(start), Op: op, Operand: operand}
	} else {
		var err error
		e, err = p.simpleExpression()
		if err != nil {
			return nil, err
		}
	}

	for {
		op, ok := p.binaryOperator()
		if !ok || int(operatorPrecedence[op].left) <= limit {
			return e, nil
		}
		p.advance()
		rhs, err := p.subExpression(int(operatorPrecedence[op].right))
		if err != nil {
			return nil, err
		}
		e = &luaast.BinaryExpr{Loc: p.span(start), Op: op, Left: e, Right: rhs}
	}
}

func (p *parser) unaryOperator() (luaast.UnaryOp, bool) {
	if p.curr.Kind != lualex.SignToken && p.curr.Kind != lualex.KeywordToken {
		return 0, false
	}
	return luaast.UnaryOpFor(p.curr.Value)
}

// simpleExpression parses a simpleexp production.
//
//	simpleexp ::= FLT | INT | STRING | NIL | TRUE | FALSE | ... |
//	              constructor | FUNCTION body | suffixedexp
func (p *parser) simpleExpression() (luaast.Expr, error) {
	tok := p.curr
	switch {
	case tok.Kind == lualex.NumberToken:
		p.advance()
		return &luaast.NumberLit{Loc: tok.Span, Raw: tok.Value}, nil
	case tok.Kind == lualex.StringToken:
		p.advance()
		return &luaast.StringLit{Loc: tok.Span, Raw: tok.Value, Long: tok.Long}, nil
	case tok.Kind == lualex.NilToken:
		p.advance()
		return &luaast.NilLit{Loc: tok.Span}, nil
	case tok.Kind == lualex.BooleanToken:
		p.advance()
		return &luaast.BoolLit{Loc: tok.Span, Value: tok.Value == "true"}, nil
	case tok.Is("..."):
		p.advance()
		return &luaast.VarargExpr{Loc: tok.Span}, nil
	case tok.Is("{"):
		return p.constructor()
	case p.isKeyword("function"):
		p.advance()
		return p.functionBody(tok.Span.Start, false)
	default:
		return p.suffixedExpression()
	}
}

// primaryExpression parses a name or a parenthesized expression.
//
//	primaryexp ::= NAME | '(' expr ')'
func (p *parser) primaryExpression() (luaast.Expr, error) {
	switch {
	case p.curr.Kind == lualex.NameToken:
		return p.name()
	case p.curr.Is("("):
		start := p.curr.Span.Start
		p.advance()
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return &luaast.ParenExpr{Loc: p.span(start), Inner: inner}, nil
	default:
		return nil, p.unexpected("expression")
	}
}

// suffixedExpression parses a primary expression
// followed by any number of field selectors, indexes, and calls.
//
//	suffixedexp ::= primaryexp { '.' NAME | '[' exp ']' | ':' NAME funcargs | funcargs }
func (p *parser) suffixedExpression() (luaast.Expr, error) {
	start := p.curr.Span.Start
	e, err := p.primaryExpression()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.curr.Is("."):
			p.advance()
			key, err := p.name()
			if err != nil {
				return nil, err
			}
			e = fieldOf(e, key)
		case p.curr.Is("["):
			p.advance()
			key, err := p.expression()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			e = &luaast.MemberExpr{Loc: p.span(start), Object: e, Key: key, Computed: true}
		case p.curr.Is(":"):
			p.advance()
			method, err := p.name()
			if err != nil {
				return nil, err
			}
			args, err := p.functionArguments()
			if err != nil {
				return nil, err
			}
			e = &luaast.CallExpr{Loc: p.span(start), Callee: e, Method: method, Args: args}
		case p.curr.Is("("), p.curr.Is("{"), p.curr.Kind == lualex.StringToken:
			args, err := p.functionArguments()
			if err != nil {
				return nil, err
			}
			e = &luaast.CallExpr{Loc: p.span(start), Callee: e, Args: args}
		default:
			return e, nil
		}
	}
}

// functionArguments parses the arguments of a call.
//
//	funcargs ::= '(' [explist] ')' | constructor | STRING
func (p *parser) functionArguments() ([]luaast.Expr, error) {
	switch tok := p.curr; {
	case tok.Kind == lualex.StringToken:
		p.advance()
		return []luaast.Expr{&luaast.StringLit{Loc: tok.Span, Raw: tok.Value, Long: tok.Long}}, nil
	case tok.Is("{"):
		t, err := p.constructor()
		if err != nil {
			return nil, err
		}
		return []luaast.Expr{t}, nil
	case tok.Is("("):
		p.advance()
		if p.accept(")") {
			return nil, nil
		}
		args, err := p.expressionList()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return args, nil
	default:
		return nil, p.unexpected("function arguments")
	}
}

// constructor parses a table constructor.
// Positional fields are numbered from 1 in order of appearance.
//
//	constructor ::= '{' [ field { sep field } [sep] ] '}'
//	sep ::= ',' | ';'
func (p *parser) constructor() (*luaast.TableExpr, error) {
	start := p.curr.Span.Start
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	t := &luaast.TableExpr{}
	nextIndex := 1
	for !p.curr.Is("}") {
		f, err := p.field(&nextIndex)
		if err != nil {
			return nil, err
		}
		t.Fields = append(t.Fields, f)
		if !p.accept(",") && !p.accept(";") {
			break
		}
	}
	if err := p.expect("}"); err != nil {
		return nil, err
	}
	t.Loc = p.span(start)
	return t, nil
}

// field parses a single table constructor entry.
//
//	field ::= '[' exp ']' '=' exp | NAME '=' exp | exp
func (p *parser) field(nextIndex *int) (*luaast.TableField, error) {
	start := p.curr.Span.Start
	f := new(luaast.TableField)
	switch {
	case p.curr.Is("["):
		p.advance()
		key, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		if err := p.expect("="); err != nil {
			return nil, err
		}
		f.Kind = luaast.ComputedField
		f.Key = key
	case p.curr.Kind == lualex.NameToken && p.peek().Is("="):
		id, err := p.name()
		if err != nil {
			return nil, err
		}
		p.advance() // Skip '='.
		f.Kind = luaast.NamedField
		f.Key = &luaast.StringLit{Loc: id.Loc, Raw: id.Name}
	default:
		f.Kind = luaast.PositionalField
		f.Key = &luaast.NumberLit{
			Loc: lualex.Span{Start: start, End: start},
			Raw: strconv.Itoa(*nextIndex),
		}
		*nextIndex++
	}
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	f.Value = value
	_, f.Method = value.(*luaast.FunctionExpr)
	f.Loc = p.span(start)
	return f, nil
}

// functionBody parses a parameter list and a block
// after the function keyword and name (if any).
// If isMethod is true, an implicit self parameter is added.
//
//	body ::= '(' parlist ')' block END
//	parlist ::= [ {NAME ','} (NAME | '...') ]
func (p *parser) functionBody(start lualex.Position, isMethod bool) (*luaast.FunctionExpr, error) {
	fn := new(luaast.FunctionExpr)
	if isMethod {
		fn.Params = append(fn.Params, &luaast.Ident{
			Loc:  lualex.Span{Start: start, End: start},
			Name: "self",
		})
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	if !p.curr.Is(")") {
		for {
			if p.accept("...") {
				fn.IsVararg = true
				break
			}
			id, err := p.name()
			if err != nil {
				return nil, p.unexpected("name or '...'")
			}
			fn.Params = append(fn.Params, id)
			if !p.accept(",") {
				break
			}
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	body, err := p.blockEnd("end")
	if err != nil {
		return nil, err
	}
	fn.Body = body
	fn.Loc = p.span(start)
	return fn, nil
}
