// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

// Package luaparse builds syntax trees from Lua source.
//
// The accepted dialect is the Lua 5.3 statement and expression grammar
// without goto, labels, or attributes,
// plus "fun" and "let" as synonyms for "function" and "local".
package luaparse

import (
	"errors"

	"zb.256lights.llc/luac53/internal/luaast"
	"zb.256lights.llc/luac53/internal/lualex"
)

// depthLimit is the maximum recursion depth for syntax constructs.
const depthLimit = 200

// Parse converts Lua source into a syntax tree.
// source is the chunk name used in error messages.
// Errors returned by Parse are of type [*Error].
func Parse(source string, src []byte) (*luaast.Chunk, error) {
	p := &parser{
		source: source,
		ls:     lualex.NewScanner(src),
	}
	p.advance()
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if p.curr.Kind != lualex.EOFToken {
		return nil, p.unexpected("<eof>")
	}
	return &luaast.Chunk{
		Loc:  lualex.Span{Start: lualex.Pos(1, 1), End: p.curr.Span.End},
		Body: body,
	}, nil
}

// parser is the in-progress state of a [Parse] call.
type parser struct {
	source string
	ls     *lualex.Scanner
	curr   lualex.Token
	// prevEnd is the end of the previous non-comment token.
	prevEnd lualex.Position
	err     error

	depth int
}

// advance scans the next token that is not a comment.
// If the scanner reports an error,
// the current token becomes an [lualex.ErrorToken]
// and the error is reported by the next call to [parser.unexpected].
func (p *parser) advance() {
	if p.err != nil {
		return
	}
	p.prevEnd = p.curr.Span.End
	for {
		tok, err := p.ls.Next()
		if err != nil {
			p.err = err
			p.curr = lualex.Token{Kind: lualex.ErrorToken, Span: lualex.Span{
				Start: p.ls.Pos(),
				End:   p.ls.Pos(),
			}}
			return
		}
		if tok.Kind != lualex.CommentToken {
			p.curr = tok
			return
		}
	}
}

// peek returns the token after the current one without advancing the parser.
func (p *parser) peek() lualex.Token {
	if p.err != nil {
		return lualex.Token{}
	}
	p.ls.Mark()
	defer p.ls.Restore()
	for {
		tok, err := p.ls.Next()
		if err != nil {
			// The error will be reported when the parser advances.
			return lualex.Token{}
		}
		if tok.Kind != lualex.CommentToken {
			return tok
		}
	}
}

// span returns the span from start to the end of the last consumed token.
func (p *parser) span(start lualex.Position) lualex.Span {
	return lualex.Span{Start: start, End: p.prevEnd}
}

// unexpected returns an error for the current token.
func (p *parser) unexpected(want string) error {
	if p.err != nil {
		e := &Error{Source: p.source, Err: p.err}
		var lexErr *lualex.Error
		if errors.As(p.err, &lexErr) {
			e.Pos = lexErr.Pos
		}
		return e
	}
	return &Error{
		Source: p.source,
		Pos:    p.curr.Span.Start,
		Want:   want,
		Got:    describeToken(p.curr),
	}
}

// enter increments the recursion depth.
// Callers must call [parser.leave] when done.
func (p *parser) enter() error {
	p.depth++
	if p.depth > depthLimit {
		return &Error{
			Source: p.source,
			Pos:    p.curr.Span.Start,
			Msg:    "chunk has too many syntax levels",
		}
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

// expect advances past the current token if it is the given sign or keyword.
func (p *parser) expect(text string) error {
	if !p.curr.Is(text) {
		return p.unexpected("'" + text + "'")
	}
	p.advance()
	return nil
}

// accept advances past the current token and returns true
// if it is the given sign or keyword.
func (p *parser) accept(text string) bool {
	if !p.curr.Is(text) {
		return false
	}
	p.advance()
	return true
}

// isKeyword reports whether the current token is one of the given keywords
// or one of their dialect synonyms.
func (p *parser) isKeyword(words ...string) bool {
	for _, w := range words {
		if p.curr.Is(w) {
			return true
		}
		if alias, ok := keywordAliases[w]; ok && p.curr.Is(alias) {
			return true
		}
	}
	return false
}

var keywordAliases = map[string]string{
	"function": "fun",
	"local":    "let",
}

// name parses a name.
func (p *parser) name() (*luaast.Ident, error) {
	if p.curr.Kind != lualex.NameToken {
		return nil, p.unexpected("name")
	}
	id := &luaast.Ident{Loc: p.curr.Span, Name: p.curr.Value}
	p.advance()
	return id, nil
}

// isBlockFollow reports whether the current token terminates a block.
func (p *parser) isBlockFollow() bool {
	return p.curr.Kind == lualex.EOFToken ||
		p.curr.Kind == lualex.ErrorToken ||
		p.isKeyword("else", "elseif", "end", "until")
}

// block parses a sequence of statements up to a block terminator.
//
//	block ::= {stat} [retstat]
func (p *parser) block() ([]luaast.Stmt, error) {
	var stmts []luaast.Stmt
	for !p.isBlockFollow() {
		if p.isKeyword("return") {
			ret, err := p.returnStatement()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, ret)
			if !p.isBlockFollow() {
				return nil, p.unexpected("end of block")
			}
			break
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}

// blockEnd parses a block followed by the given closing keyword.
func (p *parser) blockEnd(close string) ([]luaast.Stmt, error) {
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if err := p.expect(close); err != nil {
		return nil, err
	}
	return body, nil
}

// statement parses a statement.
// It returns a nil statement for an empty statement.
func (p *parser) statement() (luaast.Stmt, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	start := p.curr.Span.Start
	switch {
	case p.curr.Is(";"):
		p.advance()
		return nil, nil
	case p.isKeyword("function"):
		return p.functionStatement()
	case p.isKeyword("local"):
		p.advance()
		if p.isKeyword("function") {
			p.advance()
			return p.localFunction(start)
		}
		return p.localStatement(start)
	case p.isKeyword("break"):
		p.advance()
		return &luaast.BreakStmt{Loc: p.span(start)}, nil
	case p.isKeyword("do"):
		p.advance()
		body, err := p.blockEnd("end")
		if err != nil {
			return nil, err
		}
		return &luaast.DoStmt{Loc: p.span(start), Body: body}, nil
	case p.isKeyword("while"):
		p.advance()
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expect("do"); err != nil {
			return nil, err
		}
		body, err := p.blockEnd("end")
		if err != nil {
			return nil, err
		}
		return &luaast.WhileStmt{Loc: p.span(start), Cond: cond, Body: body}, nil
	case p.isKeyword("repeat"):
		p.advance()
		body, err := p.blockEnd("until")
		if err != nil {
			return nil, err
		}
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		return &luaast.RepeatStmt{Loc: p.span(start), Body: body, Cond: cond}, nil
	case p.isKeyword("for"):
		return p.forStatement()
	case p.isKeyword("if"):
		return p.ifStatement()
	default:
		return p.exprStatement()
	}
}

// ifStatement parses an if statement.
// elseif clauses become nested [*luaast.IfStmt] nodes.
//
//	ifstat ::= IF cond THEN block {ELSEIF cond THEN block} [ELSE block] END
func (p *parser) ifStatement() (*luaast.IfStmt, error) {
	start := p.curr.Span.Start
	p.advance() // Skip if or elseif.
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expect("then"); err != nil {
		return nil, err
	}
	then, err := p.block()
	if err != nil {
		return nil, err
	}
	stmt := &luaast.IfStmt{Cond: cond, Then: then}
	switch {
	case p.isKeyword("elseif"):
		if err := p.enter(); err != nil {
			return nil, err
		}
		elseIf, err := p.ifStatement()
		p.leave()
		if err != nil {
			return nil, err
		}
		stmt.Else = elseIf
	case p.isKeyword("else"):
		elseStart := p.curr.Span.Start
		p.advance()
		body, err := p.blockEnd("end")
		if err != nil {
			return nil, err
		}
		stmt.Else = &luaast.BlockStmt{Loc: p.span(elseStart), Body: body}
	default:
		if err := p.expect("end"); err != nil {
			return nil, err
		}
	}
	stmt.Loc = p.span(start)
	return stmt, nil
}

// forStatement parses a numeric or generic for loop.
// The two forms are told apart by the token after the first name.
//
//	forstat ::= FOR (fornum | forlist) END
func (p *parser) forStatement() (luaast.Stmt, error) {
	start := p.curr.Span.Start
	p.advance()
	first, err := p.name()
	if err != nil {
		return nil, err
	}
	switch {
	case p.curr.Is("="):
		p.advance()
		return p.numericFor(start, first)
	case p.curr.Is(","), p.isKeyword("in"):
		return p.genericFor(start, first)
	default:
		return nil, p.unexpected("'=' or 'in'")
	}
}

// numericFor parses the rest of a numeric for loop after the '='.
//
//	fornum ::= NAME = exp1,exp1[,exp1] forbody
func (p *parser) numericFor(start lualex.Position, v *luaast.Ident) (*luaast.NumericForStmt, error) {
	init, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	limit, err := p.expression()
	if err != nil {
		return nil, err
	}
	var step luaast.Expr
	if p.accept(",") {
		step, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expect("do"); err != nil {
		return nil, err
	}
	body, err := p.blockEnd("end")
	if err != nil {
		return nil, err
	}
	return &luaast.NumericForStmt{
		Loc:   p.span(start),
		Var:   v,
		Init:  init,
		Limit: limit,
		Step:  step,
		Body:  body,
	}, nil
}

// genericFor parses the rest of a generic for loop after its first name.
//
//	forlist ::= NAME {,NAME} IN explist forbody
func (p *parser) genericFor(start lualex.Position, first *luaast.Ident) (*luaast.GenericForStmt, error) {
	names := []*luaast.Ident{first}
	for p.accept(",") {
		id, err := p.name()
		if err != nil {
			return nil, err
		}
		names = append(names, id)
	}
	if err := p.expect("in"); err != nil {
		return nil, err
	}
	exprs, err := p.expressionList()
	if err != nil {
		return nil, err
	}
	if err := p.expect("do"); err != nil {
		return nil, err
	}
	body, err := p.blockEnd("end")
	if err != nil {
		return nil, err
	}
	return &luaast.GenericForStmt{
		Loc:   p.span(start),
		Names: names,
		Exprs: exprs,
		Body:  body,
	}, nil
}

// functionStatement parses a global or field function declaration.
//
//	funcstat ::= FUNCTION funcname body
//	funcname ::= NAME {'.' NAME} [':' NAME]
func (p *parser) functionStatement() (*luaast.FunctionStmt, error) {
	start := p.curr.Span.Start
	p.advance()
	id, err := p.name()
	if err != nil {
		return nil, err
	}
	var name luaast.Expr = id
	for p.curr.Is(".") {
		p.advance()
		key, err := p.name()
		if err != nil {
			return nil, err
		}
		name = fieldOf(name, key)
	}
	isMethod := false
	if p.accept(":") {
		key, err := p.name()
		if err != nil {
			return nil, err
		}
		name = fieldOf(name, key)
		isMethod = true
	}
	fn, err := p.functionBody(start, isMethod)
	if err != nil {
		return nil, err
	}
	return &luaast.FunctionStmt{
		Loc:    p.span(start),
		Name:   name,
		Method: isMethod,
		Func:   fn,
	}, nil
}

// localFunction parses a local function declaration
// after the local and function keywords.
func (p *parser) localFunction(start lualex.Position) (*luaast.FunctionStmt, error) {
	id, err := p.name()
	if err != nil {
		return nil, err
	}
	fn, err := p.functionBody(start, false)
	if err != nil {
		return nil, err
	}
	return &luaast.FunctionStmt{
		Loc:   p.span(start),
		Name:  id,
		Local: true,
		Func:  fn,
	}, nil
}

// localStatement parses a local variable declaration after the local keyword.
//
//	localstat ::= LOCAL NAME {',' NAME} ['=' explist]
func (p *parser) localStatement(start lualex.Position) (*luaast.LocalStmt, error) {
	var names []*luaast.Ident
	for {
		id, err := p.name()
		if err != nil {
			return nil, err
		}
		names = append(names, id)
		if !p.accept(",") {
			break
		}
	}
	var values []luaast.Expr
	if p.accept("=") {
		var err error
		values, err = p.expressionList()
		if err != nil {
			return nil, err
		}
		values = padValues(values, len(names), p.prevEnd)
	}
	return &luaast.LocalStmt{
		Loc:    p.span(start),
		Names:  names,
		Values: values,
	}, nil
}

// returnStatement parses a return statement.
//
//	retstat ::= RETURN [explist] [';']
func (p *parser) returnStatement() (*luaast.ReturnStmt, error) {
	start := p.curr.Span.Start
	p.advance()
	var values []luaast.Expr
	if !p.isBlockFollow() && !p.curr.Is(";") {
		var err error
		values, err = p.expressionList()
		if err != nil {
			return nil, err
		}
	}
	p.accept(";")
	return &luaast.ReturnStmt{Loc: p.span(start), Values: values}, nil
}

// exprStatement parses a function call or an assignment.
//
//	exprstat ::= func | assignment
func (p *parser) exprStatement() (luaast.Stmt, error) {
	start := p.curr.Span.Start
	e, err := p.suffixedExpression()
	if err != nil {
		return nil, err
	}
	if !p.curr.Is("=") && !p.curr.Is(",") {
		call, ok := e.(*luaast.CallExpr)
		if !ok {
			return nil, p.unexpected("'=' or function arguments")
		}
		return &luaast.CallStmt{Loc: p.span(start), Call: call}, nil
	}

	targets := []luaast.Expr{e}
	for {
		if err := p.checkAssignable(targets[len(targets)-1]); err != nil {
			return nil, err
		}
		if !p.accept(",") {
			break
		}
		e, err := p.suffixedExpression()
		if err != nil {
			return nil, err
		}
		targets = append(targets, e)
	}
	if err := p.expect("="); err != nil {
		return nil, err
	}
	values, err := p.expressionList()
	if err != nil {
		return nil, err
	}
	return &luaast.AssignStmt{
		Loc:     p.span(start),
		Targets: targets,
		Values:  padValues(values, len(targets), p.prevEnd),
	}, nil
}

func (p *parser) checkAssignable(e luaast.Expr) error {
	switch e.(type) {
	case *luaast.Ident, *luaast.MemberExpr:
		return nil
	default:
		return &Error{
			Source: p.source,
			Pos:    e.Span().Start,
			Msg:    "cannot assign to expression",
		}
	}
}

// padValues appends nil literals to values
// until it has n elements,
// unless the last value can produce multiple results.
func padValues(values []luaast.Expr, n int, pos lualex.Position) []luaast.Expr {
	if len(values) == 0 || len(values) >= n || luaast.IsMultiValued(values[len(values)-1]) {
		return values
	}
	for len(values) < n {
		values = append(values, &luaast.NilLit{Loc: lualex.Span{Start: pos, End: pos}})
	}
	return values
}

// fieldOf returns the expression obj.key.
func fieldOf(obj luaast.Expr, key *luaast.Ident) *luaast.MemberExpr {
	return &luaast.MemberExpr{
		Loc:    lualex.Span{Start: obj.Span().Start, End: key.Loc.End},
		Object: obj,
		Key:    &luaast.StringLit{Loc: key.Loc, Raw: key.Name},
	}
}
