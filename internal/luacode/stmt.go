// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"fmt"

	"zb.256lights.llc/luac53/internal/luaast"
)

// Limits on the generic for statement.
const (
	maxForInNames = 2
	maxForInExprs = 3
)

// statements compiles a list of statements in the current block.
//
// Equivalent to `statlist` in upstream Lua.
func (g *generator) statements(stmts []luaast.Stmt) error {
	for _, stmt := range stmts {
		if err := g.statement(stmt); err != nil {
			return err
		}
	}
	return nil
}

// block compiles a list of statements in a new block.
func (g *generator) block(stmts []luaast.Stmt) error {
	g.fs.enterBlock(false)
	if err := g.statements(stmts); err != nil {
		return err
	}
	return g.fs.leaveBlock()
}

func (g *generator) statement(stmt luaast.Stmt) error {
	g.setPos(stmt)
	var err error
	switch stmt := stmt.(type) {
	case *luaast.LocalStmt:
		err = g.localStatement(stmt)
	case *luaast.AssignStmt:
		err = g.assignStatement(stmt)
	case *luaast.CallStmt:
		err = g.callStatement(stmt)
	case *luaast.FunctionStmt:
		err = g.functionStatement(stmt)
	case *luaast.DoStmt:
		err = g.block(stmt.Body)
	case *luaast.WhileStmt:
		err = g.whileStatement(stmt)
	case *luaast.RepeatStmt:
		err = g.repeatStatement(stmt)
	case *luaast.IfStmt:
		err = g.ifStatement(stmt)
	case *luaast.BlockStmt:
		err = g.block(stmt.Body)
	case *luaast.NumericForStmt:
		err = g.numericFor(stmt)
	case *luaast.GenericForStmt:
		err = g.genericFor(stmt)
	case *luaast.ReturnStmt:
		err = g.returnStatement(stmt)
	case *luaast.BreakStmt:
		err = g.breakStatement(stmt)
	default:
		panic(fmt.Sprintf("internal error: unhandled statement %T", stmt))
	}
	if err != nil {
		return err
	}

	fs := g.fs
	if int(fs.MaxStackSize) < fs.firstFreeRegister || fs.firstFreeRegister < len(fs.activeVariables) {
		panic(fmt.Sprintf("internal error: register state inconsistent after %T (free=%d, active=%d, max=%d)",
			stmt, fs.firstFreeRegister, len(fs.activeVariables), fs.MaxStackSize))
	}
	// Free registers.
	fs.setFirstFreeRegister(len(fs.activeVariables))
	return nil
}

func (g *generator) localStatement(stmt *luaast.LocalStmt) error {
	if _, err := g.assignValues(stmt.Values, len(stmt.Names)); err != nil {
		return err
	}
	for _, name := range stmt.Names {
		if err := g.fs.activateVariable(name.Name); err != nil {
			return err
		}
	}
	return nil
}

// assignValues evaluates values into n consecutive registers
// starting at the first free register,
// adjusting the number of values the way a multiple assignment does:
// missing values are nil,
// a trailing call or vararg expression fills the remaining registers,
// and extra values are evaluated and discarded.
// It returns the first register.
//
// Equivalent to `adjust_assign` in upstream Lua.
func (g *generator) assignValues(values []luaast.Expr, n int) (base int, err error) {
	fs := g.fs
	base = fs.firstFreeRegister
	for i, v := range values {
		if i == len(values)-1 && luaast.IsMultiValued(v) {
			extra := max(n-i, 0)
			r, err := fs.reserveRegisters(max(extra, 1))
			if err != nil {
				return 0, err
			}
			if err := g.multiExpr(v, r, true, extra); err != nil {
				return 0, err
			}
			return base, g.adjustTop(base + n)
		}
		if _, err := g.exprToNextReg(v); err != nil {
			return 0, err
		}
	}
	if missing := n - len(values); missing > 0 {
		r, err := fs.reserveRegisters(missing)
		if err != nil {
			return 0, err
		}
		if err := fs.loadNil(r, missing); err != nil {
			return 0, err
		}
	}
	return base, g.adjustTop(base + n)
}

// adjustTop moves the first free register to top,
// reserving registers as needed.
func (g *generator) adjustTop(top int) error {
	fs := g.fs
	if fs.firstFreeRegister < top {
		_, err := fs.reserveRegisters(top - fs.firstFreeRegister)
		return err
	}
	fs.setFirstFreeRegister(top)
	return nil
}

// assignTarget is the left-hand side of an assignment
// after its subexpressions have been evaluated.
type assignTarget struct {
	kind targetKind
	// index is the register of a local,
	// the position of an upvalue,
	// or the register or upvalue holding an indexed table.
	index int
	// key is the RK operand of an indexed target's key.
	key uint16
}

// targetKind is an enumeration of assignable locations.
type targetKind int

const (
	targetLocal targetKind = 1 + iota
	targetUpvalue
	// targetIndexed is a table in a register.
	targetIndexed
	// targetIndexedUpvalue is a table in an upvalue.
	targetIndexedUpvalue
)

// prepareTarget evaluates the table and key of an assignment target.
func (g *generator) prepareTarget(e luaast.Expr) (assignTarget, error) {
	switch e := e.(type) {
	case *luaast.Ident:
		kind, index, err := resolve(g.fs, e.Name, true)
		if err != nil {
			return assignTarget{}, err
		}
		switch kind {
		case varLocal:
			return assignTarget{kind: targetLocal, index: index}, nil
		case varUpvalue:
			return assignTarget{kind: targetUpvalue, index: index}, nil
		}
		kind, index, err = g.resolveEnv()
		if err != nil {
			return assignTarget{}, err
		}
		key, err := g.rkValue(StringValue(e.Name))
		if err != nil {
			return assignTarget{}, err
		}
		t := assignTarget{kind: targetIndexed, index: index, key: key}
		if kind == varUpvalue {
			t.kind = targetIndexedUpvalue
		}
		return t, nil
	case *luaast.MemberExpr:
		t := assignTarget{kind: targetIndexed}
		if up, ok := g.upvalueOperand(e.Object); ok {
			t.kind = targetIndexedUpvalue
			t.index = up
		} else {
			var err error
			t.index, err = g.anyReg(e.Object)
			if err != nil {
				return assignTarget{}, err
			}
		}
		var err error
		t.key, err = g.rk(e.Key)
		if err != nil {
			return assignTarget{}, err
		}
		return t, nil
	default:
		g.setPos(e)
		return assignTarget{}, g.fs.errorf("cannot assign to %T", e)
	}
}

// checkConflict handles a multiple assignment
// that assigns to a local or upvalue that an earlier target indexes with,
// like:
//
//	a[i], i = x, y
//
// Earlier targets are changed to use a copy of the variable
// made before any assignment takes place.
//
// Equivalent to `check_conflict` in upstream Lua.
func (g *generator) checkConflict(prev []assignTarget, t assignTarget) error {
	fs := g.fs
	extra := fs.firstFreeRegister
	conflict := false
	for i := range prev {
		p := &prev[i]
		if p.kind != targetIndexed && p.kind != targetIndexedUpvalue {
			continue
		}
		if (p.kind == targetIndexedUpvalue && t.kind == targetUpvalue && p.index == t.index) ||
			(p.kind == targetIndexed && t.kind == targetLocal && p.index == t.index) {
			conflict = true
			p.kind = targetIndexed
			p.index = extra
		}
		if t.kind == targetLocal && !IsConstant(p.key) && int(p.key) == t.index {
			conflict = true
			p.key = uint16(extra)
		}
	}
	if !conflict {
		return nil
	}
	op := OpMove
	if t.kind == targetUpvalue {
		op = OpGetUpval
	}
	if _, err := fs.codeABC(op, extra, uint16(t.index), 0); err != nil {
		return err
	}
	_, err := fs.reserveRegisters(1)
	return err
}

// store evaluates e and assigns its value to t.
//
// Equivalent to `luaK_storevar` in upstream Lua.
func (g *generator) store(t assignTarget, e luaast.Expr) error {
	fs := g.fs
	switch t.kind {
	case targetLocal:
		return g.exprToReg(e, t.index, false)
	case targetUpvalue:
		r, err := g.anyReg(e)
		if err != nil {
			return err
		}
		if _, err := fs.codeABC(OpSetUpval, r, uint16(t.index), 0); err != nil {
			return err
		}
		fs.freeRegister(r)
		return nil
	default:
		c, err := g.rk(e)
		if err != nil {
			return err
		}
		if err := g.storeRK(t, c); err != nil {
			return err
		}
		fs.freeRK(c)
		return nil
	}
}

// storeRK assigns an RK operand to an indexed target.
func (g *generator) storeRK(t assignTarget, c uint16) error {
	var err error
	switch t.kind {
	case targetIndexed:
		_, err = g.fs.codeABC(OpSetTable, t.index, t.key, c)
	case targetIndexedUpvalue:
		_, err = g.fs.codeABC(OpSetTabUp, t.index, t.key, c)
	default:
		panic("internal error: storeRK to non-indexed target")
	}
	return err
}

// storeRegister assigns the value in register r to t.
func (g *generator) storeRegister(t assignTarget, r int) error {
	fs := g.fs
	switch t.kind {
	case targetLocal:
		if t.index == r {
			return nil
		}
		_, err := fs.codeABC(OpMove, t.index, uint16(r), 0)
		return err
	case targetUpvalue:
		_, err := fs.codeABC(OpSetUpval, r, uint16(t.index), 0)
		return err
	default:
		return g.storeRK(t, uint16(r))
	}
}

// assignStatement compiles a (possibly multiple) assignment.
// Targets are evaluated left to right,
// then values left to right,
// then the assignments are performed right to left.
//
// Equivalent to `restassign` in upstream Lua.
func (g *generator) assignStatement(stmt *luaast.AssignStmt) error {
	targets := make([]assignTarget, 0, len(stmt.Targets))
	for _, e := range stmt.Targets {
		t, err := g.prepareTarget(e)
		if err != nil {
			return err
		}
		if t.kind == targetLocal || t.kind == targetUpvalue {
			if err := g.checkConflict(targets, t); err != nil {
				return err
			}
		}
		targets = append(targets, t)
	}
	g.setPos(stmt)

	n := len(targets)
	var base int
	if len(stmt.Values) == n {
		// The last value is stored directly.
		base = g.fs.firstFreeRegister
		for _, v := range stmt.Values[:n-1] {
			if _, err := g.exprToNextReg(v); err != nil {
				return err
			}
		}
		if err := g.store(targets[n-1], stmt.Values[n-1]); err != nil {
			return err
		}
		n--
	} else {
		var err error
		base, err = g.assignValues(stmt.Values, n)
		if err != nil {
			return err
		}
	}
	for i := n - 1; i >= 0; i-- {
		if err := g.storeRegister(targets[i], base+i); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) callStatement(stmt *luaast.CallStmt) error {
	r, err := g.fs.reserveRegisters(1)
	if err != nil {
		return err
	}
	return g.multiExpr(stmt.Call, r, true, 0)
}

// functionStatement compiles a function declaration.
//
// Equivalent to `funcstat` and `localfunc` in upstream Lua.
func (g *generator) functionStatement(stmt *luaast.FunctionStmt) error {
	fs := g.fs
	if stmt.Local {
		name, ok := stmt.Name.(*luaast.Ident)
		if !ok {
			panic(fmt.Sprintf("internal error: local function name is %T", stmt.Name))
		}
		r, err := fs.reserveRegisters(1)
		if err != nil {
			return err
		}
		if err := fs.activateVariable(name.Name); err != nil {
			return err
		}
		if err := g.function(stmt.Func, r); err != nil {
			return err
		}
		// Debug information will only see the variable after this point.
		fs.localVariable(r).StartPC = len(fs.Code)
		return nil
	}

	t, err := g.prepareTarget(stmt.Name)
	if err != nil {
		return err
	}
	if err := g.store(t, stmt.Func); err != nil {
		return err
	}
	fs.fixLine(stmt.Loc.Start.Line)
	return nil
}

// whileStatement compiles a while loop.
//
//	whileInit: <cond, jump to exit if false>
//	           <body>
//	           JMP whileInit
//	exit:
//
// Equivalent to `whilestat` in upstream Lua.
func (g *generator) whileStatement(stmt *luaast.WhileStmt) error {
	fs := g.fs
	whileInit := fs.label()
	exits, err := g.condition(stmt.Cond)
	if err != nil {
		return err
	}
	fs.enterBlock(true)
	if err := g.block(stmt.Body); err != nil {
		return err
	}
	fs.line = lastLine(stmt.Body, stmt.Loc.Start.Line)
	if err := fs.jumpTo(whileInit); err != nil {
		return err
	}
	if err := fs.leaveBlock(); err != nil {
		return err
	}
	fs.patchToHere(exits)
	return nil
}

// repeatStatement compiles a repeat-until loop.
// The condition can see the body's local variables.
//
// Equivalent to `repeatstat` in upstream Lua.
func (g *generator) repeatStatement(stmt *luaast.RepeatStmt) error {
	fs := g.fs
	repeatInit := fs.label()
	fs.enterBlock(true)
	fs.enterBlock(false)
	scope := fs.blocks
	if err := g.statements(stmt.Body); err != nil {
		return err
	}
	g.setPos(stmt.Cond)
	exits, err := g.condition(stmt.Cond)
	if err != nil {
		return err
	}
	if scope.upval {
		fs.patchClose(exits, scope.numActiveVariables)
	}
	if err := fs.leaveBlock(); err != nil {
		return err
	}
	if err := fs.patchList(exits, repeatInit); err != nil {
		return err
	}
	return fs.leaveBlock()
}

// ifStatement compiles an if statement and its elseif and else clauses.
//
// Equivalent to `ifstat` in upstream Lua.
func (g *generator) ifStatement(stmt *luaast.IfStmt) error {
	var escapes []int
	for clause := stmt; ; {
		g.setPos(clause)
		var err error
		escapes, err = g.testThenBlock(clause, escapes)
		if err != nil {
			return err
		}
		switch e := clause.Else.(type) {
		case nil:
			g.fs.patchToHere(escapes)
			return nil
		case *luaast.IfStmt:
			clause = e
		case *luaast.BlockStmt:
			if err := g.block(e.Body); err != nil {
				return err
			}
			g.fs.patchToHere(escapes)
			return nil
		default:
			panic(fmt.Sprintf("internal error: else clause is %T", e))
		}
	}
}

// testThenBlock compiles one condition and body of an if statement.
// escapes is the list of jumps to the end of the whole if statement,
// which testThenBlock adds to if an else clause follows.
//
// Equivalent to `test_then_block` in upstream Lua.
func (g *generator) testThenBlock(clause *luaast.IfStmt, escapes []int) ([]int, error) {
	fs := g.fs
	var skip []int
	body := clause.Then
	if _, isBreak := firstStatement(body).(*luaast.BreakStmt); isBreak && fs.insideLoop() {
		// "if cond then break": jump straight out of the loop.
		breaks, err := g.jumpIf(clause.Cond, true)
		if err != nil {
			return nil, err
		}
		fs.enterBlock(false)
		fs.addBreak(breaks)
		body = body[1:]
		if len(body) == 0 {
			return escapes, fs.leaveBlock()
		}
		skip, err = fs.jump()
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		skip, err = g.condition(clause.Cond)
		if err != nil {
			return nil, err
		}
		fs.enterBlock(false)
	}
	if err := g.statements(body); err != nil {
		return nil, err
	}
	if err := fs.leaveBlock(); err != nil {
		return nil, err
	}
	if clause.Else != nil {
		j, err := fs.jump()
		if err != nil {
			return nil, err
		}
		escapes = append(escapes, j...)
	}
	fs.patchToHere(skip)
	return escapes, nil
}

// numericFor compiles a for loop over an arithmetic progression.
//
//	       <init, limit, step in base, base+1, base+2>
//	       FORPREP base, loop
//	body:  <body with the variable in base+3>
//	loop:  FORLOOP base, body
//
// Equivalent to `fornum` in upstream Lua.
func (g *generator) numericFor(stmt *luaast.NumericForStmt) error {
	fs := g.fs
	fs.enterBlock(true)
	base := fs.firstFreeRegister
	for _, e := range []luaast.Expr{stmt.Init, stmt.Limit} {
		if _, err := g.exprToNextReg(e); err != nil {
			return err
		}
	}
	if stmt.Step != nil {
		if _, err := g.exprToNextReg(stmt.Step); err != nil {
			return err
		}
	} else {
		k, err := fs.addConstant(IntegerValue(1))
		if err != nil {
			return err
		}
		r, err := fs.reserveRegisters(1)
		if err != nil {
			return err
		}
		if err := fs.loadConstant(r, k); err != nil {
			return err
		}
	}
	for _, name := range []string{"(for index)", "(for limit)", "(for step)"} {
		if err := fs.activateVariable(name); err != nil {
			return err
		}
	}
	fs.line = stmt.Loc.Start.Line
	prep, err := fs.codeAsBx(OpForPrep, base, 0)
	if err != nil {
		return err
	}
	if err := g.forBody(stmt.Body, []*luaast.Ident{stmt.Var}); err != nil {
		return err
	}
	fs.patchToHere([]int{prep})
	fs.line = stmt.Loc.Start.Line
	endFor, err := fs.codeAsBx(OpForLoop, base, 0)
	if err != nil {
		return err
	}
	if err := fs.patchList([]int{endFor}, prep+1); err != nil {
		return err
	}
	return fs.leaveBlock()
}

// genericFor compiles a for loop over an iterator function.
//
//	       <generator, state, control in base, base+1, base+2>
//	       JMP call
//	body:  <body with the variables in base+3...>
//	call:  TFORCALL base, #names
//	       TFORLOOP base+2, body
//
// Equivalent to `forlist` in upstream Lua.
func (g *generator) genericFor(stmt *luaast.GenericForStmt) error {
	fs := g.fs
	if len(stmt.Names) > maxForInNames {
		g.setPos(stmt.Names[maxForInNames])
		return fs.errorf("malformed iterator: too many variables (limit is %d)", maxForInNames)
	}
	if len(stmt.Exprs) > maxForInExprs {
		g.setPos(stmt.Exprs[maxForInExprs])
		return fs.errorf("malformed iterator: too many expressions (limit is %d)", maxForInExprs)
	}

	fs.enterBlock(true)
	base, err := g.assignValues(stmt.Exprs, 3)
	if err != nil {
		return err
	}
	// Extra space to call the generator.
	if err := fs.checkStack(3); err != nil {
		return err
	}
	for _, name := range []string{"(for generator)", "(for state)", "(for control)"} {
		if err := fs.activateVariable(name); err != nil {
			return err
		}
	}
	fs.line = stmt.Loc.Start.Line
	prep, err := fs.jump()
	if err != nil {
		return err
	}
	if err := g.forBody(stmt.Body, stmt.Names); err != nil {
		return err
	}
	fs.patchToHere(prep)
	fs.line = stmt.Loc.Start.Line
	if _, err := fs.codeABC(OpTForCall, base, 0, uint16(len(stmt.Names))); err != nil {
		return err
	}
	endFor, err := fs.codeAsBx(OpTForLoop, base+2, 0)
	if err != nil {
		return err
	}
	if err := fs.patchList([]int{endFor}, prep[0]+1); err != nil {
		return err
	}
	return fs.leaveBlock()
}

// forBody compiles the body of a for loop
// in a new block that declares the loop variables.
//
// Equivalent to `forbody` in upstream Lua.
func (g *generator) forBody(body []luaast.Stmt, names []*luaast.Ident) error {
	fs := g.fs
	fs.enterBlock(false)
	for _, name := range names {
		if err := fs.activateVariable(name.Name); err != nil {
			return err
		}
	}
	if _, err := fs.reserveRegisters(len(names)); err != nil {
		return err
	}
	if err := g.block(body); err != nil {
		return err
	}
	return fs.leaveBlock()
}

// returnStatement compiles a return statement.
//
// Equivalent to `retstat` in upstream Lua.
func (g *generator) returnStatement(stmt *luaast.ReturnStmt) error {
	fs := g.fs
	var first, n int
	switch {
	case len(stmt.Values) == 0:
	case luaast.IsMultiValued(stmt.Values[len(stmt.Values)-1]):
		first = fs.firstFreeRegister
		last := len(stmt.Values) - 1
		for _, v := range stmt.Values[:last] {
			if _, err := g.exprToNextReg(v); err != nil {
				return err
			}
		}
		r, err := fs.reserveRegisters(1)
		if err != nil {
			return err
		}
		if err := g.multiExpr(stmt.Values[last], r, true, multRet); err != nil {
			return err
		}
		if _, isCall := stmt.Values[last].(*luaast.CallExpr); isCall && last == 0 {
			pc := len(fs.Code) - 1
			call := fs.Code[pc]
			if call.OpCode() != OpCall {
				panic("internal error: return call did not end with CALL")
			}
			fs.Code[pc] = ABCInstruction(OpTailCall, call.ArgA(), call.ArgB(), call.ArgC())
		}
		n = multRet
	case len(stmt.Values) == 1:
		var err error
		first, err = g.anyReg(stmt.Values[0])
		if err != nil {
			return err
		}
		n = 1
	default:
		first = fs.firstFreeRegister
		for _, v := range stmt.Values {
			if _, err := g.exprToNextReg(v); err != nil {
				return err
			}
		}
		n = len(stmt.Values)
	}
	g.setPos(stmt)
	_, err := fs.codeABC(OpReturn, first, uint16(n+1), 0)
	return err
}

func (g *generator) breakStatement(stmt *luaast.BreakStmt) error {
	fs := g.fs
	if !fs.insideLoop() {
		return fs.errorf("break outside a loop")
	}
	j, err := fs.jump()
	if err != nil {
		return err
	}
	fs.addBreak(j)
	return nil
}

func firstStatement(stmts []luaast.Stmt) luaast.Stmt {
	if len(stmts) == 0 {
		return nil
	}
	return stmts[0]
}

// lastLine returns the line that the last statement ends on
// or def if stmts is empty.
func lastLine(stmts []luaast.Stmt, def int) int {
	if len(stmts) == 0 {
		return def
	}
	return stmts[len(stmts)-1].Span().End.Line
}
