// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"fmt"

	"zb.256lights.llc/luac53/internal/luaast"
)

// multRet is the result count that asks a call or vararg expression
// for all of its values.
const multRet = -1

// exprToNextReg evaluates e into a newly reserved register
// at the top of the stack and returns the register.
//
// Equivalent to `luaK_exp2nextreg` in upstream Lua.
func (g *generator) exprToNextReg(e luaast.Expr) (int, error) {
	r, err := g.fs.reserveRegisters(1)
	if err != nil {
		return 0, err
	}
	if err := g.exprToReg(e, r, true); err != nil {
		return 0, err
	}
	return r, nil
}

// anyReg evaluates e into some register and returns the register.
// A local variable is used in place.
// Otherwise, the result is a temporary
// that the caller should release with [funcState.freeRegister].
//
// Equivalent to `luaK_exp2anyreg` in upstream Lua.
func (g *generator) anyReg(e luaast.Expr) (int, error) {
	if r, ok := g.localOperand(e); ok {
		return r, nil
	}
	r, err := g.fs.allocRegister()
	if err != nil {
		return 0, err
	}
	if err := g.exprToReg(e, r, true); err != nil {
		return 0, err
	}
	return r, nil
}

// operandReg is like [generator.anyReg],
// but evaluates e directly into dst if dst is fresh.
// It is used for the first operand of an instruction that writes to dst.
func (g *generator) operandReg(e luaast.Expr, dst int, fresh bool) (int, error) {
	if r, ok := g.localOperand(e); ok {
		return r, nil
	}
	if !fresh {
		return g.anyReg(e)
	}
	if err := g.exprToReg(e, dst, true); err != nil {
		return 0, err
	}
	return dst, nil
}

// freeOperand releases a register returned by [generator.operandReg].
func (g *generator) freeOperand(r, dst int) {
	if r != dst {
		g.fs.freeRegister(r)
	}
}

// localOperand returns the register of e
// if e names a local variable.
func (g *generator) localOperand(e luaast.Expr) (int, bool) {
	id, ok := e.(*luaast.Ident)
	if !ok {
		return 0, false
	}
	r := g.fs.searchVariable(id.Name)
	return r, r >= 0
}

// upvalueOperand returns the upvalue index of e
// if e names an upvalue.
func (g *generator) upvalueOperand(e luaast.Expr) (int, bool) {
	id, ok := e.(*luaast.Ident)
	if !ok || g.fs.searchVariable(id.Name) >= 0 {
		return 0, false
	}
	kind, index, err := resolve(g.fs, id.Name, true)
	if err != nil || kind != varUpvalue {
		return 0, false
	}
	return index, true
}

// rk evaluates e into an RK operand:
// a constant if e is a literal that fits in the operand,
// or a register otherwise.
//
// Equivalent to `luaK_exp2RK` in upstream Lua.
func (g *generator) rk(e luaast.Expr) (uint16, error) {
	v, isConst, err := g.constantValue(e)
	if err != nil {
		return 0, err
	}
	if isConst {
		return g.rkValue(v)
	}
	r, err := g.anyReg(e)
	if err != nil {
		return 0, err
	}
	return uint16(r), nil
}

// rkValue returns an RK operand for a constant.
func (g *generator) rkValue(v Value) (uint16, error) {
	fs := g.fs
	k, err := fs.addConstant(v)
	if err != nil {
		return 0, err
	}
	if k <= MaxIndexRK {
		return RKConstant(k), nil
	}
	r, err := fs.allocRegister()
	if err != nil {
		return 0, err
	}
	if err := fs.loadConstant(r, k); err != nil {
		return 0, err
	}
	return uint16(r), nil
}

// constantValue reports whether e is a literal that can be stored
// in the constant table, and its value if so.
// Negated numerals are folded.
func (g *generator) constantValue(e luaast.Expr) (_ Value, isConst bool, err error) {
	switch e := e.(type) {
	case *luaast.NilLit:
		return Value{}, true, nil
	case *luaast.BoolLit:
		return BoolValue(e.Value), true, nil
	case *luaast.StringLit:
		s, err := e.Value()
		if err != nil {
			g.setPos(e)
			return Value{}, false, g.fs.errorf("%v", err)
		}
		return StringValue(s), true, nil
	case *luaast.ParenExpr:
		return g.constantValue(e.Inner)
	case *luaast.UnaryExpr:
		if e.Op != luaast.OpNot {
			return g.numericConstant(e)
		}
		v, isConst, err := g.constantValue(e.Operand)
		if !isConst || err != nil {
			return Value{}, false, err
		}
		return BoolValue(!isTruthy(v)), true, nil
	default:
		return g.numericConstant(e)
	}
}

// isTruthy reports whether v is neither nil nor false.
func isTruthy(v Value) bool {
	b, isBool := v.Bool()
	return !v.IsNil() && (!isBool || b)
}

// numericConstant reports whether e is a numeral
// or an arithmetic expression on numerals that can be folded,
// and its value if so.
func (g *generator) numericConstant(e luaast.Expr) (_ Value, isConst bool, err error) {
	switch e := e.(type) {
	case *luaast.NumberLit:
		n, err := e.Value()
		if err != nil {
			g.setPos(e)
			return Value{}, false, g.fs.errorf("malformed number near '%s'", e.Raw)
		}
		return NumberValue(n), true, nil
	case *luaast.ParenExpr:
		return g.numericConstant(e.Inner)
	case *luaast.UnaryExpr:
		op, ok := unaryOps[e.Op]
		if !ok || (op != OpUNM && op != OpBNot) {
			return Value{}, false, nil
		}
		v, isConst, err := g.numericConstant(e.Operand)
		if !isConst || err != nil {
			return Value{}, false, err
		}
		v, isConst = foldArithmetic(op, v, Value{})
		return v, isConst, nil
	case *luaast.BinaryExpr:
		op, ok := arithmeticOps[e.Op]
		if !ok {
			return Value{}, false, nil
		}
		v1, isConst, err := g.numericConstant(e.Left)
		if !isConst || err != nil {
			return Value{}, false, err
		}
		v2, isConst, err := g.numericConstant(e.Right)
		if !isConst || err != nil {
			return Value{}, false, err
		}
		v, isConst := foldArithmetic(op, v1, v2)
		return v, isConst, nil
	default:
		return Value{}, false, nil
	}
}

// exprToReg evaluates e and stores its value in register dst.
// If e produces multiple values, only the first is kept.
// fresh indicates that dst is a temporary that no other expression refers to,
// so it can hold intermediate results.
//
// Equivalent to `exp2reg` in upstream Lua.
func (g *generator) exprToReg(e luaast.Expr, dst int, fresh bool) error {
	fs := g.fs
	g.setPos(e)

	v, isConst, err := g.constantValue(e)
	if err != nil {
		return err
	}
	if isConst {
		switch {
		case v.IsNil():
			return fs.loadNil(dst, 1)
		case v.IsBoolean():
			b, _ := v.Bool()
			_, err := fs.codeABC(OpLoadBool, dst, boolArg(b), 0)
			return err
		default:
			k, err := fs.addConstant(v)
			if err != nil {
				return err
			}
			return fs.loadConstant(dst, k)
		}
	}

	switch e := e.(type) {
	case *luaast.Ident:
		return g.name(e, dst)
	case *luaast.VarargExpr:
		return g.multiExpr(e, dst, fresh, 1)
	case *luaast.CallExpr:
		return g.multiExpr(e, dst, fresh, 1)
	case *luaast.ParenExpr:
		return g.exprToReg(e.Inner, dst, fresh)
	case *luaast.FunctionExpr:
		return g.function(e, dst)
	case *luaast.MemberExpr:
		return g.index(e, dst, fresh)
	case *luaast.TableExpr:
		return g.table(e, dst, fresh)
	case *luaast.UnaryExpr:
		return g.unary(e, dst, fresh)
	case *luaast.BinaryExpr:
		switch {
		case e.Op.IsLogical():
			return g.logical(e, dst, fresh)
		case e.Op.IsComparison():
			return g.comparison(e, dst, fresh)
		case e.Op == luaast.OpConcat:
			return g.concat(e, dst, fresh)
		default:
			return g.arithmetic(e, dst, fresh)
		}
	default:
		panic(fmt.Sprintf("internal error: unhandled expression %T", e))
	}
}

// name loads the value of a variable into dst.
//
// Equivalent to `singlevar` in upstream Lua.
func (g *generator) name(id *luaast.Ident, dst int) error {
	fs := g.fs
	kind, index, err := resolve(fs, id.Name, true)
	if err != nil {
		return err
	}
	switch kind {
	case varLocal:
		if index == dst {
			return nil
		}
		_, err := fs.codeABC(OpMove, dst, uint16(index), 0)
		return err
	case varUpvalue:
		_, err := fs.codeABC(OpGetUpval, dst, uint16(index), 0)
		return err
	}

	// Global variable: _ENV[name].
	kind, index, err = g.resolveEnv()
	if err != nil {
		return err
	}
	key, err := g.rkValue(StringValue(id.Name))
	if err != nil {
		return err
	}
	op := OpGetTabUp
	if kind == varLocal {
		op = OpGetTable
	}
	if _, err := fs.codeABC(op, dst, uint16(index), key); err != nil {
		return err
	}
	fs.freeRK(key)
	return nil
}

// index compiles a table indexing expression into dst.
func (g *generator) index(e *luaast.MemberExpr, dst int, fresh bool) error {
	fs := g.fs
	op := OpGetTable
	var table int
	if up, ok := g.upvalueOperand(e.Object); ok {
		op = OpGetTabUp
		table = up
	} else {
		var err error
		table, err = g.operandReg(e.Object, dst, fresh)
		if err != nil {
			return err
		}
	}
	key, err := g.rk(e.Key)
	if err != nil {
		return err
	}
	g.setPos(e)
	if _, err := fs.codeABC(op, dst, uint16(table), key); err != nil {
		return err
	}
	fs.freeRK(key)
	if op == OpGetTable {
		g.freeOperand(table, dst)
	}
	return nil
}

// multiExpr evaluates a call or vararg expression
// to produce n values in the registers starting at dst.
// n may be 0 to discard every value
// or [multRet] to keep all of them,
// in which case dst must be at the top of the stack.
// The caller must have reserved the registers.
//
// Equivalent to `luaK_setreturns` in upstream Lua.
func (g *generator) multiExpr(e luaast.Expr, dst int, fresh bool, n int) error {
	fs := g.fs
	switch e := e.(type) {
	case *luaast.VarargExpr:
		g.setPos(e)
		if !fs.IsVararg {
			return fs.errorf("cannot use '...' outside a vararg function")
		}
		_, err := fs.codeABC(OpVararg, dst, uint16(n+1), 0)
		return err
	case *luaast.CallExpr:
		return g.call(e, dst, fresh, n)
	default:
		panic(fmt.Sprintf("internal error: multiExpr(%T)", e))
	}
}

// call compiles a function call.
// The function and its arguments are placed in consecutive registers
// at the top of the stack.
// If dst is fresh and the last register reserved,
// the call is made in place.
// Otherwise, the results are moved to dst afterward.
//
// Equivalent to `funcargs` in upstream Lua.
func (g *generator) call(e *luaast.CallExpr, dst int, fresh bool, n int) error {
	fs := g.fs
	inPlace := fresh && dst+max(n, 1) == fs.firstFreeRegister
	if inPlace {
		fs.setFirstFreeRegister(dst)
	} else if n == multRet {
		panic("internal error: open call result must be at top of stack")
	}
	base := fs.firstFreeRegister

	if e.Method != nil {
		// Equivalent to `luaK_self` in upstream Lua.
		obj, ok := g.localOperand(e.Callee)
		if !ok {
			var err error
			obj, err = g.exprToNextReg(e.Callee)
			if err != nil {
				return err
			}
			fs.freeRegister(obj)
		}
		if _, err := fs.reserveRegisters(2); err != nil {
			return err
		}
		key, err := g.rkValue(StringValue(e.Method.Name))
		if err != nil {
			return err
		}
		g.setPos(e.Method)
		if _, err := fs.codeABC(OpSelf, base, uint16(obj), key); err != nil {
			return err
		}
		fs.freeRK(key)
	} else {
		if _, err := g.exprToNextReg(e.Callee); err != nil {
			return err
		}
	}

	open := false
	for i, arg := range e.Args {
		if i == len(e.Args)-1 && luaast.IsMultiValued(arg) {
			r, err := fs.reserveRegisters(1)
			if err != nil {
				return err
			}
			if err := g.multiExpr(arg, r, true, multRet); err != nil {
				return err
			}
			open = true
			break
		}
		if _, err := g.exprToNextReg(arg); err != nil {
			return err
		}
	}

	b := uint16(fs.firstFreeRegister - base)
	if open {
		b = 0
	}
	fs.line = e.Loc.Start.Line
	if _, err := fs.codeABC(OpCall, base, b, uint16(n+1)); err != nil {
		return err
	}
	fs.setFirstFreeRegister(base)
	if _, err := fs.reserveRegisters(max(n, 1)); err != nil {
		return err
	}
	if inPlace {
		return nil
	}
	for i := range n {
		if _, err := fs.codeABC(OpMove, dst+i, uint16(base+i), 0); err != nil {
			return err
		}
	}
	fs.setFirstFreeRegister(base)
	return nil
}

// table compiles a table constructor into dst.
//
// Equivalent to `constructor` in upstream Lua.
func (g *generator) table(e *luaast.TableExpr, dst int, fresh bool) error {
	fs := g.fs
	t := dst
	if !fresh || dst+1 != fs.firstFreeRegister {
		var err error
		t, err = fs.reserveRegisters(1)
		if err != nil {
			return err
		}
	}
	pc, err := fs.codeABC(OpNewTable, t, 0, 0)
	if err != nil {
		return err
	}

	arrayCount, hashCount, toStore := 0, 0, 0
	for i, field := range e.Fields {
		g.setPos(field)
		if field.Kind != luaast.PositionalField {
			// Equivalent to `recfield` in upstream Lua.
			hashCount++
			top := fs.firstFreeRegister
			key, err := g.rk(field.Key)
			if err != nil {
				return err
			}
			val, err := g.rk(field.Value)
			if err != nil {
				return err
			}
			g.setPos(field)
			if _, err := fs.codeABC(OpSetTable, t, key, val); err != nil {
				return err
			}
			// Either operand may have come from the free list below top.
			fs.freeRK(val)
			fs.freeRK(key)
			fs.setFirstFreeRegister(top)
			continue
		}

		arrayCount++
		if i == len(e.Fields)-1 && luaast.IsMultiValued(field.Value) {
			r, err := fs.reserveRegisters(1)
			if err != nil {
				return err
			}
			if err := g.multiExpr(field.Value, r, true, multRet); err != nil {
				return err
			}
			if err := g.setList(t, arrayCount, multRet); err != nil {
				return err
			}
			// The last item's results are not counted in the table size.
			arrayCount--
			toStore = 0
			break
		}
		if _, err := g.exprToNextReg(field.Value); err != nil {
			return err
		}
		toStore++
		if toStore == FieldsPerFlush {
			if err := g.setList(t, arrayCount, toStore); err != nil {
				return err
			}
			toStore = 0
		}
	}
	if toStore > 0 {
		if err := g.setList(t, arrayCount, toStore); err != nil {
			return err
		}
	}

	fs.Code[pc] = ABCInstruction(OpNewTable, uint8(t), intToFloatingByte(arrayCount), intToFloatingByte(hashCount))
	if t != dst {
		g.setPos(e)
		if _, err := fs.codeABC(OpMove, dst, uint16(t), 0); err != nil {
			return err
		}
		fs.setFirstFreeRegister(t)
	}
	return nil
}

// setList stores pending list items of the table in register t.
// n is the number of list items so far
// and toStore is the number of items in registers above t
// (or [multRet] if they extend to the top of the stack).
//
// Equivalent to `luaK_setlist` in upstream Lua.
func (g *generator) setList(t int, n int, toStore int) error {
	fs := g.fs
	c := (n-1)/FieldsPerFlush + 1
	b := uint16(toStore)
	if toStore == multRet {
		b = 0
	}
	switch {
	case c <= maxArgC:
		if _, err := fs.codeABC(OpSetList, t, b, uint16(c)); err != nil {
			return err
		}
	case c <= maxArgAx:
		if _, err := fs.codeABC(OpSetList, t, b, 0); err != nil {
			return err
		}
		if _, err := fs.code(ExtraArgument(uint32(c))); err != nil {
			return err
		}
	default:
		return fs.errorf("constructor too long")
	}
	fs.setFirstFreeRegister(t + 1)
	return nil
}

// unary compiles a prefix operator into dst.
//
// Equivalent to `luaK_prefix` in upstream Lua.
func (g *generator) unary(e *luaast.UnaryExpr, dst int, fresh bool) error {
	op, ok := unaryOps[e.Op]
	if !ok {
		panic(fmt.Sprintf("internal error: unknown unary operator %v", e.Op))
	}
	r, err := g.operandReg(e.Operand, dst, fresh)
	if err != nil {
		return err
	}
	g.setPos(e)
	if _, err := g.fs.codeABC(op, dst, uint16(r), 0); err != nil {
		return err
	}
	g.freeOperand(r, dst)
	return nil
}

// arithmetic compiles an arithmetic or bitwise operator into dst.
//
// Equivalent to `codebinexpval` in upstream Lua.
func (g *generator) arithmetic(e *luaast.BinaryExpr, dst int, fresh bool) error {
	fs := g.fs
	op, ok := arithmeticOps[e.Op]
	if !ok {
		panic(fmt.Sprintf("internal error: unknown binary operator %v", e.Op))
	}

	var b, c uint16
	_, leftNumeral, err := g.numericConstant(e.Left)
	if err != nil {
		return err
	}
	if leftNumeral {
		// Numerals are kept aside until the right operand is evaluated.
		if c, err = g.rk(e.Right); err != nil {
			return err
		}
		if b, err = g.rk(e.Left); err != nil {
			return err
		}
	} else {
		if b, err = g.leftOperand(e.Left, dst, fresh); err != nil {
			return err
		}
		if c, err = g.rk(e.Right); err != nil {
			return err
		}
	}
	g.setPos(e)
	if _, err := fs.codeABC(op, dst, b, c); err != nil {
		return err
	}
	g.freeOperands(b, c, dst)
	return nil
}

// leftOperand evaluates the first operand of a binary operator
// into an RK operand,
// using dst for intermediate values if it is fresh.
func (g *generator) leftOperand(e luaast.Expr, dst int, fresh bool) (uint16, error) {
	_, isConst, err := g.constantValue(e)
	if err != nil {
		return 0, err
	}
	if isConst {
		return g.rk(e)
	}
	r, err := g.operandReg(e, dst, fresh)
	if err != nil {
		return 0, err
	}
	return uint16(r), nil
}

// freeOperands releases the registers of two RK operands,
// higher register first.
//
// Equivalent to `freeexps` in upstream Lua.
func (g *generator) freeOperands(b, c uint16, dst int) {
	free := func(arg uint16) {
		if !IsConstant(arg) && int(arg) != dst {
			g.fs.freeRegister(int(arg))
		}
	}
	if !IsConstant(b) && !IsConstant(c) && b < c {
		free(c)
		free(b)
	} else {
		free(b)
		free(c)
	}
}

// comparisonOperands evaluates the operands of a comparison
// and returns the instruction's opcode, A argument,
// and operands for a test that skips the next instruction
// unless the comparison is true.
//
// Equivalent to `codecomp` in upstream Lua.
func (g *generator) comparisonOperands(e *luaast.BinaryExpr, dst int, fresh bool) (op OpCode, a uint8, b, c uint16, err error) {
	b, err = g.leftOperand(e.Left, dst, fresh)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	c, err = g.rk(e.Right)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	a = 1
	switch e.Op {
	case luaast.OpEq:
		op = OpEQ
	case luaast.OpNE:
		op, a = OpEQ, 0
	case luaast.OpLT:
		op = OpLT
	case luaast.OpLE:
		op = OpLE
	case luaast.OpGT:
		op, b, c = OpLT, c, b
	case luaast.OpGE:
		op, b, c = OpLE, c, b
	default:
		panic(fmt.Sprintf("internal error: %v is not a comparison", e.Op))
	}
	return op, a, b, c, nil
}

// comparison compiles a comparison into a boolean value in dst:
//
//	EQ/LT/LE a b c
//	JMP      1
//	LOADBOOL dst 0 1
//	LOADBOOL dst 1 0
func (g *generator) comparison(e *luaast.BinaryExpr, dst int, fresh bool) error {
	fs := g.fs
	op, a, b, c, err := g.comparisonOperands(e, dst, fresh)
	if err != nil {
		return err
	}
	g.setPos(e)
	g.freeOperands(b, c, dst)
	if _, err := fs.codeABC(op, int(a), b, c); err != nil {
		return err
	}
	jumpTrue, err := fs.jump()
	if err != nil {
		return err
	}
	fs.label()
	if _, err := fs.codeABC(OpLoadBool, dst, 0, 1); err != nil {
		return err
	}
	if err := fs.patchList(jumpTrue, fs.label()); err != nil {
		return err
	}
	if _, err := fs.codeABC(OpLoadBool, dst, 1, 0); err != nil {
		return err
	}
	fs.label()
	return nil
}

// logical compiles a short-circuiting and/or into dst.
// The left operand's value is kept if it decides the result:
//
//	TESTSET  dst left c   (or TEST dst c if the left operand is in dst)
//	JMP      done
//	<right operand into dst>
//	done:
//
// where c is 0 for "and" and 1 for "or".
func (g *generator) logical(e *luaast.BinaryExpr, dst int, fresh bool) error {
	fs := g.fs
	c := boolArg(e.Op == luaast.OpOr)
	r, err := g.operandReg(e.Left, dst, fresh)
	if err != nil {
		return err
	}
	g.setPos(e)
	if r == dst {
		_, err = fs.codeABC(OpTest, dst, 0, c)
	} else {
		g.freeOperand(r, dst)
		_, err = fs.codeABC(OpTestSet, dst, uint16(r), c)
	}
	if err != nil {
		return err
	}
	done, err := fs.jump()
	if err != nil {
		return err
	}
	if err := g.exprToReg(e.Right, dst, fresh); err != nil {
		return err
	}
	fs.patchToHere(done)
	return nil
}

// concat compiles a chain of concatenations into dst.
// The operands are evaluated into consecutive registers
// and joined by a single instruction.
func (g *generator) concat(e *luaast.BinaryExpr, dst int, fresh bool) error {
	fs := g.fs
	var operands []luaast.Expr
	var curr luaast.Expr = e
	for {
		b, ok := curr.(*luaast.BinaryExpr)
		if !ok || b.Op != luaast.OpConcat {
			operands = append(operands, curr)
			break
		}
		operands = append(operands, b.Left)
		curr = b.Right
	}

	inPlace := fresh && dst+1 == fs.firstFreeRegister
	if inPlace {
		fs.setFirstFreeRegister(dst)
	}
	base := fs.firstFreeRegister
	for _, operand := range operands {
		if _, err := g.exprToNextReg(operand); err != nil {
			return err
		}
	}
	g.setPos(e)
	if _, err := fs.codeABC(OpConcat, dst, uint16(base), uint16(base+len(operands)-1)); err != nil {
		return err
	}
	if inPlace {
		fs.setFirstFreeRegister(dst + 1)
	} else {
		fs.setFirstFreeRegister(base)
	}
	return nil
}

// condition compiles a test of e
// and returns the jumps taken when e is false.
//
// Equivalent to `cond` in upstream Lua.
func (g *generator) condition(e luaast.Expr) ([]int, error) {
	return g.jumpIf(e, false)
}

// jumpIf compiles a test of e that jumps when e's truth value is cond
// and falls through otherwise.
// It returns the unpatched jumps.
//
// Equivalent to `luaK_goiftrue` and `luaK_goiffalse` in upstream Lua.
func (g *generator) jumpIf(e luaast.Expr, cond bool) ([]int, error) {
	fs := g.fs
	g.setPos(e)
	v, isConst, err := g.constantValue(e)
	if err != nil {
		return nil, err
	}
	if isConst {
		if isTruthy(v) != cond {
			return nil, nil
		}
		return fs.jump()
	}

	switch e := e.(type) {
	case *luaast.ParenExpr:
		return g.jumpIf(e.Inner, cond)
	case *luaast.UnaryExpr:
		if e.Op == luaast.OpNot {
			return g.jumpIf(e.Operand, !cond)
		}
	case *luaast.BinaryExpr:
		switch {
		case e.Op.IsComparison():
			op, a, b, c, err := g.comparisonOperands(e, 0, false)
			if err != nil {
				return nil, err
			}
			if !cond {
				a ^= 1
			}
			g.setPos(e)
			g.freeOperands(b, c, -1)
			if _, err := fs.codeABC(op, int(a), b, c); err != nil {
				return nil, err
			}
			return fs.jump()
		case e.Op.IsLogical() && (e.Op == luaast.OpAnd) == !cond:
			// "a and b" is false if either operand is false.
			// "a or b" is true if either operand is true.
			left, err := g.jumpIf(e.Left, cond)
			if err != nil {
				return nil, err
			}
			right, err := g.jumpIf(e.Right, cond)
			if err != nil {
				return nil, err
			}
			return append(left, right...), nil
		case e.Op.IsLogical():
			// "a and b" is true only if both operands are true.
			// "a or b" is false only if both operands are false.
			skip, err := g.jumpIf(e.Left, !cond)
			if err != nil {
				return nil, err
			}
			jumps, err := g.jumpIf(e.Right, cond)
			if err != nil {
				return nil, err
			}
			fs.patchToHere(skip)
			return jumps, nil
		}
	}

	return g.testRegister(e, cond)
}

// testRegister evaluates e into a register
// and emits a jump taken when e's truth value is cond.
//
// Equivalent to `jumponcond` in upstream Lua.
func (g *generator) testRegister(e luaast.Expr, cond bool) ([]int, error) {
	fs := g.fs
	r, err := g.anyReg(e)
	if err != nil {
		return nil, err
	}
	g.setPos(e)
	fs.freeRegister(r)
	if _, err := fs.codeABC(OpTest, r, 0, boolArg(cond)); err != nil {
		return nil, err
	}
	return fs.jump()
}

func boolArg(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}
