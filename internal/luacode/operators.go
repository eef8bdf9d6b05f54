// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"math"

	"zb.256lights.llc/luac53/internal/luaast"
)

// arithmeticOps maps the arithmetic and bitwise operators
// to the instruction that performs them.
var arithmeticOps = map[luaast.BinaryOp]OpCode{
	luaast.OpAdd:  OpAdd,
	luaast.OpSub:  OpSub,
	luaast.OpMul:  OpMul,
	luaast.OpMod:  OpMod,
	luaast.OpPow:  OpPow,
	luaast.OpDiv:  OpDiv,
	luaast.OpIDiv: OpIDiv,
	luaast.OpBAnd: OpBAnd,
	luaast.OpBOr:  OpBOr,
	luaast.OpBXor: OpBXOR,
	luaast.OpShl:  OpSHL,
	luaast.OpShr:  OpSHR,
}

var unaryOps = map[luaast.UnaryOp]OpCode{
	luaast.OpNeg:  OpUNM,
	luaast.OpBNot: OpBNot,
	luaast.OpNot:  OpNot,
	luaast.OpLen:  OpLen,
}

func isIntegralOp(op OpCode) bool {
	return op == OpBAnd ||
		op == OpBOr ||
		op == OpBXOR ||
		op == OpSHL ||
		op == OpSHR ||
		op == OpBNot
}

// foldArithmetic computes the result of an arithmetic or bitwise instruction
// on constant operands.
// For the unary operators [OpUNM] and [OpBNot], v2 is ignored.
// ok is false if the operation would raise an error at run time
// or if its result is a float zero or NaN,
// which cannot be stored as a constant without losing information.
//
// Equivalent to `constfolding` in upstream Lua.
func foldArithmetic(op OpCode, v1, v2 Value) (_ Value, ok bool) {
	if op == OpUNM || op == OpBNot {
		v2 = IntegerValue(0)
	}
	if !v1.IsNumber() || !v2.IsNumber() {
		return Value{}, false
	}

	var result Value
	switch {
	case isIntegralOp(op):
		i1, ok1 := exactInt64(v1)
		i2, ok2 := exactInt64(v2)
		if !ok1 || !ok2 {
			return Value{}, false
		}
		result = IntegerValue(intArithmetic(op, i1, i2))
	case op == OpDiv || op == OpPow:
		n1, _ := v1.Float64()
		n2, _ := v2.Float64()
		if op == OpDiv && n2 == 0 {
			return Value{}, false
		}
		result = FloatValue(floatArithmetic(op, n1, n2))
	default:
		if n2, _ := v2.Float64(); n2 == 0 && (op == OpMod || op == OpIDiv) {
			return Value{}, false
		}
		i1, isInt1 := v1.Int64()
		i2, isInt2 := v2.Int64()
		if isInt1 && isInt2 {
			result = IntegerValue(intArithmetic(op, i1, i2))
			break
		}
		n1, _ := v1.Float64()
		n2, _ := v2.Float64()
		result = FloatValue(floatArithmetic(op, n1, n2))
	}

	if f, isNumber := result.Float64(); !result.IsInteger() && isNumber && (f == 0 || math.IsNaN(f)) {
		return Value{}, false
	}
	return result, true
}

// exactInt64 converts a number to an integer
// if it has an exact integer representation.
func exactInt64(v Value) (int64, bool) {
	if i, ok := v.Int64(); ok {
		return i, true
	}
	f, ok := v.Float64()
	if !ok || math.Floor(f) != f || f < math.MinInt64 || f >= -math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// intArithmetic performs an operation on integers.
// Division by zero must be checked by the caller.
func intArithmetic(op OpCode, v1, v2 int64) int64 {
	switch op {
	case OpAdd:
		return v1 + v2
	case OpSub:
		return v1 - v2
	case OpMul:
		return v1 * v2
	case OpMod:
		if v2 == -1 {
			// Avoids overflow with math.MinInt64 % -1.
			return 0
		}
		r := v1 % v2
		if r != 0 && r^v2 < 0 {
			r += v2
		}
		return r
	case OpIDiv:
		if v2 == -1 {
			return -v1
		}
		q := v1 / v2
		if v1^v2 < 0 && v1%v2 != 0 {
			// Go's integer division truncates toward zero.
			// Lua uses floor rounding.
			q--
		}
		return q
	case OpBAnd:
		return v1 & v2
	case OpBOr:
		return v1 | v2
	case OpBXOR:
		return v1 ^ v2
	case OpSHL:
		return shiftLeft(v1, v2)
	case OpSHR:
		if v2 == math.MinInt64 {
			return 0
		}
		return shiftLeft(v1, -v2)
	case OpUNM:
		return -v1
	case OpBNot:
		return int64(^uint64(v1))
	default:
		panic("unhandled integer operator " + op.String())
	}
}

// shiftLeft performs a logical shift.
// Negative displacements shift right,
// and displacements of 64 bits or more produce zero.
func shiftLeft(x, y int64) int64 {
	switch {
	case y <= -64 || y >= 64:
		return 0
	case y < 0:
		return int64(uint64(x) >> -y)
	default:
		return int64(uint64(x) << y)
	}
}

func floatArithmetic(op OpCode, v1, v2 float64) float64 {
	switch op {
	case OpAdd:
		return v1 + v2
	case OpSub:
		return v1 - v2
	case OpMul:
		return v1 * v2
	case OpDiv:
		return v1 / v2
	case OpPow:
		if v2 == 2 {
			return v1 * v1
		}
		return math.Pow(v1, v2)
	case OpIDiv:
		return math.Floor(v1 / v2)
	case OpUNM:
		return -v1
	case OpMod:
		m := math.Mod(v1, v2)
		if m*v2 < 0 {
			m += v2
		}
		return m
	default:
		panic("unhandled float operator " + op.String())
	}
}
