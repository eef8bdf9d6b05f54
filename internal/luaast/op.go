// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

//go:generate go tool stringer -type=BinaryOp,UnaryOp,FieldKind -linecomment -output=op_string.go

package luaast

// BinaryOp is an enumeration of infix operators.
// The zero value is not a valid operator.
type BinaryOp int

// [BinaryOp] values.
const (
	OpOr     BinaryOp = 1 + iota // or
	OpAnd                        // and
	OpBOr                        // |
	OpBXor                       // ~
	OpBAnd                       // &
	OpEq                         // ==
	OpNE                         // ~=
	OpLT                         // <
	OpLE                         // <=
	OpGT                         // >
	OpGE                         // >=
	OpShl                        // <<
	OpShr                        // >>
	OpConcat                     // ..
	OpAdd                        // +
	OpSub                        // -
	OpMul                        // *
	OpDiv                        // /
	OpIDiv                       // //
	OpMod                        // %
	OpPow                        // ^
)

var binaryOps = map[string]BinaryOp{
	"or":  OpOr,
	"and": OpAnd,
	"|":   OpBOr,
	"~":   OpBXor,
	"&":   OpBAnd,
	"==":  OpEq,
	"~=":  OpNE,
	"<":   OpLT,
	"<=":  OpLE,
	">":   OpGT,
	">=":  OpGE,
	"<<":  OpShl,
	">>":  OpShr,
	"..":  OpConcat,
	"+":   OpAdd,
	"-":   OpSub,
	"*":   OpMul,
	"/":   OpDiv,
	"//":  OpIDiv,
	"%":   OpMod,
	"^":   OpPow,
}

// BinaryOpFor returns the operator spelled as s.
func BinaryOpFor(s string) (BinaryOp, bool) {
	op, ok := binaryOps[s]
	return op, ok
}

// IsComparison reports whether op produces a boolean from an order or equality test.
func (op BinaryOp) IsComparison() bool {
	return OpEq <= op && op <= OpGE
}

// IsLogical reports whether op is a short-circuiting operator.
func (op BinaryOp) IsLogical() bool {
	return op == OpOr || op == OpAnd
}

// UnaryOp is an enumeration of prefix operators.
// The zero value is not a valid operator.
type UnaryOp int

// [UnaryOp] values.
const (
	OpNot  UnaryOp = 1 + iota // not
	OpNeg                     // -
	OpBNot                    // ~
	OpLen                     // #
)

// UnaryOpFor returns the operator spelled as s.
func UnaryOpFor(s string) (UnaryOp, bool) {
	switch s {
	case "not":
		return OpNot, true
	case "-":
		return OpNeg, true
	case "~":
		return OpBNot, true
	case "#":
		return OpLen, true
	default:
		return 0, false
	}
}
