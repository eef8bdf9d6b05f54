// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

//go:generate go tool stringer -type=OpCode,OpMode,ArgKind -linecomment -output=instruction_string.go

package luacode

import (
	"fmt"
	"strconv"
	"strings"
)

// Instruction is a single Lua 5.3 virtual machine instruction.
//
// The low 6 bits hold the [OpCode].
// The remaining bits are laid out according to the opcode's [OpMode]:
//
//	ABC:  B(9) C(9) A(8) op(6)
//	ABx:     Bx(18) A(8) op(6)
//	AsBx:   sBx(18) A(8) op(6)
//	Ax:          Ax(26) op(6)
type Instruction uint32

const (
	sizeOpCode = 6
	sizeA      = 8
	sizeB      = 9
	sizeC      = 9
	sizeBx     = sizeB + sizeC
	sizeAx     = sizeA + sizeB + sizeC

	posA  = sizeOpCode
	posC  = posA + sizeA
	posB  = posC + sizeC
	posBx = posC
	posAx = posA

	maxArgA  = 1<<sizeA - 1
	maxArgB  = 1<<sizeB - 1
	maxArgC  = 1<<sizeC - 1
	maxArgBx = 1<<sizeBx - 1
	maxArgAx = 1<<sizeAx - 1

	// offsetSBx is the bias added to a signed Bx argument.
	offsetSBx = maxArgBx >> 1
)

// Constant flag for RK operands.
const (
	// BitRK is set in a B or C argument
	// to indicate that it refers to a constant rather than a register.
	BitRK = 1 << (sizeB - 1)
	// MaxIndexRK is the largest constant index
	// that can be used directly in an RK operand.
	MaxIndexRK = BitRK - 1
)

// IsConstant reports whether an RK operand refers to a constant.
func IsConstant(arg uint16) bool {
	return arg&BitRK != 0
}

// ConstantIndex returns the constant table index of an RK operand.
// The result is only meaningful if [IsConstant] reports true.
func ConstantIndex(arg uint16) int {
	return int(arg &^ BitRK)
}

// RKConstant returns the RK operand that refers to the constant
// at index k of the constant table.
// RKConstant panics if k > [MaxIndexRK].
func RKConstant(k int) uint16 {
	if k < 0 || k > MaxIndexRK {
		panic("RKConstant argument out of range")
	}
	return uint16(k) | BitRK
}

// ABCInstruction returns a new [OpModeABC] [Instruction]
// with the given arguments.
// ABCInstruction panics if the [OpCode] given
// does not return [OpModeABC] from [OpCode.OpMode]
// or an argument is out of range.
func ABCInstruction(op OpCode, a uint8, b, c uint16) Instruction {
	if op.OpMode() != OpModeABC {
		panic("ABCInstruction with invalid OpCode")
	}
	if b > maxArgB || c > maxArgC {
		panic("ABCInstruction argument out of range")
	}
	return Instruction(op) |
		Instruction(a)<<posA |
		Instruction(b)<<posB |
		Instruction(c)<<posC
}

// ABxInstruction returns a new [OpModeABx] [Instruction]
// with the given arguments.
// ABxInstruction panics if the [OpCode] given
// does not return [OpModeABx] from [OpCode.OpMode].
func ABxInstruction(op OpCode, a uint8, bx uint32) Instruction {
	if op.OpMode() != OpModeABx {
		panic("ABxInstruction with invalid OpCode")
	}
	if bx > maxArgBx {
		panic("Bx argument out of range")
	}
	return Instruction(op) |
		Instruction(a)<<posA |
		Instruction(bx)<<posBx
}

// ABsBxInstruction returns a new [OpModeAsBx] [Instruction]
// with the given arguments.
// ABsBxInstruction panics if the [OpCode] given
// does not return [OpModeAsBx] from [OpCode.OpMode].
func ABsBxInstruction(op OpCode, a uint8, sbx int32) Instruction {
	if op.OpMode() != OpModeAsBx {
		panic("ABsBxInstruction with invalid OpCode")
	}
	if !fitsSignedBx(int64(sbx)) {
		panic("sBx argument out of range")
	}
	return Instruction(op) |
		Instruction(a)<<posA |
		Instruction(sbx+offsetSBx)<<posBx
}

// ExtraArgument returns an [OpExtraArg] [Instruction].
// ExtraArgument panics if given an argument that is too large.
func ExtraArgument(ax uint32) Instruction {
	if ax > maxArgAx {
		panic("ExtraArgument argument out of range")
	}
	return Instruction(OpExtraArg) | Instruction(ax)<<posAx
}

// fitsSignedBx reports whether i can be stored in a signed Bx argument.
func fitsSignedBx(i int64) bool {
	return -offsetSBx <= i && i <= maxArgBx-offsetSBx
}

// OpCode returns the instruction's type.
func (i Instruction) OpCode() OpCode {
	return OpCode(i & (1<<sizeOpCode - 1))
}

// ArgA returns the first (A) argument
// of an [OpModeABC], [OpModeABx], or [OpModeAsBx] instruction.
func (i Instruction) ArgA() uint8 {
	switch i.OpCode().OpMode() {
	case OpModeABC, OpModeABx, OpModeAsBx:
		return uint8(i >> posA)
	default:
		return 0
	}
}

// WithArgA returns a copy of i
// with its first (A) argument changed to the given value,
// or i unchanged if i doesn't have an A argument.
func (i Instruction) WithArgA(a uint8) (_ Instruction, ok bool) {
	switch i.OpCode().OpMode() {
	case OpModeABC, OpModeABx, OpModeAsBx:
		const mask = maxArgA << posA
		return i&^mask | Instruction(a)<<posA, true
	default:
		return i, false
	}
}

// ArgB returns the second (B) argument of an [OpModeABC] instruction.
func (i Instruction) ArgB() uint16 {
	if i.OpCode().OpMode() != OpModeABC {
		return 0
	}
	return uint16(i>>posB) & maxArgB
}

// WithArgB returns a copy of i
// with its second (B) argument changed to the given value,
// or i unchanged if [OpCode.OpMode] is not [OpModeABC].
func (i Instruction) WithArgB(b uint16) (_ Instruction, ok bool) {
	if i.OpCode().OpMode() != OpModeABC || b > maxArgB {
		return i, false
	}
	const mask = maxArgB << posB
	return i&^mask | Instruction(b)<<posB, true
}

// ArgC returns the third (C) argument of an [OpModeABC] instruction.
func (i Instruction) ArgC() uint16 {
	if i.OpCode().OpMode() != OpModeABC {
		return 0
	}
	return uint16(i>>posC) & maxArgC
}

// WithArgC returns a copy of i
// with its third (C) argument changed to the given value,
// or i unchanged if [OpCode.OpMode] is not [OpModeABC].
func (i Instruction) WithArgC(c uint16) (_ Instruction, ok bool) {
	if i.OpCode().OpMode() != OpModeABC || c > maxArgC {
		return i, false
	}
	const mask = maxArgC << posC
	return i&^mask | Instruction(c)<<posC, true
}

// ArgBx returns the second (Bx) argument of an [OpModeABx] instruction.
func (i Instruction) ArgBx() uint32 {
	if i.OpCode().OpMode() != OpModeABx {
		return 0
	}
	return uint32(i >> posBx)
}

// ArgSBx returns the signed second (sBx) argument of an [OpModeAsBx] instruction.
func (i Instruction) ArgSBx() int32 {
	if i.OpCode().OpMode() != OpModeAsBx {
		return 0
	}
	return int32(i>>posBx) - offsetSBx
}

// WithArgSBx returns a copy of i
// with its signed second (sBx) argument changed to the given value,
// or i unchanged if [OpCode.OpMode] is not [OpModeAsBx]
// or the value does not fit.
func (i Instruction) WithArgSBx(sbx int32) (_ Instruction, ok bool) {
	if i.OpCode().OpMode() != OpModeAsBx || !fitsSignedBx(int64(sbx)) {
		return i, false
	}
	const mask = maxArgBx << posBx
	return i&^mask | Instruction(sbx+offsetSBx)<<posBx, true
}

// ArgAx returns the argument passed to [ExtraArgument].
func (i Instruction) ArgAx() uint32 {
	if i.OpCode().OpMode() != OpModeAx {
		return 0
	}
	return uint32(i >> posAx)
}

// String decodes the instruction
// and formats it in the same manner as [luac] -l,
// without the trailing comment.
// Constant operands are shown as negative numbers starting at -1.
//
// [luac]: https://www.lua.org/manual/5.3/luac.html
func (i Instruction) String() string {
	op := i.OpCode()
	if !op.IsValid() {
		return fmt.Sprintf("Instruction(%#08x)", uint32(i))
	}
	sb := new(strings.Builder)
	fmt.Fprintf(sb, "%-9s\t", op)
	switch op.OpMode() {
	case OpModeABC:
		sb.WriteString(strconv.Itoa(int(i.ArgA())))
		if op.BMode() != OpArgN {
			sb.WriteString(" ")
			sb.WriteString(formatRK(i.ArgB()))
		}
		if op.CMode() != OpArgN {
			sb.WriteString(" ")
			sb.WriteString(formatRK(i.ArgC()))
		}
	case OpModeABx:
		sb.WriteString(strconv.Itoa(int(i.ArgA())))
		switch op.BMode() {
		case OpArgK:
			fmt.Fprintf(sb, " %d", -1-int(i.ArgBx()))
		case OpArgU:
			fmt.Fprintf(sb, " %d", i.ArgBx())
		}
	case OpModeAsBx:
		fmt.Fprintf(sb, "%d %d", i.ArgA(), i.ArgSBx())
	case OpModeAx:
		fmt.Fprintf(sb, "%d", -1-int(i.ArgAx()))
	}
	return sb.String()
}

func formatRK(arg uint16) string {
	if IsConstant(arg) {
		return strconv.Itoa(-1 - ConstantIndex(arg))
	}
	return strconv.Itoa(int(arg))
}

// OpCode is an enumeration of [Instruction] types.
type OpCode uint8

// IsValid reports whether the opcode is one of the known instructions.
func (op OpCode) IsValid() bool {
	return op <= maxOpCode
}

func (op OpCode) props() opProp {
	if !op.IsValid() {
		return 0
	}
	return opProps[op]
}

// OpMode returns the format of an [Instruction] that uses the opcode.
//
// Equivalent to `getOpMode` in upstream Lua.
func (op OpCode) OpMode() OpMode {
	return OpMode(op.props() & 7)
}

// BMode returns how the B (or Bx) argument of the opcode is used.
//
// Equivalent to `getBMode` in upstream Lua.
func (op OpCode) BMode() ArgKind {
	return ArgKind(op.props()>>5) & 3
}

// CMode returns how the C argument of the opcode is used.
//
// Equivalent to `getCMode` in upstream Lua.
func (op OpCode) CMode() ArgKind {
	return ArgKind(op.props()>>3) & 3
}

// SetsA reports whether an [Instruction] that uses the opcode
// would change the value of the register given in [Instruction.ArgA].
//
// Equivalent to `testAMode` in upstream Lua.
func (op OpCode) SetsA() bool {
	return op.props()&(1<<7) != 0
}

// IsTest reports whether the instruction is a test.
// In a valid program, the next instruction will be a jump.
//
// Equivalent to `testTMode` in upstream Lua.
func (op OpCode) IsTest() bool {
	return op.props()&(1<<8) != 0
}

// IsJump reports whether the instruction's sBx argument
// is a jump offset relative to the next instruction.
func (op OpCode) IsJump() bool {
	switch op {
	case OpJMP, OpForLoop, OpForPrep, OpTForLoop:
		return true
	default:
		return false
	}
}

// Defined [OpCode] values.
const (
	// A B R(A) := R(B)
	OpMove OpCode = 0 // MOVE
	// A Bx R(A) := Kst(Bx)
	OpLoadK OpCode = 1 // LOADK
	// A R(A) := Kst(extra arg)
	OpLoadKX OpCode = 2 // LOADKX
	// A B C R(A) := (Bool)B; if (C) pc++
	OpLoadBool OpCode = 3 // LOADBOOL
	// A B R(A), R(A+1), ..., R(A+B) := nil
	OpLoadNil OpCode = 4 // LOADNIL
	// A B R(A) := UpValue[B]
	OpGetUpval OpCode = 5 // GETUPVAL

	// A B C R(A) := UpValue[B][RK(C)]
	OpGetTabUp OpCode = 6 // GETTABUP
	// A B C R(A) := R(B)[RK(C)]
	OpGetTable OpCode = 7 // GETTABLE

	// A B C UpValue[A][RK(B)] := RK(C)
	OpSetTabUp OpCode = 8 // SETTABUP
	// A B UpValue[B] := R(A)
	OpSetUpval OpCode = 9 // SETUPVAL
	// A B C R(A)[RK(B)] := RK(C)
	OpSetTable OpCode = 10 // SETTABLE

	// A B C R(A) := {} (size = B,C)
	OpNewTable OpCode = 11 // NEWTABLE

	// A B C R(A+1) := R(B); R(A) := R(B)[RK(C)]
	OpSelf OpCode = 12 // SELF

	// A B C R(A) := RK(B) + RK(C)
	OpAdd OpCode = 13 // ADD
	// A B C R(A) := RK(B) - RK(C)
	OpSub OpCode = 14 // SUB
	// A B C R(A) := RK(B) * RK(C)
	OpMul OpCode = 15 // MUL
	// A B C R(A) := RK(B) % RK(C)
	OpMod OpCode = 16 // MOD
	// A B C R(A) := RK(B) ^ RK(C)
	OpPow OpCode = 17 // POW
	// A B C R(A) := RK(B) / RK(C)
	OpDiv OpCode = 18 // DIV
	// A B C R(A) := RK(B) // RK(C)
	OpIDiv OpCode = 19 // IDIV
	// A B C R(A) := RK(B) & RK(C)
	OpBAnd OpCode = 20 // BAND
	// A B C R(A) := RK(B) | RK(C)
	OpBOr OpCode = 21 // BOR
	// A B C R(A) := RK(B) ~ RK(C)
	OpBXOR OpCode = 22 // BXOR
	// A B C R(A) := RK(B) << RK(C)
	OpSHL OpCode = 23 // SHL
	// A B C R(A) := RK(B) >> RK(C)
	OpSHR OpCode = 24 // SHR
	// A B R(A) := -R(B)
	OpUNM OpCode = 25 // UNM
	// A B R(A) := ~R(B)
	OpBNot OpCode = 26 // BNOT
	// A B R(A) := not R(B)
	OpNot OpCode = 27 // NOT
	// A B R(A) := length of R(B)
	OpLen OpCode = 28 // LEN

	// A B C R(A) := R(B).. ... ..R(C)
	OpConcat OpCode = 29 // CONCAT

	// OpJMP adds sBx to the program counter.
	// If A is not zero, then all upvalues >= R(A - 1) are closed.
	//
	//	A sBx pc+=sBx; if (A) close all upvalues >= R(A - 1)
	OpJMP OpCode = 30 // JMP
	// A B C if ((RK(B) == RK(C)) ~= A) then pc++
	OpEQ OpCode = 31 // EQ
	// A B C if ((RK(B) <  RK(C)) ~= A) then pc++
	OpLT OpCode = 32 // LT
	// A B C if ((RK(B) <= RK(C)) ~= A) then pc++
	OpLE OpCode = 33 // LE

	// A C if not (R(A) <=> C) then pc++
	OpTest OpCode = 34 // TEST
	// A B C if (R(B) <=> C) then R(A) := R(B) else pc++
	OpTestSet OpCode = 35 // TESTSET

	// A B C R(A), ... ,R(A+C-2) := R(A)(R(A+1), ... ,R(A+B-1))
	OpCall OpCode = 36 // CALL
	// A B C return R(A)(R(A+1), ... ,R(A+B-1))
	OpTailCall OpCode = 37 // TAILCALL
	// OpReturn instructs control flow to return to the function's caller.
	//
	//	A B return R(A), ... ,R(A+B-2)
	//
	// If (B == 0) then return up to 'top'.
	OpReturn OpCode = 38 // RETURN

	// A sBx R(A)+=R(A+2); if R(A) <?= R(A+1) then { pc+=sBx; R(A+3)=R(A) }
	OpForLoop OpCode = 39 // FORLOOP
	// A sBx R(A)-=R(A+2); pc+=sBx
	OpForPrep OpCode = 40 // FORPREP

	// A C R(A+3), ... ,R(A+2+C) := R(A)(R(A+1), R(A+2));
	OpTForCall OpCode = 41 // TFORCALL
	// A sBx if R(A+1) ~= nil then { R(A)=R(A+1); pc += sBx }
	OpTForLoop OpCode = 42 // TFORLOOP

	// OpSetList sets the elements [(C-1)*FPF+1, (C-1)*FPF+B]
	// of the table in R(A)
	// to the registers [A+1, A+B],
	// where FPF is [FieldsPerFlush].
	// If B is 0, then the registers extend to the stack top.
	// If C is 0, then C is stored in the following [OpExtraArg] instruction.
	//
	//	A B C R(A)[(C-1)*FPF+i] := R(A+i), 1 <= i <= B
	OpSetList OpCode = 43 // SETLIST

	// A Bx R(A) := closure(KPROTO[Bx])
	OpClosure OpCode = 44 // CLOSURE

	// A B R(A), R(A+1), ..., R(A+B-2) = vararg
	OpVararg OpCode = 45 // VARARG

	// Ax extra (larger) argument for previous opcode
	OpExtraArg OpCode = 46 // EXTRAARG

	maxOpCode = OpExtraArg
)

// FieldsPerFlush is the number of list items
// that are accumulated in registers before an [OpSetList] instruction.
const FieldsPerFlush = 50

// opProp packs an opcode's properties:
//
//	bit 8:    test
//	bit 7:    sets A
//	bits 5-6: B argument kind
//	bits 3-4: C argument kind
//	bits 0-2: instruction format
type opProp uint16

func opmode(test, setsA bool, b, c ArgKind, mode OpMode) opProp {
	p := opProp(b)<<5 | opProp(c)<<3 | opProp(mode)
	if setsA {
		p |= 1 << 7
	}
	if test {
		p |= 1 << 8
	}
	return p
}

var opProps = [...]opProp{
	OpMove:     opmode(false, true, OpArgR, OpArgN, OpModeABC),
	OpLoadK:    opmode(false, true, OpArgK, OpArgN, OpModeABx),
	OpLoadKX:   opmode(false, true, OpArgN, OpArgN, OpModeABx),
	OpLoadBool: opmode(false, true, OpArgU, OpArgU, OpModeABC),
	OpLoadNil:  opmode(false, true, OpArgU, OpArgN, OpModeABC),
	OpGetUpval: opmode(false, true, OpArgU, OpArgN, OpModeABC),
	OpGetTabUp: opmode(false, true, OpArgU, OpArgK, OpModeABC),
	OpGetTable: opmode(false, true, OpArgR, OpArgK, OpModeABC),
	OpSetTabUp: opmode(false, false, OpArgK, OpArgK, OpModeABC),
	OpSetUpval: opmode(false, false, OpArgU, OpArgN, OpModeABC),
	OpSetTable: opmode(false, false, OpArgK, OpArgK, OpModeABC),
	OpNewTable: opmode(false, true, OpArgU, OpArgU, OpModeABC),
	OpSelf:     opmode(false, true, OpArgR, OpArgK, OpModeABC),
	OpAdd:      opmode(false, true, OpArgK, OpArgK, OpModeABC),
	OpSub:      opmode(false, true, OpArgK, OpArgK, OpModeABC),
	OpMul:      opmode(false, true, OpArgK, OpArgK, OpModeABC),
	OpMod:      opmode(false, true, OpArgK, OpArgK, OpModeABC),
	OpPow:      opmode(false, true, OpArgK, OpArgK, OpModeABC),
	OpDiv:      opmode(false, true, OpArgK, OpArgK, OpModeABC),
	OpIDiv:     opmode(false, true, OpArgK, OpArgK, OpModeABC),
	OpBAnd:     opmode(false, true, OpArgK, OpArgK, OpModeABC),
	OpBOr:      opmode(false, true, OpArgK, OpArgK, OpModeABC),
	OpBXOR:     opmode(false, true, OpArgK, OpArgK, OpModeABC),
	OpSHL:      opmode(false, true, OpArgK, OpArgK, OpModeABC),
	OpSHR:      opmode(false, true, OpArgK, OpArgK, OpModeABC),
	OpUNM:      opmode(false, true, OpArgR, OpArgN, OpModeABC),
	OpBNot:     opmode(false, true, OpArgR, OpArgN, OpModeABC),
	OpNot:      opmode(false, true, OpArgR, OpArgN, OpModeABC),
	OpLen:      opmode(false, true, OpArgR, OpArgN, OpModeABC),
	OpConcat:   opmode(false, true, OpArgR, OpArgR, OpModeABC),
	OpJMP:      opmode(false, false, OpArgR, OpArgN, OpModeAsBx),
	OpEQ:       opmode(true, false, OpArgK, OpArgK, OpModeABC),
	OpLT:       opmode(true, false, OpArgK, OpArgK, OpModeABC),
	OpLE:       opmode(true, false, OpArgK, OpArgK, OpModeABC),
	OpTest:     opmode(true, false, OpArgN, OpArgU, OpModeABC),
	OpTestSet:  opmode(true, true, OpArgR, OpArgU, OpModeABC),
	OpCall:     opmode(false, true, OpArgU, OpArgU, OpModeABC),
	OpTailCall: opmode(false, true, OpArgU, OpArgU, OpModeABC),
	OpReturn:   opmode(false, false, OpArgU, OpArgN, OpModeABC),
	OpForLoop:  opmode(false, true, OpArgR, OpArgN, OpModeAsBx),
	OpForPrep:  opmode(false, true, OpArgR, OpArgN, OpModeAsBx),
	OpTForCall: opmode(false, false, OpArgN, OpArgU, OpModeABC),
	OpTForLoop: opmode(false, true, OpArgR, OpArgN, OpModeAsBx),
	OpSetList:  opmode(false, false, OpArgU, OpArgU, OpModeABC),
	OpClosure:  opmode(false, true, OpArgU, OpArgN, OpModeABx),
	OpVararg:   opmode(false, true, OpArgU, OpArgN, OpModeABC),
	OpExtraArg: opmode(false, false, OpArgU, OpArgU, OpModeAx),
}

// OpMode is an enumeration of [Instruction] formats.
type OpMode uint8

// Instruction formats.
const (
	OpModeABC  OpMode = 1 + iota // iABC
	OpModeABx                    // iABx
	OpModeAsBx                   // iAsBx
	OpModeAx                     // iAx
)

// ArgKind describes how an instruction uses one of its arguments.
type ArgKind uint8

// Argument kinds.
const (
	// OpArgN is an unused argument.
	OpArgN ArgKind = iota // N
	// OpArgU is a used argument with no special meaning.
	OpArgU // U
	// OpArgR is a register or a jump offset.
	OpArgR // R
	// OpArgK is a constant or a register/constant (RK) operand.
	OpArgK // K
)
