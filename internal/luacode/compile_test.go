// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"encoding/hex"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"zb.256lights.llc/luac53/internal/luaast"
)

func TestCompileHello(t *testing.T) {
	c, err := Compile(FilenameSource("test.lua"), []byte("local a = \"hello world\"\nprint(a)"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(helloChunk(), c, chunkDiffOptions); diff != "" {
		t.Errorf("chunk (-want +got):\n%s", diff)
	}
	data, err := c.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := hex.EncodeToString(data), helloChunkHex; got != want {
		t.Errorf("MarshalBinary() =\n%s\nwant\n%s", got, want)
	}
}

func TestCompileCode(t *testing.T) {
	tests := []struct {
		name         string
		source       string
		code         []Instruction
		constants    []Value
		maxStackSize uint8
	}{
		{
			name:   "LocalPadding",
			source: "local a, b = 1",
			code: []Instruction{
				ABxInstruction(OpLoadK, 0, 0),
				ABCInstruction(OpLoadNil, 1, 0, 0),
				ABCInstruction(OpReturn, 0, 1, 0),
			},
			constants:    []Value{IntegerValue(1)},
			maxStackSize: 2,
		},
		{
			name:   "ConstantFolding",
			source: "local x = -1\nlocal y = 2^3\nlocal z = 1//0\n",
			code: []Instruction{
				ABxInstruction(OpLoadK, 0, 0),
				ABxInstruction(OpLoadK, 1, 1),
				ABCInstruction(OpIDiv, 2, RKConstant(3), RKConstant(2)),
				ABCInstruction(OpReturn, 0, 1, 0),
			},
			constants: []Value{
				IntegerValue(-1),
				FloatValue(8),
				IntegerValue(0),
				IntegerValue(1),
			},
			maxStackSize: 3,
		},
		{
			name:   "ConstantDedup",
			source: "local a, b, c = 'x', 1, 'x'\nlocal d = 1.0",
			code: []Instruction{
				ABxInstruction(OpLoadK, 0, 0),
				ABxInstruction(OpLoadK, 1, 1),
				ABxInstruction(OpLoadK, 2, 0),
				ABxInstruction(OpLoadK, 3, 2),
				ABCInstruction(OpReturn, 0, 1, 0),
			},
			constants: []Value{
				StringValue("x"),
				IntegerValue(1),
				FloatValue(1),
			},
			maxStackSize: 4,
		},
		{
			name:   "ComparisonValue",
			source: "local a = 1 < 2",
			code: []Instruction{
				ABCInstruction(OpLT, 1, RKConstant(0), RKConstant(1)),
				ABsBxInstruction(OpJMP, 0, 1),
				ABCInstruction(OpLoadBool, 0, 0, 1),
				ABCInstruction(OpLoadBool, 0, 1, 0),
				ABCInstruction(OpReturn, 0, 1, 0),
			},
			constants:    []Value{IntegerValue(1), IntegerValue(2)},
			maxStackSize: 2,
		},
		{
			name:   "And",
			source: "local a = b and c",
			code: []Instruction{
				ABCInstruction(OpGetTabUp, 0, 0, RKConstant(0)),
				ABCInstruction(OpTest, 0, 0, 0),
				ABsBxInstruction(OpJMP, 0, 1),
				ABCInstruction(OpGetTabUp, 0, 0, RKConstant(1)),
				ABCInstruction(OpReturn, 0, 1, 0),
			},
			constants:    []Value{StringValue("b"), StringValue("c")},
			maxStackSize: 2,
		},
		{
			name:   "Concat",
			source: "local s = a .. b .. c",
			code: []Instruction{
				ABCInstruction(OpGetTabUp, 0, 0, RKConstant(0)),
				ABCInstruction(OpGetTabUp, 1, 0, RKConstant(1)),
				ABCInstruction(OpGetTabUp, 2, 0, RKConstant(2)),
				ABCInstruction(OpConcat, 0, 0, 2),
				ABCInstruction(OpReturn, 0, 1, 0),
			},
			constants:    []Value{StringValue("a"), StringValue("b"), StringValue("c")},
			maxStackSize: 3,
		},
		{
			name:   "WhileBreak",
			source: "while x do\n  if y then break end\nend\n",
			code: []Instruction{
				ABCInstruction(OpGetTabUp, 0, 0, RKConstant(0)),
				ABCInstruction(OpTest, 0, 0, 0),
				ABsBxInstruction(OpJMP, 0, 4),
				ABCInstruction(OpGetTabUp, 0, 0, RKConstant(1)),
				ABCInstruction(OpTest, 0, 0, 1),
				ABsBxInstruction(OpJMP, 0, 1),
				ABsBxInstruction(OpJMP, 0, -7),
				ABCInstruction(OpReturn, 0, 1, 0),
			},
			constants:    []Value{StringValue("x"), StringValue("y")},
			maxStackSize: 2,
		},
		{
			name:   "WhileTrue",
			source: "while true do break end",
			code: []Instruction{
				ABsBxInstruction(OpJMP, 0, 1),
				ABsBxInstruction(OpJMP, 0, -2),
				ABCInstruction(OpReturn, 0, 1, 0),
			},
			maxStackSize: 2,
		},
		{
			name:   "RepeatUntilFalse",
			source: "repeat until false",
			code: []Instruction{
				ABsBxInstruction(OpJMP, 0, -1),
				ABCInstruction(OpReturn, 0, 1, 0),
			},
			maxStackSize: 2,
		},
		{
			name:   "IfTrueBreak",
			source: "while x do if true then break end end",
			code: []Instruction{
				ABCInstruction(OpGetTabUp, 0, 0, RKConstant(0)),
				ABCInstruction(OpTest, 0, 0, 0),
				ABsBxInstruction(OpJMP, 0, 2),
				ABsBxInstruction(OpJMP, 0, 1),
				ABsBxInstruction(OpJMP, 0, -5),
				ABCInstruction(OpReturn, 0, 1, 0),
			},
			constants:    []Value{StringValue("x")},
			maxStackSize: 2,
		},
		{
			name:   "NumericFor",
			source: "for i = 1, 3 do end",
			code: []Instruction{
				ABxInstruction(OpLoadK, 0, 0),
				ABxInstruction(OpLoadK, 1, 1),
				ABxInstruction(OpLoadK, 2, 0),
				ABsBxInstruction(OpForPrep, 0, 0),
				ABsBxInstruction(OpForLoop, 0, -1),
				ABCInstruction(OpReturn, 0, 1, 0),
			},
			constants:    []Value{IntegerValue(1), IntegerValue(3)},
			maxStackSize: 4,
		},
		{
			name:   "GenericForOneExpression",
			source: "for x in f do end\nlocal z = true",
			code: []Instruction{
				ABCInstruction(OpGetTabUp, 0, 0, RKConstant(0)),
				ABCInstruction(OpLoadNil, 1, 1, 0),
				ABsBxInstruction(OpJMP, 0, 0),
				ABCInstruction(OpTForCall, 0, 0, 1),
				ABsBxInstruction(OpTForLoop, 2, -2),
				ABCInstruction(OpLoadBool, 0, 1, 0),
				ABCInstruction(OpReturn, 0, 1, 0),
			},
			constants:    []Value{StringValue("f")},
			maxStackSize: 6,
		},
		{
			name:   "GenericForCall",
			source: "for k, v in pairs(t) do print(k) end\nlocal z = true",
			code: []Instruction{
				ABCInstruction(OpGetTabUp, 0, 0, RKConstant(0)),
				ABCInstruction(OpGetTabUp, 1, 0, RKConstant(1)),
				ABCInstruction(OpCall, 0, 2, 4),
				ABsBxInstruction(OpJMP, 0, 3),
				ABCInstruction(OpGetTabUp, 5, 0, RKConstant(2)),
				ABCInstruction(OpMove, 6, 3, 0),
				ABCInstruction(OpCall, 5, 2, 1),
				ABCInstruction(OpTForCall, 0, 0, 2),
				ABsBxInstruction(OpTForLoop, 2, -5),
				ABCInstruction(OpLoadBool, 0, 1, 0),
				ABCInstruction(OpReturn, 0, 1, 0),
			},
			constants:    []Value{StringValue("pairs"), StringValue("t"), StringValue("print")},
			maxStackSize: 7,
		},
		{
			name:   "GenericForThreeExpressions",
			source: "for k, v in f, s, ctrl do print(k) end\nlocal z = true",
			code: []Instruction{
				ABCInstruction(OpGetTabUp, 0, 0, RKConstant(0)),
				ABCInstruction(OpGetTabUp, 1, 0, RKConstant(1)),
				ABCInstruction(OpGetTabUp, 2, 0, RKConstant(2)),
				ABsBxInstruction(OpJMP, 0, 3),
				ABCInstruction(OpGetTabUp, 5, 0, RKConstant(3)),
				ABCInstruction(OpMove, 6, 3, 0),
				ABCInstruction(OpCall, 5, 2, 1),
				ABCInstruction(OpTForCall, 0, 0, 2),
				ABsBxInstruction(OpTForLoop, 2, -5),
				ABCInstruction(OpLoadBool, 0, 1, 0),
				ABCInstruction(OpReturn, 0, 1, 0),
			},
			constants: []Value{
				StringValue("f"),
				StringValue("s"),
				StringValue("ctrl"),
				StringValue("print"),
			},
			maxStackSize: 7,
		},
		{
			name:   "Table",
			source: "local t = {1, 2, x = 3, f()}",
			code: []Instruction{
				ABCInstruction(OpNewTable, 0, 2, 1),
				ABxInstruction(OpLoadK, 1, 0),
				ABxInstruction(OpLoadK, 2, 1),
				ABCInstruction(OpSetTable, 0, RKConstant(2), RKConstant(3)),
				ABCInstruction(OpGetTabUp, 3, 0, RKConstant(4)),
				ABCInstruction(OpCall, 3, 1, 0),
				ABCInstruction(OpSetList, 0, 0, 1),
				ABCInstruction(OpReturn, 0, 1, 0),
			},
			constants: []Value{
				IntegerValue(1),
				IntegerValue(2),
				StringValue("x"),
				IntegerValue(3),
				StringValue("f"),
			},
			maxStackSize: 4,
		},
		{
			name:   "MethodCall",
			source: "obj:m(1)",
			code: []Instruction{
				ABCInstruction(OpGetTabUp, 0, 0, RKConstant(0)),
				ABCInstruction(OpSelf, 0, 0, RKConstant(1)),
				ABxInstruction(OpLoadK, 2, 2),
				ABCInstruction(OpCall, 0, 3, 1),
				ABCInstruction(OpReturn, 0, 1, 0),
			},
			constants:    []Value{StringValue("obj"), StringValue("m"), IntegerValue(1)},
			maxStackSize: 3,
		},
		{
			name:   "TailCall",
			source: "return f(1)",
			code: []Instruction{
				ABCInstruction(OpGetTabUp, 0, 0, RKConstant(0)),
				ABxInstruction(OpLoadK, 1, 1),
				ABCInstruction(OpTailCall, 0, 2, 0),
				ABCInstruction(OpReturn, 0, 0, 0),
				ABCInstruction(OpReturn, 0, 1, 0),
			},
			constants:    []Value{StringValue("f"), IntegerValue(1)},
			maxStackSize: 2,
		},
		{
			name:   "CloseUpvalues",
			source: "do\n  local x = 1\n  f = function() return x end\nend\n",
			code: []Instruction{
				ABxInstruction(OpLoadK, 0, 0),
				ABxInstruction(OpClosure, 1, 0),
				ABCInstruction(OpSetTabUp, 0, RKConstant(1), 1),
				ABsBxInstruction(OpJMP, 1, 0),
				ABCInstruction(OpReturn, 0, 1, 0),
			},
			constants:    []Value{IntegerValue(1), StringValue("f")},
			maxStackSize: 2,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c, err := Compile(FilenameSource("test.lua"), []byte(test.source))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(test.code, c.Main.Code); diff != "" {
				t.Errorf("code (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(test.constants, c.Main.Constants, chunkDiffOptions); diff != "" {
				t.Errorf("constants (-want +got):\n%s", diff)
			}
			if got := c.Main.MaxStackSize; got != test.maxStackSize {
				t.Errorf("MaxStackSize = %d; want %d", got, test.maxStackSize)
			}
			if got, want := len(c.Main.LineInfo), len(c.Main.Code); got != want {
				t.Errorf("len(LineInfo) = %d; want %d", got, want)
			}
		})
	}
}

func TestCompileLocalVariables(t *testing.T) {
	c, err := Compile(FilenameSource("test.lua"), []byte("for k, v in pairs(t) do print(k) end\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := []LocalVariable{
		{Name: "(for generator)", StartPC: 3, EndPC: 9},
		{Name: "(for state)", StartPC: 3, EndPC: 9},
		{Name: "(for control)", StartPC: 3, EndPC: 9},
		{Name: "k", StartPC: 4, EndPC: 7},
		{Name: "v", StartPC: 4, EndPC: 7},
	}
	if diff := cmp.Diff(want, c.Main.LocalVariables); diff != "" {
		t.Errorf("LocalVariables (-want +got):\n%s", diff)
	}
}

func TestCompileClosure(t *testing.T) {
	const source = "local a = 1\nlocal function f()\n  return a\nend\n"
	c, err := Compile(FilenameSource("test.lua"), []byte(source))
	if err != nil {
		t.Fatal(err)
	}
	wantMain := []Instruction{
		ABxInstruction(OpLoadK, 0, 0),
		ABxInstruction(OpClosure, 1, 0),
		ABCInstruction(OpReturn, 0, 1, 0),
	}
	if diff := cmp.Diff(wantMain, c.Main.Code); diff != "" {
		t.Errorf("main code (-want +got):\n%s", diff)
	}
	if len(c.Main.Functions) != 1 {
		t.Fatalf("len(Main.Functions) = %d; want 1", len(c.Main.Functions))
	}
	f := c.Main.Functions[0]
	wantF := []Instruction{
		ABCInstruction(OpGetUpval, 0, 0, 0),
		ABCInstruction(OpReturn, 0, 2, 0),
		ABCInstruction(OpReturn, 0, 1, 0),
	}
	if diff := cmp.Diff(wantF, f.Code); diff != "" {
		t.Errorf("f code (-want +got):\n%s", diff)
	}
	wantUpvalues := []UpvalueDescriptor{{Name: "a", InStack: true, Index: 0}}
	if diff := cmp.Diff(wantUpvalues, f.Upvalues); diff != "" {
		t.Errorf("f upvalues (-want +got):\n%s", diff)
	}
	if f.LineDefined != 2 || f.LastLineDefined != 4 {
		t.Errorf("f defined on lines %d-%d; want 2-4", f.LineDefined, f.LastLineDefined)
	}
	if f.Source != c.Main.Source {
		t.Errorf("f.Source = %q; want %q", f.Source, c.Main.Source)
	}
	if got := c.Main.LocalVariables[1]; got.Name != "f" || got.StartPC != 2 {
		t.Errorf("local f = %+v; want StartPC 2", got)
	}
}

func TestCompileSetList(t *testing.T) {
	t.Run("Flush", func(t *testing.T) {
		source := "local t = {" + strings.Repeat("1, ", FieldsPerFlush) + "1}"
		c, err := Compile(FilenameSource("test.lua"), []byte(source))
		if err != nil {
			t.Fatal(err)
		}
		code := c.Main.Code
		if got, want := len(code), FieldsPerFlush+5; got != want {
			t.Fatalf("len(code) = %d; want %d", got, want)
		}
		if got, want := code[0], ABCInstruction(OpNewTable, 0, 29, 0); got != want {
			t.Errorf("code[0] = %v; want %v", got, want)
		}
		if got, want := code[FieldsPerFlush+1], ABCInstruction(OpSetList, 0, FieldsPerFlush, 1); got != want {
			t.Errorf("code[%d] = %v; want %v", FieldsPerFlush+1, got, want)
		}
		if got, want := code[FieldsPerFlush+2], ABxInstruction(OpLoadK, 1, 0); got != want {
			t.Errorf("code[%d] = %v; want %v", FieldsPerFlush+2, got, want)
		}
		if got, want := code[FieldsPerFlush+3], ABCInstruction(OpSetList, 0, 1, 2); got != want {
			t.Errorf("code[%d] = %v; want %v", FieldsPerFlush+3, got, want)
		}
		if got, want := c.Main.MaxStackSize, uint8(FieldsPerFlush+1); got != want {
			t.Errorf("MaxStackSize = %d; want %d", got, want)
		}
	})

	t.Run("ExtraArg", func(t *testing.T) {
		const batches = maxArgC + 1
		source := "local t = {" + strings.Repeat("1,", (batches-1)*FieldsPerFlush) + "1}"
		c, err := Compile(FilenameSource("test.lua"), []byte(source))
		if err != nil {
			t.Fatal(err)
		}
		code := c.Main.Code
		want := []Instruction{
			ABCInstruction(OpSetList, 0, 1, 0),
			ExtraArgument(batches),
			ABCInstruction(OpReturn, 0, 1, 0),
		}
		if diff := cmp.Diff(want, code[len(code)-len(want):]); diff != "" {
			t.Errorf("last instructions (-want +got):\n%s", diff)
		}
	})
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		msg    string
	}{
		{
			name:   "BreakOutsideLoop",
			source: "break",
			msg:    "break outside a loop",
		},
		{
			name:   "BreakInFunctionInLoop",
			source: "while true do local function f() break end end",
			msg:    "break outside a loop",
		},
		{
			name:   "VarargOutsideVarargFunction",
			source: "function f() return ... end",
			msg:    "cannot use '...' outside a vararg function",
		},
		{
			name:   "TooManyIteratorNames",
			source: "for a, b, c in f do end",
			msg:    "malformed iterator: too many variables (limit is 2)",
		},
		{
			name:   "TooManyIteratorExpressions",
			source: "for a in f, s, c, d do end",
			msg:    "malformed iterator: too many expressions (limit is 3)",
		},
		{
			name:   "TooManyLocals",
			source: "local x" + strings.Repeat(", x", maxVariables),
			msg:    "too many local variables (limit is 200)",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Compile(FilenameSource("test.lua"), []byte(test.source))
			var compileError *CompileError
			if !errors.As(err, &compileError) {
				t.Fatalf("Compile(...) = _, %v; want *CompileError", err)
			}
			if compileError.Msg != test.msg {
				t.Errorf("error message = %q; want %q", compileError.Msg, test.msg)
			}
			if compileError.Source != "@test.lua" {
				t.Errorf("error source = %q; want %q", compileError.Source, "@test.lua")
			}
		})
	}
}

func TestCompileVarargMain(t *testing.T) {
	c, err := Compile(FilenameSource("test.lua"), []byte("local a, b = ..."))
	if err != nil {
		t.Fatal(err)
	}
	want := []Instruction{
		ABCInstruction(OpVararg, 0, 3, 0),
		ABCInstruction(OpReturn, 0, 1, 0),
	}
	if diff := cmp.Diff(want, c.Main.Code); diff != "" {
		t.Errorf("code (-want +got):\n%s", diff)
	}
}

func FuzzFloatingByte(f *testing.F) {
	for i := range uint32(256) {
		f.Add(i)
	}

	f.Fuzz(func(t *testing.T, x uint32) {
		x &= 1<<30 - 1
		fb := intToFloatingByte(int(x))
		if fb > 0xff {
			t.Fatalf("intToFloatingByte(%d) = %#x; want a byte", x, fb)
		}
		if got := floatingByteToInt(fb); got < int(x) {
			t.Errorf("floatingByteToInt(intToFloatingByte(%d)) = %d; want >= %d", x, got, x)
		}
		if fb > 0 {
			if got := floatingByteToInt(fb - 1); got >= int(x) {
				t.Errorf("intToFloatingByte(%d) = %#x, but %#x decodes to %d", x, fb, fb-1, got)
			}
		}
	})
}

func TestTableFieldReleasesRegisters(t *testing.T) {
	main := &Prototype{
		IsVararg: true,
		Upvalues: []UpvalueDescriptor{{Name: envName, InStack: true}},
	}
	g := new(generator)
	g.openFunction(main)
	fs := g.fs
	if _, err := fs.reserveRegisters(3); err != nil {
		t.Fatal(err)
	}
	// Leave a hole in the middle of the stack for the key to land in.
	fs.freeRegister(1)
	dst, err := fs.reserveRegisters(1)
	if err != nil {
		t.Fatal(err)
	}

	e := &luaast.TableExpr{
		Fields: []*luaast.TableField{{
			Kind:  luaast.ComputedField,
			Key:   &luaast.Ident{Name: "k"},
			Value: &luaast.Ident{Name: "v"},
		}},
	}
	if err := g.table(e, dst, true); err != nil {
		t.Fatal(err)
	}

	if want := []Instruction{
		ABCInstruction(OpNewTable, uint8(dst), 0, 1),
		ABCInstruction(OpGetTabUp, 1, 0, RKConstant(0)),
		ABCInstruction(OpGetTabUp, 4, 0, RKConstant(1)),
		ABCInstruction(OpSetTable, uint8(dst), 1, 4),
	}; !cmp.Equal(want, fs.Code) {
		t.Errorf("code = %v; want %v", fs.Code, want)
	}
	if got, want := fs.firstFreeRegister, dst+1; got != want {
		t.Errorf("first free register = %d; want %d", got, want)
	}
	if !slices.Contains(fs.freeRegisters, 1) {
		t.Errorf("free registers = %v; want to contain 1", fs.freeRegisters)
	}
}
