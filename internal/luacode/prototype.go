// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import "slices"

// Limits imposed by the Lua 5.3 instruction encoding.
const (
	// maxRegisters is the number of registers addressable by the A operand.
	maxRegisters = 255
	// maxUpvalues bounds the number of upvalues a closure can capture.
	// The count is dumped as a single byte.
	maxUpvalues = 255
)

// Prototype is a compiled function:
// its code, constants, and nested functions,
// plus optional debug information.
//
// Equivalent to `Proto` in upstream Lua.
type Prototype struct {
	NumParams    uint8
	IsVararg     bool
	MaxStackSize uint8

	Code      []Instruction
	Constants []Value
	Upvalues  []UpvalueDescriptor
	// Functions are the prototypes of closures created by OpClosure,
	// indexed by the instruction's Bx operand.
	Functions []*Prototype

	// Source names the chunk the function came from.
	// Nested functions carry their parent's source,
	// but the binary format only records it where it differs.
	Source Source
	// LineDefined and LastLineDefined are zero for a main chunk.
	LineDefined     int
	LastLineDefined int
	// LineInfo is parallel to Code.
	LineInfo []int
	// LocalVariables is sorted by StartPC.
	LocalVariables []LocalVariable

	// form is set by [*Chunk.UnmarshalBinary].
	form *dumpForm
}

// IsMainChunk reports whether f is the top-level function of a chunk.
func (f *Prototype) IsMainChunk() bool {
	return f.LineDefined == 0
}

// Line returns the source line of the instruction at pc,
// or 0 if there is no line information for it.
func (f *Prototype) Line(pc int) int {
	if pc < 0 || pc >= len(f.LineInfo) {
		return 0
	}
	return f.LineInfo[pc]
}

// LocalName returns the name of the n'th active local variable (counting from zero)
// at the instruction pc.
// Active locals occupy the lowest registers in declaration order,
// so n is also the register that holds the variable.
//
// Equivalent to `luaF_getlocalname` in upstream Lua.
func (f *Prototype) LocalName(n int, pc int) (name string, ok bool) {
	for _, v := range f.LocalVariables {
		if v.StartPC > pc {
			break
		}
		if pc >= v.EndPC {
			continue
		}
		if n == 0 {
			return v.Name, true
		}
		n--
	}
	return "", false
}

// StripDebug returns a deep copy of f
// without source names, line information, local variables, or upvalue names.
// f is not modified.
func (f *Prototype) StripDebug() *Prototype {
	stripped := &Prototype{
		NumParams:       f.NumParams,
		IsVararg:        f.IsVararg,
		MaxStackSize:    f.MaxStackSize,
		Code:            f.Code,
		Constants:       f.Constants,
		LineDefined:     f.LineDefined,
		LastLineDefined: f.LastLineDefined,
	}
	if len(f.Upvalues) > 0 {
		stripped.Upvalues = make([]UpvalueDescriptor, len(f.Upvalues))
		for i, uv := range f.Upvalues {
			stripped.Upvalues[i] = UpvalueDescriptor{InStack: uv.InStack, Index: uv.Index}
		}
	}
	for _, p := range f.Functions {
		stripped.Functions = append(stripped.Functions, p.StripDebug())
	}
	return stripped
}

// hasUpvalueNames reports whether any upvalue of f carries a debug name.
// Stripped prototypes dump a zero upvalue name count.
func (f *Prototype) hasUpvalueNames() bool {
	return slices.ContainsFunc(f.Upvalues, func(uv UpvalueDescriptor) bool {
		return uv.Name != ""
	})
}

// UpvalueDescriptor tells a closure where to find an upvalue
// when it is instantiated.
//
// Equivalent to `Upvaldesc` in upstream Lua.
type UpvalueDescriptor struct {
	Name string
	// InStack is true if the upvalue captures a register of the enclosing function
	// and false if it copies one of the enclosing function's upvalues.
	InStack bool
	Index   uint8
}

// LocalVariable is the debug record of a local variable's scope.
// The variable is live for instructions in the range [StartPC, EndPC).
//
// Equivalent to `LocVar` in upstream Lua.
type LocalVariable struct {
	Name    string
	StartPC int
	EndPC   int
}

// dumpForm records how a loaded prototype's debug strings were encoded
// where the fields of [Prototype] cannot tell the forms apart,
// so that dumping it again reproduces the bytes it was read from.
type dumpForm struct {
	// sourceWritten is true if the source was present
	// even though it may equal the parent's.
	sourceWritten bool
	// upvalueNamesWritten is true if the upvalue name list was present
	// even though every name may be empty.
	upvalueNamesWritten bool
	// nullLocalNames and nullUpvalueNames are indices of names that were NULL
	// rather than empty strings.
	nullLocalNames   []int
	nullUpvalueNames []int
}

func (form *dumpForm) hasSource() bool {
	return form != nil && form.sourceWritten
}

func (form *dumpForm) hasUpvalueNames() bool {
	return form != nil && form.upvalueNamesWritten
}

func (form *dumpForm) isNullLocalName(i int) bool {
	return form != nil && slices.Contains(form.nullLocalNames, i)
}

func (form *dumpForm) isNullUpvalueName(i int) bool {
	return form != nil && slices.Contains(form.nullUpvalueNames, i)
}
