// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"fmt"

	"zb.256lights.llc/luac53/internal/luaast"
	"zb.256lights.llc/luac53/internal/lualex"
	"zb.256lights.llc/luac53/internal/luaparse"
)

// CompileError is the error returned by [Generate]
// for a program that parses but cannot be compiled.
type CompileError struct {
	Source Source
	Pos    lualex.Position
	Msg    string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%v:%v: %s", e.Source, e.Pos, e.Msg)
}

// Compile parses and compiles Lua source into a chunk
// with the [DefaultHeader].
// Syntax errors are returned as [*luaparse.Error]
// and code generation errors as [*CompileError].
func Compile(source Source, src []byte) (*Chunk, error) {
	chunk, err := luaparse.Parse(source.String(), src)
	if err != nil {
		return nil, err
	}
	return Generate(source, chunk)
}

// Generate compiles a syntax tree into a chunk
// with the [DefaultHeader].
// The chunk's main function is a vararg function
// with a single upvalue, _ENV.
func Generate(source Source, chunk *luaast.Chunk) (*Chunk, error) {
	main := &Prototype{
		IsVararg: true,
		Source:   source,
		Upvalues: []UpvalueDescriptor{{
			Name:    envName,
			InStack: true,
			Index:   0,
		}},
	}
	g := new(generator)
	g.openFunction(main)
	g.fs.source = source
	if err := g.statements(chunk.Body); err != nil {
		return nil, err
	}
	line := 1
	if n := len(chunk.Body); n > 0 {
		line = chunk.Body[n-1].Span().End.Line
	}
	if err := g.closeFunction(line); err != nil {
		return nil, err
	}
	return &Chunk{
		Header:       DefaultHeader(),
		UpvalueCount: uint8(len(main.Upvalues)),
		Main:         main,
	}, nil
}

// envName is the name of the upvalue that holds the global environment.
const envName = "_ENV"

// generator is the in-progress state of a [Generate] call.
type generator struct {
	// fs is the function being compiled.
	fs *funcState
}

// openFunction starts compiling a new function nested inside the current one.
//
// Equivalent to `open_func` in upstream Lua.
func (g *generator) openFunction(f *Prototype) {
	g.fs = newFuncState(g.fs, f)
	g.fs.enterBlock(false)
}

// closeFunction finishes the current function
// and returns to the enclosing one.
// line is the line of the function's final return.
//
// Equivalent to `close_func` in upstream Lua.
func (g *generator) closeFunction(line int) error {
	fs := g.fs
	fs.line = line
	if _, err := fs.codeABC(OpReturn, 0, 1, 0); err != nil {
		return err
	}
	if err := fs.leaveBlock(); err != nil {
		return err
	}
	if fs.blocks != nil || len(fs.pendingJumps) > 0 {
		panic("internal error: function closed with open blocks or jumps")
	}
	g.fs = fs.prev
	return nil
}

// function compiles a function body and stores its closure in register dst.
//
// Equivalent to `body` in upstream Lua.
func (g *generator) function(f *luaast.FunctionExpr, dst int) error {
	parent := g.fs
	if len(parent.Functions) > maxArgBx {
		return parent.errorf("too many functions")
	}
	if len(f.Params) > maxVariables {
		g.setPos(f)
		return parent.errorf("too many local variables (limit is %d)", maxVariables)
	}
	p := &Prototype{
		NumParams:       uint8(len(f.Params)),
		IsVararg:        f.IsVararg,
		Source:          parent.Source,
		LineDefined:     f.Loc.Start.Line,
		LastLineDefined: f.Loc.End.Line,
	}
	g.openFunction(p)
	g.setPos(f)
	for _, param := range f.Params {
		if err := g.fs.activateVariable(param.Name); err != nil {
			return err
		}
	}
	if _, err := g.fs.reserveRegisters(len(f.Params)); err != nil {
		return err
	}
	if err := g.statements(f.Body); err != nil {
		return err
	}
	if err := g.closeFunction(f.Loc.End.Line); err != nil {
		return err
	}

	parent.Functions = append(parent.Functions, p)
	parent.line = f.Loc.End.Line
	_, err := parent.codeABx(OpClosure, dst, len(parent.Functions)-1)
	return err
}

// setPos records the node's starting position
// for the instructions and errors that follow.
func (g *generator) setPos(n luaast.Node) {
	start := n.Span().Start
	if !start.IsValid() {
		return
	}
	g.fs.pos = start
	g.fs.line = start.Line
}

// varKind is the storage class of a resolved name.
type varKind int

const (
	varGlobal varKind = iota
	varLocal
	varUpvalue
)

// resolve finds the variable that a name refers to in fs.
// For a local, index is a register.
// For an upvalue, index is a position in fs.Upvalues.
// base is false when the lookup comes from a nested function,
// in which case a local found is marked as captured.
//
// Equivalent to `singlevaraux` in upstream Lua.
func resolve(fs *funcState, name string, base bool) (kind varKind, index int, err error) {
	if fs == nil {
		return varGlobal, 0, nil
	}
	if r := fs.searchVariable(name); r >= 0 {
		if !base {
			fs.markUpvalue(r)
		}
		return varLocal, r, nil
	}
	idx := fs.searchUpvalue(name)
	if idx < 0 {
		kind, index, err := resolve(fs.prev, name, false)
		if err != nil || kind == varGlobal {
			return kind, index, err
		}
		idx, err = fs.newUpvalue(name, kind == varLocal, index)
		if err != nil {
			return 0, 0, err
		}
	}
	return varUpvalue, idx, nil
}

// resolveEnv finds the _ENV variable used for global accesses.
func (g *generator) resolveEnv() (kind varKind, index int, err error) {
	kind, index, err = resolve(g.fs, envName, true)
	if err != nil {
		return 0, 0, err
	}
	if kind == varGlobal {
		panic("internal error: " + envName + " not found")
	}
	return kind, index, nil
}
