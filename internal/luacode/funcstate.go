// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"fmt"
	"slices"

	"zb.256lights.llc/luac53/internal/lualex"
)

// maxVariables is the maximum number of active local variables in a function.
const maxVariables = 200

// funcState is the mutable state associated with a [Prototype]
// while it is being constructed.
//
// Equivalent to `FuncState` in upstream Lua.
type funcState struct {
	*Prototype

	// prev is the enclosing function.
	prev *funcState
	// blocks is the chain of current blocks.
	blocks *blockControl

	// activeVariables holds the indices into Prototype.LocalVariables
	// of the variables currently in scope.
	// The variable at activeVariables[i] lives in register i.
	activeVariables []int
	// firstFreeRegister is the first register above every register in use.
	firstFreeRegister int
	// freeRegisters is a list of temporaries below firstFreeRegister
	// that have been released out of order.
	freeRegisters []int

	// constants maps constant values to their index in Prototype.Constants.
	constants map[Value]int
	// lastTarget is the last returned value from [funcState.label].
	lastTarget int
	// pendingJumps is a list of jumps to the next instruction to be added.
	pendingJumps []int
	// breaks is the list of break jumps in the enclosing loops
	// that have not been patched yet.
	breaks []pendingBreak

	// source is the chunk name used in error messages.
	source Source
	// line is the line number recorded for new instructions.
	line int
	// pos is the position reported by [funcState.errorf].
	pos lualex.Position
}

// blockControl is a linked list of active blocks.
//
// Equivalent to `BlockCnt` in upstream Lua.
type blockControl struct {
	prev *blockControl
	// firstBreak is the index of the first break in [funcState].breaks
	// that belongs to the block.
	firstBreak int
	// numActiveVariables is the number of active locals outside the block.
	numActiveVariables int

	// upval is true if some variable in the block is an upvalue.
	upval  bool
	isLoop bool
}

// pendingBreak is a break statement waiting for the end of its loop.
type pendingBreak struct {
	jumps []int
	// numActiveVariables is the number of active locals at the break.
	numActiveVariables int
}

func newFuncState(prev *funcState, f *Prototype) *funcState {
	fs := &funcState{
		Prototype: f,
		prev:      prev,
		constants: make(map[Value]int),
		pos:       lualex.Pos(1, 0),
		line:      1,
	}
	if prev != nil {
		fs.source = prev.source
	}
	if fs.MaxStackSize < 2 {
		// Registers 0 and 1 are always valid.
		fs.MaxStackSize = 2
	}
	return fs
}

// errorf returns a [*CompileError] at the current position.
func (fs *funcState) errorf(format string, args ...any) error {
	return &CompileError{
		Source: fs.source,
		Pos:    fs.pos,
		Msg:    fmt.Sprintf(format, args...),
	}
}

// code appends an instruction to the function
// and returns its index.
//
// Equivalent to `luaK_code` in upstream Lua.
func (fs *funcState) code(i Instruction) (int, error) {
	if err := fs.dischargePendingJumps(); err != nil {
		return 0, err
	}
	fs.Code = append(fs.Code, i)
	fs.LineInfo = append(fs.LineInfo, fs.line)
	return len(fs.Code) - 1, nil
}

func (fs *funcState) codeABC(op OpCode, a int, b, c uint16) (int, error) {
	return fs.code(ABCInstruction(op, uint8(a), b, c))
}

func (fs *funcState) codeABx(op OpCode, a int, bx int) (int, error) {
	return fs.code(ABxInstruction(op, uint8(a), uint32(bx)))
}

func (fs *funcState) codeAsBx(op OpCode, a int, sbx int) (int, error) {
	return fs.code(ABsBxInstruction(op, uint8(a), int32(sbx)))
}

// fixLine changes the line information of the last instruction.
//
// Equivalent to `luaK_fixline` in upstream Lua.
func (fs *funcState) fixLine(line int) {
	fs.LineInfo[len(fs.LineInfo)-1] = line
}

// label marks the next instruction to be added as a jump target
// (to avoid wrong optimizations with consecutive instructions
// not in the same basic block)
// and returns its index.
//
// Equivalent to `luaK_getlabel` in upstream Lua.
func (fs *funcState) label() int {
	pc := len(fs.Code)
	fs.lastTarget = pc
	return pc
}

// jump adds an unconditional jump with an unpatched destination
// and returns the list of jumps that should be patched with it.
// Jumps pending to the current position are included in the list,
// since they would only land on the new jump.
//
// Equivalent to `luaK_jump` in upstream Lua.
func (fs *funcState) jump() ([]int, error) {
	pending := fs.pendingJumps
	fs.pendingJumps = nil
	pc, err := fs.codeAsBx(OpJMP, 0, 0)
	if err != nil {
		return nil, err
	}
	return append([]int{pc}, pending...), nil
}

// jumpTo adds an unconditional jump to the given instruction.
func (fs *funcState) jumpTo(target int) error {
	list, err := fs.jump()
	if err != nil {
		return err
	}
	return fs.patchList(list, target)
}

// patchList sets the destination of every jump in list to target.
//
// Equivalent to `luaK_patchlist` in upstream Lua.
func (fs *funcState) patchList(list []int, target int) error {
	if target == len(fs.Code) {
		fs.patchToHere(list)
		return nil
	}
	for _, pc := range list {
		if err := fs.fixJump(pc, target); err != nil {
			return err
		}
	}
	return nil
}

// patchToHere sets the destination of every jump in list
// to the next instruction to be added.
//
// Equivalent to `luaK_patchtohere` in upstream Lua.
func (fs *funcState) patchToHere(list []int) {
	fs.label()
	fs.pendingJumps = append(fs.pendingJumps, list...)
}

func (fs *funcState) dischargePendingJumps() error {
	list := fs.pendingJumps
	fs.pendingJumps = nil
	for _, pc := range list {
		if err := fs.fixJump(pc, len(fs.Code)); err != nil {
			return err
		}
	}
	return nil
}

// fixJump changes the jump instruction at pc to jump to target.
//
// Equivalent to `fixjump` in upstream Lua.
func (fs *funcState) fixJump(pc int, target int) error {
	offset := target - (pc + 1)
	if target < 0 || !fitsSignedBx(int64(offset)) {
		return fs.errorf("control structure too long")
	}
	var ok bool
	fs.Code[pc], ok = fs.Code[pc].WithArgSBx(int32(offset))
	if !ok {
		panic(fmt.Sprintf("internal error: instruction %d (%v) is not a jump", pc, fs.Code[pc].OpCode()))
	}
	return nil
}

// patchClose makes every jump in list close upvalues
// at or above the given register.
//
// Equivalent to `luaK_patchclose` in upstream Lua.
func (fs *funcState) patchClose(list []int, level int) {
	for _, pc := range list {
		i := fs.Code[pc]
		if i.OpCode() != OpJMP || (i.ArgA() != 0 && int(i.ArgA()) < level+1) {
			panic(fmt.Sprintf("internal error: cannot close upvalues with instruction %d", pc))
		}
		fs.Code[pc], _ = i.WithArgA(uint8(level + 1))
	}
}

// loadNil sets n registers starting at from to nil,
// merging with a preceding OpLoadNil when possible.
//
// Equivalent to `luaK_nil` in upstream Lua.
func (fs *funcState) loadNil(from, n int) error {
	last := from + n - 1
	if len(fs.Code) > fs.lastTarget && len(fs.pendingJumps) == 0 {
		prev := &fs.Code[len(fs.Code)-1]
		if prev.OpCode() == OpLoadNil {
			prevFrom := int(prev.ArgA())
			prevLast := prevFrom + int(prev.ArgB())
			if (prevFrom <= from && from <= prevLast+1) || (from <= prevFrom && prevFrom <= last+1) {
				from = min(from, prevFrom)
				last = max(last, prevLast)
				*prev = ABCInstruction(OpLoadNil, uint8(from), uint16(last-from), 0)
				return nil
			}
		}
	}
	_, err := fs.codeABC(OpLoadNil, from, uint16(n-1), 0)
	return err
}

// checkStack ensures that the function has room for n more registers
// above the first free register.
//
// Equivalent to `luaK_checkstack` in upstream Lua.
func (fs *funcState) checkStack(n int) error {
	newStack := fs.firstFreeRegister + n
	if newStack > int(fs.MaxStackSize) {
		if newStack >= maxRegisters {
			return fs.errorf("function or expression needs too many registers")
		}
		fs.MaxStackSize = uint8(newStack)
	}
	return nil
}

// reserveRegisters allocates n consecutive registers at the top of the stack
// and returns the first one.
//
// Equivalent to `luaK_reserveregs` in upstream Lua.
func (fs *funcState) reserveRegisters(n int) (int, error) {
	if err := fs.checkStack(n); err != nil {
		return 0, err
	}
	base := fs.firstFreeRegister
	fs.firstFreeRegister += n
	return base, nil
}

// allocRegister returns a register for a temporary,
// reusing a released register if possible.
// Use [funcState.reserveRegisters] when the register
// must be at the top of the stack.
func (fs *funcState) allocRegister() (int, error) {
	if n := len(fs.freeRegisters); n > 0 {
		r := fs.freeRegisters[n-1]
		fs.freeRegisters = fs.freeRegisters[:n-1]
		return r, nil
	}
	return fs.reserveRegisters(1)
}

// freeRegister releases a temporary register.
// Registers holding local variables are never released.
//
// Equivalent to `freereg` in upstream Lua.
func (fs *funcState) freeRegister(r int) {
	if r < len(fs.activeVariables) || r >= fs.firstFreeRegister {
		return
	}
	if r != fs.firstFreeRegister-1 {
		if !slices.Contains(fs.freeRegisters, r) {
			fs.freeRegisters = append(fs.freeRegisters, r)
		}
		return
	}
	fs.firstFreeRegister--
	for {
		i := slices.Index(fs.freeRegisters, fs.firstFreeRegister-1)
		if i < 0 {
			return
		}
		fs.freeRegisters = slices.Delete(fs.freeRegisters, i, i+1)
		fs.firstFreeRegister--
	}
}

// freeRK releases the register used by an RK operand, if any.
func (fs *funcState) freeRK(arg uint16) {
	if !IsConstant(arg) {
		fs.freeRegister(int(arg))
	}
}

// setFirstFreeRegister releases every register at or above r.
func (fs *funcState) setFirstFreeRegister(r int) {
	fs.firstFreeRegister = r
	fs.freeRegisters = slices.DeleteFunc(fs.freeRegisters, func(x int) bool {
		return x >= r
	})
}

// addConstant returns the index of v in the constant table,
// adding it if it is not already present.
//
// Equivalent to `addk` in upstream Lua.
func (fs *funcState) addConstant(v Value) (int, error) {
	if k, ok := fs.constants[v]; ok {
		return k, nil
	}
	k := len(fs.Constants)
	if k > maxArgAx {
		return 0, fs.errorf("too many constants")
	}
	fs.Constants = append(fs.Constants, v)
	fs.constants[v] = k
	return k, nil
}

// loadConstant loads the constant at index k into register r.
//
// Equivalent to `luaK_codek` in upstream Lua.
func (fs *funcState) loadConstant(r int, k int) error {
	if k <= maxArgBx {
		_, err := fs.codeABx(OpLoadK, r, k)
		return err
	}
	if _, err := fs.codeABx(OpLoadKX, r, 0); err != nil {
		return err
	}
	_, err := fs.code(ExtraArgument(uint32(k)))
	return err
}

// activateVariable brings a new local variable into scope.
// The variable occupies the register numbered
// by the count of variables already in scope.
func (fs *funcState) activateVariable(name string) error {
	if len(fs.activeVariables) >= maxVariables {
		return fs.errorf("too many local variables (limit is %d)", maxVariables)
	}
	fs.activeVariables = append(fs.activeVariables, len(fs.LocalVariables))
	fs.LocalVariables = append(fs.LocalVariables, LocalVariable{
		Name:    name,
		StartPC: len(fs.Code),
	})
	return nil
}

// localVariable returns the debug information of the variable in register r.
func (fs *funcState) localVariable(r int) *LocalVariable {
	return &fs.LocalVariables[fs.activeVariables[r]]
}

// removeVariables ends the scope of every variable
// at or above the given register.
//
// Equivalent to `removevars` in upstream Lua.
func (fs *funcState) removeVariables(toLevel int) {
	for _, idx := range fs.activeVariables[toLevel:] {
		fs.LocalVariables[idx].EndPC = len(fs.Code)
	}
	fs.activeVariables = fs.activeVariables[:toLevel]
}

// searchVariable returns the register of the innermost active variable
// with the given name or -1 if there is none.
func (fs *funcState) searchVariable(name string) int {
	for r := len(fs.activeVariables) - 1; r >= 0; r-- {
		if fs.localVariable(r).Name == name {
			return r
		}
	}
	return -1
}

func (fs *funcState) searchUpvalue(name string) int {
	for i, uv := range fs.Upvalues {
		if uv.Name == name {
			return i
		}
	}
	return -1
}

func (fs *funcState) newUpvalue(name string, inStack bool, index int) (int, error) {
	if len(fs.Upvalues) >= maxUpvalues {
		return 0, fs.errorf("too many upvalues (limit is %d)", maxUpvalues)
	}
	fs.Upvalues = append(fs.Upvalues, UpvalueDescriptor{
		Name:    name,
		InStack: inStack,
		Index:   uint8(index),
	})
	return len(fs.Upvalues) - 1, nil
}

// markUpvalue marks the block where the variable in the given register was defined
// (to emit close instructions later).
//
// Equivalent to `markupval` in upstream Lua.
func (fs *funcState) markUpvalue(level int) {
	bl := fs.blocks
	for bl.numActiveVariables > level {
		bl = bl.prev
	}
	bl.upval = true
}

// enterBlock starts a new block.
//
// Equivalent to `enterblock` in upstream Lua.
func (fs *funcState) enterBlock(isLoop bool) {
	fs.blocks = &blockControl{
		prev:               fs.blocks,
		isLoop:             isLoop,
		firstBreak:         len(fs.breaks),
		numActiveVariables: len(fs.activeVariables),
	}
}

// leaveBlock ends the innermost block,
// closing the variables declared in it.
//
// Equivalent to `leaveblock` in upstream Lua.
func (fs *funcState) leaveBlock() error {
	bl := fs.blocks
	if bl.prev != nil && bl.upval {
		// Create a "jump to here" to close upvalues.
		j, err := fs.jump()
		if err != nil {
			return err
		}
		fs.patchClose(j, bl.numActiveVariables)
		fs.patchToHere(j)
	}
	if bl.isLoop {
		for _, b := range fs.breaks[bl.firstBreak:] {
			fs.patchToHere(b.jumps)
		}
		fs.breaks = fs.breaks[:bl.firstBreak]
	}
	fs.blocks = bl.prev
	fs.removeVariables(bl.numActiveVariables)
	fs.setFirstFreeRegister(bl.numActiveVariables)
	if bl.prev != nil {
		for i := bl.firstBreak; i < len(fs.breaks); i++ {
			b := &fs.breaks[i]
			if b.numActiveVariables > bl.numActiveVariables {
				if bl.upval {
					fs.patchClose(b.jumps, bl.numActiveVariables)
				}
				b.numActiveVariables = bl.numActiveVariables
			}
		}
	}
	return nil
}

// insideLoop reports whether a break statement is valid at this point.
func (fs *funcState) insideLoop() bool {
	for bl := fs.blocks; bl != nil; bl = bl.prev {
		if bl.isLoop {
			return true
		}
	}
	return false
}

// addBreak records jumps to be patched to the end of the innermost loop.
func (fs *funcState) addBreak(jumps []int) {
	fs.breaks = append(fs.breaks, pendingBreak{
		jumps:              jumps,
		numActiveVariables: len(fs.activeVariables),
	})
}

// intToFloatingByte converts an integer to a "floating point byte",
// represented as (eeeeexxx),
// where the real value is (1xxx) * 2^(eeeee - 1)
// if eeeee != 0 and (xxx) otherwise.
// The result is rounded up.
//
// Equivalent to `luaO_int2fb` in upstream Lua.
func intToFloatingByte(x int) uint16 {
	if x < 8 {
		return uint16(x)
	}
	e := 0
	for x >= 8<<4 {
		// Coarse steps.
		x = (x + 0xf) >> 4
		e += 4
	}
	for x >= 8<<1 {
		// Fine steps.
		x = (x + 1) >> 1
		e++
	}
	return uint16((e+1)<<3 | (x - 8))
}

// floatingByteToInt is the inverse of [intToFloatingByte].
//
// Equivalent to `luaO_fb2int` in upstream Lua.
func floatingByteToInt(x uint16) int {
	if x < 8 {
		return int(x)
	}
	return int((x&7)+8) << ((x >> 3) - 1)
}
