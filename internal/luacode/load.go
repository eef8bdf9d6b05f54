// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// UnmarshalBinary unmarshals a precompiled chunk like those produced by [luac].
// UnmarshalBinary supports chunks from different architectures
// and preserves their [Header],
// but the chunk must be produced by Lua 5.3.
// Any error returned wraps [ErrFormat].
// On error, c is not modified.
//
// [luac]: https://www.lua.org/manual/5.3/luac.html
func (c *Chunk) UnmarshalBinary(data []byte) error {
	r := &chunkReader{s: data}
	if err := r.header(); err != nil {
		return fmt.Errorf("load lua chunk: %w: %v", ErrFormat, err)
	}
	upvalueCount, ok := r.readByte()
	if !ok {
		return fmt.Errorf("load lua chunk: %w: %v", ErrFormat, io.ErrUnexpectedEOF)
	}
	main := new(Prototype)
	if err := r.function(main, ""); err != nil {
		return fmt.Errorf("load lua chunk: %w: %v", ErrFormat, err)
	}
	if len(r.s) > 0 {
		return fmt.Errorf("load lua chunk: %w: trailing data", ErrFormat)
	}
	if int(upvalueCount) != len(main.Upvalues) {
		return fmt.Errorf("load lua chunk: %w: header upvalue count (%d) != prototype upvalue count (%d)", ErrFormat, upvalueCount, len(main.Upvalues))
	}
	*c = Chunk{
		Header:       r.h,
		UpvalueCount: upvalueCount,
		Main:         main,
	}
	return nil
}

type chunkReader struct {
	s []byte
	h Header
}

func (r *chunkReader) header() error {
	if !r.literal(Signature) {
		return errors.New("not a binary chunk")
	}
	var ok bool
	if r.h.Version, ok = r.readByte(); !ok {
		return io.ErrUnexpectedEOF
	} else if r.h.Version != luacVersion {
		return errors.New("version mismatch")
	}
	if r.h.Format, ok = r.readByte(); !ok {
		return io.ErrUnexpectedEOF
	} else if r.h.Format != luacFormat {
		return errors.New("format mismatch")
	}
	if !r.literal(luacData) {
		return errors.New("corrupted chunk")
	}
	for _, field := range []*byte{
		&r.h.IntSize,
		&r.h.SizeTSize,
		&r.h.InstructionSize,
		&r.h.IntegerSize,
		&r.h.NumberSize,
	} {
		if *field, ok = r.readByte(); !ok {
			return io.ErrUnexpectedEOF
		}
	}
	// Validate sizes before the byte order is known.
	r.h.ByteOrder = binary.LittleEndian
	if err := r.h.validate(); err != nil {
		return err
	}

	// Determine endianness.
	size := int(r.h.IntegerSize)
	if len(r.s) < size {
		return io.ErrUnexpectedEOF
	}
	var le, be uint64
	if size == 4 {
		le = uint64(binary.LittleEndian.Uint32(r.s))
		be = uint64(binary.BigEndian.Uint32(r.s))
	} else {
		le = binary.LittleEndian.Uint64(r.s)
		be = binary.BigEndian.Uint64(r.s)
	}
	switch {
	case le == luacInt:
		r.h.ByteOrder = binary.LittleEndian
	case be == luacInt:
		r.h.ByteOrder = binary.BigEndian
	default:
		return errors.New("endianness mismatch")
	}
	r.s = r.s[size:]

	// Verify float.
	if n, ok := r.readNumber(); !ok {
		return io.ErrUnexpectedEOF
	} else if n != luacNum {
		return errors.New("float format mismatch")
	}
	return nil
}

func (r *chunkReader) function(f *Prototype, parentSource Source) error {
	source, hasSource, err := r.readString()
	if err != nil {
		return fmt.Errorf("load function: source: %v", err)
	}
	if hasSource {
		f.Source = Source(source)
	} else {
		f.Source = parentSource
	}
	form := &dumpForm{sourceWritten: hasSource}

	f.LineDefined, err = r.readInt()
	if err != nil {
		return fmt.Errorf("load function: line defined: %v", err)
	}
	f.LastLineDefined, err = r.readInt()
	if err != nil {
		return fmt.Errorf("load function: last line defined: %v", err)
	}
	var ok bool
	f.NumParams, ok = r.readByte()
	if !ok {
		return fmt.Errorf("load function: number of parameters: %v", io.ErrUnexpectedEOF)
	}
	f.IsVararg, ok = r.readBool()
	if !ok {
		return fmt.Errorf("load function: is vararg: %v", errBool)
	}
	f.MaxStackSize, ok = r.readByte()
	if !ok {
		return fmt.Errorf("load function: max stack size: %v", io.ErrUnexpectedEOF)
	}

	// Code
	n, err := r.readCount(4)
	if err != nil {
		return fmt.Errorf("load function: instruction length: %v", err)
	}
	f.Code = make([]Instruction, n)
	for i := range f.Code {
		f.Code[i] = Instruction(r.h.ByteOrder.Uint32(r.s))
		r.s = r.s[4:]
	}

	// Constants
	n, err = r.readCount(1)
	if err != nil {
		return fmt.Errorf("load function: constant table size: %v", err)
	}
	f.Constants = make([]Value, n)
	for i := range f.Constants {
		t, _ := r.readByte()
		switch t {
		case tagNil:
			// Already zeroed; nothing to do.
		case tagBoolean:
			b, ok := r.readBool()
			if !ok {
				return fmt.Errorf("load function: constant table [%d]: %v", i, errBool)
			}
			f.Constants[i] = BoolValue(b)
		case tagFloat:
			n, ok := r.readNumber()
			if !ok {
				return fmt.Errorf("load function: constant table [%d]: missing or invalid number", i)
			}
			f.Constants[i] = FloatValue(n)
		case tagInteger:
			n, ok := r.readInteger()
			if !ok {
				return fmt.Errorf("load function: constant table: %v", io.ErrUnexpectedEOF)
			}
			f.Constants[i] = IntegerValue(n)
		case tagShortString, tagLongString:
			s, hasString, err := r.readString()
			if err != nil {
				return fmt.Errorf("load function: constant table [%d]: %v", i, err)
			}
			if !hasString {
				return fmt.Errorf("load function: constant table [%d]: missing string", i)
			}
			f.Constants[i] = StringValue(s)
			if f.Constants[i].dumpType() != t {
				return fmt.Errorf("load function: constant table [%d]: string type %#02x does not match length %d", i, t, len(s))
			}
		default:
			return fmt.Errorf("load function: constant table [%d]: unknown type %#02x", i, t)
		}
	}

	// Upvalues
	n, err = r.readCount(2)
	if err != nil {
		return fmt.Errorf("load function: upvalues: %v", err)
	}
	if n > maxUpvalues {
		return fmt.Errorf("load function: too many upvalues (%d)", n)
	}
	f.Upvalues = make([]UpvalueDescriptor, n)
	for i := range f.Upvalues {
		f.Upvalues[i].InStack, ok = r.readBool()
		if !ok {
			return fmt.Errorf("load function: upvalues [%d]: in stack: %v", i, errBool)
		}
		f.Upvalues[i].Index, _ = r.readByte()
	}

	// Protos
	n, err = r.readCount(1)
	if err != nil {
		return fmt.Errorf("load function: prototypes: %v", err)
	}
	f.Functions = make([]*Prototype, n)
	for i := range f.Functions {
		fi := new(Prototype)
		if err := r.function(fi, f.Source); err != nil {
			return err
		}
		f.Functions[i] = fi
	}

	// Debug
	n, err = r.readCount(int(r.h.IntSize))
	if err != nil {
		return fmt.Errorf("load function: line info: %v", err)
	}
	if n > 0 {
		f.LineInfo = make([]int, n)
		for i := range f.LineInfo {
			f.LineInfo[i], err = r.readInt()
			if err != nil {
				return fmt.Errorf("load function: line info: %v", err)
			}
		}
	}
	n, err = r.readCount(1)
	if err != nil {
		return fmt.Errorf("load function: local variables: %v", err)
	}
	if n > 0 {
		f.LocalVariables = make([]LocalVariable, n)
	}
	for i := range f.LocalVariables {
		var hasName bool
		f.LocalVariables[i].Name, hasName, err = r.readString()
		if err != nil {
			return fmt.Errorf("load function: local variables [%d]: name: %v", i, err)
		}
		if !hasName {
			form.nullLocalNames = append(form.nullLocalNames, i)
		}
		f.LocalVariables[i].StartPC, err = r.readInt()
		if err != nil {
			return fmt.Errorf("load function: local variables [%d]: start pc: %v", i, err)
		}
		f.LocalVariables[i].EndPC, err = r.readInt()
		if err != nil {
			return fmt.Errorf("load function: local variables [%d]: end pc: %v", i, err)
		}
	}
	n, err = r.readCount(1)
	if err != nil {
		return fmt.Errorf("load function: upvalue names: %v", err)
	}
	if n != 0 && n != len(f.Upvalues) {
		return fmt.Errorf("load function: upvalue names: length (%d) does not match table (%d)", n, len(f.Upvalues))
	}
	form.upvalueNamesWritten = n > 0
	for i := range n {
		var hasName bool
		f.Upvalues[i].Name, hasName, err = r.readString()
		if err != nil {
			return fmt.Errorf("load function: upvalue names [%d]: %v", i, err)
		}
		if !hasName {
			form.nullUpvalueNames = append(form.nullUpvalueNames, i)
		}
	}

	f.form = form
	return nil
}

func (r *chunkReader) readByte() (byte, bool) {
	if len(r.s) == 0 {
		return 0, false
	}
	b := r.s[0]
	r.s = r.s[1:]
	return b, true
}

var errBool = errors.New("missing or invalid boolean")

// readBool reads a byte that must be 0 or 1.
func (r *chunkReader) readBool() (b bool, ok bool) {
	c, ok := r.readByte()
	return c == 1, ok && c <= 1
}

// readSized reads a signed integer of the given width.
func (r *chunkReader) readSized(size int) (int64, bool) {
	if len(r.s) < size {
		return 0, false
	}
	var i int64
	switch size {
	case 4:
		i = int64(int32(r.h.ByteOrder.Uint32(r.s)))
	case 8:
		i = int64(r.h.ByteOrder.Uint64(r.s))
	default:
		return 0, false
	}
	r.s = r.s[size:]
	return i, true
}

// readInt reads a C int.
func (r *chunkReader) readInt() (int, error) {
	i, ok := r.readSized(int(r.h.IntSize))
	if !ok {
		return 0, io.ErrUnexpectedEOF
	}
	if i < math.MinInt || i > math.MaxInt {
		return 0, errors.New("integer overflow")
	}
	return int(i), nil
}

// readCount reads a C int used as the length of an array
// whose elements are each at least minSize bytes.
func (r *chunkReader) readCount(minSize int) (int, error) {
	n, err := r.readInt()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count (%d)", n)
	}
	if n > len(r.s)/minSize {
		return 0, io.ErrUnexpectedEOF
	}
	return n, nil
}

// readInteger reads a lua_Integer.
func (r *chunkReader) readInteger() (int64, bool) {
	return r.readSized(int(r.h.IntegerSize))
}

// readNumber reads a lua_Number.
func (r *chunkReader) readNumber() (float64, bool) {
	size := int(r.h.NumberSize)
	if len(r.s) < size {
		return 0, false
	}
	var f float64
	switch size {
	case 4:
		bits := r.h.ByteOrder.Uint32(r.s)
		if bits&0x7fc00000 == 0x7f800000 && bits&0x003fffff != 0 {
			// Widening quiets signaling NaNs,
			// so the value could not be written back unchanged.
			return 0, false
		}
		f = float64(math.Float32frombits(bits))
	case 8:
		f = math.Float64frombits(r.h.ByteOrder.Uint64(r.s))
	default:
		return 0, false
	}
	r.s = r.s[size:]
	return f, true
}

// readString reads a string.
// valid is false if the string was NULL.
func (r *chunkReader) readString() (s string, valid bool, err error) {
	b, ok := r.readByte()
	if !ok {
		return "", false, io.ErrUnexpectedEOF
	}
	if b == 0 {
		return "", false, nil
	}
	size := uint64(b)
	if b != 0xff && size > maxShortStringLength {
		return "", false, fmt.Errorf("string length %d must use the long form", size-1)
	}
	if b == 0xff {
		n := int(r.h.SizeTSize)
		if len(r.s) < n {
			return "", false, io.ErrUnexpectedEOF
		}
		if n == 4 {
			size = uint64(r.h.ByteOrder.Uint32(r.s))
		} else {
			size = r.h.ByteOrder.Uint64(r.s)
		}
		r.s = r.s[n:]
		if size <= maxShortStringLength {
			return "", false, fmt.Errorf("string length %d must use the short form", int64(size)-1)
		}
	}
	size--
	if uint64(len(r.s)) < size {
		return "", false, io.ErrUnexpectedEOF
	}
	s = string(r.s[:size])
	r.s = r.s[size:]
	return s, true, nil
}

func (r *chunkReader) literal(prefix string) bool {
	if len(r.s) < len(prefix) || string(r.s[:len(prefix)]) != prefix {
		return false
	}
	r.s = r.s[len(prefix):]
	return true
}
