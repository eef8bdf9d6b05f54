// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"encoding/binary"
	"errors"
	"fmt"

	"zb.256lights.llc/luac53/internal/bytewriter"
)

// Signature is the magic header for a binary (pre-compiled) Lua chunk.
// Data with this prefix can be loaded in with [*Chunk.UnmarshalBinary].
const Signature = "\x1bLua"

const (
	luacVersion byte    = 5*16 + 3
	luacFormat  byte    = 0
	luacData            = "\x19\x93\r\n\x1a\n"
	luacInt             = 0x5678
	luacNum     float64 = 370.5
)

// Header describes the platform a binary chunk is encoded for.
// Every multi-byte value in the chunk is written
// with the widths and byte order given here.
type Header struct {
	Version byte
	Format  byte

	// IntSize is the width of a C int in bytes (4 or 8).
	// Counts, line numbers, and program counters use this width.
	IntSize byte
	// SizeTSize is the width of a C size_t in bytes (4 or 8).
	// Lengths of long strings use this width.
	SizeTSize byte
	// InstructionSize is the width of an [Instruction]. It must be 4.
	InstructionSize byte
	// IntegerSize is the width of an integer constant in bytes (4 or 8).
	IntegerSize byte
	// NumberSize is the width of a float constant in bytes (4 or 8).
	NumberSize byte

	ByteOrder binary.ByteOrder
}

// DefaultHeader returns the header used by the reference Lua 5.3 toolchain
// on 64-bit little-endian platforms.
// It does not depend on the host.
func DefaultHeader() Header {
	return Header{
		Version:         luacVersion,
		Format:          luacFormat,
		IntSize:         4,
		SizeTSize:       8,
		InstructionSize: 4,
		IntegerSize:     8,
		NumberSize:      8,
		ByteOrder:       binary.LittleEndian,
	}
}

func (h Header) validate() error {
	if h.Version != luacVersion {
		return fmt.Errorf("version mismatch (%#02x)", h.Version)
	}
	if h.Format != luacFormat {
		return fmt.Errorf("format mismatch (%d)", h.Format)
	}
	if h.InstructionSize != 4 {
		return fmt.Errorf("instruction size must be 4 (got %d)", h.InstructionSize)
	}
	for _, w := range []struct {
		name string
		size byte
	}{
		{"int", h.IntSize},
		{"size_t", h.SizeTSize},
		{"lua_Integer", h.IntegerSize},
		{"lua_Number", h.NumberSize},
	} {
		if w.size != 4 && w.size != 8 {
			return fmt.Errorf("unsupported %s size (%d)", w.name, w.size)
		}
	}
	if h.ByteOrder == nil {
		return errors.New("byte order not set")
	}
	return nil
}

// Chunk is a single compiled unit:
// a header plus the main function.
type Chunk struct {
	Header Header
	// UpvalueCount is the number of upvalues of the main function's closure.
	// It is always equal to len(Main.Upvalues).
	UpvalueCount uint8
	Main         *Prototype
}

// StripDebug returns a copy of the chunk
// with the debug information removed from every function.
func (c *Chunk) StripDebug() *Chunk {
	c2 := new(Chunk)
	*c2 = *c
	if c.Main != nil {
		c2.Main = c.Main.StripDebug()
	}
	return c2
}

// ErrFormat is wrapped by errors returned from [*Chunk.UnmarshalBinary]
// for data that is not a well-formed binary chunk.
var ErrFormat = errors.New("bad binary format")

// MarshalBinary marshals the chunk in the same format as [luac 5.3].
//
// [luac 5.3]: https://www.lua.org/manual/5.3/luac.html
func (c *Chunk) MarshalBinary() ([]byte, error) {
	if err := c.Header.validate(); err != nil {
		return nil, fmt.Errorf("dump lua chunk: %v", err)
	}
	if c.Main == nil {
		return nil, errors.New("dump lua chunk: missing main function")
	}
	if len(c.Main.Upvalues) > maxUpvalues {
		return nil, fmt.Errorf("dump lua chunk: too many upvalues (%d)", len(c.Main.Upvalues))
	}
	if int(c.UpvalueCount) != len(c.Main.Upvalues) {
		return nil, fmt.Errorf("dump lua chunk: upvalue count (%d) != main function upvalue count (%d)", c.UpvalueCount, len(c.Main.Upvalues))
	}

	w := &chunkWriter{
		buf:    bytewriter.New(nil, c.Header.ByteOrder),
		header: c.Header,
	}
	w.buf.WriteString(Signature)
	w.buf.WriteByte(c.Header.Version)
	w.buf.WriteByte(c.Header.Format)
	w.buf.WriteString(luacData)
	w.buf.WriteByte(c.Header.IntSize)
	w.buf.WriteByte(c.Header.SizeTSize)
	w.buf.WriteByte(c.Header.InstructionSize)
	w.buf.WriteByte(c.Header.IntegerSize)
	w.buf.WriteByte(c.Header.NumberSize)
	if err := w.integer(luacInt); err != nil {
		return nil, fmt.Errorf("dump lua chunk: %v", err)
	}
	w.number(luacNum)
	w.buf.WriteByte(c.UpvalueCount)

	if err := w.function(c.Main, ""); err != nil {
		return nil, fmt.Errorf("dump lua chunk: %v", err)
	}
	return w.buf.Bytes(), nil
}

type chunkWriter struct {
	buf    *bytewriter.Buffer
	header Header
}

func (w *chunkWriter) function(f *Prototype, parentSource Source) error {
	if f.form.hasSource() || f.Source != "" && f.Source != parentSource {
		w.string(string(f.Source))
	} else {
		w.buf.WriteByte(0)
	}
	if err := w.int(f.LineDefined); err != nil {
		return fmt.Errorf("line defined: %v", err)
	}
	if err := w.int(f.LastLineDefined); err != nil {
		return fmt.Errorf("last line defined: %v", err)
	}
	w.buf.WriteByte(f.NumParams)
	w.bool(f.IsVararg)
	w.buf.WriteByte(f.MaxStackSize)

	// Code
	if err := w.int(len(f.Code)); err != nil {
		return err
	}
	for _, code := range f.Code {
		w.buf.WriteUint(4, uint64(code))
	}

	// Constants
	if err := w.int(len(f.Constants)); err != nil {
		return err
	}
	for i, k := range f.Constants {
		w.buf.WriteByte(k.dumpType())
		switch {
		case k.IsNil():
		case k.IsBoolean():
			b, _ := k.Bool()
			w.bool(b)
		case k.IsInteger():
			n, _ := k.Int64()
			if err := w.integer(n); err != nil {
				return fmt.Errorf("constants[%d]: %v", i, err)
			}
		case k.IsNumber():
			n, _ := k.Float64()
			w.number(n)
		case k.IsString():
			s, _ := k.Unquoted()
			w.string(s)
		default:
			return fmt.Errorf("constants[%d] cannot be represented", i)
		}
	}

	// Upvalues
	if err := w.int(len(f.Upvalues)); err != nil {
		return err
	}
	for _, upval := range f.Upvalues {
		w.bool(upval.InStack)
		w.buf.WriteByte(upval.Index)
	}

	// Protos
	if err := w.int(len(f.Functions)); err != nil {
		return err
	}
	for _, p := range f.Functions {
		if err := w.function(p, f.Source); err != nil {
			return err
		}
	}

	// Debug information
	if err := w.int(len(f.LineInfo)); err != nil {
		return err
	}
	for _, line := range f.LineInfo {
		if err := w.int(line); err != nil {
			return fmt.Errorf("line info: %v", err)
		}
	}
	if err := w.int(len(f.LocalVariables)); err != nil {
		return err
	}
	for i, v := range f.LocalVariables {
		if v.Name == "" && f.form.isNullLocalName(i) {
			w.buf.WriteByte(0)
		} else {
			w.string(v.Name)
		}
		if err := w.int(v.StartPC); err != nil {
			return err
		}
		if err := w.int(v.EndPC); err != nil {
			return err
		}
	}
	if !f.hasUpvalueNames() && !f.form.hasUpvalueNames() {
		return w.int(0)
	}
	if err := w.int(len(f.Upvalues)); err != nil {
		return err
	}
	for i, upval := range f.Upvalues {
		if upval.Name == "" && f.form.isNullUpvalueName(i) {
			w.buf.WriteByte(0)
		} else {
			w.string(upval.Name)
		}
	}
	return nil
}

func (w *chunkWriter) bool(b bool) {
	if b {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

// int writes a C int.
func (w *chunkWriter) int(i int) error {
	return w.buf.WriteInt(int(w.header.IntSize), int64(i))
}

// integer writes a lua_Integer.
func (w *chunkWriter) integer(i int64) error {
	return w.buf.WriteInt(int(w.header.IntegerSize), i)
}

// number writes a lua_Number.
func (w *chunkWriter) number(f float64) {
	// Header.validate has already checked NumberSize.
	w.buf.WriteFloat(int(w.header.NumberSize), f)
}

// string writes a non-NULL string:
// its length plus one in a single byte
// if that is at most maxShortStringLength,
// or 0xff followed by the length plus one as a size_t.
func (w *chunkWriter) string(s string) {
	size := len(s) + 1
	if size <= maxShortStringLength {
		w.buf.WriteByte(byte(size))
	} else {
		w.buf.WriteByte(0xff)
		w.buf.WriteUint(int(w.header.SizeTSize), uint64(size))
	}
	w.buf.WriteString(s)
}
