// Copyright 2025 The zb Authors
// SPDX-License-Identifier: MIT

// Package bytewriter provides an append-only byte buffer
// that writes fixed-width numbers in a chosen byte order.
// It is the output sink for binary chunks.
package bytewriter

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Buffer accumulates bytes written to it.
// The zero value is an empty little-endian buffer.
type Buffer struct {
	s []byte
	// Order is the byte order used by the fixed-width writers.
	// nil means [binary.LittleEndian].
	Order binary.ByteOrder
}

// New returns a new [Buffer] that appends to p
// and writes numbers in the given byte order.
func New(p []byte, order binary.ByteOrder) *Buffer {
	return &Buffer{s: p, Order: order}
}

// Len returns the number of bytes written so far.
func (b *Buffer) Len() int {
	return len(b.s)
}

// Bytes returns the accumulated bytes.
// The slice is valid until the next write.
func (b *Buffer) Bytes() []byte {
	return b.s
}

func (b *Buffer) order() binary.ByteOrder {
	if b.Order == nil {
		return binary.LittleEndian
	}
	return b.Order
}

// Write implements [io.Writer]. It never fails.
func (b *Buffer) Write(p []byte) (n int, err error) {
	b.s = append(b.s, p...)
	return len(p), nil
}

// WriteByte implements [io.ByteWriter]. It never fails.
func (b *Buffer) WriteByte(c byte) error {
	b.s = append(b.s, c)
	return nil
}

// WriteString implements [io.StringWriter]. It never fails.
func (b *Buffer) WriteString(s string) (n int, err error) {
	b.s = append(b.s, s...)
	return len(s), nil
}

// WriteTo implements [io.WriterTo] by writing the whole buffer to w.
func (b *Buffer) WriteTo(w io.Writer) (n int64, err error) {
	m, err := w.Write(b.s)
	if m != len(b.s) && err == nil {
		err = io.ErrShortWrite
	}
	return int64(m), err
}

// WriteInt writes i as a signed integer of the given width in bytes.
// It returns an error if the width is not 4 or 8
// or if i does not fit in the width.
func (b *Buffer) WriteInt(size int, i int64) error {
	if size == 4 && (i < math.MinInt32 || i > math.MaxInt32) {
		return fmt.Errorf("%d does not fit in %d bytes", i, size)
	}
	return b.WriteUint(size, uint64(i))
}

// WriteUint writes u as an unsigned integer of the given width in bytes,
// truncating it to the width.
// It returns an error if the width is not 4 or 8.
func (b *Buffer) WriteUint(size int, u uint64) error {
	var buf [8]byte
	switch size {
	case 4:
		b.order().PutUint32(buf[:4], uint32(u))
	case 8:
		b.order().PutUint64(buf[:8], u)
	default:
		return fmt.Errorf("unsupported integer size %d", size)
	}
	b.s = append(b.s, buf[:size]...)
	return nil
}

// WriteFloat writes f as an IEEE 754 number of the given width in bytes.
// It returns an error if the width is not 4 or 8.
func (b *Buffer) WriteFloat(size int, f float64) error {
	switch size {
	case 4:
		return b.WriteUint(4, uint64(math.Float32bits(float32(f))))
	case 8:
		return b.WriteUint(8, math.Float64bits(f))
	default:
		return fmt.Errorf("unsupported float size %d", size)
	}
}
