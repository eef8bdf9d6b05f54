// Copyright 2025 The zb Authors
// SPDX-License-Identifier: MIT

package bytewriter

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuffer(t *testing.T) {
	b := new(Buffer)
	if _, err := b.WriteString("hello"); err != nil {
		t.Fatal(err)
	}
	if err := b.WriteByte(' '); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Write([]byte("world")); err != nil {
		t.Fatal(err)
	}
	if got, want := string(b.Bytes()), "hello world"; got != want {
		t.Errorf("Bytes() = %q; want %q", got, want)
	}
	if got, want := b.Len(), len("hello world"); got != want {
		t.Errorf("Len() = %d; want %d", got, want)
	}

	sb := new(strings.Builder)
	n, err := b.WriteTo(sb)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(b.Len()) || sb.String() != "hello world" {
		t.Errorf("WriteTo = %d, %q; want %d, %q", n, sb.String(), b.Len(), "hello world")
	}
}

func TestBufferNumbers(t *testing.T) {
	tests := []struct {
		name  string
		order binary.ByteOrder
		write func(b *Buffer) error
		want  []byte
	}{
		{
			name:  "Int4/Little",
			write: func(b *Buffer) error { return b.WriteInt(4, 0x5678) },
			want:  []byte{0x78, 0x56, 0, 0},
		},
		{
			name:  "Int4/Big",
			order: binary.BigEndian,
			write: func(b *Buffer) error { return b.WriteInt(4, 0x5678) },
			want:  []byte{0, 0, 0x56, 0x78},
		},
		{
			name:  "Int8/Negative",
			write: func(b *Buffer) error { return b.WriteInt(8, -1) },
			want:  []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		},
		{
			name:  "Uint8/Big",
			order: binary.BigEndian,
			write: func(b *Buffer) error { return b.WriteUint(8, 0x0102) },
			want:  []byte{0, 0, 0, 0, 0, 0, 0x01, 0x02},
		},
		{
			name:  "Float8",
			write: func(b *Buffer) error { return b.WriteFloat(8, 370.5) },
			want:  binary.LittleEndian.AppendUint64(nil, math.Float64bits(370.5)),
		},
		{
			name:  "Float4/Big",
			order: binary.BigEndian,
			write: func(b *Buffer) error { return b.WriteFloat(4, 1.5) },
			want:  binary.BigEndian.AppendUint32(nil, math.Float32bits(1.5)),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b := New(nil, test.order)
			if err := test.write(b); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(test.want, b.Bytes()); diff != "" {
				t.Errorf("bytes (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBufferNumberErrors(t *testing.T) {
	b := new(Buffer)
	if err := b.WriteInt(4, math.MaxInt32+1); err == nil {
		t.Error("WriteInt(4, MaxInt32+1) did not return an error")
	}
	if err := b.WriteUint(2, 1); err == nil {
		t.Error("WriteUint(2, 1) did not return an error")
	}
	if err := b.WriteFloat(16, 1); err == nil {
		t.Error("WriteFloat(16, 1) did not return an error")
	}
	if b.Len() != 0 {
		t.Errorf("failed writes left %d bytes", b.Len())
	}
}
