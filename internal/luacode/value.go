// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"math"
	"strconv"
	"strings"

	"zb.256lights.llc/luac53/internal/lualex"
)

// Constant tags in a Lua 5.3 binary chunk.
// The low nibble is the basic type and the high nibble is the variant.
const (
	tagNil         byte = 0x00
	tagBoolean     byte = 0x01
	tagFloat       byte = 0x03
	tagInteger     byte = 0x13
	tagShortString byte = 0x04
	tagLongString  byte = 0x14
)

// maxShortStringLength is the longest string dumped with [tagShortString].
//
// Equivalent to `LUAI_MAXSHORTLEN` in upstream Lua.
const maxShortStringLength = 40

type valueKind uint8

const (
	kindNil valueKind = iota
	kindBoolean
	kindInteger
	kindFloat
	kindString
)

// Value is a constant that can appear in a [Prototype]'s constant table:
// nil, a boolean, an integer, a float, or a string.
// The zero value is nil.
//
// Values are comparable with ==.
// Two values are equal only if they have the same kind,
// so the integer 1 and the float 1.0 are distinct constants.
// Floats compare by bit pattern, so a NaN is equal to itself.
type Value struct {
	kind valueKind
	// bits holds the integer, the float's IEEE 754 bits, or 1 for true.
	bits uint64
	s    string
}

// BoolValue returns a boolean [Value].
func BoolValue(b bool) Value {
	v := Value{kind: kindBoolean}
	if b {
		v.bits = 1
	}
	return v
}

// IntegerValue returns an integer [Value].
func IntegerValue(i int64) Value {
	return Value{kind: kindInteger, bits: uint64(i)}
}

// FloatValue returns a float [Value].
func FloatValue(f float64) Value {
	return Value{kind: kindFloat, bits: math.Float64bits(f)}
}

// StringValue returns a string [Value].
func StringValue(s string) Value {
	return Value{kind: kindString, s: s}
}

// NumberValue converts a numeral from the lexer to a [Value].
func NumberValue(n lualex.Number) Value {
	if n.IsInteger {
		return IntegerValue(n.Int)
	}
	return FloatValue(n.Float)
}

func (v Value) IsNil() bool { return v.kind == kindNil }
func (v Value) IsBoolean() bool { return v.kind == kindBoolean }
func (v Value) IsInteger() bool { return v.kind == kindInteger }
func (v Value) IsString() bool { return v.kind == kindString }

// IsNumber reports whether v is an integer or a float.
func (v Value) IsNumber() bool {
	return v.kind == kindInteger || v.kind == kindFloat
}

// Bool returns the truthiness of v
// (everything except nil and false is true)
// and whether v is a boolean.
func (v Value) Bool() (truthy bool, isBool bool) {
	switch v.kind {
	case kindNil:
		return false, false
	case kindBoolean:
		return v.bits != 0, true
	default:
		return true, false
	}
}

// Float64 returns the numeric value of v converted to a float
// and whether v is a number.
// Strings are not converted.
func (v Value) Float64() (f float64, isNumber bool) {
	switch v.kind {
	case kindInteger:
		return float64(int64(v.bits)), true
	case kindFloat:
		return math.Float64frombits(v.bits), true
	}
	return 0, false
}

// Int64 returns v's value if it is an integer.
// Floats are not converted.
func (v Value) Int64() (i int64, isInteger bool) {
	if v.kind != kindInteger {
		return 0, false
	}
	return int64(v.bits), true
}

// Unquoted returns the string value of v.
// Numbers are formatted the way Lua's tostring would,
// but isString is only true for strings.
func (v Value) Unquoted() (s string, isString bool) {
	switch v.kind {
	case kindString:
		return v.s, true
	case kindInteger:
		return strconv.FormatInt(int64(v.bits), 10), false
	case kindFloat:
		return formatFloat(math.Float64frombits(v.bits)), false
	}
	return "", false
}

// formatFloat formats f with "%.14g",
// adding ".0" if the result would otherwise read as an integer.
//
// Equivalent to `lua_Number2str` followed by the check in `tostringbuff` in upstream Lua.
func formatFloat(f float64) string {
	if math.IsInf(f, 0) {
		if f < 0 {
			return "-inf"
		}
		return "inf"
	}
	if math.IsNaN(f) {
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', 14, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// String formats v as Lua source.
func (v Value) String() string {
	switch v.kind {
	case kindNil:
		return "nil"
	case kindBoolean:
		if v.bits != 0 {
			return "true"
		}
		return "false"
	case kindString:
		return lualex.Quote(v.s)
	default:
		s, _ := v.Unquoted()
		return s
	}
}

// dumpType returns the tag that precedes v in a binary chunk.
func (v Value) dumpType() byte {
	switch v.kind {
	case kindBoolean:
		return tagBoolean
	case kindInteger:
		return tagInteger
	case kindFloat:
		return tagFloat
	case kindString:
		if len(v.s) > maxShortStringLength {
			return tagLongString
		}
		return tagShortString
	default:
		return tagNil
	}
}
