// Copyright 2025 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"math"
	"testing"

	"zb.256lights.llc/luac53/internal/lualex"
)

var valueStringTests = []struct {
	value       Value
	luaConstant string
	toString    string
	isString    bool
}{
	{Value{}, "nil", "", false},
	{BoolValue(false), "false", "", false},
	{BoolValue(true), "true", "", false},
	{IntegerValue(0), "0", "0", false},
	{IntegerValue(42), "42", "42", false},
	{IntegerValue(-42), "-42", "-42", false},
	{IntegerValue(math.MaxInt64), "9223372036854775807", "9223372036854775807", false},
	{IntegerValue(math.MinInt64), "-9223372036854775808", "-9223372036854775808", false},
	{FloatValue(0), "0.0", "0.0", false},
	{FloatValue(math.Copysign(0, -1)), "-0.0", "-0.0", false},
	{FloatValue(42), "42.0", "42.0", false},
	{FloatValue(3.14), "3.14", "3.14", false},
	{FloatValue(1.9), "1.9", "1.9", false},
	{FloatValue(1e100), "1e+100", "1e+100", false},
	{FloatValue(math.NaN()), "nan", "nan", false},
	{FloatValue(math.Inf(1)), "inf", "inf", false},
	{FloatValue(math.Inf(-1)), "-inf", "-inf", false},
	{StringValue(""), `""`, "", true},
	{StringValue("abc"), `"abc"`, "abc", true},
	{StringValue("abc\ndef"), `"abc\ndef"`, "abc\ndef", true},
}

func TestValueUnquoted(t *testing.T) {
	for _, test := range valueStringTests {
		got, isString := test.value.Unquoted()
		if want := test.toString; got != want || isString != test.isString {
			t.Errorf("%v.Unquoted() = %q, %t; want %q, %t", test.value, got, isString, want, test.isString)
		}
	}
}

func TestValueString(t *testing.T) {
	for _, test := range valueStringTests {
		if got, want := test.value.String(), test.luaConstant; got != want {
			t.Errorf("%v.String() = %q; want %q", test.value, got, want)
		}
	}
}

func TestValueIdentity(t *testing.T) {
	tests := []struct {
		v1, v2 Value
		want   bool
	}{
		{Value{}, Value{}, true},
		{BoolValue(false), Value{}, false},
		{BoolValue(true), BoolValue(true), true},
		{BoolValue(true), BoolValue(false), false},
		{IntegerValue(1), IntegerValue(1), true},
		{IntegerValue(1), FloatValue(1), false},
		{FloatValue(1.5), FloatValue(1.5), true},
		{StringValue("1"), IntegerValue(1), false},
		{StringValue("hello"), StringValue("hello"), true},
		{StringValue(""), Value{}, false},
	}
	for _, test := range tests {
		if got := test.v1 == test.v2; got != test.want {
			t.Errorf("%v == %v is %t; want %t", test.v1, test.v2, got, test.want)
		}
	}
}

func TestValueDumpType(t *testing.T) {
	tests := []struct {
		v    Value
		want byte
	}{
		{Value{}, 0x00},
		{BoolValue(false), 0x01},
		{BoolValue(true), 0x01},
		{FloatValue(1), 0x03},
		{IntegerValue(1), 0x13},
		{StringValue("hello world"), 0x04},
		{StringValue("0123456789012345678901234567890123456789"), 0x04},
		{StringValue("0123456789012345678901234567890123456789x"), 0x14},
	}
	for _, test := range tests {
		if got := test.v.dumpType(); got != test.want {
			t.Errorf("%v.dumpType() = %#02x; want %#02x", test.v, got, test.want)
		}
	}
}

func TestNumberValue(t *testing.T) {
	tests := []struct {
		numeral string
		want    Value
	}{
		{"1", IntegerValue(1)},
		{"1.0", FloatValue(1)},
		{"0xff", IntegerValue(255)},
		{"4.57e-3", FloatValue(4.57e-3)},
		{"9223372036854775808", FloatValue(9223372036854775808)},
	}
	for _, test := range tests {
		n, err := lualex.ParseNumeral(test.numeral)
		if err != nil {
			t.Errorf("ParseNumeral(%q): %v", test.numeral, err)
			continue
		}
		if got := NumberValue(n); got != test.want {
			t.Errorf("NumberValue(ParseNumeral(%q)) = %v; want %v", test.numeral, got, test.want)
		}
	}
}
