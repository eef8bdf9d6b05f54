// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lualex

import (
	"math"
	"testing"
)

func TestParseNumeral(t *testing.T) {
	tests := []struct {
		s    string
		want Number
		err  bool
	}{
		{s: "0", want: Number{IsInteger: true, Int: 0}},
		{s: "3", want: Number{IsInteger: true, Int: 3}},
		{s: "345", want: Number{IsInteger: true, Int: 345}},
		{s: "0xff", want: Number{IsInteger: true, Int: 0xff}},
		{s: "0xBEBADA", want: Number{IsInteger: true, Int: 0xBEBADA}},
		{s: "0x7fffffffffffffff", want: Number{IsInteger: true, Int: math.MaxInt64}},
		{s: "0x8000000000000000", want: Number{IsInteger: true, Int: math.MinInt64}},
		{s: "0xffffffffffffffff", want: Number{IsInteger: true, Int: -1}},
		{s: "0x1ffffffffffffffff", want: Number{IsInteger: true, Int: -1}},
		{s: "9223372036854775807", want: Number{IsInteger: true, Int: math.MaxInt64}},
		{s: "9223372036854775808", want: Number{Float: 9223372036854775808}},
		{s: "3.0", want: Number{Float: 3}},
		{s: "3.", want: Number{Float: 3}},
		{s: ".5", want: Number{Float: 0.5}},
		{s: "3.1416", want: Number{Float: 3.1416}},
		{s: "314.16e-2", want: Number{Float: 314.16e-2}},
		{s: "4.57e-3", want: Number{Float: 4.57e-3}},
		{s: "0.31416E1", want: Number{Float: 0.31416e1}},
		{s: "34e1", want: Number{Float: 340}},
		{s: "0x0.1E", want: Number{Float: 0x0.1Ep0}},
		{s: "0xA23p-4", want: Number{Float: 0xa23p-4}},
		{s: "0X1.921FB54442D18P+1", want: Number{Float: 0x1.921FB54442D18p+1}},
		{s: "", err: true},
		{s: "-1", err: true},
		{s: "1_000", err: true},
		{s: "0x", err: true},
		{s: "3..2", err: true},
		{s: "3e", err: true},
		{s: "1e+", err: true},
		{s: "0xg", err: true},
		{s: "12abc", err: true},
	}
	for _, test := range tests {
		got, err := ParseNumeral(test.s)
		if got != test.want || (err != nil) != test.err {
			wantError := "<nil>"
			if test.err {
				wantError = "<error>"
			}
			t.Errorf("ParseNumeral(%q) = %+v, %v; want %+v, %s", test.s, got, err, test.want, wantError)
		}
	}
}
