// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteListing(t *testing.T) {
	tests := []struct {
		name string
		opts *ListingOptions
		want string
	}{
		{
			name: "Default",
			want: "\n" +
				"main <test.lua:0,0> (5 instructions at main)\n" +
				"0+ params, 3 slots, 1 upvalue, 1 local, 2 constants, 0 functions\n" +
				"\t1\t[1]\tLOADK    \t0 -1\t; \"hello world\"\n" +
				"\t2\t[2]\tGETTABUP \t1 0 -2\t; _ENV \"print\"\n" +
				"\t3\t[2]\tMOVE     \t2 0\n" +
				"\t4\t[2]\tCALL     \t1 2 1\n" +
				"\t5\t[2]\tRETURN   \t0 1\n",
		},
		{
			name: "Full",
			opts: &ListingOptions{Full: true},
			want: "\n" +
				"main <test.lua:0,0> (5 instructions at main)\n" +
				"0+ params, 3 slots, 1 upvalue, 1 local, 2 constants, 0 functions\n" +
				"\t1\t[1]\tLOADK    \t0 -1\t; \"hello world\"\n" +
				"\t2\t[2]\tGETTABUP \t1 0 -2\t; _ENV \"print\"\n" +
				"\t3\t[2]\tMOVE     \t2 0\n" +
				"\t4\t[2]\tCALL     \t1 2 1\n" +
				"\t5\t[2]\tRETURN   \t0 1\n" +
				"constants (2) for main:\n" +
				"\t1\t\"hello world\"\n" +
				"\t2\t\"print\"\n" +
				"locals (1) for main:\n" +
				"\t0\ta\t2\t6\n" +
				"upvalues (1) for main:\n" +
				"\t0\t_ENV\t1\t0\n",
		},
		{
			name: "RawPC",
			opts: &ListingOptions{RawPC: true},
			want: "\n" +
				"main <test.lua:0,0> (5 instructions at main)\n" +
				"0+ params, 3 slots, 1 upvalue, 1 local, 2 constants, 0 functions\n" +
				"\t0\t[1]\tLOADK    \t0 -1\t; \"hello world\"\n" +
				"\t1\t[2]\tGETTABUP \t1 0 -2\t; _ENV \"print\"\n" +
				"\t2\t[2]\tMOVE     \t2 0\n" +
				"\t3\t[2]\tCALL     \t1 2 1\n" +
				"\t4\t[2]\tRETURN   \t0 1\n",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sb := new(strings.Builder)
			if err := WriteListing(sb, helloChunk(), test.opts); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(test.want, sb.String()); diff != "" {
				t.Errorf("listing (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWriteListingNested(t *testing.T) {
	c, err := Compile(FilenameSource("test.lua"), []byte("local function f()\n  return function() end\nend\n"))
	if err != nil {
		t.Fatal(err)
	}
	sb := new(strings.Builder)
	if err := WriteListing(sb, c.StripDebug(), nil); err != nil {
		t.Fatal(err)
	}
	got := sb.String()
	for _, want := range []string{
		"\nmain <?:0,0> (",
		"\t; F[0]\n",
		"\nfunction <?:1,3> (",
		" at F[0])\n",
		"\t; F[0][0]\n",
		"\nfunction <?:2,2> (",
		" at F[0][0])\n",
		"\t[-]\t",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("listing does not contain %q. Full listing:\n%s", want, got)
		}
	}
}

func TestListingConstant(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Value{}, "nil"},
		{BoolValue(true), "true"},
		{IntegerValue(-42), "-42"},
		{FloatValue(1), "1.0"},
		{FloatValue(0.5), "0.5"},
		{FloatValue(1e100), "1e+100"},
		{StringValue("hi"), `"hi"`},
		{StringValue("a\"b\\c\n"), `"a\"b\\c\n"`},
		{StringValue("\x00\x7f\xff"), `"\000\127\255"`},
	}
	for _, test := range tests {
		if got := listingConstant(test.v); got != test.want {
			t.Errorf("listingConstant(%v) = %s; want %s", test.v, got, test.want)
		}
	}
}
