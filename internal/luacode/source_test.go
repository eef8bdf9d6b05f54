// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"strings"
	"testing"
)

func TestSourceString(t *testing.T) {
	long := strings.Repeat("x", 70)
	tests := []struct {
		source Source
		want   string
	}{
		{FilenameSource("foo.lua"), "foo.lua"},
		{FilenameSource(strings.Repeat("d", 59)), strings.Repeat("d", 59)},
		{FilenameSource("/very/long/" + long), "..." + long[len(long)-56:]},
		{AbstractSource("stdin"), "stdin"},
		{AbstractSource(long), long[:59]},
		{"return 1", `[string "return 1"]`},
		{"x = 1\ny = 2", `[string "x = 1..."]`},
		{Source(long), `[string "` + long[:45] + `..."]`},
		{"", `[string ""]`},
	}
	for _, test := range tests {
		if got := test.source.String(); got != test.want {
			t.Errorf("Source(%q).String() = %q; want %q", test.source, got, test.want)
		}
		if got := test.source.String(); len(got) >= idSize {
			t.Errorf("Source(%q).String() is %d bytes long", test.source, len(got))
		}
	}
}

func TestLocalName(t *testing.T) {
	c, err := Compile(FilenameSource("test.lua"), []byte("local a = 1\ndo local b = 2 end\nlocal c = 3\n"))
	if err != nil {
		t.Fatal(err)
	}
	f := c.Main
	last := len(f.Code) - 1
	tests := []struct {
		n, pc  int
		want   string
		wantOK bool
	}{
		{0, 0, "", false},
		{0, last, "a", true},
		{1, last, "c", true},
		{2, last, "", false},
	}
	for _, test := range tests {
		got, ok := f.LocalName(test.n, test.pc)
		if got != test.want || ok != test.wantOK {
			t.Errorf("LocalName(%d, %d) = %q, %t; want %q, %t", test.n, test.pc, got, ok, test.want, test.wantOK)
		}
	}
}
