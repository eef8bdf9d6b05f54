// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luac

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"zb.256lights.llc/luac53/internal/luacode"
	"zb.256lights.llc/luac53/internal/luaparse"
	"zb.256lights.llc/luac53/internal/testcontext"
)

const helloSource = "local a = \"hello world\"\nprint(a)\n"

// runCommand runs the command with the given arguments
// and returns what it wrote to stdout.
func runCommand(t *testing.T, env *Environment, stdin string, args ...string) (string, error) {
	t.Helper()
	c := New(env)
	c.SetArgs(args)
	c.SetIn(strings.NewReader(stdin))
	stdout := new(strings.Builder)
	c.SetOut(stdout)
	c.SetErr(new(strings.Builder))
	ctx, cancel := testcontext.New(t)
	defer cancel()
	err := c.ExecuteContext(ctx)
	return stdout.String(), err
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o666); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCompileFile(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "hello.lua"), helloSource)
	output := filepath.Join(dir, "hello.out")

	if _, err := runCommand(t, nil, "", "--source", "@test.lua", "-o", output, input); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	want, err := luacode.Compile(luacode.FilenameSource("test.lua"), []byte(helloSource))
	if err != nil {
		t.Fatal(err)
	}
	wantBytes, err := want.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(wantBytes, got); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
}

func TestStripDebug(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "hello.lua"), helloSource)

	got, err := runCommand(t, nil, "", "-s", "-o", "-", input)
	if err != nil {
		t.Fatal(err)
	}
	chunk := new(luacode.Chunk)
	if err := chunk.UnmarshalBinary([]byte(got)); err != nil {
		t.Fatal(err)
	}
	if chunk.Main.Source != "" || len(chunk.Main.LineInfo) != 0 || len(chunk.Main.LocalVariables) != 0 {
		t.Errorf("chunk has debug information: source=%q lines=%v locals=%v",
			chunk.Main.Source, chunk.Main.LineInfo, chunk.Main.LocalVariables)
	}
}

func TestListing(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "hello.lua"), helloSource)
	output := filepath.Join(dir, "luac.out")

	got, err := runCommand(t, nil, "", "-l", "-p", "--source", "@test.lua", "-o", output, input)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "\nmain <test.lua:0,0> (5 instructions at main)\n") {
		t.Errorf("listing does not start with main header:\n%s", got)
	}
	if strings.Contains(got, "constants (") {
		t.Errorf("single -l listing includes constants:\n%s", got)
	}
	if _, err := os.Stat(output); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("-p wrote %s (stat error = %v)", output, err)
	}

	got, err = runCommand(t, nil, "", "-l", "-l", "-p", input)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "constants (2) for main:\n") {
		t.Errorf("full listing missing constants:\n%s", got)
	}
}

func TestStdin(t *testing.T) {
	got, err := runCommand(t, nil, helloSource, "-o", "-", "-")
	if err != nil {
		t.Fatal(err)
	}
	chunk := new(luacode.Chunk)
	if err := chunk.UnmarshalBinary([]byte(got)); err != nil {
		t.Fatal(err)
	}
	if want := luacode.AbstractSource("stdin"); chunk.Main.Source != want {
		t.Errorf("source = %q; want %q", chunk.Main.Source, want)
	}
}

func TestUndump(t *testing.T) {
	dir := t.TempDir()
	chunk, err := luacode.Compile(luacode.FilenameSource("test.lua"), []byte(helloSource))
	if err != nil {
		t.Fatal(err)
	}
	data, err := chunk.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	input := writeFile(t, filepath.Join(dir, "hello.luac"), string(data))

	got, err := runCommand(t, nil, "", "-o", "-", input)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(data, []byte(got)); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}

	truncated := writeFile(t, filepath.Join(dir, "bad.luac"), string(data[:len(data)/2]))
	if _, err := runCommand(t, nil, "", "-o", "-", truncated); !errors.Is(err, luacode.ErrFormat) {
		t.Errorf("truncated chunk error = %v; want %v", err, luacode.ErrFormat)
	}
}

func TestCombine(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.lua"), "x = 1\n")
	b := writeFile(t, filepath.Join(dir, "b.lua"), "y = 2\n")

	got, err := runCommand(t, nil, "", "--jobs", "2", "-o", "-", a, b)
	if err != nil {
		t.Fatal(err)
	}
	chunk := new(luacode.Chunk)
	if err := chunk.UnmarshalBinary([]byte(got)); err != nil {
		t.Fatal(err)
	}
	wantCode := []luacode.Instruction{
		luacode.ABxInstruction(luacode.OpClosure, 0, 0),
		luacode.ABCInstruction(luacode.OpCall, 0, 1, 1),
		luacode.ABxInstruction(luacode.OpClosure, 0, 1),
		luacode.ABCInstruction(luacode.OpCall, 0, 1, 1),
		luacode.ABCInstruction(luacode.OpReturn, 0, 1, 0),
	}
	if diff := cmp.Diff(wantCode, chunk.Main.Code); diff != "" {
		t.Errorf("combined code (-want +got):\n%s", diff)
	}
	var sources []luacode.Source
	for _, f := range chunk.Main.Functions {
		sources = append(sources, f.Source)
	}
	wantSources := []luacode.Source{luacode.FilenameSource(a), luacode.FilenameSource(b)}
	if !slices.Equal(sources, wantSources) {
		t.Errorf("function sources = %q; want %q", sources, wantSources)
	}
}

func TestSyntaxError(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "bad.lua"), "local = 1\n")
	_, err := runCommand(t, nil, "", "-p", input)
	var parseErr *luaparse.Error
	if !errors.As(err, &parseErr) {
		t.Errorf("error = %v; want *luaparse.Error", err)
	}
}

func TestDumpAST(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "hello.lua"), helloSource)
	got, err := runCommand(t, nil, "", "--ast", input)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"type: VarDecStmt", "hello world", "print"} {
		if !strings.Contains(got, want) {
			t.Errorf("AST dump does not contain %q:\n%s", want, got)
		}
	}
}

func TestByteOrder(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "hello.lua"), helloSource)
	got, err := runCommand(t, nil, "", "--byte-order", "big", "-o", "-", input)
	if err != nil {
		t.Fatal(err)
	}
	chunk := new(luacode.Chunk)
	if err := chunk.UnmarshalBinary([]byte(got)); err != nil {
		t.Fatal(err)
	}
	if chunk.Header.ByteOrder != binary.BigEndian {
		t.Errorf("byte order = %v; want %v", chunk.Header.ByteOrder, binary.BigEndian)
	}

	if _, err := runCommand(t, nil, "", "--byte-order", "middle", "-o", "-", input); err == nil {
		t.Error("--byte-order middle did not return an error")
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "hello.lua"), helloSource)
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(filepath.Join(configDir, "luac53"), 0o777); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(configDir, "luac53", "config.jwcc"), `{
		// Cross-compile for a 32-bit target.
		"stripDebug": true,
		"header": {
			"sizeTSize": 4,
			"integerSize": 4,
			"byteOrder": "big",
		},
		"unknownKey": [1, 2, 3],
	}`)
	env := &Environment{
		ConfigDirs: slices.Values([]string{filepath.Join(dir, "missing"), configDir}),
	}

	got, err := runCommand(t, env, "", "-o", "-", input)
	if err != nil {
		t.Fatal(err)
	}
	chunk := new(luacode.Chunk)
	if err := chunk.UnmarshalBinary([]byte(got)); err != nil {
		t.Fatal(err)
	}
	want := luacode.DefaultHeader()
	want.SizeTSize = 4
	want.IntegerSize = 4
	want.ByteOrder = binary.BigEndian
	if chunk.Header != want {
		t.Errorf("header = %+v; want %+v", chunk.Header, want)
	}
	if chunk.Main.Source != "" {
		t.Errorf("source = %q; want stripped", chunk.Main.Source)
	}

	// Flags override the configuration.
	got, err = runCommand(t, env, "", "--strip-debug=false", "--byte-order", "little", "-o", "-", input)
	if err != nil {
		t.Fatal(err)
	}
	if err := chunk.UnmarshalBinary([]byte(got)); err != nil {
		t.Fatal(err)
	}
	if chunk.Header.ByteOrder != binary.LittleEndian {
		t.Errorf("byte order = %v; want %v", chunk.Header.ByteOrder, binary.LittleEndian)
	}
	if chunk.Main.Source == "" {
		t.Error("debug information stripped despite --strip-debug=false")
	}

	badConfig := writeFile(t, filepath.Join(dir, "bad.jwcc"), `{"header": {"intSize": 2}}`)
	if _, err := runCommand(t, env, "", "--config", badConfig, "-p", input); err == nil {
		t.Error("intSize 2 did not return an error")
	}
}

func TestCache(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "hello.lua"), helloSource)
	env := &Environment{CacheDir: filepath.Join(dir, "cache")}

	first, err := runCommand(t, env, "", "-o", "-", input)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "cache", "luac53", "cache.db")); err != nil {
		t.Error(err)
	}
	second, err := runCommand(t, env, "", "-o", "-", input)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal([]byte(first), []byte(second)) {
		t.Error("cached output differs from first compile")
	}

	noCacheDir := filepath.Join(dir, "nocache")
	env = &Environment{CacheDir: noCacheDir}
	if _, err := runCommand(t, env, "", "--no-cache", "-o", "-", input); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(noCacheDir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("--no-cache created %s (stat error = %v)", noCacheDir, err)
	}
}
