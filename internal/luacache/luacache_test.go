// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luacache

import (
	"encoding/binary"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"zb.256lights.llc/luac53/internal/luacode"
	"zb.256lights.llc/luac53/internal/testcontext"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache", "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Error("Close:", err)
		}
	})
	return c
}

func TestCache(t *testing.T) {
	ctx, cancel := testcontext.New(t)
	defer cancel()
	c := openTestCache(t)

	k := NewKey([]byte("print(1)\n"), &KeyOptions{
		Source: luacode.FilenameSource("a.lua"),
		Header: luacode.DefaultHeader(),
	})
	if got, found, err := c.Get(ctx, k); err != nil || found {
		t.Fatalf("Get(empty) = %q, %t, %v; want <nil>, false, <nil>", got, found, err)
	}

	want := []byte("\x1bLua\x53\x00")
	if err := c.Put(ctx, k, luacode.FilenameSource("a.lua"), want); err != nil {
		t.Fatal("Put:", err)
	}
	got, found, err := c.Get(ctx, k)
	if err != nil || !found {
		t.Fatalf("Get(...) = _, %t, %v; want _, true, <nil>", found, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("bytecode (-want +got):\n%s", diff)
	}

	want2 := []byte("\x1bLua\x53\x00\x01")
	if err := c.Put(ctx, k, luacode.FilenameSource("a.lua"), want2); err != nil {
		t.Fatal("second Put:", err)
	}
	got, _, err = c.Get(ctx, k)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want2, got); diff != "" {
		t.Errorf("bytecode after replace (-want +got):\n%s", diff)
	}
}

func TestCachePrune(t *testing.T) {
	ctx, cancel := testcontext.New(t)
	defer cancel()
	c := openTestCache(t)
	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	oldKey := NewKey([]byte("return 1"), &KeyOptions{Header: luacode.DefaultHeader()})
	if err := c.Put(ctx, oldKey, "=old", []byte("old")); err != nil {
		t.Fatal(err)
	}
	now = now.Add(48 * time.Hour)
	newKey := NewKey([]byte("return 2"), &KeyOptions{Header: luacode.DefaultHeader()})
	if err := c.Put(ctx, newKey, "=new", []byte("new")); err != nil {
		t.Fatal(err)
	}

	n, err := c.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Prune(...) = %d; want 1", n)
	}
	if _, found, err := c.Get(ctx, oldKey); err != nil || found {
		t.Errorf("Get(oldKey) found = %t, err = %v; want false, <nil>", found, err)
	}
	if _, found, err := c.Get(ctx, newKey); err != nil || !found {
		t.Errorf("Get(newKey) found = %t, err = %v; want true, <nil>", found, err)
	}
}

func TestNewKey(t *testing.T) {
	src := []byte("local x = 1\n")
	base := &KeyOptions{
		Source: luacode.FilenameSource("x.lua"),
		Header: luacode.DefaultHeader(),
	}
	baseKey := NewKey(src, base)
	if again := NewKey(src, base); again != baseKey {
		t.Errorf("NewKey is not deterministic: %v != %v", again, baseKey)
	}

	bigEndian := luacode.DefaultHeader()
	bigEndian.ByteOrder = binary.BigEndian
	narrow := luacode.DefaultHeader()
	narrow.SizeTSize = 4

	tests := []struct {
		name string
		src  []byte
		opts *KeyOptions
	}{
		{"Source", src, &KeyOptions{Source: luacode.FilenameSource("y.lua"), Header: base.Header}},
		{"Text", []byte("local x = 2\n"), base},
		{"ByteOrder", src, &KeyOptions{Source: base.Source, Header: bigEndian}},
		{"SizeT", src, &KeyOptions{Source: base.Source, Header: narrow}},
	}
	for _, test := range tests {
		if k := NewKey(test.src, test.opts); k == baseKey {
			t.Errorf("%s: key did not change", test.name)
		}
	}
}
