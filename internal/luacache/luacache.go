// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

// Package luacache provides an on-disk cache of compiled Lua chunks.
package luacache

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"zb.256lights.llc/luac53/internal/luacode"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitemigration"
	"zombiezen.com/go/sqlite/sqlitex"
)

// formatVersion is mixed into every [Key].
// Changing it invalidates all previously cached chunks.
const formatVersion = "luac53 cache v1"

// Key identifies a compiled chunk.
// It is a SHA-256 hash of the source text and every option
// that influences the compiled output.
type Key [sha256.Size]byte

// KeyOptions is the set of compiler options that affect the output bytes.
type KeyOptions struct {
	Source luacode.Source
	Header luacode.Header
}

// NewKey computes the cache key for compiling src with the given options.
func NewKey(src []byte, opts *KeyOptions) Key {
	h := sha256.New()
	writeString := func(s string) {
		var buf [binary.MaxVarintLen64]byte
		h.Write(buf[:binary.PutUvarint(buf[:], uint64(len(s)))])
		h.Write([]byte(s))
	}
	writeString(formatVersion)
	writeString(string(opts.Source))
	hdr := opts.Header
	h.Write([]byte{
		hdr.Version,
		hdr.Format,
		hdr.IntSize,
		hdr.SizeTSize,
		hdr.InstructionSize,
		hdr.IntegerSize,
		hdr.NumberSize,
	})
	if hdr.ByteOrder != nil {
		writeString(hdr.ByteOrder.String())
	} else {
		writeString("")
	}
	writeString(string(src))

	var k Key
	h.Sum(k[:0])
	return k
}

// String returns the key in hex.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Cache is a SQLite database of compiled chunks.
// It is safe to use from multiple goroutines.
type Cache struct {
	pool *sqlitemigration.Pool
	now  func() time.Time
}

// Open opens the cache database at the given path,
// creating it and its parent directories if necessary.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return nil, fmt.Errorf("open lua cache: %v", err)
	}
	var schema sqlitemigration.Schema
	for i := 1; ; i++ {
		migration, err := fs.ReadFile(sqlFiles(), fmt.Sprintf("schema/%02d.sql", i))
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("open lua cache: read migrations: %v", err)
		}
		schema.Migrations = append(schema.Migrations, string(migration))
	}
	return &Cache{
		pool: sqlitemigration.NewPool(path, schema, sqlitemigration.Options{
			Flags:       sqlite.OpenCreate | sqlite.OpenReadWrite,
			PoolSize:    1,
			PrepareConn: prepareConn,
		}),
		now: time.Now,
	}, nil
}

func prepareConn(conn *sqlite.Conn) error {
	if err := sqlitex.ExecuteTransient(conn, "PRAGMA journal_mode=wal;", nil); err != nil {
		return fmt.Errorf("enable write-ahead logging: %v", err)
	}
	return nil
}

// Close waits for all pending operations to finish
// and closes the database.
func (c *Cache) Close() error {
	return c.pool.Close()
}

// Get returns the cached bytecode for the key.
// If no chunk is stored under the key, Get returns (nil, false, nil).
func (c *Cache) Get(ctx context.Context, k Key) (_ []byte, found bool, err error) {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("get %v from lua cache: %v", k, err)
	}
	defer c.pool.Put(conn)
	defer sqlitex.Save(conn)(&err)

	var data []byte
	err = sqlitex.ExecuteTransientFS(conn, sqlFiles(), "find.sql", &sqlitex.ExecOptions{
		Named: map[string]any{
			":key": k.String(),
		},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			data = make([]byte, stmt.GetLen("bytecode"))
			stmt.GetBytes("bytecode", data)
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("get %v from lua cache: %v", k, err)
	}
	if !found {
		return nil, false, nil
	}
	err = sqlitex.ExecuteTransientFS(conn, sqlFiles(), "touch.sql", &sqlitex.ExecOptions{
		Named: map[string]any{
			":key": k.String(),
			":now": c.now().Unix(),
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("get %v from lua cache: %v", k, err)
	}
	return data, true, nil
}

// Put stores bytecode under the key, replacing any existing entry.
func (c *Cache) Put(ctx context.Context, k Key, source luacode.Source, bytecode []byte) (err error) {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("put %v in lua cache: %v", k, err)
	}
	defer c.pool.Put(conn)

	if bytecode == nil {
		// A nil slice would be stored as NULL.
		bytecode = []byte{}
	}
	err = sqlitex.ExecuteTransientFS(conn, sqlFiles(), "upsert.sql", &sqlitex.ExecOptions{
		Named: map[string]any{
			":key":         k.String(),
			":source_name": string(source),
			":bytecode":    bytecode,
			":now":         c.now().Unix(),
		},
	})
	if err != nil {
		return fmt.Errorf("put %v in lua cache: %v", k, err)
	}
	return nil
}

// Prune removes every entry that has not been read or written since the given time.
// It returns the number of entries removed.
func (c *Cache) Prune(ctx context.Context, before time.Time) (int, error) {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("prune lua cache: %v", err)
	}
	defer c.pool.Put(conn)

	err = sqlitex.ExecuteTransientFS(conn, sqlFiles(), "prune.sql", &sqlitex.ExecOptions{
		Named: map[string]any{
			":before": before.Unix(),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("prune lua cache: %v", err)
	}
	return conn.Changes(), nil
}

//go:embed cache_sql
var rawSQLFiles embed.FS

func sqlFiles() fs.FS {
	fsys, err := fs.Sub(rawSQLFiles, "cache_sql")
	if err != nil {
		panic(err)
	}
	return fsys
}
