// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

// Package luac provides a Cobra command for a Lua 5.3 compiler.
// Its command-line options and behavior are roughly the same as [luac(1)].
//
// [luac(1)]: https://www.lua.org/manual/5.3/luac.html
package luac

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"zb.256lights.llc/luac53/internal/luaast"
	"zb.256lights.llc/luac53/internal/luacache"
	"zb.256lights.llc/luac53/internal/luacode"
	"zb.256lights.llc/luac53/internal/luaparse"
	"zombiezen.com/go/log"
)

// Environment is the set of process-level hooks the command uses.
// Any field may be left zero.
type Environment struct {
	// ConfigDirs returns the directories to search for "luac53/config.jwcc"
	// in increasing order of preference.
	ConfigDirs iter.Seq[string]
	// CacheDir is the directory the default cache database lives in.
	// If empty, caching is off unless a cacheDB is configured.
	CacheDir string
	// InitLogging is called once the debug setting is known.
	InitLogging func(showDebug bool)
}

type options struct {
	inputFilenames []string
	source         string
	outputFilename string
	list           int
	parseOnly      bool
	stripDebug     bool
	rawPC          bool
	dumpAST        bool
	undump         bool
	jobs           int
	cache          bool
	noCache        bool
	byteOrder      byteOrder

	cfg    *config
	header luacode.Header
	stdin  io.Reader
	stdout io.Writer
}

// New returns a new luac command.
func New(env *Environment) *cobra.Command {
	if env == nil {
		env = new(Environment)
	}
	c := &cobra.Command{
		Use:                   "luac53 [options] FILE [...]",
		Short:                 "Lua 5.3 compiler",
		Args:                  cobra.MinimumNArgs(1),
		DisableFlagsInUseLine: true,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := new(options)
	var configFiles []string
	showDebug := c.Flags().Bool("debug", false, "show debugging output")
	c.Flags().CountVarP(&opts.list, "list", "l", "produce a listing of compiled bytecode (twice for full listing)")
	c.Flags().StringVarP(&opts.outputFilename, "output", "o", "luac.out", "output to `filename` (\"-\" for stdout)")
	c.Flags().BoolVarP(&opts.parseOnly, "parse-only", "p", false, "do not write bytecode")
	c.Flags().BoolVarP(&opts.stripDebug, "strip-debug", "s", false, "strip debug information")
	c.Flags().BoolVarP(&opts.rawPC, "raw-pc", "0", false, "show literal PC values")
	c.Flags().StringVar(&opts.source, "source", "", "source `name` to show in debug information instead of filename")
	c.Flags().BoolVar(&opts.dumpAST, "ast", false, "print the syntax tree as YAML instead of compiling")
	c.Flags().BoolVar(&opts.undump, "undump", false, "treat inputs as binary chunks")
	c.Flags().StringArrayVar(&configFiles, "config", nil, "read configuration from `file` (can be repeated)")
	c.Flags().IntVar(&opts.jobs, "jobs", 0, "compile at most `n` files at once")
	c.Flags().BoolVar(&opts.cache, "cache", false, "use the compile cache")
	c.Flags().BoolVar(&opts.noCache, "no-cache", false, "do not use the compile cache")
	c.Flags().Var(&opts.byteOrder, "byte-order", "byte order of the written chunk")
	c.MarkFlagsMutuallyExclusive("cache", "no-cache")

	c.RunE = func(cmd *cobra.Command, args []string) error {
		cfg := defaultConfig()
		if env.CacheDir != "" {
			cfg.CacheDB = filepath.Join(env.CacheDir, "luac53", "cache.db")
		}
		if err := cfg.mergeFiles(configPaths(env.ConfigDirs, configFiles)); err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("debug") {
			cfg.Debug = *showDebug
		}
		if env.InitLogging != nil {
			env.InitLogging(cfg.Debug)
		}
		if !flags.Changed("strip-debug") {
			opts.stripDebug = cfg.StripDebug
		}
		if !flags.Changed("list") {
			opts.list = cfg.Listing
		}
		if !flags.Changed("jobs") {
			opts.jobs = cfg.Jobs
		}
		switch {
		case opts.noCache:
			cfg.Cache = false
		case opts.cache:
			cfg.Cache = true
		}
		if flags.Changed("byte-order") {
			cfg.Header.ByteOrder = opts.byteOrder
		}
		var err error
		opts.header, err = cfg.Header.header()
		if err != nil {
			return err
		}
		opts.cfg = cfg
		opts.inputFilenames = args
		opts.stdin = cmd.InOrStdin()
		opts.stdout = cmd.OutOrStdout()
		return run(cmd.Context(), opts)
	}
	return c
}

// configPaths returns the configuration files to read in order.
func configPaths(dirs iter.Seq[string], extra []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if dirs != nil {
			for dir := range dirs {
				if !yield(filepath.Join(dir, "luac53", "config.jwcc")) {
					return
				}
			}
		}
		for _, path := range extra {
			if !yield(path) {
				return
			}
		}
	}
}

// cacheMaxAge is how long a compile cache entry survives without being used.
const cacheMaxAge = 30 * 24 * time.Hour

func run(ctx context.Context, opts *options) (err error) {
	if opts.source != "" && len(opts.inputFilenames) > 1 {
		return fmt.Errorf("--source can only be used with a single file")
	}
	if opts.dumpAST {
		return dumpASTs(ctx, opts)
	}

	var cache *luacache.Cache
	if opts.cfg.Cache && opts.cfg.CacheDB != "" && !opts.undump {
		cache, err = luacache.Open(opts.cfg.CacheDB)
		if err != nil {
			return err
		}
		defer func() {
			if n, err := cache.Prune(ctx, time.Now().Add(-cacheMaxAge)); err != nil {
				log.Warnf(ctx, "Pruning compile cache: %v", err)
			} else if n > 0 {
				log.Debugf(ctx, "Pruned %d stale compile cache entries", n)
			}
			if closeErr := cache.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
	}

	chunks := make([]*luacode.Chunk, len(opts.inputFilenames))
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(max(opts.jobs, 1))
	for i, name := range opts.inputFilenames {
		grp.Go(func() error {
			var err error
			chunks[i], err = loadFile(grpCtx, opts, cache, name)
			return err
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	var chunk *luacode.Chunk
	if len(chunks) == 1 {
		chunk = chunks[0]
	} else {
		chunk = combine(chunks)
	}
	chunk.Header = opts.header

	if opts.list > 0 {
		listOpts := &luacode.ListingOptions{
			Full:  opts.list > 1,
			RawPC: opts.rawPC,
		}
		if err := luacode.WriteListing(opts.stdout, chunk, listOpts); err != nil {
			return err
		}
	}
	if opts.parseOnly {
		return nil
	}

	if opts.stripDebug {
		chunk = chunk.StripDebug()
	}
	output, err := chunk.MarshalBinary()
	if err != nil {
		return err
	}
	return writeOutput(opts, output)
}

func writeOutput(opts *options, output []byte) error {
	if opts.outputFilename != "-" {
		return os.WriteFile(opts.outputFilename, output, 0o666)
	}
	if f, ok := opts.stdout.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return fmt.Errorf("refusing to write bytecode to a terminal")
	}
	_, err := opts.stdout.Write(output)
	return err
}

// readInput reads the named file, or standard input if the name is "-".
func readInput(opts *options, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(opts.stdin)
	}
	return os.ReadFile(name)
}

// sourceName returns the name recorded in the chunk for the named input.
func sourceName(opts *options, name string) luacode.Source {
	switch {
	case opts.source != "":
		return luacode.Source(opts.source)
	case name == "-":
		return luacode.AbstractSource("stdin")
	default:
		return luacode.FilenameSource(name)
	}
}

// loadFile reads a source file or binary chunk and returns its chunk.
// Compiled chunks are cached with the command's header
// so that a hit can be written out unchanged.
func loadFile(ctx context.Context, opts *options, cache *luacache.Cache, name string) (*luacode.Chunk, error) {
	data, err := readInput(opts, name)
	if err != nil {
		return nil, err
	}
	if opts.undump || bytes.HasPrefix(data, []byte(luacode.Signature)) {
		chunk := new(luacode.Chunk)
		if err := chunk.UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return chunk, nil
	}

	source := sourceName(opts, name)
	var key luacache.Key
	if cache != nil {
		key = luacache.NewKey(data, &luacache.KeyOptions{
			Source: source,
			Header: opts.header,
		})
		cached, found, err := cache.Get(ctx, key)
		if err != nil {
			log.Warnf(ctx, "%v", err)
		} else if found {
			chunk := new(luacode.Chunk)
			if err := chunk.UnmarshalBinary(cached); err == nil {
				log.Debugf(ctx, "%s: cache hit (%v)", name, key)
				return chunk, nil
			} else {
				log.Warnf(ctx, "%s: ignoring corrupt cache entry %v: %v", name, key, err)
			}
		} else {
			log.Debugf(ctx, "%s: cache miss (%v)", name, key)
		}
	}

	start := time.Now()
	chunk, err := luacode.Compile(source, data)
	if err != nil {
		return nil, err
	}
	chunk.Header = opts.header
	log.Debugf(ctx, "compiled %s in %v", name, time.Since(start))

	if cache != nil {
		output, err := chunk.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if err := cache.Put(ctx, key, source, output); err != nil {
			log.Warnf(ctx, "%v", err)
		}
	}
	return chunk, nil
}

// dumpASTs parses each input and writes its syntax tree to stdout.
// Files are parsed concurrently but written in argument order.
func dumpASTs(ctx context.Context, opts *options) error {
	outputs := make([]bytes.Buffer, len(opts.inputFilenames))
	grp, _ := errgroup.WithContext(ctx)
	grp.SetLimit(max(opts.jobs, 1))
	for i, name := range opts.inputFilenames {
		grp.Go(func() error {
			data, err := readInput(opts, name)
			if err != nil {
				return err
			}
			tree, err := luaparse.Parse(sourceName(opts, name).String(), data)
			if err != nil {
				return err
			}
			return luaast.Dump(&outputs[i], tree)
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}
	for i := range outputs {
		if i > 0 {
			if _, err := io.WriteString(opts.stdout, "---\n"); err != nil {
				return err
			}
		}
		if _, err := outputs[i].WriteTo(opts.stdout); err != nil {
			return err
		}
	}
	return nil
}

// combine returns a chunk whose main function calls
// each chunk's main function in order.
//
// Equivalent to `combine` in upstream luac.
func combine(chunks []*luacode.Chunk) *luacode.Chunk {
	main := &luacode.Prototype{
		IsVararg:     true,
		MaxStackSize: 1,
		Source:       luacode.AbstractSource("(luac)"),
		Upvalues: []luacode.UpvalueDescriptor{{
			Name:    "_ENV",
			InStack: true,
		}},
		Code:      make([]luacode.Instruction, 0, 2*len(chunks)+1),
		Functions: make([]*luacode.Prototype, 0, len(chunks)),
	}
	for i, c := range chunks {
		main.Functions = append(main.Functions, c.Main)
		main.Code = append(main.Code,
			luacode.ABxInstruction(luacode.OpClosure, 0, uint32(i)),
			luacode.ABCInstruction(luacode.OpCall, 0, 1, 1),
		)
	}
	main.Code = append(main.Code, luacode.ABCInstruction(luacode.OpReturn, 0, 1, 0))
	main.LineInfo = slices.Repeat([]int{0}, len(main.Code))
	return &luacode.Chunk{
		Header:       luacode.DefaultHeader(),
		UpvalueCount: 1,
		Main:         main,
	}
}
