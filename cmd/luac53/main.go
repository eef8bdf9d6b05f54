// Copyright 2025 The zb Authors
// SPDX-License-Identifier: MIT

// luac53 compiles Lua source files to Lua 5.3 bytecode.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"zb.256lights.llc/luac53/internal/luac"
	"zombiezen.com/go/bass/sigterm"
	"zombiezen.com/go/log"
)

func main() {
	rootCommand := luac.New(&luac.Environment{
		ConfigDirs:  systemConfigDirs(),
		CacheDir:    cacheDir(),
		InitLogging: initLogging,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), sigterm.Signals()...)
	err := rootCommand.ExecuteContext(ctx)
	cancel()
	if err != nil {
		initLogging(false)
		log.Errorf(context.Background(), "%v", err)
		os.Exit(1)
	}
}

var initLogOnce sync.Once

func initLogging(showDebug bool) {
	initLogOnce.Do(func() {
		minLogLevel := log.Info
		if showDebug {
			minLogLevel = log.Debug
		}
		log.SetDefault(&log.LevelFilter{
			Min:    minLogLevel,
			Output: log.New(os.Stderr, "luac53: ", log.StdFlags, nil),
		})
	})
}
