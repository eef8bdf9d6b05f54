// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

// Package testcontext provides contexts for tests.
package testcontext

import (
	"context"
	"testing"
	"time"

	"zombiezen.com/go/log/testlog"
)

// cleanupGrace is the time reserved before the test binary's deadline
// for closing databases and removing temporary directories.
const cleanupGrace = 2 * time.Second

// New returns a context for a test.
// Messages logged with zombiezen.com/go/log go to the test's log.
// The context is canceled when the test finishes
// or shortly before the test binary's -timeout elapses,
// whichever comes first.
func New(tb testing.TB) (context.Context, context.CancelFunc) {
	ctx := testlog.WithTB(tb.Context(), tb)
	t, ok := tb.(interface{ Deadline() (time.Time, bool) })
	if !ok {
		return context.WithCancel(ctx)
	}
	d, ok := t.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, d.Add(-cleanupGrace))
}
