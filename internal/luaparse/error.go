// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luaparse

import (
	"fmt"
	"strings"

	"zb.256lights.llc/luac53/internal/lualex"
)

// Error is the error type returned by [Parse].
type Error struct {
	// Source is the name of the source passed to [Parse].
	Source string
	// Pos is the position of the offending token.
	Pos lualex.Position
	// Want describes what the parser expected at Pos.
	Want string
	// Got describes the token found at Pos.
	Got string
	// Msg is set instead of Want and Got
	// for errors that are not about a single unexpected token.
	Msg string
	// Err is the lexical error that stopped parsing, if any.
	Err error
}

func (e *Error) Error() string {
	sb := new(strings.Builder)
	if e.Source == "" {
		sb.WriteString("?")
	} else {
		sb.WriteString(e.Source)
	}
	sb.WriteString(":")
	switch {
	case e.Err != nil:
		sb.WriteString(e.Err.Error())
	case e.Msg != "":
		fmt.Fprintf(sb, "%v: %s", e.Pos, e.Msg)
	default:
		fmt.Fprintf(sb, "%v: unexpected token, expected %s, got %s", e.Pos, e.Want, e.Got)
	}
	return sb.String()
}

// Unwrap returns the lexical error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// describeToken formats a token for the Got field of an [*Error].
func describeToken(tok lualex.Token) string {
	switch tok.Kind {
	case lualex.EOFToken:
		return "<eof>"
	case lualex.StringToken:
		return tok.String()
	default:
		return "'" + tok.String() + "'"
	}
}
