// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import "strings"

// Source is the chunk name recorded in a [Prototype].
// Its first byte selects how it is displayed:
// "@" introduces a file name,
// "=" introduces a free-form description,
// and anything else is taken to be the chunk's text.
type Source string

// FilenameSource returns the [Source] for a chunk read from path.
func FilenameSource(path string) Source {
	return Source("@" + path)
}

// AbstractSource returns the [Source] for a chunk
// described by a user-supplied string (like "stdin").
func AbstractSource(description string) Source {
	return Source("=" + description)
}

// Filename returns the path passed to [FilenameSource].
func (source Source) Filename() (path string, ok bool) {
	return strings.CutPrefix(string(source), "@")
}

// Abstract returns the description passed to [AbstractSource].
func (source Source) Abstract() (description string, ok bool) {
	return strings.CutPrefix(string(source), "=")
}

// idSize is the size of the buffer upstream Lua formats chunk IDs into,
// including the trailing NUL.
const idSize = 60

const ellipsis = "..."

// String returns the chunk ID used to prefix error messages.
// The result is at most idSize-1 bytes long.
//
// Equivalent to `luaO_chunkid` in upstream Lua 5.3.
func (source Source) String() string {
	if desc, ok := source.Abstract(); ok {
		if len(desc) >= idSize {
			desc = desc[:idSize-1]
		}
		return desc
	}
	if path, ok := source.Filename(); ok {
		if len(path) >= idSize {
			// Keep the end of the path: it is usually the most specific part.
			path = ellipsis + path[len(path)-(idSize-len(ellipsis)-1):]
		}
		return path
	}

	const prefix = `[string "`
	const suffix = `"]`
	const room = idSize - len(prefix) - len(ellipsis) - len(suffix) - 1
	text := string(source)
	line, _, multiline := strings.Cut(text, "\n")
	if !multiline && len(text) < room {
		return prefix + text + suffix
	}
	if len(line) > room {
		line = line[:room]
	}
	return prefix + line + ellipsis + suffix
}
