// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

//go:generate go tool stringer -type=TokenKind -linecomment

package lualex

import "fmt"

// Token represents a single lexical element in a source file.
type Token struct {
	Kind TokenKind
	Span Span
	// Value is the literal text of the token.
	// For a [StringToken], Value is the text between the delimiters
	// with escape sequences left as written (see [Unescape]).
	// For a [CommentToken], Value is the text after the leading "--".
	// For a [SignToken], Value is the operator or punctuation.
	Value string
	// Long is true for a [StringToken] or [CommentToken]
	// written with long brackets.
	// The Value of a long token does not contain escape sequences.
	Long bool
}

// String formats the token as it would appear in source.
// String returns "<eof>" for [EOFToken].
func (tok Token) String() string {
	switch tok.Kind {
	case EOFToken:
		return "<eof>"
	case ErrorToken:
		return "<error>"
	case StringToken:
		if tok.Long {
			return "[[" + tok.Value + "]]"
		}
		return `"` + tok.Value + `"`
	case CommentToken:
		return "--" + tok.Value
	default:
		return tok.Value
	}
}

// Is reports whether the token is a [SignToken] or [KeywordToken]
// with the given text.
func (tok Token) Is(text string) bool {
	return (tok.Kind == SignToken || tok.Kind == KeywordToken) && tok.Value == text
}

// Position represents a position in a textual source file.
type Position struct {
	// Line is the 1-based line number.
	Line int
	// Column is the 1-based column number.
	// Columns are based in bytes.
	// Zero indicates that the position only has line number information.
	Column int
}

// Pos returns a new position with the given line number and column.
// It panics if the resulting Position would not be valid
// (as reported by [Position.IsValid]).
func Pos(line, col int) Position {
	pos := Position{Line: line, Column: col}
	if !pos.IsValid() {
		panic("invalid Pos()")
	}
	return pos
}

// String formats the position as "line:col".
func (pos Position) String() string {
	if !pos.IsValid() {
		return "<invalid position>"
	}
	if pos.Column == 0 {
		return fmt.Sprintf("%d", pos.Line)
	}
	return fmt.Sprintf("%d:%d", pos.Line, pos.Column)
}

// IsValid reports whether pos has a positive line number
// and a non-negative column.
// (A zero column indicates line-only position information.)
func (pos Position) IsValid() bool {
	return pos.Line > 0 && pos.Column >= 0
}

// Span is a half-open range of source text.
// End is the position just past the last byte.
type Span struct {
	Start Position
	End   Position
}

// String formats the span by its start position.
func (span Span) String() string {
	return span.Start.String()
}

// TokenKind is an enumeration of valid [Token] types.
// The zero value is [ErrorToken].
type TokenKind int

// [TokenKind] values.
const (
	// ErrorToken is returned alongside a lexical error.
	ErrorToken TokenKind = iota // error
	// NameToken indicates an identifier.
	NameToken // name
	// NumberToken indicates a numeral as written.
	NumberToken // number
	// StringToken indicates a literal string.
	StringToken // string
	// SignToken indicates an operator or punctuation.
	SignToken // sign
	// KeywordToken indicates a reserved word
	// other than nil, true, and false.
	KeywordToken // keyword
	// CommentToken indicates a short or long comment.
	CommentToken // comment
	// NilToken is the nil keyword.
	NilToken // nil
	// BooleanToken is the true or false keyword.
	BooleanToken // boolean
	// EOFToken marks the end of input.
	EOFToken // eof
)

var keywords = map[string]TokenKind{
	"and":      KeywordToken,
	"break":    KeywordToken,
	"do":       KeywordToken,
	"else":     KeywordToken,
	"elseif":   KeywordToken,
	"end":      KeywordToken,
	"false":    BooleanToken,
	"for":      KeywordToken,
	"fun":      KeywordToken,
	"function": KeywordToken,
	"goto":     KeywordToken,
	"if":       KeywordToken,
	"in":       KeywordToken,
	"let":      KeywordToken,
	"local":    KeywordToken,
	"nil":      NilToken,
	"not":      KeywordToken,
	"or":       KeywordToken,
	"repeat":   KeywordToken,
	"return":   KeywordToken,
	"then":     KeywordToken,
	"true":     BooleanToken,
	"until":    KeywordToken,
	"while":    KeywordToken,
}

// IsKeyword reports whether s is a reserved word.
func IsKeyword(s string) bool {
	_, ok := keywords[s]
	return ok
}

// signs is the list of operators and punctuation,
// longest first so that scanning is greedy.
var signs = []string{
	"...",
	"..", "==", "~=", "<=", ">=", "<<", ">>", "//", "::",
	"+", "-", "*", "/", "%", "^", "#", "&", "~", "|", "<", ">", "=",
	"(", ")", "{", "}", "[", "]", ";", ":", ",", ".",
}
