// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

// Package lualex provides a scanner to split source text
// into [Lua lexical elements].
//
// [Lua lexical elements]: https://www.lua.org/manual/5.3/manual.html#3.1
package lualex

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// A Scanner produces tokens from an in-memory source text.
// The zero value is not usable; use [NewScanner].
type Scanner struct {
	src   []byte
	cur   cursor
	marks []cursor
}

type cursor struct {
	off int
	pos Position
}

// NewScanner returns a [Scanner] that reads from src.
// The Scanner does not modify src.
func NewScanner(src []byte) *Scanner {
	return &Scanner{
		src: src,
		cur: cursor{pos: Position{Line: 1, Column: 1}},
	}
}

// Pos returns the position of the next unread byte.
func (s *Scanner) Pos() Position {
	return s.cur.pos
}

// Mark saves the current read position on a stack.
// Every call to Mark must be paired with
// a call to [Scanner.Restore] or [Scanner.Release].
func (s *Scanner) Mark() {
	s.marks = append(s.marks, s.cur)
}

// Restore pops the most recent position saved by [Scanner.Mark]
// and rewinds the scanner to it.
func (s *Scanner) Restore() {
	s.cur = s.marks[len(s.marks)-1]
	s.marks = s.marks[:len(s.marks)-1]
}

// Release pops the most recent position saved by [Scanner.Mark]
// without moving the scanner.
func (s *Scanner) Release() {
	s.marks = s.marks[:len(s.marks)-1]
}

// Peek returns the next token without consuming it.
// The read position is the same after Peek returns,
// regardless of whether the token could be read.
func (s *Scanner) Peek() (Token, error) {
	s.Mark()
	defer s.Restore()
	return s.Next()
}

// Next consumes the next [Token] from the source.
// At the end of the source, Next returns an [EOFToken]
// (and continues to do so on subsequent calls).
// If Next returns an error, it is of type [*Error]
// and the returned token is an [ErrorToken].
func (s *Scanner) Next() (Token, error) {
	s.skipSpace()
	start := s.cur
	b, ok := s.readByte()
	if !ok {
		return Token{Kind: EOFToken, Span: Span{Start: start.pos, End: start.pos}}, nil
	}

	switch {
	case isLetter(b) || b == '_':
		for {
			c, ok := s.peekByte(0)
			if !ok || !(isLetter(c) || isDigit(c) || c == '_') {
				break
			}
			s.readByte()
		}
		value := string(s.src[start.off:s.cur.off])
		kind := NameToken
		if k, isKeyword := keywords[value]; isKeyword {
			kind = k
		}
		return s.token(kind, start, value), nil
	case isDigit(b) || b == '.' && s.peekDigit():
		return s.numeral(start, b)
	case b == '\'' || b == '"':
		return s.shortString(start, b)
	case b == '-' && s.peekIs('-'):
		s.readByte()
		return s.comment(start)
	case b == '[':
		level, isLong := s.longOpenBracket()
		if isLong {
			value, err := s.longBracketBody(level)
			if err != nil {
				return Token{Kind: ErrorToken, Span: Span{Start: start.pos, End: s.cur.pos}}, err
			}
			tok := s.token(StringToken, start, value)
			tok.Long = true
			return tok, nil
		}
		if level > 0 {
			return s.errorToken(start, start.pos, "invalid long string delimiter")
		}
	}

	rest := s.src[start.off:]
	for _, sign := range signs {
		if bytes.HasPrefix(rest, []byte(sign)) {
			for range len(sign) - 1 {
				s.readByte()
			}
			return s.token(SignToken, start, sign), nil
		}
	}
	return s.errorToken(start, start.pos, "unknown character "+quoteChar(b))
}

func (s *Scanner) token(kind TokenKind, start cursor, value string) Token {
	return Token{
		Kind:  kind,
		Span:  Span{Start: start.pos, End: s.cur.pos},
		Value: value,
	}
}

func (s *Scanner) errorToken(start cursor, pos Position, msg string) (Token, error) {
	tok := Token{Kind: ErrorToken, Span: Span{Start: start.pos, End: s.cur.pos}}
	return tok, &Error{Pos: pos, Msg: msg}
}

func (s *Scanner) skipSpace() {
	for {
		c, ok := s.peekByte(0)
		if !ok || !isSpace(c) {
			return
		}
		s.readByte()
	}
}

// numeral scans a numeral whose first byte (already consumed) is first.
// Like the reference implementation, it greedily consumes
// hex digits, dots, and exponents and then validates the whole run.
func (s *Scanner) numeral(start cursor, first byte) (Token, error) {
	exponents := "Ee"
	if first == '0' {
		if c, ok := s.peekByte(0); ok && (c == 'x' || c == 'X') {
			s.readByte()
			exponents = "Pp"
		}
	}
	for {
		c, ok := s.peekByte(0)
		if !ok {
			break
		}
		if strings.IndexByte(exponents, c) >= 0 {
			s.readByte()
			if sign, ok := s.peekByte(0); ok && (sign == '+' || sign == '-') {
				s.readByte()
			}
			continue
		}
		if !isHexDigit(c) && c != '.' {
			break
		}
		s.readByte()
	}
	value := string(s.src[start.off:s.cur.off])
	if _, err := ParseNumeral(value); err != nil {
		return s.errorToken(start, start.pos, fmt.Sprintf("malformed number near '%s'", value))
	}
	return s.token(NumberToken, start, value), nil
}

func (s *Scanner) shortString(start cursor, quote byte) (Token, error) {
	for {
		c, ok := s.readByte()
		if !ok {
			return s.errorToken(start, s.cur.pos, "unexpected EOF in string")
		}
		switch c {
		case quote:
			raw := string(s.src[start.off+1 : s.cur.off-1])
			if _, off, err := unescape(raw); err != nil {
				pos := advance(start.pos, s.src[start.off:start.off+1+off])
				return s.errorToken(start, pos, err.Error())
			}
			return s.token(StringToken, start, raw), nil
		case '\n':
			return s.errorToken(start, start.pos, "unfinished string")
		case '\\':
			c, ok := s.readByte()
			if !ok {
				return s.errorToken(start, s.cur.pos, "unexpected EOF in string")
			}
			if c == 'z' {
				s.skipSpace()
			}
		}
	}
}

func (s *Scanner) comment(start cursor) (Token, error) {
	level, isLong := 0, false
	if s.peekIs('[') {
		s.Mark()
		s.readByte()
		if level, isLong = s.longOpenBracket(); isLong {
			s.Release()
		} else {
			s.Restore()
		}
	}
	if isLong {
		value, err := s.longBracketBody(level)
		if err != nil {
			return Token{Kind: ErrorToken, Span: Span{Start: start.pos, End: s.cur.pos}}, err
		}
		tok := s.token(CommentToken, start, value)
		tok.Long = true
		return tok, nil
	}
	bodyStart := s.cur.off
	for {
		c, ok := s.peekByte(0)
		if !ok || c == '\n' || c == '\r' {
			break
		}
		s.readByte()
	}
	return s.token(CommentToken, start, string(s.src[bodyStart:s.cur.off])), nil
}

// longOpenBracket is called after reading a '['.
// If the following bytes complete an opening long bracket,
// they are consumed and longOpenBracket returns the bracket's level.
// Otherwise, nothing is consumed and level is the number of '=' seen.
func (s *Scanner) longOpenBracket() (level int, ok bool) {
	for {
		c, ok := s.peekByte(level)
		switch {
		case ok && c == '=':
			level++
		case ok && c == '[':
			for range level + 1 {
				s.readByte()
			}
			return level, true
		default:
			return level, false
		}
	}
}

// longBracketBody reads until the closing long bracket of the given level
// and returns the text in between.
// A line break immediately after the opening bracket is skipped.
func (s *Scanner) longBracketBody(level int) (string, error) {
	if c, ok := s.peekByte(0); ok && (c == '\n' || c == '\r') {
		s.readByte()
	}
	sb := new(strings.Builder)
	for {
		c, ok := s.readByte()
		if !ok {
			return sb.String(), &Error{Pos: s.cur.pos, Msg: "unexpected EOF in long bracket"}
		}
		if c == ']' && s.closesLongBracket(level) {
			for range level + 1 {
				s.readByte()
			}
			return sb.String(), nil
		}
		sb.WriteByte(c)
	}
}

func (s *Scanner) closesLongBracket(level int) bool {
	for i := range level {
		if c, ok := s.peekByte(i); !ok || c != '=' {
			return false
		}
	}
	c, ok := s.peekByte(level)
	return ok && c == ']'
}

// readByte consumes a byte and updates the position.
// Any of "\n", "\r", "\r\n", or "\n\r" is consumed as a single "\n".
func (s *Scanner) readByte() (byte, bool) {
	if s.cur.off >= len(s.src) {
		return 0, false
	}
	b := s.src[s.cur.off]
	s.cur.off++
	switch b {
	case '\n', '\r':
		if s.cur.off < len(s.src) {
			if next := s.src[s.cur.off]; (next == '\n' || next == '\r') && next != b {
				s.cur.off++
			}
		}
		s.cur.pos = nextLine(s.cur.pos)
		return '\n', true
	default:
		s.cur.pos = nextColumn(s.cur.pos, b)
		return b, true
	}
}

// peekByte returns the raw byte n bytes past the read position.
func (s *Scanner) peekByte(n int) (byte, bool) {
	if s.cur.off+n >= len(s.src) {
		return 0, false
	}
	return s.src[s.cur.off+n], true
}

func (s *Scanner) peekIs(c byte) bool {
	b, ok := s.peekByte(0)
	return ok && b == c
}

func (s *Scanner) peekDigit() bool {
	b, ok := s.peekByte(0)
	return ok && isDigit(b)
}

func nextLine(pos Position) Position {
	return Position{Line: pos.Line + 1, Column: 1}
}

func nextColumn(pos Position, b byte) Position {
	if b != '\t' {
		pos.Column++
		return pos
	}
	const tabWidth = 8
	pos.Column++
	for pos.Column%tabWidth != 0 {
		pos.Column++
	}
	return pos
}

// advance returns the position after reading text starting at pos.
func advance(pos Position, text []byte) Position {
	for i := 0; i < len(text); i++ {
		switch b := text[i]; b {
		case '\n', '\r':
			if i+1 < len(text) && (text[i+1] == '\n' || text[i+1] == '\r') && text[i+1] != b {
				i++
			}
			pos = nextLine(pos)
		default:
			pos = nextColumn(pos, b)
		}
	}
	return pos
}

// Error is a lexical error.
type Error struct {
	Pos Position
	Msg string
}

func (e *Error) Error() string {
	return e.Pos.String() + ": " + e.Msg
}

// Unescape decodes the escape sequences in the body of a short string literal
// (the Value of a [StringToken] that is not Long).
func Unescape(raw string) (string, error) {
	s, _, err := unescape(raw)
	return s, err
}

// unescape decodes raw and, on failure,
// returns the offset in raw of the offending escape sequence.
func unescape(raw string) (_ string, errOffset int, err error) {
	if !strings.Contains(raw, `\`) {
		return raw, 0, nil
	}
	buf := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); {
		if raw[i] != '\\' {
			buf = append(buf, raw[i])
			i++
			continue
		}
		start := i
		i++
		if i >= len(raw) {
			return "", start, errors.New("unfinished string")
		}
		c := raw[i]
		i++
		switch c {
		case 'a':
			buf = append(buf, '\a')
		case 'b':
			buf = append(buf, '\b')
		case 'f':
			buf = append(buf, '\f')
		case 'n':
			buf = append(buf, '\n')
		case 'r':
			buf = append(buf, '\r')
		case 't':
			buf = append(buf, '\t')
		case 'v':
			buf = append(buf, '\v')
		case '\\', '"', '\'':
			buf = append(buf, c)
		case '\n', '\r':
			if i < len(raw) && (raw[i] == '\n' || raw[i] == '\r') && raw[i] != c {
				i++
			}
			buf = append(buf, '\n')
		case 'z':
			for i < len(raw) && isSpace(raw[i]) {
				i++
			}
		case 'x':
			if i+2 > len(raw) {
				return "", start, errors.New("hexadecimal digit expected")
			}
			hi, err1 := hexDigit(raw[i])
			lo, err2 := hexDigit(raw[i+1])
			if err1 != nil || err2 != nil {
				return "", start, errors.New("hexadecimal digit expected")
			}
			buf = append(buf, hi<<4|lo)
			i += 2
		case 'u':
			if i >= len(raw) || raw[i] != '{' {
				return "", start, errors.New("missing '{' in \\u{xxxx}")
			}
			i++
			var r uint32
			digits := 0
			for ; i < len(raw) && raw[i] != '}'; i++ {
				nibble, err := hexDigit(raw[i])
				if err != nil {
					return "", start, errors.New("hexadecimal digit expected")
				}
				if r > 0x7FFFFFFF>>4 {
					return "", start, errors.New("UTF-8 value too large")
				}
				r = r<<4 | uint32(nibble)
				digits++
			}
			if i >= len(raw) || digits == 0 {
				return "", start, errors.New("missing '}' in \\u{xxxx}")
			}
			i++
			buf = appendUTF8(buf, r)
		default:
			if !isDigit(c) {
				return "", start, errors.New("invalid escape sequence")
			}
			value := int(c - '0')
			for n := 1; n < 3 && i < len(raw) && isDigit(raw[i]); n++ {
				value = value*10 + int(raw[i]-'0')
				i++
			}
			if value > 0xff {
				return "", start, errors.New("decimal escape too large")
			}
			buf = append(buf, byte(value))
		}
	}
	return string(buf), 0, nil
}

// appendUTF8 appends x in the extended UTF-8 encoding Lua uses,
// which allows values up to 2^31.
func appendUTF8(buf []byte, x uint32) []byte {
	if x < 0x80 {
		return append(buf, byte(x))
	}
	var tmp [8]byte
	n := 1
	mfb := uint32(0x3f)
	for {
		tmp[len(tmp)-n] = byte(0x80 | x&0x3f)
		n++
		x >>= 6
		mfb >>= 1
		if x <= mfb {
			break
		}
	}
	tmp[len(tmp)-n] = byte(^mfb<<1 | x)
	return append(buf, tmp[len(tmp)-n:]...)
}

// Quote returns a double-quoted Lua string literal representing s.
func Quote(s string) string {
	sb := new(strings.Builder)
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for {
		c, size := utf8.DecodeRuneInString(s)
		switch {
		case size == 0:
			sb.WriteByte('"')
			return sb.String()
		case c == utf8.RuneError && size == 1:
			sb.WriteString(`\x`)
			for _, digit := range toHexDigits(s[0]) {
				sb.WriteByte(digit)
			}
		case c == '\\' || c == '"':
			sb.WriteByte('\\')
			sb.WriteRune(c)
		case isPrint(c):
			sb.WriteRune(c)
		case c == '\a':
			sb.WriteString(`\a`)
		case c == '\b':
			sb.WriteString(`\b`)
		case c == '\f':
			sb.WriteString(`\f`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c == '\v':
			sb.WriteString(`\v`)
		default:
			sb.WriteString(`\u{`)
			fmt.Fprintf(sb, "%x", c)
			sb.WriteString(`}`)
		}
		s = s[size:]
	}
}

func quoteChar(c byte) string {
	if isPrint(rune(c)) {
		return "'" + string(rune(c)) + "'"
	}
	digits := toHexDigits(c)
	return `'\x` + string(digits[:]) + "'"
}

// isSpace reports whether the given byte represents a space in Lua source code.
// According to the [reference],
// "[i]n source code, Lua recognizes as spaces the standard ASCII whitespace characters
// space, form feed, newline, carriage return, horizontal tab, and vertical tab."
//
// [reference]: https://www.lua.org/manual/5.3/manual.html#3.1
func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r' || c == '\f' || c == '\v'
}

func isLetter(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func toHexDigits(x byte) [2]byte {
	var result [2]byte
	if hi := x >> 4; hi < 0xa {
		result[0] = hi + '0'
	} else {
		result[0] = hi - 0xa + 'a'
	}
	if lo := x & 0xf; lo < 0xa {
		result[1] = lo + '0'
	} else {
		result[1] = lo - 0xa + 'a'
	}
	return result
}

func isPrint(c rune) bool {
	return 0x20 <= c && c < 0x7f
}

func hexDigit(c byte) (byte, error) {
	switch {
	case isDigit(c):
		return c - '0', nil
	case 'a' <= c && c <= 'f':
		return c - 'a' + 0xa, nil
	case 'A' <= c && c <= 'F':
		return c - 'A' + 0xa, nil
	default:
		return 0, fmt.Errorf("unexpected %q (want hex digit)", c)
	}
}
