// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package lualex

import (
	"errors"
	"strconv"
	"strings"
)

// Number is the value denoted by a numeral.
type Number struct {
	// IsInteger reports whether the numeral denotes an integer.
	// If true, the value is in Int. Otherwise, it is in Float.
	IsInteger bool
	Int       int64
	Float     float64
}

// ParseNumeral converts the text of a [NumberToken] to its value
// according to the [lexical rules of Lua].
// Numerals without a radix point or exponent denote integers,
// unless they are decimal and overflow,
// in which case they denote the nearest float.
// Any error returned will be of type [*strconv.NumError].
//
// [lexical rules of Lua]: https://lua.org/manual/5.3/manual.html#3.1
func ParseNumeral(s string) (Number, error) {
	syntaxError := &strconv.NumError{
		Func: "ParseNumeral",
		Num:  s,
		Err:  strconv.ErrSyntax,
	}
	if s == "" || s[0] == '+' || s[0] == '-' || strings.Contains(s, "_") {
		return Number{}, syntaxError
	}
	rest, isHex := cutHexPrefix(s)
	isFloat := strings.Contains(rest, ".") ||
		isHex && strings.ContainsAny(rest, "pP") ||
		!isHex && strings.ContainsAny(rest, "eE")

	switch {
	case isHex && !isFloat:
		// “Hexadecimal numerals with neither a radix point nor an exponent
		// always denote an integer value;
		// if the value overflows, it wraps around to fit into a valid integer.”
		if rest == "" {
			return Number{}, syntaxError
		}
		var x uint64
		for _, c := range []byte(rest) {
			d, err := hexDigit(c)
			if err != nil {
				return Number{}, syntaxError
			}
			x = x<<4 | uint64(d)
		}
		return Number{IsInteger: true, Int: int64(x)}, nil
	case !isFloat:
		i, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return Number{IsInteger: true, Int: i}, nil
		}
		if !errors.Is(err, strconv.ErrRange) {
			return Number{}, syntaxError
		}
		// Decimal integer overflow falls through to a float.
	}

	toParse := s
	if isHex && !strings.ContainsAny(rest, "pP") {
		// Go hex float literals must have an exponent.
		toParse = s + "p0"
	}
	f, err := strconv.ParseFloat(toParse, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return Number{}, syntaxError
	}
	return Number{Float: f}, nil
}

func cutHexPrefix(s string) (rest string, hex bool) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:], true
	}
	return s, false
}
