// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ListingOptions is the set of options for [WriteListing].
type ListingOptions struct {
	// Full adds each function's constants, locals, and upvalues
	// to the listing, like luac -l -l.
	Full bool
	// RawPC shows program counters starting from 0
	// instead of luac's 1-based numbering.
	RawPC bool
}

// WriteListing writes a human-readable listing of the chunk's functions to w
// in the format of luac -l.
// Functions are identified by their position in the function tree
// ("main", "F[0]", "F[0][1]", ...) rather than by address.
//
// Equivalent to `PrintFunction` in upstream luac.
func WriteListing(w io.Writer, c *Chunk, opts *ListingOptions) error {
	if opts == nil {
		opts = new(ListingOptions)
	}
	lw := &listingWriter{
		w:     bufio.NewWriter(w),
		names: make(map[*Prototype]string),
		opts:  opts,
	}
	if opts.RawPC {
		lw.pcBase = 0
	} else {
		lw.pcBase = 1
	}
	nameFunctions(lw.names, c.Main, "")
	lw.function(c.Main)
	if lw.err != nil {
		return lw.err
	}
	return lw.w.Flush()
}

type listingWriter struct {
	w      *bufio.Writer
	names  map[*Prototype]string
	opts   *ListingOptions
	pcBase int
	err    error
}

func (lw *listingWriter) printf(format string, args ...any) {
	if lw.err != nil {
		return
	}
	_, lw.err = fmt.Fprintf(lw.w, format, args...)
}

func (lw *listingWriter) function(f *Prototype) {
	lw.header(f)
	lw.code(f)
	if lw.opts.Full {
		lw.debug(f)
	}
	for _, p := range f.Functions {
		lw.function(p)
	}
}

func (lw *listingWriter) header(f *Prototype) {
	kind := "function"
	if f.IsMainChunk() {
		kind = "main"
	}
	lw.printf("\n%s <%s:%d,%d> (%s at %s)\n",
		kind, listingSource(f.Source),
		f.LineDefined, f.LastLineDefined,
		plural(len(f.Code), "instruction"), lw.names[f])
	vararg := ""
	if f.IsVararg {
		vararg = "+"
	}
	lw.printf("%d%s param%s, %s, %s, ",
		f.NumParams, vararg, pluralSuffix(int(f.NumParams)),
		plural(int(f.MaxStackSize), "slot"),
		plural(len(f.Upvalues), "upvalue"))
	lw.printf("%s, %s, %s\n",
		plural(len(f.LocalVariables), "local"),
		plural(len(f.Constants), "constant"),
		plural(len(f.Functions), "function"))
}

func (lw *listingWriter) code(f *Prototype) {
	sb := new(strings.Builder)
	for pc := 0; pc < len(f.Code); pc++ {
		i := f.Code[pc]
		sb.Reset()
		fmt.Fprintf(sb, "\t%d\t", lw.pcBase+pc)
		if line := f.Line(pc); line > 0 {
			fmt.Fprintf(sb, "[%d]\t", line)
		} else {
			sb.WriteString("[-]\t")
		}
		sb.WriteString(i.String())

		constant := func(k int) string {
			if k < 0 || k >= len(f.Constants) {
				return "?"
			}
			return listingConstant(f.Constants[k])
		}
		switch op := i.OpCode(); op {
		case OpLoadK:
			fmt.Fprintf(sb, "\t; %s", constant(int(i.ArgBx())))
		case OpGetUpval, OpSetUpval:
			fmt.Fprintf(sb, "\t; %s", upvalueName(f, int(i.ArgB())))
		case OpGetTabUp:
			fmt.Fprintf(sb, "\t; %s", upvalueName(f, int(i.ArgB())))
			if c := i.ArgC(); IsConstant(c) {
				fmt.Fprintf(sb, " %s", constant(ConstantIndex(c)))
			}
		case OpSetTabUp:
			fmt.Fprintf(sb, "\t; %s", upvalueName(f, int(i.ArgA())))
			if b := i.ArgB(); IsConstant(b) {
				fmt.Fprintf(sb, " %s", constant(ConstantIndex(b)))
			}
			if c := i.ArgC(); IsConstant(c) {
				fmt.Fprintf(sb, " %s", constant(ConstantIndex(c)))
			}
		case OpGetTable, OpSelf:
			if c := i.ArgC(); IsConstant(c) {
				fmt.Fprintf(sb, "\t; %s", constant(ConstantIndex(c)))
			}
		case OpSetTable, OpAdd, OpSub, OpMul, OpMod, OpPow, OpDiv, OpIDiv,
			OpBAnd, OpBOr, OpBXOR, OpSHL, OpSHR, OpEQ, OpLT, OpLE:
			b, c := i.ArgB(), i.ArgC()
			if IsConstant(b) || IsConstant(c) {
				sb.WriteString("\t; ")
				if IsConstant(b) {
					sb.WriteString(constant(ConstantIndex(b)))
				} else {
					sb.WriteString("-")
				}
				sb.WriteString(" ")
				if IsConstant(c) {
					sb.WriteString(constant(ConstantIndex(c)))
				} else {
					sb.WriteString("-")
				}
			}
		case OpJMP, OpForLoop, OpForPrep, OpTForLoop:
			fmt.Fprintf(sb, "\t; to %d", lw.pcBase+pc+1+int(i.ArgSBx()))
		case OpClosure:
			if bx := int(i.ArgBx()); bx < len(f.Functions) {
				fmt.Fprintf(sb, "\t; %s", lw.names[f.Functions[bx]])
			}
		case OpSetList:
			if c := i.ArgC(); c != 0 {
				fmt.Fprintf(sb, "\t; %d", c)
			} else if pc+1 < len(f.Code) {
				// The batch number is in the following instruction.
				pc++
				fmt.Fprintf(sb, "\t; %d", uint32(f.Code[pc]))
			}
		case OpExtraArg:
			fmt.Fprintf(sb, "\t; %s", constant(int(i.ArgAx())))
		}
		sb.WriteByte('\n')
		lw.printf("%s", sb.String())
	}
}

func (lw *listingWriter) debug(f *Prototype) {
	name := lw.names[f]
	lw.printf("constants (%d) for %s:\n", len(f.Constants), name)
	for i, k := range f.Constants {
		lw.printf("\t%d\t%s\n", i+1, listingConstant(k))
	}
	lw.printf("locals (%d) for %s:\n", len(f.LocalVariables), name)
	for i, v := range f.LocalVariables {
		lw.printf("\t%d\t%s\t%d\t%d\n", i, v.Name, v.StartPC+1, v.EndPC+1)
	}
	lw.printf("upvalues (%d) for %s:\n", len(f.Upvalues), name)
	for i, uv := range f.Upvalues {
		inStack := 0
		if uv.InStack {
			inStack = 1
		}
		lw.printf("\t%d\t%s\t%d\t%d\n", i, upvalueName(f, i), inStack, uv.Index)
	}
}

// nameFunctions assigns a name to f and every function nested in it.
func nameFunctions(names map[*Prototype]string, f *Prototype, name string) {
	if name == "" {
		name = "main"
		if !f.IsMainChunk() {
			name = "top"
		}
		names[f] = name
		for i, p := range f.Functions {
			nameFunctions(names, p, fmt.Sprintf("F[%d]", i))
		}
		return
	}
	names[f] = name
	for i, p := range f.Functions {
		nameFunctions(names, p, fmt.Sprintf("%s[%d]", name, i))
	}
}

func listingSource(source Source) string {
	switch {
	case source == "":
		return "?"
	case strings.HasPrefix(string(source), "@") || strings.HasPrefix(string(source), "="):
		return string(source[1:])
	case strings.HasPrefix(string(source), Signature[:1]):
		return "(bstring)"
	default:
		return "(string)"
	}
}

func upvalueName(f *Prototype, i int) string {
	if i >= len(f.Upvalues) || f.Upvalues[i].Name == "" {
		return "-"
	}
	return f.Upvalues[i].Name
}

// listingConstant formats a constant the way luac's listing does.
// Unlike [Value.String], strings are quoted byte by byte
// with decimal escapes for unprintable bytes.
//
// Equivalent to `PrintConstant` in upstream luac.
func listingConstant(v Value) string {
	s, isString := v.Unquoted()
	if !isString {
		return v.String()
	}
	sb := new(strings.Builder)
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\a':
			sb.WriteString(`\a`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\v':
			sb.WriteString(`\v`)
		default:
			if ' ' <= c && c <= '~' {
				sb.WriteByte(c)
			} else {
				sb.WriteString(`\`)
				s := strconv.Itoa(int(c))
				sb.WriteString(strings.Repeat("0", 3-len(s)))
				sb.WriteString(s)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func plural(n int, unit string) string {
	return strconv.Itoa(n) + " " + unit + pluralSuffix(n)
}

func pluralSuffix(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
