// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

/*
Package luacode compiles Lua syntax trees to Lua 5.3 virtual machine code
and reads and writes the resulting binary chunks.
See [Compile] and [Generate] for the compiler,
[*Chunk.MarshalBinary] and [*Chunk.UnmarshalBinary] for the chunk format,
and [WriteListing] for a luac-style disassembly.

# Provenance

The code generator follows the single-pass strategy of Lua 5.3.6
but walks a syntax tree produced by [zb.256lights.llc/luac53/internal/luaparse]
instead of driving the parser.
The instruction encoding, register allocation, jump patching,
and chunk format are hand-written conversions of:

  - lcode.c
  - lparser.c
  - lopcodes.h
  - lobject.h (for Proto)
  - ldump.c
  - lundump.c
  - luac.c (for the listing)

Instruction selection follows luac 5.3 closely
but is not guaranteed to be identical for every program.

# Lua License

Copyright (C) 1994-2024 Lua.org, PUC-Rio.

Permission is hereby granted, free of charge, to any person obtaining
a copy of this software and associated documentation files (the
"Software"), to deal in the Software without restriction, including
without limitation the rights to use, copy, modify, merge, publish,
distribute, sublicense, and/or sell copies of the Software, and to
permit persons to whom the Software is furnished to do so, subject to
the following conditions:

The above copyright notice and this permission notice shall be
included in all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/
package luacode
