// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package luaast

import (
	"bytes"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/google/go-cmp/cmp"
)

func TestDump(t *testing.T) {
	tests := []struct {
		name  string
		chunk *Chunk
		want  string
	}{
		{
			name:  "Empty",
			chunk: &Chunk{},
			want:  "type: Chunk\nbody: []\n",
		},
		{
			name: "LocalAndCall",
			chunk: &Chunk{Body: []Stmt{
				&LocalStmt{
					Names:  []*Ident{{Name: "a"}},
					Values: []Expr{&StringLit{Raw: `hello\n`}},
				},
				&CallStmt{Call: &CallExpr{
					Callee: &Ident{Name: "print"},
					Args:   []Expr{&Ident{Name: "a"}},
				}},
			}},
			want: "type: Chunk\n" +
				"body:\n" +
				"- type: VarDecStmt\n" +
				"  nameList:\n" +
				"  - {type: Id, value: a}\n" +
				"  exprList:\n" +
				"  - {type: String, value: 'hello\\n'}\n" +
				"- type: CallStmt\n" +
				"  callee: {type: Id, value: print}\n" +
				"  args:\n" +
				"  - {type: Id, value: a}\n",
		},
		{
			name: "NumbersKeepTheirText",
			chunk: &Chunk{Body: []Stmt{
				&AssignStmt{
					Targets: []Expr{&Ident{Name: "x"}},
					Values: []Expr{&BinaryExpr{
						Op:    OpSub,
						Left:  &NumberLit{Raw: "4.57e-3"},
						Right: &UnaryExpr{Op: OpNeg, Operand: &NumberLit{Raw: "0x10"}},
					}},
				},
			}},
			want: "type: Chunk\n" +
				"body:\n" +
				"- type: AssignStmt\n" +
				"  left:\n" +
				"  - {type: Id, value: x}\n" +
				"  right:\n" +
				"  - type: BinaryExpr\n" +
				"    op: '-'\n" +
				"    left: {type: Number, value: '4.57e-3'}\n" +
				"    right:\n" +
				"      type: UnaryExpr\n" +
				"      op: '-'\n" +
				"      arg: {type: Number, value: '0x10'}\n",
		},
		{
			name: "IfElse",
			chunk: &Chunk{Body: []Stmt{
				&IfStmt{
					Cond: &BoolLit{Value: true},
					Then: []Stmt{&BreakStmt{}},
					Else: &BlockStmt{Body: []Stmt{
						&ReturnStmt{Values: []Expr{&NilLit{}, &VarargExpr{}}},
					}},
				},
				&IfStmt{Cond: &Ident{Name: "c"}},
			}},
			want: "type: Chunk\n" +
				"body:\n" +
				"- type: IfStmt\n" +
				"  test: {type: Boolean, value: true}\n" +
				"  then:\n" +
				"  - {type: BreakStmt}\n" +
				"  else:\n" +
				"    type: BlockStmt\n" +
				"    body:\n" +
				"    - type: ReturnStmt\n" +
				"      body: [{type: Nil}, {type: VarArg}]\n" +
				"- type: IfStmt\n" +
				"  test: {type: Id, value: c}\n" +
				"  then: []\n" +
				"  else: null\n",
		},
		{
			name: "NumericFor",
			chunk: &Chunk{Body: []Stmt{
				&NumericForStmt{
					Var:   &Ident{Name: "i"},
					Init:  &NumberLit{Raw: "1"},
					Limit: &NumberLit{Raw: "10"},
				},
			}},
			want: "type: Chunk\n" +
				"body:\n" +
				"- type: ForStmt\n" +
				"  init:\n" +
				"  - type: AssignExpr\n" +
				"    left: [{type: Id, value: i}]\n" +
				"    right: [{type: Number, value: '1'}]\n" +
				"  - {type: Number, value: '10'}\n" +
				"  - null\n" +
				"  body: []\n",
		},
		{
			name: "Table",
			chunk: &Chunk{Body: []Stmt{
				&ReturnStmt{Values: []Expr{&TableExpr{Fields: []*TableField{
					{Kind: PositionalField, Key: &NumberLit{Raw: "1"}, Value: &StringLit{Raw: "x"}},
					{Kind: NamedField, Key: &StringLit{Raw: "y"}, Value: &BoolLit{}},
					{
						Kind:   NamedField,
						Key:    &StringLit{Raw: "f"},
						Value:  &FunctionExpr{Params: []*Ident{{Name: "self"}}, IsVararg: true},
						Method: true,
					},
				}}}},
			}},
			want: "type: Chunk\n" +
				"body:\n" +
				"- type: ReturnStmt\n" +
				"  body:\n" +
				"  - type: ObjExpr\n" +
				"    props:\n" +
				"    - type: ObjProp\n" +
				"      key: {type: Number, value: '1'}\n" +
				"      value: {type: String, value: x}\n" +
				"      computed: true\n" +
				"    - type: ObjProp\n" +
				"      key: {type: String, value: y}\n" +
				"      value: {type: Boolean, value: false}\n" +
				"      computed: false\n" +
				"    - type: ObjMethod\n" +
				"      key: {type: String, value: f}\n" +
				"      params: [{type: Id, value: self}, {type: VarArg}]\n" +
				"      body: []\n",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			if err := Dump(buf, test.chunk); err != nil {
				t.Fatal(err)
			}
			var got, want any
			if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
				t.Fatalf("output is not YAML: %v\n%s", err, buf)
			}
			if err := yaml.Unmarshal([]byte(test.want), &want); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Dump(...) (-want +got):\n%s\noutput:\n%s", diff, buf)
			}
		})
	}
}

func TestDumpKeyOrder(t *testing.T) {
	buf := new(bytes.Buffer)
	chunk := &Chunk{Body: []Stmt{
		&WhileStmt{Cond: &Ident{Name: "x"}},
	}}
	if err := Dump(buf, chunk); err != nil {
		t.Fatal(err)
	}
	want := "type: Chunk\n" +
		"body:\n" +
		"- type: WhileStmt\n" +
		"  test:\n" +
		"    type: Id\n" +
		"    value: x\n" +
		"  body: []\n"
	if got := buf.String(); got != want {
		t.Errorf("Dump(...) =\n%s\nwant:\n%s", got, want)
	}
}

func TestDumpOperators(t *testing.T) {
	var exprs []Expr
	for op := OpOr; op <= OpPow; op++ {
		exprs = append(exprs, &BinaryExpr{Op: op, Left: &Ident{Name: "a"}, Right: &Ident{Name: "b"}})
	}
	for op := OpNot; op <= OpLen; op++ {
		exprs = append(exprs, &UnaryExpr{Op: op, Operand: &Ident{Name: "a"}})
	}
	buf := new(bytes.Buffer)
	if err := Dump(buf, &Chunk{Body: []Stmt{&ReturnStmt{Values: exprs}}}); err != nil {
		t.Fatal(err)
	}
	var got struct {
		Body []struct {
			Body []struct {
				Op any `yaml:"op"`
			} `yaml:"body"`
		} `yaml:"body"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, buf)
	}
	if len(got.Body) != 1 || len(got.Body[0].Body) != len(exprs) {
		t.Fatalf("output does not have %d expressions:\n%s", len(exprs), buf)
	}
	for i, e := range exprs {
		var want string
		switch e := e.(type) {
		case *BinaryExpr:
			want = e.Op.String()
		case *UnaryExpr:
			want = e.Op.String()
		}
		if got := got.Body[0].Body[i].Op; got != want {
			t.Errorf("op #%d = %#v; want %q", i, got, want)
		}
	}
}

func TestDumpStringText(t *testing.T) {
	for _, raw := range []string{"- item", "true", "null", "a: b", `tab\there`, "#"} {
		buf := new(bytes.Buffer)
		chunk := &Chunk{Body: []Stmt{&ReturnStmt{Values: []Expr{&StringLit{Raw: raw}}}}}
		if err := Dump(buf, chunk); err != nil {
			t.Fatal(err)
		}
		var got struct {
			Body []struct {
				Body []struct {
					Value any `yaml:"value"`
				} `yaml:"body"`
			} `yaml:"body"`
		}
		if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Errorf("Dump of %q is not YAML: %v\n%s", raw, err, buf)
			continue
		}
		if v := got.Body[0].Body[0].Value; v != raw {
			t.Errorf("Dump of %q read back as %#v", raw, v)
		}
	}
}
