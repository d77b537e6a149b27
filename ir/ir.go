// Copyright (c) 2024 The Falcon Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package ir defines the flat three-address form the code generator
// lowers typed syntax trees into: a straight-line list of instructions per
// function body, with no basic blocks or SSA — control flow is expressed
// purely through Jump/JumpIfZero/JumpIfNotZero/Label.
package ir

import (
	"fmt"
	"strings"

	"minic/ast"
	"minic/symbols"
)

// Value is an operand: either a constant or a reference to a named
// temporary/variable. A named Value's width comes from the symbol table; a
// constant's width comes from its own IsLong tag.
type Value struct {
	isConst bool
	c       symbols.ConstValue
	name    string
}

func Const(c symbols.ConstValue) Value { return Value{isConst: true, c: c} }
func Var(name string) Value            { return Value{name: name} }

func (v Value) IsConst() bool            { return v.isConst }
func (v Value) ConstValue() symbols.ConstValue { return v.c }
func (v Value) Name() string             { return v.name }

func (v Value) String() string {
	if v.isConst {
		return v.c.String()
	}
	return v.name
}

type UnaryOp int

const (
	Complement UnaryOp = iota
	Negate
	Not
)

func (op UnaryOp) String() string {
	switch op {
	case Complement:
		return "~"
	case Negate:
		return "-"
	case Not:
		return "!"
	default:
		return "?"
	}
}

type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Mod
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
)

func (op BinaryOp) String() string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Mod:
		return "%"
	case Eq:
		return "=="
	case Ne:
		return "!="
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	default:
		return "?"
	}
}

// Instruction is one three-address operation. Every concrete instruction
// embeds instrBase so the interface needs no methods beyond String.
type Instruction interface {
	fmt.Stringer
	instrNode()
}

type instrBase struct{}

func (instrBase) instrNode() {}

type ReturnInst struct {
	instrBase
	Value Value
}

func (i *ReturnInst) String() string { return fmt.Sprintf("Return(%s)", i.Value) }

// SignExtendInst widens Src (int) into Dst (long).
type SignExtendInst struct {
	instrBase
	Src, Dst Value
}

func (i *SignExtendInst) String() string { return fmt.Sprintf("%s = SignExtend(%s)", i.Dst, i.Src) }

// TruncateInst narrows Src (long) into Dst (int).
type TruncateInst struct {
	instrBase
	Src, Dst Value
}

func (i *TruncateInst) String() string { return fmt.Sprintf("%s = Truncate(%s)", i.Dst, i.Src) }

type UnaryInst struct {
	instrBase
	Op       UnaryOp
	Src, Dst Value
}

func (i *UnaryInst) String() string { return fmt.Sprintf("%s = %s%s", i.Dst, i.Op, i.Src) }

type BinaryInst struct {
	instrBase
	Op         BinaryOp
	Src1, Src2 Value
	Dst        Value
}

func (i *BinaryInst) String() string {
	return fmt.Sprintf("%s = %s %s %s", i.Dst, i.Src1, i.Op, i.Src2)
}

type CopyInst struct {
	instrBase
	Src, Dst Value
}

func (i *CopyInst) String() string { return fmt.Sprintf("%s = %s", i.Dst, i.Src) }

type JumpInst struct {
	instrBase
	Target string
}

func (i *JumpInst) String() string { return fmt.Sprintf("Jump(%s)", i.Target) }

type JumpIfZeroInst struct {
	instrBase
	Cond   Value
	Target string
}

func (i *JumpIfZeroInst) String() string { return fmt.Sprintf("JumpIfZero(%s, %s)", i.Cond, i.Target) }

type JumpIfNotZeroInst struct {
	instrBase
	Cond   Value
	Target string
}

func (i *JumpIfNotZeroInst) String() string {
	return fmt.Sprintf("JumpIfNotZero(%s, %s)", i.Cond, i.Target)
}

type LabelInst struct {
	instrBase
	Name string
}

func (i *LabelInst) String() string { return i.Name + ":" }

type CallInst struct {
	instrBase
	Callee string
	Args   []Value
	Dst    Value
}

func (i *CallInst) String() string {
	parts := make([]string, len(i.Args))
	for j, a := range i.Args {
		parts[j] = a.String()
	}
	return fmt.Sprintf("%s = %s(%s)", i.Dst, i.Callee, strings.Join(parts, ", "))
}

// TopLevel is either a Function or a StaticVariable.
type TopLevel interface {
	fmt.Stringer
	topLevelNode()
}

type Function struct {
	Name   string
	Global bool
	Params []string
	Body   []Instruction
}

func (Function) topLevelNode() {}
func (f *Function) String() string {
	var sb strings.Builder
	if f.Global {
		sb.WriteString("global ")
	}
	fmt.Fprintf(&sb, "%s(%s):\n", f.Name, strings.Join(f.Params, ", "))
	for _, inst := range f.Body {
		fmt.Fprintf(&sb, "  %s\n", inst)
	}
	return sb.String()
}

type StaticVariable struct {
	Name   string
	Type   *ast.Type
	Global bool
	Init   symbols.StaticInit
}

func (StaticVariable) topLevelNode() {}
func (s *StaticVariable) String() string {
	prefix := ""
	if s.Global {
		prefix = "global "
	}
	return fmt.Sprintf("%s%s: %s = %s", prefix, s.Name, s.Type, s.Init.Value)
}

type Program struct {
	TopLevels []TopLevel
}
