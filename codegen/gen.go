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
package codegen

import (
	"fmt"

	"github.com/samber/lo"

	"minic/ir"
	"minic/symbols"
)

// Selector is the instruction selector: it walks flat IR and produces
// virtual-register assembly whose Pseudo operands name the same
// temporaries/variables the IR did. It also populates the AsmSymbolTable
// every later pass reads widths and linkage from.
type Selector struct {
	syms *symbols.Table
	asm  *symbols.AsmTable
}

func NewSelector(syms *symbols.Table, asm *symbols.AsmTable) *Selector {
	return &Selector{syms: syms, asm: asm}
}

func (s *Selector) Select(prog *ir.Program) *Program {
	var tops []TopLevel
	for _, t := range prog.TopLevels {
		switch t := t.(type) {
		case *ir.Function:
			tops = append(tops, s.selectFunction(t))
		case *ir.StaticVariable:
			tops = append(tops, s.selectStaticVar(t))
		}
	}
	return &Program{TopLevels: tops}
}

func widthOfType(t interface{ Width() int }) symbols.AsmWidth {
	if t.Width() == 8 {
		return symbols.Quadword
	}
	return symbols.Longword
}

func (s *Selector) widthOfName(name string) symbols.AsmWidth {
	sym, ok := s.syms.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("internal error: %q has no symbol table entry", name))
	}
	return widthOfType(sym.Type)
}

func (s *Selector) widthOfValue(v ir.Value) symbols.AsmWidth {
	if v.IsConst() {
		if v.ConstValue().IsLong {
			return symbols.Quadword
		}
		return symbols.Longword
	}
	return s.widthOfName(v.Name())
}

func (s *Selector) operand(v ir.Value) Operand {
	if v.IsConst() {
		c := v.ConstValue()
		if c.IsLong {
			return Imm(c.LVal)
		}
		return Imm(int64(c.IVal))
	}
	return Pseudo(v.Name())
}

func (s *Selector) selectStaticVar(v *ir.StaticVariable) *StaticVariable {
	width := widthOfType(v.Type)
	s.asm.Set(v.Name, &symbols.AsmSymbol{Kind: symbols.AsmObj, Width: width, IsStatic: !v.Global})
	return &StaticVariable{Name: v.Name, Global: v.Global, Alignment: v.Type.Width(), Init: v.Init}
}

func (s *Selector) selectFunction(f *ir.Function) *Function {
	s.asm.Set(f.Name, &symbols.AsmSymbol{Kind: symbols.AsmFun, Defined: true})

	var out []Instruction
	regParams, stackParams := f.Params, []string(nil)
	if len(f.Params) > len(ArgRegs) {
		regParams, stackParams = f.Params[:len(ArgRegs)], f.Params[len(ArgRegs):]
	}
	for i, p := range regParams {
		out = append(out, &MovInst{Width: s.widthOfName(p), Src: RegOp(ArgRegs[i]), Dst: Pseudo(p)})
	}
	for i, p := range stackParams {
		out = append(out, &MovInst{Width: s.widthOfName(p), Src: Stack(int64(16 + 8*i)), Dst: Pseudo(p)})
	}

	out = append(out, lo.FlatMap(f.Body, func(inst ir.Instruction, _ int) []Instruction {
		return s.selectInstr(inst)
	})...)

	return &Function{Name: f.Name, Global: f.Global, Instructions: out}
}

func (s *Selector) selectInstr(inst ir.Instruction) []Instruction {
	switch inst := inst.(type) {
	case *ir.ReturnInst:
		w := s.widthOfValue(inst.Value)
		return []Instruction{
			&MovInst{Width: w, Src: s.operand(inst.Value), Dst: RegOp(AX)},
			&RetInst{},
		}
	case *ir.SignExtendInst:
		return []Instruction{&MovsxInst{Src: s.operand(inst.Src), Dst: s.operand(inst.Dst)}}
	case *ir.TruncateInst:
		return []Instruction{&MovInst{Width: symbols.Longword, Src: s.operand(inst.Src), Dst: s.operand(inst.Dst)}}
	case *ir.UnaryInst:
		w := s.widthOfValue(inst.Dst)
		dst := s.operand(inst.Dst)
		if inst.Op == ir.Not {
			return []Instruction{
				&CmpInst{Width: s.widthOfValue(inst.Src), Src: Imm(0), Dst: s.operand(inst.Src)},
				&MovInst{Width: w, Src: Imm(0), Dst: dst},
				&SetCCInst{Cond: E, Dst: dst},
			}
		}
		return []Instruction{
			&MovInst{Width: w, Src: s.operand(inst.Src), Dst: dst},
			&UnaryInst{Op: convertUnaryOp(inst.Op), Width: w, Dst: dst},
		}
	case *ir.BinaryInst:
		return s.selectBinary(inst)
	case *ir.CopyInst:
		return []Instruction{&MovInst{Width: s.widthOfValue(inst.Dst), Src: s.operand(inst.Src), Dst: s.operand(inst.Dst)}}
	case *ir.JumpInst:
		return []Instruction{&JmpInst{Target: inst.Target}}
	case *ir.JumpIfZeroInst:
		w := s.widthOfValue(inst.Cond)
		return []Instruction{
			&CmpInst{Width: w, Src: Imm(0), Dst: s.operand(inst.Cond)},
			&JmpCCInst{Cond: E, Target: inst.Target},
		}
	case *ir.JumpIfNotZeroInst:
		w := s.widthOfValue(inst.Cond)
		return []Instruction{
			&CmpInst{Width: w, Src: Imm(0), Dst: s.operand(inst.Cond)},
			&JmpCCInst{Cond: NE, Target: inst.Target},
		}
	case *ir.LabelInst:
		return []Instruction{&LabelInst{Name: inst.Name}}
	case *ir.CallInst:
		return s.selectCall(inst)
	default:
		panic(fmt.Sprintf("unknown ir instruction %T", inst))
	}
}

func convertUnaryOp(op ir.UnaryOp) UnaryOp {
	switch op {
	case ir.Complement:
		return Not
	case ir.Negate:
		return Neg
	default:
		panic(fmt.Sprintf("unary operator %s has no direct asm form", op))
	}
}

func (s *Selector) selectBinary(inst *ir.BinaryInst) []Instruction {
	w := s.widthOfValue(inst.Src1)
	dst := s.operand(inst.Dst)

	switch inst.Op {
	case ir.Div:
		return []Instruction{
			&MovInst{Width: w, Src: s.operand(inst.Src1), Dst: RegOp(AX)},
			&CdqInst{Width: w},
			&IdivInst{Width: w, Operand: s.operand(inst.Src2)},
			&MovInst{Width: s.widthOfValue(inst.Dst), Src: RegOp(AX), Dst: dst},
		}
	case ir.Mod:
		return []Instruction{
			&MovInst{Width: w, Src: s.operand(inst.Src1), Dst: RegOp(AX)},
			&CdqInst{Width: w},
			&IdivInst{Width: w, Operand: s.operand(inst.Src2)},
			&MovInst{Width: s.widthOfValue(inst.Dst), Src: RegOp(DX), Dst: dst},
		}
	case ir.Add, ir.Sub, ir.Mul:
		return []Instruction{
			&MovInst{Width: w, Src: s.operand(inst.Src1), Dst: dst},
			&BinaryInst{Op: convertBinaryOp(inst.Op), Width: w, Src: s.operand(inst.Src2), Dst: dst},
		}
	default:
		cc := convertCondCode(inst.Op)
		return []Instruction{
			&CmpInst{Width: w, Src: s.operand(inst.Src2), Dst: s.operand(inst.Src1)},
			&MovInst{Width: symbols.Longword, Src: Imm(0), Dst: dst},
			&SetCCInst{Cond: cc, Dst: dst},
		}
	}
}

func convertBinaryOp(op ir.BinaryOp) BinaryOp {
	switch op {
	case ir.Add:
		return Add
	case ir.Sub:
		return Sub
	case ir.Mul:
		return Mult
	default:
		panic(fmt.Sprintf("binary operator %s has no direct asm form", op))
	}
}

func convertCondCode(op ir.BinaryOp) CondCode {
	switch op {
	case ir.Eq:
		return E
	case ir.Ne:
		return NE
	case ir.Lt:
		return L
	case ir.Le:
		return LE
	case ir.Gt:
		return G
	case ir.Ge:
		return GE
	default:
		panic(fmt.Sprintf("binary operator %s is not a comparison", op))
	}
}

// selectCall lowers the IR's flat argument list into the System V
// integer-register/stack-argument convention: the first 6 arguments go in
// DI, SI, DX, CX, R8, R9 in order, the rest are pushed right to left, and
// an extra 8 bytes of padding keep the stack 16-byte aligned at the call
// if an odd number of arguments spill to it.
func (s *Selector) selectCall(inst *ir.CallInst) []Instruction {
	var out []Instruction
	regArgs, stackArgs := inst.Args, []ir.Value(nil)
	if len(inst.Args) > len(ArgRegs) {
		regArgs, stackArgs = inst.Args[:len(ArgRegs)], inst.Args[len(ArgRegs):]
	}

	stackPadding := int64(0)
	if len(stackArgs)%2 != 0 {
		stackPadding = 8
		out = append(out, &AllocateStackInst{Bytes: 8})
	}

	for i, a := range regArgs {
		out = append(out, &MovInst{Width: s.widthOfValue(a), Src: s.operand(a), Dst: RegOp(ArgRegs[i])})
	}

	for i := len(stackArgs) - 1; i >= 0; i-- {
		a := stackArgs[i]
		op := s.operand(a)
		if op.IsImm() || s.widthOfValue(a) == symbols.Quadword {
			out = append(out, &PushInst{Operand: op})
			continue
		}
		// A 4-byte argument still occupies a full 8-byte stack slot;
		// push always moves 8 bytes, so widen it through a register.
		out = append(out, &MovInst{Width: symbols.Longword, Src: op, Dst: RegOp(AX)})
		out = append(out, &PushInst{Operand: RegOp(AX)})
	}

	out = append(out, &CallInst{Target: inst.Callee})

	bytesToRemove := int64(8*len(stackArgs)) + stackPadding
	if bytesToRemove > 0 {
		out = append(out, &DeallocateStackInst{Bytes: bytesToRemove})
	}

	out = append(out, &MovInst{Width: s.widthOfValue(inst.Dst), Src: RegOp(AX), Dst: s.operand(inst.Dst)})
	return out
}
