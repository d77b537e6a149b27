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
	"math"

	"github.com/samber/lo"

	"minic/symbols"
	"minic/utils"
)

// Fixup is S9: it legalizes every instruction the x86 encoding can't
// express directly — two memory operands, an immediate divisor, an
// imul destination that isn't a register, a 64-bit immediate too wide
// for a single mov-to-memory, and so on — and prepends the function's
// stack-frame allocation now that PseudoReplacer has measured it.
type Fixup struct {
	asm *symbols.AsmTable
}

func NewFixup(asm *symbols.AsmTable) *Fixup {
	return &Fixup{asm: asm}
}

func (fx *Fixup) Run(prog *Program) {
	for _, t := range prog.TopLevels {
		if f, ok := t.(*Function); ok {
			fx.runFunction(f)
		}
	}
}

func (fx *Fixup) runFunction(f *Function) {
	sym, _ := fx.asm.Lookup(f.Name)
	frame := utils.AlignUp(int64(sym.BytesRequired), 16)

	out := []Instruction{&AllocateStackInst{Bytes: frame}}
	out = append(out, lo.FlatMap(f.Instructions, func(inst Instruction, _ int) []Instruction {
		return fx.fixInstr(inst)
	})...)
	f.Instructions = out
}

func isLargeImm(op Operand) bool {
	return op.IsImm() && (op.ImmValue() > math.MaxInt32 || op.ImmValue() < math.MinInt32)
}

func (fx *Fixup) fixInstr(inst Instruction) []Instruction {
	switch in := inst.(type) {
	case *MovInst:
		switch {
		case in.Src.IsMemory() && in.Dst.IsMemory():
			return []Instruction{
				&MovInst{Width: in.Width, Src: in.Src, Dst: RegOp(R10)},
				&MovInst{Width: in.Width, Src: RegOp(R10), Dst: in.Dst},
			}
		case in.Width == symbols.Longword && isLargeImm(in.Src):
			// A Longword destination never needs more than 32 bits, so a
			// wide immediate here just gets truncated the way movl does.
			return []Instruction{in}
		case in.Width == symbols.Quadword && isLargeImm(in.Src) && in.Dst.IsMemory():
			return []Instruction{
				&MovInst{Width: symbols.Quadword, Src: in.Src, Dst: RegOp(R10)},
				&MovInst{Width: symbols.Quadword, Src: RegOp(R10), Dst: in.Dst},
			}
		default:
			return []Instruction{in}
		}

	case *MovsxInst:
		// Movsx can't read an immediate or write straight to memory;
		// route the source through R10 and, if needed, the widened
		// result through R11 before the final store.
		src, dst := in.Src, in.Dst
		var out []Instruction
		if src.IsImm() {
			out = append(out, &MovInst{Width: symbols.Longword, Src: src, Dst: RegOp(R10)})
			src = RegOp(R10)
		}
		if dst.IsMemory() {
			out = append(out, &MovsxInst{Src: src, Dst: RegOp(R11)})
			out = append(out, &MovInst{Width: symbols.Quadword, Src: RegOp(R11), Dst: dst})
			return out
		}
		out = append(out, &MovsxInst{Src: src, Dst: dst})
		return out

	case *IdivInst:
		if in.Operand.IsImm() {
			return []Instruction{
				&MovInst{Width: in.Width, Src: in.Operand, Dst: RegOp(R10)},
				&IdivInst{Width: in.Width, Operand: RegOp(R10)},
			}
		}
		return []Instruction{in}

	case *BinaryInst:
		switch {
		case (in.Op == Add || in.Op == Sub) && in.Src.IsMemory() && in.Dst.IsMemory():
			return []Instruction{
				&MovInst{Width: in.Width, Src: in.Src, Dst: RegOp(R10)},
				&BinaryInst{Op: in.Op, Width: in.Width, Src: RegOp(R10), Dst: in.Dst},
			}
		case in.Op == Mult && in.Dst.IsMemory():
			return []Instruction{
				&MovInst{Width: in.Width, Src: in.Dst, Dst: RegOp(R11)},
				&BinaryInst{Op: Mult, Width: in.Width, Src: in.Src, Dst: RegOp(R11)},
				&MovInst{Width: in.Width, Src: RegOp(R11), Dst: in.Dst},
			}
		case in.Width == symbols.Quadword && isLargeImm(in.Src):
			return []Instruction{
				&MovInst{Width: symbols.Quadword, Src: in.Src, Dst: RegOp(R10)},
				&BinaryInst{Op: in.Op, Width: in.Width, Src: RegOp(R10), Dst: in.Dst},
			}
		default:
			return []Instruction{in}
		}

	case *CmpInst:
		switch {
		case in.Src.IsMemory() && in.Dst.IsMemory():
			return []Instruction{
				&MovInst{Width: in.Width, Src: in.Src, Dst: RegOp(R10)},
				&CmpInst{Width: in.Width, Src: RegOp(R10), Dst: in.Dst},
			}
		case in.Dst.IsImm():
			return []Instruction{
				&MovInst{Width: in.Width, Src: in.Dst, Dst: RegOp(R11)},
				&CmpInst{Width: in.Width, Src: in.Src, Dst: RegOp(R11)},
			}
		case in.Width == symbols.Quadword && isLargeImm(in.Src):
			return []Instruction{
				&MovInst{Width: symbols.Quadword, Src: in.Src, Dst: RegOp(R10)},
				&CmpInst{Width: in.Width, Src: RegOp(R10), Dst: in.Dst},
			}
		default:
			return []Instruction{in}
		}

	case *PushInst:
		if isLargeImm(in.Operand) {
			return []Instruction{
				&MovInst{Width: symbols.Quadword, Src: in.Operand, Dst: RegOp(R10)},
				&PushInst{Operand: RegOp(R10)},
			}
		}
		return []Instruction{in}

	default:
		return []Instruction{inst}
	}
}
