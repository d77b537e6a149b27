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
	"minic/symbols"
	"minic/utils"
)

// PseudoReplacer is S8: it walks a Function's virtual-register
// instructions once and turns every Pseudo operand into either a Data
// operand (the name belongs to a static-storage symbol) or a Stack
// operand at a freshly assigned, naturally-aligned offset from %rbp.
type PseudoReplacer struct {
	syms *symbols.Table
	asm  *symbols.AsmTable

	offset  int64
	offsets map[string]int64
}

func NewPseudoReplacer(syms *symbols.Table, asm *symbols.AsmTable) *PseudoReplacer {
	return &PseudoReplacer{syms: syms, asm: asm}
}

func (r *PseudoReplacer) Run(prog *Program) {
	for _, t := range prog.TopLevels {
		if f, ok := t.(*Function); ok {
			r.runFunction(f)
		}
	}
}

func (r *PseudoReplacer) runFunction(f *Function) {
	r.offset = 0
	r.offsets = map[string]int64{}
	for i, inst := range f.Instructions {
		f.Instructions[i] = r.fixInstr(inst)
	}
	sym, _ := r.asm.Lookup(f.Name)
	sym.BytesRequired = int(-r.offset)
}

func (r *PseudoReplacer) replace(op Operand) Operand {
	if !op.IsPseudo() {
		return op
	}
	name := op.Name()
	if asmSym, ok := r.asm.Lookup(name); ok && asmSym.Kind == symbols.AsmObj && asmSym.IsStatic {
		return Data(name)
	}
	if sym, ok := r.syms.Lookup(name); ok && sym.Kind == symbols.AttrStatic {
		return Data(name)
	}
	if off, ok := r.offsets[name]; ok {
		return Stack(off)
	}

	size := int64(4)
	if sym, ok := r.syms.Lookup(name); ok && sym.Type.Width() == 8 {
		size = 8
	}
	r.offset = utils.FloorAlign(r.offset-size, size)
	r.offsets[name] = r.offset
	return Stack(r.offset)
}

func (r *PseudoReplacer) fixInstr(inst Instruction) Instruction {
	switch in := inst.(type) {
	case *MovInst:
		in.Src, in.Dst = r.replace(in.Src), r.replace(in.Dst)
	case *MovsxInst:
		in.Src, in.Dst = r.replace(in.Src), r.replace(in.Dst)
	case *UnaryInst:
		in.Dst = r.replace(in.Dst)
	case *BinaryInst:
		in.Src, in.Dst = r.replace(in.Src), r.replace(in.Dst)
	case *CmpInst:
		in.Src, in.Dst = r.replace(in.Src), r.replace(in.Dst)
	case *IdivInst:
		in.Operand = r.replace(in.Operand)
	case *SetCCInst:
		in.Dst = r.replace(in.Dst)
	case *PushInst:
		in.Operand = r.replace(in.Operand)
	}
	return inst
}
