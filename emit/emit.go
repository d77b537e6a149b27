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

// Package emit turns legalized assembly into GNU/AT&T-syntax text: one
// pass, no further transformation, just formatting.
package emit

import (
	"fmt"
	"io"

	"minic/codegen"
	"minic/symbols"
)

// Emitter writes a codegen.Program as text in the dialect the GNU
// assembler and linker expect on x86-64 Linux.
type Emitter struct {
	asm *symbols.AsmTable
	w   io.Writer
}

func NewEmitter(asm *symbols.AsmTable, w io.Writer) *Emitter {
	return &Emitter{asm: asm, w: w}
}

func (e *Emitter) Emit(prog *codegen.Program) error {
	for _, t := range prog.TopLevels {
		if err := e.emitTopLevel(t); err != nil {
			return err
		}
	}
	fmt.Fprintln(e.w)
	_, err := fmt.Fprintln(e.w, "\t.section .note.GNU-stack,\"\",@progbits")
	return err
}

func (e *Emitter) printf(format string, args ...interface{}) error {
	_, err := fmt.Fprintf(e.w, format, args...)
	return err
}

func (e *Emitter) emitTopLevel(t codegen.TopLevel) error {
	switch t := t.(type) {
	case *codegen.Function:
		return e.emitFunction(t)
	case *codegen.StaticVariable:
		return e.emitStaticVariable(t)
	default:
		return fmt.Errorf("unknown top-level %T", t)
	}
}

func (e *Emitter) emitGlobalDirective(global bool, label string) error {
	if !global {
		return nil
	}
	return e.printf("\t.globl %s\n", label)
}

func (e *Emitter) emitFunction(f *codegen.Function) error {
	if err := e.emitGlobalDirective(f.Global, f.Name); err != nil {
		return err
	}
	if err := e.printf("\n\t.text\n%s:\n\tpushq %%rbp\n\tmovq %%rsp, %%rbp\n", f.Name); err != nil {
		return err
	}
	for _, inst := range f.Instructions {
		if err := e.emitInstruction(inst); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) emitStaticVariable(v *codegen.StaticVariable) error {
	if err := e.emitGlobalDirective(v.Global, v.Name); err != nil {
		return err
	}
	if v.Init.Kind == symbols.Tentative || (v.Init.Kind == symbols.Initial && v.Init.Value.IsZero()) {
		return e.printf("\n\t.bss\n\t.align %d\n%s:\n\t.zero %d\n", v.Alignment, v.Name, v.Alignment)
	}
	return e.printf("\n\t.data\n\t.align %d\n%s:\n\t.quad %s\n", v.Alignment, v.Name, v.Init.Value)
}

func suffix(w symbols.AsmWidth) string {
	if w == symbols.Quadword {
		return "q"
	}
	return "l"
}

func (e *Emitter) operand(w symbols.AsmWidth, op codegen.Operand) string {
	switch {
	case op.IsReg():
		return op.RegValue().Name(w)
	case op.IsImm():
		return fmt.Sprintf("$%d", op.ImmValue())
	case op.IsStack():
		return fmt.Sprintf("%d(%%rbp)", op.Offset())
	case op.IsData():
		return fmt.Sprintf("%s(%%rip)", op.Name())
	default:
		return "%" + op.Name()
	}
}

// byteOperand prints a register at its 1-byte encoding for SetCC, the one
// instruction that always writes a single byte regardless of the
// destination's declared width.
func byteOperand(op codegen.Operand) string {
	if !op.IsReg() {
		return fmt.Sprintf("%d(%%rbp)", op.Offset())
	}
	switch op.RegValue() {
	case codegen.AX:
		return "%al"
	case codegen.CX:
		return "%cl"
	case codegen.DX:
		return "%dl"
	case codegen.DI:
		return "%dil"
	case codegen.SI:
		return "%sil"
	case codegen.R8:
		return "%r8b"
	case codegen.R9:
		return "%r9b"
	case codegen.R10:
		return "%r10b"
	case codegen.R11:
		return "%r11b"
	default:
		return "?"
	}
}

func condSuffix(c codegen.CondCode) string {
	switch c {
	case codegen.E:
		return "e"
	case codegen.NE:
		return "ne"
	case codegen.G:
		return "g"
	case codegen.GE:
		return "ge"
	case codegen.L:
		return "l"
	case codegen.LE:
		return "le"
	default:
		return "?"
	}
}

func unaryMnemonic(op codegen.UnaryOp) string {
	if op == codegen.Not {
		return "not"
	}
	return "neg"
}

func binaryMnemonic(op codegen.BinaryOp) string {
	switch op {
	case codegen.Add:
		return "add"
	case codegen.Sub:
		return "sub"
	case codegen.Mult:
		return "imul"
	default:
		return "?"
	}
}

// funcLabel appends the @PLT marker GNU as needs to route a call through
// the procedure linkage table when the callee isn't defined in this
// translation unit (a library function, e.g.).
func (e *Emitter) funcLabel(name string) string {
	sym, ok := e.asm.Lookup(name)
	if ok && sym.Kind == symbols.AsmFun && sym.Defined {
		return name
	}
	return name + "@PLT"
}

func (e *Emitter) emitInstruction(inst codegen.Instruction) error {
	switch in := inst.(type) {
	case *codegen.MovInst:
		return e.printf("\tmov%s %s, %s\n", suffix(in.Width), e.operand(in.Width, in.Src), e.operand(in.Width, in.Dst))
	case *codegen.MovsxInst:
		return e.printf("\tmovslq %s, %s\n", e.operand(symbols.Longword, in.Src), e.operand(symbols.Quadword, in.Dst))
	case *codegen.UnaryInst:
		return e.printf("\t%s%s %s\n", unaryMnemonic(in.Op), suffix(in.Width), e.operand(in.Width, in.Dst))
	case *codegen.BinaryInst:
		return e.printf("\t%s%s %s, %s\n", binaryMnemonic(in.Op), suffix(in.Width), e.operand(in.Width, in.Src), e.operand(in.Width, in.Dst))
	case *codegen.CmpInst:
		return e.printf("\tcmp%s %s, %s\n", suffix(in.Width), e.operand(in.Width, in.Src), e.operand(in.Width, in.Dst))
	case *codegen.IdivInst:
		return e.printf("\tidiv%s %s\n", suffix(in.Width), e.operand(in.Width, in.Operand))
	case *codegen.CdqInst:
		if in.Width == symbols.Quadword {
			return e.printf("\tcqto\n")
		}
		return e.printf("\tcdq\n")
	case *codegen.JmpInst:
		return e.printf("\tjmp .L%s\n", in.Target)
	case *codegen.JmpCCInst:
		return e.printf("\tj%s .L%s\n", condSuffix(in.Cond), in.Target)
	case *codegen.SetCCInst:
		return e.printf("\tset%s %s\n", condSuffix(in.Cond), byteOperand(in.Dst))
	case *codegen.LabelInst:
		return e.printf(".L%s:\n", in.Name)
	case *codegen.AllocateStackInst:
		if in.Bytes == 0 {
			return nil
		}
		return e.printf("\tsubq $%d, %%rsp\n", in.Bytes)
	case *codegen.DeallocateStackInst:
		if in.Bytes == 0 {
			return nil
		}
		return e.printf("\taddq $%d, %%rsp\n", in.Bytes)
	case *codegen.PushInst:
		return e.printf("\tpushq %s\n", e.operand(symbols.Quadword, in.Operand))
	case *codegen.CallInst:
		return e.printf("\tcall %s\n", e.funcLabel(in.Target))
	case *codegen.RetInst:
		return e.printf("\tmovq %%rbp, %%rsp\n\tpopq %%rbp\n\tret\n")
	default:
		return fmt.Errorf("unknown instruction %T", inst)
	}
}
