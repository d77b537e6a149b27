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
package ir

import (
	"fmt"

	"github.com/samber/lo"

	"minic/ast"
	"minic/symbols"
)

// Generator lowers a type-checked program into flat three-address IR,
// registering every temporary it mints into the shared symbol table so
// later stages can recover its width.
type Generator struct {
	ids  *symbols.IdCounter
	syms *symbols.Table
}

func NewGenerator(ids *symbols.IdCounter, syms *symbols.Table) *Generator {
	return &Generator{ids: ids, syms: syms}
}

func (g *Generator) makeTemp(t *ast.Type) Value {
	name := g.ids.MakeTemporary()
	g.syms.Set(name, &symbols.Symbol{Type: t, Kind: symbols.AttrLocal})
	return Var(name)
}

// Gen lowers prog's function definitions and, once every function has been
// walked, emits one StaticVariable per static-storage symbol table entry
// in declaration order, skipping entries with no initializer (pure extern
// references) — the pass the reference compiler calls "convert
// symbols to static variables", run after typechecking has finished
// merging every file-scope and local-static declaration.
func (g *Generator) Gen(prog *ast.Program) (*Program, error) {
	var tops []TopLevel
	for _, d := range prog.Decls {
		f, ok := d.(*ast.FuncDecl)
		if !ok || f.Body == nil {
			continue
		}
		fn, err := g.genFunction(f)
		if err != nil {
			return nil, err
		}
		tops = append(tops, fn)
	}

	statics := lo.FilterMap(g.syms.Names(), func(name string, _ int) (TopLevel, bool) {
		sym, ok := g.syms.Lookup(name)
		if !ok || sym.Kind != symbols.AttrStatic || sym.Init.Kind == symbols.NoInitializer {
			return nil, false
		}
		if sym.Init.Kind == symbols.Tentative {
			return &StaticVariable{
				Name: name, Type: sym.Type, Global: sym.Global,
				Init: symbols.StaticInit{Kind: symbols.Initial, Value: zero(sym.Type)},
			}, true
		}
		return &StaticVariable{Name: name, Type: sym.Type, Global: sym.Global, Init: sym.Init}, true
	})
	tops = append(tops, statics...)

	return &Program{TopLevels: tops}, nil
}

func zero(t *ast.Type) symbols.ConstValue {
	if t.IsLong() {
		return symbols.LongInit(0)
	}
	return symbols.IntInit(0)
}

func (g *Generator) genFunction(f *ast.FuncDecl) (*Function, error) {
	sym, _ := g.syms.Lookup(f.Name)
	body, err := g.genBlock(f.Body.Items)
	if err != nil {
		return nil, err
	}
	// A function that falls off its end without an explicit return is
	// undefined behaviour in source C but must still produce something
	// the assembler accepts; every body gets an implicit `return 0` tail.
	body = append(body, &ReturnInst{Value: Const(zero(f.Type.RetType))})
	return &Function{Name: f.Name, Global: sym.Global, Params: f.Params, Body: body}, nil
}

func (g *Generator) genBlock(items []ast.BlockItem) ([]Instruction, error) {
	var out []Instruction
	for _, item := range items {
		switch it := item.(type) {
		case ast.StmtItem:
			insts, err := g.genStmt(it.Stmt)
			if err != nil {
				return nil, err
			}
			out = append(out, insts...)
		case ast.DeclItem:
			insts, err := g.genLocalDecl(it.Decl)
			if err != nil {
				return nil, err
			}
			out = append(out, insts...)
		default:
			return nil, fmt.Errorf("unknown block item %T", item)
		}
	}
	return out, nil
}

func (g *Generator) genLocalDecl(d ast.Decl) ([]Instruction, error) {
	v, ok := d.(*ast.VarDecl)
	if !ok || v.Storage != ast.NoStorage || v.Init == nil {
		// Static/extern locals contribute no code here: their storage is
		// emitted once, from the symbol table, after every function body
		// has been walked. Function declarations nested in a block carry
		// no body (nested definitions were rejected by the resolver).
		return nil, nil
	}
	insts, val := g.genExpr(v.Init)
	insts = append(insts, &CopyInst{Src: val, Dst: Var(v.Name)})
	return insts, nil
}

// -----------------------------------------------------------------------------
// Statements

func (g *Generator) genStmt(stmt ast.Stmt) ([]Instruction, error) {
	switch st := stmt.(type) {
	case *ast.ReturnStmt:
		insts, v := g.genExpr(st.Value)
		return append(insts, &ReturnInst{Value: v}), nil
	case *ast.ExprStmt:
		insts, _ := g.genExpr(st.Value)
		return insts, nil
	case *ast.NullStmt:
		return nil, nil
	case *ast.BreakStmt:
		return []Instruction{&JumpInst{Target: "break." + st.Label}}, nil
	case *ast.ContinueStmt:
		return []Instruction{&JumpInst{Target: "continue." + st.Label}}, nil
	case *ast.IfStmt:
		return g.genIf(st)
	case *ast.WhileStmt:
		return g.genWhile(st)
	case *ast.DoWhileStmt:
		return g.genDoWhile(st)
	case *ast.ForStmt:
		return g.genFor(st)
	case *ast.CompoundStmt:
		return g.genBlock(st.Items)
	default:
		return nil, fmt.Errorf("unknown statement %T", stmt)
	}
}

func (g *Generator) genIf(st *ast.IfStmt) ([]Instruction, error) {
	condInsts, condV := g.genExpr(st.Cond)
	thenInsts, err := g.genStmt(st.Then)
	if err != nil {
		return nil, err
	}
	if st.Else == nil {
		end := g.ids.MakeLabel("if_end")
		out := append(condInsts, &JumpIfZeroInst{Cond: condV, Target: end})
		out = append(out, thenInsts...)
		return append(out, &LabelInst{Name: end}), nil
	}
	elseInsts, err := g.genStmt(st.Else)
	if err != nil {
		return nil, err
	}
	elseLabel := g.ids.MakeLabel("else")
	end := g.ids.MakeLabel("if_end")
	out := append(condInsts, &JumpIfZeroInst{Cond: condV, Target: elseLabel})
	out = append(out, thenInsts...)
	out = append(out, &JumpInst{Target: end}, &LabelInst{Name: elseLabel})
	out = append(out, elseInsts...)
	return append(out, &LabelInst{Name: end}), nil
}

func (g *Generator) genWhile(st *ast.WhileStmt) ([]Instruction, error) {
	continueLabel := "continue." + st.Label
	breakLabel := "break." + st.Label
	condInsts, condV := g.genExpr(st.Cond)
	body, err := g.genStmt(st.Body)
	if err != nil {
		return nil, err
	}
	out := []Instruction{&LabelInst{Name: continueLabel}}
	out = append(out, condInsts...)
	out = append(out, &JumpIfZeroInst{Cond: condV, Target: breakLabel})
	out = append(out, body...)
	out = append(out, &JumpInst{Target: continueLabel}, &LabelInst{Name: breakLabel})
	return out, nil
}

func (g *Generator) genDoWhile(st *ast.DoWhileStmt) ([]Instruction, error) {
	startLabel := "start." + st.Label
	continueLabel := "continue." + st.Label
	breakLabel := "break." + st.Label
	body, err := g.genStmt(st.Body)
	if err != nil {
		return nil, err
	}
	condInsts, condV := g.genExpr(st.Cond)
	out := []Instruction{&LabelInst{Name: startLabel}}
	out = append(out, body...)
	out = append(out, &LabelInst{Name: continueLabel})
	out = append(out, condInsts...)
	out = append(out, &JumpIfNotZeroInst{Cond: condV, Target: startLabel}, &LabelInst{Name: breakLabel})
	return out, nil
}

func (g *Generator) genFor(st *ast.ForStmt) ([]Instruction, error) {
	startLabel := "start." + st.Label
	continueLabel := "continue." + st.Label
	breakLabel := "break." + st.Label

	var out []Instruction
	switch init := st.Init.(type) {
	case ast.InitDecl:
		insts, err := g.genLocalDecl(init.Decl)
		if err != nil {
			return nil, err
		}
		out = append(out, insts...)
	case ast.InitExpr:
		if init.Expr != nil {
			insts, _ := g.genExpr(init.Expr)
			out = append(out, insts...)
		}
	}

	out = append(out, &LabelInst{Name: startLabel})
	if st.Cond != nil {
		condInsts, condV := g.genExpr(st.Cond)
		out = append(out, condInsts...)
		out = append(out, &JumpIfZeroInst{Cond: condV, Target: breakLabel})
	}
	body, err := g.genStmt(st.Body)
	if err != nil {
		return nil, err
	}
	out = append(out, body...)
	out = append(out, &LabelInst{Name: continueLabel})
	if st.Post != nil {
		postInsts, _ := g.genExpr(st.Post)
		out = append(out, postInsts...)
	}
	out = append(out, &JumpInst{Target: startLabel}, &LabelInst{Name: breakLabel})
	return out, nil
}

// -----------------------------------------------------------------------------
// Expressions

func (g *Generator) genExpr(e ast.Expr) ([]Instruction, Value) {
	switch e := e.(type) {
	case *ast.ConstantExpr:
		if e.IsLong {
			return nil, Const(symbols.LongInit(e.LVal))
		}
		return nil, Const(symbols.IntInit(e.IVal))
	case *ast.VarExpr:
		return nil, Var(e.Name)
	case *ast.CastExpr:
		return g.genCast(e)
	case *ast.UnaryExpr:
		insts, v := g.genExpr(e.Operand)
		dst := g.makeTemp(e.GetType())
		return append(insts, &UnaryInst{Op: convertUnary(e.Op), Src: v, Dst: dst}), dst
	case *ast.BinaryExpr:
		return g.genBinary(e)
	case *ast.AssignExpr:
		target := e.Target.(*ast.VarExpr)
		insts, v := g.genExpr(e.Value)
		insts = append(insts, &CopyInst{Src: v, Dst: Var(target.Name)})
		return insts, Var(target.Name)
	case *ast.ConditionalExpr:
		return g.genConditional(e)
	case *ast.CallExpr:
		return g.genCall(e)
	default:
		panic(fmt.Sprintf("unknown expression %T", e))
	}
}

func (g *Generator) genCast(e *ast.CastExpr) ([]Instruction, Value) {
	insts, v := g.genExpr(e.Inner)
	if e.Target.Equal(e.Inner.GetType()) {
		return insts, v
	}
	dst := g.makeTemp(e.Target)
	if e.Target.IsLong() {
		return append(insts, &SignExtendInst{Src: v, Dst: dst}), dst
	}
	return append(insts, &TruncateInst{Src: v, Dst: dst}), dst
}

func convertUnary(op ast.TokenKind) UnaryOp {
	switch op {
	case ast.TK_TILDE:
		return Complement
	case ast.TK_MINUS:
		return Negate
	case ast.TK_BANG:
		return Not
	default:
		panic(fmt.Sprintf("not a unary operator: %s", op))
	}
}

func convertBinary(op ast.TokenKind) BinaryOp {
	switch op {
	case ast.TK_PLUS:
		return Add
	case ast.TK_MINUS:
		return Sub
	case ast.TK_STAR:
		return Mul
	case ast.TK_SLASH:
		return Div
	case ast.TK_PERCENT:
		return Mod
	case ast.TK_EQ:
		return Eq
	case ast.TK_NE:
		return Ne
	case ast.TK_LT:
		return Lt
	case ast.TK_LE:
		return Le
	case ast.TK_GT:
		return Gt
	case ast.TK_GE:
		return Ge
	default:
		panic(fmt.Sprintf("not a binary operator: %s", op))
	}
}

func (g *Generator) genBinary(e *ast.BinaryExpr) ([]Instruction, Value) {
	switch e.Op {
	case ast.TK_LOGAND:
		return g.genAnd(e)
	case ast.TK_LOGOR:
		return g.genOr(e)
	}
	insts1, v1 := g.genExpr(e.Left)
	insts2, v2 := g.genExpr(e.Right)
	dst := g.makeTemp(e.GetType())
	out := append(insts1, insts2...)
	out = append(out, &BinaryInst{Op: convertBinary(e.Op), Src1: v1, Src2: v2, Dst: dst})
	return out, dst
}

func (g *Generator) genAnd(e *ast.BinaryExpr) ([]Instruction, Value) {
	insts1, v1 := g.genExpr(e.Left)
	insts2, v2 := g.genExpr(e.Right)
	falseLabel := g.ids.MakeLabel("and_false")
	end := g.ids.MakeLabel("and_end")
	dst := g.makeTemp(ast.TInt)

	out := append(insts1, &JumpIfZeroInst{Cond: v1, Target: falseLabel})
	out = append(out, insts2...)
	out = append(out, &JumpIfZeroInst{Cond: v2, Target: falseLabel})
	out = append(out, &CopyInst{Src: Const(symbols.IntInit(1)), Dst: dst})
	out = append(out, &JumpInst{Target: end}, &LabelInst{Name: falseLabel})
	out = append(out, &CopyInst{Src: Const(symbols.IntInit(0)), Dst: dst})
	out = append(out, &LabelInst{Name: end})
	return out, dst
}

func (g *Generator) genOr(e *ast.BinaryExpr) ([]Instruction, Value) {
	insts1, v1 := g.genExpr(e.Left)
	insts2, v2 := g.genExpr(e.Right)
	trueLabel := g.ids.MakeLabel("or_true")
	end := g.ids.MakeLabel("or_end")
	dst := g.makeTemp(ast.TInt)

	out := append(insts1, &JumpIfNotZeroInst{Cond: v1, Target: trueLabel})
	out = append(out, insts2...)
	out = append(out, &JumpIfNotZeroInst{Cond: v2, Target: trueLabel})
	out = append(out, &CopyInst{Src: Const(symbols.IntInit(0)), Dst: dst})
	out = append(out, &JumpInst{Target: end}, &LabelInst{Name: trueLabel})
	out = append(out, &CopyInst{Src: Const(symbols.IntInit(1)), Dst: dst})
	out = append(out, &LabelInst{Name: end})
	return out, dst
}

func (g *Generator) genConditional(e *ast.ConditionalExpr) ([]Instruction, Value) {
	condInsts, condV := g.genExpr(e.Cond)
	thenInsts, thenV := g.genExpr(e.Then)
	elseInsts, elseV := g.genExpr(e.Else)
	elseLabel := g.ids.MakeLabel("conditional_else")
	end := g.ids.MakeLabel("conditional_end")
	dst := g.makeTemp(e.GetType())

	out := append(condInsts, &JumpIfZeroInst{Cond: condV, Target: elseLabel})
	out = append(out, thenInsts...)
	out = append(out, &CopyInst{Src: thenV, Dst: dst}, &JumpInst{Target: end}, &LabelInst{Name: elseLabel})
	out = append(out, elseInsts...)
	out = append(out, &CopyInst{Src: elseV, Dst: dst}, &LabelInst{Name: end})
	return out, dst
}

func (g *Generator) genCall(e *ast.CallExpr) ([]Instruction, Value) {
	var out []Instruction
	args := make([]Value, len(e.Args))
	for i, a := range e.Args {
		insts, v := g.genExpr(a)
		out = append(out, insts...)
		args[i] = v
	}
	dst := g.makeTemp(e.GetType())
	out = append(out, &CallInst{Callee: e.Callee, Args: args, Dst: dst})
	return out, dst
}
