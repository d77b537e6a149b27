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

// Package typecheck annotates every expression with its Type, inserts the
// implicit casts int/long conversion requires, and populates the symbol
// table with each identifier's type and linkage/storage attributes.
package typecheck

import (
	"fmt"

	"minic/ast"
	"minic/symbols"
)

// TypeError reports a type or linkage conflict: redeclaration with a
// different type, a non-constant static initializer, a call with the
// wrong argument count, or a name used as both a function and a variable.
type TypeError struct{ Msg string }

func (e *TypeError) Error() string { return e.Msg }

func errf(format string, args ...interface{}) error {
	return &TypeError{Msg: fmt.Sprintf(format, args...)}
}

// Checker walks a resolved program, filling in symbols and expression
// types in place.
type Checker struct {
	syms *symbols.Table
}

func NewChecker(syms *symbols.Table) *Checker {
	return &Checker{syms: syms}
}

func (c *Checker) Check(prog *ast.Program) error {
	for _, d := range prog.Decls {
		var err error
		switch d := d.(type) {
		case *ast.FuncDecl:
			err = c.checkFuncDecl(d)
		case *ast.VarDecl:
			err = c.checkFileVarDecl(d)
		default:
			err = errf("unknown top-level declaration %T", d)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// convertTo wraps e in a CastExpr to target unless it's already that type.
func convertTo(e ast.Expr, target *ast.Type) ast.Expr {
	if e.GetType().Equal(target) {
		return e
	}
	cast := &ast.CastExpr{Target: target, Inner: e}
	cast.SetType(target)
	return cast
}

// constConvert narrows/widens a constant to fit target's width, the same
// truncate-or-sign-extend rule the code generator's Cast instruction
// performs at runtime, applied here so a static initializer's value is
// baked in at its declared width.
func constConvert(target *ast.Type, c *ast.ConstantExpr) symbols.ConstValue {
	if target.IsLong() {
		if c.IsLong {
			return symbols.LongInit(c.LVal)
		}
		return symbols.LongInit(int64(c.IVal))
	}
	if c.IsLong {
		return symbols.IntInit(int32(c.LVal))
	}
	return symbols.IntInit(c.IVal)
}

func toStaticInit(target *ast.Type, init ast.Expr) (symbols.StaticInit, error) {
	ce, ok := init.(*ast.ConstantExpr)
	if !ok {
		return symbols.StaticInit{}, errf("static initializer must be a constant")
	}
	return symbols.StaticInit{Kind: symbols.Initial, Value: constConvert(target, ce)}, nil
}

// -----------------------------------------------------------------------------
// Declarations

func (c *Checker) checkFileVarDecl(v *ast.VarDecl) error {
	var curInit symbols.StaticInit
	switch {
	case v.Init != nil:
		si, err := toStaticInit(v.Type, v.Init)
		if err != nil {
			return err
		}
		curInit = si
	case v.Storage == ast.Extern:
		curInit = symbols.StaticInit{Kind: symbols.NoInitializer}
	default:
		curInit = symbols.StaticInit{Kind: symbols.Tentative}
	}
	curGlobal := v.Storage != ast.Static

	global, init := curGlobal, curInit
	if prev, ok := c.syms.Lookup(v.Name); ok {
		if prev.Kind == symbols.AttrFun || !prev.Type.Equal(v.Type) {
			return errf("%s redeclared with a different type", v.Name)
		}
		if v.Storage == ast.Extern {
			global = prev.Global
		} else if curGlobal != prev.Global {
			return errf("conflicting linkage for %s", v.Name)
		}
		merged, err := mergeStaticInit(prev.Init, curInit)
		if err != nil {
			return errf("%s: %v", v.Name, err)
		}
		init = merged
	}

	c.syms.Set(v.Name, &symbols.Symbol{Type: v.Type, Kind: symbols.AttrStatic, Init: init, Global: global})
	return nil
}

// mergeStaticInit reconciles two declarations of the same file-scope name,
// following the reference compiler's lattice: an explicit initializer wins
// over a tentative or absent one, and two explicit initializers conflict.
func mergeStaticInit(prev, cur symbols.StaticInit) (symbols.StaticInit, error) {
	switch {
	case prev.Kind == symbols.Initial && cur.Kind == symbols.Initial:
		return symbols.StaticInit{}, fmt.Errorf("conflicting file-scope initializers")
	case prev.Kind == symbols.Initial:
		return prev, nil
	case prev.Kind == symbols.Tentative && (cur.Kind == symbols.Tentative || cur.Kind == symbols.NoInitializer):
		return symbols.StaticInit{Kind: symbols.Tentative}, nil
	case cur.Kind == symbols.Initial, prev.Kind == symbols.NoInitializer:
		return cur, nil
	default:
		return cur, nil
	}
}

func (c *Checker) checkFuncDecl(f *ast.FuncDecl) error {
	hasBody := f.Body != nil
	global := f.Storage != ast.Static

	defined := hasBody
	if prev, ok := c.syms.Lookup(f.Name); ok {
		if !prev.Type.Equal(f.Type) {
			return errf("%s redeclared with a different type", f.Name)
		}
		if prev.Kind != symbols.AttrFun {
			return errf("%s redeclared as different kind of symbol", f.Name)
		}
		if prev.Defined && hasBody {
			return errf("redefinition of %s", f.Name)
		}
		if prev.Global && f.Storage == ast.Static {
			return errf("static declaration of %s follows non-static declaration", f.Name)
		}
		defined = hasBody || prev.Defined
		global = prev.Global
	}

	c.syms.Set(f.Name, &symbols.Symbol{Type: f.Type, Kind: symbols.AttrFun, Global: global, Defined: defined})

	if !hasBody {
		return nil
	}
	for i, p := range f.Params {
		c.syms.Set(p, &symbols.Symbol{Type: f.Type.ParamTypes[i], Kind: symbols.AttrLocal})
	}
	return c.checkBlock(f.Type.RetType, f.Body.Items)
}

func (c *Checker) checkLocalVarDecl(v *ast.VarDecl) error {
	switch v.Storage {
	case ast.Extern:
		if v.Init != nil {
			return errf("initializer on local extern declaration of %s", v.Name)
		}
		if prev, ok := c.syms.Lookup(v.Name); ok {
			if !prev.Type.Equal(v.Type) {
				return errf("%s redeclared with a different type", v.Name)
			}
			return nil
		}
		c.syms.Set(v.Name, &symbols.Symbol{Type: v.Type, Kind: symbols.AttrStatic, Init: symbols.StaticInit{Kind: symbols.NoInitializer}, Global: true})
		return nil
	case ast.Static:
		init := symbols.StaticInit{Kind: symbols.Initial, Value: zeroValue(v.Type)}
		if v.Init != nil {
			si, err := toStaticInit(v.Type, v.Init)
			if err != nil {
				return errf("local static %s: %v", v.Name, err)
			}
			init = si
		}
		c.syms.Set(v.Name, &symbols.Symbol{Type: v.Type, Kind: symbols.AttrStatic, Init: init, Global: false})
		return nil
	default:
		c.syms.Set(v.Name, &symbols.Symbol{Type: v.Type, Kind: symbols.AttrLocal})
		if v.Init == nil {
			return nil
		}
		typed, err := c.checkExpr(v.Init)
		if err != nil {
			return err
		}
		v.Init = convertTo(typed, v.Type)
		return nil
	}
}

func zeroValue(t *ast.Type) symbols.ConstValue {
	if t.IsLong() {
		return symbols.LongInit(0)
	}
	return symbols.IntInit(0)
}

// -----------------------------------------------------------------------------
// Statements

func (c *Checker) checkBlock(retType *ast.Type, items []ast.BlockItem) error {
	for _, item := range items {
		switch it := item.(type) {
		case ast.StmtItem:
			if err := c.checkStmt(retType, it.Stmt); err != nil {
				return err
			}
		case ast.DeclItem:
			switch d := it.Decl.(type) {
			case *ast.VarDecl:
				if err := c.checkLocalVarDecl(d); err != nil {
					return err
				}
			case *ast.FuncDecl:
				if err := c.checkFuncDecl(d); err != nil {
					return err
				}
			}
		default:
			return errf("unknown block item %T", item)
		}
	}
	return nil
}

func (c *Checker) checkStmt(retType *ast.Type, stmt ast.Stmt) error {
	switch st := stmt.(type) {
	case *ast.ReturnStmt:
		typed, err := c.checkExpr(st.Value)
		if err != nil {
			return err
		}
		st.Value = convertTo(typed, retType)
		return nil
	case *ast.ExprStmt:
		typed, err := c.checkExpr(st.Value)
		if err != nil {
			return err
		}
		st.Value = typed
		return nil
	case *ast.NullStmt, *ast.BreakStmt, *ast.ContinueStmt:
		return nil
	case *ast.IfStmt:
		cond, err := c.checkExpr(st.Cond)
		if err != nil {
			return err
		}
		st.Cond = cond
		if err := c.checkStmt(retType, st.Then); err != nil {
			return err
		}
		if st.Else != nil {
			return c.checkStmt(retType, st.Else)
		}
		return nil
	case *ast.WhileStmt:
		cond, err := c.checkExpr(st.Cond)
		if err != nil {
			return err
		}
		st.Cond = cond
		return c.checkStmt(retType, st.Body)
	case *ast.DoWhileStmt:
		if err := c.checkStmt(retType, st.Body); err != nil {
			return err
		}
		cond, err := c.checkExpr(st.Cond)
		if err != nil {
			return err
		}
		st.Cond = cond
		return nil
	case *ast.ForStmt:
		switch init := st.Init.(type) {
		case ast.InitDecl:
			if init.Decl.Storage != ast.NoStorage {
				return errf("storage class not permitted on a for-loop declaration")
			}
			if err := c.checkLocalVarDecl(init.Decl); err != nil {
				return err
			}
		case ast.InitExpr:
			if init.Expr != nil {
				typed, err := c.checkExpr(init.Expr)
				if err != nil {
					return err
				}
				st.Init = ast.InitExpr{Expr: typed}
			}
		}
		if st.Cond != nil {
			cond, err := c.checkExpr(st.Cond)
			if err != nil {
				return err
			}
			st.Cond = cond
		}
		if st.Post != nil {
			post, err := c.checkExpr(st.Post)
			if err != nil {
				return err
			}
			st.Post = post
		}
		return c.checkStmt(retType, st.Body)
	case *ast.CompoundStmt:
		return c.checkBlock(retType, st.Items)
	default:
		return errf("unknown statement %T", stmt)
	}
}

// -----------------------------------------------------------------------------
// Expressions

func (c *Checker) checkExpr(e ast.Expr) (ast.Expr, error) {
	switch e := e.(type) {
	case *ast.ConstantExpr:
		if e.IsLong {
			e.SetType(ast.TLong)
		} else {
			e.SetType(ast.TInt)
		}
		return e, nil
	case *ast.VarExpr:
		sym, ok := c.syms.Lookup(e.Name)
		if !ok {
			return nil, errf("use of undeclared identifier %q", e.Name)
		}
		if sym.Kind == symbols.AttrFun {
			return nil, errf("tried to use function %q as a variable", e.Name)
		}
		e.SetType(sym.Type)
		return e, nil
	case *ast.CastExpr:
		inner, err := c.checkExpr(e.Inner)
		if err != nil {
			return nil, err
		}
		e.Inner = inner
		e.SetType(e.Target)
		return e, nil
	case *ast.UnaryExpr:
		operand, err := c.checkExpr(e.Operand)
		if err != nil {
			return nil, err
		}
		e.Operand = operand
		if e.Op == ast.TK_BANG {
			e.SetType(ast.TInt)
		} else {
			e.SetType(operand.GetType())
		}
		return e, nil
	case *ast.BinaryExpr:
		return c.checkBinary(e)
	case *ast.AssignExpr:
		target, err := c.checkExpr(e.Target)
		if err != nil {
			return nil, err
		}
		value, err := c.checkExpr(e.Value)
		if err != nil {
			return nil, err
		}
		e.Target = target
		e.Value = convertTo(value, target.GetType())
		e.SetType(target.GetType())
		return e, nil
	case *ast.ConditionalExpr:
		cond, err := c.checkExpr(e.Cond)
		if err != nil {
			return nil, err
		}
		then, err := c.checkExpr(e.Then)
		if err != nil {
			return nil, err
		}
		els, err := c.checkExpr(e.Else)
		if err != nil {
			return nil, err
		}
		common := ast.CommonType(then.GetType(), els.GetType())
		e.Cond = cond
		e.Then = convertTo(then, common)
		e.Else = convertTo(els, common)
		e.SetType(common)
		return e, nil
	case *ast.CallExpr:
		return c.checkCall(e)
	default:
		return nil, errf("unknown expression %T", e)
	}
}

func (c *Checker) checkBinary(e *ast.BinaryExpr) (ast.Expr, error) {
	left, err := c.checkExpr(e.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.checkExpr(e.Right)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case ast.TK_LOGAND, ast.TK_LOGOR:
		// Short-circuit operators typecheck each operand on its own type
		// and never convert them; the result is always Int.
		e.Left, e.Right = left, right
		e.SetType(ast.TInt)
		return e, nil
	}

	common := ast.CommonType(left.GetType(), right.GetType())
	e.Left = convertTo(left, common)
	e.Right = convertTo(right, common)
	switch e.Op {
	case ast.TK_PLUS, ast.TK_MINUS, ast.TK_STAR, ast.TK_SLASH, ast.TK_PERCENT:
		e.SetType(common)
	default:
		e.SetType(ast.TInt)
	}
	return e, nil
}

func (c *Checker) checkCall(e *ast.CallExpr) (ast.Expr, error) {
	sym, ok := c.syms.Lookup(e.Callee)
	if !ok {
		return nil, errf("call to undeclared function %q", e.Callee)
	}
	if sym.Kind != symbols.AttrFun {
		return nil, errf("tried to call variable %q as a function", e.Callee)
	}
	if len(sym.Type.ParamTypes) != len(e.Args) {
		return nil, errf("function %q called with wrong number of arguments", e.Callee)
	}
	for i, a := range e.Args {
		typed, err := c.checkExpr(a)
		if err != nil {
			return nil, err
		}
		e.Args[i] = convertTo(typed, sym.Type.ParamTypes[i])
	}
	e.SetType(sym.Type.RetType)
	return e, nil
}
