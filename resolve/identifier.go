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

// Package resolve renames every identifier to a unique name, threading
// linkage information through nested scopes, and stamps break/continue
// statements with their enclosing loop.
package resolve

import (
	"fmt"

	"minic/ast"
	"minic/symbols"
)

// ResolveError reports a scoping violation: redeclaration, use of an
// undeclared name, an assignment target that isn't an lvalue, a nested
// function definition, or a local function declared static.
type ResolveError struct {
	Msg string
}

func (e *ResolveError) Error() string { return e.Msg }

func errf(format string, args ...interface{}) error {
	return &ResolveError{Msg: fmt.Sprintf(format, args...)}
}

// entry mirrors the reference resolver's VarEntry: the identifier's unique
// (possibly renamed) name, whether it was declared in the scope currently
// being resolved, and whether it has linkage (file-scope names and
// extern-qualified local names all refer to the same underlying object
// regardless of how many times they're declared).
type entry struct {
	uniqueName       string
	fromCurrentScope bool
	hasLinkage       bool
}

type scope map[string]entry

// copyScope carries every binding into a nested scope, clearing
// fromCurrentScope so a shadowing declaration in the inner scope is legal
// while a duplicate one still isn't.
func copyScope(m scope) scope {
	out := make(scope, len(m))
	for k, v := range m {
		v.fromCurrentScope = false
		out[k] = v
	}
	return out
}

// Identifiers rewrites prog in place so that every local identifier gets a
// name unique across the whole translation unit; file-scope and extern
// names keep their declared name.
type Identifiers struct {
	ids *symbols.IdCounter
}

func NewIdentifiers(ids *symbols.IdCounter) *Identifiers {
	return &Identifiers{ids: ids}
}

func (r *Identifiers) Resolve(prog *ast.Program) error {
	fileScope := scope{}
	for _, d := range prog.Decls {
		var err error
		switch d := d.(type) {
		case *ast.FuncDecl:
			fileScope, err = r.resolveFuncDecl(fileScope, d)
		case *ast.VarDecl:
			err = r.resolveFileVarDecl(fileScope, d)
		default:
			err = errf("unknown top-level declaration %T", d)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// resolveFileVarDecl gives a file-scope variable linkage and its own name;
// repeated file-scope declarations of the same name are legal (the type
// checker, not the resolver, catches a real conflict).
func (r *Identifiers) resolveFileVarDecl(file scope, v *ast.VarDecl) error {
	file[v.Name] = entry{uniqueName: v.Name, fromCurrentScope: true, hasLinkage: true}
	return nil
}

func (r *Identifiers) resolveFuncDecl(file scope, f *ast.FuncDecl) (scope, error) {
	if prev, ok := file[f.Name]; ok && prev.fromCurrentScope && !prev.hasLinkage {
		return file, errf("%s redeclared as different kind of symbol", f.Name)
	}
	next := make(scope, len(file)+1)
	for k, v := range file {
		next[k] = v
	}
	next[f.Name] = entry{uniqueName: f.Name, fromCurrentScope: true, hasLinkage: true}

	if f.Body == nil {
		return next, nil
	}

	inner := copyScope(next)
	for i, p := range f.Params {
		renamed, s, err := r.declareLocal(inner, p)
		if err != nil {
			return next, err
		}
		inner = s
		f.Params[i] = renamed
	}
	body, err := r.resolveStmt(inner, f.Body)
	if err != nil {
		return next, err
	}
	f.Body = body.(*ast.CompoundStmt)
	return next, nil
}

// declareLocal mints a fresh unique name for a plain (non-extern) local
// binding — a parameter or an ordinary/static local variable — rejecting a
// redeclaration already visible in the current scope.
func (r *Identifiers) declareLocal(s scope, name string) (string, scope, error) {
	if prev, ok := s[name]; ok && prev.fromCurrentScope {
		return "", s, errf("redeclaration of %q in this scope", name)
	}
	unique := r.ids.MakeLabel(name)
	next := make(scope, len(s)+1)
	for k, v := range s {
		next[k] = v
	}
	next[name] = entry{uniqueName: unique, fromCurrentScope: true, hasLinkage: false}
	return unique, next, nil
}

func (r *Identifiers) resolveLocalVarDecl(s scope, v *ast.VarDecl) (scope, error) {
	if v.Storage == ast.Extern {
		if prev, ok := s[v.Name]; ok && prev.fromCurrentScope && !prev.hasLinkage {
			return s, errf("%s redeclared with no linkage", v.Name)
		}
		next := make(scope, len(s)+1)
		for k, e := range s {
			next[k] = e
		}
		next[v.Name] = entry{uniqueName: v.Name, fromCurrentScope: true, hasLinkage: true}
		if v.Init != nil {
			return next, errf("extern local %q cannot have an initializer", v.Name)
		}
		return next, nil
	}

	unique, next, err := r.declareLocal(s, v.Name)
	if err != nil {
		return s, err
	}
	v.Name = unique
	if v.Init != nil {
		init, err := r.resolveExpr(next, v.Init)
		if err != nil {
			return next, err
		}
		v.Init = init
	}
	return next, nil
}

func (r *Identifiers) resolveForInit(s scope, init ast.ForInit) (scope, ast.ForInit, error) {
	switch init := init.(type) {
	case ast.InitExpr:
		if init.Expr == nil {
			return s, init, nil
		}
		e, err := r.resolveExpr(s, init.Expr)
		return s, ast.InitExpr{Expr: e}, err
	case ast.InitDecl:
		if init.Decl.Storage != ast.NoStorage {
			return s, nil, errf("for-loop initializer cannot have a storage class")
		}
		next, err := r.resolveLocalVarDecl(s, init.Decl)
		if err != nil {
			return s, nil, err
		}
		return next, ast.InitDecl{Decl: init.Decl}, nil
	default:
		return s, nil, errf("unknown for-init %T", init)
	}
}

func (r *Identifiers) resolveStmt(s scope, stmt ast.Stmt) (ast.Stmt, error) {
	switch st := stmt.(type) {
	case *ast.ReturnStmt:
		e, err := r.resolveExpr(s, st.Value)
		if err != nil {
			return nil, err
		}
		st.Value = e
		return st, nil
	case *ast.ExprStmt:
		e, err := r.resolveExpr(s, st.Value)
		if err != nil {
			return nil, err
		}
		st.Value = e
		return st, nil
	case *ast.NullStmt:
		return st, nil
	case *ast.BreakStmt:
		return st, nil
	case *ast.ContinueStmt:
		return st, nil
	case *ast.IfStmt:
		cond, err := r.resolveExpr(s, st.Cond)
		if err != nil {
			return nil, err
		}
		st.Cond = cond
		then, err := r.resolveStmt(s, st.Then)
		if err != nil {
			return nil, err
		}
		st.Then = then
		if st.Else != nil {
			els, err := r.resolveStmt(s, st.Else)
			if err != nil {
				return nil, err
			}
			st.Else = els
		}
		return st, nil
	case *ast.WhileStmt:
		cond, err := r.resolveExpr(s, st.Cond)
		if err != nil {
			return nil, err
		}
		st.Cond = cond
		body, err := r.resolveStmt(s, st.Body)
		if err != nil {
			return nil, err
		}
		st.Body = body
		return st, nil
	case *ast.DoWhileStmt:
		body, err := r.resolveStmt(s, st.Body)
		if err != nil {
			return nil, err
		}
		st.Body = body
		cond, err := r.resolveExpr(s, st.Cond)
		if err != nil {
			return nil, err
		}
		st.Cond = cond
		return st, nil
	case *ast.ForStmt:
		loopScope := copyScope(s)
		next, init, err := r.resolveForInit(loopScope, st.Init)
		if err != nil {
			return nil, err
		}
		st.Init = init
		if st.Cond != nil {
			cond, err := r.resolveExpr(next, st.Cond)
			if err != nil {
				return nil, err
			}
			st.Cond = cond
		}
		if st.Post != nil {
			post, err := r.resolveExpr(next, st.Post)
			if err != nil {
				return nil, err
			}
			st.Post = post
		}
		body, err := r.resolveStmt(next, st.Body)
		if err != nil {
			return nil, err
		}
		st.Body = body
		return st, nil
	case *ast.CompoundStmt:
		blockScope := copyScope(s)
		items, err := r.resolveBlock(blockScope, st.Items)
		if err != nil {
			return nil, err
		}
		st.Items = items
		return st, nil
	default:
		return nil, errf("unknown statement %T", stmt)
	}
}

func (r *Identifiers) resolveBlock(s scope, items []ast.BlockItem) ([]ast.BlockItem, error) {
	out := make([]ast.BlockItem, len(items))
	for i, item := range items {
		switch it := item.(type) {
		case ast.StmtItem:
			resolved, err := r.resolveStmt(s, it.Stmt)
			if err != nil {
				return nil, err
			}
			out[i] = ast.StmtItem{Stmt: resolved}
		case ast.DeclItem:
			next, decl, err := r.resolveLocalDecl(s, it.Decl)
			if err != nil {
				return nil, err
			}
			s = next
			out[i] = ast.DeclItem{Decl: decl}
		default:
			return nil, errf("unknown block item %T", item)
		}
	}
	return out, nil
}

func (r *Identifiers) resolveLocalDecl(s scope, d ast.Decl) (scope, ast.Decl, error) {
	switch d := d.(type) {
	case *ast.VarDecl:
		next, err := r.resolveLocalVarDecl(s, d)
		return next, d, err
	case *ast.FuncDecl:
		if d.Body != nil {
			return s, nil, errf("nested function definitions are not allowed: %s", d.Name)
		}
		if d.Storage == ast.Static {
			return s, nil, errf("local function %s cannot have static storage", d.Name)
		}
		next, err := r.resolveFuncDecl(s, d)
		return next, d, err
	default:
		return s, nil, errf("unknown local declaration %T", d)
	}
}

func (r *Identifiers) resolveExpr(s scope, e ast.Expr) (ast.Expr, error) {
	switch e := e.(type) {
	case *ast.ConstantExpr:
		return e, nil
	case *ast.VarExpr:
		ent, ok := s[e.Name]
		if !ok {
			return nil, errf("use of undeclared identifier %q", e.Name)
		}
		e.Name = ent.uniqueName
		return e, nil
	case *ast.CastExpr:
		inner, err := r.resolveExpr(s, e.Inner)
		if err != nil {
			return nil, err
		}
		e.Inner = inner
		return e, nil
	case *ast.UnaryExpr:
		operand, err := r.resolveExpr(s, e.Operand)
		if err != nil {
			return nil, err
		}
		e.Operand = operand
		return e, nil
	case *ast.BinaryExpr:
		left, err := r.resolveExpr(s, e.Left)
		if err != nil {
			return nil, err
		}
		right, err := r.resolveExpr(s, e.Right)
		if err != nil {
			return nil, err
		}
		e.Left, e.Right = left, right
		return e, nil
	case *ast.AssignExpr:
		if _, ok := e.Target.(*ast.VarExpr); !ok {
			return nil, errf("expression is not assignable: %s", e.Target)
		}
		target, err := r.resolveExpr(s, e.Target)
		if err != nil {
			return nil, err
		}
		value, err := r.resolveExpr(s, e.Value)
		if err != nil {
			return nil, err
		}
		e.Target, e.Value = target, value
		return e, nil
	case *ast.ConditionalExpr:
		cond, err := r.resolveExpr(s, e.Cond)
		if err != nil {
			return nil, err
		}
		then, err := r.resolveExpr(s, e.Then)
		if err != nil {
			return nil, err
		}
		els, err := r.resolveExpr(s, e.Else)
		if err != nil {
			return nil, err
		}
		e.Cond, e.Then, e.Else = cond, then, els
		return e, nil
	case *ast.CallExpr:
		ent, ok := s[e.Callee]
		if !ok {
			return nil, errf("call to undeclared function %q", e.Callee)
		}
		e.Callee = ent.uniqueName
		for i, a := range e.Args {
			resolved, err := r.resolveExpr(s, a)
			if err != nil {
				return nil, err
			}
			e.Args[i] = resolved
		}
		return e, nil
	default:
		return nil, errf("unknown expression %T", e)
	}
}
