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
package resolve

import (
	"github.com/samber/lo"

	"minic/ast"
	"minic/symbols"
)

// Loops stamps every while/do-while/for with a fresh label and propagates
// that label down to the break/continue statements it encloses.
type Loops struct {
	ids *symbols.IdCounter
}

func NewLoops(ids *symbols.IdCounter) *Loops {
	return &Loops{ids: ids}
}

func (l *Loops) Label(prog *ast.Program) error {
	bodies := lo.FilterMap(prog.Decls, func(d ast.Decl, _ int) (*ast.CompoundStmt, bool) {
		f, ok := d.(*ast.FuncDecl)
		if !ok || f.Body == nil {
			return nil, false
		}
		return f.Body, true
	})
	for _, body := range bodies {
		if err := l.labelStmt("", body); err != nil {
			return err
		}
	}
	return nil
}

// current is the innermost enclosing loop's label, or "" outside any loop.
func (l *Loops) labelStmt(current string, stmt ast.Stmt) error {
	switch st := stmt.(type) {
	case *ast.BreakStmt:
		if current == "" {
			return errf("break statement not within a loop")
		}
		st.Label = current
		return nil
	case *ast.ContinueStmt:
		if current == "" {
			return errf("continue statement not within a loop")
		}
		st.Label = current
		return nil
	case *ast.WhileStmt:
		id := l.ids.MakeLabel("while")
		st.Label = id
		return l.labelStmt(id, st.Body)
	case *ast.DoWhileStmt:
		id := l.ids.MakeLabel("do_while")
		st.Label = id
		return l.labelStmt(id, st.Body)
	case *ast.ForStmt:
		id := l.ids.MakeLabel("for")
		st.Label = id
		return l.labelStmt(id, st.Body)
	case *ast.IfStmt:
		if err := l.labelStmt(current, st.Then); err != nil {
			return err
		}
		if st.Else != nil {
			return l.labelStmt(current, st.Else)
		}
		return nil
	case *ast.CompoundStmt:
		for _, item := range st.Items {
			if si, ok := item.(ast.StmtItem); ok {
				if err := l.labelStmt(current, si.Stmt); err != nil {
					return err
				}
			}
		}
		return nil
	case *ast.NullStmt, *ast.ReturnStmt, *ast.ExprStmt:
		return nil
	default:
		return errf("unknown statement %T", stmt)
	}
}
