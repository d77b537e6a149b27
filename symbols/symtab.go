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
package symbols

import (
	"fmt"

	"github.com/dolthub/swiss"

	"minic/ast"
)

// StaticInitKind tags a file-scope or `static`-local variable's
// initialization state: whether it has an explicit initializer, is only
// tentatively defined (C's "no initializer at file scope" rule), or has
// none at all.
type StaticInitKind int

const (
	Tentative StaticInitKind = iota
	Initial
	NoInitializer
)

// ConstValue is the constant a StaticInit carries when Kind == Initial: an
// IntInit (int32) or a LongInit (int64).
type ConstValue struct {
	IsLong bool
	IVal   int32
	LVal   int64
}

func IntInit(v int32) ConstValue  { return ConstValue{IVal: v} }
func LongInit(v int64) ConstValue { return ConstValue{IsLong: true, LVal: v} }

func (c ConstValue) IsZero() bool {
	if c.IsLong {
		return c.LVal == 0
	}
	return c.IVal == 0
}

func (c ConstValue) String() string {
	if c.IsLong {
		return fmt.Sprintf("%d", c.LVal)
	}
	return fmt.Sprintf("%d", c.IVal)
}

type StaticInit struct {
	Kind  StaticInitKind
	Value ConstValue // meaningful only when Kind == Initial
}

// AttrKind tags which of the three symbol attribute shapes a Symbol
// carries.
type AttrKind int

const (
	AttrLocal AttrKind = iota
	AttrStatic
	AttrFun
)

// Symbol is one SymbolTable entry: a type plus exactly one of the three
// attribute shapes.
type Symbol struct {
	Type *ast.Type
	Kind AttrKind

	// AttrStatic fields
	Init   StaticInit
	Global bool

	// AttrFun fields
	Defined        bool
	StackFrameSize int
}

// Table maps each identifier to its type and storage attributes. It is
// backed by a swiss-table hash map for lookup and an explicit insertion
// order so that later passes which walk the whole table (static-variable
// emission, AsmSymbolTable population) visit symbols in declaration order
// — required for byte-identical assembly output across whitespace-only
// reformattings of the same source.
type Table struct {
	m     *swiss.Map[string, *Symbol]
	order []string
}

func NewTable() *Table {
	return &Table{m: swiss.NewMap[string, *Symbol](16)}
}

func (t *Table) Lookup(name string) (*Symbol, bool) {
	return t.m.Get(name)
}

func (t *Table) Has(name string) bool {
	_, ok := t.m.Get(name)
	return ok
}

// Set inserts or overwrites the entry for name, recording insertion order
// the first time name is seen.
func (t *Table) Set(name string, sym *Symbol) {
	if !t.Has(name) {
		t.order = append(t.order, name)
	}
	t.m.Put(name, sym)
}

// Names returns every symbol name in declaration order — the order later
// passes that need deterministic output (static-variable emission,
// AsmSymbolTable population) rely on.
func (t *Table) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}
