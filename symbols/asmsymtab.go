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

import "github.com/dolthub/swiss"

// AsmWidth is an assembly operand's width: Longword (4 bytes) or
// Quadword (8 bytes).
type AsmWidth int

const (
	Longword AsmWidth = iota
	Quadword
)

func (w AsmWidth) Bytes() int {
	if w == Quadword {
		return 8
	}
	return 4
}

// AsmAttrKind tags which of AsmSymbolTable's two entry shapes an
// AsmSymbol carries.
type AsmAttrKind int

const (
	AsmFun AsmAttrKind = iota
	AsmObj
)

// AsmSymbol is one AsmSymbolTable entry: either a FunEntry{defined,
// bytes_required} or an ObjEntry{width, is_static}.
type AsmSymbol struct {
	Kind AsmAttrKind

	// FunEntry fields
	Defined       bool
	BytesRequired int

	// ObjEntry fields
	Width    AsmWidth
	IsStatic bool
}

// AsmTable records each assembly-level symbol's storage/linkage
// attributes, populated by the instruction selector and consumed by
// pseudo-register replacement and the emitter. Same ordering guarantee as
// Table.
type AsmTable struct {
	m     *swiss.Map[string, *AsmSymbol]
	order []string
}

func NewAsmTable() *AsmTable {
	return &AsmTable{m: swiss.NewMap[string, *AsmSymbol](16)}
}

func (t *AsmTable) Lookup(name string) (*AsmSymbol, bool) {
	return t.m.Get(name)
}

func (t *AsmTable) Has(name string) bool {
	_, ok := t.m.Get(name)
	return ok
}

func (t *AsmTable) Set(name string, sym *AsmSymbol) {
	if !t.Has(name) {
		t.order = append(t.order, name)
	}
	t.m.Put(name, sym)
}

func (t *AsmTable) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}
