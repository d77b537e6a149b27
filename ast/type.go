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
package ast

import (
	"fmt"
	"strings"

	"minic/utils"
)

// TypeKind enumerates the three type shapes this subset of C has: the two
// integer widths and function types.
type TypeKind int

const (
	TypeInt TypeKind = iota
	TypeLong
	TypeFun
)

// Type is either a scalar (Int/Long) or a function type carrying its
// parameter types and return type. Scalars are interned via TInt/TLong so
// callers can compare with ==; function types are allocated per
// declaration since no two are identical.
type Type struct {
	Kind       TypeKind
	ParamTypes []*Type // only set when Kind == TypeFun
	RetType    *Type   // only set when Kind == TypeFun
}

var (
	TInt  = &Type{Kind: TypeInt}
	TLong = &Type{Kind: TypeLong}
)

func NewFunType(params []*Type, ret *Type) *Type {
	return &Type{Kind: TypeFun, ParamTypes: params, RetType: ret}
}

func (t *Type) IsInt() bool  { return t.Kind == TypeInt }
func (t *Type) IsLong() bool { return t.Kind == TypeLong }
func (t *Type) IsFun() bool  { return t.Kind == TypeFun }

// IsScalar reports whether t is a value type (as opposed to a function
// type); casts and most expressions only apply to scalars.
func (t *Type) IsScalar() bool { return t.Kind == TypeInt || t.Kind == TypeLong }

func (t *Type) Equal(o *Type) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || t.Kind != o.Kind {
		return false
	}
	if t.Kind != TypeFun {
		return true
	}
	if len(t.ParamTypes) != len(o.ParamTypes) || !t.RetType.Equal(o.RetType) {
		return false
	}
	for i := range t.ParamTypes {
		if !t.ParamTypes[i].Equal(o.ParamTypes[i]) {
			return false
		}
	}
	return true
}

func (t *Type) String() string {
	switch t.Kind {
	case TypeInt:
		return "int"
	case TypeLong:
		return "long"
	case TypeFun:
		parts := make([]string, len(t.ParamTypes))
		for i, p := range t.ParamTypes {
			parts[i] = p.String()
		}
		return fmt.Sprintf("(%s) -> %s", strings.Join(parts, ", "), t.RetType)
	default:
		utils.ShouldNotReachHere("unknown type kind")
		return ""
	}
}

// CommonType implements the usual-arithmetic-conversions join for this
// language's two integer types: equal types stay, otherwise Long wins.
func CommonType(a, b *Type) *Type {
	if a.Equal(b) {
		return a
	}
	return TLong
}

// Width returns the number of bytes a value of this scalar type occupies
// in assembly: 4 for int, 8 for long.
func (t *Type) Width() int {
	switch t.Kind {
	case TypeInt:
		return 4
	case TypeLong:
		return 8
	default:
		utils.ShouldNotReachHere("Width of a non-scalar type")
		return 0
	}
}
