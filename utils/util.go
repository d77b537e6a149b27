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

// Package utils holds small helpers shared by every compiler stage: the
// handful of assert/panic primitives used to flag internal-invariant
// violations (things that must be unreachable if earlier passes are
// correct), and arithmetic helpers used by the backend for stack layout.
package utils

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Assert panics with a formatted message when cond is false. Used for
// internal invariants that a correct compiler must never violate; it is
// not a substitute for returning an error to the caller about a bad input
// program.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

// Unimplement marks a code path that is intentionally not supported by
// this subset of C.
func Unimplement(what string) {
	panic(fmt.Sprintf("not implemented: %s", what))
}

// ShouldNotReachHere marks a code path that a correct pipeline can never
// take; reaching it means an earlier pass produced malformed IR or
// assembly.
func ShouldNotReachHere(context string) {
	panic(fmt.Sprintf("internal invariant violated: %s", context))
}

// Abs returns the absolute value of x for any signed integer type.
func Abs[T constraints.Signed](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

// AlignUp rounds n up to the nearest multiple of align, where align is a
// power of two. Used to round a function's stack frame size up to a
// multiple of 16 ahead of the function prologue.
func AlignUp[T constraints.Integer](n, align T) T {
	return ((n + align - 1) / align) * align
}

// FloorAlign rounds n down (toward negative infinity) to the nearest
// multiple of align, where align is a positive power of two. Unlike a
// plain truncating division this also does the right thing for negative
// n, which is what pseudo-register replacement needs: stack offsets are
// negative, and "the next lower multiple" means more negative, i.e.
// further from the frame base.
func FloorAlign[T constraints.Signed](n, align T) T {
	q := n / align
	if n%align != 0 && n < 0 {
		q--
	}
	return q * align
}
