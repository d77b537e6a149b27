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

// Package symbols holds the three process-wide, single-threaded tables a
// compilation needs: the SymbolTable, the AsmSymbolTable, and the
// IdCounter that feeds every fresh name the pipeline needs. They are
// threaded as explicit struct parameters (rather than package-level
// singletons) so a caller compiling several translation units in sequence
// only has to construct a fresh one per unit to get the required reset.
package symbols

import "fmt"

// IdCounter is a single monotonic counter feeding both temporary-variable
// and label name generation.
type IdCounter struct {
	next int
}

func NewIdCounter() *IdCounter { return &IdCounter{} }

// MakeTemporary returns a fresh "tmp.N" name.
func (c *IdCounter) MakeTemporary() string {
	n := c.next
	c.next++
	return fmt.Sprintf("tmp.%d", n)
}

// MakeLabel returns a fresh "prefix.N" name.
func (c *IdCounter) MakeLabel(prefix string) string {
	n := c.next
	c.next++
	return fmt.Sprintf("%s.%d", prefix, n)
}
