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

// Package compile wires the ten pipeline stages together: lexing, parsing,
// identifier resolution, loop labelling, type checking, IR generation,
// instruction selection, pseudo-register replacement, instruction fixup,
// and emission. It never shells out to an assembler or linker — neither
// does the cmd/minic driver; that is left to whoever runs the output.
package compile

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"minic/ast"
	"minic/codegen"
	"minic/emit"
	"minic/ir"
	"minic/resolve"
	"minic/symbols"
	"minic/typecheck"
)

// DumpStage names an intermediate artifact a caller can ask Compiler to
// print to its dump writer: a single selectable flag instead of several
// always-compiled-in debug switches.
type DumpStage int

const (
	DumpNone DumpStage = iota
	DumpTokens
	DumpAST
	DumpIR
	DumpAsm
)

// Compiler runs every stage over one translation unit. Each Compile call
// builds its own symbol tables and id counter (see the symbols package
// doc), so nothing carries over from one translation unit to the next.
type Compiler struct {
	Dump   DumpStage
	DumpTo io.Writer
}

func NewCompiler() *Compiler {
	return &Compiler{Dump: DumpNone}
}

func (c *Compiler) dumpf(stage DumpStage, format string, args ...interface{}) {
	if c.Dump != stage || c.DumpTo == nil {
		return
	}
	fmt.Fprintf(c.DumpTo, format, args...)
}

// Compile lowers one C-subset translation unit read from src into GNU/AT&T
// assembly text.
func (c *Compiler) Compile(src io.Reader) (string, error) {
	toks, err := ast.NewLexer(src).Tokenize()
	if err != nil {
		return "", fmt.Errorf("lex: %w", err)
	}
	if c.Dump == DumpTokens {
		parts := make([]string, len(toks))
		for i, t := range toks {
			parts[i] = t.String()
		}
		c.dumpf(DumpTokens, "== tokens ==\n%s\n", strings.Join(parts, " "))
	}

	prog, err := ast.ParseProgram(toks)
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}

	ids := symbols.NewIdCounter()
	if err := resolve.NewIdentifiers(ids).Resolve(prog); err != nil {
		return "", fmt.Errorf("resolve identifiers: %w", err)
	}
	if err := resolve.NewLoops(ids).Label(prog); err != nil {
		return "", fmt.Errorf("label loops: %w", err)
	}

	syms := symbols.NewTable()
	if err := typecheck.NewChecker(syms).Check(prog); err != nil {
		return "", fmt.Errorf("typecheck: %w", err)
	}
	if c.Dump == DumpAST {
		c.dumpf(DumpAST, "== typed ast ==\n%s\n", prog)
	}

	irProg, err := ir.NewGenerator(ids, syms).Gen(prog)
	if err != nil {
		return "", fmt.Errorf("generate ir: %w", err)
	}
	if c.Dump == DumpIR {
		c.dumpf(DumpIR, "== ir ==\n")
		for _, t := range irProg.TopLevels {
			c.dumpf(DumpIR, "%s\n", t)
		}
	}

	asmTab := symbols.NewAsmTable()
	asmProg := codegen.NewSelector(syms, asmTab).Select(irProg)
	codegen.NewPseudoReplacer(syms, asmTab).Run(asmProg)
	codegen.NewFixup(asmTab).Run(asmProg)

	var buf bytes.Buffer
	if err := emit.NewEmitter(asmTab, &buf).Emit(asmProg); err != nil {
		return "", fmt.Errorf("emit: %w", err)
	}
	if c.Dump == DumpAsm {
		c.dumpf(DumpAsm, "== asm ==\n%s\n", buf.String())
	}
	return buf.String(), nil
}
