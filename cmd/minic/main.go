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
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"minic/compile"
)

var dumpFlag string

func dumpStage(name string) (compile.DumpStage, error) {
	switch name {
	case "", "none":
		return compile.DumpNone, nil
	case "tokens":
		return compile.DumpTokens, nil
	case "ast":
		return compile.DumpAST, nil
	case "ir":
		return compile.DumpIR, nil
	case "asm":
		return compile.DumpAsm, nil
	default:
		return compile.DumpNone, fmt.Errorf("unknown -dump stage %q (want one of: tokens, ast, ir, asm)", name)
	}
}

func outputPath(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".s"
}

func runCompile(cmd *cobra.Command, args []string) error {
	stage, err := dumpStage(dumpFlag)
	if err != nil {
		return err
	}

	var source string
	var out string
	if len(args) == 1 {
		source = args[0]
		out = outputPath(source)
	} else {
		source = "-"
		out = "a.s"
	}

	in := os.Stdin
	if source != "-" {
		f, err := os.Open(source)
		if err != nil {
			return fmt.Errorf("open %s: %w", source, err)
		}
		defer f.Close()
		in = f
	}

	c := compile.NewCompiler()
	c.Dump = stage
	c.DumpTo = os.Stderr

	asm, err := c.Compile(in)
	if err != nil {
		return err
	}

	if err := os.WriteFile(out, []byte(asm), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Printf("compiled %s -> %s\n", source, out)
	return nil
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "minic [source.c]",
		Short: "A compiler for a small subset of C, targeting x86-64 System V assembly",
		Long: "minic lexes, parses, resolves, type-checks, and lowers a single C-subset\n" +
			"translation unit to GNU/AT&T-syntax x86-64 assembly. It never invokes an\n" +
			"assembler or linker; that's left to the caller (cc -c, as, ld, ...).",
		Args: cobra.MaximumNArgs(1),
		RunE: runCompile,
	}
	cmd.Flags().StringVar(&dumpFlag, "dump", "", "print an intermediate artifact to stderr: tokens, ast, ir, asm")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "minic:", err)
		os.Exit(1)
	}
}
