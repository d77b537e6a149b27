package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minic/ast"
	"minic/resolve"
	"minic/symbols"
	"minic/typecheck"
)

func genIR(t *testing.T, src string) *Program {
	t.Helper()
	toks, err := ast.NewLexer(strings.NewReader(src)).Tokenize()
	require.NoError(t, err)
	prog, err := ast.ParseProgram(toks)
	require.NoError(t, err)
	ids := symbols.NewIdCounter()
	require.NoError(t, resolve.NewIdentifiers(ids).Resolve(prog))
	require.NoError(t, resolve.NewLoops(ids).Label(prog))
	syms := symbols.NewTable()
	require.NoError(t, typecheck.NewChecker(syms).Check(prog))
	irProg, err := NewGenerator(ids, syms).Gen(prog)
	require.NoError(t, err)
	return irProg
}

func firstFunction(t *testing.T, prog *Program) *Function {
	t.Helper()
	for _, top := range prog.TopLevels {
		if f, ok := top.(*Function); ok {
			return f
		}
	}
	t.Fatal("no function in program")
	return nil
}

func TestGenReturnConstant(t *testing.T) {
	prog := genIR(t, "int main(void) { return 2; }")
	fn := firstFunction(t, prog)
	require.Len(t, fn.Body, 2) // the explicit return plus the implicit `return 0` tail
	ret := fn.Body[0].(*ReturnInst)
	assert.True(t, ret.Value.IsConst())
	assert.Equal(t, int32(2), ret.Value.ConstValue().IVal)
}

func TestGenImplicitReturnZeroAppended(t *testing.T) {
	prog := genIR(t, "int main(void) { int x = 1; }")
	fn := firstFunction(t, prog)
	last := fn.Body[len(fn.Body)-1].(*ReturnInst)
	assert.True(t, last.Value.IsConst())
	assert.Equal(t, int32(0), last.Value.ConstValue().IVal)
}

func TestGenCastEmitsSignExtendOrTruncate(t *testing.T) {
	prog := genIR(t, "long f(void) { int x = 1; return x; }")
	fn := firstFunction(t, prog)
	found := false
	for _, inst := range fn.Body {
		if _, ok := inst.(*SignExtendInst); ok {
			found = true
		}
	}
	assert.True(t, found)
}

func TestGenCastSameTypeIsNoOp(t *testing.T) {
	prog := genIR(t, "int main(void) { int x = 1; return x; }")
	fn := firstFunction(t, prog)
	for _, inst := range fn.Body {
		assert.NotIsType(t, &SignExtendInst{}, inst)
		assert.NotIsType(t, &TruncateInst{}, inst)
	}
}

func TestGenLogicalAndShortCircuitShape(t *testing.T) {
	prog := genIR(t, "int main(void) { return 1 && 2; }")
	fn := firstFunction(t, prog)
	var jz int
	for _, inst := range fn.Body {
		if _, ok := inst.(*JumpIfZeroInst); ok {
			jz++
		}
	}
	assert.Equal(t, 2, jz)
}

func TestGenLogicalOrShortCircuitShape(t *testing.T) {
	prog := genIR(t, "int main(void) { return 1 || 2; }")
	fn := firstFunction(t, prog)
	var jnz int
	for _, inst := range fn.Body {
		if _, ok := inst.(*JumpIfNotZeroInst); ok {
			jnz++
		}
	}
	assert.Equal(t, 2, jnz)
}

func TestGenWhileLoopLabelsMatchLoopLabel(t *testing.T) {
	prog := genIR(t, "int main(void) { while (1) { break; } return 0; }")
	fn := firstFunction(t, prog)
	var sawContinueLabel, sawBreakLabel, sawBreakJump bool
	for _, inst := range fn.Body {
		switch i := inst.(type) {
		case *LabelInst:
			if strings.HasPrefix(i.Name, "continue.") {
				sawContinueLabel = true
			}
			if strings.HasPrefix(i.Name, "break.") {
				sawBreakLabel = true
			}
		case *JumpInst:
			if strings.HasPrefix(i.Target, "break.") {
				sawBreakJump = true
			}
		}
	}
	assert.True(t, sawContinueLabel)
	assert.True(t, sawBreakLabel)
	assert.True(t, sawBreakJump)
}

func TestGenFunctionCallLowersArgsAndDst(t *testing.T) {
	prog := genIR(t, "int f(int a, int b); int main(void) { return f(1, 2); }")
	var main *Function
	for _, top := range prog.TopLevels {
		if f, ok := top.(*Function); ok && f.Name == "main" {
			main = f
		}
	}
	require.NotNil(t, main)
	var call *CallInst
	for _, inst := range main.Body {
		if c, ok := inst.(*CallInst); ok {
			call = c
		}
	}
	require.NotNil(t, call)
	assert.Equal(t, "f", call.Callee)
	assert.Len(t, call.Args, 2)
}

func TestGenStaticVariableTentativeBecomesZero(t *testing.T) {
	prog := genIR(t, "int x; int main(void) { return x; }")
	var sv *StaticVariable
	for _, top := range prog.TopLevels {
		if s, ok := top.(*StaticVariable); ok {
			sv = s
		}
	}
	require.NotNil(t, sv)
	assert.Equal(t, symbols.Initial, sv.Init.Kind)
	assert.True(t, sv.Init.Value.IsZero())
}

func TestGenStaticVariableExplicitInitializerPreserved(t *testing.T) {
	prog := genIR(t, "int x = 7; int main(void) { return x; }")
	var sv *StaticVariable
	for _, top := range prog.TopLevels {
		if s, ok := top.(*StaticVariable); ok {
			sv = s
		}
	}
	require.NotNil(t, sv)
	assert.Equal(t, int32(7), sv.Init.Value.IVal)
}

func TestGenDoesNotEmitStaticVariableForExternDecl(t *testing.T) {
	prog := genIR(t, "extern int x; int main(void) { return 0; }")
	for _, top := range prog.TopLevels {
		if s, ok := top.(*StaticVariable); ok {
			t.Fatalf("unexpected static variable emitted: %s", s.Name)
		}
	}
}
