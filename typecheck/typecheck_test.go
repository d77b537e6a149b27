package typecheck

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minic/ast"
	"minic/resolve"
	"minic/symbols"
)

func checkSrc(t *testing.T, src string) (*ast.Program, *symbols.Table, error) {
	t.Helper()
	toks, err := ast.NewLexer(strings.NewReader(src)).Tokenize()
	require.NoError(t, err)
	prog, err := ast.ParseProgram(toks)
	require.NoError(t, err)
	ids := symbols.NewIdCounter()
	require.NoError(t, resolve.NewIdentifiers(ids).Resolve(prog))
	require.NoError(t, resolve.NewLoops(ids).Label(prog))
	syms := symbols.NewTable()
	err = NewChecker(syms).Check(prog)
	return prog, syms, err
}

func TestCheckConstantTypes(t *testing.T) {
	prog, _, err := checkSrc(t, "int main(void) { return 1; }")
	require.NoError(t, err)
	fn := prog.Decls[0].(*ast.FuncDecl)
	ret := fn.Body.Items[0].(ast.StmtItem).Stmt.(*ast.ReturnStmt)
	assert.Equal(t, ast.TInt, ret.Value.GetType())
}

func TestCheckBinaryArithmeticCommonType(t *testing.T) {
	prog, _, err := checkSrc(t, "int main(void) { long x = 1; return x + 1; }")
	require.NoError(t, err)
	fn := prog.Decls[0].(*ast.FuncDecl)
	ret := fn.Body.Items[1].(ast.StmtItem).Stmt.(*ast.ReturnStmt)
	// main returns int, so the long sum is wrapped in a narrowing cast.
	bin := ret.Value.(*ast.CastExpr).Inner.(*ast.BinaryExpr)
	assert.Equal(t, ast.TLong, bin.GetType())
	assert.Equal(t, ast.TLong, bin.Right.GetType())
}

func TestCheckLogicalOperatorsAlwaysInt(t *testing.T) {
	prog, _, err := checkSrc(t, "int main(void) { long x = 1; return x && 1; }")
	require.NoError(t, err)
	fn := prog.Decls[0].(*ast.FuncDecl)
	ret := fn.Body.Items[1].(ast.StmtItem).Stmt.(*ast.ReturnStmt)
	and := ret.Value.(*ast.BinaryExpr)
	assert.Equal(t, ast.TInt, and.GetType())
	assert.IsType(t, &ast.VarExpr{}, and.Left)
}

func TestCheckComparisonAlwaysInt(t *testing.T) {
	prog, _, err := checkSrc(t, "int main(void) { return 1L < 2; }")
	require.NoError(t, err)
	fn := prog.Decls[0].(*ast.FuncDecl)
	ret := fn.Body.Items[0].(ast.StmtItem).Stmt.(*ast.ReturnStmt)
	assert.Equal(t, ast.TInt, ret.Value.GetType())
}

func TestCheckReturnInsertsImplicitCast(t *testing.T) {
	prog, _, err := checkSrc(t, "long f(void) { return 1; }")
	require.NoError(t, err)
	fn := prog.Decls[0].(*ast.FuncDecl)
	ret := fn.Body.Items[0].(ast.StmtItem).Stmt.(*ast.ReturnStmt)
	cast := ret.Value.(*ast.CastExpr)
	assert.Equal(t, ast.TLong, cast.Target)
}

func TestCheckConditionalCommonType(t *testing.T) {
	prog, _, err := checkSrc(t, "int main(void) { long a = 1; return 1 ? a : 0; }")
	require.NoError(t, err)
	fn := prog.Decls[0].(*ast.FuncDecl)
	ret := fn.Body.Items[1].(ast.StmtItem).Stmt.(*ast.ReturnStmt)
	cond := ret.Value.(*ast.CastExpr).Inner.(*ast.ConditionalExpr)
	assert.Equal(t, ast.TLong, cond.GetType())
}

func TestCheckCallArgumentCountMismatchErrors(t *testing.T) {
	_, _, err := checkSrc(t, "int f(int a); int main(void) { return f(1, 2); }")
	require.Error(t, err)
}

func TestCheckCallConvertsArguments(t *testing.T) {
	prog, _, err := checkSrc(t, "long f(long a); int main(void) { return f(1); }")
	require.NoError(t, err)
	fn := prog.Decls[1].(*ast.FuncDecl)
	ret := fn.Body.Items[0].(ast.StmtItem).Stmt.(*ast.ReturnStmt)
	cast := ret.Value.(*ast.CastExpr)
	call := cast.Inner.(*ast.CallExpr)
	arg := call.Args[0].(*ast.CastExpr)
	assert.Equal(t, ast.TLong, arg.Target)
}

func TestCheckRedeclarationWithDifferentTypeErrors(t *testing.T) {
	_, _, err := checkSrc(t, "int x; long x; int main(void) { return 0; }")
	require.Error(t, err)
}

func TestCheckConflictingFileScopeInitializersErrors(t *testing.T) {
	_, _, err := checkSrc(t, "int x = 1; int x = 2; int main(void) { return x; }")
	require.Error(t, err)
}

func TestCheckTentativeThenInitializedMerges(t *testing.T) {
	_, syms, err := checkSrc(t, "int x; int x = 5; int main(void) { return x; }")
	require.NoError(t, err)
	sym, ok := syms.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, symbols.Initial, sym.Init.Kind)
	assert.Equal(t, int32(5), sym.Init.Value.IVal)
}

func TestCheckFunctionRedefinitionErrors(t *testing.T) {
	_, _, err := checkSrc(t, "int f(void) { return 1; } int f(void) { return 2; }")
	require.Error(t, err)
}

func TestCheckCallingVariableAsFunctionErrors(t *testing.T) {
	_, _, err := checkSrc(t, "int x; int main(void) { return x(); }")
	require.Error(t, err)
}

func TestCheckUsingFunctionAsVariableErrors(t *testing.T) {
	_, _, err := checkSrc(t, "int f(void); int main(void) { return f; }")
	require.Error(t, err)
}

func TestCheckStaticLocalZeroInitialized(t *testing.T) {
	prog, syms, err := checkSrc(t, "int main(void) { static int x; return x; }")
	require.NoError(t, err)
	fn := prog.Decls[0].(*ast.FuncDecl)
	x := fn.Body.Items[0].(ast.DeclItem).Decl.(*ast.VarDecl)
	sym, ok := syms.Lookup(x.Name)
	require.True(t, ok)
	assert.Equal(t, symbols.Initial, sym.Init.Kind)
	assert.True(t, sym.Init.Value.IsZero())
}
