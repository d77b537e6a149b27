package resolve

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minic/ast"
	"minic/symbols"
)

func labelLoops(t *testing.T, src string) (*ast.Program, error) {
	t.Helper()
	toks, err := ast.NewLexer(strings.NewReader(src)).Tokenize()
	require.NoError(t, err)
	prog, err := ast.ParseProgram(toks)
	require.NoError(t, err)
	ids := symbols.NewIdCounter()
	require.NoError(t, NewIdentifiers(ids).Resolve(prog))
	err = NewLoops(ids).Label(prog)
	return prog, err
}

func TestLabelLoopsStampsWhileAndPropagates(t *testing.T) {
	prog, err := labelLoops(t, `int main(void) {
		while (1) { break; continue; }
		return 0;
	}`)
	require.NoError(t, err)
	fn := prog.Decls[0].(*ast.FuncDecl)
	while := fn.Body.Items[0].(ast.StmtItem).Stmt.(*ast.WhileStmt)
	assert.NotEmpty(t, while.Label)
	body := while.Body.(*ast.CompoundStmt)
	assert.Equal(t, while.Label, body.Items[0].(ast.StmtItem).Stmt.(*ast.BreakStmt).Label)
	assert.Equal(t, while.Label, body.Items[1].(ast.StmtItem).Stmt.(*ast.ContinueStmt).Label)
}

func TestLabelLoopsNestedUsesInnermost(t *testing.T) {
	prog, err := labelLoops(t, `int main(void) {
		while (1) {
			for (;;) { break; }
		}
		return 0;
	}`)
	require.NoError(t, err)
	fn := prog.Decls[0].(*ast.FuncDecl)
	while := fn.Body.Items[0].(ast.StmtItem).Stmt.(*ast.WhileStmt)
	forStmt := while.Body.(*ast.CompoundStmt).Items[0].(ast.StmtItem).Stmt.(*ast.ForStmt)
	brk := forStmt.Body.(*ast.CompoundStmt).Items[0].(ast.StmtItem).Stmt.(*ast.BreakStmt)
	assert.Equal(t, forStmt.Label, brk.Label)
	assert.NotEqual(t, while.Label, forStmt.Label)
}

func TestLabelLoopsBreakOutsideLoopErrors(t *testing.T) {
	_, err := labelLoops(t, "int main(void) { break; return 0; }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "break")
}

func TestLabelLoopsContinueOutsideLoopErrors(t *testing.T) {
	_, err := labelLoops(t, "int main(void) { continue; return 0; }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "continue")
}

func TestLabelLoopsIfDoesNotEstablishLoopContext(t *testing.T) {
	_, err := labelLoops(t, "int main(void) { if (1) { break; } return 0; }")
	require.Error(t, err)
}

func TestLabelLoopsDoWhileAndFor(t *testing.T) {
	prog, err := labelLoops(t, `int main(void) {
		do { continue; } while (0);
		for (int i = 0; i < 1; i = i + 1) { break; }
		return 0;
	}`)
	require.NoError(t, err)
	fn := prog.Decls[0].(*ast.FuncDecl)
	doWhile := fn.Body.Items[0].(ast.StmtItem).Stmt.(*ast.DoWhileStmt)
	assert.NotEmpty(t, doWhile.Label)
	forStmt := fn.Body.Items[1].(ast.StmtItem).Stmt.(*ast.ForStmt)
	assert.NotEmpty(t, forStmt.Label)
	assert.NotEqual(t, doWhile.Label, forStmt.Label)
}
