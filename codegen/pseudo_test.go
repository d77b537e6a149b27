package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minic/ast"
	"minic/symbols"
)

func TestPseudoReplacerAssignsDistinctStackSlots(t *testing.T) {
	syms := symbols.NewTable()
	syms.Set("a", &symbols.Symbol{Type: ast.TInt, Kind: symbols.AttrLocal})
	syms.Set("b", &symbols.Symbol{Type: ast.TLong, Kind: symbols.AttrLocal})
	asmTab := symbols.NewAsmTable()
	asmTab.Set("f", &symbols.AsmSymbol{Kind: symbols.AsmFun, Defined: true})

	fn := &Function{Name: "f", Instructions: []Instruction{
		&MovInst{Width: symbols.Longword, Src: Imm(1), Dst: Pseudo("a")},
		&MovInst{Width: symbols.Quadword, Src: Imm(2), Dst: Pseudo("b")},
	}}
	NewPseudoReplacer(syms, asmTab).Run(&Program{TopLevels: []TopLevel{fn}})

	mov0 := fn.Instructions[0].(*MovInst)
	mov1 := fn.Instructions[1].(*MovInst)
	require.True(t, mov0.Dst.IsStack())
	require.True(t, mov1.Dst.IsStack())
	assert.NotEqual(t, mov0.Dst.Offset(), mov1.Dst.Offset())
	assert.Negative(t, mov0.Dst.Offset())
	assert.Negative(t, mov1.Dst.Offset())
}

func TestPseudoReplacerRoutesStaticsToData(t *testing.T) {
	syms := symbols.NewTable()
	syms.Set("g", &symbols.Symbol{Type: ast.TInt, Kind: symbols.AttrStatic, Global: true})
	asmTab := symbols.NewAsmTable()
	asmTab.Set("f", &symbols.AsmSymbol{Kind: symbols.AsmFun, Defined: true})
	asmTab.Set("g", &symbols.AsmSymbol{Kind: symbols.AsmObj, Width: symbols.Longword, IsStatic: false})

	fn := &Function{Name: "f", Instructions: []Instruction{
		&MovInst{Width: symbols.Longword, Src: Imm(1), Dst: Pseudo("g")},
	}}
	NewPseudoReplacer(syms, asmTab).Run(&Program{TopLevels: []TopLevel{fn}})

	mov := fn.Instructions[0].(*MovInst)
	assert.True(t, mov.Dst.IsData())
	assert.Equal(t, "g", mov.Dst.Name())
}

func TestPseudoReplacerReusesOffsetForSameName(t *testing.T) {
	syms := symbols.NewTable()
	syms.Set("a", &symbols.Symbol{Type: ast.TInt, Kind: symbols.AttrLocal})
	asmTab := symbols.NewAsmTable()
	asmTab.Set("f", &symbols.AsmSymbol{Kind: symbols.AsmFun, Defined: true})

	fn := &Function{Name: "f", Instructions: []Instruction{
		&MovInst{Width: symbols.Longword, Src: Imm(1), Dst: Pseudo("a")},
		&MovInst{Width: symbols.Longword, Src: Pseudo("a"), Dst: Pseudo("a")},
	}}
	NewPseudoReplacer(syms, asmTab).Run(&Program{TopLevels: []TopLevel{fn}})

	mov0 := fn.Instructions[0].(*MovInst)
	mov1 := fn.Instructions[1].(*MovInst)
	assert.Equal(t, mov0.Dst.Offset(), mov1.Src.Offset())
	assert.Equal(t, mov0.Dst.Offset(), mov1.Dst.Offset())
}

func TestPseudoReplacerSetsBytesRequired(t *testing.T) {
	syms := symbols.NewTable()
	syms.Set("a", &symbols.Symbol{Type: ast.TLong, Kind: symbols.AttrLocal})
	asmTab := symbols.NewAsmTable()
	asmTab.Set("f", &symbols.AsmSymbol{Kind: symbols.AsmFun, Defined: true})

	fn := &Function{Name: "f", Instructions: []Instruction{
		&MovInst{Width: symbols.Quadword, Src: Imm(1), Dst: Pseudo("a")},
	}}
	NewPseudoReplacer(syms, asmTab).Run(&Program{TopLevels: []TopLevel{fn}})

	sym, ok := asmTab.Lookup("f")
	require.True(t, ok)
	assert.Equal(t, 8, sym.BytesRequired)
}
