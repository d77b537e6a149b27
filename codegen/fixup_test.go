package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minic/symbols"
)

func runFixup(t *testing.T, bytesRequired int, insts []Instruction) []Instruction {
	t.Helper()
	asmTab := symbols.NewAsmTable()
	asmTab.Set("f", &symbols.AsmSymbol{Kind: symbols.AsmFun, Defined: true, BytesRequired: bytesRequired})
	fn := &Function{Name: "f", Instructions: insts}
	NewFixup(asmTab).Run(&Program{TopLevels: []TopLevel{fn}})
	return fn.Instructions
}

func TestFixupPrependsAlignedStackAllocation(t *testing.T) {
	out := runFixup(t, 4, nil)
	require.Len(t, out, 1)
	alloc := out[0].(*AllocateStackInst)
	assert.Equal(t, int64(16), alloc.Bytes)
}

func TestFixupMovMemToMemRoutedThroughR10(t *testing.T) {
	out := runFixup(t, 0, []Instruction{
		&MovInst{Width: symbols.Longword, Src: Stack(-4), Dst: Stack(-8)},
	})
	require.Len(t, out, 3) // alloc + two movs
	mov1 := out[1].(*MovInst)
	mov2 := out[2].(*MovInst)
	assert.Equal(t, RegOp(R10), mov1.Dst)
	assert.Equal(t, RegOp(R10), mov2.Src)
}

func TestFixupIdivImmediateRoutedThroughR10(t *testing.T) {
	out := runFixup(t, 0, []Instruction{
		&IdivInst{Width: symbols.Longword, Operand: Imm(3)},
	})
	require.Len(t, out, 3)
	mov := out[1].(*MovInst)
	idiv := out[2].(*IdivInst)
	assert.Equal(t, RegOp(R10), mov.Dst)
	assert.Equal(t, RegOp(R10), idiv.Operand)
}

func TestFixupMultMemDestinationRoutedThroughR11(t *testing.T) {
	out := runFixup(t, 0, []Instruction{
		&BinaryInst{Op: Mult, Width: symbols.Longword, Src: Imm(2), Dst: Stack(-4)},
	})
	require.Len(t, out, 4)
	assert.Equal(t, RegOp(R11), out[1].(*MovInst).Dst)
	assert.Equal(t, RegOp(R11), out[2].(*BinaryInst).Dst)
	assert.Equal(t, RegOp(R11), out[3].(*MovInst).Src)
}

func TestFixupCmpImmediateDestinationRoutedThroughR11(t *testing.T) {
	out := runFixup(t, 0, []Instruction{
		&CmpInst{Width: symbols.Longword, Src: Stack(-4), Dst: Imm(5)},
	})
	require.Len(t, out, 3)
	mov := out[1].(*MovInst)
	cmp := out[2].(*CmpInst)
	assert.Equal(t, RegOp(R11), mov.Dst)
	assert.Equal(t, RegOp(R11), cmp.Dst)
}

func TestFixupLargeImmediatePushRoutedThroughR10(t *testing.T) {
	out := runFixup(t, 0, []Instruction{
		&PushInst{Operand: Imm(1 << 40)},
	})
	require.Len(t, out, 3)
	mov := out[1].(*MovInst)
	push := out[2].(*PushInst)
	assert.Equal(t, symbols.Quadword, mov.Width)
	assert.Equal(t, RegOp(R10), mov.Dst)
	assert.Equal(t, RegOp(R10), push.Operand)
}

func TestFixupSmallImmediateMovUntouched(t *testing.T) {
	out := runFixup(t, 0, []Instruction{
		&MovInst{Width: symbols.Longword, Src: Imm(5), Dst: RegOp(AX)},
	})
	require.Len(t, out, 2)
	assert.Equal(t, Imm(5), out[1].(*MovInst).Src)
}

func TestFixupMovsxFromImmToMemRoutesBothOperands(t *testing.T) {
	out := runFixup(t, 0, []Instruction{
		&MovsxInst{Src: Imm(5), Dst: Stack(-8)},
	})
	// Imm(5) -> R10 via mov, then Movsx(R10 -> R11), then store R11 -> Stack.
	require.Len(t, out, 4)
	assert.IsType(t, &MovInst{}, out[1])
	movsx := out[2].(*MovsxInst)
	assert.Equal(t, RegOp(R10), movsx.Src)
	assert.Equal(t, RegOp(R11), movsx.Dst)
	final := out[3].(*MovInst)
	assert.Equal(t, RegOp(R11), final.Src)
	assert.Equal(t, symbols.Quadword, final.Width)
}
