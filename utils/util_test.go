package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssertPanicsOnFalse(t *testing.T) {
	assert.Panics(t, func() { Assert(false, "bad: %d", 1) })
	assert.NotPanics(t, func() { Assert(true, "fine") })
}

func TestShouldNotReachHerePanics(t *testing.T) {
	assert.PanicsWithValue(t, "internal invariant violated: oops", func() { ShouldNotReachHere("oops") })
}

func TestAbs(t *testing.T) {
	assert.Equal(t, 5, Abs(-5))
	assert.Equal(t, 5, Abs(5))
	assert.Equal(t, 0, Abs(0))
}

func TestAlignUp(t *testing.T) {
	cases := []struct{ n, align, want int64 }{
		{0, 16, 0},
		{1, 16, 16},
		{16, 16, 16},
		{17, 16, 32},
		{4, 8, 8},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, AlignUp(c.n, c.align))
	}
}

func TestFloorAlign(t *testing.T) {
	cases := []struct{ n, align, want int64 }{
		{-4, 4, -4},
		{-5, 4, -8},
		{-8, 8, -8},
		{-1, 8, -8},
		{0, 4, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FloorAlign(c.n, c.align))
	}
}
