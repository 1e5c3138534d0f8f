package windowing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHamming_Coefficients(t *testing.T) {
	sym := NewHamming(5, true).Coefficients()
	require.Len(t, sym, 5)
	assert.InDelta(t, 0.08, sym[0], 1e-12)
	assert.InDelta(t, 1.0, sym[2], 1e-12)
	assert.InDelta(t, 0.08, sym[4], 1e-12)

	periodic := NewHamming(4, false).Coefficients()
	assert.InDelta(t, 0.08, periodic[0], 1e-12)
	assert.InDelta(t, 1.0, periodic[2], 1e-12)

	assert.Equal(t, []float64{1}, NewHamming(1, true).Coefficients())
}

func TestHamming_ApplyInPlace(t *testing.T) {
	h := NewHamming(5, true)
	signal := []float64{1, 1, 1, 1, 1}
	require.NoError(t, h.ApplyInPlace(signal))
	assert.Equal(t, h.Coefficients(), signal)

	assert.Error(t, h.ApplyInPlace(make([]float64, 4)))
	assert.Equal(t, 5, h.Size())
}
