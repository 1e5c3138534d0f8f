package spectral

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMelScale_RoundTrip(t *testing.T) {
	ms := NewMelScale()
	for _, hz := range []float64{0, 100, 700, 1000, 4000} {
		assert.InDelta(t, hz, ms.MelToHz(ms.HzToMel(hz)), 1e-9)
	}
	assert.InDelta(t, 1000.0, ms.HzToMel(1000), 0.5)
}

func TestMelScale_FilterBankShape(t *testing.T) {
	bank := NewMelScale().CreateMelFilterBank(26, 256, 8000, 0, 4000)
	require.Len(t, bank, 26)

	for i, filter := range bank {
		require.Len(t, filter, 129)
		peak := 0.0
		for _, w := range filter {
			assert.GreaterOrEqual(t, w, 0.0)
			peak = math.Max(peak, w)
		}
		assert.LessOrEqual(t, peak, 1.0, "filter %d", i)
	}

	assert.Nil(t, NewMelScale().CreateMelFilterBank(0, 256, 8000, 0, 4000))
}

func TestMFCC_RequiresInitialize(t *testing.T) {
	m := NewMFCC(8000, 13)
	_, err := m.Compute(make([]float64, 129))
	assert.Error(t, err)

	assert.Error(t, m.Initialize(0))
	require.NoError(t, m.Initialize(256))
	assert.Equal(t, 13, m.NumCoefficients())

	_, err = m.Compute(make([]float64, 100))
	assert.Error(t, err, "bin count must match the FFT size")

	_, err = m.Compute(nil)
	assert.Error(t, err)
}

func TestMFCC_SilenceIsFlat(t *testing.T) {
	m := NewMFCC(8000, 13)
	require.NoError(t, m.Initialize(256))

	coeffs, err := m.Compute(make([]float64, 129))
	require.NoError(t, err)
	require.Len(t, coeffs, 13)

	// A flat log-mel spectrum only has energy in C0
	assert.InDelta(t, math.Sqrt(26)*math.Log(1e-10), coeffs[0], 1e-6)
	for _, c := range coeffs[1:] {
		assert.InDelta(t, 0.0, c, 1e-9)
	}
}

func TestMFCC_ComputeFrames(t *testing.T) {
	m := NewMFCC(8000, 13)
	require.NoError(t, m.Initialize(256))

	result, err := NewSTFT().ComputePadded(sine(440, 8000, 2000), 200, 80, 256, 8000, nil)
	require.NoError(t, err)

	frames, err := m.ComputeFrames(result.Magnitude)
	require.NoError(t, err)
	require.Len(t, frames, result.TimeFrames)
	for _, f := range frames {
		assert.Len(t, f, 13)
	}

	empty, err := m.ComputeFrames(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
