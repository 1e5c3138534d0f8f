package stats

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatePercentile_MatchesNumpy(t *testing.T) {
	// Expected values from numpy.percentile(data, q).
	data := []float64{4, 1, 3, 2}

	tests := []struct {
		q    float64
		want float64
	}{
		{95, 3.85},
		{50, 2.5},
		{0, 1},
		{100, 4},
		{10, 1.3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("q%v", tt.q), func(t *testing.T) {
			got, err := NewPercentiles().CalculatePercentile(data, tt.q)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}

	// Input must not be reordered.
	assert.Equal(t, []float64{4, 1, 3, 2}, data)
}

func TestCalculatePercentile_Errors(t *testing.T) {
	p := NewPercentiles()

	_, err := p.CalculatePercentile(nil, 50)
	assert.Error(t, err)

	_, err = p.CalculatePercentile([]float64{1}, 101)
	assert.Error(t, err)

	_, err = p.CalculatePercentile([]float64{1, 2}, -1)
	assert.Error(t, err)
}

func TestCalculatePercentile_SingleValue(t *testing.T) {
	got, err := NewPercentiles().CalculatePercentile([]float64{0.25}, 95)
	require.NoError(t, err)
	assert.Equal(t, 0.25, got)
}
