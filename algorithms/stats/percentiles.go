package stats

import (
	"fmt"
	"math"
	"sort"
)

// Percentiles computes order statistics over float64 samples.
// A percentile between two ranks is linearly interpolated at h = (n-1)*q on
// the sorted data, the numpy.percentile default (R-7).
type Percentiles struct{}

// NewPercentiles creates a percentile calculator
func NewPercentiles() *Percentiles {
	return &Percentiles{}
}

// CalculatePercentile computes a single percentile value. percentile is in [0, 100].
// data is not modified.
func (p *Percentiles) CalculatePercentile(data []float64, percentile float64) (float64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty data")
	}

	if percentile < 0 || percentile > 100 || math.IsNaN(percentile) {
		return 0, fmt.Errorf("percentile must be between 0 and 100, got %v", percentile)
	}

	values := make([]float64, len(data))
	copy(values, data)
	sort.Float64s(values)

	return linear(values, percentile/100.0), nil
}

func linear(data []float64, q float64) float64 {
	n := len(data)
	if n == 1 {
		return data[0]
	}

	h := float64(n-1) * q
	lower := min(int(math.Floor(h)), n-1)
	upper := min(int(math.Ceil(h)), n-1)
	if lower == upper {
		return data[lower]
	}

	fraction := h - float64(lower)
	return data[lower] + fraction*(data[upper]-data[lower])
}
