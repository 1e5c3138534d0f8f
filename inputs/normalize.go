package inputs

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/voxprep/features"
)

// TrainStats returns the mean of the per-matrix means and the mean of the
// per-matrix population standard deviations. This is deliberately not the
// global statistic over all values; stored inputs depend on it.
func TrainStats(train []features.FeatureMatrix) (mean, std float64, err error) {
	if len(train) == 0 {
		return 0, 0, ErrNoTrainingData
	}

	means := make([]float64, len(train))
	stds := make([]float64, len(train))
	for i, m := range train {
		means[i] = m.Mean()
		stds[i] = m.PopStdDev()
	}

	mean = stat.Mean(means, nil)
	std = stat.Mean(stds, nil)

	if std == 0 || math.IsNaN(std) || math.IsNaN(mean) {
		return 0, 0, fmt.Errorf("%w: degenerate statistics (mean=%v, std=%v)", ErrNoTrainingData, mean, std)
	}
	return mean, std, nil
}

// NormalizeAll applies (x - mean) / std to every matrix
func NormalizeAll(ms []features.FeatureMatrix, mean, std float64) []features.FeatureMatrix {
	out := make([]features.FeatureMatrix, len(ms))
	for i, m := range ms {
		out[i] = m.Normalize(mean, std)
	}
	return out
}
