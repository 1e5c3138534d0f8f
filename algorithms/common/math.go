package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical functions used across the pipeline, backed by gonum

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// PopStdDev calculates the population standard deviation (divides by n).
// This is numpy's np.std default and what feature normalization expects.
func PopStdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.PopStdDev(data, nil)
}

// Abs returns |x| for every sample
func Abs(data []float64) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = math.Abs(v)
	}
	return out
}

// MaxAbs returns the peak absolute amplitude, 0 for empty input
func MaxAbs(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return math.Max(math.Abs(floats.Max(data)), math.Abs(floats.Min(data)))
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
