package filters

import "fmt"

// PreEmphasis implements the first-order high-pass filter used ahead of
// cepstral analysis:
//
//	y[n] = x[n] - α*x[n-1]
//
// Typical α for speech is 0.95-0.97. The filter keeps no state between calls,
// so every segment is filtered independently and one instance may be shared
// across goroutines.
type PreEmphasis struct {
	coefficient float64
}

// NewPreEmphasis creates a pre-emphasis filter with coefficient α in [0, 1)
func NewPreEmphasis(coefficient float64) (*PreEmphasis, error) {
	if coefficient < 0 || coefficient >= 1 {
		return nil, fmt.Errorf("coefficient must be in [0, 1), got %f", coefficient)
	}
	return &PreEmphasis{coefficient: coefficient}, nil
}

// NewPreEmphasisDefault creates a pre-emphasis filter with the usual speech coefficient (0.97)
func NewPreEmphasisDefault() *PreEmphasis {
	return &PreEmphasis{coefficient: 0.97}
}

// Coefficient returns α
func (pe *PreEmphasis) Coefficient() float64 {
	return pe.coefficient
}

// Apply returns a filtered copy of signal. The first sample passes through unchanged.
func (pe *PreEmphasis) Apply(signal []float64) []float64 {
	out := make([]float64, len(signal))
	if len(signal) == 0 {
		return out
	}

	out[0] = signal[0]
	for n := 1; n < len(signal); n++ {
		out[n] = signal[n] - pe.coefficient*signal[n-1]
	}
	return out
}

// GetLowFrequencyGain returns the gain at DC: 1 - α
func (pe *PreEmphasis) GetLowFrequencyGain() float64 {
	return 1.0 - pe.coefficient
}

// GetHighFrequencyGain returns the gain at Nyquist: 1 + α
func (pe *PreEmphasis) GetHighFrequencyGain() float64 {
	return 1.0 + pe.coefficient
}
