package spectral

import (
	"fmt"
	"math"
)

// MFCC computes Mel-Frequency Cepstral Coefficients from magnitude spectra.
// After Initialize it holds only read-only tables, so one instance can be
// shared by concurrent callers.
type MFCC struct {
	numCoefficients int
	numMelFilters   int
	sampleRate      int
	lowFreq         float64
	highFreq        float64
	useLiftering    bool
	lifterCoeff     float64

	melScale    *MelScale
	filterBank  [][]float64
	dctMatrix   [][]float64
	fftSize     int
	initialized bool
}

// MFCCParams contains parameters for MFCC computation
type MFCCParams struct {
	NumCoefficients int     `json:"num_coefficients"` // Number of MFCC coefficients (default: 13)
	NumMelFilters   int     `json:"num_mel_filters"`  // Number of mel filter bank filters (default: 26)
	LowFreq         float64 `json:"low_freq"`         // Low frequency bound (default: 0)
	HighFreq        float64 `json:"high_freq"`        // High frequency bound (default: sampleRate/2)
	UseLiftering    bool    `json:"use_liftering"`    // Apply liftering
	LifterCoeff     float64 `json:"lifter_coeff"`     // Liftering coefficient (default: 22)
}

// NewMFCC creates a new MFCC computer with default parameters
func NewMFCC(sampleRate, numCoefficients int) *MFCC {
	return NewMFCCWithParams(sampleRate, MFCCParams{
		NumCoefficients: numCoefficients,
		NumMelFilters:   26,
		HighFreq:        float64(sampleRate) / 2.0,
		UseLiftering:    true,
		LifterCoeff:     22.0,
	})
}

// NewMFCCWithParams creates a new MFCC computer with custom parameters
func NewMFCCWithParams(sampleRate int, params MFCCParams) *MFCC {
	if params.NumCoefficients <= 0 {
		params.NumCoefficients = 13
	}
	if params.NumMelFilters <= 0 {
		params.NumMelFilters = 26
	}
	if params.HighFreq <= 0 {
		params.HighFreq = float64(sampleRate) / 2.0
	}
	if params.LifterCoeff <= 0 {
		params.LifterCoeff = 22.0
	}

	return &MFCC{
		numCoefficients: params.NumCoefficients,
		numMelFilters:   params.NumMelFilters,
		sampleRate:      sampleRate,
		lowFreq:         params.LowFreq,
		highFreq:        params.HighFreq,
		useLiftering:    params.UseLiftering,
		lifterCoeff:     params.LifterCoeff,
		melScale:        NewMelScale(),
	}
}

// Initialize prepares the filter bank and DCT tables for the given FFT size
func (mfcc *MFCC) Initialize(fftSize int) error {
	if fftSize <= 0 {
		return fmt.Errorf("invalid FFT size: %d", fftSize)
	}

	mfcc.filterBank = mfcc.melScale.CreateMelFilterBank(
		mfcc.numMelFilters,
		fftSize,
		mfcc.sampleRate,
		mfcc.lowFreq,
		mfcc.highFreq,
	)
	if len(mfcc.filterBank) == 0 {
		return fmt.Errorf("failed to create mel filter bank")
	}

	mfcc.createDCTMatrix()
	mfcc.fftSize = fftSize
	mfcc.initialized = true
	return nil
}

// NumCoefficients returns the number of cepstral coefficients per frame
func (mfcc *MFCC) NumCoefficients() int {
	return mfcc.numCoefficients
}

// Compute calculates MFCC coefficients from one magnitude spectrum
func (mfcc *MFCC) Compute(magnitudeSpectrum []float64) ([]float64, error) {
	if !mfcc.initialized {
		return nil, fmt.Errorf("MFCC not initialized")
	}
	if len(magnitudeSpectrum) == 0 {
		return nil, fmt.Errorf("empty magnitude spectrum")
	}
	if want := mfcc.fftSize/2 + 1; len(magnitudeSpectrum) != want {
		return nil, fmt.Errorf("spectrum has %d bins, expected %d", len(magnitudeSpectrum), want)
	}

	powerSpectrum := make([]float64, len(magnitudeSpectrum))
	for i, mag := range magnitudeSpectrum {
		powerSpectrum[i] = mag * mag
	}

	melSpectrum := mfcc.melScale.ApplyFilterBank(powerSpectrum, mfcc.filterBank)

	// Floor avoids log(0) on digital silence
	logMelSpectrum := make([]float64, len(melSpectrum))
	for i, mel := range melSpectrum {
		if mel > 0 {
			logMelSpectrum[i] = math.Log(mel)
		} else {
			logMelSpectrum[i] = math.Log(1e-10)
		}
	}

	coeffs := mfcc.applyDCT(logMelSpectrum)
	if mfcc.useLiftering {
		coeffs = mfcc.applyLiftering(coeffs)
	}

	return coeffs, nil
}

// ComputeFrames processes multiple frames of magnitude spectra
func (mfcc *MFCC) ComputeFrames(spectrogram [][]float64) ([][]float64, error) {
	if len(spectrogram) == 0 {
		return [][]float64{}, nil
	}

	frames := make([][]float64, len(spectrogram))
	for t, magnitudeSpectrum := range spectrogram {
		coeffs, err := mfcc.Compute(magnitudeSpectrum)
		if err != nil {
			return nil, fmt.Errorf("failed to compute MFCC for frame %d: %w", t, err)
		}
		frames[t] = coeffs
	}

	return frames, nil
}

// createDCTMatrix creates the orthonormal DCT-II matrix
func (mfcc *MFCC) createDCTMatrix() {
	mfcc.dctMatrix = make([][]float64, mfcc.numCoefficients)

	for k := 0; k < mfcc.numCoefficients; k++ {
		mfcc.dctMatrix[k] = make([]float64, mfcc.numMelFilters)

		for n := 0; n < mfcc.numMelFilters; n++ {
			mfcc.dctMatrix[k][n] = math.Cos(math.Pi * float64(k) * (float64(n) + 0.5) / float64(mfcc.numMelFilters))

			if k == 0 {
				mfcc.dctMatrix[k][n] *= math.Sqrt(1.0 / float64(mfcc.numMelFilters))
			} else {
				mfcc.dctMatrix[k][n] *= math.Sqrt(2.0 / float64(mfcc.numMelFilters))
			}
		}
	}
}

func (mfcc *MFCC) applyDCT(logMelSpectrum []float64) []float64 {
	coeffs := make([]float64, mfcc.numCoefficients)

	for k := 0; k < mfcc.numCoefficients; k++ {
		sum := 0.0
		for n := 0; n < len(logMelSpectrum) && n < len(mfcc.dctMatrix[k]); n++ {
			sum += logMelSpectrum[n] * mfcc.dctMatrix[k][n]
		}
		coeffs[k] = sum
	}

	return coeffs
}

// applyLiftering applies sinusoidal liftering; C0 is left untouched
func (mfcc *MFCC) applyLiftering(coeffs []float64) []float64 {
	liftered := make([]float64, len(coeffs))

	for i, coeff := range coeffs {
		if i == 0 {
			liftered[i] = coeff
			continue
		}
		lifter := 1.0 + (mfcc.lifterCoeff/2.0)*math.Sin(math.Pi*float64(i)/mfcc.lifterCoeff)
		liftered[i] = coeff * lifter
	}

	return liftered
}
