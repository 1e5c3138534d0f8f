package features

import (
	"fmt"

	"github.com/RyanBlaney/voxprep/algorithms/common"
	"github.com/RyanBlaney/voxprep/algorithms/filters"
	"github.com/RyanBlaney/voxprep/algorithms/spectral"
	"github.com/RyanBlaney/voxprep/algorithms/windowing"
)

// Extractor turns an audio segment into a feature matrix. An empty matrix with
// a nil error means the segment was too short to yield any row. maxFrames <= 0
// means unlimited.
type Extractor interface {
	Extract(segment []float64, sampleRate, maxFrames int) (FeatureMatrix, error)
}

// MFCCConfig configures the default extractor
type MFCCConfig struct {
	NumCoefficients int     `json:"num_coefficients"`
	NumMelFilters   int     `json:"num_mel_filters"`
	WindowMs        float64 `json:"window_ms"`
	HopMs           float64 `json:"hop_ms"`
	DeltaWindow     int     `json:"delta_window"` // N in the regression delta formula
	StackFrames     int     `json:"stack_frames"` // Frames concatenated into one row
	STFTWorkers     int     `json:"stft_workers"` // 1 when the caller parallelizes
	PreEmphasis     float64 `json:"pre_emphasis"` // 0 disables
}

// DefaultMFCCConfig returns 13 MFCCs with deltas and delta-deltas over 25ms
// frames every 10ms, stacked by 10: rows of 390 values
func DefaultMFCCConfig() *MFCCConfig {
	return &MFCCConfig{
		NumCoefficients: 13,
		NumMelFilters:   26,
		WindowMs:        25,
		HopMs:           10,
		DeltaWindow:     2,
		StackFrames:     10,
		STFTWorkers:     1,
		PreEmphasis:     0.97,
	}
}

// Width returns the number of values per output row
func (c *MFCCConfig) Width() int {
	return c.NumCoefficients * 3 * c.StackFrames
}

// MFCCExtractor computes stacked MFCC + delta + delta-delta rows.
// All tables are built up front so Extract is safe for concurrent use.
type MFCCExtractor struct {
	config     *MFCCConfig
	sampleRate int
	windowSize int
	hopSize    int
	fftSize    int
	window     *windowing.Hamming
	emphasis   *filters.PreEmphasis
	stft       *spectral.STFT
	mfcc       *spectral.MFCC
}

// NewMFCCExtractor builds an extractor for audio at sampleRate
func NewMFCCExtractor(sampleRate int, config *MFCCConfig) (*MFCCExtractor, error) {
	if config == nil {
		config = DefaultMFCCConfig()
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %d", sampleRate)
	}
	if config.StackFrames <= 0 || config.DeltaWindow <= 0 {
		return nil, fmt.Errorf("stack frames and delta window must be positive")
	}

	windowSize := int(float64(sampleRate) * config.WindowMs / 1000.0)
	hopSize := int(float64(sampleRate) * config.HopMs / 1000.0)
	if windowSize <= 0 || hopSize <= 0 {
		return nil, fmt.Errorf("window %vms / hop %vms too short at %d Hz", config.WindowMs, config.HopMs, sampleRate)
	}
	fftSize := common.NextPowerOfTwo(windowSize)

	mfcc := spectral.NewMFCCWithParams(sampleRate, spectral.MFCCParams{
		NumCoefficients: config.NumCoefficients,
		NumMelFilters:   config.NumMelFilters,
		UseLiftering:    true,
	})
	if err := mfcc.Initialize(fftSize); err != nil {
		return nil, err
	}

	var emphasis *filters.PreEmphasis
	if config.PreEmphasis > 0 {
		pe, err := filters.NewPreEmphasis(config.PreEmphasis)
		if err != nil {
			return nil, err
		}
		emphasis = pe
	}

	return &MFCCExtractor{
		config:     config,
		sampleRate: sampleRate,
		windowSize: windowSize,
		hopSize:    hopSize,
		fftSize:    fftSize,
		window:     windowing.NewHamming(windowSize, false),
		emphasis:   emphasis,
		stft:       spectral.NewSTFTWithWorkers(config.STFTWorkers),
		mfcc:       mfcc,
	}, nil
}

// Width returns the number of values per output row
func (e *MFCCExtractor) Width() int {
	return e.mfcc.NumCoefficients() * 3 * e.config.StackFrames
}

// MinSamples returns the shortest segment that yields one row
func (e *MFCCExtractor) MinSamples() int {
	return e.windowSize + (e.config.StackFrames-1)*e.hopSize
}

// Extract computes the stacked feature rows of segment
func (e *MFCCExtractor) Extract(segment []float64, sampleRate, maxFrames int) (FeatureMatrix, error) {
	if sampleRate != e.sampleRate {
		return FeatureMatrix{}, fmt.Errorf("extractor built for %d Hz, got %d Hz", e.sampleRate, sampleRate)
	}
	if len(segment) < e.MinSamples() {
		return FeatureMatrix{}, nil
	}

	if e.emphasis != nil {
		segment = e.emphasis.Apply(segment)
	}

	spectrogram, err := e.stft.ComputePadded(segment, e.windowSize, e.hopSize, e.fftSize, sampleRate, e.window)
	if err != nil {
		return FeatureMatrix{}, err
	}

	frames := spectrogram.Magnitude
	if maxFrames > 0 && len(frames) > maxFrames {
		frames = frames[:maxFrames]
	}

	coeffs, err := e.mfcc.ComputeFrames(frames)
	if err != nil {
		return FeatureMatrix{}, err
	}

	d1 := Deltas(coeffs, e.config.DeltaWindow)
	d2 := Deltas(d1, e.config.DeltaWindow)

	stack := e.config.StackFrames
	numRows := len(coeffs) / stack
	if numRows == 0 {
		return FeatureMatrix{}, nil
	}

	width := e.Width()
	out := FeatureMatrix{Rows: numRows, Cols: width, Data: make([]float64, 0, numRows*width)}
	for r := range numRows {
		for f := r * stack; f < (r+1)*stack; f++ {
			out.Data = append(out.Data, coeffs[f]...)
			out.Data = append(out.Data, d1[f]...)
			out.Data = append(out.Data, d2[f]...)
		}
	}

	return out, nil
}

// Deltas computes regression deltas over +/-n frames, repeating the edge frames
func Deltas(frames [][]float64, n int) [][]float64 {
	if len(frames) == 0 {
		return [][]float64{}
	}

	denom := 0.0
	for i := 1; i <= n; i++ {
		denom += float64(i * i)
	}
	denom *= 2

	last := len(frames) - 1
	out := make([][]float64, len(frames))
	for t := range frames {
		out[t] = make([]float64, len(frames[t]))
		for i := 1; i <= n; i++ {
			next := frames[min(t+i, last)]
			prev := frames[max(t-i, 0)]
			for k := range out[t] {
				out[t][k] += float64(i) * (next[k] - prev[k])
			}
		}
		for k := range out[t] {
			out[t][k] /= denom
		}
	}
	return out
}
