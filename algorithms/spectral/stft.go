package spectral

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sync"

	"github.com/RyanBlaney/voxprep/logging"
)

// STFT provides Short-Time Fourier Transform functionality
type STFT struct {
	fft     *FFT
	workers int
	logger  logging.Logger
}

// STFTResult holds the magnitude spectrogram of a signal
type STFTResult struct {
	Magnitude      [][]float64 `json:"magnitude"`       // Time x Frequency magnitude matrix
	TimeFrames     int         `json:"time_frames"`     // Number of time frames
	FreqBins       int         `json:"freq_bins"`       // Number of frequency bins
	SampleRate     int         `json:"sample_rate"`     // Sample rate
	WindowSize     int         `json:"window_size"`     // Analysis window size
	FFTSize        int         `json:"fft_size"`        // FFT length after zero-padding
	HopSize        int         `json:"hop_size"`        // Hop size between frames
	FreqResolution float64     `json:"freq_resolution"` // Frequency resolution (Hz/bin)
	TimeResolution float64     `json:"time_resolution"` // Time resolution (seconds/frame)
}

// Window interface for windowing functions
type Window interface {
	ApplyInPlace(signal []float64) error
}

// NewSTFT creates a new STFT calculator that sizes its worker count to the workload
func NewSTFT() *STFT {
	return NewSTFTWithWorkers(0)
}

// NewSTFTWithWorkers creates an STFT calculator using at most workers goroutines
// per call. workers <= 0 picks a count from the number of CPUs. Callers that
// already run one STFT per CPU should pass 1.
func NewSTFTWithWorkers(workers int) *STFT {
	return &STFT{
		fft:     NewFFT(),
		workers: workers,
		logger:  logging.WithFields(logging.Fields{"component": "stft"}),
	}
}

// NumFrames returns how many full frames fit in a signal of the given length
func NumFrames(signalLen, windowSize, hopSize int) int {
	if windowSize <= 0 || hopSize <= 0 || signalLen < windowSize {
		return 0
	}
	return (signalLen-windowSize)/hopSize + 1
}

// ComputeWithWindow computes the magnitude STFT, applying window to every frame
func (s *STFT) ComputeWithWindow(signal []float64, windowSize int, hopSize int, sampleRate int, window Window) (*STFTResult, error) {
	return s.ComputePadded(signal, windowSize, hopSize, windowSize, sampleRate, window)
}

// ComputePadded is ComputeWithWindow with every windowed frame zero-padded to
// fftSize before the transform
func (s *STFT) ComputePadded(signal []float64, windowSize, hopSize, fftSize, sampleRate int, window Window) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}

	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	if fftSize < windowSize {
		return nil, fmt.Errorf("fft size (%d) smaller than window size (%d)", fftSize, windowSize)
	}

	numFrames := NumFrames(len(signal), windowSize, hopSize)
	if numFrames <= 0 {
		return nil, fmt.Errorf("signal too short for given window size and hop size")
	}

	// Positive frequencies only
	freqBins := fftSize/2 + 1

	magnitude := make([][]float64, numFrames)
	for i := range numFrames {
		magnitude[i] = make([]float64, freqBins)
	}

	numWorkers := s.getOptimalWorkerCount(numFrames)

	jobs := make(chan int, numFrames)
	errs := make(chan error, numWorkers)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Reuse frame buffer for this worker; the tail past windowSize stays zero
			frameBuffer := make([]float64, fftSize)
			frame := frameBuffer[:windowSize]

			for frameIdx := range jobs {
				start := frameIdx * hopSize
				copy(frame, signal[start:start+windowSize])

				if window != nil {
					if err := window.ApplyInPlace(frame); err != nil {
						errs <- fmt.Errorf("frame %d: %w", frameIdx, err)
						// Drain so the other workers finish
						for range jobs {
						}
						return
					}
				}

				fftResult := s.fft.Compute(frameBuffer)
				for i := range freqBins {
					magnitude[frameIdx][i] = cmplx.Abs(fftResult[i])
				}
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameIdx
	}
	close(jobs)

	wg.Wait()
	close(errs)

	if err := <-errs; err != nil {
		s.logger.Error(err, "Failed to window STFT frame", logging.Fields{
			"window_size": windowSize,
		})
		return nil, err
	}

	return &STFTResult{
		Magnitude:      magnitude,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		FFTSize:        fftSize,
		HopSize:        hopSize,
		FreqResolution: float64(sampleRate) / float64(fftSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}, nil
}

// getOptimalWorkerCount determines the number of workers for one call
func (s *STFT) getOptimalWorkerCount(numFrames int) int {
	if s.workers > 0 {
		return max(1, min(s.workers, numFrames))
	}

	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	// Cap medium workloads at 8
	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
