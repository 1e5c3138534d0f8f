package transcode

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoSamples is returned when a file decodes to zero samples
var ErrNoSamples = errors.New("no audio samples decoded")

// AudioData represents decoded mono audio
type AudioData struct {
	PCM        []float64     `json:"-"` // Raw PCM data in [-1, 1]
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
	Codec      string        `json:"codec,omitempty"`
}

// Decoder turns an audio file into mono PCM at the configured sample rate
type Decoder interface {
	DecodeFile(ctx context.Context, filename string) (*AudioData, error)
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"`
	MaxDuration      time.Duration `json:"max_duration"`
	ResampleQuality  string        `json:"resample_quality"` // "fast", "medium", "high"
	FFmpegPath       string        `json:"ffmpeg_path"`      // Path to ffmpeg binary
	FFprobePath      string        `json:"ffprobe_path"`     // Path to ffprobe binary
	Timeout          time.Duration `json:"timeout"`          // Timeout for ffmpeg operations

	// Loudness normalization is off for speaker data: level is a speaker trait
	EnableNormalization bool    `json:"enable_normalization"`
	NormalizationMethod string  `json:"normalization_method"` // "loudnorm", "dynaudnorm"
	TargetLUFS          float64 `json:"target_lufs"`
	TargetPeak          float64 `json:"target_peak"`
	LoudnessRange       float64 `json:"loudness_range"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate:    8000,
		MaxDuration:         0, // No limit
		ResampleQuality:     "high",
		FFmpegPath:          "ffmpeg",  // Assume in PATH
		FFprobePath:         "ffprobe", // Assume in PATH
		Timeout:             30 * time.Second,
		EnableNormalization: false,
		NormalizationMethod: "loudnorm",
		TargetLUFS:          -23.0, // EBU R128 standard
		TargetPeak:          -2.0,
		LoudnessRange:       7.0,
	}
}

// Validate checks the static configuration values
func (c *DecoderConfig) Validate() error {
	if c.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive: %d", c.TargetSampleRate)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %v", c.Timeout)
	}
	switch c.ResampleQuality {
	case "", "fast", "medium", "high":
	default:
		return fmt.Errorf("unknown resample quality %q", c.ResampleQuality)
	}
	return nil
}

// Decoder kinds accepted by New
const (
	KindAuto   = "auto"
	KindFFmpeg = "ffmpeg"
	KindWAV    = "wav"
)

// New returns the decoder for kind. "auto" decodes .wav files natively and
// hands every other extension to ffmpeg.
func New(kind string, config *DecoderConfig) (Decoder, error) {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch strings.ToLower(kind) {
	case KindAuto, "":
		return &AutoDecoder{
			wav:    NewWAVDecoder(config),
			ffmpeg: NewFFmpegDecoder(config),
		}, nil
	case KindFFmpeg:
		return NewFFmpegDecoder(config), nil
	case KindWAV:
		return NewWAVDecoder(config), nil
	default:
		return nil, fmt.Errorf("unknown decoder %q", kind)
	}
}

// AutoDecoder dispatches on the file extension
type AutoDecoder struct {
	wav    *WAVDecoder
	ffmpeg *FFmpegDecoder
}

// DecodeFile decodes filename with the native WAV reader when possible.
// WAV files in encodings the native reader does not handle fall back to ffmpeg.
func (a *AutoDecoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".wav") {
		return a.ffmpeg.DecodeFile(ctx, filename)
	}

	data, err := a.wav.DecodeFile(ctx, filename)
	if errors.Is(err, ErrUnsupportedWAV) {
		return a.ffmpeg.DecodeFile(ctx, filename)
	}
	return data, err
}

func durationOf(samples, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
