package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/RyanBlaney/voxprep/logging"
)

// ErrUnsupportedWAV marks RIFF files whose encoding the native reader cannot decode
var ErrUnsupportedWAV = errors.New("unsupported wav encoding")

const (
	wavFormatPCM        = 0x0001
	wavFormatExtensible = 0xFFFE
)

// WAVHeader is the parsed fmt chunk of a RIFF/WAVE file
type WAVHeader struct {
	AudioFormat   uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// WAVDecoder reads integer PCM WAV files without external tools,
// downmixes to mono and resamples to the target rate
type WAVDecoder struct {
	config *DecoderConfig
}

// NewWAVDecoder creates a native WAV decoder
func NewWAVDecoder(config *DecoderConfig) *WAVDecoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &WAVDecoder{config: config}
}

// DecodeFile decodes a WAV file to mono PCM at the target rate
func (d *WAVDecoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := logging.WithContext(ctx).WithFields(logging.Fields{
		"component": "wav_decoder",
		"filename":  filename,
	})

	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, samples, err := ReadWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Debug("WAV header parsed", logging.Fields{
		"input_sample_rate": header.SampleRate,
		"input_channels":    header.Channels,
		"bits_per_sample":   header.BitsPerSample,
	})

	mono := downmix(samples, header.Channels)

	if d.config.MaxDuration > 0 {
		limit := int(d.config.MaxDuration.Seconds() * float64(header.SampleRate))
		if limit < len(mono) {
			mono = mono[:limit]
		}
	}

	pcm, err := resample(mono, header.SampleRate, d.config.TargetSampleRate, d.config.ResampleQuality)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if len(pcm) == 0 {
		return nil, ErrNoSamples
	}

	return &AudioData{
		PCM:        pcm,
		SampleRate: d.config.TargetSampleRate,
		Channels:   1,
		Duration:   durationOf(len(pcm), d.config.TargetSampleRate),
		Codec:      "pcm",
	}, nil
}

// ReadWAV decodes an integer PCM WAV stream and returns interleaved samples scaled to [-1, 1]
func ReadWAV(r io.ReadSeeker) (*WAVHeader, []float64, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		if err := dec.Err(); err != nil {
			return nil, nil, fmt.Errorf("invalid wav file: %w", err)
		}
		return nil, nil, fmt.Errorf("invalid wav file")
	}

	header := &WAVHeader{
		AudioFormat:   dec.WavAudioFormat,
		Channels:      int(dec.NumChans),
		SampleRate:    int(dec.SampleRate),
		BitsPerSample: int(dec.BitDepth),
	}
	if !supportedWAV(header) {
		return nil, nil, fmt.Errorf("%w: format 0x%04x, %d bits", ErrUnsupportedWAV, header.AudioFormat, header.BitsPerSample)
	}
	if header.SampleRate <= 0 {
		return nil, nil, fmt.Errorf("invalid sample rate: %d", header.SampleRate)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, nil, fmt.Errorf("read pcm data: %w", err)
	}

	// Truncated files keep every complete frame
	data := buf.Data[:len(buf.Data)-len(buf.Data)%header.Channels]

	return header, scaleSamples(data, header.BitsPerSample), nil
}

// supportedWAV reports whether go-audio decodes the encoding as integer PCM.
// Extensible files do not expose their subformat, so 32-bit ones may be float.
func supportedWAV(h *WAVHeader) bool {
	switch h.AudioFormat {
	case wavFormatPCM:
		return h.BitsPerSample == 8 || h.BitsPerSample == 16 || h.BitsPerSample == 24 || h.BitsPerSample == 32
	case wavFormatExtensible:
		return h.BitsPerSample == 8 || h.BitsPerSample == 16 || h.BitsPerSample == 24
	default:
		return false
	}
}

func scaleSamples(data []int, bitDepth int) []float64 {
	samples := make([]float64, len(data))
	if bitDepth == 8 {
		// 8-bit PCM is unsigned
		for i, v := range data {
			samples[i] = (float64(v) - 128.0) / 128.0
		}
		return samples
	}

	full := float64(int64(1) << (bitDepth - 1))
	for i, v := range data {
		samples[i] = float64(v) / full
	}
	return samples
}

// downmix averages interleaved channels into one
func downmix(samples []float64, channels int) []float64 {
	if channels <= 1 {
		return samples
	}

	mono := make([]float64, len(samples)/channels)
	for i := range mono {
		sum := 0.0
		for c := range channels {
			sum += samples[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}

// resampleQuality maps the decoder quality names onto the resampler presets
func resampleQuality(quality string) resampling.QualitySpec {
	switch quality {
	case "fast":
		return resampling.QualitySpec{Preset: resampling.QualityLow}
	case "medium":
		return resampling.QualitySpec{Preset: resampling.QualityMedium}
	default:
		return resampling.QualitySpec{Preset: resampling.QualityHigh}
	}
}

// resample converts mono samples between rates with the soxr-style resampler
func resample(samples []float64, inRate, outRate int, quality string) ([]float64, error) {
	if inRate == outRate || len(samples) == 0 {
		return samples, nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(inRate),
		OutputRate: float64(outRate),
		Channels:   1,
		Quality:    resampleQuality(quality),
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler %d->%d: %w", inRate, outRate, err)
	}

	out, err := r.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("resample %d->%d: %w", inRate, outRate, err)
	}
	return out, nil
}
