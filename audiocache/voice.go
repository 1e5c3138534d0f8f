package audiocache

import (
	"math"

	"github.com/RyanBlaney/voxprep/algorithms/common"
	"github.com/RyanBlaney/voxprep/algorithms/stats"
)

// VoicePercentile is the amplitude percentile a sample must exceed to count as voice
const VoicePercentile = 95.0

// VoiceWindow locates speech inside a decoded file. Last is exclusive.
type VoiceWindow struct {
	First        int
	Last         int
	LeftBlankMs  float64
	RightBlankMs float64
}

// DetectVoice finds the first and last samples whose magnitude exceeds the
// 95th percentile of |audio|. Blank durations are floored to whole milliseconds.
func DetectVoice(audio []float64, sampleRate int) (VoiceWindow, error) {
	if sampleRate <= 0 || common.MaxAbs(audio) == 0 {
		return VoiceWindow{}, ErrSilentAudio
	}

	energy := common.Abs(audio)
	threshold, err := stats.NewPercentiles().CalculatePercentile(energy, VoicePercentile)
	if err != nil {
		return VoiceWindow{}, err
	}

	first, last := -1, -1
	for i, e := range energy {
		if e > threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return VoiceWindow{}, ErrSilentAudio
	}

	sr := float64(sampleRate)
	return VoiceWindow{
		First:        first,
		Last:         last,
		LeftBlankMs:  math.Floor(1000.0 * float64(first) / sr),
		RightBlankMs: math.Floor(1000.0 * float64(len(audio)-last) / sr),
	}, nil
}

// NewRecord builds the cache record for a decoded file
func NewRecord(filename string, audio []float64, sampleRate int) (*AudioRecord, error) {
	win, err := DetectVoice(audio, sampleRate)
	if err != nil {
		return nil, err
	}

	return &AudioRecord{
		Filename:     filename,
		Audio:        audio,
		VoiceOnly:    audio[win.First:win.Last],
		LeftBlankMs:  win.LeftBlankMs,
		RightBlankMs: win.RightBlankMs,
	}, nil
}
