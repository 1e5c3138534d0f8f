package features

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/RyanBlaney/voxprep/audiocache"
	"github.com/RyanBlaney/voxprep/logging"
)

// Sampler draws random voiced sub-segments from a record pool and extracts
// features from them. It is not safe for concurrent use; give every goroutine
// its own Sampler.
type Sampler struct {
	extractor  Extractor
	sampleRate int
	maxFrames  int
	rng        *rand.Rand
	logger     logging.Logger
}

// NewSampler creates a sampler that feeds segments at sampleRate to extractor.
// A nil rng is seeded from the runtime.
func NewSampler(extractor Extractor, sampleRate int, rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Sampler{
		extractor:  extractor,
		sampleRate: sampleRate,
		rng:        rng,
		logger: logging.WithFields(logging.Fields{
			"component": "feature_sampler",
		}),
	}
}

// NewSeededSampler creates a sampler with a deterministic random source
func NewSeededSampler(extractor Extractor, sampleRate int, seed uint64) *Sampler {
	return NewSampler(extractor, sampleRate, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// WithMaxFrames limits the frames the extractor may use per segment
func (s *Sampler) WithMaxFrames(maxFrames int) *Sampler {
	s.maxFrames = maxFrames
	return s
}

// Sample makes count draws. Each draw picks a record uniformly (with
// replacement), cuts [floor(low), floor(high)) out of its voice-only audio with
// low and high uniform in [1, len), and keeps the extracted matrix if it is
// non-empty. Extractor errors count as empty draws. The result may hold fewer
// than count matrices; an empty pool yields none.
func (s *Sampler) Sample(ctx context.Context, records []*audiocache.AudioRecord, count int) ([]FeatureMatrix, error) {
	out := make([]FeatureMatrix, 0, max(count, 0))
	if len(records) == 0 || count <= 0 {
		return out, nil
	}

	empty, failed := 0, 0
	for range count {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		rec := records[s.rng.IntN(len(records))]
		segment := s.cut(rec.VoiceOnly)

		m, err := s.extractor.Extract(segment, s.sampleRate, s.maxFrames)
		if err != nil {
			failed++
			s.logger.Debug("Extractor failed, dropping draw", logging.Fields{
				"file":  rec.Filename,
				"error": err.Error(),
			})
			continue
		}
		if m.Empty() {
			empty++
			continue
		}
		out = append(out, m)
	}

	s.logger.Debug("Sampling finished", logging.Fields{
		"draws":  count,
		"kept":   len(out),
		"empty":  empty,
		"failed": failed,
	})

	return out, nil
}

func (s *Sampler) cut(voice []float64) []float64 {
	n := len(voice)
	if n <= 1 {
		return voice[:0]
	}

	span := float64(n - 1)
	a := 1 + s.rng.Float64()*span
	b := 1 + s.rng.Float64()*span
	lo := int(math.Floor(math.Min(a, b)))
	hi := int(math.Floor(math.Max(a, b)))
	return voice[lo:hi]
}
