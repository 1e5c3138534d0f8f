package inputs

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/RyanBlaney/voxprep/audiocache"
	"github.com/RyanBlaney/voxprep/features"
	"github.com/RyanBlaney/voxprep/logging"
	"github.com/RyanBlaney/voxprep/parallel"
)

const (
	// InputsDirName holds one inputs file per speaker below the cache root
	InputsDirName = "inputs"

	// InputsExt is the extension of per-speaker inputs files
	InputsExt = ".msgpack"

	// ArchiveName is the unified archive below the cache root
	ArchiveName = "full_inputs.msgpack.zst"
)

// Config holds inputs generation configuration
type Config struct {
	CacheDir         string  `json:"cache_dir"`
	SampleRate       int     `json:"sample_rate"`
	MaxCountPerClass int     `json:"max_count_per_class"`
	TrainRatio       float64 `json:"train_ratio"`
	MaxFrames        int     `json:"max_frames"` // 0 = unlimited
	MultiThreading   bool    `json:"multi_threading"`
	Workers          int     `json:"workers"`
	Seed             uint64  `json:"seed"`

	// AllowList restricts which speakers get inputs; nil allows every speaker
	AllowList audiocache.SpeakerSet `json:"-"`

	// Speakers is the list StartGeneration walks; nil means every cached speaker
	Speakers []string `json:"speakers,omitempty"`
}

// DefaultConfig returns the default generation configuration rooted at cacheDir
func DefaultConfig(cacheDir string) *Config {
	return &Config{
		CacheDir:         cacheDir,
		SampleRate:       8000,
		MaxCountPerClass: 500,
		TrainRatio:       0.8,
		MultiThreading:   false,
		Workers:          runtime.NumCPU(),
	}
}

// State is the result of generating one speaker
type State int

const (
	StateWritten State = iota
	StateSkippedNotAllowed
	StateSkippedCached
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateWritten:
		return "written"
	case StateSkippedNotAllowed:
		return "skipped_not_allowed"
	case StateSkippedCached:
		return "skipped_cached"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Report summarizes a StartGeneration run
type Report struct {
	Speakers          int    `json:"speakers"`
	Written           int    `json:"written"`
	SkippedNotAllowed int    `json:"skipped_not_allowed"`
	SkippedCached     int    `json:"skipped_cached"`
	Failed            int    `json:"failed"`
	ArchivePath       string `json:"archive_path"`
	ArchiveSpeakers   int    `json:"archive_speakers"`
}

func (r *Report) add(s State) {
	switch s {
	case StateWritten:
		r.Written++
	case StateSkippedNotAllowed:
		r.SkippedNotAllowed++
	case StateSkippedCached:
		r.SkippedCached++
	case StateFailed:
		r.Failed++
	}
}

// Generator turns cached records into normalized per-speaker train/test features
type Generator struct {
	config    *Config
	index     *audiocache.Index
	extractor features.Extractor
	logger    logging.Logger
}

// NewGenerator creates the inputs directory and returns a generator reading from index
func NewGenerator(config *Config, index *audiocache.Index, extractor features.Extractor) (*Generator, error) {
	if config == nil || config.CacheDir == "" {
		return nil, fmt.Errorf("%w: cache directory not set", audiocache.ErrPrecondition)
	}
	if config.SampleRate <= 0 || config.MaxCountPerClass <= 0 {
		return nil, fmt.Errorf("%w: sample rate and max count per class must be positive", audiocache.ErrPrecondition)
	}
	if config.TrainRatio <= 0 || config.TrainRatio > 1 {
		return nil, fmt.Errorf("%w: train ratio must be in (0, 1]: %v", audiocache.ErrPrecondition, config.TrainRatio)
	}
	if index == nil || extractor == nil {
		return nil, fmt.Errorf("%w: index and extractor are required", audiocache.ErrPrecondition)
	}

	g := &Generator{
		config:    config,
		index:     index,
		extractor: extractor,
		logger: logging.WithFields(logging.Fields{
			"component": "inputs_generator",
		}),
	}
	if err := os.MkdirAll(g.InputsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", audiocache.ErrPrecondition, g.InputsDir(), err)
	}
	return g, nil
}

// InputsDir returns the directory of the per-speaker files
func (g *Generator) InputsDir() string {
	return filepath.Join(g.config.CacheDir, InputsDirName)
}

// InputsPath returns the per-speaker file of speaker
func (g *Generator) InputsPath(speaker string) string {
	return filepath.Join(g.InputsDir(), speaker+InputsExt)
}

// ArchivePath returns the unified archive path
func (g *Generator) ArchivePath() string {
	return filepath.Join(g.config.CacheDir, ArchiveName)
}

// speakers returns the active speaker list, sorted
func (g *Generator) speakers() []string {
	if g.config.Speakers == nil {
		return g.index.Speakers()
	}
	out := append([]string(nil), g.config.Speakers...)
	sort.Strings(out)
	return out
}

// newSampler seeds a sampler per speaker and purpose, so results do not depend
// on which worker handles a speaker
func (g *Generator) newSampler(speaker, purpose string) *features.Sampler {
	h := fnv.New64a()
	h.Write([]byte(speaker))
	h.Write([]byte{0})
	h.Write([]byte(purpose))
	return features.NewSeededSampler(g.extractor, g.config.SampleRate, g.config.Seed^h.Sum64()).
		WithMaxFrames(g.config.MaxFrames)
}

// loadSpeaker returns the speaker's records sorted by filename, checking that
// every record derives back to the speaker
func (g *Generator) loadSpeaker(speaker string) ([]*audiocache.AudioRecord, error) {
	table, _, err := g.index.LoadSpeaker(speaker)
	if err != nil {
		return nil, err
	}

	records := make([]*audiocache.AudioRecord, 0, len(table))
	for _, rec := range table {
		if got := rec.SpeakerID(); got != speaker {
			return nil, fmt.Errorf("%w: %s belongs to %q, expected %q", ErrConsistency, rec.Filename, got, speaker)
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Filename < records[j].Filename
	})
	return records, nil
}

// Generate builds the normalized train/test inputs of one speaker. The first
// floor(TrainRatio*N) records (by filename) feed the train split; test features
// are normalized with the train statistics.
func (g *Generator) Generate(ctx context.Context, speaker string) (*SpeakerInputs, error) {
	logger := g.logger.WithContext(ctx).WithFields(logging.Fields{"speaker": speaker})

	records, err := g.loadSpeaker(speaker)
	if err != nil {
		return nil, err
	}

	cutoff := int(float64(len(records)) * g.config.TrainRatio)
	trainRecords, testRecords := records[:cutoff], records[cutoff:]

	train, err := g.newSampler(speaker, "train").Sample(ctx, trainRecords, g.config.MaxCountPerClass)
	if err != nil {
		return nil, err
	}
	test, err := g.newSampler(speaker, "test").Sample(ctx, testRecords, g.config.MaxCountPerClass)
	if err != nil {
		return nil, err
	}

	mean, std, err := TrainStats(train)
	if err != nil {
		return nil, fmt.Errorf("speaker %s (%d train records): %w", speaker, len(trainRecords), err)
	}

	logger.Info("Generated inputs", logging.Fields{
		"records":    len(records),
		"train":      len(train),
		"test":       len(test),
		"mean_train": mean,
		"std_train":  std,
	})

	return &SpeakerInputs{
		SpeakerID: speaker,
		Train:     NormalizeAll(train, mean, std),
		Test:      NormalizeAll(test, mean, std),
		MeanTrain: mean,
		StdTrain:  std,
	}, nil
}

// GenerateAndDump generates and persists one speaker unless it is not allowed
// or its inputs file already exists
func (g *Generator) GenerateAndDump(ctx context.Context, speaker string) (State, error) {
	logger := g.logger.WithContext(ctx).WithFields(logging.Fields{"speaker": speaker})

	if !g.config.AllowList.Contains(speaker) {
		logger.Info("Discarding speaker not in the training set")
		return StateSkippedNotAllowed, nil
	}

	path := g.InputsPath(speaker)
	if _, err := os.Stat(path); err == nil {
		logger.Info("Inputs file already exists", logging.Fields{"path": path})
		return StateSkippedCached, nil
	}

	in, err := g.Generate(ctx, speaker)
	if err != nil {
		logger.Error(err, "Failed to generate inputs")
		return StateFailed, err
	}

	if err := WriteSpeakerInputs(path, in); err != nil {
		logger.Error(err, "Failed to write inputs", logging.Fields{"path": path})
		return StateFailed, err
	}

	logger.Info("[DUMP INPUTS]", logging.Fields{"path": path})
	return StateWritten, nil
}

// StartGeneration runs GenerateAndDump for every active speaker, then merges
// every per-speaker file into the unified archive
func (g *Generator) StartGeneration(ctx context.Context) (*Report, error) {
	speakers := g.speakers()
	report := &Report{Speakers: len(speakers)}

	g.logger.Info("Starting the inputs generation", logging.Fields{
		"speakers":        len(speakers),
		"multi_threading": g.config.MultiThreading,
	})

	if g.config.MultiThreading {
		pool := parallel.NewPool(g.config.Workers)
		states, errs := parallel.Map(ctx, pool, speakers, g.GenerateAndDump)
		for i, s := range states {
			if errors.Is(errs[i], context.Canceled) || errors.Is(errs[i], context.DeadlineExceeded) {
				continue
			}
			report.add(s)
		}
	} else {
		for _, speaker := range speakers {
			if ctx.Err() != nil {
				break
			}
			s, _ := g.GenerateAndDump(ctx, speaker)
			report.add(s)
		}
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	n, err := g.Merge(ctx)
	if err != nil {
		return report, err
	}
	report.ArchivePath = g.ArchivePath()
	report.ArchiveSpeakers = n

	g.logger.Info("Inputs generation finished", logging.Fields{
		"written":             report.Written,
		"skipped_cached":      report.SkippedCached,
		"skipped_not_allowed": report.SkippedNotAllowed,
		"failed":              report.Failed,
		"archive":             report.ArchivePath,
	})

	return report, nil
}

// Merge writes every per-speaker inputs file into the unified archive and
// returns the number of speakers it holds
func (g *Generator) Merge(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(g.InputsDir())
	if err != nil {
		return 0, err
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != InputsExt {
			continue
		}
		files = append(files, filepath.Join(g.InputsDir(), name))
	}
	sort.Strings(files)

	err = WriteArchive(g.ArchivePath(), len(files), func(i int) (*SpeakerInputs, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		in, err := ReadSpeakerInputs(files[i])
		if err != nil {
			return nil, err
		}
		g.logger.Debug("Read inputs", logging.Fields{"path": files[i]})
		return in, nil
	})
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", g.ArchivePath(), err)
	}

	g.logger.Info("[DUMP UNIFIED INPUTS]", logging.Fields{
		"path":     g.ArchivePath(),
		"speakers": len(files),
	})
	return len(files), nil
}

// GenerateForInference samples all of a speaker's records and normalizes the
// result with its own statistics
func (g *Generator) GenerateForInference(ctx context.Context, speaker string) ([]features.FeatureMatrix, error) {
	records, err := g.loadSpeaker(speaker)
	if err != nil {
		return nil, err
	}

	g.logger.Info("Generating the inputs for inference", logging.Fields{
		"speaker": speaker,
		"records": len(records),
	})

	feats, err := g.newSampler(speaker, "inference").Sample(ctx, records, g.config.MaxCountPerClass)
	if err != nil {
		return nil, err
	}

	mean, std, err := TrainStats(feats)
	if err != nil {
		return nil, fmt.Errorf("speaker %s: %w", speaker, err)
	}
	return NormalizeAll(feats, mean, std), nil
}
