package audiocache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/RyanBlaney/voxprep/logging"
	"github.com/RyanBlaney/voxprep/parallel"
	"github.com/RyanBlaney/voxprep/transcode"
)

// Config holds audio cache configuration
type Config struct {
	CacheDir       string `json:"cache_dir"`
	SampleRate     int    `json:"sample_rate"`
	Pattern        string `json:"pattern"`
	MultiThreading bool   `json:"multi_threading"`
	Workers        int    `json:"workers"` // 0 = one per CPU
}

// DefaultConfig returns the default cache configuration rooted at cacheDir
func DefaultConfig(cacheDir string) *Config {
	return &Config{
		CacheDir:       cacheDir,
		SampleRate:     8000,
		Pattern:        DefaultPattern,
		MultiThreading: false,
		Workers:        runtime.NumCPU(),
	}
}

// Outcome is the result of caching one source file
type Outcome int

const (
	OutcomeWritten Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWritten:
		return "written"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// BuildReport counts per-file outcomes of a Build or Update run
type BuildReport struct {
	Total   int `json:"total"`
	Written int `json:"written"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func (r *BuildReport) add(o Outcome) {
	switch o {
	case OutcomeWritten:
		r.Written++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
}

// Cache writes one AudioRecord per source file below <CacheDir>/audio_cache_pkl
type Cache struct {
	config  *Config
	decoder transcode.Decoder
	logger  logging.Logger
}

// NewCache creates a cache that decodes sources with decoder
func NewCache(config *Config, decoder transcode.Decoder) (*Cache, error) {
	if config == nil || config.CacheDir == "" {
		return nil, fmt.Errorf("%w: cache directory not set", ErrPrecondition)
	}
	if config.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive: %d", ErrPrecondition, config.SampleRate)
	}
	if decoder == nil {
		return nil, fmt.Errorf("%w: no decoder", ErrPrecondition)
	}

	return &Cache{
		config:  config,
		decoder: decoder,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_cache",
		}),
	}, nil
}

// Dir returns the directory holding the record files
func (c *Cache) Dir() string {
	return filepath.Join(c.config.CacheDir, CacheDirName)
}

// Build caches every source file found below sourceDir. Files whose record
// already exists are skipped, so repeated builds only add what is missing.
func (c *Cache) Build(ctx context.Context, sourceDir string) (*BuildReport, error) {
	logger := c.logger.WithContext(ctx).WithFields(logging.Fields{
		"function":   "Build",
		"source_dir": sourceDir,
	})

	files, err := FindFiles(sourceDir, c.config.Pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files matching %q in %s", ErrPrecondition, c.config.Pattern, sourceDir)
	}

	if err := os.MkdirAll(c.Dir(), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrPrecondition, c.Dir(), err)
	}

	logger.Info("Found audio files", logging.Fields{
		"count":           len(files),
		"multi_threading": c.config.MultiThreading,
	})

	report := &BuildReport{Total: len(files)}

	if c.config.MultiThreading {
		pool := parallel.NewPool(c.config.Workers)
		outcomes, errs := parallel.Map(ctx, pool, files, c.DumpOne)
		for i, o := range outcomes {
			if errors.Is(errs[i], context.Canceled) || errors.Is(errs[i], context.DeadlineExceeded) {
				continue
			}
			report.add(o)
		}
	} else {
		for i, filename := range files {
			if ctx.Err() != nil {
				break
			}
			logger.Debug("Caching file", logging.Fields{
				"progress": fmt.Sprintf("%d/%d", i+1, len(files)),
				"file":     filename,
			})
			o, _ := c.DumpOne(ctx, filename)
			report.add(o)
		}
	}

	logger.Info("Cache build finished", logging.Fields{
		"total":   report.Total,
		"written": report.Written,
		"skipped": report.Skipped,
		"failed":  report.Failed,
	})

	return report, ctx.Err()
}

// Update caches files from an additional source directory, typically new
// speakers. Existing records are left untouched.
func (c *Cache) Update(ctx context.Context, extraDir string) (*BuildReport, error) {
	c.logger.Info("Updating cache from additional source", logging.Fields{
		"source_dir": extraDir,
	})
	return c.Build(ctx, extraDir)
}

// DumpOne caches a single source file. An existing record is never rewritten.
// Decode failures are logged and reported as OutcomeFailed with a *DecodeError.
func (c *Cache) DumpOne(ctx context.Context, filename string) (Outcome, error) {
	target := CacheFilename(c.config.CacheDir, filename)
	logger := c.logger.WithContext(ctx).WithFields(logging.Fields{
		"file": filename,
	})

	if _, err := os.Stat(target); err == nil {
		logger.Debug("[FILE ALREADY EXISTS]", logging.Fields{"target": target})
		return OutcomeSkipped, nil
	}

	if err := ctx.Err(); err != nil {
		return OutcomeFailed, err
	}

	data, err := c.decoder.DecodeFile(ctx, filename)
	if err != nil {
		derr := &DecodeError{Filename: filename, Err: err}
		logger.Error(derr, "[DUMP AUDIO ERROR SKIPPING FILENAME]")
		return OutcomeFailed, derr
	}

	sampleRate := data.SampleRate
	if sampleRate <= 0 {
		sampleRate = c.config.SampleRate
	}

	rec, err := NewRecord(filename, data.PCM, sampleRate)
	if err != nil {
		derr := &DecodeError{Filename: filename, Err: err}
		logger.Error(derr, "[DUMP AUDIO ERROR SKIPPING FILENAME]")
		return OutcomeFailed, derr
	}

	if err := WriteRecord(target, rec); err != nil {
		logger.Error(err, "Failed to write cache record", logging.Fields{"target": target})
		return OutcomeFailed, fmt.Errorf("write %s: %w", target, err)
	}

	logger.Debug("[DUMP AUDIO]", logging.Fields{
		"target":         target,
		"left_blank_ms":  rec.LeftBlankMs,
		"right_blank_ms": rec.RightBlankMs,
	})
	return OutcomeWritten, nil
}

// Reset removes the whole cache root so the next Build starts from scratch
func (c *Cache) Reset() error {
	c.logger.Warn("Wiping cache", logging.Fields{"cache_dir": c.config.CacheDir})
	if err := os.RemoveAll(c.config.CacheDir); err != nil {
		return fmt.Errorf("wipe %s: %w", c.config.CacheDir, err)
	}
	return os.MkdirAll(c.config.CacheDir, 0o755)
}
