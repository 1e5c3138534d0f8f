// Package config loads the pipeline configuration from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/RyanBlaney/voxprep/audiocache"
	"github.com/RyanBlaney/voxprep/inputs"
	"github.com/RyanBlaney/voxprep/logging"
	"github.com/RyanBlaney/voxprep/storage"
	"github.com/RyanBlaney/voxprep/transcode"
)

// ErrAudioDirRequired is returned when a command needs VOXPREP_AUDIO_DIR and it is unset
var ErrAudioDirRequired = errors.New("config: VOXPREP_AUDIO_DIR is required")

// Config holds all configuration for the pipeline
type Config struct {
	// Paths
	AudioDir      string `env:"VOXPREP_AUDIO_DIR" json:"audio_dir"`
	ExtraAudioDir string `env:"VOXPREP_EXTRA_AUDIO_DIR" json:"extra_audio_dir,omitempty"`
	CacheDir      string `env:"VOXPREP_CACHE_DIR, required" json:"cache_dir" validate:"required"`
	AudioPattern  string `env:"VOXPREP_AUDIO_PATTERN, default=*.wav" json:"audio_pattern" validate:"required"`

	// Decoding
	SampleRate    int           `env:"VOXPREP_SAMPLE_RATE, default=8000" json:"sample_rate" validate:"gt=0"`
	Decoder       string        `env:"VOXPREP_DECODER, default=auto" json:"decoder" validate:"oneof=auto ffmpeg wav"`
	FFmpegPath    string        `env:"VOXPREP_FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath   string        `env:"VOXPREP_FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	DecodeTimeout time.Duration `env:"VOXPREP_DECODE_TIMEOUT, default=30s" json:"decode_timeout"`

	// Inputs generation
	MaxCountPerClass int     `env:"VOXPREP_MAX_COUNT_PER_CLASS, default=500" json:"max_count_per_class" validate:"gt=0"`
	TrainRatio       float64 `env:"VOXPREP_TRAIN_RATIO, default=0.8" json:"train_ratio" validate:"gt=0,lte=1"`
	MaxFrames        int     `env:"VOXPREP_MAX_FRAMES, default=0" json:"max_frames" validate:"gte=0"`
	TrainingSpeakers string  `env:"VOXPREP_TRAINING_SPEAKERS" json:"training_speakers,omitempty"` // comma list, empty = all
	Seed             uint64  `env:"VOXPREP_SEED, default=0" json:"seed"`

	// Concurrency
	MultiThreading bool `env:"VOXPREP_MULTI_THREADING, default=false" json:"multi_threading"`
	Workers        int  `env:"VOXPREP_WORKERS, default=0" json:"workers" validate:"gte=0"` // 0 = one per CPU

	// Optional S3 publication
	S3Bucket           string `env:"VOXPREP_S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"VOXPREP_S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"VOXPREP_S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3Prefix           string `env:"VOXPREP_S3_PREFIX" json:"s3_prefix,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging
	LogLevel  string `env:"VOXPREP_LOG_LEVEL, default=info" json:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat string `env:"VOXPREP_LOG_FORMAT, default=text" json:"log_format" validate:"oneof=text json"`
}

// Load reads an optional .env file, then the environment, and validates the result
func Load(ctx context.Context) (*Config, error) {
	// A missing .env is normal outside development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := &Config{}
	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// RequireAudioDir fails unless VOXPREP_AUDIO_DIR is set
func (c *Config) RequireAudioDir() error {
	if c.AudioDir == "" {
		return ErrAudioDirRequired
	}
	return nil
}

// S3Enabled returns true if a bucket is configured
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// TrainingSpeakerSet parses VOXPREP_TRAINING_SPEAKERS. An empty list yields
// nil, which allows every speaker.
func (c *Config) TrainingSpeakerSet() audiocache.SpeakerSet {
	var ids []string
	for _, id := range strings.Split(c.TrainingSpeakers, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return audiocache.NewSpeakerSet(ids...)
}

// DecoderConfig returns the decoder settings
func (c *Config) DecoderConfig() *transcode.DecoderConfig {
	dc := transcode.DefaultDecoderConfig()
	dc.TargetSampleRate = c.SampleRate
	dc.FFmpegPath = c.FFmpegPath
	dc.FFprobePath = c.FFprobePath
	dc.Timeout = c.DecodeTimeout
	return dc
}

// CacheConfig returns the audio cache settings
func (c *Config) CacheConfig() *audiocache.Config {
	cc := audiocache.DefaultConfig(c.CacheDir)
	cc.SampleRate = c.SampleRate
	cc.Pattern = c.AudioPattern
	cc.MultiThreading = c.MultiThreading
	cc.Workers = c.Workers
	return cc
}

// InputsConfig returns the inputs generation settings
func (c *Config) InputsConfig() *inputs.Config {
	ic := inputs.DefaultConfig(c.CacheDir)
	ic.SampleRate = c.SampleRate
	ic.MaxCountPerClass = c.MaxCountPerClass
	ic.TrainRatio = c.TrainRatio
	ic.MaxFrames = c.MaxFrames
	ic.MultiThreading = c.MultiThreading
	if c.Workers > 0 {
		ic.Workers = c.Workers
	}
	ic.Seed = c.Seed
	ic.AllowList = c.TrainingSpeakerSet()
	return ic
}

// S3Config returns the publication settings
func (c *Config) S3Config() storage.S3Config {
	return storage.S3Config{
		Bucket:          c.S3Bucket,
		Region:          c.S3Region,
		Endpoint:        c.S3Endpoint,
		Prefix:          c.S3Prefix,
		AccessKeyID:     c.AWSAccessKeyID,
		SecretAccessKey: c.AWSSecretAccessKey,
	}
}

// NewLogger creates a logger from the configuration. "json" selects the zap
// backend, anything else the colored text logger.
func (c *Config) NewLogger() (logging.Logger, error) {
	level := logging.ParseLevel(c.LogLevel)

	if strings.ToLower(c.LogFormat) == "json" {
		zl, err := logging.NewZapLogger(level)
		if err != nil {
			return nil, fmt.Errorf("config: build zap logger: %w", err)
		}
		return zl, nil
	}

	logger := logging.NewDefaultLogger()
	logger.SetLevel(level)
	return logger, nil
}

// String returns a string representation of the config with credentials omitted
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{AudioDir: %s, CacheDir: %s, SampleRate: %d, Decoder: %s, MaxCountPerClass: %d, TrainRatio: %v, MultiThreading: %v, Workers: %d, S3Bucket: %s, LogLevel: %s, LogFormat: %s}",
		c.AudioDir,
		c.CacheDir,
		c.SampleRate,
		c.Decoder,
		c.MaxCountPerClass,
		c.TrainRatio,
		c.MultiThreading,
		c.Workers,
		c.S3Bucket,
		c.LogLevel,
		c.LogFormat,
	)
}
