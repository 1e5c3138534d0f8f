package inputs

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/voxprep/audiocache"
	"github.com/RyanBlaney/voxprep/features"
)

// edgeExtractor returns the first and last sample of a segment as a 1x2 matrix
type edgeExtractor struct{}

func (edgeExtractor) Extract(segment []float64, _, _ int) (features.FeatureMatrix, error) {
	if len(segment) < 2 {
		return features.FeatureMatrix{}, nil
	}
	return features.FeatureMatrix{Rows: 1, Cols: 2, Data: []float64{segment[0], segment[len(segment)-1]}}, nil
}

// seedCache writes n records per speaker. Record i of a speaker holds the
// samples i*1000 .. i*1000+99 so every feature value identifies its record.
func seedCache(t *testing.T, cacheDir string, speakers map[string]int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(cacheDir, audiocache.CacheDirName), 0o755))

	for speaker, n := range speakers {
		for i := range n {
			filename := filepath.Join("/corpus", speaker, fmt.Sprintf("%s_%03d.wav", speaker, i))
			voice := make([]float64, 100)
			for j := range voice {
				voice[j] = float64(i*1000 + j)
			}
			rec := &audiocache.AudioRecord{Filename: filename, Audio: voice, VoiceOnly: voice}
			require.NoError(t, audiocache.WriteRecord(audiocache.CacheFilename(cacheDir, filename), rec))
		}
	}
}

func newTestGenerator(t *testing.T, speakers map[string]int, tweak func(*Config)) *Generator {
	t.Helper()
	dir := t.TempDir()
	seedCache(t, dir, speakers)

	idx, err := audiocache.NewIndex(dir)
	require.NoError(t, err)

	cfg := DefaultConfig(dir)
	cfg.MaxCountPerClass = 50
	cfg.Seed = 11
	cfg.Workers = 2
	if tweak != nil {
		tweak(cfg)
	}

	g, err := NewGenerator(cfg, idx, edgeExtractor{})
	require.NoError(t, err)
	return g
}

func recordOf(v, mean, std float64) int {
	return int(math.Floor((v*std + mean) / 1000))
}

func TestTrainStats_MeanOfPerMatrixStatistics(t *testing.T) {
	a := features.FeatureMatrix{Rows: 1, Cols: 2, Data: []float64{1, 3}}       // mean 2, std 1
	b := features.FeatureMatrix{Rows: 2, Cols: 2, Data: []float64{2, 2, 2, 6}} // mean 3, std sqrt(3)

	mean, std, err := TrainStats([]features.FeatureMatrix{a, b})
	require.NoError(t, err)
	assert.InDelta(t, 2.5, mean, 1e-12) // not the global 16/6
	assert.InDelta(t, (1+math.Sqrt(3))/2, std, 1e-12)

	_, _, err = TrainStats(nil)
	assert.ErrorIs(t, err, ErrNoTrainingData)

	flat := features.FeatureMatrix{Rows: 1, Cols: 2, Data: []float64{4, 4}}
	_, _, err = TrainStats([]features.FeatureMatrix{flat})
	assert.ErrorIs(t, err, ErrNoTrainingData)
}

func TestGenerate_SplitsByFilenameAndNormalizesWithTrainStats(t *testing.T) {
	g := newTestGenerator(t, map[string]int{"p225": 10}, nil)

	in, err := g.Generate(context.Background(), "p225")
	require.NoError(t, err)

	assert.Equal(t, "p225", in.SpeakerID)
	assert.NotEmpty(t, in.Train)
	assert.NotEmpty(t, in.Test)
	assert.LessOrEqual(t, len(in.Train), 50)
	assert.LessOrEqual(t, len(in.Test), 50)

	// 10 records: the first 8 feed train, the last 2 feed test
	for _, m := range in.Train {
		assert.Equal(t, 2, m.Cols)
		for _, v := range m.Data {
			assert.Less(t, recordOf(v, in.MeanTrain, in.StdTrain), 8)
		}
	}
	for _, m := range in.Test {
		assert.Equal(t, 2, m.Cols)
		for _, v := range m.Data {
			assert.GreaterOrEqual(t, recordOf(v, in.MeanTrain, in.StdTrain), 8)
		}
	}

	// Normalized train matrices have a mean of per-matrix means of zero
	restored := make([]features.FeatureMatrix, len(in.Train))
	for i, m := range in.Train {
		restored[i] = m.Normalize(-in.MeanTrain/in.StdTrain, 1/in.StdTrain)
	}
	mean, std, err := TrainStats(restored)
	require.NoError(t, err)
	assert.InDelta(t, in.MeanTrain, mean, 1e-6)
	assert.InDelta(t, in.StdTrain, std, 1e-6)
}

func TestGenerate_IsDeterministicForASeed(t *testing.T) {
	speakers := map[string]int{"p225": 6}
	a, err := newTestGenerator(t, speakers, nil).Generate(context.Background(), "p225")
	require.NoError(t, err)
	b, err := newTestGenerator(t, speakers, nil).Generate(context.Background(), "p225")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerate_ConsistencyError(t *testing.T) {
	g := newTestGenerator(t, map[string]int{"p225": 3}, nil)

	// A record grouped under p225 whose source path says p226
	stray := &audiocache.AudioRecord{Filename: "/corpus/p226/p226_000.wav", VoiceOnly: []float64{1, 2, 3}}
	path := filepath.Join(g.config.CacheDir, audiocache.CacheDirName, "p225_999_cache.msgpack")
	require.NoError(t, audiocache.WriteRecord(path, stray))

	idx, err := audiocache.NewIndex(g.config.CacheDir)
	require.NoError(t, err)
	g.index = idx

	_, err = g.Generate(context.Background(), "p225")
	assert.ErrorIs(t, err, ErrConsistency)
}

func TestGenerate_SingleRecordHasNoTrainingData(t *testing.T) {
	g := newTestGenerator(t, map[string]int{"p225": 1}, nil)

	state, err := g.GenerateAndDump(context.Background(), "p225")
	assert.Equal(t, StateFailed, state)
	assert.ErrorIs(t, err, ErrNoTrainingData)

	_, statErr := os.Stat(g.InputsPath("p225"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerateAndDump_States(t *testing.T) {
	g := newTestGenerator(t, map[string]int{"p225": 5, "p226": 5}, func(c *Config) {
		c.AllowList = audiocache.NewSpeakerSet("p225")
	})

	state, err := g.GenerateAndDump(context.Background(), "p226")
	require.NoError(t, err)
	assert.Equal(t, StateSkippedNotAllowed, state)
	_, statErr := os.Stat(g.InputsPath("p226"))
	assert.True(t, os.IsNotExist(statErr))

	state, err = g.GenerateAndDump(context.Background(), "p225")
	require.NoError(t, err)
	assert.Equal(t, StateWritten, state)

	before, err := os.ReadFile(g.InputsPath("p225"))
	require.NoError(t, err)

	// A different seed would produce different bytes if anything were recomputed
	g.config.Seed = 99
	state, err = g.GenerateAndDump(context.Background(), "p225")
	require.NoError(t, err)
	assert.Equal(t, StateSkippedCached, state)

	after, err := os.ReadFile(g.InputsPath("p225"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(before, after))

	stored, err := ReadSpeakerInputs(g.InputsPath("p225"))
	require.NoError(t, err)
	assert.Equal(t, "p225", stored.SpeakerID)
}

func TestStartGeneration(t *testing.T) {
	for _, multi := range []bool{false, true} {
		t.Run(fmt.Sprintf("multi_threading=%v", multi), func(t *testing.T) {
			g := newTestGenerator(t, map[string]int{"p225": 5, "p226": 5, "p227": 5, "p228": 1}, func(c *Config) {
				c.MultiThreading = multi
				c.AllowList = audiocache.NewSpeakerSet("p225", "p226", "p228")
			})

			report, err := g.StartGeneration(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 4, report.Speakers)
			assert.Equal(t, 2, report.Written)
			assert.Equal(t, 1, report.SkippedNotAllowed)
			assert.Equal(t, 1, report.Failed)
			assert.Equal(t, 2, report.ArchiveSpeakers)

			unified, err := ReadArchive(report.ArchivePath)
			require.NoError(t, err)
			require.Len(t, unified, 2)
			assert.Contains(t, unified, "p225")
			assert.Contains(t, unified, "p226")

			direct, err := ReadSpeakerInputs(g.InputsPath("p226"))
			require.NoError(t, err)
			assert.Equal(t, direct, unified["p226"])

			// Rerun: everything already on disk is skipped, the archive is rebuilt
			report, err = g.StartGeneration(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 2, report.SkippedCached)
			assert.Equal(t, 2, report.ArchiveSpeakers)
		})
	}
}

func TestStartGeneration_ExplicitSpeakerList(t *testing.T) {
	g := newTestGenerator(t, map[string]int{"p225": 5, "p226": 5}, func(c *Config) {
		c.Speakers = []string{"p226"}
	})

	report, err := g.StartGeneration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Speakers)
	assert.Equal(t, 1, report.Written)
}

func TestGenerateForInference(t *testing.T) {
	g := newTestGenerator(t, map[string]int{"p225": 4}, nil)

	feats, err := g.GenerateForInference(context.Background(), "p225")
	require.NoError(t, err)
	require.NotEmpty(t, feats)

	means := 0.0
	for _, m := range feats {
		means += m.Mean()
	}
	assert.InDelta(t, 0.0, means/float64(len(feats)), 1e-9)
}

func TestNewGenerator_Validates(t *testing.T) {
	idx, err := audiocache.NewIndex(t.TempDir())
	require.NoError(t, err)

	cfg := DefaultConfig(t.TempDir())
	cfg.TrainRatio = 0
	_, err = NewGenerator(cfg, idx, edgeExtractor{})
	assert.ErrorIs(t, err, audiocache.ErrPrecondition)

	_, err = NewGenerator(DefaultConfig(t.TempDir()), idx, nil)
	assert.ErrorIs(t, err, audiocache.ErrPrecondition)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "skipped_not_allowed", StateSkippedNotAllowed.String())
	assert.Equal(t, "skipped_cached", StateSkippedCached.String())
}
