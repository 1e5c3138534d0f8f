package audiocache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNaming(t *testing.T) {
	tests := []struct {
		path     string
		speaker  string
		sentence string
	}{
		{"/data/VCTK/p225/p225_001.wav", "p225", "001"},
		{"corpus/spk1/spk1_intro.take2.wav", "spk1", "intro"},
		{"corpus/spk1/lonely.wav", "spk1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.speaker, SpeakerIDFromPath(tt.path))
			assert.Equal(t, tt.sentence, SentenceIDFromPath(tt.path))
		})
	}
}

func TestCacheFilename(t *testing.T) {
	assert.Equal(t,
		filepath.Join("/cache", CacheDirName, "p225_001_cache.msgpack"),
		CacheFilename("/cache", "/data/p225/p225_001.wav"))

	// Everything after the first dot is dropped
	assert.Equal(t,
		filepath.Join("/cache", CacheDirName, "p225_001_cache.msgpack"),
		CacheFilename("/cache", "/data/p225/p225_001.take2.wav"))

	assert.Equal(t, "p225", SpeakerIDFromCacheFile("/cache/audio_cache_pkl/p225_001_cache.msgpack"))
}

func TestFindFiles(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{
		"p226/p226_002.wav",
		"p225/p225_002.wav",
		"p225/p225_001.wav",
		"p225/notes.txt",
		"nested/deeper/p227/p227_001.wav",
	} {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}

	files, err := FindFiles(root, "*.wav")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "nested/deeper/p227/p227_001.wav"),
		filepath.Join(root, "p225/p225_001.wav"),
		filepath.Join(root, "p225/p225_002.wav"),
		filepath.Join(root, "p226/p226_002.wav"),
	}, files)

	files, err = FindFiles(root, "*.flac")
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = FindFiles(filepath.Join(root, "missing"), "*.wav")
	assert.ErrorIs(t, err, ErrPrecondition)

	_, err = FindFiles(root, "[")
	assert.ErrorIs(t, err, ErrPrecondition)
}
