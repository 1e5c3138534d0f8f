package audiocache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// speechLike returns 40 samples: silence, a loud onset at 10, a body of 0.3,
// a loud offset at 30, then silence
func speechLike() []float64 {
	audio := make([]float64, 40)
	for i := 11; i < 30; i++ {
		audio[i] = 0.3
	}
	audio[10] = 1.0
	audio[30] = -0.95
	return audio
}

func TestDetectVoice(t *testing.T) {
	// threshold = 0.3 + 0.05*(0.95-0.3): only samples 10 and 30 exceed it
	win, err := DetectVoice(speechLike(), 3000)
	require.NoError(t, err)

	assert.Equal(t, 10, win.First)
	assert.Equal(t, 30, win.Last)
	assert.Equal(t, 3.0, win.LeftBlankMs)  // floor(10000/3000)
	assert.Equal(t, 3.0, win.RightBlankMs) // floor(1000*(40-30)/3000)
}

func TestDetectVoice_Silent(t *testing.T) {
	_, err := DetectVoice(make([]float64, 100), 8000)
	assert.ErrorIs(t, err, ErrSilentAudio)

	flat := []float64{0.5, -0.5, 0.5, -0.5}
	_, err = DetectVoice(flat, 8000)
	assert.ErrorIs(t, err, ErrSilentAudio)

	_, err = DetectVoice(nil, 8000)
	assert.ErrorIs(t, err, ErrSilentAudio)
}

func TestNewRecord_VoiceOnlyExcludesLastIndex(t *testing.T) {
	audio := speechLike()
	rec, err := NewRecord("/data/p225/p225_001.wav", audio, 3000)
	require.NoError(t, err)

	assert.Equal(t, audio[10:30], rec.VoiceOnly)
	assert.Len(t, rec.VoiceOnly, 20)
	assert.Equal(t, "p225", rec.SpeakerID())
	assert.Equal(t, "001", rec.SentenceID())
}

func TestRecordReadWrite(t *testing.T) {
	rec, err := NewRecord("/data/p225/p225_001.wav", speechLike(), 3000)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "p225_001_cache.msgpack")
	require.NoError(t, WriteRecord(path, rec))

	got, err := ReadRecord(path)
	require.NoError(t, err)
	assert.Equal(t, rec.Filename, got.Filename)
	assert.Equal(t, rec.VoiceOnly, got.VoiceOnly)
	assert.Equal(t, rec.LeftBlankMs, got.LeftBlankMs)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".*tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temp files must not survive a successful write")
}
