package inputs

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/RyanBlaney/voxprep/features"
)

func sampleInputs(id string) *SpeakerInputs {
	m := features.FeatureMatrix{Rows: 1, Cols: 2, Data: []float64{-1, 1}}
	return &SpeakerInputs{
		SpeakerID: id,
		Train:     []features.FeatureMatrix{m, m},
		Test:      []features.FeatureMatrix{m},
		MeanTrain: 0.5,
		StdTrain:  2,
	}
}

func TestArchive_StreamsEntries(t *testing.T) {
	var buf bytes.Buffer
	aw, err := NewArchiveWriter(&buf, 2)
	require.NoError(t, err)
	require.NoError(t, aw.Write(sampleInputs("p225")))
	require.NoError(t, aw.Write(sampleInputs("p226")))
	assert.Error(t, aw.Write(sampleInputs("p227")), "more entries than announced")
	require.NoError(t, aw.Close())

	ar, err := NewArchiveReader(&buf)
	require.NoError(t, err)
	defer ar.Close()
	assert.Equal(t, 2, ar.Speakers())

	first, err := ar.Next()
	require.NoError(t, err)
	assert.Equal(t, sampleInputs("p225"), first)

	_, err = ar.Next()
	require.NoError(t, err)

	_, err = ar.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestArchive_CloseChecksCount(t *testing.T) {
	aw, err := NewArchiveWriter(io.Discard, 2)
	require.NoError(t, err)
	require.NoError(t, aw.Write(sampleInputs("p225")))
	assert.Error(t, aw.Close())
}

func TestArchive_RejectsForeignStreams(t *testing.T) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, msgpack.NewEncoder(zw).Encode(&ArchiveHeader{Magic: "something-else", Version: 1}))
	require.NoError(t, zw.Close())

	_, err = NewArchiveReader(&buf)
	assert.Error(t, err)
}

func TestArchive_TruncatedIsNotEOF(t *testing.T) {
	// Header announces two entries, stream carries one
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	enc := msgpack.NewEncoder(zw)
	require.NoError(t, enc.Encode(&ArchiveHeader{Magic: archiveMagic, Version: archiveVersion, Speakers: 2}))
	require.NoError(t, enc.Encode(sampleInputs("p225")))
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), ArchiveName)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	_, err = ReadArchive(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestWriteArchive_Atomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ArchiveName)
	ids := []string{"p225", "p226", "p227"}

	require.NoError(t, WriteArchive(path, len(ids), func(i int) (*SpeakerInputs, error) {
		return sampleInputs(ids[i]), nil
	}))

	unified, err := ReadArchive(path)
	require.NoError(t, err)
	assert.Len(t, unified, 3)
	assert.Equal(t, 2.0, unified["p227"].StdTrain)

	// A failing load leaves the previous archive in place
	err = WriteArchive(path, 1, func(int) (*SpeakerInputs, error) {
		return nil, io.ErrUnexpectedEOF
	})
	assert.Error(t, err)

	unified, err = ReadArchive(path)
	require.NoError(t, err)
	assert.Len(t, unified, 3)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
