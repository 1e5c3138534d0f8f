package audiocache

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// AudioRecord is the cached form of one source file
type AudioRecord struct {
	Filename     string    `msgpack:"filename"`
	Audio        []float64 `msgpack:"audio"`
	VoiceOnly    []float64 `msgpack:"audio_voice_only"`
	LeftBlankMs  float64   `msgpack:"left_blank_duration_ms"`
	RightBlankMs float64   `msgpack:"right_blank_duration_ms"`
}

// SpeakerID returns the speaker derived from the record's source path
func (r *AudioRecord) SpeakerID() string {
	return SpeakerIDFromPath(r.Filename)
}

// SentenceID returns the sentence derived from the record's source path
func (r *AudioRecord) SentenceID() string {
	return SentenceIDFromPath(r.Filename)
}

// WriteRecord stores rec at path atomically
func WriteRecord(path string, rec *AudioRecord) error {
	return WriteAtomic(path, func(w io.Writer) error {
		return msgpack.NewEncoder(w).Encode(rec)
	})
}

// ReadRecord loads the record stored at path
func ReadRecord(path string) (*AudioRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rec AudioRecord
	if err := msgpack.NewDecoder(bufio.NewReader(f)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptRecord, path, err)
	}
	return &rec, nil
}

// WriteAtomic writes path through a temp file in the same directory and renames
// it into place, so readers only ever see complete files
func WriteAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	// CreateTemp opens with 0600
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
