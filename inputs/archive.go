package inputs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/RyanBlaney/voxprep/audiocache"
)

const (
	archiveMagic   = "voxprep-inputs"
	archiveVersion = 1
)

// ArchiveHeader precedes the speaker entries of a unified archive
type ArchiveHeader struct {
	Magic    string `msgpack:"magic"`
	Version  int    `msgpack:"version"`
	Speakers int    `msgpack:"speakers"`
}

// ArchiveWriter streams speaker entries into a zstd-compressed msgpack archive.
// Entries are written one at a time, so the archive size is not bounded by memory.
type ArchiveWriter struct {
	zw      *zstd.Encoder
	enc     *msgpack.Encoder
	want    int
	written int
}

// NewArchiveWriter writes the header for speakers entries to w
func NewArchiveWriter(w io.Writer, speakers int) (*ArchiveWriter, error) {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return nil, err
	}

	enc := msgpack.NewEncoder(zw)
	if err := enc.Encode(&ArchiveHeader{Magic: archiveMagic, Version: archiveVersion, Speakers: speakers}); err != nil {
		zw.Close()
		return nil, err
	}

	return &ArchiveWriter{zw: zw, enc: enc, want: speakers}, nil
}

// Write appends one speaker entry
func (a *ArchiveWriter) Write(in *SpeakerInputs) error {
	if a.written >= a.want {
		return fmt.Errorf("archive header announced %d speakers", a.want)
	}
	if err := a.enc.Encode(in); err != nil {
		return err
	}
	a.written++
	return nil
}

// Close flushes the compressor. It fails if fewer entries than announced were written.
func (a *ArchiveWriter) Close() error {
	if err := a.zw.Close(); err != nil {
		return err
	}
	if a.written != a.want {
		return fmt.Errorf("archive has %d of %d announced speakers", a.written, a.want)
	}
	return nil
}

// ArchiveReader streams speaker entries back out of an archive
type ArchiveReader struct {
	zr     *zstd.Decoder
	dec    *msgpack.Decoder
	header ArchiveHeader
	read   int
}

// NewArchiveReader reads and checks the archive header
func NewArchiveReader(r io.Reader) (*ArchiveReader, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}

	dec := msgpack.NewDecoder(zr)
	var header ArchiveHeader
	if err := dec.Decode(&header); err != nil {
		zr.Close()
		return nil, fmt.Errorf("read archive header: %w", err)
	}
	if header.Magic != archiveMagic || header.Version != archiveVersion {
		zr.Close()
		return nil, fmt.Errorf("not a v%d inputs archive (magic %q, version %d)", archiveVersion, header.Magic, header.Version)
	}

	return &ArchiveReader{zr: zr, dec: dec, header: header}, nil
}

// Speakers returns the number of entries announced by the header
func (a *ArchiveReader) Speakers() int {
	return a.header.Speakers
}

// Next returns the next entry, or io.EOF after the last one
func (a *ArchiveReader) Next() (*SpeakerInputs, error) {
	if a.read >= a.header.Speakers {
		return nil, io.EOF
	}

	var in SpeakerInputs
	if err := a.dec.Decode(&in); err != nil {
		// A short stream is corruption, not the end of the archive
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read archive entry %d: %w", a.read, err)
	}
	a.read++
	return &in, nil
}

// Close releases the decompressor
func (a *ArchiveReader) Close() {
	a.zr.Close()
}

// WriteArchive writes entries to path atomically. Entries are loaded one at a
// time through load so only one speaker is held in memory.
func WriteArchive(path string, n int, load func(i int) (*SpeakerInputs, error)) error {
	return audiocache.WriteAtomic(path, func(w io.Writer) error {
		aw, err := NewArchiveWriter(w, n)
		if err != nil {
			return err
		}
		for i := range n {
			in, err := load(i)
			if err != nil {
				aw.zw.Close()
				return err
			}
			if err := aw.Write(in); err != nil {
				aw.zw.Close()
				return err
			}
		}
		return aw.Close()
	})
}

// ReadArchive loads a whole unified archive into memory
func ReadArchive(path string) (UnifiedInputs, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ar, err := NewArchiveReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer ar.Close()

	unified := make(UnifiedInputs, ar.Speakers())
	for {
		in, err := ar.Next()
		if errors.Is(err, io.EOF) {
			return unified, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		unified[in.SpeakerID] = in
	}
}
