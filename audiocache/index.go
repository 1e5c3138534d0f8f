package audiocache

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/RyanBlaney/voxprep/logging"
)

// Metadata identifies one cached sentence
type Metadata struct {
	SpeakerID  string `json:"speaker_id"`
	SentenceID string `json:"sentence_id"`
	Filename   string `json:"filename"`
}

// CacheTable maps source filenames to their records
type CacheTable map[string]*AudioRecord

// MetadataIndex maps speaker -> sentence -> metadata
type MetadataIndex map[string]map[string]Metadata

// SpeakerSet selects speakers for Load. A nil set selects every speaker;
// an empty non-nil set selects none.
type SpeakerSet map[string]struct{}

// NewSpeakerSet returns a non-nil set holding ids
func NewSpeakerSet(ids ...string) SpeakerSet {
	s := make(SpeakerSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is in the set. A nil set contains everything.
func (s SpeakerSet) Contains(id string) bool {
	if s == nil {
		return true
	}
	_, ok := s[id]
	return ok
}

// Index is the directory listing of a cache, grouped by speaker
type Index struct {
	dir       string
	files     []string
	bySpeaker map[string][]string
	speakers  []string
	logger    logging.Logger
}

// NewIndex scans <cacheDir>/audio_cache_pkl once. A missing directory yields an empty index.
func NewIndex(cacheDir string) (*Index, error) {
	idx := &Index{
		dir:       filepath.Join(cacheDir, CacheDirName),
		bySpeaker: make(map[string][]string),
		logger: logging.WithFields(logging.Fields{
			"component": "cache_index",
		}),
	}

	err := filepath.WalkDir(idx.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), CacheSuffix) || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		idx.files = append(idx.files, path)
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("scan %s: %w", idx.dir, err)
	}

	sort.Strings(idx.files)
	for _, f := range idx.files {
		speaker := SpeakerIDFromCacheFile(f)
		idx.bySpeaker[speaker] = append(idx.bySpeaker[speaker], f)
	}
	for speaker := range idx.bySpeaker {
		idx.speakers = append(idx.speakers, speaker)
	}
	sort.Strings(idx.speakers)

	idx.logger.Debug("Cache index built", logging.Fields{
		"files":    len(idx.files),
		"speakers": len(idx.speakers),
	})

	return idx, nil
}

// Speakers returns every speaker with at least one record, sorted
func (i *Index) Speakers() []string {
	out := make([]string, len(i.speakers))
	copy(out, i.speakers)
	return out
}

// Files returns the record files of speaker
func (i *Index) Files(speaker string) []string {
	return i.bySpeaker[speaker]
}

// Len returns the number of record files
func (i *Index) Len() int {
	return len(i.files)
}

// Load reads the records of the selected speakers. Unknown speakers contribute
// nothing. Corrupt files and records without a filename are dropped.
func (i *Index) Load(subset SpeakerSet) (CacheTable, MetadataIndex, error) {
	var files []string
	if subset == nil {
		files = i.files
	} else {
		ids := make([]string, 0, len(subset))
		for id := range subset {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			files = append(files, i.bySpeaker[id]...)
		}
	}

	table := make(CacheTable, len(files))
	for _, f := range files {
		rec, err := ReadRecord(f)
		if errors.Is(err, ErrCorruptRecord) {
			i.logger.Warn("Skipping corrupt cache record", logging.Fields{
				"file":  f,
				"error": err.Error(),
			})
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		if rec.Filename == "" {
			continue
		}
		table[rec.Filename] = rec
	}

	return table, BuildMetadata(table), nil
}

// LoadSpeaker reads the records of a single speaker
func (i *Index) LoadSpeaker(speaker string) (CacheTable, MetadataIndex, error) {
	return i.Load(NewSpeakerSet(speaker))
}

// BuildMetadata derives the speaker/sentence index from the table keys.
// When two files share a sentence id the lexicographically last one wins.
func BuildMetadata(table CacheTable) MetadataIndex {
	filenames := make([]string, 0, len(table))
	for filename := range table {
		filenames = append(filenames, filename)
	}
	sort.Strings(filenames)

	meta := make(MetadataIndex)
	for _, filename := range filenames {
		speaker := SpeakerIDFromPath(filename)
		sentence := SentenceIDFromPath(filename)
		if meta[speaker] == nil {
			meta[speaker] = make(map[string]Metadata)
		}
		meta[speaker][sentence] = Metadata{
			SpeakerID:  speaker,
			SentenceID: sentence,
			Filename:   filename,
		}
	}
	return meta
}

