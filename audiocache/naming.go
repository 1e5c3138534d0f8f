package audiocache

import (
	"path/filepath"
	"strings"
)

const (
	// CacheDirName is the directory under the cache root holding one record per source file
	CacheDirName = "audio_cache_pkl"

	// CacheSuffix terminates every record file name
	CacheSuffix = "_cache.msgpack"
)

// SpeakerIDFromPath returns the speaker of a source file: the name of its parent directory
func SpeakerIDFromPath(path string) string {
	return filepath.Base(filepath.Dir(path))
}

// SentenceIDFromPath returns the second "_" token of the base name with the
// extension removed, or "" when the name has a single token
func SentenceIDFromPath(path string) string {
	parts := strings.Split(filepath.Base(path), "_")
	if len(parts) < 2 {
		return ""
	}
	sentence, _, _ := strings.Cut(parts[1], ".")
	return sentence
}

// SpeakerIDFromCacheFile returns the speaker a record file is grouped under:
// the first "_" token of its base name
func SpeakerIDFromCacheFile(path string) string {
	speaker, _, _ := strings.Cut(filepath.Base(path), "_")
	return speaker
}

// CacheFilename maps a source file to its record path below cacheDir.
// Everything from the first "." of the base name on is dropped.
func CacheFilename(cacheDir, sourcePath string) string {
	stem, _, _ := strings.Cut(filepath.Base(sourcePath), ".")
	return filepath.Join(cacheDir, CacheDirName, stem+CacheSuffix)
}
