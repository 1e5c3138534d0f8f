package inputs

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/RyanBlaney/voxprep/audiocache"
	"github.com/RyanBlaney/voxprep/features"
)

// SpeakerInputs holds the normalized features of one speaker
type SpeakerInputs struct {
	SpeakerID string                   `msgpack:"speaker_id"`
	Train     []features.FeatureMatrix `msgpack:"train"`
	Test      []features.FeatureMatrix `msgpack:"test"`
	MeanTrain float64                  `msgpack:"mean_train"`
	StdTrain  float64                  `msgpack:"std_train"`
}

// UnifiedInputs maps speaker ids to their inputs
type UnifiedInputs map[string]*SpeakerInputs

// WriteSpeakerInputs stores in at path atomically
func WriteSpeakerInputs(path string, in *SpeakerInputs) error {
	return audiocache.WriteAtomic(path, func(w io.Writer) error {
		return msgpack.NewEncoder(w).Encode(in)
	})
}

// ReadSpeakerInputs loads the inputs stored at path
func ReadSpeakerInputs(path string) (*SpeakerInputs, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var in SpeakerInputs
	if err := msgpack.NewDecoder(bufio.NewReader(f)).Decode(&in); err != nil {
		return nil, fmt.Errorf("decode inputs %s: %w", path, err)
	}
	return &in, nil
}
