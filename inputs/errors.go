package inputs

import "errors"

var (
	// ErrConsistency is returned when a cached record belongs to another speaker
	ErrConsistency = errors.New("cache consistency violated")

	// ErrNoTrainingData is returned when a speaker's train split yields no usable features
	ErrNoTrainingData = errors.New("no training features")
)
