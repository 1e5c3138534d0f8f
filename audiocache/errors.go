package audiocache

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition marks setup problems that abort a whole run
	ErrPrecondition = errors.New("precondition failed")

	// ErrDecode marks a single source file that could not be turned into a record
	ErrDecode = errors.New("decode failed")

	// ErrCorruptRecord marks a cache file that is not a decodable record
	ErrCorruptRecord = errors.New("corrupt cache record")

	// ErrSilentAudio is returned when no sample exceeds the voice threshold
	ErrSilentAudio = errors.New("no sample above the voice threshold")
)

// DecodeError reports a per-file failure. It matches ErrDecode with errors.Is
// and unwraps to the underlying cause.
type DecodeError struct {
	Filename string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Filename, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}
