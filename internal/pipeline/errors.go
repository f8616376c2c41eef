package pipeline

import "fmt"

// Stage names reported by StageError.
const (
	StageTranscription = "transcription"
	StageGeneration    = "generation"
	StageSynthesis     = "synthesis"
)

// StageError marks an external call that failed during an actual attempt.
// Capability-not-configured conditions never produce a StageError; the
// adapters absorb those into placeholder outputs instead.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
