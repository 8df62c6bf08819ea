package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigurationMissing    = errors.New("configuration missing")
	ErrConfigurationIncomplete = errors.New("configuration incomplete")
	ErrVaultUnavailable        = errors.New("vault unavailable")
	ErrVaultConflict           = errors.New("vault application conflict")
	ErrRecordNotFound          = errors.New("record not found")
	ErrEmptyToken              = errors.New("empty token")
	// ErrMalformedToken is recoverable: the raw token is still installed, only the
	// decoded metadata is lost.
	ErrMalformedToken  = errors.New("malformed token")
	ErrSecretMissing   = errors.New("signing secret missing")
	ErrWriteFailure    = errors.New("write failure")
	ErrContentMismatch = errors.New("content mismatch")
)

// StageError is the terminal Failed(stage, cause) state of a workflow.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	if e == nil || e.Err == nil {
		return "workflow failed"
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// FailedStage extracts the stage from a workflow error, if any.
func FailedStage(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}
