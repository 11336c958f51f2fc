package app

import (
	"errors"
	"fmt"
)

// Run stages, in execution order. Every error leaving the run service is
// tagged with the stage it came from so logs and the journal always carry
// (hostname, stage, cause).
const (
	StageValidation    = "validation"
	StagePrerequisites = "prerequisites"
	StageCredentials   = "credentials"
	StageStateRead     = "state-read"
	StageInspection    = "inspection"
	StageDecision      = "decision"
	StageIssuance      = "issuance"
	StageDelivery      = "delivery"
	StageStateWrite    = "state-write"
)

// StageError wraps a run failure with the stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage extracts the stage name from err, or returns an empty string
// when err carries no stage.
func FailedStage(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}
