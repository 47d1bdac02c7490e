package models

import (
	"time"

	"github.com/google/uuid"
)

// RunMode selects which phases of an automatic run execute
type RunMode string

const (
	RunModeFull             RunMode = "FULL_RUN"
	RunModeRunThenPause     RunMode = "RUN_THEN_PAUSE"
	RunModeResumeAfterPause RunMode = "RESUME_AFTER_PAUSE"
)

func (m RunMode) Valid() bool {
	switch m {
	case RunModeFull, RunModeRunThenPause, RunModeResumeAfterPause:
		return true
	}
	return false
}

// RunPhase records how far an automatic run got
type RunPhase string

const (
	RunPhaseStarted   RunPhase = "STARTED"
	RunPhasePaused    RunPhase = "PAUSED"
	RunPhaseCompleted RunPhase = "COMPLETED"
	RunPhaseFailed    RunPhase = "FAILED"
)

// AutomaticRun is the bookkeeping row for a system-driven case instance
type AutomaticRun struct {
	CaseInstanceID uuid.UUID `json:"case_instance_id"`
	Mode           RunMode   `json:"mode"`
	Phase          RunPhase  `json:"phase"`
	LastError      *string   `json:"last_error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
