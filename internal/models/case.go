package models

import (
	"time"

	"github.com/google/uuid"
)

// CaseInstanceType is the kind of adjudication round
type CaseInstanceType string

const (
	InstanceTypeFirstTime CaseInstanceType = "FIRST_TIME"
	InstanceTypeRevision  CaseInstanceType = "REVISION"
	InstanceTypeRepayment CaseInstanceType = "REPAYMENT"
)

// CaseSnapshot is the case service's view of one case instance
type CaseSnapshot struct {
	CaseInstanceID uuid.UUID        `json:"case_instance_id"`
	CaseID         int64            `json:"case_id"`
	SubjectID      string           `json:"subject_id"`
	Category       CaseCategory     `json:"category"`
	InstanceType   CaseInstanceType `json:"instance_type"`
	EffectiveFrom  *YearMonth       `json:"effective_from,omitempty"`
	RevisionReason string           `json:"revision_reason,omitempty"`
}

// OutcomeResult is the eligibility verdict
type OutcomeResult string

const (
	OutcomeApproved OutcomeResult = "APPROVED"
	OutcomeDenied   OutcomeResult = "DENIED"
)

// EligibilityOutcome is the result of the eligibility assessment
type EligibilityOutcome struct {
	Result OutcomeResult `json:"result"`
	Ref    string        `json:"ref,omitempty"`
}

// BenefitSchedule is a pre-computed payment schedule
type BenefitSchedule struct {
	Ref     string          `json:"ref,omitempty"`
	Periods []PaymentPeriod `json:"periods"`
}

// Task is an open workflow task in the case service
type Task struct {
	ID              string    `json:"id"`
	CaseID          int64     `json:"case_id"`
	Reference       uuid.UUID `json:"reference"`
	Kind            TaskKind  `json:"kind"`
	AssignedTo      string    `json:"assigned_to,omitempty"`
	AssignedOrgUnit string    `json:"assigned_org_unit,omitempty"`
}

// TaskKind classifies case-service tasks
type TaskKind string

const (
	TaskKindAttestation TaskKind = "ATTESTATION"
	TaskKindCaseWork    TaskKind = "CASE_WORK"
)

// TransitionNote is what the case service records against its own workflow
type TransitionNote struct {
	DecisionID uuid.UUID `json:"decision_id"`
	Actor      Actor     `json:"actor"`
	At         time.Time `json:"at"`
	Comment    string    `json:"comment,omitempty"`
	ReasonCode string    `json:"reason_code,omitempty"`
}

// CoordinationResponse is the coordination service's immediate answer
type CoordinationResponse struct {
	MustWait bool `json:"must_wait"`
}
