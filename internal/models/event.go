package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event published after a lifecycle change
type EventType string

const (
	EventCreated      EventType = "CREATED"
	EventSubmitted    EventType = "SUBMITTED"
	EventAttested     EventType = "ATTESTED"
	EventRejected     EventType = "UNDERKJENT"
	EventToCoordinate EventType = "TO_COORDINATE"
	EventCoordinated  EventType = "COORDINATED"
	EventActivated    EventType = "ACTIVATED"
	EventReset        EventType = "RESET"
)

// Extra field keys carried on events
const (
	ExtraSendLetter          = "send_letter"
	ExtraRetroactiveIncrease = "retroactive_increase"
	ExtraRevisionReason      = "revision_reason"
	ExtraRejectReason        = "reject_reason"
)

// DecisionEvent is the payload handed to the event publisher
type DecisionEvent struct {
	Type               EventType         `json:"type"`
	CaseInstanceID     uuid.UUID         `json:"case_instance_id"`
	Decision           Decision          `json:"decision"`
	TechnicalTimestamp time.Time         `json:"technical_timestamp"`
	Extra              map[string]string `json:"extra,omitempty"`
}

// CaseNotification is the payload handed to the case service's NotifyTransition
type CaseNotification struct {
	CaseInstanceID uuid.UUID      `json:"case_instance_id"`
	Status         DecisionStatus `json:"status"`
	Note           TransitionNote `json:"note"`
}

// HistoryEntry is one row of a decision's audit trail
type HistoryEntry struct {
	ID             int64          `json:"id"`
	DecisionID     uuid.UUID      `json:"decision_id"`
	CaseInstanceID uuid.UUID      `json:"case_instance_id"`
	Status         DecisionStatus `json:"status"`
	Event          EventType      `json:"event"`
	Actor          string         `json:"actor,omitempty"`
	OrgUnit        string         `json:"org_unit,omitempty"`
	Comment        string         `json:"comment,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// OutboxKind selects the downstream an outbox message goes to
type OutboxKind string

const (
	OutboxCaseNotification OutboxKind = "CASE_NOTIFICATION"
	OutboxDomainEvent      OutboxKind = "DOMAIN_EVENT"
)

// OutboxStatus is the delivery state of an outbox message
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "PENDING"
	OutboxSent    OutboxStatus = "SENT"
	OutboxDead    OutboxStatus = "DEAD"
)

// OutboxMessage is a side effect committed together with a lifecycle change
type OutboxMessage struct {
	Seq            int64           `json:"seq"`
	ID             uuid.UUID       `json:"id"`
	Kind           OutboxKind      `json:"kind"`
	CaseInstanceID uuid.UUID       `json:"case_instance_id"`
	Payload        json.RawMessage `json:"payload"`
	Status         OutboxStatus    `json:"status"`
	AttemptCount   int             `json:"attempt_count"`
	NextAttemptAt  time.Time       `json:"next_attempt_at"`
	LastError      *string         `json:"last_error,omitempty"`
	SentAt         *time.Time      `json:"sent_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
