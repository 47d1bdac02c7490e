package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DecisionStatus is a state in the decision lifecycle
type DecisionStatus string

const (
	StatusDraft        DecisionStatus = "DRAFT"
	StatusSubmitted    DecisionStatus = "SUBMITTED"
	StatusReturned     DecisionStatus = "RETURNED"
	StatusAttested     DecisionStatus = "ATTESTED"
	StatusToCoordinate DecisionStatus = "TO_COORDINATE"
	StatusCoordinated  DecisionStatus = "COORDINATED"
	StatusActive       DecisionStatus = "ACTIVE"
)

// Mutable reports whether content may still change in this status
func (s DecisionStatus) Mutable() bool {
	return s == StatusDraft || s == StatusReturned
}

// Valid reports whether s is a known status
func (s DecisionStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusReturned, StatusAttested,
		StatusToCoordinate, StatusCoordinated, StatusActive:
		return true
	}
	return false
}

// DecisionCategory is the kind of outcome a decision records
type DecisionCategory string

const (
	CategoryApproval  DecisionCategory = "APPROVAL"
	CategoryChange    DecisionCategory = "CHANGE"
	CategoryCessation DecisionCategory = "CESSATION"
	CategoryRepayment DecisionCategory = "REPAYMENT"
	CategoryDenial    DecisionCategory = "DENIAL"
)

// BenefitBearing reports whether decisions of this category carry BenefitContent
func (c DecisionCategory) BenefitBearing() bool {
	return c != CategoryRepayment
}

// GrantsBenefit reports whether the category leaves the benefit running
func (c DecisionCategory) GrantsBenefit() bool {
	return c == CategoryApproval || c == CategoryChange
}

func (c DecisionCategory) Valid() bool {
	switch c {
	case CategoryApproval, CategoryChange, CategoryCessation, CategoryRepayment, CategoryDenial:
		return true
	}
	return false
}

// CaseCategory is the benefit a case concerns
type CaseCategory string

const (
	CaseCategoryChildPension        CaseCategory = "BARNEPENSJON"
	CaseCategoryAdjustmentAllowance CaseCategory = "OMSTILLINGSSTOENAD"
)

// Actor identifies a caseworker (or system user) and the org unit acting on their behalf
type Actor struct {
	Ident   string `json:"ident"`
	OrgUnit string `json:"org_unit"`
}

// Decision is the adjudicated outcome of one case instance
type Decision struct {
	ID             uuid.UUID        `json:"id"`
	CaseInstanceID uuid.UUID        `json:"case_instance_id"`
	CaseID         int64            `json:"case_id"`
	SubjectID      string           `json:"subject_id"`
	CaseCategory   CaseCategory     `json:"case_category"`
	Category       DecisionCategory `json:"category"`
	Status         DecisionStatus   `json:"status"`
	Content        DecisionContent  `json:"-"`

	MadeBy       string     `json:"made_by,omitempty"`
	MadeAt       *time.Time `json:"made_at,omitempty"`
	MakerOrgUnit string     `json:"maker_org_unit,omitempty"`

	AttestedBy      string     `json:"attested_by,omitempty"`
	AttestedAt      *time.Time `json:"attested_at,omitempty"`
	AttesterOrgUnit string     `json:"attester_org_unit,omitempty"`

	// FrozenPeriods holds the clipped payment periods persisted at attestation
	FrozenPeriods []PaymentPeriod `json:"frozen_periods,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Benefit returns the benefit content, if that is the populated variant
func (d Decision) Benefit() (BenefitContent, bool) {
	c, ok := d.Content.(BenefitContent)
	return c, ok
}

// ValidFrom returns the effective month of benefit-bearing content
func (d Decision) ValidFrom() (YearMonth, bool) {
	c, ok := d.Benefit()
	if !ok || c.ValidFrom.IsZero() {
		return YearMonth{}, false
	}
	return c.ValidFrom, true
}

// PaymentPeriods returns the content's periods, or nil for repayment content
func (d Decision) PaymentPeriods() []PaymentPeriod {
	c, ok := d.Benefit()
	if !ok {
		return nil
	}
	return c.PaymentPeriods
}

// Clone returns a deep copy that shares no mutable state with d
func (d Decision) Clone() Decision {
	out := d
	out.Content = CloneContent(d.Content)
	out.FrozenPeriods = ClonePeriods(d.FrozenPeriods)
	if d.MadeAt != nil {
		t := *d.MadeAt
		out.MadeAt = &t
	}
	if d.AttestedAt != nil {
		t := *d.AttestedAt
		out.AttestedAt = &t
	}
	return out
}

type decisionJSON Decision

// MarshalJSON adds the tagged content to the plain fields
func (d Decision) MarshalJSON() ([]byte, error) {
	content, err := EncodeContent(d.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		decisionJSON
		Content json.RawMessage `json:"content"`
	}{decisionJSON: decisionJSON(d), Content: content})
}

func (d *Decision) UnmarshalJSON(data []byte) error {
	var aux struct {
		decisionJSON
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	content, err := DecodeContent(aux.Content)
	if err != nil {
		return fmt.Errorf("failed to decode decision content: %w", err)
	}
	*d = Decision(aux.decisionJSON)
	d.Content = content
	return nil
}
