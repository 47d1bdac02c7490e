package models

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// PeriodKind distinguishes paying periods from cessation markers
type PeriodKind string

const (
	PeriodKindPayment   PeriodKind = "PAYMENT"
	PeriodKindCessation PeriodKind = "CESSATION"
)

// PaymentPeriod is one stretch of months with a constant monthly amount.
// ValidTo is inclusive; nil means open-ended. A nil Amount marks a non-paying period.
type PaymentPeriod struct {
	ValidFrom YearMonth  `json:"valid_from"`
	ValidTo   *YearMonth `json:"valid_to,omitempty"`
	Amount    *int64     `json:"amount,omitempty"`
	Kind      PeriodKind `json:"kind"`
}

// AmountOrZero returns the monthly amount, treating a missing amount as zero
func (p PaymentPeriod) AmountOrZero() int64 {
	if p.Amount == nil {
		return 0
	}
	return *p.Amount
}

// Overlaps reports whether the two periods share at least one month.
// An open end counts as the far future.
func (p PaymentPeriod) Overlaps(other PaymentPeriod) bool {
	if p.ValidTo != nil && other.ValidFrom.After(*p.ValidTo) {
		return false
	}
	if other.ValidTo != nil && p.ValidFrom.After(*other.ValidTo) {
		return false
	}
	return true
}

func (p PaymentPeriod) clone() PaymentPeriod {
	out := p
	if p.ValidTo != nil {
		to := *p.ValidTo
		out.ValidTo = &to
	}
	if p.Amount != nil {
		amount := *p.Amount
		out.Amount = &amount
	}
	return out
}

// ClonePeriods deep-copies a slice of periods
func ClonePeriods(periods []PaymentPeriod) []PaymentPeriod {
	if periods == nil {
		return nil
	}
	out := make([]PaymentPeriod, len(periods))
	for i, p := range periods {
		out[i] = p.clone()
	}
	return out
}

// ContentType is the discriminator stored beside encoded content
type ContentType string

const (
	ContentTypeBenefit   ContentType = "BENEFIT"
	ContentTypeRepayment ContentType = "REPAYMENT"
)

// DecisionContent is implemented only by BenefitContent and RepaymentContent
type DecisionContent interface {
	ContentType() ContentType
	isDecisionContent()
}

// BenefitContent is the payload of every benefit-bearing decision
type BenefitContent struct {
	ValidFrom      YearMonth       `json:"valid_from"`
	PaymentPeriods []PaymentPeriod `json:"payment_periods"`
	CalculationRef string          `json:"calculation_ref,omitempty"`
	EligibilityRef string          `json:"eligibility_ref,omitempty"`
}

func (BenefitContent) ContentType() ContentType { return ContentTypeBenefit }
func (BenefitContent) isDecisionContent()       {}

// RepaymentPeriod is one month of a repayment claim
type RepaymentPeriod struct {
	Month       YearMonth `json:"month"`
	PaidAmount  int64     `json:"paid_amount"`
	DueAmount   int64     `json:"due_amount"`
	ClaimAmount int64     `json:"claim_amount"`
	TaxAmount   int64     `json:"tax_amount"`
}

// RepaymentContent is the payload of a REPAYMENT decision
type RepaymentContent struct {
	Periods    []RepaymentPeriod `json:"periods"`
	TotalClaim int64             `json:"total_claim"`
	Reason     string            `json:"reason,omitempty"`
	ClaimRef   string            `json:"claim_ref,omitempty"`
}

func (RepaymentContent) ContentType() ContentType { return ContentTypeRepayment }
func (RepaymentContent) isDecisionContent()       {}

// CloneContent deep-copies content so snapshots never share slices
func CloneContent(c DecisionContent) DecisionContent {
	switch v := c.(type) {
	case BenefitContent:
		v.PaymentPeriods = ClonePeriods(v.PaymentPeriods)
		return v
	case RepaymentContent:
		if v.Periods != nil {
			v.Periods = append([]RepaymentPeriod(nil), v.Periods...)
		}
		return v
	}
	return c
}

type benefitEnvelope struct {
	Type ContentType `json:"type"`
	BenefitContent
}

type repaymentEnvelope struct {
	Type ContentType `json:"type"`
	RepaymentContent
}

// EncodeContent renders content as JSON with a "type" discriminator
func EncodeContent(c DecisionContent) ([]byte, error) {
	switch v := c.(type) {
	case nil:
		return []byte("null"), nil
	case BenefitContent:
		return json.Marshal(benefitEnvelope{Type: ContentTypeBenefit, BenefitContent: v})
	case RepaymentContent:
		return json.Marshal(repaymentEnvelope{Type: ContentTypeRepayment, RepaymentContent: v})
	default:
		return nil, fmt.Errorf("unknown decision content %T", c)
	}
}

// DecodeContent is the inverse of EncodeContent
func DecodeContent(data []byte) (DecisionContent, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var head struct {
		Type ContentType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to decode content type: %w", err)
	}

	switch head.Type {
	case ContentTypeBenefit:
		var env benefitEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("failed to decode benefit content: %w", err)
		}
		return env.BenefitContent, nil
	case ContentTypeRepayment:
		var env repaymentEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("failed to decode repayment content: %w", err)
		}
		return env.RepaymentContent, nil
	default:
		return nil, fmt.Errorf("unknown content type %q", head.Type)
	}
}

// ContentDigest returns a hex BLAKE2b-256 digest of the encoded content
func ContentDigest(c DecisionContent) (string, error) {
	encoded, err := EncodeContent(c)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}
