package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EstimateStatus enumerates estimate lifecycle states.
type EstimateStatus string

const (
	EstimateStatusDraft    EstimateStatus = "DRAFT"
	EstimateStatusSent     EstimateStatus = "SENT"
	EstimateStatusAccepted EstimateStatus = "ACCEPTED"
	EstimateStatusRejected EstimateStatus = "REJECTED"
)

// Valid reports whether s is a known estimate status.
func (s EstimateStatus) Valid() bool {
	switch s {
	case EstimateStatusDraft, EstimateStatusSent, EstimateStatusAccepted, EstimateStatusRejected:
		return true
	}
	return false
}

// Decided reports whether the customer has already accepted or rejected.
func (s EstimateStatus) Decided() bool {
	return s == EstimateStatusAccepted || s == EstimateStatusRejected
}

// EstimateItem is a priced line on an estimate.
type EstimateItem struct {
	ID         string
	EstimateID string
	Name       string
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	LineTotal  decimal.Decimal
	SortOrder  int
}

// Estimate is a priced proposal for a job.
type Estimate struct {
	ID              string
	TenantID        string
	JobID           string
	Number          string
	Status          EstimateStatus
	Notes           string
	Items           []EstimateItem
	Subtotal        decimal.Decimal
	Total           decimal.Decimal
	PublicToken     *string
	PublicEnabled   bool
	PublicExpiresAt *time.Time
	LastSharedAt    *time.Time
	DecidedAt       *time.Time
	SignerName      *string
	SignerEmail     *string
	CreatedBy       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ArchivedAt      *time.Time
}

// LineTotal computes quantity times unit price rounded to cents.
func LineTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Round(2)
}

// Recalculate derives line totals, sort order, subtotal and total from the items.
func (e *Estimate) Recalculate() {
	subtotal := decimal.Zero
	for i := range e.Items {
		e.Items[i].SortOrder = i
		e.Items[i].LineTotal = LineTotal(e.Items[i].Quantity, e.Items[i].UnitPrice)
		subtotal = subtotal.Add(e.Items[i].LineTotal)
	}
	e.Subtotal = subtotal
	e.Total = subtotal
}

// PublicLinkExpired reports whether the share link is past its expiry at now.
func (e *Estimate) PublicLinkExpired(now time.Time) bool {
	return e.PublicExpiresAt != nil && e.PublicExpiresAt.Before(now)
}
