package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus enumerates invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "DRAFT"
	InvoiceStatusSent  InvoiceStatus = "SENT"
	InvoiceStatusPaid  InvoiceStatus = "PAID"
	InvoiceStatusVoid  InvoiceStatus = "VOID"
)

// Valid reports whether s is a known invoice status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusVoid:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s InvoiceStatus) Terminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusVoid
}

// InvoiceItem is a frozen copy of an estimate line taken at invoice creation.
type InvoiceItem struct {
	ID        string
	InvoiceID string
	Name      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	SortOrder int
}

// Invoice is a billing document generated from an accepted estimate.
type Invoice struct {
	ID         string
	TenantID   string
	JobID      string
	EstimateID string
	Number     string
	Status     InvoiceStatus
	Notes      string
	Items      []InvoiceItem
	Subtotal   decimal.Decimal
	Total      decimal.Decimal
	IssuedAt   time.Time
	SentAt     *time.Time
	DueAt      *time.Time
	PaidAt     *time.Time
	CreatedBy  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
