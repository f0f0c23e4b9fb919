package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/fieldops/internal/domain"
)

// EstimateItemRequest is one line. Numbers may be sent as JSON numbers or strings.
type EstimateItemRequest struct {
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateEstimateRequest payload.
type CreateEstimateRequest struct {
	JobID  string                 `json:"job_id"`
	Items  []EstimateItemRequest  `json:"items"`
	Status *domain.EstimateStatus `json:"status"`
	Notes  *string                `json:"notes"`
}

// UpdateEstimateRequest payload. Omitted fields are unchanged.
type UpdateEstimateRequest struct {
	Items  []EstimateItemRequest  `json:"items"`
	Status *domain.EstimateStatus `json:"status"`
	Notes  *string                `json:"notes"`
}

// ShareEstimateRequest payload.
type ShareEstimateRequest struct {
	ExpiresInDays int `json:"expires_in_days"`
}

// ShareEstimateResponse shape.
type ShareEstimateResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LineItemResponse is a priced line. Money is rendered with two decimals.
type LineItemResponse struct {
	Name      string `json:"name"`
	Quantity  string `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

// EstimateResponse shape for members.
type EstimateResponse struct {
	ID              string                `json:"id"`
	JobID           string                `json:"job_id"`
	Number          string                `json:"number"`
	Status          domain.EstimateStatus `json:"status"`
	Notes           string                `json:"notes"`
	Items           []LineItemResponse    `json:"items"`
	Subtotal        string                `json:"subtotal"`
	Total           string                `json:"total"`
	PublicEnabled   bool                  `json:"public_enabled"`
	PublicExpiresAt *time.Time            `json:"public_expires_at"`
	LastSharedAt    *time.Time            `json:"last_shared_at"`
	DecidedAt       *time.Time            `json:"decided_at"`
	SignerName      *string               `json:"signer_name"`
	SignerEmail     *string               `json:"signer_email"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// PublicEstimateResponse is what a share-link holder sees.
type PublicEstimateResponse struct {
	ID         string                `json:"id"`
	Number     string                `json:"number"`
	Status     domain.EstimateStatus `json:"status"`
	Items      []LineItemResponse    `json:"items"`
	Subtotal   string                `json:"subtotal"`
	Total      string                `json:"total"`
	ExpiresAt  *time.Time            `json:"expires_at"`
	DecidedAt  *time.Time            `json:"decided_at"`
	SignerName *string               `json:"signer_name"`
}

// DecisionRequest payload for the public decision endpoint.
type DecisionRequest struct {
	Decision    string  `json:"decision"`
	SignerName  string  `json:"signer_name"`
	SignerEmail *string `json:"signer_email"`
}

// CreateInvoiceRequest payload.
type CreateInvoiceRequest struct {
	EstimateID string     `json:"estimate_id"`
	DueAt      *time.Time `json:"due_at"`
	Notes      *string    `json:"notes"`
}

// InvoiceResponse shape.
type InvoiceResponse struct {
	ID         string               `json:"id"`
	JobID      string               `json:"job_id"`
	EstimateID string               `json:"estimate_id"`
	Number     string               `json:"number"`
	Status     domain.InvoiceStatus `json:"status"`
	Notes      string               `json:"notes"`
	Items      []LineItemResponse   `json:"items"`
	Subtotal   string               `json:"subtotal"`
	Total      string               `json:"total"`
	IssuedAt   time.Time            `json:"issued_at"`
	SentAt     *time.Time           `json:"sent_at"`
	DueAt      *time.Time           `json:"due_at"`
	PaidAt     *time.Time           `json:"paid_at"`
}
