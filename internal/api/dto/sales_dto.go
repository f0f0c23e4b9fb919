package dto

import (
	"time"

	"github.com/spec-kit/fieldops/internal/domain"
)

// CreateCustomerRequest payload.
type CreateCustomerRequest struct {
	Name    string  `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

// CustomerResponse shape.
type CustomerResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     *string   `json:"email"`
	Phone     *string   `json:"phone"`
	Address   *string   `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateLeadRequest payload.
type CreateLeadRequest struct {
	Title      string  `json:"title"`
	Source     string  `json:"source"`
	Notes      string  `json:"notes"`
	CustomerID *string `json:"customer_id"`
	AssigneeID *string `json:"assignee_id"`
}

// LeadResponse shape.
type LeadResponse struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Source         string            `json:"source"`
	Notes          string            `json:"notes"`
	Status         domain.LeadStatus `json:"status"`
	CustomerID     *string           `json:"customer_id"`
	AssigneeID     *string           `json:"assignee_id"`
	ConvertedJobID *string           `json:"converted_job_id"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// CreateJobRequest payload.
type CreateJobRequest struct {
	CustomerID   string     `json:"customer_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	AssigneeID   *string    `json:"assignee_id"`
	ScheduledFor *time.Time `json:"scheduled_for"`
}

// JobResponse shape.
type JobResponse struct {
	ID           string           `json:"id"`
	CustomerID   string           `json:"customer_id"`
	LeadID       *string          `json:"lead_id"`
	AssigneeID   *string          `json:"assignee_id"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	Status       domain.JobStatus `json:"status"`
	ScheduledFor *time.Time       `json:"scheduled_for"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// StatusRequest carries a target status for any entity.
type StatusRequest struct {
	Status string `json:"status"`
}
