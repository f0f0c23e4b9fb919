package domain

import "time"

// LeadStatus enumerates prospect pipeline stages.
type LeadStatus string

const (
	LeadStatusNew                 LeadStatus = "NEW"
	LeadStatusContacted           LeadStatus = "CONTACTED"
	LeadStatusInspectionScheduled LeadStatus = "INSPECTION_SCHEDULED"
	LeadStatusQuoteSent           LeadStatus = "QUOTE_SENT"
	LeadStatusWon                 LeadStatus = "WON"
	LeadStatusLost                LeadStatus = "LOST"
)

// Valid reports whether s is a known lead status.
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusInspectionScheduled,
		LeadStatusQuoteSent, LeadStatusWon, LeadStatusLost:
		return true
	}
	return false
}

// Lead is a prospective job before work is scheduled.
type Lead struct {
	ID             string
	TenantID       string
	CustomerID     *string
	AssigneeID     *string
	ConvertedJobID *string
	Title          string
	Source         string
	Notes          string
	Status         LeadStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ArchivedAt     *time.Time
}
