package domain

import "time"

// JobStatus enumerates work lifecycle states.
type JobStatus string

const (
	JobStatusUnscheduled JobStatus = "UNSCHEDULED"
	JobStatusScheduled   JobStatus = "SCHEDULED"
	JobStatusInProgress  JobStatus = "IN_PROGRESS"
	JobStatusCompleted   JobStatus = "COMPLETED"
	JobStatusInvoiced    JobStatus = "INVOICED"
)

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusUnscheduled, JobStatusScheduled, JobStatusInProgress,
		JobStatusCompleted, JobStatusInvoiced:
		return true
	}
	return false
}

// Job is a unit of scheduled or performed work for a customer.
type Job struct {
	ID           string
	TenantID     string
	CustomerID   string
	LeadID       *string
	AssigneeID   *string
	Title        string
	Description  string
	Status       JobStatus
	ScheduledFor *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ArchivedAt   *time.Time
}
