package domain

import "time"

// EntityType names the kind of record an activity event describes.
type EntityType string

const (
	EntityLead       EntityType = "LEAD"
	EntityJob        EntityType = "JOB"
	EntityEstimate   EntityType = "ESTIMATE"
	EntityInvoice    EntityType = "INVOICE"
	EntityCustomer   EntityType = "CUSTOMER"
	EntityMembership EntityType = "MEMBERSHIP"
	EntityInvite     EntityType = "INVITE"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityLead, EntityJob, EntityEstimate, EntityInvoice, EntityCustomer, EntityMembership, EntityInvite:
		return true
	}
	return false
}

// ActivityType identifies what happened.
type ActivityType string

const (
	ActivityLeadCreated          ActivityType = "LEAD_CREATED"
	ActivityLeadStatusChanged    ActivityType = "LEAD_STATUS_CHANGED"
	ActivityLeadConverted        ActivityType = "LEAD_CONVERTED"
	ActivityJobCreated           ActivityType = "JOB_CREATED"
	ActivityJobStatusChanged     ActivityType = "JOB_STATUS_CHANGED"
	ActivityJobArchived          ActivityType = "JOB_ARCHIVED"
	ActivityCustomerCreated      ActivityType = "CUSTOMER_CREATED"
	ActivityEstimateCreated      ActivityType = "ESTIMATE_CREATED"
	ActivityEstimateUpdated      ActivityType = "ESTIMATE_UPDATED"
	ActivityEstimateStatus       ActivityType = "ESTIMATE_STATUS_CHANGED"
	ActivityEstimateShared       ActivityType = "ESTIMATE_SHARED"
	ActivityEstimateShareRevoked ActivityType = "ESTIMATE_SHARE_REVOKED"
	ActivityEstimateArchived     ActivityType = "ESTIMATE_ARCHIVED"
	ActivityEstimateAccepted     ActivityType = "ESTIMATE_ACCEPTED"
	ActivityEstimateRejected     ActivityType = "ESTIMATE_REJECTED"
	ActivityInvoiceCreated       ActivityType = "INVOICE_CREATED"
	ActivityInvoiceStatus        ActivityType = "INVOICE_STATUS_CHANGED"
	ActivityInviteCreated        ActivityType = "INVITE_CREATED"
	ActivityInviteAccepted       ActivityType = "INVITE_ACCEPTED"
	ActivityInviteRevoked        ActivityType = "INVITE_REVOKED"
	ActivityMemberRoleChanged    ActivityType = "MEMBER_ROLE_CHANGED"
	ActivityMemberRemoved        ActivityType = "MEMBER_REMOVED"
)

// ActivityEvent is an immutable audit record of a domain occurrence.
type ActivityEvent struct {
	ID         string         `db:"id"`
	TenantID   string         `db:"tenant_id"`
	ActorID    *string        `db:"actor_user_id"`
	EntityType EntityType     `db:"entity_type"`
	EntityID   string         `db:"entity_id"`
	EventType  ActivityType   `db:"event_type"`
	Message    string         `db:"message"`
	Metadata   map[string]any `db:"metadata"`
	CreatedAt  time.Time      `db:"created_at"`
	ArchivedAt *time.Time     `db:"archived_at"`
}
