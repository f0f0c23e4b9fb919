package dto

import (
	"time"

	"github.com/spec-kit/fieldops/internal/domain"
)

// CreateInviteRequest payload.
type CreateInviteRequest struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// InviteResponse shape. Token is only set when the invite is created.
type InviteResponse struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	Token     string      `json:"token,omitempty"`
	ExpiresAt time.Time   `json:"expires_at"`
	CreatedAt time.Time   `json:"created_at"`
}

// UpdateRoleRequest payload.
type UpdateRoleRequest struct {
	Role domain.Role `json:"role"`
}

// MemberResponse shape.
type MemberResponse struct {
	UserID    string      `json:"user_id"`
	TenantID  string      `json:"tenant_id"`
	Email     string      `json:"email,omitempty"`
	Name      string      `json:"name,omitempty"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// ActivityEventResponse shape.
type ActivityEventResponse struct {
	ID         string              `json:"id"`
	ActorID    *string             `json:"actor_id"`
	EntityType domain.EntityType   `json:"entity_type"`
	EntityID   string              `json:"entity_id"`
	EventType  domain.ActivityType `json:"event_type"`
	Message    string              `json:"message"`
	Metadata   map[string]any      `json:"metadata"`
	CreatedAt  time.Time           `json:"created_at"`
}

// PageMeta describes the window of a paged response.
type PageMeta struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
