package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fieldops/internal/api/dto"
	"github.com/spec-kit/fieldops/internal/auth"
	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/service"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

// TeamHandler serves members and invites.
type TeamHandler struct {
	service *service.TeamService
}

// NewTeamHandler constructs handler.
func NewTeamHandler(teamService *service.TeamService) *TeamHandler {
	return &TeamHandler{service: teamService}
}

// ListMembers GET /members.
func (h *TeamHandler) ListMembers(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	members, err := h.service.ListMembers(c.UserContext(), tenantID, userID)
	if err != nil {
		return err
	}
	items := make([]dto.MemberResponse, 0, len(members))
	for i := range members {
		items = append(items, memberResponse(&members[i].Membership, members[i].Email, members[i].Name))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpdateRole PATCH /members/:userId.
func (h *TeamHandler) UpdateRole(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.UpdateRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Role == "" {
		return apperrors.NewValidationError("role required", nil)
	}
	membership, err := h.service.UpdateMemberRole(c.UserContext(), tenantID, userID, c.Params("userId"), req.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": memberResponse(membership, "", "")})
}

// RemoveMember DELETE /members/:userId.
func (h *TeamHandler) RemoveMember(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	if err := h.service.RemoveMember(c.UserContext(), tenantID, userID, c.Params("userId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateInvite POST /invites.
func (h *TeamHandler) CreateInvite(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.CreateInviteRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Email == "" || req.Role == "" {
		return apperrors.NewValidationError("email and role required", nil)
	}
	invite, err := h.service.CreateInvite(c.UserContext(), tenantID, userID, req.Email, req.Role)
	if err != nil {
		return err
	}
	resp := inviteResponse(invite)
	resp.Token = invite.Token
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": resp})
}

// ListInvites GET /invites.
func (h *TeamHandler) ListInvites(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	invites, err := h.service.ListInvites(c.UserContext(), tenantID, userID)
	if err != nil {
		return err
	}
	items := make([]dto.InviteResponse, 0, len(invites))
	for i := range invites {
		items = append(items, inviteResponse(&invites[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// RevokeInvite DELETE /invites/:inviteId.
func (h *TeamHandler) RevokeInvite(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	if err := h.service.RevokeInvite(c.UserContext(), tenantID, userID, c.Params("inviteId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AcceptInvite POST /invites/:token/accept. The caller need not be a member yet.
func (h *TeamHandler) AcceptInvite(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	membership, err := h.service.AcceptInvite(c.UserContext(), principal.UserID(), c.Params("token"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": memberResponse(membership, principal.User.Email, principal.User.Name)})
}

func memberResponse(m *domain.Membership, email, name string) dto.MemberResponse {
	return dto.MemberResponse{
		UserID:    m.UserID,
		TenantID:  m.TenantID,
		Email:     email,
		Name:      name,
		Role:      m.Role,
		CreatedAt: m.CreatedAt,
	}
}

func inviteResponse(i *domain.TenantInvite) dto.InviteResponse {
	return dto.InviteResponse{
		ID:        i.ID,
		Email:     i.Email,
		Role:      i.Role,
		ExpiresAt: i.ExpiresAt,
		CreatedAt: i.CreatedAt,
	}
}
