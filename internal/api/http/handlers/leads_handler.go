package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fieldops/internal/api/dto"
	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/repository"
	"github.com/spec-kit/fieldops/internal/service"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

// LeadsHandler serves /tenants/:tenantId/leads.
type LeadsHandler struct {
	service *service.LeadService
}

// NewLeadsHandler constructs handler.
func NewLeadsHandler(leadService *service.LeadService) *LeadsHandler {
	return &LeadsHandler{service: leadService}
}

// Create POST /leads.
func (h *LeadsHandler) Create(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.CreateLeadRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	lead, err := h.service.Create(c.UserContext(), tenantID, userID, service.LeadInput{
		Title:      req.Title,
		Source:     req.Source,
		Notes:      req.Notes,
		CustomerID: req.CustomerID,
		AssigneeID: req.AssigneeID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": leadResponse(lead)})
}

// UpdateStatus POST /leads/:leadId/status.
func (h *LeadsHandler) UpdateStatus(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.StatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	lead, err := h.service.UpdateStatus(c.UserContext(), tenantID, userID, c.Params("leadId"), domain.LeadStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": leadResponse(lead)})
}

// Convert POST /leads/:leadId/convert.
func (h *LeadsHandler) Convert(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	job, err := h.service.ConvertToJob(c.UserContext(), tenantID, userID, c.Params("leadId"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": jobResponse(job)})
}

// List GET /leads?status=&assignee_id=&customer_id=&created_from=&created_to=&search=.
func (h *LeadsHandler) List(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	from, err := parseTime(c, "created_from")
	if err != nil {
		return err
	}
	to, err := parseTime(c, "created_to")
	if err != nil {
		return err
	}
	page := pageQuery(c)
	leads, err := h.service.List(c.UserContext(), tenantID, userID, repository.LeadFilter{
		Statuses:    parseList[domain.LeadStatus](c.Query("status")),
		AssigneeID:  optionalQuery(c, "assignee_id"),
		CustomerID:  optionalQuery(c, "customer_id"),
		CreatedFrom: from,
		CreatedTo:   to,
		Search:      c.Query("search"),
		Limit:       page.Limit,
		Offset:      page.Offset,
	})
	if err != nil {
		return err
	}
	items := make([]dto.LeadResponse, 0, len(leads))
	for i := range leads {
		items = append(items, leadResponse(&leads[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func leadResponse(l *domain.Lead) dto.LeadResponse {
	return dto.LeadResponse{
		ID:             l.ID,
		Title:          l.Title,
		Source:         l.Source,
		Notes:          l.Notes,
		Status:         l.Status,
		CustomerID:     l.CustomerID,
		AssigneeID:     l.AssigneeID,
		ConvertedJobID: l.ConvertedJobID,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}
