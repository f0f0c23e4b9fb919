package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fieldops/internal/api/dto"
	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/repository"
	"github.com/spec-kit/fieldops/internal/service"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

// EstimatesHandler serves /tenants/:tenantId/estimates.
type EstimatesHandler struct {
	service *service.EstimateService
}

// NewEstimatesHandler constructs handler.
func NewEstimatesHandler(estimateService *service.EstimateService) *EstimatesHandler {
	return &EstimatesHandler{service: estimateService}
}

// Create POST /estimates.
func (h *EstimatesHandler) Create(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.CreateEstimateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.JobID == "" {
		return apperrors.NewValidationError("job_id required", nil)
	}
	est, err := h.service.Create(c.UserContext(), tenantID, userID, service.EstimateCreateInput{
		JobID:  req.JobID,
		Items:  itemInputs(req.Items),
		Status: req.Status,
		Notes:  req.Notes,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": estimateResponse(est)})
}

// Update PATCH /estimates/:estimateId.
func (h *EstimatesHandler) Update(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.UpdateEstimateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	est, err := h.service.Update(c.UserContext(), tenantID, userID, c.Params("estimateId"), service.EstimateUpdateInput{
		Items:  itemInputs(req.Items),
		Status: req.Status,
		Notes:  req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": estimateResponse(est)})
}

// SetStatus POST /estimates/:estimateId/status.
func (h *EstimatesHandler) SetStatus(c *fiber.Ctx) error {
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
	est, err := h.service.SetStatus(c.UserContext(), tenantID, userID, c.Params("estimateId"), domain.EstimateStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": estimateResponse(est)})
}

// Share POST /estimates/:estimateId/share.
func (h *EstimatesHandler) Share(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.ShareEstimateRequest
	if len(c.Body()) > 0 {
		if err := bind(c, &req); err != nil {
			return err
		}
	}
	result, err := h.service.Share(c.UserContext(), tenantID, userID, c.Params("estimateId"), req.ExpiresInDays)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ShareEstimateResponse{Token: result.Token, ExpiresAt: result.ExpiresAt}})
}

// RevokeShare DELETE /estimates/:estimateId/share.
func (h *EstimatesHandler) RevokeShare(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	est, err := h.service.RevokeShare(c.UserContext(), tenantID, userID, c.Params("estimateId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": estimateResponse(est)})
}

// Archive DELETE /estimates/:estimateId.
func (h *EstimatesHandler) Archive(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	if err := h.service.Archive(c.UserContext(), tenantID, userID, c.Params("estimateId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Get GET /estimates/:estimateId.
func (h *EstimatesHandler) Get(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	est, err := h.service.Get(c.UserContext(), tenantID, userID, c.Params("estimateId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": estimateResponse(est)})
}

// List GET /estimates?job_id=&status=&created_from=&created_to=.
func (h *EstimatesHandler) List(c *fiber.Ctx) error {
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
	estimates, err := h.service.List(c.UserContext(), tenantID, userID, repository.EstimateFilter{
		JobID:       optionalQuery(c, "job_id"),
		Statuses:    parseList[domain.EstimateStatus](c.Query("status")),
		CreatedFrom: from,
		CreatedTo:   to,
		Limit:       page.Limit,
		Offset:      page.Offset,
	})
	if err != nil {
		return err
	}
	items := make([]dto.EstimateResponse, 0, len(estimates))
	for i := range estimates {
		items = append(items, estimateResponse(&estimates[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func itemInputs(items []dto.EstimateItemRequest) []service.EstimateItemInput {
	if items == nil {
		return nil
	}
	out := make([]service.EstimateItemInput, len(items))
	for i, it := range items {
		out[i] = service.EstimateItemInput{Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return out
}

func estimateResponse(e *domain.Estimate) dto.EstimateResponse {
	items := make([]dto.LineItemResponse, 0, len(e.Items))
	for _, it := range e.Items {
		items = append(items, dto.LineItemResponse{
			Name:      it.Name,
			Quantity:  it.Quantity.String(),
			UnitPrice: it.UnitPrice.StringFixed(2),
			LineTotal: it.LineTotal.StringFixed(2),
		})
	}
	return dto.EstimateResponse{
		ID:              e.ID,
		JobID:           e.JobID,
		Number:          e.Number,
		Status:          e.Status,
		Notes:           e.Notes,
		Items:           items,
		Subtotal:        e.Subtotal.StringFixed(2),
		Total:           e.Total.StringFixed(2),
		PublicEnabled:   e.PublicEnabled,
		PublicExpiresAt: e.PublicExpiresAt,
		LastSharedAt:    e.LastSharedAt,
		DecidedAt:       e.DecidedAt,
		SignerName:      e.SignerName,
		SignerEmail:     e.SignerEmail,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}
