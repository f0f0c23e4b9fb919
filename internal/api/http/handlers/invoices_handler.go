package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fieldops/internal/api/dto"
	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/repository"
	"github.com/spec-kit/fieldops/internal/service"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

// InvoicesHandler serves /tenants/:tenantId/invoices.
type InvoicesHandler struct {
	service *service.InvoiceService
}

// NewInvoicesHandler constructs handler.
func NewInvoicesHandler(invoiceService *service.InvoiceService) *InvoicesHandler {
	return &InvoicesHandler{service: invoiceService}
}

// Create POST /invoices.
func (h *InvoicesHandler) Create(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.CreateInvoiceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.EstimateID == "" {
		return apperrors.NewValidationError("estimate_id required", nil)
	}
	inv, err := h.service.CreateFromEstimate(c.UserContext(), tenantID, userID, service.InvoiceCreateInput{
		EstimateID: req.EstimateID,
		DueAt:      req.DueAt,
		Notes:      req.Notes,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": invoiceResponse(inv)})
}

// UpdateStatus POST /invoices/:invoiceId/status.
func (h *InvoicesHandler) UpdateStatus(c *fiber.Ctx) error {
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
	inv, err := h.service.UpdateStatus(c.UserContext(), tenantID, userID, c.Params("invoiceId"), domain.InvoiceStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": invoiceResponse(inv)})
}

// Get GET /invoices/:invoiceId.
func (h *InvoicesHandler) Get(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	inv, err := h.service.Get(c.UserContext(), tenantID, userID, c.Params("invoiceId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": invoiceResponse(inv)})
}

// List GET /invoices?job_id=&status=&due_before=.
func (h *InvoicesHandler) List(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	dueBefore, err := parseTime(c, "due_before")
	if err != nil {
		return err
	}
	page := pageQuery(c)
	invoices, err := h.service.List(c.UserContext(), tenantID, userID, repository.InvoiceFilter{
		JobID:     optionalQuery(c, "job_id"),
		Statuses:  parseList[domain.InvoiceStatus](c.Query("status")),
		DueBefore: dueBefore,
		Limit:     page.Limit,
		Offset:    page.Offset,
	})
	if err != nil {
		return err
	}
	items := make([]dto.InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		items = append(items, invoiceResponse(&invoices[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func invoiceResponse(inv *domain.Invoice) dto.InvoiceResponse {
	items := make([]dto.LineItemResponse, 0, len(inv.Items))
	for _, it := range inv.Items {
		items = append(items, dto.LineItemResponse{
			Name:      it.Name,
			Quantity:  it.Quantity.String(),
			UnitPrice: it.UnitPrice.StringFixed(2),
			LineTotal: it.LineTotal.StringFixed(2),
		})
	}
	return dto.InvoiceResponse{
		ID:         inv.ID,
		JobID:      inv.JobID,
		EstimateID: inv.EstimateID,
		Number:     inv.Number,
		Status:     inv.Status,
		Notes:      inv.Notes,
		Items:      items,
		Subtotal:   inv.Subtotal.StringFixed(2),
		Total:      inv.Total.StringFixed(2),
		IssuedAt:   inv.IssuedAt,
		SentAt:     inv.SentAt,
		DueAt:      inv.DueAt,
		PaidAt:     inv.PaidAt,
	}
}
