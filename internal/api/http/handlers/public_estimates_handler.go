package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fieldops/internal/api/dto"
	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/service"
)

// PublicEstimatesHandler serves share-link holders. No authentication.
type PublicEstimatesHandler struct {
	service *service.PublicEstimateService
}

// NewPublicEstimatesHandler constructs handler.
func NewPublicEstimatesHandler(publicService *service.PublicEstimateService) *PublicEstimatesHandler {
	return &PublicEstimatesHandler{service: publicService}
}

// Get GET /public/estimates/:token.
func (h *PublicEstimatesHandler) Get(c *fiber.Ctx) error {
	view, err := h.service.GetByToken(c.UserContext(), c.Params("token"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": publicEstimateResponse(view)})
}

// Decide POST /public/estimates/:token/decision.
func (h *PublicEstimatesHandler) Decide(c *fiber.Ctx) error {
	var req dto.DecisionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	view, err := h.service.Decide(c.UserContext(), c.Params("token"), service.DecisionInput{
		Decision:    domain.EstimateStatus(strings.ToUpper(strings.TrimSpace(req.Decision))),
		SignerName:  req.SignerName,
		SignerEmail: req.SignerEmail,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": publicEstimateResponse(view)})
}

func publicEstimateResponse(v *service.EstimateView) dto.PublicEstimateResponse {
	items := make([]dto.LineItemResponse, 0, len(v.Items))
	for _, it := range v.Items {
		items = append(items, dto.LineItemResponse{
			Name:      it.Name,
			Quantity:  it.Quantity.String(),
			UnitPrice: it.UnitPrice.StringFixed(2),
			LineTotal: it.LineTotal.StringFixed(2),
		})
	}
	return dto.PublicEstimateResponse{
		ID:         v.ID,
		Number:     v.Number,
		Status:     v.Status,
		Items:      items,
		Subtotal:   v.Subtotal.StringFixed(2),
		Total:      v.Total.StringFixed(2),
		ExpiresAt:  v.ExpiresAt,
		DecidedAt:  v.DecidedAt,
		SignerName: v.SignerName,
	}
}
