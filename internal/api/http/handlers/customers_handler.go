package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fieldops/internal/api/dto"
	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/repository"
	"github.com/spec-kit/fieldops/internal/service"
)

// CustomersHandler serves /tenants/:tenantId/customers.
type CustomersHandler struct {
	service *service.CustomerService
}

// NewCustomersHandler constructs handler.
func NewCustomersHandler(customerService *service.CustomerService) *CustomersHandler {
	return &CustomersHandler{service: customerService}
}

// Create POST /customers.
func (h *CustomersHandler) Create(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.CreateCustomerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	customer, err := h.service.Create(c.UserContext(), tenantID, userID, service.CustomerInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": customerResponse(customer)})
}

// Get GET /customers/:customerId.
func (h *CustomersHandler) Get(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	customer, err := h.service.Get(c.UserContext(), tenantID, userID, c.Params("customerId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": customerResponse(customer)})
}

// List GET /customers?search=&page=&page_size=.
func (h *CustomersHandler) List(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	page := pageQuery(c)
	customers, err := h.service.List(c.UserContext(), tenantID, userID, repository.CustomerFilter{
		Search:          c.Query("search"),
		IncludeArchived: c.QueryBool("include_archived"),
		Limit:           page.Limit,
		Offset:          page.Offset,
	})
	if err != nil {
		return err
	}
	items := make([]dto.CustomerResponse, 0, len(customers))
	for i := range customers {
		items = append(items, customerResponse(&customers[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func customerResponse(cu *domain.Customer) dto.CustomerResponse {
	return dto.CustomerResponse{
		ID:        cu.ID,
		Name:      cu.Name,
		Email:     cu.Email,
		Phone:     cu.Phone,
		Address:   cu.Address,
		CreatedAt: cu.CreatedAt,
	}
}
