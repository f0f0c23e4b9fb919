package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fieldops/internal/api/dto"
	"github.com/spec-kit/fieldops/internal/domain"
	"github.com/spec-kit/fieldops/internal/repository"
	"github.com/spec-kit/fieldops/internal/service"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

// JobsHandler serves /tenants/:tenantId/jobs.
type JobsHandler struct {
	service *service.JobService
}

// NewJobsHandler constructs handler.
func NewJobsHandler(jobService *service.JobService) *JobsHandler {
	return &JobsHandler{service: jobService}
}

// Create POST /jobs.
func (h *JobsHandler) Create(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.CreateJobRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.CustomerID == "" {
		return apperrors.NewValidationError("customer_id required", nil)
	}
	job, err := h.service.Create(c.UserContext(), tenantID, userID, service.JobInput{
		CustomerID:   req.CustomerID,
		Title:        req.Title,
		Description:  req.Description,
		AssigneeID:   req.AssigneeID,
		ScheduledFor: req.ScheduledFor,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": jobResponse(job)})
}

// Get GET /jobs/:jobId.
func (h *JobsHandler) Get(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	job, err := h.service.Get(c.UserContext(), tenantID, userID, c.Params("jobId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": jobResponse(job)})
}

// UpdateStatus POST /jobs/:jobId/status.
func (h *JobsHandler) UpdateStatus(c *fiber.Ctx) error {
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
	job, err := h.service.UpdateStatus(c.UserContext(), tenantID, userID, c.Params("jobId"), domain.JobStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": jobResponse(job)})
}

// Archive DELETE /jobs/:jobId.
func (h *JobsHandler) Archive(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	if err := h.service.Archive(c.UserContext(), tenantID, userID, c.Params("jobId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// List GET /jobs?status=&assignee_id=&customer_id=&scheduled_from=&scheduled_to=&search=.
func (h *JobsHandler) List(c *fiber.Ctx) error {
	tenantID, userID, err := caller(c)
	if err != nil {
		return err
	}
	from, err := parseTime(c, "scheduled_from")
	if err != nil {
		return err
	}
	to, err := parseTime(c, "scheduled_to")
	if err != nil {
		return err
	}
	page := pageQuery(c)
	jobs, err := h.service.List(c.UserContext(), tenantID, userID, repository.JobFilter{
		Statuses:      parseList[domain.JobStatus](c.Query("status")),
		AssigneeID:    optionalQuery(c, "assignee_id"),
		CustomerID:    optionalQuery(c, "customer_id"),
		ScheduledFrom: from,
		ScheduledTo:   to,
		Search:        c.Query("search"),
		Limit:         page.Limit,
		Offset:        page.Offset,
	})
	if err != nil {
		return err
	}
	items := make([]dto.JobResponse, 0, len(jobs))
	for i := range jobs {
		items = append(items, jobResponse(&jobs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func jobResponse(j *domain.Job) dto.JobResponse {
	return dto.JobResponse{
		ID:           j.ID,
		CustomerID:   j.CustomerID,
		LeadID:       j.LeadID,
		AssigneeID:   j.AssigneeID,
		Title:        j.Title,
		Description:  j.Description,
		Status:       j.Status,
		ScheduledFor: j.ScheduledFor,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}
