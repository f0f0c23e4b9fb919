package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/fieldops/internal/api/http/handlers"
	"github.com/spec-kit/fieldops/internal/auth"
	"github.com/spec-kit/fieldops/internal/observability"
	apperrors "github.com/spec-kit/fieldops/pkg/util"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Auth      *handlers.AuthHandler
	Customers *handlers.CustomersHandler
	Leads     *handlers.LeadsHandler
	Jobs      *handlers.JobsHandler
	Estimates *handlers.EstimatesHandler
	Public    *handlers.PublicEstimatesHandler
	Invoices  *handlers.InvoicesHandler
	Team      *handlers.TeamHandler
	Activity  *handlers.ActivityHandler

	AuthMiddleware *auth.AuthMiddleware
	Guard          *auth.Guard
	Metrics        *observability.Metrics

	// DecisionRateLimit caps public decisions per client IP within DecisionRateWindow. Zero disables it.
	DecisionRateLimit  int
	DecisionRateWindow time.Duration
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/signup", cfg.Auth.Signup)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/password/change", cfg.AuthMiddleware.Handle, cfg.Auth.ChangePassword)

	public := app.Group("/public/estimates")
	public.Get("/:token", cfg.Public.Get)
	public.Post("/:token/decision", decisionLimiter(cfg.DecisionRateLimit, cfg.DecisionRateWindow), cfg.Public.Decide)

	// Invite acceptance happens before the caller is a member of the tenant.
	app.Post("/invites/:token/accept", cfg.AuthMiddleware.Handle, cfg.Team.AcceptInvite)

	tenant := app.Group("/tenants/:tenantId", cfg.AuthMiddleware.Handle, auth.RequireMember(cfg.Guard))

	tenant.Post("/customers", cfg.Customers.Create)
	tenant.Get("/customers", cfg.Customers.List)
	tenant.Get("/customers/:customerId", cfg.Customers.Get)

	tenant.Post("/leads", cfg.Leads.Create)
	tenant.Get("/leads", cfg.Leads.List)
	tenant.Post("/leads/:leadId/status", cfg.Leads.UpdateStatus)
	tenant.Post("/leads/:leadId/convert", cfg.Leads.Convert)

	tenant.Post("/jobs", cfg.Jobs.Create)
	tenant.Get("/jobs", cfg.Jobs.List)
	tenant.Get("/jobs/:jobId", cfg.Jobs.Get)
	tenant.Post("/jobs/:jobId/status", cfg.Jobs.UpdateStatus)
	tenant.Delete("/jobs/:jobId", cfg.Jobs.Archive)

	tenant.Post("/estimates", cfg.Estimates.Create)
	tenant.Get("/estimates", cfg.Estimates.List)
	tenant.Get("/estimates/:estimateId", cfg.Estimates.Get)
	tenant.Patch("/estimates/:estimateId", cfg.Estimates.Update)
	tenant.Delete("/estimates/:estimateId", cfg.Estimates.Archive)
	tenant.Post("/estimates/:estimateId/status", cfg.Estimates.SetStatus)
	tenant.Post("/estimates/:estimateId/share", cfg.Estimates.Share)
	tenant.Delete("/estimates/:estimateId/share", cfg.Estimates.RevokeShare)

	tenant.Post("/invoices", cfg.Invoices.Create)
	tenant.Get("/invoices", cfg.Invoices.List)
	tenant.Get("/invoices/:invoiceId", cfg.Invoices.Get)
	tenant.Post("/invoices/:invoiceId/status", cfg.Invoices.UpdateStatus)

	tenant.Get("/members", cfg.Team.ListMembers)
	tenant.Patch("/members/:userId", cfg.Team.UpdateRole)
	tenant.Delete("/members/:userId", cfg.Team.RemoveMember)
	tenant.Post("/invites", cfg.Team.CreateInvite)
	tenant.Get("/invites", cfg.Team.ListInvites)
	tenant.Delete("/invites/:inviteId", cfg.Team.RevokeInvite)

	tenant.Delete("/activity/events/:eventId", cfg.Activity.Archive)
	tenant.Get("/activity/:entityType/:entityId", cfg.Activity.List)
	tenant.Get("/activity/:entityType/:entityId/stream", cfg.Activity.Stream)
}

func decisionLimiter(limit int, window time.Duration) fiber.Handler {
	if limit <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: window,
		LimitReached: func(c *fiber.Ctx) error {
			return apperrors.NewDomainError(apperrors.CodeRateLimited, "too many requests", fiber.StatusTooManyRequests, nil)
		},
	})
}
