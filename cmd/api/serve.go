package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/fieldops/internal/api/http"
	"github.com/spec-kit/fieldops/internal/api/http/handlers"
	"github.com/spec-kit/fieldops/internal/auth"
	"github.com/spec-kit/fieldops/internal/config"
	"github.com/spec-kit/fieldops/internal/events"
	"github.com/spec-kit/fieldops/internal/observability"
	"github.com/spec-kit/fieldops/internal/persistence"
	"github.com/spec-kit/fieldops/internal/service"
	"github.com/spec-kit/fieldops/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func serve(ctx context.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.App, cfg.Telemetry, logger)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			return err
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	store := openStorage(pg, logger)
	guard := auth.NewGuard(store.tenants, store.users, store.memberships)

	dispatcher := events.NewInMemoryDispatcher()
	notifyDeps := service.NotificationDependencies{
		Primary:   dispatcher,
		Transport: config.TransportLocal,
		Exporters: map[string]events.Publisher{},
		Metrics:   metrics,
		Logger:    logger,
	}
	var redisRelay *events.RedisRelay
	if cfg.Notification.Transport == config.TransportRedis {
		notifyDeps.Primary = events.NewRedisPublisher(redis.Client)
		notifyDeps.Transport = config.TransportRedis
		notifyDeps.External = true
		redisRelay = events.NewRedisRelay(redis.Client, cfg.Notification.Channel, dispatcher, logger)
	}
	if cfg.Notification.NATSURL != "" {
		exporter, err := events.NewNATSExporter(cfg.Notification.NATSURL, cfg.Notification.NATSStream)
		if err != nil {
			logger.Warn("nats export disabled", zap.Error(err))
		} else {
			defer exporter.Close()
			notifyDeps.Exporters["nats"] = exporter
		}
	}
	notifier := service.NewNotificationService(notifyDeps)
	relay := worker.NewNotificationRelay(notifier, cfg.Notification.QueueSize, metrics, logger)

	activityService := service.NewActivityService(service.ActivityDependencies{
		ActivityRepo: store.activity,
		Guard:        guard,
		Queue:        relay,
	})
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:       store.users,
		TenantRepo:     store.tenants,
		MembershipRepo: store.memberships,
		Tx:             store.tx,
		Tokens:         tokens,
		BcryptCost:     cfg.Auth.BcryptCost,
	})
	customerService := service.NewCustomerService(service.CustomerDependencies{
		CustomerRepo: store.customers,
		Guard:        guard,
		Activity:     activityService,
		Tx:           store.tx,
	})
	leadService := service.NewLeadService(service.LeadDependencies{
		LeadRepo:       store.leads,
		JobRepo:        store.jobs,
		CustomerRepo:   store.customers,
		MembershipRepo: store.memberships,
		Guard:          guard,
		Activity:       activityService,
		Tx:             store.tx,
	})
	jobService := service.NewJobService(service.JobDependencies{
		JobRepo:        store.jobs,
		CustomerRepo:   store.customers,
		MembershipRepo: store.memberships,
		Guard:          guard,
		Activity:       activityService,
		Tx:             store.tx,
	})
	estimateService := service.NewEstimateService(service.EstimateDependencies{
		EstimateRepo:     store.estimates,
		JobRepo:          store.jobs,
		Guard:            guard,
		Activity:         activityService,
		Tx:               store.tx,
		DefaultShareDays: cfg.Public.DefaultShareDays,
	})
	publicService := service.NewPublicEstimateService(service.PublicEstimateDependencies{
		EstimateRepo: store.estimates,
		Activity:     activityService,
		Tx:           store.tx,
	})
	invoiceService := service.NewInvoiceService(service.InvoiceDependencies{
		InvoiceRepo:  store.invoices,
		EstimateRepo: store.estimates,
		Guard:        guard,
		Activity:     activityService,
		Tx:           store.tx,
	})
	teamService := service.NewTeamService(service.TeamDependencies{
		InviteRepo:     store.invites,
		MembershipRepo: store.memberships,
		UserRepo:       store.users,
		Guard:          guard,
		Activity:       activityService,
		Tx:             store.tx,
		InviteTTL:      cfg.Auth.InviteTTL(),
	})

	healthDeps := map[string]handlers.Pinger{}
	if pg.PoolHandle() != nil {
		healthDeps["postgres"] = pg
	}
	if redis.Enabled() {
		healthDeps["redis"] = redis
	}
	activityHandler := handlers.NewActivityHandler(activityService, dispatcher, cfg.Notification.Heartbeat())

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:             handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, healthDeps),
		Auth:               handlers.NewAuthHandler(authService),
		Customers:          handlers.NewCustomersHandler(customerService),
		Leads:              handlers.NewLeadsHandler(leadService),
		Jobs:               handlers.NewJobsHandler(jobService),
		Estimates:          handlers.NewEstimatesHandler(estimateService),
		Public:             handlers.NewPublicEstimatesHandler(publicService),
		Invoices:           handlers.NewInvoicesHandler(invoiceService),
		Team:               handlers.NewTeamHandler(teamService),
		Activity:           activityHandler,
		AuthMiddleware:     auth.NewAuthMiddleware(tokens, store.users),
		Guard:              guard,
		Metrics:            metrics,
		DecisionRateLimit:  cfg.Public.DecisionRateLimit,
		DecisionRateWindow: cfg.Public.RateLimitWindow(),
	})

	// The relay outlives the listener so notifications committed by in-flight requests still go out.
	relayCtx, stopRelay := context.WithCancel(context.WithoutCancel(ctx))
	defer stopRelay()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relay.Run(relayCtx)
	})
	if redisRelay != nil {
		g.Go(func() error {
			return redisRelay.Run(gCtx)
		})
	}
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down")
		activityHandler.Close()
		err := app.ShutdownWithTimeout(shutdownTimeout)
		stopRelay()
		return err
	})

	return g.Wait()
}
