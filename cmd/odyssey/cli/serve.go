package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-crm/odyssey-crm/internal/app"
	"github.com/odyssey-crm/odyssey-crm/internal/audit"
	"github.com/odyssey-crm/odyssey-crm/internal/auth"
	"github.com/odyssey-crm/odyssey-crm/internal/customers"
	"github.com/odyssey-crm/odyssey-crm/internal/dashboard"
	"github.com/odyssey-crm/odyssey-crm/internal/deals"
	"github.com/odyssey-crm/odyssey-crm/internal/guard"
	"github.com/odyssey-crm/odyssey-crm/internal/leads"
	"github.com/odyssey-crm/odyssey-crm/internal/observability"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/cache"
	"github.com/odyssey-crm/odyssey-crm/internal/platform/db"
	"github.com/odyssey-crm/odyssey-crm/internal/rbac"
	"github.com/odyssey-crm/odyssey-crm/internal/settings"
	"github.com/odyssey-crm/odyssey-crm/internal/setup"
	"github.com/odyssey-crm/odyssey-crm/internal/shared"
	"github.com/odyssey-crm/odyssey-crm/internal/tasks"
	"github.com/odyssey-crm/odyssey-crm/internal/users"
	"github.com/odyssey-crm/odyssey-crm/internal/view"
	"github.com/odyssey-crm/odyssey-crm/jobs"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return err
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	g := guard.New(logger, metrics)
	gm := guard.Middleware{Guard: g}

	sessionManager := shared.NewSessionManager(redisClient, "odyssey_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	idempotency := shared.NewIdempotencyStore(redisClient, 24*time.Hour)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		return err
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	changes := shared.ChangeRecorder{Audit: auditLogger, Notifier: jobClient, Logger: logger}

	authService := auth.NewService(auth.NewRepository(pool), auditLogger, logger)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)

	leadRepo := leads.NewRepository(pool)
	customerRepo := customers.NewRepository(pool)
	dealRepo := deals.NewRepository(pool)
	taskRepo := tasks.NewRepository(pool)
	userRepo := users.NewRepository(pool)

	dashboardService := dashboard.NewService(
		dashboard.NewRepository(pool),
		dashboard.NewCache(redisClient, cfg.DashboardCacheTTL, metrics),
		g,
	)
	settingsService := settings.NewService(settings.NewRepository(pool), settings.Sources{
		Users:     userRepo,
		Leads:     leadRepo,
		Customers: customerRepo,
		Deals:     dealRepo,
		Tasks:     taskRepo,
	}, g, changes)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Authenticator:  &auth.Authenticator{Service: authService, Tokens: tokens, Logger: logger},
		Guard:          gm,
		Metrics:        metrics,

		AuthHandler:        auth.NewHandler(logger, authService, tokens, g, templates, sessionManager, csrfManager),
		SetupHandler:       setup.NewHandler(logger, setup.NewService(setup.NewStore(pool), cfg.SetupToken), idempotency),
		LeadsHandler:       leads.NewHandler(logger, leads.NewService(leadRepo, g, changes), gm, idempotency),
		CustomersHandler:   customers.NewHandler(logger, customers.NewService(customerRepo, g, changes), gm),
		DealsHandler:       deals.NewHandler(logger, deals.NewService(dealRepo, g, changes), gm),
		TasksHandler:       tasks.NewHandler(logger, tasks.NewService(taskRepo, g, changes), gm),
		UsersHandler:       users.NewHandler(logger, users.NewService(userRepo, g, changes), gm),
		DashboardHandler:   dashboard.NewHandler(logger, dashboardService, gm),
		SettingsHandler:    settings.NewHandler(logger, settingsService, gm),
		AuditHandler:       audit.NewHandler(logger, audit.NewService(audit.NewRepository(pool), g), gm),
		JobHandler:         jobs.NewHandler(inspector, logger),
		PermissionsHandler: rbac.NewPermissionsHandler(gm.Require),
		Shell:              view.NewShell(logger, templates, csrfManager, gm),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("http server", slog.Any("error", err))
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return err
	}
	return nil
}
