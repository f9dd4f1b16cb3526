package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"fundops/backend/internal/api"
	"fundops/backend/internal/calendar"
	"fundops/backend/internal/logging"
	"fundops/backend/internal/mcp"
	"fundops/backend/internal/notice"
	"fundops/backend/internal/repository"
	"fundops/backend/internal/services"
	"fundops/backend/internal/telemetry"
	"fundops/backend/internal/tls"
)

const serviceName = "fundops"

func runServe(ctx context.Context, configPath string) error {
	cfg, logger, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	logger.Info("Starting fund workflow service")

	dbPool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer dbPool.Close()
	logger.Info("Database connected")

	if cfg.DB.Migrate {
		if err := repository.Migrate(dbPool); err != nil {
			return err
		}
		logger.Info("Migrations applied")
	}

	store := repository.NewPostgresStore(dbPool)

	cal, err := calendar.Parse(cfg.Calendar.ExtraHolidays)
	if err != nil {
		return fmt.Errorf("calendar.extra_holidays: %w", err)
	}
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}

	clk := clock.New()
	opts := []services.Option{
		services.WithClock(clk),
		services.WithCalendar(cal),
		services.WithLooseMatch(cfg.Notice.LooseMatch),
		services.WithMetrics(metrics),
	}
	if cfg.Notice.CacheTTL > 0 {
		opts = append(opts, services.WithNoticeSource(notice.NewCachedSource(store, cfg.Notice.CacheTTL)))
	}
	workflowService := services.NewWorkflowService(store, logger, opts...)
	templateService := services.NewTemplateService(store, logger, clk)

	logger.Info("Service layer initialized")

	e := newEcho(logger)

	healthHandler := api.NewHandler(store, clk, version)
	e.GET("/health", echo.WrapHandler(http.HandlerFunc(healthHandler.HandleHealth)))

	apiGroup := e.Group("/api/v1")
	api.RegisterHandlers(apiGroup, api.NewServer(templateService, workflowService, logger))
	logger.Info("REST API handlers mounted")

	if cfg.MCP.Enable {
		mcpServer := mcp.NewServer(workflowService)
		mcpHandlers := http.NewServeMux()
		mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
		e.Any("/mcp", echo.WrapHandler(mcpHandlers))
		e.Any("/mcp/*", echo.WrapHandler(mcpHandlers))
		logger.Info("MCP protocol handlers mounted")
	}

	e.GET("/openapi.yaml", echo.WrapHandler(api.SpecHandler(cfg.Server.PublicURL)))
	e.GET("/docs", echo.WrapHandler(api.SwaggerHandler()))

	if cfg.TLS.Enable {
		created, err := tls.EnsureCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
		if err != nil {
			return fmt.Errorf("preparing TLS certificate: %w", err)
		}
		if created {
			logger.Warn("Generated self-signed certificate", "cert_file", cfg.TLS.CertFile, "hosts", cfg.TLS.Hostnames)
		}
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", cfg.Server.Addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			return
		}
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
		if err := server.Close(); err != nil {
			logger.Error("Server close error", "error", err)
		}
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

func newEcho(logger *logging.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.HTTPErrorHandler(e)

	e.Use(otelecho.Middleware(serviceName))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			keyvals := []interface{}{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				logger.Warn("request failed", append(keyvals, "error", v.Error)...)
				return nil
			}
			logger.Debug("request", keyvals...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	return e
}
