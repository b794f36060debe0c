package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/pesio-ai/be-hr-governance/internal/client"
	"github.com/pesio-ai/be-hr-governance/internal/config"
	"github.com/pesio-ai/be-hr-governance/internal/handler"
	"github.com/pesio-ai/be-hr-governance/internal/logger"
	"github.com/pesio-ai/be-hr-governance/internal/middleware"
	"github.com/pesio-ai/be-hr-governance/internal/repository"
	"github.com/pesio-ai/be-hr-governance/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting HR Governance Service (HR-2)")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database pool
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid database URL")
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Database ping failed")
	}
	log.Info().Msg("Database connection established")

	// Initialize repositories
	policyRepo := repository.NewPolicyRepository(db)
	approvalPolicyRepo := repository.NewApprovalPolicyRepository(db)
	auditRepo := repository.NewDecisionAuditRepository(db)

	// Initialize process-legality authority client
	processClient := client.NewProcessClient(cfg.Collaborators.ProcessLegalityURL)
	log.Info().
		Str("process_legality_url", cfg.Collaborators.ProcessLegalityURL).
		Msg("Process legality client initialized")

	// Initialize NATS notification publisher (optional)
	var notifier *client.NotificationPublisher
	if cfg.NATS.Enabled {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name(cfg.Service.Name))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nc.Drain()
		notifier = client.NewNotificationPublisher(nc, log.Logger)
		log.Info().Str("nats_url", cfg.NATS.URL).Msg("NATS notification publisher initialized")
	} else {
		notifier = client.NewNotificationPublisher(nil, log.Logger)
		log.Info().Msg("NATS notifications disabled")
	}

	// Initialize services
	policyService := service.NewPolicyService(policyRepo, log)
	approvalService := service.NewApprovalService(approvalPolicyRepo, log)
	governanceService := service.NewGovernanceService(
		processClient,
		policyService,
		approvalService,
		auditRepo,
		notifier,
		log,
	)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(governanceService, policyService, approvalService, log)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Governance routes
	mux.HandleFunc("/api/v1/governance/evaluate", httpHandler.EvaluateTransition)
	mux.HandleFunc("/api/v1/governance/decisions", httpHandler.ListDecisions)

	// Policy administration routes
	mux.HandleFunc("/api/v1/policies", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			httpHandler.ListPolicies(w, r)
		case http.MethodPost:
			httpHandler.CreatePolicy(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/policies/get", httpHandler.GetPolicy)
	mux.HandleFunc("/api/v1/policies/delete", httpHandler.DeletePolicy)

	mux.HandleFunc("/api/v1/approval-policies", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			httpHandler.ListApprovalPolicies(w, r)
		case http.MethodPost:
			httpHandler.CreateApprovalPolicy(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/approval-policies/get", httpHandler.GetApprovalPolicy)
	mux.HandleFunc("/api/v1/approval-policies/delete", httpHandler.DeleteApprovalPolicy)

	// Apply middleware. RequestID wraps Logger so the ID is in the request
	// context by the time the access log line is written.
	var h http.Handler = mux
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.RequestID(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(30 * time.Second)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
