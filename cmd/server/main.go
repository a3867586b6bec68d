package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yourorg/teamtask/internal/domain"
	"github.com/yourorg/teamtask/internal/featureflags"
	"github.com/yourorg/teamtask/internal/handler"
	"github.com/yourorg/teamtask/internal/infrastructure/logger"
	"github.com/yourorg/teamtask/internal/infrastructure/redis"
	"github.com/yourorg/teamtask/internal/notifier"
	"github.com/yourorg/teamtask/internal/observability/metrics"
	"github.com/yourorg/teamtask/internal/observability/tracing"
	"github.com/yourorg/teamtask/internal/repository"
	"github.com/yourorg/teamtask/internal/security"
	"github.com/yourorg/teamtask/internal/security/audit"
	"github.com/yourorg/teamtask/internal/security/auth"
	"github.com/yourorg/teamtask/internal/security/middleware"
	"github.com/yourorg/teamtask/internal/security/ratelimit"
	"github.com/yourorg/teamtask/internal/service"
	"github.com/yourorg/teamtask/pkg/config"
	"github.com/yourorg/teamtask/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting teamtask server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize tracing (no-op without an endpoint)
	shutdownTracing, err := tracing.Init(ctx, log, "teamtask", cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Connect the record store
	pool, err := database.NewConnectionPool(ctx, &database.Config{URL: cfg.DatabaseURL}, log)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	db := pool.GetDB()

	// 5. Optional redis for shared rate-limit windows
	var redisClient *redis.Client
	if cfg.RedisURL != "" && featureflags.Enabled(featureflags.RedisRateLimit) {
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Error("failed to connect to redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
	}

	// 6. Repositories
	employeeRepo := repository.NewPostgresEmployeeRepository(db, log)
	taskRepo := repository.NewPostgresTaskRepository(db, log)
	invitationRepo := repository.NewPostgresInvitationRepository(db, log)

	// 7. Policy, notifier, services
	policy := security.NewTaskPolicy(employeeRepo, log)
	authz := security.NewAuthorizationService(log)

	var invitationNotifier domain.Notifier
	if featureflags.Enabled(featureflags.EmailDryRun) {
		invitationNotifier = notifier.NewLogNotifier(cfg.FrontendURL, log)
	} else {
		invitationNotifier = notifier.NewSMTPNotifier(
			cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass,
			cfg.SMTPSender, cfg.FrontendURL, log,
		)
	}

	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "teamtask")
	taskService := service.NewTaskService(taskRepo, employeeRepo, policy, log)
	invitationService := service.NewInvitationService(invitationRepo, employeeRepo, invitationNotifier, log)
	authService := service.NewAuthService(employeeRepo, tokenManager, log)

	// 8. Handlers
	loginHandler := handler.NewLoginHandler(authService, log)
	changePasswordHandler := handler.NewChangePasswordHandler(authService, log)
	tasksHandler := handler.NewTasksHandler(taskService, log)
	taskItemHandler := handler.NewTaskItemHandler(taskService, log)
	inviteHandler := handler.NewInviteHandler(invitationService, employeeRepo, authz, log)
	managerInviteHandler := handler.NewManagerInviteHandler(invitationService, employeeRepo, authz, log)
	verifyHandler := handler.NewVerifyHandler(invitationService, log)
	registerHandler := handler.NewRegisterHandler(invitationService, log)
	teamHandler := handler.NewTeamHandler(employeeRepo, authz, log)
	healthHandler := handler.NewHealthHandler(db, redisClient, log)

	// 8a. Security components
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	if redisClient != nil {
		rateLimiter.WithRedis(redisClient)
	}
	auditLogger := audit.NewLogger(log)

	// 9. Routes
	mux := http.NewServeMux()
	mux.Handle("POST /api/login", loginHandler)
	mux.Handle("POST /api/auth/password", changePasswordHandler)
	mux.Handle("POST /api/register", registerHandler)
	mux.Handle("GET /api/invitations/verify", verifyHandler)
	mux.Handle("GET /api/tasks", tasksHandler)
	mux.Handle("POST /api/tasks", tasksHandler)
	mux.Handle("PUT /api/tasks/{id}", taskItemHandler)
	mux.Handle("PATCH /api/tasks/{id}", taskItemHandler)
	mux.Handle("DELETE /api/tasks/{id}", taskItemHandler)
	mux.Handle("GET /api/team/employees", teamHandler)
	mux.Handle("POST /api/team/invitations", inviteHandler)
	mux.Handle("POST /api/team/invitations/manager", managerInviteHandler)
	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	// CORS middleware honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// Chain middleware: request ID -> metrics -> hygiene -> JWT -> rate limit -> audit -> CORS+mux
	rootHandler := withRequestID(
		metrics.HTTPMetricsMiddleware(
			middleware.RejectPathTraversal(log)(
				middleware.LimitBodySize()(
					middleware.ValidateJSONContentType(log)(
						middleware.JWTMiddleware(tokenManager, log)(
							middleware.RateLimitMiddleware(rateLimiter, log)(
								middleware.AuditMiddleware(auditLogger)(handlerWithCORS),
							),
						),
					),
				),
			),
		),
		log,
	)

	// 10. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Int("rate_limit", cfg.RateLimitRequests),
		slog.Duration("rate_limit_window", cfg.RateLimitWindow),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	rateLimiter.Stop()
	log.Info("server stopped")
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
