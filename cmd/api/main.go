package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avelhart/shelfmark/internal/auth"
	"github.com/avelhart/shelfmark/internal/background"
	"github.com/avelhart/shelfmark/internal/config"
	"github.com/avelhart/shelfmark/internal/database"
	"github.com/avelhart/shelfmark/internal/handlers"
	appmiddleware "github.com/avelhart/shelfmark/internal/middleware"
	"github.com/avelhart/shelfmark/internal/repositories"
	"github.com/avelhart/shelfmark/internal/routes"
	"github.com/avelhart/shelfmark/internal/services"
	"github.com/avelhart/shelfmark/internal/store"
	pkghttp "github.com/avelhart/shelfmark/pkg/http"
	pkglogger "github.com/avelhart/shelfmark/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Apply pending migrations before opening the pool
	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := database.Migrate(migrateCtx, &cfg.Database); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	migrateCancel()

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	sessionStore, err := store.New(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer sessionStore.Close()

	userRepo := repositories.NewUserRepository(db)
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Token and verification plumbing
	tokenService := auth.NewTokenService(sessionStore, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL, logger)
	apiKeys := auth.NewAPIKeyManager()

	var mailer auth.EmailSender
	if cfg.Email.Provider == "ses" {
		sesMailer, err := services.NewAWSSESEmailService(&cfg.Email, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		mailer = sesMailer
	} else {
		mailer = services.NewLogEmailService(logger)
	}

	verificationService := auth.NewVerificationService(
		sessionStore,
		userRepo,
		tokenService,
		mailer,
		cfg.Auth.VerificationTokenTTL,
		cfg.Auth.ProfileCacheTTL,
		logger,
		auditLogger,
	)

	rateLimiter := services.NewRateLimitService(sessionStore, services.RateLimitConfig{
		MaxAttempts: cfg.Auth.RateLimitMaxAttempts,
		Window:      cfg.Auth.RateLimitWindow,
	}, logger)

	localStrategy := auth.NewLocalStrategy(userRepo, rateLimiter, verificationService, logger, auditLogger)
	googleStrategy := auth.NewGoogleStrategy(
		&cfg.Google,
		userRepo,
		sessionStore,
		tokenService,
		verificationService,
		cfg.Auth.PKCETTL,
		cfg.Auth.ProfileCacheTTL,
		logger,
		auditLogger,
	)

	authService := services.NewAuthService(userRepo, verificationService, logger, auditLogger)
	userService := services.NewUserService(userRepo, tokenService, apiKeys, sessionStore, cfg.Auth.ProfileCacheTTL, logger, auditLogger)

	guard := auth.NewGuard(tokenService, userRepo, sessionStore, apiKeys, cfg.Auth.ProfileCacheTTL, logger)

	cookieConfig := auth.CookieConfig{
		Domain: cfg.Auth.CookieDomain,
		Secure: cfg.Auth.CookieSecure,
	}
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	authHandler := handlers.NewAuthHandler(
		authService,
		localStrategy,
		tokenService,
		verificationService,
		cookieConfig,
		cfg.Auth.RefreshTokenTTL,
		ipConfig,
	)
	googleHandler := handlers.NewGoogleHandler(
		googleStrategy,
		cookieConfig,
		cfg.Auth.RefreshTokenTTL,
		cfg.Auth.PKCETTL,
		cfg.Server.ClientOrigin,
		logger,
	)
	userHandler := handlers.NewUserHandler(userService)

	healthCheck := func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}
		if err := sessionStore.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","redis":"down"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(appmiddleware.SecurityHeaders(appmiddleware.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Api-Key"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           3600,
	}))
	router.Use(appmiddleware.RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, googleHandler, userHandler, guard, healthCheck)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sampler := background.NewHealthSampler(db, sessionStore, logger, 1*time.Minute)
	samplerCtx, samplerCancel := context.WithCancel(context.Background())
	defer samplerCancel()
	go sampler.Start(samplerCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	samplerCancel()
	sampler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
