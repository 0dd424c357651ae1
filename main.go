package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-projects/pkg/auth"
	"github.com/ekaya-inc/ekaya-projects/pkg/config"
	"github.com/ekaya-inc/ekaya-projects/pkg/database"
	"github.com/ekaya-inc/ekaya-projects/pkg/handlers"
	"github.com/ekaya-inc/ekaya-projects/pkg/logging"
	"github.com/ekaya-inc/ekaya-projects/pkg/middleware"
	"github.com/ekaya-inc/ekaya-projects/pkg/repositories"
	"github.com/ekaya-inc/ekaya-projects/pkg/retry"
	"github.com/ekaya-inc/ekaya-projects/pkg/services"
	"github.com/ekaya-inc/ekaya-projects/pkg/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.String("error", logging.SanitizeError(err)))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsLocal() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.Bool("redis", cfg.Redis.Enabled()),
		zap.String("storage_endpoint", cfg.Storage.Endpoint))

	// Database
	var db *database.DB
	err := retry.DoIfRetryable(ctx, retry.StartupConfig(), func() error {
		var err error
		db, err = database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.ConnectionString(),
			MaxConnections: cfg.Database.MaxConnections,
		})
		if err != nil {
			logger.Warn("Database not reachable yet", zap.String("error", logging.SanitizeError(err)))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	if err := database.RunMigrations(sqlDB, logger.Named("migrations")); err != nil {
		_ = sqlDB.Close()
		return err
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("Failed to close migration connection", zap.Error(err))
	}

	// Token revocation
	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	} else {
		logger.Warn("Redis not configured; logout will not revoke tokens before expiry")
	}
	revocations := auth.NewRevocationStore(redisClient)

	// Document storage
	var objectStore *storage.MinioStore
	err = retry.DoIfRetryable(ctx, retry.StartupConfig(), func() error {
		var err error
		objectStore, err = storage.NewMinioStore(ctx, &storage.MinioConfig{
			Endpoint:  config.ResolveEndpointForDocker(cfg.Storage.Endpoint),
			Bucket:    cfg.Storage.Bucket,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
		}, logger)
		if err != nil {
			logger.Warn("Object storage not reachable yet", zap.Error(err))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("connect to object storage: %w", err)
	}

	// Tokens and sessions
	var externalValidator auth.TokenValidator
	jwksClient, err := auth.NewJWKSClient(ctx, cfg.Auth.JWKSEndpoints)
	if err != nil {
		return fmt.Errorf("initialize JWKS: %w", err)
	}
	if jwksClient != nil {
		externalValidator = jwksClient
	}
	tokens := auth.NewTokenManager(&auth.TokenConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		Secret:             cfg.Auth.JWTSecret,
		Issuer:             cfg.Auth.Issuer,
		TTL:                cfg.Auth.TokenTTL,
	}, externalValidator)
	defer tokens.Close()

	sessionKey := cfg.Auth.SessionKey
	if sessionKey == "" {
		sessionKey = cfg.Auth.JWTSecret
	}
	sessions := auth.NewSessionStore(sessionKey, auth.CookieSettings{
		Secure: cfg.TLSCertPath != "" || !cfg.IsLocal(),
		Domain: cfg.CookieDomain,
	}, cfg.Auth.TokenTTL)

	// Repositories
	userRepo := repositories.NewUserRepository()
	projectRepo := repositories.NewProjectRepository()
	taskRepo := repositories.NewTaskRepository()
	documentRepo := repositories.NewDocumentRepository()
	meetingRepo := repositories.NewMeetingRepository()
	teamRepo := repositories.NewTeamRepository()
	commentRepo := repositories.NewCommentRepository()
	auditRepo := repositories.NewAuditRepository()
	entityRepo := repositories.NewEntityRepository()

	// Services
	auditService := services.NewAuditService(auditRepo, logger)
	access := services.NewProjectAccess(projectRepo)
	registry := services.NewEntityRegistry(projectRepo, documentRepo, taskRepo, meetingRepo, entityRepo)

	userService := services.NewUserService(userRepo, tokens, revocations, auditService, logger)
	projectService := services.NewProjectService(projectRepo, access, auditService, logger)
	taskService := services.NewTaskService(taskRepo, projectRepo, access, auditService, logger)
	documentService := services.NewDocumentService(documentRepo, projectRepo, access, objectStore, auditService, cfg.Storage.MaxUploadBytes, logger)
	meetingService := services.NewMeetingService(meetingRepo, projectRepo, access, auditService, logger)
	teamService := services.NewTeamService(teamRepo, auditService, logger)
	commentService := services.NewCommentService(commentRepo, registry, auditService, logger)

	if err := bootstrapAdmin(ctx, cfg, db, userService, logger); err != nil {
		return err
	}

	authService := auth.NewAuthService(tokens, sessions, revocations, userRepo, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)

	// Routes
	apiMux := http.NewServeMux()
	handlers.NewAuthHandler(userService, sessions, logger).RegisterRoutes(apiMux, authMiddleware)
	handlers.NewUsersHandler(userService, logger).RegisterRoutes(apiMux, authMiddleware)
	handlers.NewProjectsHandler(projectService, logger).RegisterRoutes(apiMux, authMiddleware)
	handlers.NewTasksHandler(taskService, logger).RegisterRoutes(apiMux, authMiddleware)
	handlers.NewDocumentsHandler(documentService, cfg.Storage.MaxUploadBytes, logger).RegisterRoutes(apiMux, authMiddleware)
	handlers.NewMeetingsHandler(meetingService, logger).RegisterRoutes(apiMux, authMiddleware)
	handlers.NewTeamsHandler(teamService, logger).RegisterRoutes(apiMux, authMiddleware)
	handlers.NewCommentsHandler(commentService, logger).RegisterRoutes(apiMux, authMiddleware)
	handlers.NewLogsHandler(auditService, logger).RegisterRoutes(apiMux, authMiddleware)

	checks := map[string]handlers.Pinger{
		"database": handlers.PingerFunc(db.Ping),
		"storage":  objectStore,
	}
	if redisClient != nil {
		checks["redis"] = handlers.PingerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	// Health probes bypass the per-request database scope.
	rootMux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, checks, logger).RegisterRoutes(rootMux)
	rootMux.Handle("/api/", database.WithRequestScope(db, logger)(apiMux))

	var handler http.Handler = rootMux
	handler = middleware.RequestLogger(logger.Named("http"))(handler)
	handler = middleware.RequestOrigin(cfg.TrustProxy)(handler)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-projects",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSCertPath != ""))
		var err error
		if cfg.TLSCertPath != "" {
			err = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// bootstrapAdmin creates the configured admin account on first start.
func bootstrapAdmin(ctx context.Context, cfg *config.Config, db *database.DB, users services.UserService, logger *zap.Logger) error {
	if cfg.Auth.BootstrapAdminEmail == "" {
		return nil
	}

	scopedCtx, release, err := db.WithScope(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection for bootstrap: %w", err)
	}
	defer release()

	admin, created, err := users.EnsureAdmin(scopedCtx, services.RegisterInput{
		Name:     "Administrator",
		Username: strings.SplitN(cfg.Auth.BootstrapAdminEmail, "@", 2)[0],
		Email:    cfg.Auth.BootstrapAdminEmail,
		Password: cfg.Auth.BootstrapAdminPassword,
	})
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		logger.Info("Created bootstrap admin", zap.String("user_id", admin.ID.String()))
	}
	return nil
}
