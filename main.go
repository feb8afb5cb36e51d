package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/msomdec/accounts/internal/config"
	"github.com/msomdec/accounts/internal/domain"
	"github.com/msomdec/accounts/internal/handler"
	"github.com/msomdec/accounts/internal/mail"
	"github.com/msomdec/accounts/internal/observability"
	"github.com/msomdec/accounts/internal/repository/sqlite"
	"github.com/msomdec/accounts/internal/service"
	"github.com/msomdec/accounts/internal/session"
	"github.com/msomdec/accounts/internal/storage/minio"
)

func main() {
	logOpts := &slog.HandlerOptions{Level: slog.LevelInfo}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)

	if err := config.LoadDotEnv(".env.local"); err != nil {
		slog.Error("failed to load env file", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.AccessKey == "" {
		slog.Warn("no access key configured, main-user registration is closed")
	}

	if err := observability.Init(cfg.SentryDSN, cfg.SentryEnvironment); err != nil {
		slog.Error("failed to init error reporting", "error", err)
		os.Exit(1)
	}
	defer observability.Flush(2 * time.Second)

	ctx := context.Background()

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations applied")

	files, err := newFileStore(ctx, cfg, db)
	if err != nil {
		slog.Error("failed to set up file storage", "error", err, "backend", cfg.StorageBackend)
		os.Exit(1)
	}

	sessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to set up session store", "error", err, "backend", cfg.SessionBackend)
		os.Exit(1)
	}

	var sender mail.Sender = mail.LogSender{Logger: logger}
	if cfg.MailBackend == "mailtrap" {
		sender = mail.NewMailtrapSender(cfg.MailtrapURL, cfg.MailtrapAPIKey, mail.Address{Email: cfg.MailFrom})
	}

	creds := service.NewCredentials(cfg.BcryptCost, cfg.SecretKey)
	gate := service.NewAccessGate(cfg.AccessKey, sessions, cfg.SessionTTL)
	verifier := service.NewVerifier(db.Users(), sender, service.VerifierConfig{
		Secret:  cfg.SecretKey,
		BaseURL: cfg.BaseURL,
		TTL:     cfg.VerificationTTL,
		Timeout: cfg.MailTimeout,
	})
	profiles := service.NewProfileStore(db, db.Profiles(), files, service.NewAvatarProcessor(files))
	registration := service.NewRegistrationService(db, creds, verifier, gate)
	accounts := service.NewAccountService(db.Users(), profiles, sessions, creds, cfg.SessionTTL)

	// 5 attempts, then one every 12 seconds.
	loginLimiter := service.NewTokenBucket(1.0/12, 5)
	defer loginLimiter.Close()
	gateLimiter := service.NewTokenBucket(1.0/12, 5)
	defer gateLimiter.Close()

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Services{
		Registration: registration,
		Accounts:     accounts,
		Verifier:     verifier,
		Gate:         gate,
		Sessions:     sessions,
		Files:        files,
		DB:           db.SqlDB,
		LoginLimiter: loginLimiter,
		GateLimiter:  gateLimiter,
		CookieSecure: cfg.CookieSecure,
	})

	csrf := http.NewCrossOriginProtection()
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           observability.Recover(handler.SecurityHeaders(csrf.Handler(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func newFileStore(ctx context.Context, cfg config.Config, db *sqlite.DB) (domain.FileStore, error) {
	if cfg.StorageBackend != "minio" {
		return db.FileStore(), nil
	}
	return minio.New(ctx, minio.Options{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
}

func newSessionStore(ctx context.Context, cfg config.Config) (session.Store, error) {
	if cfg.SessionBackend != "redis" {
		return session.NewMemoryStore(), nil
	}
	client, err := session.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, err
	}
	return session.NewRedisStore(client), nil
}
