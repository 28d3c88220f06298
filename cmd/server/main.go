package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobboard/internal/auth"
	"jobboard/internal/config"
	"jobboard/internal/database"
	"jobboard/internal/email"
	"jobboard/internal/logging"
	"jobboard/internal/oauth"
	redisx "jobboard/internal/redis"
	"jobboard/internal/server"
)

const (
	emailWorkers    = 2
	auditMaxLen     = 500
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	logOutput := io.Writer(os.Stdout)
	if cfg.LogFile != "" {
		rotating, err := logging.NewRotatingFileWriter(cfg.LogFile, int64(cfg.LogMaxSizeMB)<<20, cfg.LogMaxBackups)
		if err != nil {
			slog.Error("log file setup failed", "error", err)
			os.Exit(1)
		}
		defer rotating.Close()
		logOutput = io.MultiWriter(os.Stdout, rotating)
	}
	log := logging.New(logOutput, cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	redisClient, err := redisx.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	var transport email.Transport = email.LogTransport{Log: log}
	if cfg.Email.Enabled() {
		transport = email.NewSMTPSender(cfg.Email)
	} else {
		log.Warn("EMAIL_SERVER_HOST not set; emails will only be logged")
	}
	dispatcher := email.NewDispatcher(transport, email.DispatcherConfig{
		QueueSize:     cfg.Email.QueueSize,
		RatePerSecond: cfg.Email.RatePerSecond,
	}, log)
	dispatcher.Start(emailWorkers)
	defer func() {
		// Runs after the HTTP server has stopped, so the backlog is final.
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := dispatcher.Close(drainCtx); err != nil {
			log.Warn("email queue not drained", "error", err)
		}
	}()

	tokens, err := auth.NewTokenCodec(cfg.JWT.Secret, cfg.JWT.TTL, cfg.JWT.Issuer)
	if err != nil {
		return err
	}
	limiter := &auth.RateLimiter{Redis: redisClient}

	svc := auth.NewService(auth.Options{
		Store:    store,
		Hasher:   auth.NewBcryptHasher(cfg.BcryptCost),
		Tokens:   tokens,
		Notifier: email.NewNotifier(dispatcher, cfg.BaseURL),
		Attempts: limiter,
		BaseURL:  cfg.BaseURL,
		Logger:   log,
	})

	var providers []oauth.Provider
	if cfg.OAuth.Enabled {
		providers = append(providers, oauth.NewGoogleProvider(cfg.OAuth.Google))
	}

	api := server.NewServer(server.Options{
		Config:      cfg,
		Service:     svc,
		RateLimiter: limiter,
		Audit:       &auth.AuditLogger{Redis: redisClient, MaxLen: auditMaxLen},
		Providers:   providers,
		States:      &oauth.StateStore{Redis: redisClient},
		Logger:      log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr, "store", cfg.StoreDriver, "oauth", cfg.OAuth.Enabled)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (auth.Store, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn("using in-memory store; accounts are lost on restart")
		return auth.NewMemoryStore(), func() {}, nil
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, nil, err
	}
	return auth.NewPostgresStore(pool), pool.Close, nil
}
