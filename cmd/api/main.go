package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"campushub/internal/account"
	"campushub/internal/app"
	"campushub/internal/auth"
	"campushub/internal/blob"
	"campushub/internal/config"
	"campushub/internal/dashboard"
	"campushub/internal/httpapi"
	"campushub/internal/httpmiddleware"
	"campushub/internal/logging"
	"campushub/internal/portal"
	"campushub/internal/profile"
	"campushub/internal/records"
	"campushub/internal/session"
	"campushub/internal/store"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("http server failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.App, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	projects, err := store.OpenProjects(ctx, map[string]string{
		records.ProjectPortal: cfg.DatabaseURL,
		records.ProjectEvents: cfg.EventsDatabaseURL,
	})
	if err != nil {
		return err
	}
	defer projects.Close()
	for _, name := range []string{records.ProjectPortal, records.ProjectEvents} {
		db, _ := projects.Get(name)
		if err := store.Migrate(ctx, db, name); err != nil {
			return err
		}
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	blobs, local, err := app.Storage(cfg)
	if err != nil {
		return err
	}
	jobs := app.Queue(cfg, redisClient)
	broker := app.Broker(cfg, redisClient)

	portalDB, _ := projects.Get(records.ProjectPortal)
	issuer := auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
	accounts := account.NewService(account.NewRepository(portalDB), issuer)
	recs := records.NewStore(projects.Clients(), broker)
	profiles := profile.NewService(recs)
	if err := app.SeedAccounts(ctx, accounts, profiles, app.Seeds(cfg), logger); err != nil {
		return err
	}
	sessions := session.NewManager(accounts, session.NewResolver(profiles, logger), logger)
	if cfg.EnableDemoLogin {
		sessions.EnableDemo(cfg.DemoAccounts, cfg.DemoPassword)
		logger.Warn("demo login enabled", "roles", sessions.DemoRoles())
	}

	dash := dashboard.New(dashboard.Deps{Records: recs, Blobs: blobs, Cleanup: jobs, Logger: logger}, nil)
	if err := dash.Watch(ctx, broker); err != nil {
		return err
	}
	events, _ := dash.Tab("events")

	if cfg.QueueBackend == "memory" {
		janitor := &blob.Janitor{Store: blobs, Queue: jobs, RetryDelay: 30 * time.Second, Logger: logger}
		go func() {
			if err := janitor.Run(ctx); err != nil {
				logger.Error("in-process cleanup stopped", "err", err)
			}
		}()
	}

	var apiLimiter, loginLimiter httpmiddleware.Limiter
	if redisClient.Healthy(ctx) {
		apiLimiter = httpmiddleware.NewRedisWindow(redisClient.Client, app.RateLimitPrefix, cfg.RateLimitPerMin)
		loginLimiter = httpmiddleware.NewRedisWindow(redisClient.Client, app.RateLimitPrefix, cfg.LoginRateLimitPerMin)
	} else {
		logger.Warn("redis not reachable, rate limits are per instance")
		apiLimiter = httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
		loginLimiter = httpmiddleware.NewTokenBucket(cfg.LoginRateLimitPerMin, cfg.LoginRateLimitPerMin)
	}

	srv := &httpapi.Server{
		Accounts:       accounts,
		Sessions:       sessions,
		Profiles:       profiles,
		Issuer:         issuer,
		Dashboard:      dash,
		Portal:         portal.NewService(recs, events),
		Broker:         broker,
		Blobs:          blobs,
		Files:          local,
		MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
		CORSOrigins:    cfg.CORSOrigins,
		APILimiter:     apiLimiter,
		LoginLimiter:   loginLimiter,
		Health: map[string]httpapi.HealthCheck{
			"db":    projects.Healthy,
			"redis": redisClient.Healthy,
		},
		Logger: logger,
	}

	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the realtime feed is long-lived
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.HTTPPort, "env", cfg.Env)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", "err", err)
	}
	logger.Info("server exited")
	return nil
}
