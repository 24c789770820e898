package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pet-marketplace/internal/adapters/auth/jwt"
	"pet-marketplace/internal/adapters/auth/remote"
	"pet-marketplace/internal/adapters/backend/rest"
	"pet-marketplace/internal/adapters/cache/redis"
	"pet-marketplace/internal/adapters/locations/ibge"
	"pet-marketplace/internal/adapters/storage/memory"
	"pet-marketplace/internal/adapters/storage/postgres"
	"pet-marketplace/internal/adapters/storage/s3"
	"pet-marketplace/internal/config"
	"pet-marketplace/internal/platform/logger"
	"pet-marketplace/internal/platform/metrics"
	"pet-marketplace/internal/ports/auth"
	"pet-marketplace/internal/ports/backend"
	"pet-marketplace/internal/querycache"
	"pet-marketplace/internal/router"
)

// @title Pet Marketplace API
// @version 1.0
// @description BFF del marketplace de mascotas: anuncios, servicios, productos, favoritos y reservas.
// @BasePath /
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewFromEnv().Error("config error", map[string]any{"error": err})
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		App:    cfg.Log.App,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, cleanup, err := buildGateway(ctx, cfg, log)
	if err != nil {
		log.Error("backend setup failed", map[string]any{"error": err})
		os.Exit(1)
	}
	defer cleanup()

	mm := metrics.NewManager(cfg.Log.App)

	cacheOpts := []querycache.Option{
		querycache.WithLogger(log),
		querycache.WithObserver(mm),
	}
	if cfg.Redis.Addr != "" {
		client, err := redis.NewClient(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			// sin redis se sigue con el cache local
			log.Warn("redis unavailable", map[string]any{"addr": cfg.Redis.Addr, "error": err})
		} else {
			defer client.Close()
			cacheOpts = append(cacheOpts, querycache.WithSharedStore(redis.NewSharedStore(client, cfg.Log.App+":", log)))
		}
	}
	cache := querycache.New(querycache.Config{
		DefaultStaleTime: cfg.Cache.StaleTime,
		Retry:            cfg.Cache.Retry,
		RetryDelay:       cfg.Cache.RetryDelay,
	}, cacheOpts...)

	var verifier auth.AuthVerifier
	switch {
	case cfg.Backend.JWTSecret != "":
		verifier = jwt.NewVerifier(cfg.Backend.JWTSecret)
	case cfg.Backend.Configured():
		verifier = remote.NewVerifier(gw.Auth)
	default:
		if !cfg.DevMode {
			log.Warn("no external token verifier; only locally issued sessions are accepted", nil)
		}
	}

	app := router.NewRouter(router.Options{
		Gateway:      gw,
		AuthVerifier: verifier,
		DevMode:      cfg.DevMode,
		Cache:        cache,
		Locations:    ibge.NewClient(ibge.Config{URL: cfg.LocationsURL, Timeout: cfg.HTTP.ClientTimeout}),
		Metrics:      mm,
		Logger:       log,
	})
	defer app.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", map[string]any{"addr": srv.Addr, "dev_mode": cfg.DevMode})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server error", map[string]any{"error": err})
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", map[string]any{"error": err})
	}
	log.Info("server stopped", nil)
}

// buildGateway arma tablas, storage y auth según lo que haya configurado.
// Lo que falte cae al store in-memory.
func buildGateway(ctx context.Context, cfg config.Config, log logger.Logger) (backend.Gateway, func(), error) {
	cleanup := func() {}
	store := memory.NewStore()
	gw := backend.Gateway{Tables: store, Storage: store, Auth: store}

	if cfg.Backend.Configured() {
		client, err := rest.NewClient(rest.Config{
			URL:     cfg.Backend.URL,
			AnonKey: cfg.Backend.AnonKey,
			Timeout: cfg.HTTP.ClientTimeout,
		})
		if err != nil {
			return backend.Gateway{}, cleanup, err
		}
		gw = client.Gateway()
		log.Info("using remote backend", map[string]any{"url": cfg.Backend.URL})
	} else {
		log.Warn("backend not configured; using in-memory store", nil)
	}

	if cfg.DatabaseDSN != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return backend.Gateway{}, cleanup, err
		}
		cleanup = func() { _ = db.Close() }
		gw.Tables = postgres.NewTables(db)
		log.Info("tables served from postgres", nil)
	}

	if cfg.S3.Configured() {
		st, err := s3.New(s3.Config{
			Endpoint:      cfg.S3.Endpoint,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			UseSSL:        cfg.S3.UseSSL,
			PublicBaseURL: cfg.S3.PublicBaseURL,
		}, log)
		if err != nil {
			cleanup()
			return backend.Gateway{}, func() {}, err
		}
		gw.Storage = st
		log.Info("objects served from s3", map[string]any{"endpoint": cfg.S3.Endpoint})
	}

	return gw, cleanup, nil
}
