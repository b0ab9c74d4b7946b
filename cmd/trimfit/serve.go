package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"trimfit/internal/adapter/cache"
	adapthttp "trimfit/internal/adapter/http"
	"trimfit/internal/adapter/memory"
	"trimfit/internal/adapter/objectstore"
	"trimfit/internal/adapter/postgres"
	"trimfit/internal/adapter/ratelimit"
	"trimfit/internal/adapter/tailorapi"
	"trimfit/internal/app"
	"trimfit/internal/config"
	"trimfit/internal/domain"
	"trimfit/internal/httpserver"
	"trimfit/internal/logutil"
	"trimfit/internal/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// loadConfig reads the configuration. Commands that never sign tokens pass
// needSecret=false so a missing JWT_SECRET is not fatal for them.
func loadConfig(c *cli.Context, needSecret bool) (config.Config, error) {
	cfg, err := config.Load(c.StringSlice("env-file")...)
	if err != nil && (needSecret || !errors.Is(err, config.ErrMissingSecret)) {
		return cfg, err
	}
	return cfg, nil
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "address to listen on, overrides ADDR",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c, true)
			if err != nil {
				return err
			}
			if addr := c.String("addr"); addr != "" {
				cfg.Addr = addr
			}

			logger := logutil.New(os.Stderr, cfg.LogLevel, cfg.Production())
			ctx := logutil.WithLogger(c.Context, logger)

			h, cleanup, err := buildHandler(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			logger.Info().Str("addr", cfg.Addr).Str("env", cfg.Environment).Msg("listening")
			return httpserver.Serve(ctx, cfg.Addr, h)
		},
	}
}

type closers []func()

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// store is the persistence used by the services.
type store interface {
	domain.UserRepository
	domain.TailorRunRepository
}

// openStore returns PostgreSQL when a database URL is configured and the
// in-memory store otherwise.
func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, using in-memory store")
		return memory.New(), func() {}, nil
	}
	db, err := postgres.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, cfg.AutoMigrate)
	if err != nil {
		return nil, nil, fmt.Errorf("db open: %w", err)
	}
	return db, func() { _ = db.Close() }, nil
}

func openLimiter(ctx context.Context, cfg config.Config, log zerolog.Logger) ratelimit.Limiter {
	if cfg.RateLimitRedisAddr == "" {
		return ratelimit.NewMemory()
	}
	l, err := ratelimit.NewRedis(ctx, cfg.RateLimitRedisAddr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.RateLimitRedisAddr).Msg("redis unavailable, rate limiting in memory")
		return ratelimit.NewMemory()
	}
	return l
}

// buildHandler wires every adapter and service into the HTTP handler.
func buildHandler(ctx context.Context, cfg config.Config, log zerolog.Logger) (http.Handler, func(), error) {
	var cleanup closers
	fail := func(err error) (http.Handler, func(), error) {
		cleanup.run()
		return nil, nil, err
	}

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return fail(err)
	}
	cleanup = append(cleanup, closeStore)

	codec, err := session.NewCodec(cfg.JWTSecret, session.WithLogger(log))
	if err != nil {
		return fail(err)
	}
	sessions := session.NewManager(codec, cfg.Production())

	grants, err := cache.NewGrants(cfg.GrantTTL)
	if err != nil {
		return fail(fmt.Errorf("download grants: %w", err))
	}
	cleanup = append(cleanup, func() { _ = grants.Close() })

	limiter := openLimiter(ctx, cfg, log)
	cleanup = append(cleanup, limiter.Close)

	var archive domain.ResumeArchive
	if cfg.ArchiveEnabled() {
		s3, err := objectstore.New(ctx, objectstore.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return fail(err)
		}
		archive = s3
	}

	var oidc *adapthttp.OIDCConfig
	if cfg.SSOEnabled() {
		oidc, err = adapthttp.NewOIDC(ctx, cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret, cfg.OIDCRedirectURL)
		if err != nil {
			return fail(err)
		}
	}

	api, err := tailorapi.New(cfg.TailorAPIURL, tailorapi.WithTimeout(cfg.TailorAPITimeout))
	if err != nil {
		return fail(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := adapthttp.New(adapthttp.Options{
		Auth:           app.NewAuthService(st, app.NewBcryptHasher()),
		Tailor:         app.NewTailorService(api, st, grants, archive, cfg.GrantTTL),
		Sessions:       sessions,
		Limiter:        limiter,
		AuthRateLimit:  cfg.AuthRateLimit,
		AuthRateWindow: cfg.AuthRateWindow,
		OIDC:           oidc,
		Registry:       reg,
		Log:            log,
		WebDir:         cfg.WebDir,
		Production:     cfg.Production(),
	})
	return srv.Handler(), cleanup.run, nil
}

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c, false)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			db, err := postgres.Open(c.Context, cfg.DatabaseDriver, cfg.DatabaseURL, true)
			if err != nil {
				return err
			}
			defer db.Close()
			_, _ = io.WriteString(c.App.Writer, "migrations applied\n")
			return nil
		},
	}
}
