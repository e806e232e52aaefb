package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/internal/config"
	"github.com/MrEthical07/authgate/internal/logging"
	"github.com/MrEthical07/authgate/internal/server"
	otelexport "github.com/MrEthical07/authgate/metrics/export/otel"
	promexport "github.com/MrEthical07/authgate/metrics/export/prometheus"
	"github.com/MrEthical07/authgate/password"
	"github.com/MrEthical07/authgate/userstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	serviceName = "authgate"

	// Seeded into the in-memory user store by --dev.
	devUsername = "dev@example.com"
	devPassword = "authgate-dev"

	startupPingTimeout = 5 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication server",
		Long: `Start the HTTP server exposing /login, /logout, /me, /healthz and
/metrics. With --upstream every other path is proxied to the upstream
once the request passes the guard.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			level, err := logging.ParseLevel(settings.Log.Level)
			if err != nil {
				return err
			}
			logger := logging.Setup(serviceName, version, settings.Log.Format, level, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, settings, logger)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runServe(ctx context.Context, settings *config.Settings, logger *slog.Logger) error {
	a, err := newApp(ctx, settings, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return server.Run(ctx, server.Config{
		Addr:            settings.Server.Addr,
		ReadTimeout:     settings.Server.ReadTimeout,
		ShutdownTimeout: settings.Server.ShutdownTimeout,
	}, a.handler, logger)
}

// app is the wired process: engine, backends and the HTTP handler.
type app struct {
	engine  *authgate.Engine
	handler http.Handler
	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newApp(ctx context.Context, settings *config.Settings, logger *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	users, err := a.openUserStore(ctx, settings, logger)
	if err != nil {
		return nil, err
	}

	cfg := settings.Auth
	if settings.Dev && cfg.Strategy == authgate.StrategyToken && len(cfg.Token.Secret) == 0 {
		cfg.Token.Secret = make([]byte, 32)
		if _, err := rand.Read(cfg.Token.Secret); err != nil {
			return nil, fmt.Errorf("generate signing secret: %w", err)
		}
		logger.Warn("generated an ephemeral signing secret; tokens do not survive restart")
	}

	builder := authgate.New().
		WithConfig(cfg).
		WithUserStore(users).
		WithLogger(logger).
		WithAuditSink(authgate.NewSlogSink(logger.With(slog.String("component", "audit"))))

	if settings.NeedsRedis() {
		client, err := a.openRedis(settings, logger)
		if err != nil {
			return nil, err
		}
		builder = builder.WithRedis(client)
	}

	engine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	a.engine = engine
	a.closers = append(a.closers, engine.Close)

	pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	if err := engine.Ping(pingCtx); err != nil {
		logger.Warn("backend not reachable at startup", slog.Any("error", err))
	}
	cancel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	a.closers = append(a.closers, func() {
		_ = provider.Shutdown(context.Background())
	})
	otelExporter, err := otelexport.NewExporter(provider.Meter(serviceName), engine)
	if err != nil {
		return nil, fmt.Errorf("register otel metrics: %w", err)
	}
	a.closers = append(a.closers, func() {
		_ = otelExporter.Close()
	})

	var upstream *url.URL
	if settings.Server.Upstream != "" {
		upstream, err = url.Parse(settings.Server.Upstream)
		if err != nil || upstream.Scheme == "" || upstream.Host == "" {
			return nil, fmt.Errorf("invalid upstream URL %q", settings.Server.Upstream)
		}
	}

	a.handler = server.NewRouter(server.RouterOptions{
		Engine:   engine,
		Logger:   logger,
		Metrics:  promexport.NewExporter(engine).Handler(),
		Upstream: upstream,
		ExtraRoutes: func(r chi.Router) {
			r.Get("/debug/metrics", otelSnapshotHandler(reader))
		},
	})

	logger.Info("authgate ready",
		slog.String("strategy", engine.Strategy().String()),
		slog.String("env", settings.Auth.Environment),
		slog.Bool("dev", settings.Dev),
	)
	return a, nil
}

func (a *app) openUserStore(ctx context.Context, settings *config.Settings, logger *slog.Logger) (authgate.UserStore, error) {
	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("configure password hasher: %w", err)
	}

	switch {
	case settings.Database.URL != "":
		store, pool, err := userstore.OpenPostgres(ctx, settings.Database.URL, hasher)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		return store, nil

	case settings.Dev:
		store := userstore.NewMemory(hasher)
		if err := store.Add(devUsername, devPassword, authgate.Principal{
			UserID:    "dev-user",
			FirstName: "Dev",
			LastName:  "User",
			Email:     devUsername,
			Verified:  true,
		}); err != nil {
			return nil, fmt.Errorf("seed dev user: %w", err)
		}
		logger.Warn("using in-memory user store", slog.String("username", devUsername))
		return store, nil

	default:
		return nil, errors.New("no user store configured: set database.url or run with --dev")
	}
}

func (a *app) openRedis(settings *config.Settings, logger *slog.Logger) (redis.UniversalClient, error) {
	addr, pass := settings.Redis.Addr, settings.Redis.Password
	if settings.Dev {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start in-process redis: %w", err)
		}
		a.closers = append(a.closers, mr.Close)
		addr, pass = mr.Addr(), ""
		logger.Warn("using in-process redis; sessions are lost on restart", slog.String("addr", addr))
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       settings.Redis.DB,
	})
	a.closers = append(a.closers, func() {
		_ = client.Close()
	})
	return client, nil
}
