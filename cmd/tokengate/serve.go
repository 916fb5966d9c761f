// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package main

import (
	"context"
	cryptotls "crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tokengate/tokengate/internal/auth"
	"github.com/tokengate/tokengate/internal/auth/memstore"
	authpg "github.com/tokengate/tokengate/internal/auth/postgres"
	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/internal/logging"
	"github.com/tokengate/tokengate/internal/observability"
	"github.com/tokengate/tokengate/internal/store"
	tlscerts "github.com/tokengate/tokengate/internal/tls"
	"github.com/tokengate/tokengate/internal/web"
	"github.com/tokengate/tokengate/pkg/errutil"
)

const (
	serviceName      = "tokengate"
	readinessTimeout = 2 * time.Second
	readHeaderLimit  = 10 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP auth server",
		Long: `Start the HTTP server for signup, login, logout and session lookup,
plus the metrics/health server and the expired-session sweeper.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}
	addConfigFlags(cmd)
	return cmd
}

// runServeWithDeps starts the server with injectable dependencies and blocks
// until ctx is cancelled, a signal arrives or a server fails.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("field", "log.level").Wrap(err)
	}
	logger := logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
		Writer:  deps.LogWriter,
	})

	logger.InfoContext(ctx, "starting tokengate",
		"addr", cfg.Server.Addr,
		"store", cfg.Database.Store,
		"database_url", config.RedactURL(cfg.Database.URL),
	)

	if cfg.Database.AutoMigrate && cfg.Database.Store == config.StorePostgres {
		if err := autoMigrate(ctx, deps, cfg.Database.URL, logger); err != nil {
			return err
		}
	}

	backend, err := deps.BackendOpener(ctx, cfg, logger)
	if err != nil {
		return oops.Code("SERVE_STORE_FAILED").With("store", cfg.Database.Store).Wrap(err)
	}
	defer backend.Close()

	components, err := newAuthComponents(cfg, backend,
		auth.WithLogger(logger),
		auth.WithSessionPolicy(cfg.SessionPolicy()),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		obsServer ObservabilityServer
		metrics   *observability.Metrics
	)
	if cfg.Server.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Server.MetricsAddr, func(ctx context.Context) bool {
			return store.Ready(ctx, backend, readinessTimeout)
		})
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("SERVE_INIT_FAILED").With("component", "observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability", logger)
		metrics = obsServer.Metrics()
		logger.InfoContext(ctx, "observability server started", "addr", obsServer.Addr())
	}

	handler, err := web.NewHandler(web.Config{
		Auth:     components.service,
		Resolver: components.resolver,
		Cookie:   web.CookieConfig{Name: cfg.Session.CookieName, Secure: cfg.Session.CookieSecure},
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		stopObservability(obsServer, cfg.Server.ShutdownTimeout, logger)
		return oops.Code("SERVE_INIT_FAILED").With("component", "http handler").Wrap(err)
	}

	var tlsConfig *cryptotls.Config
	if cfg.Server.TLSEnabled() {
		tlsConfig, err = tlscerts.LoadServerTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		if err != nil {
			stopObservability(obsServer, cfg.Server.ShutdownTimeout, logger)
			return oops.Code("SERVE_INIT_FAILED").With("component", "tls").Wrap(err)
		}
	}

	listener, err := deps.ListenerFactory("tcp", cfg.Server.Addr)
	if err != nil {
		stopObservability(obsServer, cfg.Server.ShutdownTimeout, logger)
		return oops.Code("SERVE_LISTEN_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	}
	scheme := "http"
	if tlsConfig != nil {
		listener = cryptotls.NewListener(listener, tlsConfig)
		scheme = "https"
	}

	httpServer := &http.Server{
		Handler:           handler.Routes(),
		ReadHeaderTimeout: readHeaderLimit,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	httpErrChan := make(chan error, 1)
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			httpErrChan <- serveErr
		}
		close(httpErrChan)
	}()

	var wg sync.WaitGroup
	if components.sweeper != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			components.sweeper.Run(ctx)
		}()
	}

	cmd.Println("tokengate listening on " + listener.Addr().String())
	logger.InfoContext(ctx, "tokengate ready", "addr", listener.Addr().String(), "scheme", scheme)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.InfoContext(ctx, "shutdown requested")
	case err, ok := <-httpErrChan:
		if ok {
			serveErr = oops.Code("SERVE_HTTP_FAILED").Wrap(err)
			errutil.LogError(ctx, logger, slog.LevelError, "http server failed", serveErr)
		}
	}

	cancel()
	shutdownHTTP(httpServer, obsServer, cfg.Server.ShutdownTimeout, logger)
	wg.Wait()

	logger.Info("shutdown complete")
	return serveErr
}

// authComponents are built from one option set so that the clock, session
// policy and logger agree between them.
type authComponents struct {
	service  *auth.Service
	resolver *auth.Resolver
	// sweeper is nil when session.sweep_interval is 0.
	sweeper *auth.Sweeper
}

func newAuthComponents(cfg *config.Config, backend SessionBackend, opts ...auth.Option) (*authComponents, error) {
	codec := auth.NewSHA256TokenCodec()
	svc, err := auth.NewAuthService(backend, auth.NewArgon2idHasher(cfg.Argon2Params()), codec, opts...)
	if err != nil {
		return nil, oops.Code("SERVE_INIT_FAILED").With("component", "auth service").Wrap(err)
	}
	resolver, err := auth.NewResolver(backend, codec, opts...)
	if err != nil {
		return nil, oops.Code("SERVE_INIT_FAILED").With("component", "resolver").Wrap(err)
	}
	out := &authComponents{service: svc, resolver: resolver}
	if cfg.Session.SweepInterval > 0 {
		out.sweeper, err = auth.NewSweeper(backend, cfg.Session.SweepInterval, opts...)
		if err != nil {
			return nil, oops.Code("SERVE_INIT_FAILED").With("component", "sweeper").Wrap(err)
		}
	}
	return out, nil
}

// autoMigrate applies pending migrations.
func autoMigrate(ctx context.Context, deps *ServeDeps, databaseURL string, logger *slog.Logger) error {
	migrator, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.WarnContext(ctx, "failed to close migrator", "error", closeErr)
		}
	}()

	logger.InfoContext(ctx, "applying database migrations")
	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	return nil
}

// openBackend opens the store named by cfg.Database.Store.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (SessionBackend, error) {
	if cfg.Database.Store == config.StoreMemory {
		logger.WarnContext(ctx, "using the in-memory session store; accounts and sessions are lost on exit")
		return memoryBackend{Store: memstore.New(time.Now)}, nil
	}

	pool, err := store.Connect(ctx, cfg.Database.URL, store.ConnectOptions{
		Attempts: cfg.Database.ConnectAttempts,
		Logger:   logger,
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // store.Connect returns coded errors
	}
	if err := store.VerifySchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err //nolint:wrapcheck // store returns coded errors
	}
	logger.InfoContext(ctx, "connected to database")
	return &postgresBackend{Store: authpg.NewStore(pool), pool: pool}, nil
}

type postgresBackend struct {
	*authpg.Store
	pool *pgxpool.Pool
}

func (b *postgresBackend) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx) //nolint:wrapcheck // readiness only needs success or failure
}

func (b *postgresBackend) Close() { b.pool.Close() }

type memoryBackend struct {
	*memstore.Store
}

func (memoryBackend) Close() {}

func shutdownHTTP(httpServer *http.Server, obsServer ObservabilityServer, timeout time.Duration, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}
	stopObservability(obsServer, timeout, logger)
}

func stopObservability(obsServer ObservabilityServer, timeout time.Duration, logger *slog.Logger) {
	if obsServer == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := obsServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error. It returns
// when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
