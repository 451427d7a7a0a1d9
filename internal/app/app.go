package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/pollchat/internal/config"
	"github.com/vovakirdan/pollchat/internal/core"
	"github.com/vovakirdan/pollchat/internal/rpc"
	"github.com/vovakirdan/pollchat/internal/store"
	"github.com/vovakirdan/pollchat/internal/store/postgres"
	"github.com/vovakirdan/pollchat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/pollchat/internal/transport/http"
)

// App wires together the message store and transport layers.
type App struct {
	server          *transporthttp.Server
	shutdownTimeout time.Duration
	messages        *core.MessageStore
	log             *zerolog.Logger
}

// New opens the configured backing store, bootstraps its schema and builds
// the HTTP server. A schema failure is fatal.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	backend, err := openBackend(cfg.DB, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	messages, err := core.NewMessageStore(ctx, backend, logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	logger.Info().Str("driver", cfg.DB.Driver).Msg("message store ready")

	return &App{
		server:          transporthttp.NewServer(rpc.NewService(messages), cfg, logger),
		shutdownTimeout: cfg.ShutdownTimeout,
		messages:        messages,
		log:             logger,
	}, nil
}

func openBackend(cfg config.DBConfig, logger *zerolog.Logger) (store.MessageLog, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlite.New(cfg.Path)
	case config.DriverPostgres:
		return postgres.New(postgres.Config{
			Host:         cfg.Host,
			Port:         cfg.Port,
			User:         cfg.User,
			Password:     cfg.Password,
			DBName:       cfg.Name,
			SSLMode:      cfg.SSLMode,
			MaxOpenConns: cfg.MaxOpenConns,
			MaxIdleConns: cfg.MaxIdleConns,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
	}
}

// Run listens on the configured address and blocks until ctx is cancelled or
// the server fails.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		a.cleanup()
		return fmt.Errorf("listen %s: %w", a.server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully and closes the store.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("addr", ln.Addr().String()).Msg("serving chat rpc")
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// cleanup closes the message store.
func (a *App) cleanup() {
	if err := a.messages.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close store")
		return
	}
	a.log.Info().Msg("store closed")
}
