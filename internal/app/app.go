package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-room/internal/auth"
	"github.com/vovakirdan/wirechat-room/internal/config"
	"github.com/vovakirdan/wirechat-room/internal/core"
	"github.com/vovakirdan/wirechat-room/internal/store"
	"github.com/vovakirdan/wirechat-room/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-room/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *transporthttp.Server
	hub             *transporthttp.Hub
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	})

	created, err := authService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	if created {
		logger.Warn().Str("username", cfg.AdminUsername).Msg("created default admin account, change its password")
	}

	hub := transporthttp.NewHub(cfg.SendBuffer, logger)
	manager := core.NewManager(st, hub,
		core.WithLogger(logger),
		core.WithMaxMessageRunes(cfg.MaxMessageRunes),
	)

	server := transporthttp.NewServer(*cfg, transporthttp.Deps{
		Auth:    authService,
		Store:   st,
		Manager: manager,
		Hub:     hub,
	}, logger)

	return &App{
		server:          server,
		hub:             hub,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		a.hub.CloseAll()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	a.server.Stop()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
