package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eugenenazirov/layered-config/internal/api"
	"github.com/eugenenazirov/layered-config/internal/settings"
	"github.com/eugenenazirov/layered-config/layered"
)

// App encapsulates the loaded configuration and the HTTP server exposing it.
type App struct {
	settings settings.Settings
	config   *layered.Config
	handler  *api.Handler
	router   http.Handler
	logger   *zap.Logger
	server   *http.Server
}

// LoadConfig loads files with the layered options implied by the settings.
func LoadConfig(s settings.Settings, files []string, logger *zap.Logger) (*layered.Config, error) {
	opts := []layered.Option{
		layered.WithLogger(logger),
		layered.WithKeySeparator(s.Separator),
	}
	if s.SkipMissing {
		opts = append(opts, layered.WithSkipMissing())
	}
	if s.ExpandEnv {
		opts = append(opts, layered.WithExpandEnv())
	}

	cfg, err := layered.New(files, opts...)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

// New loads the configuration files and wires the HTTP stack around them.
func New(s settings.Settings, files []string, logger *zap.Logger) (*App, error) {
	cfg, err := LoadConfig(s, files, logger)
	if err != nil {
		return nil, err
	}

	handler := api.NewHandler(cfg)
	router := api.NewRouter(handler, logger,
		api.WithLogging(s.EnableRequestLogging),
		api.WithRateLimit(s.RateLimitRPS, s.RateLimitBurst),
	)

	return &App{
		settings: s,
		config:   cfg,
		handler:  handler,
		router:   router,
		logger:   logger,
		server:   NewServer(s, router),
	}, nil
}

// NewServer creates and configures an HTTP server from the provided settings.
func NewServer(s settings.Settings, handler http.Handler) *http.Server {
	addr := s.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: s.ReadHeaderTimeout,
		WriteTimeout:      s.WriteTimeout,
		IdleTimeout:       s.IdleTimeout,
	}
}

// Run serves HTTP, and watches the configuration files when enabled, until
// ctx is cancelled or the server fails. The server is then shut down within
// the configured grace period.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if a.settings.Watch {
		watcher, err := layered.NewWatcher(a.config,
			layered.WithDebounce(a.settings.WatchDebounce),
			layered.WithWatchLogger(a.logger),
			layered.WithOnReload(a.onReload),
		)
		if err != nil {
			_ = a.server.Close()
			_ = g.Wait()
			return fmt.Errorf("start watcher: %w", err)
		}
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		a.shutdown()
		return nil
	})

	return g.Wait()
}

func (a *App) onReload(err error) {
	api.RecordReload(err)
	if err == nil {
		a.handler.MarkReloaded()
	}
}

func (a *App) shutdown() {
	a.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), a.settings.ShutdownGracePeriod)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := a.server.Close(); closeErr != nil {
			a.logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}

// Config returns the loaded configuration.
func (a *App) Config() *layered.Config {
	return a.config
}

// Server returns the HTTP server instance.
func (a *App) Server() *http.Server {
	return a.server
}
