// Package server composes the application: configuration, storage, the
// change-feed bus, services, and the HTTP listener.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fhuebner/plausch/internal/auth"
	"github.com/fhuebner/plausch/internal/bus"
	"github.com/fhuebner/plausch/internal/chat"
	"github.com/fhuebner/plausch/internal/config"
	"github.com/fhuebner/plausch/internal/httpapi"
	"github.com/fhuebner/plausch/internal/lock"
	"github.com/fhuebner/plausch/internal/logging"
	"github.com/fhuebner/plausch/internal/store"
)

// Params holds the resolved startup options passed to the fx module.
type Params struct {
	ConfigPath string
	ListenAddr string // optional override; empty = use config
}

// Module returns the fx module for the server, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("server",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideAuthService,
			provideChatService,
			provideHTTPServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		// First start: write a config with a fresh token secret.
		cfg = config.Default()
		cfg.JWTSecret, err = randomSecret()
		if err != nil {
			return nil, err
		}
		if err := config.Save(path, cfg); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("config: jwt_secret must not be empty")
	}
	if p.ListenAddr != "" {
		cfg.ListenAddr = p.ListenAddr
	}
	return cfg, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogPath(), "plauschd")
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(cfg *config.Config, logger *zap.Logger) (*lock.Lock, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, err
	}
	logger.Info("acquiring data directory lock", zap.String("dir", cfg.DataDir))
	l, err := lock.Acquire(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	logger.Info("data directory lock acquired")
	return l, nil
}

func provideStore(cfg *config.Config, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	db, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", cfg.DBPath()))
	return db, nil
}

func provideAuthService(db *store.DB, cfg *config.Config, logger *zap.Logger) *auth.Service {
	return auth.NewService(db, cfg.JWTSecret, cfg.TokenTTL(), cfg.BcryptCost, logger)
}

func provideChatService(db *store.DB, b *bus.Bus, logger *zap.Logger) *chat.Service {
	return chat.NewService(db, b, logger)
}

func provideHTTPServer(authSvc *auth.Service, chatSvc *chat.Service, db *store.DB, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *http.Server {
	api := httpapi.NewServer(authSvc, chatSvc, db, b, cfg, logger)
	return &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.Routes(),
	}
}

func registerLifecycle(lc fx.Lifecycle, srv *http.Server, db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				logger.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("http shutdown error", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("server stopped")
			return nil
		},
	})
}
