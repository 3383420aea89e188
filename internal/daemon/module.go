package daemon

import (
	"context"

	"github.com/condorhq/fieldops/internal/config"
	"github.com/condorhq/fieldops/internal/httpapi"
	"github.com/condorhq/fieldops/internal/idem"
	"github.com/condorhq/fieldops/internal/logging"
	"github.com/condorhq/fieldops/internal/pipeline"
	"github.com/condorhq/fieldops/internal/relay"
	"github.com/condorhq/fieldops/internal/tabular"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config wraps the server configuration passed to the fx module.
type Config struct {
	Server *config.Server
}

// Module returns the fx module for the backend daemon, composing all
// providers and lifecycle hooks.
func Module(cfg Config) fx.Option {
	return fx.Module("daemon",
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideTabular,
			provideRelay,
			provideGuard,
			provideService,
			provideHandlers,
			provideRouter,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(cfg Config) (*zap.Logger, error) {
	return logging.New(cfg.Server.LogPath, "fieldopsd")
}

func provideTabular(cfg Config, logger *zap.Logger) tabular.Store {
	if cfg.Server.MockMode {
		logger.Info("mock mode enabled, using in-memory tabular store")
		return tabular.NewSeededMock()
	}
	return tabular.NewClient(cfg.Server.AirtableAPIKey, cfg.Server.AirtableBaseID)
}

func provideRelay(cfg Config, logger *zap.Logger) *relay.Relay {
	if cfg.Server.WebhookURL == "" {
		logger.Warn("webhook URL not configured, relays will be reported as failed")
	}
	return relay.New(cfg.Server.WebhookURL, logger)
}

func provideGuard() *idem.Guard {
	return idem.NewGuard()
}

func provideService(store tabular.Store, r *relay.Relay, guard *idem.Guard, logger *zap.Logger) *pipeline.Service {
	return pipeline.NewService(store, r, guard, logger)
}

func provideHandlers(svc *pipeline.Service, store tabular.Store, cfg Config, logger *zap.Logger) *httpapi.Handlers {
	return httpapi.NewHandlers(svc, store, cfg.Server, logger)
}

func provideRouter(h *httpapi.Handlers, cfg Config, logger *zap.Logger) *gin.Engine {
	return httpapi.NewRouter(h, cfg.Server, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("HTTP server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			logger.Info("daemon stopped")
			return nil
		},
	})
}
