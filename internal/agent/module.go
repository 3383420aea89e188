// Package agent composes the long-running technician-device process: durable
// queue store, connectivity monitor and sync manager, under one fx lifecycle.
package agent

import (
	"context"
	"time"

	"github.com/condorhq/fieldops/internal/appdir"
	"github.com/condorhq/fieldops/internal/bus"
	"github.com/condorhq/fieldops/internal/lock"
	"github.com/condorhq/fieldops/internal/logging"
	"github.com/condorhq/fieldops/internal/netmon"
	"github.com/condorhq/fieldops/internal/status"
	"github.com/condorhq/fieldops/internal/store"
	"github.com/condorhq/fieldops/internal/submit"
	"github.com/condorhq/fieldops/internal/syncmgr"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved agent configuration passed to the fx module.
type Params struct {
	APIURL        string
	Token         string
	ProbeInterval time.Duration
}

// Module returns the fx module for the agent daemon.
func Module(p Params) fx.Option {
	return fx.Module("agent",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideClient,
			provideMonitor,
			provideManager,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger() (*zap.Logger, error) {
	return logging.New(appdir.LogPath(), "fieldagent")
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(logger *zap.Logger) (*lock.Lock, error) {
	if err := appdir.EnsureDir(); err != nil {
		return nil, err
	}
	logger.Info("acquiring data dir lock", zap.String("dir", appdir.BaseDir()))
	l, err := lock.Acquire(appdir.BaseDir())
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired")
	return l, nil
}

func provideStore(_ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := appdir.DBPath()
	db, err := store.Open(dbPath)
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
	logger.Info("queue store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideClient(p Params) *submit.Client {
	c := submit.NewClient(p.APIURL)
	if p.Token != "" {
		c.SetToken(p.Token)
	}
	return c
}

func provideMonitor(p Params, db *store.DB, b *bus.Bus, logger *zap.Logger) *netmon.Monitor {
	probe := netmon.HTTPProbe(p.APIURL, nil)
	return netmon.New(probe, db.ActionableCount, b, logger, p.ProbeInterval)
}

func provideManager(db *store.DB, client *submit.Client, monitor *netmon.Monitor, b *bus.Bus, logger *zap.Logger) *syncmgr.Manager {
	return syncmgr.New(db, client, monitor, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, db *store.DB, lk *lock.Lock, monitor *netmon.Monitor, manager *syncmgr.Manager, machine *status.Machine, b *bus.Bus, logger *zap.Logger) {
	var cancelSupervisor context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			cancelSupervisor = cancel

			go supervise(ctx, b, machine)

			// Manager first so the monitor's initial online event can
			// trigger a drain of anything queued while the agent was down.
			manager.Start(context.Background())
			monitor.Start(context.Background())
			return nil
		},
		OnStop: func(_ context.Context) error {
			monitor.Stop()
			manager.Stop()
			if cancelSupervisor != nil {
				cancelSupervisor()
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing queue store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("agent stopped")
			return nil
		},
	})
}

// supervise folds connectivity and sync events into the agent state machine.
func supervise(ctx context.Context, b *bus.Bus, machine *status.Machine) {
	netCh, netUnsub := b.Subscribe("net.", 64)
	defer netUnsub()
	syncCh, syncUnsub := b.Subscribe("sync.", 64)
	defer syncUnsub()

	for {
		select {
		case evt := <-netCh:
			switch evt.Kind {
			case "net.online":
				_ = machine.Transition(status.Online)
			case "net.offline":
				_ = machine.Transition(status.Offline)
			}
		case evt := <-syncCh:
			switch evt.Kind {
			case "sync.syncing":
				_ = machine.Transition(status.Syncing)
			case "sync.synced", "sync.online":
				_ = machine.Transition(status.Online)
			case "sync.offline":
				_ = machine.Transition(status.Degraded)
			}
		case <-ctx.Done():
			return
		}
	}
}
