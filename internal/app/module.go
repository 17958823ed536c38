// Package app composes the client from its parts and manages its
// lifecycle.
package app

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/gram-chat/gram/internal/api"
	"github.com/gram-chat/gram/internal/auth"
	"github.com/gram-chat/gram/internal/bus"
	"github.com/gram-chat/gram/internal/config"
	"github.com/gram-chat/gram/internal/lock"
	"github.com/gram-chat/gram/internal/logging"
	"github.com/gram-chat/gram/internal/profile"
	"github.com/gram-chat/gram/internal/socket"
	"github.com/gram-chat/gram/internal/status"
	"github.com/gram-chat/gram/internal/store"
	intsync "github.com/gram-chat/gram/internal/sync"
	"github.com/gram-chat/gram/internal/tui"
)

const tokenValidity = 5 * time.Minute

// Params holds the resolved profile configuration passed to the fx
// module.
type Params struct {
	ProfileName string
	Config      config.Config
}

// Module returns the fx module composing all providers and lifecycle
// hooks.
func Module(p Params) fx.Option {
	return fx.Module("gram",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideCache,
			provideMinter,
			provideAPIClient,
			provideChannel,
			provideState,
			provideEngine,
			provideRuntime,
			provideApp,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired", zap.String("profile", p.ProfileName))
	return l, nil
}

func provideCache(p Params, logger *zap.Logger) (*store.DB, error) {
	path := profile.CachePath(p.ProfileName)
	db, err := store.Open(path)
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
	logger.Info("cache ready", zap.String("path", path))
	return db, nil
}

func provideMinter(p Params) *auth.Minter {
	return auth.NewMinter(p.Config.TokenSecret, tokenValidity)
}

func provideAPIClient(p Params, minter *auth.Minter, logger *zap.Logger) *api.Client {
	return api.NewClient(p.Config.APIBase, minter, logger)
}

func provideChannel(p Params, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *socket.Channel {
	return socket.NewChannel(p.Config.SocketURL, b, machine, logger)
}

func provideState() *intsync.State {
	return intsync.NewState()
}

func provideEngine(state *intsync.State, client *api.Client, channel *socket.Channel,
	db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(state, client, channel, db, b, logger)
}

func provideRuntime(p Params, client *api.Client, channel *socket.Channel,
	engine *intsync.Engine, machine *status.Machine, logger *zap.Logger) *Runtime {
	return NewRuntime(p.ProfileName, client, channel, engine, machine, logger)
}

func provideApp(p Params, engine *intsync.Engine, client *api.Client, db *store.DB,
	b *bus.Bus, machine *status.Machine, rt *Runtime, logger *zap.Logger) *tui.App {
	return tui.NewApp(engine, client, db, b, machine, rt, p.ProfileName, logger)
}

func registerLifecycle(lc fx.Lifecycle, p Params, lk *lock.Lock, db *store.DB,
	channel *socket.Channel, engine *intsync.Engine, machine *status.Machine,
	client *api.Client, logger *zap.Logger) {

	var engineCancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			engineCtx, cancel := context.WithCancel(context.Background())
			engineCancel = cancel
			go engine.Run(engineCtx)

			if err := engine.LoadCache(); err != nil {
				logger.Warn("cache hydration failed", zap.Error(err))
			}

			creds, err := profile.LoadCredentials(p.ProfileName)
			if err != nil {
				return err
			}
			if creds == nil {
				logger.Info("no credentials found, auth required")
				return machine.Transition(status.AuthRequired)
			}

			client.SetUserID(creds.UserID)
			self := store.User{ID: creds.UserID, Email: creds.Email}
			engine.State().SetSelf(self)

			if err := machine.Transition(status.Connecting); err != nil {
				return err
			}
			go func() {
				if err := channel.Start(context.Background(), self); err != nil {
					logger.Error("connect failed", zap.Error(err))
					if terr := machine.Transition(status.Reconnecting); terr != nil {
						logger.Warn("failed to enter reconnecting", zap.Error(terr))
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			channel.Stop()
			if engineCancel != nil {
				engineCancel()
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing cache", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("stopped")
			return nil
		},
	})
}
