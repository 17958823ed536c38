package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gram-chat/gram/internal/api"
	"github.com/gram-chat/gram/internal/profile"
	"github.com/gram-chat/gram/internal/socket"
	"github.com/gram-chat/gram/internal/status"
	"github.com/gram-chat/gram/internal/store"
	intsync "github.com/gram-chat/gram/internal/sync"
)

// Runtime drives the session up and down around the screen: it owns
// credential persistence and the realtime channel. The terminal shell
// calls it through the tui.Controller interface.
type Runtime struct {
	profileName string
	client      *api.Client
	channel     *socket.Channel
	engine      *intsync.Engine
	machine     *status.Machine
	logger      *zap.Logger
}

// NewRuntime creates a Runtime.
func NewRuntime(profileName string, client *api.Client, channel *socket.Channel,
	engine *intsync.Engine, machine *status.Machine, logger *zap.Logger) *Runtime {
	return &Runtime{
		profileName: profileName,
		client:      client,
		channel:     channel,
		engine:      engine,
		machine:     machine,
		logger:      logger.Named("runtime"),
	}
}

// SignIn persists the verified user and brings the channel up.
func (r *Runtime) SignIn(ctx context.Context, user store.User) error {
	creds := &profile.Credentials{UserID: user.ID, Email: user.Email}
	if err := profile.SaveCredentials(r.profileName, creds); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	r.client.SetUserID(user.ID)
	r.engine.State().SetSelf(user)

	if err := r.machine.Transition(status.Connecting); err != nil {
		r.logger.Warn("unexpected state at sign-in", zap.Error(err))
	}
	if err := r.channel.Start(context.Background(), user); err != nil {
		if terr := r.machine.Transition(status.Reconnecting); terr != nil {
			r.logger.Warn("failed to enter reconnecting", zap.Error(terr))
		}
		return err
	}

	r.logger.Info("signed in", zap.String("user_id", user.ID))
	return nil
}

// SignOut tears the channel down and forgets the stored credentials.
func (r *Runtime) SignOut(context.Context) error {
	r.channel.Stop()

	if err := profile.ClearCredentials(r.profileName); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	r.client.SetUserID("")
	r.engine.State().SetSelf(store.User{})
	r.engine.State().ClearActive()

	if err := r.machine.Transition(status.AuthRequired); err != nil {
		r.logger.Warn("unexpected state at sign-out", zap.Error(err))
	}
	r.logger.Info("signed out")
	return nil
}
