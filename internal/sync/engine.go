// Package sync reconciles server events with the local view. Every
// local mutation goes HTTP-first: the store only changes after the
// server acknowledged the call, and the realtime emission toward the
// peer runs afterwards as a best-effort side effect.
package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gram-chat/gram/internal/api"
	"github.com/gram-chat/gram/internal/bus"
	"github.com/gram-chat/gram/internal/socket"
	"github.com/gram-chat/gram/internal/store"
)

// Gateway is the HTTP surface the engine mutates through. *api.Client
// implements it.
type Gateway interface {
	Contacts(ctx context.Context) ([]store.User, error)
	AddContact(ctx context.Context, email string) (*store.User, error)
	Messages(ctx context.Context, contactID string) ([]store.Message, error)
	SendMessage(ctx context.Context, text, image, receiverID string) (*api.SendResult, error)
	EditMessage(ctx context.Context, messageID, text string) (*store.Message, error)
	DeleteMessage(ctx context.Context, messageID string) (*store.Message, error)
	React(ctx context.Context, messageID, reaction string) (*store.Message, error)
	MarkRead(ctx context.Context, messages []store.Message) ([]store.Message, error)
	UpdateProfile(ctx context.Context, patch api.ProfilePatch) (*store.User, error)
}

// Emitter is the realtime channel the engine announces accepted
// mutations on. *socket.Channel implements it.
type Emitter interface {
	EmitCreateContact(currentUser, receiver store.User) error
	EmitSendMessage(msg store.Message, sender, receiver store.User) error
	EmitUpdateMessage(msg store.Message, sender, receiver store.User) error
	EmitDeleteMessage(msg store.Message, sender, receiver store.User, remaining []store.Message) error
	EmitReadMessages(msgs []store.Message, receiver store.User) error
	EmitTyping(sender, receiver store.User, draft string) error
}

// SoundCue is the payload of notify.sound events.
type SoundCue struct {
	Kind string
	Name string
}

// Engine owns the State and is the single writer to it. Inbound socket
// events arrive through Apply; the terminal UI calls the exported
// mutation methods.
type Engine struct {
	state  *State
	gw     Gateway
	emit   Emitter
	cache  *store.DB
	bus    *bus.Bus
	logger *zap.Logger
}

// NewEngine creates an Engine. cache may be nil when the profile runs
// without a local database.
func NewEngine(state *State, gw Gateway, emit Emitter, cache *store.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	return &Engine{
		state:  state,
		gw:     gw,
		emit:   emit,
		cache:  cache,
		bus:    b,
		logger: logger.Named("sync"),
	}
}

// State exposes the view for rendering.
func (e *Engine) State() *State {
	return e.state
}

// Run consumes inbound socket events until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	events, unsub := e.bus.Subscribe("socket.", 64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			e.Apply(ctx, evt)
		}
	}
}

// Apply reconciles one inbound socket event into the State.
func (e *Engine) Apply(ctx context.Context, evt bus.Event) {
	switch payload := evt.Payload.(type) {
	case socket.OnlineUsersEvent:
		e.state.SetOnline(payload.Users)
		e.bus.Emit("state.presence_changed", nil)
	case socket.CreatedUserEvent:
		e.applyCreatedUser(payload)
	case socket.NewMessageEvent:
		e.applyNewMessage(ctx, payload)
	case socket.UpdatedMessageEvent:
		e.applyUpdatedMessage(payload)
	case socket.DeletedMessageEvent:
		e.applyDeletedMessage(payload)
	case socket.ReadMessagesEvent:
		e.applyReadReceipts(payload)
	case socket.TypingEvent:
		e.applyTyping(payload)
	default:
		e.logger.Debug("ignoring event", zap.String("kind", evt.Kind))
	}
}

func (e *Engine) applyCreatedUser(evt socket.CreatedUserEvent) {
	if !e.state.AddContact(evt.User) {
		return
	}
	e.cacheContact(&evt.User)
	e.bus.Emit("state.contacts_changed", nil)
}

func (e *Engine) applyNewMessage(ctx context.Context, evt socket.NewMessageEvent) {
	viewing := e.state.ActiveID() == evt.Sender.ID

	preview := evt.NewMessage
	arrived := false
	if viewing {
		preview.Status = store.StatusRead
		arrived = e.state.AppendMessage(evt.NewMessage)
		if arrived {
			e.bus.Emit("state.messages_changed", nil)
		}
		e.state.SetTyping("")
		e.bus.Emit("state.typing_changed", nil)
	}

	if e.state.SetContactLastMessage(evt.Sender.ID, &preview) {
		e.bus.Emit("state.contacts_changed", nil)
	}

	if e.cache != nil {
		if err := e.cache.UpsertMessage(&evt.NewMessage); err != nil {
			e.logger.Warn("cache write failed", zap.Error(err))
		}
		if err := e.cache.SetContactLastMessage(evt.Sender.ID, &preview); err != nil {
			e.logger.Warn("cache write failed", zap.Error(err))
		}
	}

	// A message landing in the open conversation counts as read right
	// away; the sender hears about it without waiting for a reopen.
	if arrived {
		if err := e.reportRead(ctx, []store.Message{evt.NewMessage}, evt.Sender); err != nil {
			e.logger.Warn("read report failed", zap.Error(err))
		}
	}

	// The receiver in the event is us; its mute flag is authoritative.
	if !evt.Receiver.Muted {
		e.bus.Emit("notify.sound", SoundCue{Kind: "notification", Name: evt.Receiver.NotificationSound})
	}
}

func (e *Engine) applyUpdatedMessage(evt socket.UpdatedMessageEvent) {
	if e.state.UpdateMessage(evt.UpdatedMessage) {
		e.state.SetTyping("")
		e.bus.Emit("state.messages_changed", nil)
		e.bus.Emit("state.typing_changed", nil)
	}

	e.refreshPreviewIfMatches(evt.Sender.ID, evt.UpdatedMessage)

	if e.cache != nil {
		if err := e.cache.UpsertMessage(&evt.UpdatedMessage); err != nil {
			e.logger.Warn("cache write failed", zap.Error(err))
		}
	}
}

func (e *Engine) applyDeletedMessage(evt socket.DeletedMessageEvent) {
	if e.state.RemoveMessage(evt.DeletedMessage.ID) {
		e.state.SetTyping("")
		e.bus.Emit("state.messages_changed", nil)
		e.bus.Emit("state.typing_changed", nil)
	}

	// The sender's remaining tail decides the new preview; it is never
	// recomputed from local state because local history may be partial.
	var preview *store.Message
	if n := len(evt.FilteredMessages); n > 0 {
		preview = &evt.FilteredMessages[n-1]
	}
	if e.state.SetContactLastMessage(evt.Sender.ID, preview) {
		e.bus.Emit("state.contacts_changed", nil)
	}

	if e.cache != nil {
		if err := e.cache.DeleteMessage(evt.DeletedMessage.ID); err != nil {
			e.logger.Warn("cache write failed", zap.Error(err))
		}
		if err := e.cache.SetContactLastMessage(evt.Sender.ID, preview); err != nil {
			e.logger.Warn("cache write failed", zap.Error(err))
		}
	}
}

func (e *Engine) applyReadReceipts(evt socket.ReadMessagesEvent) {
	self := e.state.Self().ID

	ids := make([]string, 0, len(evt.Messages))
	byPeer := make(map[string][]string)
	for _, m := range evt.Messages {
		ids = append(ids, m.ID)
		// The counterpart is whichever participant is not us.
		peer := m.Receiver.ID
		if peer == self {
			peer = m.Sender.ID
		}
		byPeer[peer] = append(byPeer[peer], m.ID)
	}

	if e.state.MarkRead(ids) > 0 {
		e.bus.Emit("state.messages_changed", nil)
	}

	for peer, peerIDs := range byPeer {
		contact := e.state.Contact(peer)
		if contact == nil || contact.LastMessage == nil {
			continue
		}
		for _, id := range peerIDs {
			if contact.LastMessage.ID != id {
				continue
			}
			read := *contact.LastMessage
			read.Status = store.StatusRead
			if e.state.SetContactLastMessage(peer, &read) {
				e.bus.Emit("state.contacts_changed", nil)
			}
			break
		}
	}

	if e.cache != nil {
		if err := e.cache.MarkMessagesRead(ids); err != nil {
			e.logger.Warn("cache write failed", zap.Error(err))
		}
	}
}

func (e *Engine) applyTyping(evt socket.TypingEvent) {
	if e.state.ActiveID() != evt.Sender.ID {
		return
	}
	e.state.SetTyping(evt.Message)
	e.bus.Emit("state.typing_changed", nil)
}

// refreshPreviewIfMatches copies an updated message into the roster
// preview of the given contact when their preview shows that message.
func (e *Engine) refreshPreviewIfMatches(contactID string, msg store.Message) {
	contact := e.state.Contact(contactID)
	if contact == nil || contact.LastMessage == nil || contact.LastMessage.ID != msg.ID {
		return
	}
	if e.state.SetContactLastMessage(contactID, &msg) {
		e.bus.Emit("state.contacts_changed", nil)
	}
	if e.cache != nil {
		if err := e.cache.SetContactLastMessage(contactID, &msg); err != nil {
			e.logger.Warn("cache write failed", zap.Error(err))
		}
	}
}

// LoadCache hydrates the roster from the local database so the UI has
// something to render before the first fetch completes.
func (e *Engine) LoadCache() error {
	if e.cache == nil {
		return nil
	}
	contacts, err := e.cache.ListContacts()
	if err != nil {
		return fmt.Errorf("failed to load cached contacts: %w", err)
	}
	if len(contacts) > 0 {
		e.state.SetContacts(contacts)
		e.bus.Emit("state.contacts_changed", nil)
	}
	return nil
}

// RefreshContacts fetches the roster and replaces the local copy.
func (e *Engine) RefreshContacts(ctx context.Context) error {
	contacts, err := e.gw.Contacts(ctx)
	if err != nil {
		return err
	}
	e.state.SetContacts(contacts)
	e.bus.Emit("state.contacts_changed", nil)

	if e.cache != nil {
		if err := e.cache.BulkUpsertContacts(contacts); err != nil {
			e.logger.Warn("cache write failed", zap.Error(err))
		}
		for i := range contacts {
			if err := e.cache.SetContactLastMessage(contacts[i].ID, contacts[i].LastMessage); err != nil {
				e.logger.Warn("cache write failed", zap.Error(err))
			}
		}
	}
	return nil
}

// AddContact creates a conversation with the user behind the email,
// then announces it so the other side's roster updates.
func (e *Engine) AddContact(ctx context.Context, email string) (*store.User, error) {
	contact, err := e.gw.AddContact(ctx, email)
	if err != nil {
		return nil, err
	}

	if e.state.AddContact(*contact) {
		e.bus.Emit("state.contacts_changed", nil)
	}
	e.cacheContact(contact)

	if err := e.emit.EmitCreateContact(e.state.Self(), *contact); err != nil {
		e.logger.Warn("emit failed", zap.Error(err))
	}
	return contact, nil
}

// OpenConversation selects a contact, replaces the visible history with
// the server's and reports any messages we had not read yet.
func (e *Engine) OpenConversation(ctx context.Context, contactID string) error {
	history, err := e.gw.Messages(ctx, contactID)
	if err != nil {
		return err
	}

	e.state.SetActive(contactID, history)
	e.bus.Emit("state.messages_changed", nil)
	e.bus.Emit("state.typing_changed", nil)

	if e.cache != nil {
		if err := e.cache.ReplaceConversation(e.state.Self().ID, contactID, history); err != nil {
			e.logger.Warn("cache write failed", zap.Error(err))
		}
	}

	self := e.state.Self()
	var unread []store.Message
	for _, m := range history {
		if m.Receiver.ID == self.ID && m.Status != store.StatusRead {
			unread = append(unread, m)
		}
	}
	if len(unread) == 0 {
		return nil
	}

	peer := store.User{ID: contactID}
	if c := e.state.Contact(contactID); c != nil {
		peer = *c
	}
	return e.reportRead(ctx, unread, peer)
}

// reportRead tells the server a batch of inbound messages was read and
// forwards the receipt to the peer who sent them, so their view flips
// to read.
func (e *Engine) reportRead(ctx context.Context, msgs []store.Message, peer store.User) error {
	updated, err := e.gw.MarkRead(ctx, msgs)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(updated))
	for _, m := range updated {
		ids = append(ids, m.ID)
	}
	if e.state.MarkRead(ids) > 0 {
		e.bus.Emit("state.messages_changed", nil)
	}
	if contact := e.state.Contact(peer.ID); contact != nil && contact.LastMessage != nil {
		for _, id := range ids {
			if contact.LastMessage.ID != id {
				continue
			}
			read := *contact.LastMessage
			read.Status = store.StatusRead
			if e.state.SetContactLastMessage(peer.ID, &read) {
				e.bus.Emit("state.contacts_changed", nil)
			}
			break
		}
	}
	if e.cache != nil {
		if err := e.cache.MarkMessagesRead(ids); err != nil {
			e.logger.Warn("cache write failed", zap.Error(err))
		}
	}
	if err := e.emit.EmitReadMessages(updated, peer); err != nil {
		e.logger.Warn("emit failed", zap.Error(err))
	}
	return nil
}

// CloseConversation leaves the chat view.
func (e *Engine) CloseConversation() {
	e.state.ClearActive()
	e.bus.Emit("state.messages_changed", nil)
}

// SendMessage posts a message to the active contact. The view changes
// only after the server accepted it.
func (e *Engine) SendMessage(ctx context.Context, text, image string) error {
	contactID := e.state.ActiveID()
	if contactID == "" {
		return fmt.Errorf("no conversation selected")
	}

	res, err := e.gw.SendMessage(ctx, text, image, contactID)
	if err != nil {
		return err
	}

	if e.state.AppendMessage(res.NewMessage) {
		e.bus.Emit("state.messages_changed", nil)
	}

	// Our own conversation is open, so the preview shows as read.
	preview := res.NewMessage
	preview.Status = store.StatusRead
	if e.state.SetContactLastMessage(contactID, &preview) {
		e.bus.Emit("state.contacts_changed", nil)
	}

	if e.cache != nil {
		if err := e.cache.UpsertMessage(&res.NewMessage); err != nil {
			e.logger.Warn("cache write failed", zap.Error(err))
		}
		if err := e.cache.SetContactLastMessage(contactID, &preview); err != nil {
			e.logger.Warn("cache write failed", zap.Error(err))
		}
	}

	if err := e.emit.EmitSendMessage(res.NewMessage, res.Sender, res.Receiver); err != nil {
		e.logger.Warn("emit failed", zap.Error(err))
	}
	if !res.Sender.Muted {
		e.bus.Emit("notify.sound", SoundCue{Kind: "sending", Name: res.Sender.SendingSound})
	}
	return nil
}

// EditMessage rewrites a message's text.
func (e *Engine) EditMessage(ctx context.Context, messageID, text string) error {
	updated, err := e.gw.EditMessage(ctx, messageID, text)
	if err != nil {
		return err
	}
	e.applyLocalUpdate(*updated)
	return nil
}

// React sets the reaction on a message.
func (e *Engine) React(ctx context.Context, messageID, reaction string) error {
	updated, err := e.gw.React(ctx, messageID, reaction)
	if err != nil {
		return err
	}
	e.applyLocalUpdate(*updated)
	return nil
}

func (e *Engine) applyLocalUpdate(updated store.Message) {
	contactID := e.state.ActiveID()

	if e.state.UpdateMessage(updated) {
		e.bus.Emit("state.messages_changed", nil)
	}
	e.refreshPreviewIfMatches(contactID, updated)

	if e.cache != nil {
		if err := e.cache.UpsertMessage(&updated); err != nil {
			e.logger.Warn("cache write failed", zap.Error(err))
		}
	}

	contact := e.state.Contact(contactID)
	if contact == nil {
		return
	}
	if err := e.emit.EmitUpdateMessage(updated, e.state.Self(), *contact); err != nil {
		e.logger.Warn("emit failed", zap.Error(err))
	}
}

// DeleteMessage removes a message. The remaining conversation after the
// removal travels with the emission so the peer's preview follows ours.
func (e *Engine) DeleteMessage(ctx context.Context, messageID string) error {
	contactID := e.state.ActiveID()

	deleted, err := e.gw.DeleteMessage(ctx, messageID)
	if err != nil {
		return err
	}

	if e.state.RemoveMessage(deleted.ID) {
		e.bus.Emit("state.messages_changed", nil)
	}

	remaining := e.state.Messages()
	var preview *store.Message
	if n := len(remaining); n > 0 {
		preview = &remaining[n-1]
	}
	if e.state.SetContactLastMessage(contactID, preview) {
		e.bus.Emit("state.contacts_changed", nil)
	}

	if e.cache != nil {
		if err := e.cache.DeleteMessage(deleted.ID); err != nil {
			e.logger.Warn("cache write failed", zap.Error(err))
		}
		if err := e.cache.SetContactLastMessage(contactID, preview); err != nil {
			e.logger.Warn("cache write failed", zap.Error(err))
		}
	}

	contact := e.state.Contact(contactID)
	if contact == nil {
		return nil
	}
	if err := e.emit.EmitDeleteMessage(*deleted, e.state.Self(), *contact, remaining); err != nil {
		e.logger.Warn("emit failed", zap.Error(err))
	}
	return nil
}

// Typing tells the active contact what is being composed. Purely a
// realtime signal, nothing touches the server store.
func (e *Engine) Typing(draft string) {
	contact := e.state.Contact(e.state.ActiveID())
	if contact == nil {
		return
	}
	if err := e.emit.EmitTyping(e.state.Self(), *contact, draft); err != nil {
		e.logger.Warn("emit failed", zap.Error(err))
	}
}

// UpdateProfile applies a partial profile change to the signed-in user.
func (e *Engine) UpdateProfile(ctx context.Context, patch api.ProfilePatch) error {
	updated, err := e.gw.UpdateProfile(ctx, patch)
	if err != nil {
		return err
	}
	e.state.SetSelf(*updated)
	e.bus.Emit("state.self_changed", nil)
	return nil
}

func (e *Engine) cacheContact(c *store.User) {
	if e.cache == nil {
		return
	}
	if err := e.cache.UpsertContact(c); err != nil {
		e.logger.Warn("cache write failed", zap.Error(err))
	}
}
