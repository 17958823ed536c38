// Package socket maintains the realtime channel to the server. Inbound
// events are published on the bus under the socket.* namespace; outbound
// emissions are best-effort side effects that run after the HTTP call
// for the same action has already succeeded.
package socket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gram-chat/gram/internal/bus"
	"github.com/gram-chat/gram/internal/status"
	"github.com/gram-chat/gram/internal/store"
)

const (
	dialTimeout   = 10 * time.Second
	writeTimeout  = 10 * time.Second
	reconnectWait = 3 * time.Second
)

// Channel is the websocket connection to the server. It reconnects on
// failure and re-announces presence after every successful dial.
type Channel struct {
	url     string
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	self store.User

	cancel context.CancelFunc
	done   chan struct{}
}

// NewChannel creates an unconnected Channel.
func NewChannel(url string, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *Channel {
	return &Channel{
		url:     url,
		bus:     b,
		machine: machine,
		logger:  logger.Named("socket"),
	}
}

// Start dials the server and keeps the connection alive until Stop is
// called. self is announced on every successful dial so the server can
// track presence across reconnects. A failed first dial is not fatal;
// the reconnect loop keeps trying.
func (c *Channel) Start(ctx context.Context, self store.User) error {
	c.mu.Lock()
	c.self = self
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	if err := c.dial(ctx); err != nil {
		c.logger.Warn("initial dial failed", zap.Error(err))
	}

	go c.run(ctx)
	return nil
}

// Stop closes the connection and ends the reconnect loop.
func (c *Channel) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
	<-c.done
}

func (c *Channel) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	self := c.self
	c.mu.Unlock()

	if err := c.emit(EventAddOnlineUser, self); err != nil {
		_ = conn.Close()
		return err
	}

	if cur := c.machine.Current(); cur != status.Online {
		if err := c.machine.Transition(status.Online); err != nil {
			c.logger.Warn("unexpected status on connect", zap.String("state", string(cur)), zap.Error(err))
		}
	}
	c.logger.Info("connected", zap.String("url", c.url))
	return nil
}

// run reads frames until the connection drops, then redials after a
// fixed delay until ctx is cancelled.
func (c *Channel) run(ctx context.Context) {
	defer close(c.done)
	for {
		c.readLoop(ctx)
		if ctx.Err() != nil {
			return
		}

		if err := c.machine.Transition(status.Reconnecting); err != nil {
			c.logger.Warn("failed to enter reconnecting", zap.Error(err))
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectWait):
			}

			if err := c.machine.Transition(status.Connecting); err != nil {
				c.logger.Warn("failed to enter connecting", zap.Error(err))
			}
			if err := c.dial(ctx); err == nil {
				break
			} else {
				c.logger.Warn("reconnect failed", zap.Error(err))
			}
			if err := c.machine.Transition(status.Reconnecting); err != nil {
				c.logger.Warn("failed to re-enter reconnecting", zap.Error(err))
			}
		}
	}
}

func (c *Channel) readLoop(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("read failed", zap.Error(err))
			}
			return
		}

		event, payload, err := Decode(frame)
		if err != nil {
			c.logger.Warn("dropping frame", zap.String("event", event), zap.Error(err))
			continue
		}
		c.bus.Emit("socket."+event, payload)
	}
}

func (c *Channel) emit(event string, data any) error {
	frame, err := Encode(event, data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to emit %s: %w", event, err)
	}
	return nil
}

// EmitCreateContact tells the new contact's client about us.
func (c *Channel) EmitCreateContact(currentUser, receiver store.User) error {
	return c.emit(EventCreateContact, map[string]store.User{
		"currentUser": currentUser,
		"receiver":    receiver,
	})
}

// EmitSendMessage forwards a freshly accepted message to its recipient.
func (c *Channel) EmitSendMessage(msg store.Message, sender, receiver store.User) error {
	return c.emit(EventSendMessage, NewMessageEvent{NewMessage: msg, Sender: sender, Receiver: receiver})
}

// EmitUpdateMessage forwards an edit or reaction.
func (c *Channel) EmitUpdateMessage(msg store.Message, sender, receiver store.User) error {
	return c.emit(EventUpdateMessage, UpdatedMessageEvent{UpdatedMessage: msg, Sender: sender, Receiver: receiver})
}

// EmitDeleteMessage forwards a deletion plus the remaining conversation
// tail the recipient should use for its roster preview.
func (c *Channel) EmitDeleteMessage(msg store.Message, sender, receiver store.User, remaining []store.Message) error {
	return c.emit(EventDeleteMessage, DeletedMessageEvent{
		DeletedMessage:   msg,
		Sender:           sender,
		Receiver:         receiver,
		FilteredMessages: remaining,
	})
}

// EmitReadMessages forwards read receipts. receiver is the peer whose
// messages were read; the server routes the batch to that user.
func (c *Channel) EmitReadMessages(msgs []store.Message, receiver store.User) error {
	payload := struct {
		Messages []store.Message `json:"messages"`
		Receiver store.User      `json:"receiver"`
	}{Messages: msgs, Receiver: receiver}
	return c.emit(EventReadMessages, payload)
}

// EmitTyping signals composing state toward the receiver.
func (c *Channel) EmitTyping(sender, receiver store.User, draft string) error {
	return c.emit(EventTyping, TypingEvent{Sender: sender, Receiver: receiver, Message: draft})
}
