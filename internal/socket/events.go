package socket

import (
	"encoding/json"
	"fmt"

	"github.com/gram-chat/gram/internal/store"
)

// Event names carried on the wire, both directions.
const (
	EventAddOnlineUser  = "addOnlineUser"
	EventCreateContact  = "createContact"
	EventSendMessage    = "sendMessage"
	EventUpdateMessage  = "updateMessage"
	EventDeleteMessage  = "deleteMessage"
	EventReadMessages   = "readMessages"
	EventTyping         = "typing"
	EventOnlineUsers    = "getOnlineUsers"
	EventCreatedUser    = "getCreatedUser"
	EventNewMessage     = "getNewMessage"
	EventReadReceipts   = "getReadMessages"
	EventUpdatedMessage = "getUpdatedMessage"
	EventDeletedMessage = "getDeletedMessage"
	EventTypingNotice   = "getTyping"
)

// envelope is the wire frame: a name plus an event-specific payload.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// OnlineUsersEvent replaces the whole presence roster.
type OnlineUsersEvent struct {
	Users []store.PresenceEntry
}

// CreatedUserEvent announces that another user added us as a contact.
type CreatedUserEvent struct {
	User store.User
}

// NewMessageEvent carries an incoming message together with both
// participants so the recipient can update the contact roster.
type NewMessageEvent struct {
	NewMessage store.Message `json:"newMessage"`
	Sender     store.User    `json:"sender"`
	Receiver   store.User    `json:"receiver"`
}

// UpdatedMessageEvent carries an edit or a reaction change.
type UpdatedMessageEvent struct {
	UpdatedMessage store.Message `json:"updatedMessage"`
	Sender         store.User    `json:"sender"`
	Receiver       store.User    `json:"receiver"`
}

// DeletedMessageEvent carries a deletion. FilteredMessages is the
// sender's remaining conversation tail and is the only authority for
// what the roster preview should fall back to.
type DeletedMessageEvent struct {
	DeletedMessage   store.Message   `json:"deletedMessage"`
	Sender           store.User      `json:"sender"`
	Receiver         store.User      `json:"receiver"`
	FilteredMessages []store.Message `json:"filteredMessages"`
}

// ReadMessagesEvent carries a batch of messages marked read by their
// recipient. The wire payload is the bare batch; outbound receipts add
// a routing receiver, but the server strips it before relaying.
type ReadMessagesEvent struct {
	Messages []store.Message
}

// TypingEvent signals the sender is composing toward the receiver.
// Message holds the in-progress text and may be empty when typing
// stopped.
type TypingEvent struct {
	Sender   store.User `json:"sender"`
	Receiver store.User `json:"receiver"`
	Message  string     `json:"message"`
}

// Decode parses a wire frame into its typed event. Unknown event names
// return an error so the read pump can log and skip them.
func Decode(frame []byte) (string, any, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return "", nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	var (
		payload any
		err     error
	)
	switch env.Event {
	case EventOnlineUsers:
		var users []store.PresenceEntry
		err = json.Unmarshal(env.Data, &users)
		payload = OnlineUsersEvent{Users: users}
	case EventCreatedUser:
		var user store.User
		err = json.Unmarshal(env.Data, &user)
		payload = CreatedUserEvent{User: user}
	case EventNewMessage:
		var evt NewMessageEvent
		err = json.Unmarshal(env.Data, &evt)
		payload = evt
	case EventReadReceipts:
		var msgs []store.Message
		err = json.Unmarshal(env.Data, &msgs)
		payload = ReadMessagesEvent{Messages: msgs}
	case EventUpdatedMessage:
		var evt UpdatedMessageEvent
		err = json.Unmarshal(env.Data, &evt)
		payload = evt
	case EventDeletedMessage:
		var evt DeletedMessageEvent
		err = json.Unmarshal(env.Data, &evt)
		payload = evt
	case EventTypingNotice:
		var evt TypingEvent
		err = json.Unmarshal(env.Data, &evt)
		payload = evt
	default:
		return env.Event, nil, fmt.Errorf("unknown event %q", env.Event)
	}
	if err != nil {
		return env.Event, nil, fmt.Errorf("failed to decode %s payload: %w", env.Event, err)
	}
	return env.Event, payload, nil
}

// Encode builds a wire frame for an outbound event.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	return json.Marshal(envelope{Event: event, Data: raw})
}
