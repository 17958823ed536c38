package store

import "time"

// Message delivery statuses as the server reports them.
const (
	StatusSent = "sent"
	StatusRead = "read"
)

// User is a contact (or the current user) as the server serializes it.
// LastMessage is the server-denormalized summary of the most recent
// message in the conversation with this contact, or nil.
type User struct {
	ID                string   `json:"_id"`
	Email             string   `json:"email"`
	FirstName         string   `json:"firstName,omitempty"`
	LastName          string   `json:"lastName,omitempty"`
	Bio               string   `json:"bio,omitempty"`
	Avatar            string   `json:"avatar,omitempty"`
	Muted             bool     `json:"muted"`
	NotificationSound string   `json:"notificationSound,omitempty"`
	SendingSound      string   `json:"sendingSound,omitempty"`
	LastMessage       *Message `json:"lastMessage,omitempty"`
}

// DisplayName returns first/last name when set, otherwise the local part
// of the email handle.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	for i := 0; i < len(u.Email); i++ {
		if u.Email[i] == '@' {
			return u.Email[:i]
		}
	}
	return u.Email
}

// Message is a single message between two users. Text may be empty when
// an image is attached. Reaction is a single emoji or empty.
type Message struct {
	ID        string    `json:"_id"`
	Sender    User      `json:"sender"`
	Receiver  User      `json:"receiver"`
	Text      string    `json:"text"`
	Image     string    `json:"image,omitempty"`
	Reaction  string    `json:"reaction,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PresenceEntry is one element of the server's full online-users snapshot.
type PresenceEntry struct {
	SocketID string `json:"socketId"`
	User     User   `json:"user"`
}

// SearchResult holds a cached message with a match snippet.
type SearchResult struct {
	Message Message
	Snippet string
}

// ConversationKey returns the canonical key for the unordered user pair
// {a, b}. Both directions of a conversation map to the same key.
func ConversationKey(a, b string) string {
	if a < b {
		return a + ":" + b
	}
	return b + ":" + a
}
