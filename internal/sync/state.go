package sync

import (
	"sort"
	"sync"

	"github.com/gram-chat/gram/internal/store"
)

// State is the in-memory view the terminal UI renders: the signed-in
// user, the contact roster, the active conversation, presence and the
// typing indicator. All access goes through locked methods; callers get
// copies, never internal slices.
type State struct {
	mu       sync.RWMutex
	self     store.User
	contacts []store.User
	activeID string
	messages []store.Message
	typing   string
	online   map[string]store.PresenceEntry
}

// NewState returns an empty State.
func NewState() *State {
	return &State{online: make(map[string]store.PresenceEntry)}
}

// SetSelf records the signed-in user.
func (s *State) SetSelf(u store.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.self = u
}

// Self returns the signed-in user.
func (s *State) Self() store.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.self
}

// SetContacts replaces the roster wholesale and re-sorts it.
func (s *State) SetContacts(contacts []store.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = append([]store.User(nil), contacts...)
	sortContacts(s.contacts)
}

// Contacts returns a sorted copy of the roster.
func (s *State) Contacts() []store.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]store.User(nil), s.contacts...)
}

// Contact returns the roster entry with the given id, or nil.
func (s *State) Contact(id string) *store.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.contacts {
		if s.contacts[i].ID == id {
			c := s.contacts[i]
			return &c
		}
	}
	return nil
}

// AddContact appends a contact if no entry with its id exists yet.
// Reports whether the roster changed.
func (s *State) AddContact(c store.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.contacts {
		if s.contacts[i].ID == c.ID {
			return false
		}
	}
	s.contacts = append(s.contacts, c)
	sortContacts(s.contacts)
	return true
}

// SetContactLastMessage updates the roster preview for one contact.
// A nil message clears the preview. Reports whether the contact exists.
func (s *State) SetContactLastMessage(contactID string, msg *store.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.contacts {
		if s.contacts[i].ID == contactID {
			if msg == nil {
				s.contacts[i].LastMessage = nil
			} else {
				copied := *msg
				s.contacts[i].LastMessage = &copied
			}
			sortContacts(s.contacts)
			return true
		}
	}
	return false
}

// SetActive selects a conversation and replaces its history wholesale.
// The typing indicator is cleared because it only ever describes the
// active conversation.
func (s *State) SetActive(contactID string, history []store.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = contactID
	s.messages = append([]store.Message(nil), history...)
	s.typing = ""
}

// ClearActive leaves the conversation view.
func (s *State) ClearActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = ""
	s.messages = nil
	s.typing = ""
}

// ActiveID returns the id of the contact whose conversation is open,
// or empty.
func (s *State) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Messages returns a copy of the active conversation.
func (s *State) Messages() []store.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]store.Message(nil), s.messages...)
}

// AppendMessage adds a message to the active conversation unless one
// with the same id is already present. Reports whether it was added.
func (s *State) AppendMessage(msg store.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == msg.ID {
			return false
		}
	}
	s.messages = append(s.messages, msg)
	return true
}

// UpdateMessage replaces text, reaction, status and the update time of
// the message with the given id. Missing ids are ignored.
func (s *State) UpdateMessage(msg store.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == msg.ID {
			s.messages[i].Text = msg.Text
			s.messages[i].Image = msg.Image
			s.messages[i].Reaction = msg.Reaction
			// Status only moves forward. An edit relayed before the
			// sender saw our receipt still carries sent.
			if msg.Status == store.StatusRead {
				s.messages[i].Status = store.StatusRead
			}
			s.messages[i].UpdatedAt = msg.UpdatedAt
			return true
		}
	}
	return false
}

// RemoveMessage deletes the message with the given id from the active
// conversation. Missing ids are ignored.
func (s *State) RemoveMessage(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return true
		}
	}
	return false
}

// MarkRead upgrades the listed message ids to read. Messages already
// read stay read; the transition never runs backwards.
func (s *State) MarkRead(ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for _, id := range ids {
		for i := range s.messages {
			if s.messages[i].ID == id && s.messages[i].Status != store.StatusRead {
				s.messages[i].Status = store.StatusRead
				changed++
			}
		}
	}
	return changed
}

// SetTyping records the in-progress text of the active contact. Empty
// clears the indicator.
func (s *State) SetTyping(draft string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing = draft
}

// Typing returns the active contact's in-progress text, or empty.
func (s *State) Typing() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typing
}

// SetOnline replaces the presence roster wholesale.
func (s *State) SetOnline(entries []store.PresenceEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = make(map[string]store.PresenceEntry, len(entries))
	for _, e := range entries {
		s.online[e.User.ID] = e
	}
}

// IsOnline reports whether the given user appears in the latest
// presence snapshot.
func (s *State) IsOnline(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.online[userID]
	return ok
}

// OnlineCount returns the size of the latest presence snapshot.
func (s *State) OnlineCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.online)
}

// sortContacts orders the roster by most recent conversation activity.
// Contacts without any message sort last, by email for stability.
func sortContacts(contacts []store.User) {
	sort.SliceStable(contacts, func(i, j int) bool {
		a, b := contacts[i].LastMessage, contacts[j].LastMessage
		switch {
		case a != nil && b != nil:
			return a.UpdatedAt.After(b.UpdatedAt)
		case a != nil:
			return true
		case b != nil:
			return false
		default:
			return contacts[i].Email < contacts[j].Email
		}
	})
}
