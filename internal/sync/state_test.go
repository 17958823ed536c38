package sync

import (
	"testing"
	"time"

	"github.com/gram-chat/gram/internal/store"
)

func msgAt(id string, at time.Time) *store.Message {
	return &store.Message{ID: id, Text: "m " + id, Status: store.StatusSent, CreatedAt: at, UpdatedAt: at}
}

func TestContactOrderFollowsLastMessage(t *testing.T) {
	now := time.Now()
	s := NewState()
	s.SetContacts([]store.User{
		{ID: "a", Email: "a@mail.com", LastMessage: msgAt("m1", now.Add(-time.Hour))},
		{ID: "b", Email: "b@mail.com", LastMessage: msgAt("m2", now)},
		{ID: "c", Email: "c@mail.com"},
	})

	got := s.Contacts()
	if got[0].ID != "b" || got[1].ID != "a" || got[2].ID != "c" {
		t.Fatalf("order = %s %s %s, want b a c", got[0].ID, got[1].ID, got[2].ID)
	}

	// A fresh message moves its contact to the top.
	s.SetContactLastMessage("a", msgAt("m3", now.Add(time.Minute)))
	got = s.Contacts()
	if got[0].ID != "a" {
		t.Fatalf("after update, top = %s, want a", got[0].ID)
	}
}

func TestAppendMessageDedupsByID(t *testing.T) {
	s := NewState()
	s.SetActive("b", nil)

	m := store.Message{ID: "m1", Text: "hi"}
	if !s.AppendMessage(m) {
		t.Fatal("first append should report change")
	}
	if s.AppendMessage(m) {
		t.Fatal("second append of the same id should be a no-op")
	}
	if len(s.Messages()) != 1 {
		t.Fatalf("messages = %d, want 1", len(s.Messages()))
	}
}

func TestMarkReadIsMonotone(t *testing.T) {
	s := NewState()
	s.SetActive("b", []store.Message{
		{ID: "m1", Status: store.StatusRead},
		{ID: "m2", Status: store.StatusSent},
	})

	if changed := s.MarkRead([]string{"m1", "m2"}); changed != 1 {
		t.Fatalf("changed = %d, want 1", changed)
	}
	// Re-applying the batch does nothing and never downgrades.
	if changed := s.MarkRead([]string{"m1", "m2"}); changed != 0 {
		t.Fatalf("second pass changed = %d, want 0", changed)
	}
	for _, m := range s.Messages() {
		if m.Status != store.StatusRead {
			t.Errorf("message %s status = %s", m.ID, m.Status)
		}
	}
}

func TestUpdateMissingMessageIgnored(t *testing.T) {
	s := NewState()
	s.SetActive("b", []store.Message{{ID: "m1", Text: "old"}})

	if s.UpdateMessage(store.Message{ID: "gone", Text: "new"}) {
		t.Fatal("updating an absent id should report no change")
	}
	if s.RemoveMessage("gone") {
		t.Fatal("removing an absent id should report no change")
	}
	if got := s.Messages()[0].Text; got != "old" {
		t.Errorf("text = %q, want old", got)
	}
}

func TestUpdateKeepsReadStatus(t *testing.T) {
	s := NewState()
	s.SetActive("b", []store.Message{{ID: "m1", Text: "old", Status: store.StatusRead}})

	// An edit relayed before the editor saw our receipt still says sent.
	if !s.UpdateMessage(store.Message{ID: "m1", Text: "new", Status: store.StatusSent}) {
		t.Fatal("update should apply")
	}
	got := s.Messages()[0]
	if got.Text != "new" {
		t.Errorf("text = %q, want new", got.Text)
	}
	if got.Status != store.StatusRead {
		t.Errorf("status = %s, want read to survive a stale edit", got.Status)
	}
}

func TestSetActiveClearsTyping(t *testing.T) {
	s := NewState()
	s.SetActive("b", nil)
	s.SetTyping("hel")

	s.SetActive("c", nil)
	if s.Typing() != "" {
		t.Errorf("typing = %q, want empty after switch", s.Typing())
	}
}

func TestPresenceWholesaleReplace(t *testing.T) {
	s := NewState()
	s.SetOnline([]store.PresenceEntry{
		{SocketID: "s1", User: store.User{ID: "a"}},
		{SocketID: "s2", User: store.User{ID: "b"}},
	})
	if !s.IsOnline("a") || !s.IsOnline("b") {
		t.Fatal("both users should be online")
	}

	s.SetOnline([]store.PresenceEntry{{SocketID: "s3", User: store.User{ID: "b"}}})
	if s.IsOnline("a") {
		t.Error("a should have dropped from the snapshot")
	}
	if !s.IsOnline("b") || s.OnlineCount() != 1 {
		t.Error("b should remain the only online user")
	}
}

func TestAddContactIfAbsent(t *testing.T) {
	s := NewState()
	if !s.AddContact(store.User{ID: "a", Email: "a@mail.com"}) {
		t.Fatal("first add should report change")
	}
	if s.AddContact(store.User{ID: "a", Email: "a@mail.com"}) {
		t.Fatal("duplicate add should be a no-op")
	}
	if len(s.Contacts()) != 1 {
		t.Fatalf("contacts = %d, want 1", len(s.Contacts()))
	}
}

func TestClearPreview(t *testing.T) {
	s := NewState()
	s.SetContacts([]store.User{{ID: "a", LastMessage: msgAt("m1", time.Now())}})

	if !s.SetContactLastMessage("a", nil) {
		t.Fatal("clear should report the contact exists")
	}
	if s.Contacts()[0].LastMessage != nil {
		t.Error("preview should be nil")
	}
	if s.SetContactLastMessage("missing", nil) {
		t.Error("unknown contact should report false")
	}
}
