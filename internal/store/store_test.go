package store

import (
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testMessage(id, senderID, receiverID, text string, ts int64) *Message {
	return &Message{
		ID:        id,
		Sender:    User{ID: senderID},
		Receiver:  User{ID: receiverID},
		Text:      text,
		Status:    StatusSent,
		CreatedAt: time.UnixMilli(ts),
		UpdatedAt: time.UnixMilli(ts),
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate; a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + fts)", result.Version)
	}
}

func TestConversationKeyUnordered(t *testing.T) {
	if ConversationKey("a", "b") != ConversationKey("b", "a") {
		t.Error("conversation key must not depend on direction")
	}
}

func TestContactUpsertAndList(t *testing.T) {
	db := testDB(t)

	u := &User{ID: "u1", Email: "alice@mail.com", FirstName: "Alice"}
	if err := db.UpsertContact(u); err != nil {
		t.Fatal(err)
	}

	u.FirstName = "Alicia"
	u.LastMessage = testMessage("m1", "u1", "me", "hello", 1000)
	if err := db.UpsertContact(u); err != nil {
		t.Fatal(err)
	}

	contacts, err := db.ListContacts()
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 1 {
		t.Fatalf("got %d contacts, want 1", len(contacts))
	}
	if contacts[0].FirstName != "Alicia" {
		t.Errorf("first name = %q, want Alicia", contacts[0].FirstName)
	}
	if contacts[0].LastMessage == nil || contacts[0].LastMessage.Text != "hello" {
		t.Errorf("last message not rehydrated: %+v", contacts[0].LastMessage)
	}
}

func TestGetContactMissing(t *testing.T) {
	db := testDB(t)

	c, err := db.GetContact("nope")
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Error("expected nil for missing contact")
	}
}

func TestSetContactLastMessageClear(t *testing.T) {
	db := testDB(t)

	u := &User{ID: "u1", Email: "a@b.c", LastMessage: testMessage("m1", "u1", "me", "hi", 1000)}
	if err := db.UpsertContact(u); err != nil {
		t.Fatal(err)
	}
	if err := db.SetContactLastMessage("u1", nil); err != nil {
		t.Fatal(err)
	}

	c, err := db.GetContact("u1")
	if err != nil {
		t.Fatal(err)
	}
	if c.LastMessage != nil {
		t.Errorf("last message = %+v, want nil", c.LastMessage)
	}
}

func TestMessageUpsertIdempotent(t *testing.T) {
	db := testDB(t)

	m := testMessage("m1", "me", "u1", "hello", 1000)
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}
	m.Text = "hello edited"
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListConversation("me", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (idempotent upsert failed)", len(msgs))
	}
	if msgs[0].Text != "hello edited" {
		t.Errorf("text = %q, want hello edited", msgs[0].Text)
	}
}

func TestReplaceConversation(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertMessage(testMessage("stale", "me", "u1", "old", 500)); err != nil {
		t.Fatal(err)
	}
	fresh := []Message{
		*testMessage("m1", "u1", "me", "one", 1000),
		*testMessage("m2", "me", "u1", "two", 2000),
	}
	if err := db.ReplaceConversation("me", "u1", fresh); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListConversation("me", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2 (wholesale replace)", len(msgs))
	}
	if msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Errorf("order = %s,%s, want m1,m2", msgs[0].ID, msgs[1].ID)
	}
}

func TestMarkMessagesRead(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertMessage(testMessage("m1", "u1", "me", "one", 1000)); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkMessagesRead([]string{"m1", "missing"}); err != nil {
		t.Fatal(err)
	}
	// Re-applying is a no-op.
	if err := db.MarkMessagesRead([]string{"m1"}); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListConversation("me", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if msgs[0].Status != StatusRead {
		t.Errorf("status = %q, want read", msgs[0].Status)
	}
}

func TestDeleteMessage(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertMessage(testMessage("m1", "me", "u1", "bye", 1000)); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteMessage("m1"); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteMessage("m1"); err != nil {
		t.Fatal(err) // repeat delete is a no-op
	}

	msgs, err := db.ListConversation("me", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages, want 0", len(msgs))
	}
}

func TestSearchMessages(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertMessage(testMessage("m1", "me", "u1", "hello world", 1000)); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(testMessage("m2", "me", "u1", "goodbye world", 2000)); err != nil {
		t.Fatal(err)
	}

	results, err := db.SearchMessages("hello", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Message.ID != "m1" {
		t.Errorf("id = %q, want m1", results[0].Message.ID)
	}

	// Scoped to a conversation the message is not part of.
	results, err = db.SearchMessages("hello", ConversationKey("me", "other"), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}
