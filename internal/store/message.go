package store

import (
	"fmt"
	"time"
)

// UpsertMessage inserts or updates a cached message (idempotent on id).
func (db *DB) UpsertMessage(m *Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (id, conversation, sender_id, receiver_id, text, image, reaction, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			reaction = excluded.reaction,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		m.ID, ConversationKey(m.Sender.ID, m.Receiver.ID), m.Sender.ID, m.Receiver.ID,
		m.Text, m.Image, m.Reaction, m.Status, m.CreatedAt.UnixMilli(), m.UpdatedAt.UnixMilli())
	return err
}

// ReplaceConversation swaps the cached history for one conversation with
// the server-supplied list, in a single transaction.
func (db *DB) ReplaceConversation(userID, contactID string, msgs []Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	key := ConversationKey(userID, contactID)
	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation = ?`, key); err != nil {
		return fmt.Errorf("clear conversation: %w", err)
	}
	for _, m := range msgs {
		if _, err := tx.Exec(`
			INSERT INTO messages (id, conversation, sender_id, receiver_id, text, image, reaction, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				text = excluded.text,
				reaction = excluded.reaction,
				status = excluded.status,
				updated_at = excluded.updated_at`,
			m.ID, key, m.Sender.ID, m.Receiver.ID,
			m.Text, m.Image, m.Reaction, m.Status, m.CreatedAt.UnixMilli(), m.UpdatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("insert message %q: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// DeleteMessage removes a cached message by id. Missing ids are a no-op.
func (db *DB) DeleteMessage(id string) error {
	_, err := db.Exec(`DELETE FROM messages WHERE id = ?`, id)
	return err
}

// MarkMessagesRead flips the cached status to read for every given id.
// Re-applying for an already-read message changes nothing.
func (db *DB) MarkMessagesRead(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.Exec(`UPDATE messages SET status = ? WHERE id = ?`, StatusRead, id); err != nil {
			return fmt.Errorf("mark read %q: %w", id, err)
		}
	}
	return tx.Commit()
}

// ListConversation returns the cached history between two users in
// chronological order. Participants are rehydrated as bare ids.
func (db *DB) ListConversation(userID, contactID string) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, sender_id, receiver_id, text, image, reaction, status, created_at, updated_at
		FROM messages
		WHERE conversation = ?
		ORDER BY created_at ASC`, ConversationKey(userID, contactID))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		var senderID, receiverID string
		var createdAt, updatedAt int64
		if err := rows.Scan(&m.ID, &senderID, &receiverID, &m.Text, &m.Image,
			&m.Reaction, &m.Status, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		m.Sender = User{ID: senderID}
		m.Receiver = User{ID: receiverID}
		m.CreatedAt = time.UnixMilli(createdAt)
		m.UpdatedAt = time.UnixMilli(updatedAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
