package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// UpsertContact inserts or updates a cached contact (idempotent on id).
func (db *DB) UpsertContact(u *User) error {
	lastMsg, err := marshalLastMessage(u.LastMessage)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = db.Exec(`
		INSERT INTO contacts (id, email, first_name, last_name, bio, avatar, muted, notification_sound, sending_sound, last_message, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			bio = excluded.bio,
			avatar = excluded.avatar,
			muted = excluded.muted,
			notification_sound = excluded.notification_sound,
			sending_sound = excluded.sending_sound,
			last_message = excluded.last_message,
			updated_at = excluded.updated_at`,
		u.ID, u.Email, u.FirstName, u.LastName, u.Bio, u.Avatar, u.Muted,
		u.NotificationSound, u.SendingSound, lastMsg, now)
	return err
}

// BulkUpsertContacts replaces the cached contact set in a single transaction.
func (db *DB) BulkUpsertContacts(users []User) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, u := range users {
		lastMsg, err := marshalLastMessage(u.LastMessage)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`
			INSERT INTO contacts (id, email, first_name, last_name, bio, avatar, muted, notification_sound, sending_sound, last_message, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				email = excluded.email,
				first_name = excluded.first_name,
				last_name = excluded.last_name,
				bio = excluded.bio,
				avatar = excluded.avatar,
				muted = excluded.muted,
				notification_sound = excluded.notification_sound,
				sending_sound = excluded.sending_sound,
				last_message = excluded.last_message,
				updated_at = excluded.updated_at`,
			u.ID, u.Email, u.FirstName, u.LastName, u.Bio, u.Avatar, u.Muted,
			u.NotificationSound, u.SendingSound, lastMsg, now); err != nil {
			return fmt.Errorf("upsert contact %q: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

// SetContactLastMessage updates only the denormalized last-message column.
// A nil message clears it.
func (db *DB) SetContactLastMessage(contactID string, m *Message) error {
	lastMsg, err := marshalLastMessage(m)
	if err != nil {
		return err
	}
	_, err = db.Exec(`UPDATE contacts SET last_message = ?, updated_at = ? WHERE id = ?`,
		lastMsg, time.Now().UnixMilli(), contactID)
	return err
}

// ListContacts returns all cached contacts. Display order is computed in
// memory from each contact's last message, never persisted here.
func (db *DB) ListContacts() ([]User, error) {
	rows, err := db.Query(`
		SELECT id, email, first_name, last_name, bio, avatar, muted, notification_sound, sending_sound, last_message
		FROM contacts`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []User
	for rows.Next() {
		var u User
		var lastMsg string
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Bio, &u.Avatar,
			&u.Muted, &u.NotificationSound, &u.SendingSound, &lastMsg); err != nil {
			return nil, err
		}
		if u.LastMessage, err = unmarshalLastMessage(lastMsg); err != nil {
			return nil, fmt.Errorf("contact %q last message: %w", u.ID, err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetContact returns a cached contact by id, or nil when absent.
func (db *DB) GetContact(id string) (*User, error) {
	var u User
	var lastMsg string
	err := db.QueryRow(`
		SELECT id, email, first_name, last_name, bio, avatar, muted, notification_sound, sending_sound, last_message
		FROM contacts WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Bio, &u.Avatar,
			&u.Muted, &u.NotificationSound, &u.SendingSound, &lastMsg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if u.LastMessage, err = unmarshalLastMessage(lastMsg); err != nil {
		return nil, err
	}
	return &u, nil
}

// ContactCount returns the number of cached contacts.
func (db *DB) ContactCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM contacts`).Scan(&count)
	return count, err
}

// MessageCount returns the number of cached messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

func marshalLastMessage(m *Message) (string, error) {
	if m == nil {
		return "", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal last message: %w", err)
	}
	return string(data), nil
}

func unmarshalLastMessage(data string) (*Message, error) {
	if data == "" {
		return nil, nil
	}
	var m Message
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, err
	}
	return &m, nil
}
