package store

import "time"

// SearchMessages performs a full-text search over cached message text.
func (db *DB) SearchMessages(query string, conversation string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT m.id, m.sender_id, m.receiver_id, m.text, m.image, m.reaction,
		       m.status, m.created_at, m.updated_at,
		       snippet(messages_fts, '<<', '>>', '...', -1, 32)
		FROM messages_fts f
		JOIN messages m ON m.rowid = f.docid
		WHERE messages_fts MATCH ?`

	args := []any{query}
	if conversation != "" {
		q += " AND m.conversation = ?"
		args = append(args, conversation)
	}
	q += " ORDER BY m.created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var senderID, receiverID string
		var createdAt, updatedAt int64
		if err := rows.Scan(
			&r.Message.ID, &senderID, &receiverID, &r.Message.Text, &r.Message.Image,
			&r.Message.Reaction, &r.Message.Status, &createdAt, &updatedAt, &r.Snippet,
		); err != nil {
			return nil, err
		}
		r.Message.Sender = User{ID: senderID}
		r.Message.Receiver = User{ID: receiverID}
		r.Message.CreatedAt = time.UnixMilli(createdAt)
		r.Message.UpdatedAt = time.UnixMilli(updatedAt)
		results = append(results, r)
	}
	return results, rows.Err()
}
