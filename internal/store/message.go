package store

// InsertMessage inserts a new message row.
func (db *DB) InsertMessage(m *Message) error {
	var edited, deleted, isRead any
	if m.EditedAt != 0 {
		edited = m.EditedAt
	}
	if m.DeletedAt != 0 {
		deleted = m.DeletedAt
	}
	isRead = m.IsRead
	_, err := db.Exec(`
		INSERT INTO messages (id, conversation_id, sender_id, content, created_at, edited_at, deleted_at, is_read)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.SenderID, m.Content, m.CreatedAt, edited, deleted, isRead)
	return err
}

// ListMessages returns the first page of a conversation's messages ordered
// by creation time ascending, ties broken by id.
func (db *DB) ListMessages(conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, conversation_id, sender_id, content, created_at,
		       COALESCE(edited_at, 0), COALESCE(deleted_at, 0), COALESCE(is_read, 0)
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content,
			&m.CreatedAt, &m.EditedAt, &m.DeletedAt, &m.IsRead); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
