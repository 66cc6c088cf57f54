package store

import "database/sql"

// GetConversation returns a conversation by id, or nil when absent.
func (db *DB) GetConversation(id string) (*Conversation, error) {
	var c Conversation
	var title sql.NullString
	err := db.QueryRow(`
		SELECT id, title, is_group, created_at
		FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &title, &c.IsGroup, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Title = title.String
	return &c, nil
}

// HasMembership reports whether the user is a member of the conversation.
func (db *DB) HasMembership(conversationID, userID string) (bool, error) {
	var one int
	err := db.QueryRow(`
		SELECT 1 FROM members WHERE conversation_id = ? AND user_id = ?`,
		conversationID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListConversations returns the conversations the user is a member of,
// newest first by conversation creation time.
func (db *DB) ListConversations(userID string) ([]Conversation, error) {
	rows, err := db.Query(`
		SELECT c.id, c.title, c.is_group, c.created_at
		FROM members m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.user_id = ?
		ORDER BY c.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		var title sql.NullString
		if err := rows.Scan(&c.ID, &title, &c.IsGroup, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Title = title.String
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// ListMembers returns the memberships of a conversation.
func (db *DB) ListMembers(conversationID string) ([]Membership, error) {
	rows, err := db.Query(`
		SELECT conversation_id, user_id, role, COALESCE(last_read_at, 0)
		FROM members WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var members []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.ConversationID, &m.UserID, &m.Role, &m.LastReadAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// DeleteConversation removes a conversation. Memberships, messages and the
// pairing row go with it via ON DELETE CASCADE. Returns false when no such
// conversation existed.
func (db *DB) DeleteConversation(id string) (bool, error) {
	res, err := db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
