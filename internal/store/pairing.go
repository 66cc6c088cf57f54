package store

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// PairKey returns the deterministic key identifying an unordered user pair.
// The ids are ordered lexicographically before joining, so the key is
// identical regardless of who initiates.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "_" + b
}

// GetPairing returns the conversation id registered for a pair key, or ""
// when no pairing exists.
func (db *DB) GetPairing(pairKey string) (string, error) {
	var conversationID string
	err := db.QueryRow(`
		SELECT conversation_id FROM direct_pairings WHERE pair_key = ?`, pairKey).
		Scan(&conversationID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return conversationID, nil
}

// CreateDirectConversation creates the conversation row, the pairing row
// and one membership row per participant in a single transaction. The
// unique constraint on pair_key is the enforcement point against two
// conversations for the same pair; callers detect that case with
// IsUniqueViolation and re-fetch the winner's pairing.
func (db *DB) CreateDirectConversation(conv *Conversation, pairKey string, userA, userB string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var title any
	if conv.Title != "" {
		title = conv.Title
	}
	if _, err := tx.Exec(`
		INSERT INTO conversations (id, title, is_group, created_at)
		VALUES (?, ?, ?, ?)`,
		conv.ID, title, conv.IsGroup, conv.CreatedAt); err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO direct_pairings (pair_key, conversation_id)
		VALUES (?, ?)`, pairKey, conv.ID); err != nil {
		return fmt.Errorf("insert pairing: %w", err)
	}

	for _, userID := range []string{userA, userB} {
		if _, err := tx.Exec(`
			INSERT INTO members (conversation_id, user_id, role)
			VALUES (?, ?, 'member')`, conv.ID, userID); err != nil {
			return fmt.Errorf("insert membership: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a SQLite unique-constraint
// failure (including primary-key collisions).
func IsUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
