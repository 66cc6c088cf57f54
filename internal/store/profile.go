package store

import (
	"database/sql"
	"strings"
)

// CreateProfile inserts a new profile row.
func (db *DB) CreateProfile(p *Profile) error {
	_, err := db.Exec(`
		INSERT INTO profiles (id, email, display_name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.DisplayName, p.PasswordHash, p.CreatedAt)
	return err
}

// GetProfile returns a profile by id, or nil when absent.
func (db *DB) GetProfile(id string) (*Profile, error) {
	var p Profile
	err := db.QueryRow(`
		SELECT id, email, display_name, password_hash, created_at
		FROM profiles WHERE id = ?`, id).
		Scan(&p.ID, &p.Email, &p.DisplayName, &p.PasswordHash, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProfileByEmail returns a profile by email, or nil when absent.
func (db *DB) GetProfileByEmail(email string) (*Profile, error) {
	var p Profile
	err := db.QueryRow(`
		SELECT id, email, display_name, password_hash, created_at
		FROM profiles WHERE email = ?`, email).
		Scan(&p.ID, &p.Email, &p.DisplayName, &p.PasswordHash, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProfileByDisplayName returns a profile by exact display name, or nil.
func (db *DB) GetProfileByDisplayName(name string) (*Profile, error) {
	var p Profile
	err := db.QueryRow(`
		SELECT id, email, display_name, password_hash, created_at
		FROM profiles WHERE display_name = ?`, name).
		Scan(&p.ID, &p.Email, &p.DisplayName, &p.PasswordHash, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// likeEscaper neutralizes LIKE metacharacters in user-typed queries so a
// search for "%" matches a literal percent sign, not every row.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchProfiles returns profiles whose display name contains the pattern,
// case-insensitive, excluding the given user id.
func (db *DB) SearchProfiles(pattern, excludeUserID string, limit int) ([]ProfileSuggestion, error) {
	if limit <= 0 {
		limit = 8
	}
	rows, err := db.Query(`
		SELECT id, display_name
		FROM profiles
		WHERE display_name LIKE '%' || ? || '%' ESCAPE '\' AND id != ?
		ORDER BY display_name
		LIMIT ?`, likeEscaper.Replace(pattern), excludeUserID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []ProfileSuggestion
	for rows.Next() {
		var s ProfileSuggestion
		if err := rows.Scan(&s.ID, &s.DisplayName); err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	return results, rows.Err()
}
