package store

import (
	"path/filepath"
	"testing"
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

func seedProfile(t *testing.T, db *DB, id, name string) {
	t.Helper()
	p := &Profile{ID: id, Email: id + "@example.com", DisplayName: name, PasswordHash: "x", CreatedAt: 1000}
	if err := db.CreateProfile(p); err != nil {
		t.Fatal(err)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so run it again to check idempotency.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestProfileCreateAndGet(t *testing.T) {
	db := testDB(t)
	seedProfile(t, db, "u1", "Alice")

	p, err := db.GetProfile("u1")
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.DisplayName != "Alice" {
		t.Errorf("got %v, want Alice", p)
	}

	p, err = db.GetProfileByEmail("u1@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.ID != "u1" {
		t.Errorf("got %v, want u1", p)
	}

	// Non-existent.
	p, err = db.GetProfile("missing")
	if err != nil {
		t.Fatal(err)
	}
	if p != nil {
		t.Error("expected nil for missing profile")
	}
}

func TestProfileEmailUnique(t *testing.T) {
	db := testDB(t)
	seedProfile(t, db, "u1", "Alice")

	err := db.CreateProfile(&Profile{ID: "u2", Email: "u1@example.com", DisplayName: "Other", PasswordHash: "x", CreatedAt: 1})
	if err == nil {
		t.Fatal("duplicate email should fail")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}
}

func TestSearchProfiles(t *testing.T) {
	db := testDB(t)
	seedProfile(t, db, "u1", "Alice")
	seedProfile(t, db, "u2", "Alina")
	seedProfile(t, db, "u3", "Bob")

	results, err := db.SearchProfiles("ali", "u2", 10)
	if err != nil {
		t.Fatal(err)
	}
	// Case-insensitive match on Alice and Alina, minus the excluded user.
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].DisplayName != "Alice" {
		t.Errorf("display_name = %q, want Alice", results[0].DisplayName)
	}
}

func TestSearchProfilesEscapesWildcards(t *testing.T) {
	db := testDB(t)
	seedProfile(t, db, "u1", "Alice")
	seedProfile(t, db, "u2", "Bob")
	seedProfile(t, db, "u3", "100% Bot")
	seedProfile(t, db, "u4", "B_b")

	// A typed "%" matches only names containing a literal percent sign.
	results, err := db.SearchProfiles("%", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].DisplayName != "100% Bot" {
		t.Errorf("%% search = %v, want only the literal match", results)
	}

	// "_" must not act as a single-character wildcard: "B_b" would
	// otherwise match "Bob" too.
	results, err = db.SearchProfiles("B_b", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].DisplayName != "B_b" {
		t.Errorf("underscore search = %v, want only B_b", results)
	}
}

func TestMessagesOrderedWithIDTiebreak(t *testing.T) {
	db := testDB(t)
	seedProfile(t, db, "u1", "A")
	seedProfile(t, db, "u2", "B")
	conv := &Conversation{ID: "c1", CreatedAt: 1000}
	if err := db.CreateDirectConversation(conv, PairKey("u1", "u2"), "u1", "u2"); err != nil {
		t.Fatal(err)
	}

	// Two messages with the same timestamp, one later.
	for _, m := range []Message{
		{ID: "m-b", ConversationID: "c1", SenderID: "u1", Content: "second", CreatedAt: 100},
		{ID: "m-a", ConversationID: "c1", SenderID: "u2", Content: "first", CreatedAt: 100},
		{ID: "m-c", ConversationID: "c1", SenderID: "u1", Content: "third", CreatedAt: 200},
	} {
		if err := db.InsertMessage(&m); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := db.ListMessages("c1", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	wantOrder := []string{"m-a", "m-b", "m-c"}
	for i, want := range wantOrder {
		if msgs[i].ID != want {
			t.Errorf("msgs[%d].ID = %q, want %q", i, msgs[i].ID, want)
		}
	}
}

func TestListMessagesLimit(t *testing.T) {
	db := testDB(t)
	seedProfile(t, db, "u1", "A")
	seedProfile(t, db, "u2", "B")
	if err := db.CreateDirectConversation(&Conversation{ID: "c1", CreatedAt: 1}, PairKey("u1", "u2"), "u1", "u2"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 60; i++ {
		m := &Message{ID: "m" + string(rune('a'+i%26)) + string(rune('a'+i/26)), ConversationID: "c1", SenderID: "u1", Content: "x", CreatedAt: int64(i)}
		if err := db.InsertMessage(m); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := db.ListMessages("c1", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 50 {
		t.Errorf("got %d messages, want 50", len(msgs))
	}
	// Oldest first.
	if msgs[0].CreatedAt != 0 {
		t.Errorf("first message created_at = %d, want 0", msgs[0].CreatedAt)
	}
}

func TestDeleteConversationCascades(t *testing.T) {
	db := testDB(t)
	seedProfile(t, db, "u1", "A")
	seedProfile(t, db, "u2", "B")
	key := PairKey("u1", "u2")
	if err := db.CreateDirectConversation(&Conversation{ID: "c1", CreatedAt: 1}, key, "u1", "u2"); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertMessage(&Message{ID: "m1", ConversationID: "c1", SenderID: "u1", Content: "hi", CreatedAt: 1}); err != nil {
		t.Fatal(err)
	}

	deleted, err := db.DeleteConversation("c1")
	if err != nil {
		t.Fatal(err)
	}
	if !deleted {
		t.Fatal("expected delete to affect a row")
	}

	// Memberships, messages and the pairing must be gone.
	ok, err := db.HasMembership("c1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("membership survived conversation delete")
	}
	msgs, err := db.ListMessages("c1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages after delete, want 0", len(msgs))
	}
	convID, err := db.GetPairing(key)
	if err != nil {
		t.Fatal(err)
	}
	if convID != "" {
		t.Errorf("pairing survived conversation delete: %q", convID)
	}

	// Deleting again is a no-op.
	deleted, err = db.DeleteConversation("c1")
	if err != nil {
		t.Fatal(err)
	}
	if deleted {
		t.Error("second delete should affect no rows")
	}
}

func TestListConversationsNewestFirst(t *testing.T) {
	db := testDB(t)
	seedProfile(t, db, "u1", "A")
	seedProfile(t, db, "u2", "B")
	seedProfile(t, db, "u3", "C")

	if err := db.CreateDirectConversation(&Conversation{ID: "c-old", CreatedAt: 100}, PairKey("u1", "u2"), "u1", "u2"); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateDirectConversation(&Conversation{ID: "c-new", CreatedAt: 200}, PairKey("u1", "u3"), "u1", "u3"); err != nil {
		t.Fatal(err)
	}

	convs, err := db.ListConversations("u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].ID != "c-new" || convs[1].ID != "c-old" {
		t.Errorf("order = [%s, %s], want [c-new, c-old]", convs[0].ID, convs[1].ID)
	}

	// u3 only sees their own conversation.
	convs, err = db.ListConversations("u3")
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 || convs[0].ID != "c-new" {
		t.Errorf("u3 conversations = %v, want [c-new]", convs)
	}
}
