package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fhuebner/plausch/internal/bus"
	"github.com/fhuebner/plausch/internal/store"
)

func testService(t *testing.T) (*Service, *bus.Bus, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	return NewService(db, b, zap.NewNop()), b, db
}

func seedProfile(t *testing.T, db *store.DB, id, name string) {
	t.Helper()
	p := &store.Profile{ID: id, Email: id + "@example.com", DisplayName: name, PasswordHash: "x", CreatedAt: 1000}
	if err := db.CreateProfile(p); err != nil {
		t.Fatal(err)
	}
}

func collect(t *testing.T, ch <-chan bus.Event, n int) []bus.Event {
	t.Helper()
	events := make([]bus.Event, 0, n)
	for len(events) < n {
		select {
		case evt := <-ch:
			events = append(events, evt)
		case <-time.After(time.Second):
			t.Fatalf("timeout: got %d of %d events", len(events), n)
		}
	}
	return events
}

func TestStartDirectConversationPublishesEvents(t *testing.T) {
	s, b, db := testService(t)
	seedProfile(t, db, "u1", "alice")
	seedProfile(t, db, "u2", "bob")

	convCh, unsubConv := b.Subscribe(store.TableConversations, nil, 8)
	defer unsubConv()
	memberCh, unsubMembers := b.Subscribe(store.TableMembers, nil, 8)
	defer unsubMembers()

	convID, err := s.StartDirectConversation(context.Background(), "u1", "u2")
	if err != nil {
		t.Fatal(err)
	}

	convEvents := collect(t, convCh, 1)
	if convEvents[0].Op != bus.OpInserted || convEvents[0].New.(store.Conversation).ID != convID {
		t.Errorf("conversation event = %+v", convEvents[0])
	}

	memberEvents := collect(t, memberCh, 2)
	seen := map[string]bool{}
	for _, evt := range memberEvents {
		m := evt.New.(store.Membership)
		if m.ConversationID != convID {
			t.Errorf("membership for %s, want %s", m.ConversationID, convID)
		}
		seen[m.UserID] = true
	}
	if !seen["u1"] || !seen["u2"] {
		t.Errorf("membership events for %v, want both participants", seen)
	}
}

func TestStartDirectConversationIdempotentNoEvents(t *testing.T) {
	s, b, db := testService(t)
	seedProfile(t, db, "u1", "alice")
	seedProfile(t, db, "u2", "bob")
	ctx := context.Background()

	first, err := s.StartDirectConversation(ctx, "u1", "u2")
	if err != nil {
		t.Fatal(err)
	}

	convCh, unsub := b.Subscribe(store.TableConversations, nil, 8)
	defer unsub()

	// Repeat call, and the same pair seen from the other side.
	second, err := s.StartDirectConversation(ctx, "u1", "u2")
	if err != nil {
		t.Fatal(err)
	}
	third, err := s.StartDirectConversation(ctx, "u2", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if second != first || third != first {
		t.Errorf("ids = %s, %s, %s, want all equal", first, second, third)
	}

	select {
	case evt := <-convCh:
		t.Errorf("idempotent call published %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStartDirectConversationConcurrentResolve(t *testing.T) {
	s, _, db := testService(t)
	ctx := context.Background()

	// Both participants resolve the same fresh pair at once; the loser
	// of the pair-key race must land on the winner's conversation.
	for i := 0; i < 20; i++ {
		a := fmt.Sprintf("race-a-%d", i)
		b := fmt.Sprintf("race-b-%d", i)
		seedProfile(t, db, a, "user-"+a)
		seedProfile(t, db, b, "user-"+b)

		var wg sync.WaitGroup
		ids := make([]string, 2)
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			ids[0], errs[0] = s.StartDirectConversation(ctx, a, b)
		}()
		go func() {
			defer wg.Done()
			ids[1], errs[1] = s.StartDirectConversation(ctx, b, a)
		}()
		wg.Wait()

		if errs[0] != nil || errs[1] != nil {
			t.Fatalf("iteration %d: errors %v, %v", i, errs[0], errs[1])
		}
		if ids[0] != ids[1] {
			t.Fatalf("iteration %d: ids %s and %s, want equal", i, ids[0], ids[1])
		}

		var count int
		if err := db.QueryRow(`
			SELECT COUNT(*) FROM direct_pairings WHERE pair_key = ?`,
			store.PairKey(a, b)).Scan(&count); err != nil {
			t.Fatal(err)
		}
		if count != 1 {
			t.Fatalf("iteration %d: %d pairing rows, want 1", i, count)
		}
		if err := db.QueryRow(`
			SELECT COUNT(*) FROM conversations WHERE id = ?`, ids[0]).Scan(&count); err != nil {
			t.Fatal(err)
		}
		if count != 1 {
			t.Fatalf("iteration %d: %d conversation rows for %s, want 1", i, count, ids[0])
		}
	}
}

func TestStartDirectConversationValidation(t *testing.T) {
	s, _, db := testService(t)
	seedProfile(t, db, "u1", "alice")
	ctx := context.Background()

	if _, err := s.StartDirectConversation(ctx, "u1", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("empty invitee err = %v", err)
	}
	if _, err := s.StartDirectConversation(ctx, "u1", "u1"); !errors.Is(err, ErrValidation) {
		t.Errorf("self invite err = %v", err)
	}
	if _, err := s.StartDirectConversation(ctx, "u1", "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown invitee err = %v", err)
	}
}

func TestSendMessagePublishesInsert(t *testing.T) {
	s, b, db := testService(t)
	seedProfile(t, db, "u1", "alice")
	seedProfile(t, db, "u2", "bob")
	ctx := context.Background()

	convID, err := s.StartDirectConversation(ctx, "u1", "u2")
	if err != nil {
		t.Fatal(err)
	}

	msgCh, unsub := b.Subscribe(store.TableMessages, nil, 8)
	defer unsub()

	msg, err := s.SendMessage(ctx, convID, "u1", "hello")
	if err != nil {
		t.Fatal(err)
	}

	events := collect(t, msgCh, 1)
	got := events[0].New.(store.Message)
	if events[0].Op != bus.OpInserted || got.ID != msg.ID || got.Content != "hello" {
		t.Errorf("message event = %+v", events[0])
	}
}

func TestSendMessageRejected(t *testing.T) {
	s, _, db := testService(t)
	seedProfile(t, db, "u1", "alice")
	seedProfile(t, db, "u2", "bob")
	seedProfile(t, db, "u3", "eve")
	ctx := context.Background()

	convID, err := s.StartDirectConversation(ctx, "u1", "u2")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.SendMessage(ctx, convID, "u1", "   "); !errors.Is(err, ErrValidation) {
		t.Errorf("blank content err = %v", err)
	}
	if _, err := s.SendMessage(ctx, convID, "u3", "hi"); !errors.Is(err, ErrNotFound) {
		t.Errorf("non-member err = %v", err)
	}
}

func TestDeleteConversationPublishesDelete(t *testing.T) {
	s, b, db := testService(t)
	seedProfile(t, db, "u1", "alice")
	seedProfile(t, db, "u2", "bob")
	ctx := context.Background()

	convID, err := s.StartDirectConversation(ctx, "u1", "u2")
	if err != nil {
		t.Fatal(err)
	}

	convCh, unsub := b.Subscribe(store.TableConversations, nil, 8)
	defer unsub()

	if err := s.DeleteConversation(ctx, "u2", convID); err != nil {
		t.Fatal(err)
	}

	events := collect(t, convCh, 1)
	if events[0].Op != bus.OpDeleted || events[0].Old.(store.Conversation).ID != convID {
		t.Errorf("delete event = %+v", events[0])
	}

	// Repeat delete and outsider delete both fail the same way.
	if err := s.DeleteConversation(ctx, "u2", convID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestSearchProfilesSwallowsEmptyQuery(t *testing.T) {
	s, _, db := testService(t)
	seedProfile(t, db, "u1", "alice")
	seedProfile(t, db, "u2", "bob")
	ctx := context.Background()

	results, err := s.SearchProfiles(ctx, "  ", "u1", 8)
	if err != nil || results != nil {
		t.Errorf("blank query = (%v, %v), want (nil, nil)", results, err)
	}

	results, err = s.SearchProfiles(ctx, "BO", "u1", 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].DisplayName != "bob" {
		t.Errorf("results = %v, want bob", results)
	}
}

func TestUserIDByDisplayName(t *testing.T) {
	s, _, db := testService(t)
	seedProfile(t, db, "u1", "alice")
	ctx := context.Background()

	id, err := s.UserIDByDisplayName(ctx, " alice ")
	if err != nil || id != "u1" {
		t.Errorf("lookup = (%s, %v), want (u1, nil)", id, err)
	}
	if _, err := s.UserIDByDisplayName(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown name err = %v", err)
	}
}
