package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fhuebner/plausch/internal/store"
)

func testService(t *testing.T) *Service {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	// bcrypt.MinCost keeps the hashing fast in tests.
	return NewService(db, "test-secret", time.Hour, 4, zap.NewNop())
}

func TestSignUpAndSignIn(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	profile, token, err := s.SignUp(ctx, "Alice@Example.com", "alice", "hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if profile.Email != "alice@example.com" {
		t.Errorf("email = %q, want lowercased", profile.Email)
	}
	if token == "" {
		t.Fatal("sign-up returned no token")
	}

	got, _, err := s.SignIn(ctx, "alice@example.com", "hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != profile.ID {
		t.Errorf("sign-in returned profile %s, want %s", got.ID, profile.ID)
	}
}

func TestSignUpMissingFields(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	cases := []struct{ email, name, password string }{
		{"", "alice", "pw"},
		{"a@example.com", "", "pw"},
		{"a@example.com", "alice", ""},
	}
	for _, tc := range cases {
		if _, _, err := s.SignUp(ctx, tc.email, tc.name, tc.password); !errors.Is(err, ErrValidation) {
			t.Errorf("SignUp(%q, %q, %q) err = %v, want validation error", tc.email, tc.name, tc.password, err)
		}
	}
}

func TestSignUpDisplayNameTaken(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	if _, _, err := s.SignUp(ctx, "one@example.com", "alice", "pw1"); err != nil {
		t.Fatal(err)
	}
	_, _, err := s.SignUp(ctx, "two@example.com", "alice", "pw2")
	if !errors.Is(err, ErrDisplayNameTaken) {
		t.Errorf("err = %v, want ErrDisplayNameTaken", err)
	}
}

func TestSignUpEmailTaken(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	if _, _, err := s.SignUp(ctx, "one@example.com", "alice", "pw1"); err != nil {
		t.Fatal(err)
	}
	_, _, err := s.SignUp(ctx, "one@example.com", "bob", "pw2")
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("err = %v, want ErrEmailTaken", err)
	}
}

func TestConflictErrorDistinguishesIndexes(t *testing.T) {
	s := testService(t)

	// The winning concurrent sign-up claimed this display name.
	seed := &store.Profile{ID: "u1", Email: "winner@example.com", DisplayName: "alice", PasswordHash: "x", CreatedAt: 1000}
	if err := s.db.CreateProfile(seed); err != nil {
		t.Fatal(err)
	}

	if err := s.conflictError("alice"); !errors.Is(err, ErrDisplayNameTaken) {
		t.Errorf("display-name conflict err = %v, want ErrDisplayNameTaken", err)
	}
	// The name is free, so the collision must have been on the email.
	if err := s.conflictError("bob"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("email conflict err = %v, want ErrEmailTaken", err)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	if _, _, err := s.SignUp(ctx, "a@example.com", "alice", "correct"); err != nil {
		t.Fatal(err)
	}

	_, _, err := s.SignIn(ctx, "a@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}

	// Unknown email yields the same error as a wrong password.
	_, _, err = s.SignIn(ctx, "nobody@example.com", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email err = %v, want ErrInvalidCredentials", err)
	}
}

func TestVerifyToken(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	profile, token, err := s.SignUp(ctx, "a@example.com", "alice", "pw")
	if err != nil {
		t.Fatal(err)
	}

	userID, err := s.VerifyToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if userID != profile.ID {
		t.Errorf("VerifyToken = %s, want %s", userID, profile.ID)
	}

	if _, err := s.VerifyToken("not-a-token"); err == nil {
		t.Error("garbage token verified")
	}
	if _, err := s.VerifyToken(""); err == nil {
		t.Error("empty token verified")
	}
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	s := testService(t)
	other := NewService(s.db, "other-secret", time.Hour, 4, zap.NewNop())
	ctx := context.Background()

	_, token, err := s.SignUp(ctx, "a@example.com", "alice", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.VerifyToken(token); err == nil {
		t.Error("token signed with a different secret verified")
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := NewService(db, "test-secret", -time.Minute, 4, zap.NewNop())
	_, token, err := s.SignUp(context.Background(), "a@example.com", "alice", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.VerifyToken(token); err == nil {
		t.Error("expired token verified")
	}
}
