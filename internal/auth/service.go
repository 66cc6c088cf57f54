// Package auth covers account creation, password sign-in, and the JWT
// session tokens the HTTP and websocket layers verify.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fhuebner/plausch/internal/store"
)

var (
	// ErrValidation marks a request the caller can fix.
	ErrValidation = errors.New("validation failed")
	// ErrEmailTaken is returned when the email already has an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrDisplayNameTaken is returned when the display name is in use.
	// Display names are surfaced in search, so they stay unique.
	ErrDisplayNameTaken = errors.New("display name already taken")
	// ErrInvalidCredentials is deliberately generic: it never reveals
	// whether the email exists.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service implements sign-up, sign-in, and token verification.
type Service struct {
	db         *store.DB
	secret     []byte
	tokenTTL   time.Duration
	bcryptCost int
	logger     *zap.Logger
}

func NewService(db *store.DB, secret string, tokenTTL time.Duration, bcryptCost int, logger *zap.Logger) *Service {
	return &Service{
		db:         db,
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		bcryptCost: bcryptCost,
		logger:     logger.Named("auth"),
	}
}

// SignUp registers a new account and returns the profile with a fresh
// session token. The display name is checked before the email so the
// caller gets the most actionable error first.
func (s *Service) SignUp(_ context.Context, email, displayName, password string) (*store.Profile, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	displayName = strings.TrimSpace(displayName)

	if email == "" || displayName == "" || password == "" {
		return nil, "", fmt.Errorf("%w: email, display name, and password are required", ErrValidation)
	}

	if existing, err := s.db.GetProfileByDisplayName(displayName); err != nil {
		return nil, "", fmt.Errorf("check display name: %w", err)
	} else if existing != nil {
		return nil, "", ErrDisplayNameTaken
	}

	if existing, err := s.db.GetProfileByEmail(email); err != nil {
		return nil, "", fmt.Errorf("check email: %w", err)
	} else if existing != nil {
		return nil, "", ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	profile := &store.Profile{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UnixMilli(),
	}
	if err := s.db.CreateProfile(profile); err != nil {
		if store.IsUniqueViolation(err) {
			// Lost a race with a concurrent sign-up; report whichever
			// identifier the winner claimed.
			return nil, "", s.conflictError(displayName)
		}
		return nil, "", fmt.Errorf("create profile: %w", err)
	}

	token, err := s.issueToken(profile.ID)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("account created", zap.String("user_id", profile.ID))
	return profile, token, nil
}

// conflictError tells the two unique indexes apart after an insert race:
// if the display name is now taken that is the conflict to report,
// otherwise the winner claimed the email.
func (s *Service) conflictError(displayName string) error {
	if existing, err := s.db.GetProfileByDisplayName(displayName); err == nil && existing != nil {
		return ErrDisplayNameTaken
	}
	return ErrEmailTaken
}

// SignIn checks the password and returns the profile with a session
// token. All failure modes collapse into ErrInvalidCredentials.
func (s *Service) SignIn(_ context.Context, email, password string) (*store.Profile, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, "", ErrInvalidCredentials
	}

	profile, err := s.db.GetProfileByEmail(email)
	if err != nil {
		return nil, "", fmt.Errorf("lookup profile: %w", err)
	}
	if profile == nil {
		return nil, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(profile.ID)
	if err != nil {
		return nil, "", err
	}
	return profile, token, nil
}

func (s *Service) issueToken(userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(s.tokenTTL).Unix(),
		"jti": uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks the signature and expiry and returns the user id.
func (s *Service) VerifyToken(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidCredentials
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidCredentials
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidCredentials
	}
	return sub, nil
}
