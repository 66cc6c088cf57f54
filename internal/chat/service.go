// Package chat orchestrates conversation, message and profile operations
// against the store and publishes the matching change-feed events.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fhuebner/plausch/internal/bus"
	"github.com/fhuebner/plausch/internal/store"
	"github.com/fhuebner/plausch/pkg/metrics"
)

// Service is the write boundary for conversations and messages. All
// mutations go through it so every committed write is followed by exactly
// one change-feed event.
type Service struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
}

// NewService creates a new chat service.
func NewService(db *store.DB, b *bus.Bus, logger *zap.Logger) *Service {
	return &Service{db: db, bus: b, logger: logger}
}

// StartDirectConversation resolves the direct conversation for the given
// user pair, creating it exactly once. Repeat calls and calls from either
// side return the same conversation id.
func (s *Service) StartDirectConversation(_ context.Context, currentUserID, invitedUserID string) (string, error) {
	if invitedUserID == "" {
		return "", fmt.Errorf("%w: invited user id is empty", ErrValidation)
	}
	if invitedUserID == currentUserID {
		return "", fmt.Errorf("%w: cannot start a conversation with yourself", ErrValidation)
	}

	invited, err := s.db.GetProfile(invitedUserID)
	if err != nil {
		return "", fmt.Errorf("fetch invited profile: %w", err)
	}
	if invited == nil {
		return "", fmt.Errorf("%w: no such user", ErrNotFound)
	}

	key := store.PairKey(currentUserID, invitedUserID)
	if convID, err := s.db.GetPairing(key); err != nil {
		return "", fmt.Errorf("lookup pairing: %w", err)
	} else if convID != "" {
		return convID, nil
	}

	conv := &store.Conversation{
		ID:        uuid.NewString(),
		IsGroup:   false,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := s.db.CreateDirectConversation(conv, key, currentUserID, invitedUserID); err != nil {
		if store.IsUniqueViolation(err) {
			// The other participant won the race; their conversation is ours.
			convID, lookupErr := s.db.GetPairing(key)
			if lookupErr != nil || convID == "" {
				return "", fmt.Errorf("%w: %v", ErrPartialCreation, err)
			}
			s.logger.Info("pairing race resolved to existing conversation",
				zap.String("pair_key", key), zap.String("conversation_id", convID))
			return convID, nil
		}
		return "", fmt.Errorf("%w: %v", ErrPartialCreation, err)
	}

	metrics.ConversationsCreated.Inc()
	s.publish(bus.Event{Table: store.TableConversations, Op: bus.OpInserted, New: *conv})
	for _, userID := range []string{currentUserID, invitedUserID} {
		s.publish(bus.Event{Table: store.TableMembers, Op: bus.OpInserted, New: store.Membership{
			ConversationID: conv.ID,
			UserID:         userID,
			Role:           "member",
		}})
	}

	s.logger.Info("direct conversation created",
		zap.String("conversation_id", conv.ID), zap.String("pair_key", key))
	return conv.ID, nil
}

// SendMessage validates and stores a message, then publishes its insert
// event. The sender must be a member of the conversation.
func (s *Service) SendMessage(_ context.Context, conversationID, senderID, content string) (*store.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message content is empty", ErrValidation)
	}
	ok, err := s.db.HasMembership(conversationID, senderID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: conversation", ErrNotFound)
	}

	msg := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now().UnixMilli(),
	}
	if err := s.db.InsertMessage(msg); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	metrics.MessagesSent.Inc()
	s.publish(bus.Event{Table: store.TableMessages, Op: bus.OpInserted, New: *msg})
	return msg, nil
}

// DeleteConversation removes a conversation on behalf of one of its
// members and publishes the delete event.
func (s *Service) DeleteConversation(_ context.Context, userID, conversationID string) error {
	ok, err := s.db.HasMembership(conversationID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: conversation", ErrNotFound)
	}

	conv, err := s.db.GetConversation(conversationID)
	if err != nil {
		return fmt.Errorf("fetch conversation: %w", err)
	}
	deleted, err := s.db.DeleteConversation(conversationID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w: conversation", ErrNotFound)
	}

	s.publish(bus.Event{Table: store.TableConversations, Op: bus.OpDeleted, Old: *conv})
	s.logger.Info("conversation deleted", zap.String("conversation_id", conversationID))
	return nil
}

// Messages returns the initial snapshot of a conversation for one of its
// members: up to limit messages, oldest first.
func (s *Service) Messages(_ context.Context, conversationID, userID string, limit int) ([]store.Message, error) {
	ok, err := s.db.HasMembership(conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: conversation", ErrNotFound)
	}
	return s.db.ListMessages(conversationID, limit)
}

// Conversations returns the user's conversation list, newest first.
func (s *Service) Conversations(_ context.Context, userID string) ([]store.Conversation, error) {
	return s.db.ListConversations(userID)
}

// ConversationSummary returns a single conversation row, or nil when it
// no longer exists.
func (s *Service) ConversationSummary(_ context.Context, conversationID string) (*store.Conversation, error) {
	return s.db.GetConversation(conversationID)
}

// SearchProfiles returns display-name matches for the contact search box,
// excluding the searching user. Read failures degrade to empty results.
func (s *Service) SearchProfiles(_ context.Context, query, excludeUserID string, limit int) ([]store.ProfileSuggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	results, err := s.db.SearchProfiles(query, excludeUserID, limit)
	if err != nil {
		s.logger.Error("profile search failed", zap.Error(err), zap.String("query", query))
		return nil, nil
	}
	return results, nil
}

// UserIDByDisplayName resolves an exact display name to a user id.
func (s *Service) UserIDByDisplayName(_ context.Context, name string) (string, error) {
	p, err := s.db.GetProfileByDisplayName(strings.TrimSpace(name))
	if err != nil {
		return "", fmt.Errorf("lookup profile: %w", err)
	}
	if p == nil {
		return "", fmt.Errorf("%w: no such user", ErrNotFound)
	}
	return p.ID, nil
}

func (s *Service) publish(evt bus.Event) {
	evt.Timestamp = time.Now()
	s.bus.Publish(evt)
	metrics.FeedEventsPublished.WithLabelValues(evt.Table, evt.Op.String()).Inc()
}
