package feed

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fhuebner/plausch/internal/bus"
	"github.com/fhuebner/plausch/internal/store"
	"github.com/fhuebner/plausch/pkg/metrics"
)

// SummaryFetcher provides the sidebar's initial snapshot and the single-row
// fetch used when a membership event references an unknown conversation.
type SummaryFetcher interface {
	ListConversations(userID string) ([]store.Conversation, error)
	GetConversation(id string) (*store.Conversation, error)
}

// Deleter issues the server-side conversation delete.
type Deleter interface {
	DeleteConversation(ctx context.Context, userID, conversationID string) error
}

// DeleteState describes the lifecycle of an optimistic delete.
type DeleteState int

const (
	DeleteNone DeleteState = iota
	DeletePending
	DeleteCommitted
	DeleteFailed
)

type pendingDelete struct {
	conv  store.Conversation
	index int
}

// SidebarView holds the live conversation list for one user. It runs two
// subscriptions: membership inserts filtered to the user, and conversation
// deletes unfiltered (membership is checked locally against the list).
type SidebarView struct {
	db      SummaryFetcher
	bus     *bus.Bus
	deleter Deleter
	logger  *zap.Logger

	mu            sync.Mutex
	userID        string
	conversations []store.Conversation
	pending       map[string]pendingDelete
	states        map[string]DeleteState
	unsubMembers  func()
	unsubConvs    func()
	stop          chan struct{}
	onChange      func(list []store.Conversation)
}

// NewSidebarView creates a sidebar view.
func NewSidebarView(db SummaryFetcher, b *bus.Bus, deleter Deleter, logger *zap.Logger) *SidebarView {
	return &SidebarView{
		db:      db,
		bus:     b,
		deleter: deleter,
		logger:  logger,
		pending: make(map[string]pendingDelete),
		states:  make(map[string]DeleteState),
	}
}

// SetOnChange registers a callback invoked with the current list: once
// with the snapshot on Open, then after every change. Must be called
// before Open.
func (v *SidebarView) SetOnChange(fn func(list []store.Conversation)) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

// Open fetches the user's conversation list and starts both feeds. The
// snapshot notification fires before the drain starts, so the callback
// never observes a folded state earlier than the snapshot.
func (v *SidebarView) Open(userID string) error {
	v.Close()

	list, err := v.db.ListConversations(userID)
	if err != nil {
		return fmt.Errorf("fetch conversation list: %w", err)
	}

	memberFilter := func(evt bus.Event) bool {
		m, ok := evt.New.(store.Membership)
		return ok && m.UserID == userID
	}
	memberCh, unsubMembers := v.bus.Subscribe(store.TableMembers, memberFilter, 64)
	convCh, unsubConvs := v.bus.Subscribe(store.TableConversations, nil, 64)
	stop := make(chan struct{})

	v.mu.Lock()
	v.userID = userID
	v.conversations = list
	v.unsubMembers = unsubMembers
	v.unsubConvs = unsubConvs
	v.stop = stop
	v.mu.Unlock()
	v.notify()

	metrics.FeedSubscriptionsActive.Add(2)
	go v.drain(memberCh, convCh, stop)
	return nil
}

// Close tears down both subscriptions. Safe to call repeatedly.
func (v *SidebarView) Close() {
	v.mu.Lock()
	unsubMembers, unsubConvs, stop := v.unsubMembers, v.unsubConvs, v.stop
	v.unsubMembers, v.unsubConvs, v.stop = nil, nil, nil
	v.userID = ""
	v.mu.Unlock()

	if unsubMembers != nil {
		unsubMembers()
		unsubConvs()
		close(stop)
		metrics.FeedSubscriptionsActive.Sub(2)
	}
}

// Conversations returns a copy of the current list.
func (v *SidebarView) Conversations() []store.Conversation {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]store.Conversation, len(v.conversations))
	copy(out, v.conversations)
	return out
}

// DeleteConversation removes the entry locally, then issues the server
// delete. On failure the entry is re-inserted at its original position
// and the error is returned; the delete event later arriving on the feed
// folds as a no-op either way.
func (v *SidebarView) DeleteConversation(ctx context.Context, conversationID string) error {
	v.mu.Lock()
	userID := v.userID
	index := -1
	var entry store.Conversation
	for i := range v.conversations {
		if v.conversations[i].ID == conversationID {
			index = i
			entry = v.conversations[i]
			break
		}
	}
	if index >= 0 {
		v.conversations = RemoveConversation(v.conversations, conversationID)
		v.pending[conversationID] = pendingDelete{conv: entry, index: index}
	}
	v.states[conversationID] = DeletePending
	v.mu.Unlock()
	v.notify()

	err := v.deleter.DeleteConversation(ctx, userID, conversationID)

	v.mu.Lock()
	p, hadEntry := v.pending[conversationID]
	delete(v.pending, conversationID)
	if err != nil {
		v.states[conversationID] = DeleteFailed
		if hadEntry {
			// Replay the inverse: put the entry back where it was.
			v.conversations = insertConversationAt(v.conversations, p.conv, p.index)
		}
		v.mu.Unlock()
		v.notify()
		return err
	}
	v.states[conversationID] = DeleteCommitted
	v.mu.Unlock()
	return nil
}

// DeleteStateOf returns the optimistic-delete state for a conversation id.
func (v *SidebarView) DeleteStateOf(conversationID string) DeleteState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.states[conversationID]
}

func (v *SidebarView) drain(memberCh, convCh <-chan bus.Event, stop <-chan struct{}) {
	for {
		select {
		case evt := <-memberCh:
			v.foldMembership(evt)
		case evt := <-convCh:
			v.foldConversation(evt)
		case <-stop:
			return
		}
	}
}

func (v *SidebarView) foldMembership(evt bus.Event) {
	if evt.Op != bus.OpInserted {
		return
	}
	m, ok := evt.New.(store.Membership)
	if !ok {
		return
	}

	v.mu.Lock()
	known := ContainsConversation(v.conversations, m.ConversationID)
	v.mu.Unlock()
	if known {
		// Already reflected by the initial fetch or a self-originated
		// write; duplicate delivery is ignored.
		return
	}

	conv, err := v.db.GetConversation(m.ConversationID)
	if err != nil {
		v.logger.Error("sidebar summary prefetch failed",
			zap.Error(err), zap.String("conversation_id", m.ConversationID))
		return
	}
	if conv == nil {
		return
	}

	v.mu.Lock()
	v.conversations = PrependConversation(v.conversations, *conv)
	v.mu.Unlock()
	v.notify()
}

func (v *SidebarView) foldConversation(evt bus.Event) {
	if evt.Op != bus.OpDeleted {
		return
	}
	conv, ok := evt.Old.(store.Conversation)
	if !ok {
		return
	}

	v.mu.Lock()
	before := len(v.conversations)
	v.conversations = RemoveConversation(v.conversations, conv.ID)
	changed := len(v.conversations) != before
	// A confirmed optimistic delete already removed the entry; the feed
	// event is its no-op echo and the bookkeeping can go.
	delete(v.states, conv.ID)
	v.mu.Unlock()

	if changed {
		v.notify()
	}
}

func (v *SidebarView) notify() {
	v.mu.Lock()
	onChange := v.onChange
	out := make([]store.Conversation, len(v.conversations))
	copy(out, v.conversations)
	v.mu.Unlock()

	if onChange != nil {
		onChange(out)
	}
}

func insertConversationAt(list []store.Conversation, conv store.Conversation, index int) []store.Conversation {
	if ContainsConversation(list, conv.ID) {
		return list
	}
	if index > len(list) {
		index = len(list)
	}
	out := make([]store.Conversation, 0, len(list)+1)
	out = append(out, list[:index]...)
	out = append(out, conv)
	return append(out, list[index:]...)
}
