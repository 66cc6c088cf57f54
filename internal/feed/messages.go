package feed

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fhuebner/plausch/internal/bus"
	"github.com/fhuebner/plausch/internal/store"
	"github.com/fhuebner/plausch/pkg/metrics"
)

// MessageLister provides the initial message snapshot for a conversation.
type MessageLister interface {
	ListMessages(conversationID string, limit int) ([]store.Message, error)
}

// MessageView holds the live message sequence for one open conversation.
// Open fetches the snapshot and then subscribes to the conversation's
// change feed; incoming events are folded through ReduceMessages. Exactly
// one subscription is held at a time: opening a different conversation
// closes the previous subscription first.
type MessageView struct {
	db     MessageLister
	bus    *bus.Bus
	limit  int
	logger *zap.Logger

	mu             sync.Mutex
	conversationID string
	messages       []store.Message
	unsub          func()
	stop           chan struct{}
	onChange       func(msgs []store.Message)
}

// NewMessageView creates a message view. limit caps the initial snapshot.
func NewMessageView(db MessageLister, b *bus.Bus, limit int, logger *zap.Logger) *MessageView {
	return &MessageView{db: db, bus: b, limit: limit, logger: logger}
}

// SetOnChange registers a callback invoked with the current sequence: once
// with the snapshot when a conversation is opened, then after every folded
// event. Must be called before Open.
func (v *MessageView) SetOnChange(fn func(msgs []store.Message)) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

// Open loads the snapshot for a conversation and starts folding its feed.
// Any previous subscription is closed first so events tagged with the old
// conversation id can never reach the new state. The snapshot notification
// fires before the drain starts, so the callback never observes a folded
// state earlier than the snapshot.
func (v *MessageView) Open(conversationID string) error {
	v.Close()

	snapshot, err := v.db.ListMessages(conversationID, v.limit)
	if err != nil {
		return fmt.Errorf("fetch message snapshot: %w", err)
	}

	filter := func(evt bus.Event) bool {
		return messageConversationID(evt) == conversationID
	}
	ch, unsub := v.bus.Subscribe(store.TableMessages, filter, 256)
	stop := make(chan struct{})

	v.mu.Lock()
	v.conversationID = conversationID
	v.messages = snapshot
	v.unsub = unsub
	v.stop = stop
	onChange := v.onChange
	out := make([]store.Message, len(snapshot))
	copy(out, snapshot)
	v.mu.Unlock()

	if onChange != nil {
		onChange(out)
	}

	metrics.FeedSubscriptionsActive.Inc()
	go v.drain(ch, stop)
	return nil
}

// Close unsubscribes from the feed. Safe to call when not open, and safe
// to call more than once.
func (v *MessageView) Close() {
	v.mu.Lock()
	unsub, stop := v.unsub, v.stop
	v.unsub, v.stop = nil, nil
	v.conversationID = ""
	v.mu.Unlock()

	if unsub != nil {
		unsub()
		close(stop)
		metrics.FeedSubscriptionsActive.Dec()
	}
}

// ConversationID returns the id of the open conversation, or "".
func (v *MessageView) ConversationID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conversationID
}

// Messages returns a copy of the current folded sequence.
func (v *MessageView) Messages() []store.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]store.Message, len(v.messages))
	copy(out, v.messages)
	return out
}

func (v *MessageView) drain(ch <-chan bus.Event, stop <-chan struct{}) {
	for {
		select {
		case evt := <-ch:
			v.fold(evt)
		case <-stop:
			return
		}
	}
}

func (v *MessageView) fold(evt bus.Event) {
	v.mu.Lock()
	// Stragglers from a subscription being torn down carry the old
	// conversation id; never fold them into the new view.
	if messageConversationID(evt) != v.conversationID {
		v.mu.Unlock()
		return
	}
	v.messages = ReduceMessages(v.messages, evt)
	onChange := v.onChange
	out := make([]store.Message, len(v.messages))
	copy(out, v.messages)
	v.mu.Unlock()

	if onChange != nil {
		onChange(out)
	}
}

func messageConversationID(evt bus.Event) string {
	if m, ok := evt.New.(store.Message); ok {
		return m.ConversationID
	}
	if m, ok := evt.Old.(store.Message); ok {
		return m.ConversationID
	}
	return ""
}
