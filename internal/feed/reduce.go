// Package feed maintains live view state for an open conversation and for
// the sidebar conversation list by folding change-feed events into
// snapshots fetched from the store.
package feed

import (
	"slices"

	"github.com/fhuebner/plausch/internal/bus"
	"github.com/fhuebner/plausch/internal/store"
)

// ReduceMessages folds one change event into an ordered message sequence
// and returns the new sequence. The input is never mutated.
//
// Folding is idempotent: an insert for an id already present replaces the
// element instead of appending a duplicate, so an event replayed across
// the snapshot/subscribe boundary cannot double-render. Updates and
// deletes for absent ids are no-ops.
func ReduceMessages(msgs []store.Message, evt bus.Event) []store.Message {
	switch evt.Op {
	case bus.OpInserted, bus.OpUpdated:
		m, ok := evt.New.(store.Message)
		if !ok {
			return msgs
		}
		for i := range msgs {
			if msgs[i].ID == m.ID {
				out := slices.Clone(msgs)
				out[i] = m
				return out
			}
		}
		if evt.Op == bus.OpUpdated {
			return msgs
		}
		// Events arrive in commit order for a single conversation, so a
		// fresh insert goes at the end without re-sorting.
		out := make([]store.Message, 0, len(msgs)+1)
		out = append(out, msgs...)
		return append(out, m)
	case bus.OpDeleted:
		m, ok := evt.Old.(store.Message)
		if !ok {
			return msgs
		}
		return removeMessage(msgs, m.ID)
	default:
		return msgs
	}
}

func removeMessage(msgs []store.Message, id string) []store.Message {
	for i := range msgs {
		if msgs[i].ID == id {
			out := slices.Clone(msgs)
			return append(out[:i], out[i+1:]...)
		}
	}
	return msgs
}

// PrependConversation adds a conversation to the front of the list unless
// an entry with the same id is already present.
func PrependConversation(list []store.Conversation, conv store.Conversation) []store.Conversation {
	if ContainsConversation(list, conv.ID) {
		return list
	}
	out := make([]store.Conversation, 0, len(list)+1)
	out = append(out, conv)
	return append(out, list...)
}

// RemoveConversation removes the entry with the given id; removing an
// absent id leaves the list unchanged.
func RemoveConversation(list []store.Conversation, id string) []store.Conversation {
	for i := range list {
		if list[i].ID == id {
			out := slices.Clone(list)
			return append(out[:i], out[i+1:]...)
		}
	}
	return list
}

// ContainsConversation reports whether an entry with the id is present.
func ContainsConversation(list []store.Conversation, id string) bool {
	return slices.ContainsFunc(list, func(c store.Conversation) bool { return c.ID == id })
}
