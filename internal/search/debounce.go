// Package search coalesces rapid query keystrokes into a single profile
// lookup and drops responses that arrive after a newer query was issued.
package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fhuebner/plausch/internal/store"
)

// Searcher executes a single profile search.
type Searcher interface {
	SearchProfiles(ctx context.Context, userID, query string) ([]store.ProfileSuggestion, error)
}

// Debouncer holds back a search until the query has been stable for the
// configured delay, then runs it. Every call to Query supersedes the
// previous one: the pending timer is reset, and any response still in
// flight for an older query is discarded when it lands.
type Debouncer struct {
	searcher Searcher
	delay    time.Duration
	logger   *zap.Logger

	// onResults receives the suggestions for the latest query. A nil
	// slice means "no results" (including the empty-query case).
	onResults func(results []store.ProfileSuggestion)

	mu       sync.Mutex
	userID   string
	seq      uint64
	timer    *timer
	newTimer func(d time.Duration, fn func()) *timer
}

type timer struct {
	t *time.Timer
}

func (t *timer) stop() {
	if t != nil && t.t != nil {
		t.t.Stop()
	}
}

func realTimer(d time.Duration, fn func()) *timer {
	return &timer{t: time.AfterFunc(d, fn)}
}

// NewDebouncer wires a debouncer for one user's search box.
func NewDebouncer(searcher Searcher, delay time.Duration, userID string, logger *zap.Logger) *Debouncer {
	return &Debouncer{
		searcher: searcher,
		delay:    delay,
		userID:   userID,
		logger:   logger,
		newTimer: realTimer,
	}
}

// SetOnResults registers the callback invoked with each applied result
// set. Must be set before the first Query.
func (d *Debouncer) SetOnResults(fn func(results []store.ProfileSuggestion)) {
	d.mu.Lock()
	d.onResults = fn
	d.mu.Unlock()
}

// Query records a keystroke. The search runs only after the query has
// been left alone for the debounce delay. A blank query clears the
// results immediately and never reaches the searcher, but still bumps
// the request id so an older in-flight response cannot resurface.
func (d *Debouncer) Query(ctx context.Context, query string) {
	d.mu.Lock()
	d.seq++
	id := d.seq
	d.timer.stop()
	d.timer = nil

	if strings.TrimSpace(query) == "" {
		fn := d.onResults
		d.mu.Unlock()
		if fn != nil {
			fn(nil)
		}
		return
	}

	d.timer = d.newTimer(d.delay, func() {
		d.run(ctx, id, query)
	})
	d.mu.Unlock()
}

func (d *Debouncer) run(ctx context.Context, id uint64, query string) {
	results, err := d.searcher.SearchProfiles(ctx, d.userID, query)
	if err != nil {
		d.logger.Warn("profile search failed", zap.String("query", query), zap.Error(err))
		results = nil
	}

	d.mu.Lock()
	if id != d.seq {
		// A newer query was issued while this one was in flight.
		d.mu.Unlock()
		return
	}
	fn := d.onResults
	d.mu.Unlock()

	if fn != nil {
		fn(results)
	}
}

// Stop cancels any pending search and suppresses in-flight responses.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.seq++
	d.timer.stop()
	d.timer = nil
	d.mu.Unlock()
}
