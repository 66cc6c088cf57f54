package bus

import "time"

// Op is the kind of row change carried by an event.
type Op int

const (
	OpInserted Op = iota
	OpUpdated
	OpDeleted
)

// String returns the wire name of the operation.
func (o Op) String() string {
	switch o {
	case OpInserted:
		return "inserted"
	case OpUpdated:
		return "updated"
	case OpDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event represents a single row change published on the feed.
// New carries the row after an insert or update; Old carries the row
// (or at least its identifying fields) before a delete.
type Event struct {
	Table     string
	Op        Op
	Timestamp time.Time
	New       any
	Old       any
}
