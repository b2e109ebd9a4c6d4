package snapshot

import (
	"time"

	"github.com/okian/gradestats/internal/domain/model"
)

// Kind enumerates the persistence states of a selection key.
type Kind int

const (
	// NoSnapshot: nothing stored yet.
	NoSnapshot Kind = iota
	// TodaySnapshot: the latest snapshot was taken on the current calendar day.
	TodaySnapshot
	// HistoricalSnapshot: the latest snapshot belongs to an earlier day.
	HistoricalSnapshot
)

func (k Kind) String() string {
	switch k {
	case NoSnapshot:
		return "none"
	case TodaySnapshot:
		return "today"
	case HistoricalSnapshot:
		return "historical"
	default:
		return "unknown"
	}
}

// Action is what a rebuild does to the store.
type Action string

// Actions.
const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
)

// State is the snapshot history of one selection key as seen at a given instant.
type State struct {
	Kind     Kind
	Current  *model.Snapshot
	Previous *model.Snapshot
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// NewState classifies the two most recent snapshots of a key. The calendar
// day of the latest snapshot is the only thing that separates states.
func NewState(current, previous *model.Snapshot, now time.Time, loc *time.Location) State {
	switch {
	case current == nil:
		return State{Kind: NoSnapshot}
	case SameDay(current.Date, now, loc):
		return State{Kind: TodaySnapshot, Current: current, Previous: previous}
	default:
		return State{Kind: HistoricalSnapshot, Current: current, Previous: previous}
	}
}

// Apply returns the action and the record to write for next. An update
// keeps the identity and creation time of today's snapshot; an insert gets
// a fresh identity from newID.
func (s State) Apply(next model.Snapshot, now time.Time, newID func() string) (Action, model.Snapshot) {
	next.Date = now
	if s.Kind == TodaySnapshot {
		next.ID = s.Current.ID
		next.CreatedAt = s.Current.CreatedAt
		return ActionUpdate, next
	}
	next.ID = newID()
	next.CreatedAt = now
	return ActionInsert, next
}
