package store

import (
	"maps"

	"github.com/google/uuid"
)

type ItemKind string

const (
	Video ItemKind = "video"
	Exam  ItemKind = "exam"
)

// Ledger is the client's shadow copy of one (student, course) progress
// record.
type Ledger struct {
	CourseID           uuid.UUID
	Videos             map[uuid.UUID]bool
	Exams              map[uuid.UUID]bool
	CompletedItems     int
	TotalItems         int
	ProgressPercentage int
	// Version is the last server version applied. A fresh server record is
	// also at 0, so Loaded tells the two apart.
	Version int64
	// Loaded is set once a canonical snapshot has been applied.
	Loaded bool
	// Seq is the latest request sequence issued for this ledger.
	Seq uint64
	// Updating is the per-ledger in-flight mutation guard.
	Updating bool
}

func NewLedger(courseID uuid.UUID) Ledger {
	return Ledger{CourseID: courseID, Videos: map[uuid.UUID]bool{}, Exams: map[uuid.UUID]bool{}}
}

// Clone deep-copies the item sets so a reducer never aliases prior state.
func (l Ledger) Clone() Ledger {
	out := l
	out.Videos = maps.Clone(l.Videos)
	out.Exams = maps.Clone(l.Exams)
	if out.Videos == nil {
		out.Videos = map[uuid.UUID]bool{}
	}
	if out.Exams == nil {
		out.Exams = map[uuid.UUID]bool{}
	}
	return out
}

func (l Ledger) items(kind ItemKind) map[uuid.UUID]bool {
	if kind == Exam {
		return l.Exams
	}
	return l.Videos
}

func (l Ledger) Completed(kind ItemKind, itemID uuid.UUID) bool {
	return l.items(kind)[itemID]
}

// Equal compares every field, item sets included.
func (l Ledger) Equal(o Ledger) bool {
	return l.CourseID == o.CourseID &&
		maps.Equal(l.Videos, o.Videos) &&
		maps.Equal(l.Exams, o.Exams) &&
		l.CompletedItems == o.CompletedItems &&
		l.TotalItems == o.TotalItems &&
		l.ProgressPercentage == o.ProgressPercentage &&
		l.Version == o.Version &&
		l.Loaded == o.Loaded &&
		l.Seq == o.Seq &&
		l.Updating == o.Updating
}

// State holds every ledger the client has loaded. It is treated as
// immutable: Reduce returns a new value.
type State struct {
	Ledgers map[uuid.UUID]Ledger
}

func (s State) Ledger(courseID uuid.UUID) (Ledger, bool) {
	l, ok := s.Ledgers[courseID]
	return l, ok
}

func (s State) CourseIDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s.Ledgers))
	for id := range s.Ledgers {
		out = append(out, id)
	}
	return out
}

func (s State) with(l Ledger) State {
	next := State{Ledgers: make(map[uuid.UUID]Ledger, len(s.Ledgers)+1)}
	for id, v := range s.Ledgers {
		next.Ledgers[id] = v
	}
	next.Ledgers[l.CourseID] = l
	return next
}

func (s State) without(courseID uuid.UUID) State {
	next := State{Ledgers: make(map[uuid.UUID]Ledger, len(s.Ledgers))}
	for id, v := range s.Ledgers {
		if id != courseID {
			next.Ledgers[id] = v
		}
	}
	return next
}
