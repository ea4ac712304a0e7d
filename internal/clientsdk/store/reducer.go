package store

import (
	"github.com/google/uuid"

	"github.com/yungbote/coursegate-backend/internal/clientsdk/api"
)

type Action interface{ courseID() uuid.UUID }

// BeginMutation takes the in-flight guard and applies the optimistic flag.
// It is a no-op when the ledger is already updating.
type BeginMutation struct {
	CourseID  uuid.UUID
	Kind      ItemKind
	ItemID    uuid.UUID
	Completed bool
	Seq       uint64
}

// BeginRefresh issues a new sequence for a read. It is a no-op while a
// mutation is in flight.
type BeginRefresh struct {
	CourseID uuid.UUID
	Seq      uint64
}

// Reconcile applies a canonical server snapshot. Responses to superseded
// sequences and snapshots older than the applied version are discarded.
type Reconcile struct {
	CourseID uuid.UUID
	Seq      uint64
	Progress *api.Progress
}

// Restore puts back the exact pre-mutation ledger.
type Restore struct {
	CourseID uuid.UUID
	Seq      uint64
	Previous Ledger
}

// Forget drops a ledger that a failed first load left behind. It never
// removes a loaded or updating ledger.
type Forget struct {
	CourseID uuid.UUID
	Seq      uint64
}

// Release clears the in-flight guard taken by the mutation with Seq.
type Release struct {
	CourseID uuid.UUID
	Seq      uint64
}

func (a BeginMutation) courseID() uuid.UUID { return a.CourseID }
func (a BeginRefresh) courseID() uuid.UUID  { return a.CourseID }
func (a Reconcile) courseID() uuid.UUID     { return a.CourseID }
func (a Restore) courseID() uuid.UUID       { return a.CourseID }
func (a Release) courseID() uuid.UUID       { return a.CourseID }
func (a Forget) courseID() uuid.UUID        { return a.CourseID }

// Reduce is the pure transition function of the progress store.
func Reduce(s State, a Action) State {
	cur, exists := s.Ledgers[a.courseID()]
	if !exists {
		cur = NewLedger(a.courseID())
	}

	switch a := a.(type) {
	case BeginMutation:
		if cur.Updating {
			return s
		}
		next := cur.Clone()
		next.Updating = true
		next.Seq = a.Seq
		items := next.items(a.Kind)
		if a.Completed {
			items[a.ItemID] = true
		} else {
			delete(items, a.ItemID)
		}
		return s.with(next)

	case BeginRefresh:
		if cur.Updating {
			return s
		}
		next := cur.Clone()
		next.Seq = a.Seq
		return s.with(next)

	case Reconcile:
		if !exists || a.Progress == nil || a.Seq != cur.Seq || a.Progress.Version < cur.Version {
			return s
		}
		next := cur.Clone()
		next.Videos = toSet(a.Progress.CompletedVideos)
		next.Exams = toSet(a.Progress.CompletedExams)
		next.CompletedItems = a.Progress.CompletedItems
		next.TotalItems = a.Progress.TotalItems
		next.ProgressPercentage = a.Progress.ProgressPercentage
		next.Version = a.Progress.Version
		next.Loaded = true
		return s.with(next)

	case Restore:
		if !exists || a.Seq != cur.Seq {
			return s
		}
		return s.with(a.Previous.Clone())

	case Release:
		if !exists || !cur.Updating || a.Seq != cur.Seq {
			return s
		}
		next := cur.Clone()
		next.Updating = false
		return s.with(next)

	case Forget:
		if !exists || cur.Loaded || cur.Updating || a.Seq != cur.Seq {
			return s
		}
		return s.without(a.CourseID)
	}
	return s
}

func toSet(ids []uuid.UUID) map[uuid.UUID]bool {
	out := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
