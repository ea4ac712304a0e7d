package progresssync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/coursegate-backend/internal/clientsdk/api"
	"github.com/yungbote/coursegate-backend/internal/clientsdk/speculative"
	"github.com/yungbote/coursegate-backend/internal/clientsdk/store"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
)

// ErrMutationInFlight is returned when a call overlaps another request on
// the same ledger. The call is dropped without touching the network.
var ErrMutationInFlight = errors.New("progress mutation already in flight for this course")

const DefaultCelebrateThreshold = 5

type ProgressAPI interface {
	GetProgress(ctx context.Context, courseID uuid.UUID) (*api.Progress, error)
	CompleteVideo(ctx context.Context, courseID, videoID uuid.UUID, watchPercentage *float64) (*api.Progress, error)
	CompleteExam(ctx context.Context, courseID, examID uuid.UUID, score *float64, passed *bool) (*api.Progress, error)
	UncompleteVideo(ctx context.Context, courseID, videoID uuid.UUID) (*api.Progress, error)
	UncompleteExam(ctx context.Context, courseID, examID uuid.UUID) (*api.Progress, error)
}

type EnrollmentLister interface {
	ListEnrollments(ctx context.Context) (*api.Enrollments, error)
}

type Config struct {
	// CelebrateThreshold is the gain in percentage points that sets
	// MutationResult.Celebrate.
	CelebrateThreshold int
	// RequestTimeout bounds each server call.
	RequestTimeout time.Duration
	// Enrollments, when set, lets RefreshAll discover courses that were
	// never loaded.
	Enrollments EnrollmentLister
}

type MutationResult struct {
	Ledger             store.Ledger
	PreviousPercentage int
	ProgressPercentage int
	// GainedProgress is max(0, server - previous). A drop is not reported.
	GainedProgress int
	Celebrate      bool
}

// Engine keeps the client's shadow progress ledgers in a store and performs
// every network call that changes them.
type Engine struct {
	log   *logger.Logger
	api   ProgressAPI
	store *store.Store
	cfg   Config
	seq   atomic.Uint64
}

func NewEngine(log *logger.Logger, client ProgressAPI, st *store.Store, cfg Config) *Engine {
	if cfg.CelebrateThreshold <= 0 {
		cfg.CelebrateThreshold = DefaultCelebrateThreshold
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = api.DefaultTimeout
	}
	if st == nil {
		st = store.New()
	}
	return &Engine{log: log.With("component", "ProgressSyncEngine"), api: client, store: st, cfg: cfg}
}

func (e *Engine) Store() *store.Store { return e.store }

func (e *Engine) MarkVideoCompleted(ctx context.Context, courseID, videoID uuid.UUID, watchPercentage *float64) (*MutationResult, error) {
	return e.mutate(ctx, courseID, store.Video, videoID, true, func(ctx context.Context) (*api.Progress, error) {
		return e.api.CompleteVideo(ctx, courseID, videoID, watchPercentage)
	})
}

func (e *Engine) MarkExamCompleted(ctx context.Context, courseID, examID uuid.UUID, score *float64, passed *bool) (*MutationResult, error) {
	return e.mutate(ctx, courseID, store.Exam, examID, true, func(ctx context.Context) (*api.Progress, error) {
		return e.api.CompleteExam(ctx, courseID, examID, score, passed)
	})
}

func (e *Engine) UnmarkVideoCompleted(ctx context.Context, courseID, videoID uuid.UUID) (*MutationResult, error) {
	return e.mutate(ctx, courseID, store.Video, videoID, false, func(ctx context.Context) (*api.Progress, error) {
		return e.api.UncompleteVideo(ctx, courseID, videoID)
	})
}

func (e *Engine) UnmarkExamCompleted(ctx context.Context, courseID, examID uuid.UUID) (*MutationResult, error) {
	return e.mutate(ctx, courseID, store.Exam, examID, false, func(ctx context.Context) (*api.Progress, error) {
		return e.api.UncompleteExam(ctx, courseID, examID)
	})
}

func (e *Engine) mutate(
	ctx context.Context,
	courseID uuid.UUID,
	kind store.ItemKind,
	itemID uuid.UUID,
	completed bool,
	request func(ctx context.Context) (*api.Progress, error),
) (*MutationResult, error) {
	// The gain is measured against server state, so an unloaded ledger is
	// fetched before the optimistic flag goes in.
	if l, ok := e.store.State().Ledger(courseID); !ok || !l.Loaded {
		if _, err := e.Refresh(ctx, courseID); err != nil {
			if errors.Is(err, ErrMutationInFlight) {
				return nil, err
			}
			return nil, fmt.Errorf("%s %s %s: %w", verb(completed), kind, itemID, err)
		}
	}

	seq := e.seq.Add(1)
	var previous store.Ledger

	_, err := speculative.Execute(ctx, speculative.Op[*api.Progress]{
		Apply: func() error {
			prev, next := e.store.Transition(store.BeginMutation{
				CourseID: courseID, Kind: kind, ItemID: itemID, Completed: completed, Seq: seq,
			})
			if l, _ := next.Ledger(courseID); !l.Updating || l.Seq != seq {
				return ErrMutationInFlight
			}
			if l, ok := prev.Ledger(courseID); ok {
				previous = l
			} else {
				previous = store.NewLedger(courseID)
			}
			return nil
		},
		Request: func(ctx context.Context) (*api.Progress, error) {
			ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
			defer cancel()
			return request(ctx)
		},
		Reconcile: func(p *api.Progress) {
			e.store.Dispatch(store.Reconcile{CourseID: courseID, Seq: seq, Progress: p})
		},
		Rollback: func(err error) {
			e.store.Dispatch(store.Restore{CourseID: courseID, Seq: seq, Previous: previous})
			e.log.Warn("Progress mutation rolled back",
				"course_id", courseID, "item_type", kind, "item_id", itemID, "completed", completed,
				"transient", api.IsTransient(err), "error", err)
		},
		Finally: func() {
			e.store.Dispatch(store.Release{CourseID: courseID, Seq: seq})
		},
	})
	if err != nil {
		if errors.Is(err, ErrMutationInFlight) {
			return nil, err
		}
		return nil, fmt.Errorf("%s %s %s: %w", verb(completed), kind, itemID, err)
	}

	l, _ := e.store.State().Ledger(courseID)
	gained := l.ProgressPercentage - previous.ProgressPercentage
	if gained < 0 {
		gained = 0
	}
	return &MutationResult{
		Ledger:             l,
		PreviousPercentage: previous.ProgressPercentage,
		ProgressPercentage: l.ProgressPercentage,
		GainedProgress:     gained,
		Celebrate:          gained >= e.cfg.CelebrateThreshold,
	}, nil
}

func verb(completed bool) string {
	if completed {
		return "complete"
	}
	return "uncomplete"
}

func (e *Engine) IsVideoCompleted(courseID, videoID uuid.UUID) bool {
	l, _ := e.store.State().Ledger(courseID)
	return l.Completed(store.Video, videoID)
}

func (e *Engine) IsExamCompleted(courseID, examID uuid.UUID) bool {
	l, _ := e.store.State().Ledger(courseID)
	return l.Completed(store.Exam, examID)
}

func (e *Engine) GetProgressPercentage(courseID uuid.UUID) int {
	l, _ := e.store.State().Ledger(courseID)
	return l.ProgressPercentage
}

func (e *Engine) Snapshot(courseID uuid.UUID) (store.Ledger, bool) {
	l, ok := e.store.State().Ledger(courseID)
	if !ok {
		return store.Ledger{}, false
	}
	return l.Clone(), true
}

// Load returns the cached ledger, fetching it on first use.
func (e *Engine) Load(ctx context.Context, courseID uuid.UUID) (store.Ledger, error) {
	if l, ok := e.store.State().Ledger(courseID); ok && l.Loaded {
		return l.Clone(), nil
	}
	return e.Refresh(ctx, courseID)
}

// Refresh replaces the ledger with the server's canonical snapshot. A
// response that lost to a newer request is discarded. A failed first load
// leaves no ledger behind.
func (e *Engine) Refresh(ctx context.Context, courseID uuid.UUID) (store.Ledger, error) {
	seq := e.seq.Add(1)
	prev, next := e.store.Transition(store.BeginRefresh{CourseID: courseID, Seq: seq})
	if l, _ := next.Ledger(courseID); l.Seq != seq {
		return l.Clone(), ErrMutationInFlight
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	p, err := e.api.GetProgress(reqCtx, courseID)
	cancel()
	if err != nil {
		if _, existed := prev.Ledger(courseID); !existed {
			e.store.Dispatch(store.Forget{CourseID: courseID, Seq: seq})
		}
		l, _ := e.store.State().Ledger(courseID)
		return l.Clone(), fmt.Errorf("refresh progress %s: %w", courseID, err)
	}
	st := e.store.Dispatch(store.Reconcile{CourseID: courseID, Seq: seq, Progress: p})
	l, _ := st.Ledger(courseID)
	return l.Clone(), nil
}

// RefreshAll is the reconciliation sweep: every loaded ledger plus every
// accessible enrollment is refreshed. It is idempotent and safe to call
// redundantly; ledgers with a mutation in flight are skipped.
func (e *Engine) RefreshAll(ctx context.Context) error {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	add := func(id uuid.UUID) {
		if id != uuid.Nil && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	var errs []error
	if e.cfg.Enrollments != nil {
		reqCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
		out, err := e.cfg.Enrollments.ListEnrollments(reqCtx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("list enrollments: %w", err))
		} else {
			for _, en := range out.Enrollments {
				if en.CanAccess {
					add(en.CourseID)
				}
			}
		}
	}
	for _, id := range e.store.State().CourseIDs() {
		add(id)
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := e.Refresh(ctx, id); err != nil && !errors.Is(err, ErrMutationInFlight) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		e.log.Warn("Reconciliation sweep incomplete", "courses", len(ids), "failures", len(errs))
	}
	return errors.Join(errs...)
}
