package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/yungbote/coursegate-backend/internal/clientsdk/store"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
)

const (
	EventCourseEnrolled  = "courseEnrolled"
	EventProgressChanged = "progressChanged"
	EventPaymentRejected = "paymentRejected"
)

// Event is one push message. Data is a cue only; handlers refetch.
type Event struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type StreamOpener interface {
	OpenEventStream(ctx context.Context) (io.ReadCloser, error)
}

type Refresher interface {
	Refresh(ctx context.Context, courseID uuid.UUID) (store.Ledger, error)
	RefreshAll(ctx context.Context) error
}

type Config struct {
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// SweepSchedule is a cron spec for the periodic reconciliation sweep.
	// Empty disables it.
	SweepSchedule string
	// OnEvent, when set, sees every decoded event after it was handled.
	OnEvent func(Event)
}

// Subscriber consumes the push channel and turns every cue into an
// authoritative refresh. A full sweep runs on each (re)connect and on the
// cron schedule, so missed events are recovered.
type Subscriber struct {
	log     *logger.Logger
	stream  StreamOpener
	refresh Refresher
	cfg     Config
	sweepMu sync.Mutex
}

func NewSubscriber(log *logger.Logger, stream StreamOpener, refresh Refresher, cfg Config) *Subscriber {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Subscriber{log: log.With("component", "NotifySubscriber"), stream: stream, refresh: refresh, cfg: cfg}
}

// Run blocks until ctx is done.
func (s *Subscriber) Run(ctx context.Context) error {
	if s.cfg.SweepSchedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(s.cfg.SweepSchedule, func() { s.Sweep(ctx, "schedule") }); err != nil {
			return err
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		body, err := s.stream.OpenEventStream(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := s.backoff(attempt)
			attempt++
			s.log.Warn("Event stream unavailable", "attempt", attempt, "retry_in", wait, "error", err)
			if !sleep(ctx, wait) {
				return ctx.Err()
			}
			continue
		}
		attempt = 0
		s.log.Info("Event stream connected")
		s.Sweep(ctx, "connect")

		err = s.consume(ctx, body)
		_ = body.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn("Event stream closed", "error", err)
		if !sleep(ctx, s.backoff(0)) {
			return ctx.Err()
		}
	}
}

// Sweep refreshes every ledger. Sweeps are serialized.
func (s *Subscriber) Sweep(ctx context.Context, reason string) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	if err := s.refresh.RefreshAll(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn("Reconciliation sweep failed", "reason", reason, "error", err)
	}
}

func (s *Subscriber) consume(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	var data strings.Builder
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				s.dispatch(ctx, data.String())
				data.Reset()
			}
		case strings.HasPrefix(line, ":"):
			// keepalive
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (s *Subscriber) dispatch(ctx context.Context, payload string) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil || ev.Event == "" {
		s.log.Warn("Dropping malformed event", "error", err)
		return
	}
	switch ev.Event {
	case EventProgressChanged:
		var cue struct {
			CourseID uuid.UUID `json:"courseId"`
		}
		if err := json.Unmarshal(ev.Data, &cue); err == nil && cue.CourseID != uuid.Nil {
			if _, err := s.refresh.Refresh(ctx, cue.CourseID); err != nil {
				s.log.Debug("Progress refresh skipped", "course_id", cue.CourseID, "error", err)
			}
			break
		}
		s.Sweep(ctx, ev.Event)
	case EventCourseEnrolled, EventPaymentRejected:
		s.Sweep(ctx, ev.Event)
	default:
		s.log.Debug("Ignoring event", "event", ev.Event)
	}
	if s.cfg.OnEvent != nil {
		s.cfg.OnEvent(ev)
	}
}

// backoff is exponential from MinBackoff, capped at MaxBackoff, with up to
// 20% jitter.
func (s *Subscriber) backoff(attempt int) time.Duration {
	d := s.cfg.MinBackoff
	for i := 0; i < attempt && d < s.cfg.MaxBackoff; i++ {
		d *= 2
	}
	if d > s.cfg.MaxBackoff {
		d = s.cfg.MaxBackoff
	}
	return d + time.Duration(rand.Int64N(int64(d)/5+1))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
