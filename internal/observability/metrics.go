package observability

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/coursegate-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests   *Family
	apiLatency    *HistogramVec
	apiInflight   *Family
	proofSubmits  *Family
	proofDecision *Family
	progressMuts  *Family
	sseDelivered  *Family
	notifyFailed  *Family
	pgStats       *Family
	redisUp       *Family
	redisPing     *Family
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Current returns the process-wide registry, or nil when metrics are off.
// Every method is nil-safe so call sites need no guard.
func Current() *Metrics {
	return instance
}

func Init(enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() { instance = NewMetrics() })
	return instance
}

// NewMetrics builds an unregistered registry; tests use it directly.
func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("cg_api_requests_total", "API requests by method/route/status.", "method", "route", "status"),
		apiLatency: NewHistogramVec("cg_api_request_duration_seconds", "API request latency in seconds.",
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}, "method", "route"),
		apiInflight:   NewGaugeVec("cg_api_inflight_requests", "In-flight API requests."),
		proofSubmits:  NewCounterVec("cg_payment_proof_submissions_total", "Payment proof submissions by result.", "result"),
		proofDecision: NewCounterVec("cg_payment_proof_decisions_total", "Approve/reject attempts by action and outcome.", "action", "outcome"),
		progressMuts:  NewCounterVec("cg_progress_mutations_total", "Progress mutations by kind and whether they changed state.", "kind", "effective"),
		sseDelivered:  NewCounterVec("cg_sse_messages_total", "SSE messages by event and delivery result.", "event", "result"),
		notifyFailed:  NewCounterVec("cg_notification_failures_total", "Best-effort notification failures by channel.", "channel"),
		pgStats:       NewGaugeVec("cg_postgres_pool", "database/sql pool stats.", "stat"),
		redisUp:       NewGaugeVec("cg_redis_up", "1 when the last redis ping succeeded."),
		redisPing:     NewGaugeVec("cg_redis_ping_seconds", "Last redis ping latency in seconds."),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	type writer interface{ WritePrometheus(io.Writer) error }
	for _, f := range []writer{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.proofSubmits, m.proofDecision, m.progressMuts,
		m.sseDelivered, m.notifyFailed,
		m.pgStats, m.redisUp, m.redisPing,
	} {
		if err := f.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflightInc() {
	if m != nil {
		m.apiInflight.Add(1)
	}
}

func (m *Metrics) APIInflightDec() {
	if m != nil {
		m.apiInflight.Add(-1)
	}
}

func (m *Metrics) IncProofSubmission(result string) {
	if m != nil {
		m.proofSubmits.Inc(result)
	}
}

// IncProofDecision records an approve/reject attempt; outcome is "ok",
// "already_processed", "not_found" or "error".
func (m *Metrics) IncProofDecision(action, outcome string) {
	if m != nil {
		m.proofDecision.Inc(action, outcome)
	}
}

func (m *Metrics) IncProgressMutation(kind string, effective bool) {
	if m == nil {
		return
	}
	eff := "false"
	if effective {
		eff = "true"
	}
	m.progressMuts.Inc(kind, eff)
}

// ObserveSSE records one broadcast; delivered is the number of local
// sessions the message reached.
func (m *Metrics) ObserveSSE(event string, delivered int) {
	if m == nil {
		return
	}
	if delivered > 0 {
		m.sseDelivered.Inc(event, "delivered")
		return
	}
	m.sseDelivered.Inc(event, "no_subscriber")
}

func (m *Metrics) IncNotificationFailure(channel string) {
	if m != nil {
		m.notifyFailed.Inc(channel)
	}
}

// StartServer exposes /metrics on a dedicated listener until ctx is done.
func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil || addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err, "addr", addr)
		}
	}()
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("metrics: postgres pool unavailable", "error", err)
		return
	}
	go every(ctx, interval, func() {
		stats := sqlDB.Stats()
		m.pgStats.Set(float64(stats.OpenConnections), "open")
		m.pgStats.Set(float64(stats.InUse), "in_use")
		m.pgStats.Set(float64(stats.Idle), "idle")
		m.pgStats.Set(float64(stats.WaitCount), "wait_count")
		m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_seconds")
	})
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient, interval time.Duration) {
	if m == nil || rdb == nil {
		return
	}
	go every(ctx, interval, func() {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err != nil {
			m.redisUp.Set(0)
			log.Warn("metrics: redis ping failed", "error", err)
			return
		}
		m.redisUp.Set(1)
		m.redisPing.Set(time.Since(start).Seconds())
	})
}

func every(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
