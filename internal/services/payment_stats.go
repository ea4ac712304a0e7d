package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/coursegate-backend/internal/data/repos"
	types "github.com/yungbote/coursegate-backend/internal/domain"
	"github.com/yungbote/coursegate-backend/internal/platform/apierr"
	"github.com/yungbote/coursegate-backend/internal/platform/dbctx"
)

type StatisticsPeriod string

const (
	PeriodDay   StatisticsPeriod = "day"
	PeriodWeek  StatisticsPeriod = "week"
	PeriodMonth StatisticsPeriod = "month"
	PeriodYear  StatisticsPeriod = "year"
	PeriodAll   StatisticsPeriod = "all"
)

const dateLayout = "2006-01-02"

func ParseStatisticsPeriod(raw string) (StatisticsPeriod, error) {
	switch p := StatisticsPeriod(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return PeriodMonth, nil
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear, PeriodAll:
		return p, nil
	default:
		return "", apierr.NewValidationError(apierr.FieldError{Field: "period", Message: "period must be one of day, week, month, year, all"})
	}
}

// Since returns the inclusive UTC lower bound of the window ending at now,
// or nil for PeriodAll. Windows are whole days: "week" is today and the six
// days before it.
func (p StatisticsPeriod) Since(now time.Time) *time.Time {
	today := startOfDay(now)
	var since time.Time
	switch p {
	case PeriodDay:
		since = today
	case PeriodWeek:
		since = today.AddDate(0, 0, -6)
	case PeriodMonth:
		since = today.AddDate(0, 0, -29)
	case PeriodYear:
		since = today.AddDate(0, 0, -364)
	default:
		return nil
	}
	return &since
}

type StatisticsFilter struct {
	Period StatisticsPeriod
	Now    time.Time
}

type StatusTotals struct {
	Count  int64   `json:"count"`
	Amount float64 `json:"amount"`
}

type DailyPoint struct {
	Date           string  `json:"date"`
	Total          int64   `json:"total"`
	Pending        int64   `json:"pending"`
	Approved       int64   `json:"approved"`
	Rejected       int64   `json:"rejected"`
	ApprovedAmount float64 `json:"approvedAmount"`
}

type PaymentStatistics struct {
	Period  StatisticsPeriod                     `json:"period"`
	Since   *time.Time                           `json:"since,omitempty"`
	Until   time.Time                            `json:"until"`
	Totals  map[types.PaymentStatus]StatusTotals `json:"totals"`
	Overall StatusTotals                         `json:"overall"`
	Daily   []DailyPoint                         `json:"daily"`
}

func (s *paymentProofService) Statistics(ctx context.Context, filter StatisticsFilter) (*PaymentStatistics, error) {
	period, err := ParseStatisticsPeriod(string(filter.Period))
	if err != nil {
		return nil, err
	}
	now := filter.Now
	if now.IsZero() {
		now = s.now()
	}
	now = now.UTC()
	since := period.Since(now)

	dbc := dbctx.Context{Ctx: ctx}
	totals, err := s.proofs.TotalsByStatus(dbc, since)
	if err != nil {
		return nil, fmt.Errorf("payment totals: %w", err)
	}
	points, err := s.proofs.ListPointsSince(dbc, since)
	if err != nil {
		return nil, fmt.Errorf("payment series: %w", err)
	}
	return BuildPaymentStatistics(period, since, now, totals, points), nil
}

// BuildPaymentStatistics folds per-status totals and raw points into the
// response. Every day in [since, now] gets a bucket, empty or not; with no
// lower bound the series starts at the earliest point.
func BuildPaymentStatistics(period StatisticsPeriod, since *time.Time, now time.Time, totals []repos.PaymentProofStatusTotal, points []repos.PaymentProofPoint) *PaymentStatistics {
	out := &PaymentStatistics{
		Period: period,
		Since:  since,
		Until:  now,
		Totals: map[types.PaymentStatus]StatusTotals{
			types.PaymentPending:  {},
			types.PaymentApproved: {},
			types.PaymentRejected: {},
		},
		Daily: []DailyPoint{},
	}
	for _, t := range totals {
		if !t.Status.Valid() {
			continue
		}
		out.Totals[t.Status] = StatusTotals{Count: t.Count, Amount: t.Amount}
		out.Overall.Count += t.Count
		out.Overall.Amount += t.Amount
	}

	var start time.Time
	switch {
	case since != nil:
		start = startOfDay(*since)
	case len(points) > 0:
		start = startOfDay(points[0].CreatedAt)
		for _, p := range points[1:] {
			if d := startOfDay(p.CreatedAt); d.Before(start) {
				start = d
			}
		}
	default:
		return out
	}
	end := startOfDay(now)

	index := map[string]int{}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		index[d.Format(dateLayout)] = len(out.Daily)
		out.Daily = append(out.Daily, DailyPoint{Date: d.Format(dateLayout)})
	}
	for _, p := range points {
		i, ok := index[p.CreatedAt.UTC().Format(dateLayout)]
		if !ok {
			continue
		}
		bucket := &out.Daily[i]
		bucket.Total++
		switch p.Status {
		case types.PaymentPending:
			bucket.Pending++
		case types.PaymentApproved:
			bucket.Approved++
			bucket.ApprovedAmount += p.Amount
		case types.PaymentRejected:
			bucket.Rejected++
		}
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
