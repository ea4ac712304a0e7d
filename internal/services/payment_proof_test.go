package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/coursegate-backend/internal/data/repos"
	types "github.com/yungbote/coursegate-backend/internal/domain"
	"github.com/yungbote/coursegate-backend/internal/platform/apierr"
	"github.com/yungbote/coursegate-backend/internal/platform/dbctx"
	"github.com/yungbote/coursegate-backend/internal/realtime"
)

func fieldSet(err error) map[string]bool {
	var verr *apierr.ValidationError
	if !errors.As(err, &verr) {
		return nil
	}
	out := map[string]bool{}
	for _, f := range verr.Fields {
		out[f.Field] = true
	}
	return out
}

func TestSubmitStoresImageAndCreatesPendingProof(t *testing.T) {
	h := newHarness(t)
	course, _ := h.courses.seed("Physics", 2, 1)
	studentID := uuid.New()

	proof := h.submitPending(t, studentID, course.ID)
	if proof.Status != types.PaymentPending {
		t.Fatalf("status: want=pending got=%s", proof.Status)
	}
	wantPrefix := fmt.Sprintf("proofs/%s/%s.png", studentID, proof.ID)
	if proof.ProofImageKey != wantPrefix {
		t.Fatalf("image key: want=%s got=%s", wantPrefix, proof.ProofImageKey)
	}
	if proof.ProofContentType != "image/png" || len(proof.ProofDigest) != 64 {
		t.Fatalf("image info: content type=%s digest=%q", proof.ProofContentType, proof.ProofDigest)
	}
	keys, _ := h.store.ListKeys(context.Background(), "proofs/"+studentID.String())
	if len(keys) != 1 {
		t.Fatalf("stored objects: want=1 got=%d", len(keys))
	}
	if !strings.Contains(string(proof.Metadata), `"originalFilename":"receipt.png"`) {
		t.Fatalf("metadata: got %s", proof.Metadata)
	}
	if h.enrollments.count() != 0 {
		t.Fatalf("submit must not persist an enrollment record")
	}
}

func TestSubmitRejectsInvalidInputWithFieldErrors(t *testing.T) {
	h := newHarness(t)
	course, _ := h.courses.seed("Physics", 1, 0)

	in := validSubmit(t, uuid.New(), course.ID)
	in.Amount = 0
	in.SenderNumber = "+20 101 234 5678"
	in.ParentNumber = "12345"
	in.ProofImage.Data = []byte("GIF89a not really an image")

	_, err := h.payments.Submit(context.Background(), in)
	fields := fieldSet(err)
	for _, f := range []string{"amount", "senderNumber", "parentNumber", "proofImage"} {
		if !fields[f] {
			t.Fatalf("want field error on %s, got %v", f, err)
		}
	}
	if fields["studentNumber"] {
		t.Fatalf("studentNumber is valid, got %v", err)
	}
	if keys, _ := h.store.ListKeys(context.Background(), ""); len(keys) != 0 {
		t.Fatalf("invalid submit must not upload")
	}
}

func TestSubmitRejectsOversizedImage(t *testing.T) {
	h := newHarness(t)
	course, _ := h.courses.seed("Physics", 1, 0)
	in := validSubmit(t, uuid.New(), course.ID)
	in.ProofImage.Data = append(in.ProofImage.Data, make([]byte, DefaultMaxProofImageBytes)...)
	if fields := fieldSet(mustErr(h.payments.Submit(context.Background(), in))); !fields["proofImage"] {
		t.Fatalf("oversized image: want proofImage field error")
	}
}

func mustErr(_ *types.PaymentProof, err error) error { return err }

func TestSubmitUnknownCourseIsNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.payments.Submit(context.Background(), validSubmit(t, uuid.New(), uuid.New()))
	var nf *apierr.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "course" {
		t.Fatalf("want course NotFoundError got %v", err)
	}
}

func TestSubmitConflictsWithPendingOrApproved(t *testing.T) {
	h := newHarness(t)
	course, _ := h.courses.seed("Physics", 1, 0)
	studentID := uuid.New()
	proof := h.submitPending(t, studentID, course.ID)

	var ce *apierr.ConflictError
	if _, err := h.payments.Submit(context.Background(), validSubmit(t, studentID, course.ID)); !errors.As(err, &ce) || ce.Code != "pending_submission_exists" {
		t.Fatalf("second pending: want pending_submission_exists got %v", err)
	}
	if _, err := h.payments.Approve(context.Background(), proof.ID, uuid.New()); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := h.payments.Submit(context.Background(), validSubmit(t, studentID, course.ID)); !errors.As(err, &ce) || ce.Code != "already_enrolled" {
		t.Fatalf("after approval: want already_enrolled got %v", err)
	}
}

func TestSubmitDeletesUploadWhenInsertFails(t *testing.T) {
	h := newHarness(t)
	course, _ := h.courses.seed("Physics", 1, 0)
	h.proofs.failOn = "create"
	if _, err := h.payments.Submit(context.Background(), validSubmit(t, uuid.New(), course.ID)); err == nil {
		t.Fatalf("want insert error")
	}
	if keys, _ := h.store.ListKeys(context.Background(), "proofs/"); len(keys) != 0 {
		t.Fatalf("orphaned upload left behind: %v", keys)
	}
}

func TestApproveEnrollsGrantsAccessAndNotifies(t *testing.T) {
	h := newHarness(t)
	course, _ := h.courses.seed("Physics", 1, 0)
	student := h.users.seed("student@example.com", types.RoleStudent)
	adminID := uuid.New()
	proof := h.submitPending(t, student.ID, course.ID)

	got, err := h.payments.Approve(context.Background(), proof.ID, adminID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if got.Status != types.PaymentApproved || got.ApprovedBy == nil || *got.ApprovedBy != adminID || got.ApprovedAt == nil {
		t.Fatalf("approved proof: unexpected %+v", got)
	}
	rec, _ := h.enrollments.Get(dbctx.Context{}, student.ID, course.ID)
	if rec == nil || rec.PaymentStatus != types.PaymentApproved || rec.PaymentProofID == nil || *rec.PaymentProofID != proof.ID {
		t.Fatalf("enrollment: want approved record for proof got %+v", rec)
	}
	if ok, _ := h.allowed.Has(dbctx.Context{}, student.ID, course.ID); !ok {
		t.Fatalf("course must be in allowed set")
	}
	msgs := h.emitter.events(realtime.SSEEventCourseEnrolled)
	if len(msgs) != 1 || msgs[0].Channel != student.ID.String() {
		t.Fatalf("courseEnrolled: want one message to student got %+v", msgs)
	}
	data := msgs[0].Data.(map[string]any)
	if data["courseTitle"] != "Physics" {
		t.Fatalf("courseEnrolled data: got %+v", data)
	}
}

func TestApproveTwiceIsAlreadyProcessed(t *testing.T) {
	h := newHarness(t)
	course, _ := h.courses.seed("Physics", 1, 0)
	proof := h.submitPending(t, uuid.New(), course.ID)

	if _, err := h.payments.Approve(context.Background(), proof.ID, uuid.New()); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	_, err := h.payments.Approve(context.Background(), proof.ID, uuid.New())
	var ap *apierr.AlreadyProcessedError
	if !errors.As(err, &ap) || ap.Status != string(types.PaymentApproved) {
		t.Fatalf("second approve: want AlreadyProcessedError(approved) got %v", err)
	}
	_, err = h.payments.Reject(context.Background(), proof.ID, uuid.New(), "late")
	if !errors.As(err, &ap) {
		t.Fatalf("reject after approve: want AlreadyProcessedError got %v", err)
	}
	if n := len(h.emitter.events(realtime.SSEEventCourseEnrolled)); n != 1 {
		t.Fatalf("notifications: want=1 got=%d", n)
	}
	if h.enrollments.count() != 1 {
		t.Fatalf("enrollment rows: want=1 got=%d", h.enrollments.count())
	}
}

func TestApproveUnknownProofIsNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.payments.Approve(context.Background(), uuid.New(), uuid.New())
	var nf *apierr.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("want NotFoundError got %v", err)
	}
}

func TestConcurrentApproveAndRejectExactlyOneWins(t *testing.T) {
	for round := 0; round < 20; round++ {
		h := newHarness(t)
		course, _ := h.courses.seed("Physics", 1, 0)
		proof := h.submitPending(t, uuid.New(), course.ID)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() { defer wg.Done(); _, errs[0] = h.payments.Approve(context.Background(), proof.ID, uuid.New()) }()
		go func() { defer wg.Done(); _, errs[1] = h.payments.Reject(context.Background(), proof.ID, uuid.New(), "blurry") }()
		wg.Wait()

		wins := 0
		for _, err := range errs {
			var ap *apierr.AlreadyProcessedError
			switch {
			case err == nil:
				wins++
			case errors.As(err, &ap):
			default:
				t.Fatalf("round %d: unexpected error %v", round, err)
			}
		}
		if wins != 1 {
			t.Fatalf("round %d: want exactly one winner got %d", round, wins)
		}
		final, _ := h.proofs.GetByID(dbctx.Context{}, proof.ID)
		enrolled := h.enrollments.count() == 1
		if (final.Status == types.PaymentApproved) != enrolled {
			t.Fatalf("round %d: status=%s but enrolled=%v", round, final.Status, enrolled)
		}
	}
}

func TestRejectLeavesEnrollmentUntouchedAndNotifies(t *testing.T) {
	h := newHarness(t)
	course, _ := h.courses.seed("Physics", 1, 0)
	studentID := uuid.New()
	proof := h.submitPending(t, studentID, course.ID)

	got, err := h.payments.Reject(context.Background(), proof.ID, uuid.New(), "  amount mismatch ")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if got.Status != types.PaymentRejected || got.RejectionReason != "amount mismatch" || got.RejectedAt == nil {
		t.Fatalf("rejected proof: unexpected %+v", got)
	}
	if h.enrollments.count() != 0 {
		t.Fatalf("reject must not create enrollment")
	}
	if ok, _ := h.allowed.Has(dbctx.Context{}, studentID, course.ID); ok {
		t.Fatalf("reject must not grant access")
	}
	if n := len(h.emitter.events(realtime.SSEEventPaymentRejected)); n != 1 {
		t.Fatalf("paymentRejected: want=1 got=%d", n)
	}
	// A rejected student may submit again.
	h.submitPending(t, studentID, course.ID)
}

func TestApproveSucceedsWhenNotificationFails(t *testing.T) {
	h := newHarness(t)
	h.emitter.err = errors.New("redis down")
	course, _ := h.courses.seed("Physics", 1, 0)
	proof := h.submitPending(t, uuid.New(), course.ID)

	got, err := h.payments.Approve(context.Background(), proof.ID, uuid.New())
	if err != nil {
		t.Fatalf("Approve must not fail on notification error: %v", err)
	}
	if got.Status != types.PaymentApproved {
		t.Fatalf("status: want=approved got=%s", got.Status)
	}
}

func TestBulkApprovePreservesOrderAndReportsPerID(t *testing.T) {
	h := newHarness(t)
	course, _ := h.courses.seed("Physics", 1, 0)
	a := h.submitPending(t, uuid.New(), course.ID)
	b := h.submitPending(t, uuid.New(), course.ID)
	c := h.submitPending(t, uuid.New(), course.ID)
	if _, err := h.payments.Reject(context.Background(), b.ID, uuid.New(), "no"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	missing := uuid.New()

	res, err := h.payments.BulkApprove(context.Background(), []uuid.UUID{c.ID, b.ID, missing, a.ID, c.ID}, uuid.New())
	if err != nil {
		t.Fatalf("BulkApprove: %v", err)
	}
	if len(res.Approved) != 2 || res.Approved[0].ID != c.ID || res.Approved[1].ID != a.ID {
		t.Fatalf("approved: want [c a] got %+v", res.Approved)
	}
	if len(res.Errors) != 2 || res.Errors[0].ID != b.ID || res.Errors[1].ID != missing {
		t.Fatalf("errors: want [b missing] got %+v", res.Errors)
	}
	if res.Errors[0].Code != "already_processed" || res.Errors[0].Status != string(types.PaymentRejected) {
		t.Fatalf("b failure: got %+v", res.Errors[0])
	}
	if res.Errors[1].Code != "payment_proof_not_found" {
		t.Fatalf("missing failure: got %+v", res.Errors[1])
	}
	if n := len(h.emitter.events(realtime.SSEEventCourseEnrolled)); n != 2 {
		t.Fatalf("duplicate ids must collapse: want 2 notifications got %d", n)
	}
}

func TestBulkApproveRequiresIDs(t *testing.T) {
	h := newHarness(t)
	if _, err := h.payments.BulkApprove(context.Background(), []uuid.UUID{uuid.Nil}, uuid.New()); !fieldSet(err)["ids"] {
		t.Fatalf("want ids validation error got %v", err)
	}
}

func TestStatisticsTotalsAndDailySeries(t *testing.T) {
	h := newHarness(t)
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	seed := func(status types.PaymentStatus, amount float64, at time.Time) {
		_ = h.proofs.Create(dbctx.Context{}, &types.PaymentProof{
			ID: uuid.New(), StudentID: uuid.New(), CourseID: uuid.New(),
			Amount: amount, Status: status, CreatedAt: at,
		})
	}
	seed(types.PaymentApproved, 500, now.Add(-1*time.Hour))
	seed(types.PaymentPending, 300, now.Add(-2*time.Hour))
	seed(types.PaymentApproved, 200, now.AddDate(0, 0, -2))
	seed(types.PaymentRejected, 100, now.AddDate(0, 0, -3))
	seed(types.PaymentApproved, 900, now.AddDate(0, 0, -40))

	stats, err := h.payments.Statistics(context.Background(), StatisticsFilter{Period: PeriodWeek, Now: now})
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if got := stats.Totals[types.PaymentApproved]; got.Count != 2 || got.Amount != 700 {
		t.Fatalf("approved totals: want 2/700 got %+v", got)
	}
	if stats.Overall.Count != 4 {
		t.Fatalf("overall count: want=4 got=%d", stats.Overall.Count)
	}
	if len(stats.Daily) != 7 {
		t.Fatalf("daily buckets: want=7 got=%d", len(stats.Daily))
	}
	last := stats.Daily[6]
	if last.Date != "2026-03-10" || last.Total != 2 || last.Approved != 1 || last.Pending != 1 || last.ApprovedAmount != 500 {
		t.Fatalf("today bucket: got %+v", last)
	}
	if stats.Daily[3].Rejected != 1 || stats.Daily[4].Approved != 1 {
		t.Fatalf("earlier buckets: got %+v", stats.Daily)
	}

	all, err := h.payments.Statistics(context.Background(), StatisticsFilter{Period: PeriodAll, Now: now})
	if err != nil {
		t.Fatalf("Statistics(all): %v", err)
	}
	if all.Since != nil || all.Overall.Count != 5 || len(all.Daily) != 41 {
		t.Fatalf("all: since=%v count=%d days=%d", all.Since, all.Overall.Count, len(all.Daily))
	}

	if _, err := h.payments.Statistics(context.Background(), StatisticsFilter{Period: "decade"}); !fieldSet(err)["period"] {
		t.Fatalf("bad period: want validation error got %v", err)
	}
}

func TestListValidatesStatusAndProofImageURL(t *testing.T) {
	h := newHarness(t)
	course, _ := h.courses.seed("Physics", 1, 0)
	proof := h.submitPending(t, uuid.New(), course.ID)

	if _, _, err := h.payments.List(context.Background(), repoFilter("refunded")); !fieldSet(err)["status"] {
		t.Fatalf("bad status: want validation error got %v", err)
	}
	rows, total, err := h.payments.List(context.Background(), repoFilter(string(types.PaymentPending)))
	if err != nil || total != 1 || rows[0].ID != proof.ID {
		t.Fatalf("List pending: total=%d err=%v", total, err)
	}
	url, err := h.payments.ProofImageURL(context.Background(), proof.ID)
	if err != nil || !strings.HasSuffix(url, proof.ProofImageKey) {
		t.Fatalf("ProofImageURL: url=%s err=%v", url, err)
	}
}

func repoFilter(status string) repos.PaymentProofFilter {
	return repos.PaymentProofFilter{Status: types.PaymentStatus(status)}
}
