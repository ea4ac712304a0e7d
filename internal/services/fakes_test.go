package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/coursegate-backend/internal/data/repos"
	"github.com/yungbote/coursegate-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursegate-backend/internal/domain"
	"github.com/yungbote/coursegate-backend/internal/platform/dbctx"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
	"github.com/yungbote/coursegate-backend/internal/platform/validate"
	"github.com/yungbote/coursegate-backend/internal/realtime"
)

// In-memory repos. Each guards its state with a mutex so the conditional
// transition is atomic, as the SQL UPDATE ... WHERE status is.

type fakeProofRepo struct {
	mu     sync.Mutex
	rows   map[uuid.UUID]*types.PaymentProof
	seq    int
	failOn string
}

func newFakeProofRepo() *fakeProofRepo {
	return &fakeProofRepo{rows: map[uuid.UUID]*types.PaymentProof{}}
}

func (r *fakeProofRepo) Create(dbc dbctx.Context, p *types.PaymentProof) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == "create" {
		return fmt.Errorf("insert failed")
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		r.seq++
		p.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(r.seq) * time.Minute)
	}
	cp := *p
	r.rows[p.ID] = &cp
	return nil
}

func (r *fakeProofRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PaymentProof, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.rows[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeProofRepo) sorted() []*types.PaymentProof {
	out := make([]*types.PaymentProof, 0, len(r.rows))
	for _, p := range r.rows {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *fakeProofRepo) List(dbc dbctx.Context, f repos.PaymentProofFilter) ([]*types.PaymentProof, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.PaymentProof
	for _, p := range r.sorted() {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.StudentID != uuid.Nil && p.StudentID != f.StudentID {
			continue
		}
		if f.CourseID != uuid.Nil && p.CourseID != f.CourseID {
			continue
		}
		out = append(out, p)
	}
	total := int64(len(out))
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if f.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[f.Offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *fakeProofRepo) LatestForStudentCourse(dbc dbctx.Context, studentID, courseID uuid.UUID) (*types.PaymentProof, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.sorted() {
		if p.StudentID == studentID && p.CourseID == courseID {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakeProofRepo) HasPending(dbc dbctx.Context, studentID, courseID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if p.StudentID == studentID && p.CourseID == courseID && p.Status == types.PaymentPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeProofRepo) TransitionStatus(dbc dbctx.Context, id uuid.UUID, from, to types.PaymentStatus, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	for k, v := range updates {
		switch k {
		case "approved_by":
			id := v.(uuid.UUID)
			p.ApprovedBy = &id
		case "approved_at":
			t := v.(time.Time)
			p.ApprovedAt = &t
		case "rejected_by":
			id := v.(uuid.UUID)
			p.RejectedBy = &id
		case "rejected_at":
			t := v.(time.Time)
			p.RejectedAt = &t
		case "rejection_reason":
			p.RejectionReason = v.(string)
		}
	}
	return true, nil
}

func (r *fakeProofRepo) TotalsByStatus(dbc dbctx.Context, since *time.Time) ([]repos.PaymentProofStatusTotal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agg := map[types.PaymentStatus]*repos.PaymentProofStatusTotal{}
	for _, p := range r.rows {
		if since != nil && p.CreatedAt.Before(*since) {
			continue
		}
		t, ok := agg[p.Status]
		if !ok {
			t = &repos.PaymentProofStatusTotal{Status: p.Status}
			agg[p.Status] = t
		}
		t.Count++
		t.Amount += p.Amount
	}
	var out []repos.PaymentProofStatusTotal
	for _, t := range agg {
		out = append(out, *t)
	}
	return out, nil
}

func (r *fakeProofRepo) ListPointsSince(dbc dbctx.Context, since *time.Time) ([]repos.PaymentProofPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repos.PaymentProofPoint
	for _, p := range r.rows {
		if since != nil && p.CreatedAt.Before(*since) {
			continue
		}
		out = append(out, repos.PaymentProofPoint{Status: p.Status, Amount: p.Amount, CreatedAt: p.CreatedAt})
	}
	return out, nil
}

type fakeEnrollmentRepo struct {
	mu   sync.Mutex
	rows map[[2]uuid.UUID]*types.EnrollmentRecord
}

func newFakeEnrollmentRepo() *fakeEnrollmentRepo {
	return &fakeEnrollmentRepo{rows: map[[2]uuid.UUID]*types.EnrollmentRecord{}}
}

func (r *fakeEnrollmentRepo) Get(dbc dbctx.Context, userID, courseID uuid.UUID) (*types.EnrollmentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.rows[[2]uuid.UUID{userID, courseID}]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeEnrollmentRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.EnrollmentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.EnrollmentRecord
	for k, rec := range r.rows {
		if k[0] == userID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeEnrollmentRepo) Upsert(dbc dbctx.Context, rec *types.EnrollmentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]uuid.UUID{rec.UserID, rec.CourseID}
	if existing, ok := r.rows[key]; ok {
		existing.PaymentStatus = rec.PaymentStatus
		existing.PaymentProofID = rec.PaymentProofID
		existing.PaymentApprovedAt = rec.PaymentApprovedAt
		*rec = *existing
		return nil
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	cp := *rec
	r.rows[key] = &cp
	return nil
}

func (r *fakeEnrollmentRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type fakeAllowedRepo struct {
	mu  sync.Mutex
	set map[[2]uuid.UUID]bool
}

func newFakeAllowedRepo() *fakeAllowedRepo {
	return &fakeAllowedRepo{set: map[[2]uuid.UUID]bool{}}
}

func (r *fakeAllowedRepo) Add(dbc dbctx.Context, userID, courseID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]uuid.UUID{userID, courseID}
	if r.set[key] {
		return false, nil
	}
	r.set[key] = true
	return true, nil
}

func (r *fakeAllowedRepo) Has(dbc dbctx.Context, userID, courseID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set[[2]uuid.UUID{userID, courseID}], nil
}

func (r *fakeAllowedRepo) ListCourseIDs(dbc dbctx.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uuid.UUID
	for k := range r.set {
		if k[0] == userID {
			out = append(out, k[1])
		}
	}
	return out, nil
}

type fakeCourseRepo struct {
	mu       sync.Mutex
	courses  map[uuid.UUID]*types.Course
	outlines map[uuid.UUID]types.Outline
}

func newFakeCourseRepo() *fakeCourseRepo {
	return &fakeCourseRepo{courses: map[uuid.UUID]*types.Course{}, outlines: map[uuid.UUID]types.Outline{}}
}

// seed adds a course with the given number of videos and exams.
func (r *fakeCourseRepo) seed(title string, videos, exams int) (*types.Course, types.Outline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &types.Course{ID: uuid.New(), Title: title, Price: 500, Currency: "EGP"}
	o := types.Outline{CourseID: c.ID}
	for i := 0; i < videos; i++ {
		o.VideoIDs = append(o.VideoIDs, uuid.New())
	}
	for i := 0; i < exams; i++ {
		o.ExamIDs = append(o.ExamIDs, uuid.New())
	}
	r.courses[c.ID] = c
	r.outlines[c.ID] = o
	return c, o
}

func (r *fakeCourseRepo) Create(dbc dbctx.Context, courses []*types.Course) ([]*types.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range courses {
		r.courses[c.ID] = c
	}
	return courses, nil
}

func (r *fakeCourseRepo) CreateVideos(dbc dbctx.Context, videos []*types.CourseVideo) error { return nil }
func (r *fakeCourseRepo) CreateExams(dbc dbctx.Context, exams []*types.CourseExam) error    { return nil }

func (r *fakeCourseRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.courses[id], nil
}

func (r *fakeCourseRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Course
	for _, id := range ids {
		if c, ok := r.courses[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCourseRepo) GetOutline(dbc dbctx.Context, courseID uuid.UUID) (types.Outline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outlines[courseID], nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*types.User
}

func newFakeUserRepo() *fakeUserRepo { return &fakeUserRepo{users: map[uuid.UUID]*types.User{}} }

func (r *fakeUserRepo) seed(email string, role string) *types.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := &types.User{ID: uuid.New(), Email: email, FirstName: "Test", Role: role}
	r.users[u.ID] = u
	return u
}

func (r *fakeUserRepo) Create(dbc dbctx.Context, users []*types.User) ([]*types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range users {
		r.users[u.ID] = u
	}
	return users, nil
}

func (r *fakeUserRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id], nil
}

func (r *fakeUserRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) GetByEmail(dbc dbctx.Context, email string) (*types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, nil
}

type fakeRecordRepo struct {
	mu   sync.Mutex
	rows map[[2]uuid.UUID]*types.ProgressRecord
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{rows: map[[2]uuid.UUID]*types.ProgressRecord{}}
}

func (r *fakeRecordRepo) GetOrCreate(dbc dbctx.Context, userID, courseID uuid.UUID) (*types.ProgressRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]uuid.UUID{userID, courseID}
	rec, ok := r.rows[key]
	if !ok {
		now := time.Now().UTC()
		rec = &types.ProgressRecord{UserID: userID, CourseID: courseID, CreatedAt: now, UpdatedAt: now}
		r.rows[key] = rec
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeRecordRepo) SaveCounters(dbc dbctx.Context, rec *types.ProgressRecord, bump bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.rows[[2]uuid.UUID{rec.UserID, rec.CourseID}]
	stored.TotalItems = rec.TotalItems
	stored.CompletedItems = rec.CompletedItems
	stored.ProgressPercentage = rec.ProgressPercentage
	if bump {
		stored.Version++
	}
	stored.UpdatedAt = time.Now().UTC()
	*rec = *stored
	return nil
}

type fakeItemRepo struct {
	mu   sync.Mutex
	rows map[string]*types.ProgressItem
}

func newFakeItemRepo() *fakeItemRepo { return &fakeItemRepo{rows: map[string]*types.ProgressItem{}} }

func itemKey(userID, courseID uuid.UUID, t types.ProgressItemType, itemID uuid.UUID) string {
	return userID.String() + "|" + courseID.String() + "|" + string(t) + "|" + itemID.String()
}

func (r *fakeItemRepo) Insert(dbc dbctx.Context, item *types.ProgressItem) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := itemKey(item.UserID, item.CourseID, item.ItemType, item.ItemID)
	if _, ok := r.rows[key]; ok {
		return false, nil
	}
	cp := *item
	r.rows[key] = &cp
	return true, nil
}

func (r *fakeItemRepo) Delete(dbc dbctx.Context, userID, courseID uuid.UUID, t types.ProgressItemType, itemID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := itemKey(userID, courseID, t, itemID)
	if _, ok := r.rows[key]; !ok {
		return false, nil
	}
	delete(r.rows, key)
	return true, nil
}

func (r *fakeItemRepo) ListForCourse(dbc dbctx.Context, userID, courseID uuid.UUID) ([]*types.ProgressItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.ProgressItem
	for _, it := range r.rows {
		if it.UserID == userID && it.CourseID == courseID {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeObjectStore() *fakeObjectStore { return &fakeObjectStore{objects: map[string][]byte{}} }

func (s *fakeObjectStore) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	if s.putErr != nil {
		return s.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeObjectStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *fakeObjectStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return io.NopCloser(bytes.NewReader(s.objects[key])), nil
}

func (s *fakeObjectStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *fakeObjectStore) URL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "http://storage.test/" + key, nil
}

func (s *fakeObjectStore) Close() error { return nil }

// recordingEmitter captures every emitted message; err, when set, is
// returned from Emit after recording.
type recordingEmitter struct {
	mu   sync.Mutex
	msgs []realtime.SSEMessage
	err  error
}

func (e *recordingEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.msgs = append(e.msgs, msg)
	return e.err
}

func (e *recordingEmitter) events(event realtime.SSEEvent) []realtime.SSEMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []realtime.SSEMessage
	for _, m := range e.msgs {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}

type harness struct {
	proofs      *fakeProofRepo
	enrollments *fakeEnrollmentRepo
	allowed     *fakeAllowedRepo
	courses     *fakeCourseRepo
	users       *fakeUserRepo
	records     *fakeRecordRepo
	items       *fakeItemRepo
	store       *fakeObjectStore
	emitter     *recordingEmitter

	payments   PaymentProofService
	enrollment EnrollmentService
	progress   ProgressService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.Nop()
	v, err := validate.New("")
	if err != nil {
		t.Fatalf("validate.New: %v", err)
	}
	// The repos are in-memory; the database only supplies transactions.
	db := testutil.DB(t)
	h := &harness{
		proofs:      newFakeProofRepo(),
		enrollments: newFakeEnrollmentRepo(),
		allowed:     newFakeAllowedRepo(),
		courses:     newFakeCourseRepo(),
		users:       newFakeUserRepo(),
		records:     newFakeRecordRepo(),
		items:       newFakeItemRepo(),
		store:       newFakeObjectStore(),
		emitter:     &recordingEmitter{},
	}
	notifier := NewEnrollmentNotifier(log, h.emitter, nil)
	h.payments = NewPaymentProofService(db, log, h.proofs, h.enrollments, h.allowed, h.courses, h.users, h.store, notifier, v, PaymentProofConfig{BulkConcurrency: 3})
	h.enrollment = NewEnrollmentService(db, log, h.enrollments, h.allowed, h.proofs, h.courses)
	h.progress = NewProgressService(db, log, h.records, h.items, h.courses, h.enrollment, notifier)
	return h
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func validSubmit(t *testing.T, studentID, courseID uuid.UUID) SubmitPaymentProofInput {
	return SubmitPaymentProofInput{
		StudentID:     studentID,
		CourseID:      courseID,
		Amount:        500,
		SenderNumber:  "01012345678",
		StudentNumber: "01112345678",
		ParentNumber:  "01212345678",
		ProofImage:    ProofImage{Filename: "receipt.png", Data: pngBytes(t, 4, 3)},
	}
}

// submitPending creates a pending proof through the service.
func (h *harness) submitPending(t *testing.T, studentID, courseID uuid.UUID) *types.PaymentProof {
	t.Helper()
	proof, err := h.payments.Submit(context.Background(), validSubmit(t, studentID, courseID))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return proof
}
