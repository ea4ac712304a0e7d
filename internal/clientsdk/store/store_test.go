package store

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/coursegate-backend/internal/clientsdk/api"
)

func loaded(courseID uuid.UUID, seq uint64, version int64, videos ...uuid.UUID) State {
	s := Reduce(State{}, BeginRefresh{CourseID: courseID, Seq: seq})
	return Reduce(s, Reconcile{CourseID: courseID, Seq: seq, Progress: &api.Progress{
		CourseID:           courseID,
		CompletedVideos:    videos,
		CompletedItems:     len(videos),
		TotalItems:         10,
		ProgressPercentage: len(videos) * 10,
		Version:            version,
	}})
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	courseID, videoID := uuid.New(), uuid.New()
	before := loaded(courseID, 1, 1)
	snapshot := before.Ledgers[courseID].Clone()

	after := Reduce(before, BeginMutation{CourseID: courseID, Kind: Video, ItemID: videoID, Completed: true, Seq: 2})

	assert.True(t, before.Ledgers[courseID].Equal(snapshot), "input state changed")
	l := after.Ledgers[courseID]
	assert.True(t, l.Updating)
	assert.True(t, l.Completed(Video, videoID))
	assert.Equal(t, 10, l.TotalItems)
}

func TestBeginMutationIsGuarded(t *testing.T) {
	courseID := uuid.New()
	s := Reduce(loaded(courseID, 1, 1), BeginMutation{CourseID: courseID, Kind: Video, ItemID: uuid.New(), Completed: true, Seq: 2})
	again := Reduce(s, BeginMutation{CourseID: courseID, Kind: Exam, ItemID: uuid.New(), Completed: true, Seq: 3})

	assert.Equal(t, uint64(2), again.Ledgers[courseID].Seq)
	assert.Empty(t, again.Ledgers[courseID].Exams)

	refreshed := Reduce(s, BeginRefresh{CourseID: courseID, Seq: 4})
	assert.Equal(t, uint64(2), refreshed.Ledgers[courseID].Seq, "refresh must not supersede an in-flight mutation")
}

func TestReconcileDiscardsStaleResponses(t *testing.T) {
	courseID := uuid.New()
	s := loaded(courseID, 1, 5)
	s = Reduce(s, BeginRefresh{CourseID: courseID, Seq: 2})
	s = Reduce(s, BeginRefresh{CourseID: courseID, Seq: 3})

	superseded := Reduce(s, Reconcile{CourseID: courseID, Seq: 2, Progress: &api.Progress{CourseID: courseID, TotalItems: 10, CompletedItems: 9, ProgressPercentage: 90, Version: 9}})
	assert.Equal(t, 0, superseded.Ledgers[courseID].ProgressPercentage)

	older := Reduce(s, Reconcile{CourseID: courseID, Seq: 3, Progress: &api.Progress{CourseID: courseID, TotalItems: 10, CompletedItems: 9, ProgressPercentage: 90, Version: 4}})
	assert.Equal(t, int64(5), older.Ledgers[courseID].Version)

	current := Reduce(s, Reconcile{CourseID: courseID, Seq: 3, Progress: &api.Progress{CourseID: courseID, TotalItems: 10, CompletedItems: 9, ProgressPercentage: 90, Version: 6}})
	assert.Equal(t, 90, current.Ledgers[courseID].ProgressPercentage)
	assert.Equal(t, int64(6), current.Ledgers[courseID].Version)
}

func TestRestoreReturnsExactPreviousLedger(t *testing.T) {
	courseID, done, fresh := uuid.New(), uuid.New(), uuid.New()
	s := loaded(courseID, 1, 2, done)
	prev := s.Ledgers[courseID].Clone()

	s = Reduce(s, BeginMutation{CourseID: courseID, Kind: Video, ItemID: fresh, Completed: true, Seq: 7})
	s = Reduce(s, Restore{CourseID: courseID, Seq: 7, Previous: prev})
	s = Reduce(s, Release{CourseID: courseID, Seq: 7})

	assert.True(t, s.Ledgers[courseID].Equal(prev))
}

func TestReleaseClearsGuardAfterCommit(t *testing.T) {
	courseID, videoID := uuid.New(), uuid.New()
	s := Reduce(loaded(courseID, 1, 1), BeginMutation{CourseID: courseID, Kind: Video, ItemID: videoID, Completed: true, Seq: 2})
	s = Reduce(s, Reconcile{CourseID: courseID, Seq: 2, Progress: &api.Progress{CourseID: courseID, CompletedVideos: []uuid.UUID{videoID}, CompletedItems: 1, TotalItems: 10, ProgressPercentage: 10, Version: 2}})
	require.True(t, s.Ledgers[courseID].Updating)

	s = Reduce(s, Release{CourseID: courseID, Seq: 2})
	assert.False(t, s.Ledgers[courseID].Updating)
	assert.Equal(t, 10, s.Ledgers[courseID].ProgressPercentage)
}

func TestForgetDropsOnlyUnloadedLedger(t *testing.T) {
	courseID := uuid.New()
	s := Reduce(State{}, BeginRefresh{CourseID: courseID, Seq: 1})
	require.Contains(t, s.Ledgers, courseID)
	assert.False(t, s.Ledgers[courseID].Loaded)

	stale := Reduce(s, Forget{CourseID: courseID, Seq: 7})
	assert.Contains(t, stale.Ledgers, courseID, "forget with a superseded seq must be ignored")
	gone := Reduce(s, Forget{CourseID: courseID, Seq: 1})
	assert.NotContains(t, gone.Ledgers, courseID)
	assert.Contains(t, s.Ledgers, courseID, "input state changed")

	kept := Reduce(loaded(courseID, 2, 0), Forget{CourseID: courseID, Seq: 2})
	require.Contains(t, kept.Ledgers, courseID)
	assert.True(t, kept.Ledgers[courseID].Loaded)
}

func TestStoreNotifiesOnChangeOnly(t *testing.T) {
	st := New()
	courseID := uuid.New()
	var mu sync.Mutex
	calls := 0
	unsubscribe := st.Subscribe(func(State) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	st.Dispatch(BeginRefresh{CourseID: courseID, Seq: 1})
	st.Dispatch(Release{CourseID: courseID, Seq: 1})
	assert.Equal(t, 1, calls)

	unsubscribe()
	st.Dispatch(BeginRefresh{CourseID: courseID, Seq: 2})
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(2), st.State().Ledgers[courseID].Seq)
}

func TestStoreSerializesConcurrentMutations(t *testing.T) {
	st := New()
	courseID := uuid.New()
	st.Dispatch(BeginRefresh{CourseID: courseID, Seq: 1})

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(seq uint64) {
			defer wg.Done()
			s := st.Dispatch(BeginMutation{CourseID: courseID, Kind: Video, ItemID: uuid.New(), Completed: true, Seq: seq})
			if s.Ledgers[courseID].Seq == seq {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(uint64(i + 10))
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
	assert.Len(t, st.State().Ledgers[courseID].Videos, 1)
}
