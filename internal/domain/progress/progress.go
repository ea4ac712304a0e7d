package progress

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ItemType string

const (
	ItemVideo ItemType = "video"
	ItemExam  ItemType = "exam"
)

func (t ItemType) Valid() bool { return t == ItemVideo || t == ItemExam }

// Item is one completed video or exam. Presence of the row is completion;
// the unique key makes repeated completion a no-op.
type Item struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_progress_item_key,priority:1;column:user_id" json:"userId"`
	CourseID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_progress_item_key,priority:2;column:course_id" json:"courseId"`
	ItemType        ItemType  `gorm:"not null;uniqueIndex:idx_progress_item_key,priority:3;column:item_type" json:"itemType"`
	ItemID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_progress_item_key,priority:4;column:item_id" json:"itemId"`
	WatchPercentage *float64  `gorm:"column:watch_percentage" json:"watchPercentage,omitempty"`
	Score           *float64  `gorm:"column:score" json:"score,omitempty"`
	Passed          *bool     `gorm:"column:passed" json:"passed,omitempty"`
	CompletedAt     time.Time `gorm:"not null;column:completed_at" json:"completedAt"`
}

func (Item) TableName() string { return "progress_item" }

func (i *Item) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.CompletedAt.IsZero() {
		i.CompletedAt = time.Now().UTC()
	}
	return nil
}

// Record caches the derived counters for one (student, course) ledger.
// Version increases on every effective mutation.
type Record struct {
	UserID             uuid.UUID `gorm:"type:uuid;primaryKey;column:user_id" json:"userId"`
	CourseID           uuid.UUID `gorm:"type:uuid;primaryKey;column:course_id" json:"courseId"`
	TotalItems         int       `gorm:"not null;default:0;column:total_items" json:"totalItems"`
	CompletedItems     int       `gorm:"not null;default:0;column:completed_items" json:"completedItems"`
	ProgressPercentage int       `gorm:"not null;default:0;column:progress_percentage" json:"progressPercentage"`
	Version            int64     `gorm:"not null;default:0;column:version" json:"version"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (Record) TableName() string { return "progress_record" }

// Percentage is round(completed*100/total), or 0 for an empty course.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	if completed > total {
		completed = total
	}
	if completed < 0 {
		completed = 0
	}
	return int(math.Round(float64(completed) * 100 / float64(total)))
}

// Snapshot is the canonical, server-computed view of a ledger.
type Snapshot struct {
	CourseID           uuid.UUID   `json:"courseId"`
	CompletedVideoIDs  []uuid.UUID `json:"completedVideos"`
	CompletedExamIDs   []uuid.UUID `json:"completedExams"`
	CompletedItems     int         `json:"completedItems"`
	TotalItems         int         `json:"totalItems"`
	ProgressPercentage int         `json:"progressPercentage"`
	Version            int64       `json:"version"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

// Compute derives a snapshot from the stored items, counting only items that
// still belong to the course outline.
func Compute(courseID uuid.UUID, items []*Item, videoIDs, examIDs []uuid.UUID) Snapshot {
	videos := toSet(videoIDs)
	exams := toSet(examIDs)
	snap := Snapshot{
		CourseID:          courseID,
		CompletedVideoIDs: []uuid.UUID{},
		CompletedExamIDs:  []uuid.UUID{},
		TotalItems:        len(videos) + len(exams),
	}
	seen := map[ItemType]map[uuid.UUID]bool{ItemVideo: {}, ItemExam: {}}
	for _, it := range items {
		if it == nil || it.CourseID != courseID || seen[it.ItemType] == nil || seen[it.ItemType][it.ItemID] {
			continue
		}
		switch it.ItemType {
		case ItemVideo:
			if !videos[it.ItemID] {
				continue
			}
			snap.CompletedVideoIDs = append(snap.CompletedVideoIDs, it.ItemID)
		case ItemExam:
			if !exams[it.ItemID] {
				continue
			}
			snap.CompletedExamIDs = append(snap.CompletedExamIDs, it.ItemID)
		}
		seen[it.ItemType][it.ItemID] = true
	}
	sortIDs(snap.CompletedVideoIDs)
	sortIDs(snap.CompletedExamIDs)
	snap.CompletedItems = len(snap.CompletedVideoIDs) + len(snap.CompletedExamIDs)
	snap.ProgressPercentage = Percentage(snap.CompletedItems, snap.TotalItems)
	return snap
}

// Apply copies the derived counters onto the cached record.
func (s Snapshot) Apply(rec *Record) {
	rec.TotalItems = s.TotalItems
	rec.CompletedItems = s.CompletedItems
	rec.ProgressPercentage = s.ProgressPercentage
}

func toSet(ids []uuid.UUID) map[uuid.UUID]bool {
	out := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}
