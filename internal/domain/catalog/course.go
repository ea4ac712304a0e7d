package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Course content is authored elsewhere; this service only reads the
// catalog to price submissions and to size progress ledgers.
type Course struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title    string    `gorm:"not null;column:title" json:"title"`
	Price    float64   `gorm:"not null;default:0;column:price" json:"price"`
	Currency string    `gorm:"not null;default:EGP;column:currency" json:"currency"`
	Status   string    `gorm:"not null;default:published;column:status" json:"status"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (Course) TableName() string { return "course" }

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type CourseVideo struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID uuid.UUID `gorm:"type:uuid;not null;index;column:course_id" json:"courseId"`
	Title    string    `gorm:"not null;column:title" json:"title"`
	Position int       `gorm:"not null;default:0;column:position" json:"position"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (CourseVideo) TableName() string { return "course_video" }

func (v *CourseVideo) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

type CourseExam struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID uuid.UUID `gorm:"type:uuid;not null;index;column:course_id" json:"courseId"`
	Title    string    `gorm:"not null;column:title" json:"title"`
	Position int       `gorm:"not null;default:0;column:position" json:"position"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (CourseExam) TableName() string { return "course_exam" }

func (e *CourseExam) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Outline is the set of completable items in a course.
type Outline struct {
	CourseID uuid.UUID
	VideoIDs []uuid.UUID
	ExamIDs  []uuid.UUID
}

func (o Outline) TotalItems() int { return len(o.VideoIDs) + len(o.ExamIDs) }

func (o Outline) HasVideo(id uuid.UUID) bool { return containsID(o.VideoIDs, id) }

func (o Outline) HasExam(id uuid.UUID) bool { return containsID(o.ExamIDs, id) }

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
