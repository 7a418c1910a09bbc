package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Slide processing states written to slide.status and polled by the UI.
const (
	SlideStatusPending    = "pending"
	SlideStatusProcessing = "processing"
	SlideStatusDone       = "done"
	SlideStatusError      = "error"
)

type Exam struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title     string    `gorm:"column:title;not null" json:"title"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Exam) TableName() string {
	return "exam"
}

type Slide struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ExamID    uuid.UUID `gorm:"type:uuid;not null;index" json:"exam_id"`
	Exam      *Exam     `gorm:"constraint:OnDelete:CASCADE;foreignKey:ExamID;references:ID" json:"exam,omitempty"`
	FileKey   string    `gorm:"column:file_key;not null" json:"file_key"`
	Status    string    `gorm:"column:status;not null;default:'pending'" json:"status"`
	Error     string    `gorm:"column:error" json:"error,omitempty"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Slide) TableName() string {
	return "slide"
}

// Topic is the extracted study unit for a slide. At most one topic exists per
// slide; the pipeline checks before inserting.
type Topic struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SlideID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"slide_id"`
	Slide     *Slide         `gorm:"constraint:OnDelete:CASCADE;foreignKey:SlideID;references:ID" json:"slide,omitempty"`
	Title     string         `gorm:"column:title;not null" json:"title"`
	Subpoints datatypes.JSON `gorm:"column:subpoints_json;type:jsonb" json:"subpoints_json"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Topic) TableName() string {
	return "topic"
}

// Video links one recommended video to one subpoint of a topic. The same
// YoutubeID may appear under several subpoint indexes when the catalog has no
// distinct candidate; the UI groups on youtube_id and relies on the
// per-subpoint rows being present.
type Video struct {
	ID              uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TopicID         uuid.UUID `gorm:"type:uuid;not null;index" json:"topic_id"`
	Topic           *Topic    `gorm:"constraint:OnDelete:CASCADE;foreignKey:TopicID;references:ID" json:"topic,omitempty"`
	YoutubeID       string    `gorm:"column:youtube_id;not null" json:"youtube_id"`
	Title           string    `gorm:"column:title" json:"title"`
	Description     string    `gorm:"column:description" json:"description"`
	ThumbnailURL    string    `gorm:"column:thumbnail_url" json:"thumbnail_url"`
	DurationSeconds *int      `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`
	SubpointIndex   int       `gorm:"column:subpoint_index;not null;default:0" json:"subpoint_index"`
	CreatedAt       time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Video) TableName() string {
	return "video"
}
