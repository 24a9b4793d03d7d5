package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Note listing scopes.
const (
	NoteScopeAll      = "all"
	NoteScopePersonal = "personal"
	NoteScopeGroup    = "group"
)

// Media kinds accepted for note uploads.
const (
	MediaKindAudio = "audio"
	MediaKindImage = "image"
)

// LectureNote is a note optionally attached to one schedule event. The event
// fields are filled by a join and stay nil when the reference is dangling.
type LectureNote struct {
	ID              int64          `db:"id" json:"id"`
	GroupID         *int64         `db:"group_id" json:"group_id"`
	ScheduleEventID *int64         `db:"schedule_event_id" json:"schedule_event_id"`
	Title           string         `db:"title" json:"title"`
	Content         string         `db:"content" json:"content"`
	AudioTranscript *string        `db:"audio_transcript" json:"audio_transcript"`
	SlidesText      *string        `db:"slides_text" json:"slides_text"`
	FileName        *string        `db:"file_name" json:"file_name"`
	AudioURL        *string        `db:"audio_url" json:"audio_url"`
	ImageURLs       types.JSONText `db:"image_urls" json:"image_urls"`
	ImageCount      int            `db:"image_count" json:"image_count"`
	CreatedBy       string         `db:"created_by" json:"created_by"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	EventTitle      *string        `db:"event_title" json:"event_title,omitempty"`
	EventDay        *string        `db:"event_day" json:"event_day,omitempty"`
	EventWeek       *int           `db:"event_week" json:"event_week,omitempty"`
}

// Attached reports whether the note references an existing event.
func (n *LectureNote) Attached() bool {
	return n != nil && n.ScheduleEventID != nil
}

// NoteFilter narrows note listings.
type NoteFilter struct {
	Phone    string
	GroupID  *int64
	Scope    string
	Attached *bool
	EventID  *int64
	Week     *int
	Page     int
	PageSize int
}

// AttachLimit reports how many notes an event holds against its cap.
type AttachLimit struct {
	EventID   int64 `json:"eventId"`
	Count     int   `json:"count"`
	Max       int   `json:"max"`
	CanAttach bool  `json:"canAttach"`
}
