package dto

// CreateNoteRequest defines payload for creating a lecture note.
type CreateNoteRequest struct {
	Title           string  `json:"title"`
	Content         string  `json:"content"`
	AudioTranscript *string `json:"audio_transcript"`
	SlidesText      *string `json:"slides_text"`
	FileName        *string `json:"file_name" validate:"omitempty,max=255"`
	ScheduleEventID *int64  `json:"schedule_event_id"`
	Personal        bool    `json:"personal"`
}

// UpdateNoteTitleRequest renames a note.
type UpdateNoteTitleRequest struct {
	Title string `json:"title"`
}

// AttachNoteRequest attaches a note to an event, or detaches it when the id is null.
type AttachNoteRequest struct {
	ScheduleEventID *int64 `json:"schedule_event_id"`
}

// MediaUpload is an uploaded audio or image file.
type MediaUpload struct {
	Kind        string
	FileName    string
	ContentType string
	Size        int64
}

// NoteExport is a rendered note document.
type NoteExport struct {
	FileName    string
	ContentType string
	Data        []byte
}
