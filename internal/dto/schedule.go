package dto

// CreateEventRequest defines payload for adding a schedule event. Title is
// checked by the schedule rules, after slot and capacity checks.
type CreateEventRequest struct {
	Title      string `json:"title"`
	Day        string `json:"day" validate:"required,oneof=monday tuesday wednesday thursday friday saturday"`
	TimeSlot   string `json:"timeSlot" validate:"required"`
	Location   string `json:"location" validate:"max=200"`
	Teacher    string `json:"teacher" validate:"max=200"`
	Type       string `json:"type" validate:"required,oneof=lecture practice lab exam"`
	WeekNumber int    `json:"weekNumber" validate:"omitempty,oneof=1 2"`
}

// ScheduleExport is a rendered schedule file.
type ScheduleExport struct {
	FileName    string
	ContentType string
	Data        []byte
}
