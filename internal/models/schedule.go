package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Weekdays on which classes can be scheduled, in display order.
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// EventTypes lists the allowed schedule event kinds.
var EventTypes = []string{"lecture", "practice", "lab", "exam"}

// TimeSlots are the standard class periods offered to clients.
var TimeSlots = []string{
	"8:30-10:00",
	"10:10-11:40",
	"11:50-13:20",
	"13:40-15:10",
	"15:20-16:50",
	"17:00-18:30",
}

// ScheduleEvent is one class in a group's biweekly timetable.
type ScheduleEvent struct {
	ID         int64     `db:"id" json:"id"`
	GroupID    int64     `db:"group_id" json:"groupId"`
	Title      string    `db:"title" json:"title"`
	Day        string    `db:"day" json:"day"`
	TimeSlot   string    `db:"time_slot" json:"timeSlot"`
	TimeStart  string    `db:"time_start" json:"timeStart"`
	TimeEnd    string    `db:"time_end" json:"timeEnd"`
	Location   string    `db:"location" json:"location"`
	Teacher    string    `db:"teacher" json:"teacher"`
	Type       string    `db:"type" json:"type"`
	WeekNumber int       `db:"week_number" json:"weekNumber"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// ScheduleLimits caps events per day and per week.
type ScheduleLimits struct {
	MaxPerDay  int `json:"maxPerDay"`
	MaxPerWeek int `json:"maxPerWeek"`
}

// WeekSchedule is the listing for one week together with capacity figures.
type WeekSchedule struct {
	Events      []ScheduleEvent `json:"events"`
	CurrentWeek int             `json:"currentWeek"`
	Week1Count  int             `json:"week1Count"`
	Week2Count  int             `json:"week2Count"`
	MaxPerWeek  int             `json:"maxPerWeek"`
	MaxPerDay   int             `json:"maxPerDay"`
}

// FullSchedule holds both weeks of a group's timetable.
type FullSchedule struct {
	Week1 []ScheduleEvent `json:"week1"`
	Week2 []ScheduleEvent `json:"week2"`
}

// ParseTimeSlot splits "H:MM-H:MM" into its start and end, both rewritten in
// canonical form so "08:30" and "8:30" name the same clock time. It reports
// false for malformed slots or when the end is not after the start.
func ParseTimeSlot(slot string) (start, end string, ok bool) {
	rawStart, rawEnd, found := strings.Cut(strings.TrimSpace(slot), "-")
	if !found {
		return "", "", false
	}
	startMin, ok1 := clockMinutes(strings.TrimSpace(rawStart))
	endMin, ok2 := clockMinutes(strings.TrimSpace(rawEnd))
	if !ok1 || !ok2 || endMin <= startMin {
		return "", "", false
	}
	return formatClock(startMin), formatClock(endMin), true
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

// DayIndex returns the display position of a weekday or -1.
func DayIndex(day string) int {
	for i, d := range Weekdays {
		if d == day {
			return i
		}
	}
	return -1
}

// SortEvents orders events by day and start time.
func SortEvents(events []ScheduleEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		di, dj := DayIndex(events[i].Day), DayIndex(events[j].Day)
		if di != dj {
			return di < dj
		}
		mi, _ := clockMinutes(events[i].TimeStart)
		mj, _ := clockMinutes(events[j].TimeStart)
		return mi < mj
	})
}

func clockMinutes(raw string) (int, bool) {
	hh, mm, found := strings.Cut(raw, ":")
	if !found || len(mm) != 2 || hh == "" || len(hh) > 2 {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
