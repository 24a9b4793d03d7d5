package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/noah-isme/studygroup-api/internal/models"
	"github.com/noah-isme/studygroup-api/internal/repository"
)

// memStore keeps groups, events and notes in memory with the same failure
// semantics as the SQL repositories.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	groups  map[int64]*models.Group
	members map[int64][]string
	events  map[int64]models.ScheduleEvent
	notes   map[int64]models.LectureNote
}

func newMemStore() *memStore {
	return &memStore{
		groups:  make(map[int64]*models.Group),
		members: make(map[int64][]string),
		events:  make(map[int64]models.ScheduleEvent),
		notes:   make(map[int64]models.LectureNote),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) groupOf(phone string) (int64, bool) {
	for gid, phones := range m.members {
		for _, p := range phones {
			if p == phone {
				return gid, true
			}
		}
	}
	return 0, false
}

// session derives the caller's group facts the way UserRepository.GetSession does.
func (m *memStore) session(phone string) *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &models.Session{Phone: phone, Name: models.DefaultUserName(phone)}
	gid, ok := m.groupOf(phone)
	if !ok {
		return s
	}
	g := m.groups[gid]
	id, name, count := gid, g.Name, len(m.members[gid])
	s.GroupID = &id
	s.GroupName = &name
	s.University = g.University
	s.IsGroupAdmin = g.AdminPhone == phone
	s.MemberCount = &count
	return s
}

type memGroupRepo struct{ *memStore }

func (r memGroupRepo) FindByID(_ context.Context, id int64) (*models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *g
	return &out, nil
}

func (r memGroupRepo) FindByMember(_ context.Context, phone string) (*models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gid, ok := r.groupOf(phone)
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *r.groups[gid]
	return &out, nil
}

func (r memGroupRepo) ListMembers(_ context.Context, groupID int64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.members[groupID]...), nil
}

func (r memGroupRepo) CountMembers(_ context.Context, groupID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members[groupID]), nil
}

func (r memGroupRepo) IsMember(_ context.Context, groupID int64, phone string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gid, ok := r.groupOf(phone)
	return ok && gid == groupID, nil
}

func (r memGroupRepo) Create(_ context.Context, group *models.Group, tokenFor func(int64) string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groupOf(group.AdminPhone); ok {
		return repository.ErrAlreadyMember
	}
	group.ID = r.id()
	token := tokenFor(group.ID)
	group.InviteToken = &token
	stored := *group
	r.groups[group.ID] = &stored
	r.members[group.ID] = []string{group.AdminPhone}
	return nil
}

func (r memGroupRepo) AddMember(_ context.Context, groupID int64, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[groupID]
	if !ok {
		return fmt.Errorf("lock group: %w", sql.ErrNoRows)
	}
	if len(r.members[groupID]) >= g.MaxMembers {
		return repository.ErrGroupFull
	}
	if _, ok := r.groupOf(phone); ok {
		return repository.ErrAlreadyMember
	}
	r.members[groupID] = append(r.members[groupID], phone)
	return nil
}

func (r memGroupRepo) RemoveMember(_ context.Context, groupID int64, phone string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	phones := r.members[groupID]
	for i, p := range phones {
		if p == phone {
			r.members[groupID] = append(phones[:i:i], phones[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r memGroupRepo) TransferAdmin(_ context.Context, groupID int64, from, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[groupID]
	if !ok || g.AdminPhone != from {
		return false, nil
	}
	if gid, ok := r.groupOf(to); !ok || gid != groupID {
		return false, nil
	}
	g.AdminPhone = to
	return true, nil
}

func (r memGroupRepo) Delete(_ context.Context, groupID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[groupID]; !ok {
		return sql.ErrNoRows
	}
	for id, n := range r.notes {
		inGroup := n.GroupID != nil && *n.GroupID == groupID
		onGroupEvent := false
		if n.ScheduleEventID != nil {
			e, ok := r.events[*n.ScheduleEventID]
			onGroupEvent = ok && e.GroupID == groupID
		}
		if inGroup || onGroupEvent {
			n.GroupID = nil
			n.ScheduleEventID = nil
			r.notes[id] = n
		}
	}
	for id, e := range r.events {
		if e.GroupID == groupID {
			delete(r.events, id)
		}
	}
	delete(r.members, groupID)
	delete(r.groups, groupID)
	return nil
}

type memScheduleRepo struct{ *memStore }

func (r memScheduleRepo) weekEvents(groupID int64, week int) []models.ScheduleEvent {
	var out []models.ScheduleEvent
	for _, e := range r.events {
		if e.GroupID == groupID && e.WeekNumber == week {
			out = append(out, e)
		}
	}
	models.SortEvents(out)
	return out
}

func (r memScheduleRepo) ListByWeek(_ context.Context, groupID int64, week int) ([]models.ScheduleEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.weekEvents(groupID, week), nil
}

func (r memScheduleRepo) ListByGroup(_ context.Context, groupID int64) ([]models.ScheduleEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(r.weekEvents(groupID, 1), r.weekEvents(groupID, 2)...), nil
}

func (r memScheduleRepo) CountByWeek(_ context.Context, groupID int64) (map[int]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[int]int{}
	for _, e := range r.events {
		if e.GroupID == groupID {
			counts[e.WeekNumber]++
		}
	}
	return counts, nil
}

func (r memScheduleRepo) FindByID(_ context.Context, id int64) (*models.ScheduleEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (r memScheduleRepo) CreateChecked(_ context.Context, event *models.ScheduleEvent, check func([]models.ScheduleEvent) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[event.GroupID]; !ok {
		return sql.ErrNoRows
	}
	existing := r.weekEvents(event.GroupID, event.WeekNumber)
	if err := check(existing); err != nil {
		return err
	}
	for _, e := range existing {
		if e.Day == event.Day && e.TimeSlot == event.TimeSlot {
			return repository.ErrSlotTaken
		}
	}
	event.ID = r.id()
	r.events[event.ID] = *event
	return nil
}

func (r memScheduleRepo) Delete(_ context.Context, groupID, eventID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventID]
	if !ok || e.GroupID != groupID {
		return sql.ErrNoRows
	}
	for id, n := range r.notes {
		if n.ScheduleEventID != nil && *n.ScheduleEventID == eventID {
			n.ScheduleEventID = nil
			r.notes[id] = n
		}
	}
	delete(r.events, eventID)
	return nil
}

type memNoteRepo struct{ *memStore }

// view applies the event join: a dangling reference reads back as unattached.
func (r memNoteRepo) view(n models.LectureNote) models.LectureNote {
	n.EventTitle, n.EventDay, n.EventWeek = nil, nil, nil
	if n.ScheduleEventID == nil {
		return n
	}
	e, ok := r.events[*n.ScheduleEventID]
	if !ok {
		n.ScheduleEventID = nil
		return n
	}
	title, day, week := e.Title, e.Day, e.WeekNumber
	n.EventTitle, n.EventDay, n.EventWeek = &title, &day, &week
	return n
}

func (r memNoteRepo) FindByID(_ context.Context, id int64) (*models.LectureNote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[id]
	if !ok {
		return nil, fmt.Errorf("find note: %w", sql.ErrNoRows)
	}
	out := r.view(n)
	return &out, nil
}

func (r memNoteRepo) List(_ context.Context, filter models.NoteFilter) ([]models.LectureNote, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.LectureNote{}
	for id := int64(1); id <= r.nextID; id++ {
		stored, ok := r.notes[id]
		if !ok {
			continue
		}
		n := r.view(stored)
		inGroup := filter.GroupID != nil && n.GroupID != nil && *n.GroupID == *filter.GroupID
		switch filter.Scope {
		case models.NoteScopePersonal:
			if n.CreatedBy != filter.Phone || n.GroupID != nil {
				continue
			}
		case models.NoteScopeGroup:
			if !inGroup {
				continue
			}
		default:
			if n.CreatedBy != filter.Phone && !inGroup {
				continue
			}
		}
		if filter.Attached != nil && *filter.Attached != n.Attached() {
			continue
		}
		if filter.EventID != nil && (n.ScheduleEventID == nil || *n.ScheduleEventID != *filter.EventID) {
			continue
		}
		if filter.Week != nil && (n.EventWeek == nil || *n.EventWeek != *filter.Week) {
			continue
		}
		out = append(out, n)
	}
	return out, len(out), nil
}

func (r memNoteRepo) countAttached(eventID, except int64) int {
	count := 0
	for id, n := range r.notes {
		if id != except && n.ScheduleEventID != nil && *n.ScheduleEventID == eventID {
			count++
		}
	}
	return count
}

func (r memNoteRepo) CountAttached(_ context.Context, eventID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countAttached(eventID, 0), nil
}

func (r memNoteRepo) reserve(noteID int64, attach repository.AttachParams) error {
	e, ok := r.events[attach.EventID]
	if !ok || e.GroupID != attach.GroupID {
		return sql.ErrNoRows
	}
	if r.countAttached(attach.EventID, noteID) >= attach.MaxNotes {
		return repository.ErrAttachLimit
	}
	return nil
}

func (r memNoteRepo) Create(_ context.Context, note *models.LectureNote, attach *repository.AttachParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	note.ScheduleEventID = nil
	if attach != nil {
		if err := r.reserve(0, *attach); err != nil {
			return err
		}
		eventID := attach.EventID
		note.ScheduleEventID = &eventID
	}
	if len(note.ImageURLs) == 0 {
		note.ImageURLs = []byte("[]")
	}
	note.ID = r.id()
	r.notes[note.ID] = *note
	return nil
}

func (r memNoteRepo) Attach(_ context.Context, noteID int64, attach repository.AttachParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.reserve(noteID, attach); err != nil {
		return err
	}
	n, ok := r.notes[noteID]
	if !ok {
		return sql.ErrNoRows
	}
	eventID := attach.EventID
	n.ScheduleEventID = &eventID
	r.notes[noteID] = n
	return nil
}

func (r memNoteRepo) Detach(_ context.Context, noteID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.notes[noteID]; ok {
		n.ScheduleEventID = nil
		r.notes[noteID] = n
	}
	return nil
}

func (r memNoteRepo) update(noteID int64, fn func(*models.LectureNote)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[noteID]
	if !ok {
		return false
	}
	fn(&n)
	r.notes[noteID] = n
	return true
}

func (r memNoteRepo) UpdateTitle(_ context.Context, noteID int64, title string) (bool, error) {
	return r.update(noteID, func(n *models.LectureNote) { n.Title = title }), nil
}

func (r memNoteRepo) Delete(_ context.Context, noteID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notes[noteID]; !ok {
		return false, nil
	}
	delete(r.notes, noteID)
	return true, nil
}

func (r memNoteRepo) SetAudioURL(_ context.Context, noteID int64, url string) (bool, error) {
	return r.update(noteID, func(n *models.LectureNote) { n.AudioURL = &url }), nil
}

func (r memNoteRepo) AppendImageURL(_ context.Context, noteID int64, url string) (bool, error) {
	return r.update(noteID, func(n *models.LectureNote) {
		var urls []string
		_ = json.Unmarshal(n.ImageURLs, &urls)
		urls = append(urls, url)
		n.ImageURLs, _ = json.Marshal(urls)
		n.ImageCount++
	}), nil
}

type memObjectStore struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *memObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	s.objects[key] = buf.Bytes()
	s.types[key] = contentType
	return nil
}

func (s *memObjectStore) URL(_ context.Context, key string) (string, error) {
	return "https://media.test/" + key, nil
}

func (s *memObjectStore) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}
