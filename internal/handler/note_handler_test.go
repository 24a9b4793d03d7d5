package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studygroup-api/internal/dto"
	"github.com/noah-isme/studygroup-api/internal/models"
	appErrors "github.com/noah-isme/studygroup-api/pkg/errors"
)

type noteServiceMock struct {
	filter      models.NoteFilter
	listErr     error
	attachCalls int
	attachEvent *int64
	limitEvent  int64
	upload      dto.MediaUpload
	uploadBody  []byte
	export      *dto.NoteExport
	getErr      error
}

func (m *noteServiceMock) ListNotes(ctx context.Context, session *models.Session, filter models.NoteFilter) ([]models.LectureNote, *models.Pagination, error) {
	m.filter = filter
	if m.listErr != nil {
		return nil, nil, m.listErr
	}
	return []models.LectureNote{{ID: 1, Title: "Limits"}}, &models.Pagination{Page: 1, PageSize: 50, TotalCount: 1}, nil
}

func (m *noteServiceMock) GetNote(ctx context.Context, session *models.Session, noteID int64) (*models.LectureNote, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &models.LectureNote{ID: noteID, Title: "Limits", CreatedBy: session.Phone}, nil
}

func (m *noteServiceMock) CreateNote(ctx context.Context, session *models.Session, req dto.CreateNoteRequest) (*models.LectureNote, error) {
	return &models.LectureNote{ID: 9, Title: req.Title, CreatedBy: session.Phone}, nil
}

func (m *noteServiceMock) UpdateTitle(ctx context.Context, session *models.Session, noteID int64, req dto.UpdateNoteTitleRequest) (*models.LectureNote, error) {
	return &models.LectureNote{ID: noteID, Title: req.Title}, nil
}

func (m *noteServiceMock) DeleteNote(ctx context.Context, session *models.Session, noteID int64) error {
	return nil
}

func (m *noteServiceMock) AttachToEvent(ctx context.Context, session *models.Session, noteID int64, eventID *int64) (*models.LectureNote, error) {
	m.attachCalls++
	m.attachEvent = eventID
	return &models.LectureNote{ID: noteID, ScheduleEventID: eventID}, nil
}

func (m *noteServiceMock) CheckLimit(ctx context.Context, session *models.Session, eventID int64) (*models.AttachLimit, error) {
	m.limitEvent = eventID
	return &models.AttachLimit{EventID: eventID, Count: 2, Max: 2, CanAttach: false}, nil
}

func (m *noteServiceMock) UploadMedia(ctx context.Context, session *models.Session, noteID int64, upload dto.MediaUpload, body io.Reader) (*models.LectureNote, error) {
	m.upload = upload
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	m.uploadBody = data
	url := "https://media.test/audio.mp3"
	return &models.LectureNote{ID: noteID, AudioURL: &url}, nil
}

func (m *noteServiceMock) ExportNote(ctx context.Context, session *models.Session, noteID int64) (*dto.NoteExport, error) {
	return m.export, nil
}

func TestNoteHandlerListParsesFilters(t *testing.T) {
	svc := &noteServiceMock{}
	handler := NewNoteHandler(svc)

	c, w := newGinContext(http.MethodGet, "/notes?scope=Group&attached=false&eventId=4&week=2&page=3&pageSize=10", nil)
	withSession(c, adminSession(1))
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.NoteScopeGroup, svc.filter.Scope)
	require.NotNil(t, svc.filter.Attached)
	assert.False(t, *svc.filter.Attached)
	require.NotNil(t, svc.filter.EventID)
	assert.Equal(t, int64(4), *svc.filter.EventID)
	require.NotNil(t, svc.filter.Week)
	assert.Equal(t, 2, *svc.filter.Week)
	assert.Equal(t, 3, svc.filter.Page)
	assert.Equal(t, 10, svc.filter.PageSize)

	env, _ := decodeEnvelope(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
}

func TestNoteHandlerListRejectsMalformedFilter(t *testing.T) {
	cases := []string{
		"/notes?attached=maybe",
		"/notes?eventId=x",
		"/notes?week=first",
		"/notes?page=one",
	}
	for _, path := range cases {
		t.Run(path, func(t *testing.T) {
			handler := NewNoteHandler(&noteServiceMock{})
			c, w := newGinContext(http.MethodGet, path, nil)
			withSession(c, adminSession(1))
			handler.List(c)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestNoteHandlerAttachNullDetaches(t *testing.T) {
	svc := &noteServiceMock{}
	handler := NewNoteHandler(svc)

	c, w := newGinContext(http.MethodPut, "/notes/5/attach", []byte(`{"schedule_event_id":null}`))
	c.AddParam("id", "5")
	withSession(c, adminSession(1))
	handler.Attach(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, svc.attachCalls)
	assert.Nil(t, svc.attachEvent)
}

func TestNoteHandlerAttachToEvent(t *testing.T) {
	svc := &noteServiceMock{}
	handler := NewNoteHandler(svc)

	c, w := newGinContext(http.MethodPut, "/notes/5/attach", []byte(`{"schedule_event_id":11}`))
	c.AddParam("id", "5")
	withSession(c, adminSession(1))
	handler.Attach(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.attachEvent)
	assert.Equal(t, int64(11), *svc.attachEvent)
}

func TestNoteHandlerCheckLimit(t *testing.T) {
	svc := &noteServiceMock{}
	handler := NewNoteHandler(svc)

	c, w := newGinContext(http.MethodGet, "/notes/check-limit?eventId=11", nil)
	withSession(c, adminSession(1))
	handler.CheckLimit(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(11), svc.limitEvent)
	assert.Contains(t, w.Body.String(), `"canAttach":false`)
}

func TestNoteHandlerCheckLimitRequiresEvent(t *testing.T) {
	handler := NewNoteHandler(&noteServiceMock{})

	c, w := newGinContext(http.MethodGet, "/notes/check-limit", nil)
	withSession(c, adminSession(1))
	handler.CheckLimit(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNoteHandlerGetForbidden(t *testing.T) {
	handler := NewNoteHandler(&noteServiceMock{getErr: appErrors.Clone(appErrors.ErrForbidden, "note belongs to another group")})

	c, w := newGinContext(http.MethodGet, "/notes/3", nil)
	c.AddParam("id", "3")
	withSession(c, adminSession(1))
	handler.Get(c)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestNoteHandlerCreate(t *testing.T) {
	handler := NewNoteHandler(&noteServiceMock{})

	c, w := newGinContext(http.MethodPost, "/notes", []byte(`{"title":"Limits","content":"epsilon-delta"}`))
	withSession(c, adminSession(1))
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"created_by":"`+testPhone+`"`)
}

func TestNoteHandlerUploadMedia(t *testing.T) {
	svc := &noteServiceMock{}
	handler := NewNoteHandler(svc)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("kind", "Audio"))
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="lecture.mp3"`)
	header.Set("Content-Type", "audio/mpeg")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("ID3-audio"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	c, w := newGinContext(http.MethodPost, "/notes/5/media", body.Bytes())
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	c.AddParam("id", "5")
	withSession(c, adminSession(1))
	handler.UploadMedia(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.MediaKindAudio, svc.upload.Kind)
	assert.Equal(t, "lecture.mp3", svc.upload.FileName)
	assert.Equal(t, "audio/mpeg", svc.upload.ContentType)
	assert.Equal(t, int64(len("ID3-audio")), svc.upload.Size)
	assert.Equal(t, []byte("ID3-audio"), svc.uploadBody)
}

func TestNoteHandlerUploadMediaRequiresFile(t *testing.T) {
	handler := NewNoteHandler(&noteServiceMock{})

	c, w := newGinContext(http.MethodPost, "/notes/5/media", nil)
	c.AddParam("id", "5")
	withSession(c, adminSession(1))
	handler.UploadMedia(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNoteHandlerExport(t *testing.T) {
	svc := &noteServiceMock{export: &dto.NoteExport{FileName: "note-5.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}}
	handler := NewNoteHandler(svc)

	c, w := newGinContext(http.MethodGet, "/notes/5/export", nil)
	c.AddParam("id", "5")
	withSession(c, adminSession(1))
	handler.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="note-5.pdf"`, w.Header().Get("Content-Disposition"))
}
