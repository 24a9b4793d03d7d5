package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/studygroup-api/internal/dto"
	"github.com/noah-isme/studygroup-api/internal/models"
	appErrors "github.com/noah-isme/studygroup-api/pkg/errors"
	"github.com/noah-isme/studygroup-api/pkg/export"
)

// DocumentRenderer renders a note document.
type DocumentRenderer interface {
	RenderDocument(doc export.Document) ([]byte, error)
	ContentType() string
	Extension() string
}

// UploadMedia stores an audio recording or slide image for a note owned by
// the caller. Audio replaces the previous recording; images are appended.
func (s *LectureNoteService) UploadMedia(ctx context.Context, session *models.Session, noteID int64, upload dto.MediaUpload, body io.Reader) (*models.LectureNote, error) {
	if s.media == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "media storage is not configured")
	}
	if upload.Kind != models.MediaKindAudio && upload.Kind != models.MediaKindImage {
		return nil, appErrors.Clone(appErrors.ErrValidation, "kind must be audio or image")
	}
	if !strings.HasPrefix(strings.ToLower(upload.ContentType), upload.Kind+"/") {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file is not an %s file", upload.Kind))
	}
	if upload.Size > s.config.MaxMediaSize {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", s.config.MaxMediaSize))
	}
	if _, err := s.owned(ctx, session, noteID); err != nil {
		return nil, err
	}

	key := mediaKey(noteID, upload)
	if err := s.media.Put(ctx, key, body, upload.Size, upload.ContentType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store media")
	}
	url, err := s.media.URL(ctx, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve media url")
	}

	var ok bool
	if upload.Kind == models.MediaKindAudio {
		ok, err = s.repo.SetAudioURL(ctx, noteID, url)
	} else {
		ok, err = s.repo.AppendImageURL(ctx, noteID, url)
	}
	if err != nil || !ok {
		if delErr := s.media.Delete(ctx, key); delErr != nil {
			s.logger.Warn("orphaned media object", zap.String("key", key), zap.Error(delErr))
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save media reference")
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "note not found")
	}

	s.logger.Info("note media stored", zap.Int64("note_id", noteID), zap.String("kind", upload.Kind), zap.Int64("size", upload.Size))
	return s.find(ctx, noteID)
}

// ExportNote renders a visible note as a document.
func (s *LectureNoteService) ExportNote(ctx context.Context, session *models.Session, noteID int64) (*dto.NoteExport, error) {
	if s.renderer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "document export is not configured")
	}
	note, err := s.GetNote(ctx, session, noteID)
	if err != nil {
		return nil, err
	}

	data, err := s.renderer.RenderDocument(noteDocument(note))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render note")
	}
	return &dto.NoteExport{
		FileName:    fmt.Sprintf("note-%d.%s", note.ID, s.renderer.Extension()),
		ContentType: s.renderer.ContentType(),
		Data:        data,
	}, nil
}

func noteDocument(note *models.LectureNote) export.Document {
	doc := export.Document{
		Title: note.Title,
		Fields: []export.Field{
			{Label: "Author", Value: note.CreatedBy},
			{Label: "Created", Value: note.CreatedAt.Format("2006-01-02 15:04")},
		},
	}
	if note.EventTitle != nil {
		event := *note.EventTitle
		if note.EventDay != nil && note.EventWeek != nil {
			event = fmt.Sprintf("%s (%s, week %d)", event, *note.EventDay, *note.EventWeek)
		}
		doc.Fields = append(doc.Fields, export.Field{Label: "Class", Value: event})
	}
	if note.FileName != nil {
		doc.Fields = append(doc.Fields, export.Field{Label: "Source", Value: *note.FileName})
	}

	doc.Sections = append(doc.Sections, export.Section{Heading: "Notes", Body: note.Content})
	if note.AudioTranscript != nil {
		doc.Sections = append(doc.Sections, export.Section{Heading: "Audio transcript", Body: *note.AudioTranscript})
	}
	if note.SlidesText != nil {
		doc.Sections = append(doc.Sections, export.Section{Heading: "Slides", Body: *note.SlidesText})
	}
	return doc
}

func mediaKey(noteID int64, upload dto.MediaUpload) string {
	ext := strings.ToLower(filepath.Ext(upload.FileName))
	return fmt.Sprintf("notes/%d/%s/%s%s", noteID, upload.Kind, uuid.NewString(), ext)
}
