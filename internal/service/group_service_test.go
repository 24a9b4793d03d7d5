package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studygroup-api/internal/dto"
	appErrors "github.com/noah-isme/studygroup-api/pkg/errors"
	"github.com/noah-isme/studygroup-api/pkg/invite"
)

const (
	phoneA = "+79990000001"
	phoneB = "+79990000002"
	phoneC = "+79990000003"
)

type recordingInvalidator struct {
	patterns []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, pattern string) error {
	r.patterns = append(r.patterns, pattern)
	return nil
}

func newGroupServiceForTest(store *memStore, maxMembers int) (*GroupService, *recordingInvalidator) {
	cache := &recordingInvalidator{}
	signer := invite.NewSigner("test-secret", "https://app.test")
	return NewGroupService(memGroupRepo{store}, signer, cache, nil, nil, nil, GroupConfig{MaxMembers: maxMembers}), cache
}

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok, "expected *errors.Error, got %T", err)
	assert.Equal(t, code, appErr.Code)
}

func TestGroupServiceTransferThenLeave(t *testing.T) {
	store := newMemStore()
	svc, _ := newGroupServiceForTest(store, 25)
	ctx := context.Background()

	created, err := svc.CreateGroup(ctx, phoneA, dto.CreateGroupRequest{Name: "ПИ-21-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, created.MemberCount)
	assert.True(t, created.IsAdmin)
	assert.NotEmpty(t, created.InviteToken)
	assert.Equal(t, "https://app.test/join/"+created.InviteToken, created.InviteLink)

	joined, err := svc.JoinGroup(ctx, phoneB, dto.JoinGroupRequest{Invite: created.InviteToken})
	require.NoError(t, err)
	assert.Equal(t, 2, joined.MemberCount)
	assert.False(t, joined.IsAdmin)
	assert.Equal(t, 2, *store.session(phoneB).MemberCount)

	_, err = svc.TransferAdmin(ctx, phoneA, created.ID, dto.TransferAdminRequest{NewAdminPhone: phoneB})
	require.NoError(t, err)
	assert.False(t, store.session(phoneA).IsGroupAdmin)
	assert.True(t, store.session(phoneB).IsGroupAdmin)

	require.NoError(t, svc.LeaveGroup(ctx, phoneA, created.ID))
	assert.False(t, store.session(phoneA).HasGroup())

	mine, err := svc.GetMyGroup(ctx, phoneB)
	require.NoError(t, err)
	assert.Equal(t, 1, mine.MemberCount)
	assert.Equal(t, []string{phoneB}, mine.Members)
}

func TestGroupServiceCreateRejectsMember(t *testing.T) {
	store := newMemStore()
	svc, _ := newGroupServiceForTest(store, 25)
	ctx := context.Background()

	_, err := svc.CreateGroup(ctx, phoneA, dto.CreateGroupRequest{Name: "First"})
	require.NoError(t, err)

	_, err = svc.CreateGroup(ctx, phoneA, dto.CreateGroupRequest{Name: "Second"})
	assertAppError(t, err, appErrors.ErrAlreadyInGroup.Code)

	_, err = svc.CreateGroup(ctx, phoneB, dto.CreateGroupRequest{Name: "   "})
	assertAppError(t, err, appErrors.ErrValidation.Code)
}

func TestGroupServiceJoinFailureOrder(t *testing.T) {
	store := newMemStore()
	svc, _ := newGroupServiceForTest(store, 2)
	ctx := context.Background()

	_, err := svc.JoinGroup(ctx, phoneB, dto.JoinGroupRequest{Invite: "999"})
	assertAppError(t, err, appErrors.ErrNotFound.Code)

	_, err = svc.JoinGroup(ctx, phoneB, dto.JoinGroupRequest{Invite: "1-deadbeef"})
	assertAppError(t, err, appErrors.ErrNotFound.Code)

	first, err := svc.CreateGroup(ctx, phoneA, dto.CreateGroupRequest{Name: "Full"})
	require.NoError(t, err)
	_, err = svc.JoinGroup(ctx, phoneB, dto.JoinGroupRequest{Invite: "1"})
	require.NoError(t, err)

	// full is reported before already-in-group
	_, err = svc.JoinGroup(ctx, phoneB, dto.JoinGroupRequest{Invite: first.InviteToken})
	assertAppError(t, err, appErrors.ErrGroupFull.Code)

	second, err := svc.CreateGroup(ctx, phoneC, dto.CreateGroupRequest{Name: "Other"})
	require.NoError(t, err)
	_, err = svc.JoinGroup(ctx, phoneB, dto.JoinGroupRequest{Invite: second.InviteToken})
	assertAppError(t, err, appErrors.ErrAlreadyInGroup.Code)

	count, _ := memGroupRepo{store}.CountMembers(ctx, first.ID)
	assert.Equal(t, 2, count)
}

func TestGroupServiceLeaveRules(t *testing.T) {
	store := newMemStore()
	svc, _ := newGroupServiceForTest(store, 25)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, phoneA, dto.CreateGroupRequest{Name: "G"})
	require.NoError(t, err)

	assertAppError(t, svc.LeaveGroup(ctx, phoneA, group.ID), appErrors.ErrAdminCannotLeave.Code)
	assertAppError(t, svc.LeaveGroup(ctx, phoneB, group.ID), appErrors.ErrNotFound.Code)
	assertAppError(t, svc.LeaveGroup(ctx, phoneB, 404), appErrors.ErrNotFound.Code)
}

func TestGroupServiceTransferRules(t *testing.T) {
	store := newMemStore()
	svc, _ := newGroupServiceForTest(store, 25)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, phoneA, dto.CreateGroupRequest{Name: "G"})
	require.NoError(t, err)
	_, err = svc.JoinGroup(ctx, phoneB, dto.JoinGroupRequest{Invite: group.InviteToken})
	require.NoError(t, err)

	_, err = svc.TransferAdmin(ctx, phoneB, group.ID, dto.TransferAdminRequest{NewAdminPhone: phoneA})
	assertAppError(t, err, appErrors.ErrForbidden.Code)

	_, err = svc.TransferAdmin(ctx, phoneA, group.ID, dto.TransferAdminRequest{NewAdminPhone: phoneA})
	assertAppError(t, err, appErrors.ErrValidation.Code)

	_, err = svc.TransferAdmin(ctx, phoneA, group.ID, dto.TransferAdminRequest{NewAdminPhone: phoneC})
	assertAppError(t, err, appErrors.ErrNotFound.Code)

	detail, err := svc.TransferAdmin(ctx, phoneA, group.ID, dto.TransferAdminRequest{NewAdminPhone: "+7 999 000-00-02"})
	require.NoError(t, err)
	assert.Equal(t, phoneB, detail.Admin)
	assert.False(t, detail.IsAdmin)
}

func TestGroupServiceDeleteKeepsNotes(t *testing.T) {
	store := newMemStore()
	svc, cache := newGroupServiceForTest(store, 25)
	notes := newNoteServiceForTest(store)
	schedule := newScheduleServiceForTest(t, store)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, phoneA, dto.CreateGroupRequest{Name: "G"})
	require.NoError(t, err)
	_, err = svc.JoinGroup(ctx, phoneB, dto.JoinGroupRequest{Invite: group.InviteToken})
	require.NoError(t, err)
	event, err := schedule.AddEvent(ctx, store.session(phoneA), mondayLecture("Математика", 1))
	require.NoError(t, err)
	note, err := notes.CreateNote(ctx, store.session(phoneB), dto.CreateNoteRequest{Title: "Limits", ScheduleEventID: &event.ID})
	require.NoError(t, err)
	require.True(t, note.Attached())

	assertAppError(t, svc.DeleteGroup(ctx, phoneB, group.ID), appErrors.ErrForbidden.Code)
	require.NoError(t, svc.DeleteGroup(ctx, phoneA, group.ID))
	assertAppError(t, svc.DeleteGroup(ctx, phoneA, group.ID), appErrors.ErrNotFound.Code)

	assert.Contains(t, cache.patterns, SchedulePattern(group.ID))
	assert.False(t, store.session(phoneA).HasGroup())
	assert.False(t, store.session(phoneB).HasGroup())
	assert.Empty(t, store.events)

	kept, err := notes.GetNote(ctx, store.session(phoneB), note.ID)
	require.NoError(t, err)
	assert.Nil(t, kept.ScheduleEventID)
	assert.Nil(t, kept.GroupID)
}

func TestGroupServiceResolveInvite(t *testing.T) {
	store := newMemStore()
	svc, _ := newGroupServiceForTest(store, 25)
	ctx := context.Background()

	university := "MSU"
	group, err := svc.CreateGroup(ctx, phoneA, dto.CreateGroupRequest{Name: "G", University: &university})
	require.NoError(t, err)

	preview, err := svc.ResolveInvite(ctx, group.InviteToken)
	require.NoError(t, err)
	assert.Equal(t, group.ID, preview.ID)
	assert.Equal(t, 1, preview.MemberCount)
	assert.Equal(t, 25, preview.MaxMembers)
	assert.Equal(t, phoneA, preview.AdminPhone)
	require.NotNil(t, preview.University)
	assert.Equal(t, "MSU", *preview.University)

	_, err = svc.ResolveInvite(ctx, "garbage")
	assertAppError(t, err, appErrors.ErrNotFound.Code)

	mine, err := svc.GetMyGroup(ctx, phoneC)
	require.NoError(t, err)
	assert.Nil(t, mine)
}
