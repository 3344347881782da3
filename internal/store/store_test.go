package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bananalabs-oss/bandroom/internal/membership"
	"github.com/bananalabs-oss/bandroom/internal/models"
	"github.com/bananalabs-oss/bandroom/internal/testhelpers"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(testhelpers.NewDB(t))
}

func seedBand(t *testing.T, s *Store) *models.Band {
	t.Helper()
	band := &models.Band{
		ID:          uuid.New(),
		Name:        "The Tuesdays",
		Genres:      []string{"indie", "surf"},
		SocialLinks: map[string]string{"bandcamp": "tuesdays"},
		IsActive:    true,
		CreatedBy:   uuid.New(),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	band.Members = []*models.BandMember{{
		ID:          uuid.New(),
		BandID:      band.ID,
		UserID:      band.CreatedBy,
		Role:        models.RoleLeader,
		Instruments: []string{"bass"},
		Permissions: membership.DefaultPermissions(models.RoleLeader),
		JoinedAt:    now,
		IsActive:    true,
	}}
	require.NoError(t, s.CreateBand(context.Background(), band))
	return band
}

func seedInvitation(t *testing.T, s *Store, bandID uuid.UUID) *models.Invitation {
	t.Helper()
	inv := &models.Invitation{
		ID:            uuid.New(),
		BandID:        bandID,
		InvitedUserID: uuid.New(),
		InvitedBy:     uuid.New(),
		Role:          models.RoleMember,
		Status:        models.InvitationPending,
		Version:       1,
		CreatedAt:     now,
		ExpiresAt:     now.Add(models.InvitationTTL),
	}
	require.NoError(t, s.InsertInvitation(context.Background(), inv))
	return inv
}

func TestGetBand_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	band := seedBand(t, s)

	loaded, err := s.GetBand(ctx, band.ID)
	require.NoError(t, err)
	assert.Equal(t, band.Name, loaded.Name)
	assert.Equal(t, []string{"indie", "surf"}, loaded.Genres)
	assert.Equal(t, "tuesdays", loaded.SocialLinks["bandcamp"])
	require.Len(t, loaded.Members, 1)
	assert.Equal(t, models.RoleLeader, loaded.Members[0].Role)
	assert.Equal(t, []string{"bass"}, loaded.Members[0].Instruments)
	assert.ElementsMatch(t, membership.AllPermissions, loaded.Members[0].Permissions)
}

func TestGetBand_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetBand(context.Background(), uuid.New())
	assert.ErrorIs(t, err, membership.ErrNotFound)
}

func TestSaveBand_VersionCheck(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	band := seedBand(t, s)

	first, err := s.GetBand(ctx, band.ID)
	require.NoError(t, err)
	second, err := s.GetBand(ctx, band.ID)
	require.NoError(t, err)

	require.NoError(t, s.SaveBand(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.IsActive = false
	err = s.SaveBand(ctx, second)
	assert.ErrorIs(t, err, membership.ErrConcurrentModification)

	loaded, err := s.GetBand(ctx, band.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsActive)
	assert.Equal(t, int64(2), loaded.Version)
}

func TestUpdateMember_SoftRemoval(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	band := seedBand(t, s)

	m := band.Members[0]
	left := now.Add(time.Hour)
	remover := uuid.New()
	m.IsActive = false
	m.LeftAt = &left
	m.RemovedBy = &remover
	require.NoError(t, s.UpdateMember(ctx, m))

	active, err := s.ListActiveMemberships(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	loaded, err := s.GetBand(ctx, band.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Members, 1)
	assert.False(t, loaded.Members[0].IsActive)
	require.NotNil(t, loaded.Members[0].RemovedBy)
	assert.Equal(t, remover, *loaded.Members[0].RemovedBy)
}

func TestTransitionInvitation_OnlyFromPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	band := seedBand(t, s)
	inv := seedInvitation(t, s, band.ID)

	stale := *inv
	at := now.Add(time.Minute)
	require.NoError(t, s.TransitionInvitation(ctx, inv, models.InvitationAccepted, at))
	assert.Equal(t, models.InvitationAccepted, inv.Status)
	assert.Equal(t, int64(2), inv.Version)

	err := s.TransitionInvitation(ctx, &stale, models.InvitationDeclined, at)
	assert.ErrorIs(t, err, membership.ErrInvalidState)
	assert.Equal(t, models.InvitationPending, stale.Status)

	loaded, err := s.GetInvitation(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationAccepted, loaded.Status)
	require.NotNil(t, loaded.RespondedAt)
}

func TestFindPendingInvitation_SkipsExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	band := seedBand(t, s)
	inv := seedInvitation(t, s, band.ID)

	found, err := s.FindPendingInvitation(ctx, band.ID, inv.InvitedUserID, now)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, found.ID)

	_, err = s.FindPendingInvitation(ctx, band.ID, inv.InvitedUserID, now.Add(models.InvitationTTL+time.Second))
	assert.ErrorIs(t, err, membership.ErrNotFound)

	_, err = s.FindPendingInvitation(ctx, band.ID, uuid.New(), now)
	assert.ErrorIs(t, err, membership.ErrNotFound)
}

func TestGetInvitations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	band := seedBand(t, s)
	a := seedInvitation(t, s, band.ID)
	b := seedInvitation(t, s, band.ID)
	seedInvitation(t, s, band.ID)

	invs, err := s.GetInvitations(ctx, []uuid.UUID{a.ID, b.ID, uuid.New()})
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, inv := range invs {
		ids = append(ids, inv.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, ids)

	invs, err = s.GetInvitations(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, invs)
}

func TestTransitionApplication(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	band := seedBand(t, s)

	app := &models.Application{
		ID:              uuid.New(),
		BandID:          band.ID,
		ApplicantUserID: uuid.New(),
		Role:            models.RoleGuest,
		Status:          models.ApplicationPending,
		Version:         1,
		CreatedAt:       now,
	}
	require.NoError(t, s.InsertApplication(ctx, app))

	responder := band.CreatedBy
	at := now.Add(time.Hour)
	app.ResponseMessage = "sorry"
	app.RespondedBy = &responder
	app.RespondedAt = &at
	require.NoError(t, s.TransitionApplication(ctx, app, models.ApplicationRejected))

	err := s.TransitionApplication(ctx, app, models.ApplicationAccepted)
	assert.ErrorIs(t, err, membership.ErrInvalidState)

	loaded, err := s.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationRejected, loaded.Status)
	assert.Equal(t, "sorry", loaded.ResponseMessage)
	require.NotNil(t, loaded.RespondedBy)
	assert.Equal(t, responder, *loaded.RespondedBy)

	apps, err := s.ListBandApplications(ctx, band.ID)
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}

func TestIndex_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user, band, inv := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, s.AddBand(ctx, user, band))
	require.NoError(t, s.AddBand(ctx, user, band))
	require.NoError(t, s.AddPendingInvitation(ctx, user, inv))
	require.NoError(t, s.AddPendingInvitation(ctx, user, inv))

	bands, err := s.ListBands(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{band}, bands)

	invs, err := s.ListPendingInvitations(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{inv}, invs)

	require.NoError(t, s.RemoveBand(ctx, user, band))
	require.NoError(t, s.RemoveBand(ctx, user, band))
	require.NoError(t, s.RemovePendingInvitation(ctx, user, inv))

	bands, err = s.ListBands(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, bands)

	rows, err := s.ListIndexedPendingInvitations(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRunInTx_RollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user, band := uuid.New(), uuid.New()

	err := s.RunInTx(ctx, func(ctx context.Context, repo membership.Repository) error {
		if err := repo.AddBand(ctx, user, band); err != nil {
			return err
		}
		return membership.ErrPermissionDenied
	})
	assert.ErrorIs(t, err, membership.ErrPermissionDenied)

	bands, err := s.ListBands(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, bands)
}

func TestRunInSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user, band := uuid.New(), uuid.New()

	err := s.RunInSnapshot(ctx, func(ctx context.Context, repo membership.Repository) error {
		return repo.AddBand(ctx, user, band)
	})
	require.NoError(t, err)

	err = s.RunInSnapshot(ctx, func(ctx context.Context, repo membership.Repository) error {
		if err := repo.RemoveBand(ctx, user, band); err != nil {
			return err
		}
		return membership.ErrConcurrentModification
	})
	assert.ErrorIs(t, err, membership.ErrConcurrentModification)

	bands, err := s.ListBands(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{band}, bands)
}
