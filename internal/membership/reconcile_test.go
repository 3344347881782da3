package membership_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bananalabs-oss/bandroom/internal/membership"
	"github.com/bananalabs-oss/bandroom/internal/models"
)

func TestReconcile_CleanStateIsNoop(t *testing.T) {
	h := newHarness(t)
	leader, user := uuid.New(), uuid.New()
	band := h.createBand(t, leader)
	h.join(t, band.ID, leader, user, models.RoleMember)
	h.invite(t, band.ID, leader, uuid.New(), models.RoleGuest)

	report, err := h.svc.Reconcile(h.ctx)
	require.NoError(t, err)
	assert.False(t, report.Changed())
}

func TestReconcile_RepairsBandIndex(t *testing.T) {
	h := newHarness(t)
	leader, user := uuid.New(), uuid.New()
	band := h.createBand(t, leader)
	h.join(t, band.ID, leader, user, models.RoleMember)

	ghostBand := uuid.New()
	require.NoError(t, h.store.RemoveBand(h.ctx, user, band.ID))
	require.NoError(t, h.store.AddBand(h.ctx, user, ghostBand))

	bands, err := h.svc.ListUserBands(h.ctx, user)
	require.NoError(t, err)
	assert.Empty(t, bands, "missing bands are skipped")

	report, err := h.svc.Reconcile(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.BandIndexAdded)
	assert.Equal(t, 1, report.BandIndexRemoved)
	assert.Equal(t, []uuid.UUID{band.ID}, h.indexedBands(t, user))

	again, err := h.svc.Reconcile(h.ctx)
	require.NoError(t, err)
	assert.False(t, again.Changed())
}

func TestReconcile_ExpiresStaleInvitations(t *testing.T) {
	h := newHarness(t)
	leader, stale, fresh := uuid.New(), uuid.New(), uuid.New()
	band := h.createBand(t, leader)
	old := h.invite(t, band.ID, leader, stale, models.RoleMember)

	h.clock.Advance(models.InvitationTTL - time.Hour)
	current := h.invite(t, band.ID, leader, fresh, models.RoleMember)
	require.NoError(t, h.store.RemovePendingInvitation(h.ctx, fresh, current.ID))

	h.clock.Advance(2 * time.Hour)

	report, err := h.svc.Reconcile(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.InvitationsExpired)
	assert.Equal(t, 1, report.PendingIndexRemoved)
	assert.Equal(t, 1, report.PendingIndexAdded)

	stored, err := h.store.GetInvitation(h.ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationExpired, stored.Status)
	assert.Empty(t, h.indexedInvitations(t, stale))
	assert.Equal(t, []uuid.UUID{current.ID}, h.indexedInvitations(t, fresh))

	_, _, err = h.svc.AcceptInvitation(h.ctx, old.ID, stale)
	assert.ErrorIs(t, err, membership.ErrInvalidOrExpired)

	again, err := h.svc.Reconcile(h.ctx)
	require.NoError(t, err)
	assert.False(t, again.Changed())
}

func TestRunReconciler_StopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(h.ctx)

	done := make(chan struct{})
	go func() {
		h.svc.RunReconciler(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not stop")
	}
}

// TestRosterInvariants_RandomOperations drives the service with a random mix
// of operations and checks after every step that each band keeps at least
// one active leader, no user holds two active records, and the per-user
// index agrees with the roster.
func TestRosterInvariants_RandomOperations(t *testing.T) {
	h := newHarness(t)
	rng := rand.New(rand.NewSource(42))

	users := make([]uuid.UUID, 6)
	for i := range users {
		users[i] = uuid.New()
	}
	roles := []models.Role{models.RoleLeader, models.RoleAdmin, models.RoleMember, models.RoleGuest}
	pick := func() uuid.UUID { return users[rng.Intn(len(users))] }

	bandIDs := []uuid.UUID{
		h.createBand(t, users[0]).ID,
		h.createBand(t, users[1]).ID,
	}
	var invitations, applications []uuid.UUID

	for step := 0; step < 150; step++ {
		bandID := bandIDs[rng.Intn(len(bandIDs))]

		// Errors are expected; the invariants must hold regardless.
		switch rng.Intn(7) {
		case 0:
			inv, err := h.svc.SendInvitation(h.ctx, membership.InvitationInput{
				BandID: bandID, InvitedUserID: pick(), InviterID: pick(), Role: roles[rng.Intn(len(roles))],
			})
			if err == nil {
				invitations = append(invitations, inv.ID)
			}
		case 1:
			if len(invitations) > 0 {
				id := invitations[rng.Intn(len(invitations))]
				inv, err := h.store.GetInvitation(h.ctx, id)
				require.NoError(t, err)
				_, _, _ = h.svc.AcceptInvitation(h.ctx, id, inv.InvitedUserID)
			}
		case 2:
			app, err := h.svc.SubmitApplication(h.ctx, membership.ApplicationInput{
				BandID: bandID, ApplicantID: pick(), Role: roles[rng.Intn(len(roles))],
			})
			if err == nil {
				applications = append(applications, app.ID)
			}
		case 3:
			if len(applications) > 0 {
				_, _, _ = h.svc.AcceptApplication(h.ctx, applications[rng.Intn(len(applications))], pick(), "")
			}
		case 4:
			_ = h.svc.RemoveMember(h.ctx, bandID, pick(), pick())
		case 5:
			_ = h.svc.LeaveBand(h.ctx, bandID, pick())
		case 6:
			_, _ = h.svc.UpdateMemberRole(h.ctx, bandID, pick(), pick(), roles[rng.Intn(len(roles))])
		}

		if rng.Intn(10) == 0 {
			h.clock.Advance(36 * time.Hour)
		}

		for _, id := range bandIDs {
			band := h.band(t, id)
			require.GreaterOrEqual(t, band.ActiveLeaders(), 1, "step %d", step)

			seen := map[uuid.UUID]bool{}
			for _, m := range band.Members {
				if !m.IsActive {
					continue
				}
				require.False(t, seen[m.UserID], "step %d: duplicate active record", step)
				seen[m.UserID] = true
			}
			for _, u := range users {
				assert.Equal(t, seen[u], contains(h.indexedBands(t, u), id), "step %d: index drift", step)
			}
		}
	}
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
