package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/bananalabs-oss/bandroom/internal/membership"
	"github.com/bananalabs-oss/bandroom/internal/models"
)

func (r *Repo) GetInvitation(ctx context.Context, invitationID uuid.UUID) (*models.Invitation, error) {
	inv := new(models.Invitation)
	err := r.db.NewSelect().
		Model(inv).
		Where("inv.id = ?", invitationID).
		Scan(ctx)
	if err != nil {
		return nil, notFound("invitation", err)
	}
	return inv, nil
}

func (r *Repo) GetInvitations(ctx context.Context, invitationIDs []uuid.UUID) ([]*models.Invitation, error) {
	invs := make([]*models.Invitation, 0, len(invitationIDs))
	if len(invitationIDs) == 0 {
		return invs, nil
	}
	err := r.db.NewSelect().
		Model(&invs).
		Where("inv.id IN (?)", bun.In(invitationIDs)).
		Order("inv.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load invitations: %w", err)
	}
	return invs, nil
}

func (r *Repo) InsertInvitation(ctx context.Context, inv *models.Invitation) error {
	if _, err := r.db.NewInsert().Model(inv).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert invitation: %w", err)
	}
	return nil
}

// FindPendingInvitation filters expiry in Go so the comparison does not
// depend on how the dialect stores timestamps.
func (r *Repo) FindPendingInvitation(ctx context.Context, bandID, userID uuid.UUID, now time.Time) (*models.Invitation, error) {
	var invs []*models.Invitation
	err := r.db.NewSelect().
		Model(&invs).
		Where("inv.band_id = ?", bandID).
		Where("inv.invited_user_id = ?", userID).
		Where("inv.status = ?", models.InvitationPending).
		Order("inv.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to look up pending invitations: %w", err)
	}
	for _, inv := range invs {
		if inv.EffectiveStatus(now) == models.InvitationPending {
			return inv, nil
		}
	}
	return nil, fmt.Errorf("pending invitation %w", membership.ErrNotFound)
}

func (r *Repo) TransitionInvitation(ctx context.Context, inv *models.Invitation, to models.InvitationStatus, at time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*models.Invitation)(nil)).
		Set("status = ?", to).
		Set("responded_at = ?", at).
		Set("version = version + 1").
		Where("id = ?", inv.ID).
		Where("status = ?", models.InvitationPending).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("invitation %w", membership.ErrInvalidState)
	}
	inv.Status = to
	inv.RespondedAt = &at
	inv.Version++
	return nil
}

func (r *Repo) ListBandInvitations(ctx context.Context, bandID uuid.UUID) ([]*models.Invitation, error) {
	invs := make([]*models.Invitation, 0)
	err := r.db.NewSelect().
		Model(&invs).
		Where("inv.band_id = ?", bandID).
		Order("inv.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invs, nil
}

func (r *Repo) ListStoredPendingInvitations(ctx context.Context) ([]*models.Invitation, error) {
	var invs []*models.Invitation
	err := r.db.NewSelect().
		Model(&invs).
		Where("inv.status = ?", models.InvitationPending).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending invitations: %w", err)
	}
	return invs, nil
}
