package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bananalabs-oss/bandroom/internal/models"
)

// Per-user index. Writes are idempotent so the reconciliation pass and the
// workflows can both apply them without coordination.

func (r *Repo) AddBand(ctx context.Context, userID, bandID uuid.UUID) error {
	row := &models.UserBand{
		UserID:  userID,
		BandID:  bandID,
		AddedAt: time.Now().UTC(),
	}
	_, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to index band for user: %w", err)
	}
	return nil
}

func (r *Repo) RemoveBand(ctx context.Context, userID, bandID uuid.UUID) error {
	_, err := r.db.NewDelete().
		Model((*models.UserBand)(nil)).
		Where("user_id = ? AND band_id = ?", userID, bandID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to unindex band for user: %w", err)
	}
	return nil
}

func (r *Repo) AddPendingInvitation(ctx context.Context, userID, invitationID uuid.UUID) error {
	row := &models.UserPendingInvitation{
		UserID:       userID,
		InvitationID: invitationID,
		AddedAt:      time.Now().UTC(),
	}
	_, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to index pending invitation: %w", err)
	}
	return nil
}

func (r *Repo) RemovePendingInvitation(ctx context.Context, userID, invitationID uuid.UUID) error {
	_, err := r.db.NewDelete().
		Model((*models.UserPendingInvitation)(nil)).
		Where("user_id = ? AND invitation_id = ?", userID, invitationID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to unindex pending invitation: %w", err)
	}
	return nil
}

func (r *Repo) ListBands(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var rows []*models.UserBand
	err := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Order("added_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list user bands: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.BandID)
	}
	return ids, nil
}

func (r *Repo) ListPendingInvitations(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var rows []*models.UserPendingInvitation
	err := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Order("added_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending invitations for user: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.InvitationID)
	}
	return ids, nil
}

func (r *Repo) ListIndexedBands(ctx context.Context) ([]*models.UserBand, error) {
	var rows []*models.UserBand
	if err := r.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to scan band index: %w", err)
	}
	return rows, nil
}

func (r *Repo) ListIndexedPendingInvitations(ctx context.Context) ([]*models.UserPendingInvitation, error) {
	var rows []*models.UserPendingInvitation
	if err := r.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to scan pending invitation index: %w", err)
	}
	return rows, nil
}
