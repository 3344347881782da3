package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bananalabs-oss/bandroom/internal/membership"
	"github.com/bananalabs-oss/bandroom/internal/models"
)

func (r *Repo) GetApplication(ctx context.Context, applicationID uuid.UUID) (*models.Application, error) {
	app := new(models.Application)
	err := r.db.NewSelect().
		Model(app).
		Where("app.id = ?", applicationID).
		Scan(ctx)
	if err != nil {
		return nil, notFound("application", err)
	}
	return app, nil
}

func (r *Repo) InsertApplication(ctx context.Context, app *models.Application) error {
	if _, err := r.db.NewInsert().Model(app).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert application: %w", err)
	}
	return nil
}

func (r *Repo) TransitionApplication(ctx context.Context, app *models.Application, to models.ApplicationStatus) error {
	res, err := r.db.NewUpdate().
		Model((*models.Application)(nil)).
		Set("status = ?", to).
		Set("response_message = ?", app.ResponseMessage).
		Set("responded_by = ?", app.RespondedBy).
		Set("responded_at = ?", app.RespondedAt).
		Set("version = version + 1").
		Where("id = ?", app.ID).
		Where("status = ?", models.ApplicationPending).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("application %w", membership.ErrInvalidState)
	}
	app.Status = to
	app.Version++
	return nil
}

func (r *Repo) ListBandApplications(ctx context.Context, bandID uuid.UUID) ([]*models.Application, error) {
	apps := make([]*models.Application, 0)
	err := r.db.NewSelect().
		Model(&apps).
		Where("app.band_id = ?", bandID).
		Order("app.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return apps, nil
}
