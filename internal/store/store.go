// Package store persists bands, invitations, applications and the per-user
// index with bun.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/bananalabs-oss/bandroom/internal/membership"
	"github.com/bananalabs-oss/bandroom/internal/models"
)

// Store is the bun-backed membership.Store. Its embedded Repo runs against
// the pool; RunInTx hands fn a Repo bound to a transaction.
type Store struct {
	*Repo
	db *bun.DB
}

func New(db *bun.DB) *Store {
	return &Store{Repo: &Repo{db: db}, db: db}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, repo membership.Repository) error) error {
	return s.runInTx(ctx, &sql.TxOptions{}, fn)
}

// RunInSnapshot runs fn at repeatable read. SQLite transactions already
// read from a single snapshot and ignore the level.
func (s *Store) RunInSnapshot(ctx context.Context, fn func(ctx context.Context, repo membership.Repository) error) error {
	return s.runInTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead}, fn)
}

func (s *Store) runInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, repo membership.Repository) error) error {
	return s.db.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Repo{db: tx})
	})
}

// Repo implements membership.Repository on a bun.DB or bun.Tx.
type Repo struct {
	db bun.IDB
}

var _ membership.Store = (*Store)(nil)

func notFound(what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %w", what, membership.ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

// --- Bands ---

func (r *Repo) GetBand(ctx context.Context, bandID uuid.UUID) (*models.Band, error) {
	band := new(models.Band)
	err := r.db.NewSelect().
		Model(band).
		Relation("Members", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("bm.joined_at ASC", "bm.id ASC")
		}).
		Where("b.id = ?", bandID).
		Scan(ctx)
	if err != nil {
		return nil, notFound("band", err)
	}
	return band, nil
}

func (r *Repo) CreateBand(ctx context.Context, band *models.Band) error {
	if _, err := r.db.NewInsert().Model(band).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert band: %w", err)
	}
	if len(band.Members) == 0 {
		return nil
	}
	if _, err := r.db.NewInsert().Model(&band.Members).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert band members: %w", err)
	}
	return nil
}

// SaveBand persists the band's roster-level state (active flag, timestamps)
// and advances its version. Descriptive metadata is not written here.
func (r *Repo) SaveBand(ctx context.Context, band *models.Band) error {
	res, err := r.db.NewUpdate().
		Model((*models.Band)(nil)).
		Set("is_active = ?", band.IsActive).
		Set("updated_at = ?", band.UpdatedAt).
		Set("version = version + 1").
		Where("id = ?", band.ID).
		Where("version = ?", band.Version).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update band: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update band: %w", err)
	}
	if n == 0 {
		return membership.ErrConcurrentModification
	}
	band.Version++
	return nil
}

func (r *Repo) InsertMember(ctx context.Context, member *models.BandMember) error {
	if _, err := r.db.NewInsert().Model(member).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert band member: %w", err)
	}
	return nil
}

func (r *Repo) UpdateMember(ctx context.Context, member *models.BandMember) error {
	_, err := r.db.NewUpdate().
		Model(member).
		Column("role", "permissions", "is_active", "left_at", "removed_by").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update band member: %w", err)
	}
	return nil
}

func (r *Repo) ListActiveMemberships(ctx context.Context) ([]*models.BandMember, error) {
	var members []*models.BandMember
	err := r.db.NewSelect().
		Model(&members).
		Where("is_active = ?", true).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return members, nil
}
