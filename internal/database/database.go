package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/bananalabs-oss/bandroom/internal/models"
)

// Connect opens the database named by databaseURL. sqlite:// URLs open an
// embedded SQLite file; postgres:// and postgresql:// URLs go through pgx.
func Connect(databaseURL string, logger *zap.Logger) (*bun.DB, error) {
	var (
		db  *bun.DB
		err error
	)
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		db, err = connectSQLite(strings.TrimPrefix(databaseURL, "sqlite://"))
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		db, err = connectPostgres(databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database url scheme: %q", databaseURL)
	}
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("connected to database", zap.String("scheme", strings.SplitN(databaseURL, "://", 2)[0]))
	return db, nil
}

func connectSQLite(path string) (*bun.DB, error) {
	// Pragmas go in the DSN so every pooled connection gets them.
	// _txlock=immediate takes the write lock at BEGIN; concurrent
	// read-modify-write transactions then queue on busy_timeout.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_txlock=immediate",
		path,
	)
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func connectPostgres(databaseURL string) (*bun.DB, error) {
	sqldb, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func Migrate(ctx context.Context, db *bun.DB, logger *zap.Logger) error {
	logger.Info("running database migrations")

	tables := []interface{}{
		(*models.Band)(nil),
		(*models.BandMember)(nil),
		(*models.Invitation)(nil),
		(*models.Application)(nil),
		(*models.UserBand)(nil),
		(*models.UserPendingInvitation)(nil),
	}

	for _, model := range tables {
		_, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}

	indexes := []struct {
		name  string
		query string
	}{
		{
			// At most one active record per (band, user).
			"idx_band_members_active",
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_band_members_active ON band_members (band_id, user_id) WHERE is_active",
		},
		{
			"idx_band_members_band",
			"CREATE INDEX IF NOT EXISTS idx_band_members_band ON band_members (band_id)",
		},
		{
			"idx_invitations_band_user",
			"CREATE INDEX IF NOT EXISTS idx_invitations_band_user ON invitations (band_id, invited_user_id, status)",
		},
		{
			"idx_invitations_status",
			"CREATE INDEX IF NOT EXISTS idx_invitations_status ON invitations (status)",
		},
		{
			"idx_applications_band",
			"CREATE INDEX IF NOT EXISTS idx_applications_band ON applications (band_id, status)",
		},
	}

	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx.query); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	logger.Info("migrations complete")
	return nil
}
