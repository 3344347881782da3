// Package testhelpers opens throwaway databases for package tests.
package testhelpers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/bananalabs-oss/bandroom/internal/database"
)

// NewDB returns a migrated SQLite database in a temp dir, closed when the
// test ends.
func NewDB(t *testing.T) *bun.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bandroom.db")
	db, err := database.Connect("sqlite://"+path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db, zap.NewNop()))
	return db
}

// Clock is a settable time source.
type Clock struct {
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
