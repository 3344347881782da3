package membership

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bananalabs-oss/bandroom/internal/models"
)

// IndexStore maintains the per-user lookup of band ids and pending
// invitation ids. It is derived data and every write is idempotent.
type IndexStore interface {
	AddBand(ctx context.Context, userID, bandID uuid.UUID) error
	RemoveBand(ctx context.Context, userID, bandID uuid.UUID) error
	AddPendingInvitation(ctx context.Context, userID, invitationID uuid.UUID) error
	RemovePendingInvitation(ctx context.Context, userID, invitationID uuid.UUID) error
	ListBands(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	ListPendingInvitations(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Repository is the persistence surface used by Service. Get* methods return
// ErrNotFound when the id does not resolve.
type Repository interface {
	IndexStore

	GetBand(ctx context.Context, bandID uuid.UUID) (*models.Band, error)
	CreateBand(ctx context.Context, band *models.Band) error
	// SaveBand writes band metadata and bumps Version, failing with
	// ErrConcurrentModification if the stored version differs.
	SaveBand(ctx context.Context, band *models.Band) error
	InsertMember(ctx context.Context, member *models.BandMember) error
	UpdateMember(ctx context.Context, member *models.BandMember) error

	GetInvitation(ctx context.Context, invitationID uuid.UUID) (*models.Invitation, error)
	GetInvitations(ctx context.Context, invitationIDs []uuid.UUID) ([]*models.Invitation, error)
	InsertInvitation(ctx context.Context, inv *models.Invitation) error
	// FindPendingInvitation returns a stored pending invitation for the pair
	// that has not expired as of now.
	FindPendingInvitation(ctx context.Context, bandID, userID uuid.UUID, now time.Time) (*models.Invitation, error)
	// TransitionInvitation moves inv out of pending. It fails with
	// ErrInvalidState if the stored row is no longer pending.
	TransitionInvitation(ctx context.Context, inv *models.Invitation, to models.InvitationStatus, at time.Time) error
	ListBandInvitations(ctx context.Context, bandID uuid.UUID) ([]*models.Invitation, error)

	GetApplication(ctx context.Context, applicationID uuid.UUID) (*models.Application, error)
	InsertApplication(ctx context.Context, app *models.Application) error
	// TransitionApplication persists app's response fields and new status if
	// the stored row is still pending, else ErrInvalidState.
	TransitionApplication(ctx context.Context, app *models.Application, to models.ApplicationStatus) error
	ListBandApplications(ctx context.Context, bandID uuid.UUID) ([]*models.Application, error)

	// Scans used by the reconciliation pass.
	ListActiveMemberships(ctx context.Context) ([]*models.BandMember, error)
	ListIndexedBands(ctx context.Context) ([]*models.UserBand, error)
	ListIndexedPendingInvitations(ctx context.Context) ([]*models.UserPendingInvitation, error)
	ListStoredPendingInvitations(ctx context.Context) ([]*models.Invitation, error)
}

// Store runs fn inside one database transaction. Roster and index writes
// made through the Repository passed to fn commit or roll back together.
// RunInSnapshot is RunInTx with every read seeing the same snapshot.
type Store interface {
	Repository
	RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
	RunInSnapshot(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}
