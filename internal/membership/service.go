package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bananalabs-oss/bandroom/internal/directory"
	"github.com/bananalabs-oss/bandroom/internal/models"
)

// Service implements band creation, the invitation and application
// workflows, and member removal. Each public method runs in a single
// transaction: the permission gate is evaluated against the band as loaded
// inside that transaction, never against an earlier read.
type Service struct {
	store  Store
	users  directory.Resolver
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(store Store, users directory.Resolver, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		users:  users,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BandInput carries descriptive band metadata.
type BandInput struct {
	Name        string
	Bio         string
	Location    string
	Genres      []string
	SocialLinks map[string]string
	ImageRef    string
}

// CreateBand creates a band whose only member is the creator, as leader.
func (s *Service) CreateBand(ctx context.Context, in BandInput, creatorID uuid.UUID, instruments []string) (*Band, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: band name is required", ErrInvalidInput)
	}

	now := s.now()
	band := NewBand(&models.Band{
		ID:          uuid.New(),
		Name:        name,
		Bio:         in.Bio,
		Location:    in.Location,
		Genres:      in.Genres,
		SocialLinks: in.SocialLinks,
		ImageRef:    in.ImageRef,
		IsActive:    true,
		CreatedBy:   creatorID,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if _, err := band.addMember(creatorID, models.RoleLeader, instruments, now); err != nil {
		return nil, err
	}
	if err := band.checkInvariants(); err != nil {
		return nil, err
	}

	err := s.store.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.CreateBand(ctx, band.Band); err != nil {
			return err
		}
		return repo.AddBand(ctx, creatorID, band.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("band created",
		zap.String("band_id", band.ID.String()),
		zap.String("creator_id", creatorID.String()),
	)
	return band, nil
}

// GetBand returns the band with its full membership history.
func (s *Service) GetBand(ctx context.Context, bandID uuid.UUID) (*Band, error) {
	b, err := s.store.GetBand(ctx, bandID)
	if err != nil {
		return nil, err
	}
	return NewBand(b), nil
}

// CheckPermission loads the band and evaluates the gate for userID.
func (s *Service) CheckPermission(ctx context.Context, bandID, userID uuid.UUID, permission models.Permission) (bool, error) {
	if !IsValidPermission(permission) {
		return false, fmt.Errorf("%w: unknown permission %q", ErrInvalidInput, permission)
	}
	band, err := s.GetBand(ctx, bandID)
	if err != nil {
		return false, err
	}
	return band.HasPermission(userID, permission), nil
}

// RemoveMember soft-removes targetID. The remover needs manage_members and
// may not remove someone who outranks them; the last active leader can
// never be removed.
func (s *Service) RemoveMember(ctx context.Context, bandID, targetID, removerID uuid.UUID) error {
	err := s.store.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		band, err := loadActiveBand(ctx, repo, bandID)
		if err != nil {
			return err
		}
		if !band.HasPermission(removerID, models.PermissionManageMembers) {
			return ErrPermissionDenied
		}
		if target, ok := band.Member(targetID); ok && !band.MayHandleRole(removerID, target.Role) {
			return ErrPermissionDenied
		}
		return s.dismiss(ctx, repo, band, targetID, removerID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("member removed",
		zap.String("band_id", bandID.String()),
		zap.String("user_id", targetID.String()),
		zap.String("removed_by", removerID.String()),
	)
	return nil
}

// LeaveBand removes userID from the band at their own request. Any active
// member may leave; the last leader must hand over leadership first.
func (s *Service) LeaveBand(ctx context.Context, bandID, userID uuid.UUID) error {
	err := s.store.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		band, err := loadActiveBand(ctx, repo, bandID)
		if err != nil {
			return err
		}
		return s.dismiss(ctx, repo, band, userID, userID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("member left band",
		zap.String("band_id", bandID.String()),
		zap.String("user_id", userID.String()),
	)
	return nil
}

// UpdateMemberRole changes an active member's role and resets their
// permissions to that role's defaults. The actor can neither grant nor
// take away a role above their own.
func (s *Service) UpdateMemberRole(ctx context.Context, bandID, targetID, actorID uuid.UUID, role models.Role) (*models.BandMember, error) {
	if !IsValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	var updated *models.BandMember
	err := s.store.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		band, err := loadActiveBand(ctx, repo, bandID)
		if err != nil {
			return err
		}
		if !band.HasPermission(actorID, models.PermissionManageMembers) {
			return ErrPermissionDenied
		}
		target, ok := band.Member(targetID)
		if !ok {
			return fmt.Errorf("member %w", ErrNotFound)
		}
		if !band.MayHandleRole(actorID, role) || !band.MayHandleRole(actorID, target.Role) {
			return ErrPermissionDenied
		}

		m, err := band.changeRole(targetID, role)
		if err != nil {
			return err
		}
		if err := repo.UpdateMember(ctx, m); err != nil {
			return err
		}
		if err := s.saveRoster(ctx, repo, band); err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("member role changed",
		zap.String("band_id", bandID.String()),
		zap.String("user_id", targetID.String()),
		zap.String("role", string(role)),
	)
	return updated, nil
}

// DeactivateBand soft-deletes the band and expires its open invitations.
// Only a leader may do it.
func (s *Service) DeactivateBand(ctx context.Context, bandID, actorID uuid.UUID) error {
	err := s.store.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		band, err := loadActiveBand(ctx, repo, bandID)
		if err != nil {
			return err
		}
		actor, ok := band.Member(actorID)
		if !ok || actor.Role != models.RoleLeader {
			return ErrPermissionDenied
		}
		band.IsActive = false
		if err := s.saveRoster(ctx, repo, band); err != nil {
			return err
		}
		return s.expirePendingInvitations(ctx, repo, bandID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("band deactivated",
		zap.String("band_id", bandID.String()),
		zap.String("actor_id", actorID.String()),
	)
	return nil
}

// expirePendingInvitations closes every invitation the band still has open
// and drops it from the invitees' pending index.
func (s *Service) expirePendingInvitations(ctx context.Context, repo Repository, bandID uuid.UUID) error {
	invs, err := repo.ListBandInvitations(ctx, bandID)
	if err != nil {
		return err
	}
	now := s.now()
	for _, inv := range invs {
		if inv.Status != models.InvitationPending {
			continue
		}
		if err := repo.TransitionInvitation(ctx, inv, models.InvitationExpired, now); err != nil {
			return err
		}
		if err := repo.RemovePendingInvitation(ctx, inv.InvitedUserID, inv.ID); err != nil {
			return err
		}
	}
	return nil
}

// ListUserBands returns the bands userID belongs to, resolved through the
// per-user index.
func (s *Service) ListUserBands(ctx context.Context, userID uuid.UUID) ([]*Band, error) {
	ids, err := s.store.ListBands(ctx, userID)
	if err != nil {
		return nil, err
	}

	bands := make([]*Band, 0, len(ids))
	for _, id := range ids {
		band, err := s.GetBand(ctx, id)
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn("user index references missing band",
				zap.String("user_id", userID.String()),
				zap.String("band_id", id.String()),
			)
			continue
		}
		if err != nil {
			return nil, err
		}
		bands = append(bands, band)
	}
	return bands, nil
}

// admit is the single path that adds a member to a roster: it appends the
// record, bumps the band version and indexes the band for the user.
func (s *Service) admit(ctx context.Context, repo Repository, band *Band, userID uuid.UUID, role models.Role, instruments []string) (*models.BandMember, error) {
	m, err := band.addMember(userID, role, instruments, s.now())
	if err != nil {
		return nil, err
	}
	if err := repo.InsertMember(ctx, m); err != nil {
		return nil, err
	}
	if err := s.saveRoster(ctx, repo, band); err != nil {
		return nil, err
	}
	if err := repo.AddBand(ctx, userID, band.ID); err != nil {
		return nil, err
	}
	return m, nil
}

// dismiss is the single path that takes a member off a roster.
func (s *Service) dismiss(ctx context.Context, repo Repository, band *Band, targetID, removerID uuid.UUID) error {
	m, err := band.deactivateMember(targetID, removerID, s.now())
	if err != nil {
		return err
	}
	if err := repo.UpdateMember(ctx, m); err != nil {
		return err
	}
	if err := s.saveRoster(ctx, repo, band); err != nil {
		return err
	}
	return repo.RemoveBand(ctx, targetID, band.ID)
}

func (s *Service) saveRoster(ctx context.Context, repo Repository, band *Band) error {
	if err := band.checkInvariants(); err != nil {
		return err
	}
	band.UpdatedAt = s.now()
	return repo.SaveBand(ctx, band.Band)
}

// resolveUser fetches display data, translating a missing user into
// ErrNotFound.
func (s *Service) resolveUser(ctx context.Context, userID uuid.UUID) (*directory.UserSummary, error) {
	u, err := s.users.Resolve(ctx, userID)
	if errors.Is(err, directory.ErrUserNotFound) {
		return nil, fmt.Errorf("user %s %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user %s: %w", userID, err)
	}
	return u, nil
}

// requireManager checks manage_members against the band's current roster.
func (s *Service) requireManager(ctx context.Context, bandID, actorID uuid.UUID) error {
	band, err := s.GetBand(ctx, bandID)
	if err != nil {
		return err
	}
	if !band.HasPermission(actorID, models.PermissionManageMembers) {
		return ErrPermissionDenied
	}
	return nil
}

func loadActiveBand(ctx context.Context, repo Repository, bandID uuid.UUID) (*Band, error) {
	b, err := repo.GetBand(ctx, bandID)
	if err != nil {
		return nil, err
	}
	if !b.IsActive {
		return nil, ErrBandInactive
	}
	return NewBand(b), nil
}
