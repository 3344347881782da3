package membership

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bananalabs-oss/bandroom/internal/models"
)

type InvitationInput struct {
	BandID        uuid.UUID
	InvitedUserID uuid.UUID
	InviterID     uuid.UUID
	Role          models.Role
	Instruments   []string
	Message       string
}

// SendInvitation offers InvitedUserID a place in the band. Checks run in
// order: inviter permission (including authority over the offered role),
// existing membership, existing pending offer.
//
// The duplicate check is check-then-act; two concurrent sends may both
// insert. Only one of them can ever be accepted, and the other expires.
func (s *Service) SendInvitation(ctx context.Context, in InvitationInput) (*models.Invitation, error) {
	if !IsValidRole(in.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}

	// Resolved up front to keep network calls out of the transaction; a
	// failure is reported only after the ordered checks below have passed.
	invitee, resolveErr := s.resolveUser(ctx, in.InvitedUserID)
	inviter, err := s.resolveUser(ctx, in.InviterID)
	if resolveErr == nil {
		resolveErr = err
	}

	now := s.now()
	var inv *models.Invitation
	err = s.store.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		band, err := loadActiveBand(ctx, repo, in.BandID)
		if err != nil {
			return err
		}
		if !band.HasPermission(in.InviterID, models.PermissionManageMembers) ||
			!band.MayHandleRole(in.InviterID, in.Role) {
			return ErrPermissionDenied
		}
		if band.IsActiveMember(in.InvitedUserID) {
			return ErrAlreadyMember
		}
		_, err = repo.FindPendingInvitation(ctx, in.BandID, in.InvitedUserID, now)
		if err == nil {
			return ErrDuplicateInvitation
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if resolveErr != nil {
			return resolveErr
		}

		inv = &models.Invitation{
			ID:              uuid.New(),
			BandID:          band.ID,
			BandName:        band.Name,
			InvitedUserID:   in.InvitedUserID,
			InvitedUserName: invitee.DisplayName,
			InvitedBy:       in.InviterID,
			InviterName:     inviter.DisplayName,
			Role:            in.Role,
			Instruments:     normalizeInstruments(in.Instruments),
			Message:         in.Message,
			Status:          models.InvitationPending,
			Version:         1,
			CreatedAt:       now,
			ExpiresAt:       now.Add(models.InvitationTTL),
		}
		if err := repo.InsertInvitation(ctx, inv); err != nil {
			return err
		}
		return repo.AddPendingInvitation(ctx, in.InvitedUserID, inv.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invitation sent",
		zap.String("invitation_id", inv.ID.String()),
		zap.String("band_id", inv.BandID.String()),
		zap.String("invited_user_id", inv.InvitedUserID.String()),
		zap.String("role", string(inv.Role)),
	)
	return inv, nil
}

// AcceptInvitation adds the invitee to the roster with the offered role and
// instruments. Only the invitee may accept.
func (s *Service) AcceptInvitation(ctx context.Context, invitationID, actorID uuid.UUID) (*models.Invitation, *models.BandMember, error) {
	now := s.now()
	var (
		inv    *models.Invitation
		member *models.BandMember
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		inv, err = s.pendingInvitationFor(ctx, repo, invitationID, actorID)
		if err != nil {
			return err
		}
		band, err := loadActiveBand(ctx, repo, inv.BandID)
		if err != nil {
			return err
		}
		if err := s.transitionInvitation(ctx, repo, inv, models.InvitationAccepted); err != nil {
			return err
		}
		member, err = s.admit(ctx, repo, band, inv.InvitedUserID, inv.Role, inv.Instruments)
		if err != nil {
			return err
		}
		return repo.RemovePendingInvitation(ctx, inv.InvitedUserID, inv.ID)
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("invitation accepted",
		zap.String("invitation_id", inv.ID.String()),
		zap.String("band_id", inv.BandID.String()),
		zap.String("user_id", inv.InvitedUserID.String()),
		zap.Time("at", now),
	)
	return inv, member, nil
}

// DeclineInvitation closes the invitation without touching the roster.
func (s *Service) DeclineInvitation(ctx context.Context, invitationID, actorID uuid.UUID) (*models.Invitation, error) {
	var inv *models.Invitation
	err := s.store.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		inv, err = s.pendingInvitationFor(ctx, repo, invitationID, actorID)
		if err != nil {
			return err
		}
		if err := s.transitionInvitation(ctx, repo, inv, models.InvitationDeclined); err != nil {
			return err
		}
		return repo.RemovePendingInvitation(ctx, inv.InvitedUserID, inv.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invitation declined",
		zap.String("invitation_id", inv.ID.String()),
		zap.String("user_id", inv.InvitedUserID.String()),
	)
	return inv, nil
}

// GetInvitation returns the invitation with its status as of now. Only the
// invitee and members holding manage_members may read it.
func (s *Service) GetInvitation(ctx context.Context, invitationID, actorID uuid.UUID) (*models.Invitation, error) {
	inv, err := s.store.GetInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.InvitedUserID != actorID {
		if err := s.requireManager(ctx, inv.BandID, actorID); err != nil {
			return nil, err
		}
	}
	inv.Status = inv.EffectiveStatus(s.now())
	return inv, nil
}

// ListPendingInvitations returns the invitations userID can still answer.
func (s *Service) ListPendingInvitations(ctx context.Context, userID uuid.UUID) ([]*models.Invitation, error) {
	ids, err := s.store.ListPendingInvitations(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*models.Invitation{}, nil
	}
	invs, err := s.store.GetInvitations(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]*models.Invitation, 0, len(invs))
	for _, inv := range invs {
		if inv.InvitedUserID == userID && inv.EffectiveStatus(now) == models.InvitationPending {
			out = append(out, inv)
		}
	}
	return out, nil
}

// ListBandInvitations lists every invitation the band has sent. The caller
// needs manage_members.
func (s *Service) ListBandInvitations(ctx context.Context, bandID, actorID uuid.UUID) ([]*models.Invitation, error) {
	if err := s.requireManager(ctx, bandID, actorID); err != nil {
		return nil, err
	}

	invs, err := s.store.ListBandInvitations(ctx, bandID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, inv := range invs {
		inv.Status = inv.EffectiveStatus(now)
	}
	return invs, nil
}

// pendingInvitationFor loads an invitation that actorID may answer now.
func (s *Service) pendingInvitationFor(ctx context.Context, repo Repository, invitationID, actorID uuid.UUID) (*models.Invitation, error) {
	inv, err := repo.GetInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.InvitedUserID != actorID {
		return nil, ErrPermissionDenied
	}
	switch inv.EffectiveStatus(s.now()) {
	case models.InvitationPending:
		return inv, nil
	case models.InvitationExpired:
		return nil, ErrInvalidOrExpired
	default:
		return nil, errInvitationResolved
	}
}

func (s *Service) transitionInvitation(ctx context.Context, repo Repository, inv *models.Invitation, to models.InvitationStatus) error {
	err := repo.TransitionInvitation(ctx, inv, to, s.now())
	if errors.Is(err, ErrInvalidState) {
		return errInvitationResolved
	}
	return err
}
