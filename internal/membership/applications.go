package membership

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bananalabs-oss/bandroom/internal/models"
)

type ApplicationInput struct {
	BandID      uuid.UUID
	ApplicantID uuid.UUID
	Role        models.Role
	Instruments []string
	Message     string
}

// SubmitApplication records a request to join. It is self-service: the only
// precondition is that the applicant is not already an active member.
// Applications do not expire.
func (s *Service) SubmitApplication(ctx context.Context, in ApplicationInput) (*models.Application, error) {
	if !IsValidRole(in.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	applicant, resolveErr := s.resolveUser(ctx, in.ApplicantID)

	now := s.now()
	var app *models.Application
	err := s.store.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		band, err := loadActiveBand(ctx, repo, in.BandID)
		if err != nil {
			return err
		}
		if band.IsActiveMember(in.ApplicantID) {
			return ErrAlreadyMember
		}
		if resolveErr != nil {
			return resolveErr
		}

		app = &models.Application{
			ID:              uuid.New(),
			BandID:          band.ID,
			BandName:        band.Name,
			ApplicantUserID: in.ApplicantID,
			ApplicantName:   applicant.DisplayName,
			Role:            in.Role,
			Instruments:     normalizeInstruments(in.Instruments),
			Message:         in.Message,
			Status:          models.ApplicationPending,
			Version:         1,
			CreatedAt:       now,
		}
		return repo.InsertApplication(ctx, app)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("application submitted",
		zap.String("application_id", app.ID.String()),
		zap.String("band_id", app.BandID.String()),
		zap.String("applicant_id", app.ApplicantUserID.String()),
	)
	return app, nil
}

// AcceptApplication adds the applicant with the requested role and
// instruments. The responder needs manage_members and may not admit anyone
// above their own role.
func (s *Service) AcceptApplication(ctx context.Context, applicationID, responderID uuid.UUID, responseMessage string) (*models.Application, *models.BandMember, error) {
	var (
		app    *models.Application
		member *models.BandMember
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		var (
			band *Band
			err  error
		)
		app, band, err = s.pendingApplicationFor(ctx, repo, applicationID, responderID)
		if err != nil {
			return err
		}
		if !band.MayHandleRole(responderID, app.Role) {
			return ErrPermissionDenied
		}
		if err := s.respond(ctx, repo, app, responderID, responseMessage, models.ApplicationAccepted); err != nil {
			return err
		}
		member, err = s.admit(ctx, repo, band, app.ApplicantUserID, app.Role, app.Instruments)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("application accepted",
		zap.String("application_id", app.ID.String()),
		zap.String("band_id", app.BandID.String()),
		zap.String("user_id", app.ApplicantUserID.String()),
		zap.String("responder_id", responderID.String()),
	)
	return app, member, nil
}

// RejectApplication closes the application without touching the roster.
func (s *Service) RejectApplication(ctx context.Context, applicationID, responderID uuid.UUID, responseMessage string) (*models.Application, error) {
	var app *models.Application
	err := s.store.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		app, _, err = s.pendingApplicationFor(ctx, repo, applicationID, responderID)
		if err != nil {
			return err
		}
		return s.respond(ctx, repo, app, responderID, responseMessage, models.ApplicationRejected)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("application rejected",
		zap.String("application_id", app.ID.String()),
		zap.String("responder_id", responderID.String()),
	)
	return app, nil
}

// GetApplication returns a single application to the applicant or to a
// member holding manage_members.
func (s *Service) GetApplication(ctx context.Context, applicationID, actorID uuid.UUID) (*models.Application, error) {
	app, err := s.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.ApplicantUserID != actorID {
		if err := s.requireManager(ctx, app.BandID, actorID); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// ListBandApplications lists applications to the band. The caller needs
// manage_members.
func (s *Service) ListBandApplications(ctx context.Context, bandID, actorID uuid.UUID) ([]*models.Application, error) {
	if err := s.requireManager(ctx, bandID, actorID); err != nil {
		return nil, err
	}
	return s.store.ListBandApplications(ctx, bandID)
}

// pendingApplicationFor loads the application and its band, then checks the
// responder's permission before the application state.
func (s *Service) pendingApplicationFor(ctx context.Context, repo Repository, applicationID, responderID uuid.UUID) (*models.Application, *Band, error) {
	app, err := repo.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, nil, err
	}
	band, err := loadActiveBand(ctx, repo, app.BandID)
	if err != nil {
		return nil, nil, err
	}
	if !band.HasPermission(responderID, models.PermissionManageMembers) {
		return nil, nil, ErrPermissionDenied
	}
	if app.Status != models.ApplicationPending {
		return nil, nil, fmt.Errorf("application %w", ErrInvalidState)
	}
	return app, band, nil
}

func (s *Service) respond(ctx context.Context, repo Repository, app *models.Application, responderID uuid.UUID, message string, to models.ApplicationStatus) error {
	now := s.now()
	app.ResponseMessage = message
	app.RespondedBy = &responderID
	app.RespondedAt = &now
	return repo.TransitionApplication(ctx, app, to)
}
