package membership

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bananalabs-oss/bandroom/internal/models"
)

// ReconcileReport counts the repairs made by one reconciliation pass.
type ReconcileReport struct {
	BandIndexAdded      int `json:"band_index_added"`
	BandIndexRemoved    int `json:"band_index_removed"`
	PendingIndexAdded   int `json:"pending_index_added"`
	PendingIndexRemoved int `json:"pending_index_removed"`
	InvitationsExpired  int `json:"invitations_expired"`
}

func (r ReconcileReport) Changed() bool {
	return r != ReconcileReport{}
}

type indexKey struct {
	user uuid.UUID
	ref  uuid.UUID
}

// Reconcile brings the per-user index back in line with the rosters and
// invitations, and records lazily-expired invitations as expired. It is
// idempotent; a second run right after the first reports no changes.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	now := s.now()

	// One snapshot for every scan: a membership committed between two of
	// them must not read as a stale index row.
	err := s.store.RunInSnapshot(ctx, func(ctx context.Context, repo Repository) error {
		report = ReconcileReport{}

		members, err := repo.ListActiveMemberships(ctx)
		if err != nil {
			return err
		}
		want := make(map[indexKey]bool, len(members))
		for _, m := range members {
			want[indexKey{m.UserID, m.BandID}] = true
		}

		indexed, err := repo.ListIndexedBands(ctx)
		if err != nil {
			return err
		}
		have := make(map[indexKey]bool, len(indexed))
		for _, row := range indexed {
			k := indexKey{row.UserID, row.BandID}
			have[k] = true
			if !want[k] {
				if err := repo.RemoveBand(ctx, row.UserID, row.BandID); err != nil {
					return err
				}
				report.BandIndexRemoved++
			}
		}
		for k := range want {
			if !have[k] {
				if err := repo.AddBand(ctx, k.user, k.ref); err != nil {
					return err
				}
				report.BandIndexAdded++
			}
		}

		pending, err := repo.ListStoredPendingInvitations(ctx)
		if err != nil {
			return err
		}
		live := make(map[indexKey]bool, len(pending))
		for _, inv := range pending {
			if inv.EffectiveStatus(now) == models.InvitationExpired {
				if err := repo.TransitionInvitation(ctx, inv, models.InvitationExpired, now); err != nil {
					return err
				}
				report.InvitationsExpired++
				continue
			}
			live[indexKey{inv.InvitedUserID, inv.ID}] = true
		}

		indexedPending, err := repo.ListIndexedPendingInvitations(ctx)
		if err != nil {
			return err
		}
		havePending := make(map[indexKey]bool, len(indexedPending))
		for _, row := range indexedPending {
			k := indexKey{row.UserID, row.InvitationID}
			havePending[k] = true
			if !live[k] {
				if err := repo.RemovePendingInvitation(ctx, row.UserID, row.InvitationID); err != nil {
					return err
				}
				report.PendingIndexRemoved++
			}
		}
		for k := range live {
			if !havePending[k] {
				if err := repo.AddPendingInvitation(ctx, k.user, k.ref); err != nil {
					return err
				}
				report.PendingIndexAdded++
			}
		}
		return nil
	})
	if err != nil {
		return ReconcileReport{}, err
	}

	if report.Changed() {
		s.logger.Info("reconciliation repaired index",
			zap.Int("band_index_added", report.BandIndexAdded),
			zap.Int("band_index_removed", report.BandIndexRemoved),
			zap.Int("pending_index_added", report.PendingIndexAdded),
			zap.Int("pending_index_removed", report.PendingIndexRemoved),
			zap.Int("invitations_expired", report.InvitationsExpired),
		)
	}
	return report, nil
}

// RunReconciler runs Reconcile every interval until ctx is cancelled.
func (s *Service) RunReconciler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Reconcile(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("reconciliation failed", zap.Error(err))
			}
		}
	}
}
