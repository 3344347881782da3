package membership

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/bananalabs-oss/bandroom/internal/models"
)

// Band wraps a persisted band and indexes its active roster by user id.
// All roster changes go through its methods so the leader and uniqueness
// invariants are checked on every mutation.
type Band struct {
	*models.Band

	active map[uuid.UUID]*models.BandMember
}

// NewBand builds the aggregate from a loaded band and its member records.
func NewBand(b *models.Band) *Band {
	band := &Band{
		Band:   b,
		active: make(map[uuid.UUID]*models.BandMember, len(b.Members)),
	}
	for _, m := range b.Members {
		if m.IsActive {
			band.active[m.UserID] = m
		}
	}
	return band
}

// Member returns the active record for userID.
func (b *Band) Member(userID uuid.UUID) (*models.BandMember, bool) {
	m, ok := b.active[userID]
	return m, ok
}

// IsActiveMember reports whether userID currently belongs to the band.
func (b *Band) IsActiveMember(userID uuid.UUID) bool {
	_, ok := b.active[userID]
	return ok
}

// ActiveMembers returns active records in roster order.
func (b *Band) ActiveMembers() []*models.BandMember {
	out := make([]*models.BandMember, 0, len(b.active))
	for _, m := range b.Members {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out
}

// ActiveLeaders counts active members holding the leader role.
func (b *Band) ActiveLeaders() int {
	n := 0
	for _, m := range b.active {
		if m.Role == models.RoleLeader {
			n++
		}
	}
	return n
}

// HasPermission decides whether userID may exercise permission on the band.
// Non-members and removed members hold nothing; leaders hold everything
// regardless of their stored set.
func (b *Band) HasPermission(userID uuid.UUID, permission models.Permission) bool {
	m, ok := b.active[userID]
	if !ok {
		return false
	}
	if m.Role == models.RoleLeader {
		return true
	}
	return slices.Contains(m.Permissions, permission)
}

// MayHandleRole reports whether actorID, an active member, may grant role or
// act on a member who holds it. Nobody handles a role above their own, so
// leadership changes hands only through leaders.
func (b *Band) MayHandleRole(actorID uuid.UUID, role models.Role) bool {
	actor, ok := b.active[actorID]
	return ok && !Outranks(role, actor.Role)
}

// HasPermission is the gate consulted by every mutating operation. A nil
// band grants nothing.
func HasPermission(band *Band, userID uuid.UUID, permission models.Permission) bool {
	if band == nil {
		return false
	}
	return band.HasPermission(userID, permission)
}

// addMember appends a new active record. A user with an active record is
// rejected; historical inactive records are left untouched.
func (b *Band) addMember(userID uuid.UUID, role models.Role, instruments []string, at time.Time) (*models.BandMember, error) {
	if !IsValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if b.IsActiveMember(userID) {
		return nil, ErrAlreadyMember
	}

	m := &models.BandMember{
		ID:          uuid.New(),
		BandID:      b.ID,
		UserID:      userID,
		Role:        role,
		Instruments: normalizeInstruments(instruments),
		Permissions: DefaultPermissions(role),
		JoinedAt:    at,
		IsActive:    true,
	}
	b.Members = append(b.Members, m)
	b.active[userID] = m
	return m, nil
}

// deactivateMember soft-removes the active record for userID.
func (b *Band) deactivateMember(userID, removedBy uuid.UUID, at time.Time) (*models.BandMember, error) {
	m, ok := b.active[userID]
	if !ok {
		return nil, fmt.Errorf("member %w", ErrNotFound)
	}
	if m.Role == models.RoleLeader && b.ActiveLeaders() <= 1 {
		return nil, ErrLastLeader
	}

	m.IsActive = false
	m.LeftAt = &at
	m.RemovedBy = &removedBy
	delete(b.active, userID)
	return m, nil
}

// changeRole moves an active member to a new role and resets their
// permissions to the role defaults.
func (b *Band) changeRole(userID uuid.UUID, role models.Role) (*models.BandMember, error) {
	if !IsValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	m, ok := b.active[userID]
	if !ok {
		return nil, fmt.Errorf("member %w", ErrNotFound)
	}
	if m.Role == models.RoleLeader && role != models.RoleLeader && b.ActiveLeaders() <= 1 {
		return nil, ErrLastLeader
	}

	m.Role = role
	m.Permissions = DefaultPermissions(role)
	return m, nil
}

// checkInvariants verifies the aggregate-level rules. It is run before
// every roster save.
func (b *Band) checkInvariants() error {
	if b.IsActive && b.ActiveLeaders() < 1 {
		return fmt.Errorf("band %s: %w", b.ID, ErrLastLeader)
	}
	seen := make(map[uuid.UUID]bool, len(b.active))
	for _, m := range b.Members {
		if !m.IsActive {
			continue
		}
		if seen[m.UserID] {
			return fmt.Errorf("band %s: user %s has two active records: %w", b.ID, m.UserID, ErrAlreadyMember)
		}
		seen[m.UserID] = true
	}
	return nil
}

func normalizeInstruments(instruments []string) []string {
	out := make([]string, 0, len(instruments))
	for _, in := range instruments {
		if in == "" || slices.Contains(out, in) {
			continue
		}
		out = append(out, in)
	}
	return out
}
