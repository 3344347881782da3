package membership

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied    = errors.New("permission denied")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyMember       = errors.New("user is already an active member")
	ErrDuplicateInvitation = errors.New("a pending invitation already exists for this user")
	ErrInvalidOrExpired    = errors.New("invitation is no longer pending or has expired")
	ErrInvalidState        = errors.New("already resolved")
	ErrLastLeader          = errors.New("cannot remove or demote the last leader")
	ErrInvalidInput        = errors.New("invalid input")
	ErrBandInactive        = errors.New("band is inactive")

	// ErrConcurrentModification means another writer changed the band
	// between load and save. It is an infrastructure error; the caller may
	// retry the whole operation.
	ErrConcurrentModification = errors.New("band was modified concurrently")
)

// errInvitationResolved matches both ErrInvalidState and ErrInvalidOrExpired,
// so callers checking either kind see an already-answered invitation.
var errInvitationResolved = fmt.Errorf("invitation %w: %w", ErrInvalidState, ErrInvalidOrExpired)
