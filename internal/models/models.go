package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role is a member's standing inside a band. Leader > Admin > Member > Guest.
type Role string

const (
	RoleLeader Role = "leader"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleGuest  Role = "guest"
)

// Permission is one of the fixed capabilities a member can hold.
type Permission string

const (
	PermissionManageMembers Permission = "manage_members"
	PermissionManageVideos  Permission = "manage_videos"
	PermissionManageProfile Permission = "manage_profile"
	PermissionManageGigs    Permission = "manage_gigs"
	PermissionViewAnalytics Permission = "view_analytics"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

// InvitationTTL is how long an invitation stays answerable after it is sent.
const InvitationTTL = 7 * 24 * time.Hour

type Band struct {
	bun.BaseModel `bun:"table:bands,alias:b"`

	ID          uuid.UUID         `bun:"id,pk,type:text"              json:"id"`
	Name        string            `bun:"name,notnull"                 json:"name"`
	Bio         string            `bun:"bio"                          json:"bio,omitempty"`
	Location    string            `bun:"location"                     json:"location,omitempty"`
	Genres      []string          `bun:"genres"                       json:"genres,omitempty"`
	SocialLinks map[string]string `bun:"social_links"                 json:"social_links,omitempty"`
	ImageRef    string            `bun:"image_ref"                    json:"image_ref,omitempty"`
	IsActive    bool              `bun:"is_active,notnull"            json:"is_active"`
	CreatedBy   uuid.UUID         `bun:"created_by,notnull,type:text" json:"created_by"`
	Version     int64             `bun:"version,notnull"              json:"version"`
	CreatedAt   time.Time         `bun:"created_at,nullzero,notnull"  json:"created_at"`
	UpdatedAt   time.Time         `bun:"updated_at,nullzero,notnull"  json:"updated_at"`

	Members []*BandMember `bun:"rel:has-many,join:id=band_id" json:"members,omitempty"`
}

// BandMember is one membership record. Removal flips IsActive instead of
// deleting the row, so a user can have several historical records but at
// most one active one per band.
type BandMember struct {
	bun.BaseModel `bun:"table:band_members,alias:bm"`

	ID          uuid.UUID    `bun:"id,pk,type:text"              json:"id"`
	BandID      uuid.UUID    `bun:"band_id,notnull,type:text"    json:"band_id"`
	UserID      uuid.UUID    `bun:"user_id,notnull,type:text"    json:"user_id"`
	Role        Role         `bun:"role,notnull"                 json:"role"`
	Instruments []string     `bun:"instruments"                  json:"instruments"`
	Permissions []Permission `bun:"permissions"                  json:"permissions"`
	JoinedAt    time.Time    `bun:"joined_at,nullzero,notnull"   json:"joined_at"`
	IsActive    bool         `bun:"is_active,notnull"            json:"is_active"`
	LeftAt      *time.Time   `bun:"left_at"                      json:"left_at,omitempty"`
	RemovedBy   *uuid.UUID   `bun:"removed_by,type:text"         json:"removed_by,omitempty"`
}

type Invitation struct {
	bun.BaseModel `bun:"table:invitations,alias:inv"`

	ID              uuid.UUID        `bun:"id,pk,type:text"                  json:"id"`
	BandID          uuid.UUID        `bun:"band_id,notnull,type:text"        json:"band_id"`
	BandName        string           `bun:"band_name,notnull"                json:"band_name"`
	InvitedUserID   uuid.UUID        `bun:"invited_user_id,notnull,type:text" json:"invited_user_id"`
	InvitedUserName string           `bun:"invited_user_name"                json:"invited_user_name,omitempty"`
	InvitedBy       uuid.UUID        `bun:"invited_by,notnull,type:text"     json:"invited_by"`
	InviterName     string           `bun:"inviter_name"                     json:"inviter_name,omitempty"`
	Role            Role             `bun:"role,notnull"                     json:"role"`
	Instruments     []string         `bun:"instruments"                      json:"instruments"`
	Message         string           `bun:"message"                          json:"message,omitempty"`
	Status          InvitationStatus `bun:"status,notnull"                   json:"status"`
	Version         int64            `bun:"version,notnull"                  json:"version"`
	CreatedAt       time.Time        `bun:"created_at,nullzero,notnull"      json:"created_at"`
	ExpiresAt       time.Time        `bun:"expires_at,nullzero,notnull"      json:"expires_at"`
	RespondedAt     *time.Time       `bun:"responded_at"                     json:"responded_at,omitempty"`
}

// EffectiveStatus reports the status as of now. A stored pending invitation
// whose TTL has elapsed reads as expired.
func (i *Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if i.Status == InvitationPending && now.After(i.ExpiresAt) {
		return InvitationExpired
	}
	return i.Status
}

type Application struct {
	bun.BaseModel `bun:"table:applications,alias:app"`

	ID              uuid.UUID         `bun:"id,pk,type:text"                json:"id"`
	BandID          uuid.UUID         `bun:"band_id,notnull,type:text"      json:"band_id"`
	BandName        string            `bun:"band_name,notnull"              json:"band_name"`
	ApplicantUserID uuid.UUID         `bun:"applicant_user_id,notnull,type:text" json:"applicant_user_id"`
	ApplicantName   string            `bun:"applicant_name"                 json:"applicant_name,omitempty"`
	Role            Role              `bun:"role,notnull"                   json:"role"`
	Instruments     []string          `bun:"instruments"                    json:"instruments"`
	Message         string            `bun:"message"                        json:"message,omitempty"`
	ResponseMessage string            `bun:"response_message"               json:"response_message,omitempty"`
	RespondedBy     *uuid.UUID        `bun:"responded_by,type:text"         json:"responded_by,omitempty"`
	Status          ApplicationStatus `bun:"status,notnull"                 json:"status"`
	Version         int64             `bun:"version,notnull"                json:"version"`
	CreatedAt       time.Time         `bun:"created_at,nullzero,notnull"    json:"created_at"`
	RespondedAt     *time.Time        `bun:"responded_at"                   json:"responded_at,omitempty"`
}

// UserBand and UserPendingInvitation form the per-user index. They are
// derived from the roster and the invitations table and never authoritative.
type UserBand struct {
	bun.BaseModel `bun:"table:user_bands,alias:ub"`

	UserID  uuid.UUID `bun:"user_id,pk,type:text"        json:"user_id"`
	BandID  uuid.UUID `bun:"band_id,pk,type:text"        json:"band_id"`
	AddedAt time.Time `bun:"added_at,nullzero,notnull"   json:"added_at"`
}

type UserPendingInvitation struct {
	bun.BaseModel `bun:"table:user_pending_invitations,alias:upi"`

	UserID       uuid.UUID `bun:"user_id,pk,type:text"       json:"user_id"`
	InvitationID uuid.UUID `bun:"invitation_id,pk,type:text" json:"invitation_id"`
	AddedAt      time.Time `bun:"added_at,nullzero,notnull"  json:"added_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
