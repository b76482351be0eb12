// Package domain contains core types for the organization service.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Organization groups users and projects under a single tenant. Exactly one
// member holds RoleOwner and that member's id equals OwnerID.
type Organization struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Slug      string       `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	OwnerID   snowflake.ID `gorm:"column:owner_id;not null" json:"owner_id"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// Invitation statuses.
const (
	InvitationPending   = "PENDING"
	InvitationAccepted  = "ACCEPTED"
	InvitationCancelled = "CANCELLED"
)

// Invitation invites an email address into an organization at a given role.
type Invitation struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	OrganizationID snowflake.ID `gorm:"column:organization_id;not null;index" json:"organization_id"`
	Email          string       `gorm:"type:text;not null" json:"email"`
	Role           string       `gorm:"type:text;not null;default:MEMBER" json:"role"`
	Token          string       `gorm:"type:text;not null;uniqueIndex:ux_org_invitations_token" json:"-"`
	Status         string       `gorm:"type:text;not null;default:PENDING" json:"status"`
	ExpiresAt      time.Time    `gorm:"column:expires_at;not null" json:"expires_at"`
	SenderID       snowflake.ID `gorm:"column:sender_id;not null" json:"sender_id"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "org_invitations" }

// Member is the view of an organization member returned to clients.
type Member struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type CreateRequest struct {
	Name string
}

type InviteRequest struct {
	Email string
	Role  Role
}

// InviteResult carries the raw invitation token so callers can build the
// acceptance link; email delivery is best-effort.
type InviteResult struct {
	Invitation *Invitation `json:"invitation"`
	AcceptURL  string      `json:"accept_url"`
}

type Service interface {
	Create(ctx context.Context, actorID snowflake.ID, req CreateRequest) (*Organization, error)
	Current(ctx context.Context, actorID snowflake.ID) (*Organization, error)
	Delete(ctx context.Context, actorID snowflake.ID) error
	ListMembers(ctx context.Context, actorID snowflake.ID) ([]Member, error)
	ChangeMemberRole(ctx context.Context, actorID, targetID snowflake.ID, role Role) error
	RemoveMember(ctx context.Context, actorID, targetID snowflake.ID) error
	Invite(ctx context.Context, actorID snowflake.ID, req InviteRequest) (*InviteResult, error)
	ListInvitations(ctx context.Context, actorID snowflake.ID) ([]Invitation, error)
	CancelInvitation(ctx context.Context, actorID, invitationID snowflake.ID) error
	AcceptInvitation(ctx context.Context, actorID snowflake.ID, rawToken string) (*Organization, error)
}

// Repository persists organizations and invitations. WithTx returns a copy
// bound to the given transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrganization(ctx context.Context, org *Organization) error
	FindByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	DeleteOrganization(ctx context.Context, id snowflake.ID) error

	ListMembers(ctx context.Context, orgID snowflake.ID) ([]Member, error)
	SetMembership(ctx context.Context, userID snowflake.ID, orgID *snowflake.ID, role Role) error
	ClearMemberships(ctx context.Context, orgID snowflake.ID) error

	ReparentUserProjects(ctx context.Context, userID snowflake.ID, orgID *snowflake.ID) error
	DetachOrgProjects(ctx context.Context, orgID snowflake.ID) error

	CreateInvitation(ctx context.Context, inv *Invitation) error
	FindInvitationByID(ctx context.Context, id snowflake.ID) (*Invitation, error)
	FindInvitationByToken(ctx context.Context, token string) (*Invitation, error)
	ListInvitations(ctx context.Context, orgID snowflake.ID, status string) ([]Invitation, error)
	UpdateInvitationStatus(ctx context.Context, id snowflake.ID, status string) error
	HasPendingInvitation(ctx context.Context, orgID snowflake.ID, email string) (bool, error)
}
