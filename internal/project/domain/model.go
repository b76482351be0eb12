// Package domain contains core types for the project service.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Project is a container for tasks and time entries. OrganizationID is set
// while the owner belongs to an organization and cleared when the
// organization is deleted.
type Project struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	Name           string        `gorm:"type:text;not null" json:"name"`
	Description    string        `gorm:"type:text;not null;default:''" json:"description"`
	Color          string        `gorm:"type:text;not null;default:#6366f1" json:"color"`
	Archived       bool          `gorm:"not null;default:false" json:"archived"`
	OwnerID        snowflake.ID  `gorm:"column:owner_id;not null;index" json:"owner_id"`
	OrganizationID *snowflake.ID `gorm:"column:organization_id;index" json:"organization_id,omitempty"`
	HourlyRate     *float64      `gorm:"column:hourly_rate" json:"hourly_rate,omitempty"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Project) TableName() string { return "projects" }

// Project member roles. Distinct from organization roles: a project MEMBER
// can contribute entries but has no owner-level control.
const (
	MemberRoleOwner  = "OWNER"
	MemberRoleMember = "MEMBER"
)

// Member links a user to a project. The owner gets a Member row with
// MemberRoleOwner at project creation.
type Member struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	ProjectID snowflake.ID `gorm:"column:project_id;not null;uniqueIndex:ux_project_members_pair" json:"project_id"`
	UserID    snowflake.ID `gorm:"column:user_id;not null;uniqueIndex:ux_project_members_pair" json:"user_id"`
	Role      string       `gorm:"type:text;not null;default:MEMBER" json:"role"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Member) TableName() string { return "project_members" }

// Task is a unit of work within a project.
type Task struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ProjectID   snowflake.ID `gorm:"column:project_id;not null;index" json:"project_id"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	Description string       `gorm:"type:text;not null;default:''" json:"description"`
	Completed   bool         `gorm:"not null;default:false" json:"completed"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Task) TableName() string { return "tasks" }

// Favorite marks a project as a user's favorite.
type Favorite struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"column:user_id;not null;uniqueIndex:ux_favorite_projects_pair" json:"user_id"`
	ProjectID snowflake.ID `gorm:"column:project_id;not null;uniqueIndex:ux_favorite_projects_pair" json:"project_id"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Favorite) TableName() string { return "favorite_projects" }

// Invitation statuses.
const (
	InvitationPending   = "PENDING"
	InvitationAccepted  = "ACCEPTED"
	InvitationCancelled = "CANCELLED"
)

// Invitation invites an email address to join a project as a member.
type Invitation struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	ProjectID snowflake.ID `gorm:"column:project_id;not null;index" json:"project_id"`
	Email     string       `gorm:"type:text;not null" json:"email"`
	Token     string       `gorm:"type:text;not null;uniqueIndex:ux_project_invitations_token" json:"-"`
	Status    string       `gorm:"type:text;not null;default:PENDING" json:"status"`
	ExpiresAt time.Time    `gorm:"column:expires_at;not null" json:"expires_at"`
	SenderID  snowflake.ID `gorm:"column:sender_id;not null" json:"sender_id"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "project_invitations" }

type CreateRequest struct {
	Name        string
	Description string
	Color       string
	HourlyRate  *float64
}

type UpdateRequest struct {
	Name        *string
	Description *string
	Color       *string
	Archived    *bool
	HourlyRate  *float64
}

type TaskCreateRequest struct {
	Name        string
	Description string
}

type TaskUpdateRequest struct {
	Name        *string
	Description *string
	Completed   *bool
}

type InviteResult struct {
	Invitation *Invitation `json:"invitation"`
	AcceptURL  string      `json:"accept_url"`
}

type Service interface {
	Create(ctx context.Context, ownerID snowflake.ID, req CreateRequest) (*Project, error)
	List(ctx context.Context, userID snowflake.ID) ([]Project, error)
	Get(ctx context.Context, userID, projectID snowflake.ID) (*Project, error)
	Update(ctx context.Context, userID, projectID snowflake.ID, req UpdateRequest) (*Project, error)
	Delete(ctx context.Context, userID, projectID snowflake.ID) error

	// Access implements the read rule (owner, project member, or same
	// organization). Modify is strictly owner-only.
	Access(ctx context.Context, userID, projectID snowflake.ID) (*Project, error)
	Modify(ctx context.Context, userID, projectID snowflake.ID) (*Project, error)

	ListTasks(ctx context.Context, userID, projectID snowflake.ID) ([]Task, error)
	CreateTask(ctx context.Context, userID, projectID snowflake.ID, req TaskCreateRequest) (*Task, error)
	UpdateTask(ctx context.Context, userID, projectID, taskID snowflake.ID, req TaskUpdateRequest) (*Task, error)
	DeleteTask(ctx context.Context, userID, projectID, taskID snowflake.ID) error

	ListFavorites(ctx context.Context, userID snowflake.ID) ([]Project, error)
	AddFavorite(ctx context.Context, userID, projectID snowflake.ID) error
	RemoveFavorite(ctx context.Context, userID, projectID snowflake.ID) error

	Invite(ctx context.Context, userID, projectID snowflake.ID, email string) (*InviteResult, error)
	ListInvitations(ctx context.Context, userID, projectID snowflake.ID) ([]Invitation, error)
	CancelInvitation(ctx context.Context, userID, projectID, invitationID snowflake.ID) error
	AcceptInvitation(ctx context.Context, userID snowflake.ID, rawToken string) (*Project, error)

	ListMembers(ctx context.Context, userID, projectID snowflake.ID) ([]Member, error)
	RemoveMember(ctx context.Context, userID, projectID, memberUserID snowflake.ID) error
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, project *Project) error
	FindByID(ctx context.Context, id snowflake.ID) (*Project, error)
	ListVisible(ctx context.Context, userID snowflake.ID, orgID *snowflake.ID) ([]Project, error)
	Update(ctx context.Context, id snowflake.ID, fields map[string]any) error
	Delete(ctx context.Context, id snowflake.ID) error

	IsMember(ctx context.Context, projectID, userID snowflake.ID) (bool, error)
	OwnsProjectWith(ctx context.Context, ownerID, memberID snowflake.ID) (bool, error)
	AddMember(ctx context.Context, member *Member) error
	ListProjectMembers(ctx context.Context, projectID snowflake.ID) ([]Member, error)
	RemoveProjectMember(ctx context.Context, projectID, userID snowflake.ID) error

	CreateTask(ctx context.Context, task *Task) error
	FindTask(ctx context.Context, projectID, taskID snowflake.ID) (*Task, error)
	ListTasks(ctx context.Context, projectID snowflake.ID) ([]Task, error)
	UpdateTask(ctx context.Context, id snowflake.ID, fields map[string]any) error
	DeleteTask(ctx context.Context, id snowflake.ID) error

	AddFavorite(ctx context.Context, fav *Favorite) error
	RemoveFavorite(ctx context.Context, userID, projectID snowflake.ID) error
	ListFavoriteProjects(ctx context.Context, userID snowflake.ID) ([]Project, error)

	CreateInvitation(ctx context.Context, inv *Invitation) error
	FindInvitationByID(ctx context.Context, id snowflake.ID) (*Invitation, error)
	FindInvitationByToken(ctx context.Context, token string) (*Invitation, error)
	ListInvitations(ctx context.Context, projectID snowflake.ID) ([]Invitation, error)
	UpdateInvitationStatus(ctx context.Context, id snowflake.ID, status string) error
	HasPendingInvitation(ctx context.Context, projectID snowflake.ID, email string) (bool, error)
}
