// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User represents a system user account. Organization membership lives on
// the user row: a user belongs to at most one organization, and OrgRole is
// meaningful only while OrganizationID is set.
type User struct {
	ID                  snowflake.ID `gorm:"primaryKey"`
	Name                string       `gorm:"type:text;not null"`
	Email               string       `gorm:"type:text;not null;uniqueIndex:ux_users_email"`
	PasswordHash        *string      `gorm:"type:text"`
	OrganizationID      *snowflake.ID `gorm:"column:organization_id;index"`
	OrgRole             string       `gorm:"column:org_role;type:text;not null;default:MEMBER"`
	ResetTokenHash      *string      `gorm:"column:reset_token_hash;type:text"`
	ResetTokenExpiresAt *time.Time   `gorm:"column:reset_token_expires_at"`
	CreatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Session represents a persisted login session.
type Session struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	UserID           snowflake.ID `gorm:"column:user_id;not null;index"`
	SessionTokenHash string       `gorm:"column:session_token_hash;type:text;not null;uniqueIndex"`
	UserAgent        string       `gorm:"column:user_agent;type:text"`
	IPAddress        string       `gorm:"column:ip_address;type:text"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time   `gorm:"column:revoked_at"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	LastSeenAt       time.Time    `gorm:"column:last_seen_at;not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }

// UserView is returned to clients without exposing credential material.
type UserView struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	OrganizationID *string `json:"organization_id,omitempty"`
	OrgRole        string  `json:"org_role,omitempty"`
}

func NewUserView(u *User) *UserView {
	if u == nil {
		return nil
	}
	view := &UserView{
		ID:    u.ID.String(),
		Name:  u.Name,
		Email: u.Email,
	}
	if u.OrganizationID != nil {
		orgID := u.OrganizationID.String()
		view.OrganizationID = &orgID
		view.OrgRole = u.OrgRole
	}
	return view
}
