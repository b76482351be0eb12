// Package domain contains core types for time templates.
package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TimeTemplate is a read-only blueprint for creating time entries on demand.
// At most one template per user carries IsDefault.
type TimeTemplate struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id"`
	UserID          snowflake.ID   `gorm:"column:user_id;not null;index" json:"user_id"`
	ProjectID       snowflake.ID   `gorm:"column:project_id;not null" json:"project_id"`
	Name            string         `gorm:"type:text;not null" json:"name"`
	Activity        string         `gorm:"type:text;not null;default:''" json:"activity"`
	Subtask         string         `gorm:"type:text;not null;default:''" json:"subtask"`
	Description     string         `gorm:"type:text;not null;default:''" json:"description"`
	Tags            datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"tags"`
	DurationSeconds int64          `gorm:"column:duration_seconds;not null;default:0" json:"duration_seconds"`
	Billable        bool           `gorm:"not null;default:false" json:"billable"`
	IsDefault       bool           `gorm:"column:is_default;not null;default:false" json:"is_default"`
	CreatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (TimeTemplate) TableName() string { return "time_templates" }

// TagList decodes the stored tag array.
func (t *TimeTemplate) TagList() []string {
	var tags []string
	if err := json.Unmarshal(t.Tags, &tags); err != nil {
		return nil
	}
	return tags
}

type CreateRequest struct {
	ProjectID       snowflake.ID
	Name            string
	Activity        string
	Subtask         string
	Description     string
	Tags            []string
	DurationSeconds int64
	Billable        bool
	IsDefault       bool
}

type UpdateRequest struct {
	Name            *string
	Activity        *string
	Subtask         *string
	Description     *string
	Tags            []string
	DurationSeconds *int64
	Billable        *bool
	IsDefault       *bool
}

type Service interface {
	List(ctx context.Context, userID snowflake.ID) ([]TimeTemplate, error)
	Create(ctx context.Context, userID snowflake.ID, req CreateRequest) (*TimeTemplate, error)
	Update(ctx context.Context, userID, id snowflake.ID, req UpdateRequest) (*TimeTemplate, error)
	Delete(ctx context.Context, userID, id snowflake.ID) error

	// Instantiate creates a time entry from the template: a completed entry
	// ending now when the template has a duration, otherwise a running
	// timer.
	Instantiate(ctx context.Context, userID, id snowflake.ID) (snowflake.ID, error)
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, tmpl *TimeTemplate) error
	FindByID(ctx context.Context, id snowflake.ID) (*TimeTemplate, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]TimeTemplate, error)
	Update(ctx context.Context, id snowflake.ID, fields map[string]any) error
	ClearDefault(ctx context.Context, userID snowflake.ID) error
	Delete(ctx context.Context, id snowflake.ID) error
}
