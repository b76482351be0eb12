// Package domain contains core types for the time-entry service.
package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tracklight/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TimeEntry records time a user spent on a project. A nil EndTime marks a
// running timer; DurationSeconds is nil while running. At most one entry per
// user may be running at any instant, enforced by a partial unique index.
type TimeEntry struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id"`
	UserID          snowflake.ID   `gorm:"column:user_id;not null;index:ix_time_entries_user_start" json:"user_id"`
	ProjectID       snowflake.ID   `gorm:"column:project_id;not null;index" json:"project_id"`
	TaskID          *snowflake.ID  `gorm:"column:task_id" json:"task_id,omitempty"`
	StartTime       time.Time      `gorm:"column:start_time;not null;index:ix_time_entries_user_start" json:"start_time"`
	EndTime         *time.Time     `gorm:"column:end_time" json:"end_time,omitempty"`
	DurationSeconds *int64         `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`
	Billable        bool           `gorm:"not null;default:false" json:"billable"`
	Activity        string         `gorm:"type:text;not null;default:''" json:"activity"`
	Subtask         string         `gorm:"type:text;not null;default:''" json:"subtask"`
	Notes           string         `gorm:"type:text;not null;default:''" json:"notes"`
	Description     string         `gorm:"type:text;not null;default:''" json:"description"`
	Tags            datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"tags"`
	CreatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (TimeEntry) TableName() string { return "time_entries" }

// Running reports whether the entry is an active timer.
func (e *TimeEntry) Running() bool { return e.EndTime == nil }

// TagList decodes the stored tag array.
func (e *TimeEntry) TagList() []string {
	var tags []string
	if err := json.Unmarshal(e.Tags, &tags); err != nil {
		return nil
	}
	return tags
}

// TagsValue encodes a tag list for storage.
func TagsValue(tags []string) datatypes.JSON {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(b)
}

// Comment is attached to a time entry. Visibility follows the entry.
type Comment struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	EntryID   snowflake.ID `gorm:"column:entry_id;not null;index" json:"entry_id"`
	UserID    snowflake.ID `gorm:"column:user_id;not null" json:"user_id"`
	Content   string       `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Comment) TableName() string { return "entry_comments" }

type CreateRequest struct {
	ProjectID   snowflake.ID
	TaskID      *snowflake.ID
	StartTime   time.Time
	EndTime     *time.Time
	Billable    bool
	Activity    string
	Subtask     string
	Notes       string
	Description string
	Tags        []string
}

type UpdateRequest struct {
	TaskID      *snowflake.ID
	StartTime   *time.Time
	EndTime     *time.Time
	Billable    *bool
	Activity    *string
	Subtask     *string
	Notes       *string
	Description *string
	Tags        []string
}

// VisibilityOpts selects whose entries a read query covers. See ListQuery.
type VisibilityOpts struct {
	AllMembers   bool
	TargetUserID *snowflake.ID
}

type ListQuery struct {
	Visibility VisibilityOpts
	From       *time.Time
	To         *time.Time
	ProjectID  *snowflake.ID
	Pagination pagination.Pagination
}

type StartRequest struct {
	ProjectID   snowflake.ID
	TaskID      *snowflake.ID
	Activity    string
	Subtask     string
	Description string
	Tags        []string
}

type SummaryQuery struct {
	Visibility VisibilityOpts
	From       *time.Time
	To         *time.Time
	ProjectID  *snowflake.ID
}

// SummaryRow aggregates completed entries per project and user.
type SummaryRow struct {
	ProjectID       snowflake.ID `json:"project_id" gorm:"column:project_id"`
	UserID          snowflake.ID `json:"user_id" gorm:"column:user_id"`
	TotalSeconds    int64        `json:"total_seconds" gorm:"column:total_seconds"`
	BillableSeconds int64        `json:"billable_seconds" gorm:"column:billable_seconds"`
	EntryCount      int64        `json:"entry_count" gorm:"column:entry_count"`
}

type Service interface {
	List(ctx context.Context, requesterID snowflake.ID, q ListQuery) ([]TimeEntry, *pagination.PageInfo, error)
	Create(ctx context.Context, requesterID snowflake.ID, req CreateRequest) (*TimeEntry, error)
	Update(ctx context.Context, requesterID, entryID snowflake.ID, req UpdateRequest) (*TimeEntry, error)
	Delete(ctx context.Context, requesterID, entryID snowflake.ID) error

	StartTimer(ctx context.Context, requesterID snowflake.ID, req StartRequest) (*TimeEntry, error)
	StopTimer(ctx context.Context, requesterID snowflake.ID) (*TimeEntry, error)
	RunningTimer(ctx context.Context, requesterID snowflake.ID) (*TimeEntry, error)

	ListComments(ctx context.Context, requesterID, entryID snowflake.ID) ([]Comment, error)
	AddComment(ctx context.Context, requesterID, entryID snowflake.ID, content string) (*Comment, error)
	DeleteComment(ctx context.Context, requesterID, commentID snowflake.ID) error

	Summary(ctx context.Context, requesterID snowflake.ID, q SummaryQuery) ([]SummaryRow, error)

	// VisibleUserIDs applies the read-visibility rule and returns the set
	// of user ids the requester may query entries for.
	VisibleUserIDs(ctx context.Context, requesterID snowflake.ID, opts VisibilityOpts) ([]snowflake.ID, error)
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, entry *TimeEntry) error
	FindByID(ctx context.Context, id snowflake.ID) (*TimeEntry, error)
	FindRunning(ctx context.Context, userID snowflake.ID) (*TimeEntry, error)
	List(ctx context.Context, userIDs []snowflake.ID, q ListQuery, cursor *pagination.Cursor, limit int) ([]TimeEntry, error)
	Update(ctx context.Context, id snowflake.ID, fields map[string]any) error
	Delete(ctx context.Context, id snowflake.ID) error

	CreateComment(ctx context.Context, comment *Comment) error
	FindCommentByID(ctx context.Context, id snowflake.ID) (*Comment, error)
	ListComments(ctx context.Context, entryID snowflake.ID) ([]Comment, error)
	DeleteComment(ctx context.Context, id snowflake.ID) error

	Summarize(ctx context.Context, userIDs []snowflake.ID, q SummaryQuery) ([]SummaryRow, error)
}
