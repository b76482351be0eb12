// Package domain contains core types for recurring time entries.
package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Frequencies.
const (
	FrequencyDaily   = "DAILY"
	FrequencyWeekly  = "WEEKLY"
	FrequencyMonthly = "MONTHLY"
)

// RecurringEntry is a definition that materializes one TimeEntry per due
// calendar day. LastRun is truncated to day granularity and guards against
// double materialization within the same day.
type RecurringEntry struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id"`
	UserID          snowflake.ID   `gorm:"column:user_id;not null;index" json:"user_id"`
	ProjectID       snowflake.ID   `gorm:"column:project_id;not null" json:"project_id"`
	Name            string         `gorm:"type:text;not null" json:"name"`
	Activity        string         `gorm:"type:text;not null;default:''" json:"activity"`
	Subtask         string         `gorm:"type:text;not null;default:''" json:"subtask"`
	Description     string         `gorm:"type:text;not null;default:''" json:"description"`
	Tags            datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"tags"`
	DurationSeconds int64          `gorm:"column:duration_seconds;not null" json:"duration_seconds"`
	Billable        bool           `gorm:"not null;default:false" json:"billable"`
	Frequency       string         `gorm:"type:text;not null" json:"frequency"`
	DaysOfWeek      datatypes.JSON `gorm:"column:days_of_week;type:jsonb;not null;default:'[]'" json:"days_of_week"`
	DayOfMonth      *int           `gorm:"column:day_of_month" json:"day_of_month,omitempty"`
	StartDate       time.Time      `gorm:"column:start_date;not null" json:"start_date"`
	EndDate         *time.Time     `gorm:"column:end_date" json:"end_date,omitempty"`
	Active          bool           `gorm:"not null;default:true" json:"active"`
	LastRun         *time.Time     `gorm:"column:last_run" json:"last_run,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (RecurringEntry) TableName() string { return "recurring_entries" }

// WeekdayList decodes the stored weekday set (0 = Sunday .. 6 = Saturday).
func (r *RecurringEntry) WeekdayList() []int {
	var days []int
	if err := json.Unmarshal(r.DaysOfWeek, &days); err != nil {
		return nil
	}
	return days
}

// WeekdaysValue encodes a weekday set for storage.
func WeekdaysValue(days []int) datatypes.JSON {
	if days == nil {
		days = []int{}
	}
	b, err := json.Marshal(days)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(b)
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
	Frequency       string
	DaysOfWeek      []int
	DayOfMonth      *int
	StartDate       time.Time
	EndDate         *time.Time
}

type UpdateRequest struct {
	Name            *string
	Activity        *string
	Subtask         *string
	Description     *string
	Tags            []string
	DurationSeconds *int64
	Billable        *bool
	Frequency       *string
	DaysOfWeek      []int
	DayOfMonth      *int
	StartDate       *time.Time
	EndDate         *time.Time
	Active          *bool
}

type Service interface {
	List(ctx context.Context, userID snowflake.ID) ([]RecurringEntry, error)
	Create(ctx context.Context, userID snowflake.ID, req CreateRequest) (*RecurringEntry, error)
	Update(ctx context.Context, userID, id snowflake.ID, req UpdateRequest) (*RecurringEntry, error)
	Delete(ctx context.Context, userID, id snowflake.ID) error

	// MaterializeDue sweeps every active definition and fires the due ones.
	// Each firing creates the entry and advances LastRun in one
	// transaction, so a crash cannot double-fire a definition. Returns the
	// number of entries created.
	MaterializeDue(ctx context.Context, now time.Time) (int, error)
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, rec *RecurringEntry) error
	FindByID(ctx context.Context, id snowflake.ID) (*RecurringEntry, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]RecurringEntry, error)
	ListActive(ctx context.Context) ([]RecurringEntry, error)
	Update(ctx context.Context, id snowflake.ID, fields map[string]any) error
	// SetLastRun advances last_run only when it still matches prev,
	// making concurrent sweeps fire at most once.
	SetLastRun(ctx context.Context, id snowflake.ID, prev *time.Time, lastRun time.Time) (bool, error)
	Delete(ctx context.Context, id snowflake.ID) error
}
