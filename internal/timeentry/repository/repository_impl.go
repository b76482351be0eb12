package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tracklight/internal/timeentry/domain"
	"github.com/smallbiznis/tracklight/pkg/db/pagination"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *domain.TimeEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.TimeEntry, error) {
	var entry domain.TimeEntry
	err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindRunning(ctx context.Context, userID snowflake.ID) (*domain.TimeEntry, error) {
	var entry domain.TimeEntry
	err := r.db.WithContext(ctx).
		First(&entry, "user_id = ? AND end_time IS NULL", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNoRunningTimer
		}
		return nil, err
	}
	return &entry, nil
}

// List pages entries newest-first with a (start_time, id) keyset cursor.
func (r *repository) List(ctx context.Context, userIDs []snowflake.ID, q domain.ListQuery, cursor *pagination.Cursor, limit int) ([]domain.TimeEntry, error) {
	query := r.db.WithContext(ctx).Where("user_id IN ?", userIDs)

	if q.ProjectID != nil {
		query = query.Where("project_id = ?", *q.ProjectID)
	}
	if q.From != nil {
		query = query.Where("start_time >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("start_time < ?", *q.To)
	}

	if cursor != nil && cursor.StartTime != "" && cursor.ID != "" {
		startTime, err := time.Parse(time.RFC3339Nano, cursor.StartTime)
		if err != nil {
			return nil, err
		}
		id, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return nil, err
		}
		query = query.Where("(start_time < ?) OR (start_time = ? AND id < ?)", startTime, startTime, id)
	}

	var entries []domain.TimeEntry
	err := query.
		Order("start_time DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) Update(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&domain.TimeEntry{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repository) Delete(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Delete(&domain.TimeEntry{}, "id = ?", id).Error
}

func (r *repository) CreateComment(ctx context.Context, comment *domain.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *repository) FindCommentByID(ctx context.Context, id snowflake.ID) (*domain.Comment, error) {
	var comment domain.Comment
	err := r.db.WithContext(ctx).First(&comment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCommentNotFound
		}
		return nil, err
	}
	return &comment, nil
}

func (r *repository) ListComments(ctx context.Context, entryID snowflake.ID) ([]domain.Comment, error) {
	var comments []domain.Comment
	err := r.db.WithContext(ctx).
		Where("entry_id = ?", entryID).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *repository) DeleteComment(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Delete(&domain.Comment{}, "id = ?", id).Error
}

// Summarize aggregates completed entries only; running timers have no
// duration yet.
func (r *repository) Summarize(ctx context.Context, userIDs []snowflake.ID, q domain.SummaryQuery) ([]domain.SummaryRow, error) {
	query := r.db.WithContext(ctx).
		Model(&domain.TimeEntry{}).
		Select(`project_id,
			user_id,
			COALESCE(SUM(duration_seconds), 0) AS total_seconds,
			COALESCE(SUM(CASE WHEN billable THEN duration_seconds ELSE 0 END), 0) AS billable_seconds,
			COUNT(*) AS entry_count`).
		Where("user_id IN ?", userIDs).
		Where("end_time IS NOT NULL")

	if q.ProjectID != nil {
		query = query.Where("project_id = ?", *q.ProjectID)
	}
	if q.From != nil {
		query = query.Where("start_time >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("start_time < ?", *q.To)
	}

	var rows []domain.SummaryRow
	err := query.
		Group("project_id").
		Group("user_id").
		Order("project_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
