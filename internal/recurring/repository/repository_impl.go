package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tracklight/internal/recurring/domain"
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

func (r *repository) Create(ctx context.Context, rec *domain.RecurringEntry) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.RecurringEntry, error) {
	var rec domain.RecurringEntry
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *repository) ListByUser(ctx context.Context, userID snowflake.ID) ([]domain.RecurringEntry, error) {
	var recs []domain.RecurringEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *repository) ListActive(ctx context.Context) ([]domain.RecurringEntry, error) {
	var recs []domain.RecurringEntry
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *repository) Update(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&domain.RecurringEntry{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repository) SetLastRun(ctx context.Context, id snowflake.ID, prev *time.Time, lastRun time.Time) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&domain.RecurringEntry{}).
		Where("id = ?", id)
	if prev == nil {
		q = q.Where("last_run IS NULL")
	} else {
		q = q.Where("last_run = ?", *prev)
	}
	res := q.Update("last_run", lastRun)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Delete(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Delete(&domain.RecurringEntry{}, "id = ?", id).Error
}
