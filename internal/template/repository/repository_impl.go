package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tracklight/internal/template/domain"
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

func (r *repository) Create(ctx context.Context, tmpl *domain.TimeTemplate) error {
	return r.db.WithContext(ctx).Create(tmpl).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.TimeTemplate, error) {
	var tmpl domain.TimeTemplate
	err := r.db.WithContext(ctx).First(&tmpl, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &tmpl, nil
}

func (r *repository) ListByUser(ctx context.Context, userID snowflake.ID) ([]domain.TimeTemplate, error) {
	var tmpls []domain.TimeTemplate
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC").
		Order("created_at DESC").
		Find(&tmpls).Error
	if err != nil {
		return nil, err
	}
	return tmpls, nil
}

func (r *repository) Update(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&domain.TimeTemplate{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repository) ClearDefault(ctx context.Context, userID snowflake.ID) error {
	return r.db.WithContext(ctx).
		Model(&domain.TimeTemplate{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
}

func (r *repository) Delete(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Delete(&domain.TimeTemplate{}, "id = ?", id).Error
}
