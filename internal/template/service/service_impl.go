package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tracklight/internal/clock"
	projectdomain "github.com/smallbiznis/tracklight/internal/project/domain"
	"github.com/smallbiznis/tracklight/internal/template/domain"
	entrydomain "github.com/smallbiznis/tracklight/internal/timeentry/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db       *gorm.DB
	repo     domain.Repository
	entries  entrydomain.Service
	projects projectdomain.Service
	genID    *snowflake.Node
	clock    clock.Clock
	log      *zap.Logger
}

func NewService(
	gdb *gorm.DB,
	repo domain.Repository,
	entries entrydomain.Service,
	projects projectdomain.Service,
	genID *snowflake.Node,
	clk clock.Clock,
	log *zap.Logger,
) domain.Service {
	return &service{
		db:       gdb,
		repo:     repo,
		entries:  entries,
		projects: projects,
		genID:    genID,
		clock:    clk,
		log:      log.Named("template.service"),
	}
}

func (s *service) List(ctx context.Context, userID snowflake.ID) ([]domain.TimeTemplate, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateRequest) (*domain.TimeTemplate, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if _, err := s.projects.Access(ctx, userID, req.ProjectID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	tmpl := &domain.TimeTemplate{
		ID:              s.genID.Generate(),
		UserID:          userID,
		ProjectID:       req.ProjectID,
		Name:            name,
		Activity:        req.Activity,
		Subtask:         req.Subtask,
		Description:     req.Description,
		Tags:            entrydomain.TagsValue(entrydomain.FilterValidTags(req.Tags)),
		DurationSeconds: req.DurationSeconds,
		Billable:        req.Billable,
		IsDefault:       req.IsDefault,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if tmpl.IsDefault {
			if err := repo.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		return repo.Create(ctx, tmpl)
	})
	if err != nil {
		return nil, err
	}
	return tmpl, nil
}

func (s *service) owned(ctx context.Context, userID, id snowflake.ID) (*domain.TimeTemplate, error) {
	tmpl, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tmpl.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return tmpl, nil
}

func (s *service) Update(ctx context.Context, userID, id snowflake.ID, req domain.UpdateRequest) (*domain.TimeTemplate, error) {
	tmpl, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{"updated_at": s.clock.Now()}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		fields["name"] = name
	}
	if req.Activity != nil {
		fields["activity"] = *req.Activity
	}
	if req.Subtask != nil {
		fields["subtask"] = *req.Subtask
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Tags != nil {
		fields["tags"] = entrydomain.TagsValue(entrydomain.FilterValidTags(req.Tags))
	}
	if req.DurationSeconds != nil {
		fields["duration_seconds"] = *req.DurationSeconds
	}
	if req.Billable != nil {
		fields["billable"] = *req.Billable
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if req.IsDefault != nil {
			if *req.IsDefault {
				if err := repo.ClearDefault(ctx, userID); err != nil {
					return err
				}
			}
			fields["is_default"] = *req.IsDefault
		}
		return repo.Update(ctx, tmpl.ID, fields)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, tmpl.ID)
}

func (s *service) Delete(ctx context.Context, userID, id snowflake.ID) error {
	tmpl, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, tmpl.ID)
}

func (s *service) Instantiate(ctx context.Context, userID, id snowflake.ID) (snowflake.ID, error) {
	tmpl, err := s.owned(ctx, userID, id)
	if err != nil {
		return 0, err
	}

	if tmpl.DurationSeconds <= 0 {
		entry, err := s.entries.StartTimer(ctx, userID, entrydomain.StartRequest{
			ProjectID:   tmpl.ProjectID,
			Activity:    tmpl.Activity,
			Subtask:     tmpl.Subtask,
			Description: tmpl.Description,
			Tags:        tmpl.TagList(),
		})
		if err != nil {
			return 0, err
		}
		return entry.ID, nil
	}

	now := s.clock.Now()
	start := now.Add(-time.Duration(tmpl.DurationSeconds) * time.Second)
	entry, err := s.entries.Create(ctx, userID, entrydomain.CreateRequest{
		ProjectID:   tmpl.ProjectID,
		StartTime:   start,
		EndTime:     &now,
		Billable:    tmpl.Billable,
		Activity:    tmpl.Activity,
		Subtask:     tmpl.Subtask,
		Description: tmpl.Description,
		Tags:        tmpl.TagList(),
	})
	if err != nil {
		return 0, err
	}
	return entry.ID, nil
}
