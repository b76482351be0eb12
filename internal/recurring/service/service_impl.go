package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tracklight/internal/clock"
	projectdomain "github.com/smallbiznis/tracklight/internal/project/domain"
	"github.com/smallbiznis/tracklight/internal/recurring/domain"
	entrydomain "github.com/smallbiznis/tracklight/internal/timeentry/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Materialized entries start at 09:00 in the sweep's local day.
const materializeHour = 9

type service struct {
	db       *gorm.DB
	repo     domain.Repository
	entries  entrydomain.Repository
	projects projectdomain.Service
	genID    *snowflake.Node
	clock    clock.Clock
	log      *zap.Logger
}

func NewService(
	gdb *gorm.DB,
	repo domain.Repository,
	entries entrydomain.Repository,
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
		log:      log.Named("recurring.service"),
	}
}

func validateSchedule(frequency string, daysOfWeek []int, dayOfMonth *int) error {
	switch frequency {
	case domain.FrequencyDaily:
		return nil
	case domain.FrequencyWeekly:
		if len(daysOfWeek) == 0 {
			return domain.ErrInvalidSchedule
		}
		for _, d := range daysOfWeek {
			if d < 0 || d > 6 {
				return domain.ErrInvalidSchedule
			}
		}
		return nil
	case domain.FrequencyMonthly:
		if dayOfMonth == nil || *dayOfMonth < 1 || *dayOfMonth > 31 {
			return domain.ErrInvalidSchedule
		}
		return nil
	default:
		return domain.ErrInvalidFrequency
	}
}

func (s *service) List(ctx context.Context, userID snowflake.ID) ([]domain.RecurringEntry, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateRequest) (*domain.RecurringEntry, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, domain.ErrInvalidName
	}
	if req.DurationSeconds <= 0 {
		return nil, domain.ErrInvalidDuration
	}
	if err := validateSchedule(req.Frequency, req.DaysOfWeek, req.DayOfMonth); err != nil {
		return nil, err
	}
	if _, err := s.projects.Access(ctx, userID, req.ProjectID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rec := &domain.RecurringEntry{
		ID:              s.genID.Generate(),
		UserID:          userID,
		ProjectID:       req.ProjectID,
		Name:            strings.TrimSpace(req.Name),
		Activity:        req.Activity,
		Subtask:         req.Subtask,
		Description:     req.Description,
		Tags:            entrydomain.TagsValue(entrydomain.FilterValidTags(req.Tags)),
		DurationSeconds: req.DurationSeconds,
		Billable:        req.Billable,
		Frequency:       req.Frequency,
		DaysOfWeek:      domain.WeekdaysValue(req.DaysOfWeek),
		DayOfMonth:      req.DayOfMonth,
		StartDate:       domain.DateOnly(req.StartDate),
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.EndDate != nil {
		end := domain.DateOnly(*req.EndDate)
		rec.EndDate = &end
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// owned loads a definition the requester owns; others read as not found.
func (s *service) owned(ctx context.Context, userID, id snowflake.ID) (*domain.RecurringEntry, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (s *service) Update(ctx context.Context, userID, id snowflake.ID, req domain.UpdateRequest) (*domain.RecurringEntry, error) {
	rec, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	frequency := rec.Frequency
	if req.Frequency != nil {
		frequency = *req.Frequency
	}
	daysOfWeek := rec.WeekdayList()
	if req.DaysOfWeek != nil {
		daysOfWeek = req.DaysOfWeek
	}
	dayOfMonth := rec.DayOfMonth
	if req.DayOfMonth != nil {
		dayOfMonth = req.DayOfMonth
	}
	if err := validateSchedule(frequency, daysOfWeek, dayOfMonth); err != nil {
		return nil, err
	}

	fields := map[string]any{
		"updated_at":   s.clock.Now(),
		"frequency":    frequency,
		"days_of_week": domain.WeekdaysValue(daysOfWeek),
		"day_of_month": dayOfMonth,
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, domain.ErrInvalidName
		}
		fields["name"] = strings.TrimSpace(*req.Name)
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
		if *req.DurationSeconds <= 0 {
			return nil, domain.ErrInvalidDuration
		}
		fields["duration_seconds"] = *req.DurationSeconds
	}
	if req.Billable != nil {
		fields["billable"] = *req.Billable
	}
	if req.StartDate != nil {
		fields["start_date"] = domain.DateOnly(*req.StartDate)
	}
	if req.EndDate != nil {
		fields["end_date"] = domain.DateOnly(*req.EndDate)
	}
	if req.Active != nil {
		fields["active"] = *req.Active
	}

	if err := s.repo.Update(ctx, rec.ID, fields); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, rec.ID)
}

func (s *service) Delete(ctx context.Context, userID, id snowflake.ID) error {
	rec, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, rec.ID)
}

func (s *service) MaterializeDue(ctx context.Context, now time.Time) (int, error) {
	recs, err := s.repo.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	fired := 0
	for i := range recs {
		rec := &recs[i]
		if !domain.IsDue(rec, now) {
			continue
		}
		if err := s.fire(ctx, rec, now); err != nil {
			s.log.Error("recurring materialization failed",
				zap.String("recurring_id", rec.ID.String()),
				zap.Error(err),
			)
			continue
		}
		fired++
	}
	return fired, nil
}

// fire creates the day's entry and advances LastRun in one transaction. The
// guarded LastRun update doubles as a lock: if another sweep got there
// first, the transaction rolls the entry back.
func (s *service) fire(ctx context.Context, rec *domain.RecurringEntry, now time.Time) error {
	day := domain.DateOnly(now)
	start := day.Add(materializeHour * time.Hour)
	end := start.Add(time.Duration(rec.DurationSeconds) * time.Second)
	duration := rec.DurationSeconds

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entries := s.entries.WithTx(tx)
		if err := entries.Create(ctx, &entrydomain.TimeEntry{
			ID:              s.genID.Generate(),
			UserID:          rec.UserID,
			ProjectID:       rec.ProjectID,
			StartTime:       start,
			EndTime:         &end,
			DurationSeconds: &duration,
			Billable:        rec.Billable,
			Activity:        rec.Activity,
			Subtask:         rec.Subtask,
			Description:     rec.Description,
			Tags:            rec.Tags,
			CreatedAt:       s.clock.Now(),
			UpdatedAt:       s.clock.Now(),
		}); err != nil {
			return err
		}

		advanced, err := s.repo.WithTx(tx).SetLastRun(ctx, rec.ID, rec.LastRun, day)
		if err != nil {
			return err
		}
		if !advanced {
			return domain.ErrAlreadyMaterialized
		}
		return nil
	})
}
