package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tracklight/internal/clock"
	"github.com/smallbiznis/tracklight/internal/identity"
	projectdomain "github.com/smallbiznis/tracklight/internal/project/domain"
	"github.com/smallbiznis/tracklight/internal/timeentry/domain"
	"github.com/smallbiznis/tracklight/pkg/db"
	"github.com/smallbiznis/tracklight/pkg/db/pagination"
	"go.uber.org/zap"
)

type service struct {
	repo     domain.Repository
	projects projectdomain.Service
	members  projectdomain.Repository
	resolver identity.Resolver
	genID    *snowflake.Node
	clock    clock.Clock
	log      *zap.Logger
}

func NewService(
	repo domain.Repository,
	projects projectdomain.Service,
	members projectdomain.Repository,
	resolver identity.Resolver,
	genID *snowflake.Node,
	clk clock.Clock,
	log *zap.Logger,
) domain.Service {
	return &service{
		repo:     repo,
		projects: projects,
		members:  members,
		resolver: resolver,
		genID:    genID,
		clock:    clk,
		log:      log.Named("timeentry.service"),
	}
}

// VisibleUserIDs applies the read-visibility rule:
//
//  1. allMembers expands to the whole organization, and silently falls back
//     to self-only for users without one.
//  2. A target user other than the requester is visible when they share the
//     requester's organization, or, for requesters without an organization,
//     when the requester owns a project the target belongs to.
//  3. Otherwise the requester sees only themselves.
func (s *service) VisibleUserIDs(ctx context.Context, requesterID snowflake.ID, opts domain.VisibilityOpts) ([]snowflake.ID, error) {
	if opts.AllMembers {
		return s.resolver.OrgUserIDs(ctx, requesterID)
	}

	if opts.TargetUserID != nil && *opts.TargetUserID != requesterID {
		target := *opts.TargetUserID

		orgID, err := s.resolver.OrgID(ctx, requesterID)
		if err != nil {
			return nil, err
		}
		if orgID != nil {
			ids, err := s.resolver.OrgUserIDs(ctx, requesterID)
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				if id == target {
					return []snowflake.ID{target}, nil
				}
			}
			return nil, domain.ErrForbidden
		}

		owns, err := s.members.OwnsProjectWith(ctx, requesterID, target)
		if err != nil {
			return nil, err
		}
		if owns {
			return []snowflake.ID{target}, nil
		}
		return nil, domain.ErrForbidden
	}

	return []snowflake.ID{requesterID}, nil
}

func (s *service) List(ctx context.Context, requesterID snowflake.ID, q domain.ListQuery) ([]domain.TimeEntry, *pagination.PageInfo, error) {
	userIDs, err := s.VisibleUserIDs(ctx, requesterID, q.Visibility)
	if err != nil {
		return nil, nil, err
	}

	var cursor *pagination.Cursor
	if q.Pagination.PageToken != "" {
		cursor, err = pagination.DecodeCursor(q.Pagination.PageToken)
		if err != nil {
			return nil, nil, err
		}
	}

	pageSize := q.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	entries, err := s.repo.List(ctx, userIDs, q, cursor, pageSize+1)
	if err != nil {
		return nil, nil, err
	}

	info := &pagination.PageInfo{}
	if len(entries) > pageSize {
		entries = entries[:pageSize]
		last := entries[len(entries)-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        last.ID.String(),
			StartTime: last.StartTime.Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, nil, err
		}
		info.HasMore = true
		info.NextPageToken = token
	}
	return entries, info, nil
}

func (s *service) Create(ctx context.Context, requesterID snowflake.ID, req domain.CreateRequest) (*domain.TimeEntry, error) {
	if _, err := s.projects.Access(ctx, requesterID, req.ProjectID); err != nil {
		return nil, err
	}
	if req.TaskID != nil {
		if _, err := s.members.FindTask(ctx, req.ProjectID, *req.TaskID); err != nil {
			return nil, err
		}
	}

	entry := &domain.TimeEntry{
		ID:          s.genID.Generate(),
		UserID:      requesterID,
		ProjectID:   req.ProjectID,
		TaskID:      req.TaskID,
		StartTime:   req.StartTime.UTC(),
		Billable:    req.Billable,
		Activity:    req.Activity,
		Subtask:     req.Subtask,
		Notes:       req.Notes,
		Description: req.Description,
		Tags:        domain.TagsValue(domain.FilterValidTags(req.Tags)),
		CreatedAt:   s.clock.Now(),
		UpdatedAt:   s.clock.Now(),
	}
	if req.EndTime != nil {
		end := req.EndTime.UTC()
		if !end.After(entry.StartTime) {
			return nil, domain.ErrInvalidTimeRange
		}
		entry.EndTime = &end
		dur := int64(end.Sub(entry.StartTime).Seconds())
		entry.DurationSeconds = &dur
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrTimerAlreadyRunning
		}
		return nil, err
	}
	return entry, nil
}

// editable loads an entry and applies the mutation rule. Entries outside the
// rule read as not found for users who could not see them anyway.
func (s *service) editable(ctx context.Context, requesterID, entryID snowflake.ID) (*domain.TimeEntry, error) {
	entry, err := s.repo.FindByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	if entry.UserID == requesterID {
		return entry, nil
	}

	project, err := s.projects.Access(ctx, requesterID, entry.ProjectID)
	if err != nil {
		return nil, domain.ErrEntryNotFound
	}
	if !domain.CanEditEntry(requesterID, entry, project.OwnerID) {
		return nil, domain.ErrForbidden
	}
	return entry, nil
}

func (s *service) Update(ctx context.Context, requesterID, entryID snowflake.ID, req domain.UpdateRequest) (*domain.TimeEntry, error) {
	entry, err := s.editable(ctx, requesterID, entryID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{"updated_at": s.clock.Now()}

	startTime := entry.StartTime
	if req.StartTime != nil {
		startTime = req.StartTime.UTC()
		fields["start_time"] = startTime
	}
	endTime := entry.EndTime
	if req.EndTime != nil {
		end := req.EndTime.UTC()
		endTime = &end
		fields["end_time"] = end
	}
	if endTime != nil {
		if !endTime.After(startTime) {
			return nil, domain.ErrInvalidTimeRange
		}
		fields["duration_seconds"] = int64(endTime.Sub(startTime).Seconds())
	}

	if req.TaskID != nil {
		if _, err := s.members.FindTask(ctx, entry.ProjectID, *req.TaskID); err != nil {
			return nil, err
		}
		fields["task_id"] = *req.TaskID
	}
	if req.Billable != nil {
		fields["billable"] = *req.Billable
	}
	if req.Activity != nil {
		fields["activity"] = *req.Activity
	}
	if req.Subtask != nil {
		fields["subtask"] = *req.Subtask
	}
	if req.Notes != nil {
		fields["notes"] = *req.Notes
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Tags != nil {
		fields["tags"] = domain.TagsValue(domain.FilterValidTags(req.Tags))
	}

	if err := s.repo.Update(ctx, entry.ID, fields); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, entry.ID)
}

func (s *service) Delete(ctx context.Context, requesterID, entryID snowflake.ID) error {
	entry, err := s.editable(ctx, requesterID, entryID)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, entry.ID)
}

func (s *service) StartTimer(ctx context.Context, requesterID snowflake.ID, req domain.StartRequest) (*domain.TimeEntry, error) {
	if _, err := s.projects.Access(ctx, requesterID, req.ProjectID); err != nil {
		return nil, err
	}
	if req.TaskID != nil {
		if _, err := s.members.FindTask(ctx, req.ProjectID, *req.TaskID); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	entry := &domain.TimeEntry{
		ID:          s.genID.Generate(),
		UserID:      requesterID,
		ProjectID:   req.ProjectID,
		TaskID:      req.TaskID,
		StartTime:   now,
		Activity:    req.Activity,
		Subtask:     req.Subtask,
		Description: req.Description,
		Tags:        domain.TagsValue(domain.FilterValidTags(req.Tags)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// The partial unique index on running entries turns a start/start race
	// into a duplicate-key error instead of two running timers.
	if err := s.repo.Create(ctx, entry); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrTimerAlreadyRunning
		}
		return nil, err
	}
	return entry, nil
}

func (s *service) StopTimer(ctx context.Context, requesterID snowflake.ID) (*domain.TimeEntry, error) {
	entry, err := s.repo.FindRunning(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	duration := int64(now.Sub(entry.StartTime).Seconds())
	err = s.repo.Update(ctx, entry.ID, map[string]any{
		"end_time":         now,
		"duration_seconds": duration,
		"updated_at":       now,
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, entry.ID)
}

func (s *service) RunningTimer(ctx context.Context, requesterID snowflake.ID) (*domain.TimeEntry, error) {
	return s.repo.FindRunning(ctx, requesterID)
}

// visible checks that the requester may read the entry: their own entries
// always, otherwise entries of users within their visibility set, otherwise
// entries on projects they can access.
func (s *service) visible(ctx context.Context, requesterID snowflake.ID, entry *domain.TimeEntry) error {
	if entry.UserID == requesterID {
		return nil
	}
	ids, err := s.VisibleUserIDs(ctx, requesterID, domain.VisibilityOpts{TargetUserID: &entry.UserID})
	if err == nil {
		for _, id := range ids {
			if id == entry.UserID {
				return nil
			}
		}
	}
	if _, err := s.projects.Access(ctx, requesterID, entry.ProjectID); err == nil {
		return nil
	}
	return domain.ErrEntryNotFound
}

func (s *service) ListComments(ctx context.Context, requesterID, entryID snowflake.ID) ([]domain.Comment, error) {
	entry, err := s.repo.FindByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if err := s.visible(ctx, requesterID, entry); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, entryID)
}

func (s *service) AddComment(ctx context.Context, requesterID, entryID snowflake.ID, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyComment
	}

	entry, err := s.repo.FindByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if err := s.visible(ctx, requesterID, entry); err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		ID:        s.genID.Generate(),
		EntryID:   entryID,
		UserID:    requesterID,
		Content:   content,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment allows the comment's author, or anyone who may edit the
// underlying entry, to remove it.
func (s *service) DeleteComment(ctx context.Context, requesterID, commentID snowflake.ID) error {
	comment, err := s.repo.FindCommentByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.UserID != requesterID {
		if _, err := s.editable(ctx, requesterID, comment.EntryID); err != nil {
			return domain.ErrForbidden
		}
	}
	return s.repo.DeleteComment(ctx, commentID)
}

func (s *service) Summary(ctx context.Context, requesterID snowflake.ID, q domain.SummaryQuery) ([]domain.SummaryRow, error) {
	userIDs, err := s.VisibleUserIDs(ctx, requesterID, q.Visibility)
	if err != nil {
		return nil, err
	}
	return s.repo.Summarize(ctx, userIDs, q)
}
