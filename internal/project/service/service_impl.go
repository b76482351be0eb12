package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/tracklight/internal/auth/domain"
	"github.com/smallbiznis/tracklight/internal/clock"
	"github.com/smallbiznis/tracklight/internal/config"
	"github.com/smallbiznis/tracklight/internal/identity"
	"github.com/smallbiznis/tracklight/internal/project/domain"
	"github.com/smallbiznis/tracklight/internal/providers/email"
	"github.com/smallbiznis/tracklight/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const invitationTTL = 7 * 24 * time.Hour

type service struct {
	db       *gorm.DB
	repo     domain.Repository
	users    authdomain.Repository
	resolver identity.Resolver
	mailer   email.Provider
	genID    *snowflake.Node
	clock    clock.Clock
	cfg      config.Config
	log      *zap.Logger
}

func NewService(
	gdb *gorm.DB,
	repo domain.Repository,
	users authdomain.Repository,
	resolver identity.Resolver,
	mailer email.Provider,
	genID *snowflake.Node,
	clk clock.Clock,
	cfg config.Config,
	log *zap.Logger,
) domain.Service {
	return &service{
		db:       gdb,
		repo:     repo,
		users:    users,
		resolver: resolver,
		mailer:   mailer,
		genID:    genID,
		clock:    clk,
		cfg:      cfg,
		log:      log.Named("project.service"),
	}
}

func (s *service) Create(ctx context.Context, ownerID snowflake.ID, req domain.CreateRequest) (*domain.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	orgID, err := s.resolver.OrgID(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	project := &domain.Project{
		ID:             s.genID.Generate(),
		Name:           name,
		Description:    req.Description,
		OwnerID:        ownerID,
		OrganizationID: orgID,
		HourlyRate:     req.HourlyRate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Color != "" {
		project.Color = req.Color
	} else {
		project.Color = "#6366f1"
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, project); err != nil {
			return err
		}
		return repo.AddMember(ctx, &domain.Member{
			ID:        s.genID.Generate(),
			ProjectID: project.ID,
			UserID:    ownerID,
			Role:      domain.MemberRoleOwner,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *service) List(ctx context.Context, userID snowflake.ID) ([]domain.Project, error) {
	orgID, err := s.resolver.OrgID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListVisible(ctx, userID, orgID)
}

func (s *service) Get(ctx context.Context, userID, projectID snowflake.ID) (*domain.Project, error) {
	return s.Access(ctx, userID, projectID)
}

// Access loads a project and applies the read rule. Projects the caller
// cannot read are reported as not found so their existence is not leaked.
func (s *service) Access(ctx context.Context, userID, projectID snowflake.ID) (*domain.Project, error) {
	project, err := s.repo.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	orgID, err := s.resolver.OrgID(ctx, userID)
	if err != nil {
		return nil, err
	}
	isMember, err := s.repo.IsMember(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}

	if !domain.CanAccess(project, userID, orgID, isMember) {
		return nil, domain.ErrProjectNotFound
	}
	return project, nil
}

// Modify applies the write rule on top of Access: readable but not owned is
// forbidden, unreadable stays not found.
func (s *service) Modify(ctx context.Context, userID, projectID snowflake.ID) (*domain.Project, error) {
	project, err := s.Access(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if !domain.CanModify(project, userID) {
		return nil, domain.ErrForbidden
	}
	return project, nil
}

func (s *service) Update(ctx context.Context, userID, projectID snowflake.ID, req domain.UpdateRequest) (*domain.Project, error) {
	if _, err := s.Modify(ctx, userID, projectID); err != nil {
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
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Color != nil {
		fields["color"] = *req.Color
	}
	if req.Archived != nil {
		fields["archived"] = *req.Archived
	}
	if req.HourlyRate != nil {
		fields["hourly_rate"] = *req.HourlyRate
	}

	if err := s.repo.Update(ctx, projectID, fields); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, projectID)
}

func (s *service) Delete(ctx context.Context, userID, projectID snowflake.ID) error {
	if _, err := s.Modify(ctx, userID, projectID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, projectID)
}

func (s *service) ListTasks(ctx context.Context, userID, projectID snowflake.ID) ([]domain.Task, error) {
	if _, err := s.Access(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListTasks(ctx, projectID)
}

func (s *service) CreateTask(ctx context.Context, userID, projectID snowflake.ID, req domain.TaskCreateRequest) (*domain.Task, error) {
	if _, err := s.Access(ctx, userID, projectID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := s.clock.Now()
	task := &domain.Task{
		ID:          s.genID.Generate(),
		ProjectID:   projectID,
		Name:        name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *service) UpdateTask(ctx context.Context, userID, projectID, taskID snowflake.ID, req domain.TaskUpdateRequest) (*domain.Task, error) {
	if _, err := s.Access(ctx, userID, projectID); err != nil {
		return nil, err
	}
	task, err := s.repo.FindTask(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{"updated_at": s.clock.Now()}
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Completed != nil {
		fields["completed"] = *req.Completed
	}

	if err := s.repo.UpdateTask(ctx, task.ID, fields); err != nil {
		return nil, err
	}
	return s.repo.FindTask(ctx, projectID, taskID)
}

func (s *service) DeleteTask(ctx context.Context, userID, projectID, taskID snowflake.ID) error {
	if _, err := s.Access(ctx, userID, projectID); err != nil {
		return err
	}
	task, err := s.repo.FindTask(ctx, projectID, taskID)
	if err != nil {
		return err
	}
	return s.repo.DeleteTask(ctx, task.ID)
}

func (s *service) ListFavorites(ctx context.Context, userID snowflake.ID) ([]domain.Project, error) {
	return s.repo.ListFavoriteProjects(ctx, userID)
}

func (s *service) AddFavorite(ctx context.Context, userID, projectID snowflake.ID) error {
	if _, err := s.Access(ctx, userID, projectID); err != nil {
		return err
	}
	err := s.repo.AddFavorite(ctx, &domain.Favorite{
		ID:        s.genID.Generate(),
		UserID:    userID,
		ProjectID: projectID,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrAlreadyFavorite
		}
		return err
	}
	return nil
}

func (s *service) RemoveFavorite(ctx context.Context, userID, projectID snowflake.ID) error {
	return s.repo.RemoveFavorite(ctx, userID, projectID)
}

func (s *service) Invite(ctx context.Context, userID, projectID snowflake.ID, invEmail string) (*domain.InviteResult, error) {
	project, err := s.Modify(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	invEmail = strings.ToLower(strings.TrimSpace(invEmail))
	if invEmail == "" || !strings.Contains(invEmail, "@") {
		return nil, domain.ErrInvitationNotFound
	}

	if existing, err := s.users.FindByEmail(ctx, invEmail); err == nil {
		isMember, err := s.repo.IsMember(ctx, projectID, existing.ID)
		if err != nil {
			return nil, err
		}
		if isMember || existing.ID == project.OwnerID {
			return nil, domain.ErrAlreadyMember
		}
	} else if err != authdomain.ErrUserNotFound {
		return nil, err
	}

	if pending, err := s.repo.HasPendingInvitation(ctx, projectID, invEmail); err != nil {
		return nil, err
	} else if pending {
		return nil, domain.ErrDuplicateInvitation
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	inv := &domain.Invitation{
		ID:        s.genID.Generate(),
		ProjectID: projectID,
		Email:     invEmail,
		Token:     token,
		Status:    domain.InvitationPending,
		ExpiresAt: now.Add(invitationTTL),
		SenderID:  userID,
		CreatedAt: now,
	}
	if err := s.repo.CreateInvitation(ctx, inv); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateInvitation
		}
		return nil, err
	}

	acceptURL := fmt.Sprintf("%s/invitations/accept?token=%s", s.cfg.BaseURL, token)
	if err := s.mailer.Send(ctx, email.Message{
		To:      invEmail,
		Subject: fmt.Sprintf("You have been invited to the project %s", project.Name),
		Body:    fmt.Sprintf("Accept the invitation within 7 days:\n\n%s\n", acceptURL),
	}); err != nil {
		s.log.Warn("invitation email delivery failed",
			zap.String("invitation_id", inv.ID.String()),
			zap.Error(err),
		)
	}

	return &domain.InviteResult{Invitation: inv, AcceptURL: acceptURL}, nil
}

func (s *service) ListInvitations(ctx context.Context, userID, projectID snowflake.ID) ([]domain.Invitation, error) {
	if _, err := s.Modify(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListInvitations(ctx, projectID)
}

func (s *service) CancelInvitation(ctx context.Context, userID, projectID, invitationID snowflake.ID) error {
	if _, err := s.Modify(ctx, userID, projectID); err != nil {
		return err
	}
	inv, err := s.repo.FindInvitationByID(ctx, invitationID)
	if err != nil {
		return err
	}
	if inv.ProjectID != projectID {
		return domain.ErrInvitationNotFound
	}
	if inv.Status != domain.InvitationPending {
		return domain.ErrInvitationNotPending
	}
	return s.repo.UpdateInvitationStatus(ctx, inv.ID, domain.InvitationCancelled)
}

func (s *service) AcceptInvitation(ctx context.Context, userID snowflake.ID, rawToken string) (*domain.Project, error) {
	inv, err := s.repo.FindInvitationByToken(ctx, strings.TrimSpace(rawToken))
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.InvitationPending {
		return nil, domain.ErrInvitationNotPending
	}
	if s.clock.Now().After(inv.ExpiresAt) {
		return nil, domain.ErrInvitationExpired
	}

	project, err := s.repo.FindByID(ctx, inv.ProjectID)
	if err != nil {
		return nil, err
	}

	isMember, err := s.repo.IsMember(ctx, project.ID, userID)
	if err != nil {
		return nil, err
	}
	if isMember || project.OwnerID == userID {
		return nil, domain.ErrAlreadyMember
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.AddMember(ctx, &domain.Member{
			ID:        s.genID.Generate(),
			ProjectID: project.ID,
			UserID:    userID,
			Role:      domain.MemberRoleMember,
			CreatedAt: s.clock.Now(),
		}); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrAlreadyMember
			}
			return err
		}
		return repo.UpdateInvitationStatus(ctx, inv.ID, domain.InvitationAccepted)
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *service) ListMembers(ctx context.Context, userID, projectID snowflake.ID) ([]domain.Member, error) {
	if _, err := s.Access(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListProjectMembers(ctx, projectID)
}

// RemoveMember lets the project owner remove anyone, and any member remove
// themselves.
func (s *service) RemoveMember(ctx context.Context, userID, projectID, memberUserID snowflake.ID) error {
	project, err := s.Access(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if memberUserID == project.OwnerID {
		return domain.ErrForbidden
	}
	if userID != memberUserID && !domain.CanModify(project, userID) {
		return domain.ErrForbidden
	}
	return s.repo.RemoveProjectMember(ctx, projectID, memberUserID)
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
