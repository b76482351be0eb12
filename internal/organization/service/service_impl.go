package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	authdomain "github.com/smallbiznis/tracklight/internal/auth/domain"
	"github.com/smallbiznis/tracklight/internal/clock"
	"github.com/smallbiznis/tracklight/internal/config"
	"github.com/smallbiznis/tracklight/internal/organization/domain"
	"github.com/smallbiznis/tracklight/internal/providers/email"
	"github.com/smallbiznis/tracklight/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const invitationTTL = 7 * 24 * time.Hour

type service struct {
	db     *gorm.DB
	repo   domain.Repository
	users  authdomain.Repository
	mailer email.Provider
	genID  *snowflake.Node
	clock  clock.Clock
	cfg    config.Config
	log    *zap.Logger
}

func NewService(
	gdb *gorm.DB,
	repo domain.Repository,
	users authdomain.Repository,
	mailer email.Provider,
	genID *snowflake.Node,
	clk clock.Clock,
	cfg config.Config,
	log *zap.Logger,
) domain.Service {
	return &service{
		db:     gdb,
		repo:   repo,
		users:  users,
		mailer: mailer,
		genID:  genID,
		clock:  clk,
		cfg:    cfg,
		log:    log.Named("organization.service"),
	}
}

func (s *service) Create(ctx context.Context, actorID snowflake.ID, req domain.CreateRequest) (*domain.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.OrganizationID != nil {
		return nil, domain.ErrAlreadyInOrganization
	}

	now := s.clock.Now()
	org := &domain.Organization{
		ID:        s.genID.Generate(),
		Name:      name,
		Slug:      slug.Make(name),
		OwnerID:   actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrganization(ctx, org); err != nil {
			if !db.IsDuplicateKeyErr(err) {
				return err
			}
			// slug collision: retry once with the id appended
			org.Slug = fmt.Sprintf("%s-%s", org.Slug, org.ID.String())
			if err := repo.CreateOrganization(ctx, org); err != nil {
				return err
			}
		}
		if err := repo.SetMembership(ctx, actorID, &org.ID, domain.RoleOwner); err != nil {
			return err
		}
		return repo.ReparentUserProjects(ctx, actorID, &org.ID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("organization created",
		zap.String("organization_id", org.ID.String()),
		zap.String("owner_id", actorID.String()),
	)
	return org, nil
}

func (s *service) Current(ctx context.Context, actorID snowflake.ID) (*domain.Organization, error) {
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.OrganizationID == nil {
		return nil, domain.ErrNotInOrganization
	}
	return s.repo.FindByID(ctx, *actor.OrganizationID)
}

func (s *service) Delete(ctx context.Context, actorID snowflake.ID) error {
	org, err := s.Current(ctx, actorID)
	if err != nil {
		return err
	}
	if org.OwnerID != actorID {
		return domain.ErrForbidden
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.ClearMemberships(ctx, org.ID); err != nil {
			return err
		}
		if err := repo.DetachOrgProjects(ctx, org.ID); err != nil {
			return err
		}
		return repo.DeleteOrganization(ctx, org.ID)
	})
	if err != nil {
		return err
	}

	s.log.Info("organization deleted", zap.String("organization_id", org.ID.String()))
	return nil
}

func (s *service) ListMembers(ctx context.Context, actorID snowflake.ID) ([]domain.Member, error) {
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.OrganizationID == nil {
		return nil, domain.ErrNotInOrganization
	}
	return s.repo.ListMembers(ctx, *actor.OrganizationID)
}

// loadPair returns the actor and a target member of the same organization.
// A target outside the actor's organization is reported as not found rather
// than forbidden, to avoid leaking membership.
func (s *service) loadPair(ctx context.Context, actorID, targetID snowflake.ID) (actor, target *authdomain.User, err error) {
	actor, err = s.users.FindByID(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	if actor.OrganizationID == nil {
		return nil, nil, domain.ErrNotInOrganization
	}
	target, err = s.users.FindByID(ctx, targetID)
	if err != nil {
		if err == authdomain.ErrUserNotFound {
			return nil, nil, domain.ErrMemberNotFound
		}
		return nil, nil, err
	}
	if target.OrganizationID == nil || *target.OrganizationID != *actor.OrganizationID {
		return nil, nil, domain.ErrMemberNotFound
	}
	return actor, target, nil
}

func (s *service) ChangeMemberRole(ctx context.Context, actorID, targetID snowflake.ID, role domain.Role) error {
	if role != domain.RoleMember && role != domain.RoleAdmin {
		return domain.ErrInvalidRole
	}

	actor, target, err := s.loadPair(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if err := domain.CanChangeRole(domain.Role(actor.OrgRole), domain.Role(target.OrgRole)); err != nil {
		return err
	}
	return s.repo.SetMembership(ctx, targetID, actor.OrganizationID, role)
}

func (s *service) RemoveMember(ctx context.Context, actorID, targetID snowflake.ID) error {
	actor, target, err := s.loadPair(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if err := domain.CanRemoveMember(domain.Role(actor.OrgRole), domain.Role(target.OrgRole), actorID == targetID); err != nil {
		return err
	}
	return s.repo.SetMembership(ctx, targetID, nil, domain.RoleMember)
}

func (s *service) Invite(ctx context.Context, actorID snowflake.ID, req domain.InviteRequest) (*domain.InviteResult, error) {
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.OrganizationID == nil {
		return nil, domain.ErrNotInOrganization
	}
	if err := domain.CanInvite(domain.Role(actor.OrgRole), req.Role); err != nil {
		return nil, err
	}

	orgID := *actor.OrganizationID
	invEmail := strings.ToLower(strings.TrimSpace(req.Email))

	if existing, err := s.users.FindByEmail(ctx, invEmail); err == nil {
		if existing.OrganizationID != nil && *existing.OrganizationID == orgID {
			return nil, domain.ErrAlreadyInOrganization
		}
	} else if err != authdomain.ErrUserNotFound {
		return nil, err
	}

	if pending, err := s.repo.HasPendingInvitation(ctx, orgID, invEmail); err != nil {
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
		ID:             s.genID.Generate(),
		OrganizationID: orgID,
		Email:          invEmail,
		Role:           req.Role.String(),
		Token:          token,
		Status:         domain.InvitationPending,
		ExpiresAt:      now.Add(invitationTTL),
		SenderID:       actorID,
		CreatedAt:      now,
	}
	if err := s.repo.CreateInvitation(ctx, inv); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateInvitation
		}
		return nil, err
	}

	acceptURL := fmt.Sprintf("%s/org-invitations/accept?token=%s", s.cfg.BaseURL, token)
	if err := s.mailer.Send(ctx, email.Message{
		To:      invEmail,
		Subject: fmt.Sprintf("You have been invited to join %s", actor.Name),
		Body:    fmt.Sprintf("Accept the invitation within 7 days:\n\n%s\n", acceptURL),
	}); err != nil {
		s.log.Warn("invitation email delivery failed",
			zap.String("invitation_id", inv.ID.String()),
			zap.Error(err),
		)
	}

	return &domain.InviteResult{Invitation: inv, AcceptURL: acceptURL}, nil
}

func (s *service) ListInvitations(ctx context.Context, actorID snowflake.ID) ([]domain.Invitation, error) {
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.OrganizationID == nil {
		return nil, domain.ErrNotInOrganization
	}
	if !domain.Role(actor.OrgRole).AtLeast(domain.RoleAdmin) {
		return nil, domain.ErrForbidden
	}
	return s.repo.ListInvitations(ctx, *actor.OrganizationID, domain.InvitationPending)
}

func (s *service) CancelInvitation(ctx context.Context, actorID, invitationID snowflake.ID) error {
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.OrganizationID == nil {
		return domain.ErrNotInOrganization
	}

	inv, err := s.repo.FindInvitationByID(ctx, invitationID)
	if err != nil {
		return err
	}
	if inv.OrganizationID != *actor.OrganizationID {
		return domain.ErrInvitationNotFound
	}

	org, err := s.repo.FindByID(ctx, inv.OrganizationID)
	if err != nil {
		return err
	}
	if org.OwnerID != actorID && !domain.Role(actor.OrgRole).AtLeast(domain.RoleAdmin) {
		return domain.ErrForbidden
	}

	if inv.Status != domain.InvitationPending {
		return domain.ErrInvitationNotPending
	}
	return s.repo.UpdateInvitationStatus(ctx, inv.ID, domain.InvitationCancelled)
}

func (s *service) AcceptInvitation(ctx context.Context, actorID snowflake.ID, rawToken string) (*domain.Organization, error) {
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

	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.OrganizationID != nil && *actor.OrganizationID != inv.OrganizationID {
		return nil, domain.ErrAlreadyInOrganization
	}

	org, err := s.repo.FindByID(ctx, inv.OrganizationID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.SetMembership(ctx, actorID, &inv.OrganizationID, domain.Role(inv.Role)); err != nil {
			return err
		}
		if err := repo.ReparentUserProjects(ctx, actorID, &inv.OrganizationID); err != nil {
			return err
		}
		return repo.UpdateInvitationStatus(ctx, inv.ID, domain.InvitationAccepted)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("invitation accepted",
		zap.String("organization_id", org.ID.String()),
		zap.String("user_id", actorID.String()),
	)
	return org, nil
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
