package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/tracklight/internal/auth/domain"
	"github.com/smallbiznis/tracklight/internal/organization/domain"
	projectdomain "github.com/smallbiznis/tracklight/internal/project/domain"
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

func (r *repository) CreateOrganization(ctx context.Context, org *domain.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrgNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *repository) DeleteOrganization(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Delete(&domain.Organization{}, "id = ?", id).Error
}

func (r *repository) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.Member, error) {
	var users []authdomain.User
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("name ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	members := make([]domain.Member, 0, len(users))
	for _, u := range users {
		members = append(members, domain.Member{
			ID:    u.ID.String(),
			Name:  u.Name,
			Email: u.Email,
			Role:  u.OrgRole,
		})
	}
	return members, nil
}

func (r *repository) SetMembership(ctx context.Context, userID snowflake.ID, orgID *snowflake.ID, role domain.Role) error {
	res := r.db.WithContext(ctx).
		Model(&authdomain.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"organization_id": orgID,
			"org_role":        role.String(),
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}

func (r *repository) ClearMemberships(ctx context.Context, orgID snowflake.ID) error {
	return r.db.WithContext(ctx).
		Model(&authdomain.User{}).
		Where("organization_id = ?", orgID).
		Updates(map[string]any{
			"organization_id": nil,
			"org_role":        domain.RoleMember.String(),
			"updated_at":      time.Now().UTC(),
		}).Error
}

func (r *repository) ReparentUserProjects(ctx context.Context, userID snowflake.ID, orgID *snowflake.ID) error {
	return r.db.WithContext(ctx).
		Model(&projectdomain.Project{}).
		Where("owner_id = ?", userID).
		Update("organization_id", orgID).Error
}

func (r *repository) DetachOrgProjects(ctx context.Context, orgID snowflake.ID) error {
	return r.db.WithContext(ctx).
		Model(&projectdomain.Project{}).
		Where("organization_id = ?", orgID).
		Update("organization_id", nil).Error
}

func (r *repository) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *repository) FindInvitationByID(ctx context.Context, id snowflake.ID) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.WithContext(ctx).First(&inv, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvitationNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *repository) FindInvitationByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.WithContext(ctx).First(&inv, "token = ?", token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvitationNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *repository) ListInvitations(ctx context.Context, orgID snowflake.ID, status string) ([]domain.Invitation, error) {
	q := r.db.WithContext(ctx).Where("organization_id = ?", orgID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var invs []domain.Invitation
	if err := q.Order("created_at DESC").Find(&invs).Error; err != nil {
		return nil, err
	}
	return invs, nil
}

func (r *repository) UpdateInvitationStatus(ctx context.Context, id snowflake.ID, status string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Invitation{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) HasPendingInvitation(ctx context.Context, orgID snowflake.ID, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Invitation{}).
		Where("organization_id = ? AND LOWER(email) = ? AND status = ?",
			orgID, strings.ToLower(strings.TrimSpace(email)), domain.InvitationPending).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
