// Package identity resolves a user's organization scope. All lookups treat a
// missing user as a user with no organization rather than an error.
package identity

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/tracklight/internal/auth/domain"
	orgdomain "github.com/smallbiznis/tracklight/internal/organization/domain"
	"gorm.io/gorm"
)

type Resolver interface {
	// OrgID returns the user's organization id, or nil when the user has
	// none (or does not exist).
	OrgID(ctx context.Context, userID snowflake.ID) (*snowflake.ID, error)

	// OrgUserIDs returns the ids of every user sharing the caller's
	// organization, always including the caller. A user without an
	// organization gets a set containing only themselves.
	OrgUserIDs(ctx context.Context, userID snowflake.ID) ([]snowflake.ID, error)

	// IsOrgAdmin reports whether the user holds ADMIN or OWNER in their
	// organization.
	IsOrgAdmin(ctx context.Context, userID snowflake.ID) (bool, error)

	// IsOrgOwner reports whether the user holds OWNER in their organization.
	IsOrgOwner(ctx context.Context, userID snowflake.ID) (bool, error)
}

type resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) Resolver {
	return &resolver{db: db}
}

func (r *resolver) lookup(ctx context.Context, userID snowflake.ID) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *resolver) OrgID(ctx context.Context, userID snowflake.ID) (*snowflake.ID, error) {
	user, err := r.lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	return user.OrganizationID, nil
}

func (r *resolver) OrgUserIDs(ctx context.Context, userID snowflake.ID) ([]snowflake.ID, error) {
	orgID, err := r.OrgID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if orgID == nil {
		return []snowflake.ID{userID}, nil
	}

	var ids []snowflake.ID
	err = r.db.WithContext(ctx).
		Model(&authdomain.User{}).
		Where("organization_id = ?", *orgID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}

	seen := false
	for _, id := range ids {
		if id == userID {
			seen = true
			break
		}
	}
	if !seen {
		ids = append(ids, userID)
	}
	return ids, nil
}

func (r *resolver) IsOrgAdmin(ctx context.Context, userID snowflake.ID) (bool, error) {
	user, err := r.lookup(ctx, userID)
	if err != nil {
		return false, err
	}
	if user == nil || user.OrganizationID == nil {
		return false, nil
	}
	role := orgdomain.Role(user.OrgRole)
	return role.AtLeast(orgdomain.RoleAdmin), nil
}

func (r *resolver) IsOrgOwner(ctx context.Context, userID snowflake.ID) (bool, error) {
	user, err := r.lookup(ctx, userID)
	if err != nil {
		return false, err
	}
	if user == nil || user.OrganizationID == nil {
		return false, nil
	}
	return orgdomain.Role(user.OrgRole) == orgdomain.RoleOwner, nil
}
