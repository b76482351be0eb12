package authorization

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setup(t *testing.T) (Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT,
		organization_id INTEGER,
		org_role TEXT NOT NULL DEFAULT 'MEMBER',
		reset_token_hash TEXT,
		reset_token_expires_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`).Error)

	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)

	return NewService(db, enforcer, zaptest.NewLogger(t)), db
}

func seedMember(t *testing.T, db *gorm.DB, id int64, orgID int64, role string) {
	t.Helper()
	require.NoError(t, db.Exec(
		`INSERT INTO users (id, name, email, organization_id, org_role) VALUES (?, 'u', ?, ?, ?)`,
		id, fmt.Sprintf("user-%d@example.com", id), orgID, role,
	).Error)
}

func TestAuthorizeByRole(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()

	seedMember(t, db, 1, 100, "OWNER")
	seedMember(t, db, 2, 100, "ADMIN")
	seedMember(t, db, 3, 100, "MEMBER")

	cases := []struct {
		name   string
		actor  string
		object string
		action string
		want   error
	}{
		{"member may view members", "user:3", ObjectMember, ActionMemberView, nil},
		{"member may not invite", "user:3", ObjectInvitation, ActionInvitationCreate, ErrForbidden},
		{"member may not remove", "user:3", ObjectMember, ActionMemberRemove, ErrForbidden},
		{"admin may invite", "user:2", ObjectInvitation, ActionInvitationCreate, nil},
		{"admin may change roles", "user:2", ObjectMember, ActionMemberUpdate, nil},
		{"admin may not delete the org", "user:2", ObjectOrganization, ActionOrganizationDelete, ErrForbidden},
		{"owner may delete the org", "user:1", ObjectOrganization, ActionOrganizationDelete, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Authorize(ctx, tc.actor, "100", tc.object, tc.action)
			if tc.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestAuthorizeOutsiders(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()

	seedMember(t, db, 1, 100, "OWNER")
	seedMember(t, db, 9, 200, "OWNER")

	t.Run("owner of another org is denied", func(t *testing.T) {
		err := svc.Authorize(ctx, "user:9", "100", ObjectMember, ActionMemberView)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unknown user is denied", func(t *testing.T) {
		err := svc.Authorize(ctx, "user:42", "100", ObjectMember, ActionMemberView)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("garbage actor is rejected", func(t *testing.T) {
		err := svc.Authorize(ctx, "api_key:1", "100", ObjectMember, ActionMemberView)
		assert.ErrorIs(t, err, ErrInvalidActor)
	})

	t.Run("blank org is rejected", func(t *testing.T) {
		err := svc.Authorize(ctx, "user:1", "", ObjectMember, ActionMemberView)
		assert.ErrorIs(t, err, ErrInvalidOrganization)
	})
}

func TestGroupingFollowsRoleChange(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()

	seedMember(t, db, 1, 100, "OWNER")
	seedMember(t, db, 2, 100, "ADMIN")

	require.NoError(t, svc.Authorize(ctx, "user:2", "100", ObjectInvitation, ActionInvitationCreate))

	// Demote: the cached grouping must not keep granting admin actions.
	require.NoError(t, db.Exec(`UPDATE users SET org_role = 'MEMBER' WHERE id = 2`).Error)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:2", "100", ObjectInvitation, ActionInvitationCreate), ErrForbidden)
	assert.NoError(t, svc.Authorize(ctx, "user:2", "100", ObjectMember, ActionMemberView))
}
