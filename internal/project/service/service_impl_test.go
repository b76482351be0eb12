package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	authrepo "github.com/smallbiznis/tracklight/internal/auth/repository"
	"github.com/smallbiznis/tracklight/internal/clock"
	"github.com/smallbiznis/tracklight/internal/config"
	"github.com/smallbiznis/tracklight/internal/identity"
	"github.com/smallbiznis/tracklight/internal/project/domain"
	projectrepo "github.com/smallbiznis/tracklight/internal/project/repository"
	"github.com/smallbiznis/tracklight/internal/providers/email"
)

type fixture struct {
	db     *gorm.DB
	svc    domain.Service
	clock  *clock.FakeClock
	nextID int64
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	for _, stmt := range []string{
		`CREATE TABLE users (
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
		)`,
		`CREATE TABLE projects (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '#6366f1',
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			owner_id INTEGER NOT NULL,
			organization_id INTEGER,
			hourly_rate NUMERIC,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE project_members (
			id INTEGER PRIMARY KEY,
			project_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			role TEXT NOT NULL DEFAULT 'MEMBER',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (project_id, user_id)
		)`,
		`CREATE TABLE tasks (
			id INTEGER PRIMARY KEY,
			project_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE favorite_projects (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL,
			project_id INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, project_id)
		)`,
		`CREATE TABLE project_invitations (
			id INTEGER PRIMARY KEY,
			project_id INTEGER NOT NULL,
			email TEXT NOT NULL,
			token TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'PENDING',
			expires_at DATETIME NOT NULL,
			sender_id INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	} {
		require.NoError(t, db.Exec(stmt).Error)
	}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))
	log := zaptest.NewLogger(t)

	svc := NewService(
		db,
		projectrepo.NewRepository(db),
		authrepo.NewRepository(db),
		identity.NewResolver(db),
		email.NewNoopProvider(log),
		node,
		fc,
		config.Config{BaseURL: "http://tracklight.test"},
		log,
	)

	return &fixture{db: db, svc: svc, clock: fc, nextID: 1000}
}

func (f *fixture) seedUser(t *testing.T, name string, orgID *int64) snowflake.ID {
	t.Helper()
	f.nextID++
	require.NoError(t, f.db.Exec(
		`INSERT INTO users (id, name, email, organization_id) VALUES (?, ?, ?, ?)`,
		f.nextID, name, name+"@example.com", orgID,
	).Error)
	return snowflake.ID(f.nextID)
}

func TestProjectAccessRule(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	org := int64(500)
	owner := f.seedUser(t, "owner", &org)
	orgMate := f.seedUser(t, "orgmate", &org)
	outsider := f.seedUser(t, "outsider", nil)
	joiner := f.seedUser(t, "joiner", nil)

	project, err := f.svc.Create(ctx, owner, domain.CreateRequest{Name: "Alpha"})
	require.NoError(t, err)
	require.NotNil(t, project.OrganizationID)
	assert.Equal(t, snowflake.ID(org), *project.OrganizationID)

	require.NoError(t, f.db.Exec(
		`INSERT INTO project_members (id, project_id, user_id, role) VALUES (1, ?, ?, 'MEMBER')`,
		project.ID, joiner,
	).Error)

	t.Run("owner can read and modify", func(t *testing.T) {
		_, err := f.svc.Access(ctx, owner, project.ID)
		assert.NoError(t, err)
		_, err = f.svc.Modify(ctx, owner, project.ID)
		assert.NoError(t, err)
	})

	t.Run("org mate can read but not modify", func(t *testing.T) {
		_, err := f.svc.Access(ctx, orgMate, project.ID)
		assert.NoError(t, err)
		_, err = f.svc.Modify(ctx, orgMate, project.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("project member outside the org can read but not modify", func(t *testing.T) {
		_, err := f.svc.Access(ctx, joiner, project.ID)
		assert.NoError(t, err)
		_, err = f.svc.Modify(ctx, joiner, project.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("outsider sees not found, not forbidden", func(t *testing.T) {
		_, err := f.svc.Access(ctx, outsider, project.ID)
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)
		_, err = f.svc.Modify(ctx, outsider, project.ID)
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	})

	t.Run("org mate cannot rename or delete", func(t *testing.T) {
		name := "Renamed"
		_, err := f.svc.Update(ctx, orgMate, project.ID, domain.UpdateRequest{Name: &name})
		assert.ErrorIs(t, err, domain.ErrForbidden)
		assert.ErrorIs(t, f.svc.Delete(ctx, orgMate, project.ID), domain.ErrForbidden)
	})
}

func TestProjectCreateAddsOwnerMembership(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	owner := f.seedUser(t, "solo", nil)
	project, err := f.svc.Create(ctx, owner, domain.CreateRequest{Name: "Solo"})
	require.NoError(t, err)
	assert.Nil(t, project.OrganizationID)

	members, err := f.svc.ListMembers(ctx, owner, project.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, owner, members[0].UserID)
	assert.Equal(t, domain.MemberRoleOwner, members[0].Role)
}

func TestTasks(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	owner := f.seedUser(t, "owner", nil)
	outsider := f.seedUser(t, "outsider", nil)
	project, err := f.svc.Create(ctx, owner, domain.CreateRequest{Name: "Tasks"})
	require.NoError(t, err)

	task, err := f.svc.CreateTask(ctx, owner, project.ID, domain.TaskCreateRequest{Name: "write report"})
	require.NoError(t, err)

	t.Run("outsider cannot see tasks", func(t *testing.T) {
		_, err := f.svc.ListTasks(ctx, outsider, project.ID)
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	})

	t.Run("complete a task", func(t *testing.T) {
		done := true
		updated, err := f.svc.UpdateTask(ctx, owner, project.ID, task.ID, domain.TaskUpdateRequest{Completed: &done})
		require.NoError(t, err)
		assert.True(t, updated.Completed)
	})

	t.Run("delete a task", func(t *testing.T) {
		require.NoError(t, f.svc.DeleteTask(ctx, owner, project.ID, task.ID))
		_, err := f.svc.UpdateTask(ctx, owner, project.ID, task.ID, domain.TaskUpdateRequest{})
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})
}

func TestFavorites(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	owner := f.seedUser(t, "owner", nil)
	project, err := f.svc.Create(ctx, owner, domain.CreateRequest{Name: "Fav"})
	require.NoError(t, err)

	require.NoError(t, f.svc.AddFavorite(ctx, owner, project.ID))
	assert.ErrorIs(t, f.svc.AddFavorite(ctx, owner, project.ID), domain.ErrAlreadyFavorite)

	favs, err := f.svc.ListFavorites(ctx, owner)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, project.ID, favs[0].ID)

	require.NoError(t, f.svc.RemoveFavorite(ctx, owner, project.ID))
	favs, err = f.svc.ListFavorites(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, favs)
}

func TestProjectInvitations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	owner := f.seedUser(t, "owner", nil)
	guest := f.seedUser(t, "guest", nil)
	project, err := f.svc.Create(ctx, owner, domain.CreateRequest{Name: "Invite"})
	require.NoError(t, err)

	t.Run("only the owner can invite", func(t *testing.T) {
		_, err := f.svc.Invite(ctx, guest, project.ID, "someone@example.com")
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	})

	res, err := f.svc.Invite(ctx, owner, project.ID, "guest@example.com")
	require.NoError(t, err)
	assert.Len(t, res.Invitation.Token, 64)

	t.Run("duplicate pending invitation conflicts", func(t *testing.T) {
		_, err := f.svc.Invite(ctx, owner, project.ID, "guest@example.com")
		assert.ErrorIs(t, err, domain.ErrDuplicateInvitation)
	})

	t.Run("accept adds a member row and is single-use", func(t *testing.T) {
		accepted, err := f.svc.AcceptInvitation(ctx, guest, res.Invitation.Token)
		require.NoError(t, err)
		assert.Equal(t, project.ID, accepted.ID)

		_, err = f.svc.Access(ctx, guest, project.ID)
		assert.NoError(t, err)

		_, err = f.svc.AcceptInvitation(ctx, guest, res.Invitation.Token)
		assert.ErrorIs(t, err, domain.ErrInvitationNotPending)
	})

	t.Run("expired invitation", func(t *testing.T) {
		res, err := f.svc.Invite(ctx, owner, project.ID, "late@example.com")
		require.NoError(t, err)

		f.clock.Advance(8 * 24 * time.Hour)
		late := f.seedUser(t, "late", nil)
		_, err = f.svc.AcceptInvitation(ctx, late, res.Invitation.Token)
		assert.ErrorIs(t, err, domain.ErrInvitationExpired)
	})

	t.Run("member can leave, owner cannot be removed", func(t *testing.T) {
		require.NoError(t, f.svc.RemoveMember(ctx, guest, project.ID, guest))
		assert.ErrorIs(t, f.svc.RemoveMember(ctx, owner, project.ID, owner), domain.ErrForbidden)
	})
}
