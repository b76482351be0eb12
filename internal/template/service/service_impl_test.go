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
	projectrepo "github.com/smallbiznis/tracklight/internal/project/repository"
	projectservice "github.com/smallbiznis/tracklight/internal/project/service"
	"github.com/smallbiznis/tracklight/internal/providers/email"
	"github.com/smallbiznis/tracklight/internal/template/domain"
	tmplrepo "github.com/smallbiznis/tracklight/internal/template/repository"
	entrydomain "github.com/smallbiznis/tracklight/internal/timeentry/domain"
	entryrepo "github.com/smallbiznis/tracklight/internal/timeentry/repository"
	entryservice "github.com/smallbiznis/tracklight/internal/timeentry/service"
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
		`CREATE TABLE time_entries (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL,
			project_id INTEGER NOT NULL,
			task_id INTEGER,
			start_time DATETIME NOT NULL,
			end_time DATETIME,
			duration_seconds INTEGER,
			billable BOOLEAN NOT NULL DEFAULT FALSE,
			activity TEXT NOT NULL DEFAULT '',
			subtask TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX ux_time_entries_running ON time_entries (user_id) WHERE end_time IS NULL`,
		`CREATE TABLE time_templates (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL,
			project_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			activity TEXT NOT NULL DEFAULT '',
			subtask TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			billable BOOLEAN NOT NULL DEFAULT FALSE,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
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
		`CREATE TABLE favorite_projects (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL,
			project_id INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, project_id)
		)`,
	} {
		require.NoError(t, db.Exec(stmt).Error)
	}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))
	log := zaptest.NewLogger(t)

	resolver := identity.NewResolver(db)
	pRepo := projectrepo.NewRepository(db)
	projects := projectservice.NewService(
		db, pRepo, authrepo.NewRepository(db), resolver,
		email.NewNoopProvider(log), node, fc,
		config.Config{BaseURL: "http://tracklight.test"}, log,
	)
	entries := entryservice.NewService(entryrepo.NewRepository(db), projects, pRepo, resolver, node, fc, log)

	svc := NewService(db, tmplrepo.NewRepository(db), entries, projects, node, fc, log)

	return &fixture{db: db, svc: svc, clock: fc, nextID: 1000}
}

func (f *fixture) seedUserAndProject(t *testing.T) (snowflake.ID, snowflake.ID) {
	t.Helper()
	f.nextID++
	user := f.nextID
	require.NoError(t, f.db.Exec(
		`INSERT INTO users (id, name, email) VALUES (?, 'u', ?)`,
		user, snowflake.ID(user).String()+"@example.com",
	).Error)
	f.nextID++
	project := f.nextID
	require.NoError(t, f.db.Exec(
		`INSERT INTO projects (id, name, owner_id) VALUES (?, 'p', ?)`,
		project, user,
	).Error)
	return snowflake.ID(user), snowflake.ID(project)
}

func TestSingleDefault(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user, project := f.seedUserAndProject(t)

	first, err := f.svc.Create(ctx, user, domain.CreateRequest{
		ProjectID: project, Name: "daily work", IsDefault: true,
	})
	require.NoError(t, err)
	assert.True(t, first.IsDefault)

	second, err := f.svc.Create(ctx, user, domain.CreateRequest{
		ProjectID: project, Name: "meetings", IsDefault: true,
	})
	require.NoError(t, err)
	assert.True(t, second.IsDefault)

	tmpls, err := f.svc.List(ctx, user)
	require.NoError(t, err)
	require.Len(t, tmpls, 2)

	defaults := 0
	for _, tmpl := range tmpls {
		if tmpl.IsDefault {
			defaults++
			assert.Equal(t, second.ID, tmpl.ID)
		}
	}
	assert.Equal(t, 1, defaults)

	t.Run("update can move the default back", func(t *testing.T) {
		on := true
		_, err := f.svc.Update(ctx, user, first.ID, domain.UpdateRequest{IsDefault: &on})
		require.NoError(t, err)

		tmpls, err := f.svc.List(ctx, user)
		require.NoError(t, err)
		defaults := 0
		for _, tmpl := range tmpls {
			if tmpl.IsDefault {
				defaults++
				assert.Equal(t, first.ID, tmpl.ID)
			}
		}
		assert.Equal(t, 1, defaults)
	})
}

func TestTemplateOwnership(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user, project := f.seedUserAndProject(t)
	other, _ := f.seedUserAndProject(t)

	tmpl, err := f.svc.Create(ctx, user, domain.CreateRequest{ProjectID: project, Name: "mine"})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, other, tmpl.ID, domain.UpdateRequest{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, other, tmpl.ID), domain.ErrNotFound)
	_, err = f.svc.Instantiate(ctx, other, tmpl.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInstantiate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user, project := f.seedUserAndProject(t)

	t.Run("template with duration creates a completed entry", func(t *testing.T) {
		tmpl, err := f.svc.Create(ctx, user, domain.CreateRequest{
			ProjectID:       project,
			Name:            "hour block",
			Tags:            []string{"development"},
			DurationSeconds: 3600,
			Billable:        true,
		})
		require.NoError(t, err)

		entryID, err := f.svc.Instantiate(ctx, user, tmpl.ID)
		require.NoError(t, err)

		var entry entrydomain.TimeEntry
		require.NoError(t, f.db.First(&entry, "id = ?", entryID).Error)
		require.NotNil(t, entry.DurationSeconds)
		assert.Equal(t, int64(3600), *entry.DurationSeconds)
		assert.False(t, entry.Running())
		assert.True(t, entry.Billable)
		assert.Equal(t, []string{"development"}, entry.TagList())
	})

	t.Run("template without duration starts a timer", func(t *testing.T) {
		tmpl, err := f.svc.Create(ctx, user, domain.CreateRequest{
			ProjectID: project,
			Name:      "open ended",
		})
		require.NoError(t, err)

		entryID, err := f.svc.Instantiate(ctx, user, tmpl.ID)
		require.NoError(t, err)

		var entry entrydomain.TimeEntry
		require.NoError(t, f.db.First(&entry, "id = ?", entryID).Error)
		assert.True(t, entry.Running())

		t.Run("second instantiation conflicts with the running timer", func(t *testing.T) {
			_, err := f.svc.Instantiate(ctx, user, tmpl.ID)
			assert.ErrorIs(t, err, entrydomain.ErrTimerAlreadyRunning)
		})
	})
}
