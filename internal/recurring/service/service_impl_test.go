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
	"github.com/smallbiznis/tracklight/internal/recurring/domain"
	recrepo "github.com/smallbiznis/tracklight/internal/recurring/repository"
	entrydomain "github.com/smallbiznis/tracklight/internal/timeentry/domain"
	entryrepo "github.com/smallbiznis/tracklight/internal/timeentry/repository"
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
		`CREATE TABLE recurring_entries (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL,
			project_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			activity TEXT NOT NULL DEFAULT '',
			subtask TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			duration_seconds INTEGER NOT NULL,
			billable BOOLEAN NOT NULL DEFAULT FALSE,
			frequency TEXT NOT NULL,
			days_of_week TEXT NOT NULL DEFAULT '[]',
			day_of_month INTEGER,
			start_date DATETIME NOT NULL,
			end_date DATETIME,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_run DATETIME,
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
		`CREATE TABLE tasks (
			id INTEGER PRIMARY KEY,
			project_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	} {
		require.NoError(t, db.Exec(stmt).Error)
	}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)) // a Monday
	log := zaptest.NewLogger(t)

	pRepo := projectrepo.NewRepository(db)
	projects := projectservice.NewService(
		db, pRepo, authrepo.NewRepository(db), identity.NewResolver(db),
		email.NewNoopProvider(log), node, fc,
		config.Config{BaseURL: "http://tracklight.test"}, log,
	)

	svc := NewService(db, recrepo.NewRepository(db), entryrepo.NewRepository(db), projects, node, fc, log)

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

func TestCreateValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user, project := f.seedUserAndProject(t)

	base := domain.CreateRequest{
		ProjectID:       project,
		Name:            "standup",
		DurationSeconds: 900,
		Frequency:       domain.FrequencyDaily,
		StartDate:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	t.Run("valid daily", func(t *testing.T) {
		rec, err := f.svc.Create(ctx, user, base)
		require.NoError(t, err)
		assert.True(t, rec.Active)
	})

	t.Run("weekly requires days", func(t *testing.T) {
		req := base
		req.Frequency = domain.FrequencyWeekly
		_, err := f.svc.Create(ctx, user, req)
		assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
	})

	t.Run("monthly requires day of month in range", func(t *testing.T) {
		req := base
		req.Frequency = domain.FrequencyMonthly
		day := 32
		req.DayOfMonth = &day
		_, err := f.svc.Create(ctx, user, req)
		assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
	})

	t.Run("unknown frequency", func(t *testing.T) {
		req := base
		req.Frequency = "HOURLY"
		_, err := f.svc.Create(ctx, user, req)
		assert.ErrorIs(t, err, domain.ErrInvalidFrequency)
	})

	t.Run("zero duration", func(t *testing.T) {
		req := base
		req.DurationSeconds = 0
		_, err := f.svc.Create(ctx, user, req)
		assert.ErrorIs(t, err, domain.ErrInvalidDuration)
	})
}

func TestOwnership(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user, project := f.seedUserAndProject(t)
	other, _ := f.seedUserAndProject(t)

	rec, err := f.svc.Create(ctx, user, domain.CreateRequest{
		ProjectID:       project,
		Name:            "standup",
		DurationSeconds: 900,
		Frequency:       domain.FrequencyDaily,
		StartDate:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	t.Run("others read as not found", func(t *testing.T) {
		_, err := f.svc.Update(ctx, other, rec.ID, domain.UpdateRequest{})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, f.svc.Delete(ctx, other, rec.ID), domain.ErrNotFound)
	})

	t.Run("owner can deactivate", func(t *testing.T) {
		off := false
		updated, err := f.svc.Update(ctx, user, rec.ID, domain.UpdateRequest{Active: &off})
		require.NoError(t, err)
		assert.False(t, updated.Active)
	})
}

func TestMaterializeDue(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user, project := f.seedUserAndProject(t)

	rec, err := f.svc.Create(ctx, user, domain.CreateRequest{
		ProjectID:       project,
		Name:            "weekly sync",
		Activity:        "meeting",
		Tags:            []string{"meeting"},
		DurationSeconds: 3600,
		Billable:        true,
		Frequency:       domain.FrequencyWeekly,
		DaysOfWeek:      []int{1}, // Mondays
		StartDate:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	now := f.clock.Now() // Monday 2024-03-04 08:00 UTC

	t.Run("fires once on a due day", func(t *testing.T) {
		fired, err := f.svc.MaterializeDue(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 1, fired)

		var entry entrydomain.TimeEntry
		require.NoError(t, f.db.First(&entry, "user_id = ?", user).Error)
		assert.Equal(t, rec.ProjectID, entry.ProjectID)
		assert.Equal(t, 9, entry.StartTime.Hour())
		require.NotNil(t, entry.EndTime)
		assert.Equal(t, 10, entry.EndTime.Hour())
		require.NotNil(t, entry.DurationSeconds)
		assert.Equal(t, int64(3600), *entry.DurationSeconds)
		assert.True(t, entry.Billable)
	})

	t.Run("same-day sweep is a no-op", func(t *testing.T) {
		fired, err := f.svc.MaterializeDue(ctx, now.Add(4*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, fired)

		var count int64
		require.NoError(t, f.db.Model(&entrydomain.TimeEntry{}).Where("user_id = ?", user).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("tuesday is not due", func(t *testing.T) {
		fired, err := f.svc.MaterializeDue(ctx, now.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Equal(t, 0, fired)
	})

	t.Run("next monday fires again", func(t *testing.T) {
		fired, err := f.svc.MaterializeDue(ctx, now.AddDate(0, 0, 7))
		require.NoError(t, err)
		assert.Equal(t, 1, fired)
	})
}
