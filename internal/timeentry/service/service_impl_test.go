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
	projectdomain "github.com/smallbiznis/tracklight/internal/project/domain"
	projectrepo "github.com/smallbiznis/tracklight/internal/project/repository"
	projectservice "github.com/smallbiznis/tracklight/internal/project/service"
	"github.com/smallbiznis/tracklight/internal/providers/email"
	"github.com/smallbiznis/tracklight/internal/timeentry/domain"
	entryrepo "github.com/smallbiznis/tracklight/internal/timeentry/repository"
	"github.com/smallbiznis/tracklight/pkg/db/pagination"
)

type fixture struct {
	db       *gorm.DB
	svc      domain.Service
	projects projectdomain.Service
	clock    *clock.FakeClock
	nextID   int64
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
		`CREATE TABLE entry_comments (
			id INTEGER PRIMARY KEY,
			entry_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
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

	svc := NewService(entryrepo.NewRepository(db), projects, pRepo, resolver, node, fc, log)

	return &fixture{db: db, svc: svc, projects: projects, clock: fc, nextID: 1000}
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

func (f *fixture) seedProject(t *testing.T, owner snowflake.ID, orgID *int64) snowflake.ID {
	t.Helper()
	f.nextID++
	require.NoError(t, f.db.Exec(
		`INSERT INTO projects (id, name, owner_id, organization_id) VALUES (?, 'p', ?, ?)`,
		f.nextID, owner, orgID,
	).Error)
	return snowflake.ID(f.nextID)
}

func (f *fixture) addMember(t *testing.T, project, user snowflake.ID) {
	t.Helper()
	f.nextID++
	require.NoError(t, f.db.Exec(
		`INSERT INTO project_members (id, project_id, user_id) VALUES (?, ?, ?)`,
		f.nextID, project, user,
	).Error)
}

func (f *fixture) seedEntry(t *testing.T, user, project snowflake.ID, start time.Time, durationSec int64) snowflake.ID {
	t.Helper()
	f.nextID++
	end := start.Add(time.Duration(durationSec) * time.Second)
	require.NoError(t, f.db.Exec(
		`INSERT INTO time_entries (id, user_id, project_id, start_time, end_time, duration_seconds)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.nextID, user, project, start, end, durationSec,
	).Error)
	return snowflake.ID(f.nextID)
}

func TestVisibleUserIDs(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	org := int64(900)
	alice := f.seedUser(t, "alice", &org)
	bob := f.seedUser(t, "bob", &org)
	carol := f.seedUser(t, "carol", nil)
	dave := f.seedUser(t, "dave", nil)

	project := f.seedProject(t, carol, nil)
	f.addMember(t, project, dave)

	t.Run("default is self-only", func(t *testing.T) {
		ids, err := f.svc.VisibleUserIDs(ctx, alice, domain.VisibilityOpts{})
		require.NoError(t, err)
		assert.Equal(t, []snowflake.ID{alice}, ids)
	})

	t.Run("allMembers expands to the org", func(t *testing.T) {
		ids, err := f.svc.VisibleUserIDs(ctx, alice, domain.VisibilityOpts{AllMembers: true})
		require.NoError(t, err)
		assert.ElementsMatch(t, []snowflake.ID{alice, bob}, ids)
	})

	t.Run("allMembers without an org is a no-op", func(t *testing.T) {
		ids, err := f.svc.VisibleUserIDs(ctx, carol, domain.VisibilityOpts{AllMembers: true})
		require.NoError(t, err)
		assert.Equal(t, []snowflake.ID{carol}, ids)
	})

	t.Run("same-org target is visible to any member", func(t *testing.T) {
		ids, err := f.svc.VisibleUserIDs(ctx, bob, domain.VisibilityOpts{TargetUserID: &alice})
		require.NoError(t, err)
		assert.Equal(t, []snowflake.ID{alice}, ids)
	})

	t.Run("cross-org target is forbidden", func(t *testing.T) {
		_, err := f.svc.VisibleUserIDs(ctx, alice, domain.VisibilityOpts{TargetUserID: &carol})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("org-less requester sees members of their own projects", func(t *testing.T) {
		ids, err := f.svc.VisibleUserIDs(ctx, carol, domain.VisibilityOpts{TargetUserID: &dave})
		require.NoError(t, err)
		assert.Equal(t, []snowflake.ID{dave}, ids)

		_, err = f.svc.VisibleUserIDs(ctx, dave, domain.VisibilityOpts{TargetUserID: &carol})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestTimer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	user := f.seedUser(t, "user", nil)
	project := f.seedProject(t, user, nil)

	t.Run("stop without a running timer", func(t *testing.T) {
		_, err := f.svc.StopTimer(ctx, user)
		assert.ErrorIs(t, err, domain.ErrNoRunningTimer)
	})

	entry, err := f.svc.StartTimer(ctx, user, domain.StartRequest{
		ProjectID: project,
		Tags:      []string{"development", "nonsense"},
	})
	require.NoError(t, err)
	assert.True(t, entry.Running())
	assert.Equal(t, []string{"development"}, entry.TagList())

	t.Run("second start conflicts", func(t *testing.T) {
		_, err := f.svc.StartTimer(ctx, user, domain.StartRequest{ProjectID: project})
		assert.ErrorIs(t, err, domain.ErrTimerAlreadyRunning)
	})

	t.Run("running timer is readable", func(t *testing.T) {
		running, err := f.svc.RunningTimer(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, entry.ID, running.ID)
	})

	t.Run("stop records the duration", func(t *testing.T) {
		f.clock.Advance(90 * time.Minute)
		stopped, err := f.svc.StopTimer(ctx, user)
		require.NoError(t, err)
		require.NotNil(t, stopped.DurationSeconds)
		assert.Equal(t, int64(5400), *stopped.DurationSeconds)

		_, err = f.svc.RunningTimer(ctx, user)
		assert.ErrorIs(t, err, domain.ErrNoRunningTimer)
	})

	t.Run("a new timer may start after stopping", func(t *testing.T) {
		_, err := f.svc.StartTimer(ctx, user, domain.StartRequest{ProjectID: project})
		assert.NoError(t, err)
	})
}

func TestEntryMutationRule(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	org := int64(901)
	owner := f.seedUser(t, "owner", &org)
	author := f.seedUser(t, "author", &org)
	orgMate := f.seedUser(t, "orgmate", &org)

	project := f.seedProject(t, owner, &org)
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	entryID := f.seedEntry(t, author, project, start, 3600)

	notes := "updated"

	t.Run("author can edit", func(t *testing.T) {
		updated, err := f.svc.Update(ctx, author, entryID, domain.UpdateRequest{Notes: &notes})
		require.NoError(t, err)
		assert.Equal(t, "updated", updated.Notes)
	})

	t.Run("project owner can edit another user's entry", func(t *testing.T) {
		_, err := f.svc.Update(ctx, owner, entryID, domain.UpdateRequest{Notes: &notes})
		assert.NoError(t, err)
	})

	t.Run("org mate can read but not edit", func(t *testing.T) {
		ids, err := f.svc.VisibleUserIDs(ctx, orgMate, domain.VisibilityOpts{TargetUserID: &author})
		require.NoError(t, err)
		assert.Equal(t, []snowflake.ID{author}, ids)

		_, err = f.svc.Update(ctx, orgMate, entryID, domain.UpdateRequest{Notes: &notes})
		assert.ErrorIs(t, err, domain.ErrForbidden)
		assert.ErrorIs(t, f.svc.Delete(ctx, orgMate, entryID), domain.ErrForbidden)
	})

	t.Run("author can delete", func(t *testing.T) {
		assert.NoError(t, f.svc.Delete(ctx, author, entryID))
	})
}

func TestListAndSummary(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	org := int64(902)
	alice := f.seedUser(t, "alice", &org)
	bob := f.seedUser(t, "bob", &org)

	project := f.seedProject(t, alice, &org)
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	f.seedEntry(t, alice, project, base, 3600)
	f.seedEntry(t, alice, project, base.Add(24*time.Hour), 1800)
	f.seedEntry(t, bob, project, base.Add(2*time.Hour), 7200)

	t.Run("self-only list", func(t *testing.T) {
		entries, _, err := f.svc.List(ctx, alice, domain.ListQuery{})
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("allMembers list is newest-first", func(t *testing.T) {
		entries, _, err := f.svc.List(ctx, alice, domain.ListQuery{
			Visibility: domain.VisibilityOpts{AllMembers: true},
		})
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.True(t, entries[0].StartTime.After(entries[1].StartTime))
	})

	t.Run("date range filter", func(t *testing.T) {
		to := base.Add(12 * time.Hour)
		entries, _, err := f.svc.List(ctx, alice, domain.ListQuery{From: &base, To: &to})
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("cursor pagination", func(t *testing.T) {
		entries, info, err := f.svc.List(ctx, alice, domain.ListQuery{
			Visibility: domain.VisibilityOpts{AllMembers: true},
			Pagination: pagination.Pagination{PageSize: 2},
		})
		require.NoError(t, err)
		assert.Len(t, entries, 2)
		require.True(t, info.HasMore)

		rest, info2, err := f.svc.List(ctx, alice, domain.ListQuery{
			Visibility: domain.VisibilityOpts{AllMembers: true},
			Pagination: pagination.Pagination{PageSize: 2, PageToken: info.NextPageToken},
		})
		require.NoError(t, err)
		assert.Len(t, rest, 1)
		assert.False(t, info2.HasMore)
	})

	t.Run("summary aggregates per user", func(t *testing.T) {
		rows, err := f.svc.Summary(ctx, alice, domain.SummaryQuery{
			Visibility: domain.VisibilityOpts{AllMembers: true},
		})
		require.NoError(t, err)
		require.Len(t, rows, 2)

		totals := map[snowflake.ID]int64{}
		for _, row := range rows {
			totals[row.UserID] = row.TotalSeconds
		}
		assert.Equal(t, int64(5400), totals[alice])
		assert.Equal(t, int64(7200), totals[bob])
	})
}

func TestComments(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	org := int64(903)
	author := f.seedUser(t, "author", &org)
	orgMate := f.seedUser(t, "orgmate", &org)
	stranger := f.seedUser(t, "stranger", nil)

	project := f.seedProject(t, author, &org)
	entryID := f.seedEntry(t, author, project, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), 3600)

	comment, err := f.svc.AddComment(ctx, author, entryID, "looks right")
	require.NoError(t, err)

	t.Run("org mate may comment on a visible entry", func(t *testing.T) {
		_, err := f.svc.AddComment(ctx, orgMate, entryID, "agreed")
		assert.NoError(t, err)
	})

	t.Run("stranger cannot see or comment", func(t *testing.T) {
		_, err := f.svc.ListComments(ctx, stranger, entryID)
		assert.ErrorIs(t, err, domain.ErrEntryNotFound)
		_, err = f.svc.AddComment(ctx, stranger, entryID, "hi")
		assert.ErrorIs(t, err, domain.ErrEntryNotFound)
	})

	t.Run("empty comment is rejected", func(t *testing.T) {
		_, err := f.svc.AddComment(ctx, author, entryID, "   ")
		assert.ErrorIs(t, err, domain.ErrEmptyComment)
	})

	t.Run("author deletes their comment", func(t *testing.T) {
		require.NoError(t, f.svc.DeleteComment(ctx, author, comment.ID))
		comments, err := f.svc.ListComments(ctx, author, entryID)
		require.NoError(t, err)
		assert.Len(t, comments, 1)
	})
}
