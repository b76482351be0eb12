package domain

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestFilterValidTags(t *testing.T) {
	t.Run("unknown tags are silently dropped", func(t *testing.T) {
		got := FilterValidTags([]string{"development", "blockchain", "meeting", "DEVELOPMENT"})
		assert.Equal(t, []string{"development", "meeting"}, got)
	})

	t.Run("duplicates collapse, order preserved", func(t *testing.T) {
		got := FilterValidTags([]string{"review", "design", "review"})
		assert.Equal(t, []string{"review", "design"}, got)
	})

	t.Run("never returns nil", func(t *testing.T) {
		assert.NotNil(t, FilterValidTags(nil))
		assert.Empty(t, FilterValidTags([]string{"bogus"}))
	})
}

func TestTagsRoundTrip(t *testing.T) {
	entry := TimeEntry{Tags: TagsValue([]string{"testing", "support"})}
	assert.Equal(t, []string{"testing", "support"}, entry.TagList())

	empty := TimeEntry{Tags: TagsValue(nil)}
	assert.Empty(t, empty.TagList())
}

func TestCanEditEntry(t *testing.T) {
	author := snowflake.ID(1)
	projectOwner := snowflake.ID(2)
	orgMate := snowflake.ID(3)
	entry := &TimeEntry{UserID: author}

	assert.True(t, CanEditEntry(author, entry, projectOwner))
	assert.True(t, CanEditEntry(projectOwner, entry, projectOwner))
	assert.False(t, CanEditEntry(orgMate, entry, projectOwner), "organization membership alone never grants edit rights")
	assert.False(t, CanEditEntry(orgMate, nil, projectOwner))
}
