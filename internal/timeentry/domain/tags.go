package domain

import "github.com/bwmarrin/snowflake"

// validTags is the closed tag vocabulary. Tags outside this set are silently
// dropped rather than rejected, so older clients with stale tag lists keep
// working.
var validTags = map[string]struct{}{
	"development":   {},
	"design":        {},
	"meeting":       {},
	"research":      {},
	"review":        {},
	"testing":       {},
	"documentation": {},
	"support":       {},
	"planning":      {},
	"other":         {},
}

// ValidTags returns the vocabulary in no particular order.
func ValidTags() []string {
	tags := make([]string, 0, len(validTags))
	for tag := range validTags {
		tags = append(tags, tag)
	}
	return tags
}

// FilterValidTags drops unknown tags and duplicates, preserving input order.
// It never returns nil.
func FilterValidTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if _, ok := validTags[tag]; !ok {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// CanEditEntry implements the entry mutation rule: the entry's author and
// the owner of the entry's project may edit or delete it, independent of
// organization membership.
func CanEditEntry(userID snowflake.ID, entry *TimeEntry, projectOwnerID snowflake.ID) bool {
	if entry == nil {
		return false
	}
	return entry.UserID == userID || projectOwnerID == userID
}
