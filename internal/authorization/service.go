// Package authorization gates organization-management actions with a
// role-based policy. It answers the coarse question "may this role perform
// this action at all"; the finer role-asymmetry rules (who may change whose
// role) live in the organization domain.
package authorization

import "context"

type Service interface {
	// Authorize checks whether the actor may perform action on object
	// within the given organization. The actor is a subject string such
	// as "user:1234" or "system".
	Authorize(ctx context.Context, actor string, orgID string, object string, action string) error
}
