package domain

import "errors"

var (
	ErrOrgNotFound          = errors.New("organization not found")
	ErrMemberNotFound       = errors.New("member not found in organization")
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrInvitationExpired    = errors.New("invitation expired")
	ErrInvitationNotPending = errors.New("invitation is no longer pending")
	ErrDuplicateInvitation  = errors.New("a pending invitation for this email already exists")
	ErrAlreadyInOrganization = errors.New("user already belongs to an organization")
	ErrNotInOrganization    = errors.New("user does not belong to an organization")
	ErrForbidden            = errors.New("insufficient role for this action")
	ErrOwnerImmutable       = errors.New("the owner's role cannot be changed")
	ErrOwnerCannotLeave     = errors.New("the owner cannot leave; delete the organization instead")
	ErrInvalidRole          = errors.New("invalid role")
	ErrInvalidName          = errors.New("organization name must not be empty")
	ErrSlugTaken            = errors.New("organization slug already in use")
)
