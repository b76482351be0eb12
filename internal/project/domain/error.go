package domain

import "errors"

var (
	ErrProjectNotFound      = errors.New("project not found")
	ErrTaskNotFound         = errors.New("task not found")
	ErrMemberNotFound       = errors.New("project member not found")
	ErrForbidden            = errors.New("not allowed on this project")
	ErrAlreadyMember        = errors.New("user is already a project member")
	ErrAlreadyFavorite      = errors.New("project is already a favorite")
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrInvitationExpired    = errors.New("invitation expired")
	ErrInvitationNotPending = errors.New("invitation is no longer pending")
	ErrDuplicateInvitation  = errors.New("a pending invitation for this email already exists")
	ErrInvalidName          = errors.New("project name must not be empty")
)
