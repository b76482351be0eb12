package domain

import "errors"

var (
	ErrEntryNotFound       = errors.New("time entry not found")
	ErrCommentNotFound     = errors.New("comment not found")
	ErrForbidden           = errors.New("not allowed on this time entry")
	ErrTimerAlreadyRunning = errors.New("a timer is already running")
	ErrNoRunningTimer      = errors.New("no running timer")
	ErrInvalidTimeRange    = errors.New("end time must be after start time")
	ErrEmptyComment        = errors.New("comment must not be empty")
)
