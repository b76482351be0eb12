package domain

import "errors"

var (
	ErrNotFound         = errors.New("recurring entry not found")
	ErrInvalidFrequency = errors.New("frequency must be DAILY, WEEKLY or MONTHLY")
	ErrInvalidSchedule  = errors.New("schedule fields do not match the frequency")
	ErrInvalidName      = errors.New("name must not be empty")
	ErrInvalidDuration  = errors.New("duration must be positive")
	ErrAlreadyMaterialized = errors.New("recurring entry already materialized today")
)
