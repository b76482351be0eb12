package domain

import "errors"

var (
	ErrNotFound    = errors.New("time template not found")
	ErrInvalidName = errors.New("template name must not be empty")
)
