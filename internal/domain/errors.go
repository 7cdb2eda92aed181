package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicate        = errors.New("already exists")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemplateInactive = errors.New("template is not active")
	// ErrUnavailable is returned by collaborators that are not configured.
	ErrUnavailable = errors.New("unavailable")
)
