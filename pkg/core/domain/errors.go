package domain

import "errors"

var (
	ErrDuplicateCode       = errors.New("tracking code already exists")
	ErrInvalidTarget       = errors.New("target must be an absolute http or https URL")
	ErrNotFound            = errors.New("tracking link not found")
	ErrInactive            = errors.New("tracking link is inactive")
	ErrLinkNotFound        = errors.New("tracking link no longer exists")
	ErrAlreadyAttributed   = errors.New("login already attributed for this visitor")
	ErrGenerationExhausted = errors.New("could not generate a unique tracking code")

	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidWindow = errors.New("invalid window, expected one of 1d, 7d, 30d, 90d")
	ErrInvalidCursor = errors.New("invalid cursor")
)
