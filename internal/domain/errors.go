package domain

import "errors"

var (
	ErrInvalidSnapshot = errors.New("invalid score snapshot")
	ErrPhaseRequired   = errors.New("phase is required")
)
