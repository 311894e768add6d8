package audit

import "errors"

// Sentinel errors for the audit scheduler.
var (
	ErrInvalidSchedule = errors.New("invalid audit schedule")
	ErrListProviders   = errors.New("list providers for audit")
)
