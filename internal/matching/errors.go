package matching

import "errors"

// Sentinel errors shared by the matching core.
var (
	ErrQueryTooShort  = errors.New("query text too short to embed meaningfully")
	ErrEmptyText      = errors.New("text is empty")
	ErrTenantRequired = errors.New("tenant id is required")
)
