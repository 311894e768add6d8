package cache

import "errors"

// Sentinel kinds for cache errors.
var (
	ErrConnect = errors.New("redis connect failed")
)
