package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNoCatalog = errors.New("no skill catalog configured")
)
