package service

import (
	"time"

	"github.com/okian/tradelink/internal/domain/consistency"
	"github.com/okian/tradelink/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithParallelism bounds how many candidates are scored at once.
func WithParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithCallTimeout bounds a single recommendation call. Zero disables it.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.callTimeout = d
		}
	}
}

// WithClock replaces the wall clock used for request expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSkillCatalog sets the catalog used to resolve structured skills.
func WithSkillCatalog(c consistency.SkillCatalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
