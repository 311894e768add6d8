package repository

import "github.com/okian/tradelink/pkg/logger"

// Option applies a configuration option to the PostgresStore.
type Option func(*PostgresStore)

// WithMaxConns caps the pool size.
func WithMaxConns(n int) Option {
	return func(s *PostgresStore) {
		if n > 0 {
			s.maxConns = int32(n)
		}
	}
}

// WithMigrate applies the embedded schema when the store opens.
func WithMigrate(enabled bool) Option {
	return func(s *PostgresStore) {
		s.migrate = enabled
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *PostgresStore) {
		if l != nil {
			s.logger = l
		}
	}
}
