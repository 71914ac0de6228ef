package repository

import "time"

// Option applies a configuration option to the BoardStore.
type Option func(*BoardStore)

// WithClock overrides the time source used to stamp boards without BuiltAt.
func WithClock(now func() time.Time) Option {
	return func(s *BoardStore) {
		if now != nil {
			s.now = now
		}
	}
}
