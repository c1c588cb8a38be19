package notify

import (
	"log/slog"
	"time"
)

// Option configures the Service.
type Option func(*Service)

// WithPreferenceStore sets the source of recipient delivery preferences.
// Without it every notification passes the preference gate.
func WithPreferenceStore(store PreferenceStore) Option {
	return func(s *Service) {
		if store != nil {
			s.prefs = store
		}
	}
}

// WithSendCounter sets the daily-cap counter backend. Defaults to an
// in-memory counter, which is only suitable for a single process.
func WithSendCounter(counter SendCounter) Option {
	return func(s *Service) {
		if counter != nil {
			s.counter = counter
		}
	}
}

// WithAddressResolver sets the recipient-to-address lookup used at creation
// time. Channels that resolve to an empty address are skipped.
func WithAddressResolver(resolver AddressResolver) Option {
	return func(s *Service) {
		s.resolver = resolver
	}
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMaxRetries overrides the per-delivery retry budget.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithRetryDelays overrides the backoff base and cap.
func WithRetryDelays(base, max time.Duration) Option {
	return func(s *Service) {
		if base > 0 {
			s.baseRetryDelay = base
		}
		if max > 0 {
			s.maxRetryDelay = max
		}
	}
}

// WithSendTimeout bounds a single channel send attempt.
func WithSendTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sendTimeout = d
		}
	}
}

// WithRetentionPeriod overrides how long terminal notifications are kept
// before cleanup removes them.
func WithRetentionPeriod(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retentionPeriod = d
		}
	}
}

// WithSweepInterval overrides how often the stalled-retry sweep runs.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}
