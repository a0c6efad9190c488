package auth

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/fundkit/pkg/retry"
)

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithIdentityRetry retries identity confirmation on network errors only.
// HTTP status errors such as 401 invalidate the session immediately.
// The default is no retries.
func WithIdentityRetry(retries int, backoff retry.Backoff) Option {
	return func(m *Manager) {
		m.identityRetries = max(retries, 0)
		if backoff != nil {
			m.backoff = backoff
		}
	}
}

// WithClock overrides the time source used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}
