package pool

import (
	"log/slog"

	"github.com/jirevwe/threadpool/faults"
	"github.com/jirevwe/threadpool/metrics"
)

type config struct {
	logger        *slog.Logger
	metrics       *metrics.Metrics
	reporter      faults.Reporter
	queueCapacity int
}

func defaultConfig() config {
	return config{
		logger: slog.New(slog.DiscardHandler),
	}
}

type Option func(*config)

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithFaultReporter sets where task errors and recovered panics are sent.
func WithFaultReporter(r faults.Reporter) Option {
	return func(c *config) { c.reporter = r }
}

// WithQueueCapacity bounds the number of queued tasks. Submissions beyond it
// fail with ErrQueueFull instead of blocking. Zero keeps the queue unbounded.
func WithQueueCapacity(n int) Option {
	return func(c *config) { c.queueCapacity = n }
}
