package cache

import (
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/krisalay/ttl-cache/expiration"
	"github.com/krisalay/ttl-cache/types"
)

type options struct {
	name       string
	clock      clock.Clock
	metrics    types.Metrics
	logger     *slog.Logger
	expiration expiration.Strategy
}

func defaultOptions() options {
	return options{
		name:       "default",
		expiration: expiration.ExpireAfterWrite{},
	}
}

// Option configures a TTLCache.
type Option func(*options)

// WithName sets the name used in logs and metric labels.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithClock replaces the wall clock, typically with clock.NewMock() in tests.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithMetrics sets the metrics sink. Defaults to types.NoopMetrics.
func WithMetrics(m types.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the logger. Defaults to the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithExpiration overrides the expiration strategy. New panics on a nil strategy.
func WithExpiration(s expiration.Strategy) Option {
	return func(o *options) { o.expiration = s }
}
