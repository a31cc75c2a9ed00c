// Package breaker wraps infrastructure-facing calls (store, broker) in
// a circuit breaker so a prolonged outage fails fast instead of
// piling up blocked goroutines behind exponential backoff retries.
//
// The teacher repository declares github.com/sony/gobreaker in its
// go.mod but never imports it — its own internal/evaluator package
// hand-rolls an equivalent per-name consecutive-failure breaker
// instead. This package wires the declared-but-unused dependency in
// for real, rather than reproducing the hand-rolled version, since the
// infrastructure-failure error class needs exactly gobreaker's
// closed/open/half-open state machine.
package breaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dwsmith1983/interlock/internal/errkind"
)

// Config tunes one circuit breaker's sensitivity.
type Config struct {
	Name        string
	MaxRequests uint32        // allowed probe requests while half-open
	Interval    time.Duration // cycle to clear closed-state counters
	Timeout     time.Duration // how long to stay open before half-open
	FailureThreshold float64  // failures/requests ratio (over at least 3 requests) that trips the breaker
}

// DefaultConfig returns sensible defaults for a store/broker breaker.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
	}
}

// Breaker wraps one infrastructure dependency's circuit breaker. The
// pinned gobreaker major version predates its generic API, so Execute
// trades in interface{} and Do recovers the concrete type with a type
// assertion.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New constructs a Breaker from Config.
func New(cfg Config) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 3 && float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Do runs fn through the breaker. A tripped-open breaker's error is
// classified Infrastructure so callers can apply the same fatal/retry
// policy as a direct infrastructure failure.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		return result, errkind.Classify(errkind.Infrastructure, err)
	}
	return result, nil
}
