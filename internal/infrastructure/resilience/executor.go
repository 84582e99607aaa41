package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrorClassification tells the executor what to do with a failed attempt.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// Executor runs named operations with their retry policy, behind one circuit
// breaker per name.
type Executor struct {
	cfg     Config
	breaker Breaker
	logger  *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:      cfg,
		breaker:  cfg.Breaker.normalize(),
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Call runs fn through e and returns its value. A nil executor calls fn directly.
func Call[T any](ctx context.Context, e *Executor, operation string, fn func(context.Context) (T, error), classifier ErrorClassifier) (T, error) {
	var out T
	if fn == nil {
		return out, fmt.Errorf("resilience: %s: nil callback", operation)
	}
	if e == nil {
		return fn(ctx)
	}
	err := e.Execute(ctx, operation, func(callCtx context.Context) error {
		v, err := fn(callCtx)
		if err == nil {
			out = v
		}
		return err
	}, classifier)
	return out, err
}

// Execute runs fn under the policy registered for operation. The whole retry
// sequence counts as one breaker request.
func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	if fn == nil {
		return fmt.Errorf("resilience: %s: nil callback", operation)
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classifier == nil {
		classifier = recordAll
	}

	attempt := func() error { return e.attempt(ctx, op, fn, classifier) }
	if !e.breaker.Enabled {
		return attempt()
	}
	_, err := e.circuitBreaker(op, classifier).Execute(func() (struct{}, error) {
		return struct{}{}, attempt()
	})
	return err
}

// State reports the breaker state for operation, closed when none exists yet.
func (e *Executor) State(operation string) gobreaker.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cb, ok := e.breakers[operation]; ok {
		return cb.State()
	}
	return gobreaker.StateClosed
}

func (e *Executor) attempt(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	policy := e.cfg.policy(operation)

	var err error
	for n := 1; ; n++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if n >= policy.Attempts || !classifier(err).Retryable {
			return err
		}

		wait := policy.wait(n)
		e.logger.Warn("retry_attempt", "operation", operation, "attempt", n, "max_attempts", policy.Attempts, "backoff_ms", wait.Milliseconds(), "error", err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

func (e *Executor) circuitBreaker(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[operation]; ok {
		return cb
	}
	b := e.breaker
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        operation,
		MaxRequests: b.HalfOpenCalls,
		Timeout:     b.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= b.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= b.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
			if e.cfg.OnStateChange != nil {
				e.cfg.OnStateChange(name, to == gobreaker.StateOpen)
			}
		},
	})
	e.breakers[operation] = cb
	return cb
}

// IsCircuitOpen reports whether err came from a breaker refusing the call.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func recordAll(error) ErrorClassification {
	return Permanent
}

// Common classifications.
var (
	Transient = ErrorClassification{Retryable: true, RecordFailure: true}
	Permanent = ErrorClassification{RecordFailure: true}
	Ignored   = ErrorClassification{}
)
