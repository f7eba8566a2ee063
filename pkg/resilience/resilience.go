package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"talkbridge-backend/pkg/logger"
)

// CircuitBreakerState represents the state of the circuit breaker
type CircuitBreakerState string

const (
	CircuitBreakerClosed   CircuitBreakerState = "closed"
	CircuitBreakerHalfOpen CircuitBreakerState = "half_open"
	CircuitBreakerOpen     CircuitBreakerState = "open"
)

// ErrCircuitOpen is returned without calling the operation while the breaker is open
var ErrCircuitOpen = errors.New("circuit breaker open")

var (
	breakerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breaker_requests_total",
		Help: "Operations run through a circuit breaker",
	}, []string{"breaker", "operation", "status"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half_open, 2=open)",
	}, []string{"breaker"})
)

// Options tunes a Breaker
type Options struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold int
	// Cooldown is how long the circuit stays open before a trial call is allowed
	Cooldown time.Duration
	// MaxAttempts is the number of tries per Execute call (1 disables retries)
	MaxAttempts int
	// Backoff is the base delay between attempts, multiplied by the attempt number
	Backoff time.Duration
	// Timeout bounds a whole Execute call including retries
	Timeout time.Duration
}

// Breaker wraps calls to a flaky dependency with retry, timeout and a circuit breaker
type Breaker struct {
	name string
	opts Options
	now  func() time.Time

	mu                  sync.Mutex
	state               CircuitBreakerState
	consecutiveFailures int
	openedAt            time.Time
}

// NewBreaker creates a breaker; zero options get sensible defaults
func NewBreaker(name string, opts Options) *Breaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 3
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 10 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 100 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	b := &Breaker{name: name, opts: opts, now: time.Now, state: CircuitBreakerClosed}
	breakerState.WithLabelValues(name).Set(0)
	return b
}

// State returns the current circuit breaker state
func (b *Breaker) State() CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked()
}

func (b *Breaker) currentStateLocked() CircuitBreakerState {
	if b.state == CircuitBreakerOpen && b.now().Sub(b.openedAt) >= b.opts.Cooldown {
		b.setStateLocked(CircuitBreakerHalfOpen)
	}
	return b.state
}

func (b *Breaker) setStateLocked(s CircuitBreakerState) {
	if b.state == s {
		return
	}
	b.state = s
	switch s {
	case CircuitBreakerClosed:
		breakerState.WithLabelValues(b.name).Set(0)
	case CircuitBreakerHalfOpen:
		breakerState.WithLabelValues(b.name).Set(1)
	case CircuitBreakerOpen:
		breakerState.WithLabelValues(b.name).Set(2)
	}
	logger.Warn("Circuit breaker state changed",
		zap.String("breaker", b.name),
		zap.String("state", string(s)))
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures = 0
	b.setStateLocked(CircuitBreakerClosed)
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures++
	// A failed trial call reopens immediately.
	if b.state == CircuitBreakerHalfOpen || b.consecutiveFailures >= b.opts.FailureThreshold {
		b.openedAt = b.now()
		b.setStateLocked(CircuitBreakerOpen)
	}
}

// Execute runs fn with retry and backoff unless the circuit is open
func (b *Breaker) Execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= b.opts.MaxAttempts; attempt++ {
		b.mu.Lock()
		state := b.currentStateLocked()
		b.mu.Unlock()
		if state == CircuitBreakerOpen {
			breakerRequestsTotal.WithLabelValues(b.name, operation, "rejected").Inc()
			return fmt.Errorf("%s %s: %w", b.name, operation, ErrCircuitOpen)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			b.onSuccess()
			breakerRequestsTotal.WithLabelValues(b.name, operation, "success").Inc()
			return nil
		}
		b.onFailure()
		breakerRequestsTotal.WithLabelValues(b.name, operation, "failure").Inc()

		if attempt == b.opts.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s %s: %w", b.name, operation, ctx.Err())
		case <-time.After(time.Duration(attempt) * b.opts.Backoff):
		}
	}

	return fmt.Errorf("%s %s failed after %d attempts: %w", b.name, operation, b.opts.MaxAttempts, lastErr)
}
