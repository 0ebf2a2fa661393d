package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrCircuitOpen is returned while a breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

var errCallPanicked = errors.New("call panicked")

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a CircuitBreaker. Zero fields take defaults.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // half-open successes before closing
	OpenTimeout      time.Duration // wait before probing again
	MaxProbes        int           // concurrent calls allowed while half-open
}

// BreakerStats is a snapshot reported on the health details endpoint.
type BreakerStats struct {
	Name       string    `json:"name"`
	State      string    `json:"state"`
	Requests   int64     `json:"requests"`
	Failures   int64     `json:"failures"`
	Rejected   int64     `json:"rejected"`
	LastFailed time.Time `json:"last_failed,omitempty"`
}

// CircuitBreaker stops calling a vendor API after repeated failures and
// probes it again once OpenTimeout has passed.
type CircuitBreaker struct {
	name   string
	cfg    BreakerConfig
	logger *logrus.Logger
	now    func() time.Time

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	inFlight    int
	openedAt    time.Time
	requests    int64
	totalFailed int64
	rejected    int64
	lastFailed  time.Time
}

func NewCircuitBreaker(name string, cfg BreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.MaxProbes <= 0 {
		cfg.MaxProbes = 1
	}
	return &CircuitBreaker{name: name, cfg: cfg, logger: logger, now: time.Now}
}

// Execute runs fn unless the breaker is open. Context cancellation by the
// caller does not count as a vendor failure. A panic in fn counts as a
// failure and is re-raised once the slot is released.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) (err error) {
	if !cb.acquire() {
		return ErrCircuitOpen
	}
	completed := false
	defer func() {
		if !completed {
			cb.release(errCallPanicked, false)
			return
		}
		cb.release(err, ctx.Err() != nil)
	}()
	err = fn(ctx)
	completed = true
	return err
}

func (cb *CircuitBreaker) acquire() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.requests++

	if cb.openTimeoutElapsed() {
		cb.setState(BreakerHalfOpen)
	}
	switch cb.state {
	case BreakerOpen:
		cb.rejected++
		return false
	case BreakerHalfOpen:
		if cb.inFlight >= cb.cfg.MaxProbes {
			cb.rejected++
			return false
		}
	}
	cb.inFlight++
	return true
}

func (cb *CircuitBreaker) release(err error, cancelled bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.inFlight--

	if err == nil || cancelled {
		if err == nil {
			cb.onSuccess()
		}
		return
	}

	cb.totalFailed++
	cb.lastFailed = cb.now()
	cb.failures++
	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"state":           cb.state.String(),
		"failure_count":   cb.failures,
	}).WithError(err).Warn("Circuit breaker: call failed")

	if cb.state == BreakerHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
		cb.setState(BreakerOpen)
	}
}

func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case BreakerClosed:
		cb.failures = 0
	case BreakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.setState(BreakerClosed)
		}
	}
}

func (cb *CircuitBreaker) setState(state BreakerState) {
	if cb.state == state {
		return
	}
	old := cb.state
	cb.state = state
	cb.successes = 0
	switch state {
	case BreakerOpen:
		cb.openedAt = cb.now()
	case BreakerClosed:
		cb.failures = 0
	}
	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"old_state":       old.String(),
		"new_state":       state.String(),
	}).Info("Circuit breaker state changed")
}

func (cb *CircuitBreaker) openTimeoutElapsed() bool {
	return cb.state == BreakerOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.OpenTimeout
}

// currentState is the state the next call would see. An open breaker whose
// timeout has passed reads as half-open even before traffic arrives.
func (cb *CircuitBreaker) currentState() BreakerState {
	if cb.openTimeoutElapsed() {
		return BreakerHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerStats{
		Name:       cb.name,
		State:      cb.currentState().String(),
		Requests:   cb.requests,
		Failures:   cb.totalFailed,
		Rejected:   cb.rejected,
		LastFailed: cb.lastFailed,
	}
}

// BreakerRegistry hands out one breaker per vendor.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	cfg      BreakerConfig
	logger   *logrus.Logger
}

func NewBreakerRegistry(cfg BreakerConfig, logger *logrus.Logger) *BreakerRegistry {
	return &BreakerRegistry{breakers: make(map[string]*CircuitBreaker), cfg: cfg, logger: logger}
}

func (r *BreakerRegistry) Get(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := NewCircuitBreaker(name, r.cfg, r.logger)
	r.breakers[name] = b
	return b
}

// Stats lists every breaker sorted by name.
func (r *BreakerRegistry) Stats() []BreakerStats {
	r.mu.Lock()
	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	r.mu.Unlock()
	sort.Strings(names)

	out := make([]BreakerStats, 0, len(names))
	for _, name := range names {
		out = append(out, r.Get(name).Stats())
	}
	return out
}
