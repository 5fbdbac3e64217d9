// Package circuitbreaker tracks gateway health per gateway name and refuses
// calls to a gateway that keeps failing.
package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the state of the circuit breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

const (
	defaultFailureThreshold         = 3                // Number of failures to open the circuit
	defaultResetTimeout             = 30 * time.Second // Time before transitioning from Open to HalfOpen
	defaultHalfOpenSuccessThreshold = 1                // Successes in HalfOpen needed to close the circuit
)

// Config holds breaker settings. Zero values fall back to defaults.
type Config struct {
	FailureThreshold         int           `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	ResetTimeout             time.Duration `mapstructure:"reset_timeout" yaml:"reset_timeout"`
	HalfOpenSuccessThreshold int           `mapstructure:"half_open_success_threshold" yaml:"half_open_success_threshold"`
}

// gatewayState holds the current state for a single gateway.
type gatewayState struct {
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int // Used in HalfOpen state
	lastFailureTime      time.Time
	openUntil            time.Time // When the circuit moves from Open to HalfOpen
}

// CircuitBreaker is a basic in-memory breaker keyed by gateway name.
type CircuitBreaker struct {
	mu       sync.Mutex
	gateways map[string]*gatewayState
	cfg      Config
	now      func() time.Time
}

// NewCircuitBreaker creates a CircuitBreaker from cfg.
func NewCircuitBreaker(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaultResetTimeout
	}
	if cfg.HalfOpenSuccessThreshold <= 0 {
		cfg.HalfOpenSuccessThreshold = defaultHalfOpenSuccessThreshold
	}
	return &CircuitBreaker{
		gateways: make(map[string]*gatewayState),
		cfg:      cfg,
		now:      time.Now,
	}
}

// stateFor assumes cb.mu is held.
func (cb *CircuitBreaker) stateFor(name string) *gatewayState {
	gs, exists := cb.gateways[name]
	if !exists {
		gs = &gatewayState{state: StateClosed}
		cb.gateways[name] = gs
	}
	return gs
}

// AllowRequest reports whether a call to the gateway may proceed. An Open
// circuit whose timeout expired moves to HalfOpen and lets the call through.
func (cb *CircuitBreaker) AllowRequest(name string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	gs := cb.stateFor(name)
	switch gs.state {
	case StateOpen:
		if cb.now().After(gs.openUntil) {
			gs.state = StateHalfOpen
			gs.consecutiveFailures = 0
			gs.consecutiveSuccesses = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure(name string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	gs := cb.stateFor(name)
	gs.lastFailureTime = cb.now()

	switch gs.state {
	case StateClosed:
		gs.consecutiveFailures++
		if gs.consecutiveFailures >= cb.cfg.FailureThreshold {
			gs.state = StateOpen
			gs.openUntil = cb.now().Add(cb.cfg.ResetTimeout)
		}
	case StateHalfOpen:
		// A failed probe re-opens the circuit for a full timeout.
		gs.state = StateOpen
		gs.openUntil = cb.now().Add(cb.cfg.ResetTimeout)
		gs.consecutiveFailures = cb.cfg.FailureThreshold
		gs.consecutiveSuccesses = 0
	case StateOpen:
	}
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess(name string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	gs := cb.stateFor(name)
	switch gs.state {
	case StateClosed:
		gs.consecutiveFailures = 0
	case StateHalfOpen:
		gs.consecutiveSuccesses++
		if gs.consecutiveSuccesses >= cb.cfg.HalfOpenSuccessThreshold {
			gs.state = StateClosed
			gs.consecutiveFailures = 0
			gs.consecutiveSuccesses = 0
		}
	case StateOpen:
	}
}

// GetGatewayStatus returns the state and consecutive failure count of a
// gateway. It never transitions state.
func (cb *CircuitBreaker) GetGatewayStatus(name string) (State, int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	gs, exists := cb.gateways[name]
	if !exists {
		return StateClosed, 0
	}
	return gs.state, gs.consecutiveFailures
}
