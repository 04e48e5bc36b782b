package llm

import (
	"math"
	"time"
)

// RetryPolicy configures exponential backoff between attempts
type RetryPolicy struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	BaseDelay    time.Duration `mapstructure:"base_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
	JitterFactor float64       `mapstructure:"jitter"`
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  5,
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
}

// Delay returns the un-jittered backoff after the given failed attempt (1-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

type retryState int

const (
	stateIdle retryState = iota
	stateAttempting
	stateBackingOff
	stateSucceeded
	stateFatal
)

func (s retryState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateAttempting:
		return "attempting"
	case stateBackingOff:
		return "backing_off"
	case stateSucceeded:
		return "succeeded"
	case stateFatal:
		return "fatal_failure"
	default:
		return "unknown"
	}
}

// retryMachine tracks attempts and backoff for one Send.
//
//	Idle -> Attempting -> BackingOff -> Attempting ... -> Succeeded | FatalFailure
//
// It does no waiting itself; the adapter sleeps for the delay fail returns.
type retryMachine struct {
	policy   RetryPolicy
	deadline time.Time
	now      func() time.Time
	jitter   func() float64

	state     retryState
	attempt   int
	waited    time.Duration
	status    Status
	retryable bool
}

func newRetryMachine(policy RetryPolicy, deadline time.Time, now func() time.Time, jitter func() float64) *retryMachine {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &retryMachine{policy: policy, deadline: deadline, now: now, jitter: jitter, state: stateIdle}
}

// begin starts the next attempt. It returns false once the machine is terminal.
func (m *retryMachine) begin() bool {
	if m.state != stateIdle && m.state != stateBackingOff {
		return false
	}
	m.state = stateAttempting
	m.attempt++
	return true
}

func (m *retryMachine) succeed() {
	m.state = stateSucceeded
	m.status = StatusSuccess
	m.retryable = false
}

// fail records a failed attempt and returns the wait before the next one.
// ok is false when the failure is terminal.
func (m *retryMachine) fail(status Status, retryable bool) (time.Duration, bool) {
	m.status = status
	m.retryable = retryable
	if !retryable || m.attempt >= m.policy.MaxAttempts {
		m.state = stateFatal
		return 0, false
	}

	delay := m.backoff()
	if !m.deadline.IsZero() && m.now().Add(delay).After(m.deadline) {
		m.state = stateFatal
		m.status = StatusTimeout
		return 0, false
	}

	m.state = stateBackingOff
	m.waited += delay
	return delay, true
}

// abort ends the machine without another attempt, e.g. on cancellation
func (m *retryMachine) abort(status Status) {
	m.state = stateFatal
	m.status = status
	m.retryable = false
}

func (m *retryMachine) backoff() time.Duration {
	d := float64(m.policy.Delay(m.attempt))
	if m.policy.JitterFactor > 0 && m.jitter != nil {
		d *= 1 + (m.jitter()-0.5)*m.policy.JitterFactor
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
