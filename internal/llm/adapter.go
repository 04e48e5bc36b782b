package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/Jurkyy/project-pilot/internal/credential"
)

// AdapterOptions configures timeouts and retries for an Adapter
type AdapterOptions struct {
	Policy RetryPolicy
	// AttemptTimeout bounds a single request
	AttemptTimeout time.Duration
	// OverallTimeout bounds all attempts and backoff waits combined
	OverallTimeout time.Duration
	Logger         *slog.Logger
}

// Adapter sends queries through a Transport with timeout and retry policy
type Adapter struct {
	transport      Transport
	policy         RetryPolicy
	attemptTimeout time.Duration
	overallTimeout time.Duration
	logger         *slog.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
	jitter func() float64
}

// NewAdapter creates an adapter around transport
func NewAdapter(transport Transport, opts AdapterOptions) *Adapter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		transport:      transport,
		policy:         opts.Policy,
		attemptTimeout: opts.AttemptTimeout,
		overallTimeout: opts.OverallTimeout,
		logger:         logger,
		sleep:          sleepContext,
		now:            time.Now,
		jitter:         rand.Float64,
	}
}

// Send runs the query until it succeeds, fails fatally, runs out of
// attempts, or ctx is done. It never returns a nil-status Response.
func (a *Adapter) Send(ctx context.Context, q Query, key credential.Key) Response {
	if a.overallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.overallTimeout)
		defer cancel()
	}
	deadline, _ := ctx.Deadline()
	m := newRetryMachine(a.policy, deadline, a.now, a.jitter)
	logger := a.logger.With("provider", a.transport.Name())

	var lastErr error
	for m.begin() {
		if err := ctx.Err(); err != nil {
			m.abort(contextStatus(err))
			lastErr = fmt.Errorf("request abandoned before attempt %d: %w", m.attempt, err)
			break
		}

		start := a.now()
		c, err := a.complete(ctx, key, q)
		elapsed := a.now().Sub(start)

		if err == nil {
			m.succeed()
			resp := Response{
				Text:      c.Text,
				Status:    StatusSuccess,
				Attempts:  m.attempt,
				Truncated: c.FinishReason == "length",
				Model:     c.Model,
				Usage:     c.Usage,
			}
			if resp.Truncated {
				logger.Warn("model response hit the token limit and may be truncated",
					"attempt", m.attempt, "completion_tokens", c.Usage.CompletionTokens)
			}
			logger.Info("llm request succeeded",
				"attempt", m.attempt,
				"duration_ms", elapsed.Milliseconds(),
				"total_wait_ms", m.waited.Milliseconds(),
				"total_tokens", c.Usage.TotalTokens)
			return resp
		}

		lastErr = err
		status, retryable := Classify(err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			status, retryable = contextStatus(ctxErr), false
		}
		logger.Warn("llm attempt failed",
			"attempt", m.attempt,
			"status", status,
			"retryable", retryable,
			"duration_ms", elapsed.Milliseconds(),
			"error", err)

		delay, again := m.fail(status, retryable)
		if !again {
			break
		}
		logger.Info("retry backoff wait",
			"attempt", m.attempt,
			"delay_ms", delay.Milliseconds(),
			"total_wait_ms", m.waited.Milliseconds())

		if err := a.sleep(ctx, delay); err != nil {
			m.abort(contextStatus(err))
			lastErr = fmt.Errorf("retry cancelled after attempt %d: %w (last error: %v)", m.attempt, err, lastErr)
			break
		}
	}

	logger.Error("llm request failed",
		"attempts", m.attempt,
		"status", m.status,
		"state", m.state,
		"total_wait_ms", m.waited.Milliseconds(),
		"error", lastErr)
	return Response{
		Status:    m.status,
		Attempts:  m.attempt,
		Retryable: m.retryable,
		Err:       lastErr,
	}
}

func (a *Adapter) complete(ctx context.Context, key credential.Key, q Query) (Completion, error) {
	if a.attemptTimeout <= 0 {
		return a.transport.Complete(ctx, key, q)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, a.attemptTimeout)
	defer cancel()
	return a.transport.Complete(attemptCtx, key, q)
}

func contextStatus(err error) Status {
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	return StatusTransportError
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
