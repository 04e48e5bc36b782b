package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jurkyy/project-pilot/internal/credential"
)

type scriptedTransport struct {
	results []error
	text    string
	calls   int
}

func (s *scriptedTransport) Name() string { return "scripted" }

func (s *scriptedTransport) Complete(ctx context.Context, _ credential.Key, _ Query) (Completion, error) {
	i := s.calls
	s.calls++
	if i < len(s.results) && s.results[i] != nil {
		return Completion{}, s.results[i]
	}
	return Completion{Text: s.text, FinishReason: "stop", Model: "test-model"}, nil
}

func apiErr(code int) error {
	return &openai.APIError{HTTPStatusCode: code, Message: http.StatusText(code)}
}

func testKey(t *testing.T) credential.Key {
	t.Helper()
	k, err := credential.Validate(credential.ProviderOpenAI, "sk-test0123456789abcdefghij")
	require.NoError(t, err)
	return k
}

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newTestAdapter(tr Transport, policy RetryPolicy, clock *fakeClock) *Adapter {
	a := NewAdapter(tr, AdapterOptions{
		Policy: policy,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	a.jitter = func() float64 { return 0.5 }
	a.now = func() time.Time { return clock.now }
	a.sleep = func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		clock.sleeps = append(clock.sleeps, d)
		clock.now = clock.now.Add(d)
		return nil
	}
	return a
}

func TestAdapter_RetriesRateLimitThenSucceeds(t *testing.T) {
	tr := &scriptedTransport{results: []error{apiErr(429), apiErr(429), apiErr(429)}, text: "### FILE: a.txt"}
	clock := &fakeClock{now: time.Now()}
	a := newTestAdapter(tr, DefaultRetryPolicy(), clock)

	resp := a.Send(context.Background(), Query{}, testKey(t))

	require.True(t, resp.OK(), "error: %v", resp.Err)
	assert.Equal(t, "### FILE: a.txt", resp.Text)
	assert.Equal(t, 4, resp.Attempts)
	assert.Equal(t, 4, tr.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, clock.sleeps)
	assert.NoError(t, resp.Error())
}

func TestAdapter_InvalidCredentialFailsFast(t *testing.T) {
	for _, code := range []int{401, 403} {
		tr := &scriptedTransport{results: []error{apiErr(code)}}
		clock := &fakeClock{now: time.Now()}
		a := newTestAdapter(tr, DefaultRetryPolicy(), clock)

		resp := a.Send(context.Background(), Query{}, testKey(t))

		assert.Equal(t, StatusInvalidCredential, resp.Status)
		assert.Equal(t, 1, resp.Attempts)
		assert.False(t, resp.Retryable)
		assert.Empty(t, clock.sleeps)

		var te *TransportError
		require.ErrorAs(t, resp.Error(), &te)
		assert.Equal(t, StatusInvalidCredential, te.Status)
	}
}

func TestAdapter_ExhaustsAttempts(t *testing.T) {
	tr := &scriptedTransport{results: []error{apiErr(500), apiErr(502), apiErr(503)}}
	clock := &fakeClock{now: time.Now()}
	policy := DefaultRetryPolicy()
	policy.MaxAttempts = 3
	a := newTestAdapter(tr, policy, clock)

	resp := a.Send(context.Background(), Query{}, testKey(t))

	assert.Equal(t, StatusTransportError, resp.Status)
	assert.Equal(t, 3, resp.Attempts)
	assert.True(t, resp.Retryable)
	assert.Len(t, clock.sleeps, 2)
}

func TestAdapter_NonRetryableClientError(t *testing.T) {
	tr := &scriptedTransport{results: []error{apiErr(400)}}
	clock := &fakeClock{now: time.Now()}
	a := newTestAdapter(tr, DefaultRetryPolicy(), clock)

	resp := a.Send(context.Background(), Query{}, testKey(t))

	assert.Equal(t, StatusTransportError, resp.Status)
	assert.Equal(t, 1, resp.Attempts)
	assert.Empty(t, clock.sleeps)
}

func TestAdapter_QuotaExhaustedIsFatal(t *testing.T) {
	quota := &openai.APIError{HTTPStatusCode: 429, Code: "insufficient_quota", Message: "You exceeded your current quota"}
	tr := &scriptedTransport{results: []error{quota}}
	clock := &fakeClock{now: time.Now()}
	a := newTestAdapter(tr, DefaultRetryPolicy(), clock)

	resp := a.Send(context.Background(), Query{}, testKey(t))

	assert.Equal(t, StatusRateLimited, resp.Status)
	assert.Equal(t, 1, resp.Attempts)
	assert.False(t, resp.Retryable)
}

func TestAdapter_OverallDeadlineStopsBackoff(t *testing.T) {
	tr := &scriptedTransport{results: []error{apiErr(429), apiErr(429), apiErr(429), apiErr(429)}}
	clock := &fakeClock{now: time.Now()}
	policy := RetryPolicy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: time.Minute, Multiplier: 4}
	a := newTestAdapter(tr, policy, clock)
	a.overallTimeout = 3 * time.Second

	resp := a.Send(context.Background(), Query{}, testKey(t))

	assert.Equal(t, StatusTimeout, resp.Status)
	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, []time.Duration{time.Second}, clock.sleeps)
}

func TestAdapter_CancelledContext(t *testing.T) {
	tr := &scriptedTransport{}
	clock := &fakeClock{now: time.Now()}
	a := newTestAdapter(tr, DefaultRetryPolicy(), clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := a.Send(ctx, Query{}, testKey(t))

	assert.False(t, resp.OK())
	assert.Equal(t, StatusTransportError, resp.Status)
	assert.Equal(t, 0, tr.calls)
	assert.ErrorIs(t, resp.Err, context.Canceled)
}

func TestAdapter_CancelDuringBackoff(t *testing.T) {
	tr := &scriptedTransport{results: []error{apiErr(503), apiErr(503)}}
	clock := &fakeClock{now: time.Now()}
	a := newTestAdapter(tr, DefaultRetryPolicy(), clock)

	ctx, cancel := context.WithCancel(context.Background())
	a.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	resp := a.Send(ctx, Query{}, testKey(t))

	assert.Equal(t, 1, tr.calls)
	assert.Equal(t, StatusTransportError, resp.Status)
	assert.ErrorIs(t, resp.Err, context.Canceled)
}

func TestAdapter_FlagsTruncatedResponse(t *testing.T) {
	tr := &truncatingTransport{}
	a := NewAdapter(tr, AdapterOptions{Policy: DefaultRetryPolicy(), Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	resp := a.Send(context.Background(), Query{}, testKey(t))

	require.True(t, resp.OK())
	assert.True(t, resp.Truncated)
}

type truncatingTransport struct{}

func (truncatingTransport) Name() string { return "truncating" }

func (truncatingTransport) Complete(context.Context, credential.Key, Query) (Completion, error) {
	return Completion{Text: "partial", FinishReason: "length"}, nil
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    Status
		retryable bool
	}{
		{"unauthorized", apiErr(401), StatusInvalidCredential, false},
		{"forbidden", apiErr(403), StatusInvalidCredential, false},
		{"rate limited", apiErr(429), StatusRateLimited, true},
		{"request timeout", apiErr(408), StatusTimeout, true},
		{"server error", apiErr(500), StatusTransportError, true},
		{"bad request", apiErr(400), StatusTransportError, false},
		{"undecodable body", &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")}, StatusTransportError, true},
		{"deadline", context.DeadlineExceeded, StatusTimeout, true},
		{"canceled", context.Canceled, StatusTransportError, false},
		{"empty completion", ErrEmptyCompletion, StatusTransportError, true},
		{"unknown", errors.New("boom"), StatusTransportError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, retryable := Classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.retryable, retryable)
		})
	}
}
