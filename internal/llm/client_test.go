package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"

	"rootcause/internal/apperr"
	"rootcause/internal/config"
	"rootcause/internal/metrics"
)

// scripted replies with the next entry of errs (nil ⇒ text) on each call.
type scripted struct {
	calls atomic.Int32
	errs  []error
	text  string
	block bool
}

func (s *scripted) Generate(ctx context.Context, _ Request) (string, error) {
	i := int(s.calls.Add(1)) - 1
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	return s.text, nil
}

func fastOpts() Options {
	return Options{
		Timeout:        50 * time.Millisecond,
		MaxRetries:     2,
		BackoffInitial: time.Millisecond,
		BackoffMax:     2 * time.Millisecond,
	}
}

// TestNew_MissingKeyIsNotConfigured verifies no client is built without a key.
func TestNew_MissingKeyIsNotConfigured(t *testing.T) {
	c := config.Default().LLM
	c.APIKey = ""
	_, err := New(context.Background(), c, nil, nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotConfigured))

	c.APIKey = "k"
	c.Model = " "
	_, err = New(context.Background(), c, nil, nil)
	assert.True(t, apperr.Is(err, apperr.KindNotConfigured))
}

// TestGenerate_RetriesTransientThenSucceeds verifies backoff on 503 and 429.
func TestGenerate_RetriesTransientThenSucceeds(t *testing.T) {
	b := &scripted{
		errs: []error{genai.APIError{Code: 503}, &genai.APIError{Code: 429}},
		text: "ok",
	}
	m := metrics.New()
	c := NewWithBackend(b, fastOpts(), zaptest.NewLogger(t), m)

	got, err := c.Generate(context.Background(), "narrative", Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(3), b.calls.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequests.WithLabelValues("narrative", OutcomeOK)))
}

// TestGenerate_GivesUpAfterMaxRetries verifies the attempt bound and kind.
func TestGenerate_GivesUpAfterMaxRetries(t *testing.T) {
	b := &scripted{errs: []error{
		genai.APIError{Code: 500}, genai.APIError{Code: 500}, genai.APIError{Code: 500}, genai.APIError{Code: 500},
	}}
	m := metrics.New()
	c := NewWithBackend(b, fastOpts(), nil, m)

	_, err := c.Generate(context.Background(), "intent", Request{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUnavailable))
	assert.Equal(t, int32(3), b.calls.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequests.WithLabelValues("intent", OutcomeUnavailable)))
}

// TestGenerate_PermanentErrorIsNotRetried verifies 4xx stops immediately.
func TestGenerate_PermanentErrorIsNotRetried(t *testing.T) {
	b := &scripted{errs: []error{genai.APIError{Code: 400}}}
	c := NewWithBackend(b, fastOpts(), nil, nil)

	_, err := c.Generate(context.Background(), "narrative", Request{})
	assert.True(t, apperr.Is(err, apperr.KindUnavailable))
	assert.Equal(t, int32(1), b.calls.Load())
}

// TestGenerate_AttemptTimeoutIsRetried verifies the per-attempt deadline.
func TestGenerate_AttemptTimeoutIsRetried(t *testing.T) {
	b := &scripted{block: true}
	opts := fastOpts()
	opts.Timeout = 5 * time.Millisecond
	c := NewWithBackend(b, opts, nil, nil)

	_, err := c.Generate(context.Background(), "narrative", Request{})
	assert.True(t, apperr.Is(err, apperr.KindUnavailable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, int32(3), b.calls.Load())
}

// TestGenerate_EmptyTextIsMalformed verifies blank responses are rejected.
func TestGenerate_EmptyTextIsMalformed(t *testing.T) {
	m := metrics.New()
	c := NewWithBackend(&scripted{text: "  \n"}, fastOpts(), nil, m)

	_, err := c.Generate(context.Background(), "narrative", Request{})
	assert.True(t, apperr.Is(err, apperr.KindMalformed))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequests.WithLabelValues("narrative", OutcomeMalformed)))
}

// TestGenerate_CancelledParentStops verifies caller cancellation is final.
func TestGenerate_CancelledParentStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := &scripted{text: "never"}
	c := NewWithBackend(b, fastOpts(), nil, nil)

	_, err := c.Generate(ctx, "narrative", Request{})
	require.Error(t, err)
	assert.Equal(t, int32(0), b.calls.Load())
}

// TestTransient classifies the retryable errors.
func TestTransient(t *testing.T) {
	assert.True(t, transient(context.DeadlineExceeded))
	assert.True(t, transient(genai.APIError{Code: 429}))
	assert.True(t, transient(&genai.APIError{Code: 502}))
	assert.False(t, transient(genai.APIError{Code: 403}))
	assert.False(t, transient(errors.New("bad request")))
}
