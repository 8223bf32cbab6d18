// Package llm is the handle to the external text-generation service. The CLI
// builds one Client per invocation and passes it to the narrative service and
// the intent extractor; there is no package-level client.
//
// Every call is paced by a rate limiter, bounded by a per-attempt timeout and
// retried with exponential backoff while the failure looks transient (HTTP 429,
// 5xx, attempt timeout). Errors leave this package typed with apperr kinds:
// NotConfigured, Unavailable or Malformed.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"rootcause/internal/apperr"
	"rootcause/internal/config"
	"rootcause/internal/metrics"
)

// Outcome labels for the request counter.
const (
	OutcomeOK            = "ok"
	OutcomeNotConfigured = "not_configured"
	OutcomeUnavailable   = "unavailable"
	OutcomeMalformed     = "malformed"
)

// Request is one generation call.
type Request struct {
	// System is the instruction framing the call.
	System string
	// Prompt is the user content.
	Prompt string
	// Schema, when set, asks for a JSON response matching it.
	Schema *genai.Schema
}

// Backend performs a single generation attempt.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Options tunes retries, pacing and timeouts. Zero fields take the defaults
// from config.Default.
type Options struct {
	Timeout           time.Duration
	MaxRetries        int
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	RequestsPerSecond float64
}

// OptionsFrom copies the tuning fields of an LLM config section.
func OptionsFrom(c config.LLM) Options {
	return Options{
		Timeout:           c.Timeout,
		MaxRetries:        c.MaxRetries,
		BackoffInitial:    c.BackoffInitial,
		BackoffMax:        c.BackoffMax,
		RequestsPerSecond: c.RequestsPerSecond,
	}
}

// Client wraps a Backend with pacing, timeouts and retries.
type Client struct {
	backend Backend
	opts    Options
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Recorder
}

// New builds a Client talking to the Gemini API. A missing key or model is a
// NotConfigured error and no network connection is attempted.
func New(ctx context.Context, c config.LLM, logger *zap.Logger, m *metrics.Recorder) (*Client, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, apperr.NotConfigured("no API key (set GEMINI_API_KEY or llm.api_key)").WithOp("llm")
	}
	if strings.TrimSpace(c.Model) == "" {
		return nil, apperr.NotConfigured("no model configured (llm.model)").WithOp("llm")
	}
	backend, err := newGenAIBackend(ctx, c.APIKey, c.Model)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotConfigured, "create genai client", err).WithOp("llm")
	}
	return NewWithBackend(backend, OptionsFrom(c), logger, m), nil
}

// NewWithBackend builds a Client over an arbitrary backend.
func NewWithBackend(b Backend, opts Options, logger *zap.Logger, m *metrics.Recorder) *Client {
	def := config.Default().LLM
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BackoffInitial <= 0 {
		opts.BackoffInitial = def.BackoffInitial
	}
	if opts.BackoffMax < opts.BackoffInitial {
		opts.BackoffMax = opts.BackoffInitial
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		backend: b,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		metrics: m,
	}
}

// Generate runs req, retrying transient failures. purpose labels logs and
// metrics ("narrative", "intent").
func (c *Client) Generate(ctx context.Context, purpose string, req Request) (string, error) {
	attempt := 0
	op := func() (string, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return "", backoff.Permanent(apperr.Unavailable("rate limiter", err))
		}
		actx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()

		text, err := c.backend.Generate(actx, req)
		if err != nil {
			if ctx.Err() == nil && transient(err) {
				c.logger.Debug("llm: transient failure",
					zap.String("purpose", purpose),
					zap.Int("attempt", attempt),
					zap.Error(err))
				return "", err
			}
			return "", backoff.Permanent(apperr.Unavailable("generate", err))
		}
		if strings.TrimSpace(text) == "" {
			return "", backoff.Permanent(apperr.Malformed("empty response"))
		}
		return text, nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.opts.BackoffInitial
	eb.MaxInterval = c.opts.BackoffMax

	text, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(c.opts.MaxRetries+1)),
	)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindUnknown {
			err = apperr.Unavailable(fmt.Sprintf("gave up after %d attempt(s)", attempt), err)
		}
		err = apperr.Wrap(apperr.GetKind(err), purpose, err).WithOp("llm")
		c.metrics.LLMRequest(purpose, outcome(err))
		return "", err
	}
	c.metrics.LLMRequest(purpose, OutcomeOK)
	return text, nil
}

// transient reports whether err is worth another attempt.
func transient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code == 429 || apiErrPtr.Code >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func outcome(err error) string {
	switch apperr.GetKind(err) {
	case apperr.KindNotConfigured:
		return OutcomeNotConfigured
	case apperr.KindMalformed:
		return OutcomeMalformed
	default:
		return OutcomeUnavailable
	}
}
