// Package retry wraps one fallible unit of work with bounded exponential
// backoff and failure classification. Its public contract is "always a
// result or a structured failure descriptor": exhausted or permanent
// failures are handed to the dead letter store, never thrown at the caller.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"

	"menuharvest/internal/deadletter"
	"menuharvest/internal/logger"
)

// Config is the full retry surface. It is threaded in explicitly so the
// orchestrator stays reentrant across concurrent jobs; nothing is read
// from ambient state.
type Config struct {
	MaxRetries           int
	BaseDelay            time.Duration
	Multiplier           float64
	DelayCap             time.Duration
	RetryableStatusCodes []int
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:           3,
		BaseDelay:            time.Second,
		Multiplier:           2,
		DelayCap:             10 * time.Second,
		RetryableStatusCodes: []int{429, 500, 502, 503, 504},
	}
}

// Recorder receives terminal failures. *deadletter.Store satisfies it.
type Recorder interface {
	RecordFailure(ctx context.Context, source string, errType deadletter.ErrorType, message string, meta deadletter.AttemptMeta) (*deadletter.Entry, error)
}

// Failure is the structured descriptor returned when an operation could
// not be completed.
type Failure struct {
	Type         deadletter.ErrorType
	Message      string
	Attempts     int
	DeadLettered bool
}

func (f *Failure) Error() string { return f.Message }

type Orchestrator struct {
	cfg       Config
	dl        Recorder
	log       *logger.Logger
	sleep     func(ctx context.Context, d time.Duration) error
	jitter    func() float64
	onAttempt func(source string, attempt int)
}

type Option func(*Orchestrator)

// WithSleeper overrides how backoff sleeps are performed (tests).
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

// WithJitterSource overrides the jitter source with a function returning
// values in [0, 1) (tests).
func WithJitterSource(fn func() float64) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.jitter = fn
		}
	}
}

// WithAttemptHook is invoked before every attempt; the coordinator uses it
// to bump the job's retry count.
func WithAttemptHook(fn func(source string, attempt int)) Option {
	return func(o *Orchestrator) { o.onAttempt = fn }
}

func New(cfg Config, dl Recorder, opts ...Option) *Orchestrator {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2
	}
	if cfg.DelayCap <= 0 {
		cfg.DelayCap = 10 * time.Second
	}
	o := &Orchestrator{
		cfg:    cfg,
		dl:     dl,
		log:    logger.New("RetryOrchestrator"),
		sleep:  sleepCtx,
		jitter: rand.Float64,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Do runs op with up to MaxRetries retries for transient failures. A nil
// return means success; otherwise the terminal error has been classified
// and recorded as a dead letter.
func (o *Orchestrator) Do(ctx context.Context, source string, op func(ctx context.Context) error) *Failure {
	started := time.Now().UTC()
	maxAttempts := o.cfg.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if o.onAttempt != nil {
			o.onAttempt(source, attempt)
		}
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		errType, retryable := o.Classify(err)
		if !retryable {
			o.log.LogWarnf("%s: permanent failure on attempt %d: %v", source, attempt, err)
			return o.terminal(ctx, source, errType, err, attempt, started)
		}
		if attempt == maxAttempts {
			break
		}
		delay := o.backoffDelay(attempt)
		o.log.LogDebugf("%s: attempt %d failed (%s), retrying in %v: %v", source, attempt, errType, delay, err)
		if sleepErr := o.sleep(ctx, delay); sleepErr != nil {
			return o.terminal(ctx, source, deadletter.ErrorTypeTimeout, sleepErr, attempt, started)
		}
	}

	errType, _ := o.Classify(lastErr)
	o.log.LogWarnf("%s: retries exhausted after %d attempts: %v", source, maxAttempts, lastErr)
	return o.terminal(ctx, source, errType, lastErr, maxAttempts, started)
}

func (o *Orchestrator) terminal(ctx context.Context, source string, errType deadletter.ErrorType, err error, attempts int, started time.Time) *Failure {
	f := &Failure{Type: errType, Message: err.Error(), Attempts: attempts}
	if o.dl == nil {
		return f
	}
	meta := deadletter.AttemptMeta{
		Attempts:       attempts,
		FirstAttemptAt: started,
		LastAttemptAt:  time.Now().UTC(),
	}
	if _, recErr := o.dl.RecordFailure(ctx, source, errType, err.Error(), meta); recErr != nil {
		o.log.LogError("dead letter hand-off failed", recErr)
	} else {
		f.DeadLettered = true
	}
	return f
}

// backoffDelay computes the jittered delay before the retry that follows
// attempt n: base * multiplier^(n-1), jittered by ±25%, capped.
func (o *Orchestrator) backoffDelay(attempt int) time.Duration {
	raw := float64(o.cfg.BaseDelay) * math.Pow(o.cfg.Multiplier, float64(attempt-1))
	factor := 0.75 + 0.5*o.jitter()
	d := time.Duration(raw * factor)
	if d > o.cfg.DelayCap {
		d = o.cfg.DelayCap
	}
	return d
}

// Classify maps an error to its dead-letter type and whether another
// attempt is worth making. Retryable: 429, configured 5xx, network errors
// and timeouts. Not retryable: other 4xx and unflagged parse failures.
func (o *Orchestrator) Classify(err error) (deadletter.ErrorType, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == 429 {
			return deadletter.ErrorTypeRateLimit, true
		}
		for _, code := range o.cfg.RetryableStatusCodes {
			if httpErr.StatusCode == code {
				return deadletter.ErrorTypeHTTP, true
			}
		}
		return deadletter.ErrorTypeHTTP, false
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return deadletter.ErrorTypeParse, parseErr.Retryable
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return deadletter.ErrorTypeTimeout, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return deadletter.ErrorTypeTimeout, true
		}
		return deadletter.ErrorTypeUnknown, true
	}

	es := strings.ToLower(err.Error())
	switch {
	case strings.Contains(es, "429") || strings.Contains(es, "too many requests") || strings.Contains(es, "rate limit"):
		return deadletter.ErrorTypeRateLimit, true
	case strings.Contains(es, "timeout") || strings.Contains(es, "timed out") || strings.Contains(es, "deadline exceeded"):
		return deadletter.ErrorTypeTimeout, true
	case strings.Contains(es, "connection reset") || strings.Contains(es, "connection refused") || strings.Contains(es, "no such host"):
		return deadletter.ErrorTypeUnknown, true
	}
	return deadletter.ErrorTypeUnknown, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
