package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"menuharvest/internal/deadletter"
)

type fakeRecorder struct {
	calls []recordedFailure
}

type recordedFailure struct {
	source  string
	errType deadletter.ErrorType
	message string
	meta    deadletter.AttemptMeta
}

func (r *fakeRecorder) RecordFailure(ctx context.Context, source string, errType deadletter.ErrorType, message string, meta deadletter.AttemptMeta) (*deadletter.Entry, error) {
	r.calls = append(r.calls, recordedFailure{source: source, errType: errType, message: message, meta: meta})
	return &deadletter.Entry{ID: int64(len(r.calls)), Source: source, ErrorType: errType}, nil
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func newTestOrchestrator(rec Recorder, opts ...Option) *Orchestrator {
	cfg := Config{
		MaxRetries:           3,
		BaseDelay:            time.Second,
		Multiplier:           2,
		DelayCap:             10 * time.Second,
		RetryableStatusCodes: []int{429, 500, 502, 503, 504},
	}
	opts = append([]Option{WithSleeper(noSleep)}, opts...)
	return New(cfg, rec, opts...)
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	rec := &fakeRecorder{}
	o := newTestOrchestrator(rec)

	attempts := 0
	fail := o.Do(context.Background(), "store-a", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return &HTTPError{StatusCode: 503, URL: "https://menu.example/a"}
		}
		return nil
	})
	if fail != nil {
		t.Fatalf("unexpected failure: %v", fail)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if len(rec.calls) != 0 {
		t.Errorf("success must not dead-letter, got %d records", len(rec.calls))
	}
}

func TestDoExhaustionDeadLetters(t *testing.T) {
	rec := &fakeRecorder{}
	o := newTestOrchestrator(rec)

	attempts := 0
	fail := o.Do(context.Background(), "store-b", func(ctx context.Context) error {
		attempts++
		return &HTTPError{StatusCode: 500, URL: "https://menu.example/b"}
	})
	if fail == nil {
		t.Fatal("want terminal failure")
	}
	// maxRetries=3 means 4 attempts total.
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
	if fail.Type != deadletter.ErrorTypeHTTP {
		t.Errorf("type = %s, want http_error", fail.Type)
	}
	if !fail.DeadLettered {
		t.Error("exhausted failure must be dead-lettered")
	}
	if len(rec.calls) != 1 {
		t.Fatalf("got %d dead letter records, want 1", len(rec.calls))
	}
	if rec.calls[0].meta.Attempts != 4 {
		t.Errorf("recorded attempts = %d, want 4", rec.calls[0].meta.Attempts)
	}
}

func TestDoPermanentFailureSkipsRetries(t *testing.T) {
	rec := &fakeRecorder{}
	o := newTestOrchestrator(rec)

	attempts := 0
	fail := o.Do(context.Background(), "store-c", func(ctx context.Context) error {
		attempts++
		return &HTTPError{StatusCode: 404, URL: "https://menu.example/c"}
	})
	if fail == nil {
		t.Fatal("want terminal failure")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, a 404 must not be retried", attempts)
	}
	if fail.Attempts != 1 {
		t.Errorf("failure attempts = %d, want 1", fail.Attempts)
	}
	if len(rec.calls) != 1 {
		t.Errorf("got %d dead letter records, want 1", len(rec.calls))
	}
}

func TestBackoffDelayWindow(t *testing.T) {
	// Jitter pinned to its extremes keeps the window assertions exact.
	tests := []struct {
		name    string
		jitter  float64
		attempt int
		want    time.Duration
	}{
		{"attempt 1 low", 0, 1, 750 * time.Millisecond},
		{"attempt 1 high", 1, 1, 1250 * time.Millisecond},
		{"attempt 2 low", 0, 2, 1500 * time.Millisecond},
		{"attempt 3 high", 1, 3, 5 * time.Second},
		{"attempt 4 capped", 1, 4, 10 * time.Second},
		{"attempt 5 capped even at low jitter", 0.5, 5, 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := tt.jitter
			o := newTestOrchestrator(nil, WithJitterSource(func() float64 { return j }))
			got := o.backoffDelay(tt.attempt)
			if got != tt.want {
				t.Errorf("backoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestDoObservedDelaysGrow(t *testing.T) {
	var delays []time.Duration
	o := newTestOrchestrator(nil,
		WithSleeper(func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}),
		WithJitterSource(func() float64 { return 0.5 }),
	)

	o.Do(context.Background(), "store-d", func(ctx context.Context) error {
		return &HTTPError{StatusCode: 503}
	})

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("got %d sleeps, want %d", len(delays), len(want))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestDoCancelledSleepIsTerminal(t *testing.T) {
	rec := &fakeRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	o := newTestOrchestrator(rec, WithSleeper(sleepCtx), WithJitterSource(func() float64 { return 0.5 }))

	fail := o.Do(ctx, "store-e", func(ctx context.Context) error {
		cancel()
		return &HTTPError{StatusCode: 500}
	})
	if fail == nil {
		t.Fatal("want terminal failure on cancelled context")
	}
	if fail.Type != deadletter.ErrorTypeTimeout {
		t.Errorf("type = %s, want timeout", fail.Type)
	}
}

func TestAttemptHookSeesEveryAttempt(t *testing.T) {
	var seen []int
	o := newTestOrchestrator(nil, WithAttemptHook(func(source string, attempt int) {
		seen = append(seen, attempt)
	}))

	o.Do(context.Background(), "store-f", func(ctx context.Context) error {
		return &HTTPError{StatusCode: 502}
	})

	if len(seen) != 4 || seen[0] != 1 || seen[3] != 4 {
		t.Errorf("hook saw %v, want [1 2 3 4]", seen)
	}
}

func TestClassify(t *testing.T) {
	o := newTestOrchestrator(nil)

	tests := []struct {
		name      string
		err       error
		wantType  deadletter.ErrorType
		wantRetry bool
	}{
		{"429 is rate limit", &HTTPError{StatusCode: 429}, deadletter.ErrorTypeRateLimit, true},
		{"503 is retryable http", &HTTPError{StatusCode: 503}, deadletter.ErrorTypeHTTP, true},
		{"404 is permanent http", &HTTPError{StatusCode: 404}, deadletter.ErrorTypeHTTP, false},
		{"403 is permanent http", &HTTPError{StatusCode: 403}, deadletter.ErrorTypeHTTP, false},
		{"parse default is permanent", NewParseError("no product rows found"), deadletter.ErrorTypeParse, false},
		{"retryable parse", &ParseError{Msg: "partial render", Retryable: true}, deadletter.ErrorTypeParse, true},
		{"deadline exceeded", context.DeadlineExceeded, deadletter.ErrorTypeTimeout, true},
		{"timeout substring", errors.New("navigation timed out after 20s"), deadletter.ErrorTypeTimeout, true},
		{"rate limit substring", errors.New("upstream said Too Many Requests"), deadletter.ErrorTypeRateLimit, true},
		{"connection refused", errors.New("dial tcp: connection refused"), deadletter.ErrorTypeUnknown, true},
		{"anything else retries", errors.New("browser crashed"), deadletter.ErrorTypeUnknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotRetry := o.Classify(tt.err)
			if gotType != tt.wantType || gotRetry != tt.wantRetry {
				t.Errorf("Classify(%v) = (%s, %v), want (%s, %v)", tt.err, gotType, gotRetry, tt.wantType, tt.wantRetry)
			}
		})
	}
}

func TestFailureWithoutRecorder(t *testing.T) {
	o := newTestOrchestrator(nil)

	fail := o.Do(context.Background(), "store-g", func(ctx context.Context) error {
		return &HTTPError{StatusCode: 404}
	})
	if fail == nil {
		t.Fatal("want terminal failure")
	}
	if fail.DeadLettered {
		t.Error("no recorder configured, DeadLettered must be false")
	}
}
