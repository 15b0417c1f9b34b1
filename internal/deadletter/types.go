package deadletter

import "time"

// ErrorType classifies a terminal failure for dead-letter bookkeeping.
type ErrorType string

const (
	ErrorTypeHTTP      ErrorType = "http_error"
	ErrorTypeParse     ErrorType = "parse_error"
	ErrorTypeTimeout   ErrorType = "timeout"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Resolution is the terminal state an operator assigns to an entry.
type Resolution string

const (
	ResolutionRetrySuccess     Resolution = "retry_success"
	ResolutionSkipped          Resolution = "skipped"
	ResolutionFixed            Resolution = "fixed"
	ResolutionPermanentFailure Resolution = "permanent_failure"
)

var validResolutions = map[Resolution]struct{}{
	ResolutionRetrySuccess:     {},
	ResolutionSkipped:          {},
	ResolutionFixed:            {},
	ResolutionPermanentFailure: {},
}

// Entry is one unresolved failure class per source. Repeated failures for
// the same (source, error type) merge into the existing entry; resolution
// is a one-way transition and entries are never deleted.
type Entry struct {
	ID             int64      `json:"id"`
	Source         string     `json:"source"`
	ErrorType      ErrorType  `json:"error_type"`
	Message        string     `json:"message"`
	TotalRetries   int        `json:"total_retries"`
	FirstAttemptAt time.Time  `json:"first_attempt_at"`
	LastAttemptAt  time.Time  `json:"last_attempt_at"`
	Resolution     Resolution `json:"resolution,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
	Notes          string     `json:"notes,omitempty"`
}

// Resolved reports whether the entry has left the unresolved pool.
func (e Entry) Resolved() bool { return e.Resolution != "" }

// AttemptMeta carries what the retry orchestrator knows about the attempts
// behind a failure report.
type AttemptMeta struct {
	Attempts       int
	FirstAttemptAt time.Time
	LastAttemptAt  time.Time
}

// Filter narrows ListUnresolved. Zero values match everything.
type Filter struct {
	Source    string
	ErrorType ErrorType
	Limit     int
}
