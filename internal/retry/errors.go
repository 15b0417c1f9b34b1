package retry

import "fmt"

// HTTPError carries the status code of a failed fetch so the orchestrator
// can classify it without string matching.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("http %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("http %d", e.StatusCode)
}

// ParseError marks a semantic parse failure. Non-retryable unless the
// caller explicitly flags it.
type ParseError struct {
	Msg       string
	Retryable bool
}

func (e *ParseError) Error() string { return e.Msg }

// NewParseError builds a non-retryable parse failure.
func NewParseError(format string, args ...any) *ParseError {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}
