// Package session defines the rendering-session contract the harvesting
// pipeline runs against, plus its playwright-backed implementation. A
// session is a live headless-browser tab owned exclusively by one job;
// callers never share a session across goroutines.
package session

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Session is a controllable headless browser tab positioned at one page.
// Evaluate runs a script against the live DOM and returns the result as a
// JSON document so callers can validate the shape at the boundary before
// letting the data travel inward.
type Session interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Evaluate(ctx context.Context, script string) (string, error)
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	Screenshot(ctx context.Context, path string) error
	Close() error
}

// ErrNotFound indicates a selector matched nothing in the rendered DOM.
var ErrNotFound = errors.New("element not found")

// ErrTimeout indicates a session call exceeded its own timeout.
var ErrTimeout = errors.New("session timeout")

// IsInapplicable reports whether a session error means "this page does not
// have that" rather than a broken session. Extraction strategies treat
// these as a miss and move on.
func IsInapplicable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrTimeout) {
		return true
	}
	es := strings.ToLower(err.Error())
	return strings.Contains(es, "timeout") ||
		strings.Contains(es, "timed out") ||
		strings.Contains(es, "no such element") ||
		strings.Contains(es, "not found") ||
		strings.Contains(es, "not visible") ||
		strings.Contains(es, "strict mode violation")
}
