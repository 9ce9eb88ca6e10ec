// Package classify turns a captured directions response into failure reasons.
package classify

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	ReasonBadGateway = "502 Bad Gateway Error"
	ReasonTooSlow    = "Response too slow"

	// DefaultSlowThreshold is the latency above which a response is flagged slow.
	DefaultSlowThreshold = 5 * time.Second

	apiErrorMarker  = "error_message"
	apiErrorSnippet = 100
)

// Response is the part of an HTTP response classification looks at.
type Response struct {
	StatusCode int
	Body       []byte
	Elapsed    time.Duration
}

// Result lists the failure reasons of one response in evaluation order.
// An empty Result is a success.
type Result struct {
	StatusCode int
	Reasons    []string
}

// Failed reports whether any reason was recorded.
func (r Result) Failed() bool {
	return len(r.Reasons) > 0
}

// Err returns a *FailureError for a failed result and nil otherwise.
func (r Result) Err() error {
	if !r.Failed() {
		return nil
	}
	return &FailureError{
		StatusCode: r.StatusCode,
		Reasons:    append([]string(nil), r.Reasons...),
	}
}

// Classify evaluates the status rules in order and the latency rule independently,
// so a slow 502 carries both reasons. A zero slow threshold uses DefaultSlowThreshold.
func Classify(resp Response, slow time.Duration) Result {
	if slow <= 0 {
		slow = DefaultSlowThreshold
	}
	result := Result{StatusCode: resp.StatusCode}

	switch {
	case resp.StatusCode == http.StatusBadGateway:
		result.Reasons = append(result.Reasons, ReasonBadGateway)
	case resp.StatusCode != http.StatusOK:
		result.Reasons = append(result.Reasons, fmt.Sprintf("HTTP Error: %d", resp.StatusCode))
	case strings.Contains(string(resp.Body), apiErrorMarker):
		result.Reasons = append(result.Reasons, fmt.Sprintf("API Error: %s...", snippet(resp.Body, apiErrorSnippet)))
	}

	if resp.Elapsed > slow {
		result.Reasons = append(result.Reasons, ReasonTooSlow)
	}
	return result
}

// Category collapses a reason into a stable bucket name, dropping status codes and
// body snippets.
func Category(reason string) string {
	switch {
	case reason == ReasonBadGateway:
		return ReasonBadGateway
	case reason == ReasonTooSlow:
		return ReasonTooSlow
	case strings.HasPrefix(reason, "HTTP Error:"):
		return "HTTP Error"
	case strings.HasPrefix(reason, "API Error:"):
		return "API Error"
	default:
		return reason
	}
}

func snippet(body []byte, limit int) string {
	runes := []rune(string(body))
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return string(runes)
}

// FailureError is returned for a response that matched at least one failure rule.
type FailureError struct {
	StatusCode int
	Reasons    []string
}

func (e *FailureError) Error() string {
	return strings.Join(e.Reasons, "; ")
}

// Has reports whether reason is among the recorded reasons.
func (e *FailureError) Has(reason string) bool {
	for _, r := range e.Reasons {
		if r == reason {
			return true
		}
	}
	return false
}
