package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// CacheHeader is set by the geo server to report cache hits and misses.
	CacheHeader = "X-Cache"
	// MaxCaptureBytes bounds how much of a response body is kept in memory.
	MaxCaptureBytes = 1 << 20
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Elapsed    time.Duration
}

// CacheStatus returns the X-Cache header value, or "" when absent.
func (r *Response) CacheStatus() string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header.Get(CacheHeader)
}

// Capture sends req and reads up to MaxCaptureBytes of the body. Elapsed covers the
// round trip and the body read. Any remaining body is drained so the connection can
// be reused.
func Capture(client *http.Client, req *http.Request) (*Response, error) {
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxCaptureBytes))
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Elapsed:    elapsed,
	}, nil
}
