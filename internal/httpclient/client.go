package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RequestBuilder creates GET requests against a fixed endpoint with per-call query
// parameters.
type RequestBuilder struct {
	endpoint *url.URL
	headers  http.Header
}

// NewRequestBuilder joins target and path into the request endpoint. An empty path
// uses target unchanged.
func NewRequestBuilder(target, path string, headers map[string]string) (*RequestBuilder, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("target URL is required")
	}
	endpoint, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse target URL: %w", err)
	}
	if endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("target URL %q must include scheme and host", target)
	}
	if path != "" {
		endpoint = endpoint.JoinPath(path)
	}

	canonical := http.Header{}
	for key, value := range headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		canonical.Set(canonicalKey, value)
	}

	return &RequestBuilder{endpoint: endpoint, headers: canonical}, nil
}

// Endpoint returns the URL requests are sent to, without per-call query parameters.
func (b *RequestBuilder) Endpoint() string {
	return b.endpoint.String()
}

// Build returns a GET request whose query is the endpoint's own query merged with query.
func (b *RequestBuilder) Build(ctx context.Context, query url.Values) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	target := *b.endpoint
	if len(query) > 0 {
		merged := target.Query()
		for key, values := range query {
			for _, v := range values {
				merged.Add(key, v)
			}
		}
		target.RawQuery = merged.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	for key, values := range b.headers {
		for _, val := range values {
			req.Header.Add(key, val)
		}
	}
	return req, nil
}

// NewClient returns a client tuned for many concurrent keep-alive connections.
// A zero timeout leaves requests unbounded.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
