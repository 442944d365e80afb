package logging

import (
	"net/http"
	"time"
)

// Transport is an http.RoundTripper that logs outbound request details at
// debug level using the context logger, so entries carry the run ID.
//
// Log fields:
//   - method: HTTP method (GET, POST, etc.)
//   - host: target host
//   - path: request URL path (the query is omitted)
//   - status: HTTP response status code
//   - duration_ms: round trip time in milliseconds
type Transport struct {
	Base http.RoundTripper
}

// NewTransport wraps base; a nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper) *Transport {
	return &Transport{Base: base}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	duration := time.Since(start)

	logger := FromContext(req.Context()).With(
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
		"duration_ms", duration.Milliseconds(),
	)
	if err != nil {
		logger.Debug("request failed", "error", err)
		return nil, err
	}

	logger.Debug("request", "status", resp.StatusCode)
	return resp, nil
}
