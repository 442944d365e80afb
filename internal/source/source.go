// Package source opens the CSV resource named by a location string.
//
// Locations are either local paths (optionally as file:// URLs) or
// http(s):// URLs. Remote reads can carry authentication headers, attached
// only to URLs under a configured prefix so credentials never leave the
// intended host.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// ErrTooLarge is returned by reads that go past Options.MaxSize.
var ErrTooLarge = errors.New("resource exceeds size limit")

// StatusError reports a non-2xx response to a download.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Options configures an Opener.
//
// Zero values are given sensible defaults:
//   - Timeout: 60s (only used when HTTPClient is nil)
//   - MaxSize: no limit
type Options struct {
	// HTTPClient is used for remote locations. When nil a client with
	// Timeout is created.
	HTTPClient *http.Client
	Timeout    time.Duration

	// MaxSize caps the number of bytes that may be read; 0 disables the cap.
	MaxSize int64

	// AuthPrefix and AuthHeaders: requests whose URL starts with AuthPrefix
	// get AuthHeaders added.
	AuthPrefix  string
	AuthHeaders http.Header
}

// Opener opens local and remote CSV resources.
type Opener struct {
	httpClient  *http.Client
	maxSize     int64
	authPrefix  string
	authHeaders http.Header
}

// NewOpener constructs an Opener from opts.
func NewOpener(opts Options) *Opener {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Opener{
		httpClient:  client,
		maxSize:     opts.MaxSize,
		authPrefix:  opts.AuthPrefix,
		authHeaders: opts.AuthHeaders.Clone(),
	}
}

// Open returns a reader over the resource at location. The caller must
// close it.
func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(location) == "" {
		return nil, errors.New("source location must not be empty")
	}

	var (
		rc  io.ReadCloser
		err error
	)
	switch kind, target := classify(location); kind {
	case kindHTTP:
		rc, err = o.openHTTP(ctx, target)
	default:
		rc, err = openLocal(target)
	}
	if err != nil {
		return nil, err
	}

	if o.maxSize > 0 {
		rc = newLimitedReadCloser(rc, o.maxSize)
	}
	return rc, nil
}

type locationKind int

const (
	kindLocal locationKind = iota
	kindHTTP
)

// classify decides how location is opened and returns the path or URL to use.
func classify(location string) (locationKind, string) {
	u, err := url.Parse(location)
	if err != nil {
		return kindLocal, location
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return kindHTTP, location
	case "file":
		if u.Path != "" {
			return kindLocal, u.Path
		}
		return kindLocal, u.Opaque
	default:
		return kindLocal, location
	}
}

func openLocal(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

func (o *Opener) openHTTP(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.8")
	if o.authPrefix != "" && strings.HasPrefix(rawURL, o.authPrefix) {
		for k, vs := range o.authHeaders {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// limitedReadCloser fails with ErrTooLarge once more than max bytes are read.
type limitedReadCloser struct {
	rc   io.ReadCloser
	left int64
}

func newLimitedReadCloser(rc io.ReadCloser, max int64) *limitedReadCloser {
	return &limitedReadCloser{rc: rc, left: max}
}

func (l *limitedReadCloser) Read(p []byte) (int, error) {
	if l.left < 0 {
		return 0, ErrTooLarge
	}
	// Allow one byte past the limit so an exact-size resource is accepted
	// and a larger one is detected.
	if int64(len(p)) > l.left+1 {
		p = p[:l.left+1]
	}
	n, err := l.rc.Read(p)
	l.left -= int64(n)
	if l.left < 0 {
		return 0, ErrTooLarge
	}
	return n, err
}

func (l *limitedReadCloser) Close() error { return l.rc.Close() }
