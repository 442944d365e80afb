// Package appwrite is a small client for the Appwrite Databases REST API.
//
// Only the calls the importer needs are implemented. Requests are never
// retried: a failed create is reported to the caller as-is.
package appwrite

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/ProfileImport/internal/core"
	"github.com/JonMunkholm/ProfileImport/internal/logging"
)

// Headers sent with every authenticated request.
const (
	HeaderProject = "X-Appwrite-Project"
	HeaderKey     = "X-Appwrite-Key"
)

// maxErrorBody caps how much of a non-JSON error body is kept.
const maxErrorBody = 1024

// Config configures the client.
//
// Zero values are given sensible defaults:
//   - Timeout: 30s
type Config struct {
	// Endpoint is the API root including the version prefix, e.g. https://host/v1.
	Endpoint  string
	ProjectID string
	APIKey    string

	// Timeout is the per-request timeout applied at the http.Client level.
	Timeout time.Duration

	// SelfSigned disables TLS certificate verification for self-hosted servers.
	SelfSigned bool

	// Transport is an optional custom RoundTripper. When nil, a default
	// *http.Transport is constructed based on SelfSigned.
	Transport http.RoundTripper
}

// Client talks to one Appwrite project.
type Client struct {
	endpoint   string
	httpClient *http.Client
	headers    http.Header
}

// NewClient validates cfg and constructs a Client.
func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("appwrite: endpoint %q must be an absolute URL", cfg.Endpoint)
	}
	if cfg.ProjectID == "" {
		return nil, errors.New("appwrite: project ID must not be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.SelfSigned, //nolint:gosec // explicitly configurable
			},
		}
	}

	hdr := http.Header{}
	hdr.Set(HeaderProject, cfg.ProjectID)
	if cfg.APIKey != "" {
		hdr.Set(HeaderKey, cfg.APIKey)
	}

	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: logging.NewTransport(transport),
		},
		headers: hdr,
	}, nil
}

// Endpoint returns the configured API root without a trailing slash.
func (c *Client) Endpoint() string { return c.endpoint }

// AuthHeaders returns a copy of the project and key headers.
func (c *Client) AuthHeaders() http.Header { return c.headers.Clone() }

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

// Document is the subset of a created document's metadata the client reads back.
type Document struct {
	ID           string `json:"$id"`
	DatabaseID   string `json:"$databaseId"`
	CollectionID string `json:"$collectionId"`
	CreatedAt    string `json:"$createdAt"`
}

type createDocumentRequest struct {
	DocumentID string            `json:"documentId"`
	Data       map[string]string `json:"data"`
}

// CreateDocument creates a document with the given ID in a collection.
func (c *Client) CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data map[string]string) (*Document, error) {
	if data == nil {
		data = map[string]string{}
	}
	body, err := json.Marshal(createDocumentRequest{DocumentID: documentID, Data: data})
	if err != nil {
		return nil, fmt.Errorf("appwrite: encode document: %w", err)
	}

	endpoint, err := url.JoinPath(c.endpoint, "databases", databaseID, "collections", collectionID, "documents")
	if err != nil {
		return nil, fmt.Errorf("appwrite: build url: %w", err)
	}

	var doc Document
	if err := c.call(ctx, http.MethodPost, endpoint, body, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// call sends one request and decodes a 2xx JSON response into out.
func (c *Client) call(ctx context.Context, method, endpoint string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("appwrite: build request: %w", err)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("appwrite: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("appwrite: decode response: %w", err)
	}
	return nil
}

// Store adapts a Client to core.DocumentStore.
type Store struct {
	client *Client
}

// NewStore creates a Store backed by client.
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

// CreateDocument implements core.DocumentStore.
func (s *Store) CreateDocument(ctx context.Context, doc core.Document) error {
	_, err := s.client.CreateDocument(ctx, doc.DatabaseID, doc.CollectionID, doc.ID, doc.Fields)
	return err
}
