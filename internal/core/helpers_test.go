package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// ============================================================================
// Test doubles shared by the core tests
// ============================================================================

// stringOpener serves in-memory CSV content by location.
type stringOpener map[string]string

func (o stringOpener) Open(_ context.Context, location string) (io.ReadCloser, error) {
	content, ok := o[location]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", location, errNotFound)
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

var errNotFound = errors.New("no such resource")

// recordingStore records every create call and fails the ones selected by failOn.
type recordingStore struct {
	mu     sync.Mutex
	calls  []Document
	failOn func(Document) error
}

func (s *recordingStore) CreateDocument(_ context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, doc)
	if s.failOn != nil {
		return s.failOn(doc)
	}
	return nil
}

func (s *recordingStore) Calls() []Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Document(nil), s.calls...)
}

// newTestLogger returns a text logger writing into the returned buffer.
func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, &buf
}

// logMessages extracts the msg values from text handler output, one per line.
func logMessages(out string) []string {
	var msgs []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		i := strings.Index(line, "msg=")
		if i < 0 {
			continue
		}
		rest := line[i+len("msg="):]
		if strings.HasPrefix(rest, `"`) {
			end := strings.Index(rest[1:], `"`)
			msgs = append(msgs, rest[1:end+1])
			continue
		}
		if sp := strings.IndexByte(rest, ' '); sp >= 0 {
			rest = rest[:sp]
		}
		msgs = append(msgs, rest)
	}
	return msgs
}

// sequentialIDs returns an ID generator yielding doc-1, doc-2, ...
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("doc-%d", n)
	}
}
