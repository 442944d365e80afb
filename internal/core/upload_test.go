package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

var testTarget = Target{DatabaseID: "vista_db", CollectionID: "profiles"}

func mustDecode(t *testing.T, input string) []ProfileRow {
	t.Helper()
	rows, err := DecodeProfiles(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeProfiles() error = %v", err)
	}
	return rows
}

// ============================================================================
// Uploader Tests
// ============================================================================

func TestUpload_SingleRowScenario(t *testing.T) {
	logger, buf := newTestLogger()
	store := &recordingStore{}
	rows := mustDecode(t, "username,email,avatar_url,created_at\nalice,alice@x.com,http://x/a.png,2024-01-01\n")

	res, err := NewUploader(store, testTarget, logger, UploadOptions{}).Upload(context.Background(), rows)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res != (Result{Total: 1, Uploaded: 1}) {
		t.Errorf("Result = %+v", res)
	}

	calls := store.Calls()
	if len(calls) != 1 {
		t.Fatalf("got %d create calls, want 1", len(calls))
	}
	doc := calls[0]
	if doc.DatabaseID != "vista_db" || doc.CollectionID != "profiles" {
		t.Errorf("target = %s/%s", doc.DatabaseID, doc.CollectionID)
	}
	if doc.ID == "" {
		t.Error("document ID should be generated")
	}
	want := map[string]string{
		"username":   "alice",
		"email":      "alice@x.com",
		"avatar_url": "http://x/a.png",
		"created_at": "2024-01-01",
	}
	if len(doc.Fields) != len(want) {
		t.Errorf("Fields = %v, want %v", doc.Fields, want)
	}
	for k, v := range want {
		if doc.Fields[k] != v {
			t.Errorf("Fields[%q] = %q, want %q", k, doc.Fields[k], v)
		}
	}

	msgs := logMessages(buf.String())
	if len(msgs) != 1 || msgs[0] != "Uploaded profile: alice" {
		t.Errorf("log messages = %q", msgs)
	}
}

func TestUpload_OrderAndDistinctIDs(t *testing.T) {
	var b strings.Builder
	b.WriteString("username,email,avatar_url,created_at\n")
	const n = 50
	for i := 0; i < n; i++ {
		b.WriteString("user")
		b.WriteString(strings.Repeat("x", i))
		b.WriteString(",e,a,c\n")
	}
	rows := mustDecode(t, b.String())
	store := &recordingStore{}

	res, err := NewUploader(store, testTarget, nil, UploadOptions{}).Upload(context.Background(), rows)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.Uploaded != n {
		t.Errorf("Uploaded = %d, want %d", res.Uploaded, n)
	}

	calls := store.Calls()
	if len(calls) != n {
		t.Fatalf("got %d calls, want %d", len(calls), n)
	}
	seen := make(map[string]bool, n)
	for i, doc := range calls {
		if doc.Fields[ColUsername] != rows[i].Profile.Username {
			t.Errorf("call %d username = %q, want %q", i, doc.Fields[ColUsername], rows[i].Profile.Username)
		}
		if seen[doc.ID] {
			t.Errorf("duplicate document ID %q", doc.ID)
		}
		seen[doc.ID] = true
	}
}

func TestUpload_FailureIsolation(t *testing.T) {
	logger, buf := newTestLogger()
	rejected := errors.New("Document with the requested ID already exists.")
	store := &recordingStore{failOn: func(doc Document) error {
		if doc.Fields[ColUsername] == "bob" {
			return rejected
		}
		return nil
	}}
	rows := mustDecode(t, "username,email\nalice,a@x.com\nbob,b@x.com\ncarol,c@x.com\ndave,d@x.com\n")

	res, err := NewUploader(store, testTarget, logger, UploadOptions{NewID: sequentialIDs()}).Upload(context.Background(), rows)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res != (Result{Total: 4, Uploaded: 3, Failed: 1}) {
		t.Errorf("Result = %+v", res)
	}

	calls := store.Calls()
	if len(calls) != 4 {
		t.Fatalf("got %d calls, want 4", len(calls))
	}
	for i, want := range []string{"alice", "bob", "carol", "dave"} {
		if calls[i].Fields[ColUsername] != want {
			t.Errorf("call %d = %q, want %q", i, calls[i].Fields[ColUsername], want)
		}
	}

	wantMsgs := []string{
		"Uploaded profile: alice",
		"Failed to upload profile: bob",
		"Uploaded profile: carol",
		"Uploaded profile: dave",
	}
	msgs := logMessages(buf.String())
	if strings.Join(msgs, "|") != strings.Join(wantMsgs, "|") {
		t.Errorf("log messages = %q, want %q", msgs, wantMsgs)
	}
	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "already exists") {
		t.Errorf("failure line should be an error with detail: %q", out)
	}
	if !strings.Contains(out, "document_id=doc-2") {
		t.Errorf("failure line should name the generated ID: %q", out)
	}
}

func TestUpload_MissingColumnsAreAbsent(t *testing.T) {
	store := &recordingStore{}
	rows := mustDecode(t, "username,email,bio\nalice,,likes go\n")

	if _, err := NewUploader(store, testTarget, nil, UploadOptions{}).Upload(context.Background(), rows); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	fields := store.Calls()[0].Fields
	if v, ok := fields[ColEmail]; !ok || v != "" {
		t.Errorf("empty email cell should map to \"\", got %q (present %v)", v, ok)
	}
	for _, col := range []string{ColAvatarURL, ColCreatedAt, "bio"} {
		if _, ok := fields[col]; ok {
			t.Errorf("field %q should be absent: %v", col, fields)
		}
	}
}

func TestUpload_NoRows(t *testing.T) {
	logger, buf := newTestLogger()
	store := &recordingStore{}

	res, err := NewUploader(store, testTarget, logger, UploadOptions{}).Upload(context.Background(), nil)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res != (Result{}) {
		t.Errorf("Result = %+v, want zero", res)
	}
	if len(store.Calls()) != 0 {
		t.Error("no create calls expected")
	}
	if buf.Len() != 0 {
		t.Errorf("nothing should be logged, got %q", buf.String())
	}
}

func TestUpload_SequentialCallsDoNotOverlap(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
	)
	store := &funcStore{fn: func(ctx context.Context, doc Document) error {
		mu.Lock()
		inFlight++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		mu.Unlock()

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	}}
	rows := mustDecode(t, "username\na\nb\nc\nd\n")

	if _, err := NewUploader(store, testTarget, nil, UploadOptions{}).Upload(context.Background(), rows); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if maxSeen != 1 {
		t.Errorf("max in-flight calls = %d, want 1", maxSeen)
	}
}

func TestUpload_ConcurrentBounded(t *testing.T) {
	const limit = 3
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		release = make(chan struct{})
	)
	started := make(chan struct{}, 100)
	store := &funcStore{fn: func(ctx context.Context, doc Document) error {
		mu.Lock()
		active++
		if active > maxSeen {
			maxSeen = active
		}
		mu.Unlock()

		started <- struct{}{}
		<-release

		mu.Lock()
		active--
		mu.Unlock()
		if doc.Fields[ColUsername] == "u4" {
			return errors.New("boom")
		}
		return nil
	}}
	rows := mustDecode(t, "username\nu1\nu2\nu3\nu4\nu5\nu6\nu7\n")

	done := make(chan Result)
	go func() {
		res, _ := NewUploader(store, testTarget, nil, UploadOptions{Concurrency: limit}).Upload(context.Background(), rows)
		done <- res
	}()

	for i := 0; i < limit; i++ {
		<-started
	}
	close(release)
	res := <-done

	if maxSeen > limit {
		t.Errorf("max in-flight calls = %d, want <= %d", maxSeen, limit)
	}
	if res != (Result{Total: 7, Uploaded: 6, Failed: 1}) {
		t.Errorf("Result = %+v", res)
	}
}

func TestUpload_CancelledStopsBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := &funcStore{fn: func(_ context.Context, doc Document) error {
		if doc.Fields[ColUsername] == "b" {
			cancel()
		}
		return nil
	}}
	rows := mustDecode(t, "username\na\nb\nc\nd\n")

	res, err := NewUploader(store, testTarget, nil, UploadOptions{}).Upload(ctx, rows)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if res.Uploaded != 2 {
		t.Errorf("Uploaded = %d, want 2", res.Uploaded)
	}
	if store.count != 2 {
		t.Errorf("create calls = %d, want 2", store.count)
	}
}

// funcStore delegates to fn and counts calls.
type funcStore struct {
	mu    sync.Mutex
	count int
	fn    func(context.Context, Document) error
}

func (s *funcStore) CreateDocument(ctx context.Context, doc Document) error {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	return s.fn(ctx, doc)
}

// ============================================================================
// DocumentFields / Error Tests
// ============================================================================

func TestDocumentFields(t *testing.T) {
	row := ProfileRow{
		Fields:  map[string]string{"username": "u", "created_at": "2024", "extra": "x"},
		Profile: Profile{Username: "u", CreatedAt: "2024"},
	}

	got := DocumentFields(row)
	if len(got) != 2 || got[ColUsername] != "u" || got[ColCreatedAt] != "2024" {
		t.Errorf("DocumentFields() = %v", got)
	}
}

func TestUploadError_Matching(t *testing.T) {
	cause := errors.New("network unreachable")
	err := error(&UploadError{Username: "alice", DocumentID: "d1", Line: 2, Err: cause})

	if !errors.Is(err, ErrUploadRejected) {
		t.Error("UploadError should match ErrUploadRejected")
	}
	if !errors.Is(err, cause) {
		t.Error("UploadError should unwrap to its cause")
	}
	if errors.Is(err, ErrResourceUnavailable) {
		t.Error("UploadError must not match ErrResourceUnavailable")
	}
	if !strings.Contains(err.Error(), "alice") {
		t.Errorf("Error() = %q should name the username", err.Error())
	}
}
