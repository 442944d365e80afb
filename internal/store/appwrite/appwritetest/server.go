// Package appwritetest provides an in-process fake of the Appwrite API subset
// used by the importer: document creation and storage file downloads.
package appwritetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// idPattern mirrors Appwrite's custom ID rules.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,35}$`)

// Document is a document the fake server accepted.
type Document struct {
	DatabaseID   string
	CollectionID string
	ID           string
	Data         map[string]any
}

// APIError is an error response the fake server sends.
type APIError struct {
	Status  int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Server is a fake Appwrite server. Create it with NewServer and Close it
// when done.
type Server struct {
	*httptest.Server

	ProjectID string
	APIKey    string

	// Reject, when set, is consulted for each create request after
	// validation; a non-nil APIError is returned to the client.
	Reject func(Document) *APIError

	mu        sync.Mutex
	documents []Document
	ids       map[string]struct{}
	files     map[string][]byte
	attempts  int
}

// NewServer starts a fake server for the given project and key.
func NewServer(projectID, apiKey string) *Server {
	s := &Server{
		ProjectID: projectID,
		APIKey:    apiKey,
		ids:       make(map[string]struct{}),
		files:     make(map[string][]byte),
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

// Endpoint returns the API root, e.g. http://127.0.0.1:1234/v1.
func (s *Server) Endpoint() string { return s.URL + "/v1" }

// FileViewURL returns the download URL for a stored file, in the form the
// Appwrite console hands out.
func (s *Server) FileViewURL(bucketID, fileID string) string {
	return s.Endpoint() + "/storage/buckets/" + bucketID + "/files/" + fileID + "/view?project=" + s.ProjectID + "&mode=admin"
}

// AddFile stores content so it can be downloaded from FileViewURL.
func (s *Server) AddFile(bucketID, fileID string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[bucketID+"/"+fileID] = content
}

// Documents returns the accepted documents in arrival order.
func (s *Server) Documents() []Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Document(nil), s.documents...)
}

// Attempts returns the number of create requests received, accepted or not.
func (s *Server) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/databases/{databaseId}/collections/{collectionId}/documents", s.handleCreateDocument)
		r.Get("/storage/buckets/{bucketId}/files/{fileId}/view", s.handleFileView)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, &APIError{Status: http.StatusNotFound, Type: "general_route_not_found", Message: "Route not found."})
	})

	return r
}

// authenticate checks the project (header or query parameter) and, when the
// server has a key, the API key header.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		project := r.Header.Get("X-Appwrite-Project")
		if project == "" {
			project = r.URL.Query().Get("project")
		}
		if project != s.ProjectID {
			writeError(w, &APIError{Status: http.StatusNotFound, Type: "project_not_found", Message: "Project with the requested ID could not be found."})
			return
		}
		if s.APIKey != "" && r.Header.Get("X-Appwrite-Key") != s.APIKey {
			writeError(w, &APIError{Status: http.StatusUnauthorized, Type: "general_unauthorized_scope", Message: "The current user or API key does not have the required scopes to access the requested resource."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createRequest struct {
	DocumentID string         `json:"documentId"`
	Data       map[string]any `json:"data"`
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.attempts++
	s.mu.Unlock()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &APIError{Status: http.StatusBadRequest, Type: "general_argument_invalid", Message: "Invalid JSON body: " + err.Error()})
		return
	}
	if req.DocumentID == "unique()" {
		req.DocumentID = uuid.NewString()
	}
	if !idPattern.MatchString(req.DocumentID) {
		writeError(w, &APIError{Status: http.StatusBadRequest, Type: "general_argument_invalid", Message: "Invalid `documentId` param: Parameter must contain at most 36 chars. Valid chars are a-z, A-Z, 0-9, period, hyphen, and underscore. Can't start with a special char"})
		return
	}
	if req.Data == nil {
		writeError(w, &APIError{Status: http.StatusBadRequest, Type: "document_missing_data", Message: "The document data is missing."})
		return
	}

	doc := Document{
		DatabaseID:   chi.URLParam(r, "databaseId"),
		CollectionID: chi.URLParam(r, "collectionId"),
		ID:           req.DocumentID,
		Data:         req.Data,
	}

	if s.Reject != nil {
		if apiErr := s.Reject(doc); apiErr != nil {
			writeError(w, apiErr)
			return
		}
	}

	s.mu.Lock()
	key := doc.DatabaseID + "/" + doc.CollectionID + "/" + doc.ID
	if _, exists := s.ids[key]; exists {
		s.mu.Unlock()
		writeError(w, &APIError{Status: http.StatusConflict, Type: "document_already_exists", Message: "Document with the requested ID already exists. Try again with a different ID or use ID.unique() to generate a unique ID."})
		return
	}
	s.ids[key] = struct{}{}
	s.documents = append(s.documents, doc)
	s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	resp := map[string]any{
		"$id":           doc.ID,
		"$databaseId":   doc.DatabaseID,
		"$collectionId": doc.CollectionID,
		"$createdAt":    now,
		"$updatedAt":    now,
		"$permissions":  []string{},
	}
	for k, v := range doc.Data {
		resp[k] = v
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleFileView(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	content, ok := s.files[chi.URLParam(r, "bucketId")+"/"+chi.URLParam(r, "fileId")]
	s.mu.Unlock()

	if !ok {
		writeError(w, &APIError{Status: http.StatusNotFound, Type: "storage_file_not_found", Message: "The requested file could not be found."})
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	_, _ = w.Write(content)
}

func writeError(w http.ResponseWriter, apiErr *APIError) {
	writeJSON(w, apiErr.Status, apiErr)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
