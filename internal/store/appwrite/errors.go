package appwrite

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Error types returned by the Appwrite server that callers commonly check.
const (
	TypeDocumentAlreadyExists = "document_already_exists"
	TypeDocumentInvalid       = "document_invalid_structure"
	TypeCollectionNotFound    = "collection_not_found"
	TypeDatabaseNotFound      = "database_not_found"
	TypeUnauthorizedScope     = "general_unauthorized_scope"
)

// Error is a non-2xx response from the Appwrite API.
type Error struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Code       int    `json:"code"`
	Type       string `json:"type"`
}

func (e *Error) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("appwrite: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("appwrite: %s (%s, status %d)", e.Message, e.Type, e.StatusCode)
}

// IsConflict reports whether the document ID was already taken.
func (e *Error) IsConflict() bool {
	return e.StatusCode == http.StatusConflict || e.Type == TypeDocumentAlreadyExists
}

// decodeError builds an *Error from a failed response. Bodies that are not
// Appwrite error JSON are kept as the message, truncated.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &Error{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}
