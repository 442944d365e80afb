package core

import "context"

// Profile columns mapped onto document fields.
const (
	ColUsername  = "username"
	ColEmail     = "email"
	ColAvatarURL = "avatar_url"
	ColCreatedAt = "created_at"
)

// ProfileColumns lists the mapped columns in document field order.
var ProfileColumns = []string{ColUsername, ColEmail, ColAvatarURL, ColCreatedAt}

// Profile holds the typed view of the mapped columns of one CSV row.
// Values are raw text; no format validation is applied.
type Profile struct {
	Username  string `csv:"username"`
	Email     string `csv:"email"`
	AvatarURL string `csv:"avatar_url"`
	CreatedAt string `csv:"created_at"`
}

// ProfileRow is one decoded CSV data row.
type ProfileRow struct {
	// Line is the 1-indexed line in the source where the record starts.
	Line int

	// Fields maps every header name to this row's value.
	Fields map[string]string

	Profile Profile
}

// Has reports whether the CSV header contained column.
func (r ProfileRow) Has(column string) bool {
	_, ok := r.Fields[column]
	return ok
}

// Get returns the value for column and whether the column exists.
func (r ProfileRow) Get(column string) (string, bool) {
	v, ok := r.Fields[column]
	return v, ok
}

// Target addresses the collection documents are created in.
type Target struct {
	DatabaseID   string
	CollectionID string
}

// Document is a create request for a single remote document.
type Document struct {
	DatabaseID   string
	CollectionID string
	ID           string
	Fields       map[string]string
}

// DocumentStore creates documents in a remote collection.
// Implementations must be safe for concurrent use when the uploader runs
// with a concurrency above one.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc Document) error
}

// Result counts the outcome of an upload run.
type Result struct {
	Total    int
	Uploaded int
	Failed   int
}
