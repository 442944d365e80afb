package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/ProfileImport/internal/core"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func TestStoreCreateDocument(t *testing.T) {
	store, mock := newMockStore(t)
	doc := core.Document{
		DatabaseID:   "vista_db",
		CollectionID: "profiles",
		ID:           "doc-1",
		Fields: map[string]string{
			"username":   "alice",
			"email":      "alice@x.com",
			"avatar_url": "http://x/a.png",
			"created_at": "2024-01-01",
		},
	}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(
			"vista_db",
			"profiles",
			"doc-1",
			`{"avatar_url":"http://x/a.png","created_at":"2024-01-01","email":"alice@x.com","username":"alice"}`,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.CreateDocument(context.Background(), doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestStoreCreateDocumentNilFields(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO documents").
		WithArgs("db", "coll", "id", "{}").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.CreateDocument(context.Background(), core.Document{DatabaseID: "db", CollectionID: "coll", ID: "id"}); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestStoreCreateDocumentDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO documents").
		WithArgs("db", "coll", "dup", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: `duplicate key value violates unique constraint "documents_pkey"`})

	err := store.CreateDocument(context.Background(), core.Document{DatabaseID: "db", CollectionID: "coll", ID: "dup"})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("error = %v, want ErrDuplicateID", err)
	}
}

func TestStoreCreateDocumentOtherError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO documents").
		WillReturnError(sql.ErrConnDone)

	err := store.CreateDocument(context.Background(), core.Document{DatabaseID: "db", CollectionID: "coll", ID: "x"})
	if !errors.Is(err, sql.ErrConnDone) {
		t.Fatalf("error = %v, want sql.ErrConnDone", err)
	}
	if errors.Is(err, ErrDuplicateID) {
		t.Error("connection error must not be reported as duplicate")
	}
}

func TestMigrateNilDB(t *testing.T) {
	if err := Migrate(context.Background(), nil); err != nil {
		t.Fatalf("Migrate(nil) = %v, want nil", err)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no migrations embedded")
	}

	body, err := fs.ReadFile(migrationFiles, "migrations/"+entries[0].Name())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, want := range []string{"-- +goose Up", "CREATE TABLE IF NOT EXISTS documents", "-- +goose Down"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("migration missing %q", want)
		}
	}
}

func TestOpenPingFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	prev := openDB
	openDB = func(driverName, dsn string) (*sql.DB, error) { return db, nil }
	t.Cleanup(func() { openDB = prev })

	if _, err := Open(context.Background(), "postgres://localhost/test", 2); err == nil || !strings.Contains(err.Error(), "ping database") {
		t.Fatalf("Open() error = %v, want ping failure", err)
	}
}
