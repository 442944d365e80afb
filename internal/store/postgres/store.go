// Package postgres stores documents as JSONB rows in PostgreSQL.
//
// Each document becomes one row of the documents table keyed by
// (database_id, collection_id, id). The table is created by embedded goose
// migrations.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"github.com/pressly/goose/v3"

	"github.com/JonMunkholm/ProfileImport/internal/core"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrDuplicateID is returned when the document ID already exists in the collection.
var ErrDuplicateID = errors.New("document with the requested ID already exists")

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

var openDB = sql.Open

// Open connects to dsn through the pgx driver and verifies the connection.
func Open(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	db, err := openDB("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate applies embedded SQL migrations via goose. If db is nil, it's a no-op.
func Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return nil
	}
	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

// Store implements core.DocumentStore on a *sql.DB.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store using db.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// CreateDocument inserts one document row.
func (s *Store) CreateDocument(ctx context.Context, doc core.Document) error {
	const query = `
INSERT INTO documents (
    database_id,
    collection_id,
    id,
    data
) VALUES ($1, $2, $3, $4)`

	fields := doc.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", doc.ID, err)
	}

	_, err = s.DB.ExecContext(ctx, query, doc.DatabaseID, doc.CollectionID, doc.ID, string(data))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateID, doc.ID)
		}
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}
	return nil
}
