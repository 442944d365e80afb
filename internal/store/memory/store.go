// Package memory implements an in-process document store.
//
// It backs the dry-run mode of the importer: documents are kept in insertion
// order and never leave the process.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/JonMunkholm/ProfileImport/internal/core"
)

// ErrDuplicateID is returned when a document ID already exists in the collection.
var ErrDuplicateID = errors.New("document with the requested ID already exists")

// Store keeps documents in memory, grouped by database and collection.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]core.Document
	ids         map[string]struct{}

	// FailOn, when set, is consulted before every insert; a non-nil return
	// rejects the document.
	FailOn func(core.Document) error
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		collections: make(map[string][]core.Document),
		ids:         make(map[string]struct{}),
	}
}

func key(databaseID, collectionID string) string {
	return databaseID + "/" + collectionID
}

// CreateDocument implements core.DocumentStore.
func (s *Store) CreateDocument(ctx context.Context, doc core.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc.ID == "" {
		return errors.New("document ID must not be empty")
	}
	if s.FailOn != nil {
		if err := s.FailOn(doc); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll := key(doc.DatabaseID, doc.CollectionID)
	idKey := coll + "/" + doc.ID
	if _, exists := s.ids[idKey]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, doc.ID)
	}

	doc.Fields = maps.Clone(doc.Fields)
	s.collections[coll] = append(s.collections[coll], doc)
	s.ids[idKey] = struct{}{}
	return nil
}

// Documents returns a copy of the documents in a collection, in insertion order.
func (s *Store) Documents(databaseID, collectionID string) []core.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.collections[key(databaseID, collectionID)]
	out := make([]core.Document, len(docs))
	copy(out, docs)
	return out
}

// Len returns the total number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}
