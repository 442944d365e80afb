// Package mongo stores documents in MongoDB collections.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/JonMunkholm/ProfileImport/internal/core"
)

// ErrDuplicateID is returned when the _id already exists in the collection.
var ErrDuplicateID = errors.New("document with the requested ID already exists")

// inserter is the subset of *mongo.Collection the store uses.
type inserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// Connect dials uri and pings the primary. The caller must Disconnect the client.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// Store implements core.DocumentStore. Database and collection IDs map to
// MongoDB database and collection names.
type Store struct {
	collection func(database, collection string) inserter
}

// NewStore creates a Store on client.
func NewStore(client *mongo.Client) *Store {
	return &Store{
		collection: func(database, collection string) inserter {
			return client.Database(database).Collection(collection)
		},
	}
}

// CreateDocument inserts doc with _id set to doc.ID.
func (s *Store) CreateDocument(ctx context.Context, doc core.Document) error {
	coll := s.collection(doc.DatabaseID, doc.CollectionID)
	if _, err := coll.InsertOne(ctx, toBSON(doc)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, doc.ID)
		}
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}
	return nil
}

// toBSON orders fields by name after _id so stored documents are stable.
func toBSON(doc core.Document) bson.D {
	d := make(bson.D, 0, len(doc.Fields)+1)
	d = append(d, bson.E{Key: "_id", Value: doc.ID})
	for _, k := range slices.Sorted(maps.Keys(doc.Fields)) {
		d = append(d, bson.E{Key: k, Value: doc.Fields[k]})
	}
	return d
}
