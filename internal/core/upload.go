package core

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// UploadOptions tunes an Uploader. The zero value uploads strictly
// sequentially with random UUID document IDs.
type UploadOptions struct {
	// Concurrency is the maximum number of create calls in flight.
	// Values below 2 await each call before issuing the next.
	Concurrency int

	// NewID generates document IDs (default: uuid.NewString).
	NewID func() string
}

// Uploader creates one document per profile row.
type Uploader struct {
	store       DocumentStore
	target      Target
	logger      *slog.Logger
	concurrency int
	newID       func() string
}

// NewUploader creates an Uploader writing to target through store.
// A nil logger uses slog.Default().
func NewUploader(store DocumentStore, target Target, logger *slog.Logger, opts UploadOptions) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	return &Uploader{
		store:       store,
		target:      target,
		logger:      logger,
		concurrency: opts.Concurrency,
		newID:       opts.NewID,
	}
}

// Upload issues one create call per row in order. A failed call is logged
// and the next row is processed; it never aborts the batch.
//
// The returned error is non-nil only when ctx is cancelled before all rows
// were attempted.
func (u *Uploader) Upload(ctx context.Context, rows []ProfileRow) (Result, error) {
	if u.concurrency > 1 {
		return u.uploadConcurrent(ctx, rows)
	}

	res := Result{Total: len(rows)}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := u.uploadRow(ctx, row); err != nil {
			res.Failed++
		} else {
			res.Uploaded++
		}
	}
	return res, nil
}

// uploadConcurrent issues calls in row order with at most u.concurrency in
// flight. Completion order is not guaranteed.
func (u *Uploader) uploadConcurrent(ctx context.Context, rows []ProfileRow) (Result, error) {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(u.concurrency)

	res := Result{Total: len(rows)}
	var cancelErr error

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			cancelErr = err
			break
		}
		g.Go(func() error {
			err := u.uploadRow(ctx, row)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
			} else {
				res.Uploaded++
			}
			return nil
		})
	}

	_ = g.Wait()
	return res, cancelErr
}

// uploadRow creates the document for a single row and logs the outcome.
func (u *Uploader) uploadRow(ctx context.Context, row ProfileRow) error {
	doc := Document{
		DatabaseID:   u.target.DatabaseID,
		CollectionID: u.target.CollectionID,
		ID:           u.newID(),
		Fields:       DocumentFields(row),
	}
	username := row.Profile.Username

	if err := u.store.CreateDocument(ctx, doc); err != nil {
		uploadErr := &UploadError{
			Username:   username,
			DocumentID: doc.ID,
			Line:       row.Line,
			Err:        err,
		}
		u.logger.Error("Failed to upload profile: "+username,
			"username", username,
			"document_id", doc.ID,
			"line", row.Line,
			"error", err,
		)
		return uploadErr
	}

	u.logger.Info("Uploaded profile: "+username,
		"username", username,
		"document_id", doc.ID,
	)
	return nil
}

// DocumentFields maps a row onto document fields. Only the profile columns
// are copied, verbatim; columns missing from the CSV header are left out.
func DocumentFields(row ProfileRow) map[string]string {
	values := map[string]string{
		ColUsername:  row.Profile.Username,
		ColEmail:     row.Profile.Email,
		ColAvatarURL: row.Profile.AvatarURL,
		ColCreatedAt: row.Profile.CreatedAt,
	}

	fields := make(map[string]string, len(ProfileColumns))
	for _, col := range ProfileColumns {
		if row.Has(col) {
			fields[col] = values[col]
		}
	}
	return fields
}
