package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/jszwec/csvutil"
)

// ContextCheckInterval is how often, in rows, decoding checks for cancellation.
var ContextCheckInterval = 100

// Opener opens the resource addressed by location for reading.
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// Ingestor reads a CSV resource into memory.
type Ingestor struct {
	opener Opener
	logger *slog.Logger
}

// NewIngestor creates an Ingestor. A nil logger uses slog.Default().
func NewIngestor(opener Opener, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{opener: opener, logger: logger}
}

// Ingest opens location, decodes it completely and returns the rows in file
// order. It blocks until the whole resource has been consumed.
//
// Any failure to open, read or decode the resource matches
// ErrResourceUnavailable.
func (in *Ingestor) Ingest(ctx context.Context, location string) ([]ProfileRow, error) {
	rc, err := in.opener.Open(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourceUnavailable, err)
	}
	defer rc.Close()

	r, counter := WrapForDecoding(rc)

	rows, err := DecodeProfiles(ctx, r)
	if err != nil {
		var decErr *DecodeError
		if errors.As(err, &decErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: read %s: %w", ErrResourceUnavailable, location, err)
	}

	in.logger.Info("CSV file successfully processed.",
		"source", location,
		"rows", len(rows),
		"bytes", counter.BytesRead,
	)

	return rows, nil
}

// DecodeProfiles decodes CSV text with a header line into rows.
//
// An empty input or a header without data lines yields no rows. Records with
// a different field count than the header, bad quoting, or invalid UTF-8 are
// reported as *DecodeError. Errors from r itself are returned unwrapped.
func DecodeProfiles(ctx context.Context, r io.Reader) ([]ProfileRow, error) {
	src := &errRecorder{reader: r}
	cr := csv.NewReader(src)

	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, src.classify(err, 1)
	}

	header := dec.Header()
	if err := validateEncoding(header); err != nil {
		return nil, &DecodeError{Line: 1, Err: err}
	}

	var rows []ProfileRow
	for i := 0; ; i++ {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		var p Profile
		if err := dec.Decode(&p); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, src.classify(err, nextLine(rows))
		}

		line, _ := cr.FieldPos(0)
		record := dec.Record()
		if err := validateEncoding(record); err != nil {
			return nil, &DecodeError{Line: line, Err: err}
		}

		fields := make(map[string]string, len(header))
		for j, name := range header {
			fields[name] = record[j]
		}

		rows = append(rows, ProfileRow{
			Line:    line,
			Fields:  fields,
			Profile: p,
		})
	}

	return rows, nil
}

// errRecorder remembers the first non-EOF error returned by the underlying
// reader so decode failures can be told apart from I/O failures.
type errRecorder struct {
	reader io.Reader
	err    error
}

func (r *errRecorder) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if err != nil && err != io.EOF && r.err == nil {
		r.err = err
	}
	return n, err
}

// classify returns the I/O error unchanged and wraps anything else in a
// *DecodeError, using the csv parse position when one is available.
func (r *errRecorder) classify(err error, fallbackLine int) error {
	if r.err != nil {
		return r.err
	}

	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		line := parseErr.StartLine
		if line == 0 {
			line = parseErr.Line
		}
		return &DecodeError{Line: line, Err: parseErr.Err}
	}

	return &DecodeError{Line: fallbackLine, Err: err}
}

// nextLine estimates the line of the record after rows.
func nextLine(rows []ProfileRow) int {
	if len(rows) == 0 {
		return 2
	}
	return rows[len(rows)-1].Line + 1
}

func validateEncoding(record []string) error {
	for _, v := range record {
		if !utf8.ValidString(v) {
			return fmt.Errorf("%w in %q", ErrInvalidEncoding, v)
		}
	}
	return nil
}
