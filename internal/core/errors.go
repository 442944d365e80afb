package core

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceUnavailable is returned when the CSV resource cannot be
	// opened, read or decoded. Nothing is uploaded after it.
	ErrResourceUnavailable = errors.New("csv resource unavailable")

	// ErrUploadRejected matches any failed create-document call.
	ErrUploadRejected = errors.New("upload rejected")

	// ErrInvalidEncoding is reported for fields that are not valid UTF-8.
	ErrInvalidEncoding = errors.New("invalid UTF-8 encoding")
)

// DecodeError reports a malformed CSV record.
type DecodeError struct {
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode csv line %d: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes a DecodeError match ErrResourceUnavailable.
func (e *DecodeError) Is(target error) bool {
	return target == ErrResourceUnavailable
}

// UploadError reports a failed create-document call for one row.
type UploadError struct {
	Username   string
	DocumentID string
	Line       int
	Err        error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload profile %q (line %d, document %s): %v", e.Username, e.Line, e.DocumentID, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Is makes an UploadError match ErrUploadRejected.
func (e *UploadError) Is(target error) bool {
	return target == ErrUploadRejected
}
