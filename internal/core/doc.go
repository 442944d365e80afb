// Package core provides the business logic for importing profile CSVs into a
// document store.
//
// The package is independent of any transport or storage backend. It can be
// driven by the importer command, by tests, or by any other frontend that
// supplies an [Opener] and a [DocumentStore].
//
// # Flow
//
// An import is two stages run one after the other:
//
//  1. [Ingestor.Ingest] opens the CSV resource and decodes it completely into
//     an ordered slice of [ProfileRow]. Nothing is uploaded until the whole
//     file has been read.
//  2. [Uploader.Upload] walks the rows in file order and issues one
//     [DocumentStore.CreateDocument] call per row, each with a freshly
//     generated document ID.
//
// # Errors
//
// Two kinds of failure exist:
//
//   - [ErrResourceUnavailable]: the CSV cannot be opened, read or decoded.
//     Fatal to the run; nothing is uploaded.
//   - [ErrUploadRejected]: a single create call failed. Logged and skipped;
//     the remaining rows are still uploaded. Rejected rows are never retried.
package core
