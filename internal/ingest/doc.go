// Package ingest turns an uploaded roster file into persisted application
// records.
//
// # Pipeline
//
// An upload flows through six stages, strictly in order:
//
//	Parse -> Map -> Validate -> Resolve -> Persist -> Log
//
// Parse decodes CSV (any common delimiter or text encoding), XLSX or XLS
// into a Table keyed by header. The Mapper suggests which column feeds each
// canonical field; the operator may edit the mapping before processing.
// Validate builds StudentRecords and drops rows that fail the presence or
// email checks. Resolve removes records whose email already exists in the
// store or earlier in the same file. Persist creates the rest one at a time,
// recording per-row failures without stopping. Finally one UploadLog is
// written for the attempt.
//
// # Accounting
//
// Every data row ends up in exactly one bucket:
//
//	TotalRecords = SuccessfulRecords + FailedRecords + InvalidRecords + len(Duplicates)
//
// Success is true only when at least one record was created and no row
// produced an error of any kind.
//
// # Errors
//
// Input errors (unsupported format, oversize file, incomplete mapping) are
// returned before any stage runs and nothing is logged. Parse failures and an
// unreachable store abort the upload but are still logged. Everything else is
// per-row and collected into the result.
//
// # Concurrency
//
// A single upload runs sequentially. Service.StartUpload runs uploads in the
// background, bounded by an UploadLimiter, and streams UploadProgress to
// subscribers.
package ingest
