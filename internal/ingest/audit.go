package ingest

import (
	"context"
	"time"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/logging"
)

// AuditLogger writes one UploadLog per upload attempt. A logging failure is
// reported through slog and never fails the upload.
type AuditLogger struct {
	Store AuditStore
	Now   func() time.Time
}

// LogParams carries everything recorded about one attempt. Operator is passed
// explicitly so the pipeline never reads identity from ambient state.
type LogParams struct {
	File        FileMeta
	Result      *UploadResult
	Operator    string
	ArchiveKey  string
	FailureNote string
}

// Log inserts the upload log and returns its id, or "" when the insert
// failed or no store is configured.
func (a *AuditLogger) Log(ctx context.Context, p LogParams) string {
	if a == nil || a.Store == nil || p.Result == nil {
		return ""
	}

	now := time.Now
	if a.Now != nil {
		now = a.Now
	}

	entry := BuildUploadLog(p, now())
	id, err := a.Store.InsertUploadLog(ctx, entry)
	if err != nil {
		logging.WithFields(ctx,
			"file", p.File.Name,
			"operator", p.Operator,
		).Error("failed to write upload log", "error", err)
		return ""
	}
	return id
}

// BuildUploadLog assembles the immutable log row for an attempt.
func BuildUploadLog(p LogParams, at time.Time) UploadLog {
	r := p.Result
	summary := map[string]any{
		"duplicates":      len(r.Duplicates),
		"invalidRecords":  r.InvalidRecords,
		"validationCount": len(r.Errors),
		"durationMs":      r.Duration.Milliseconds(),
		"success":         r.Success,
	}
	if p.ArchiveKey != "" {
		summary["archiveKey"] = p.ArchiveKey
	}
	if p.FailureNote != "" {
		summary["failure"] = p.FailureNote
	}

	errs := r.Errors
	if errs == nil {
		errs = []ValidationError{}
	}

	return UploadLog{
		FileName:          p.File.Name,
		FileSize:          p.File.Size,
		FileType:          p.File.Type,
		TotalRecords:      r.TotalRecords,
		SuccessfulRecords: r.SuccessfulRecords,
		FailedRecords:     r.FailedRecords,
		DuplicateRecords:  len(r.Duplicates),
		Errors:            errs,
		Summary:           summary,
		CreatedBy:         p.Operator,
		CreatedAt:         at.UTC(),
	}
}
