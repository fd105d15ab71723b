package ingest

import (
	"context"
	"io"
	"time"
)

// ApplicationStore is the persistent store of application entities.
// Implementations must enforce email uniqueness themselves; the pipeline
// does not lock across concurrent uploads.
type ApplicationStore interface {
	// FindByEmail returns existing applications whose normalized email is in
	// emails. It is called once per batch.
	FindByEmail(ctx context.Context, emails []string) ([]Application, error)

	// Create persists one record and returns the stored entity.
	Create(ctx context.Context, rec StudentRecord) (Application, error)
}

// AuditStore persists UploadLog rows. Logs are insert-only.
type AuditStore interface {
	InsertUploadLog(ctx context.Context, log UploadLog) (string, error)
	ListUploadLogs(ctx context.Context, limit int) ([]UploadLog, error)
	GetUploadLog(ctx context.Context, id string) (*UploadLog, error)
}

// Store is implemented by backends that serve both contracts.
type Store interface {
	ApplicationStore
	AuditStore
	Migrate(ctx context.Context) error
	Close() error
}

// Notifier delivers an upload summary to the operator.
type Notifier interface {
	SendSummary(ctx context.Context, result *UploadResult, fileName string) error
}

// Archiver keeps a copy of the original uploaded file and returns a locator
// for it (an object key or URL).
type Archiver interface {
	Archive(ctx context.Context, uploadKey string, meta FileMeta, body io.Reader) (string, error)
}

// UploadLogPurger is implemented by audit stores that support retention.
type UploadLogPurger interface {
	PurgeUploadLogs(ctx context.Context, cutoff time.Time) (int64, error)
}
