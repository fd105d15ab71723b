package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/logging"
)

// DefaultMaxFileSize is the upload size ceiling.
const DefaultMaxFileSize int64 = 10 << 20

// DefaultUploadTimeout bounds an asynchronous upload run.
const DefaultUploadTimeout = 10 * time.Minute

// Options configures a Service. Zero values select defaults.
type Options struct {
	MaxFileSize   int64
	UploadTimeout time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	MaxConcurrent int
	MaxWait       time.Duration
	Synonyms      map[string]Field
	Now           func() time.Time
}

// Deps are the external collaborators of the pipeline. Applications is
// required; the rest may be nil.
type Deps struct {
	Applications ApplicationStore
	Audit        AuditStore
	Notifier     Notifier
	Archiver     Archiver
}

// Service runs the ingestion pipeline: parse, map, validate, resolve
// duplicates, persist and log.
type Service struct {
	apps      ApplicationStore
	audit     AuditStore
	notifier  Notifier
	archiver  Archiver
	mapper    *Mapper
	persister *Persister
	auditLog  *AuditLogger
	limiter   *UploadLimiter
	opts      Options

	mu   sync.RWMutex
	jobs map[string]*uploadJob
}

// NewService wires a Service from its collaborators.
func NewService(deps Deps, opts Options) (*Service, error) {
	if deps.Applications == nil {
		return nil, fmt.Errorf("new service: application store is required")
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = DefaultUploadTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		apps:     deps.Applications,
		audit:    deps.Audit,
		notifier: deps.Notifier,
		archiver: deps.Archiver,
		mapper:   NewMapper(opts.Synonyms),
		persister: &Persister{
			Store:      deps.Applications,
			MaxRetries: opts.MaxRetries,
			RetryDelay: opts.RetryDelay,
		},
		auditLog: &AuditLogger{Store: deps.Audit, Now: opts.Now},
		limiter:  NewUploadLimiter(opts.MaxConcurrent, opts.MaxWait),
		opts:     opts,
		jobs:     make(map[string]*uploadJob),
	}, nil
}

// Limiter exposes the concurrency limiter for status reporting and drain.
func (s *Service) Limiter() *UploadLimiter {
	return s.limiter
}

// MaxFileSize returns the configured size ceiling in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.opts.MaxFileSize
}

// CheckUpload enforces the size ceiling and the extension allow-list.
func (s *Service) CheckUpload(meta FileMeta) error {
	if meta.Size > s.opts.MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, meta.Size, s.opts.MaxFileSize)
	}
	ext := meta.Extension()
	for _, allowed := range SupportedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return &UnsupportedFormatError{Extension: ext}
}

// ParseFile checks and decodes an uploaded file. A file with a header but no
// data rows is a parse error.
func (s *Service) ParseFile(file File) (*Table, error) {
	if err := s.CheckUpload(file.Meta); err != nil {
		return nil, err
	}
	return parseUpload(file)
}

func parseUpload(file File) (*Table, error) {
	table, err := Parse(file.Data, file.Meta.Extension())
	if err != nil {
		return nil, err
	}
	if len(table.Records) == 0 {
		return nil, &ParseError{Format: strings.TrimPrefix(file.Meta.Extension(), "."), Err: ErrNoDataRows}
	}
	return table, nil
}

// SuggestColumnMapping proposes a mapping for the given headers.
func (s *Service) SuggestColumnMapping(columns []string) ColumnMapping {
	return s.mapper.Suggest(columns)
}

// ProcessUpload runs the full pipeline synchronously.
//
// Input errors (unsupported format, oversize file, incomplete mapping) are
// returned with a nil result and nothing is logged. Pipeline-wide failures
// (parse errors, unreachable store) are logged and returned alongside a
// result that carries the failure and the log id. Row-level problems never
// produce an error.
func (s *Service) ProcessUpload(ctx context.Context, file File, mapping ColumnMapping, operator string, progress ProgressCallback) (*UploadResult, error) {
	start := s.opts.Now()
	logger := logging.WithFields(ctx, "file", file.Meta.Name, "operator", operator)

	if err := s.CheckUpload(file.Meta); err != nil {
		return nil, err
	}
	if missing := mapping.MissingRequired(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrIncompleteMapping, missing)
	}

	progress.notify(UploadProgress{Phase: PhaseParsing, Label: "Parsing file"})
	table, err := parseUpload(file)
	if err != nil {
		return s.fail(ctx, file, operator, start, err, progress)
	}

	result := &UploadResult{
		TotalRecords: len(table.Records),
		Errors:       []ValidationError{},
		Duplicates:   []StudentRecord{},
	}

	progress.notify(UploadProgress{Phase: PhaseValidating, Label: "Validating records", Total: result.TotalRecords})
	validation := Validate(table.Records, mapping)
	result.Errors = append(result.Errors, validation.Errors...)
	result.InvalidRecords = validation.InvalidRows()

	progress.notify(UploadProgress{Phase: PhaseResolving, Label: "Checking for duplicates", Total: len(validation.Valid)})
	resolution, err := Resolve(ctx, s.apps, validation.Valid)
	if err != nil {
		return s.fail(ctx, file, operator, start, err, progress)
	}
	result.Duplicates = append(result.Duplicates, resolution.Duplicates...)

	progress.notify(UploadProgress{Phase: PhaseInserting, Label: "Creating applications", Total: len(resolution.Unique)})
	persisted := s.persister.Persist(ctx, resolution.Unique, progress)
	result.SuccessfulRecords = persisted.Successful
	result.FailedRecords = persisted.Failed
	result.Errors = append(result.Errors, persisted.Errors...)

	result.Success = result.SuccessfulRecords > 0 && result.FailedRecords == 0 && len(result.Errors) == 0
	result.Duration = s.opts.Now().Sub(start)

	// The audit trail is written even if the caller gave up mid-batch.
	logCtx := context.WithoutCancel(ctx)

	progress.notify(UploadProgress{Phase: PhaseLogging, Label: "Writing upload log"})
	archiveKey := s.archive(logCtx, file)
	result.UploadID = s.auditLog.Log(logCtx, LogParams{
		File:       file.Meta,
		Result:     result,
		Operator:   operator,
		ArchiveKey: archiveKey,
	})

	logger.Info("upload processed",
		"upload_id", result.UploadID,
		"total", result.TotalRecords,
		"successful", result.SuccessfulRecords,
		"failed", result.FailedRecords,
		"invalid", result.InvalidRecords,
		"duplicates", len(result.Duplicates),
		"duration", result.Duration,
	)

	progress.notify(UploadProgress{
		Phase:     PhaseComplete,
		Label:     "Upload complete",
		Completed: result.SuccessfulRecords,
		Total:     result.TotalRecords,
	})
	return result, nil
}

// RecordFailure logs an upload that failed before ProcessUpload could run,
// such as a parse failure while suggesting a mapping. Input errors are
// returned unchanged with a nil result and nothing is logged.
func (s *Service) RecordFailure(ctx context.Context, file File, operator string, cause error) (*UploadResult, error) {
	if IsInputError(cause) {
		return nil, cause
	}
	return s.fail(ctx, file, operator, s.opts.Now(), cause, nil)
}

// fail records a pipeline-wide failure: zero counts and a single general
// error carrying the reason.
func (s *Service) fail(ctx context.Context, file File, operator string, start time.Time, cause error, progress ProgressCallback) (*UploadResult, error) {
	result := &UploadResult{
		Error: cause.Error(),
		Errors: []ValidationError{{
			Field:   GeneralField,
			Value:   file.Meta.Name,
			Message: cause.Error(),
		}},
		Duplicates: []StudentRecord{},
		Duration:   s.opts.Now().Sub(start),
	}

	result.UploadID = s.auditLog.Log(context.WithoutCancel(ctx), LogParams{
		File:        file.Meta,
		Result:      result,
		Operator:    operator,
		FailureNote: FormatUserError(cause),
	})

	logging.WithFields(ctx, "file", file.Meta.Name, "operator", operator).
		Warn("upload failed", "upload_id", result.UploadID, "error", cause)

	progress.notify(UploadProgress{Phase: PhaseFailed, Label: "Upload failed", Error: FormatUserError(cause)})
	return result, cause
}

// archive stores the original file when an Archiver is configured. Failures
// are logged and yield an empty key.
func (s *Service) archive(ctx context.Context, file File) string {
	if s.archiver == nil {
		return ""
	}
	key, err := s.archiver.Archive(ctx, uuid.NewString(), file.Meta, bytes.NewReader(file.Data))
	if err != nil {
		logging.WithFields(ctx, "file", file.Meta.Name).Warn("failed to archive upload", "error", err)
		return ""
	}
	return key
}

// SendConfirmationEmail forwards the result to the Notifier. It does nothing
// unless the upload was logged. The returned error is informational; the
// result is never changed.
func (s *Service) SendConfirmationEmail(ctx context.Context, result *UploadResult, fileName string) error {
	if s.notifier == nil || result == nil || result.UploadID == "" {
		return nil
	}
	if err := s.notifier.SendSummary(ctx, result, fileName); err != nil {
		logging.WithFields(ctx, "upload_id", result.UploadID, "file", fileName).
			Warn("failed to send upload summary", "error", err)
		return fmt.Errorf("send summary: %w", err)
	}
	return nil
}

// ListUploadLogs returns the most recent upload logs, newest first.
func (s *Service) ListUploadLogs(ctx context.Context, limit int) ([]UploadLog, error) {
	if s.audit == nil {
		return []UploadLog{}, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.audit.ListUploadLogs(ctx, limit)
}

// GetUploadLog returns one upload log by id.
func (s *Service) GetUploadLog(ctx context.Context, id string) (*UploadLog, error) {
	if s.audit == nil {
		return nil, ErrUploadNotFound
	}
	return s.audit.GetUploadLog(ctx, id)
}
