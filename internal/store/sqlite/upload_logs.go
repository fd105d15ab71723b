package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
)

const uploadLogColumns = `id, file_name, file_size, file_type, total_records, successful_records,
  failed_records, duplicate_records, errors, summary, created_by, created_at`

// InsertUploadLog writes one upload log row and returns its id.
func (s *Store) InsertUploadLog(ctx context.Context, log ingest.UploadLog) (string, error) {
	errs, err := json.Marshal(log.Errors)
	if err != nil {
		return "", fmt.Errorf("marshal errors: %w", err)
	}
	summary, err := json.Marshal(log.Summary)
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}

	createdAt := log.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO upload_logs(`+uploadLogColumns+`)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?);`,
		id,
		log.FileName,
		log.FileSize,
		log.FileType,
		log.TotalRecords,
		log.SuccessfulRecords,
		log.FailedRecords,
		log.DuplicateRecords,
		string(errs),
		string(summary),
		log.CreatedBy,
		createdAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("insert upload log: %w", err)
	}
	return id, nil
}

// ListUploadLogs returns the newest upload logs first.
func (s *Store) ListUploadLogs(ctx context.Context, limit int) ([]ingest.UploadLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+uploadLogColumns+` FROM upload_logs ORDER BY created_at DESC, rowid DESC LIMIT ?;`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query upload logs: %w", err)
	}
	defer rows.Close()

	out := []ingest.UploadLog{}
	for rows.Next() {
		log, err := scanUploadLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// GetUploadLog returns one upload log or ingest.ErrUploadNotFound.
func (s *Store) GetUploadLog(ctx context.Context, id string) (*ingest.UploadLog, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+uploadLogColumns+` FROM upload_logs WHERE id = ? LIMIT 1;`, id)
	log, err := scanUploadLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ingest.ErrUploadNotFound
	}
	return log, err
}

// PurgeUploadLogs deletes upload logs created before cutoff.
func (s *Store) PurgeUploadLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM upload_logs WHERE created_at < ?;`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("purge upload logs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUploadLog(row scanner) (*ingest.UploadLog, error) {
	var (
		log       ingest.UploadLog
		errs      string
		summary   string
		createdAt string
	)
	err := row.Scan(
		&log.ID,
		&log.FileName,
		&log.FileSize,
		&log.FileType,
		&log.TotalRecords,
		&log.SuccessfulRecords,
		&log.FailedRecords,
		&log.DuplicateRecords,
		&errs,
		&summary,
		&log.CreatedBy,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan upload log: %w", err)
	}

	if log.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	log.Errors = []ingest.ValidationError{}
	if err := json.Unmarshal([]byte(errs), &log.Errors); err != nil {
		return nil, fmt.Errorf("decode errors: %w", err)
	}
	log.Summary = map[string]any{}
	if err := json.Unmarshal([]byte(summary), &log.Summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &log, nil
}
