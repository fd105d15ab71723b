package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
)

const uploadLogColumns = `id, file_name, file_size, file_type, total_records, successful_records,
	failed_records, duplicate_records, errors, summary, created_by, created_at`

// InsertUploadLog writes one immutable upload log row and returns its id.
func (s *Store) InsertUploadLog(ctx context.Context, log ingest.UploadLog) (string, error) {
	errs, err := json.Marshal(log.Errors)
	if err != nil {
		return "", fmt.Errorf("marshal errors: %w", err)
	}
	summary, err := json.Marshal(log.Summary)
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}

	id := uuid.New()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO upload_logs (`+uploadLogColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		pgtype.UUID{Bytes: id, Valid: true},
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
		log.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert upload log: %w", err)
	}
	return id.String(), nil
}

// ListUploadLogs returns the newest upload logs first.
func (s *Store) ListUploadLogs(ctx context.Context, limit int) ([]ingest.UploadLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+uploadLogColumns+` FROM upload_logs ORDER BY created_at DESC LIMIT $1`,
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
	pgID := ToPgUUID(id)
	if !pgID.Valid {
		return nil, ingest.ErrUploadNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+uploadLogColumns+` FROM upload_logs WHERE id = $1`,
		pgID,
	)
	log, err := scanUploadLog(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ingest.ErrUploadNotFound
	}
	return log, err
}

// PurgeUploadLogs deletes upload logs created before cutoff.
func (s *Store) PurgeUploadLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM upload_logs WHERE created_at < $1;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge upload logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanUploadLog(row pgx.Row) (*ingest.UploadLog, error) {
	var (
		log     ingest.UploadLog
		id      pgtype.UUID
		errs    []byte
		summary []byte
	)
	err := row.Scan(
		&id,
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
		&log.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan upload log: %w", err)
	}
	log.ID = PgUUIDToString(id)
	if err := decodeLogJSON(errs, summary, &log); err != nil {
		return nil, err
	}
	return &log, nil
}

func decodeLogJSON(errs, summary []byte, log *ingest.UploadLog) error {
	log.Errors = []ingest.ValidationError{}
	if len(errs) > 0 {
		if err := json.Unmarshal(errs, &log.Errors); err != nil {
			return fmt.Errorf("decode errors: %w", err)
		}
	}
	log.Summary = map[string]any{}
	if len(summary) > 0 {
		if err := json.Unmarshal(summary, &log.Summary); err != nil {
			return fmt.Errorf("decode summary: %w", err)
		}
	}
	return nil
}
