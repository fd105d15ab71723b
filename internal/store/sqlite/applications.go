package sqlite

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/logging"
)

// maxLookupParams keeps IN lists under SQLite's bound-parameter limit.
const maxLookupParams = 500

var insertApplicationSQL = func() string {
	cols := []string{"id"}
	for _, spec := range ingest.FieldSpecs {
		cols = append(cols, spec.DBColumn)
	}
	cols = append(cols, "created_at")
	return fmt.Sprintf("INSERT INTO applications (%s) VALUES (%s)",
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?,", len(cols)), ","),
	)
}()

// FindByEmail returns applications whose email matches any of emails,
// ignoring case.
func (s *Store) FindByEmail(ctx context.Context, emails []string) ([]ingest.Application, error) {
	var out []ingest.Application
	for start := 0; start < len(emails); start += maxLookupParams {
		end := min(start+maxLookupParams, len(emails))
		chunk := emails[start:end]

		args := make([]any, len(chunk))
		for i, e := range chunk {
			args[i] = ingest.NormalizeEmail(e)
		}
		query := `SELECT id, email, created_at FROM applications WHERE email IN (` +
			strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",") + `);`

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query applications by email: %w", err)
		}
		for rows.Next() {
			var app ingest.Application
			var createdAt string
			if err := rows.Scan(&app.ID, &app.Email, &createdAt); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan application: %w", err)
			}
			if app.CreatedAt, err = parseTime(createdAt); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, app)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("rows error: %w", err)
		}
	}
	return out, nil
}

// Create inserts one application. The UNIQUE email column rejects
// duplicates that slipped past the batch lookup.
func (s *Store) Create(ctx context.Context, rec ingest.StudentRecord) (ingest.Application, error) {
	app := ingest.Application{
		ID:        uuid.NewString(),
		Email:     ingest.NormalizeEmail(rec.Email),
		CreatedAt: time.Now().UTC(),
	}

	args := make([]any, 0, len(ingest.FieldSpecs)+2)
	args = append(args, app.ID)
	for _, spec := range ingest.FieldSpecs {
		switch spec.Name {
		case ingest.FieldFirstName:
			args = append(args, rec.FirstName)
		case ingest.FieldLastName:
			args = append(args, rec.LastName)
		case ingest.FieldEmail:
			args = append(args, app.Email)
		default:
			v, ok := attributeValue(spec.Type, rec.Get(spec.Name))
			if !ok {
				logging.WithFields(ctx, "email", app.Email, "row", rec.Row).
					Warn("attribute kept as text", "field", spec.Name, "value", v)
			}
			args = append(args, v)
		}
	}
	args = append(args, app.CreatedAt.Format(timeLayout))

	if _, err := s.db.ExecContext(ctx, insertApplicationSQL, args...); err != nil {
		return ingest.Application{}, err
	}
	return app, nil
}

// attributeValue converts an optional attribute to a nullable SQLite value.
// Numbers and booleans that do not parse are kept as the trimmed text, which
// SQLite stores as-is in a REAL or INTEGER column, and ok is false.
func attributeValue(t ingest.FieldType, raw string) (v any, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	switch t {
	case ingest.FieldNumeric:
		if f, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64); err == nil {
			return f, true
		}
	case ingest.FieldInteger:
		if f, err := strconv.ParseFloat(raw, 64); err == nil && f == float64(int64(f)) {
			return int64(f), true
		}
	case ingest.FieldBool:
		switch strings.ToLower(raw) {
		case "true", "t", "yes", "y", "1":
			return int64(1), true
		case "false", "f", "no", "n", "0":
			return int64(0), true
		}
	default:
		return raw, true
	}
	return raw, false
}
