package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/logging"
)

// insertApplicationSQL lists every canonical column in FieldSpecs order,
// preceded by id.
var insertApplicationSQL = func() string {
	cols := []string{"id"}
	params := []string{"$1"}
	for i, spec := range ingest.FieldSpecs {
		cols = append(cols, spec.DBColumn)
		params = append(params, fmt.Sprintf("$%d", i+2))
	}
	return fmt.Sprintf(
		"INSERT INTO applications (%s) VALUES (%s) RETURNING created_at",
		strings.Join(cols, ", "),
		strings.Join(params, ", "),
	)
}()

// FindByEmail returns applications whose lower-cased email is in emails.
func (s *Store) FindByEmail(ctx context.Context, emails []string) ([]ingest.Application, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	keys := make([]string, len(emails))
	for i, e := range emails {
		keys[i] = ingest.NormalizeEmail(e)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, email, created_at FROM applications WHERE lower(email) = ANY($1)`,
		keys,
	)
	if err != nil {
		return nil, fmt.Errorf("query applications by email: %w", err)
	}
	defer rows.Close()

	var out []ingest.Application
	for rows.Next() {
		var (
			id        pgtype.UUID
			email     string
			createdAt time.Time
		)
		if err := rows.Scan(&id, &email, &createdAt); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, ingest.Application{
			ID:        PgUUIDToString(id),
			Email:     email,
			CreatedAt: createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// Create inserts one application. The unique index on lower(email) rejects
// rows that raced in from a concurrent upload.
func (s *Store) Create(ctx context.Context, rec ingest.StudentRecord) (ingest.Application, error) {
	id := uuid.New()
	args := applicationArgs(id, rec)
	for _, f := range droppedAttributes(rec) {
		logging.WithFields(ctx, "email", ingest.NormalizeEmail(rec.Email), "row", rec.Row).
			Warn("attribute stored as NULL", "field", f, "value", rec.Get(f))
	}

	var createdAt time.Time
	if err := s.pool.QueryRow(ctx, insertApplicationSQL, args...).Scan(&createdAt); err != nil {
		return ingest.Application{}, err
	}
	return ingest.Application{
		ID:        id.String(),
		Email:     ingest.NormalizeEmail(rec.Email),
		CreatedAt: createdAt,
	}, nil
}

func applicationArgs(id uuid.UUID, rec ingest.StudentRecord) []any {
	args := make([]any, 0, len(ingest.FieldSpecs)+1)
	args = append(args, pgtype.UUID{Bytes: id, Valid: true})
	for _, spec := range ingest.FieldSpecs {
		switch spec.Name {
		case ingest.FieldFirstName:
			args = append(args, rec.FirstName)
		case ingest.FieldLastName:
			args = append(args, rec.LastName)
		case ingest.FieldEmail:
			args = append(args, ingest.NormalizeEmail(rec.Email))
		default:
			args = append(args, attributeValue(spec, rec.Get(spec.Name)))
		}
	}
	return args
}
