// Package sqlite implements the ingest stores on an embedded SQLite database.
// It backs the ingest CLI and single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", s, err)
	}
	return t, nil
}

// Store serves applications and upload logs from one SQLite file.
type Store struct {
	db *sql.DB
}

var _ ingest.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // one writer
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		applicationsDDL(),
		`CREATE TABLE IF NOT EXISTS upload_logs (
  id                 TEXT PRIMARY KEY,
  file_name          TEXT NOT NULL,
  file_size          INTEGER NOT NULL DEFAULT 0,
  file_type          TEXT NOT NULL DEFAULT '',
  total_records      INTEGER NOT NULL DEFAULT 0,
  successful_records INTEGER NOT NULL DEFAULT 0,
  failed_records     INTEGER NOT NULL DEFAULT 0,
  duplicate_records  INTEGER NOT NULL DEFAULT 0,
  errors             TEXT NOT NULL DEFAULT '[]',
  summary            TEXT NOT NULL DEFAULT '{}',
  created_by         TEXT NOT NULL DEFAULT '',
  created_at         TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS upload_logs_created_at_idx ON upload_logs(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// applicationsDDL derives the applications table from the canonical fields.
func applicationsDDL() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS applications (\n  id TEXT PRIMARY KEY")
	for _, spec := range ingest.FieldSpecs {
		b.WriteString(",\n  ")
		b.WriteString(spec.DBColumn)
		b.WriteByte(' ')
		b.WriteString(columnType(spec.Type))
		if spec.Required {
			b.WriteString(" NOT NULL")
		}
		if spec.Name == ingest.FieldEmail {
			b.WriteString(" COLLATE NOCASE UNIQUE")
		}
	}
	b.WriteString(",\n  status TEXT NOT NULL DEFAULT 'pending'")
	b.WriteString(",\n  created_at TEXT NOT NULL\n);")
	return b.String()
}

func columnType(t ingest.FieldType) string {
	switch t {
	case ingest.FieldNumeric:
		return "REAL"
	case ingest.FieldInteger, ingest.FieldBool:
		return "INTEGER"
	default:
		return "TEXT"
	}
}
