package store

import (
	"path/filepath"
	"testing"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/config"
)

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apps.db")
	s, err := Open(t.Context(), config.DatabaseConfig{URL: "sqlite://" + path, Migrate: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	logs, err := s.ListUploadLogs(t.Context(), 10)
	if err != nil {
		t.Fatalf("ListUploadLogs after migrate: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("logs = %d, want 0", len(logs))
	}
}

func TestOpenErrors(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"unknown scheme", "mysql://localhost/db"},
		{"sqlite without path", "sqlite://"},
		{"bad postgres url", "postgres://user:pa ss@[bad/db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(t.Context(), config.DatabaseConfig{URL: tt.url}); err == nil {
				t.Errorf("Open(%q) succeeded, want error", tt.url)
			}
		})
	}
}
