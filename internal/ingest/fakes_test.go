package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// memStore is an in-memory Store used across the package tests.
type memStore struct {
	mu sync.Mutex

	apps      map[string]Application
	order     []string
	failOn    map[string]error // normalized email -> create error
	failTimes map[string]int   // remaining failures before success
	findErr   error
	insertErr error

	findCalls   int
	findEmails  [][]string
	createCalls int
	logs        []UploadLog
}

func newMemStore(existing ...string) *memStore {
	s := &memStore{
		apps:      make(map[string]Application),
		failOn:    make(map[string]error),
		failTimes: make(map[string]int),
	}
	for _, e := range existing {
		k := NormalizeEmail(e)
		s.apps[k] = Application{ID: "pre-" + k, Email: k}
	}
	return s
}

func (s *memStore) FindByEmail(ctx context.Context, emails []string) ([]Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.findCalls++
	s.findEmails = append(s.findEmails, append([]string(nil), emails...))
	if s.findErr != nil {
		return nil, s.findErr
	}
	var out []Application
	for _, e := range emails {
		if app, ok := s.apps[NormalizeEmail(e)]; ok {
			out = append(out, app)
		}
	}
	return out, nil
}

func (s *memStore) Create(ctx context.Context, rec StudentRecord) (Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.createCalls++
	k := rec.Key()
	if n := s.failTimes[k]; n > 0 {
		s.failTimes[k] = n - 1
		return Application{}, errors.New("transient failure")
	}
	if err := s.failOn[k]; err != nil {
		return Application{}, err
	}
	if _, ok := s.apps[k]; ok {
		return Application{}, errors.New("duplicate key value violates unique constraint")
	}
	app := Application{ID: fmt.Sprintf("app-%d", len(s.order)+1), Email: k, CreatedAt: time.Now()}
	s.apps[k] = app
	s.order = append(s.order, k)
	return app, nil
}

func (s *memStore) InsertUploadLog(ctx context.Context, log UploadLog) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insertErr != nil {
		return "", s.insertErr
	}
	log.ID = fmt.Sprintf("log-%d", len(s.logs)+1)
	s.logs = append(s.logs, log)
	return log.ID, nil
}

func (s *memStore) ListUploadLogs(ctx context.Context, limit int) ([]UploadLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]UploadLog, 0, len(s.logs))
	for i := len(s.logs) - 1; i >= 0; i-- {
		out = append(out, s.logs[i])
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) GetUploadLog(ctx context.Context, id string) (*UploadLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.logs {
		if s.logs[i].ID == id {
			l := s.logs[i]
			return &l, nil
		}
	}
	return nil, ErrUploadNotFound
}

func (s *memStore) PurgeUploadLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.logs[:0]
	var n int64
	for _, l := range s.logs {
		if l.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	s.logs = kept
	return n, nil
}

func (s *memStore) Migrate(ctx context.Context) error { return nil }
func (s *memStore) Close() error                      { return nil }

// recordingNotifier captures SendSummary calls.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (n *recordingNotifier) SendSummary(ctx context.Context, result *UploadResult, fileName string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, fileName)
	return n.err
}

func csvFile(name, body string) File {
	return File{
		Meta: FileMeta{Name: name, Size: int64(len(body)), Type: "text/csv"},
		Data: []byte(body),
	}
}

func requiredMapping() ColumnMapping {
	return ColumnMapping{
		"first_name": FieldFirstName,
		"last_name":  FieldLastName,
		"email":      FieldEmail,
	}
}

func rec(row int, first, last, email string) StudentRecord {
	return StudentRecord{Row: row, FirstName: first, LastName: last, Email: email}
}
