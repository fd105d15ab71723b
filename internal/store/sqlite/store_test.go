package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ingest.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestCreateAndFindByEmail(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	app, err := s.Create(ctx, ingest.StudentRecord{
		Row:       2,
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "Jane@X.edu",
		Attributes: map[ingest.Field]string{
			ingest.FieldGPA:             "3.9",
			ingest.FieldGraduationYear:  "2027",
			ingest.FieldFirstGeneration: "yes",
			ingest.FieldCampus:          "UC Irvine",
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if app.ID == "" || app.Email != "jane@x.edu" {
		t.Errorf("Create returned %+v", app)
	}

	found, err := s.FindByEmail(ctx, []string{"JANE@x.edu", "nobody@x.edu"})
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if len(found) != 1 || found[0].ID != app.ID {
		t.Fatalf("FindByEmail = %+v, want one match for %s", found, app.ID)
	}
	if found[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not decoded")
	}

	var (
		gpa      sql.NullFloat64
		year     sql.NullInt64
		firstGen sql.NullInt64
		major    sql.NullString
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT gpa, graduation_year, first_generation, major FROM applications WHERE id = ?`, app.ID,
	).Scan(&gpa, &year, &firstGen, &major)
	if err != nil {
		t.Fatalf("select attributes: %v", err)
	}
	if !gpa.Valid || gpa.Float64 != 3.9 {
		t.Errorf("gpa = %+v", gpa)
	}
	if !year.Valid || year.Int64 != 2027 {
		t.Errorf("graduation_year = %+v", year)
	}
	if !firstGen.Valid || firstGen.Int64 != 1 {
		t.Errorf("first_generation = %+v", firstGen)
	}
	if major.Valid {
		t.Errorf("major = %+v, want NULL", major)
	}
}

func TestCreateKeepsUnparseableAttributesAsText(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	app, err := s.Create(ctx, ingest.StudentRecord{
		Row:       4,
		FirstName: "Lee",
		LastName:  "Kim",
		Email:     "lee@x.edu",
		Attributes: map[ingest.Field]string{
			ingest.FieldGPA:             "A-",
			ingest.FieldGraduationYear:  "Spring 2027",
			ingest.FieldFirstGeneration: " maybe ",
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var gpa, year, firstGen sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT gpa, graduation_year, first_generation FROM applications WHERE id = ?`, app.ID,
	).Scan(&gpa, &year, &firstGen)
	if err != nil {
		t.Fatalf("select attributes: %v", err)
	}
	if gpa.String != "A-" || year.String != "Spring 2027" || firstGen.String != "maybe" {
		t.Errorf("stored gpa = %+v, year = %+v, firstGeneration = %+v", gpa, year, firstGen)
	}
}

func TestAttributeValue(t *testing.T) {
	tests := []struct {
		typ    ingest.FieldType
		raw    string
		want   any
		wantOK bool
	}{
		{ingest.FieldNumeric, "3,8", 3.8, true},
		{ingest.FieldNumeric, "n/a", "n/a", false},
		{ingest.FieldInteger, "2027.0", int64(2027), true},
		{ingest.FieldInteger, "2027.5", "2027.5", false},
		{ingest.FieldBool, "Y", int64(1), true},
		{ingest.FieldBool, "unsure", "unsure", false},
		{ingest.FieldText, " UC Davis ", "UC Davis", true},
		{ingest.FieldNumeric, "  ", nil, true},
	}
	for _, tt := range tests {
		got, ok := attributeValue(tt.typ, tt.raw)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("attributeValue(%v, %q) = %#v, %v; want %#v, %v", tt.typ, tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFindByEmailReportsBadTimestamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	app, err := s.Create(ctx, ingest.StudentRecord{FirstName: "A", LastName: "B", Email: "ts@x.edu"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE applications SET created_at = 'yesterday' WHERE id = ?`, app.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FindByEmail(ctx, []string{"ts@x.edu"}); err == nil {
		t.Error("FindByEmail succeeded with an unreadable created_at")
	}
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := ingest.StudentRecord{FirstName: "A", LastName: "B", Email: "dup@x.edu"}
	if _, err := s.Create(ctx, rec); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	rec.Email = "DUP@x.edu"
	_, err := s.Create(ctx, rec)
	if err == nil {
		t.Fatal("second Create succeeded, want unique violation")
	}
	if got := ingest.MapError(err).Code; got != "DB001" {
		t.Errorf("MapError code = %s, want DB001 (err: %v)", got, err)
	}
}

func TestFindByEmailEmpty(t *testing.T) {
	s := openTestStore(t)
	found, err := s.FindByEmail(context.Background(), nil)
	if err != nil || len(found) != 0 {
		t.Errorf("FindByEmail(nil) = %v, %v", found, err)
	}
}

func TestUploadLogRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := s.InsertUploadLog(ctx, ingest.UploadLog{
		FileName:          "students.csv",
		FileSize:          128,
		FileType:          "text/csv",
		TotalRecords:      3,
		SuccessfulRecords: 1,
		FailedRecords:     0,
		DuplicateRecords:  1,
		Errors: []ingest.ValidationError{
			{Row: 3, Field: "firstName", Message: "firstName is required"},
		},
		Summary:   map[string]any{"duplicates": 1, "success": true},
		CreatedBy: "admin@uc.edu",
		CreatedAt: base,
	})
	if err != nil {
		t.Fatalf("InsertUploadLog: %v", err)
	}
	second, err := s.InsertUploadLog(ctx, ingest.UploadLog{
		FileName:  "later.csv",
		CreatedAt: base.Add(500 * time.Millisecond),
	})
	if err != nil {
		t.Fatalf("InsertUploadLog: %v", err)
	}

	got, err := s.GetUploadLog(ctx, first)
	if err != nil {
		t.Fatalf("GetUploadLog: %v", err)
	}
	if got.FileName != "students.csv" || got.TotalRecords != 3 || got.DuplicateRecords != 1 {
		t.Errorf("GetUploadLog = %+v", got)
	}
	if len(got.Errors) != 1 || got.Errors[0].Row != 3 {
		t.Errorf("Errors = %+v", got.Errors)
	}
	if got.Summary["success"] != true {
		t.Errorf("Summary = %+v", got.Summary)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, base)
	}

	logs, err := s.ListUploadLogs(ctx, 10)
	if err != nil {
		t.Fatalf("ListUploadLogs: %v", err)
	}
	if len(logs) != 2 || logs[0].ID != second || logs[1].ID != first {
		t.Errorf("ListUploadLogs order = %v, want [%s %s]", ids(logs), second, first)
	}
	if len(logs[0].Errors) != 0 || logs[0].Errors == nil {
		t.Errorf("empty errors decoded as %#v, want empty slice", logs[0].Errors)
	}

	limited, err := s.ListUploadLogs(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("ListUploadLogs(1) = %d logs, %v", len(limited), err)
	}
}

func TestGetUploadLogNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetUploadLog(context.Background(), "missing")
	if !errors.Is(err, ingest.ErrUploadNotFound) {
		t.Errorf("GetUploadLog(missing) err = %v, want ErrUploadNotFound", err)
	}
}

func TestPurgeUploadLogs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	for i, age := range []time.Duration{48 * time.Hour, 25 * time.Hour, time.Hour} {
		log := ingest.UploadLog{FileName: "f.csv", CreatedBy: "ops", CreatedAt: base.Add(-age)}
		if _, err := s.InsertUploadLog(ctx, log); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	n, err := s.PurgeUploadLogs(ctx, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeUploadLogs: %v", err)
	}
	if n != 2 {
		t.Errorf("purged = %d, want 2", n)
	}
	logs, _ := s.ListUploadLogs(ctx, 10)
	if len(logs) != 1 || !logs[0].CreatedAt.Equal(base.Add(-time.Hour)) {
		t.Errorf("remaining = %+v", logs)
	}
}

func TestServiceEndToEnd(t *testing.T) {
	s := openTestStore(t)
	svc, err := ingest.NewService(ingest.Deps{Applications: s, Audit: s}, ingest.Options{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	data := "First Name,Last Name,Email\n" +
		"Jane,Doe,jane@x.edu\n" +
		",Smith,smith@x.edu\n" +
		"Janet,Doe,JANE@x.edu\n"
	file := ingest.File{
		Meta: ingest.FileMeta{Name: "students.csv", Size: int64(len(data)), Type: "text/csv"},
		Data: []byte(data),
	}
	table, err := svc.ParseFile(file)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	mapping := svc.SuggestColumnMapping(table.Columns)

	result, err := svc.ProcessUpload(context.Background(), file, mapping, "admin@uc.edu", nil)
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if result.TotalRecords != 3 || result.SuccessfulRecords != 1 || result.InvalidRecords != 1 || len(result.Duplicates) != 1 {
		t.Errorf("result = %+v", result)
	}
	if result.UploadID == "" {
		t.Fatal("UploadID empty")
	}

	log, err := svc.GetUploadLog(context.Background(), result.UploadID)
	if err != nil {
		t.Fatalf("GetUploadLog: %v", err)
	}
	if log.CreatedBy != "admin@uc.edu" || log.SuccessfulRecords != 1 {
		t.Errorf("log = %+v", log)
	}

	// The same file again only yields duplicates.
	again, err := svc.ProcessUpload(context.Background(), file, mapping, "admin@uc.edu", nil)
	if err != nil {
		t.Fatalf("second ProcessUpload: %v", err)
	}
	if again.SuccessfulRecords != 0 || len(again.Duplicates) != 2 || again.Success {
		t.Errorf("second result = %+v", again)
	}
}

func ids(logs []ingest.UploadLog) []string {
	out := make([]string, len(logs))
	for i, l := range logs {
		out[i] = l.ID
	}
	return out
}
