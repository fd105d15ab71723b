package postgres

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
)

// ----------------------------------------------------------------------------
// ToPgNumeric Tests
// ----------------------------------------------------------------------------

func TestToPgNumeric(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		want      float64
	}{
		{"gpa", "3.85", true, 3.85},
		{"integer", "4", true, 4},
		{"leading decimal", ".5", true, 0.5},
		{"trailing decimal", "3.", true, 3},
		{"comma decimal", "3,7", true, 3.7},
		{"padded", "  2.9 ", true, 2.9},
		{"negative", "-1.0", true, -1},
		{"empty", "", false, 0},
		{"text", "N/A", false, 0},
		{"two commas", "1,000,000", false, 0},
		{"letters after number", "3.5 GPA", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToPgNumeric(tt.input)
			if result.Valid != tt.wantValid {
				t.Fatalf("ToPgNumeric(%q).Valid = %v, want %v", tt.input, result.Valid, tt.wantValid)
			}
			if !tt.wantValid {
				return
			}
			f, err := result.Float64Value()
			if err != nil || !f.Valid {
				t.Fatalf("Float64Value() = %v, %v", f, err)
			}
			if math.Abs(f.Float64-tt.want) > 1e-9 {
				t.Errorf("ToPgNumeric(%q) = %v, want %v", tt.input, f.Float64, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ToPgInt4 Tests
// ----------------------------------------------------------------------------

func TestToPgInt4(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		want      int32
	}{
		{"2027", true, 2027},
		{" 2026 ", true, 2026},
		{"2027.0", true, 2027},
		{"2027.5", false, 0},
		{"", false, 0},
		{"class of 2027", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ToPgInt4(tt.input)
			if got.Valid != tt.wantValid || got.Int32 != tt.want {
				t.Errorf("ToPgInt4(%q) = %+v, want valid=%v %d", tt.input, got, tt.wantValid, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ToPgBool Tests
// ----------------------------------------------------------------------------

func TestToPgBool(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		wantBool  bool
	}{
		{"true", true, true},
		{"Yes", true, true},
		{"Y", true, true},
		{"1", true, true},
		{"false", true, false},
		{"NO", true, false},
		{"0", true, false},
		{"", false, false},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ToPgBool(tt.input)
			if got.Valid != tt.wantValid || got.Bool != tt.wantBool {
				t.Errorf("ToPgBool(%q) = %+v", tt.input, got)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ToPgText / UUID Tests
// ----------------------------------------------------------------------------

func TestToPgText(t *testing.T) {
	if got := ToPgText("  UC Davis "); !got.Valid || got.String != "UC Davis" {
		t.Errorf("ToPgText = %+v", got)
	}
	if got := ToPgText("   "); got.Valid {
		t.Errorf("ToPgText(blank) = %+v, want invalid", got)
	}
}

func TestUUIDRoundTrip(t *testing.T) {
	id := uuid.New()
	pg := ToPgUUID(id.String())
	if !pg.Valid {
		t.Fatal("ToPgUUID returned invalid for a real uuid")
	}
	if got := PgUUIDToString(pg); got != id.String() {
		t.Errorf("PgUUIDToString = %q, want %q", got, id.String())
	}
	if ToPgUUID("log-1").Valid {
		t.Error("ToPgUUID accepted a non-uuid")
	}
	if PgUUIDToString(pgtype.UUID{}) != "" {
		t.Error("PgUUIDToString(invalid) != \"\"")
	}
}

// ----------------------------------------------------------------------------
// Statement building
// ----------------------------------------------------------------------------

func TestInsertApplicationSQL(t *testing.T) {
	wantParams := len(ingest.FieldSpecs) + 1
	if !strings.Contains(insertApplicationSQL, "$"+strconv.Itoa(wantParams)+")") {
		t.Errorf("insert SQL does not end with $%d: %s", wantParams, insertApplicationSQL)
	}
	for _, spec := range ingest.FieldSpecs {
		if !strings.Contains(insertApplicationSQL, spec.DBColumn) {
			t.Errorf("insert SQL missing column %s", spec.DBColumn)
		}
	}
}

func TestApplicationArgs(t *testing.T) {
	rec := ingest.StudentRecord{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     " Jane@X.edu ",
		Attributes: map[ingest.Field]string{
			ingest.FieldGPA:             "3.9",
			ingest.FieldGraduationYear:  "2027",
			ingest.FieldFirstGeneration: "yes",
			ingest.FieldCampus:          "UC Irvine",
		},
	}
	args := applicationArgs(uuid.New(), rec)
	if len(args) != len(ingest.FieldSpecs)+1 {
		t.Fatalf("len(args) = %d", len(args))
	}

	byField := make(map[ingest.Field]any)
	for i, spec := range ingest.FieldSpecs {
		byField[spec.Name] = args[i+1]
	}
	if byField[ingest.FieldEmail] != "jane@x.edu" {
		t.Errorf("email arg = %v", byField[ingest.FieldEmail])
	}
	if v, ok := byField[ingest.FieldGPA].(pgtype.Numeric); !ok || !v.Valid {
		t.Errorf("gpa arg = %#v", byField[ingest.FieldGPA])
	}
	if v, ok := byField[ingest.FieldGraduationYear].(pgtype.Int4); !ok || v.Int32 != 2027 {
		t.Errorf("graduation year arg = %#v", byField[ingest.FieldGraduationYear])
	}
	if v, ok := byField[ingest.FieldFirstGeneration].(pgtype.Bool); !ok || !v.Bool {
		t.Errorf("first generation arg = %#v", byField[ingest.FieldFirstGeneration])
	}
	if v, ok := byField[ingest.FieldMajor].(pgtype.Text); !ok || v.Valid {
		t.Errorf("unset major arg = %#v, want NULL text", byField[ingest.FieldMajor])
	}
}

func TestDroppedAttributes(t *testing.T) {
	rec := ingest.StudentRecord{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@x.edu",
		Attributes: map[ingest.Field]string{
			ingest.FieldGPA:             "three point nine",
			ingest.FieldGraduationYear:  "2027",
			ingest.FieldFirstGeneration: "maybe",
			ingest.FieldCampus:          "UC Irvine",
		},
	}
	got := droppedAttributes(rec)
	want := map[ingest.Field]bool{ingest.FieldGPA: true, ingest.FieldFirstGeneration: true}
	if len(got) != len(want) {
		t.Fatalf("droppedAttributes = %v, want gpa and firstGeneration", got)
	}
	for _, f := range got {
		if !want[f] {
			t.Errorf("unexpected dropped field %q", f)
		}
	}
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements(schemaSQL)
	if len(stmts) != 4 {
		t.Fatalf("schema statements = %d, want 4", len(stmts))
	}
	for _, s := range stmts {
		if !strings.HasPrefix(s, "CREATE") {
			t.Errorf("unexpected statement: %.40s", s)
		}
	}
}
