package ingest

import (
	"reflect"
	"testing"
)

func TestValidate(t *testing.T) {
	mapping := ColumnMapping{
		"first_name": FieldFirstName,
		"last_name":  FieldLastName,
		"email":      FieldEmail,
		"gpa":        FieldGPA,
		"notes":      Skip,
	}

	tests := []struct {
		name       string
		records    []RawRecord
		wantValid  []StudentRecord
		wantErrors []ValidationError
	}{
		{
			name: "valid record with optional field",
			records: []RawRecord{
				{"first_name": " Jane ", "last_name": "Doe", "email": "jane@x.edu", "gpa": "3.9", "notes": "ignored"},
			},
			wantValid: []StudentRecord{
				{Row: 2, FirstName: "Jane", LastName: "Doe", Email: "jane@x.edu", Attributes: map[Field]string{FieldGPA: "3.9"}},
			},
		},
		{
			name: "missing first name",
			records: []RawRecord{
				{"first_name": "", "last_name": "Lee", "email": "lee@x.edu"},
			},
			wantValid: []StudentRecord{},
			wantErrors: []ValidationError{
				{Row: 2, Field: "firstName", Value: "", Message: "firstName is required"},
			},
		},
		{
			name: "all required blank reports in field order",
			records: []RawRecord{
				{"first_name": "  ", "last_name": "", "email": ""},
			},
			wantValid: []StudentRecord{},
			wantErrors: []ValidationError{
				{Row: 2, Field: "firstName", Value: "  ", Message: "firstName is required"},
				{Row: 2, Field: "lastName", Value: "", Message: "lastName is required"},
				{Row: 2, Field: "email", Value: "", Message: "email is required"},
			},
		},
		{
			name: "errors carry the untrimmed cell",
			records: []RawRecord{
				{"first_name": "\t", "last_name": "Kim", "email": " not-an-email "},
			},
			wantValid: []StudentRecord{},
			wantErrors: []ValidationError{
				{Row: 2, Field: "firstName", Value: "\t", Message: "firstName is required"},
				{Row: 2, Field: "email", Value: " not-an-email ", Message: "Invalid email format"},
			},
		},
		{
			name: "invalid email",
			records: []RawRecord{
				{"first_name": "A", "last_name": "B", "email": "not-an-email"},
			},
			wantValid: []StudentRecord{},
			wantErrors: []ValidationError{
				{Row: 2, Field: "email", Value: "not-an-email", Message: "Invalid email format"},
			},
		},
		{
			name: "missing name and bad email both reported",
			records: []RawRecord{
				{"first_name": "A", "last_name": "", "email": "a@b"},
			},
			wantValid: []StudentRecord{},
			wantErrors: []ValidationError{
				{Row: 2, Field: "lastName", Value: "", Message: "lastName is required"},
				{Row: 2, Field: "email", Value: "a@b", Message: "Invalid email format"},
			},
		},
		{
			name: "row numbers account for header",
			records: []RawRecord{
				{"first_name": "A", "last_name": "B", "email": "a@b.edu"},
				{"first_name": "C", "last_name": "D", "email": "bad"},
				{"first_name": "E", "last_name": "F", "email": "e@f.edu"},
			},
			wantValid: []StudentRecord{
				{Row: 2, FirstName: "A", LastName: "B", Email: "a@b.edu"},
				{Row: 4, FirstName: "E", LastName: "F", Email: "e@f.edu"},
			},
			wantErrors: []ValidationError{
				{Row: 3, Field: "email", Value: "bad", Message: "Invalid email format"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.records, mapping)
			if !reflect.DeepEqual(got.Valid, tt.wantValid) {
				t.Errorf("Valid = %+v, want %+v", got.Valid, tt.wantValid)
			}
			if !reflect.DeepEqual(got.Errors, tt.wantErrors) {
				t.Errorf("Errors = %+v, want %+v", got.Errors, tt.wantErrors)
			}
		})
	}
}

func TestValidate_UnmappedRequiredDefaultsToEmpty(t *testing.T) {
	got := Validate([]RawRecord{{"email": "a@b.edu"}}, ColumnMapping{"email": FieldEmail})
	if len(got.Valid) != 0 {
		t.Fatalf("Valid = %v, want none", got.Valid)
	}
	if len(got.Errors) != 2 {
		t.Fatalf("Errors = %v, want firstName and lastName", got.Errors)
	}
}

func TestValidate_Partitioning(t *testing.T) {
	records := []RawRecord{
		{"first_name": "A", "last_name": "B", "email": "a@b.edu"},
		{"first_name": "", "last_name": "", "email": "x"},
		{"first_name": "C", "last_name": "D", "email": "c@d.edu"},
		{"first_name": "E", "last_name": "", "email": "e@f.edu"},
		{"first_name": "", "last_name": "G", "email": ""},
	}

	got := Validate(records, requiredMapping())
	if n := len(got.Valid) + got.InvalidRows(); n != len(records) {
		t.Errorf("valid + invalid rows = %d, want %d", n, len(records))
	}
	if got.InvalidRows() != 3 {
		t.Errorf("InvalidRows() = %d, want 3", got.InvalidRows())
	}
}

func TestEmailPattern(t *testing.T) {
	valid := []string{"a@b.co", "first.last+tag@sub.example.edu", "X@Y.ORG"}
	invalid := []string{"plain", "a@b", "@b.com", "a@.", "a b@c.com", "a@b.c om"}

	for _, e := range valid {
		if !emailRegex.MatchString(e) {
			t.Errorf("%q rejected", e)
		}
	}
	for _, e := range invalid {
		if emailRegex.MatchString(e) {
			t.Errorf("%q accepted", e)
		}
	}
}
