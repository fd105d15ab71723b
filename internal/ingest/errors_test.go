package ingest

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"unique violation", errors.New(`ERROR: duplicate key value violates unique constraint "applications_email_key"`), "DB001"},
		{"sqlite unique", errors.New("constraint failed: UNIQUE constraint failed: applications.email"), "DB001"},
		{"store unavailable", fmt.Errorf("%w: duplicate lookup: eof", ErrStoreUnavailable), "DB004"},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connection refused"), "DB004"},
		{"deadline", errors.New("context deadline exceeded"), "UPL005"},
		{"incomplete mapping", fmt.Errorf("%w: [email]", ErrIncompleteMapping), "VAL004"},
		{"too large", fmt.Errorf("%w: 11 bytes", ErrFileTooLarge), "FILE001"},
		{"unsupported", &UnsupportedFormatError{Extension: ".pdf"}, "FILE006"},
		{"bad csv", &ParseError{Format: "csv", Err: errors.New("bare quote")}, "FILE002"},
		{"bad workbook", &ParseError{Format: "xlsx", Err: errors.New("zip: not a valid zip file")}, "FILE002"},
		{"encoding", &ParseError{Format: "csv", Err: errors.New("encoding error: utf-16: short")}, "FILE003"},
		{"empty", &ParseError{Format: "csv", Err: ErrNoDataRows}, "FILE005"},
		{"bare empty", ErrEmptyFile, "FILE005"},
		{"busy", ErrTooManyUploads, "UPL002"},
		{"cancelled", errors.New("context canceled"), "UPL004"},
		{"rate limit", errors.New("rate limit exceeded"), "RATE001"},
		{"unknown", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err).Code; got != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q", got)
	}
	got := FormatUserError(ErrFileTooLarge)
	if !strings.Contains(got, "(Code: FILE001)") || !strings.HasPrefix(got, "File exceeds") {
		t.Errorf("FormatUserError = %q", got)
	}
}

func TestIsInputError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&UnsupportedFormatError{Extension: ".doc"}, true},
		{fmt.Errorf("check: %w", ErrFileTooLarge), true},
		{fmt.Errorf("%w: [email]", ErrIncompleteMapping), true},
		{&ParseError{Format: "csv", Err: ErrEmptyFile}, false},
		{ErrStoreUnavailable, false},
	}
	for _, tt := range tests {
		if got := IsInputError(tt.err); got != tt.want {
			t.Errorf("IsInputError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{Row: 4, Field: "email", Message: "Invalid email format"}
	if got := e.Error(); got != "row 4: email: Invalid email format" {
		t.Errorf("Error() = %q", got)
	}
	g := ValidationError{Row: 2, Field: GeneralField, Message: "Failed to create application: x"}
	if got := g.Error(); got != "row 2: Failed to create application: x" {
		t.Errorf("Error() = %q", got)
	}
}
