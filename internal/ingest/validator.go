package ingest

// validator.go applies a ColumnMapping to raw records and checks them.
//
// Rules run per record in a fixed order: presence of each required field,
// then email format. A record with any error is dropped whole; partial
// records are never persisted. Reported rows are index+2 (1-based, plus the
// header row) so they line up with the file as opened in a spreadsheet.

import (
	"fmt"
	"regexp"
	"strings"
)

// emailRegex accepts conventional local@domain.tld addresses.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Error messages produced by the validator.
const (
	MsgInvalidEmail = "Invalid email format"
)

// ValidationResult holds the output of Validate.
type ValidationResult struct {
	Valid  []StudentRecord
	Errors []ValidationError
}

// InvalidRows returns the number of distinct rows with at least one error.
func (r ValidationResult) InvalidRows() int {
	return distinctRows(r.Errors)
}

// Validate builds StudentRecords from raw records using mapping. It is pure
// and performs no I/O.
func Validate(records []RawRecord, mapping ColumnMapping) ValidationResult {
	columns := invert(mapping)
	result := ValidationResult{
		Valid: make([]StudentRecord, 0, len(records)),
	}

	for i, raw := range records {
		row := i + 2
		rec := buildRecord(raw, columns, row)

		// Errors report the cell as it appeared in the file, untrimmed.
		var errs []ValidationError
		for _, f := range RequiredFields {
			if rec.Get(f) == "" {
				errs = append(errs, ValidationError{
					Row:     row,
					Field:   string(f),
					Value:   rawValue(raw, columns, f),
					Message: fmt.Sprintf("%s is required", f),
				})
			}
		}
		if rec.Email != "" && !emailRegex.MatchString(rec.Email) {
			errs = append(errs, ValidationError{
				Row:     row,
				Field:   string(FieldEmail),
				Value:   rawValue(raw, columns, FieldEmail),
				Message: MsgInvalidEmail,
			})
		}

		if len(errs) > 0 {
			result.Errors = append(result.Errors, errs...)
			continue
		}
		result.Valid = append(result.Valid, rec)
	}

	return result
}

// invert turns column → field into field → column, ignoring skipped columns.
func invert(mapping ColumnMapping) map[Field]string {
	out := make(map[Field]string, len(mapping))
	for col, f := range mapping.Normalized() {
		if f != Skip {
			out[f] = col
		}
	}
	return out
}

// rawValue returns the untouched cell mapped to f, or "" when f is unmapped.
func rawValue(raw RawRecord, columns map[Field]string, f Field) string {
	col, ok := columns[f]
	if !ok {
		return ""
	}
	return raw[col]
}

func buildRecord(raw RawRecord, columns map[Field]string, row int) StudentRecord {
	rec := StudentRecord{Row: row}
	for f, col := range columns {
		value := raw[col]
		switch f {
		case FieldFirstName:
			rec.FirstName = strings.TrimSpace(value)
		case FieldLastName:
			rec.LastName = strings.TrimSpace(value)
		case FieldEmail:
			rec.Email = strings.TrimSpace(value)
		default:
			if strings.TrimSpace(value) == "" {
				continue
			}
			if rec.Attributes == nil {
				rec.Attributes = make(map[Field]string)
			}
			rec.Attributes[f] = strings.TrimSpace(value)
		}
	}
	return rec
}

func distinctRows(errs []ValidationError) int {
	rows := make(map[int]struct{}, len(errs))
	for _, e := range errs {
		rows[e.Row] = struct{}{}
	}
	return len(rows)
}
