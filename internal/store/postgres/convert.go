package postgres

// convert.go turns StudentRecord attribute strings into pgx values.
//
// Spreadsheet data is messy: GPAs arrive as "3.8" or "3,8", graduation years
// as "2027.0", booleans as yes/no or Y/N. Every ToPg* function returns a
// value with Valid=false for empty or unparseable input so the column is
// stored as NULL rather than failing the insert.

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
)

// numericRegex matches integers and decimals after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// ToPgText converts a string to pgtype.Text.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgNumeric converts a string to pgtype.Numeric. A single comma is read
// as a decimal separator ("3,8").
func ToPgNumeric(s string) pgtype.Numeric {
	s = cleanNumber(s)
	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{Valid: false}
	}
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// ToPgInt4 converts a string to pgtype.Int4. Whole-valued decimals such as
// "2027.0" are accepted.
func ToPgInt4(s string) pgtype.Int4 {
	s = cleanNumber(s)
	if s == "" {
		return pgtype.Int4{Valid: false}
	}
	if i, err := strconv.ParseInt(s, 10, 32); err == nil {
		return pgtype.Int4{Int32: int32(i), Valid: true}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int32(f)) {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(f), Valid: true}
}

// ToPgBool converts a string to pgtype.Bool.
// Accepts true/false, yes/no, t/f, y/n and 1/0.
func ToPgBool(s string) pgtype.Bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "t", "yes", "y", "1":
		return pgtype.Bool{Bool: true, Valid: true}
	case "false", "f", "no", "n", "0":
		return pgtype.Bool{Bool: false, Valid: true}
	default:
		return pgtype.Bool{Valid: false}
	}
}

// ToPgUUID converts a string to pgtype.UUID.
func ToPgUUID(s string) pgtype.UUID {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// PgUUIDToString converts a pgtype.UUID to its string form, or "".
func PgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

// attributeValue converts an optional attribute according to its field type.
func attributeValue(spec ingest.FieldSpec, raw string) any {
	switch spec.Type {
	case ingest.FieldNumeric:
		return ToPgNumeric(raw)
	case ingest.FieldInteger:
		return ToPgInt4(raw)
	case ingest.FieldBool:
		return ToPgBool(raw)
	default:
		return ToPgText(raw)
	}
}

// droppedAttributes returns the attributes of rec that hold text but convert
// to NULL for their column type.
func droppedAttributes(rec ingest.StudentRecord) []ingest.Field {
	var dropped []ingest.Field
	for _, spec := range ingest.FieldSpecs {
		if spec.Required || spec.Type == ingest.FieldText {
			continue
		}
		raw := strings.TrimSpace(rec.Get(spec.Name))
		if raw == "" {
			continue
		}
		valid := true
		switch v := attributeValue(spec, raw).(type) {
		case pgtype.Numeric:
			valid = v.Valid
		case pgtype.Int4:
			valid = v.Valid
		case pgtype.Bool:
			valid = v.Valid
		}
		if !valid {
			dropped = append(dropped, spec.Name)
		}
	}
	return dropped
}

func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return strings.ReplaceAll(s, " ", "")
}
