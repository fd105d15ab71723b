package ingest

// mapping.go suggests and edits the file-column → canonical-field mapping.
//
// Headers are normalized (diacritics stripped, lower-cased, separators folded
// to underscores) and looked up in a synonym table. Lookup is done on the
// compact form of the key, so "First Name", "first_name" and "firstname" all
// resolve the same way.

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ColumnMapping maps a file column header to a canonical field or Skip.
// At most one column maps to any canonical field.
type ColumnMapping map[string]Field

// NewColumnMapping returns a mapping with every column set to Skip.
func NewColumnMapping(columns []string) ColumnMapping {
	m := make(ColumnMapping, len(columns))
	for _, c := range columns {
		m[c] = Skip
	}
	return m
}

// Clone returns an independent copy of the mapping.
func (m ColumnMapping) Clone() ColumnMapping {
	out := make(ColumnMapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Assign maps column to field, releasing any other column that targeted the
// same field. Unknown fields are treated as Skip.
func (m ColumnMapping) Assign(column string, field Field) {
	if !field.Valid() {
		field = Skip
	}
	if field != Skip {
		for col, f := range m {
			if f == field && col != column {
				m[col] = Skip
			}
		}
	}
	m[column] = field
}

// ColumnFor returns the column mapped to field, if any.
func (m ColumnMapping) ColumnFor(field Field) (string, bool) {
	for col, f := range m {
		if f == field {
			return col, true
		}
	}
	return "", false
}

// MissingRequired returns the required fields no column maps to, in
// validation order.
func (m ColumnMapping) MissingRequired() []Field {
	targets := make(map[Field]bool, len(m))
	for _, f := range m {
		targets[f] = true
	}
	var missing []Field
	for _, f := range RequiredFields {
		if !targets[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

// Complete reports whether every required field is mapped.
func (m ColumnMapping) Complete() bool {
	return len(m.MissingRequired()) == 0
}

// Normalized returns a copy that satisfies the one-column-per-field
// invariant. As in Suggest, when two columns claim the same field the one
// that sorts first keeps it and the others become Skip.
func (m ColumnMapping) Normalized() ColumnMapping {
	cols := make([]string, 0, len(m))
	for c := range m {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	out := make(ColumnMapping, len(m))
	claimed := make(map[Field]bool)
	for _, c := range cols {
		f := m[c]
		if !f.Valid() || claimed[f] {
			f = Skip
		}
		if f != Skip {
			claimed[f] = true
		}
		out[c] = f
	}
	return out
}

// Mapper suggests column mappings from a synonym table.
type Mapper struct {
	synonyms map[string]Field // compact normalized header -> field
}

// NewMapper returns a Mapper using the built-in synonym table extended by
// extra. Entries in extra override built-in ones.
func NewMapper(extra map[string]Field) *Mapper {
	m := &Mapper{synonyms: make(map[string]Field, len(defaultSynonyms)+len(extra))}
	for k, f := range defaultSynonyms {
		m.synonyms[compactKey(k)] = f
	}
	for _, spec := range FieldSpecs {
		m.synonyms[compactKey(string(spec.Name))] = spec.Name
		m.synonyms[compactKey(spec.Label)] = spec.Name
	}
	for k, f := range extra {
		if f.Valid() {
			m.synonyms[compactKey(k)] = f
		}
	}
	return m
}

// Suggest proposes a mapping for the given headers. Unrecognized headers map
// to Skip. The result does not depend on column order: when several headers
// resolve to the same field, the one that sorts first keeps it.
func (m *Mapper) Suggest(columns []string) ColumnMapping {
	sorted := append([]string(nil), columns...)
	sort.Strings(sorted)

	mapping := NewColumnMapping(columns)
	claimed := make(map[Field]bool)
	for _, col := range sorted {
		field, ok := m.Lookup(col)
		if !ok || claimed[field] {
			continue
		}
		claimed[field] = true
		mapping[col] = field
	}
	return mapping
}

// Lookup resolves a single header against the synonym table.
func (m *Mapper) Lookup(header string) (Field, bool) {
	f, ok := m.synonyms[compactKey(header)]
	return f, ok
}

// NormalizeHeader lower-cases a header, strips diacritics and folds
// whitespace and punctuation to single underscores.
func NormalizeHeader(h string) string {
	decomposed := norm.NFKD.String(strings.TrimSpace(h))

	var b strings.Builder
	b.Grow(len(decomposed))
	lastUnderscore := true // suppress leading underscores
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func compactKey(h string) string {
	return strings.ReplaceAll(NormalizeHeader(h), "_", "")
}

// defaultSynonyms maps normalized header spellings to canonical fields.
var defaultSynonyms = map[string]Field{
	// Names
	"first_name":     FieldFirstName,
	"fname":          FieldFirstName,
	"first":          FieldFirstName,
	"given_name":     FieldFirstName,
	"forename":       FieldFirstName,
	"preferred_name": FieldFirstName,
	"last_name":      FieldLastName,
	"lname":          FieldLastName,
	"last":           FieldLastName,
	"surname":        FieldLastName,
	"family_name":    FieldLastName,

	// Contact
	"email":            FieldEmail,
	"e_mail":           FieldEmail,
	"email_address":    FieldEmail,
	"student_email":    FieldEmail,
	"school_email":     FieldEmail,
	"mail":             FieldEmail,
	"phone":            FieldPhone,
	"phone_number":     FieldPhone,
	"mobile":           FieldPhone,
	"cell":             FieldPhone,
	"cell_phone":       FieldPhone,
	"telephone":        FieldPhone,
	"linkedin":         FieldLinkedInURL,
	"linkedin_url":     FieldLinkedInURL,
	"linkedin_profile": FieldLinkedInURL,

	// Academic
	"student_id":          FieldStudentID,
	"student_number":      FieldStudentID,
	"sid":                 FieldStudentID,
	"campus":              FieldCampus,
	"school":              FieldCampus,
	"university":          FieldCampus,
	"uc_campus":           FieldCampus,
	"major":               FieldMajor,
	"field_of_study":      FieldMajor,
	"program":             FieldMajor,
	"gpa":                 FieldGPA,
	"grade_point":         FieldGPA,
	"cumulative_gpa":      FieldGPA,
	"graduation_year":     FieldGraduationYear,
	"grad_year":           FieldGraduationYear,
	"class_of":            FieldGraduationYear,
	"expected_graduation": FieldGraduationYear,
	"year":                FieldYearInSchool,
	"year_in_school":      FieldYearInSchool,
	"class_standing":      FieldYearInSchool,
	"academic_year":       FieldYearInSchool,

	// Employment
	"employment_status": FieldEmploymentStatus,
	"employed":          FieldEmploymentStatus,
	"employment":        FieldEmploymentStatus,
	"employer":          FieldEmployer,
	"company":           FieldEmployer,
	"current_employer":  FieldEmployer,
	"job_title":         FieldJobTitle,
	"title":             FieldJobTitle,
	"position":          FieldJobTitle,
	"role":              FieldJobTitle,

	// Demographic
	"gender":           FieldGender,
	"sex":              FieldGender,
	"gender_identity":  FieldGender,
	"ethnicity":        FieldEthnicity,
	"race":             FieldEthnicity,
	"race_ethnicity":   FieldEthnicity,
	"pronouns":         FieldPronouns,
	"first_generation": FieldFirstGeneration,
	"first_gen":        FieldFirstGeneration,
	"firstgen":         FieldFirstGeneration,
	"city":             FieldCity,
	"state":            FieldState,
	"zip":              FieldZipCode,
	"zip_code":         FieldZipCode,
	"zipcode":          FieldZipCode,
	"postal_code":      FieldZipCode,

	// Files and essays
	"resume":             FieldResumePath,
	"resume_path":        FieldResumePath,
	"resume_url":         FieldResumePath,
	"cv":                 FieldResumePath,
	"transcript":         FieldTranscriptPath,
	"transcript_path":    FieldTranscriptPath,
	"transcript_url":     FieldTranscriptPath,
	"personal_statement": FieldPersonalStatement,
	"statement":          FieldPersonalStatement,
	"essay":              FieldPersonalStatement,
	"why_interested":     FieldPersonalStatement,
	"career_goals":       FieldCareerGoals,
	"goals":              FieldCareerGoals,
	"career_interests":   FieldCareerGoals,
}
