package ingest

// Field is a canonical StudentRecord attribute name.
type Field string

// Skip marks a file column that should not be imported.
const Skip Field = "skip"

// Required canonical fields.
const (
	FieldFirstName Field = "firstName"
	FieldLastName  Field = "lastName"
	FieldEmail     Field = "email"
)

// Optional canonical fields.
const (
	FieldPhone             Field = "phone"
	FieldStudentID         Field = "studentId"
	FieldCampus            Field = "campus"
	FieldMajor             Field = "major"
	FieldGPA               Field = "gpa"
	FieldGraduationYear    Field = "graduationYear"
	FieldYearInSchool      Field = "yearInSchool"
	FieldEmploymentStatus  Field = "employmentStatus"
	FieldEmployer          Field = "employer"
	FieldJobTitle          Field = "jobTitle"
	FieldGender            Field = "gender"
	FieldEthnicity         Field = "ethnicity"
	FieldPronouns          Field = "pronouns"
	FieldFirstGeneration   Field = "firstGeneration"
	FieldCity              Field = "city"
	FieldState             Field = "state"
	FieldZipCode           Field = "zipCode"
	FieldLinkedInURL       Field = "linkedinUrl"
	FieldResumePath        Field = "resumePath"
	FieldTranscriptPath    Field = "transcriptPath"
	FieldPersonalStatement Field = "personalStatement"
	FieldCareerGoals       Field = "careerGoals"
)

// FieldType represents how a canonical field is stored.
type FieldType int

const (
	FieldText FieldType = iota
	FieldNumeric
	FieldInteger
	FieldBool
)

// FieldSpec describes a canonical field and its storage column.
type FieldSpec struct {
	Name     Field
	Label    string
	DBColumn string
	Type     FieldType
	Required bool
}

// FieldSpecs lists every canonical field in display order.
var FieldSpecs = []FieldSpec{
	{Name: FieldFirstName, Label: "First name", DBColumn: "first_name", Required: true},
	{Name: FieldLastName, Label: "Last name", DBColumn: "last_name", Required: true},
	{Name: FieldEmail, Label: "Email", DBColumn: "email", Required: true},
	{Name: FieldPhone, Label: "Phone", DBColumn: "phone"},
	{Name: FieldStudentID, Label: "Student ID", DBColumn: "student_id"},
	{Name: FieldCampus, Label: "Campus", DBColumn: "campus"},
	{Name: FieldMajor, Label: "Major", DBColumn: "major"},
	{Name: FieldGPA, Label: "GPA", DBColumn: "gpa", Type: FieldNumeric},
	{Name: FieldGraduationYear, Label: "Graduation year", DBColumn: "graduation_year", Type: FieldInteger},
	{Name: FieldYearInSchool, Label: "Year in school", DBColumn: "year_in_school"},
	{Name: FieldEmploymentStatus, Label: "Employment status", DBColumn: "employment_status"},
	{Name: FieldEmployer, Label: "Employer", DBColumn: "employer"},
	{Name: FieldJobTitle, Label: "Job title", DBColumn: "job_title"},
	{Name: FieldGender, Label: "Gender", DBColumn: "gender"},
	{Name: FieldEthnicity, Label: "Ethnicity", DBColumn: "ethnicity"},
	{Name: FieldPronouns, Label: "Pronouns", DBColumn: "pronouns"},
	{Name: FieldFirstGeneration, Label: "First generation", DBColumn: "first_generation", Type: FieldBool},
	{Name: FieldCity, Label: "City", DBColumn: "city"},
	{Name: FieldState, Label: "State", DBColumn: "state"},
	{Name: FieldZipCode, Label: "ZIP code", DBColumn: "zip_code"},
	{Name: FieldLinkedInURL, Label: "LinkedIn URL", DBColumn: "linkedin_url"},
	{Name: FieldResumePath, Label: "Resume file", DBColumn: "resume_path"},
	{Name: FieldTranscriptPath, Label: "Transcript file", DBColumn: "transcript_path"},
	{Name: FieldPersonalStatement, Label: "Personal statement", DBColumn: "personal_statement"},
	{Name: FieldCareerGoals, Label: "Career goals", DBColumn: "career_goals"},
}

// RequiredFields are the fields a mapping must cover to be complete,
// in the order the validator checks them.
var RequiredFields = []Field{FieldFirstName, FieldLastName, FieldEmail}

var specByName = func() map[Field]FieldSpec {
	m := make(map[Field]FieldSpec, len(FieldSpecs))
	for _, spec := range FieldSpecs {
		m[spec.Name] = spec
	}
	return m
}()

// LookupField returns the spec for a canonical field name.
func LookupField(name Field) (FieldSpec, bool) {
	spec, ok := specByName[name]
	return spec, ok
}

// OptionalFieldSpecs returns the specs of every non-required field.
func OptionalFieldSpecs() []FieldSpec {
	out := make([]FieldSpec, 0, len(FieldSpecs)-len(RequiredFields))
	for _, spec := range FieldSpecs {
		if !spec.Required {
			out = append(out, spec)
		}
	}
	return out
}

// Valid reports whether f is a canonical field or Skip.
func (f Field) Valid() bool {
	if f == Skip {
		return true
	}
	_, ok := specByName[f]
	return ok
}
