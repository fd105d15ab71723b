package ingest

import (
	"fmt"
	"strings"
	"time"
)

// RawRecord maps a file column header to its cell value. Blank cells are "".
type RawRecord map[string]string

// Table is a decoded tabular file: the header row in file order and one
// RawRecord per data row.
type Table struct {
	Columns []string
	Records []RawRecord
}

// FileMeta describes an uploaded file.
type FileMeta struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Extension returns the lower-cased file extension including the dot.
func (m FileMeta) Extension() string {
	i := strings.LastIndex(m.Name, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(m.Name[i:])
}

// File is an uploaded file held in memory. Uploads are capped well below
// anything that needs streaming.
type File struct {
	Meta FileMeta
	Data []byte
}

// StudentRecord is the canonical entity built from one valid RawRecord.
type StudentRecord struct {
	Row        int              `json:"row"`
	FirstName  string           `json:"firstName"`
	LastName   string           `json:"lastName"`
	Email      string           `json:"email"`
	Attributes map[Field]string `json:"attributes,omitempty"`
}

// Key returns the identity key used for duplicate detection.
func (r StudentRecord) Key() string {
	return NormalizeEmail(r.Email)
}

// Get returns the value of any canonical field.
func (r StudentRecord) Get(f Field) string {
	switch f {
	case FieldFirstName:
		return r.FirstName
	case FieldLastName:
		return r.LastName
	case FieldEmail:
		return r.Email
	}
	return r.Attributes[f]
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GeneralField is used for errors that are not tied to one field.
const GeneralField = "general"

// ValidationError describes a problem with one row of the file.
//
// Validator errors number Row from the file (index + 2, after the header).
// Persister errors number Row by position in the unique record list
// (index + 1) and carry the file row in FileRow.
type ValidationError struct {
	Row     int    `json:"row"`
	FileRow int    `json:"fileRow,omitempty"`
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field != "" && e.Field != GeneralField {
		return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// Application is a persisted application entity as seen by the pipeline.
type Application struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// UploadResult is the aggregate outcome of one upload.
//
// TotalRecords == SuccessfulRecords + FailedRecords + InvalidRecords + len(Duplicates).
// FailedRecords counts rows the store rejected; InvalidRecords counts rows
// dropped by validation.
type UploadResult struct {
	Success           bool              `json:"success"`
	TotalRecords      int               `json:"totalRecords"`
	SuccessfulRecords int               `json:"successfulRecords"`
	FailedRecords     int               `json:"failedRecords"`
	InvalidRecords    int               `json:"invalidRecords"`
	Errors            []ValidationError `json:"errors"`
	Duplicates        []StudentRecord   `json:"duplicates"`
	UploadID          string            `json:"uploadId,omitempty"`
	Error             string            `json:"error,omitempty"` // Non-empty if the upload aborted
	Duration          time.Duration     `json:"duration"`
}

// UploadLog is the immutable audit record written once per upload attempt.
type UploadLog struct {
	ID                string            `json:"id"`
	FileName          string            `json:"fileName"`
	FileSize          int64             `json:"fileSize"`
	FileType          string            `json:"fileType"`
	TotalRecords      int               `json:"totalRecords"`
	SuccessfulRecords int               `json:"successfulRecords"`
	FailedRecords     int               `json:"failedRecords"`
	DuplicateRecords  int               `json:"duplicateRecords"`
	Errors            []ValidationError `json:"errors"`
	Summary           map[string]any    `json:"summary"`
	CreatedBy         string            `json:"createdBy"`
	CreatedAt         time.Time         `json:"createdAt"`
}

// UploadPhase indicates the current stage of upload processing.
type UploadPhase string

const (
	PhaseStarting   UploadPhase = "starting"
	PhaseParsing    UploadPhase = "parsing"
	PhaseValidating UploadPhase = "validating"
	PhaseResolving  UploadPhase = "checking duplicates"
	PhaseInserting  UploadPhase = "creating applications"
	PhaseLogging    UploadPhase = "logging"
	PhaseComplete   UploadPhase = "complete"
	PhaseFailed     UploadPhase = "failed"
)

// UploadProgress represents the current state of an upload operation.
type UploadProgress struct {
	Phase     UploadPhase `json:"phase"`
	Label     string      `json:"label"`
	Completed int         `json:"completed"`
	Total     int         `json:"total"`
	Error     string      `json:"error,omitempty"`
}

// Percent returns the progress as a percentage (0-100).
func (p UploadProgress) Percent() float64 {
	if p.Total <= 0 {
		if p.Phase == PhaseComplete {
			return 100
		}
		return 0
	}
	return float64(p.Completed) / float64(p.Total) * 100
}

// ProgressCallback is called as an upload advances. It may be nil.
type ProgressCallback func(UploadProgress)

func (cb ProgressCallback) notify(p UploadProgress) {
	if cb != nil {
		cb(p)
	}
}
