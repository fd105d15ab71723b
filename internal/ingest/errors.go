package ingest

// errors.go defines the pipeline's error taxonomy and maps technical errors
// to user-facing messages with support codes.
//
// Input errors (FILE001, FILE004, FILE006, VAL004) are returned before any
// stage runs. Parse and store errors (FILE002, FILE003, FILE005, DB00x) abort
// the upload but are still written to the upload log. Row-level problems never surface here: they are
// collected into UploadResult.Errors and UploadResult.Duplicates.

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFileTooLarge is returned by CheckUpload when a file exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrEmptyFile is returned when a file has no header row.
	ErrEmptyFile = errors.New("empty file")

	// ErrNoDataRows is returned when a file has a header but no data rows.
	ErrNoDataRows = errors.New("empty file: no data rows after header")

	// ErrIncompleteMapping is returned when required fields are not mapped.
	ErrIncompleteMapping = errors.New("missing required column mapping")

	// ErrStoreUnavailable wraps failures that prevent the pipeline from
	// reaching the application store at all.
	ErrStoreUnavailable = errors.New("application store unavailable")

	// ErrUploadNotFound is returned for unknown upload job or log ids.
	ErrUploadNotFound = errors.New("upload not found")
)

// UnsupportedFormatError is returned for file extensions the parser cannot read.
type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Extension == "" {
		return "unsupported file format: missing extension"
	}
	return fmt.Sprintf("unsupported file format %q", e.Extension)
}

// ParseError wraps a decode failure for a file in a supported format.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s file: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err should be surfaced to the caller without
// writing an upload log.
func IsInputError(err error) bool {
	var unsupported *UnsupportedFormatError
	return errors.As(err, &unsupported) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrIncompleteMapping)
}

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are matched case-insensitively with strings.Contains.
// The first match wins, so specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "An application with this email already exists",
			Action:  "Remove the row or update the existing application",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "An application with this email already exists",
			Action:  "Remove the row or update the existing application",
			Code:    "DB001",
		},
	},
	{
		pattern: "store unavailable",
		msg: UserMessage{
			Message: "Unable to reach the application database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try uploading a smaller file or check your connection",
			Code:    "UPL005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try uploading a smaller file or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "missing required column mapping",
		msg: UserMessage{
			Message: "First name, last name and email must each be mapped to a column",
			Action:  "Adjust the column mapping and try again",
			Code:    "VAL004",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit (10MB)",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "File type is not supported",
			Action:  "Upload a .csv, .xlsx or .xls file",
			Code:    "FILE006",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save file as UTF-8 encoding",
			Code:    "FILE003",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with a header row and data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure the file is comma-separated with a header row",
			Code:    "FILE002",
		},
	},
	{
		pattern: "invalid xlsx",
		msg: UserMessage{
			Message: "File is not a valid Excel workbook",
			Action:  "Re-save the workbook in Excel and try again",
			Code:    "FILE002",
		},
	},
	{
		pattern: "invalid xls",
		msg: UserMessage{
			Message: "File is not a valid Excel workbook",
			Action:  "Re-save the workbook as .xlsx and try again",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "too many concurrent uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "upload not found",
		msg: UserMessage{
			Message: "Upload session not found",
			Action:  "The upload may have expired. Please start a new upload",
			Code:    "UPL003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, a generic fallback with code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
