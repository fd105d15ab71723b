package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/logging"
)

// multipartOverhead is allowed on top of the file size limit for form
// boundaries and the mapping field.
const multipartOverhead = 1 << 20

var (
	errNoFile         = errors.New("no file provided")
	errInvalidMapping = errors.New("invalid mapping format")
	errInvalidBody    = errors.New("invalid request body")
)

// readUpload reads the "file" form field into memory. Oversize bodies map to
// ingest.ErrFileTooLarge.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (ingest.File, error) {
	maxSize := s.service.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return ingest.File{}, fmt.Errorf("%w: request body over %d bytes", ingest.ErrFileTooLarge, tooBig.Limit)
		}
		return ingest.File{}, errNoFile
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return ingest.File{}, errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return ingest.File{}, fmt.Errorf("read upload: %w", err)
	}

	return ingest.File{
		Meta: ingest.FileMeta{
			Name: header.Filename,
			Size: int64(len(data)),
			Type: header.Header.Get("Content-Type"),
		},
		Data: data,
	}, nil
}

// parseMapping decodes a {"column": "field"} JSON object. Unknown fields
// become skip and the one-column-per-field rule is enforced.
func parseMapping(raw string) (ingest.ColumnMapping, error) {
	var m map[string]ingest.Field
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, errInvalidMapping
	}
	return ingest.ColumnMapping(m).Normalized(), nil
}

// operator returns the acting user for upload logs.
func operator(r *http.Request) string {
	if op := logging.Operator(r.Context()); op != "" {
		return op
	}
	return "anonymous"
}

// parseIntParam parses a positive integer query parameter with a default.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// mappingView is the mapping plus its completeness, as returned to the UI.
type mappingView struct {
	Mapping         ingest.ColumnMapping `json:"mapping"`
	MissingRequired []ingest.Field       `json:"missingRequired"`
	Complete        bool                 `json:"complete"`
}

func newMappingView(m ingest.ColumnMapping) mappingView {
	missing := m.MissingRequired()
	if missing == nil {
		missing = []ingest.Field{}
	}
	return mappingView{Mapping: m, MissingRequired: missing, Complete: len(missing) == 0}
}
