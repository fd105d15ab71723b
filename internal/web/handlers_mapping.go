package web

import (
	"encoding/json"
	"net/http"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/logging"
)

// previewRows is how many data rows the parse endpoint echoes back.
const previewRows = 5

type parseResponse struct {
	FileName string             `json:"fileName"`
	Columns  []string           `json:"columns"`
	RowCount int                `json:"rowCount"`
	Preview  []ingest.RawRecord `json:"preview"`
	Fields   []fieldInfo        `json:"fields"`
	mappingView
}

type fieldInfo struct {
	Name     ingest.Field `json:"name"`
	Label    string       `json:"label"`
	Required bool         `json:"required"`
}

var canonicalFields = func() []fieldInfo {
	out := make([]fieldInfo, 0, len(ingest.FieldSpecs))
	for _, spec := range ingest.FieldSpecs {
		out = append(out, fieldInfo{Name: spec.Name, Label: spec.Label, Required: spec.Required})
	}
	return out
}()

// handleParse decodes an uploaded file and returns its columns, a few rows
// and the suggested mapping for the operator to confirm.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	file, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, requestStatus(err))
		return
	}

	table, err := s.service.ParseFile(file)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	preview := table.Records
	if len(preview) > previewRows {
		preview = preview[:previewRows]
	}
	mapping := s.service.SuggestColumnMapping(table.Columns)

	logging.FromContext(r.Context()).Info("file parsed",
		"file", file.Meta.Name,
		"columns", len(table.Columns),
		"rows", len(table.Records),
		"mapping_complete", mapping.Complete(),
	)

	writeJSON(w, http.StatusOK, parseResponse{
		FileName:    file.Meta.Name,
		Columns:     table.Columns,
		RowCount:    len(table.Records),
		Preview:     preview,
		Fields:      canonicalFields,
		mappingView: newMappingView(mapping),
	})
}

type suggestRequest struct {
	Columns []string `json:"columns"`
}

// handleSuggestMapping suggests a mapping for a list of headers.
func (s *Server) handleSuggestMapping(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Columns) == 0 {
		respondError(w, r, errInvalidBody, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, newMappingView(s.service.SuggestColumnMapping(req.Columns)))
}

type assignRequest struct {
	Mapping ingest.ColumnMapping `json:"mapping"`
	Column  string               `json:"column"`
	Field   ingest.Field         `json:"field"`
}

// handleAssignMapping applies one operator edit to a mapping. Any other
// column holding the same field is released to skip.
func (s *Server) handleAssignMapping(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Column == "" {
		respondError(w, r, errInvalidBody, http.StatusBadRequest)
		return
	}
	if _, ok := req.Mapping[req.Column]; !ok {
		respondError(w, r, errInvalidMapping, http.StatusBadRequest)
		return
	}

	mapping := req.Mapping.Normalized()
	mapping.Assign(req.Column, req.Field)
	writeJSON(w, http.StatusOK, newMappingView(mapping))
}

// requestStatus is statusFor plus the request-shape errors raised here.
func requestStatus(err error) int {
	switch err {
	case errNoFile, errInvalidMapping, errInvalidBody:
		return http.StatusBadRequest
	}
	return statusFor(err)
}
