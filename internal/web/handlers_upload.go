package web

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/logging"
)

// maxResultWait caps the ?wait= long-poll on the result endpoint.
const maxResultWait = 60 * time.Second

// sseHeartbeat keeps idle progress streams alive through proxies.
var sseHeartbeat = 15 * time.Second

// uploadResponse is the JSON shape of an UploadResult.
type uploadResponse struct {
	Success           bool                     `json:"success"`
	TotalRecords      int                      `json:"totalRecords"`
	SuccessfulRecords int                      `json:"successfulRecords"`
	FailedRecords     int                      `json:"failedRecords"`
	InvalidRecords    int                      `json:"invalidRecords"`
	DuplicateRecords  int                      `json:"duplicateRecords"`
	Errors            []ingest.ValidationError `json:"errors"`
	Duplicates        []ingest.StudentRecord   `json:"duplicates"`
	UploadID          string                   `json:"uploadId,omitempty"`
	Error             string                   `json:"error,omitempty"`
	Code              string                   `json:"code,omitempty"`
	DurationMs        int64                    `json:"durationMs"`
}

func toResponse(result *ingest.UploadResult, err error) uploadResponse {
	resp := uploadResponse{
		Success:           result.Success,
		TotalRecords:      result.TotalRecords,
		SuccessfulRecords: result.SuccessfulRecords,
		FailedRecords:     result.FailedRecords,
		InvalidRecords:    result.InvalidRecords,
		DuplicateRecords:  len(result.Duplicates),
		Errors:            result.Errors,
		Duplicates:        result.Duplicates,
		UploadID:          result.UploadID,
		DurationMs:        result.Duration.Milliseconds(),
	}
	if err != nil {
		msg := ingest.MapError(err)
		resp.Error = msg.Message
		resp.Code = msg.Code
	}
	return resp
}

type startResponse struct {
	JobID       string `json:"jobId"`
	ProgressURL string `json:"progressUrl"`
	ResultURL   string `json:"resultUrl"`
}

// handleStartUpload accepts a file and a confirmed mapping. By default the
// upload runs in the background and the job id is returned; with wait=true
// the pipeline runs inside the request and the result is returned.
func (s *Server) handleStartUpload(w http.ResponseWriter, r *http.Request) {
	file, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, requestStatus(err))
		return
	}

	var mapping ingest.ColumnMapping
	if raw := r.FormValue("mapping"); raw != "" {
		if mapping, err = parseMapping(raw); err != nil {
			respondError(w, r, err, http.StatusBadRequest)
			return
		}
	} else {
		table, err := s.service.ParseFile(file)
		if err != nil {
			// A file that cannot be parsed still gets an upload log.
			result, err := s.service.RecordFailure(r.Context(), file, operator(r), err)
			if result == nil {
				respondError(w, r, err, statusFor(err))
				return
			}
			writeJSON(w, statusFor(err), toResponse(result, err))
			return
		}
		mapping = s.service.SuggestColumnMapping(table.Columns)
	}

	if r.FormValue("wait") == "true" {
		s.processInline(w, r, file, mapping)
		return
	}

	jobID, err := s.service.StartUpload(r.Context(), file, mapping, operator(r))
	if err != nil {
		if errors.Is(err, ingest.ErrTooManyUploads) {
			w.Header().Set("Retry-After", "30")
		}
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, http.StatusAccepted, startResponse{
		JobID:       jobID,
		ProgressURL: "/api/uploads/" + jobID + "/progress",
		ResultURL:   "/api/uploads/" + jobID + "/result",
	})
}

// processInline runs the pipeline synchronously under a limiter slot.
func (s *Server) processInline(w http.ResponseWriter, r *http.Request, file ingest.File, mapping ingest.ColumnMapping) {
	limiter := s.service.Limiter()
	if err := limiter.Acquire(r.Context()); err != nil {
		if errors.Is(err, ingest.ErrTooManyUploads) {
			w.Header().Set("Retry-After", "30")
		}
		respondError(w, r, err, statusFor(err))
		return
	}
	defer limiter.Release()

	result, err := s.service.ProcessUpload(r.Context(), file, mapping, operator(r), nil)
	if result == nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if err != nil {
		writeJSON(w, statusFor(err), toResponse(result, err))
		return
	}

	_ = s.service.SendConfirmationEmail(context.WithoutCancel(r.Context()), result, file.Meta.Name)
	writeJSON(w, http.StatusOK, toResponse(result, nil))
}

// handleUploadProgress streams job progress as Server-Sent Events. A final
// "complete" event carries the result.
func (s *Server) handleUploadProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "uploadID")

	progressCh, err := s.service.SubscribeProgress(jobID)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	flush := func() {
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			logging.FromContext(r.Context()).Debug("sse flush failed", "error", err)
		}
	}

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	seq := 0
	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				result, err := s.service.GetUploadResult(r.Context(), jobID)
				payload := map[string]any{}
				if result != nil {
					payload["result"] = toResponse(result, err)
				} else if err != nil {
					payload["error"] = ingest.FormatUserError(err)
				}
				data, _ := json.Marshal(payload)
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				flush()
				return
			}
			seq++
			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", seq, data)
			flush()

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleUploadResult returns a job's result. While the job runs it answers
// 202 with the current progress, unless ?wait= asks to block for a while.
func (s *Server) handleUploadResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "uploadID")

	progress, err := s.service.GetUploadProgress(jobID)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	ctx := r.Context()
	finished := progress.Phase == ingest.PhaseComplete || progress.Phase == ingest.PhaseFailed
	if !finished {
		wait, _ := time.ParseDuration(r.URL.Query().Get("wait"))
		if wait <= 0 {
			writeJSON(w, http.StatusAccepted, progress)
			return
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, min(wait, maxResultWait))
		defer cancel()
	}

	result, err := s.service.GetUploadResult(ctx, jobID)
	switch {
	case errors.Is(err, context.DeadlineExceeded) && r.Context().Err() == nil:
		progress, _ = s.service.GetUploadProgress(jobID)
		writeJSON(w, http.StatusAccepted, progress)
	case result != nil:
		status := http.StatusOK
		if err != nil {
			status = statusFor(err)
		}
		writeJSON(w, status, toResponse(result, err))
	default:
		respondError(w, r, err, statusFor(err))
	}
}

// handleExportErrors downloads the error table of a job, or of an upload log
// once the job has expired, as CSV. A job still running answers 409 with its
// progress.
func (s *Server) handleExportErrors(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uploadID")

	var (
		rowErrors  []ingest.ValidationError
		duplicates []ingest.StudentRecord
	)
	if progress, err := s.service.GetUploadProgress(id); err == nil {
		if progress.Phase != ingest.PhaseComplete && progress.Phase != ingest.PhaseFailed {
			writeJSON(w, http.StatusConflict, progress)
			return
		}
		result, err := s.service.GetUploadResult(r.Context(), id)
		if result == nil {
			respondError(w, r, err, statusFor(err))
			return
		}
		rowErrors, duplicates = result.Errors, result.Duplicates
	} else {
		log, err := s.service.GetUploadLog(r.Context(), id)
		if err != nil {
			respondError(w, r, err, statusFor(err))
			return
		}
		rowErrors = log.Errors
	}

	filename := fmt.Sprintf("upload_errors_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"row", "field", "value", "message"})
	for _, e := range rowErrors {
		_ = cw.Write([]string{strconv.Itoa(e.Row), e.Field, e.Value, e.Message})
	}
	for _, d := range duplicates {
		_ = cw.Write([]string{strconv.Itoa(d.Row), string(ingest.FieldEmail), d.Email, "Duplicate application"})
	}
	cw.Flush()
}

// handleCancelUpload asks a running job to stop before its next record.
func (s *Server) handleCancelUpload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "uploadID")
	if err := s.service.CancelUpload(jobID); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	logging.FromContext(r.Context()).Info("upload cancel requested", "job_id", jobID)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}
