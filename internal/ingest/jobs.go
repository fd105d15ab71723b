package ingest

// jobs.go runs uploads in the background and fans progress out to
// subscribers (the SSE endpoint). Finished jobs stay queryable for a while
// so a client can fetch the result after the stream closes.

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/logging"
)

// jobRetention is how long a finished job stays queryable.
var jobRetention = 15 * time.Minute

type uploadJob struct {
	ID       string
	FileName string
	cancel   context.CancelFunc
	done     chan struct{}

	mu        sync.Mutex
	progress  UploadProgress
	result    *UploadResult
	err       error
	listeners []chan UploadProgress
}

func (j *uploadJob) update(p UploadProgress) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.progress = p
	for _, ch := range j.listeners {
		select {
		case ch <- p:
		default:
			// Slow listener; it will see the next update.
		}
	}
}

func (j *uploadJob) finish(result *UploadResult, err error) {
	j.mu.Lock()
	j.result = result
	j.err = err
	for _, ch := range j.listeners {
		close(ch)
	}
	j.listeners = nil
	j.mu.Unlock()
	close(j.done)
}

// StartUpload validates the request, takes a limiter slot and runs the
// pipeline in the background. It returns the job id immediately. Input errors
// and ErrTooManyUploads are returned synchronously.
func (s *Service) StartUpload(ctx context.Context, file File, mapping ColumnMapping, operator string) (string, error) {
	if err := s.CheckUpload(file.Meta); err != nil {
		return "", err
	}
	if missing := mapping.MissingRequired(); len(missing) > 0 {
		return "", fmt.Errorf("%w: %v", ErrIncompleteMapping, missing)
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	jobID := uuid.NewString()
	// Detached from the request; carries its values for log correlation.
	runCtx, cancel := context.WithTimeout(logging.WithJob(context.WithoutCancel(ctx), jobID), s.opts.UploadTimeout)

	job := &uploadJob{
		ID:       jobID,
		FileName: file.Meta.Name,
		cancel:   cancel,
		done:     make(chan struct{}),
		progress: UploadProgress{Phase: PhaseStarting, Label: "Starting"},
	}

	s.mu.Lock()
	s.jobs[jobID] = job
	s.mu.Unlock()

	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer s.cleanup(jobID, jobRetention)
		defer func() {
			if r := recover(); r != nil {
				logging.WithFields(runCtx, "file", file.Meta.Name).Error("panic in upload", "panic", r)
				job.update(UploadProgress{Phase: PhaseFailed, Error: fmt.Sprintf("internal error: %v", r)})
				job.finish(nil, fmt.Errorf("internal error: %v", r))
			}
		}()

		result, err := s.ProcessUpload(runCtx, file, mapping, operator, job.update)
		if err == nil {
			_ = s.SendConfirmationEmail(runCtx, result, file.Meta.Name)
		}
		job.finish(result, err)
	}()

	logging.WithFields(ctx, "job_id", jobID, "file", file.Meta.Name, "operator", operator).
		Info("upload started", "size", file.Meta.Size)
	return jobID, nil
}

func (s *Service) job(id string) (*uploadJob, error) {
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUploadNotFound, id)
	}
	return job, nil
}

// SubscribeProgress returns a channel of progress updates for a job. The
// current state is delivered first. The channel closes when the job ends.
func (s *Service) SubscribeProgress(id string) (<-chan UploadProgress, error) {
	job, err := s.job(id)
	if err != nil {
		return nil, err
	}

	ch := make(chan UploadProgress, 16)
	job.mu.Lock()
	defer job.mu.Unlock()

	ch <- job.progress
	select {
	case <-job.done:
		close(ch)
	default:
		job.listeners = append(job.listeners, ch)
	}
	return ch, nil
}

// GetUploadProgress returns a job's latest progress without blocking.
func (s *Service) GetUploadProgress(id string) (UploadProgress, error) {
	job, err := s.job(id)
	if err != nil {
		return UploadProgress{}, err
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.progress, nil
}

// GetUploadResult waits for a job to finish and returns its outcome. The
// result may be non-nil together with an error for pipeline-wide failures.
func (s *Service) GetUploadResult(ctx context.Context, id string) (*UploadResult, error) {
	job, err := s.job(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-job.done:
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.result, job.err
}

// CancelUpload stops a running job before its next record. Records already
// created stay created.
func (s *Service) CancelUpload(id string) error {
	job, err := s.job(id)
	if err != nil {
		return err
	}
	job.cancel()
	return nil
}

func (s *Service) cleanup(id string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.jobs, id)
		s.mu.Unlock()
	})
}
