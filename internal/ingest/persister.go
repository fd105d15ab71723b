package ingest

// persister.go writes unique records to the store one at a time.
//
// A failed create is recorded as a "general" ValidationError and the loop
// moves on; one bad row never aborts the batch. Records already written stay
// written if the batch is later interrupted. Writes are strictly sequential
// so progress is monotonic and store order matches file order.

import (
	"context"
	"fmt"
	"time"
)

// DefaultRetryDelay is the base delay between create attempts when retries
// are enabled. Attempt n waits n*RetryDelay.
const DefaultRetryDelay = 250 * time.Millisecond

// PersistResult is the outcome of Persist.
type PersistResult struct {
	Successful int
	Failed     int
	Errors     []ValidationError
	Created    []Application
}

// Persister writes records through an ApplicationStore.
type Persister struct {
	Store ApplicationStore

	// MaxRetries is the number of extra attempts per record after a failed
	// create. Zero means each record is attempted exactly once.
	MaxRetries int
	RetryDelay time.Duration
}

// Persist creates each record in order. If ctx is cancelled the loop stops
// before the next record and the remaining records are counted as failed.
func (p *Persister) Persist(ctx context.Context, records []StudentRecord, progress ProgressCallback) PersistResult {
	total := len(records)
	res := PersistResult{}

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			for j, rest := range records[i:] {
				res.Failed++
				res.Errors = append(res.Errors, persistError(i+j, rest, err))
			}
			break
		}

		app, err := p.create(ctx, rec)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, persistError(i, rec, err))
		} else {
			res.Successful++
			res.Created = append(res.Created, app)
		}

		progress.notify(UploadProgress{
			Phase:     PhaseInserting,
			Label:     fmt.Sprintf("Creating applications (%d/%d)", i+1, total),
			Completed: i + 1,
			Total:     total,
		})
	}

	return res
}

// create attempts one record, retrying with linear backoff when configured.
func (p *Persister) create(ctx context.Context, rec StudentRecord) (Application, error) {
	delay := p.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Application{}, lastErr
			case <-time.After(time.Duration(attempt) * delay):
			}
		}
		app, err := p.Store.Create(ctx, rec)
		if err == nil {
			return app, nil
		}
		lastErr = err
	}
	return Application{}, lastErr
}

// persistError reports a failed create at position i of the unique list.
func persistError(i int, rec StudentRecord, err error) ValidationError {
	return ValidationError{
		Row:     i + 1,
		FileRow: rec.Row,
		Field:   GeneralField,
		Value:   rec.Email,
		Message: fmt.Sprintf("Failed to create application: %v", err),
	}
}
