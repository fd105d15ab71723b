package ingest

import (
	"context"
	"fmt"
)

// Resolution partitions valid records into those to persist and those that
// already exist.
type Resolution struct {
	Unique     []StudentRecord
	Duplicates []StudentRecord
}

// Resolve checks records against the store with one batched lookup and
// against earlier rows in the same batch. When an email repeats within the
// file only its first occurrence can be unique.
func Resolve(ctx context.Context, store ApplicationStore, records []StudentRecord) (Resolution, error) {
	res := Resolution{
		Unique: make([]StudentRecord, 0, len(records)),
	}
	if len(records) == 0 {
		return res, nil
	}

	emails := make([]string, 0, len(records))
	asked := make(map[string]struct{}, len(records))
	for _, r := range records {
		k := r.Key()
		if _, ok := asked[k]; ok {
			continue
		}
		asked[k] = struct{}{}
		emails = append(emails, k)
	}

	existing, err := store.FindByEmail(ctx, emails)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: duplicate lookup: %v", ErrStoreUnavailable, err)
	}

	seen := make(map[string]struct{}, len(records)+len(existing))
	for _, app := range existing {
		seen[NormalizeEmail(app.Email)] = struct{}{}
	}

	for _, r := range records {
		k := r.Key()
		if _, dup := seen[k]; dup {
			res.Duplicates = append(res.Duplicates, r)
			continue
		}
		seen[k] = struct{}{}
		res.Unique = append(res.Unique, r)
	}
	return res, nil
}
