package qa

import "context"

// Store is the durable persistence contract for QA entries. A missing
// backing file or empty table reads as an empty list. WriteAll replaces
// the full set with stable, reviewable serialization.
type Store interface {
	ReadAll(ctx context.Context) ([]Entry, error)
	WriteAll(ctx context.Context, entries []Entry) error
}
