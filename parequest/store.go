package parequest

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a request id does not exist.
var ErrNotFound = errors.New("authorization request not found")

// Store persists authorization requests. Id allocation ("PA-<n>") is
// serialized per implementation so that concurrent creations never allocate
// the same id. Mutations carry no optimistic-concurrency check: operations
// on the same id are expected to be invoked sequentially by the caller, and
// concurrent writers race with last-write-wins.
type Store interface {
	// Create persists a new draft, allocating the next "PA-<n>" id and
	// stamping CreatedAt/UpdatedAt.
	Create(ctx context.Context, request *Request) error
	Get(ctx context.Context, id string) (*Request, error)
	// List returns all requests, newest first.
	List(ctx context.Context) ([]Request, error)
	// ApplyAnalysis writes the processing outcome and moves the request to
	// ready, stamping ReadyAt. Re-application overwrites the previous
	// outcome rather than accumulating.
	ApplyAnalysis(ctx context.Context, id string, result AnalysisResult) (*Request, error)
	// Update applies a partial update: only non-nil fields overwrite.
	Update(ctx context.Context, id string, fields UpdateFields) (*Request, error)
	// Submit moves the request to waiting_for_insurance, stamps SubmittedAt
	// and accumulates review time.
	Submit(ctx context.Context, id string, addReviewTimeSeconds int) (*Request, error)
	AddReviewTime(ctx context.Context, id string, seconds int) (*Request, error)
	// Delete removes the request, reporting whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context) (*Stats, error)
	// RecentActivity returns the most-recently-updated requests as feed
	// entries, at most limit of them.
	RecentActivity(ctx context.Context, limit int) ([]Activity, error)
}
