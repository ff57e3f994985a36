package workitem

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a work item id does not exist.
var ErrNotFound = errors.New("work item not found")

// Store persists work items. Implementations perform no optimistic
// concurrency check: concurrent writers to the same id race and the last
// write wins, which callers accept for this workflow.
type Store interface {
	// Create persists a new work item, assigning its id and stamping
	// CreatedAt/UpdatedAt. An empty Status defaults to pending.
	Create(ctx context.Context, item *WorkItem) error
	Get(ctx context.Context, id string) (*WorkItem, error)
	// List returns all work items, optionally filtered by status,
	// newest first.
	List(ctx context.Context, status *Status) ([]WorkItem, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*WorkItem, error)
	// UpdateResult persists the outcome of one processing run: the mapped
	// status, the procedure code and the discovered service-request id.
	UpdateResult(ctx context.Context, id string, status Status, procedureCode string, serviceRequestID string) (*WorkItem, error)
}
