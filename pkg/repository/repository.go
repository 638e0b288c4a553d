package repository

import (
	"context"

	"github.com/m-mizutani/recall/pkg/model"
)

// Filter narrows a similarity query to records matching all of its
// predicates. Zero values mean "no restriction".
type Filter struct {
	// Status restricts results to records in the given lifecycle state.
	Status model.Status
	// Category restricts results to records tagged with the category.
	Category string
}

// QueryInput is a scoped similarity search request.
type QueryInput struct {
	UserID string
	Vector []float32
	Filter Filter
	Limit  int
}

// Repository is the vector store adapter: persistence of memory records
// with embedding vectors plus similarity search with metadata filters.
// Implementations must make PutMemory atomic per record. I/O failures are
// tagged model.TagStoreUnavailable and never retried here; retry policy
// belongs to the caller.
type Repository interface {
	// PutMemory inserts a record or replaces the record with the same ID.
	PutMemory(ctx context.Context, rec *model.MemoryRecord) error

	// GetMemory retrieves one record by ID, scoped to the user.
	// Returns model.ErrMemoryNotFound if it does not exist.
	GetMemory(ctx context.Context, userID string, id model.MemoryID) (*model.MemoryRecord, error)

	// QueryMemories returns the user's records matching the filter, ordered
	// by descending similarity to the query vector, truncated to Limit.
	// Scores are normalized to [0, 1].
	QueryMemories(ctx context.Context, input *QueryInput) ([]*model.ScoredMemory, error)

	// ListMemories returns all of the user's records, newest first.
	ListMemories(ctx context.Context, userID string) ([]*model.MemoryRecord, error)

	// DeleteUserMemories irreversibly erases all records of the user. Used
	// only by the explicit forget operation; bypasses versioning.
	DeleteUserMemories(ctx context.Context, userID string) error

	// Close releases underlying resources.
	Close() error
}
