package repository

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
)

// Ledger enforces the versioning invariants on top of a Repository:
// records are never physically deleted by reconciliation, a record's text
// and embedding never change, and the only lifecycle transition is
// current -> superseded, exactly once. Violations are logic errors and
// are reported with model.TagInvalidTransition, never repaired silently.
//
// Every mutation is a single per-record upsert. The two writes of an
// UPDATE (Supersede then Insert) are independent and individually safe to
// retry: Supersede is idempotent and Insert uses a fresh identifier.
type Ledger struct {
	repo Repository
}

// NewLedger wraps a repository with invariant enforcement.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// Insert persists a brand-new current record. The record must not carry
// supersession state and its ID must not already exist.
func (l *Ledger) Insert(ctx context.Context, rec *model.MemoryRecord) error {
	if rec.Status == "" {
		rec.Status = model.StatusCurrent
	}
	if rec.Status != model.StatusCurrent || rec.SupersededAt != nil {
		return goerr.New("new records must start current",
			goerr.V("id", rec.ID), goerr.V("status", rec.Status),
			goerr.T(model.TagInvalidTransition))
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	// Record identity is stable for life; reusing an ID would rewrite
	// immutable fields through the upsert.
	_, err := l.repo.GetMemory(ctx, rec.UserID, rec.ID)
	switch {
	case err == nil:
		return goerr.New("record ID already exists",
			goerr.V("id", rec.ID), goerr.T(model.TagInvalidTransition))
	case errors.Is(err, model.ErrMemoryNotFound):
		// expected
	default:
		return err
	}

	return l.repo.PutMemory(ctx, rec)
}

// Supersede flips a current record to superseded, stamping superseded_at
// with the given time. Superseding an already-superseded record is a
// no-op that preserves the original timestamp, so retries after a partial
// UPDATE are safe.
func (l *Ledger) Supersede(ctx context.Context, userID string, id model.MemoryID, at time.Time) (*model.MemoryRecord, error) {
	rec, err := l.repo.GetMemory(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if !rec.IsCurrent() {
		return rec, nil
	}

	if !rec.Status.CanTransitionTo(model.StatusSuperseded) {
		return nil, goerr.New("illegal lifecycle transition",
			goerr.V("id", id), goerr.V("from", rec.Status),
			goerr.T(model.TagInvalidTransition))
	}

	ts := at
	rec.Status = model.StatusSuperseded
	rec.SupersededAt = &ts

	if err := l.repo.PutMemory(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get retrieves one record scoped to the user.
func (l *Ledger) Get(ctx context.Context, userID string, id model.MemoryID) (*model.MemoryRecord, error) {
	return l.repo.GetMemory(ctx, userID, id)
}

// Query runs a scoped similarity search.
func (l *Ledger) Query(ctx context.Context, input *QueryInput) ([]*model.ScoredMemory, error) {
	return l.repo.QueryMemories(ctx, input)
}

// List returns all of the user's records, newest first.
func (l *Ledger) List(ctx context.Context, userID string) ([]*model.MemoryRecord, error) {
	return l.repo.ListMemories(ctx, userID)
}

// Erase irreversibly removes every record of the user. This is the only
// deletion path and is reserved for the explicit user-initiated forget
// operation.
func (l *Ledger) Erase(ctx context.Context, userID string) error {
	return l.repo.DeleteUserMemories(ctx, userID)
}
