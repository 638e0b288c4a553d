package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/repository"
)

func setupLedger(t *testing.T) *repository.Ledger {
	return repository.NewLedger(setupChromem(t))
}

func TestLedgerInsertDefaultsToCurrent(t *testing.T) {
	ledger := setupLedger(t)
	ctx := context.Background()

	rec := newRecord("user-1", "I live in Delhi", []float32{1, 0, 0, 0})
	rec.Status = ""
	gt.NoError(t, ledger.Insert(ctx, rec))

	got, err := ledger.Get(ctx, "user-1", rec.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.Status, model.StatusCurrent)
}

func TestLedgerInsertRejectsSupersededState(t *testing.T) {
	ledger := setupLedger(t)
	ctx := context.Background()

	t.Run("superseded status", func(t *testing.T) {
		rec := newRecord("user-1", "born superseded", []float32{1, 0, 0, 0})
		now := time.Now()
		rec.Status = model.StatusSuperseded
		rec.SupersededAt = &now

		err := ledger.Insert(ctx, rec)
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, model.TagInvalidTransition))
	})

	t.Run("current with superseded_at", func(t *testing.T) {
		rec := newRecord("user-1", "inconsistent", []float32{1, 0, 0, 0})
		now := time.Now()
		rec.SupersededAt = &now

		err := ledger.Insert(ctx, rec)
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, model.TagInvalidTransition))
	})
}

func TestLedgerInsertRejectsDuplicateID(t *testing.T) {
	ledger := setupLedger(t)
	ctx := context.Background()

	rec := newRecord("user-1", "first version", []float32{1, 0, 0, 0})
	gt.NoError(t, ledger.Insert(ctx, rec))

	dup := newRecord("user-1", "rewritten text", []float32{0, 1, 0, 0})
	dup.ID = rec.ID
	err := ledger.Insert(ctx, dup)
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.TagInvalidTransition))

	// The original is untouched.
	got, err := ledger.Get(ctx, "user-1", rec.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.Text, "first version")
}

func TestLedgerSupersede(t *testing.T) {
	ledger := setupLedger(t)
	ctx := context.Background()

	rec := newRecord("user-1", "I live in Delhi", []float32{1, 0, 0, 0})
	gt.NoError(t, ledger.Insert(ctx, rec))

	at := time.Now()
	superseded, err := ledger.Supersede(ctx, "user-1", rec.ID, at)
	gt.NoError(t, err)
	gt.Equal(t, superseded.Status, model.StatusSuperseded)
	gt.V(t, superseded.SupersededAt).NotNil()

	got, err := ledger.Get(ctx, "user-1", rec.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.Status, model.StatusSuperseded)
	gt.Equal(t, got.Text, "I live in Delhi")
}

func TestLedgerSupersedeIdempotent(t *testing.T) {
	ledger := setupLedger(t)
	ctx := context.Background()

	rec := newRecord("user-1", "I live in Delhi", []float32{1, 0, 0, 0})
	gt.NoError(t, ledger.Insert(ctx, rec))

	first, err := ledger.Supersede(ctx, "user-1", rec.ID, time.Now())
	gt.NoError(t, err)

	// A retry keeps the original supersession timestamp.
	second, err := ledger.Supersede(ctx, "user-1", rec.ID, time.Now().Add(time.Hour))
	gt.NoError(t, err)
	gt.Equal(t, second.Status, model.StatusSuperseded)
	gt.True(t, second.SupersededAt.Equal(*first.SupersededAt))
}

func TestLedgerSupersedeUnknownRecord(t *testing.T) {
	ledger := setupLedger(t)
	ctx := context.Background()

	gt.NoError(t, ledger.Insert(ctx, newRecord("user-1", "something", []float32{1, 0, 0, 0})))

	_, err := ledger.Supersede(ctx, "user-1", model.NewMemoryID(), time.Now())
	gt.Error(t, err)
}

func TestLedgerErase(t *testing.T) {
	ledger := setupLedger(t)
	ctx := context.Background()

	rec := newRecord("user-1", "I live in Delhi", []float32{1, 0, 0, 0})
	gt.NoError(t, ledger.Insert(ctx, rec))
	_, err := ledger.Supersede(ctx, "user-1", rec.ID, time.Now())
	gt.NoError(t, err)

	// Erase removes history too, not just current records.
	gt.NoError(t, ledger.Erase(ctx, "user-1"))
	records, err := ledger.List(ctx, "user-1")
	gt.NoError(t, err)
	gt.A(t, records).Length(0)
}
