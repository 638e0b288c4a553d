package memory

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/repository"
	"github.com/m-mizutani/recall/pkg/utils/logging"
)

// ReconcileResult reports what a reconciliation committed.
type ReconcileResult struct {
	Action model.Action
	// Created is the newly inserted record (ADD/UPDATE), nil otherwise
	Created *model.MemoryRecord
	// Superseded is the retired record (UPDATE/SUPERSEDE), nil otherwise
	Superseded *model.MemoryRecord
}

// Reconcile integrates one candidate fact into the user's memory set.
// It finds the most similar current memory; if none is related the fact
// is added, otherwise the oracle decides between ADD, UPDATE, SUPERSEDE
// and NOOP. Reconciliations for the same user are serialized; an
// indeterminate oracle degrades to NOOP rather than failing the turn.
func (uc *UseCase) Reconcile(ctx context.Context, userID string, fact model.CandidateFact) (*ReconcileResult, error) {
	if userID == "" {
		return nil, goerr.New("user ID is required")
	}
	if err := fact.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid candidate fact")
	}

	lock := uc.locks.get(userID)
	lock.Lock()
	defer lock.Unlock()

	vec, err := uc.embedder.Embed(ctx, fact.Text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed fact")
	}

	related, err := uc.findRelated(ctx, userID, vec)
	if err != nil {
		return nil, err
	}

	if related == nil {
		created, err := uc.insert(ctx, userID, fact.Text, fact.Categories, fact, vec)
		if err != nil {
			return nil, err
		}
		return &ReconcileResult{Action: model.ActionAdd, Created: created}, nil
	}

	decision, err := uc.oracle.Decide(ctx, fact, *related.Record)
	if err != nil {
		if goerr.HasTag(err, model.TagOracleIndeterminate) {
			logging.From(ctx).Warn("oracle decision indeterminate, treating as noop",
				"user_id", userID,
				"fact", fact.Text,
				"error", err)
			return &ReconcileResult{Action: model.ActionNoop}, nil
		}
		return nil, goerr.Wrap(err, "oracle decision failed")
	}

	switch decision.Action {
	case model.ActionNoop:
		return &ReconcileResult{Action: model.ActionNoop}, nil

	case model.ActionAdd:
		created, err := uc.insertDecided(ctx, userID, decision, fact, vec)
		if err != nil {
			return nil, err
		}
		return &ReconcileResult{Action: model.ActionAdd, Created: created}, nil

	case model.ActionSupersede:
		superseded, err := uc.ledger.Supersede(ctx, userID, related.Record.ID, time.Now())
		if err != nil {
			return nil, goerr.Wrap(err, "failed to supersede memory",
				goerr.V("memory_id", related.Record.ID))
		}
		return &ReconcileResult{Action: model.ActionSupersede, Superseded: superseded}, nil

	case model.ActionUpdate:
		superseded, err := uc.ledger.Supersede(ctx, userID, related.Record.ID, time.Now())
		if err != nil {
			return nil, goerr.Wrap(err, "failed to supersede memory",
				goerr.V("memory_id", related.Record.ID))
		}

		created, err := uc.insertDecided(ctx, userID, decision, fact, vec)
		if err != nil {
			// The old record is already retired; surface the failure but
			// note the store is missing its replacement.
			logging.From(ctx).Error("superseded memory has no replacement",
				"user_id", userID,
				"superseded_id", superseded.ID,
				"error", err)
			return nil, goerr.Wrap(err, "failed to insert replacement memory",
				goerr.V("superseded_id", superseded.ID))
		}
		return &ReconcileResult{Action: model.ActionUpdate, Created: created, Superseded: superseded}, nil

	default:
		return nil, goerr.New("unknown reconciliation action", goerr.V("action", decision.Action))
	}
}

// findRelated returns the most similar current memory above the
// relatedness threshold, or nil when the fact has no relative.
func (uc *UseCase) findRelated(ctx context.Context, userID string, vec []float32) (*model.ScoredMemory, error) {
	results, err := uc.ledger.Query(ctx, &repository.QueryInput{
		UserID: userID,
		Vector: vec,
		Filter: repository.Filter{Status: model.StatusCurrent},
		Limit:  1,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query related memories", goerr.V("user_id", userID))
	}

	if len(results) == 0 || results[0].Score < uc.relatedness {
		return nil, nil
	}
	return results[0], nil
}

// insertDecided stores the text the oracle chose. When it differs from
// the fact text the embedding is recomputed so retrieval matches what
// was actually stored.
func (uc *UseCase) insertDecided(ctx context.Context, userID string, decision *model.Decision, fact model.CandidateFact, vec []float32) (*model.MemoryRecord, error) {
	text := decision.Text
	categories := decision.Categories
	if text != fact.Text {
		embedded, err := uc.embedder.Embed(ctx, text)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to embed decided text")
		}
		vec = embedded
	}
	return uc.insert(ctx, userID, text, categories, fact, vec)
}

func (uc *UseCase) insert(ctx context.Context, userID, text string, categories []string, fact model.CandidateFact, vec []float32) (*model.MemoryRecord, error) {
	record := model.MemoryRecord{
		ID:         model.NewMemoryID(),
		UserID:     userID,
		Text:       text,
		Embedding:  vec,
		Categories: categories,
		Sentiment:  fact.Sentiment,
		OccurredAt: fact.OccurredAt,
		SavedAt:    time.Now(),
		Status:     model.StatusCurrent,
	}

	if err := uc.ledger.Insert(ctx, &record); err != nil {
		return nil, goerr.Wrap(err, "failed to insert memory")
	}
	return &record, nil
}
