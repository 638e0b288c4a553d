package memory

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/repository"
)

// Retrieve returns the memories most relevant to query, ranked by
// relevance score descending. Only current memories are searched unless
// the query is historical, in which case superseded records are included
// as well. Results below the relevance threshold are dropped, so the
// result may be shorter than the configured top-K, including empty.
func (uc *UseCase) Retrieve(ctx context.Context, userID, query string) ([]*model.ScoredMemory, error) {
	if userID == "" {
		return nil, goerr.New("user ID is required")
	}
	if query == "" {
		return nil, goerr.New("query is required")
	}

	vec, err := uc.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}

	filter := repository.Filter{Status: model.StatusCurrent}
	if IsHistoricalQuery(query) {
		filter.Status = ""
	}

	results, err := uc.ledger.Query(ctx, &repository.QueryInput{
		UserID: userID,
		Vector: vec,
		Filter: filter,
		Limit:  uc.topK,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query memories", goerr.V("user_id", userID))
	}

	matched := make([]*model.ScoredMemory, 0, len(results))
	for _, r := range results {
		if r.Score >= uc.threshold {
			matched = append(matched, r)
		}
	}

	// Backends already rank by similarity; re-sort to fix tie order.
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Score != matched[j].Score {
			return matched[i].Score > matched[j].Score
		}
		return matched[i].Record.SavedAt.After(matched[j].Record.SavedAt)
	})

	return matched, nil
}

// Recent returns the user's n most recently saved current memories,
// without any semantic ranking. Used for proactive recall at the start
// of a session.
func (uc *UseCase) Recent(ctx context.Context, userID string, n int) ([]*model.MemoryRecord, error) {
	records, err := uc.ledger.List(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memories", goerr.V("user_id", userID))
	}

	recent := make([]*model.MemoryRecord, 0, n)
	for _, rec := range records {
		if !rec.IsCurrent() {
			continue
		}
		recent = append(recent, rec)
		if len(recent) == n {
			break
		}
	}
	return recent, nil
}
