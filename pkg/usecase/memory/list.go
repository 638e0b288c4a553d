package memory

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
)

// List returns all of the user's memories, newest first, including
// superseded ones.
func (uc *UseCase) List(ctx context.Context, userID string) ([]*model.MemoryRecord, error) {
	if userID == "" {
		return nil, goerr.New("user ID is required")
	}

	records, err := uc.ledger.List(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memories", goerr.V("user_id", userID))
	}
	return records, nil
}

// Categories returns the distinct categories across the user's current
// memories, sorted alphabetically.
func (uc *UseCase) Categories(ctx context.Context, userID string) ([]string, error) {
	records, err := uc.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, rec := range records {
		if !rec.IsCurrent() {
			continue
		}
		for _, c := range rec.Categories {
			seen[c] = struct{}{}
		}
	}

	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories, nil
}
