package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/utils/logging"
)

// Forget irreversibly erases every memory of the user. This is the only
// operation that physically deletes records; reconciliation never does.
func (uc *UseCase) Forget(ctx context.Context, userID string) error {
	if userID == "" {
		return goerr.New("user ID is required")
	}

	if err := uc.ledger.Erase(ctx, userID); err != nil {
		return goerr.Wrap(err, "failed to erase memories", goerr.V("user_id", userID))
	}

	logging.From(ctx).Info("erased all memories", "user_id", userID)
	return nil
}
