package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/repository"
)

func setupFirestore(t *testing.T) *repository.Firestore {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	repo, err := repository.NewFirestore(context.Background(), projectID, databaseID)
	gt.NoError(t, err)

	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

func firestoreTestVector() []float32 {
	vec := make([]float32, 768)
	vec[0] = 1
	return vec
}

func TestFirestorePutGetMemory(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()
	userID := "test-user-" + string(model.NewMemoryID())

	rec := &model.MemoryRecord{
		ID:         model.NewMemoryID(),
		UserID:     userID,
		Text:       "I live in Delhi",
		Embedding:  firestoreTestVector(),
		Categories: []string{"location"},
		Sentiment:  model.SentimentNeutral,
		OccurredAt: time.Now(),
		SavedAt:    time.Now(),
		Status:     model.StatusCurrent,
	}
	gt.NoError(t, repo.PutMemory(ctx, rec))
	t.Cleanup(func() {
		_ = repo.DeleteUserMemories(ctx, userID)
	})

	got, err := repo.GetMemory(ctx, userID, rec.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.Text, "I live in Delhi")
	gt.Equal(t, got.Categories, []string{"location"})
	gt.Equal(t, got.Status, model.StatusCurrent)
}

func TestFirestoreGetMemoryNotFound(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	_, err := repo.GetMemory(ctx, "no-such-user", model.NewMemoryID())
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrMemoryNotFound))
}

func TestFirestoreQueryMemories(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()
	userID := "test-user-" + string(model.NewMemoryID())

	rec := &model.MemoryRecord{
		ID:         model.NewMemoryID(),
		UserID:     userID,
		Text:       "My favorite food is ramen",
		Embedding:  firestoreTestVector(),
		Categories: []string{"food"},
		Sentiment:  model.SentimentHappy,
		OccurredAt: time.Now(),
		SavedAt:    time.Now(),
		Status:     model.StatusCurrent,
	}
	gt.NoError(t, repo.PutMemory(ctx, rec))
	t.Cleanup(func() {
		_ = repo.DeleteUserMemories(ctx, userID)
	})

	results, err := repo.QueryMemories(ctx, &repository.QueryInput{
		UserID: userID,
		Vector: firestoreTestVector(),
		Filter: repository.Filter{Status: model.StatusCurrent},
		Limit:  5,
	})
	gt.NoError(t, err)
	gt.A(t, results).Longer(0)
	gt.Equal(t, results[0].Record.ID, rec.ID)
	gt.Number(t, results[0].Score).Greater(0.99)
}

func TestFirestoreDeleteUserMemories(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()
	userID := "test-user-" + string(model.NewMemoryID())

	for i := 0; i < 3; i++ {
		rec := &model.MemoryRecord{
			ID:         model.NewMemoryID(),
			UserID:     userID,
			Text:       "disposable memory",
			Embedding:  firestoreTestVector(),
			Sentiment:  model.SentimentNeutral,
			OccurredAt: time.Now(),
			SavedAt:    time.Now(),
			Status:     model.StatusCurrent,
		}
		gt.NoError(t, repo.PutMemory(ctx, rec))
	}

	gt.NoError(t, repo.DeleteUserMemories(ctx, userID))

	records, err := repo.ListMemories(ctx, userID)
	gt.NoError(t, err)
	gt.A(t, records).Length(0)
}
