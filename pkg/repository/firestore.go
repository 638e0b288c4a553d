package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	memoryCollection = "memories"
	distanceField    = "vector_distance"
)

// Firestore implements Repository using Firestore's native vector search
// (FindNearest). Suitable for deployments where memories must be shared
// across processes; the embedded Chromem backend covers local use.
type Firestore struct {
	client *firestore.Client
}

var _ Repository = (*Firestore)(nil)

// NewFirestore creates a Firestore-backed repository.
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID),
			goerr.T(model.TagStoreUnavailable))
	}
	return &Firestore{client: client}, nil
}

// memoryDoc is the Firestore document layout for a memory record.
type memoryDoc struct {
	ID           string             `firestore:"id"`
	UserID       string             `firestore:"user_id"`
	Text         string             `firestore:"text"`
	Embedding    firestore.Vector32 `firestore:"embedding"`
	Categories   []string           `firestore:"categories"`
	Sentiment    string             `firestore:"sentiment"`
	OccurredAt   time.Time          `firestore:"occurred_at"`
	SavedAt      time.Time          `firestore:"saved_at"`
	Status       string             `firestore:"status"`
	SupersededAt *time.Time         `firestore:"superseded_at"`
}

func toDoc(rec *model.MemoryRecord) *memoryDoc {
	return &memoryDoc{
		ID:           string(rec.ID),
		UserID:       rec.UserID,
		Text:         rec.Text,
		Embedding:    firestore.Vector32(rec.Embedding),
		Categories:   rec.Categories,
		Sentiment:    string(rec.Sentiment),
		OccurredAt:   rec.OccurredAt,
		SavedAt:      rec.SavedAt,
		Status:       string(rec.Status),
		SupersededAt: rec.SupersededAt,
	}
}

func (d *memoryDoc) toRecord() *model.MemoryRecord {
	return &model.MemoryRecord{
		ID:           model.MemoryID(d.ID),
		UserID:       d.UserID,
		Text:         d.Text,
		Embedding:    []float32(d.Embedding),
		Categories:   d.Categories,
		Sentiment:    model.Sentiment(d.Sentiment),
		OccurredAt:   d.OccurredAt,
		SavedAt:      d.SavedAt,
		Status:       model.Status(d.Status),
		SupersededAt: d.SupersededAt,
	}
}

func (r *Firestore) PutMemory(ctx context.Context, rec *model.MemoryRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	// Document-level Set is atomic, which is all the ledger needs.
	_, err := r.client.Collection(memoryCollection).Doc(string(rec.ID)).Set(ctx, toDoc(rec))
	if err != nil {
		return goerr.Wrap(err, "failed to put memory",
			goerr.V("id", rec.ID), goerr.T(model.TagStoreUnavailable))
	}
	return nil
}

func (r *Firestore) GetMemory(ctx context.Context, userID string, id model.MemoryID) (*model.MemoryRecord, error) {
	snap, err := r.client.Collection(memoryCollection).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrMemoryNotFound, "no such memory",
				goerr.V("user_id", userID), goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get memory",
			goerr.V("id", id), goerr.T(model.TagStoreUnavailable))
	}

	var doc memoryDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode memory", goerr.V("id", id))
	}
	if doc.UserID != userID {
		// Record IDs are unguessable UUIDs, but user scoping is still
		// enforced rather than assumed.
		return nil, goerr.Wrap(model.ErrMemoryNotFound, "memory belongs to another user",
			goerr.V("user_id", userID), goerr.V("id", id))
	}
	return doc.toRecord(), nil
}

func (r *Firestore) QueryMemories(ctx context.Context, input *QueryInput) ([]*model.ScoredMemory, error) {
	if input.Limit <= 0 {
		return nil, nil
	}

	q := r.client.Collection(memoryCollection).Query.
		Where("user_id", "==", input.UserID)
	if input.Filter.Status != "" {
		q = q.Where("status", "==", string(input.Filter.Status))
	}
	if input.Filter.Category != "" {
		q = q.Where("categories", "array-contains", input.Filter.Category)
	}

	vq := q.FindNearest("embedding", firestore.Vector32(input.Vector), input.Limit,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{DistanceResultField: distanceField},
	)

	iter := vq.Documents(ctx)
	defer iter.Stop()

	var out []*model.ScoredMemory
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to search memories",
				goerr.V("user_id", input.UserID), goerr.T(model.TagStoreUnavailable))
		}

		var doc memoryDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode memory", goerr.V("doc", snap.Ref.ID))
		}

		// Cosine distance is in [0, 2]; map to a [0, 1] similarity score.
		score := 0.0
		if raw, ok := snap.Data()[distanceField]; ok {
			if dist, ok := raw.(float64); ok {
				score = 1 - dist/2
			}
		}

		out = append(out, &model.ScoredMemory{Record: doc.toRecord(), Score: score})
	}
	return out, nil
}

func (r *Firestore) ListMemories(ctx context.Context, userID string) ([]*model.MemoryRecord, error) {
	iter := r.client.Collection(memoryCollection).Query.
		Where("user_id", "==", userID).
		OrderBy("saved_at", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var records []*model.MemoryRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list memories",
				goerr.V("user_id", userID), goerr.T(model.TagStoreUnavailable))
		}

		var doc memoryDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode memory", goerr.V("doc", snap.Ref.ID))
		}
		records = append(records, doc.toRecord())
	}
	return records, nil
}

func (r *Firestore) DeleteUserMemories(ctx context.Context, userID string) error {
	iter := r.client.Collection(memoryCollection).Query.
		Where("user_id", "==", userID).
		Documents(ctx)
	defer iter.Stop()

	bw := r.client.BulkWriter(ctx)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to enumerate memories for deletion",
				goerr.V("user_id", userID), goerr.T(model.TagStoreUnavailable))
		}
		if _, err := bw.Delete(snap.Ref); err != nil {
			return goerr.Wrap(err, "failed to schedule deletion",
				goerr.V("user_id", userID), goerr.T(model.TagStoreUnavailable))
		}
	}
	bw.End()
	return nil
}

func (r *Firestore) Close() error {
	return r.client.Close()
}
