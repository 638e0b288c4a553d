package repository

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	chromem "github.com/philippgille/chromem-go"
)

// Chromem is an embedded vector store backed by chromem-go, a pure Go
// vector database. It is the default backend: no external service, with
// optional on-disk persistence. Each user gets their own collection so
// user isolation is structural rather than filter-based.
type Chromem struct {
	db   *chromem.DB
	dims int

	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

var _ Repository = (*Chromem)(nil)

// NewChromem creates a chromem-backed repository. If path is empty the
// store is in-memory only; otherwise records persist under path across
// restarts. dims is the embedding dimension and must match the embedder.
func NewChromem(path string, dims int) (*Chromem, error) {
	if dims <= 0 {
		return nil, goerr.New("embedding dimensions must be positive", goerr.V("dims", dims))
	}

	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open chromem database",
				goerr.V("path", path), goerr.T(model.TagStoreUnavailable))
		}
	}

	return &Chromem{
		db:          db,
		dims:        dims,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func collectionName(userID string) string {
	return fmt.Sprintf("user_%s", userID)
}

func (r *Chromem) collection(userID string) (*chromem.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if col, ok := r.collections[userID]; ok {
		return col, nil
	}

	// Embeddings are always supplied by the caller, so no embedding
	// function is registered with the collection.
	col, err := r.db.GetOrCreateCollection(collectionName(userID), nil, noEmbedding)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open collection",
			goerr.V("user_id", userID), goerr.T(model.TagStoreUnavailable))
	}
	r.collections[userID] = col
	return col, nil
}

// noEmbedding guards against accidental use of chromem's default remote
// embedding function. Every document and query carries its own vector.
func noEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, goerr.New("embedding must be provided by the caller")
}

func (r *Chromem) PutMemory(ctx context.Context, rec *model.MemoryRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if len(rec.Embedding) != r.dims {
		return goerr.New("embedding dimension mismatch",
			goerr.V("want", r.dims), goerr.V("got", len(rec.Embedding)))
	}

	col, err := r.collection(rec.UserID)
	if err != nil {
		return err
	}

	meta := map[string]string{
		"id":          string(rec.ID),
		"user_id":     rec.UserID,
		"categories":  strings.Join(rec.Categories, ","),
		"sentiment":   string(rec.Sentiment),
		"occurred_at": rec.OccurredAt.Format(time.RFC3339Nano),
		"saved_at":    rec.SavedAt.Format(time.RFC3339Nano),
		"status":      string(rec.Status),
	}
	if rec.SupersededAt != nil {
		meta["superseded_at"] = rec.SupersededAt.Format(time.RFC3339Nano)
	}

	doc := chromem.Document{
		ID:        string(rec.ID),
		Content:   rec.Text,
		Embedding: normalize(rec.Embedding),
		Metadata:  meta,
	}

	// AddDocument replaces any existing document with the same ID, which
	// gives the per-record atomic upsert the ledger relies on.
	if err := col.AddDocument(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to store memory",
			goerr.V("id", rec.ID), goerr.T(model.TagStoreUnavailable))
	}
	return nil
}

func (r *Chromem) GetMemory(ctx context.Context, userID string, id model.MemoryID) (*model.MemoryRecord, error) {
	results, err := r.query(ctx, userID, basisVector(r.dims), 1, map[string]string{"id": string(id)})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, goerr.Wrap(model.ErrMemoryNotFound, "no such memory",
			goerr.V("user_id", userID), goerr.V("id", id))
	}
	return resultToRecord(results[0])
}

func (r *Chromem) QueryMemories(ctx context.Context, input *QueryInput) ([]*model.ScoredMemory, error) {
	if input.Limit <= 0 {
		return nil, nil
	}
	if len(input.Vector) != r.dims {
		return nil, goerr.New("query vector dimension mismatch",
			goerr.V("want", r.dims), goerr.V("got", len(input.Vector)))
	}

	where := map[string]string{}
	if input.Filter.Status != "" {
		where["status"] = string(input.Filter.Status)
	}

	// The category predicate is applied client-side because categories are
	// stored as a comma-joined list and chromem metadata filters support
	// exact equality only. Fetch extra candidates so the post-filter still
	// fills the limit.
	fetch := input.Limit
	if input.Filter.Category != "" {
		fetch = max(input.Limit*4, 20)
	}

	results, err := r.query(ctx, input.UserID, normalize(input.Vector), fetch, where)
	if err != nil {
		return nil, err
	}

	out := make([]*model.ScoredMemory, 0, len(results))
	for _, res := range results {
		rec, err := resultToRecord(res)
		if err != nil {
			return nil, err
		}
		if input.Filter.Category != "" && !hasCategory(rec, input.Filter.Category) {
			continue
		}
		out = append(out, &model.ScoredMemory{
			Record: rec,
			Score:  similarityScore(res.Similarity),
		})
		if len(out) >= input.Limit {
			break
		}
	}
	return out, nil
}

func (r *Chromem) ListMemories(ctx context.Context, userID string) ([]*model.MemoryRecord, error) {
	col, err := r.collection(userID)
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}

	results, err := r.query(ctx, userID, basisVector(r.dims), count, nil)
	if err != nil {
		return nil, err
	}

	records := make([]*model.MemoryRecord, 0, len(results))
	for _, res := range results {
		rec, err := resultToRecord(res)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].SavedAt.After(records[j].SavedAt)
	})
	return records, nil
}

func (r *Chromem) DeleteUserMemories(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.DeleteCollection(collectionName(userID)); err != nil {
		return goerr.Wrap(err, "failed to delete user memories",
			goerr.V("user_id", userID), goerr.T(model.TagStoreUnavailable))
	}
	delete(r.collections, userID)
	return nil
}

func (r *Chromem) Close() error {
	// chromem persists on write; nothing is held open.
	return nil
}

// query wraps chromem's QueryEmbedding, clamping nResults to the
// collection size since chromem rejects larger values.
func (r *Chromem) query(ctx context.Context, userID string, vec []float32, n int, where map[string]string) ([]chromem.Result, error) {
	col, err := r.collection(userID)
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if n > count {
		n = count
	}

	results, err := col.QueryEmbedding(ctx, vec, n, where, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query memories",
			goerr.V("user_id", userID), goerr.T(model.TagStoreUnavailable))
	}
	return results, nil
}

func resultToRecord(res chromem.Result) (*model.MemoryRecord, error) {
	occurredAt, err := time.Parse(time.RFC3339Nano, res.Metadata["occurred_at"])
	if err != nil {
		return nil, goerr.Wrap(err, "broken occurred_at metadata", goerr.V("id", res.ID))
	}
	savedAt, err := time.Parse(time.RFC3339Nano, res.Metadata["saved_at"])
	if err != nil {
		return nil, goerr.Wrap(err, "broken saved_at metadata", goerr.V("id", res.ID))
	}

	rec := &model.MemoryRecord{
		ID:         model.MemoryID(res.ID),
		UserID:     res.Metadata["user_id"],
		Text:       res.Content,
		Embedding:  res.Embedding,
		Sentiment:  model.Sentiment(res.Metadata["sentiment"]),
		OccurredAt: occurredAt,
		SavedAt:    savedAt,
		Status:     model.Status(res.Metadata["status"]),
	}
	if cats := res.Metadata["categories"]; cats != "" {
		rec.Categories = strings.Split(cats, ",")
	}
	if raw, ok := res.Metadata["superseded_at"]; ok && raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, goerr.Wrap(err, "broken superseded_at metadata", goerr.V("id", res.ID))
		}
		rec.SupersededAt = &at
	}
	return rec, nil
}

func hasCategory(rec *model.MemoryRecord, category string) bool {
	for _, c := range rec.Categories {
		if strings.TrimSpace(c) == category {
			return true
		}
	}
	return false
}

// similarityScore maps cosine similarity [-1, 1] to [0, 1], matching the
// 1 - distance/2 convention of the Firestore backend.
func similarityScore(cos float32) float64 {
	return (1 + float64(cos)) / 2
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// basisVector is a fixed unit vector used when a query needs no semantic
// ranking (get by ID, full listing).
func basisVector(dims int) []float32 {
	vec := make([]float32, dims)
	vec[0] = 1
	return vec
}
