package adapter

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/m-mizutani/goerr/v2"
)

// Embedder converts text into a fixed-length vector. Implementations must
// be deterministic for a given text so similarity rankings stay stable
// across restarts.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions returns the embedding vector size
	Dimensions() int
}

// GeminiEmbedder generates embeddings through the Gemini API.
type GeminiEmbedder struct {
	gemini Gemini
	dims   int
}

// NewGeminiEmbedder wraps a Gemini client as an Embedder. dims must match
// the dimensionality configured on the client.
func NewGeminiEmbedder(gemini Gemini, dims int) *GeminiEmbedder {
	return &GeminiEmbedder{gemini: gemini, dims: dims}
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.gemini.Embedding(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, goerr.New("empty embedding response")
	}

	vec := resp.Embeddings[0].Values
	if len(vec) != e.dims {
		return nil, goerr.New("unexpected embedding dimension",
			goerr.V("want", e.dims), goerr.V("got", len(vec)))
	}
	return vec, nil
}

func (e *GeminiEmbedder) Dimensions() int {
	return e.dims
}

// HashEmbedder produces deterministic pseudo-embeddings from a text hash.
// It carries no semantic signal and exists for offline operation and
// tests; identical texts still map to identical vectors, which is enough
// for exact-recall behavior without API access.
type HashEmbedder struct {
	dims int
}

func NewHashEmbedder(dims int) *HashEmbedder {
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))

	// LCG seeded by the text hash, normalized to a unit vector.
	seed := h.Sum64()
	vec := make([]float32, e.dims)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float64(int64(seed)) / float64(math.MaxInt64)
		vec[i] = float32(v)
		norm += v * v
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec, nil
}

func (e *HashEmbedder) Dimensions() int {
	return e.dims
}
