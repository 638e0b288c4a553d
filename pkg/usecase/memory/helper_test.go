package memory_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/repository"
	"github.com/m-mizutani/recall/pkg/usecase/memory"
)

const testDims = 4

// stubEmbedder maps known texts to fixed vectors so similarity is fully
// controlled. Unknown texts share a distinct fallback direction.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if vec, ok := e.vectors[text]; ok {
		return vec, nil
	}
	return []float32{0, 0, 0, 1}, nil
}

func (e *stubEmbedder) Dimensions() int {
	return testDims
}

// stubOracle returns a fixed decision or error.
type stubOracle struct {
	decision *model.Decision
	err      error
	calls    int
}

func (o *stubOracle) Decide(_ context.Context, _ model.CandidateFact, _ model.MemoryRecord) (*model.Decision, error) {
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	return o.decision, nil
}

func setupUseCase(t *testing.T, embedder *stubEmbedder, oracle memory.Oracle, opts ...memory.Option) (*memory.UseCase, *repository.Ledger) {
	repo, err := repository.NewChromem("", testDims)
	gt.NoError(t, err)

	ledger := repository.NewLedger(repo)
	uc := memory.New(ledger, embedder, oracle, memory.NewLocalExtractor(), opts...)
	return uc, ledger
}
