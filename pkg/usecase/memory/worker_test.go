package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/usecase/memory"
)

func TestDispatcherProcessesConversation(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"I just adopted a cat named Mio": {1, 0, 0, 0},
	}}
	uc, _ := setupUseCase(t, embedder, memory.NewRuleOracle())
	dispatcher := memory.NewDispatcher(uc)
	ctx := context.Background()

	dispatcher.Dispatch(ctx, "user-1", []model.Message{
		{Role: model.RoleUser, Content: "I just adopted a cat named Mio"},
		{Role: model.RoleAssistant, Content: "That's wonderful!"},
	})

	gt.NoError(t, dispatcher.Wait(ctx))

	records, err := uc.List(ctx, "user-1")
	gt.NoError(t, err)
	gt.A(t, records).Length(1)
	gt.Equal(t, records[0].Text, "I just adopted a cat named Mio")
}

func TestDispatcherSurvivesCallerCancellation(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{}}
	uc, _ := setupUseCase(t, embedder, memory.NewRuleOracle())
	dispatcher := memory.NewDispatcher(uc)

	sendCtx, cancel := context.WithCancel(context.Background())
	dispatcher.Dispatch(sendCtx, "user-1", []model.Message{
		{Role: model.RoleUser, Content: "I moved to Osaka"},
		{Role: model.RoleAssistant, Content: "Nice!"},
	})
	cancel()

	gt.NoError(t, dispatcher.Wait(context.Background()))

	records, err := uc.List(context.Background(), "user-1")
	gt.NoError(t, err)
	gt.A(t, records).Length(1)
}

type failingExtractor struct{}

func (e *failingExtractor) Extract(_ context.Context, _ []model.Message) ([]model.CandidateFact, error) {
	return nil, goerr.New("extraction unavailable")
}

func TestDispatcherSwallowsExtractionFailure(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{}}
	failing := memory.New(nil, embedder, memory.NewRuleOracle(), &failingExtractor{})
	dispatcher := memory.NewDispatcher(failing)
	ctx := context.Background()

	dispatcher.Dispatch(ctx, "user-1", []model.Message{
		{Role: model.RoleUser, Content: "hello"},
		{Role: model.RoleAssistant, Content: "hi"},
	})

	// The failure is logged, not surfaced.
	gt.NoError(t, dispatcher.Wait(ctx))
}

func TestDispatcherWaitHonorsDeadline(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{}}
	uc, _ := setupUseCase(t, embedder, memory.NewRuleOracle())
	dispatcher := memory.NewDispatcher(uc)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Nothing dispatched: Wait returns immediately, well within deadline.
	gt.NoError(t, dispatcher.Wait(ctx))
}
