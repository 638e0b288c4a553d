package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/repository"
	"github.com/m-mizutani/recall/pkg/usecase/chat"
	"github.com/m-mizutani/recall/pkg/usecase/memory"
)

// stubClaude records the prompts it received and replies with a fixed
// text block.
type stubClaude struct {
	reply    string
	systems  []string
	messages [][]anthropic.MessageParam
}

func (c *stubClaude) Chat(_ context.Context, system string, messages []anthropic.MessageParam) (*anthropic.Message, error) {
	c.systems = append(c.systems, system)
	c.messages = append(c.messages, messages)
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: c.reply},
		},
	}, nil
}

func setupSession(t *testing.T, claude adapter.Claude) (*chat.Session, *memory.UseCase, *repository.Ledger) {
	repo, err := repository.NewChromem("", 128)
	gt.NoError(t, err)

	ledger := repository.NewLedger(repo)
	uc := memory.New(ledger, adapter.NewHashEmbedder(128), memory.NewRuleOracle(), memory.NewLocalExtractor())
	dispatcher := memory.NewDispatcher(uc)

	session := chat.New(uc, dispatcher, claude, "user-1")
	return session, uc, ledger
}

func TestSessionSendInjectsMemories(t *testing.T) {
	claude := &stubClaude{reply: "You live in Delhi."}
	session, _, ledger := setupSession(t, claude)
	ctx := context.Background()

	embedder := adapter.NewHashEmbedder(128)
	vec, err := embedder.Embed(ctx, "Where do I live?")
	gt.NoError(t, err)

	// Same embedding as the query guarantees retrieval.
	gt.NoError(t, ledger.Insert(ctx, &model.MemoryRecord{
		ID:         model.NewMemoryID(),
		UserID:     "user-1",
		Text:       "I live in Delhi",
		Embedding:  vec,
		Categories: []string{"location"},
		Sentiment:  model.SentimentNeutral,
		OccurredAt: time.Now(),
		SavedAt:    time.Now(),
		Status:     model.StatusCurrent,
	}))

	reply, err := session.Send(ctx, "Where do I live?")
	gt.NoError(t, err)
	gt.Equal(t, reply, "You live in Delhi.")

	gt.A(t, claude.systems).Length(1)
	gt.S(t, claude.systems[0]).Contains("I live in Delhi")
	gt.S(t, claude.systems[0]).Contains("location")
}

func TestSessionSendWithoutMemories(t *testing.T) {
	claude := &stubClaude{reply: "Hello!"}
	session, _, _ := setupSession(t, claude)

	reply, err := session.Send(context.Background(), "Hi there")
	gt.NoError(t, err)
	gt.Equal(t, reply, "Hello!")
	gt.S(t, claude.systems[0]).Contains("no stored memories")
}

func TestSessionCarriesTranscript(t *testing.T) {
	claude := &stubClaude{reply: "ok"}
	session, _, _ := setupSession(t, claude)
	ctx := context.Background()

	_, err := session.Send(ctx, "first message")
	gt.NoError(t, err)
	_, err = session.Send(ctx, "second message")
	gt.NoError(t, err)

	// The second call sees the first exchange plus the new input.
	gt.A(t, claude.messages[1]).Length(3)
}

func TestSessionCloseStoresSummaryAndFacts(t *testing.T) {
	claude := &stubClaude{reply: "Nice to hear!"}
	session, uc, _ := setupSession(t, claude)
	ctx := context.Background()

	_, err := session.Send(ctx, "I just moved to Osaka")
	gt.NoError(t, err)
	_, err = session.Send(ctx, "And I started learning piano")
	gt.NoError(t, err)

	gt.NoError(t, session.Close(ctx))

	records, err := uc.List(ctx, "user-1")
	gt.NoError(t, err)

	var facts, summaries int
	for _, rec := range records {
		if len(rec.Categories) == 1 && rec.Categories[0] == memory.SessionSummaryCategory {
			summaries++
		} else {
			facts++
		}
	}
	gt.Equal(t, summaries, 1)
	gt.Number(t, facts).GreaterOrEqual(1)
}

func TestSessionRejectsEmptyInput(t *testing.T) {
	claude := &stubClaude{reply: "unused"}
	session, _, _ := setupSession(t, claude)

	_, err := session.Send(context.Background(), "")
	gt.Error(t, err)
}
