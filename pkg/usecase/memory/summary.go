package memory

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/model"
	"google.golang.org/genai"
)

// SessionSummaryCategory tags memories that hold a whole-session recap
// rather than a single fact.
const SessionSummaryCategory = "session_summary"

// Summarizer condenses a finished session into a short recap.
type Summarizer interface {
	Summarize(ctx context.Context, messages []model.Message) (string, error)
}

// WithSummarizer sets the session summarizer.
func WithSummarizer(s Summarizer) Option {
	return func(uc *UseCase) {
		uc.summarizer = s
	}
}

// SaveSessionSummary stores a recap of the session as a dated memory.
// Sessions with fewer than two turns carry nothing worth keeping and
// are skipped. The summary goes through the ledger directly, not
// through reconciliation: each session is its own record and never
// supersedes a previous one.
func (uc *UseCase) SaveSessionSummary(ctx context.Context, userID string, messages []model.Message) error {
	if userID == "" {
		return goerr.New("user ID is required")
	}
	if len(messages) < 2 {
		return nil
	}

	summary, err := uc.summarizer.Summarize(ctx, messages)
	if err != nil {
		return goerr.Wrap(err, "failed to summarize session")
	}
	if summary == "" {
		return nil
	}

	now := time.Now()
	text := fmt.Sprintf("[Session %s] %s", now.Format("2006-01-02"), summary)

	vec, err := uc.embedder.Embed(ctx, text)
	if err != nil {
		return goerr.Wrap(err, "failed to embed session summary")
	}

	record := model.MemoryRecord{
		ID:         model.NewMemoryID(),
		UserID:     userID,
		Text:       text,
		Embedding:  vec,
		Categories: []string{SessionSummaryCategory},
		Sentiment:  model.SentimentNeutral,
		OccurredAt: now,
		SavedAt:    now,
		Status:     model.StatusCurrent,
	}

	if err := uc.ledger.Insert(ctx, &record); err != nil {
		return goerr.Wrap(err, "failed to insert session summary")
	}
	return nil
}

//go:embed prompt/summary.md
var summaryPromptRaw string

var summaryPromptTmpl = template.Must(template.New("summary").Parse(summaryPromptRaw))

// GeminiSummarizer produces the session recap through Gemini.
type GeminiSummarizer struct {
	gemini adapter.Gemini
}

func NewGeminiSummarizer(gemini adapter.Gemini) *GeminiSummarizer {
	return &GeminiSummarizer{gemini: gemini}
}

func (s *GeminiSummarizer) Summarize(ctx context.Context, messages []model.Message) (string, error) {
	var buf bytes.Buffer
	if err := summaryPromptTmpl.Execute(&buf, map[string]any{
		"Messages": messages,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute summary prompt template")
	}

	contents := []*genai.Content{
		genai.NewContentFromText(buf.String(), genai.RoleUser),
	}

	resp, err := s.gemini.GenerateContent(ctx, contents, nil)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate session summary")
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", goerr.New("invalid response structure from gemini")
	}

	return strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text), nil
}

// LocalSummarizer is the offline fallback: it lists the topics of the
// user's turns instead of asking a model for prose.
type LocalSummarizer struct{}

func NewLocalSummarizer() *LocalSummarizer {
	return &LocalSummarizer{}
}

func (s *LocalSummarizer) Summarize(_ context.Context, messages []model.Message) (string, error) {
	var topics []string
	for _, m := range messages {
		if m.Role != model.RoleUser || m.Content == "" {
			continue
		}
		topics = append(topics, m.Content)
	}
	if len(topics) == 0 {
		return "", nil
	}

	const maxLen = 200
	joined := strings.Join(topics, "; ")
	if len(joined) > maxLen {
		joined = joined[:maxLen]
	}
	return "Talked about: " + joined, nil
}
