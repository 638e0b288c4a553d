package chat

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/usecase/memory"
	"github.com/m-mizutani/recall/pkg/utils/logging"
)

//go:embed prompt/system.md
var systemPromptRaw string

var systemPromptTmpl = template.Must(template.New("system").Parse(systemPromptRaw))

// defaultWindow is how many trailing messages feed fact extraction.
const defaultWindow = 6

// Session is one interactive conversation for a single user. Each turn
// retrieves relevant memories, injects them into the system prompt, and
// schedules a background memory update from the recent transcript.
type Session struct {
	memory     *memory.UseCase
	dispatcher *memory.Dispatcher
	claude     adapter.Claude
	archive    adapter.Storage

	userID     string
	sessionID  string
	startedAt  time.Time
	transcript []model.Message
	window     int
	recalled   []*model.ScoredMemory
}

// SessionOption is a functional option for Session
type SessionOption func(*Session)

// WithArchive enables transcript archival to object storage on Close.
func WithArchive(archive adapter.Storage) SessionOption {
	return func(s *Session) {
		s.archive = archive
	}
}

// WithWindow sets the number of trailing messages passed to fact
// extraction after each turn.
func WithWindow(n int) SessionOption {
	return func(s *Session) {
		s.window = n
	}
}

// New creates a chat session for the user.
func New(
	mem *memory.UseCase,
	dispatcher *memory.Dispatcher,
	claude adapter.Claude,
	userID string,
	opts ...SessionOption,
) *Session {
	s := &Session{
		memory:     mem,
		dispatcher: dispatcher,
		claude:     claude,
		userID:     userID,
		sessionID:  uuid.New().String(),
		startedAt:  time.Now(),
		window:     defaultWindow,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// RecentMemories returns the user's n most recent memories for the
// session opening, so the assistant can greet with context.
func (s *Session) RecentMemories(ctx context.Context, n int) ([]*model.MemoryRecord, error) {
	return s.memory.Recent(ctx, s.userID, n)
}

// LastRecalled returns the memories injected into the most recent turn.
func (s *Session) LastRecalled() []*model.ScoredMemory {
	return s.recalled
}

// Send runs one conversation turn: retrieve memories, generate the
// response, and schedule the background memory update. Memory retrieval
// failures degrade to an uninformed answer rather than failing the turn.
func (s *Session) Send(ctx context.Context, input string) (string, error) {
	if input == "" {
		return "", goerr.New("input is empty")
	}

	retrieved, err := s.memory.Retrieve(ctx, s.userID, input)
	if err != nil {
		logging.From(ctx).Warn("memory retrieval failed, answering without memories",
			"user_id", s.userID, "error", err)
		retrieved = nil
	}
	s.recalled = retrieved

	system, err := s.buildSystemPrompt(retrieved)
	if err != nil {
		return "", err
	}

	messages := make([]anthropic.MessageParam, 0, len(s.transcript)+1)
	for _, m := range s.transcript {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case model.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(block))
		default:
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(input)))

	resp, err := s.claude.Chat(ctx, system, messages)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate response")
	}

	var reply strings.Builder
	for _, content := range resp.Content {
		if content.Type == "text" {
			reply.WriteString(content.Text)
		}
	}

	s.transcript = append(s.transcript,
		model.Message{Role: model.RoleUser, Content: input},
		model.Message{Role: model.RoleAssistant, Content: reply.String()},
	)

	s.dispatcher.Dispatch(ctx, s.userID, s.recentWindow())

	return reply.String(), nil
}

// Close finishes the session: waits for pending memory updates, stores
// the session summary, and archives the transcript if configured.
func (s *Session) Close(ctx context.Context) error {
	if err := s.dispatcher.Wait(ctx); err != nil {
		return goerr.Wrap(err, "pending memory updates did not finish")
	}

	if err := s.memory.SaveSessionSummary(ctx, s.userID, s.transcript); err != nil {
		logging.From(ctx).Warn("failed to save session summary",
			"user_id", s.userID, "error", err)
	}

	if s.archive != nil && len(s.transcript) > 0 {
		if err := s.archiveTranscript(ctx); err != nil {
			logging.From(ctx).Warn("failed to archive transcript",
				"user_id", s.userID, "session_id", s.sessionID, "error", err)
		}
	}

	return nil
}

func (s *Session) buildSystemPrompt(retrieved []*model.ScoredMemory) (string, error) {
	memories := make([]string, 0, len(retrieved))
	for _, m := range retrieved {
		memories = append(memories, m.String())
	}

	var buf bytes.Buffer
	if err := systemPromptTmpl.Execute(&buf, map[string]any{
		"Memories": memories,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute system prompt template")
	}
	return buf.String(), nil
}

// recentWindow returns the trailing slice of the transcript used for
// fact extraction.
func (s *Session) recentWindow() []model.Message {
	if len(s.transcript) <= s.window {
		return s.transcript
	}
	return s.transcript[len(s.transcript)-s.window:]
}
