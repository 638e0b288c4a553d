package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
)

// transcriptRecord is the archived form of a finished session. The
// memory store keeps only distilled facts; this is the raw material
// they came from.
type transcriptRecord struct {
	SessionID  string          `json:"session_id"`
	UserID     string          `json:"user_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Messages   []model.Message `json:"messages"`
}

func (s *Session) archiveTranscript(ctx context.Context) error {
	key := fmt.Sprintf("transcripts/%s/%s.json", s.userID, s.sessionID)

	w, err := s.archive.Put(ctx, key)
	if err != nil {
		return goerr.Wrap(err, "failed to open transcript object", goerr.V("key", key))
	}

	record := transcriptRecord{
		SessionID:  s.sessionID,
		UserID:     s.userID,
		StartedAt:  s.startedAt,
		FinishedAt: time.Now(),
		Messages:   s.transcript,
	}

	if err := json.NewEncoder(w).Encode(record); err != nil {
		w.Close()
		return goerr.Wrap(err, "failed to encode transcript", goerr.V("key", key))
	}

	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize transcript object", goerr.V("key", key))
	}
	return nil
}
