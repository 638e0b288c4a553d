package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Sentiment is the emotional tone attached to an extracted fact.
type Sentiment string

const (
	SentimentHappy   Sentiment = "happy"
	SentimentSad     Sentiment = "sad"
	SentimentNeutral Sentiment = "neutral"
)

// Validate checks if the sentiment is valid
func (s Sentiment) Validate() error {
	switch s {
	case SentimentHappy, SentimentSad, SentimentNeutral:
		return nil
	default:
		return goerr.New("invalid sentiment", goerr.V("sentiment", s))
	}
}

// CandidateFact is one atomic statement produced by the fact extraction
// service. It is untrusted input to the reconciliation engine.
type CandidateFact struct {
	Text       string
	Categories []string
	Sentiment  Sentiment
	OccurredAt time.Time
}

// Validate checks the candidate is usable as reconciliation input.
func (f *CandidateFact) Validate() error {
	if f.Text == "" {
		return goerr.New("candidate fact text is empty")
	}
	if f.Sentiment != "" {
		if err := f.Sentiment.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Role of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn passed to the fact extraction
// service and the response generator.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
