package memory

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"text/template"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/model"
	"google.golang.org/genai"
)

// Extractor distills candidate facts from a conversation window.
type Extractor interface {
	Extract(ctx context.Context, messages []model.Message) ([]model.CandidateFact, error)
}

//go:embed prompt/extract.md
var extractPromptRaw string

var extractPromptTmpl = template.Must(template.New("extract").Parse(extractPromptRaw))

var extractSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"no_info": {
			Type:        "boolean",
			Description: "True when the conversation contains nothing worth remembering",
		},
		"memories": {
			Type:        "array",
			Description: "Extracted facts",
			Items: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"text": {
						Type:        "string",
						Description: "Self-contained statement of the fact",
					},
					"categories": {
						Type:        "array",
						Description: "Topic labels",
						Items:       &jsonschema.Schema{Type: "string"},
					},
					"sentiment": {
						Type:        "string",
						Description: "User sentiment about the fact",
						Enum:        []any{"happy", "sad", "neutral"},
					},
					"occurred_at": {
						Type:        "string",
						Description: "RFC3339 timestamp, empty if unknown",
					},
				},
				Required: []string{"text", "categories", "sentiment"},
			},
		},
	},
	Required: []string{"no_info", "memories"},
}

// GeminiExtractor extracts facts through Gemini with a structured
// response schema.
type GeminiExtractor struct {
	gemini adapter.Gemini
	schema *genai.Schema
}

func NewGeminiExtractor(gemini adapter.Gemini) (*GeminiExtractor, error) {
	schema, err := adapter.SchemaToGenai(extractSchema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build extraction schema")
	}
	return &GeminiExtractor{gemini: gemini, schema: schema}, nil
}

func (e *GeminiExtractor) Extract(ctx context.Context, messages []model.Message) ([]model.CandidateFact, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	if err := extractPromptTmpl.Execute(&buf, map[string]any{
		"Messages": messages,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute extract prompt template")
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   e.schema,
	}
	contents := []*genai.Content{
		genai.NewContentFromText(buf.String(), genai.RoleUser),
	}

	resp, err := e.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate extraction")
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, goerr.New("invalid response structure from gemini")
	}

	rawJSON := resp.Candidates[0].Content.Parts[0].Text

	var extracted struct {
		NoInfo   bool `json:"no_info"`
		Memories []struct {
			Text       string   `json:"text"`
			Categories []string `json:"categories"`
			Sentiment  string   `json:"sentiment"`
			OccurredAt string   `json:"occurred_at"`
		} `json:"memories"`
	}
	if err := json.Unmarshal([]byte(rawJSON), &extracted); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal extraction JSON", goerr.V("json", rawJSON))
	}

	if extracted.NoInfo {
		return nil, nil
	}

	now := time.Now()
	facts := make([]model.CandidateFact, 0, len(extracted.Memories))
	for _, m := range extracted.Memories {
		if m.Text == "" {
			continue
		}

		occurredAt := now
		if m.OccurredAt != "" {
			if t, err := time.Parse(time.RFC3339, m.OccurredAt); err == nil {
				occurredAt = t
			}
		}

		sentiment := model.Sentiment(m.Sentiment)
		if sentiment.Validate() != nil {
			sentiment = model.SentimentNeutral
		}

		facts = append(facts, model.CandidateFact{
			Text:       m.Text,
			Categories: m.Categories,
			Sentiment:  sentiment,
			OccurredAt: occurredAt,
		})
	}

	return facts, nil
}

// LocalExtractor is the offline fallback: it treats the last user
// message as a single uncategorized fact. Crude, but it keeps the
// pipeline exercisable without API access.
type LocalExtractor struct{}

func NewLocalExtractor() *LocalExtractor {
	return &LocalExtractor{}
}

func (e *LocalExtractor) Extract(_ context.Context, messages []model.Message) ([]model.CandidateFact, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != model.RoleUser || messages[i].Content == "" {
			continue
		}
		return []model.CandidateFact{{
			Text:       messages[i].Content,
			Sentiment:  model.SentimentNeutral,
			OccurredAt: time.Now(),
		}}, nil
	}
	return nil, nil
}
