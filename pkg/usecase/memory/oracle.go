package memory

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"strings"
	"text/template"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/adapter"
	"github.com/m-mizutani/recall/pkg/model"
	"google.golang.org/genai"
)

// Oracle decides how an incoming fact relates to an existing memory.
// The reconciliation engine treats it as a black box so the decision
// policy (LLM-backed or rule-based) can be swapped out.
type Oracle interface {
	Decide(ctx context.Context, candidate model.CandidateFact, existing model.MemoryRecord) (*model.Decision, error)
}

//go:embed prompt/decide.md
var decidePromptRaw string

var decidePromptTmpl = template.Must(template.New("decide").Parse(decidePromptRaw))

var decisionSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"action": {
			Type:        "string",
			Description: "Reconciliation action",
			Enum:        []any{"ADD", "UPDATE", "SUPERSEDE", "NOOP"},
		},
		"text": {
			Type:        "string",
			Description: "Memory text to store (required for ADD and UPDATE)",
		},
		"categories": {
			Type:        "array",
			Description: "Categories for the stored memory",
			Items:       &jsonschema.Schema{Type: "string"},
		},
	},
	Required: []string{"action"},
}

// GeminiOracle asks Gemini to reconcile a fact against an existing
// memory, constrained to a structured decision.
type GeminiOracle struct {
	gemini adapter.Gemini
	schema *genai.Schema
}

func NewGeminiOracle(gemini adapter.Gemini) (*GeminiOracle, error) {
	schema, err := adapter.SchemaToGenai(decisionSchema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build decision schema")
	}
	return &GeminiOracle{gemini: gemini, schema: schema}, nil
}

func (o *GeminiOracle) Decide(ctx context.Context, candidate model.CandidateFact, existing model.MemoryRecord) (*model.Decision, error) {
	var buf bytes.Buffer
	if err := decidePromptTmpl.Execute(&buf, map[string]any{
		"Existing":        existing.Text,
		"ExistingSavedAt": existing.SavedAt.Format(time.RFC3339),
		"Candidate":       candidate.Text,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute decide prompt template")
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   o.schema,
	}
	contents := []*genai.Content{
		genai.NewContentFromText(buf.String(), genai.RoleUser),
	}

	resp, err := o.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate decision")
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, goerr.New("invalid response structure from gemini", goerr.T(model.TagOracleIndeterminate))
	}

	rawJSON := resp.Candidates[0].Content.Parts[0].Text

	var decided struct {
		Action     string   `json:"action"`
		Text       string   `json:"text"`
		Categories []string `json:"categories"`
	}
	if err := json.Unmarshal([]byte(rawJSON), &decided); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal decision JSON",
			goerr.V("json", rawJSON), goerr.T(model.TagOracleIndeterminate))
	}

	action, err := model.ParseAction(decided.Action)
	if err != nil {
		return nil, err
	}

	decision := &model.Decision{
		Action:     action,
		Text:       decided.Text,
		Categories: decided.Categories,
	}

	// The model sometimes omits the text for UPDATE even when asked not
	// to; fall back to the candidate rather than dropping the fact.
	if decision.Text == "" {
		decision.Text = candidate.Text
	}
	if len(decision.Categories) == 0 {
		decision.Categories = candidate.Categories
	}

	if err := decision.Validate(); err != nil {
		return nil, err
	}
	return decision, nil
}

// negationMarkers suggest a fact that retires an existing memory
// without replacing it.
var negationMarkers = []string{
	"no longer",
	"not anymore",
	"stopped",
	"quit",
	"gave up",
	"don't",
	"doesn't",
}

// RuleOracle is a deterministic fallback for offline operation. It only
// sees the two texts, so its judgment is coarse: identical texts are a
// NOOP, negations supersede, same-category facts update, anything else
// is added.
type RuleOracle struct{}

func NewRuleOracle() *RuleOracle {
	return &RuleOracle{}
}

func (o *RuleOracle) Decide(_ context.Context, candidate model.CandidateFact, existing model.MemoryRecord) (*model.Decision, error) {
	normalize := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(s)), " ")
	}

	if normalize(candidate.Text) == normalize(existing.Text) {
		return &model.Decision{Action: model.ActionNoop}, nil
	}

	lower := strings.ToLower(candidate.Text)
	for _, marker := range negationMarkers {
		if strings.Contains(lower, marker) {
			return &model.Decision{Action: model.ActionSupersede}, nil
		}
	}

	for _, c := range candidate.Categories {
		for _, e := range existing.Categories {
			if c == e {
				return &model.Decision{
					Action:     model.ActionUpdate,
					Text:       candidate.Text,
					Categories: candidate.Categories,
				}, nil
			}
		}
	}

	return &model.Decision{
		Action:     model.ActionAdd,
		Text:       candidate.Text,
		Categories: candidate.Categories,
	}, nil
}
