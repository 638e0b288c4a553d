package adapter_test

import (
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/adapter"
	"google.golang.org/genai"
)

func TestSchemaToGenai(t *testing.T) {
	schema := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"action": {
				Type:        "string",
				Description: "What to do",
				Enum:        []any{"ADD", "NOOP"},
			},
			"categories": {
				Type:  "array",
				Items: &jsonschema.Schema{Type: "string"},
			},
			"score": {Type: "number"},
			"valid": {Type: "boolean"},
		},
		Required: []string{"action"},
	}

	converted, err := adapter.SchemaToGenai(schema)
	gt.NoError(t, err)
	gt.Equal(t, converted.Type, genai.TypeObject)
	gt.Equal(t, converted.Required, []string{"action"})

	action := converted.Properties["action"]
	gt.V(t, action).NotNil()
	gt.Equal(t, action.Type, genai.TypeString)
	gt.Equal(t, action.Description, "What to do")
	gt.Equal(t, action.Enum, []string{"ADD", "NOOP"})

	categories := converted.Properties["categories"]
	gt.Equal(t, categories.Type, genai.TypeArray)
	gt.Equal(t, categories.Items.Type, genai.TypeString)

	gt.Equal(t, converted.Properties["score"].Type, genai.TypeNumber)
	gt.Equal(t, converted.Properties["valid"].Type, genai.TypeBoolean)
}

func TestSchemaToGenaiNil(t *testing.T) {
	converted, err := adapter.SchemaToGenai(nil)
	gt.NoError(t, err)
	gt.Nil(t, converted)
}

func TestSchemaToGenaiUnsupportedType(t *testing.T) {
	_, err := adapter.SchemaToGenai(&jsonschema.Schema{Type: "null"})
	gt.Error(t, err)
}
