package model_test

import (
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/model"
)

func TestParseAction(t *testing.T) {
	testCases := []struct {
		raw      string
		expected model.Action
	}{
		{"ADD", model.ActionAdd},
		{"update", model.ActionUpdate},
		{" SUPERSEDE ", model.ActionSupersede},
		{"noop", model.ActionNoop},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			action, err := model.ParseAction(tc.raw)
			gt.NoError(t, err)
			gt.Equal(t, action, tc.expected)
		})
	}
}

func TestParseActionUnknownLabel(t *testing.T) {
	for _, raw := range []string{"", "DELETE", "MERGE", "add facts"} {
		t.Run(raw, func(t *testing.T) {
			_, err := model.ParseAction(raw)
			gt.Error(t, err)
			gt.True(t, goerr.HasTag(err, model.TagOracleIndeterminate))
		})
	}
}

func TestDecisionValidate(t *testing.T) {
	t.Run("add requires text", func(t *testing.T) {
		d := &model.Decision{Action: model.ActionAdd}
		gt.Error(t, d.Validate())

		d.Text = "I live in Delhi"
		gt.NoError(t, d.Validate())
	})

	t.Run("update requires text", func(t *testing.T) {
		d := &model.Decision{Action: model.ActionUpdate}
		gt.Error(t, d.Validate())
	})

	t.Run("supersede and noop need no text", func(t *testing.T) {
		gt.NoError(t, (&model.Decision{Action: model.ActionSupersede}).Validate())
		gt.NoError(t, (&model.Decision{Action: model.ActionNoop}).Validate())
	})
}
