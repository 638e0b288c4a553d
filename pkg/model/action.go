package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Action is the committed outcome of reconciling one candidate fact.
type Action string

const (
	// ActionAdd creates a new current record.
	ActionAdd Action = "ADD"
	// ActionUpdate supersedes the related record and creates a replacement.
	ActionUpdate Action = "UPDATE"
	// ActionSupersede marks the related record superseded without a replacement.
	ActionSupersede Action = "SUPERSEDE"
	// ActionNoop leaves the store unchanged.
	ActionNoop Action = "NOOP"
)

// Validate checks if the action is one of the four known labels.
func (a Action) Validate() error {
	switch a {
	case ActionAdd, ActionUpdate, ActionSupersede, ActionNoop:
		return nil
	default:
		return goerr.New("unknown action label", goerr.V("action", a), goerr.T(TagOracleIndeterminate))
	}
}

// ParseAction normalizes a raw oracle label into an Action. Unknown labels
// are rejected with TagOracleIndeterminate so callers can fall back to NOOP.
func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(raw)))
	if err := a.Validate(); err != nil {
		return "", err
	}
	return a, nil
}

// Decision is the output of the reconciliation oracle for one candidate
// fact against its most similar current memory.
type Decision struct {
	Action Action
	// Text is the normalized statement to store. Required for ADD/UPDATE.
	Text string
	// Categories optionally overrides the candidate's categories.
	Categories []string
}

// Validate checks the decision carries everything needed to act on it.
func (d *Decision) Validate() error {
	if err := d.Action.Validate(); err != nil {
		return err
	}
	switch d.Action {
	case ActionAdd, ActionUpdate:
		if d.Text == "" {
			return goerr.New("decision without text to store",
				goerr.V("action", d.Action), goerr.T(TagOracleIndeterminate))
		}
	}
	return nil
}
