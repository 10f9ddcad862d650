package tools

import (
	"context"
	"encoding/json"

	"github.com/trialq/trialq/trials"
)

type CountTrialsArgs struct {
	Condition string `json:"condition"`
	Status    string `json:"status"`
}

type CountTrials struct {
	Client *trials.Client
}

func (CountTrials) Name() string { return "count_trials" }
func (CountTrials) Description() string {
	return "Count the number of clinical trials for a specific medical condition and status. Use this when users ask 'how many trials' or want to know trial counts."
}
func (CountTrials) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"condition": map[string]any{
				"type":        "string",
				"description": "The medical condition or disease (e.g., 'diabetes', 'asthma', 'ulcerative colitis')",
			},
			"status": map[string]any{
				"type":        "string",
				"enum":        []string{"RECRUITING", "COMPLETED", "TERMINATED", "ACTIVE_NOT_RECRUITING"},
				"description": "The trial status",
				"default":     "RECRUITING",
			},
		},
		"required": []string{"condition"},
	}
}
func (t CountTrials) Call(ctx context.Context, raw json.RawMessage) (string, error) {
	var a CountTrialsArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return "", err
	}
	summary, err := t.Client.CountTrials(ctx, a.Condition, a.Status)
	return marshalSummary(summary, err)
}
