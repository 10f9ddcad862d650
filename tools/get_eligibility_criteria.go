package tools

import (
	"context"
	"encoding/json"

	"github.com/trialq/trialq/trials"
)

type GetEligibilityCriteriaArgs struct {
	Condition string `json:"condition"`
	MaxTrials int    `json:"max_trials"`
}

type GetEligibilityCriteria struct {
	Client *trials.Client
}

func (GetEligibilityCriteria) Name() string { return "get_eligibility_criteria" }
func (GetEligibilityCriteria) Description() string {
	return "Get eligibility criteria for clinical trials of a specific condition. Use this when users ask about eligibility, inclusion/exclusion criteria, or who can participate."
}
func (GetEligibilityCriteria) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"condition": map[string]any{
				"type":        "string",
				"description": "The medical condition",
			},
			"max_trials": map[string]any{
				"type":        "integer",
				"description": "Maximum number of trials to analyze",
				"default":     5,
			},
		},
		"required": []string{"condition"},
	}
}
func (t GetEligibilityCriteria) Call(ctx context.Context, raw json.RawMessage) (string, error) {
	var a GetEligibilityCriteriaArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return "", err
	}
	summary, err := t.Client.EligibilityCriteria(ctx, a.Condition, a.MaxTrials)
	return marshalSummary(summary, err)
}
