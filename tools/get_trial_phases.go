package tools

import (
	"context"
	"encoding/json"

	"github.com/trialq/trialq/trials"
)

type GetTrialPhasesArgs struct {
	Condition string `json:"condition"`
	Phase     string `json:"phase"`
}

type GetTrialPhases struct {
	Client *trials.Client
}

func (GetTrialPhases) Name() string { return "get_trial_phases" }
func (GetTrialPhases) Description() string {
	return "Get trials for a specific phase. Use this when users ask about Phase 1, 2, 3, or 4 trials, or trial duration by phase."
}
func (GetTrialPhases) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"condition": map[string]any{
				"type":        "string",
				"description": "The medical condition",
			},
			"phase": map[string]any{
				"type":        "string",
				"enum":        []string{"PHASE1", "PHASE2", "PHASE3", "PHASE4"},
				"description": "The trial phase",
			},
		},
		"required": []string{"condition", "phase"},
	}
}
func (t GetTrialPhases) Call(ctx context.Context, raw json.RawMessage) (string, error) {
	var a GetTrialPhasesArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return "", err
	}
	summary, err := t.Client.Phases(ctx, a.Condition, a.Phase)
	return marshalSummary(summary, err)
}
