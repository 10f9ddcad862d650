package tools

import (
	"context"
	"encoding/json"

	"github.com/trialq/trialq/trials"
)

type GetTrialLocationsArgs struct {
	Condition string `json:"condition"`
	Country   string `json:"country"`
}

type GetTrialLocations struct {
	Client *trials.Client
}

func (GetTrialLocations) Name() string { return "get_trial_locations" }
func (GetTrialLocations) Description() string {
	return "Get locations and facilities running clinical trials for a condition. Use this when users ask about trial sites, locations, or which hospitals/centers are conducting trials."
}
func (GetTrialLocations) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"condition": map[string]any{
				"type":        "string",
				"description": "The medical condition",
			},
			"country": map[string]any{
				"type":        "string",
				"description": "Optional country name to filter by (e.g., 'Spain', 'France', 'Germany')",
			},
		},
		"required": []string{"condition"},
	}
}
func (t GetTrialLocations) Call(ctx context.Context, raw json.RawMessage) (string, error) {
	var a GetTrialLocationsArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return "", err
	}
	summary, err := t.Client.Locations(ctx, a.Condition, a.Country)
	return marshalSummary(summary, err)
}
