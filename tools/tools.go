package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"

	"github.com/trialq/trialq/trials"
)

type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any
	Call(ctx context.Context, raw json.RawMessage) (string, error)
}

type Registry struct{ m map[string]Tool }

// NewRegistry builds the tool catalog and cross-checks each tool's
// declared schema so a name collision or a required property the schema
// never declares fails at startup instead of at call time.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{m: map[string]Tool{}}
	for _, t := range tools {
		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("tool %T has an empty name", t)
		}
		if _, exists := r.m[name]; exists {
			return nil, fmt.Errorf("duplicate tool name %q", name)
		}
		if err := checkSchema(t.Schema()); err != nil {
			return nil, fmt.Errorf("tool %q: %w", name, err)
		}
		r.m[name] = t
	}
	return r, nil
}

func checkSchema(schema map[string]any) error {
	properties, _ := schema["properties"].(map[string]any)
	for _, name := range requiredNames(schema["required"]) {
		if _, ok := properties[name]; !ok {
			return fmt.Errorf("required property %q not declared in schema", name)
		}
	}
	return nil
}

// requiredNames accepts the two shapes a hand-written schema ends up
// with, []string and []any.
func requiredNames(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		names := make([]string, 0, len(req))
		for _, entry := range req {
			if name, ok := entry.(string); ok {
				names = append(names, name)
			}
		}
		return names
	}
	return nil
}

func (r *Registry) Get(name string) (Tool, bool) { t, ok := r.m[name]; return t, ok }

func (r *Registry) Tools() []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(r.m))
	for _, t := range r.m {
		out = append(out, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name(),
					Description: openai.String(t.Description()),
					Parameters:  t.Schema(),
				},
			},
		})
	}
	return out
}

type errorResult struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// marshalSummary renders a registry summary for the model. A registry
// status error becomes a readable error payload rather than a failed
// tool call; every other error is returned as-is.
func marshalSummary(v any, err error) (string, error) {
	var statusErr *trials.StatusError
	if errors.As(err, &statusErr) {
		out, merr := json.Marshal(errorResult{
			Error:  fmt.Sprintf("API error: %d", statusErr.Code),
			Status: statusErr.Code,
		})
		if merr != nil {
			return "", merr
		}
		return string(out), nil
	}
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
