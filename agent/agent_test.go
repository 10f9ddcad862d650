package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/trialq/trialq/config"
	"github.com/trialq/trialq/tools"
	"github.com/trialq/trialq/trials"
)

func testConfig() *config.Config {
	return &config.Config{
		ApiModel:     "test-model",
		LLMMaxTokens: 256,
	}
}

func textCompletion(text string) string {
	msg, _ := json.Marshal(text)
	return fmt.Sprintf(`{
		"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"test-model",
		"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":%s}}],
		"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}
	}`, msg)
}

func toolCallCompletion(calls ...[2]string) string {
	toolCalls := ""
	for i, call := range calls {
		if i > 0 {
			toolCalls += ","
		}
		args, _ := json.Marshal(call[1])
		toolCalls += fmt.Sprintf(`{"id":"call_%d","type":"function","function":{"name":"%s","arguments":%s}}`, i+1, call[0], args)
	}
	return fmt.Sprintf(`{
		"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"test-model",
		"choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":"","tool_calls":[%s]}}],
		"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}
	}`, toolCalls)
}

type completionRequest struct {
	Tools    []json.RawMessage `json:"tools"`
	Messages []struct {
		Role       string `json:"role"`
		ToolCallID string `json:"tool_call_id"`
	} `json:"messages"`
}

// fakeCompletionServer answers the i-th completion request with
// responses[i] and records every decoded request body.
func fakeCompletionServer(t *testing.T, responses []string) (*openai.Client, *[]completionRequest) {
	t.Helper()
	var mu sync.Mutex
	var calls atomic.Int32
	requests := &[]completionRequest{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding completion request: %v", err)
		}
		mu.Lock()
		*requests = append(*requests, req)
		mu.Unlock()

		n := int(calls.Add(1)) - 1
		if n >= len(responses) {
			t.Errorf("unexpected completion call #%d", n+1)
			http.Error(w, "too many calls", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(responses[n]))
	}))
	t.Cleanup(srv.Close)

	client := openai.NewClient(option.WithAPIKey("test"), option.WithBaseURL(srv.URL))
	return &client, requests
}

func testRegistry(t *testing.T, registryHits *atomic.Int32) *tools.Registry {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if registryHits != nil {
			registryHits.Add(1)
		}
		_, _ = w.Write([]byte(`{"studies":[{"protocolSection":{"identificationModule":{"briefTitle":"T"}}}]}`))
	}))
	t.Cleanup(srv.Close)

	client := trials.New(trials.Config{BaseURL: srv.URL, HTTPClient: srv.Client()})
	reg, err := tools.NewRegistry(
		tools.CountTrials{Client: client},
		tools.GetEligibilityCriteria{Client: client},
		tools.GetTrialLocations{Client: client},
		tools.GetTrialPhases{Client: client},
	)
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	return reg
}

func TestAskWithoutToolCalls(t *testing.T) {
	client, requests := fakeCompletionServer(t, []string{textCompletion("Diabetes is a chronic condition.")})
	ag := New(client, testRegistry(t, nil), testConfig())

	answer, err := ag.Ask(context.Background(), "What is diabetes?")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer != "Diabetes is a chronic condition." {
		t.Errorf("answer = %q", answer)
	}
	if len(*requests) != 1 {
		t.Errorf("completion calls = %d, want 1", len(*requests))
	}
	if len((*requests)[0].Tools) == 0 {
		t.Error("first completion should carry the tool catalog")
	}
}

func TestAskExecutesToolCallsInOrder(t *testing.T) {
	client, requests := fakeCompletionServer(t, []string{
		toolCallCompletion(
			[2]string{"count_trials", `{"condition":"diabetes","status":"RECRUITING"}`},
			[2]string{"get_trial_phases", `{"condition":"asthma","phase":"PHASE3"}`},
		),
		textCompletion("There are trials."),
	})
	var registryHits atomic.Int32
	ag := New(client, testRegistry(t, &registryHits), testConfig())

	answer, err := ag.Ask(context.Background(), "How many trials?")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer != "There are trials." {
		t.Errorf("answer = %q", answer)
	}
	if got := registryHits.Load(); got != 2 {
		t.Errorf("registry calls = %d, want 2", got)
	}
	if len(*requests) != 2 {
		t.Fatalf("completion calls = %d, want 2", len(*requests))
	}

	final := (*requests)[1]
	if len(final.Tools) != 0 {
		t.Error("final completion should not carry tools")
	}
	var toolIDs []string
	for _, m := range final.Messages {
		if m.Role == "tool" {
			toolIDs = append(toolIDs, m.ToolCallID)
		}
	}
	if len(toolIDs) != 2 || toolIDs[0] != "call_1" || toolIDs[1] != "call_2" {
		t.Errorf("tool messages = %v, want [call_1 call_2]", toolIDs)
	}
}

func TestAskConcurrently(t *testing.T) {
	const askers = 4
	responses := make([]string, askers)
	for i := range responses {
		responses[i] = textCompletion("answer")
	}
	client, requests := fakeCompletionServer(t, responses)
	ag := New(client, testRegistry(t, nil), testConfig())

	var wg sync.WaitGroup
	errs := make(chan error, askers)
	for i := 0; i < askers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			answer, err := ag.Ask(context.Background(), "What is diabetes?")
			if err != nil {
				errs <- err
				return
			}
			if answer != "answer" {
				errs <- fmt.Errorf("answer = %q", answer)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	if len(*requests) != askers {
		t.Errorf("completion calls = %d, want %d", len(*requests), askers)
	}
	if got := ag.TokenUsage(); got != askers*15 {
		t.Errorf("token usage = %d, want %d", got, askers*15)
	}
}

func TestAskFailsOnUnknownTool(t *testing.T) {
	client, _ := fakeCompletionServer(t, []string{
		toolCallCompletion([2]string{"drop_database", `{}`}),
	})
	ag := New(client, testRegistry(t, nil), testConfig())

	if _, err := ag.Ask(context.Background(), "Do something odd"); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestAskFailsOnMalformedArguments(t *testing.T) {
	client, _ := fakeCompletionServer(t, []string{
		toolCallCompletion([2]string{"count_trials", `{not json`}),
	})
	ag := New(client, testRegistry(t, nil), testConfig())

	if _, err := ag.Ask(context.Background(), "How many trials?"); err == nil {
		t.Fatal("expected error for malformed arguments")
	}
}

func TestAskPropagatesCompletionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)
	client := openai.NewClient(option.WithAPIKey("test"), option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	ag := New(&client, testRegistry(t, nil), testConfig())
	if _, err := ag.Ask(context.Background(), "anything"); err == nil {
		t.Fatal("expected completion failure to propagate")
	}
}

func TestStartReportsResultOnChannel(t *testing.T) {
	client, _ := fakeCompletionServer(t, []string{textCompletion("final answer")})
	ag := New(client, testRegistry(t, nil), testConfig())

	msgCh := make(chan tea.Msg, 16)
	ag.Start(context.Background(), "hello", msgCh)
	close(msgCh)

	var final *FinalResultMsg
	for msg := range msgCh {
		if m, ok := msg.(FinalResultMsg); ok {
			final = &m
		}
	}
	if final == nil || final.Content != "final answer" {
		t.Fatalf("expected FinalResultMsg with answer, got %+v", final)
	}
}
