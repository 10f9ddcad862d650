package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/trialq/trialq/config"
	"github.com/trialq/trialq/tools"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/openai/openai-go/v2"
)

const systemPrompt = `You are a clinical trials research assistant. You help pharmaceutical researchers find information about clinical trials using the ClinicalTrials.gov database. Answer questions clearly and cite specific data when available.`

type ToolCallMsg struct{ Content string }
type ToolResultMsg struct{ Content string }
type FinalResultMsg struct{ Content string }
type TokenUsageMsg struct{ Tokens int }
type ErrMsg struct{ Err error }

type Agent struct {
	config        *config.Config
	client        *openai.Client
	toolsRegistry *tools.Registry
	tokens        atomic.Int64
}

// New wires an agent from an already constructed completion client; the
// caller owns the client's lifecycle. Each Ask builds its own
// conversation, nothing carries over between questions, so one Agent
// may serve concurrent questions.
func New(client *openai.Client, tr *tools.Registry, cfg *config.Config) *Agent {
	return &Agent{
		config:        cfg,
		client:        client,
		toolsRegistry: tr,
	}
}

// TokenUsage returns the total tokens consumed across all questions.
func (a *Agent) TokenUsage() int {
	return int(a.tokens.Load())
}

func (a *Agent) completion(ctx context.Context, memory []openai.ChatCompletionMessageParamUnion, withTools bool) (*openai.ChatCompletion, error) {
	params := openai.ChatCompletionNewParams{
		Messages:  memory,
		Model:     a.config.ApiModel,
		MaxTokens: openai.Int(int64(a.config.LLMMaxTokens)),
	}
	if withTools {
		params.Tools = a.toolsRegistry.Tools()
	}
	return a.client.Chat.Completions.New(ctx, params)
}

// Ask answers one user question. The model first decides which registry
// tools to call; the chosen calls run sequentially in the order the
// model returned them, and a closing completion without tools turns the
// results into prose. If the model never asks for a tool, its first
// answer is returned after a single completion call.
func (a *Agent) Ask(ctx context.Context, question string) (string, error) {
	return a.ask(ctx, question, nil)
}

// Start runs Ask and streams progress to msgCh for the TUI.
func (a *Agent) Start(ctx context.Context, question string, msgCh chan<- tea.Msg) {
	answer, err := a.ask(ctx, question, msgCh)
	if err != nil {
		log.Printf("agent error: %v", err)
		msgCh <- ErrMsg{Err: err}
		return
	}
	msgCh <- FinalResultMsg{Content: answer}
}

func (a *Agent) ask(ctx context.Context, question string, msgCh chan<- tea.Msg) (string, error) {
	memory := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(question),
	}

	completion, err := a.completion(ctx, memory, true)
	if err != nil {
		return "", err
	}
	if completion == nil || len(completion.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	a.recordUsage(completion, msgCh)

	assistantMsg := completion.Choices[0].Message
	if len(assistantMsg.ToolCalls) == 0 {
		return assistantMsg.Content, nil
	}

	memory = append(memory, assistantMsg.ToParam())

	for _, toolCall := range assistantMsg.ToolCalls {
		toolName := toolCall.Function.Name
		toolArgs := toolCall.Function.Arguments

		a.notify(msgCh, ToolCallMsg{Content: fmt.Sprintf("%s(%s)", toolName, toolArgs)})

		tool, ok := a.toolsRegistry.Get(toolName)
		if !ok {
			return "", fmt.Errorf("unknown tool: %s", toolName)
		}

		resp, err := tool.Call(ctx, json.RawMessage(toolArgs))
		if err != nil {
			return "", fmt.Errorf("tool %s: %w", toolName, err)
		}

		a.notify(msgCh, ToolResultMsg{Content: resp})
		memory = append(memory, openai.ToolMessage(resp, toolCall.ID))
	}

	final, err := a.completion(ctx, memory, false)
	if err != nil {
		return "", err
	}
	if final == nil || len(final.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	a.recordUsage(final, msgCh)

	return final.Choices[0].Message.Content, nil
}

func (a *Agent) recordUsage(completion *openai.ChatCompletion, msgCh chan<- tea.Msg) {
	total := a.tokens.Add(completion.Usage.TotalTokens)
	a.notify(msgCh, TokenUsageMsg{Tokens: int(total)})
}

func (a *Agent) notify(msgCh chan<- tea.Msg, msg tea.Msg) {
	if msgCh != nil {
		msgCh <- msg
	}
}
