package node

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/superflowai/superflow/expr"
	"github.com/superflowai/superflow/flow"
	"github.com/superflowai/superflow/llm"
	"github.com/superflowai/superflow/model"
	"github.com/superflowai/superflow/variable"
)

// LLMNode calls a chat completion model. ModelSelection is
// "platform name|model name" against the configured provider records. The
// provider call itself is deferred: Execute validates and builds the message
// list, and the returned result carries a stream that performs the call when
// first driven.
type LLMNode struct {
	baseNode
	ModelSelection string                       `json:"modelSelection"`
	Temperature    float64                      `json:"temperature"`
	SystemPrompt   *expr.FullTextExpressionUnit `json:"systemPrompt"`
	UserPrompt     *expr.FullTextExpressionUnit `json:"userPrompt"`
	MemoryEnabled  bool                         `json:"memoryEnabled"`
	MemoryRounds   int                          `json:"memoryRounds"`
	EnableThinking bool                         `json:"enableThinking"`
	Pictures       *expr.JSExpressionUnit       `json:"pictures,omitempty"`
}

func (n *LLMNode) UnmarshalJSON(data []byte) error {
	type alias LLMNode
	aux := alias{Temperature: 0.7, MemoryRounds: 5}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*n = LLMNode(aux)
	return nil
}

func (n *LLMNode) GetType() flow.Kind { return flow.KindLLM }

func (n *LLMNode) Execute(ctx context.Context, scope *flow.Scope) (*flow.NodeExecuteResult, error) {
	if n.promptText(n.SystemPrompt) == "" && n.promptText(n.UserPrompt) == "" {
		return flow.Failure(n.Id, "system prompt and user prompt cannot both be empty"), nil
	}
	if strings.TrimSpace(n.ModelSelection) == "" {
		return flow.Failure(n.Id, "model selection is required"), nil
	}
	parts := strings.Split(n.ModelSelection, "|")
	if len(parts) != 2 {
		return flow.Failure(n.Id, fmt.Sprintf("model selection format error, should be 'platform name|model name', current value: %s", n.ModelSelection)), nil
	}
	platformName := strings.TrimSpace(parts[0])
	modelName := strings.TrimSpace(parts[1])
	if platformName == "" || modelName == "" {
		return flow.Failure(n.Id, "platform name or model name cannot be empty"), nil
	}

	provider, err := findProvider(ctx, scope.Run, platformName)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return flow.Failure(n.Id, fmt.Sprintf("platform '%s' configuration not found, please configure in the background", platformName)), nil
	}
	if !containsModel(provider.Models, modelName) {
		supported := "no"
		if len(provider.Models) > 0 {
			supported = strings.Join(provider.Models, ", ")
		}
		return flow.Failure(n.Id, fmt.Sprintf("platform '%s' does not support model '%s', supported models: %s", platformName, modelName, supported)), nil
	}

	messages, err := n.buildMessages(ctx, scope)
	if err != nil {
		return flow.Failure(n.Id, fmt.Sprintf("llm node execute failed: %v", err)), nil
	}

	run := scope.Run
	req := llm.Request{
		APIUrl:         provider.APIUrl,
		APIKey:         provider.APIKey,
		Model:          modelName,
		Messages:       messages,
		Temperature:    n.Temperature,
		EnableThinking: n.EnableThinking,
	}
	stream := func(ctx context.Context, emit func(chunk string) error) error {
		adapter, err := run.Adapters.Resolve(platformName)
		if err != nil {
			return err
		}
		usage, err := adapter.CallStreaming(ctx, req, emit)
		run.Usage.Add(usage)
		return err
	}

	metadata := map[string]any{
		"platform":      platformName,
		"model":         modelName,
		"temperature":   n.Temperature,
		"memoryEnabled": n.MemoryEnabled,
	}
	return flow.SuccessStreaming(n.Id, metadata, stream), nil
}

func (n *LLMNode) promptText(unit *expr.FullTextExpressionUnit) string {
	if unit == nil {
		return ""
	}
	return strings.TrimSpace(unit.Text)
}

// buildMessages assembles the request message list: system prompt, recent
// conversation history when memory is enabled, then the user prompt, possibly
// as multi-part content when the node attaches pictures.
func (n *LLMNode) buildMessages(ctx context.Context, scope *flow.Scope) ([]model.LLMMessage, error) {
	var messages []model.LLMMessage

	if n.promptText(n.SystemPrompt) != "" {
		systemPrompt, err := expr.ComputeValueAs[string](ctx, scope, n.SystemPrompt)
		if err != nil {
			return nil, err
		}
		messages = append(messages, model.LLMMessage{Role: model.RoleSystem, Content: systemPrompt})
	}

	if n.MemoryEnabled && n.MemoryRounds > 0 && scope.Run.Store != nil {
		history, err := scope.Run.Store.LatestMessages(ctx, scope.Run.ConversationId, int64(n.MemoryRounds))
		if err != nil {
			return nil, err
		}
		// newest first in storage, oldest first in the prompt
		for i := len(history) - 1; i >= 0; i-- {
			messages = append(messages,
				model.LLMMessage{Role: model.RoleUser, Content: history[i].Question},
				model.LLMMessage{Role: model.RoleAssistant, Content: history[i].Answer},
			)
		}
	}

	if n.promptText(n.UserPrompt) != "" {
		userPrompt, err := expr.ComputeValueAs[string](ctx, scope, n.UserPrompt)
		if err != nil {
			return nil, err
		}
		content, err := n.buildUserContent(ctx, scope, userPrompt)
		if err != nil {
			return nil, err
		}
		messages = append(messages, model.LLMMessage{Role: model.RoleUser, Content: content})
	}
	return messages, nil
}

func (n *LLMNode) buildUserContent(ctx context.Context, scope *flow.Scope, userPrompt string) (any, error) {
	if n.Pictures == nil || strings.TrimSpace(n.Pictures.ExpressionCode) == "" {
		return userPrompt, nil
	}
	pictures, err := n.Pictures.ComputeValue(ctx, scope)
	if err != nil {
		return nil, err
	}
	if pictures == nil {
		return userPrompt, nil
	}
	items, ok := pictures.([]any)
	if !ok {
		return nil, fmt.Errorf("pictures must be array")
	}
	content := make([]any, 0, len(items)+1)
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("pictures must be array")
		}
		url := variable.Stringify(obj["url"])
		content = append(content, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": url},
		})
	}
	content = append(content, map[string]any{"type": "text", "text": userPrompt})
	return content, nil
}

func findProvider(ctx context.Context, run *flow.RunContext, platformName string) (*model.LLMProvider, error) {
	providers, err := run.Store.ListProviders(ctx)
	if err != nil {
		return nil, err
	}
	for i := range providers {
		if providers[i].PlatformName == platformName {
			return &providers[i], nil
		}
	}
	return nil, nil
}

func containsModel(models []string, name string) bool {
	for _, m := range models {
		if m == name {
			return true
		}
	}
	return false
}
