package node

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/superflowai/superflow/expr"
	"github.com/superflowai/superflow/flow"
	"github.com/superflowai/superflow/variable"
)

var replyPlaceholderRe = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// ReplyNode produces the flow's user-visible answer as a stream. The message
// template is resolved at execute time except for references to LLM nodes,
// which survive as placeholders so driving the reply stream forwards the LLM
// chunks one by one instead of waiting for the full completion.
type ReplyNode struct {
	baseNode
	Message expr.Unit
}

func (n *ReplyNode) UnmarshalJSON(data []byte) error {
	var aux struct {
		Id          string          `json:"id"`
		DisplayName string          `json:"displayName"`
		Description string          `json:"description"`
		Message     json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	n.Id = aux.Id
	n.DisplayName = aux.DisplayName
	n.Description = aux.Description
	if len(aux.Message) > 0 && string(aux.Message) != "null" {
		unit, err := expr.Decode(aux.Message)
		if err != nil {
			return err
		}
		n.Message = unit
	}
	return nil
}

func (n *ReplyNode) GetType() flow.Kind { return flow.KindReply }

func (n *ReplyNode) Execute(ctx context.Context, scope *flow.Scope) (*flow.NodeExecuteResult, error) {
	if n.Message == nil {
		return flow.Failure(n.Id, "reply node execute failed: message is null"), nil
	}
	text, err := expr.ComputeValueAs[string](ctx, scope, n.Message)
	if err != nil {
		return flow.Failure(n.Id, fmt.Sprintf("reply node execute failed: %v", err)), nil
	}

	run := scope.Run
	results := scope.Results
	stream := func(ctx context.Context, emit func(chunk string) error) error {
		return n.streamText(ctx, run, results, text, emit)
	}
	return flow.SuccessStreaming(n.Id, map[string]any{"mode": "streaming"}, stream), nil
}

// streamText emits the resolved message: literal segments as single chunks
// and surviving node references chunk by chunk when their source streams.
func (n *ReplyNode) streamText(ctx context.Context, run *flow.RunContext, results *flow.ResultCache, text string, emit func(chunk string) error) error {
	if text == "" {
		return nil
	}
	last := 0
	for _, m := range replyPlaceholderRe.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			if err := emit(text[last:m[0]]); err != nil {
				return err
			}
		}
		reference := strings.TrimSpace(text[m[2]:m[3]])
		if strings.Contains(reference, ".") {
			if err := n.emitNodeReference(ctx, results, reference, emit); err != nil {
				return err
			}
		} else {
			if value := sessionVariableText(run, reference); value != "" {
				if err := emit(value); err != nil {
					return err
				}
			}
		}
		last = m[1]
	}
	if last < len(text) {
		return emit(text[last:])
	}
	return nil
}

func (n *ReplyNode) emitNodeReference(ctx context.Context, results *flow.ResultCache, reference string, emit func(chunk string) error) error {
	parts := strings.SplitN(reference, ".", 2)
	if len(parts) < 2 {
		return emit(fmt.Sprintf("[reference format error: %s]", reference))
	}
	nodeId := strings.TrimSpace(parts[0])
	path := strings.TrimSpace(parts[1])

	result, ok := results.Get(nodeId)
	if !ok {
		return emit(fmt.Sprintf("[node not found: %s]", nodeId))
	}
	if result.Streaming != nil {
		return result.Stream(ctx, emit)
	}
	if value := quietExtract(result.Result, path); value != "" {
		return emit(value)
	}
	return nil
}

func sessionVariableText(run *flow.RunContext, name string) string {
	v := run.SessionVariable(name)
	if v == nil {
		return ""
	}
	typed, err := v.GetTypedValue()
	if err != nil || typed == nil {
		return ""
	}
	return variable.Stringify(typed)
}

// quietExtract renders a dotted path lookup as text, empty on any failure.
func quietExtract(source any, path string) string {
	value := expr.ExtractRawByPath(source, path)
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return variable.Stringify(value)
}
