package expr

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/oliveagle/jsonpath"
	"github.com/superflowai/superflow/flow"
	"github.com/superflowai/superflow/variable"
)

var placeholderRe = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// ReplacePlaceholders resolves every {{...}} placeholder in text to its
// string form. Placeholders reference session/input variables by name,
// system values as sys.<key>, or node outputs as nodeId.path. Unresolvable
// references render an inline diagnostic instead of failing the run; only an
// unknown sys key or a broken variable default is an error.
func ReplacePlaceholders(ctx context.Context, scope *flow.Scope, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	matches := placeholderRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}
	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(text[last:m[0]])
		content := strings.TrimSpace(text[m[2]:m[3]])
		value, err := resolvePlaceholder(ctx, scope, content)
		if err != nil {
			return "", fmt.Errorf("resolving placeholder {{%s}}: %w", content, err)
		}
		sb.WriteString(value)
		last = m[1]
	}
	sb.WriteString(text[last:])
	return sb.String(), nil
}

func resolvePlaceholder(ctx context.Context, scope *flow.Scope, content string) (string, error) {
	if isSysRef(content) {
		v, err := ResolveSystemValue(content, scope.Run)
		if err != nil {
			return "", err
		}
		if v == nil {
			return fmt.Sprintf("[系统变量未找到: %s]", content), nil
		}
		return variable.Stringify(v), nil
	}
	if strings.Contains(content, ".") {
		return resolveNodeOutput(ctx, scope, content)
	}
	return resolveVariableString(content, scope.Run)
}

func isSysRef(content string) bool {
	return len(content) > 4 && strings.EqualFold(content[:4], "sys.")
}

// ResolveSystemValue resolves a sys.<key> reference to its raw value. The key
// set is closed; an unknown key is a configuration error, not a diagnostic.
func ResolveSystemValue(name string, run *flow.RunContext) (any, error) {
	switch name[4:] {
	case "query":
		return run.Query, nil
	case "user":
		return run.User, nil
	case "flowId":
		return run.FlowId, nil
	case "flowInstanceId":
		return run.FlowInstanceId, nil
	case "dialogueCount":
		return run.DialogueCount, nil
	case "conversationId":
		return run.ConversationId, nil
	case "files":
		if run.Files == nil {
			return nil, nil
		}
		return run.Files, nil
	default:
		return nil, fmt.Errorf("can not resolve system variable: %s", name)
	}
}

func resolveVariableString(name string, run *flow.RunContext) (string, error) {
	v := run.LookupVariable(name)
	if v == nil {
		return fmt.Sprintf("[变量未找到: %s]", name), nil
	}
	typed, err := v.GetTypedValue()
	if err != nil {
		return "", err
	}
	if typed == nil {
		return fmt.Sprintf("[变量未找到: %s]", name), nil
	}
	return variable.Stringify(typed), nil
}

// resolveNodeOutput resolves a nodeId.path reference to its string form. A
// reply node referencing an LLM node re-emits the placeholder untouched so
// the reply can forward the stream chunk by chunk instead of draining it.
func resolveNodeOutput(ctx context.Context, scope *flow.Scope, content string) (string, error) {
	parts := strings.SplitN(content, ".", 2)
	if len(parts) < 2 {
		return fmt.Sprintf("[node reference format error: %s]", content), nil
	}
	nodeId := strings.TrimSpace(parts[0])
	path := strings.TrimSpace(parts[1])

	target := scope.Run.Definition.NodeById(nodeId)
	if target == nil {
		return fmt.Sprintf("[node not found: %s]", nodeId), nil
	}
	if scope.Current != nil && scope.Current.GetType() == flow.KindReply && target.GetType() == flow.KindLLM {
		return "{{" + content + "}}", nil
	}
	result, ok := scope.Results.Get(nodeId)
	if !ok {
		return fmt.Sprintf("[node not executed: %s]", nodeId), nil
	}
	if result.Streaming != nil {
		return result.Materialize(ctx)
	}
	return extractStringByPath(result.Result, path), nil
}

// ResolveRawValue resolves a placeholder body to its raw value, for script
// injection. Missing references yield nil rather than a diagnostic string.
func ResolveRawValue(ctx context.Context, scope *flow.Scope, content string) (any, error) {
	if isSysRef(content) {
		return ResolveSystemValue(content, scope.Run)
	}
	if strings.Contains(content, ".") {
		parts := strings.SplitN(content, ".", 2)
		result, ok := scope.Results.Get(strings.TrimSpace(parts[0]))
		if !ok {
			return nil, nil
		}
		if result.Streaming != nil {
			return result.Materialize(ctx)
		}
		return ExtractRawByPath(result.Result, strings.TrimSpace(parts[1])), nil
	}
	v := scope.Run.LookupVariable(content)
	if v == nil {
		return nil, nil
	}
	return v.GetTypedValue()
}

// extractStringByPath walks a dotted path through a JSON view of source,
// rendering each failure as an inline diagnostic.
func extractStringByPath(source any, path string) string {
	if source == nil {
		return ""
	}
	current, err := toJSONTree(source)
	if err != nil {
		return fmt.Sprintf("[json path parse error: %v]", err)
	}
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return fmt.Sprintf("[property not found: %s]", part)
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil {
				return fmt.Sprintf("[property not found: %s]", part)
			}
			if idx < 0 || idx >= len(node) {
				return fmt.Sprintf("[array index out of bounds: %s]", part)
			}
			current = node[idx]
		default:
			return fmt.Sprintf("[property not found: %s]", part)
		}
	}
	if s, ok := current.(string); ok {
		return s
	}
	return variable.Stringify(current)
}

// ExtractRawByPath extracts a raw value from a JSON view of source by dotted
// path, nil when the path does not resolve.
func ExtractRawByPath(source any, path string) any {
	if source == nil {
		return nil
	}
	tree, err := toJSONTree(source)
	if err != nil {
		return nil
	}
	v, err := jsonpath.JsonPathLookup(tree, buildJsonPathQuery(path))
	if err != nil {
		return nil
	}
	return v
}

// buildJsonPathQuery converts a dotted path like "choices.0.text" to the
// JSONPath form "$.choices[0].text".
func buildJsonPathQuery(path string) string {
	var sb strings.Builder
	sb.WriteString("$")
	for _, part := range strings.Split(path, ".") {
		if _, err := strconv.Atoi(part); err == nil {
			sb.WriteString("[" + part + "]")
		} else {
			sb.WriteString("." + part)
		}
	}
	return sb.String()
}

func toJSONTree(source any) (any, error) {
	data, err := json.Marshal(source)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}
