package expr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/superflowai/superflow/config"
	"github.com/superflowai/superflow/flow"
	"github.com/superflowai/superflow/variable"
)

type stubNode struct {
	id   string
	kind flow.Kind
}

func (s *stubNode) GetId() string       { return s.id }
func (s *stubNode) GetName() string     { return s.id }
func (s *stubNode) GetType() flow.Kind  { return s.kind }
func (s *stubNode) Execute(ctx context.Context, scope *flow.Scope) (*flow.NodeExecuteResult, error) {
	return nil, nil
}
func (s *stubNode) GetNextEdge(ctx context.Context, scope *flow.Scope) (*flow.Edge, error) {
	return nil, nil
}

func mustVariable(t *testing.T, def string, value any) variable.Variable {
	t.Helper()
	v, err := variable.Decode([]byte(def))
	require.NoError(t, err)
	if value != nil {
		ok, reason := v.SetValue(value)
		require.True(t, ok, reason)
	}
	return v
}

func newTestScope(t *testing.T) *flow.Scope {
	t.Helper()
	run := &flow.RunContext{
		FlowId:         42,
		FlowInstanceId: "fi-1",
		User:           "alice",
		Query:          "hello there",
		ConversationId: "conv-1",
		DialogueCount:  3,
		Definition: &flow.Definition{
			Nodes: []flow.Node{
				&stubNode{id: "llm1", kind: flow.KindLLM},
				&stubNode{id: "http1", kind: flow.KindHttp},
			},
		},
		SessionVariables: []variable.Variable{
			mustVariable(t, `{"typeName":"StringVariable","name":"city"}`, "shanghai"),
			mustVariable(t, `{"typeName":"LongVariable","name":"a"}`, 1),
			mustVariable(t, `{"typeName":"LongVariable","name":"b"}`, 2),
		},
	}
	return &flow.Scope{Run: run, Results: flow.NewResultCache()}
}

func TestReplacePlaceholdersVariablesAndSys(t *testing.T) {
	scope := newTestScope(t)
	ctx := context.Background()

	out, err := ReplacePlaceholders(ctx, scope, "user={{sys.user}} q={{sys.query}} n={{sys.dialogueCount}} city={{CITY}}")
	require.NoError(t, err)
	assert.Equal(t, "user=alice q=hello there n=3 city=shanghai", out)
}

func TestReplacePlaceholdersDiagnostics(t *testing.T) {
	scope := newTestScope(t)
	ctx := context.Background()

	out, err := ReplacePlaceholders(ctx, scope, "{{missing}}")
	require.NoError(t, err)
	assert.Equal(t, "[变量未找到: missing]", out)

	out, err = ReplacePlaceholders(ctx, scope, "{{sys.files}}")
	require.NoError(t, err)
	assert.Equal(t, "[系统变量未找到: sys.files]", out)

	out, err = ReplacePlaceholders(ctx, scope, "{{ghost.response}}")
	require.NoError(t, err)
	assert.Equal(t, "[node not found: ghost]", out)

	out, err = ReplacePlaceholders(ctx, scope, "{{http1.response}}")
	require.NoError(t, err)
	assert.Equal(t, "[node not executed: http1]", out)

	_, err = ReplacePlaceholders(ctx, scope, "{{sys.nope}}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can not resolve system variable")
}

func TestReplacePlaceholdersNodeOutputPath(t *testing.T) {
	scope := newTestScope(t)
	ctx := context.Background()
	scope.Results.Put(flow.Success("http1", map[string]any{
		"response": map[string]any{
			"items": []any{map[string]any{"name": "first"}},
			"count": 2,
		},
	}))

	out, err := ReplacePlaceholders(ctx, scope, "{{http1.response.items.0.name}}/{{http1.response.count}}")
	require.NoError(t, err)
	assert.Equal(t, "first/2", out)

	out, err = ReplacePlaceholders(ctx, scope, "{{http1.response.nope}}")
	require.NoError(t, err)
	assert.Equal(t, "[property not found: nope]", out)

	out, err = ReplacePlaceholders(ctx, scope, "{{http1.response.items.5}}")
	require.NoError(t, err)
	assert.Equal(t, "[array index out of bounds: 5]", out)
}

func TestReplyReferencingLLMKeepsPlaceholder(t *testing.T) {
	scope := newTestScope(t)
	scope.Current = &stubNode{id: "reply1", kind: flow.KindReply}
	ctx := context.Background()

	out, err := ReplacePlaceholders(ctx, scope, "answer: {{llm1.response}}")
	require.NoError(t, err)
	assert.Equal(t, "answer: {{llm1.response}}", out)

	// any other current node drains the stream instead
	scope.Current = &stubNode{id: "cond1", kind: flow.KindCondition}
	scope.Results.Put(flow.SuccessStreaming("llm1", nil, func(ctx context.Context, emit func(string) error) error {
		if err := emit("hel"); err != nil {
			return err
		}
		return emit("lo")
	}))
	out, err = ReplacePlaceholders(ctx, scope, "{{llm1.response}}")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestStreamingResultMaterializedOnce(t *testing.T) {
	scope := newTestScope(t)
	ctx := context.Background()
	drives := 0
	scope.Results.Put(flow.SuccessStreaming("llm1", nil, func(ctx context.Context, emit func(string) error) error {
		drives++
		return emit("once")
	}))

	out, err := ReplacePlaceholders(ctx, scope, "{{llm1.response}} and {{llm1.response}}")
	require.NoError(t, err)
	assert.Equal(t, "once and once", out)
	assert.Equal(t, 1, drives)
}

func TestFullTextUnit(t *testing.T) {
	scope := newTestScope(t)
	u, err := Decode([]byte(`{"typeName":"FullTextExpressionUnit","text":"hi {{city}}"}`))
	require.NoError(t, err)
	v, err := u.ComputeValue(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, "hi shanghai", v)

	empty := &FullTextExpressionUnit{Text: "   "}
	v, err = empty.ComputeValue(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestJSExpressionMode(t *testing.T) {
	scope := newTestScope(t)
	u := &JSExpressionUnit{ExpressionCode: "{{a}} + {{b}}"}
	v, err := u.ComputeValue(context.Background(), scope)
	require.NoError(t, err)
	assert.EqualValues(t, 3, v)
}

func TestJSFunctionMode(t *testing.T) {
	scope := newTestScope(t)
	u := &JSExpressionUnit{
		IsFunctionMode: true,
		FunctionCode:   "function main() { return { city: {{city}}, total: {{a}} + {{b}} }; }",
	}
	v, err := u.ComputeValue(context.Background(), scope)
	require.NoError(t, err)
	obj, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "shanghai", obj["city"])
	assert.EqualValues(t, 3, obj["total"])
}

func TestJSNodeOutputIdentifierRewrite(t *testing.T) {
	scope := newTestScope(t)
	scope.Results.Put(flow.Success("http1", map[string]any{"response": map[string]any{"count": 5}}))
	u := &JSExpressionUnit{ExpressionCode: "{{http1.response.count}} * 2"}
	v, err := u.ComputeValue(context.Background(), scope)
	require.NoError(t, err)
	assert.EqualValues(t, 10, v)
}

func TestJSEmptyCode(t *testing.T) {
	scope := newTestScope(t)
	u := &JSExpressionUnit{ExpressionCode: "  "}
	_, err := u.ComputeValue(context.Background(), scope)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "js code is empty")
}

func TestJSTimeout(t *testing.T) {
	scope := newTestScope(t)
	scope.Run.Script = config.ScriptConfig{Timeout: 50 * time.Millisecond}
	u := &JSExpressionUnit{ExpressionCode: "(function(){ while(true){} })()"}
	_, err := u.ComputeValue(context.Background(), scope)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interrupted")
}

func TestComputeValueAs(t *testing.T) {
	scope := newTestScope(t)
	u := &JSExpressionUnit{ExpressionCode: "[{{a}}, {{b}}]"}
	arr, err := ComputeValueAs[[]int64](context.Background(), scope, u)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, arr)

	text, err := ComputeValueAs[string](context.Background(), scope, &FullTextExpressionUnit{Text: "{{a}}"})
	require.NoError(t, err)
	assert.Equal(t, "1", text)
}
