package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/superflowai/superflow/expr"
	"github.com/superflowai/superflow/flow"
	"github.com/superflowai/superflow/variable"
)

type stubUnit struct {
	value any
	err   error
	calls int
}

func (s *stubUnit) GetId() string { return "stub" }
func (s *stubUnit) ComputeValue(ctx context.Context, scope *flow.Scope) (any, error) {
	s.calls++
	return s.value, s.err
}

func newScope(def *flow.Definition, vars ...variable.Variable) *flow.Scope {
	return &flow.Scope{
		Run:     &flow.RunContext{Definition: def, SessionVariables: vars},
		Results: flow.NewResultCache(),
	}
}

func mustVar(t *testing.T, def string) variable.Variable {
	t.Helper()
	v, err := variable.Decode([]byte(def))
	require.NoError(t, err)
	return v
}

func TestDecodeDefinition(t *testing.T) {
	config := []byte(`{
		"nodes": [
			{"typeName": "StartNode", "id": "start1"},
			{"typeName": "AssignVariableNode", "id": "assign1", "assignments": [
				{"id": "a1", "targetVariableName": "x", "expressionUnit": {"typeName": "JSExpressionUnit", "expressionCode": "1 + 1"}}
			]},
			{"typeName": "ReplyNode", "id": "reply1", "message": {"typeName": "FullTextExpressionUnit", "text": "{{x}}"}}
		],
		"lines": [
			{"id": "e1", "fromNodeId": "start1", "toNodeId": "assign1"},
			{"id": "e2", "fromNodeId": "assign1", "toNodeId": "reply1"}
		],
		"variables": [
			{"typeName": "LongVariable", "name": "x"}
		],
		"inputParameters": []
	}`)
	def, err := DecodeDefinition(config)
	require.NoError(t, err)
	require.NoError(t, ValidateDefinition(def))
	require.Len(t, def.Nodes, 3)
	assert.Equal(t, flow.KindStart, def.Nodes[0].GetType())
	assert.Equal(t, flow.KindAssign, def.Nodes[1].GetType())
	assert.Equal(t, flow.KindReply, def.Nodes[2].GetType())
	require.Len(t, def.Variables, 1)

	start, err := StartNodeOf(def)
	require.NoError(t, err)
	assert.Equal(t, "start1", start.GetId())
}

func TestValidateDefinitionErrors(t *testing.T) {
	def := &flow.Definition{Nodes: []flow.Node{
		&StartNode{baseNode: baseNode{Id: "a"}},
		&StartNode{baseNode: baseNode{Id: "b"}},
	}}
	err := ValidateDefinition(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one start node")

	def = &flow.Definition{
		Nodes: []flow.Node{&StartNode{baseNode: baseNode{Id: "a"}}},
		Lines: []flow.Edge{{Id: "e1", FromNodeId: "a", ToNodeId: "ghost"}},
	}
	err = ValidateDefinition(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node")

	def = &flow.Definition{Nodes: []flow.Node{
		&StartNode{baseNode: baseNode{Id: "a"}},
		&ReplyNode{baseNode: baseNode{Id: "a"}},
	}}
	err = ValidateDefinition(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node id")

	def = &flow.Definition{
		Nodes: []flow.Node{
			&StartNode{baseNode: baseNode{Id: "a"}},
			&ReplyNode{baseNode: baseNode{Id: "b"}},
		},
		Lines: []flow.Edge{
			{Id: "e1", FromNodeId: "a", ToNodeId: "b"},
			{Id: "e1", FromNodeId: "b", ToNodeId: "a"},
		},
	}
	err = ValidateDefinition(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate edge id")
}

func TestConditionNodeFirstTrueWins(t *testing.T) {
	def := &flow.Definition{Lines: []flow.Edge{
		{Id: "e1", FromNodeId: "cond1", ToNodeId: "n1"},
		{Id: "e2", FromNodeId: "cond1", ToNodeId: "n2"},
		{Id: "e3", FromNodeId: "cond1", ToNodeId: "n3"},
	}}
	third := &stubUnit{value: true}
	n := &ConditionNode{
		baseNode: baseNode{Id: "cond1", DisplayName: "router"},
		Conditions: []*ConditionRule{
			{Description: "r1", LineId: "e1", ExpressionUnit: &stubUnit{value: false}},
			{Description: "r2", LineId: "e2", ExpressionUnit: &stubUnit{value: true}},
			{Description: "r3", LineId: "e3", ExpressionUnit: third},
		},
	}

	edge, err := n.GetNextEdge(context.Background(), newScope(def))
	require.NoError(t, err)
	assert.Equal(t, "e2", edge.Id)
	assert.Zero(t, third.calls, "rules after the first hit must not be evaluated")
}

func TestConditionNodeElseRule(t *testing.T) {
	def := &flow.Definition{Lines: []flow.Edge{{Id: "else-edge", FromNodeId: "cond1", ToNodeId: "n1"}}}
	n := &ConditionNode{
		baseNode:   baseNode{Id: "cond1", DisplayName: "router"},
		Conditions: []*ConditionRule{{Description: "r1", LineId: "else-edge", ExpressionUnit: &stubUnit{value: false}}},
		ElseRule:   &ConditionRule{LineId: "else-edge"},
	}
	edge, err := n.GetNextEdge(context.Background(), newScope(def))
	require.NoError(t, err)
	assert.Equal(t, "else-edge", edge.Id)

	n.ElseRule = nil
	_, err = n.GetNextEdge(context.Background(), newScope(def))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no available execute path")
}

func TestConditionNodeTruthyCoercion(t *testing.T) {
	def := &flow.Definition{Lines: []flow.Edge{{Id: "e1", FromNodeId: "cond1", ToNodeId: "n1"}}}
	for _, v := range []any{1, int64(2), 0.5, "true", "True"} {
		n := &ConditionNode{
			baseNode:   baseNode{Id: "cond1"},
			Conditions: []*ConditionRule{{LineId: "e1", ExpressionUnit: &stubUnit{value: v}}},
		}
		edge, err := n.GetNextEdge(context.Background(), newScope(def))
		require.NoError(t, err, "value %v", v)
		assert.Equal(t, "e1", edge.Id)
	}

	n := &ConditionNode{
		baseNode:   baseNode{Id: "cond1"},
		Conditions: []*ConditionRule{{Description: "bad", LineId: "e1", ExpressionUnit: &stubUnit{value: "not-a-bool"}}},
	}
	_, err := n.GetNextEdge(context.Background(), newScope(def))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute failed")
}

func TestAssignVariableNode(t *testing.T) {
	x := mustVar(t, `{"typeName":"LongVariable","name":"x"}`)
	scope := newScope(&flow.Definition{}, x)
	n := &AssignVariableNode{
		baseNode: baseNode{Id: "assign1"},
		Assignments: []*AssignmentItem{
			{TargetVariableName: "x", ExpressionUnit: &expr.JSExpressionUnit{ExpressionCode: "1 + 1"}},
		},
	}

	result, err := n.Execute(context.Background(), scope)
	require.NoError(t, err)
	assert.True(t, result.IsSuccess)
	v, err := x.GetTypedValue()
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestAssignVariableNodeMissingTargetIsFatal(t *testing.T) {
	scope := newScope(&flow.Definition{})
	n := &AssignVariableNode{
		baseNode:    baseNode{Id: "assign1"},
		Assignments: []*AssignmentItem{{TargetVariableName: "ghost", ExpressionUnit: &stubUnit{value: 1}}},
	}
	_, err := n.Execute(context.Background(), scope)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variable ghost not found")
}

func TestAssignVariableNodeRejectedValueIsFatal(t *testing.T) {
	x := mustVar(t, `{"typeName":"LongVariable","name":"x"}`)
	scope := newScope(&flow.Definition{}, x)
	n := &AssignVariableNode{
		baseNode:    baseNode{Id: "assign1"},
		Assignments: []*AssignmentItem{{TargetVariableName: "x", ExpressionUnit: &stubUnit{value: "not-a-number"}}},
	}
	_, err := n.Execute(context.Background(), scope)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assign variable x failed")
}

func TestJSCodeNodeProjectsDeclaredOutputs(t *testing.T) {
	scope := newScope(&flow.Definition{})
	n := &JSCodeNode{
		baseNode: baseNode{Id: "js1"},
		Outputs:  []JSCodeNodeOutput{{Name: "x"}, {Name: "missing"}},
		CodeUnit: &expr.JSExpressionUnit{
			IsFunctionMode: true,
			FunctionCode:   `function main() { return { x: 41 + 1, y: "dropped" }; }`,
		},
	}
	result, err := n.Execute(context.Background(), scope)
	require.NoError(t, err)
	require.True(t, result.IsSuccess)
	out := result.Result.(map[string]any)
	assert.EqualValues(t, 42, out["x"])
	assert.Nil(t, out["missing"])
	assert.NotContains(t, out, "y")
}

func TestJSCodeNodeScriptErrorIsRecoverable(t *testing.T) {
	scope := newScope(&flow.Definition{})
	n := &JSCodeNode{
		baseNode: baseNode{Id: "js1"},
		CodeUnit: &expr.JSExpressionUnit{ExpressionCode: "syntax error here ("},
	}
	result, err := n.Execute(context.Background(), scope)
	require.NoError(t, err)
	assert.False(t, result.IsSuccess)
	assert.Equal(t, flow.ErrCodeNodeFailed, result.ErrorCode)
	assert.Contains(t, result.ErrorMsg, "js code node execute failed")
}

func TestReplyNodeForwardsLLMStream(t *testing.T) {
	llmNode := &LLMNode{baseNode: baseNode{Id: "llm1"}}
	reply := &ReplyNode{
		baseNode: baseNode{Id: "reply1"},
		Message:  &expr.FullTextExpressionUnit{Text: "answer: {{llm1.response}}!"},
	}
	def := &flow.Definition{Nodes: []flow.Node{llmNode, reply}}
	scope := newScope(def)
	scope.Current = reply
	scope.Results.Put(flow.SuccessStreaming("llm1", nil, func(ctx context.Context, emit func(string) error) error {
		if err := emit("he"); err != nil {
			return err
		}
		return emit("llo")
	}))

	result, err := reply.Execute(context.Background(), scope)
	require.NoError(t, err)
	require.True(t, result.IsSuccess)
	require.NotNil(t, result.Streaming)

	var chunks []string
	err = result.Stream(context.Background(), func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"answer: ", "he", "llo", "!"}, chunks)
}

func TestReplyNodeResolvesVariablesAndPaths(t *testing.T) {
	city := mustVar(t, `{"typeName":"StringVariable","name":"city"}`)
	city.SetValue("shanghai")
	httpNode := &HttpNode{baseNode: baseNode{Id: "http1"}}
	reply := &ReplyNode{
		baseNode: baseNode{Id: "reply1"},
		Message:  &expr.FullTextExpressionUnit{Text: "{{city}} -> {{http1.statusCode}}"},
	}
	def := &flow.Definition{Nodes: []flow.Node{httpNode, reply}}
	scope := newScope(def, city)
	scope.Current = reply
	scope.Results.Put(flow.Success("http1", map[string]any{"statusCode": int64(200)}))

	result, err := reply.Execute(context.Background(), scope)
	require.NoError(t, err)

	var chunks []string
	err = result.Stream(context.Background(), func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "shanghai -> 200", joinChunks(chunks))
}

func joinChunks(chunks []string) string {
	out := ""
	for _, c := range chunks {
		out += c
	}
	return out
}
