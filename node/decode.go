package node

import (
	"encoding/json"
	"fmt"

	"github.com/superflowai/superflow/flow"
	"github.com/superflowai/superflow/variable"
)

// DecodeNode builds a concrete node from its typeName-tagged JSON form.
func DecodeNode(data []byte) (flow.Node, error) {
	var head struct {
		TypeName string `json:"typeName"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding node: %w", err)
	}
	var n flow.Node
	switch flow.Kind(head.TypeName) {
	case flow.KindStart:
		n = new(StartNode)
	case flow.KindEnd:
		n = new(EndNode)
	case flow.KindCondition:
		n = new(ConditionNode)
	case flow.KindAssign:
		n = new(AssignVariableNode)
	case flow.KindLLM:
		n = new(LLMNode)
	case flow.KindJSCode:
		n = new(JSCodeNode)
	case flow.KindHttp:
		n = new(HttpNode)
	case flow.KindReply:
		n = new(ReplyNode)
	default:
		return nil, fmt.Errorf("unknown node type %q", head.TypeName)
	}
	if err := json.Unmarshal(data, n); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", head.TypeName, err)
	}
	return n, nil
}

// DecodeDefinition parses a designer graph document into an executable flow
// definition.
func DecodeDefinition(config []byte) (*flow.Definition, error) {
	var doc struct {
		Nodes           []json.RawMessage `json:"nodes"`
		Lines           []flow.Edge       `json:"lines"`
		Variables       []json.RawMessage `json:"variables"`
		InputParameters []json.RawMessage `json:"inputParameters"`
	}
	if err := json.Unmarshal(config, &doc); err != nil {
		return nil, fmt.Errorf("decoding flow config: %w", err)
	}

	def := &flow.Definition{Lines: doc.Lines}
	for _, raw := range doc.Nodes {
		n, err := DecodeNode(raw)
		if err != nil {
			return nil, err
		}
		def.Nodes = append(def.Nodes, n)
	}
	variables, err := variable.DecodeList(doc.Variables)
	if err != nil {
		return nil, err
	}
	def.Variables = variables
	inputParameters, err := variable.DecodeList(doc.InputParameters)
	if err != nil {
		return nil, err
	}
	def.InputParameters = inputParameters
	return def, nil
}

// ValidateDefinition checks graph level consistency: exactly one start node,
// unique node and edge ids, and edges that reference known nodes.
func ValidateDefinition(def *flow.Definition) error {
	seen := make(map[string]bool, len(def.Nodes))
	startCount := 0
	for _, n := range def.Nodes {
		if n.GetId() == "" {
			return fmt.Errorf("node of type %s has no id", n.GetType())
		}
		if seen[n.GetId()] {
			return fmt.Errorf("duplicate node id %s", n.GetId())
		}
		seen[n.GetId()] = true
		if n.GetType() == flow.KindStart {
			startCount++
		}
	}
	if startCount != 1 {
		return fmt.Errorf("flow must have exactly one start node, found %d", startCount)
	}
	seenEdges := make(map[string]bool, len(def.Lines))
	for _, edge := range def.Lines {
		if seenEdges[edge.Id] {
			return fmt.Errorf("duplicate edge id %s", edge.Id)
		}
		seenEdges[edge.Id] = true
		if !seen[edge.FromNodeId] {
			return fmt.Errorf("edge %s references unknown node %s", edge.Id, edge.FromNodeId)
		}
		if !seen[edge.ToNodeId] {
			return fmt.Errorf("edge %s references unknown node %s", edge.Id, edge.ToNodeId)
		}
	}
	return nil
}

// StartNodeOf returns the definition's start node.
func StartNodeOf(def *flow.Definition) (flow.Node, error) {
	for _, n := range def.Nodes {
		if n.GetType() == flow.KindStart {
			return n, nil
		}
	}
	return nil, flow.Configf("flow has no start node")
}
