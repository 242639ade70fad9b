package flow

import (
	"context"

	"github.com/superflowai/superflow/variable"
)

// Kind discriminates node capabilities, matching the designer's typeName tags.
type Kind string

const (
	KindStart     Kind = "StartNode"
	KindEnd       Kind = "EndNode"
	KindCondition Kind = "ConditionNode"
	KindAssign    Kind = "AssignVariableNode"
	KindLLM       Kind = "LLMNode"
	KindJSCode    Kind = "JSCodeNode"
	KindHttp      Kind = "HttpNode"
	KindReply     Kind = "ReplyNode"
)

// Node is one typed unit of work in the graph. Execute returns recoverable
// failures inside the result (IsSuccess=false); a non-nil error means broken
// graph wiring or another programmer-error condition.
type Node interface {
	GetId() string
	GetName() string
	GetType() Kind
	Execute(ctx context.Context, scope *Scope) (*NodeExecuteResult, error)
	// GetNextEdge resolves the outgoing edge to follow after this node; nil
	// means the walk terminates here.
	GetNextEdge(ctx context.Context, scope *Scope) (*Edge, error)
}

// Edge is a directed connection between two nodes. SourceAnchorId ties an
// edge to a specific rule on multi-output nodes.
type Edge struct {
	Id             string `json:"id"`
	FromNodeId     string `json:"fromNodeId"`
	ToNodeId       string `json:"toNodeId"`
	SourceAnchorId string `json:"sourceAnchorId,omitempty"`
	TargetAnchorId string `json:"targetAnchorId,omitempty"`
}

// Definition is the static graph loaded from the designer; immutable per run.
type Definition struct {
	Nodes           []Node
	Lines           []Edge
	Variables       []variable.Variable
	InputParameters []variable.Variable
}

func (d *Definition) NodeById(id string) Node {
	for _, n := range d.Nodes {
		if n.GetId() == id {
			return n
		}
	}
	return nil
}

// FirstEdgeFrom returns the first edge leaving the given node; the default
// next-edge rule for non-condition nodes.
func (d *Definition) FirstEdgeFrom(nodeId string) *Edge {
	for i := range d.Lines {
		if d.Lines[i].FromNodeId == nodeId {
			return &d.Lines[i]
		}
	}
	return nil
}

func (d *Definition) EdgeById(id string) *Edge {
	for i := range d.Lines {
		if d.Lines[i].Id == id {
			return &d.Lines[i]
		}
	}
	return nil
}

// CloneVariables copies a variable declaration list for use by one run.
func CloneVariables(decls []variable.Variable) []variable.Variable {
	out := make([]variable.Variable, len(decls))
	for i, decl := range decls {
		out[i] = decl.Clone()
	}
	return out
}
