package node

import (
	"context"
	"fmt"

	"github.com/superflowai/superflow/expr"
	"github.com/superflowai/superflow/flow"
)

// JSCodeNodeOutput declares one named output of a script node. The script's
// return object is projected onto the declared outputs.
type JSCodeNodeOutput struct {
	Name         string `json:"name"`
	VariableType string `json:"variableType,omitempty"`
}

// JSCodeNode runs a sandboxed script and exposes the declared outputs of its
// result object. Undeclared result properties are dropped; declared outputs
// missing from the result are null.
type JSCodeNode struct {
	baseNode
	HasOutput bool                   `json:"hasOutput"`
	Outputs   []JSCodeNodeOutput     `json:"outputs"`
	CodeUnit  *expr.JSExpressionUnit `json:"codeUnit"`
}

func (n *JSCodeNode) GetType() flow.Kind { return flow.KindJSCode }

func (n *JSCodeNode) Execute(ctx context.Context, scope *flow.Scope) (*flow.NodeExecuteResult, error) {
	if n.CodeUnit == nil {
		return flow.Failure(n.Id, "js code node execute failed: code unit is null"), nil
	}
	result, err := n.CodeUnit.ComputeValue(ctx, scope)
	if err != nil {
		return flow.Failure(n.Id, fmt.Sprintf("js code node execute failed: %v", err)), nil
	}
	projected := make(map[string]any, len(n.Outputs))
	for _, output := range n.Outputs {
		projected[output.Name] = expr.ExtractRawByPath(result, output.Name)
	}
	return flow.Success(n.Id, projected), nil
}
