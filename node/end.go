package node

import (
	"context"

	"github.com/superflowai/superflow/flow"
)

// EndNode is a terminal marker. Flows normally terminate by running out of
// edges; reaching an end node is reported as a failed step.
type EndNode struct {
	baseNode
}

func (n *EndNode) GetType() flow.Kind { return flow.KindEnd }

func (n *EndNode) Execute(ctx context.Context, scope *flow.Scope) (*flow.NodeExecuteResult, error) {
	return flow.Failure(n.Id, "end node has no runtime behavior"), nil
}
