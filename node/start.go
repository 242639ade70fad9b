package node

import (
	"context"

	"github.com/superflowai/superflow/flow"
)

// StartNode marks the single entry point of a flow.
type StartNode struct {
	baseNode
}

func (n *StartNode) GetType() flow.Kind { return flow.KindStart }

func (n *StartNode) Execute(ctx context.Context, scope *flow.Scope) (*flow.NodeExecuteResult, error) {
	return flow.Success(n.Id, nil), nil
}
