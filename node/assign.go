package node

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/superflowai/superflow/expr"
	"github.com/superflowai/superflow/flow"
)

// AssignmentItem assigns one expression result to one session variable.
type AssignmentItem struct {
	Id                 string
	TargetVariableName string
	ExpressionUnit     expr.Unit
}

func (a *AssignmentItem) UnmarshalJSON(data []byte) error {
	var aux struct {
		Id                 string          `json:"id"`
		TargetVariableName string          `json:"targetVariableName"`
		ExpressionUnit     json.RawMessage `json:"expressionUnit"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.Id = aux.Id
	a.TargetVariableName = aux.TargetVariableName
	if len(aux.ExpressionUnit) > 0 && string(aux.ExpressionUnit) != "null" {
		unit, err := expr.Decode(aux.ExpressionUnit)
		if err != nil {
			return err
		}
		a.ExpressionUnit = unit
	}
	return nil
}

// AssignVariableNode writes expression results into session variables, in
// declaration order. A missing target or a rejected value fails the run.
type AssignVariableNode struct {
	baseNode
	Assignments []*AssignmentItem `json:"assignments"`
}

func (n *AssignVariableNode) GetType() flow.Kind { return flow.KindAssign }

func (n *AssignVariableNode) Execute(ctx context.Context, scope *flow.Scope) (*flow.NodeExecuteResult, error) {
	for _, assignment := range n.Assignments {
		if assignment.ExpressionUnit == nil {
			return nil, fmt.Errorf("assignment %s expression unit is null", assignment.TargetVariableName)
		}
		result, err := assignment.ExpressionUnit.ComputeValue(ctx, scope)
		if err != nil {
			return nil, err
		}
		target := scope.Run.SessionVariable(assignment.TargetVariableName)
		if target == nil {
			return nil, fmt.Errorf("variable %s not found", assignment.TargetVariableName)
		}
		if ok, reason := target.SetValue(result); !ok {
			return nil, fmt.Errorf("assign variable %s failed: %s", assignment.TargetVariableName, reason)
		}
	}
	return flow.Success(n.Id, "assign variable node execute success"), nil
}
