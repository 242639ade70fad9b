package node

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/superflowai/superflow/expr"
	"github.com/superflowai/superflow/flow"
)

// ConditionRule pairs a boolean expression with the edge to take when it
// holds.
type ConditionRule struct {
	Id             string
	ExpressionUnit expr.Unit
	Description    string
	LineId         string
}

func (r *ConditionRule) UnmarshalJSON(data []byte) error {
	var aux struct {
		Id             string          `json:"id"`
		ExpressionUnit json.RawMessage `json:"expressionUnit"`
		Description    string          `json:"description"`
		LineId         string          `json:"lineId"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Id = aux.Id
	r.Description = aux.Description
	r.LineId = aux.LineId
	if len(aux.ExpressionUnit) > 0 && string(aux.ExpressionUnit) != "null" {
		unit, err := expr.Decode(aux.ExpressionUnit)
		if err != nil {
			return err
		}
		r.ExpressionUnit = unit
	}
	return nil
}

// ConditionNode routes to the first rule whose expression evaluates truthy,
// in declaration order. Rules after the first hit are never evaluated. When
// no rule holds, the else rule's edge is taken.
type ConditionNode struct {
	baseNode
	Conditions []*ConditionRule `json:"conditions"`
	ElseRule   *ConditionRule   `json:"elseRule"`
}

func (n *ConditionNode) GetType() flow.Kind { return flow.KindCondition }

func (n *ConditionNode) Execute(ctx context.Context, scope *flow.Scope) (*flow.NodeExecuteResult, error) {
	return flow.Success(n.Id, "condition node execute success"), nil
}

func (n *ConditionNode) GetNextEdge(ctx context.Context, scope *flow.Scope) (*flow.Edge, error) {
	for _, rule := range n.Conditions {
		if rule.ExpressionUnit == nil {
			return nil, flow.Configf("condition node %s rule %s expression unit is null", n.DisplayName, rule.Description)
		}
		if strings.TrimSpace(rule.LineId) == "" {
			return nil, flow.Configf("condition node %s rule %s line id is null", n.DisplayName, rule.Description)
		}
		result, err := rule.ExpressionUnit.ComputeValue(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("condition node %s rule %s execute failed: %w", n.DisplayName, rule.Description, err)
		}
		met, err := truthy(result)
		if err != nil {
			return nil, fmt.Errorf("condition node %s rule %s execute failed: %w", n.DisplayName, rule.Description, err)
		}
		if met {
			edge := scope.Run.Definition.EdgeById(rule.LineId)
			if edge == nil {
				return nil, flow.Configf("condition node %s rule %s line %s not found", n.DisplayName, rule.Description, rule.LineId)
			}
			return edge, nil
		}
	}
	if n.ElseRule != nil && strings.TrimSpace(n.ElseRule.LineId) != "" {
		edge := scope.Run.Definition.EdgeById(n.ElseRule.LineId)
		if edge == nil {
			return nil, flow.Configf("condition node %s default rule line %s not found", n.DisplayName, n.ElseRule.LineId)
		}
		return edge, nil
	}
	return nil, flow.Configf("condition node %s no available execute path", n.DisplayName)
}
