package node

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/superflowai/superflow/flow"
)

type baseNode struct {
	Id          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`
}

func (b *baseNode) GetId() string   { return b.Id }
func (b *baseNode) GetName() string { return b.DisplayName }

// GetNextEdge follows the first outgoing edge. Condition nodes override this
// with rule based routing.
func (b *baseNode) GetNextEdge(ctx context.Context, scope *flow.Scope) (*flow.Edge, error) {
	return scope.Run.Definition.FirstEdgeFrom(b.Id), nil
}

// truthy converts an expression result to a branch decision. nil is false,
// booleans pass through, numbers are nonzero, strings must parse as booleans.
func truthy(v any) (bool, error) {
	switch val := v.(type) {
	case nil:
		return false, nil
	case bool:
		return val, nil
	case string:
		b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(val)))
		if err != nil {
			return false, fmt.Errorf("cannot convert %q to boolean", val)
		}
		return b, nil
	case int:
		return val != 0, nil
	case int64:
		return val != 0, nil
	case float64:
		return val != 0, nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return false, fmt.Errorf("cannot convert %v to boolean", v)
		}
		return f != 0, nil
	default:
		return false, fmt.Errorf("cannot convert %v to boolean", v)
	}
}
