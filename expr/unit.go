package expr

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/superflowai/superflow/flow"
	"github.com/superflowai/superflow/variable"
)

// Unit type discriminators, matching the designer's typeName tags.
const (
	TypeFullText     = "FullTextExpressionUnit"
	TypeFullTextMini = "FullTextMiniExpressionUnit"
	TypeJS           = "JSExpressionUnit"
)

// Unit is one configured expression: a placeholder-bearing text template or a
// sandboxed script. Node configs reference units polymorphically.
type Unit interface {
	GetId() string
	ComputeValue(ctx context.Context, scope *flow.Scope) (any, error)
}

type baseUnit struct {
	Id string `json:"id,omitempty"`
}

func (b *baseUnit) GetId() string { return b.Id }

// Decode builds a concrete Unit from its typeName-tagged JSON form.
func Decode(data []byte) (Unit, error) {
	var head struct {
		TypeName string `json:"typeName"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding expression unit: %w", err)
	}
	var u Unit
	switch head.TypeName {
	case TypeFullText:
		u = new(FullTextExpressionUnit)
	case TypeFullTextMini:
		u = new(FullTextMiniExpressionUnit)
	case TypeJS:
		u = new(JSExpressionUnit)
	default:
		return nil, fmt.Errorf("unknown expression unit type %q", head.TypeName)
	}
	if err := json.Unmarshal(data, u); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", head.TypeName, err)
	}
	return u, nil
}

// ComputeValueAs computes a unit and coerces the result to T through a JSON
// round trip, the lenient conversion node configs expect.
func ComputeValueAs[T any](ctx context.Context, scope *flow.Scope, u Unit) (T, error) {
	var zero T
	v, err := u.ComputeValue(ctx, scope)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	if typed, ok := v.(T); ok {
		return typed, nil
	}
	if _, isString := any(zero).(string); isString {
		s := any(variable.Stringify(v))
		return s.(T), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("converting expression result %v: %w", v, err)
	}
	return out, nil
}
