package expr

import (
	"context"
	"fmt"

	"github.com/superflowai/superflow/flow"
)

// FullTextExpressionUnit is a text template whose placeholders are resolved
// against the current scope.
type FullTextExpressionUnit struct {
	baseUnit
	Text string `json:"text"`
}

func (u *FullTextExpressionUnit) ComputeValue(ctx context.Context, scope *flow.Scope) (any, error) {
	result, err := ReplacePlaceholders(ctx, scope, u.Text)
	if err != nil {
		return nil, fmt.Errorf("full text expression unit compute value error: %w", err)
	}
	return result, nil
}

// FullTextMiniExpressionUnit is the single line variant the designer emits
// for compact inputs. Evaluation is identical.
type FullTextMiniExpressionUnit struct {
	FullTextExpressionUnit
}
