package flow

import (
	"strings"
	"time"

	"github.com/superflowai/superflow/config"
	"github.com/superflowai/superflow/llm"
	"github.com/superflowai/superflow/model"
	"github.com/superflowai/superflow/persistence"
	"github.com/superflowai/superflow/variable"
)

// RunContext is the mutable state of one run: one chat turn of one
// conversation. It is created per incoming request and never shared between
// concurrent runs.
type RunContext struct {
	FlowId         int64
	FlowInstanceId string
	User           string
	DisplayName    string
	Definition     *Definition
	StartTime      time.Time

	// InputVariables are the request's resolved input parameters;
	// SessionVariables are the conversation-scoped variables, seeded from
	// declarations or a persisted snapshot and mutated by assignment nodes.
	InputVariables   []variable.Variable
	SessionVariables []variable.Variable

	Store    persistence.Storage
	Adapters *llm.Registry
	Script   config.ScriptConfig

	ConversationId string
	DialogueCount  int
	Query          string
	Files          []model.FileRef

	// Usage accumulates token counts across the run's LLM calls.
	Usage model.TokenUsage
}

// LookupVariable finds a variable by case-insensitive name, session variables
// first, then input variables.
func (rc *RunContext) LookupVariable(name string) variable.Variable {
	for _, v := range rc.SessionVariables {
		if strings.EqualFold(v.GetName(), name) {
			return v
		}
	}
	for _, v := range rc.InputVariables {
		if strings.EqualFold(v.GetName(), name) {
			return v
		}
	}
	return nil
}

// SessionVariable finds a session variable by exact name.
func (rc *RunContext) SessionVariable(name string) variable.Variable {
	for _, v := range rc.SessionVariables {
		if v.GetName() == name {
			return v
		}
	}
	return nil
}

// Scope is the explicit evaluation context threaded through node execution
// and placeholder resolution: the run, its result cache, and the node
// currently executing.
type Scope struct {
	Run     *RunContext
	Results *ResultCache
	Current Node
}

// With returns a copy of the scope with a different current node.
func (s *Scope) With(current Node) *Scope {
	return &Scope{Run: s.Run, Results: s.Results, Current: current}
}
