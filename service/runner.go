package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/superflowai/superflow/analytics"
	"github.com/superflowai/superflow/config"
	"github.com/superflowai/superflow/flow"
	"github.com/superflowai/superflow/llm"
	"github.com/superflowai/superflow/logger"
	"github.com/superflowai/superflow/metadata"
	"github.com/superflowai/superflow/model"
	"github.com/superflowai/superflow/node"
	"github.com/superflowai/superflow/persistence"
	"github.com/superflowai/superflow/variable"
	"go.uber.org/zap"
)

// OutputCallback receives streamed output while a run is in flight.
// eventType is currently always "message"; data is one answer chunk.
type OutputCallback func(eventType string, nodeId string, data string) error

// RunResult is the outcome of one successfully completed chat turn.
type RunResult struct {
	ConversationId string
	FlowInstanceId string
	Answer         string
	Usage          model.TokenUsage
}

// FlowRunner executes one chat turn of a flow: edge walk, node execution,
// streaming forwarding and session persistence.
type FlowRunner interface {
	Run(ctx context.Context, flowId int64, request model.ChatRequest, callback OutputCallback) (*RunResult, error)
}

type FlowRunnerImpl struct {
	metadataService metadata.MetadataService
	store           persistence.Storage
	adapters        *llm.Registry
	scriptConfig    config.ScriptConfig
	collector       analytics.DataCollector
}

var _ FlowRunner = new(FlowRunnerImpl)

func NewFlowRunner(metadataService metadata.MetadataService, store persistence.Storage, adapters *llm.Registry, scriptConfig config.ScriptConfig, collector analytics.DataCollector) *FlowRunnerImpl {
	return &FlowRunnerImpl{
		metadataService: metadataService,
		store:           store,
		adapters:        adapters,
		scriptConfig:    scriptConfig,
		collector:       collector,
	}
}

func (s *FlowRunnerImpl) Run(ctx context.Context, flowId int64, request model.ChatRequest, callback OutputCallback) (*RunResult, error) {
	def, record, err := s.metadataService.GetDefinition(ctx, flowId)
	if err != nil {
		return nil, err
	}

	var conversation *model.Conversation
	conversationId := request.ConversationId
	if conversationId == "" {
		conversationId = uuid.NewString()
	} else {
		conversation, err = s.store.GetConversation(ctx, request.User, conversationId)
		if err != nil {
			return nil, err
		}
		if conversation == nil {
			return nil, fmt.Errorf("can not find conversation : %s", conversationId)
		}
	}

	inputVariables, err := BuildInputVariables(def.InputParameters, request.Inputs)
	if err != nil {
		return nil, err
	}

	sessionVariables := flow.CloneVariables(def.Variables)
	if conversation != nil {
		restoreSessionVariables(sessionVariables, conversation.Variables)
	}

	dialogueCount := 0
	if conversation != nil {
		dialogueCount = conversation.MessageCount
	}

	run := &flow.RunContext{
		FlowId:           flowId,
		FlowInstanceId:   uuid.NewString(),
		User:             request.User,
		DisplayName:      record.DisplayName,
		Definition:       def,
		StartTime:        time.Now(),
		InputVariables:   inputVariables,
		SessionVariables: sessionVariables,
		Store:            s.store,
		Adapters:         s.adapters,
		Script:           s.scriptConfig,
		ConversationId:   conversationId,
		DialogueCount:    dialogueCount,
		Query:            request.Query,
		Files:            request.Files,
	}

	logger.Info("run started",
		zap.Int64("flowId", flowId),
		zap.String("flowInstanceId", run.FlowInstanceId),
		zap.String("conversationId", conversationId),
		zap.String("user", request.User))

	answer, err := s.walk(ctx, run, callback)
	if err != nil {
		logger.Error("run failed",
			zap.Int64("flowId", flowId),
			zap.String("flowInstanceId", run.FlowInstanceId),
			zap.Error(err))
		// node execution failures still persist the partial conversation
		// state accumulated so far; configuration errors persist nothing
		var confErr *flow.ConfigError
		if !errors.As(err, &confErr) {
			if perr := s.persistSession(ctx, run, conversation, answer); perr != nil {
				logger.Error("error persisting failed run",
					zap.String("flowInstanceId", run.FlowInstanceId),
					zap.Error(perr))
			}
		}
		return nil, err
	}

	if err := s.persistSession(ctx, run, conversation, answer); err != nil {
		return nil, err
	}

	s.collector.RecordRunFinished(flowId, run.FlowInstanceId, conversationId, run.Usage.PromptTokens, run.Usage.CompletionTokens)
	logger.Info("run finished",
		zap.Int64("flowId", flowId),
		zap.String("flowInstanceId", run.FlowInstanceId),
		zap.Int("totalTokens", run.Usage.TotalTokens))

	return &RunResult{
		ConversationId: conversationId,
		FlowInstanceId: run.FlowInstanceId,
		Answer:         answer,
		Usage:          run.Usage,
	}, nil
}

// walk executes the graph from the start node, following one outgoing edge at
// a time until no edge resolves. Reply streams are driven here so chunks reach
// the callback while the provider is still producing them.
func (s *FlowRunnerImpl) walk(ctx context.Context, run *flow.RunContext, callback OutputCallback) (string, error) {
	start, err := node.StartNodeOf(run.Definition)
	if err != nil {
		return "", err
	}

	scope := &flow.Scope{Run: run, Results: flow.NewResultCache()}
	var answer strings.Builder

	current := start
	if err := s.executeNode(ctx, scope, current, callback, &answer); err != nil {
		return answer.String(), err
	}

	maxSteps := 4*len(run.Definition.Nodes) + 16
	for step := 0; ; step++ {
		if step >= maxSteps {
			return answer.String(), flow.Configf("flow run aborted after %d node executions, graph likely contains a cycle", maxSteps)
		}
		edge, err := current.GetNextEdge(ctx, scope.With(current))
		if err != nil {
			s.collector.RecordNodeFailure(run.FlowId, run.FlowInstanceId, current.GetId(), string(current.GetType()), err.Error())
			return answer.String(), err
		}
		if edge == nil {
			break
		}
		next := run.Definition.NodeById(edge.ToNodeId)
		if next == nil {
			return answer.String(), flow.Configf("can not find node %s", edge.ToNodeId)
		}
		if err := s.executeNode(ctx, scope, next, callback, &answer); err != nil {
			return answer.String(), err
		}
		current = next
	}

	return answer.String(), nil
}

func (s *FlowRunnerImpl) executeNode(ctx context.Context, scope *flow.Scope, n flow.Node, callback OutputCallback, answer *strings.Builder) error {
	run := scope.Run
	nodeScope := scope.With(n)
	scope.Current = n

	result, err := n.Execute(ctx, nodeScope)
	if err != nil {
		s.collector.RecordNodeFailure(run.FlowId, run.FlowInstanceId, n.GetId(), string(n.GetType()), err.Error())
		return fmt.Errorf("node %s execute failed: %s", n.GetName(), err.Error())
	}
	scope.Results.Put(result)

	if n.GetType() == flow.KindReply && result.IsSuccess && result.Streaming != nil {
		err := result.Stream(ctx, func(chunk string) error {
			answer.WriteString(chunk)
			if callback == nil {
				return nil
			}
			return callback("message", n.GetId(), chunk)
		})
		if err != nil {
			s.collector.RecordNodeFailure(run.FlowId, run.FlowInstanceId, n.GetId(), string(n.GetType()), err.Error())
			return fmt.Errorf("node %s execute failed: %s", n.GetName(), err.Error())
		}
	}

	if !result.IsSuccess {
		s.collector.RecordNodeFailure(run.FlowId, run.FlowInstanceId, n.GetId(), string(n.GetType()), result.ErrorMsg)
		return fmt.Errorf("node %s execute failed: %s", n.GetName(), result.ErrorMsg)
	}

	s.collector.RecordNodeSuccess(run.FlowId, run.FlowInstanceId, n.GetId(), string(n.GetType()), result.Result)
	return nil
}

// BuildInputVariables validates raw request inputs against the declared input
// parameters and returns run-owned clones carrying the supplied values.
func BuildInputVariables(declared []variable.Variable, inputs map[string]any) ([]variable.Variable, error) {
	result := make([]variable.Variable, 0, len(declared))
	for _, decl := range declared {
		param := decl.Clone()
		raw, present := inputs[param.GetName()]
		if !present || raw == nil {
			if param.IsRequired() {
				return nil, fmt.Errorf("input parameter [%s] can not be null", param.GetName())
			}
			result = append(result, param)
			continue
		}
		if ok, reason := param.SetValue(raw); !ok {
			return nil, fmt.Errorf("input parameter [%s] value: [%v], not fit %s format: %s", param.GetName(), raw, param.GetKind(), reason)
		}
		result = append(result, param)
	}
	return result, nil
}

// restoreSessionVariables applies a persisted snapshot, keyed by variable id,
// onto freshly cloned declarations. Unknown ids and rejected values are
// ignored so a stale snapshot never blocks a conversation.
func restoreSessionVariables(vars []variable.Variable, snapshot map[string]any) {
	for id, value := range snapshot {
		for _, v := range vars {
			if v.GetId() == id {
				v.SetValue(value)
				break
			}
		}
	}
}

// snapshotSessionVariables captures the values assigned during the run, keyed
// by variable id, for restoration on the next turn of the conversation.
func snapshotSessionVariables(vars []variable.Variable) map[string]any {
	snapshot := make(map[string]any)
	for _, v := range vars {
		if !v.HasValue() || v.GetId() == "" {
			continue
		}
		value, err := v.GetValue()
		if err != nil || value == nil {
			continue
		}
		snapshot[v.GetId()] = value
	}
	return snapshot
}

func (s *FlowRunnerImpl) persistSession(ctx context.Context, run *flow.RunContext, conversation *model.Conversation, answer string) error {
	now := time.Now()
	if conversation == nil {
		conversation = &model.Conversation{
			ConversationId: run.ConversationId,
			User:           run.User,
			FlowId:         run.FlowId,
			Title:          conversationTitle(run.Query),
			IsTop:          false,
			MessageCount:   1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	} else {
		conversation.MessageCount++
		conversation.UpdatedAt = now
	}
	conversation.Variables = snapshotSessionVariables(run.SessionVariables)
	conversation.PromptTokens += run.Usage.PromptTokens
	conversation.CompletionTokens += run.Usage.CompletionTokens
	conversation.TotalTokens += run.Usage.TotalTokens

	if err := s.store.SaveConversation(ctx, *conversation); err != nil {
		return err
	}

	return s.store.AppendMessage(ctx, model.ChatMessage{
		Id:             uuid.NewString(),
		User:           run.User,
		FlowId:         run.FlowId,
		ConversationId: run.ConversationId,
		FlowInstanceId: run.FlowInstanceId,
		Question:       run.Query,
		Answer:         answer,
		TokenUsage:     run.Usage,
		Files:          run.Files,
		CreatedAt:      now,
	})
}

// conversationTitle derives a new conversation's title from its first query.
func conversationTitle(query string) string {
	runes := []rune(query)
	if len(runes) > 10 {
		return string(runes[:10])
	}
	return query
}
