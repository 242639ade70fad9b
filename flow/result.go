package flow

import (
	"context"
	"strings"
)

// Error codes carried on failed node results.
const (
	ErrCodeNodeFailed = 61002
)

// StreamFunc drives a deferred token stream, pushing each chunk through emit
// in emission order. Returning emit's error aborts the stream.
type StreamFunc func(ctx context.Context, emit func(chunk string) error) error

// NodeExecuteResult is produced once per node per run and cached for the
// remainder of that run. Streaming, when set, defers the node's real work
// (the provider call) until the stream is first driven.
type NodeExecuteResult struct {
	NodeId    string
	IsSuccess bool
	Result    any
	ErrorCode int
	ErrorMsg  string
	Streaming StreamFunc

	materialized bool
	text         string
}

func Success(nodeId string, result any) *NodeExecuteResult {
	return &NodeExecuteResult{NodeId: nodeId, IsSuccess: true, Result: result}
}

func SuccessStreaming(nodeId string, result any, stream StreamFunc) *NodeExecuteResult {
	return &NodeExecuteResult{NodeId: nodeId, IsSuccess: true, Result: result, Streaming: stream}
}

func Failure(nodeId string, errorMsg string) *NodeExecuteResult {
	return &NodeExecuteResult{NodeId: nodeId, IsSuccess: false, ErrorCode: ErrCodeNodeFailed, ErrorMsg: errorMsg}
}

// Stream drives the streaming executor, forwarding chunks to emit while
// capturing the full text. After the first complete drive the captured text
// replays on every later reference; the underlying generator is never
// redriven.
func (r *NodeExecuteResult) Stream(ctx context.Context, emit func(chunk string) error) error {
	if r.Streaming == nil {
		return nil
	}
	if r.materialized {
		return emit(r.text)
	}
	var sb strings.Builder
	err := r.Streaming(ctx, func(chunk string) error {
		sb.WriteString(chunk)
		return emit(chunk)
	})
	if err != nil {
		return err
	}
	r.text = sb.String()
	r.materialized = true
	return nil
}

// Materialize drains the stream (if any) into a single string.
func (r *NodeExecuteResult) Materialize(ctx context.Context) (string, error) {
	if r.Streaming == nil {
		return "", nil
	}
	if r.materialized {
		return r.text, nil
	}
	err := r.Stream(ctx, func(string) error { return nil })
	if err != nil {
		return "", err
	}
	return r.text, nil
}

// ResultCache is the run-scoped nodeId -> result map backing node output
// references. It is touched only by the single goroutine driving one run.
type ResultCache struct {
	results map[string]*NodeExecuteResult
}

func NewResultCache() *ResultCache {
	return &ResultCache{results: make(map[string]*NodeExecuteResult)}
}

func (c *ResultCache) Get(nodeId string) (*NodeExecuteResult, bool) {
	r, ok := c.results[nodeId]
	return r, ok
}

func (c *ResultCache) Put(r *NodeExecuteResult) {
	c.results[r.NodeId] = r
}
