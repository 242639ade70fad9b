package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/superflowai/superflow/model"
)

func sseServer(t *testing.T, lines []string, capture *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "data: %s\n\n", line)
		}
	}))
}

func TestCallStreamingThinkTags(t *testing.T) {
	var body map[string]any
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"reasoning_content":"r1"}}]}`,
		`{"choices":[{"delta":{"reasoning_content":"r2"}}]}`,
		`{"choices":[{"delta":{"content":"c1"}}]}`,
		`{"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`,
		`[DONE]`,
	}, &body)
	defer srv.Close()

	adapter := NewAliyunAdapter(time.Minute)
	var chunks []string
	usage, err := adapter.CallStreaming(context.Background(), Request{
		APIUrl:         srv.URL,
		APIKey:         "sk-test",
		Model:          "qwen-max",
		Messages:       []model.LLMMessage{{Role: model.RoleUser, Content: "hi"}},
		EnableThinking: true,
	}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"<think>r1", "r2", "</think>c1"}, chunks)
	assert.Equal(t, model.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, usage)
	assert.Equal(t, true, body["enable_thinking"])
	assert.Equal(t, "qwen-max", body["model"])
}

func TestCallStreamingReasoningIgnoredWhenThinkingDisabled(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"reasoning_content":"r1"}}]}`,
		`{"choices":[{"delta":{"content":"hello"}}]}`,
		`[DONE]`,
	}, nil)
	defer srv.Close()

	adapter := NewAliyunAdapter(time.Minute)
	var chunks []string
	_, err := adapter.CallStreaming(context.Background(), Request{APIUrl: srv.URL}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, chunks)
}

func TestCallStreamingClosesDanglingThinkTag(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"reasoning_content":"only-reasoning"}}]}`,
		`[DONE]`,
	}, nil)
	defer srv.Close()

	adapter := NewAliyunAdapter(time.Minute)
	var chunks []string
	_, err := adapter.CallStreaming(context.Background(), Request{APIUrl: srv.URL, EnableThinking: true}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"<think>only-reasoning", "</think>"}, chunks)
}

func TestCallStreamingNativeUsageFallback(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"x"}}]}`,
		`{"usage":{"input_tokens":3,"output_tokens":4}}`,
		`[DONE]`,
	}, nil)
	defer srv.Close()

	adapter := NewAliyunAdapter(time.Minute)
	usage, err := adapter.CallStreaming(context.Background(), Request{APIUrl: srv.URL}, func(string) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, model.TokenUsage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7}, usage)
}

func TestCallStreamingHttpError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	adapter := NewAliyunAdapter(time.Minute)
	_, err := adapter.CallStreaming(context.Background(), Request{APIUrl: srv.URL}, func(string) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestRegistryResolve(t *testing.T) {
	aliyun := NewAliyunAdapter(time.Minute)
	registry := NewRegistry(aliyun)

	adapter, err := registry.Resolve("ALIYUN")
	require.NoError(t, err)
	assert.Same(t, aliyun, adapter)

	adapter, err = registry.Resolve("阿里云")
	require.NoError(t, err)
	assert.Same(t, aliyun, adapter)

	// unknown platforms fall back to the first adapter
	adapter, err = registry.Resolve("unknown-platform")
	require.NoError(t, err)
	assert.Same(t, aliyun, adapter)

	_, err = NewRegistry().Resolve("aliyun")
	assert.Error(t, err)
}
