package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/superflowai/superflow/logger"
	"github.com/superflowai/superflow/model"
	"go.uber.org/zap"
)

// AliyunAdapter talks to Aliyun's OpenAI compatible chat completion endpoint.
// It requests stream_options.include_usage so the final chunk of the stream
// carries the token counts.
type AliyunAdapter struct {
	client *http.Client
}

var _ Adapter = new(AliyunAdapter)

func NewAliyunAdapter(timeout time.Duration) *AliyunAdapter {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &AliyunAdapter{
		client: &http.Client{Timeout: timeout},
	}
}

func (a *AliyunAdapter) SupportedPlatforms() []string {
	return []string{"阿里云", "aliyun"}
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
		InputTokens      int `json:"input_tokens"`
		OutputTokens     int `json:"output_tokens"`
	} `json:"usage"`
	Output *struct {
		Text string `json:"text"`
	} `json:"output"`
}

func (a *AliyunAdapter) CallStreaming(ctx context.Context, req Request, emit func(chunk string) error) (model.TokenUsage, error) {
	var usage model.TokenUsage
	body := map[string]any{
		"model":       req.Model,
		"messages":    req.Messages,
		"temperature": req.Temperature,
		"stream":      true,
		// enable_thinking is a top level parameter on the Aliyun API
		"enable_thinking": req.EnableThinking,
		"stream_options": map[string]any{
			"include_usage": true,
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return usage, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.APIUrl, bytes.NewReader(data))
	if err != nil {
		return usage, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return usage, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		errorText, _ := io.ReadAll(resp.Body)
		return usage, fmt.Errorf("aliyun llm api call failed, status code: %d, response: %s", resp.StatusCode, string(errorText))
	}

	thinkingStarted := false
	answering := false
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			// reasoning never followed by content still needs the close tag
			if thinkingStarted && !answering {
				if err := emit("</think>"); err != nil {
					return usage, err
				}
			}
			break
		}
		chunk := a.parseChunk(payload, req.EnableThinking, &usage, &thinkingStarted, &answering)
		if chunk == "" {
			continue
		}
		if err := emit(chunk); err != nil {
			return usage, err
		}
	}
	if err := scanner.Err(); err != nil {
		return usage, err
	}
	return usage, nil
}

// parseChunk extracts the next content chunk from one SSE data payload,
// folding reasoning content into <think> markers and capturing the usage
// record carried by the trailing chunk. Malformed payloads are skipped.
func (a *AliyunAdapter) parseChunk(payload string, enableThinking bool, usage *model.TokenUsage, thinkingStarted *bool, answering *bool) string {
	var chunk streamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		logger.Debug("skipping malformed stream chunk", zap.Error(err))
		return ""
	}

	if chunk.Usage != nil {
		usage.PromptTokens = chunk.Usage.PromptTokens
		usage.CompletionTokens = chunk.Usage.CompletionTokens
		usage.TotalTokens = chunk.Usage.TotalTokens
		if usage.TotalTokens == 0 {
			// Aliyun native field names
			usage.PromptTokens = chunk.Usage.InputTokens
			usage.CompletionTokens = chunk.Usage.OutputTokens
			usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		}
		return ""
	}

	if len(chunk.Choices) > 0 {
		delta := chunk.Choices[0].Delta
		if delta.ReasoningContent != "" && enableThinking {
			if !*thinkingStarted {
				*thinkingStarted = true
				return "<think>" + delta.ReasoningContent
			}
			return delta.ReasoningContent
		}
		if delta.Content != "" {
			if !*answering {
				*answering = true
				if *thinkingStarted && enableThinking {
					return "</think>" + delta.Content
				}
			}
			return delta.Content
		}
	}

	if chunk.Output != nil && chunk.Output.Text != "" {
		return chunk.Output.Text
	}
	return ""
}
