package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/superflowai/superflow/expr"
	"github.com/superflowai/superflow/flow"
)

// HttpNode sends one HTTP request. Url, query, headers and body are text
// templates resolved against the current scope; the response lands in the
// node output as responseBody and statusCode.
type HttpNode struct {
	baseNode
	Method         string                           `json:"method"`
	Url            *expr.FullTextMiniExpressionUnit `json:"url"`
	Headers        *expr.FullTextExpressionUnit     `json:"headers,omitempty"`
	Query          *expr.FullTextExpressionUnit     `json:"query,omitempty"`
	Body           *expr.FullTextExpressionUnit     `json:"body,omitempty"`
	TimeoutSeconds int                              `json:"timeoutSeconds"`
}

func (n *HttpNode) GetType() flow.Kind { return flow.KindHttp }

func (n *HttpNode) Execute(ctx context.Context, scope *flow.Scope) (*flow.NodeExecuteResult, error) {
	if n.Url == nil {
		return flow.Failure(n.Id, "http url is required"), nil
	}
	urlText, err := n.computeOptional(ctx, scope, &n.Url.FullTextExpressionUnit)
	if err != nil {
		return flow.Failure(n.Id, fmt.Sprintf("http node execute failed: %v", err)), nil
	}
	if strings.TrimSpace(urlText) == "" {
		return flow.Failure(n.Id, "http url is required"), nil
	}

	queryText, err := n.computeOptional(ctx, scope, n.Query)
	if err != nil {
		return flow.Failure(n.Id, fmt.Sprintf("http node execute failed: %v", err)), nil
	}
	finalUrl := urlText
	if strings.TrimSpace(queryText) != "" {
		switch {
		case strings.HasPrefix(queryText, "?"), strings.HasPrefix(queryText, "&"):
			finalUrl += queryText
		case strings.Contains(urlText, "?"):
			finalUrl += "&" + queryText
		default:
			finalUrl += "?" + queryText
		}
	}

	method := strings.ToUpper(strings.TrimSpace(n.Method))
	if method == "" {
		method = http.MethodGet
	}

	bodyText, err := n.computeOptional(ctx, scope, n.Body)
	if err != nil {
		return flow.Failure(n.Id, fmt.Sprintf("http node execute failed: %v", err)), nil
	}
	var bodyReader io.Reader
	hasBody := strings.TrimSpace(bodyText) != "" &&
		(method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch || method == http.MethodDelete)
	if hasBody {
		bodyReader = strings.NewReader(bodyText)
	}

	req, err := http.NewRequestWithContext(ctx, method, finalUrl, bodyReader)
	if err != nil {
		return flow.Failure(n.Id, fmt.Sprintf("http node execute failed: %v", err)), nil
	}
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}

	headersText, err := n.computeOptional(ctx, scope, n.Headers)
	if err != nil {
		return flow.Failure(n.Id, fmt.Sprintf("http node execute failed: %v", err)), nil
	}
	applyHeaderLines(req, headersText)

	timeout := n.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	client := &http.Client{Timeout: time.Duration(timeout) * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return flow.Failure(n.Id, fmt.Sprintf("http node timeout after %d seconds: %v", timeout, err)), nil
		}
		return flow.Failure(n.Id, fmt.Sprintf("http node execute failed: %v", err)), nil
	}
	defer resp.Body.Close()
	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return flow.Failure(n.Id, fmt.Sprintf("http node execute failed: %v", err)), nil
	}

	return flow.Success(n.Id, map[string]any{
		"responseBody": string(responseBody),
		"statusCode":   int64(resp.StatusCode),
	}), nil
}

func (n *HttpNode) computeOptional(ctx context.Context, scope *flow.Scope, unit *expr.FullTextExpressionUnit) (string, error) {
	if unit == nil {
		return "", nil
	}
	return expr.ComputeValueAs[string](ctx, scope, unit)
}

// applyHeaderLines parses "Key: Value" lines into request headers.
func applyHeaderLines(req *http.Request, headersText string) {
	for _, line := range strings.FieldsFunc(headersText, func(r rune) bool { return r == '\r' || r == '\n' }) {
		line = strings.TrimSpace(line)
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		name := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if name == "" {
			continue
		}
		req.Header.Set(name, value)
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	if errors.As(err, &t) {
		return t.Timeout()
	}
	return false
}
