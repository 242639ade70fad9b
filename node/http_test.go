package node

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/superflowai/superflow/expr"
	"github.com/superflowai/superflow/flow"
)

func TestHttpNodeGetWithQueryAndHeaders(t *testing.T) {
	var gotPath, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		gotHeader = r.Header.Get("X-Token")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	token := mustVar(t, `{"typeName":"StringVariable","name":"token"}`)
	token.SetValue("secret")
	scope := newScope(&flow.Definition{}, token)
	n := &HttpNode{
		baseNode: baseNode{Id: "http1"},
		Method:   "get",
		Url:      &expr.FullTextMiniExpressionUnit{FullTextExpressionUnit: expr.FullTextExpressionUnit{Text: srv.URL + "/items"}},
		Query:    &expr.FullTextExpressionUnit{Text: "id=7"},
		Headers:  &expr.FullTextExpressionUnit{Text: "X-Token: {{token}}"},
	}

	result, err := n.Execute(context.Background(), scope)
	require.NoError(t, err)
	require.True(t, result.IsSuccess)
	out := result.Result.(map[string]any)
	assert.Equal(t, int64(200), out["statusCode"])
	assert.Equal(t, `{"ok":true}`, out["responseBody"])
	assert.Equal(t, "/items?id=7", gotPath)
	assert.Equal(t, "secret", gotHeader)
}

func TestHttpNodePostBody(t *testing.T) {
	var gotBody, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	scope := newScope(&flow.Definition{})
	n := &HttpNode{
		baseNode: baseNode{Id: "http1"},
		Method:   "POST",
		Url:      &expr.FullTextMiniExpressionUnit{FullTextExpressionUnit: expr.FullTextExpressionUnit{Text: srv.URL}},
		Body:     &expr.FullTextExpressionUnit{Text: `{"name":"x"}`},
	}

	result, err := n.Execute(context.Background(), scope)
	require.NoError(t, err)
	require.True(t, result.IsSuccess)
	out := result.Result.(map[string]any)
	assert.Equal(t, int64(201), out["statusCode"])
	assert.Equal(t, `{"name":"x"}`, gotBody)
	assert.Equal(t, "application/json", gotContentType)
}

func TestHttpNodeUrlRequired(t *testing.T) {
	scope := newScope(&flow.Definition{})
	n := &HttpNode{
		baseNode: baseNode{Id: "http1"},
		Url:      &expr.FullTextMiniExpressionUnit{FullTextExpressionUnit: expr.FullTextExpressionUnit{Text: "  "}},
	}
	result, err := n.Execute(context.Background(), scope)
	require.NoError(t, err)
	assert.False(t, result.IsSuccess)
	assert.Equal(t, "http url is required", result.ErrorMsg)
}

func TestHttpNodeOmittedUrl(t *testing.T) {
	n, err := DecodeNode([]byte(`{"typeName":"HttpNode","id":"http1","method":"GET"}`))
	require.NoError(t, err)

	result, err := n.Execute(context.Background(), newScope(&flow.Definition{}))
	require.NoError(t, err)
	assert.False(t, result.IsSuccess)
	assert.Equal(t, "http url is required", result.ErrorMsg)
}

func TestHttpNodeConnectionFailureIsRecoverable(t *testing.T) {
	scope := newScope(&flow.Definition{})
	n := &HttpNode{
		baseNode: baseNode{Id: "http1"},
		Url:      &expr.FullTextMiniExpressionUnit{FullTextExpressionUnit: expr.FullTextExpressionUnit{Text: "http://127.0.0.1:1/nope"}},
	}
	result, err := n.Execute(context.Background(), scope)
	require.NoError(t, err)
	assert.False(t, result.IsSuccess)
	assert.Equal(t, flow.ErrCodeNodeFailed, result.ErrorCode)
}
