package metadata

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/superflowai/superflow/model"
	"github.com/superflowai/superflow/persistence/redis"
)

const validConfig = `{
	"nodes": [
		{"typeName": "StartNode", "id": "start1"},
		{"typeName": "ReplyNode", "id": "reply1", "message": {"typeName": "FullTextExpressionUnit", "text": "hi"}}
	],
	"lines": [{"id": "e1", "fromNodeId": "start1", "toNodeId": "reply1"}],
	"variables": [],
	"inputParameters": []
}`

func newService(t *testing.T) *MetadataServiceImpl {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewMetadataService(redis.NewRedisStorage(redis.Config{
		Addrs:     []string{mr.Addr()},
		Namespace: "sftest",
	}))
}

func TestSaveAndGetDefinition(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	err := svc.SaveFlow(ctx, model.Flow{Id: 1, DisplayName: "greeter", Config: []byte(validConfig)})
	require.NoError(t, err)

	def, record, err := svc.GetDefinition(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "greeter", record.DisplayName)
	require.Len(t, def.Nodes, 2)

	// second read comes from cache and returns the same definition
	def2, _, err := svc.GetDefinition(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, def, def2)
}

func TestGetDefinitionNotFound(t *testing.T) {
	svc := newService(t)
	_, _, err := svc.GetDefinition(context.Background(), 404)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSaveFlowRejectsInvalidConfig(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	err := svc.SaveFlow(ctx, model.Flow{Id: 2, Config: []byte(`{"nodes":[],"lines":[]}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one start node")

	err = svc.SaveFlow(ctx, model.Flow{Id: 2, Config: []byte(`{"nodes":[{"typeName":"MysteryNode","id":"x"}]}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node type")
}

func TestDeleteFlowInvalidatesCache(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveFlow(ctx, model.Flow{Id: 3, Config: []byte(validConfig)}))
	_, _, err := svc.GetDefinition(ctx, 3)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteFlow(ctx, 3))
	_, _, err = svc.GetDefinition(ctx, 3)
	require.Error(t, err)
}
