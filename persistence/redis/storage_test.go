package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/superflowai/superflow/model"
)

func newTestStorage(t *testing.T) *redisStorage {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewRedisStorage(Config{
		Addrs:     []string{mr.Addr()},
		Namespace: "sftest",
	})
}

func TestFlowRoundTrip(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	err := st.SaveFlow(ctx, model.Flow{Id: 7, DisplayName: "support-bot", Config: []byte(`{"nodes":[]}`)})
	require.NoError(t, err)

	flow, err := st.GetFlow(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, flow)
	assert.Equal(t, "support-bot", flow.DisplayName)

	missing, err := st.GetFlow(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, st.DeleteFlow(ctx, 7))
	flow, err = st.GetFlow(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, flow)
}

func TestProviderList(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, st.SaveProvider(ctx, model.LLMProvider{Id: 2, PlatformName: "aliyun", Models: []string{"qwen-max"}}))
	require.NoError(t, st.SaveProvider(ctx, model.LLMProvider{Id: 1, PlatformName: "deepseek"}))

	providers, err := st.ListProviders(ctx)
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, int64(1), providers[0].Id)
	assert.Equal(t, "aliyun", providers[1].PlatformName)
}

func TestConversationOrdering(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.SaveConversation(ctx, model.Conversation{
		ConversationId: "c-old", User: "u1", UpdatedAt: base,
	}))
	require.NoError(t, st.SaveConversation(ctx, model.Conversation{
		ConversationId: "c-new", User: "u1", UpdatedAt: base.Add(time.Hour),
	}))
	require.NoError(t, st.SaveConversation(ctx, model.Conversation{
		ConversationId: "c-pinned", User: "u1", IsTop: true, UpdatedAt: base.Add(-time.Hour),
	}))

	convs, err := st.ListConversations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, convs, 3)
	assert.Equal(t, "c-pinned", convs[0].ConversationId)
	assert.Equal(t, "c-new", convs[1].ConversationId)
	assert.Equal(t, "c-old", convs[2].ConversationId)

	other, err := st.ListConversations(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestLatestMessagesNewestFirst(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	for _, q := range []string{"first", "second", "third"} {
		require.NoError(t, st.AppendMessage(ctx, model.ChatMessage{
			Id: q, ConversationId: "c1", Question: q,
		}))
	}

	msgs, err := st.LatestMessages(ctx, "c1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "third", msgs[0].Question)
	assert.Equal(t, "second", msgs[1].Question)

	require.NoError(t, st.DeleteMessages(ctx, "c1"))
	msgs, err = st.LatestMessages(ctx, "c1", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
