package redis

import (
	"context"
	"errors"
	"sort"
	"strconv"

	rd "github.com/redis/go-redis/v9"
	"github.com/superflowai/superflow/logger"
	"github.com/superflowai/superflow/model"
	"github.com/superflowai/superflow/persistence"
	"github.com/superflowai/superflow/util"
	"go.uber.org/zap"
)

const (
	FLOW_KEY         string = "FLOW"
	PROVIDER_KEY     string = "PROVIDER"
	CONVERSATION_KEY string = "CONVERSATION"
	MESSAGE_KEY      string = "MESSAGE"
)

var _ persistence.Storage = new(redisStorage)

type redisStorage struct {
	*baseDao
	flowEncDec         util.EncoderDecoder[model.Flow]
	providerEncDec     util.EncoderDecoder[model.LLMProvider]
	conversationEncDec util.EncoderDecoder[model.Conversation]
	messageEncDec      util.EncoderDecoder[model.ChatMessage]
}

func NewRedisStorage(conf Config) *redisStorage {
	return &redisStorage{
		baseDao:            newBaseDao(conf),
		flowEncDec:         util.NewJsonEncoderDecoder[model.Flow](),
		providerEncDec:     util.NewJsonEncoderDecoder[model.LLMProvider](),
		conversationEncDec: util.NewJsonEncoderDecoder[model.Conversation](),
		messageEncDec:      util.NewJsonEncoderDecoder[model.ChatMessage](),
	}
}

func (r *redisStorage) SaveFlow(ctx context.Context, flow model.Flow) error {
	key := r.getNamespaceKey(FLOW_KEY)
	data, err := r.flowEncDec.Encode(flow)
	if err != nil {
		return err
	}
	if err := r.redisClient.HSet(ctx, key, []string{strconv.FormatInt(flow.Id, 10), string(data)}).Err(); err != nil {
		logger.Error("error in saving flow", zap.Int64("flowId", flow.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) GetFlow(ctx context.Context, id int64) (*model.Flow, error) {
	key := r.getNamespaceKey(FLOW_KEY)
	val, err := r.redisClient.HGet(ctx, key, strconv.FormatInt(id, 10)).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.flowEncDec.Decode([]byte(val))
}

func (r *redisStorage) ListFlows(ctx context.Context) ([]model.Flow, error) {
	key := r.getNamespaceKey(FLOW_KEY)
	values, err := r.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	flows := make([]model.Flow, 0, len(values))
	for _, v := range values {
		flow, err := r.flowEncDec.Decode([]byte(v))
		if err != nil {
			return nil, err
		}
		flows = append(flows, *flow)
	}
	sort.Slice(flows, func(i, j int) bool { return flows[i].Id < flows[j].Id })
	return flows, nil
}

func (r *redisStorage) DeleteFlow(ctx context.Context, id int64) error {
	key := r.getNamespaceKey(FLOW_KEY)
	if err := r.redisClient.HDel(ctx, key, strconv.FormatInt(id, 10)).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) SaveProvider(ctx context.Context, provider model.LLMProvider) error {
	key := r.getNamespaceKey(PROVIDER_KEY)
	data, err := r.providerEncDec.Encode(provider)
	if err != nil {
		return err
	}
	if err := r.redisClient.HSet(ctx, key, []string{strconv.FormatInt(provider.Id, 10), string(data)}).Err(); err != nil {
		logger.Error("error in saving provider", zap.String("platform", provider.PlatformName), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) GetProvider(ctx context.Context, id int64) (*model.LLMProvider, error) {
	key := r.getNamespaceKey(PROVIDER_KEY)
	val, err := r.redisClient.HGet(ctx, key, strconv.FormatInt(id, 10)).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.providerEncDec.Decode([]byte(val))
}

func (r *redisStorage) ListProviders(ctx context.Context) ([]model.LLMProvider, error) {
	key := r.getNamespaceKey(PROVIDER_KEY)
	values, err := r.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	providers := make([]model.LLMProvider, 0, len(values))
	for _, v := range values {
		p, err := r.providerEncDec.Decode([]byte(v))
		if err != nil {
			return nil, err
		}
		providers = append(providers, *p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].Id < providers[j].Id })
	return providers, nil
}

func (r *redisStorage) DeleteProvider(ctx context.Context, id int64) error {
	key := r.getNamespaceKey(PROVIDER_KEY)
	if err := r.redisClient.HDel(ctx, key, strconv.FormatInt(id, 10)).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) SaveConversation(ctx context.Context, conv model.Conversation) error {
	key := r.getNamespaceKey(CONVERSATION_KEY, conv.User)
	data, err := r.conversationEncDec.Encode(conv)
	if err != nil {
		return err
	}
	if err := r.redisClient.HSet(ctx, key, []string{conv.ConversationId, string(data)}).Err(); err != nil {
		logger.Error("error in saving conversation", zap.String("conversationId", conv.ConversationId), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) GetConversation(ctx context.Context, user string, conversationId string) (*model.Conversation, error) {
	key := r.getNamespaceKey(CONVERSATION_KEY, user)
	val, err := r.redisClient.HGet(ctx, key, conversationId).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.conversationEncDec.Decode([]byte(val))
}

func (r *redisStorage) ListConversations(ctx context.Context, user string) ([]model.Conversation, error) {
	key := r.getNamespaceKey(CONVERSATION_KEY, user)
	values, err := r.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	convs := make([]model.Conversation, 0, len(values))
	for _, v := range values {
		conv, err := r.conversationEncDec.Decode([]byte(v))
		if err != nil {
			return nil, err
		}
		convs = append(convs, *conv)
	}
	sort.Slice(convs, func(i, j int) bool {
		if convs[i].IsTop != convs[j].IsTop {
			return convs[i].IsTop
		}
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs, nil
}

func (r *redisStorage) DeleteConversation(ctx context.Context, user string, conversationId string) error {
	key := r.getNamespaceKey(CONVERSATION_KEY, user)
	if err := r.redisClient.HDel(ctx, key, conversationId).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) AppendMessage(ctx context.Context, msg model.ChatMessage) error {
	key := r.getNamespaceKey(MESSAGE_KEY, msg.ConversationId)
	data, err := r.messageEncDec.Encode(msg)
	if err != nil {
		return err
	}
	if err := r.redisClient.RPush(ctx, key, string(data)).Err(); err != nil {
		logger.Error("error in saving message", zap.String("conversationId", msg.ConversationId), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) LatestMessages(ctx context.Context, conversationId string, limit int64) ([]model.ChatMessage, error) {
	key := r.getNamespaceKey(MESSAGE_KEY, conversationId)
	values, err := r.redisClient.LRange(ctx, key, -limit, -1).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return []model.ChatMessage{}, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	msgs := make([]model.ChatMessage, 0, len(values))
	// stored oldest to newest, returned newest first
	for i := len(values) - 1; i >= 0; i-- {
		msg, err := r.messageEncDec.Decode([]byte(values[i]))
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *msg)
	}
	return msgs, nil
}

func (r *redisStorage) DeleteMessages(ctx context.Context, conversationId string) error {
	key := r.getNamespaceKey(MESSAGE_KEY, conversationId)
	if err := r.redisClient.Del(ctx, key).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}
