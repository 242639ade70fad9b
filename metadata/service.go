package metadata

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/superflowai/superflow/flow"
	"github.com/superflowai/superflow/logger"
	"github.com/superflowai/superflow/model"
	"github.com/superflowai/superflow/node"
	"github.com/superflowai/superflow/persistence"
	"go.uber.org/zap"
)

// MetadataService manages stored flow records and serves their decoded,
// validated graph definitions. Definitions are cached; writes invalidate.
type MetadataService interface {
	GetDefinition(ctx context.Context, flowId int64) (*flow.Definition, *model.Flow, error)
	SaveFlow(ctx context.Context, fl model.Flow) error
	DeleteFlow(ctx context.Context, flowId int64) error
	ListFlows(ctx context.Context) ([]model.Flow, error)
	Validate(config []byte) error
}

type MetadataServiceImpl struct {
	store persistence.Storage
	cache *cache.Cache
}

var _ MetadataService = new(MetadataServiceImpl)

func NewMetadataService(store persistence.Storage) *MetadataServiceImpl {
	return &MetadataServiceImpl{
		store: store,
		cache: cache.New(5*time.Minute, 10*time.Minute),
	}
}

type cachedFlow struct {
	definition *flow.Definition
	record     *model.Flow
}

func (s *MetadataServiceImpl) GetDefinition(ctx context.Context, flowId int64) (*flow.Definition, *model.Flow, error) {
	key := cacheKey(flowId)
	if entry, ok := s.cache.Get(key); ok {
		cached := entry.(cachedFlow)
		return cached.definition, cached.record, nil
	}
	record, err := s.store.GetFlow(ctx, flowId)
	if err != nil {
		return nil, nil, err
	}
	if record == nil {
		return nil, nil, fmt.Errorf("flow %d not found", flowId)
	}
	def, err := node.DecodeDefinition(record.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("flow %d config invalid: %w", flowId, err)
	}
	if err := node.ValidateDefinition(def); err != nil {
		return nil, nil, fmt.Errorf("flow %d config invalid: %w", flowId, err)
	}
	s.cache.Set(key, cachedFlow{definition: def, record: record}, cache.DefaultExpiration)
	return def, record, nil
}

func (s *MetadataServiceImpl) SaveFlow(ctx context.Context, fl model.Flow) error {
	if err := s.Validate(fl.Config); err != nil {
		return err
	}
	fl.UpdatedAt = time.Now()
	if err := s.store.SaveFlow(ctx, fl); err != nil {
		return err
	}
	s.cache.Delete(cacheKey(fl.Id))
	logger.Info("flow saved", zap.Int64("flowId", fl.Id), zap.String("displayName", fl.DisplayName))
	return nil
}

func (s *MetadataServiceImpl) DeleteFlow(ctx context.Context, flowId int64) error {
	if err := s.store.DeleteFlow(ctx, flowId); err != nil {
		return err
	}
	s.cache.Delete(cacheKey(flowId))
	return nil
}

func (s *MetadataServiceImpl) ListFlows(ctx context.Context) ([]model.Flow, error) {
	return s.store.ListFlows(ctx)
}

// Validate decodes and checks a graph document without storing it.
func (s *MetadataServiceImpl) Validate(config []byte) error {
	def, err := node.DecodeDefinition(config)
	if err != nil {
		return err
	}
	return node.ValidateDefinition(def)
}

func cacheKey(flowId int64) string {
	return fmt.Sprintf("flow:%d", flowId)
}
