package agent

import (
	"sync"

	"github.com/superflowai/superflow/analytics"
	"github.com/superflowai/superflow/config"
	"github.com/superflowai/superflow/llm"
	"github.com/superflowai/superflow/logger"
	"github.com/superflowai/superflow/metadata"
	"github.com/superflowai/superflow/persistence"
	"github.com/superflowai/superflow/persistence/redis"
	"github.com/superflowai/superflow/rest"
	"github.com/superflowai/superflow/service"
)

// Agent assembles the runtime: storage, llm adapters, metadata service, the
// flow runner and the http server.
type Agent struct {
	Config          config.Config
	storage         persistence.Storage
	adapters        *llm.Registry
	metadataService metadata.MetadataService
	collector       analytics.DataCollector
	runner          service.FlowRunner
	httpServer      *rest.Server
	shutdown        bool
	shutdownLock    sync.Mutex
}

func New(conf config.Config) (*Agent, error) {
	a := &Agent{
		Config: conf,
	}
	setup := []func() error{
		a.setupStorage,
		a.setupAdapters,
		a.setupMetadataService,
		a.setupCollector,
		a.setupRunner,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupStorage() error {
	a.storage = redis.NewRedisStorage(redis.Config{
		Addrs:     a.Config.RedisConfig.Addrs,
		Namespace: a.Config.RedisConfig.Namespace,
	})
	return nil
}

func (a *Agent) setupAdapters() error {
	a.adapters = llm.NewRegistry(llm.NewAliyunAdapter(a.Config.LLMCallTimeout))
	return nil
}

func (a *Agent) setupMetadataService() error {
	a.metadataService = metadata.NewMetadataService(a.storage)
	return nil
}

func (a *Agent) setupCollector() error {
	collector, err := analytics.NewLogFileDataCollector(a.Config.AnalyticsConfig)
	if err != nil {
		return err
	}
	a.collector = collector
	return nil
}

func (a *Agent) setupRunner() error {
	a.runner = service.NewFlowRunner(a.metadataService, a.storage, a.adapters, a.Config.ScriptConfig.WithDefaults(), a.collector)
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.metadataService, a.runner, a.storage)
	if err != nil {
		return err
	}
	return nil
}

func (a *Agent) Start() error {
	go func() {
		err := a.httpServer.Start()
		if err != nil {
			_ = a.Shutdown()
			panic(err)
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true

	return a.httpServer.Stop()
}
