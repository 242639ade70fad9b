package config

import (
	"time"

	"github.com/superflowai/superflow/analytics"
)

type Config struct {
	RedisConfig     RedisStorageConfig
	HttpPort        int
	ScriptConfig    ScriptConfig
	LLMCallTimeout  time.Duration
	AnalyticsConfig analytics.DataCollectorConfig
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
}

// ScriptConfig bounds the javascript sandbox used by script expression units.
type ScriptConfig struct {
	Timeout      time.Duration
	MaxCallDepth int
}

func (c ScriptConfig) WithDefaults() ScriptConfig {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.MaxCallDepth <= 0 {
		c.MaxCallDepth = 100
	}
	return c
}
