package flow

import "fmt"

// ConfigError marks a failure of the graph definition itself: missing start
// node, dangling edges, a condition with no matching rule and no else edge.
// The runner aborts such runs before persisting anything.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

func Configf(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}
