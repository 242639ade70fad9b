package model

import (
	"encoding/json"
	"time"
)

// Flow is a stored flow record. Config holds the graph document produced by
// the designer (nodes, lines, variables, inputParameters) and is decoded by
// the metadata service.
type Flow struct {
	Id          int64           `json:"id"`
	DisplayName string          `json:"displayName"`
	Config      json.RawMessage `json:"config"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// LLMProvider is the per-platform provider record. Models is the allow-list
// of model names a flow may select from this platform.
type LLMProvider struct {
	Id           int64    `json:"id"`
	PlatformName string   `json:"platformName"`
	Models       []string `json:"models"`
	APIUrl       string   `json:"apiUrl"`
	APIKey       string   `json:"apiKey"`
}

// ChatRole constants for LLM message lists.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// LLMMessage is one entry of an LLM request message list. Content is either a
// plain string or a multi-part content array for image input.
type LLMMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}
