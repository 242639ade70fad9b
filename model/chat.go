package model

import "time"

// ChatRequest is one incoming chat turn. An empty ConversationId starts a new
// conversation; a non-empty one continues a persisted conversation.
type ChatRequest struct {
	Query          string         `json:"query"`
	User           string         `json:"user"`
	ConversationId string         `json:"conversationId,omitempty"`
	ResponseMode   string         `json:"responseMode,omitempty"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	Files          []FileRef      `json:"files,omitempty"`
}

const (
	ResponseModeStreaming = "streaming"
	ResponseModeBlocking  = "blocking"
)

// FileRef is an online file attached to a chat turn.
type FileRef struct {
	Url      string `json:"url"`
	Name     string `json:"name,omitempty"`
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

type Conversation struct {
	ConversationId   string         `json:"conversationId"`
	User             string         `json:"user"`
	FlowId           int64          `json:"flowId"`
	Title            string         `json:"title"`
	IsTop            bool           `json:"isTop"`
	MessageCount     int            `json:"messageCount"`
	PromptTokens     int            `json:"promptTokens"`
	CompletionTokens int            `json:"completionTokens"`
	TotalTokens      int            `json:"totalTokens"`
	Variables        map[string]any `json:"variables"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

type ChatMessage struct {
	Id             string     `json:"id"`
	User           string     `json:"user"`
	FlowId         int64      `json:"flowId"`
	ConversationId string     `json:"conversationId"`
	FlowInstanceId string     `json:"flowInstanceId"`
	Question       string     `json:"question"`
	Answer         string     `json:"answer"`
	TokenUsage     TokenUsage `json:"tokenUsage"`
	Files          []FileRef  `json:"files,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}
