package ai

import (
	"fmt"
	"strings"
)

// ChatProvider names a supported chat service.
type ChatProvider string

const (
	ChatProviderQwen     ChatProvider = "qwen"
	ChatProviderDeepSeek ChatProvider = "deepseek"
)

// ParseChatProvider converts a provider name to a ChatProvider.
func ParseChatProvider(s string) (ChatProvider, error) {
	p := ChatProvider(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := DefaultChatSettings(p); !ok {
		return "", fmt.Errorf("%w: unsupported chat provider %q", ErrConfiguration, s)
	}
	return p, nil
}

// ChatSettings are the per-provider defaults for the chat backend.
type ChatSettings struct {
	Host   string
	Model  string
	EnvKey string
}

var chatSettings = map[ChatProvider]ChatSettings{
	ChatProviderQwen: {
		Host:   "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:  "qwen-plus",
		EnvKey: "QWEN_API_KEY",
	},
	ChatProviderDeepSeek: {
		Host:   "https://api.deepseek.com/v1",
		Model:  "deepseek-chat",
		EnvKey: "DEEPSEEK_API_KEY",
	},
}

// DefaultChatSettings returns the defaults for p and whether p is supported.
func DefaultChatSettings(p ChatProvider) (ChatSettings, bool) {
	s, ok := chatSettings[p]
	return s, ok
}

// RetrievalContext is the training material retrieved for a question.
type RetrievalContext struct {
	DDL           []string
	Documentation []string
	Examples      []QuestionSQL
}

// QuestionSQL is a retrieved question/SQL example.
type QuestionSQL struct {
	Question string
	SQL      string
}

// Empty reports whether nothing was retrieved.
func (rc RetrievalContext) Empty() bool {
	return len(rc.DDL) == 0 && len(rc.Documentation) == 0 && len(rc.Examples) == 0
}

// ProbeResult is the outcome of a connectivity check against the embedding
// or chat service. The dimension fields are only set for embeddings.
type ProbeResult struct {
	Success           bool
	Model             string
	BaseURL           string
	Message           string
	ActualDimension   int
	ExpectedDimension int
}
