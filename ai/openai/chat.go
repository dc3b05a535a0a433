// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/poiesic/sqlrecall/ai"
)

// ErrEmptyReply indicates the chat model returned no choices or only whitespace.
var ErrEmptyReply = errors.New("chat model returned an empty reply")

// ChatProbeText is the message TestChat sends.
const ChatProbeText = "Hello, this is a connection test."

// ChatBackend implements ai.ChatBackend using OpenAI-compatible chat APIs.
type ChatBackend struct {
	client      llms.Model
	model       string
	host        string
	temperature float64
	language    string
	dialect     string
	logger      *slog.Logger
}

var (
	_ ai.ChatBackend = (*ChatBackend)(nil)
	_ ai.ChatProber  = (*ChatBackend)(nil)
)

// newChatBackend is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newChatBackend(config *ai.Config) (*ChatBackend, error) {
	if err := config.ValidateChat(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.ChatAPIKey),
		openai.WithModel(config.ChatModel),
		openai.WithHTTPClient(&http.Client{Timeout: 2 * config.RequestTimeout}),
	)
	if err != nil {
		return nil, err
	}

	return newChatBackendWithModel(client, config), nil
}

func newChatBackendWithModel(client llms.Model, config *ai.Config) *ChatBackend {
	return &ChatBackend{
		client:      client,
		model:       config.ChatModel,
		host:        config.ChatHost,
		temperature: config.Temperature,
		language:    config.Language,
		dialect:     config.SQLDialect,
		logger: slog.Default().With("component", "openai-chat",
			"provider", string(config.ChatProvider), "model", config.ChatModel),
	}
}

// NewChatBackend creates a new chat backend using the provided configuration.
//
// Returns ai.ChatBackend interface to enforce abstraction.
func NewChatBackend(config *ai.Config) (ai.ChatBackend, error) {
	return newChatBackend(config)
}

// GenerateSQL asks the model for a SQL query answering question. Retrieved
// DDL and documentation go into the system prompt; retrieved question/SQL
// examples are replayed as earlier conversation turns.
func (c *ChatBackend) GenerateSQL(ctx context.Context, question string, rc ai.RetrievalContext) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New("question cannot be empty")
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(buildSQLSystemPrompt(c.dialect, c.language, rc))},
		},
	}
	for _, ex := range rc.Examples {
		content = append(content,
			llms.MessageContent{
				Role:  llms.ChatMessageTypeHuman,
				Parts: []llms.ContentPart{llms.TextPart(ex.Question)},
			},
			llms.MessageContent{
				Role:  llms.ChatMessageTypeAI,
				Parts: []llms.ContentPart{llms.TextPart(ex.SQL)},
			},
		)
	}
	content = append(content, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(question)},
	})

	c.logger.Debug("generating sql",
		"ddl", len(rc.DDL), "documentation", len(rc.Documentation), "examples", len(rc.Examples))

	reply, err := c.complete(ctx, content, c.temperature)
	if err != nil {
		return "", err
	}
	return extractSQL(reply), nil
}

// GenerateQuestion asks the model for the question sql answers. The first
// "--" comment in sql is passed along as a hint.
func (c *ChatBackend) GenerateQuestion(ctx context.Context, sql string) (string, error) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return "", errors.New("sql cannot be empty")
	}

	prompt := buildQuestionPrompt(c.language, sql, sqlCommentHint(sql))
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		},
	}

	reply, err := c.complete(ctx, content, c.temperature)
	if err != nil {
		return "", fmt.Errorf("generate question for sql: %w", err)
	}

	question := cleanQuestion(reply)
	if question == "" {
		return "", fmt.Errorf("generate question for sql: %w", ErrEmptyReply)
	}
	c.logger.Debug("generated question", "question", question)
	return question, nil
}

func (c *ChatBackend) complete(ctx context.Context, content []llms.MessageContent, temperature float64) (string, error) {
	response, err := c.client.GenerateContent(ctx, content, llms.WithTemperature(temperature))
	if err != nil {
		c.logger.Error("failed to generate content", "err", err)
		return "", err
	}
	if len(response.Choices) < 1 || strings.TrimSpace(response.Choices[0].Content) == "" {
		return "", ErrEmptyReply
	}
	return response.Choices[0].Content, nil
}

// TestChat sends ChatProbeText with a small token budget. Any reply with at
// least one choice counts as success.
func (c *ChatBackend) TestChat(ctx context.Context) ai.ProbeResult {
	result := ai.ProbeResult{Model: c.model, BaseURL: c.host}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(ChatProbeText)},
		},
	}
	response, err := c.client.GenerateContent(ctx, content, llms.WithMaxTokens(10))
	if err != nil {
		result.Message = fmt.Sprintf("chat model connection failed: %v", err)
		return result
	}
	if len(response.Choices) == 0 {
		result.Message = "chat model connection failed: no choices in reply"
		return result
	}

	result.Success = true
	result.Message = "chat model connection succeeded"
	return result
}
