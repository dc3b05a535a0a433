package mock

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/poiesic/sqlrecall/ai"
)

// MockChatBackend is a test double for ai.ChatBackend.
type MockChatBackend struct {
	// GenerateSQLFunc is called by GenerateSQL if set.
	// If nil, returns a fixed SELECT statement.
	GenerateSQLFunc func(ctx context.Context, question string, rc ai.RetrievalContext) (string, error)

	// GenerateQuestionFunc is called by GenerateQuestion if set.
	// If nil, derives a question from the SQL text.
	GenerateQuestionFunc func(ctx context.Context, sql string) (string, error)

	// TestChatFunc is called by TestChat if set.
	// If nil, reports success.
	TestChatFunc func(ctx context.Context) ai.ProbeResult

	callCount atomic.Int64
}

var (
	_ ai.ChatBackend = (*MockChatBackend)(nil)
	_ ai.ChatProber  = (*MockChatBackend)(nil)
)

// NewMockChatBackend creates a mock chat backend with default behavior.
func NewMockChatBackend() *MockChatBackend {
	return &MockChatBackend{}
}

// GenerateSQL returns "SELECT 1" unless GenerateSQLFunc is set.
func (m *MockChatBackend) GenerateSQL(ctx context.Context, question string, rc ai.RetrievalContext) (string, error) {
	m.callCount.Add(1)
	if m.GenerateSQLFunc != nil {
		return m.GenerateSQLFunc(ctx, question, rc)
	}
	return "SELECT 1", nil
}

// GenerateQuestion returns "What does <sql> return?" unless GenerateQuestionFunc is set.
func (m *MockChatBackend) GenerateQuestion(ctx context.Context, sql string) (string, error) {
	m.callCount.Add(1)
	if m.GenerateQuestionFunc != nil {
		return m.GenerateQuestionFunc(ctx, sql)
	}
	return "What does " + strings.TrimSpace(sql) + " return?", nil
}

// TestChat reports success unless TestChatFunc is set.
func (m *MockChatBackend) TestChat(ctx context.Context) ai.ProbeResult {
	m.callCount.Add(1)
	if m.TestChatFunc != nil {
		return m.TestChatFunc(ctx)
	}
	return ai.ProbeResult{Success: true, Model: "mock", Message: "mock chat backend"}
}

// CallCount returns the number of times any method was called.
func (m *MockChatBackend) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and injected functions.
func (m *MockChatBackend) Reset() {
	m.callCount.Store(0)
	m.GenerateSQLFunc = nil
	m.GenerateQuestionFunc = nil
	m.TestChatFunc = nil
}
