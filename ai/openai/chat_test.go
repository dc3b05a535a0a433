package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/poiesic/sqlrecall/ai"
)

// fakeModel is an llms.Model that records the messages it receives.
type fakeModel struct {
	reply    string
	err      error
	messages []llms.MessageContent
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	if m.err != nil {
		return nil, m.err
	}
	if m.reply == "" {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func textOf(t *testing.T, mc llms.MessageContent) string {
	t.Helper()
	require.Len(t, mc.Parts, 1)
	part, ok := mc.Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

func newTestChat(model llms.Model) *ChatBackend {
	cfg := ai.NewConfig(ai.WithChatAPIKey("k"), ai.WithLanguage("English"))
	cfg.Normalize()
	return newChatBackendWithModel(model, cfg)
}

func TestNewChatBackend_RequiresKey(t *testing.T) {
	_, err := NewChatBackend(ai.NewConfig())
	assert.ErrorIs(t, err, ai.ErrConfiguration)
}

func TestGenerateSQL(t *testing.T) {
	model := &fakeModel{reply: "Here you go:\n```sql\nSELECT COUNT(*) FROM orders;\n```"}
	chat := newTestChat(model)

	rc := ai.RetrievalContext{
		DDL:           []string{"CREATE TABLE orders (id INT)"},
		Documentation: []string{"orders holds one row per purchase"},
		Examples:      []ai.QuestionSQL{{Question: "How many users?", SQL: "SELECT COUNT(*) FROM users"}},
	}

	sql, err := chat.GenerateSQL(context.Background(), "How many orders?", rc)
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM orders;", sql)

	require.Len(t, model.messages, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	system := textOf(t, model.messages[0])
	assert.Contains(t, system, "CREATE TABLE orders")
	assert.Contains(t, system, "one row per purchase")
	assert.Contains(t, system, "PostgreSQL")
	assert.Contains(t, system, "English")

	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, "How many users?", textOf(t, model.messages[1]))
	assert.Equal(t, llms.ChatMessageTypeAI, model.messages[2].Role)
	assert.Equal(t, "How many orders?", textOf(t, model.messages[3]))
}

func TestGenerateSQL_Errors(t *testing.T) {
	_, err := newTestChat(&fakeModel{reply: "x"}).GenerateSQL(context.Background(), " ", ai.RetrievalContext{})
	assert.Error(t, err)

	_, err = newTestChat(&fakeModel{}).GenerateSQL(context.Background(), "q", ai.RetrievalContext{})
	assert.ErrorIs(t, err, ErrEmptyReply)

	boom := errors.New("boom")
	_, err = newTestChat(&fakeModel{err: boom}).GenerateSQL(context.Background(), "q", ai.RetrievalContext{})
	assert.ErrorIs(t, err, boom)
}

func TestGenerateQuestion(t *testing.T) {
	t.Run("uses comment hint and adds question mark", func(t *testing.T) {
		model := &fakeModel{reply: "  How many orders shipped today  "}
		chat := newTestChat(model)

		q, err := chat.GenerateQuestion(context.Background(), "-- daily shipments\nSELECT COUNT(*) FROM orders")
		require.NoError(t, err)
		assert.Equal(t, "How many orders shipped today?", q)

		prompt := textOf(t, model.messages[0])
		assert.Contains(t, prompt, "Comment: daily shipments")
	})

	t.Run("keeps existing question mark", func(t *testing.T) {
		chat := newTestChat(&fakeModel{reply: "今天发货多少单？"})

		q, err := chat.GenerateQuestion(context.Background(), "SELECT 1")
		require.NoError(t, err)
		assert.Equal(t, "今天发货多少单？", q)
	})

	t.Run("empty sql", func(t *testing.T) {
		_, err := newTestChat(&fakeModel{reply: "x"}).GenerateQuestion(context.Background(), "")
		assert.Error(t, err)
	})

	t.Run("model failure", func(t *testing.T) {
		_, err := newTestChat(&fakeModel{err: errors.New("down")}).GenerateQuestion(context.Background(), "SELECT 1")
		assert.Error(t, err)
	})
}

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{name: "fenced sql", reply: "```sql\nSELECT 1;\n```", want: "SELECT 1;"},
		{name: "fenced without language", reply: "text ```\nSELECT 2\n``` more", want: "SELECT 2"},
		{name: "bare select", reply: "The answer is SELECT a FROM b; done", want: "SELECT a FROM b;"},
		{name: "with clause", reply: "with x as (select 1) select * from x;", want: "with x as (select 1) select * from x;"},
		{name: "reasoning stripped", reply: "<think>SELECT wrong;</think>\nSELECT right;", want: "SELECT right;"},
		{name: "plain reply", reply: "  cannot answer  ", want: "cannot answer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractSQL(tt.reply))
		})
	}
}

func TestSQLCommentHint(t *testing.T) {
	assert.Equal(t, "top customers", sqlCommentHint("-- top customers\nSELECT *"))
	assert.Equal(t, "inline", sqlCommentHint("SELECT 1 -- inline"))
	assert.Equal(t, "", sqlCommentHint("SELECT 1"))
}

func TestEnsureQuestionMark(t *testing.T) {
	assert.Equal(t, "why?", ensureQuestionMark("why"))
	assert.Equal(t, "why?", ensureQuestionMark(" why? "))
	assert.Equal(t, "为什么？", ensureQuestionMark("为什么？"))
	assert.Equal(t, "", ensureQuestionMark("  "))
}

func TestCleanQuestion(t *testing.T) {
	assert.Equal(t, "Which region sells most?", cleanQuestion("\"Which region sells most\"\nExplanation: ..."))
	assert.Equal(t, "Total revenue?", cleanQuestion("<think>hmm</think>Total revenue"))
}

func TestTestChat(t *testing.T) {
	t.Run("reply succeeds", func(t *testing.T) {
		model := &fakeModel{reply: "Hi"}
		result := newTestChat(model).TestChat(context.Background())

		assert.True(t, result.Success)
		require.Len(t, model.messages, 1)
		assert.Equal(t, ChatProbeText, textOf(t, model.messages[0]))
	})

	t.Run("transport error fails", func(t *testing.T) {
		result := newTestChat(&fakeModel{err: errors.New("connection refused")}).TestChat(context.Background())

		assert.False(t, result.Success)
		assert.Contains(t, result.Message, "connection refused")
	})

	t.Run("no choices fails", func(t *testing.T) {
		result := newTestChat(&fakeModel{}).TestChat(context.Background())

		assert.False(t, result.Success)
		assert.Contains(t, result.Message, "no choices")
	})
}
