package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/sqlrecall/ai"
	"github.com/poiesic/sqlrecall/core"
)

// Trainer feeds training material into an Accumulator.
type Trainer struct {
	acc  *Accumulator
	chat ai.ChatBackend
}

// NewTrainer creates a trainer. chat may be nil, in which case TrainSQL
// requires SQL that was paired with a question elsewhere.
func NewTrainer(acc *Accumulator, chat ai.ChatBackend) (*Trainer, error) {
	if acc == nil {
		return nil, fmt.Errorf("%w: accumulator", ErrSinkRequired)
	}
	return &Trainer{acc: acc, chat: chat}, nil
}

// Train queues any training item.
func (t *Trainer) Train(ctx context.Context, item core.TrainingItem) error {
	return t.acc.Add(ctx, item)
}

// TrainDDL queues a schema statement.
func (t *Trainer) TrainDDL(ctx context.Context, statement string) error {
	return t.acc.Add(ctx, core.NewDDL(statement))
}

// TrainDocumentation queues a documentation block.
func (t *Trainer) TrainDocumentation(ctx context.Context, text string) error {
	return t.acc.Add(ctx, core.NewDocumentation(text))
}

// TrainQuestionSQL queues a question paired with the SQL that answers it.
func (t *Trainer) TrainQuestionSQL(ctx context.Context, question, sql string) error {
	return t.acc.Add(ctx, core.NewQuestionSQL(question, sql))
}

// TrainSQL asks the chat backend which question sql answers, then queues the pair.
func (t *Trainer) TrainSQL(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return fmt.Errorf("%w: %w", core.ErrInvalidTrainingItem, core.ErrEmptySQL)
	}
	if t.chat == nil {
		return ErrChatBackendRequired
	}

	question, err := t.chat.GenerateQuestion(ctx, sql)
	if err != nil {
		return fmt.Errorf("generating question for SQL: %w", err)
	}
	return t.TrainQuestionSQL(ctx, question, sql)
}

// Flush drains every partial batch. See Accumulator.Flush.
func (t *Trainer) Flush(ctx context.Context) {
	t.acc.Flush(ctx)
}

// Shutdown flushes and stops the accumulator. See Accumulator.Shutdown.
func (t *Trainer) Shutdown(ctx context.Context) error {
	return t.acc.Shutdown(ctx)
}

// Stats returns the accumulator's dispatch counters.
func (t *Trainer) Stats() Stats {
	return t.acc.Stats()
}
