package ingestion

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/panjf2000/ants/v2"
)

// antsLoggerAdapter adapts slog.Logger to the ants.Logger interface.
type antsLoggerAdapter struct {
	logger *slog.Logger
}

var _ ants.Logger = (*antsLoggerAdapter)(nil)

func (al *antsLoggerAdapter) Printf(format string, args ...any) {
	al.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// newPool creates a blocking worker pool: Submit waits for a free worker
// instead of failing when all workers are busy.
func newPool(size int, logger *slog.Logger) (*ants.Pool, error) {
	poolLogger := logger.With("pool", "dispatch")
	return ants.NewPool(size,
		ants.WithNonblocking(false),
		ants.WithLogger(&antsLoggerAdapter{logger: poolLogger}),
		ants.WithPanicHandler(func(p any) {
			poolLogger.Error("dispatch worker panicked", "panic", p)
		}),
	)
}
