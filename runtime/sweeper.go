package runtime

import (
	"context"
	"log/slog"
	"time"
)

// TypingSweeper periodically expires stale typing entries. It runs under
// the supervisor like any other worker.
type TypingSweeper struct {
	log      *slog.Logger
	typing   *TypingCoordinator
	interval time.Duration
}

func NewTypingSweeper(log *slog.Logger, typing *TypingCoordinator, interval time.Duration) *TypingSweeper {
	if interval <= 0 {
		interval = time.Second
	}
	return &TypingSweeper{log: log, typing: typing, interval: interval}
}

func (w *TypingSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping typing sweeper")
			return nil
		case <-ticker.C:
			w.typing.Sweep(ctx)
		}
	}
}
