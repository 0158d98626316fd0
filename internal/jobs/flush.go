package jobs

import (
	"log/slog"
)

// LedgerFlushJob moves served avatars from the in-memory tracker into the
// ledger table.
type LedgerFlushJob struct {
	service flusher
	logger  *slog.Logger
}

type flusher interface {
	Flush() (int, error)
}

func NewLedgerFlushJob(service flusher, logger *slog.Logger) *LedgerFlushJob {
	return &LedgerFlushJob{service: service, logger: logger}
}

func (j *LedgerFlushJob) Run() error {
	n, err := j.service.Flush()
	if err != nil {
		return err
	}
	if n > 0 {
		j.logger.Debug("Flushed avatar ledger", slog.Int("entries", n))
	}
	return nil
}
