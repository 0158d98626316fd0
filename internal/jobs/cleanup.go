package jobs

import (
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"

	"sigil/internal/avatars"
	"sigil/internal/config"
)

// CleanupJob prunes ledger rows that have not been served within the
// retention window.
type CleanupJob struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	cfg       *config.Config
	now       func() time.Time
}

func NewCleanupJob(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config) *CleanupJob {
	return &CleanupJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run deletes stale ledger rows. A retention of zero or less keeps everything.
func (j *CleanupJob) Run() error {
	retentionDays := j.cfg.LedgerRetentionDays
	if retentionDays <= 0 {
		j.logger.Debug("Ledger retention disabled, skipping cleanup")
		return nil
	}

	cutoff := j.now().UTC().AddDate(0, 0, -retentionDays)
	j.logger.Info("Starting cleanup of stale avatar ledger rows",
		slog.Int("retention_days", retentionDays),
		slog.Time("cutoff_date", cutoff))

	deleted, err := avatars.PruneStale(j.dbManager.GetConnection(), j.logger, cutoff)
	if err != nil {
		return err
	}

	j.logger.Info("Cleaned up stale avatar ledger rows",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", retentionDays))
	return nil
}
