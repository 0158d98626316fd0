package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/karloscodes/cartridge"

	"sigil/internal/avatars"
	"sigil/internal/config"
)

const cleanupInterval = 24 * time.Hour

// Scheduler is responsible for running background jobs
type Scheduler struct {
	logger    *slog.Logger
	cfg       *config.Config
	ctx       context.Context
	cancel    context.CancelFunc
	enabled   bool
	isRunning bool
	wg        sync.WaitGroup

	// Prevents jobs from overlapping
	processingMutex sync.Mutex
	isProcessing    bool

	flushJob   *LedgerFlushJob
	cleanupJob *CleanupJob

	flushTicker   *time.Ticker
	cleanupTicker *time.Ticker
}

var _ cartridge.BackgroundWorker = (*Scheduler)(nil)

func NewScheduler(dbManager cartridge.DBManager, service *avatars.Service, logger *slog.Logger, cfg *config.Config) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		logger:     logger,
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		enabled:    true,
		flushJob:   NewLedgerFlushJob(service, logger),
		cleanupJob: NewCleanupJob(dbManager, logger, cfg),
	}
}

// executeJobSafely runs a job only if no other job is currently executing.
// It reports whether the job ran.
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func() error) bool {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return false
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
	return true
}

// Start begins all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Start() error {
	if !s.enabled {
		s.logger.Info("Background jobs are disabled.")
		return nil
	}
	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.logger.Info("Starting background jobs...")
	s.isRunning = true

	interval := time.Duration(s.cfg.JobIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	s.flushTicker = time.NewTicker(interval)
	s.cleanupTicker = time.NewTicker(cleanupInterval)

	s.runEvery("ledger_flush", s.flushTicker, s.flushJob.Run, false)
	s.runEvery("ledger_cleanup", s.cleanupTicker, s.cleanupJob.Run, true)

	s.logger.Info("Background jobs started", slog.Duration("flush_interval", interval))
	return nil
}

func (s *Scheduler) runEvery(jobName string, ticker *time.Ticker, jobFunc func() error, runNow bool) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if runNow {
			s.executeJobSafely(jobName, jobFunc)
		}
		for {
			select {
			case <-ticker.C:
				s.executeJobSafely(jobName, jobFunc)
			case <-s.ctx.Done():
				s.logger.Info("Background job stopped", slog.String("job", jobName))
				return
			}
		}
	}()
}

// Stop halts all background jobs and flushes whatever the ledger buffer
// still holds.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.enabled = false

	if s.flushTicker != nil {
		s.flushTicker.Stop()
	}
	if s.cleanupTicker != nil {
		s.cleanupTicker.Stop()
	}
	s.cancel()
	s.wg.Wait()

	if err := s.flushJob.Run(); err != nil {
		s.logger.Error("Failed to flush avatar ledger on shutdown", slog.Any("error", err))
	}

	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}

// FlushNow runs the ledger flush immediately unless another job is running.
func (s *Scheduler) FlushNow() bool {
	return s.executeJobSafely("ledger_flush", s.flushJob.Run)
}
