package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/placementpulse/api/utils"
	"github.com/placementpulse/api/utils/metrics"
	"github.com/robfig/cron/v3"
)

// JobTimeout bounds a single job run
const JobTimeout = 5 * time.Minute

// Store is the persistence used by the scheduled jobs
type Store interface {
	StartCronLog(ctx context.Context, jobName string, startedAt time.Time) (uint, error)
	FinishCronLog(ctx context.Context, id uint, message, errMsg string, duration time.Duration) error

	BackfillOrphanPayments(ctx context.Context) (int64, error)
	PruneCronLogs(ctx context.Context, before time.Time) (int64, error)
}

// Job is a scheduled unit of work. Run returns a short summary message.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) (string, error)
}

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron   *cron.Cron
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewCronManager creates a new cron manager
func NewCronManager(store Store, logger *slog.Logger) *CronManager {
	if logger == nil {
		logger = utils.NopLogger()
	}

	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron:   c,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	m.logger.Info("Starting cron jobs...")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	m.logger.Info("Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs and waits for running ones
func (m *CronManager) Stop() {
	m.logger.Info("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.logger.Info("Cron jobs stopped")
}

// Jobs returns every scheduled job
func (m *CronManager) Jobs() []Job {
	return []Job{
		// Every 10 minutes: link audit records created before the account existed
		{Name: "backfill_payment_users", Schedule: "0 */10 * * * *", Run: m.BackfillPaymentUsers},
		// Daily at 2 AM: drop old cron logs
		{Name: "prune_cron_logs", Schedule: "0 0 2 * * *", Run: m.PruneCronLogs},
	}
}

func (m *CronManager) registerJobs() error {
	for _, job := range m.Jobs() {
		job := job
		if _, err := m.cron.AddFunc(job.Schedule, func() { m.RunJob(job) }); err != nil {
			return err
		}
	}

	m.logger.Info("All cron jobs registered successfully")
	return nil
}

// RunJob executes a job with cron log bookkeeping
func (m *CronManager) RunJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), JobTimeout)
	defer cancel()
	ctx = utils.WithLogAttrs(ctx, slog.String("job", job.Name))

	started := m.now()
	m.logger.InfoContext(ctx, "[CRON] Starting job")

	logID, err := m.store.StartCronLog(ctx, job.Name, started)
	if err != nil {
		m.logger.WarnContext(ctx, "[CRON] Failed to write job log", "error", err)
	}

	message, runErr := job.Run(ctx)
	duration := m.now().Sub(started)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		metrics.CronRun(job.Name, "failed")
		m.logger.ErrorContext(ctx, "[CRON] Job failed", "error", runErr)
	} else {
		metrics.CronRun(job.Name, "completed")
		m.logger.InfoContext(ctx, "[CRON] Completed job", "message", message, "duration_ms", duration.Milliseconds())
	}

	if logID != 0 {
		if err := m.store.FinishCronLog(ctx, logID, message, errMsg, duration); err != nil {
			m.logger.WarnContext(ctx, "[CRON] Failed to update job log", "error", err)
		}
	}
}
