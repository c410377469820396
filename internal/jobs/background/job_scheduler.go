package background

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fleetstock/internal/config"
	"fleetstock/internal/jobs"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const (
	JobReconciliation = "ledger-reconciliation"
	JobLedgerExport   = "ledger-export"
	JobLowStockAlerts = "low-stock-alerts"
)

// JobScheduler runs the periodic ledger jobs. Each job is a singleton: a
// run that overlaps the previous one is rescheduled rather than stacked.
type JobScheduler struct {
	scheduler gocron.Scheduler
	logger    *zap.Logger
	jobs      map[string]gocron.Job
	mu        sync.RWMutex
}

// Jobs bundles the job implementations. A nil field is not scheduled.
type Jobs struct {
	Reconciliation *jobs.ReconciliationJob
	LedgerExport   *jobs.LedgerExportJob
	LowStock       *jobs.LowStockAlertService
}

func NewJobScheduler(cfg config.JobsConfig, j Jobs, logger *zap.Logger) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	js := &JobScheduler{
		scheduler: scheduler,
		logger:    logger.With(zap.String("component", "scheduler")),
		jobs:      make(map[string]gocron.Job),
	}

	if j.Reconciliation != nil && cfg.ReconcileInterval > 0 {
		err = js.register(JobReconciliation, cfg.ReconcileInterval, func(ctx context.Context) error {
			_, err := j.Reconciliation.Run(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	if j.LedgerExport != nil && cfg.ExportInterval > 0 {
		err = js.register(JobLedgerExport, cfg.ExportInterval, func(ctx context.Context) error {
			_, err := j.LedgerExport.Run(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	if j.LowStock != nil && cfg.LowStockThreshold > 0 && cfg.LowStockInterval > 0 {
		threshold := cfg.LowStockThreshold
		err = js.register(JobLowStockAlerts, cfg.LowStockInterval, func(ctx context.Context) error {
			return j.LowStock.Run(ctx, threshold)
		})
		if err != nil {
			return nil, err
		}
	}

	js.logger.Info("registered background jobs", zap.Strings("jobs", js.Names()))
	return js, nil
}

func (js *JobScheduler) register(name string, every time.Duration, task func(ctx context.Context) error) error {
	job, err := js.scheduler.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			if err := task(context.Background()); err != nil {
				js.logger.Warn("job run failed", zap.String("job", name), zap.Error(err))
			}
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s job: %w", name, err)
	}
	js.mu.Lock()
	js.jobs[name] = job
	js.mu.Unlock()
	return nil
}

func (js *JobScheduler) Start() {
	js.logger.Info("starting background job scheduler")
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	js.logger.Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// RunNow triggers a registered job outside its schedule
func (js *JobScheduler) RunNow(name string) error {
	js.mu.RLock()
	job, ok := js.jobs[name]
	js.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return job.RunNow()
}

func (js *JobScheduler) Names() []string {
	js.mu.RLock()
	defer js.mu.RUnlock()
	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
