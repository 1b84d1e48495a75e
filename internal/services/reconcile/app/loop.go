package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sjpiano/paytrack/internal/platform/timeouts"
	"github.com/sjpiano/paytrack/internal/services/reconcile/domain"
)

// Reconciler runs one reconciliation.
type Reconciler interface {
	Reconcile(ctx context.Context, req ReconcileRequest) (domain.Report, error)
}

// LoopConfig controls the scheduled reconciliation loop.
type LoopConfig struct {
	Interval   time.Duration
	RunTimeout time.Duration
	DryRun     bool
	OnRun      func(report domain.Report, err error)
}

// Loop reconciles on a fixed interval.
type Loop struct {
	reconciler Reconciler
	cfg        LoopConfig
}

// NewLoop builds a loop over reconciler.
func NewLoop(reconciler Reconciler, cfg LoopConfig) *Loop {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = timeouts.Run
	}
	return &Loop{reconciler: reconciler, cfg: cfg}
}

// Run executes one reconciliation immediately, then one per interval until
// ctx is done. With no interval it returns after the first run.
func (l *Loop) Run(ctx context.Context) error {
	err := l.tick(ctx)
	if l.cfg.Interval <= 0 {
		return err
	}

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, l.cfg.RunTimeout)
	defer cancel()

	report, err := l.reconciler.Reconcile(runCtx, ReconcileRequest{
		Trigger: TriggerSchedule,
		DryRun:  l.cfg.DryRun,
	})
	if l.cfg.OnRun != nil {
		l.cfg.OnRun(report, err)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil
		}
		log.Printf("reconcile run %s failed: %v", report.RunID, err)
	}
	return err
}
