package archive

import (
	"context"
	"time"

	"storefront-chat/internal/logger"
	"storefront-chat/internal/service/message"

	"go.uber.org/zap"
)

const (
	DefaultRetention = 30 * 24 * time.Hour
	DefaultInterval  = time.Hour
	DefaultBatchSize = 1000

	// Bounds a single sweep so a steady inflow cannot keep it running forever.
	maxBatchesPerSweep = 10000
)

// Mover is the part of the message store the sweeper drives.
type Mover interface {
	Move(ctx context.Context, cutoff time.Time, batchSize int) (message.MoveResult, error)
	Reconcile(ctx context.Context, cutoff time.Time, batchSize int) (int, error)
}

type Config struct {
	Retention time.Duration
	Interval  time.Duration
	BatchSize int
}

type Report struct {
	Cutoff     time.Time
	Reconciled int
	Batches    int
	Archived   int
	Skipped    int
	Deleted    int
	Duration   time.Duration
}

type Sweeper struct {
	store     Mover
	retention time.Duration
	interval  time.Duration
	batchSize int
	now       func() time.Time
	log       *zap.Logger
}

func NewSweeper(store Mover, cfg Config) *Sweeper {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Sweeper{
		store:     store,
		retention: cfg.Retention,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		now:       time.Now,
		log:       logger.L().Named("archive"),
	}
}

func (s *Sweeper) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Sweeper) SetLogger(l *zap.Logger) {
	if l != nil {
		s.log = l.Named("archive")
	}
}

// Run sweeps immediately and then on every interval until ctx is done. A
// failed sweep is logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("archive sweeper started",
		zap.Duration("retention", s.retention),
		zap.Duration("interval", s.interval),
		zap.Int("batch_size", s.batchSize),
	)

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn("archive sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			s.log.Info("archive sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce reconciles leftovers from an earlier partial run, then moves
// batches until one comes back short.
func (s *Sweeper) SweepOnce(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{Cutoff: s.now().Add(-s.retention)}
	defer func() {
		report.Duration = time.Since(start)
		sweepDuration.Observe(report.Duration.Seconds())
	}()

	reconciled, err := s.store.Reconcile(ctx, report.Cutoff, s.batchSize)
	if err != nil {
		recordFailure("reconcile")
		s.log.Warn("archive reconciliation failed", zap.Error(err))
	} else if reconciled > 0 {
		report.Reconciled = reconciled
		sweepReconciled.Add(float64(reconciled))
		s.log.Info("removed already archived messages from hot store", zap.Int("count", reconciled))
	}

	for report.Batches < maxBatchesPerSweep {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res, err := s.store.Move(ctx, report.Cutoff, s.batchSize)
		report.Archived += res.Archived
		report.Skipped += res.AlreadyArchived
		report.Deleted += res.Deleted
		sweepArchived.Add(float64(res.Archived))
		sweepDeleted.Add(float64(res.Deleted))

		if err != nil {
			recordFailure(failedPhase(res))
			return report, err
		}
		if res.Selected == 0 {
			break
		}
		report.Batches++
		if res.Selected < s.batchSize {
			break
		}
	}

	if report.Archived > 0 || report.Deleted > 0 {
		s.log.Info("archive sweep complete",
			zap.Time("cutoff", report.Cutoff),
			zap.Int("batches", report.Batches),
			zap.Int("archived", report.Archived),
			zap.Int("skipped", report.Skipped),
			zap.Int("deleted", report.Deleted),
		)
	}
	return report, nil
}

func failedPhase(res message.MoveResult) string {
	switch {
	case res.Selected == 0:
		return "select"
	case res.Archived == 0 && res.AlreadyArchived == 0:
		return "insert"
	default:
		return "delete"
	}
}
