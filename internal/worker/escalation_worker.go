package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/service-request-desk/internal/persistence"
	"github.com/spec-kit/service-request-desk/internal/service"
	"github.com/spec-kit/service-request-desk/internal/workhours"
)

// ErrSweepRunning is returned when a sweep is already in progress here or on another replica.
var ErrSweepRunning = errors.New("escalation sweep already running")

// Sweeper runs one escalation pass.
type Sweeper interface {
	RunSweep(ctx context.Context) (service.SweepResult, error)
}

// Locker claims a lock shared between replicas. The returned func releases it.
type Locker interface {
	Acquire(ctx context.Context) (func(context.Context) error, error)
}

// EscalationWorkerConfig configures the scheduler.
type EscalationWorkerConfig struct {
	Schedule string
	Window   workhours.Window
	Clock    clockwork.Clock
	Locker   Locker
	Logger   *zap.Logger
}

// EscalationWorker triggers the sweep on a cron schedule, only inside working
// hours, and never lets two sweeps overlap.
type EscalationWorker struct {
	sweeper  Sweeper
	schedule cron.Schedule
	spec     string
	window   workhours.Window
	clock    clockwork.Clock
	locker   Locker
	logger   *zap.Logger

	running  atomic.Bool
	inFlight sync.WaitGroup
	cron     *cron.Cron
}

// NewEscalationWorker validates the cron expression and builds the worker.
func NewEscalationWorker(sweeper Sweeper, cfg EscalationWorkerConfig) (*EscalationWorker, error) {
	schedule, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid escalation schedule %q: %w", cfg.Schedule, err)
	}
	c := cfg.Clock
	if c == nil {
		c = clockwork.NewRealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationWorker{
		sweeper:  sweeper,
		schedule: schedule,
		spec:     cfg.Schedule,
		window:   cfg.Window,
		clock:    c,
		locker:   cfg.Locker,
		logger:   logger,
	}, nil
}

// Start begins the cron loop. Calling Start twice is a no-op.
func (w *EscalationWorker) Start() {
	if w.cron != nil {
		return
	}
	w.cron = cron.New(cron.WithLocation(w.window.Zone()))
	w.cron.Schedule(w.schedule, cron.FuncJob(func() {
		w.Tick(context.Background())
	}))
	w.cron.Start()
	w.logger.Info("escalation worker started", zap.String("schedule", w.spec))
}

// Stop halts the schedule and waits for a running sweep, or for ctx to expire.
func (w *EscalationWorker) Stop(ctx context.Context) {
	if w.cron != nil {
		stopped := w.cron.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
			w.logger.Warn("escalation worker stop timed out")
			return
		}
	}
	done := make(chan struct{})
	go func() {
		w.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.logger.Info("escalation worker stopped")
	case <-ctx.Done():
		w.logger.Warn("escalation worker stop timed out")
	}
}

// Tick is one scheduled trigger: outside working hours it does nothing.
func (w *EscalationWorker) Tick(ctx context.Context) {
	now := w.clock.Now()
	if !w.window.IsWorkingInstant(now) {
		w.logger.Debug("escalation sweep skipped outside working hours", zap.Time("now", now))
		return
	}
	if _, err := w.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrSweepRunning) {
			w.logger.Info("escalation sweep already running; tick skipped")
			return
		}
		w.logger.Error("escalation sweep failed", zap.Error(err))
	}
}

// RunOnce runs a sweep now, regardless of working hours, unless one is already running.
func (w *EscalationWorker) RunOnce(ctx context.Context) (service.SweepResult, error) {
	if !w.running.CompareAndSwap(false, true) {
		return service.SweepResult{}, ErrSweepRunning
	}
	w.inFlight.Add(1)
	defer func() {
		w.running.Store(false)
		w.inFlight.Done()
	}()

	if w.locker != nil {
		release, err := w.locker.Acquire(ctx)
		switch {
		case errors.Is(err, persistence.ErrLockHeld):
			return service.SweepResult{}, ErrSweepRunning
		case err != nil:
			w.logger.Warn("shared sweep lock unavailable; continuing with local guard", zap.Error(err))
		default:
			defer func() {
				if err := release(context.Background()); err != nil {
					w.logger.Warn("release sweep lock", zap.Error(err))
				}
			}()
		}
	}

	return w.sweeper.RunSweep(ctx)
}

// Running reports whether a sweep is in progress in this process.
func (w *EscalationWorker) Running() bool {
	return w.running.Load()
}

type redisLocker struct {
	redis *persistence.Redis
	key   string
	ttl   time.Duration
}

// NewRedisLocker shares the sweep guard across replicas through a Redis key.
func NewRedisLocker(redis *persistence.Redis, key string, ttl time.Duration) Locker {
	return &redisLocker{redis: redis, key: key, ttl: ttl}
}

func (l *redisLocker) Acquire(ctx context.Context) (func(context.Context) error, error) {
	lock, err := l.redis.TryLock(ctx, l.key, l.ttl)
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}
