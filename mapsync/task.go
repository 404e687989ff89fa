package mapsync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/VplusR/VplusReforged/metric"
)

// DefaultPeriod is the interval between saves.
const DefaultPeriod = 5 * time.Minute

// Saver writes the current shared map state to durable storage. It is called
// from the task's goroutine, never from the host's main loop.
type Saver interface {
	SaveMapData(ctx context.Context) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context) error

// SaveMapData calls f.
func (f SaverFunc) SaveMapData(ctx context.Context) error {
	return f(ctx)
}

// Schedule decides whether the task runs and how often.
type Schedule struct {
	Period        time.Duration
	Authoritative bool
	MapEnabled    bool
	ShareEnabled  bool
}

// Enabled reports whether saves should happen: only the authoritative peer
// saves, and only with map sharing fully enabled.
func (s Schedule) Enabled() bool {
	return s.Authoritative && s.MapEnabled && s.ShareEnabled
}

// Task is the recurring save trigger. It is armed at most once; the schedule
// flags are read only when arming.
type Task struct {
	saver   Saver
	logger  *slog.Logger
	metrics *metric.Metrics

	// one save at a time; a tick that finds a save in flight is skipped
	inflight *semaphore.Weighted

	mu      sync.Mutex
	armed   bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	saves   atomic.Int64
	skipped atomic.Int64
}

// NewTask creates an unarmed task. metrics may be nil.
func NewTask(saver Saver, logger *slog.Logger, metrics *metric.Metrics) *Task {
	if logger == nil {
		logger = slog.Default()
	}
	return &Task{
		saver:    saver,
		logger:   logger.With("component", "mapsync"),
		metrics:  metrics,
		inflight: semaphore.NewWeighted(1),
	}
}

// Arm starts the ticker when the schedule is enabled and the task is not yet
// armed. It reports whether the task is running after the call.
func (t *Task) Arm(ctx context.Context, schedule Schedule) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.armed {
		return true
	}
	if !schedule.Enabled() || t.saver == nil {
		t.logger.Debug("Map sync not armed",
			"authoritative", schedule.Authoritative,
			"map_enabled", schedule.MapEnabled,
			"share_enabled", schedule.ShareEnabled)
		return false
	}

	period := schedule.Period
	if period <= 0 {
		period = DefaultPeriod
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.armed = true

	t.wg.Add(1)
	go t.run(ctx, period)

	t.logger.Info("Map sync armed", "period", period.String())
	return true
}

func (t *Task) run(ctx context.Context, period time.Duration) {
	defer t.wg.Done()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Task) tick(ctx context.Context) {
	if !t.inflight.TryAcquire(1) {
		t.skipped.Add(1)
		if t.metrics != nil {
			t.metrics.SyncSkipped.Inc()
		}
		t.logger.Warn("Previous map save still running, skipping tick")
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.inflight.Release(1)
		t.save(ctx)
	}()
}

func (t *Task) save(ctx context.Context) {
	start := time.Now()
	err := t.saver.SaveMapData(ctx)
	t.saves.Add(1)

	status := "ok"
	if err != nil {
		status = "error"
		t.logger.Warn("Map data save failed", "error", err)
	} else {
		t.logger.Debug("Map data saved", "duration", time.Since(start).String())
	}
	if t.metrics != nil {
		t.metrics.SyncSaves.WithLabelValues(status).Inc()
	}
}

// Armed reports whether the ticker is running.
func (t *Task) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

// Saves returns the number of completed save attempts.
func (t *Task) Saves() int64 {
	return t.saves.Load()
}

// Skipped returns the number of ticks skipped because a save was in flight.
func (t *Task) Skipped() int64 {
	return t.skipped.Load()
}

// Stop stops the ticker and waits for an in-flight save to return.
func (t *Task) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.armed = false
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
}
