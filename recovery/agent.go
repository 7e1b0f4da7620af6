package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	appconfig "orderbookflow/config"
	"orderbookflow/logger"
	"orderbookflow/models"
	"orderbookflow/processor"
	"orderbookflow/writer"
)

// Agent backfills the persisted history from the REST snapshot source when a
// gap is detected. It shares no in-process state with the ingest loop; the
// blob store is the only common resource, and keys embed millisecond
// timestamps so the two writers never collide.
type Agent struct {
	config    *appconfig.Config
	fetcher   Fetcher
	snapshots *writer.SnapshotStore
	limiter   *rate.Limiter
	now       func() time.Time
	ctx       context.Context
	wg        *sync.WaitGroup
	mu        sync.RWMutex
	running   bool
	log       *logger.Log
}

// NewAgent wires the recovery path. The fetcher and the snapshot store are
// explicit handles so tests can substitute fakes.
func NewAgent(cfg *appconfig.Config, fetcher Fetcher, snapshots *writer.SnapshotStore) *Agent {
	perMinute := cfg.Recovery.RateLimitPerMinute
	if perMinute < 1 {
		perMinute = 1
	}

	return &Agent{
		config:    cfg,
		fetcher:   fetcher,
		snapshots: snapshots,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		now:       time.Now,
		wg:        &sync.WaitGroup{},
		log:       logger.GetLogger(),
	}
}

// Start launches the periodic trigger worker.
func (a *Agent) Start(ctx context.Context) error {
	if !a.config.Recovery.Enabled {
		return fmt.Errorf("recovery is disabled")
	}

	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("recovery agent already running")
	}
	a.running = true
	a.ctx = ctx
	a.mu.Unlock()

	log := a.log.WithComponent("recovery_agent").WithFields(logger.Fields{"operation": "start"})

	log.WithFields(logger.Fields{
		"interval":         a.config.Recovery.Interval.Std().String(),
		"gap_threshold_ms": a.config.Recovery.GapThresholdMs,
	}).Info("starting recovery agent")

	a.wg.Add(1)
	go a.worker()

	log.Info("recovery agent started successfully")
	return nil
}

// Stop waits for the worker to finish. An invocation interrupted mid-fetch
// leaves no persisted side effect.
func (a *Agent) Stop() {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	a.log.WithComponent("recovery_agent").Info("stopping recovery agent")
	a.wg.Wait()
	a.log.WithComponent("recovery_agent").Info("recovery agent stopped")
}

// worker triggers invocations on an interval-aligned timer.
func (a *Agent) worker() {
	defer a.wg.Done()

	log := a.log.WithComponent("recovery_agent").WithFields(logger.Fields{"worker": "recovery"})
	log.Info("starting recovery worker")

	interval := a.config.Recovery.Interval.Std()

	now := time.Now()
	nextTick := now.Truncate(interval).Add(interval)
	timer := time.NewTimer(nextTick.Sub(now))
	defer timer.Stop()

	for {
		select {
		case <-a.ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case <-timer.C:
			start := time.Now()
			if _, err := a.RunOnce(a.ctx); err != nil {
				// A failed invocation is retried on the next trigger.
				log.WithError(err).Warn("recovery invocation failed")
			}

			nextTick = start.Truncate(interval).Add(interval)
			timer.Reset(time.Until(nextTick))
		}
	}
}

// RunOnce performs a single recovery invocation: fetch the point-in-time
// snapshot, compare the persisted history against the current wall clock and
// write one backfill record when a gap is found. Invocations with no gap
// write nothing, so repeating the call is harmless.
func (a *Agent) RunOnce(ctx context.Context) (bool, error) {
	log := a.log.WithComponent("recovery_agent").WithFields(logger.Fields{
		"invocation": uuid.New().String(),
	})

	if !a.limiter.Allow() {
		log.Debug("invocation throttled")
		return false, nil
	}

	book, err := a.fetcher.FetchDepth(ctx)
	if err != nil {
		return false, fmt.Errorf("fetch snapshot: %w", err)
	}

	referenceMs := a.now().UnixMilli()

	threshold := a.config.Recovery.GapThresholdMs
	if threshold <= 0 {
		threshold = DefaultGapThresholdMs
	}

	lastMs, err := a.snapshots.LastPersistedMillis(ctx)
	gap := false
	switch {
	case errors.Is(err, writer.ErrNoKeys):
		// Cold store: treat as an infinite gap.
		gap = true
		log.Info("no persisted history, bootstrapping")
	case err != nil:
		return false, fmt.Errorf("inspect persisted history: %w", err)
	default:
		gap = DetectGap(referenceMs, lastMs, threshold)
	}

	if !gap {
		log.WithFields(logger.Fields{
			"last_persisted_ms": lastMs,
			"reference_ms":      referenceMs,
		}).Debug("no gap detected, nothing to backfill")
		return false, nil
	}

	metrics, err := processor.ComputeMetrics(book.Bids, book.Asks)
	if err != nil {
		return false, fmt.Errorf("snapshot has empty side: %w", err)
	}

	snapshot := models.DepthSnapshot{Bids: book.Bids, Asks: book.Asks}
	record := processor.BuildSnapshotRecord(snapshot, metrics, a.now())

	key, err := a.snapshots.Persist(ctx, record)
	if err != nil {
		return false, fmt.Errorf("persist backfill record: %w", err)
	}

	logger.IncrementRecoveryWrite()
	log.WithFields(logger.Fields{
		"key":            key,
		"gap_ms":         referenceMs - lastMs,
		"last_update_id": book.LastUpdateID,
	}).Info("backfill record written")

	return true, nil
}
