package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	appconfig "orderbookflow/config"
	"orderbookflow/logger"
	"orderbookflow/models"
	"orderbookflow/writer"
)

// Ingestor drives the live path: raw frame -> parse -> metrics -> record ->
// persist. Processing is strictly sequential; the loop does not take the
// next frame until the current one is skipped or fully persisted, so write
// order equals arrival order and the feed channel provides the only
// buffering.
type Ingestor struct {
	config    *appconfig.Config
	rawChan   <-chan models.RawDepthMessage
	snapshots *writer.SnapshotStore
	now       func() time.Time
	ctx       context.Context
	wg        *sync.WaitGroup
	mu        sync.RWMutex
	running   bool
	log       *logger.Log

	// Metrics
	framesProcessed int64
	framesSkipped   int64
	framesPersisted int64
	storeErrors     int64
}

// NewIngestor creates the sequential ingest loop over the raw frame channel.
func NewIngestor(cfg *appconfig.Config, rawChan <-chan models.RawDepthMessage, snapshots *writer.SnapshotStore) *Ingestor {
	return &Ingestor{
		config:    cfg,
		rawChan:   rawChan,
		snapshots: snapshots,
		now:       time.Now,
		wg:        &sync.WaitGroup{},
		log:       logger.GetLogger(),
	}
}

// Start launches the ingest worker. A single worker is deliberate: no
// locking is needed around metrics computation or record construction.
func (in *Ingestor) Start(ctx context.Context) error {
	in.mu.Lock()
	if in.running {
		in.mu.Unlock()
		return fmt.Errorf("ingestor already running")
	}
	in.running = true
	in.ctx = ctx
	in.mu.Unlock()

	log := in.log.WithComponent("ingestor").WithFields(logger.Fields{"operation": "start"})
	log.Info("starting ingestor")

	in.wg.Add(1)
	go in.loop()

	go in.metricsReporter(ctx)

	log.Info("ingestor started successfully")
	return nil
}

// Stop waits for the worker to drain.
func (in *Ingestor) Stop() {
	in.mu.Lock()
	in.running = false
	in.mu.Unlock()

	in.log.WithComponent("ingestor").Info("stopping ingestor")
	in.wg.Wait()
	in.log.WithComponent("ingestor").Info("ingestor stopped")
}

func (in *Ingestor) loop() {
	defer in.wg.Done()

	log := in.log.WithComponent("ingestor").WithFields(logger.Fields{"worker": "ingest_loop"})
	log.Info("starting ingest loop")

	for {
		select {
		case <-in.ctx.Done():
			log.Info("ingest loop stopped due to context cancellation")
			return
		case msg, ok := <-in.rawChan:
			if !ok {
				log.Info("raw channel closed, ingest loop stopping")
				return
			}
			in.processFrame(msg)
		}
	}
}

// processFrame handles exactly one frame. Parse failures and skips never
// stop the loop; a failed persist is logged and the frame is abandoned so
// subsequent book state keeps flowing.
func (in *Ingestor) processFrame(msg models.RawDepthMessage) {
	atomic.AddInt64(&in.framesProcessed, 1)

	log := in.log.WithComponent("ingestor").WithFields(logger.Fields{"operation": "process_frame"})

	snapshot, err := ParseDepthFrame(msg.Data)
	if err != nil {
		atomic.AddInt64(&in.framesSkipped, 1)
		logger.IncrementFrameSkipped()
		if errors.Is(err, ErrSkip) {
			log.WithFields(logger.Fields{"reason": err.Error()}).Debug("frame skipped")
		} else {
			log.WithError(err).Warn("malformed frame skipped")
		}
		return
	}

	metrics, err := ComputeMetrics(snapshot.Bids, snapshot.Asks)
	if err != nil {
		// Unreachable after a successful parse, which guarantees both
		// sides are non-empty.
		atomic.AddInt64(&in.framesSkipped, 1)
		log.WithError(err).Warn("metrics computation rejected frame")
		return
	}

	record := BuildSnapshotRecord(snapshot, metrics, in.now())

	start := time.Now()
	key, err := in.snapshots.Persist(in.ctx, record)
	if err != nil {
		atomic.AddInt64(&in.storeErrors, 1)
		log.WithError(err).Error("failed to persist snapshot record")
		return
	}

	atomic.AddInt64(&in.framesPersisted, 1)
	logger.LogPerformanceEntry(log, "ingestor", "persist_record", time.Since(start), logger.Fields{
		"key": key,
	})
}

func (in *Ingestor) metricsReporter(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			in.reportMetrics()
		}
	}
}

func (in *Ingestor) reportMetrics() {
	framesProcessed := atomic.LoadInt64(&in.framesProcessed)
	framesSkipped := atomic.LoadInt64(&in.framesSkipped)
	framesPersisted := atomic.LoadInt64(&in.framesPersisted)
	storeErrors := atomic.LoadInt64(&in.storeErrors)

	log := in.log.WithComponent("ingestor")
	in.log.LogMetric("ingestor", "frames_processed", framesProcessed, "counter", logger.Fields{})
	in.log.LogMetric("ingestor", "frames_skipped", framesSkipped, "counter", logger.Fields{})
	in.log.LogMetric("ingestor", "frames_persisted", framesPersisted, "counter", logger.Fields{})
	in.log.LogMetric("ingestor", "store_errors", storeErrors, "counter", logger.Fields{})

	log.WithFields(logger.Fields{
		"frames_processed": framesProcessed,
		"frames_skipped":   framesSkipped,
		"frames_persisted": framesPersisted,
		"store_errors":     storeErrors,
	}).Debug("ingestor metrics")
}
