package logger

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Pipeline counters. Incremented from the reader, ingest loop and recovery
// agent; drained into the periodic report.
var (
	framesRead         int64
	framesSkipped      int64
	snapshotsPersisted int64
	persistedBytes     int64
	recoveryWrites     int64
	reconnects         int64
	ingestWarns        int64
	ingestErrors       int64
	recoveryWarns      int64
	recoveryErrors     int64
)

func recordWarn(component string) {
	if strings.Contains(component, "recovery") {
		atomic.AddInt64(&recoveryWarns, 1)
	} else {
		atomic.AddInt64(&ingestWarns, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "recovery") {
		atomic.AddInt64(&recoveryErrors, 1)
	} else {
		atomic.AddInt64(&ingestErrors, 1)
	}
}

// IncrementFrameRead records one raw frame received from the feed.
func IncrementFrameRead() {
	atomic.AddInt64(&framesRead, 1)
}

// IncrementFrameSkipped records one frame intentionally not processed.
func IncrementFrameSkipped() {
	atomic.AddInt64(&framesSkipped, 1)
}

// IncrementSnapshotPersisted records one record written to the blob store.
func IncrementSnapshotPersisted(size int) {
	atomic.AddInt64(&snapshotsPersisted, 1)
	atomic.AddInt64(&persistedBytes, int64(size))
}

// IncrementRecoveryWrite records one backfill write.
func IncrementRecoveryWrite() {
	atomic.AddInt64(&recoveryWrites, 1)
}

// IncrementReconnect records one reconnect attempt against the feed.
func IncrementReconnect() {
	atomic.AddInt64(&reconnects, 1)
}

// StartReport launches a goroutine that periodically logs the pipeline
// counters and forwards them to CloudWatch.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report(ctx, log)
			}
		}
	}()
}

func report(ctx context.Context, log *Log) {
	fields := Fields{
		"frames_read":         atomic.LoadInt64(&framesRead),
		"frames_skipped":      atomic.LoadInt64(&framesSkipped),
		"snapshots_persisted": atomic.LoadInt64(&snapshotsPersisted),
		"persisted_bytes":     atomic.LoadInt64(&persistedBytes),
		"recovery_writes":     atomic.LoadInt64(&recoveryWrites),
		"reconnects":          atomic.LoadInt64(&reconnects),
		"ingest_warns":        atomic.LoadInt64(&ingestWarns),
		"ingest_errors":       atomic.LoadInt64(&ingestErrors),
		"recovery_warns":      atomic.LoadInt64(&recoveryWarns),
		"recovery_errors":     atomic.LoadInt64(&recoveryErrors),
	}

	log.WithComponent("report").WithFields(fields).Info("pipeline report")

	data := make([]cwtypes.MetricDatum, 0, len(fields))
	for name, value := range fields {
		v, ok := value.(int64)
		if !ok {
			continue
		}
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Unit:       cwtypes.StandardUnitCount,
			Value:      aws.Float64(float64(v)),
		})
	}
	publishMetrics(ctx, data)
}
