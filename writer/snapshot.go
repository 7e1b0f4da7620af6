package writer

import (
	"context"
	"fmt"
	"time"

	"orderbookflow/internal/codec"
	"orderbookflow/logger"
	"orderbookflow/models"
)

// SnapshotStore persists snapshot records under time-partitioned keys. Both
// the ingest loop and the recovery agent write through it, so every record
// reaches storage with the same encoding and key layout.
type SnapshotStore struct {
	store  Store
	prefix string
	ext    string
	log    *logger.Log
}

// NewSnapshotStore wraps a blob store with the record encoding and the
// partitioning scheme.
func NewSnapshotStore(store Store, prefix, ext string) *SnapshotStore {
	return &SnapshotStore{
		store:  store,
		prefix: prefix,
		ext:    ext,
		log:    logger.GetLogger(),
	}
}

// Persist encodes the record and writes it under the partition key derived
// from its own timestamp. Returns the key written.
func (s *SnapshotStore) Persist(ctx context.Context, record models.SnapshotRecord) (string, error) {
	data, err := codec.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode snapshot record: %w", err)
	}

	key := PartitionKey(s.prefix, time.UnixMilli(record.TimestampMs), s.ext)
	if err := s.store.Put(ctx, key, data); err != nil {
		return "", fmt.Errorf("put %q: %w", key, err)
	}

	logger.IncrementSnapshotPersisted(len(data))
	s.log.WithComponent("snapshot_store").WithFields(logger.Fields{
		"key":       key,
		"data_size": len(data),
	}).Debug("snapshot record written")

	return key, nil
}

// LastPersistedMillis reports the timestamp of the most recent record under
// this store's prefix, or ErrNoKeys on a cold store.
func (s *SnapshotStore) LastPersistedMillis(ctx context.Context) (int64, error) {
	return LastPersistedMillis(ctx, s.store, s.prefix)
}
