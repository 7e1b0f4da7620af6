package processor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	appconfig "orderbookflow/config"
	"orderbookflow/models"
	"orderbookflow/writer"
)

type memStore struct {
	mu   sync.Mutex
	keys []string
	fail bool
}

func (s *memStore) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store unavailable")
	}
	s.keys = append(s.keys, key)
	return nil
}

func (s *memStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...), nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

func (s *memStore) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

func TestIngestorStartStop(t *testing.T) {
	raw := make(chan models.RawDepthMessage)
	store := &memStore{}
	in := NewIngestor(&appconfig.Config{}, raw, writer.NewSnapshotStore(store, "orderbook", "avro"))

	ctx, cancel := context.WithCancel(context.Background())
	if err := in.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := in.Start(ctx); err == nil {
		t.Fatalf("expected error on second start")
	}
	cancel()
	in.Stop()
}

func TestIngestorPersistsValidFrame(t *testing.T) {
	raw := make(chan models.RawDepthMessage, 1)
	store := &memStore{}
	in := NewIngestor(&appconfig.Config{}, raw, writer.NewSnapshotStore(store, "orderbook", "avro"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := in.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { cancel(); in.Stop() }()

	raw <- models.RawDepthMessage{
		Data:      []byte(`{"bids":[["100.0","1.0"]],"asks":[["101.0","2.0"]]}`),
		Timestamp: time.Now().UTC(),
	}

	waitFor(t, func() bool { return store.count() == 1 })

	store.mu.Lock()
	key := store.keys[0]
	store.mu.Unlock()
	if !strings.HasPrefix(key, "orderbook/year=") {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestIngestorSkipsPingAndEmptySide(t *testing.T) {
	raw := make(chan models.RawDepthMessage, 2)
	store := &memStore{}
	in := NewIngestor(&appconfig.Config{}, raw, writer.NewSnapshotStore(store, "orderbook", "avro"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := in.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { cancel(); in.Stop() }()

	raw <- models.RawDepthMessage{Data: []byte("1755000000000")}
	raw <- models.RawDepthMessage{Data: []byte(`{"bids":[],"asks":[["101.0","2.0"]]}`)}

	waitFor(t, func() bool { return atomic.LoadInt64(&in.framesSkipped) == 2 })

	if store.count() != 0 {
		t.Fatalf("skipped frames must not be persisted, store has %d keys", store.count())
	}
}

func TestIngestorContinuesAfterStoreError(t *testing.T) {
	raw := make(chan models.RawDepthMessage, 2)
	store := &memStore{fail: true}
	in := NewIngestor(&appconfig.Config{}, raw, writer.NewSnapshotStore(store, "orderbook", "avro"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := in.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { cancel(); in.Stop() }()

	frame := []byte(`{"bids":[["100.0","1.0"]],"asks":[["101.0","2.0"]]}`)

	raw <- models.RawDepthMessage{Data: frame}
	waitFor(t, func() bool { return atomic.LoadInt64(&in.storeErrors) == 1 })

	store.setFail(false)
	raw <- models.RawDepthMessage{Data: frame}
	waitFor(t, func() bool { return store.count() == 1 })
}
