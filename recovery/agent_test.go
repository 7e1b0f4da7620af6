package recovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	appconfig "orderbookflow/config"
	"orderbookflow/models"
	"orderbookflow/writer"
)

type fakeStore struct {
	mu   sync.Mutex
	keys []string
}

func (s *fakeStore) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return nil
}

func (s *fakeStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...), nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

type fakeFetcher struct {
	book models.BookSnapshot
	err  error
}

func (f *fakeFetcher) FetchDepth(ctx context.Context) (models.BookSnapshot, error) {
	return f.book, f.err
}

func testBook() models.BookSnapshot {
	return models.BookSnapshot{
		LastUpdateID: 42,
		Bids:         []models.PriceLevel{{Price: 100, Quantity: 1}},
		Asks:         []models.PriceLevel{{Price: 101, Quantity: 2}},
	}
}

func testAgent(store *fakeStore, fetcher Fetcher, now time.Time) *Agent {
	cfg := &appconfig.Config{
		Recovery: appconfig.RecoveryConfig{
			Enabled:            true,
			Interval:           appconfig.Duration(time.Minute),
			GapThresholdMs:     5000,
			RateLimitPerMinute: 6,
		},
	}

	a := NewAgent(cfg, fetcher, writer.NewSnapshotStore(store, "orderbook", "avro"))
	a.limiter = rate.NewLimiter(rate.Inf, 1)
	a.now = func() time.Time { return now }
	return a
}

func TestRunOnceColdStoreBootstraps(t *testing.T) {
	store := &fakeStore{}
	a := testAgent(store, &fakeFetcher{book: testBook()}, time.Now())

	wrote, err := a.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if !wrote {
		t.Fatalf("cold store must trigger a bootstrap write")
	}
	if store.count() != 1 {
		t.Fatalf("expected 1 persisted record, got %d", store.count())
	}
}

func TestRunOnceGapWritesOneRecord(t *testing.T) {
	now := time.Now()
	store := &fakeStore{keys: []string{
		writer.PartitionKey("orderbook", now.Add(-10*time.Second), "avro"),
	}}
	a := testAgent(store, &fakeFetcher{book: testBook()}, now)

	wrote, err := a.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if !wrote {
		t.Fatalf("10s old history must be a gap")
	}
	if store.count() != 2 {
		t.Fatalf("expected exactly one backfill record, store has %d keys", store.count())
	}

	// The backfill record itself closed the gap.
	wrote, err = a.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if wrote {
		t.Fatalf("no gap after backfill, nothing should be written")
	}
}

func TestRunOnceFreshHistoryNoWrite(t *testing.T) {
	now := time.Now()
	store := &fakeStore{keys: []string{
		writer.PartitionKey("orderbook", now.Add(-time.Second), "avro"),
	}}
	a := testAgent(store, &fakeFetcher{book: testBook()}, now)

	wrote, err := a.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if wrote || store.count() != 1 {
		t.Fatalf("fresh history must not be backfilled")
	}
}

func TestRunOnceFetchError(t *testing.T) {
	boom := errors.New("endpoint unavailable")
	store := &fakeStore{}
	a := testAgent(store, &fakeFetcher{err: boom}, time.Now())

	wrote, err := a.RunOnce(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if wrote || store.count() != 0 {
		t.Fatalf("failed invocation must leave no side effect")
	}
}

func TestRunOnceThrottled(t *testing.T) {
	store := &fakeStore{}
	a := testAgent(store, &fakeFetcher{book: testBook()}, time.Now())
	a.limiter = rate.NewLimiter(rate.Limit(0), 0)

	wrote, err := a.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("throttled invocation must not fail: %v", err)
	}
	if wrote || store.count() != 0 {
		t.Fatalf("throttled invocation must not write")
	}
}

func TestAgentStartStop(t *testing.T) {
	store := &fakeStore{}
	a := testAgent(store, &fakeFetcher{book: testBook()}, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	if err := a.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.Start(ctx); err == nil {
		t.Fatalf("expected error on second start")
	}
	cancel()
	a.Stop()
}

func TestAgentStartDisabled(t *testing.T) {
	store := &fakeStore{}
	a := testAgent(store, &fakeFetcher{book: testBook()}, time.Now())
	a.config.Recovery.Enabled = false

	if err := a.Start(context.Background()); err == nil {
		t.Fatalf("expected error when recovery is disabled")
	}
}
