package writer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type listStore struct {
	keys []string
	err  error
}

func (s *listStore) Put(ctx context.Context, key string, data []byte) error {
	s.keys = append(s.keys, key)
	return nil
}

func (s *listStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.keys, s.err
}

func TestPartitionKeyLayout(t *testing.T) {
	ts := time.Date(2026, 3, 7, 4, 5, 6, 789000000, time.UTC)
	key := PartitionKey("orderbook", ts, "avro")

	want := fmt.Sprintf("orderbook/year=2026/month=03/day=07/hour=04/%d.avro", ts.UnixMilli())
	if key != want {
		t.Fatalf("key = %q, want %q", key, want)
	}
}

func TestPartitionKeyUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	local := time.Date(2026, 1, 1, 2, 0, 0, 0, loc)

	key := PartitionKey("orderbook", local, "avro")
	want := fmt.Sprintf("orderbook/year=2025/month=12/day=31/hour=21/%d.avro", local.UnixMilli())
	if key != want {
		t.Fatalf("key = %q, want %q", key, want)
	}
}

func TestKeyTimestamp(t *testing.T) {
	ts := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	key := PartitionKey("orderbook", ts, "avro")

	ms, err := KeyTimestamp(key)
	if err != nil {
		t.Fatalf("key timestamp: %v", err)
	}
	if ms != ts.UnixMilli() {
		t.Fatalf("timestamp = %d, want %d", ms, ts.UnixMilli())
	}

	if _, err := KeyTimestamp("orderbook/year=2026/readme.txt"); err == nil {
		t.Fatalf("expected error for non-timestamp filename")
	}
}

func TestLastPersistedMillisPicksMax(t *testing.T) {
	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	store := &listStore{keys: []string{
		// Listing order is deliberately not chronological.
		PartitionKey("orderbook", base.Add(2*time.Second), "avro"),
		PartitionKey("orderbook", base.Add(10*time.Second), "avro"),
		PartitionKey("orderbook", base, "avro"),
		"orderbook/year=2026/manifest.json",
	}}

	last, err := LastPersistedMillis(context.Background(), store, "orderbook")
	if err != nil {
		t.Fatalf("last persisted: %v", err)
	}
	if want := base.Add(10 * time.Second).UnixMilli(); last != want {
		t.Fatalf("last = %d, want %d", last, want)
	}
}

func TestLastPersistedMillisColdStore(t *testing.T) {
	_, err := LastPersistedMillis(context.Background(), &listStore{}, "orderbook")
	if !errors.Is(err, ErrNoKeys) {
		t.Fatalf("expected ErrNoKeys, got %v", err)
	}

	_, err = LastPersistedMillis(context.Background(), &listStore{keys: []string{"orderbook/manifest.json"}}, "orderbook")
	if !errors.Is(err, ErrNoKeys) {
		t.Fatalf("expected ErrNoKeys when no key has a timestamp, got %v", err)
	}
}

func TestLastPersistedMillisListError(t *testing.T) {
	boom := errors.New("listing failed")
	_, err := LastPersistedMillis(context.Background(), &listStore{err: boom}, "orderbook")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped list error, got %v", err)
	}
}
