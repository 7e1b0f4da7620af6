package writer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// ErrNoKeys is returned when a listing finds no persisted record under the
// partition prefix. Callers treat it as an infinite gap.
var ErrNoKeys = errors.New("no persisted keys under prefix")

// PartitionKey builds the hive-style object key for a record written at ts:
// <prefix>/year=YYYY/month=MM/day=DD/hour=HH/<unix_ms>.<ext> in UTC.
// The fixed-width epoch filename keeps keys within an hour partition
// lexicographically sortable.
func PartitionKey(prefix string, ts time.Time, ext string) string {
	ts = ts.UTC()
	return fmt.Sprintf("%s/year=%04d/month=%02d/day=%02d/hour=%02d/%d.%s",
		prefix, ts.Year(), int(ts.Month()), ts.Day(), ts.Hour(), ts.UnixMilli(), ext)
}

// KeyTimestamp extracts the epoch-millisecond timestamp embedded in a
// partition key filename.
func KeyTimestamp(key string) (int64, error) {
	base := path.Base(key)
	name := strings.TrimSuffix(base, path.Ext(base))
	ms, err := strconv.ParseInt(name, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("key %q has no timestamp filename: %w", key, err)
	}
	return ms, nil
}

// LastPersistedMillis lists the keys under prefix and returns the largest
// embedded timestamp. Every filename is parsed instead of trusting listing
// order; keys without a timestamp filename are ignored. Returns ErrNoKeys
// when nothing parseable is found.
func LastPersistedMillis(ctx context.Context, store Store, prefix string) (int64, error) {
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("list %q: %w", prefix, err)
	}

	var last int64
	found := false
	for _, key := range keys {
		ms, err := KeyTimestamp(key)
		if err != nil {
			continue
		}
		if !found || ms > last {
			last = ms
			found = true
		}
	}

	if !found {
		return 0, ErrNoKeys
	}
	return last, nil
}
