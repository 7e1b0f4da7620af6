// Package codec implements the schema-constrained Avro encoding of the
// persisted snapshot record. Field order and types are fixed by the schema;
// depth points travel as 2-element double arrays. Records are written as
// Avro object container files, so each persisted object is self-describing
// and readable by standard Avro tooling.
package codec

import (
	"bytes"
	"fmt"

	"github.com/hamba/avro/v2/ocf"

	"orderbookflow/models"
)

// Schema is the Avro record schema for one persisted snapshot.
const Schema = `{
  "type": "record",
  "name": "OrderBook",
  "fields": [
    {"name": "timestamp_ms", "type": "long"},
    {"name": "bids", "type": {"type": "array", "items": {"type": "array", "items": "double"}}},
    {"name": "asks", "type": {"type": "array", "items": {"type": "array", "items": "double"}}},
    {"name": "spread", "type": "double"},
    {"name": "mid_price", "type": "double"},
    {"name": "imbalance_ratio", "type": "double"}
  ]
}`

// wireRecord mirrors the schema field for field.
type wireRecord struct {
	TimestampMs    int64       `avro:"timestamp_ms"`
	Bids           [][]float64 `avro:"bids"`
	Asks           [][]float64 `avro:"asks"`
	Spread         float64     `avro:"spread"`
	MidPrice       float64     `avro:"mid_price"`
	ImbalanceRatio float64     `avro:"imbalance_ratio"`
}

func toPairs(points []models.DepthPoint) [][]float64 {
	pairs := make([][]float64, len(points))
	for i, p := range points {
		pairs[i] = []float64{p.Price, p.CumulativeQuantity}
	}
	return pairs
}

func fromPairs(pairs [][]float64) ([]models.DepthPoint, error) {
	points := make([]models.DepthPoint, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, fmt.Errorf("depth pair %d has %d elements, want 2", i, len(pair))
		}
		points[i] = models.DepthPoint{Price: pair[0], CumulativeQuantity: pair[1]}
	}
	return points, nil
}

// Marshal encodes one snapshot record as a single-record container file.
func Marshal(record models.SnapshotRecord) ([]byte, error) {
	wire := wireRecord{
		TimestampMs:    record.TimestampMs,
		Bids:           toPairs(record.Bids),
		Asks:           toPairs(record.Asks),
		Spread:         record.Spread,
		MidPrice:       record.MidPrice,
		ImbalanceRatio: record.ImbalanceRatio,
	}

	var buf bytes.Buffer
	enc, err := ocf.NewEncoder(Schema, &buf)
	if err != nil {
		return nil, fmt.Errorf("avro encoder: %w", err)
	}
	if err := enc.Encode(wire); err != nil {
		return nil, fmt.Errorf("avro encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("avro close: %w", err)
	}

	return buf.Bytes(), nil
}

// Unmarshal decodes the first record from a container file.
func Unmarshal(data []byte) (models.SnapshotRecord, error) {
	dec, err := ocf.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return models.SnapshotRecord{}, fmt.Errorf("avro decoder: %w", err)
	}

	if !dec.HasNext() {
		if err := dec.Error(); err != nil {
			return models.SnapshotRecord{}, fmt.Errorf("avro read: %w", err)
		}
		return models.SnapshotRecord{}, fmt.Errorf("container holds no records")
	}

	var wire wireRecord
	if err := dec.Decode(&wire); err != nil {
		return models.SnapshotRecord{}, fmt.Errorf("avro decode: %w", err)
	}

	bids, err := fromPairs(wire.Bids)
	if err != nil {
		return models.SnapshotRecord{}, fmt.Errorf("bids: %w", err)
	}
	asks, err := fromPairs(wire.Asks)
	if err != nil {
		return models.SnapshotRecord{}, fmt.Errorf("asks: %w", err)
	}

	return models.SnapshotRecord{
		TimestampMs:    wire.TimestampMs,
		Bids:           bids,
		Asks:           asks,
		Spread:         wire.Spread,
		MidPrice:       wire.MidPrice,
		ImbalanceRatio: wire.ImbalanceRatio,
	}, nil
}
