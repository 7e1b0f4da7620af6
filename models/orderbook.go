package models

import "time"

// PriceLevel is a single price/quantity pair on one side of the order book.
// Quantity may be zero when the feed reports a removed level.
type PriceLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// DepthSnapshot is one validated depth update: up to 20 levels per side,
// bids descending and asks ascending as delivered by the feed.
type DepthSnapshot struct {
	Bids []PriceLevel `json:"bids"`
	Asks []PriceLevel `json:"asks"`
}

// LiquidityMetrics summarizes liquidity near the touch for one update.
// ImbalanceRatio is 0.0 when both near-touch volumes are zero.
type LiquidityMetrics struct {
	MidPrice       float64 `json:"mid_price"`
	Spread         float64 `json:"spread"`
	ImbalanceRatio float64 `json:"imbalance_ratio"`
	BidVolume5     float64 `json:"bid_volume5"`
	AskVolume5     float64 `json:"ask_volume5"`
}

// DepthPoint is one depth bucket: a target price relative to mid and the
// quantity available at prices at least as favorable to the taker.
type DepthPoint struct {
	Price              float64 `json:"price"`
	CumulativeQuantity float64 `json:"cumulative_quantity"`
}

// SnapshotRecord is the persisted record shape. It is written exactly once
// under a partition key and never mutated or deleted afterwards.
type SnapshotRecord struct {
	TimestampMs    int64        `json:"timestamp_ms"`
	Bids           []DepthPoint `json:"bids"`
	Asks           []DepthPoint `json:"asks"`
	Spread         float64      `json:"spread"`
	MidPrice       float64      `json:"mid_price"`
	ImbalanceRatio float64      `json:"imbalance_ratio"`
}

// RawDepthMessage wraps a raw text frame received from the live feed.
type RawDepthMessage struct {
	Data      []byte
	Timestamp time.Time
}

// BookSnapshot is a point-in-time full-depth snapshot from the REST source.
// LastUpdateID is the exchange sequence marker, kept for audit logging.
type BookSnapshot struct {
	LastUpdateID int64        `json:"lastUpdateId"`
	Bids         []PriceLevel `json:"bids"`
	Asks         []PriceLevel `json:"asks"`
}
