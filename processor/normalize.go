package processor

import (
	"fmt"
	"time"

	"orderbookflow/models"
)

// Side selects which half of the book a normalization pass works on.
type Side int

const (
	BidSide Side = iota
	AskSide
)

// DepthOffsets is the fixed ascending sequence of relative depth buckets
// used to summarize liquidity around the midpoint.
var DepthOffsets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01}

// touchVolumeLevels is how many top levels per side feed the imbalance ratio.
const touchVolumeLevels = 5

// Normalize maps raw levels into depth-bucketed cumulative volumes. For each
// offset d the target price is mid*(1+d) for asks and mid*(1-d) for bids, and
// the cumulative quantity sums every level at least as favorable to the taker
// as the target. Each bucket re-scans all levels rather than accumulating
// across buckets, which keeps the output non-decreasing in d. A tight book
// can legitimately produce zero at every bucket.
func Normalize(levels []models.PriceLevel, mid float64, side Side) []models.DepthPoint {
	points := make([]models.DepthPoint, 0, len(DepthOffsets))
	for _, d := range DepthOffsets {
		var target float64
		if side == AskSide {
			target = mid * (1 + d)
		} else {
			target = mid * (1 - d)
		}

		var cum float64
		for _, lvl := range levels {
			if (side == AskSide && lvl.Price <= target) || (side == BidSide && lvl.Price >= target) {
				cum += lvl.Quantity
			}
		}

		points = append(points, models.DepthPoint{Price: target, CumulativeQuantity: cum})
	}
	return points
}

// ComputeMetrics derives the liquidity metrics for one update. Both sides
// must be non-empty; callers skip the message otherwise. The imbalance ratio
// is defined as 0.0 when both near-touch volumes are zero.
func ComputeMetrics(bids, asks []models.PriceLevel) (models.LiquidityMetrics, error) {
	if len(bids) == 0 || len(asks) == 0 {
		return models.LiquidityMetrics{}, fmt.Errorf("metrics require non-empty bid and ask levels")
	}

	bestBid := bids[0].Price
	bestAsk := asks[0].Price

	bidVol := sideVolume(bids)
	askVol := sideVolume(asks)

	imbalance := 0.0
	if denom := bidVol + askVol; denom != 0 {
		imbalance = (bidVol - askVol) / denom
	}

	return models.LiquidityMetrics{
		MidPrice:       (bestBid + bestAsk) / 2,
		Spread:         bestAsk - bestBid,
		ImbalanceRatio: imbalance,
		BidVolume5:     bidVol,
		AskVolume5:     askVol,
	}, nil
}

func sideVolume(levels []models.PriceLevel) float64 {
	var vol float64
	for i, lvl := range levels {
		if i == touchVolumeLevels {
			break
		}
		vol += lvl.Quantity
	}
	return vol
}

// BuildSnapshotRecord assembles the persisted record for one update. The
// same builder serves the live loop and the recovery agent so both sources
// produce an identical record shape.
func BuildSnapshotRecord(snapshot models.DepthSnapshot, metrics models.LiquidityMetrics, ts time.Time) models.SnapshotRecord {
	return models.SnapshotRecord{
		TimestampMs:    ts.UnixMilli(),
		Bids:           Normalize(snapshot.Bids, metrics.MidPrice, BidSide),
		Asks:           Normalize(snapshot.Asks, metrics.MidPrice, AskSide),
		Spread:         metrics.Spread,
		MidPrice:       metrics.MidPrice,
		ImbalanceRatio: metrics.ImbalanceRatio,
	}
}
