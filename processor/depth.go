package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"orderbookflow/models"
)

// ErrSkip marks a frame that is intentionally not processed: a liveness ping
// or a depth update with an empty side after validation. It is not a failure.
var ErrSkip = errors.New("frame skipped")

// maxDepthLevels bounds how many levels per side are taken from a frame.
const maxDepthLevels = 20

// depthFrame covers both partial book frames (bids/asks) and diff depth
// frames (b/a). Levels arrive as ["price","quantity"] string pairs.
type depthFrame struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
	B    [][]string `json:"b"`
	A    [][]string `json:"a"`
}

// isLivenessPing reports whether the frame consists solely of decimal
// digits. The feed sends such frames as keepalives; length and leading
// zeros are irrelevant.
func isLivenessPing(raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// parseLevels converts string pairs into price levels. Only the first 20
// delivered entries are considered; within that window, entries with fewer
// than two fields and entries whose price or quantity does not parse are
// dropped. The remaining levels keep their delivered order.
func parseLevels(pairs [][]string) []models.PriceLevel {
	levels := make([]models.PriceLevel, 0, len(pairs))
	for i, pair := range pairs {
		if i == maxDepthLevels {
			break
		}
		if len(pair) < 2 {
			continue
		}
		price, err := strconv.ParseFloat(pair[0], 64)
		if err != nil {
			continue
		}
		quantity, err := strconv.ParseFloat(pair[1], 64)
		if err != nil {
			continue
		}
		levels = append(levels, models.PriceLevel{Price: price, Quantity: quantity})
	}
	return levels
}

// ParseDepthFrame converts a raw feed frame into a validated depth snapshot.
// Liveness pings and messages left with an empty side yield ErrSkip;
// malformed JSON yields a parse error. Callers demote both to a per-message
// skip and never stop the loop on them.
func ParseDepthFrame(raw []byte) (models.DepthSnapshot, error) {
	if isLivenessPing(raw) {
		return models.DepthSnapshot{}, fmt.Errorf("liveness ping: %w", ErrSkip)
	}

	var frame depthFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return models.DepthSnapshot{}, fmt.Errorf("decode depth frame: %w", err)
	}

	rawBids, rawAsks := frame.Bids, frame.Asks
	if len(rawBids) == 0 && len(rawAsks) == 0 {
		rawBids, rawAsks = frame.B, frame.A
	}

	snapshot := models.DepthSnapshot{
		Bids: parseLevels(rawBids),
		Asks: parseLevels(rawAsks),
	}

	if len(snapshot.Bids) == 0 || len(snapshot.Asks) == 0 {
		return models.DepthSnapshot{}, fmt.Errorf("empty side after validation: %w", ErrSkip)
	}

	return snapshot, nil
}
