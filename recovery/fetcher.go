package recovery

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/adshao/go-binance/v2"

	appconfig "orderbookflow/config"
	"orderbookflow/logger"
	"orderbookflow/models"
)

// Fetcher retrieves one point-in-time full-depth snapshot. It is a bounded,
// synchronous call: cancelling the context abandons the request with no
// side effect.
type Fetcher interface {
	FetchDepth(ctx context.Context) (models.BookSnapshot, error)
}

// BinanceFetcher implements Fetcher against the Binance REST depth endpoint.
type BinanceFetcher struct {
	client *binance.Client
	symbol string
	limit  int
	log    *logger.Log
}

// NewBinanceFetcher builds the REST client with the configured endpoint and
// a bounded HTTP timeout.
func NewBinanceFetcher(cfg *appconfig.Config) *BinanceFetcher {
	client := binance.NewClient("", "")
	client.BaseURL = cfg.SnapshotSource.URL
	client.HTTPClient = &http.Client{Timeout: cfg.SnapshotSource.Timeout.Std()}

	return &BinanceFetcher{
		client: client,
		symbol: cfg.SnapshotSource.Symbol,
		limit:  cfg.SnapshotSource.Limit,
		log:    logger.GetLogger(),
	}
}

// FetchDepth requests the full book and converts it into validated price
// levels. Levels that fail numeric parsing are dropped individually, the
// same rule the live parser applies.
func (f *BinanceFetcher) FetchDepth(ctx context.Context) (models.BookSnapshot, error) {
	resp, err := f.client.NewDepthService().
		Symbol(f.symbol).
		Limit(f.limit).
		Do(ctx)
	if err != nil {
		return models.BookSnapshot{}, fmt.Errorf("fetch depth snapshot: %w", err)
	}

	snapshot := models.BookSnapshot{LastUpdateID: resp.LastUpdateID}

	log := f.log.WithComponent("recovery_fetcher")
	for _, bid := range resp.Bids {
		price, err := strconv.ParseFloat(bid.Price, 64)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"side": "bid", "raw_price": bid.Price}).Warn("failed to parse bid level")
			continue
		}
		quantity, err := strconv.ParseFloat(bid.Quantity, 64)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"side": "bid", "raw_quantity": bid.Quantity}).Warn("failed to parse bid level")
			continue
		}
		snapshot.Bids = append(snapshot.Bids, models.PriceLevel{Price: price, Quantity: quantity})
	}
	for _, ask := range resp.Asks {
		price, err := strconv.ParseFloat(ask.Price, 64)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"side": "ask", "raw_price": ask.Price}).Warn("failed to parse ask level")
			continue
		}
		quantity, err := strconv.ParseFloat(ask.Quantity, 64)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"side": "ask", "raw_quantity": ask.Quantity}).Warn("failed to parse ask level")
			continue
		}
		snapshot.Asks = append(snapshot.Asks, models.PriceLevel{Price: price, Quantity: quantity})
	}

	return snapshot, nil
}
