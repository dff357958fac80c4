// Package adapter provides market data adapters for the ETF dashboard.
package adapter

import (
	"context"

	"github.com/etf-dashboard/internal/types"
)

// MarketDataProvider fetches raw price series. Implementations return a
// DATA_UNAVAILABLE categorized error for any upstream or payload failure.
type MarketDataProvider interface {
	FetchSeries(ctx context.Context, instrument string, r types.Range, iv types.Interval) (*types.Series, error)
}
