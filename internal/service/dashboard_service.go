// Package service implements series normalization, portfolio aggregation,
// the holdings ledger and the dashboard refresh cycle.
package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/etf-dashboard/internal/adapter"
	apperrors "github.com/etf-dashboard/internal/errors"
	"github.com/etf-dashboard/internal/logging"
	"github.com/etf-dashboard/internal/storage"
	"github.com/etf-dashboard/internal/types"
)

// ValuationRange is the window fetched to find current prices
const ValuationRange = types.Range1M

// Dashboard is the output of one refresh cycle
type Dashboard struct {
	Range         types.Range                `json:"range"`
	Interval      types.Interval             `json:"interval"`
	Timestamps    []int64                    `json:"timestamps"`
	Series        []types.NormalizedSeries   `json:"series"`
	Omitted       []OmittedSeries            `json:"omitted,omitempty"`
	WeightedTotal []types.WeightedTotalPoint `json:"weightedTotal"`
	Portfolio     *types.Portfolio           `json:"portfolio"`
	Valuations    []types.HoldingValuation   `json:"valuations"`
	TotalValue    float64                    `json:"totalValue"`
	Breakdown     []types.HoldingValuation   `json:"breakdown"`
	GeneratedAt   time.Time                  `json:"generatedAt"`
}

// PortfolioView is the ledger priced at current prices
type PortfolioView struct {
	Portfolio  *types.Portfolio         `json:"portfolio"`
	Valuations []types.HoldingValuation `json:"valuations"`
	TotalValue float64                  `json:"totalValue"`
	Breakdown  []types.HoldingValuation `json:"breakdown"`
}

// ServiceStats is the operational view of the refresh cycle
type ServiceStats struct {
	Refresh     *RefreshStats       `json:"refresh"`
	SeriesCache *storage.CacheStats `json:"seriesCache,omitempty"`
}

// cacheStatser is implemented by providers that cache series
type cacheStatser interface {
	Stats() storage.CacheStats
}

// DashboardService runs the refresh cycle over the configured instruments
type DashboardService struct {
	provider    adapter.MarketDataProvider
	ledger      *LedgerService
	instruments []string
	monitor     *RefreshMonitor
	now         func() time.Time
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(provider adapter.MarketDataProvider, ledger *LedgerService) *DashboardService {
	return &DashboardService{
		provider:    provider,
		ledger:      ledger,
		instruments: ledger.Instruments(),
		monitor:     NewRefreshMonitor(),
		now:         time.Now,
	}
}

// Stats returns refresh cycle and series cache statistics
func (s *DashboardService) Stats() *ServiceStats {
	stats := &ServiceStats{Refresh: s.monitor.GetStats()}
	if c, ok := s.provider.(cacheStatser); ok {
		cs := c.Stats()
		stats.SeriesCache = &cs
	}
	return stats
}

// Refresh fetches every instrument for the range, rebases the series and
// combines them with the stored holdings. Any failed fetch fails the whole cycle.
func (s *DashboardService) Refresh(ctx context.Context, rangeStr string) (*Dashboard, error) {
	r, err := types.ParseRange(rangeStr)
	if err != nil {
		return nil, apperrors.NewInvalidParameterError("range", err.Error())
	}

	start := time.Now()
	dashboard, err := s.refresh(ctx, r)
	s.monitor.RecordRefresh(time.Since(start), err, s.now().UTC())
	return dashboard, err
}

func (s *DashboardService) refresh(ctx context.Context, r types.Range) (*Dashboard, error) {
	iv := r.Interval()
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"range":    r,
		"interval": iv,
	})
	start := time.Now()

	series, err := s.fetchAll(ctx, r, iv)
	if err != nil {
		return nil, err
	}
	series, filled := alignSeries(series)
	if filled > 0 {
		logger.WithField("filledGaps", filled).Debug("Series aligned across exchange calendars")
	}

	normalized, err := NormalizeAll(series)
	if err != nil {
		return nil, apperrors.NewDataUnavailableError(series[0].Instrument, err)
	}
	for _, o := range normalized.Omitted {
		logger.WithFields(map[string]interface{}{
			"instrument": o.Instrument,
			"code":       o.Code,
		}).Warn("Series omitted from chart")
	}

	portfolio, err := s.ledger.Load(ctx)
	if err != nil {
		return nil, err
	}

	valuations := HoldingValuations(LatestPrices(series), *portfolio)

	dashboard := &Dashboard{
		Range:         r,
		Interval:      iv,
		Timestamps:    normalized.Timestamps,
		Series:        normalized.Series,
		Omitted:       normalized.Omitted,
		WeightedTotal: WeightedTotalSeries(normalized.Timestamps, normalized.ByInstrument(), *portfolio),
		Portfolio:     portfolio,
		Valuations:    valuations.Holdings,
		TotalValue:    valuations.TotalValue,
		Breakdown:     valuations.Breakdown(),
		GeneratedAt:   s.now().UTC(),
	}

	logger.WithFields(map[string]interface{}{
		"points":   len(dashboard.Timestamps),
		"series":   len(dashboard.Series),
		"omitted":  len(dashboard.Omitted),
		"duration": time.Since(start).String(),
	}).Info("Dashboard refreshed")

	return dashboard, nil
}

// Portfolio returns the ledger valued at the latest one month prices
func (s *DashboardService) Portfolio(ctx context.Context) (*PortfolioView, error) {
	series, err := s.fetchAll(ctx, ValuationRange, ValuationRange.Interval())
	if err != nil {
		return nil, err
	}

	portfolio, err := s.ledger.Load(ctx)
	if err != nil {
		return nil, err
	}

	valuations := HoldingValuations(LatestPrices(series), *portfolio)
	return &PortfolioView{
		Portfolio:  portfolio,
		Valuations: valuations.Holdings,
		TotalValue: valuations.TotalValue,
		Breakdown:  valuations.Breakdown(),
	}, nil
}

// fetchAll fetches every configured instrument concurrently. The first failure
// cancels the remaining fetches and is returned as DATA_UNAVAILABLE.
func (s *DashboardService) fetchAll(ctx context.Context, r types.Range, iv types.Interval) ([]types.Series, error) {
	results := make([]types.Series, len(s.instruments))

	g, gctx := errgroup.WithContext(ctx)
	for i, inst := range s.instruments {
		i, inst := i, inst
		g.Go(func() error {
			series, err := s.provider.FetchSeries(gctx, inst, r, iv)
			if err != nil {
				if errors.Is(err, apperrors.ErrDataUnavailable) {
					return err
				}
				return apperrors.NewDataUnavailableError(inst, err)
			}
			if series == nil || len(series.Observations) == 0 {
				return apperrors.NewDataUnavailableError(inst, errors.New("empty series"))
			}
			results[i] = *series
			results[i].Instrument = inst
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Refresh aborted, price data unavailable")
		return nil, err
	}
	return results, nil
}
