package service

import (
	"math"

	"github.com/etf-dashboard/internal/types"
)

// ValuationSummary is every holding priced at the latest price, plus the total
type ValuationSummary struct {
	Holdings   []types.HoldingValuation `json:"holdings"`
	TotalValue float64                  `json:"totalValue"`
}

// Breakdown returns the holdings with a positive value, for allocation charts.
// The table view keeps every holding.
func (v ValuationSummary) Breakdown() []types.HoldingValuation {
	out := make([]types.HoldingValuation, 0, len(v.Holdings))
	for _, h := range v.Holdings {
		if h.Value > 0 {
			out = append(out, h)
		}
	}
	return out
}

// WeightedTotalSeries blends the normalized series into one line weighted by share count.
//
// CASH is excluded from both the sum and the denominator. With no invested shares
// every point is 0. A holding with no normalized value at an index contributes 0
// while its shares stay in the denominator, which understates the total at that point.
// Negative or non-finite share counts are treated as 0.
func WeightedTotalSeries(timestamps []int64, normalized map[string]types.NormalizedSeries, p types.Portfolio) []types.WeightedTotalPoint {
	points := make([]types.WeightedTotalPoint, len(timestamps))
	for i, ts := range timestamps {
		points[i].Timestamp = ts
	}

	var denominator float64
	for _, h := range p.Holdings {
		if !h.IsCash() {
			denominator += clampShares(h.Shares)
		}
	}
	if !(denominator > 0) || math.IsInf(denominator, 1) {
		return points
	}

	for _, h := range p.Holdings {
		shares := clampShares(h.Shares)
		if h.IsCash() || shares == 0 {
			continue
		}
		ns, ok := normalized[h.Instrument]
		if !ok {
			continue
		}
		weight := shares / denominator
		for i := range points {
			if v, ok := ns.ValueAt(i); ok {
				points[i].Value += v * weight
			}
		}
	}

	return points
}

// HoldingValuations prices every holding. CASH is priced at 1 and a missing price counts as 0.
func HoldingValuations(currentPrices map[string]float64, p types.Portfolio) ValuationSummary {
	summary := ValuationSummary{
		Holdings: make([]types.HoldingValuation, len(p.Holdings)),
	}

	for i, h := range p.Holdings {
		price := 1.0
		if !h.IsCash() {
			price = currentPrices[h.Instrument]
		}
		value := h.Shares * price
		summary.Holdings[i] = types.HoldingValuation{
			Instrument: h.Instrument,
			Shares:     h.Shares,
			Price:      price,
			Value:      value,
		}
		summary.TotalValue += value
	}

	if summary.TotalValue > 0 {
		for i := range summary.Holdings {
			summary.Holdings[i].Weight = summary.Holdings[i].Value / summary.TotalValue
		}
	}

	return summary
}

// LatestPrices returns the last present price of each series
func LatestPrices(series []types.Series) map[string]float64 {
	prices := make(map[string]float64, len(series))
	for _, s := range series {
		for i := len(s.Observations) - 1; i >= 0; i-- {
			if o := s.Observations[i]; o.Present() {
				prices[s.Instrument] = *o.Price
				break
			}
		}
	}
	return prices
}
