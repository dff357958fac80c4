package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	apperrors "github.com/etf-dashboard/internal/errors"
	"github.com/etf-dashboard/internal/storage"
	"github.com/etf-dashboard/internal/types"
)

// seriesFromRaw treats negative draws as absent observations
func seriesFromRaw(instrument string, raw []float64) types.Series {
	ptrs := make([]*float64, len(raw))
	for i, v := range raw {
		if v >= 0 {
			ptrs[i] = types.Float(v)
		}
	}
	return series(instrument, ptrs...)
}

func TestNormalizationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	rawPrices := gen.SliceOf(gen.Float64Range(-50, 1e6))

	properties.Property("first present point is exactly 100", prop.ForAll(
		func(raw []float64) bool {
			s := seriesFromRaw("X", raw)
			ns, err := NormalizeSeries(s, s.Timestamps())
			if err != nil {
				return errors.Is(err, apperrors.ErrNoBaseValue) || errors.Is(err, apperrors.ErrDegenerateBase)
			}
			for _, p := range ns.Points {
				if p.Value != nil {
					return *p.Value == 100
				}
			}
			return false
		},
		rawPrices,
	))

	properties.Property("output length equals input length", prop.ForAll(
		func(raw []float64) bool {
			s := seriesFromRaw("X", raw)
			ns, err := NormalizeSeries(s, s.Timestamps())
			return err != nil || len(ns.Points) == len(raw)
		},
		rawPrices,
	))

	properties.Property("value times base over 100 reconstructs the price", prop.ForAll(
		func(raw []float64) bool {
			s := seriesFromRaw("X", raw)
			ns, err := NormalizeSeries(s, s.Timestamps())
			if err != nil {
				return true
			}
			for i, o := range s.Observations {
				v, ok := ns.ValueAt(i)
				if ok != o.Present() {
					return false
				}
				if !ok {
					continue
				}
				got := v * ns.Base / 100
				if math.Abs(got-*o.Price) > 1e-9*math.Max(1, math.Abs(*o.Price)) {
					return false
				}
			}
			return true
		},
		rawPrices,
	))

	properties.Property("all absent series yields no base value", prop.ForAll(
		func(n int) bool {
			raw := make([]float64, n)
			for i := range raw {
				raw[i] = -1
			}
			s := seriesFromRaw("X", raw)
			_, err := NormalizeSeries(s, s.Timestamps())
			return errors.Is(err, apperrors.ErrNoBaseValue)
		},
		gen.IntRange(0, 30),
	))

	properties.TestingRun(t)
}

func TestAggregationProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("zero invested shares gives a zero line", prop.ForAll(
		func(raw []float64, cash float64) bool {
			s := seriesFromRaw("A", raw)
			result, err := NormalizeAll([]types.Series{s})
			if err != nil {
				return false
			}
			p := portfolio(holding("A", 0), holding(types.CashInstrument, cash))
			points := WeightedTotalSeries(result.Timestamps, result.ByInstrument(), p)
			if len(points) != len(raw) {
				return false
			}
			for _, pt := range points {
				if pt.Value != 0 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(-50, 1000)),
		gen.Float64Range(0, 1e6),
	))

	properties.Property("a holding without a price is worth 0 and totals still add up", prop.ForAll(
		func(shares []float64, price float64, cash float64) bool {
			holdings := make([]types.Holding, 0, len(shares)+1)
			prices := map[string]float64{}
			for i, sh := range shares {
				inst := fmt.Sprintf("I%d", i)
				holdings = append(holdings, holding(inst, sh))
				if i > 0 {
					prices[inst] = price
				}
			}
			holdings = append(holdings, holding(types.CashInstrument, cash))

			summary := HoldingValuations(prices, portfolio(holdings...))

			var sum, weights float64
			for _, h := range summary.Holdings {
				sum += h.Value
				weights += h.Weight
			}
			if math.Abs(sum-summary.TotalValue) > 1e-6 {
				return false
			}
			if summary.TotalValue > 0 && math.Abs(weights-1) > 1e-9 {
				return false
			}
			if len(shares) > 0 && (summary.Holdings[0].Value != 0 || summary.Holdings[0].Weight != 0) {
				return false
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(0, 1e4)),
		gen.Float64Range(0, 1e3),
		gen.Float64Range(0, 1e5),
	))

	properties.TestingRun(t)
}

func TestLedgerProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("stored shares are never negative", prop.ForAll(
		func(shares float64) bool {
			ledger := NewLedgerService(storage.NewMemoryKV(), []string{"A", "B"}, "portfolio:test")
			p, err := ledger.Update(context.Background(), "A", shares)
			if err != nil {
				return math.IsInf(shares, 1)
			}
			loaded, err := ledger.Load(context.Background())
			if err != nil {
				return false
			}
			return p.Holdings[0].Shares >= 0 && loaded.Holdings[0].Shares == p.Holdings[0].Shares
		},
		gen.Float64(),
	))

	properties.TestingRun(t)
}
