// Package types provides common type definitions for the ETF dashboard.
package types

import (
	"fmt"
	"strings"
	"time"
)

// CashInstrument is the holding identifier for the dollar balance.
// Its price is always 1.
const CashInstrument = "CASH"

// Range represents a requested chart window
type Range string

const (
	// Range1M is one month of daily observations
	Range1M Range = "1m"
	// Range6M is six months of weekly observations
	Range6M Range = "6m"
	// Range1Y is one year of weekly observations
	Range1Y Range = "1y"
	// Range2Y is two years of weekly observations
	Range2Y Range = "2y"
	// Range5Y is five years of weekly observations
	Range5Y Range = "5y"
	// Range10Y is ten years of weekly observations
	Range10Y Range = "10y"
)

// DefaultRange is used when a request does not name one
const DefaultRange = Range1Y

// Ranges lists every recognized range in ascending order
var Ranges = []Range{Range1M, Range6M, Range1Y, Range2Y, Range5Y, Range10Y}

// Interval represents the spacing between observations
type Interval string

const (
	// IntervalDaily is one observation per trading day
	IntervalDaily Interval = "1d"
	// IntervalWeekly is one observation per week
	IntervalWeekly Interval = "1wk"
)

// ParseRange parses a range string. An empty string yields DefaultRange.
func ParseRange(s string) (Range, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultRange, nil
	}
	for _, r := range Ranges {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unrecognized range %q", s)
}

// Interval returns the observation interval used for the range:
// daily for one month, weekly otherwise.
func (r Range) Interval() Interval {
	if r == Range1M {
		return IntervalDaily
	}
	return IntervalWeekly
}

// Observation is one price at a period boundary. A nil Price means the
// provider reported no value for that period.
type Observation struct {
	Timestamp int64    `json:"timestamp"` // Unix seconds
	Price     *float64 `json:"price"`
}

// Present reports whether the observation carries a price
func (o Observation) Present() bool {
	return o.Price != nil
}

// Series is the ordered observations of one instrument over a window
type Series struct {
	Instrument   string        `json:"instrument"`
	Range        Range         `json:"range"`
	Interval     Interval      `json:"interval"`
	Observations []Observation `json:"observations"`
}

// Timestamps returns the timestamps of the series in order
func (s Series) Timestamps() []int64 {
	ts := make([]int64, len(s.Observations))
	for i, o := range s.Observations {
		ts[i] = o.Timestamp
	}
	return ts
}

// NormalizedPoint is one rebased value. A nil Value mirrors an absent observation.
type NormalizedPoint struct {
	Timestamp int64    `json:"timestamp"`
	Value     *float64 `json:"value"`
}

// NormalizedSeries is a series rebased so its first present value equals 100
type NormalizedSeries struct {
	Instrument string            `json:"instrument"`
	Base       float64           `json:"base"` // Raw price the series was rebased against
	Points     []NormalizedPoint `json:"points"`
}

// ValueAt returns the normalized value at index i, if present
func (n NormalizedSeries) ValueAt(i int) (float64, bool) {
	if i < 0 || i >= len(n.Points) || n.Points[i].Value == nil {
		return 0, false
	}
	return *n.Points[i].Value, true
}

// Holding is a declared quantity of one instrument, or a dollar balance for CASH
type Holding struct {
	Instrument string  `json:"instrument"`
	Shares     float64 `json:"shares"`
}

// IsCash reports whether the holding is the cash balance
func (h Holding) IsCash() bool {
	return h.Instrument == CashInstrument
}

// Portfolio is the user's holdings: one entry per configured instrument plus CASH
type Portfolio struct {
	Holdings    []Holding `json:"holdings"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Find returns the index of the holding for instrument, or -1
func (p *Portfolio) Find(instrument string) int {
	for i, h := range p.Holdings {
		if h.Instrument == instrument {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the portfolio
func (p *Portfolio) Clone() *Portfolio {
	holdings := make([]Holding, len(p.Holdings))
	copy(holdings, p.Holdings)
	return &Portfolio{Holdings: holdings, LastUpdated: p.LastUpdated}
}

// WeightedTotalPoint is one point of the blended performance line
type WeightedTotalPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// HoldingValuation is a holding priced at the latest available price
type HoldingValuation struct {
	Instrument string  `json:"instrument"`
	Shares     float64 `json:"shares"`
	Price      float64 `json:"price"`
	Value      float64 `json:"value"`
	Weight     float64 `json:"weight"` // Fraction of total portfolio value, 0..1
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}
