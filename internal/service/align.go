package service

import (
	"sort"

	"github.com/etf-dashboard/internal/types"
)

const secondsPerDay = 86400

// tradingDay buckets an epoch timestamp by UTC calendar day
func tradingDay(ts int64) int64 {
	day := ts / secondsPerDay
	if ts%secondsPerDay < 0 {
		day--
	}
	return day
}

// alignSeries puts every series on one calendar of trading days. A day on which
// an instrument did not trade, such as a holiday on its exchange only, becomes an
// absent observation for it. Each day keeps the timestamp of the first series
// that has it. The second return value counts the filled gaps.
func alignSeries(series []types.Series) ([]types.Series, int) {
	labels := make(map[int64]int64)
	for _, s := range series {
		for _, o := range s.Observations {
			day := tradingDay(o.Timestamp)
			if _, ok := labels[day]; !ok {
				labels[day] = o.Timestamp
			}
		}
	}

	days := make([]int64, 0, len(labels))
	for day := range labels {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	index := make(map[int64]int, len(days))
	for i, day := range days {
		index[day] = i
	}

	filled := 0
	out := make([]types.Series, len(series))
	for i, s := range series {
		obs := make([]types.Observation, len(days))
		for j, day := range days {
			obs[j] = types.Observation{Timestamp: labels[day]}
		}

		seen := make([]bool, len(days))
		for _, o := range s.Observations {
			j := index[tradingDay(o.Timestamp)]
			seen[j] = true
			// Within one day the last present price wins
			if o.Price != nil {
				obs[j].Price = o.Price
			}
		}
		for _, ok := range seen {
			if !ok {
				filled++
			}
		}

		out[i] = s
		out[i].Observations = obs
	}
	return out, filled
}
