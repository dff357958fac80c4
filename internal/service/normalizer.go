package service

import (
	"errors"
	"fmt"

	apperrors "github.com/etf-dashboard/internal/errors"
	"github.com/etf-dashboard/internal/types"
)

// IndexBase is the value every normalized series starts at
const IndexBase = 100.0

// ErrMisalignedSeries is returned when series passed to NormalizeAll differ in length
var ErrMisalignedSeries = errors.New("series are not aligned")

// OmittedSeries records an instrument left out of the normalized output
type OmittedSeries struct {
	Instrument string `json:"instrument"`
	Code       string `json:"code"`
	Reason     string `json:"reason"`
}

// NormalizationResult is the output of NormalizeAll
type NormalizationResult struct {
	Timestamps []int64                  `json:"timestamps"`
	Series     []types.NormalizedSeries `json:"series"`
	Omitted    []OmittedSeries          `json:"omitted,omitempty"`
}

// ByInstrument indexes the normalized series by instrument
func (r *NormalizationResult) ByInstrument() map[string]types.NormalizedSeries {
	out := make(map[string]types.NormalizedSeries, len(r.Series))
	for _, s := range r.Series {
		out[s.Instrument] = s
	}
	return out
}

// NormalizeSeries rebases s so its first present price equals 100.
// Absent observations stay absent. The given timestamps label the points in order.
func NormalizeSeries(s types.Series, timestamps []int64) (types.NormalizedSeries, error) {
	if len(timestamps) != len(s.Observations) {
		return types.NormalizedSeries{}, fmt.Errorf("%w: %s has %d observations for %d timestamps",
			ErrMisalignedSeries, s.Instrument, len(s.Observations), len(timestamps))
	}

	baseIdx := -1
	for i, o := range s.Observations {
		if o.Present() {
			baseIdx = i
			break
		}
	}
	if baseIdx < 0 {
		return types.NormalizedSeries{}, apperrors.NewNoBaseValueError(s.Instrument)
	}

	base := *s.Observations[baseIdx].Price
	if base == 0 {
		return types.NormalizedSeries{}, apperrors.NewDegenerateBaseError(s.Instrument)
	}

	points := make([]types.NormalizedPoint, len(s.Observations))
	for i, o := range s.Observations {
		points[i].Timestamp = timestamps[i]
		switch {
		case i == baseIdx:
			points[i].Value = types.Float(IndexBase)
		case o.Present():
			points[i].Value = types.Float(*o.Price / base * IndexBase)
		}
	}

	return types.NormalizedSeries{
		Instrument: s.Instrument,
		Base:       base,
		Points:     points,
	}, nil
}

// NormalizeAll rebases every series against the timestamps of the first one.
// Series without a usable base are reported in Omitted and left out of Series.
func NormalizeAll(series []types.Series) (*NormalizationResult, error) {
	result := &NormalizationResult{
		Timestamps: []int64{},
		Series:     make([]types.NormalizedSeries, 0, len(series)),
	}
	if len(series) == 0 {
		return result, nil
	}

	result.Timestamps = series[0].Timestamps()
	for _, s := range series[1:] {
		if len(s.Observations) != len(result.Timestamps) {
			return nil, fmt.Errorf("%w: %s has %d observations, %s has %d",
				ErrMisalignedSeries, s.Instrument, len(s.Observations), series[0].Instrument, len(result.Timestamps))
		}
	}

	for _, s := range series {
		ns, err := NormalizeSeries(s, result.Timestamps)
		if err != nil {
			var catErr *apperrors.CategorizedError
			if errors.As(err, &catErr) && catErr.Category == apperrors.CategoryNormalization {
				result.Omitted = append(result.Omitted, OmittedSeries{
					Instrument: s.Instrument,
					Code:       catErr.Code,
					Reason:     catErr.Message,
				})
				continue
			}
			return nil, err
		}
		result.Series = append(result.Series, ns)
	}

	return result, nil
}
