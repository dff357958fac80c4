package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/etf-dashboard/internal/errors"
	"github.com/etf-dashboard/internal/types"
)

const chartJSON = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "VTI", "currency": "USD"},
      "timestamp": [1700000000, 1700604800, 1701209600],
      "indicators": {"quote": [{"close": [220.5, null, 231.25]}]}
    }],
    "error": null
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *YahooClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewYahooClient(YahooConfig{BaseURL: srv.URL, Timeout: 2 * time.Second, MaxAttempts: 3})
	c.retryConfig.InitialDelay = time.Millisecond
	c.retryConfig.MaxDelay = 2 * time.Millisecond
	return c
}

func TestFetchSeries(t *testing.T) {
	var gotPath, gotRange, gotInterval string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRange = r.URL.Query().Get("range")
		gotInterval = r.URL.Query().Get("interval")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartJSON))
	})

	s, err := c.FetchSeries(context.Background(), "XIU.TO", types.Range1M, types.IntervalDaily)
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/XIU.TO", gotPath)
	assert.Equal(t, "1mo", gotRange)
	assert.Equal(t, "1d", gotInterval)

	assert.Equal(t, "XIU.TO", s.Instrument)
	assert.Equal(t, types.Range1M, s.Range)
	require.Len(t, s.Observations, 3)
	assert.Equal(t, int64(1700000000), s.Observations[0].Timestamp)
	require.NotNil(t, s.Observations[0].Price)
	assert.Equal(t, 220.5, *s.Observations[0].Price)
	assert.Nil(t, s.Observations[1].Price, "null close must stay absent, not zero")
	assert.Equal(t, 231.25, *s.Observations[2].Price)
}

func TestFetchSeriesRetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(chartJSON))
	})

	s, err := c.FetchSeries(context.Background(), "VTI", types.Range1Y, types.IntervalWeekly)
	require.NoError(t, err)
	assert.Len(t, s.Observations, 3)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchSeriesDataUnavailable(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCalls int32
	}{
		{name: "not found is not retried", status: http.StatusNotFound, body: `{}`, wantCalls: 1},
		{name: "provider error payload", status: http.StatusOK, body: `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`, wantCalls: 1},
		{name: "invalid json", status: http.StatusOK, body: `{"chart":`, wantCalls: 1},
		{name: "length mismatch", status: http.StatusOK, body: `{"chart":{"result":[{"timestamp":[1,2],"indicators":{"quote":[{"close":[1.0]}]}}]}}`, wantCalls: 1},
		{name: "persistent server error", status: http.StatusInternalServerError, body: `oops`, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.FetchSeries(context.Background(), "VTI", types.Range1Y, types.IntervalWeekly)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrDataUnavailable)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestParseChartRejectsDescendingTimestamps(t *testing.T) {
	payload := &chartResponse{}
	payload.Chart.Result = []chartResult{{Timestamp: []int64{2, 1}}}
	payload.Chart.Result[0].Indicators.Quote = append(payload.Chart.Result[0].Indicators.Quote, struct {
		Close []*float64 `json:"close"`
	}{Close: []*float64{types.Float(1), types.Float(2)}})

	_, err := parseChart("VTI", types.Range1Y, types.IntervalWeekly, payload)
	assert.ErrorIs(t, err, errMalformed)
}

func TestChartRange(t *testing.T) {
	assert.Equal(t, "1mo", chartRange(types.Range1M))
	assert.Equal(t, "6mo", chartRange(types.Range6M))
	assert.Equal(t, "10y", chartRange(types.Range10Y))
}
