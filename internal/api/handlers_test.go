package api

import (
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"covid-dashboard/internal/engine"
	"covid-dashboard/internal/models"
	"covid-dashboard/internal/observability"
)

func testDataset() *engine.Dataset {
	return &engine.Dataset{
		Cases: &engine.CaseTable{
			Dates:        []engine.Date{20200122, 20200122, 20200123, 20200123, 20200123},
			Confirmed:    []int64{5, 3, 7, 4, 1},
			Deaths:       []int64{1, 0, 2, 1, 0},
			Recovered:    []int64{0, 0, 1, 1, 0},
			Active:       []int64{4, 3, 4, 2, 1},
			CountryIDs:   []int32{0, 1, 0, 1, 2},
			ProvinceIDs:  []int32{0, 0, 0, 0, 0},
			CountryDict:  []string{"A", "B", "C"},
			ProvinceDict: []string{""},
		},
		Daily: &engine.DailyTable{
			Dates:        []engine.Date{20200122, 20200123},
			Confirmed:    []int64{8, 12},
			Deaths:       []int64{1, 3},
			Recovered:    []int64{0, 2},
			Active:       []int64{7, 7},
			NewCases:     []int64{0, 4},
			NewDeaths:    []int64{0, 2},
			NewRecovered: []int64{0, 2},
		},
		Countries: &engine.CountryTable{
			Countries:     []string{"A", "B", "C"},
			Confirmed:     []int64{7, 4, 1},
			Deaths:        []int64{2, 1, 0},
			Recovered:     []int64{1, 1, 0},
			Active:        []int64{4, 2, 1},
			NewCases:      []int64{2, 1, 1},
			NewDeaths:     []int64{1, 1, 0},
			WHORegionIDs:  []int32{0, 0, 1},
			WHORegionDict: []string{"Europe", "Americas"},
		},
		Counties: &engine.CountyTable{
			Dates:      []engine.Date{20200122, 20200122, 20200123},
			Confirmed:  []int64{4, 10, 20},
			Deaths:     []int64{0, 1, 2},
			StateIDs:   []int32{0, 1, 1},
			CountyIDs:  []int32{0, 1, 1},
			StateDict:  []string{"Texas", "New York"},
			CountyDict: []string{"Harris", "Kings"},
		},
	}
}

type fixture struct {
	h       *Handler
	e       *echo.Echo
	metrics *observability.Metrics
	clock   *clockwork.FakeClock
}

func newFixture(t *testing.T, data *engine.Dataset) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	f := &fixture{
		metrics: observability.NewMetricsForTesting(),
		clock:   clockwork.NewFakeClockAt(time.Date(2020, 7, 28, 9, 30, 0, 0, time.UTC)),
	}
	f.h = NewHandler(data, Options{
		Logger:      logger,
		Metrics:     f.metrics,
		Clock:       f.clock,
		ChartWidth:  320,
		ChartHeight: 200,
	})
	f.e = NewServer(f.h, logger)
	return f
}

func (f *fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) models.View {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view models.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func TestDataRoutesAnswer503WhileLoading(t *testing.T) {
	f := newFixture(t, nil)

	for _, target := range []string{"/", "/api/options", "/api/views/global", "/api/views/daily/chart.png"} {
		rec := f.get(t, target)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
	}

	rec := f.get(t, "/api/views/global")
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Service Unavailable", body.Error)
	assert.Equal(t, "dataset is still loading", body.Message)

	assert.Equal(t, http.StatusOK, f.get(t, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.get(t, "/readyz").Code)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.DatasetReady))
}

func TestSetDataMakesServiceReady(t *testing.T) {
	f := newFixture(t, nil)
	f.h.SetData(testDataset())

	rec := f.get(t, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "2020-07-28T09:30:00Z", body["loaded_at"])

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DatasetReady))
	assert.Equal(t, 5.0, testutil.ToFloat64(f.metrics.DatasetRows.WithLabelValues("cases")))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.DatasetRows.WithLabelValues("counties")))
}

func TestGetViewGlobal(t *testing.T) {
	f := newFixture(t, testDataset())

	view := decodeView(t, f.get(t, "/api/views/global"))

	assert.Equal(t, "global", view.Key)
	assert.Equal(t, "Global COVID-19 Trends", view.Chart.Title)
	require.Len(t, view.Chart.Series, 4)
	assert.Equal(t, []models.Point{{Label: "2020-01-22", Value: 8}, {Label: "2020-01-23", Value: 12}}, view.Chart.Series[0].Points)
	require.Len(t, view.Metrics, 4)
	assert.Equal(t, "12", view.Metrics[0].Value)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ViewRequests.WithLabelValues("global", "ok")))
}

func TestGetViewCountries(t *testing.T) {
	f := newFixture(t, testDataset())

	view := decodeView(t, f.get(t, "/api/views/countries"))
	assert.Equal(t, "Top 10 Countries by Confirmed", view.Chart.Title)
	assert.Equal(t, []models.Point{{Label: "A", Value: 7}, {Label: "B", Value: 4}, {Label: "C", Value: 1}}, view.Chart.Series[0].Points)

	view = decodeView(t, f.get(t, "/api/views/countries?metric=deaths&limit=2"))
	assert.Equal(t, "Top 2 Countries by Deaths", view.Chart.Title)
	assert.Equal(t, []models.Point{{Label: "A", Value: 2}, {Label: "B", Value: 1}}, view.Chart.Series[0].Points)

	// out of range limits fall back to the full ranking
	view = decodeView(t, f.get(t, "/api/views/countries?limit=50"))
	assert.Equal(t, "Top 10 Countries by Confirmed", view.Chart.Title)
}

func TestGetViewInvalidMetric(t *testing.T) {
	f := newFixture(t, testDataset())

	for _, target := range []string{
		"/api/views/countries?metric=Tests",
		"/api/views/countries?metric=Recovered",
		"/api/views/regions?metric=Tests",
	} {
		rec := f.get(t, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.ViewRequests.WithLabelValues("countries", "invalid")))
}

func TestGetViewUnknown(t *testing.T) {
	f := newFixture(t, testDataset())

	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/views/provinces").Code)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/views/provinces/chart.png").Code)
}

func TestGetViewDaily(t *testing.T) {
	f := newFixture(t, testDataset())

	view := decodeView(t, f.get(t, "/api/views/daily"))
	require.Len(t, view.Chart.Series, 2)
	assert.Equal(t, int64(4), view.Chart.Series[0].Points[1].Value)
	assert.Equal(t, int64(2), view.Chart.Series[1].Points[1].Value)
}

func TestGetViewStates(t *testing.T) {
	f := newFixture(t, testDataset())

	// no parameter: default selection present in the data
	view := decodeView(t, f.get(t, "/api/views/states"))
	require.Len(t, view.Chart.Series, 2)
	assert.Equal(t, "New York", view.Chart.Series[0].Name)
	assert.Equal(t, "Texas", view.Chart.Series[1].Name)

	view = decodeView(t, f.get(t, "/api/views/states?state=Texas&state=Texas"))
	require.Len(t, view.Chart.Series, 1)
	assert.Equal(t, []models.Point{{Label: "2020-01-22", Value: 4}}, view.Chart.Series[0].Points)

	// blank parameter: explicit empty selection
	view = decodeView(t, f.get(t, "/api/views/states?state="))
	assert.Empty(t, view.Chart.Series)
	assert.Equal(t, "No data available", view.Notice)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ViewRequests.WithLabelValues("states", "empty")))

	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/views/states?state=Ohio").Code)
}

func TestGetViewRegions(t *testing.T) {
	f := newFixture(t, testDataset())

	view := decodeView(t, f.get(t, "/api/views/regions?metric=recovered"))
	assert.Equal(t, "Recovered by WHO Region", view.Chart.Title)
	assert.Equal(t, []models.Point{{Label: "Europe", Value: 2}, {Label: "Americas", Value: 0}}, view.Chart.Series[0].Points)
}

func TestGetChart(t *testing.T) {
	f := newFixture(t, testDataset())

	for _, target := range []string{
		"/api/views/global/chart.png",
		"/api/views/countries/chart.png?metric=Active",
		"/api/views/daily/chart.png",
		"/api/views/states/chart.png?state=",
		"/api/views/regions/chart.png",
	} {
		rec := f.get(t, target)
		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType), target)

		cfg, err := png.DecodeConfig(rec.Body)
		require.NoError(t, err, target)
		assert.Equal(t, 320, cfg.Width, target)
		assert.Equal(t, 200, cfg.Height, target)
	}
	assert.Equal(t, 5, testutil.CollectAndCount(f.metrics.ChartRenderSeconds))
}

func TestGetOptions(t *testing.T) {
	f := newFixture(t, testDataset())

	rec := f.get(t, "/api/options")
	require.Equal(t, http.StatusOK, rec.Code)
	var opts models.Options
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opts))

	assert.Equal(t, []string{"global", "countries", "daily", "states", "regions"}, opts.Views)
	assert.Equal(t, []string{"Confirmed", "Deaths", "Active"}, opts.Metrics)
	assert.Equal(t, []string{"Confirmed", "Deaths", "Recovered", "Active"}, opts.RegionMetrics)
	assert.Equal(t, []string{"New York", "Texas"}, opts.States)
	assert.Equal(t, []string{"New York", "Texas"}, opts.DefaultStates)
}

func TestRequestIDHeader(t *testing.T) {
	f := newFixture(t, testDataset())

	rec := f.get(t, "/healthz")
	assert.Len(t, rec.Header().Get(echo.HeaderXRequestID), 36)
}
