package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"covid-dashboard/internal/engine"
	"covid-dashboard/internal/models"
	"covid-dashboard/internal/observability"
	"covid-dashboard/internal/present"
	"covid-dashboard/internal/render"
)

var errUnknownView = errors.New("unknown view")

// Options configures a Handler. Zero values fall back to defaults.
type Options struct {
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Clock       clockwork.Clock
	ChartWidth  int
	ChartHeight int
}

type Handler struct {
	data     atomic.Pointer[engine.Dataset]
	loadedAt atomic.Pointer[time.Time]

	logger  *zap.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	width   int
	height  int
}

// NewHandler may be given a nil dataset; every data route answers 503 until
// SetData is called.
func NewHandler(data *engine.Dataset, opts Options) *Handler {
	h := &Handler{
		logger:  opts.Logger,
		metrics: opts.Metrics,
		clock:   opts.Clock,
		width:   opts.ChartWidth,
		height:  opts.ChartHeight,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.metrics == nil {
		h.metrics = observability.NewMetricsForTesting()
	}
	if h.clock == nil {
		h.clock = clockwork.NewRealClock()
	}
	if h.width <= 0 {
		h.width = 1024
	}
	if h.height <= 0 {
		h.height = 480
	}
	if data != nil {
		h.SetData(data)
	}
	return h
}

// SetData publishes a fully loaded dataset to all subsequent requests.
func (h *Handler) SetData(ds *engine.Dataset) {
	now := h.clock.Now()
	h.data.Store(ds)
	h.loadedAt.Store(&now)

	h.metrics.DatasetRows.WithLabelValues("cases").Set(float64(ds.Cases.Len()))
	h.metrics.DatasetRows.WithLabelValues("daily").Set(float64(ds.Daily.Len()))
	h.metrics.DatasetRows.WithLabelValues("countries").Set(float64(ds.Countries.Len()))
	h.metrics.DatasetRows.WithLabelValues("counties").Set(float64(ds.Counties.Len()))
	h.metrics.DatasetReady.Set(1)
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	e.GET("/readyz", h.Readyz)

	e.GET("/", h.Dashboard, h.requireData)

	api := e.Group("/api", h.requireData)
	api.GET("/options", h.GetOptions)
	api.GET("/views/:view", h.GetView)
	api.GET("/views/:view/chart.png", h.GetChart)
}

// requireData answers 503 while the background load is still running.
func (h *Handler) requireData(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.data.Load() == nil {
			return errorJSON(c, http.StatusServiceUnavailable, "dataset is still loading")
		}
		return next(c)
	}
}

func errorJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, models.ErrorResponse{Error: http.StatusText(code), Message: msg})
}

// --- PROBES ---

func (h *Handler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(c echo.Context) error {
	at := h.loadedAt.Load()
	if h.data.Load() == nil || at == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "loading"})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "ready",
		"loaded_at": at.UTC().Format(time.RFC3339),
	})
}

// --- HANDLERS ---

// getLimit clamps the limit query parameter to 1..upper, defaulting to upper.
func getLimit(c echo.Context, upper int) int {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 || limit > upper {
		return upper
	}
	return limit
}

// selectedStates reads repeated state parameters. An absent parameter means
// the default selection; a present but blank one means nothing selected.
func selectedStates(c echo.Context, counties *engine.CountyTable) []string {
	raw, ok := c.QueryParams()["state"]
	if !ok {
		return counties.DefaultSelection()
	}
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func metricParam(c echo.Context, allowed []engine.Metric) (engine.Metric, error) {
	s := c.QueryParam("metric")
	if s == "" {
		return engine.Confirmed, nil
	}
	return engine.ParseMetric(s, allowed)
}

var regionMetrics = []engine.Metric{engine.Confirmed, engine.Deaths, engine.Recovered, engine.Active}

// buildView runs the aggregation behind one tab for the current request.
func (h *Handler) buildView(ds *engine.Dataset, name string, c echo.Context) (models.View, error) {
	switch name {
	case present.ViewGlobal:
		return present.GlobalTrends(ds.Cases.GlobalTrends()), nil

	case present.ViewCountries:
		metric, err := metricParam(c, engine.SnapshotMetrics)
		if err != nil {
			return models.View{}, err
		}
		limit := getLimit(c, engine.TopCountries)
		top, err := ds.Cases.TopCountries(metric, limit)
		if err != nil {
			return models.View{}, err
		}
		return present.CountrySnapshot(metric, limit, top), nil

	case present.ViewDaily:
		return present.DailyCases(ds.Daily.DailyCases()), nil

	case present.ViewStates:
		points, err := ds.Counties.StateTrends(selectedStates(c, ds.Counties))
		if err != nil {
			return models.View{}, err
		}
		return present.StateTrends(points), nil

	case present.ViewRegions:
		metric, err := metricParam(c, regionMetrics)
		if err != nil {
			return models.View{}, err
		}
		totals, err := ds.Countries.RegionTotals(metric)
		if err != nil {
			return models.View{}, err
		}
		return present.RegionBreakdown(metric, totals), nil
	}
	return models.View{}, fmt.Errorf("%w: %q", errUnknownView, name)
}

// viewError maps a buildView failure to a status code and records it.
func (h *Handler) viewError(c echo.Context, name string, err error) error {
	switch {
	case errors.Is(err, errUnknownView):
		return errorJSON(c, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrInvalidSelection):
		h.metrics.ViewRequests.WithLabelValues(name, "invalid").Inc()
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	h.metrics.ViewRequests.WithLabelValues(name, "error").Inc()
	h.logger.Error("view failed", zap.String("view", name), zap.Error(err))
	return errorJSON(c, http.StatusInternalServerError, "failed to build view")
}

func (h *Handler) observe(view models.View) {
	outcome := "ok"
	if view.Notice != "" {
		outcome = "empty"
	}
	h.metrics.ViewRequests.WithLabelValues(view.Key, outcome).Inc()
}

// GetView returns the chart spec and summary values of one tab as JSON.
func (h *Handler) GetView(c echo.Context) error {
	name := c.Param("view")
	view, err := h.buildView(h.data.Load(), name, c)
	if err != nil {
		return h.viewError(c, name, err)
	}
	h.observe(view)
	return c.JSON(http.StatusOK, view)
}

// GetChart draws the tab's chart as a PNG.
func (h *Handler) GetChart(c echo.Context) error {
	name := c.Param("view")
	view, err := h.buildView(h.data.Load(), name, c)
	if err != nil {
		return h.viewError(c, name, err)
	}

	start := h.clock.Now()
	var buf bytes.Buffer
	if err := render.PNG(&buf, view.Chart, h.width, h.height); err != nil {
		h.metrics.ViewRequests.WithLabelValues(name, "error").Inc()
		h.logger.Error("chart render failed", zap.String("view", name), zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "failed to render chart")
	}
	h.metrics.ChartRenderSeconds.WithLabelValues(name).Observe(h.clock.Since(start).Seconds())
	h.observe(view)

	c.Response().Header().Set("Cache-Control", "no-cache")
	return c.Blob(http.StatusOK, render.ContentType, buf.Bytes())
}

// GetOptions lists the views, metrics and states a client can select.
// Metrics applies to the countries view, RegionMetrics to the regions view.
func (h *Handler) GetOptions(c echo.Context) error {
	ds := h.data.Load()
	return c.JSON(http.StatusOK, models.Options{
		Views:         present.Views,
		Metrics:       present.MetricNames(engine.SnapshotMetrics),
		RegionMetrics: present.MetricNames(regionMetrics),
		States:        ds.Counties.States(),
		DefaultStates: ds.Counties.DefaultSelection(),
	})
}
