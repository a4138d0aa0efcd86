// Package present maps aggregated tables and display options to chart
// specifications and summary values. It owns no state.
package present

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"covid-dashboard/internal/engine"
	"covid-dashboard/internal/models"
)

// View keys, in tab order.
const (
	ViewGlobal    = "global"
	ViewCountries = "countries"
	ViewDaily     = "daily"
	ViewStates    = "states"
	ViewRegions   = "regions"
)

var Views = []string{ViewGlobal, ViewCountries, ViewDaily, ViewStates, ViewRegions}

// Tab labels shown by the view selector.
var Tabs = map[string]string{
	ViewGlobal:    "Global Trends",
	ViewCountries: "Country Snapshot",
	ViewDaily:     "Daily Cases",
	ViewStates:    "US States Trends",
	ViewRegions:   "WHO Regions",
}

const noData = "No data available"

// GlobalTrends draws the four metrics over time and the latest totals as cards.
func GlobalTrends(series []models.GlobalPoint) models.View {
	metrics := []engine.Metric{engine.Confirmed, engine.Deaths, engine.Recovered, engine.Active}
	chart := models.ChartSpec{
		Kind:        models.ChartLine,
		Orientation: "v",
		Title:       "Global COVID-19 Trends",
		X:           "Date",
		Y:           MetricNames(metrics),
		XLabel:      "Date",
		YLabel:      "Cases",
		LegendTitle: "Metric",
	}
	for _, m := range metrics {
		s := models.Series{Name: string(m), Points: make([]models.Point, 0, len(series))}
		for _, p := range series {
			s.Points = append(s.Points, models.Point{Label: p.Date, Value: globalValue(p, m)})
		}
		chart.Series = append(chart.Series, s)
	}

	view := models.View{
		Key:     ViewGlobal,
		Heading: "Global COVID-19 Trends Over Time",
		Chart:   chart,
	}

	latest, err := engine.Latest(series)
	if errors.Is(err, engine.ErrNoDataAvailable) {
		view.Notice = noData
		return view
	}
	for _, m := range metrics {
		view.Metrics = append(view.Metrics, Card(string(m), globalValue(latest, m)))
	}
	return view
}

// CountrySnapshot draws the top n countries as horizontal bars, largest on top.
func CountrySnapshot(metric engine.Metric, n int, top []models.CountryMax) models.View {
	s := models.Series{Name: string(metric), Points: make([]models.Point, 0, len(top))}
	for _, c := range top {
		s.Points = append(s.Points, models.Point{Label: c.Country, Value: countryValue(c, metric)})
	}

	view := models.View{
		Key:     ViewCountries,
		Heading: fmt.Sprintf("Top %d Countries", n),
		Chart: models.ChartSpec{
			Kind:          models.ChartBar,
			Orientation:   "h",
			Title:         fmt.Sprintf("Top %d Countries by %s", n, metric),
			X:             string(metric),
			Y:             []string{"Country/Region"},
			Color:         string(metric),
			XLabel:        string(metric),
			YLabel:        "Country/Region",
			CategoryOrder: "total ascending",
			Series:        []models.Series{s},
		},
	}
	if len(top) == 0 {
		view.Notice = noData
	}
	return view
}

// DailyCases draws new cases and new deaths per day.
func DailyCases(points []models.DailyPoint) models.View {
	cases := models.Series{Name: "New cases", Points: make([]models.Point, 0, len(points))}
	deaths := models.Series{Name: "New deaths", Points: make([]models.Point, 0, len(points))}
	for _, p := range points {
		cases.Points = append(cases.Points, models.Point{Label: p.Date, Value: p.NewCases})
		deaths.Points = append(deaths.Points, models.Point{Label: p.Date, Value: p.NewDeaths})
	}

	view := models.View{
		Key:     ViewDaily,
		Heading: "Global Daily New Cases & Deaths",
		Chart: models.ChartSpec{
			Kind:        models.ChartLine,
			Orientation: "v",
			Title:       "Daily New Cases & Deaths",
			X:           "Date",
			Y:           []string{"New cases", "New deaths"},
			XLabel:      "Date",
			YLabel:      "Count",
			LegendTitle: "Metric",
			Series:      []models.Series{cases, deaths},
		},
	}
	if len(points) == 0 {
		view.Notice = noData
	}
	return view
}

// StateTrends draws one Confirmed line per selected state. points must be
// ordered by state then date.
func StateTrends(points []models.StatePoint) models.View {
	series := []models.Series{}
	for _, p := range points {
		if len(series) == 0 || series[len(series)-1].Name != p.State {
			series = append(series, models.Series{Name: p.State})
		}
		last := &series[len(series)-1]
		last.Points = append(last.Points, models.Point{Label: p.Date, Value: p.Confirmed})
	}

	view := models.View{
		Key:     ViewStates,
		Heading: "COVID-19 Trends in Major US States",
		Chart: models.ChartSpec{
			Kind:        models.ChartLine,
			Orientation: "v",
			Title:       "Confirmed Cases Over Time (US States)",
			X:           "Date",
			Y:           []string{"Confirmed"},
			Color:       "Province_State",
			XLabel:      "Date",
			YLabel:      "Confirmed",
			LegendTitle: "Province_State",
			Series:      series,
		},
	}
	if len(points) == 0 {
		view.Notice = noData
	}
	return view
}

// RegionBreakdown draws the latest metric totals per WHO region.
func RegionBreakdown(metric engine.Metric, totals []models.RegionTotal) models.View {
	s := models.Series{Name: string(metric), Points: make([]models.Point, 0, len(totals))}
	for _, r := range totals {
		s.Points = append(s.Points, models.Point{Label: r.Region, Value: r.Value})
	}

	view := models.View{
		Key:     ViewRegions,
		Heading: "Latest Totals by WHO Region",
		Chart: models.ChartSpec{
			Kind:          models.ChartBar,
			Orientation:   "h",
			Title:         fmt.Sprintf("%s by WHO Region", metric),
			X:             string(metric),
			Y:             []string{"WHO Region"},
			Color:         string(metric),
			XLabel:        string(metric),
			YLabel:        "WHO Region",
			CategoryOrder: "total ascending",
			Series:        []models.Series{s},
		},
	}
	var total int64
	for _, r := range totals {
		total += r.Value
	}
	if len(totals) == 0 {
		view.Notice = noData
	} else {
		view.Metrics = []models.MetricCard{Card("Total "+string(metric), total)}
	}
	return view
}

// Card formats v with thousands separators: 1234567 -> "1,234,567".
func Card(label string, v int64) models.MetricCard {
	return models.MetricCard{Label: label, Value: humanize.Comma(v), Raw: v}
}

func MetricNames(ms []engine.Metric) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = string(m)
	}
	return out
}

func globalValue(p models.GlobalPoint, m engine.Metric) int64 {
	switch m {
	case engine.Deaths:
		return p.Deaths
	case engine.Recovered:
		return p.Recovered
	case engine.Active:
		return p.Active
	default:
		return p.Confirmed
	}
}

func countryValue(c models.CountryMax, m engine.Metric) int64 {
	switch m {
	case engine.Deaths:
		return c.Deaths
	case engine.Recovered:
		return c.Recovered
	case engine.Active:
		return c.Active
	default:
		return c.Confirmed
	}
}
