// Package render draws chart specs as PNG images with go-chart.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/wcharczuk/go-chart/v2"

	"covid-dashboard/internal/models"
)

const ContentType = "image/png"

// PNG writes spec to w. Specs with nothing drawable become a blank canvas.
// go-chart only draws vertical bars, so horizontal bar specs are drawn
// vertically in category order.
func PNG(w io.Writer, spec models.ChartSpec, width, height int) error {
	switch spec.Kind {
	case models.ChartLine:
		return lineChart(w, spec, width, height)
	case models.ChartBar:
		return barChart(w, spec, width, height)
	default:
		return fmt.Errorf("unsupported chart kind %q", spec.Kind)
	}
}

func lineChart(w io.Writer, spec models.ChartSpec, width, height int) error {
	var series []chart.Series
	distinct := make(map[time.Time]struct{})
	minY, maxY := math.Inf(1), math.Inf(-1)

	for _, s := range spec.Series {
		ts := chart.TimeSeries{Name: s.Name}
		for _, p := range s.Points {
			x, err := time.Parse("2006-01-02", p.Label)
			if err != nil {
				return fmt.Errorf("series %q: bad date %q: %w", s.Name, p.Label, err)
			}
			y := float64(p.Value)
			ts.XValues = append(ts.XValues, x)
			ts.YValues = append(ts.YValues, y)
			distinct[x] = struct{}{}
			minY, maxY = math.Min(minY, y), math.Max(maxY, y)
		}
		if len(ts.XValues) > 0 {
			series = append(series, ts)
		}
	}
	if len(distinct) < 2 {
		return blank(w, width, height)
	}

	ch := chart.Chart{
		Title:      spec.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           spec.XLabel,
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01-02"),
		},
		YAxis: chart.YAxis{
			Name:           spec.YLabel,
			Range:          yRange(minY, maxY),
			ValueFormatter: commaFormatter,
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(chart.PNG, w)
}

func barChart(w io.Writer, spec models.ChartSpec, width, height int) error {
	var bars []chart.Value
	minY, maxY := 0.0, 0.0
	for _, s := range spec.Series {
		for _, p := range s.Points {
			v := float64(p.Value)
			bars = append(bars, chart.Value{Label: p.Label, Value: v})
			minY, maxY = math.Min(minY, v), math.Max(maxY, v)
		}
	}
	if len(bars) == 0 || minY == maxY {
		return blank(w, width, height)
	}

	barWidth := width / (2 * len(bars))
	bc := chart.BarChart{
		Title:      spec.Title,
		Width:      width,
		Height:     height,
		BarWidth:   max(barWidth, 4),
		BarSpacing: max(barWidth/2, 2),
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		YAxis: chart.YAxis{
			Range:          yRange(minY, maxY),
			ValueFormatter: commaFormatter,
		},
		Bars: bars,
	}
	return bc.Render(chart.PNG, w)
}

func yRange(minY, maxY float64) *chart.ContinuousRange {
	lo := math.Min(minY, 0)
	if maxY <= lo {
		maxY = lo + 1
	}
	return &chart.ContinuousRange{Min: lo, Max: maxY}
}

func commaFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return humanize.Comma(int64(f))
	}
	return fmt.Sprint(v)
}

// blank writes a white canvas for empty charts.
func blank(w io.Writer, width, height int) error {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return png.Encode(w, img)
}
