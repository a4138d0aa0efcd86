package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covid-dashboard/internal/models"
)

func decode(t *testing.T, buf *bytes.Buffer) (int, int) {
	t.Helper()
	img, err := png.Decode(buf)
	require.NoError(t, err)
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func TestPNGLine(t *testing.T) {
	spec := models.ChartSpec{
		Kind:   models.ChartLine,
		Title:  "Daily New Cases & Deaths",
		XLabel: "Date",
		YLabel: "Count",
		Series: []models.Series{
			{Name: "New cases", Points: []models.Point{{Label: "2020-01-22", Value: 0}, {Label: "2020-01-23", Value: 99}, {Label: "2020-01-24", Value: 287}}},
			{Name: "New deaths", Points: []models.Point{{Label: "2020-01-22", Value: 0}, {Label: "2020-01-23", Value: 1}, {Label: "2020-01-24", Value: 8}}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, PNG(&buf, spec, 640, 360))
	w, h := decode(t, &buf)
	assert.Equal(t, 640, w)
	assert.Equal(t, 360, h)
}

func TestPNGBar(t *testing.T) {
	spec := models.ChartSpec{
		Kind:        models.ChartBar,
		Orientation: "h",
		Title:       "Top 10 Countries by Confirmed",
		Series: []models.Series{{Name: "Confirmed", Points: []models.Point{
			{Label: "US", Value: 4290259},
			{Label: "Brazil", Value: 2442375},
			{Label: "India", Value: 1480073},
		}}},
	}

	var buf bytes.Buffer
	require.NoError(t, PNG(&buf, spec, 800, 400))
	w, h := decode(t, &buf)
	assert.Equal(t, 800, w)
	assert.Equal(t, 400, h)
}

func TestPNGEmptyRendersBlank(t *testing.T) {
	tests := []struct {
		name string
		spec models.ChartSpec
	}{
		{"no series", models.ChartSpec{Kind: models.ChartLine}},
		{"single date", models.ChartSpec{Kind: models.ChartLine, Series: []models.Series{
			{Name: "Texas", Points: []models.Point{{Label: "2020-01-22", Value: 3}}},
		}}},
		{"no bars", models.ChartSpec{Kind: models.ChartBar, Series: []models.Series{{Name: "Deaths"}}}},
		{"all zero bars", models.ChartSpec{Kind: models.ChartBar, Series: []models.Series{
			{Name: "Deaths", Points: []models.Point{{Label: "A", Value: 0}, {Label: "B", Value: 0}}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, PNG(&buf, tt.spec, 320, 200))
			w, h := decode(t, &buf)
			assert.Equal(t, 320, w)
			assert.Equal(t, 200, h)
		})
	}
}

func TestPNGRejectsBadInput(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, PNG(&buf, models.ChartSpec{Kind: "pie"}, 320, 200))

	bad := models.ChartSpec{Kind: models.ChartLine, Series: []models.Series{
		{Name: "x", Points: []models.Point{{Label: "yesterday", Value: 1}}},
	}}
	assert.Error(t, PNG(&buf, bad, 320, 200))
}
