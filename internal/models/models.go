package models

// --- AGGREGATES ---

type GlobalPoint struct {
	Date      string `json:"date"`
	Confirmed int64  `json:"confirmed"`
	Deaths    int64  `json:"deaths"`
	Recovered int64  `json:"recovered"`
	Active    int64  `json:"active"`
}

// CountryMax holds the max-to-date value of each metric for one country.
type CountryMax struct {
	Country   string `json:"country"`
	Confirmed int64  `json:"confirmed"`
	Deaths    int64  `json:"deaths"`
	Recovered int64  `json:"recovered"`
	Active    int64  `json:"active"`
}

type DailyPoint struct {
	Date      string `json:"date"`
	NewCases  int64  `json:"new_cases"`
	NewDeaths int64  `json:"new_deaths"`
}

type StatePoint struct {
	State     string `json:"state"`
	Date      string `json:"date"`
	Confirmed int64  `json:"confirmed"`
	Deaths    int64  `json:"deaths"`
}

type RegionTotal struct {
	Region    string `json:"region"`
	Countries int    `json:"countries"`
	Value     int64  `json:"value"`
}

// --- PRESENTATION ---

type ChartKind string

const (
	ChartLine ChartKind = "line"
	ChartBar  ChartKind = "bar"
)

// ChartSpec is everything a chart collaborator needs to draw one chart.
type ChartSpec struct {
	Kind          ChartKind `json:"kind"`
	Orientation   string    `json:"orientation"` // "v" or "h"
	Title         string    `json:"title"`
	X             string    `json:"x"`
	Y             []string  `json:"y"`
	Color         string    `json:"color,omitempty"`
	XLabel        string    `json:"x_label"`
	YLabel        string    `json:"y_label"`
	LegendTitle   string    `json:"legend_title,omitempty"`
	CategoryOrder string    `json:"category_order,omitempty"`
	Series        []Series  `json:"series"`
}

// Points counts the points across all series.
func (s ChartSpec) Points() int {
	n := 0
	for _, sr := range s.Series {
		n += len(sr.Points)
	}
	return n
}

type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Point is one datum. Label is a date for line charts and a category for bars.
type Point struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

type MetricCard struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Raw   int64  `json:"raw"`
}

// View is the rendered payload of one dashboard tab.
type View struct {
	Key     string       `json:"key"`
	Heading string       `json:"heading"`
	Chart   ChartSpec    `json:"chart"`
	Metrics []MetricCard `json:"metrics,omitempty"`
	Notice  string       `json:"notice,omitempty"`
}

type Options struct {
	Views         []string `json:"views"`
	Metrics       []string `json:"metrics"`
	RegionMetrics []string `json:"region_metrics"`
	States        []string `json:"states"`
	DefaultStates []string `json:"default_states"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
