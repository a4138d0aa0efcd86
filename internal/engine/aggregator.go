package engine

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"covid-dashboard/internal/models"
)

// Metric names one of the case-count columns.
type Metric string

const (
	Confirmed Metric = "Confirmed"
	Deaths    Metric = "Deaths"
	Recovered Metric = "Recovered"
	Active    Metric = "Active"
)

// SnapshotMetrics are the metrics offered by the country snapshot dropdown.
var SnapshotMetrics = []Metric{Confirmed, Deaths, Active}

// DefaultStates is the initial US states selection.
var DefaultStates = []string{"New York", "California", "Texas", "Florida"}

// TopCountries is the size of the country snapshot ranking.
const TopCountries = 10

// ParseMetric matches s case-insensitively against allowed.
func ParseMetric(s string, allowed []Metric) (Metric, error) {
	for _, m := range allowed {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: metric %q", ErrInvalidSelection, s)
}

type caseSums struct {
	confirmed, deaths, recovered, active int64
}

// --- GLOBAL TRENDS ---

// GlobalTrends sums every metric across all regions per date, ascending by
// date. Rows with NullDate are dropped.
func (t *CaseTable) GlobalTrends() []models.GlobalPoint {
	byDate := make(map[Date]*caseSums)
	for i, d := range t.Dates {
		if !d.Valid() {
			continue
		}
		acc, ok := byDate[d]
		if !ok {
			acc = &caseSums{}
			byDate[d] = acc
		}
		acc.confirmed += t.Confirmed[i]
		acc.deaths += t.Deaths[i]
		acc.recovered += t.Recovered[i]
		acc.active += t.Active[i]
	}

	dates := make([]Date, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	slices.Sort(dates)

	out := make([]models.GlobalPoint, 0, len(dates))
	for _, d := range dates {
		acc := byDate[d]
		out = append(out, models.GlobalPoint{
			Date:      d.String(),
			Confirmed: acc.confirmed,
			Deaths:    acc.deaths,
			Recovered: acc.recovered,
			Active:    acc.active,
		})
	}
	return out
}

// Latest returns the last point of a date-ordered series.
func Latest(series []models.GlobalPoint) (models.GlobalPoint, error) {
	if len(series) == 0 {
		return models.GlobalPoint{}, ErrNoDataAvailable
	}
	return series[len(series)-1], nil
}

// --- COUNTRY SNAPSHOT ---

// CountryMaxima takes the max observed value of each metric per country,
// ordered by country name. Rows without a country are skipped.
func (t *CaseTable) CountryMaxima() []models.CountryMax {
	seen := make([]bool, len(t.CountryDict))
	maxima := make([]models.CountryMax, len(t.CountryDict))

	for i, cid := range t.CountryIDs {
		if t.CountryDict[cid] == "" {
			continue
		}
		m := &maxima[cid]
		if !seen[cid] {
			seen[cid] = true
			*m = models.CountryMax{
				Country:   t.CountryDict[cid],
				Confirmed: t.Confirmed[i],
				Deaths:    t.Deaths[i],
				Recovered: t.Recovered[i],
				Active:    t.Active[i],
			}
			continue
		}
		m.Confirmed = max(m.Confirmed, t.Confirmed[i])
		m.Deaths = max(m.Deaths, t.Deaths[i])
		m.Recovered = max(m.Recovered, t.Recovered[i])
		m.Active = max(m.Active, t.Active[i])
	}

	out := make([]models.CountryMax, 0, len(maxima))
	for cid, m := range maxima {
		if seen[cid] {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country < out[j].Country })
	return out
}

// TopCountries ranks countries by the max-to-date value of metric and keeps
// the first n. Equal values keep country-name order.
func (t *CaseTable) TopCountries(metric Metric, n int) ([]models.CountryMax, error) {
	if !slices.Contains(SnapshotMetrics, metric) {
		return nil, fmt.Errorf("%w: metric %q", ErrInvalidSelection, metric)
	}

	rows := t.CountryMaxima()
	sort.SliceStable(rows, func(i, j int) bool {
		return countryValue(rows[i], metric) > countryValue(rows[j], metric)
	})
	if n >= 0 && len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}

func countryValue(c models.CountryMax, metric Metric) int64 {
	switch metric {
	case Deaths:
		return c.Deaths
	case Recovered:
		return c.Recovered
	case Active:
		return c.Active
	default:
		return c.Confirmed
	}
}

// --- DAILY CASES ---

// DailyCases passes day_wise through in file order, minus NullDate rows.
func (t *DailyTable) DailyCases() []models.DailyPoint {
	out := make([]models.DailyPoint, 0, len(t.Dates))
	for i, d := range t.Dates {
		if !d.Valid() {
			continue
		}
		out = append(out, models.DailyPoint{
			Date:      d.String(),
			NewCases:  t.NewCases[i],
			NewDeaths: t.NewDeaths[i],
		})
	}
	return out
}

// --- US STATES ---

// States lists the selectable state names in ascending order. A blank state
// is not selectable.
func (t *CountyTable) States() []string {
	out := make([]string, 0, len(t.StateDict))
	for _, s := range t.StateDict {
		if s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out
}

// DefaultSelection is DefaultStates minus any state absent from the data.
func (t *CountyTable) DefaultSelection() []string {
	out := make([]string, 0, len(DefaultStates))
	for _, s := range DefaultStates {
		if slices.Contains(t.StateDict, s) {
			out = append(out, s)
		}
	}
	return out
}

// StateTrends sums Confirmed and Deaths over counties per (State, Date) for
// the selected states, ordered by state then date. An empty selection yields
// an empty series; an unknown state is an ErrInvalidSelection.
func (t *CountyTable) StateTrends(states []string) ([]models.StatePoint, error) {
	stateIDs := make(map[string]int32, len(t.StateDict))
	for id, name := range t.StateDict {
		if name != "" {
			stateIDs[name] = int32(id)
		}
	}

	selected := make(map[int32]bool, len(states))
	for _, s := range states {
		id, ok := stateIDs[s]
		if !ok {
			return nil, fmt.Errorf("%w: state %q", ErrInvalidSelection, s)
		}
		selected[id] = true
	}
	if len(selected) == 0 {
		return []models.StatePoint{}, nil
	}

	type key struct {
		state int32
		date  Date
	}
	type sums struct{ confirmed, deaths int64 }
	byKey := make(map[key]*sums)

	for i, sid := range t.StateIDs {
		d := t.Dates[i]
		if !selected[sid] || !d.Valid() {
			continue
		}
		k := key{sid, d}
		acc, ok := byKey[k]
		if !ok {
			acc = &sums{}
			byKey[k] = acc
		}
		acc.confirmed += t.Confirmed[i]
		acc.deaths += t.Deaths[i]
	}

	out := make([]models.StatePoint, 0, len(byKey))
	for k, acc := range byKey {
		out = append(out, models.StatePoint{
			State:     t.StateDict[k.state],
			Date:      k.date.String(),
			Confirmed: acc.confirmed,
			Deaths:    acc.deaths,
		})
	}
	// ISO dates sort lexically.
	sort.Slice(out, func(i, j int) bool {
		if out[i].State != out[j].State {
			return out[i].State < out[j].State
		}
		return out[i].Date < out[j].Date
	})
	return out, nil
}

// --- WHO REGIONS ---

// RegionTotals sums metric per WHO region of the latest country snapshot,
// descending by value, ties by region name. Blank regions are dropped.
func (t *CountryTable) RegionTotals(metric Metric) ([]models.RegionTotal, error) {
	var values []int64
	switch metric {
	case Confirmed:
		values = t.Confirmed
	case Deaths:
		values = t.Deaths
	case Recovered:
		values = t.Recovered
	case Active:
		values = t.Active
	default:
		return nil, fmt.Errorf("%w: metric %q", ErrInvalidSelection, metric)
	}

	totals := make([]models.RegionTotal, len(t.WHORegionDict))
	for id, name := range t.WHORegionDict {
		totals[id].Region = name
	}
	for i, rid := range t.WHORegionIDs {
		totals[rid].Value += values[i]
		totals[rid].Countries++
	}
	// Countries without a region are not grouped.
	totals = slices.DeleteFunc(totals, func(r models.RegionTotal) bool { return r.Region == "" })

	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Value != totals[j].Value {
			return totals[i].Value > totals[j].Value
		}
		return totals[i].Region < totals[j].Region
	})
	return totals, nil
}
