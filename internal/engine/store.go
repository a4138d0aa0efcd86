package engine

import (
	"fmt"
	"time"
)

// Date is a calendar day packed as YYYYMMDD (20200122).
// NullDate marks a source value that could not be parsed.
type Date int32

const NullDate Date = 0

func DateOf(t time.Time) Date {
	return Date(int32(t.Year())*10000 + int32(t.Month())*100 + int32(t.Day()))
}

func (d Date) Valid() bool { return d != NullDate }

func (d Date) Time() time.Time {
	if !d.Valid() {
		return time.Time{}
	}
	return time.Date(int(d/10000), time.Month(d/100%100), int(d%100), 0, 0, 0, 0, time.UTC)
}

// String renders the ISO form, or "" for NullDate.
func (d Date) String() string {
	if !d.Valid() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", int(d/10000), int(d/100%100), int(d%100))
}

// CaseTable is covid_clean in Struct-of-Arrays format.
// One row per (Country, Province, Date).
type CaseTable struct {
	// Data Columns (Flat Arrays)
	Dates     []Date
	Confirmed []int64
	Deaths    []int64
	Recovered []int64
	Active    []int64

	// Dictionary Encoded IDs (0..N)
	CountryIDs  []int32
	ProvinceIDs []int32

	// Dictionaries (ID -> String)
	CountryDict  []string
	ProvinceDict []string
}

func (t *CaseTable) Len() int { return len(t.Dates) }

// DailyTable is day_wise: already one row per date.
type DailyTable struct {
	Dates        []Date
	Confirmed    []int64
	Deaths       []int64
	Recovered    []int64
	Active       []int64
	NewCases     []int64
	NewDeaths    []int64
	NewRecovered []int64
}

func (t *DailyTable) Len() int { return len(t.Dates) }

// CountryTable is country_wise_latest: one row per country.
type CountryTable struct {
	Countries []string
	Confirmed []int64
	Deaths    []int64
	Recovered []int64
	Active    []int64
	NewCases  []int64
	NewDeaths []int64

	WHORegionIDs  []int32
	WHORegionDict []string
}

func (t *CountryTable) Len() int { return len(t.Countries) }

// CountyTable is usa_county_wise: one row per (State, County, Date).
type CountyTable struct {
	Dates     []Date
	Confirmed []int64
	Deaths    []int64

	StateIDs  []int32
	CountyIDs []int32

	StateDict  []string
	CountyDict []string
}

func (t *CountyTable) Len() int { return len(t.Dates) }

// Dataset bundles the four base tables. Built once by Load and read-only afterwards.
type Dataset struct {
	Cases     *CaseTable
	Daily     *DailyTable
	Countries *CountryTable
	Counties  *CountyTable
}

// dict assigns dense IDs to strings in first-seen order.
type dict struct {
	ids  map[string]int32
	list []string
}

func newDict() *dict {
	return &dict{ids: make(map[string]int32)}
}

func (d *dict) id(s string) int32 {
	if id, ok := d.ids[s]; ok {
		return id
	}
	id := int32(len(d.list))
	d.list = append(d.list, s)
	d.ids[s] = id
	return id
}
