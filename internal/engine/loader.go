package engine

import (
	"bufio"
	"bytes"
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/csv"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Files maps the four logical datasets to file names inside the data directory.
type Files struct {
	CovidClean    string `mapstructure:"covid_clean" yaml:"covid_clean"`
	DayWise       string `mapstructure:"day_wise" yaml:"day_wise"`
	CountryLatest string `mapstructure:"country_latest" yaml:"country_latest"`
	USACounty     string `mapstructure:"usa_county" yaml:"usa_county"`
}

// DefaultFiles returns the file names shipped with the dataset.
func DefaultFiles() Files {
	return Files{
		CovidClean:    "covid_19_clean_complete.csv",
		DayWise:       "day_wise.csv",
		CountryLatest: "country_wise_latest.csv",
		USACounty:     "usa_county_wise.csv",
	}
}

// Source column names.
const (
	colProvince     = "Province/State"
	colCountry      = "Country/Region"
	colDate         = "Date"
	colConfirmed    = "Confirmed"
	colDeaths       = "Deaths"
	colRecovered    = "Recovered"
	colActive       = "Active"
	colNewCases     = "New cases"
	colNewDeaths    = "New deaths"
	colNewRecovered = "New recovered"
	colWHORegion    = "WHO Region"
	colState        = "Province_State"
	colCounty       = "Admin2"
)

// chunkRows is the number of CSV rows per arrow record batch.
const chunkRows = 8192

// dateLayouts are tried in order. covid_clean and day_wise use ISO dates,
// usa_county_wise uses M/D/YY.
var dateLayouts = []string{
	"2006-01-02",
	"1/2/06",
	"1/2/2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// parseDate never fails: unparseable input becomes NullDate.
func parseDate(s string) Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return NullDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t)
		}
	}
	return NullDate
}

// --- MAIN LOADER ---

// Load reads the four tables from dir. Files are read concurrently; any
// failure aborts the whole load with ErrDataUnavailable.
func Load(dir string, files Files, logger *zap.Logger) (*Dataset, error) {
	start := time.Now()
	logger.Info("loading dataset", zap.String("dir", dir))

	ds := &Dataset{}
	var g errgroup.Group

	g.Go(func() (err error) {
		ds.Cases, err = loadCases(filepath.Join(dir, files.CovidClean))
		return err
	})
	g.Go(func() (err error) {
		ds.Daily, err = loadDaily(filepath.Join(dir, files.DayWise))
		return err
	})
	g.Go(func() (err error) {
		ds.Countries, err = loadCountries(filepath.Join(dir, files.CountryLatest))
		return err
	})
	g.Go(func() (err error) {
		ds.Counties, err = loadCounties(filepath.Join(dir, files.USACounty))
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("dataset loaded",
		zap.Int("cases_rows", ds.Cases.Len()),
		zap.Int("daily_rows", ds.Daily.Len()),
		zap.Int("country_rows", ds.Countries.Len()),
		zap.Int("county_rows", ds.Counties.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ds, nil
}

func loadCases(path string) (*CaseTable, error) {
	fr, err := readFrame(path, []column{
		{colProvince, arrow.BinaryTypes.String},
		{colCountry, arrow.BinaryTypes.String},
		{colDate, arrow.BinaryTypes.String},
		{colConfirmed, arrow.PrimitiveTypes.Int64},
		{colDeaths, arrow.PrimitiveTypes.Int64},
		{colRecovered, arrow.PrimitiveTypes.Int64},
		{colActive, arrow.PrimitiveTypes.Int64},
	})
	if err != nil {
		return nil, err
	}

	countries, provinces := newDict(), newDict()
	t := &CaseTable{
		Dates:       make([]Date, fr.rows),
		Confirmed:   fr.ints[colConfirmed],
		Deaths:      fr.ints[colDeaths],
		Recovered:   fr.ints[colRecovered],
		Active:      fr.ints[colActive],
		CountryIDs:  make([]int32, fr.rows),
		ProvinceIDs: make([]int32, fr.rows),
	}
	for i := 0; i < fr.rows; i++ {
		t.Dates[i] = parseDate(fr.strs[colDate][i])
		t.CountryIDs[i] = countries.id(fr.strs[colCountry][i])
		t.ProvinceIDs[i] = provinces.id(fr.strs[colProvince][i])
	}
	t.CountryDict = countries.list
	t.ProvinceDict = provinces.list
	return t, nil
}

func loadDaily(path string) (*DailyTable, error) {
	fr, err := readFrame(path, []column{
		{colDate, arrow.BinaryTypes.String},
		{colConfirmed, arrow.PrimitiveTypes.Int64},
		{colDeaths, arrow.PrimitiveTypes.Int64},
		{colRecovered, arrow.PrimitiveTypes.Int64},
		{colActive, arrow.PrimitiveTypes.Int64},
		{colNewCases, arrow.PrimitiveTypes.Int64},
		{colNewDeaths, arrow.PrimitiveTypes.Int64},
		{colNewRecovered, arrow.PrimitiveTypes.Int64},
	})
	if err != nil {
		return nil, err
	}

	t := &DailyTable{
		Dates:        make([]Date, fr.rows),
		Confirmed:    fr.ints[colConfirmed],
		Deaths:       fr.ints[colDeaths],
		Recovered:    fr.ints[colRecovered],
		Active:       fr.ints[colActive],
		NewCases:     fr.ints[colNewCases],
		NewDeaths:    fr.ints[colNewDeaths],
		NewRecovered: fr.ints[colNewRecovered],
	}
	for i, s := range fr.strs[colDate] {
		t.Dates[i] = parseDate(s)
	}
	return t, nil
}

func loadCountries(path string) (*CountryTable, error) {
	fr, err := readFrame(path, []column{
		{colCountry, arrow.BinaryTypes.String},
		{colConfirmed, arrow.PrimitiveTypes.Int64},
		{colDeaths, arrow.PrimitiveTypes.Int64},
		{colRecovered, arrow.PrimitiveTypes.Int64},
		{colActive, arrow.PrimitiveTypes.Int64},
		{colNewCases, arrow.PrimitiveTypes.Int64},
		{colNewDeaths, arrow.PrimitiveTypes.Int64},
		{colWHORegion, arrow.BinaryTypes.String},
	})
	if err != nil {
		return nil, err
	}

	regions := newDict()
	t := &CountryTable{
		Countries:    fr.strs[colCountry],
		Confirmed:    fr.ints[colConfirmed],
		Deaths:       fr.ints[colDeaths],
		Recovered:    fr.ints[colRecovered],
		Active:       fr.ints[colActive],
		NewCases:     fr.ints[colNewCases],
		NewDeaths:    fr.ints[colNewDeaths],
		WHORegionIDs: make([]int32, fr.rows),
	}
	for i, s := range fr.strs[colWHORegion] {
		t.WHORegionIDs[i] = regions.id(s)
	}
	t.WHORegionDict = regions.list
	return t, nil
}

func loadCounties(path string) (*CountyTable, error) {
	fr, err := readFrame(path, []column{
		{colCounty, arrow.BinaryTypes.String},
		{colState, arrow.BinaryTypes.String},
		{colDate, arrow.BinaryTypes.String},
		{colConfirmed, arrow.PrimitiveTypes.Int64},
		{colDeaths, arrow.PrimitiveTypes.Int64},
	})
	if err != nil {
		return nil, err
	}

	states, counties := newDict(), newDict()
	t := &CountyTable{
		Dates:     make([]Date, fr.rows),
		Confirmed: fr.ints[colConfirmed],
		Deaths:    fr.ints[colDeaths],
		StateIDs:  make([]int32, fr.rows),
		CountyIDs: make([]int32, fr.rows),
	}
	for i := 0; i < fr.rows; i++ {
		t.Dates[i] = parseDate(fr.strs[colDate][i])
		t.StateIDs[i] = states.id(fr.strs[colState][i])
		t.CountyIDs[i] = counties.id(fr.strs[colCounty][i])
	}
	t.StateDict = states.list
	t.CountyDict = counties.list
	return t, nil
}

// --- ARROW CSV READER ---

type column struct {
	name string
	typ  arrow.DataType
}

// frame holds the requested columns of one CSV file, flattened out of the
// arrow record batches. Null cells read as "" or 0.
type frame struct {
	rows int
	strs map[string][]string
	ints map[string][]int64
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readFrame(path string, cols []column) (*frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}
	defer f.Close()

	types := make(map[string]arrow.DataType, len(cols))
	names := make([]string, len(cols))
	fr := &frame{
		strs: make(map[string][]string),
		ints: make(map[string][]int64),
	}
	for i, c := range cols {
		types[c.name] = c.typ
		names[i] = c.name
		if c.typ.ID() == arrow.INT64 {
			fr.ints[c.name] = []int64{}
		} else {
			fr.strs[c.name] = []string{}
		}
	}

	br := bufio.NewReader(f)
	if bom, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(bom, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	header, err := readHeader(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDataUnavailable, filepath.Base(path), err)
	}
	if err := checkColumns(header, names); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDataUnavailable, filepath.Base(path), err)
	}
	// The inferring reader needs at least one row to build its schema.
	if !hasRows(br) {
		return fr, nil
	}

	r := csv.NewInferringReader(io.MultiReader(strings.NewReader(header), br),
		csv.WithAllocator(memory.NewGoAllocator()),
		csv.WithHeader(true),
		csv.WithChunk(chunkRows),
		csv.WithNullReader(true, ""),
		csv.WithColumnTypes(types),
		csv.WithIncludeColumns(names),
	)
	defer r.Release()

	for r.Next() {
		rec := r.Record()
		for i := 0; i < int(rec.NumCols()); i++ {
			name := rec.ColumnName(i)
			switch col := rec.Column(i).(type) {
			case *array.String:
				out := fr.strs[name]
				for j := 0; j < col.Len(); j++ {
					if col.IsNull(j) {
						out = append(out, "")
						continue
					}
					out = append(out, col.Value(j))
				}
				fr.strs[name] = out
			case *array.Int64:
				out := fr.ints[name]
				for j := 0; j < col.Len(); j++ {
					if col.IsNull(j) {
						out = append(out, 0)
						continue
					}
					out = append(out, col.Value(j))
				}
				fr.ints[name] = out
			}
		}
		fr.rows += int(rec.NumRows())
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDataUnavailable, filepath.Base(path), err)
	}

	for _, c := range cols {
		n := len(fr.strs[c.name])
		if c.typ.ID() == arrow.INT64 {
			n = len(fr.ints[c.name])
		}
		if n != fr.rows {
			return nil, fmt.Errorf("%w: %s: missing column %q", ErrDataUnavailable, filepath.Base(path), c.name)
		}
	}
	return fr, nil
}

// readHeader returns the first line of the file, line terminator included.
func readHeader(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if strings.TrimSpace(line) == "" {
		return "", errors.New("empty file")
	}
	return line, nil
}

func checkColumns(header string, names []string) error {
	fields, err := stdcsv.NewReader(strings.NewReader(header)).Read()
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}
	for _, name := range names {
		if !slices.Contains(fields, name) {
			return fmt.Errorf("missing column %q", name)
		}
	}
	return nil
}

// hasRows skips blank lines after the header and reports whether any data
// follows.
func hasRows(br *bufio.Reader) bool {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return false
		}
		if b != '\r' && b != '\n' {
			_ = br.UnreadByte()
			return true
		}
	}
}
