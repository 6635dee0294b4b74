package power

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/malaria-risk-etl/internal/domain"
)

// headerSentinel terminates the metadata block of a POWER CSV response.
const headerSentinel = "-END HEADER-"

// fillValue is POWER's marker for a missing measurement.
const fillValue = -999.0

var errNoSentinel = errors.New("response carries no " + headerSentinel + " line")

// ParseDailyCSV parses a POWER daily CSV response and returns the record for
// date at lat/lon. Parameter columns absent from the header are listed in
// the record's Absent field; fill values become NaN.
func ParseDailyCSV(body []byte, lat, lon float64, date time.Time) (domain.ClimateRecord, error) {
	data, err := stripHeader(body)
	if err != nil {
		return domain.ClimateRecord{}, err
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return domain.ClimateRecord{}, fmt.Errorf("read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToUpper(strings.TrimSpace(h))] = i
	}

	row, err := selectRow(r, index, date)
	if err != nil {
		return domain.ClimateRecord{}, err
	}

	rec := domain.ClimateRecord{Lat: lat, Lon: lon, Date: date}
	targets := map[string]*float64{
		domain.ParamTemperature:      &rec.Temperature,
		domain.ParamRelativeHumidity: &rec.RelativeHumidity,
		domain.ParamPrecipitation:    &rec.Precipitation,
	}
	for _, param := range []string{domain.ParamTemperature, domain.ParamRelativeHumidity, domain.ParamPrecipitation} {
		dst := targets[param]
		i, ok := index[param]
		if !ok || i >= len(row) {
			*dst = math.NaN()
			rec.Absent = append(rec.Absent, param)
			continue
		}
		v, err := parseValue(row[i])
		if err != nil {
			return domain.ClimateRecord{}, fmt.Errorf("parse %s: %w", param, err)
		}
		*dst = v
	}
	slices.Sort(rec.Absent)
	return rec, nil
}

// stripHeader returns the bytes following the sentinel line.
func stripHeader(body []byte) ([]byte, error) {
	i := bytes.Index(body, []byte(headerSentinel))
	if i < 0 {
		return nil, errNoSentinel
	}
	rest := body[i:]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 {
		return nil, nil
	}
	return rest[nl+1:], nil
}

// selectRow returns the data row for date. Without date columns the first
// data row is used.
func selectRow(r *csv.Reader, index map[string]int, date time.Time) ([]string, error) {
	matcher := rowMatcher(index, date)
	var first []string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		if matcher == nil {
			return row, nil
		}
		if first == nil {
			first = row
		}
		ok, err := matcher(row)
		if err != nil {
			return nil, err
		}
		if ok {
			return row, nil
		}
	}
	if first == nil {
		return nil, errors.New("response carries no data rows")
	}
	return nil, fmt.Errorf("response carries no row for %s", date.Format(domain.DateLayout))
}

func rowMatcher(index map[string]int, date time.Time) func([]string) (bool, error) {
	yi, hasYear := index["YEAR"]
	if !hasYear {
		return nil
	}
	if mi, ok := index["MO"]; ok {
		di, ok := index["DY"]
		if !ok {
			return nil
		}
		return func(row []string) (bool, error) {
			return matchFields(row, []int{yi, mi, di}, []int{date.Year(), int(date.Month()), date.Day()})
		}
	}
	if doy, ok := index["DOY"]; ok {
		return func(row []string) (bool, error) {
			return matchFields(row, []int{yi, doy}, []int{date.Year(), date.YearDay()})
		}
	}
	return nil
}

func matchFields(row []string, cols, want []int) (bool, error) {
	for i, c := range cols {
		if c >= len(row) {
			return false, errors.New("short data row")
		}
		n, err := strconv.Atoi(strings.TrimSpace(row[c]))
		if err != nil {
			return false, fmt.Errorf("parse date field %q: %w", row[c], err)
		}
		if n != want[i] {
			return false, nil
		}
	}
	return true, nil
}

func parseValue(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if v == fillValue || math.IsNaN(v) {
		return math.NaN(), nil
	}
	return v, nil
}
