package domain

import (
	"context"
	"time"
)

// NASA POWER parameter names.
const (
	ParamTemperature      = "T2M"
	ParamRelativeHumidity = "RH2M"
	ParamPrecipitation    = "PRECTOTCORR"
)

// Canonical feature column names the model was trained on.
const (
	ColumnRainfall         = "Rainfall"
	ColumnLST              = "LST"
	ColumnRelativeHumidity = "Relative_H"
)

// ClimateColumns lists the canonical climate columns in the order the
// original training data carried them.
var ClimateColumns = []string{ColumnRainfall, ColumnLST, ColumnRelativeHumidity}

// climateRenames maps POWER parameters to canonical column names.
var climateRenames = map[string]string{
	ParamPrecipitation:    ColumnRainfall,
	ParamTemperature:      ColumnLST,
	ParamRelativeHumidity: ColumnRelativeHumidity,
}

// CanonicalColumn returns the canonical column for a POWER parameter, or the
// parameter itself when no rename applies.
func CanonicalColumn(param string) string {
	if c, ok := climateRenames[param]; ok {
		return c
	}
	return param
}

// ClimateRecord holds one day of climate values for one location.
// NaN marks a value the API reported as missing.
type ClimateRecord struct {
	Lat              float64
	Lon              float64
	Date             time.Time
	Temperature      float64
	RelativeHumidity float64
	Precipitation    float64
	// Absent lists POWER parameters whose column was missing from the response.
	Absent []string
}

// Coord returns the record's join key.
func (r ClimateRecord) Coord() Coord {
	return Coord{Lat: r.Lat, Lon: r.Lon}
}

// Params returns the record's values keyed by POWER parameter name.
func (r ClimateRecord) Params() map[string]float64 {
	return map[string]float64{
		ParamTemperature:      r.Temperature,
		ParamRelativeHumidity: r.RelativeHumidity,
		ParamPrecipitation:    r.Precipitation,
	}
}

// ClimateSource fetches one day of climate data for one location.
// Implementations return a *LocationFetchError on failure.
type ClimateSource interface {
	FetchDaily(ctx context.Context, lat, lon float64, date time.Time) (ClimateRecord, error)
}
