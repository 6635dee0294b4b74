// Package export renders prediction records as CSV, TSV, or JSON.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/couchcryptid/malaria-risk-etl/internal/domain"
)

// Format is an output encoding for prediction records.
type Format string

const (
	CSV  Format = "csv"
	TSV  Format = "tsv"
	JSON Format = "json"
)

// dateLayout is the ISO date used for run dates in every format.
const dateLayout = "2006-01-02"

var header = []string{
	"run_id", "date", "location_id", "lat", "lon", "predicted_cases",
	"rainfall", "lst", "relative_humidity", "processed_at",
}

// ParseFormat resolves a format name. An empty name means CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return CSV, nil
	case CSV, TSV, JSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want csv, tsv, or json)", s)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case TSV:
		return "text/tab-separated-values"
	case JSON:
		return "application/json"
	default:
		return "text/csv"
	}
}

// Extension returns the file extension for the format, without a dot.
func (f Format) Extension() string {
	return string(f)
}

// Write encodes records to w in the given format.
func Write(w io.Writer, f Format, records []domain.PredictionRecord) error {
	switch f {
	case CSV:
		return writeDelimited(w, ',', records)
	case TSV:
		return writeDelimited(w, '\t', records)
	case JSON:
		return writeJSON(w, records)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

func writeDelimited(w io.Writer, comma rune, records []domain.PredictionRecord) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.RunID,
			rec.RunDate.Format(dateLayout),
			rec.LocationID,
			formatFloat(rec.Lat),
			formatFloat(rec.Lon),
			strconv.Itoa(rec.PredictedCases),
			formatOptional(rec.Rainfall),
			formatOptional(rec.LST),
			formatOptional(rec.RelativeHumidity),
			rec.ProcessedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %s: %w", rec.LocationID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// jsonRecord is the records-oriented JSON shape with ISO dates.
type jsonRecord struct {
	RunID            string   `json:"run_id"`
	Date             string   `json:"date"`
	LocationID       string   `json:"location_id"`
	Lat              float64  `json:"lat"`
	Lon              float64  `json:"lon"`
	PredictedCases   int      `json:"predicted_cases"`
	Rainfall         *float64 `json:"rainfall"`
	LST              *float64 `json:"lst"`
	RelativeHumidity *float64 `json:"relative_humidity"`
	ProcessedAt      string   `json:"processed_at"`
}

func writeJSON(w io.Writer, records []domain.PredictionRecord) error {
	out := make([]jsonRecord, len(records))
	for i, rec := range records {
		out[i] = jsonRecord{
			RunID:            rec.RunID,
			Date:             rec.RunDate.Format(dateLayout),
			LocationID:       rec.LocationID,
			Lat:              rec.Lat,
			Lon:              rec.Lon,
			PredictedCases:   rec.PredictedCases,
			Rainfall:         rec.Rainfall,
			LST:              rec.LST,
			RelativeHumidity: rec.RelativeHumidity,
			ProcessedAt:      rec.ProcessedAt.UTC().Format(time.RFC3339),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
