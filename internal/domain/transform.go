package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
)

// DateLayout is the wire format of run dates ("2024-01-01").
const DateLayout = "2006-01-02"

// rawRunRequest is the JSON shape published to the source topic.
type rawRunRequest struct {
	ID   string `json:"id"`
	Date string `json:"date"`
}

// ParseRunRequest decodes a run request from a source message. A missing ID
// is replaced by a fresh ULID; a missing date falls back to the day of the
// message timestamp.
func ParseRunRequest(raw RawEvent) (RunRequest, error) {
	var rec rawRunRequest
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return RunRequest{}, fmt.Errorf("parse run request: %w", err)
	}

	var date time.Time
	switch s := strings.TrimSpace(rec.Date); {
	case s != "":
		d, err := ParseDate(s)
		if err != nil {
			return RunRequest{}, fmt.Errorf("parse run request: %w", err)
		}
		date = d
	case !raw.Timestamp.IsZero():
		date = truncateDay(raw.Timestamp)
	default:
		return RunRequest{}, errors.New("parse run request: date is required")
	}

	id := strings.TrimSpace(rec.ID)
	if id == "" {
		id = NewRunID()
	}
	return RunRequest{ID: id, Date: date}, nil
}

// ParseDate parses a "YYYY-MM-DD" date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

// NewRunID returns a lexically sortable run identifier.
func NewRunID() string {
	return ulid.MustNew(ulid.Timestamp(clock.Now()), ulid.DefaultEntropy()).String()
}

// SerializeRunResult marshals a run result into an output event keyed by run ID.
func SerializeRunResult(result RunResult) (OutputEvent, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize run result: %w", err)
	}
	return OutputEvent{
		Key:   []byte(result.RunID),
		Value: data,
		Headers: map[string]string{
			"run_date":     result.Date.Format(DateLayout),
			"processed_at": result.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
