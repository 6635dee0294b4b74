package domain

import (
	"fmt"
	"strings"
)

// Reasons a single location fetch can fail.
const (
	ReasonHTTPStatus = "http_status"
	ReasonNetwork    = "network"
	ReasonMalformed  = "malformed"
	ReasonCanceled   = "canceled"
)

// LocationFetchError reports that climate data for one location could not
// be retrieved. It never aborts a batch.
type LocationFetchError struct {
	Lat    float64
	Lon    float64
	Reason string
	Err    error
}

func (e *LocationFetchError) Error() string {
	return fmt.Sprintf("fetch climate for %.6f,%.6f (%s): %v", e.Lat, e.Lon, e.Reason, e.Err)
}

func (e *LocationFetchError) Unwrap() error { return e.Err }

// BatchFetchError reports that no location in a batch returned usable data.
type BatchFetchError struct {
	Requested int
	Err       error
}

func (e *BatchFetchError) Error() string {
	msg := fmt.Sprintf("climate data retrieval failed for all %d locations; prediction cannot proceed", e.Requested)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BatchFetchError) Unwrap() error { return e.Err }

// FeatureSchemaError reports canonical climate columns absent from the
// merged rows, which means the upstream response shape changed.
type FeatureSchemaError struct {
	Missing []string
}

func (e *FeatureSchemaError) Error() string {
	return "merged climate data is missing required columns: " + strings.Join(e.Missing, ", ")
}

// AlignmentError reports that the scaler's expected feature list is
// unusable. The prediction path cannot run until the artifact is fixed.
type AlignmentError struct {
	Reason string
}

func (e *AlignmentError) Error() string {
	return "feature alignment: " + e.Reason
}
