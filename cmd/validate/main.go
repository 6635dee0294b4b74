// Command validate checks the ward geometry and model artifacts a
// deployment will load, before the service is started with them. It
// verifies ward IDs and centroids, the scaler's feature list, the forest's
// input width, and that a sample prediction runs end to end.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -wards data/kano_wards.geojson \
//	  -scaler artifacts/scaler.json \
//	  -model artifacts/model.json
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/couchcryptid/malaria-risk-etl/internal/adapter/artifact"
	"github.com/couchcryptid/malaria-risk-etl/internal/domain"
	"github.com/couchcryptid/malaria-risk-etl/internal/geo"
	"github.com/couchcryptid/malaria-risk-etl/internal/pipeline"
)

type options struct {
	wardsPath string
	idField   string
	tolerance float64
	scaler    string
	model     string
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	var opts options
	flag.StringVar(&opts.wardsPath, "wards", "data/kano_wards.geojson", "ward boundary GeoJSON")
	flag.StringVar(&opts.idField, "id-field", "ward_code", "feature property holding the ward ID")
	flag.Float64Var(&opts.tolerance, "tolerance", 0.001, "Douglas-Peucker tolerance in degrees")
	flag.StringVar(&opts.scaler, "scaler", "artifacts/scaler.json", "fitted scaler artifact")
	flag.StringVar(&opts.model, "model", "artifacts/model.json", "fitted forest artifact")
	flag.Parse()

	os.Exit(run(os.Stdout, opts))
}

func run(w io.Writer, opts options) int {
	wards, err := geo.LoadWards(opts.wardsPath, opts.idField, opts.tolerance)
	if err != nil {
		fmt.Fprintf(w, "FATAL: load wards: %v\n", err)
		return 1
	}
	scaler, err := artifact.LoadScaler(opts.scaler)
	if err != nil {
		fmt.Fprintf(w, "FATAL: load scaler: %v\n", err)
		return 1
	}
	model, err := artifact.LoadForest(opts.model)
	if err != nil {
		fmt.Fprintf(w, "FATAL: load model: %v\n", err)
		return 1
	}

	names, _ := scaler.FeatureNames()
	phases := []*phase{
		validateWards(wards),
		validateFeatureList(names),
		validateModelShape(names, model),
		validateSamplePrediction(wards, scaler, model),
	}

	// ── Report results ──
	fmt.Fprintln(w)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Wards: %d, distinct centroids: %d, features: %v\n",
		len(wards), len(domain.DistinctLocations(wards)), names)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

func validateWards(wards []domain.Ward) *phase {
	p := &phase{name: "Ward geometry"}
	if len(wards) == 0 {
		p.errorf("no wards loaded")
	}
	seen := make(map[string]int, len(wards))
	for i, ward := range wards {
		if prev, dup := seen[ward.ID]; dup {
			p.errorf("ward %d: ID %q already used by ward %d", i, ward.ID, prev)
		}
		seen[ward.ID] = i
		if !validLatLon(ward.Lat, ward.Lon) {
			p.errorf("ward %s: centroid %.6f,%.6f is not a valid WGS-84 coordinate", ward.ID, ward.Lat, ward.Lon)
		}
	}
	return p
}

func validLatLon(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func validateFeatureList(names []string) *phase {
	p := &phase{name: "Scaler feature list"}
	if err := domain.ValidateExpectedColumns(names); err != nil {
		p.errorf("%v", err)
		return p
	}
	for _, name := range names {
		if !slices.Contains(domain.ClimateColumns, name) {
			p.errorf("feature %q is not produced by the climate merge and will always be 0", name)
		}
	}
	return p
}

func validateModelShape(names []string, model *artifact.RandomForest) *phase {
	p := &phase{name: "Model input width"}
	if model.NumFeatures() != len(names) {
		p.errorf("model expects %d features, scaler provides %d", model.NumFeatures(), len(names))
	}
	return p
}

func validateSamplePrediction(wards []domain.Ward, scaler domain.Scaler, model domain.Model) *phase {
	p := &phase{name: "Sample prediction"}
	if len(wards) == 0 {
		p.errorf("no ward to predict for")
		return p
	}
	predictor, err := pipeline.NewPredictor(pipeline.Artifacts{Scaler: scaler, Model: model})
	if err != nil {
		p.errorf("build predictor: %v", err)
		return p
	}
	row := domain.NewMergedFeatureRow(wards[0], domain.ClimateColumns, []float64{1, 27, 60})
	results, _, err := predictor.Predict([]domain.MergedFeatureRow{row})
	if err != nil {
		p.errorf("predict for %s: %v", wards[0].ID, err)
		return p
	}
	if len(results) != 1 {
		p.errorf("expected 1 prediction, got %d", len(results))
	}
	return p
}
