package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "malaria_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the prediction pipeline.
type Metrics struct {
	MessagesConsumed prometheus.Counter
	MessagesProduced prometheus.Counter
	TransformErrors  prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Run metrics.
	RunsCompleted    prometheus.Counter
	RunErrors        *prometheus.CounterVec // labels: kind={parse,batch_fetch,feature_schema,alignment,canceled,predict,archive}
	RunDuration      prometheus.Histogram
	RunLocations     prometheus.Histogram
	PredictionsTotal prometheus.Counter

	// Climate fetch metrics.
	ClimateRequests    *prometheus.CounterVec // labels: outcome={success,http_status,network,malformed,canceled}
	ClimateCache       *prometheus.CounterVec // labels: result={hit,miss}
	ClimateAPIDuration prometheus.Histogram
	ClimateInFlight    prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total run requests read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total run results written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Total run requests that failed to produce a result.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of run requests per batch extracted from Kafka.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		RunsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Prediction runs that produced a result.",
		}),
		RunErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_errors_total",
			Help:      "Prediction runs that failed, by error kind.",
		}, []string{"kind"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of one prediction run, fetch included.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		RunLocations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_locations",
			Help:      "Distinct centroids fetched per run.",
			Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000, 2500},
		}),
		PredictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Ward predictions produced.",
		}),
		ClimateRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "climate_requests_total",
			Help:      "NASA POWER requests by outcome.",
		}, []string{"outcome"}),
		ClimateCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "climate_cache_total",
			Help:      "Climate cache lookups by result.",
		}, []string{"result"}),
		ClimateAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "climate_api_duration_seconds",
			Help:      "NASA POWER request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ClimateInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "climate_requests_in_flight",
			Help:      "NASA POWER requests currently in flight.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.RunsCompleted,
		m.RunErrors,
		m.RunDuration,
		m.RunLocations,
		m.PredictionsTotal,
		m.ClimateRequests,
		m.ClimateCache,
		m.ClimateAPIDuration,
		m.ClimateInFlight,
	}
}
