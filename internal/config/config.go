package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/malaria-risk-etl/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Ward geometry.
	WardsPath         string
	WardIDField       string
	SimplifyTolerance float64

	// NASA POWER climate API.
	PowerBaseURL        string
	PowerCommunity      string
	PowerRequestTimeout time.Duration
	PowerBatchTimeout   time.Duration
	FetchWorkers        int
	ClimateCacheSize    int

	// Pretrained artifacts and how missing climate values are filled before prediction.
	ScalerPath string
	ModelPath  string
	GapFill    domain.GapFillPolicy

	// DatabaseURL enables the prediction archive when set.
	DatabaseURL string
}

// DefaultFetchWorkers is the fetch pool size used when FETCH_WORKERS is unset.
func DefaultFetchWorkers() int {
	return 4 * runtime.NumCPU()
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	requestTimeout, err := parsePositiveDuration("POWER_REQUEST_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	batchTimeout, err := parsePositiveDuration("POWER_BATCH_TIMEOUT", "2m")
	if err != nil {
		return nil, err
	}

	workers, err := parseInt("FETCH_WORKERS", DefaultFetchWorkers(), 1)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("CLIMATE_CACHE_SIZE", 5000, 0)
	if err != nil {
		return nil, err
	}

	tolerance, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("SIMPLIFY_TOLERANCE", "0.001"), 64)
	if err != nil || tolerance < 0 {
		return nil, errors.New("invalid SIMPLIFY_TOLERANCE")
	}

	gapFill, err := domain.ParseGapFillPolicy(sharedcfg.EnvOrDefault("GAP_FILL_POLICY", string(domain.GapFillZero)))
	if err != nil {
		return nil, fmt.Errorf("invalid GAP_FILL_POLICY: %w", err)
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "prediction-run-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "malaria-risk-predictions"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "malaria-risk-etl"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		WardsPath:         sharedcfg.EnvOrDefault("WARDS_PATH", "data/wards.geojson"),
		WardIDField:       sharedcfg.EnvOrDefault("WARD_ID_FIELD", "ward_code"),
		SimplifyTolerance: tolerance,

		PowerBaseURL:        sharedcfg.EnvOrDefault("POWER_BASE_URL", "https://power.larc.nasa.gov/api/temporal/daily/point"),
		PowerCommunity:      sharedcfg.EnvOrDefault("POWER_COMMUNITY", "RE"),
		PowerRequestTimeout: requestTimeout,
		PowerBatchTimeout:   batchTimeout,
		FetchWorkers:        workers,
		ClimateCacheSize:    cacheSize,

		ScalerPath: sharedcfg.EnvOrDefault("SCALER_PATH", "models/scaler_rf.json"),
		ModelPath:  sharedcfg.EnvOrDefault("MODEL_PATH", "models/random_forest.json"),
		GapFill:    gapFill,

		DatabaseURL: os.Getenv("DATABASE_URL"),
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.PowerBatchTimeout < cfg.PowerRequestTimeout {
		return nil, errors.New("POWER_BATCH_TIMEOUT must not be shorter than POWER_REQUEST_TIMEOUT")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def, minValue int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minValue {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minValue)
	}
	return n, nil
}
