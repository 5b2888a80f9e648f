package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/kiseki"
)

// FromEnv builds an exporter from environment variables, loading a .env file
// first if one is present. KISEKI_EXPORTER selects the backend: splunk,
// elasticsearch, otlp, datadog, loki, prometheus, cloudwatch, file or
// console (the default). A comma-separated list produces a Multi fan-out.
// Missing required backend parameters are construction errors.
func FromEnv(logger *slog.Logger) (kiseki.Exporter, error) {
	_ = godotenv.Load()
	logger = orDefault(logger)

	names := strings.Split(envStr("KISEKI_EXPORTER", "console"), ",")
	exporters := make([]kiseki.Exporter, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		exp, err := fromName(name, logger)
		if err != nil {
			return nil, err
		}
		exporters = append(exporters, exp)
	}

	if len(exporters) == 0 {
		return nil, fmt.Errorf("exporter: KISEKI_EXPORTER selects no exporter")
	}
	if len(exporters) == 1 {
		return exporters[0], nil
	}
	return NewMulti(exporters...), nil
}

func fromName(name string, logger *slog.Logger) (kiseki.Exporter, error) {
	batchSize := envInt("KISEKI_BATCH_SIZE", 0)
	flushInterval := envDuration("KISEKI_FLUSH_INTERVAL", 0)

	switch name {
	case "splunk":
		return NewSplunkHEC(SplunkHECConfig{
			URL:           envStr("KISEKI_SPLUNK_URL", ""),
			Token:         envStr("KISEKI_SPLUNK_TOKEN", ""),
			Index:         envStr("KISEKI_SPLUNK_INDEX", ""),
			SourceType:    envStr("KISEKI_SPLUNK_SOURCETYPE", ""),
			BatchSize:     batchSize,
			FlushInterval: flushInterval,
			Logger:        logger,
		})
	case "elasticsearch":
		var hosts []string
		if v := envStr("KISEKI_ELASTICSEARCH_HOSTS", ""); v != "" {
			for _, h := range strings.Split(v, ",") {
				if h = strings.TrimSpace(h); h != "" {
					hosts = append(hosts, h)
				}
			}
		}
		return NewElasticsearch(ElasticsearchConfig{
			Hosts:         hosts,
			Index:         envStr("KISEKI_ELASTICSEARCH_INDEX", ""),
			APIKey:        envStr("KISEKI_ELASTICSEARCH_API_KEY", ""),
			Username:      envStr("KISEKI_ELASTICSEARCH_USERNAME", ""),
			Password:      envStr("KISEKI_ELASTICSEARCH_PASSWORD", ""),
			BatchSize:     batchSize,
			FlushInterval: flushInterval,
			Logger:        logger,
		}), nil
	case "otlp":
		return NewOTLP(OTLPConfig{
			Endpoint:      envStr("KISEKI_OTLP_ENDPOINT", ""),
			Headers:       envHeaders("KISEKI_OTLP_HEADERS"),
			ServiceName:   envStr("KISEKI_SERVICE_NAME", ""),
			BatchSize:     batchSize,
			FlushInterval: flushInterval,
			Logger:        logger,
		}), nil
	case "datadog":
		return NewDatadog(DatadogConfig{
			APIKey:        envStr("KISEKI_DATADOG_API_KEY", ""),
			Site:          envStr("KISEKI_DATADOG_SITE", ""),
			ServiceName:   envStr("KISEKI_SERVICE_NAME", ""),
			BatchSize:     batchSize,
			FlushInterval: flushInterval,
			Logger:        logger,
		})
	case "loki":
		return NewLoki(LokiConfig{
			URL:           envStr("KISEKI_LOKI_URL", ""),
			TenantID:      envStr("KISEKI_LOKI_TENANT_ID", ""),
			BatchSize:     batchSize,
			FlushInterval: flushInterval,
			Logger:        logger,
		}), nil
	case "prometheus":
		return NewPrometheus(PrometheusConfig{
			PushgatewayURL: envStr("KISEKI_PUSHGATEWAY_URL", ""),
			JobName:        envStr("KISEKI_PROMETHEUS_JOB", ""),
			MaxSeries:      envInt("KISEKI_PROMETHEUS_MAX_SERIES", 0),
			Logger:         logger,
		})
	case "cloudwatch":
		return NewCloudWatch(CloudWatchConfig{
			LogGroup:      envStr("KISEKI_CLOUDWATCH_LOG_GROUP", ""),
			Region:        envStr("KISEKI_AWS_REGION", ""),
			BatchSize:     batchSize,
			FlushInterval: flushInterval,
			Logger:        logger,
		})
	case "file":
		return NewFile(FileConfig{
			Path:   envStr("KISEKI_FILE_PATH", ""),
			Logger: logger,
		}), nil
	case "console":
		return NewConsole(ConsoleConfig{
			Colored: envBool("KISEKI_CONSOLE_COLORED", true),
			Verbose: envBool("KISEKI_CONSOLE_VERBOSE", false),
		}), nil
	default:
		return nil, fmt.Errorf("exporter: unknown exporter %q in KISEKI_EXPORTER", name)
	}
}

// envHeaders parses "Key=Value,Key2=Value2" into a header map.
func envHeaders(key string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	headers := map[string]string{}
	for _, pair := range strings.Split(v, ",") {
		k, val, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		headers[strings.TrimSpace(k)] = strings.TrimSpace(val)
	}
	return headers
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
