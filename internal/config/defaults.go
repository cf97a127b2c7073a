package config

import (
	"os"
	"time"

	"go-funnel-metrics/internal/model"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Report: ReportConfig{
			WindowDays:         30,
			BranchTimeout:      10 * time.Second,
			CacheTTL:           5 * time.Minute,
			AggregationWorkers: 4,
		},
		Thresholds: model.DefaultThresholds(),
		Retry:      model.DefaultRetryConfig(),
		Store: StoreConfig{
			Driver: "sqlite3",
			DSN:    "./funnel.db",
			Cache:  "memory",
		},
		Sources: SourcesConfig{
			Mongo: MongoConfig{
				Database:          "marketplace",
				RecordCollections: []string{"jobs", "service_requests"},
				Tickets:           "support_tickets",
				Feedback:          "feedback",
				Professionals:     "professionals",
			},
			Analytics: AnalyticsConfig{
				BaseURL: "https://analyticsdata.googleapis.com/v1beta",
			},
		},
		Archive: ArchiveConfig{
			Prefix: "funnel-reports",
		},
		Export: ExportConfig{
			OutputDir: "./exports",
			Targets:   []string{"database"},
		},
	}
}

const defaultHeader = `# Funnel metrics configuration
#
# Every key can be overridden from the environment with the FUNNEL_ prefix,
# nested keys joined by underscores, e.g. FUNNEL_REPORT_WINDOW_DAYS=7 or
# FUNNEL_SOURCES_MONGO_URI=mongodb://localhost:27017.
#
# Sources left empty are reported as unavailable (source_not_configured).

`

// WriteDefault writes the default configuration as commented YAML
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return eris.Wrap(err, "config: encode defaults")
	}
	content := append([]byte(defaultHeader), data...)
	return eris.Wrapf(os.WriteFile(path, content, 0644), "config: write %s", path)
}
