package config

import (
	"time"

	"go-funnel-metrics/internal/model"
)

// Config is the full application configuration
type Config struct {
	Server     ServerConfig          `mapstructure:"server" yaml:"server"`
	Log        LogConfig             `mapstructure:"log" yaml:"log"`
	Report     ReportConfig          `mapstructure:"report" yaml:"report"`
	Thresholds model.ThresholdConfig `mapstructure:"thresholds" yaml:"thresholds"`
	Retry      model.RetryConfig     `mapstructure:"retry" yaml:"retry"`
	Store      StoreConfig           `mapstructure:"store" yaml:"store"`
	Sources    SourcesConfig         `mapstructure:"sources" yaml:"sources"`
	Archive    ArchiveConfig         `mapstructure:"archive" yaml:"archive"`
	Export     ExportConfig          `mapstructure:"export" yaml:"export"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // json or console
}

// ReportConfig holds the orchestrator defaults
type ReportConfig struct {
	WindowDays          int           `mapstructure:"window_days" yaml:"window_days"`
	BranchTimeout       time.Duration `mapstructure:"branch_timeout" yaml:"branch_timeout"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	AggregationWorkers  int           `mapstructure:"aggregation_workers" yaml:"aggregation_workers"`
	MaxParallelBranches int           `mapstructure:"max_parallel_branches" yaml:"max_parallel_branches"`
	Strict              bool          `mapstructure:"strict" yaml:"strict"`
}

// StoreConfig selects the run-history database and cache backend
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // sqlite3 or pgx
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
	Cache  string `mapstructure:"cache" yaml:"cache"` // memory, sql or none
}

// SourcesConfig configures the data providers
type SourcesConfig struct {
	Mongo     MongoConfig     `mapstructure:"mongo" yaml:"mongo"`
	Payments  PaymentsConfig  `mapstructure:"payments" yaml:"payments"`
	Analytics AnalyticsConfig `mapstructure:"analytics" yaml:"analytics"`
	Files     FilesConfig     `mapstructure:"files" yaml:"files"`
}

// MongoConfig points at the marketplace document store
type MongoConfig struct {
	URI               string   `mapstructure:"uri" yaml:"uri"`
	Database          string   `mapstructure:"database" yaml:"database"`
	RecordCollections []string `mapstructure:"record_collections" yaml:"record_collections"`
	Tickets           string   `mapstructure:"tickets" yaml:"tickets"`
	Feedback          string   `mapstructure:"feedback" yaml:"feedback"`
	Professionals     string   `mapstructure:"professionals" yaml:"professionals"`
}

// PaymentsConfig points at the payment processor API
type PaymentsConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
}

// AnalyticsConfig points at the web-analytics reporting API
type AnalyticsConfig struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	PropertyID string `mapstructure:"property_id" yaml:"property_id"`
	Token      string `mapstructure:"token" yaml:"token"`
}

// FilesConfig points at offline snapshots; a set path overrides the
// network provider for that source.
type FilesConfig struct {
	Records  string `mapstructure:"records" yaml:"records"`
	Tickets  string `mapstructure:"tickets" yaml:"tickets"`
	Payments string `mapstructure:"payments" yaml:"payments"`
	Feedback string `mapstructure:"feedback" yaml:"feedback"`
	Profiles string `mapstructure:"profiles" yaml:"profiles"`
}

// ArchiveConfig configures the S3 report archive; empty bucket disables it
type ArchiveConfig struct {
	Bucket       string `mapstructure:"bucket" yaml:"bucket"`
	Prefix       string `mapstructure:"prefix" yaml:"prefix"`
	Region       string `mapstructure:"region" yaml:"region"`
	Endpoint     string `mapstructure:"endpoint" yaml:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style" yaml:"use_path_style"`
}

// ExportConfig lists where finished reports are written
type ExportConfig struct {
	OutputDir string   `mapstructure:"output_dir" yaml:"output_dir"`
	Targets   []string `mapstructure:"targets" yaml:"targets"` // json, csv, database, s3
}
