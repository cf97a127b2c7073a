package config

import (
	"bytes"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "FUNNEL"

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and FUNNEL_* environment variables, in that order.
func Load(path string) (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, eris.Wrapf(err, "config: %s", path)
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.MergeInConfig(); err != nil {
			return nil, eris.Wrapf(err, "config: read %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, eris.Wrap(err, "config: decode")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newViper returns a viper instance seeded with every default key, so
// environment overrides apply to keys that are absent from the file.
func newViper() (*viper.Viper, error) {
	defaults, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, eris.Wrap(err, "config: encode defaults")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, eris.Wrap(err, "config: seed defaults")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// Validate rejects configurations the application cannot start with
func (c *Config) Validate() error {
	if c.Report.WindowDays <= 0 {
		return eris.Errorf("config: report.window_days must be positive, got %d", c.Report.WindowDays)
	}
	if c.Report.BranchTimeout <= 0 {
		return eris.New("config: report.branch_timeout must be positive")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return eris.Wrap(err, "config: thresholds")
	}
	switch c.Store.Cache {
	case "memory", "sql", "none", "":
	default:
		return eris.Errorf("config: store.cache must be memory, sql or none, got %q", c.Store.Cache)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console", "":
	default:
		return eris.Errorf("config: log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// Redacted returns a copy with credentials masked, for display
func (c *Config) Redacted() *Config {
	out := *c
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	out.Sources.Payments.APIKey = mask(c.Sources.Payments.APIKey)
	out.Sources.Analytics.Token = mask(c.Sources.Analytics.Token)
	if c.Sources.Mongo.URI != "" && strings.Contains(c.Sources.Mongo.URI, "@") {
		out.Sources.Mongo.URI = mask(c.Sources.Mongo.URI)
	}
	if strings.Contains(c.Store.DSN, "password") || strings.Contains(c.Store.DSN, "@") {
		out.Store.DSN = mask(c.Store.DSN)
	}
	return &out
}
