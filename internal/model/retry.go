package model

import "time"

// RetryConfig defines retry behavior for provider fetches
type RetryConfig struct {
	MaxRetries      int           `json:"max_retries" mapstructure:"max_retries" yaml:"max_retries"`
	InitialDelay    time.Duration `json:"initial_delay" mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay        time.Duration `json:"max_delay" mapstructure:"max_delay" yaml:"max_delay"`
	BackoffFactor   float64       `json:"backoff_factor" mapstructure:"backoff_factor" yaml:"backoff_factor"`
	RetryableErrors []string      `json:"retryable_errors" mapstructure:"retryable_errors" yaml:"retryable_errors"`
}

// DefaultRetryConfig returns the retry policy used when none is configured
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    2,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		RetryableErrors: []string{
			"timeout",
			"connection refused",
			"connection reset",
			"temporarily unavailable",
			"503",
			"429",
		},
	}
}
