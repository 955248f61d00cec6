package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// PipelinePath is a single .hcl file or a directory of them.
	PipelinePath string

	// Once runs the pipeline immediately and exits (manual dispatch).
	// Otherwise the app stays up and fires on the pipeline's schedule.
	Once bool

	// HistoryPath locates the run-history database. Empty disables history.
	HistoryPath string

	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
