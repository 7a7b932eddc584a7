package config

import "fenixrpa/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	Format     string          `yaml:"format"`     // json, console
	File       string          `yaml:"file"`       // optional extra sink
	Categories map[string]bool `yaml:"categories"` // Per-category toggles
}

// Options converts the section into logging.Options.
func (c LoggingConfig) Options(verbose bool) logging.Options {
	return logging.Options{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		Categories: c.Categories,
		Verbose:    verbose,
	}
}
