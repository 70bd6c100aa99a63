package config

// LoggingConfig configures logging. The logging package reads the same
// section of the file it is given; category filtering lives there.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	Format     string          `yaml:"format"`     // json, text
	DebugMode  bool            `yaml:"debug_mode"` // Master toggle - false = no category log files
	Categories map[string]bool `yaml:"categories"` // Per-category toggles
}
