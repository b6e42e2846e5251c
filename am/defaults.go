package am

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "trawl.db")

	v.SetDefault("case.name", "default")
	v.SetDefault("case.temp_dir", ".trawl/temp")
	v.SetDefault("case.output_dir", ".trawl/output")

	v.SetDefault("exif.notify_batch_size", DefaultNotifyBatchSize)

	// Hive reports need an external tool; none by default
	v.SetDefault("recent_activity.registry.ripper_command", "")
	v.SetDefault("recent_activity.search_query.mappings_file", "")

	v.SetDefault("known.hash_set", "")

	v.SetDefault("log.json", false)
}

// BindEnvVars binds the settings most often overridden per invocation
func BindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("database.path", "TRAWL_DATABASE_PATH")
	_ = v.BindEnv("case.temp_dir", "TRAWL_CASE_TEMP_DIR")
	_ = v.BindEnv("case.output_dir", "TRAWL_CASE_OUTPUT_DIR")
	_ = v.BindEnv("recent_activity.registry.ripper_command", "TRAWL_RIPPER_COMMAND")
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "trawl.db"
	}
	return c.Database.Path
}

// GetNotifyBatchSize returns the EXIF notification batch size (default: 1000)
func (c *Config) GetNotifyBatchSize() int {
	if c.Exif.NotifyBatchSize <= 0 {
		return DefaultNotifyBatchSize
	}
	return c.Exif.NotifyBatchSize
}
