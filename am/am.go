// Package am loads trawl configuration ("I am") from TOML files and the
// environment.
package am

// Config represents the trawl configuration
type Config struct {
	Database       DatabaseConfig       `mapstructure:"database" toml:"database" json:"database" yaml:"database"`
	Case           CaseConfig           `mapstructure:"case" toml:"case" json:"case" yaml:"case"`
	Exif           ExifConfig           `mapstructure:"exif" toml:"exif" json:"exif" yaml:"exif"`
	RecentActivity RecentActivityConfig `mapstructure:"recent_activity" toml:"recent_activity" json:"recent_activity" yaml:"recent_activity"`
	Known          KnownConfig          `mapstructure:"known" toml:"known" json:"known" yaml:"known"`
	Log            LogConfig            `mapstructure:"log" toml:"log" json:"log" yaml:"log"`
}

// DatabaseConfig configures the SQLite findings store
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path" json:"path" yaml:"path"`
}

// CaseConfig locates the per-case scratch and report directories.
// Units get <dir>/<pipeline>/<unit>/ below these roots.
type CaseConfig struct {
	Name      string `mapstructure:"name" toml:"name" json:"name" yaml:"name"`
	TempDir   string `mapstructure:"temp_dir" toml:"temp_dir" json:"temp_dir" yaml:"temp_dir"`
	OutputDir string `mapstructure:"output_dir" toml:"output_dir" json:"output_dir" yaml:"output_dir"`
}

// ExifConfig configures the EXIF metadata file unit
type ExifConfig struct {
	NotifyBatchSize int `mapstructure:"notify_batch_size" toml:"notify_batch_size" json:"notify_batch_size" yaml:"notify_batch_size"` // files between data events (default: 1000)
}

// RecentActivityConfig configures the recent activity pipeline units
type RecentActivityConfig struct {
	Registry    RegistryConfig    `mapstructure:"registry" toml:"registry" json:"registry" yaml:"registry"`
	SearchQuery SearchQueryConfig `mapstructure:"search_query" toml:"search_query" json:"search_query" yaml:"search_query"`
}

// RegistryConfig configures the external hive report tool.
// RipperCommand is a shell-quoted command line; {hive} and {profile}
// are substituted per hive. Empty means the tool is not installed.
type RegistryConfig struct {
	RipperCommand string `mapstructure:"ripper_command" toml:"ripper_command" json:"ripper_command" yaml:"ripper_command"`
}

// SearchQueryConfig configures the search engine query analyzer
type SearchQueryConfig struct {
	MappingsFile string `mapstructure:"mappings_file" toml:"mappings_file" json:"mappings_file" yaml:"mappings_file"` // empty = built-in engine list
}

// KnownConfig points at a known-file hash set (one MD5 per line)
type KnownConfig struct {
	HashSet string `mapstructure:"hash_set" toml:"hash_set" json:"hash_set" yaml:"hash_set"`
}

// LogConfig configures log output
type LogConfig struct {
	JSON bool `mapstructure:"json" toml:"json" json:"json" yaml:"json"`
}

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// DefaultNotifyBatchSize is the number of files between EXIF data events.
const DefaultNotifyBatchSize = 1000
