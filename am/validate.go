package am

import (
	"github.com/kballard/go-shellquote"

	"github.com/teranos/trawl/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// 0 falls back to the default batch size; negative is a typo
	if c.Exif.NotifyBatchSize < 0 {
		return errors.Newf("exif.notify_batch_size must be >= 0, got %d", c.Exif.NotifyBatchSize)
	}

	if c.Case.TempDir == "" {
		return errors.New("case.temp_dir cannot be empty")
	}
	if c.Case.OutputDir == "" {
		return errors.New("case.output_dir cannot be empty")
	}

	if c.RecentActivity.Registry.RipperCommand != "" {
		words, err := shellquote.Split(c.RecentActivity.Registry.RipperCommand)
		if err != nil {
			return errors.WithHint(
				errors.Wrap(err, "recent_activity.registry.ripper_command is not a valid command line"),
				"quote paths containing spaces, e.g. \"'/opt/reg ripper/rip.pl' -r {hive} -f {profile}\"",
			)
		}
		if len(words) == 0 {
			return errors.New("recent_activity.registry.ripper_command has no executable")
		}
	}

	return nil
}
