package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/trawl/am"
	"github.com/teranos/trawl/cmd/trawl/commands"
	"github.com/teranos/trawl/errors"
	"github.com/teranos/trawl/logger"
)

var rootCmd = &cobra.Command{
	Use:   "trawl",
	Short: "trawl - Forensic recent activity and EXIF extraction",
	Long: `trawl - Forensic artifact extraction over directory data sources.

trawl runs extraction pipelines over a mounted or exported file
collection and stores typed findings in a case database.

Available commands:
  run       - Extract browser history, bookmarks, recent documents,
              search queries and OS information
  exif      - Extract EXIF metadata from JPEG files
  artifacts - List extracted artifacts
  db        - Case database statistics
  am        - Manage trawl configuration ("I am")

Examples:
  trawl run /mnt/image1            # Recent activity pipeline
  trawl exif /mnt/image1 -v        # EXIF metadata with progress logging
  trawl artifacts --type TSK_WEB_SEARCH_QUERY`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		// 'am show' output must stay parseable
		if cmd.Name() == "show" {
			return nil
		}
		// Errors surface again when the command loads its config
		if cfg, err := am.Load(); err == nil && cfg.Log.JSON {
			jsonOutput = true
		}
		if err := logger.Initialize(jsonOutput, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json", false, "Output results as JSON (logs as JSON on stderr)")
	rootCmd.PersistentFlags().StringVar(&commands.ConfigPath, "config", "", "Config file (default: am.toml cascade)")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.ExifCmd)
	rootCmd.AddCommand(commands.ArtifactsCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
