package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/trawl/blackboard"
	"github.com/teranos/trawl/display"
	"github.com/teranos/trawl/errors"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the case database",
	Long: `db - Manage the case database

Examples:
  trawl db stats                  # Artifact counts per type`,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show artifact counts per type",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbStatsCmd)
}

type dbStats struct {
	Path   string         `json:"path"`
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	store := blackboard.NewSQLStore(database, nil)
	stats := dbStats{Path: cfg.GetDatabasePath(), Counts: make(map[string]int)}
	data := pterm.TableData{{"Artifact Type", "Count"}}
	for _, t := range blackboard.ArtifactTypes() {
		n, err := store.CountArtifacts(cmd.Context(), t)
		if err != nil {
			return err
		}
		stats.Counts[string(t)] = n
		stats.Total += n
		data = append(data, []string{t.DisplayName(), pterm.Sprint(n)})
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(stats)
	}

	pterm.DefaultSection.Println("Database Statistics")
	pterm.Printfln("Database Path: %s", stats.Path)
	pterm.Printfln("Artifacts:     %d", stats.Total)
	pterm.Println()
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
