package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/trawl/display"
	"github.com/teranos/trawl/errors"
	"github.com/teranos/trawl/ingest"
	"github.com/teranos/trawl/recentactivity"
)

// RunCmd runs the recent activity pipeline over a data source
var RunCmd = &cobra.Command{
	Use:   "run <data-source-dir>",
	Short: "Extract recent user activity from a data source",
	Long: `Run the Recent Activity pipeline over a directory data source.

Extractors run in order: Chrome, Firefox, Internet Explorer, Recent
Documents, Search Engine Query Analyzer, Registry. Findings are stored
in the case database; a summary of errors and browser data presence is
printed at the end.

Press Ctrl+C to cancel; the running extractor finishes its current
step and the rest are skipped.

Examples:
  trawl run /mnt/image1                  # Analyze a mounted image
  trawl run ./export --name laptop-01    # Override the data source name
  trawl run /mnt/image1 --json           # Machine-readable outcome`,
	Args: cobra.ExactArgs(1),
	RunE: runRecentActivity,
}

var runNameFlag string

func init() {
	RunCmd.Flags().StringVar(&runNameFlag, "name", "", "Data source name (default: directory name)")
}

// runReport is the JSON rendering of a run outcome.
type runReport struct {
	RunID      string            `json:"run_id"`
	DataSource string            `json:"data_source"`
	Subject    string            `json:"subject"`
	Cancelled  bool              `json:"cancelled"`
	Attempted  []string          `json:"attempted"`
	Skipped    []string          `json:"skipped,omitempty"`
	Errors     []string          `json:"errors"`
	Presence   map[string]bool   `json:"browser_data"`
	Messages   []messageReport   `json:"messages"`
	Teardown   []string          `json:"teardown_errors,omitempty"`
	Results    map[string]string `json:"results"`
}

type messageReport struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Subject string `json:"subject"`
	Details string `json:"details,omitempty"`
}

func newRunReport(outcome *recentactivity.RunOutcome, messages []ingest.Message) runReport {
	subject, _ := recentactivity.RenderSummary(outcome)
	report := runReport{
		RunID:      outcome.RunID,
		DataSource: outcome.DataSource,
		Subject:    subject,
		Cancelled:  outcome.Cancelled,
		Attempted:  outcome.Attempted,
		Skipped:    outcome.Skipped,
		Errors:     outcome.Errors.Messages(),
		Presence:   make(map[string]bool, len(outcome.Presence)),
		Results:    make(map[string]string, len(outcome.Results)),
	}
	for _, p := range outcome.Presence {
		report.Presence[p.Unit] = p.Found
	}
	for _, r := range outcome.Results {
		report.Results[r.Unit] = r.Result.String()
	}
	for _, e := range outcome.Teardown {
		report.Teardown = append(report.Teardown, e.Error())
	}
	for _, m := range messages {
		report.Messages = append(report.Messages, messageReport{
			ID:      m.ID,
			Type:    m.Type.String(),
			Subject: m.Subject,
			Details: m.Details,
		})
	}
	return report
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runRecentActivity(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	ds, err := openDataSource(args[0], runNameFlag, cfg)
	if err != nil {
		return err
	}

	messages := &ingest.MessageLog{}
	services := newServices(cfg, database, messages)

	registry, err := recentactivity.DefaultRegistry(services, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to build extractor registry")
	}
	module := recentactivity.NewModule(services, registry)

	jsonOutput := display.ShouldOutputJSON(cmd)
	var status ingest.StatusHelper = ingest.ContextStatus{Ctx: ctx}
	if !jsonOutput {
		pterm.DefaultHeader.WithFullWidth().Printf("%s - %s", recentactivity.ModuleName, ds.Name())
		progress := display.NewProgress(ctx, recentactivity.ModuleName)
		defer progress.Stop()
		status = progress
	}

	outcome, err := module.Run(ctx, ds, status)
	if err != nil {
		return err
	}

	if jsonOutput {
		return display.OutputJSON(newRunReport(outcome, messages.Messages()))
	}
	printRunOutcome(outcome)
	return nil
}

func printRunOutcome(outcome *recentactivity.RunOutcome) {
	subject, body := recentactivity.RenderSummary(outcome)

	pterm.Println()
	switch {
	case outcome.Cancelled:
		pterm.Warning.Printfln("Cancelled after %d extractors - %s", len(outcome.Attempted), subject)
	case len(outcome.Errors) > 0:
		pterm.Warning.Println(subject)
	default:
		pterm.Success.Println(subject)
	}

	if len(outcome.Errors) > 0 {
		pterm.Println(body)
	}

	data := pterm.TableData{{"Browser", "Data"}}
	for _, p := range outcome.Presence {
		found := "Not found"
		if p.Found {
			found = "Found"
		}
		data = append(data, []string{p.Unit, found})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()

	for _, e := range outcome.Teardown {
		pterm.Error.Println(e.Error())
	}
	pterm.Info.Printfln("Run %s", outcome.RunID)
}
