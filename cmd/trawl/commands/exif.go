package commands

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/trawl/display"
	"github.com/teranos/trawl/errors"
	"github.com/teranos/trawl/exifparser"
	"github.com/teranos/trawl/ingest"
	"github.com/teranos/trawl/logger"
)

// ExifCmd runs the EXIF metadata unit over every file of a data source
var ExifCmd = &cobra.Command{
	Use:   "exif <data-source-dir>",
	Short: "Extract EXIF metadata from JPEG files",
	Long: `Run the Exif Parser over every file of a directory data source.

Unallocated and known files are skipped. JPEG files with a date taken,
GPS position or camera make/model get one EXIF metadata artifact.

Examples:
  trawl exif /mnt/image1
  trawl exif /mnt/image1 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runExif,
}

var exifNameFlag string

func init() {
	ExifCmd.Flags().StringVar(&exifNameFlag, "name", "", "Data source name (default: directory name)")
}

type exifReport struct {
	DataSource       string  `json:"data_source"`
	Files            int     `json:"files"`
	FilesProcessed   int     `json:"files_processed"`
	ArtifactsCreated int     `json:"artifacts_created"`
	Failures         int     `json:"failures"`
	Cancelled        bool    `json:"cancelled"`
	DurationSeconds  float64 `json:"duration_seconds"`
}

// processAllFiles drives a file-scoped unit over files in order. A panic
// while processing one file fails that file only.
func processAllFiles(ctx context.Context, module *exifparser.FileModule, files []ingest.File, status ingest.StatusHelper) (failures int, cancelled bool) {
	log := logger.LoggerFromContext(ctx, logger.ComponentLogger("exif"))

	status.SwitchToDeterminate(len(files))
	for i, f := range files {
		if status.IsCancelled() {
			cancelled = true
			break
		}
		if res := processFile(ctx, module, f); !res.IsOK() {
			failures++
			log.Warnw("File not processed",
				logger.FieldFile, f.ParentPath()+f.Name(),
				logger.FieldError, res.String(),
			)
		}
		status.Progress(i + 1)
	}
	module.ShutDown(cancelled)
	return failures, cancelled
}

func processFile(ctx context.Context, module *exifparser.FileModule, f ingest.File) (res ingest.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = ingest.Failed(ingest.KindUnitFatal, errors.FromPanic(r), "panic while processing file")
		}
	}()
	return module.Process(ctx, f)
}

// processDataSource lists ds and runs the started module over its files.
// The module is shut down on every path, as stopped when listing fails.
func processDataSource(ctx context.Context, module *exifparser.FileModule, ds ingest.DataSource, status ingest.StatusHelper) (files, failures int, cancelled bool, err error) {
	list, err := ds.Files(ctx)
	if err != nil {
		module.ShutDown(true)
		return 0, 0, false, errors.Wrapf(err, "failed to list files of %s", ds.Name())
	}
	failures, cancelled = processAllFiles(ctx, module, list, status)
	return len(list), failures, cancelled, nil
}

func runExif(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	ctx, stop := signalContext(cmd)
	defer stop()
	ctx = logger.WithRunID(ctx, ingest.NewRunID())

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	ds, err := openDataSource(args[0], exifNameFlag, cfg)
	if err != nil {
		return err
	}

	services := newServices(cfg, database, &ingest.MessageLog{})
	module := exifparser.NewFileModule(services, exifparser.Options{
		NotifyBatchSize: cfg.GetNotifyBatchSize(),
	})
	if err := module.StartUp(ctx); err != nil {
		return errors.Wrap(err, "exif parser failed to start")
	}

	jsonOutput := display.ShouldOutputJSON(cmd)
	var status ingest.StatusHelper = ingest.ContextStatus{Ctx: ctx}
	if !jsonOutput {
		progress := display.NewProgress(ctx, exifparser.ModuleName)
		defer progress.Stop()
		status = progress
	}

	start := time.Now()
	files, failures, cancelled, err := processDataSource(ctx, module, ds, status)
	if err != nil {
		return err
	}

	report := exifReport{
		DataSource:       ds.Name(),
		Files:            files,
		FilesProcessed:   module.FilesProcessed(),
		ArtifactsCreated: module.ArtifactsCreated(),
		Failures:         failures,
		Cancelled:        cancelled,
		DurationSeconds:  time.Since(start).Seconds(),
	}
	if jsonOutput {
		return display.OutputJSON(report)
	}

	pterm.Println()
	if cancelled {
		pterm.Warning.Println("EXIF extraction cancelled")
	} else {
		pterm.Success.Println("EXIF extraction completed")
	}
	pterm.Printfln("  Files examined:    %d", report.FilesProcessed)
	pterm.Printfln("  Artifacts created: %d", report.ArtifactsCreated)
	pterm.Printfln("  Failed files:      %d", report.Failures)
	pterm.Printfln("  Processing time:   %s", time.Since(start).Round(time.Millisecond))
	return nil
}
