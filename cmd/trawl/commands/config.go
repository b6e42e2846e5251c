package commands

import (
	"database/sql"

	"github.com/teranos/trawl/am"
	"github.com/teranos/trawl/blackboard"
	"github.com/teranos/trawl/db"
	"github.com/teranos/trawl/errors"
	"github.com/teranos/trawl/ingest"
	"github.com/teranos/trawl/ingest/localfs"
	"github.com/teranos/trawl/logger"
)

// ConfigPath is set by the root --config flag. Empty means the normal
// config cascade.
var ConfigPath string

func loadConfig() (*am.Config, error) {
	if ConfigPath != "" {
		return am.LoadFromFile(ConfigPath)
	}
	return am.Load()
}

// openDatabase opens and migrates the findings store at the configured path.
func openDatabase(cfg *am.Config) (*sql.DB, error) {
	dbPath := cfg.GetDatabasePath()
	database, err := db.OpenWithMigrations(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", dbPath)
	}
	return database, nil
}

// openDataSource opens a directory data source, loading the known-file
// hash set when one is configured.
func openDataSource(root, name string, cfg *am.Config) (*localfs.DataSource, error) {
	opts := localfs.Options{Name: name, Logger: logger.ComponentLogger("datasource")}
	if cfg.Known.HashSet != "" {
		known, err := localfs.LoadKnownSet(cfg.Known.HashSet)
		if err != nil {
			return nil, err
		}
		logger.Logger.Infow("Known file hash set loaded",
			logger.FieldPath, cfg.Known.HashSet,
			logger.FieldCount, known.Len(),
		)
		opts.Known = known
	}
	return localfs.Open(root, opts)
}

// newServices wires the host services of one CLI invocation. Messages go
// to the log and to messages for the final report.
func newServices(cfg *am.Config, database *sql.DB, messages *ingest.MessageLog) *ingest.Services {
	bus := blackboard.NewEventBus()
	eventLog := logger.ComponentLogger("events")
	bus.Subscribe(func(e blackboard.ModuleDataEvent) {
		eventLog.Debugw("Module data event",
			logger.FieldModule, e.Module,
			logger.FieldArtifactType, e.ArtifactType,
		)
	})

	return &ingest.Services{
		Blackboard: blackboard.NewSQLStore(database, logger.ComponentLogger("blackboard")),
		Events:     bus,
		Inbox:      ingest.MultiInbox{messages, ingest.LogInbox{Logger: logger.ComponentLogger("inbox")}},
		MessageIDs: &ingest.MessageIDs{},
		Case:       ingest.CaseFromConfig(cfg),
		Logger:     logger.Logger,
	}
}
