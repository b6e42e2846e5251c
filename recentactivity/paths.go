package recentactivity

import "github.com/teranos/trawl/ingest"

const (
	// ModuleName is the module name used in inbox messages and events.
	ModuleName = "Recent Activity"
	// PipelineName is the directory below the case temp and output roots.
	PipelineName = "RecentActivity"
)

// TempPath returns <case temp>/RecentActivity/<unit>, creating it if absent.
func TempPath(c ingest.Case, unit string) (string, error) {
	return ingest.ModuleDir(c.TempDir, PipelineName, unit)
}

// OutputPath returns <case output>/RecentActivity/<unit>, creating it if absent.
func OutputPath(c ingest.Case, unit string) (string, error) {
	return ingest.ModuleDir(c.OutputDir, PipelineName, unit)
}
