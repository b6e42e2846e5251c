package recentactivity

import "github.com/teranos/trawl/ingest"

// ErrorEntry is one error recorded during a run.
type ErrorEntry struct {
	Unit    string
	Message string
}

// ErrorLog holds errors in the order they were recorded. Entries are
// never deduplicated.
type ErrorLog []ErrorEntry

// Messages returns the entry messages in order.
func (l ErrorLog) Messages() []string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Message
	}
	return msgs
}

// Presence records whether a browser extractor found data.
type Presence struct {
	Unit  string
	Found bool
}

// UnitError is a failure of one extractor's lifecycle call.
type UnitError struct {
	Unit  string
	Phase string
	Err   error
}

func (e UnitError) Error() string {
	return e.Unit + " " + e.Phase + ": " + e.Err.Error()
}

// UnitResult is the result of one extractor's Process call.
type UnitResult struct {
	Unit   string
	Result ingest.Result
}

// RunOutcome is the aggregated result of one pipeline run.
type RunOutcome struct {
	RunID      string
	DataSource string

	// Attempted lists extractors whose Process was invoked, in order.
	Attempted []string
	// Skipped lists extractors excluded by a failed Init.
	Skipped []string
	Errors  ErrorLog
	// Presence covers the browser extractors, in registry order.
	Presence []Presence
	// Cancelled is set when the run stopped before the last extractor.
	Cancelled bool
	Results   []UnitResult
	Teardown  []UnitError
}
