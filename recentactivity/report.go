package recentactivity

import (
	"fmt"
	"strings"

	"github.com/teranos/trawl/ingest"
)

// RenderSummary renders the error digest posted at the end of a run.
func RenderSummary(outcome *RunOutcome) (subject, body string) {
	var errs ErrorLog
	if outcome != nil {
		errs = outcome.Errors
	}

	switch len(errs) {
	case 0:
		return "No errors reported", "No errors encountered."
	case 1:
		subject = "1 error found"
	default:
		subject = fmt.Sprintf("%d errors found", len(errs))
	}

	var sb strings.Builder
	sb.WriteString("Errors encountered during analysis:\n")
	for _, e := range errs {
		sb.WriteString("- ")
		sb.WriteString(e.Message)
		sb.WriteString("\n")
	}
	return subject, sb.String()
}

// SummaryLevel is ERROR when the run recorded any error.
func SummaryLevel(outcome *RunOutcome) ingest.MessageType {
	if outcome != nil && len(outcome.Errors) > 0 {
		return ingest.MessageError
	}
	return ingest.MessageInfo
}

// RenderDataPresence renders the browser data digest.
func RenderDataPresence(outcome *RunOutcome) string {
	var sb strings.Builder
	name := ""
	var presence []Presence
	if outcome != nil {
		name = outcome.DataSource
		presence = outcome.Presence
	}

	fmt.Fprintf(&sb, "Browser Data on %s:\n", name)
	for _, p := range presence {
		status := "Not Found."
		if p.Found {
			status = "Found."
		}
		fmt.Fprintf(&sb, "- %s: %s\n", p.Unit, status)
	}
	return sb.String()
}
