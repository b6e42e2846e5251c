package recentactivity

import (
	"context"
	"io"

	"github.com/teranos/trawl/blackboard"
	"github.com/teranos/trawl/ingest"
	"github.com/teranos/trawl/logger"
)

// maxLinkSize bounds how much of a .lnk file is read.
const maxLinkSize = 1 << 20

// RecentDocuments extracts recently opened documents from the shell links
// Windows keeps in Recent directories.
type RecentDocuments struct {
	extractorBase
}

// NewRecentDocuments creates the recent documents extractor.
func NewRecentDocuments(services *ingest.Services) *RecentDocuments {
	return &RecentDocuments{extractorBase: newExtractorBase("Recent Documents", services)}
}

func (r *RecentDocuments) Process(ctx context.Context, ds ingest.DataSource, status ingest.StatusHelper) ingest.Result {
	defer r.fireProduced()

	files, err := ds.FindFiles(ctx, "*.lnk", "Recent")
	if err != nil {
		r.log.Warnw("Failed to find recent documents", logger.FieldError, err)
		r.errorf("Error getting lnk Files.")
		return ingest.Success()
	}

	count := 0
	for _, f := range files {
		if status.IsCancelled() {
			break
		}
		if f.Size() == 0 {
			continue
		}

		link, err := readShellLink(f)
		if err != nil {
			// Unparsable links are common in Recent; skip without an error entry
			r.log.Debugw("Skipping shell link", logger.FieldFile, filePath(f), logger.FieldError, err)
			continue
		}
		path := link.Path()
		if path == "" {
			continue
		}

		attrs := []blackboard.Attribute{r.str(blackboard.AttrPath, path)}
		if mod := f.ModTime(); !mod.IsZero() {
			attrs = append(attrs, blackboard.NewTimeAttribute(blackboard.AttrDateTime, r.name, mod))
		} else if !link.WriteTime.IsZero() {
			attrs = append(attrs, blackboard.NewTimeAttribute(blackboard.AttrDateTime, r.name, link.WriteTime))
		}

		if r.addArtifact(ctx, f.ID(), blackboard.ArtifactRecentObject, attrs) {
			count++
		}
	}

	r.log.Infow("Recent documents parsed", logger.FieldCount, count)
	return ingest.Success()
}

func readShellLink(f ingest.File) (*shellLink, error) {
	in, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer in.Close()

	data, err := io.ReadAll(io.LimitReader(in, maxLinkSize))
	if err != nil {
		return nil, err
	}
	return parseShellLink(data)
}
