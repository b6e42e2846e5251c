package recentactivity

import (
	"context"
	"io"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/teranos/trawl/blackboard"
	"github.com/teranos/trawl/ingest"
	"github.com/teranos/trawl/logger"
)

// InternetExplorer extracts Internet Explorer favorites (.url shortcut
// files below a Favorites directory).
type InternetExplorer struct {
	extractorBase
}

// NewInternetExplorer creates the Internet Explorer extractor.
func NewInternetExplorer(services *ingest.Services) *InternetExplorer {
	return &InternetExplorer{extractorBase: newExtractorBase("Internet Explorer", services)}
}

func (ie *InternetExplorer) Process(ctx context.Context, ds ingest.DataSource, status ingest.StatusHelper) ingest.Result {
	defer ie.fireProduced()

	files, err := ds.FindFiles(ctx, "*.url", "Favorites")
	if err != nil {
		ie.log.Warnw("Failed to find favorites", logger.FieldError, err)
		ie.errorf("Error getting Internet Explorer Bookmarks.")
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
		if ie.processFavorite(ctx, f) {
			count++
		}
	}

	ie.log.Infow("Internet Explorer favorites parsed", logger.FieldCount, count)
	return ingest.Success()
}

func (ie *InternetExplorer) processFavorite(ctx context.Context, f ingest.File) bool {
	url, err := readShortcutURL(f)
	if err != nil {
		ie.log.Warnw("Failed to read favorite", logger.FieldFile, filePath(f), logger.FieldError, err)
		ie.errorf("Error parsing IE bookmark file: %s", filePath(f))
		return false
	}
	if url == "" {
		return false
	}

	title := f.Name()
	if i := strings.LastIndex(title, "."); i > 0 {
		title = title[:i]
	}

	attrs := []blackboard.Attribute{
		ie.str(blackboard.AttrURL, url),
		ie.str(blackboard.AttrTitle, title),
	}
	if mod := f.ModTime(); !mod.IsZero() {
		attrs = append(attrs, blackboard.NewTimeAttribute(blackboard.AttrDateTimeCreated, ie.name, mod))
	}
	attrs = append(attrs, ie.str(blackboard.AttrProgName, ie.name))
	if domain := domainOf(url); domain != "" {
		attrs = append(attrs, ie.str(blackboard.AttrDomain, domain))
	}

	return ie.addArtifact(ctx, f.ID(), blackboard.ArtifactWebBookmark, attrs)
}

// readShortcutURL reads URL= from the [InternetShortcut] section.
func readShortcutURL(f ingest.File) (string, error) {
	in, err := f.Open()
	if err != nil {
		return "", err
	}
	defer in.Close()

	data, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{Insensitive: true, IgnoreInlineComment: true}, data)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(cfg.Section("internetshortcut").Key("url").String()), nil
}
