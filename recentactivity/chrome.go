package recentactivity

import (
	"context"
	"encoding/json"
	"os"
	"strconv"

	"github.com/teranos/trawl/blackboard"
	"github.com/teranos/trawl/db"
	"github.com/teranos/trawl/ingest"
	"github.com/teranos/trawl/logger"
)

// webkitEpochOffset is the number of seconds between 1601-01-01 and the
// Unix epoch. Chrome stores times as microseconds since 1601.
const webkitEpochOffset = 11644473600

const chromeHistoryQuery = `
	SELECT url, title, last_visit_time
	FROM urls
	WHERE hidden = 0
	ORDER BY id`

// webkitToUnix converts WebKit microseconds to Unix seconds.
func webkitToUnix(us int64) int64 {
	return us/1000000 - webkitEpochOffset
}

// Chrome extracts Google Chrome history and bookmarks.
type Chrome struct {
	extractorBase
}

// NewChrome creates the Chrome extractor.
func NewChrome(services *ingest.Services) *Chrome {
	return &Chrome{extractorBase: newExtractorBase("Chrome", services)}
}

func (c *Chrome) Process(ctx context.Context, ds ingest.DataSource, status ingest.StatusHelper) ingest.Result {
	defer c.fireProduced()

	tempDir, err := TempPath(c.services.Case, c.name)
	if err != nil {
		return ingest.Failed(ingest.KindUnitFatal, err, "failed to create temp directory")
	}

	history, err := ds.FindFiles(ctx, "History", "Chrome")
	if err != nil {
		c.errorf("Error when trying to get Chrome history files.")
		c.log.Warnw("Failed to find history files", logger.FieldError, err)
	}
	for _, f := range history {
		if status.IsCancelled() {
			break
		}
		if f.Size() == 0 {
			continue
		}
		c.processHistory(ctx, f, tempDir)
	}

	bookmarks, err := ds.FindFiles(ctx, "Bookmarks", "Chrome")
	if err != nil {
		c.errorf("Error when trying to get Chrome bookmark files.")
		c.log.Warnw("Failed to find bookmark files", logger.FieldError, err)
	}
	for _, f := range bookmarks {
		if status.IsCancelled() {
			break
		}
		if f.Size() == 0 {
			continue
		}
		c.processBookmarks(ctx, f)
	}

	return ingest.Success()
}

func (c *Chrome) processHistory(ctx context.Context, f ingest.File, tempDir string) {
	path, err := copyToTemp(f, tempDir)
	if err != nil {
		c.log.Warnw("Failed to copy history file", logger.FieldFile, filePath(f), logger.FieldError, err)
		c.errorf("Error while trying to read into a sqlite db: %s", filePath(f))
		return
	}
	defer os.Remove(path)

	evidence, err := db.OpenEvidence(path)
	if err != nil {
		c.errorf("Error while trying to read into a sqlite db: %s", filePath(f))
		return
	}
	defer evidence.Close()

	rows, err := evidence.QueryContext(ctx, chromeHistoryQuery)
	if err != nil {
		c.log.Warnw("Failed to query history", logger.FieldFile, filePath(f), logger.FieldError, err)
		c.errorf("Error while trying to analyze file: %s", filePath(f))
		return
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var (
			url       string
			title     *string
			lastVisit int64
		)
		if err := rows.Scan(&url, &title, &lastVisit); err != nil {
			c.errorf("Error while trying to analyze file: %s", filePath(f))
			return
		}

		attrs := []blackboard.Attribute{c.str(blackboard.AttrURL, url)}
		// Typed but never visited URLs carry 0
		if lastVisit > 0 {
			attrs = append(attrs, c.secs(blackboard.AttrDateTimeAccessed, webkitToUnix(lastVisit)))
		}
		if title != nil && *title != "" {
			attrs = append(attrs, c.str(blackboard.AttrTitle, *title))
		}
		attrs = append(attrs, c.str(blackboard.AttrProgName, c.name))
		if domain := domainOf(url); domain != "" {
			attrs = append(attrs, c.str(blackboard.AttrDomain, domain))
		}

		if c.addArtifact(ctx, f.ID(), blackboard.ArtifactWebHistory, attrs) {
			count++
		}
	}
	if err := rows.Err(); err != nil {
		c.errorf("Error while trying to analyze file: %s", filePath(f))
	}

	c.log.Infow("Chrome history parsed", logger.FieldFile, filePath(f), logger.FieldCount, count)
}

type chromeBookmarkNode struct {
	Type      string               `json:"type"`
	Name      string               `json:"name"`
	URL       string               `json:"url"`
	DateAdded string               `json:"date_added"`
	Children  []chromeBookmarkNode `json:"children"`
}

type chromeBookmarks struct {
	Roots map[string]chromeBookmarkNode `json:"roots"`
}

func (c *Chrome) processBookmarks(ctx context.Context, f ingest.File) {
	in, err := f.Open()
	if err != nil {
		c.errorf("Error while trying to read bookmark file: %s", filePath(f))
		return
	}
	defer in.Close()

	var doc chromeBookmarks
	if err := json.NewDecoder(in).Decode(&doc); err != nil {
		c.log.Warnw("Failed to parse bookmarks", logger.FieldFile, filePath(f), logger.FieldError, err)
		c.errorf("Error parsing bookmark file: %s", filePath(f))
		return
	}

	// Root iteration order does not matter; artifacts carry no order
	for _, root := range doc.Roots {
		c.walkBookmarks(ctx, f, root)
	}
}

func (c *Chrome) walkBookmarks(ctx context.Context, f ingest.File, node chromeBookmarkNode) {
	if node.Type == "url" && node.URL != "" {
		attrs := []blackboard.Attribute{c.str(blackboard.AttrURL, node.URL)}
		if node.Name != "" {
			attrs = append(attrs, c.str(blackboard.AttrTitle, node.Name))
		}
		if added, err := strconv.ParseInt(node.DateAdded, 10, 64); err == nil && added > 0 {
			attrs = append(attrs, c.secs(blackboard.AttrDateTimeCreated, webkitToUnix(added)))
		}
		attrs = append(attrs, c.str(blackboard.AttrProgName, c.name))
		if domain := domainOf(node.URL); domain != "" {
			attrs = append(attrs, c.str(blackboard.AttrDomain, domain))
		}
		c.addArtifact(ctx, f.ID(), blackboard.ArtifactWebBookmark, attrs)
	}
	for _, child := range node.Children {
		c.walkBookmarks(ctx, f, child)
	}
}
