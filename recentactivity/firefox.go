package recentactivity

import (
	"context"
	"database/sql"
	"os"

	"github.com/teranos/trawl/blackboard"
	"github.com/teranos/trawl/db"
	"github.com/teranos/trawl/ingest"
	"github.com/teranos/trawl/logger"
)

// Firefox stores PRTime: microseconds since the Unix epoch.
const (
	firefoxHistoryQuery = `
		SELECT moz_places.url, moz_places.title, moz_historyvisits.visit_date
		FROM moz_places, moz_historyvisits
		WHERE moz_places.id = moz_historyvisits.place_id AND hidden = 0
		ORDER BY moz_historyvisits.id`

	firefoxBookmarkQuery = `
		SELECT moz_places.url, moz_bookmarks.title, moz_bookmarks.dateAdded
		FROM moz_bookmarks
		INNER JOIN moz_places ON moz_bookmarks.fk = moz_places.id
		ORDER BY moz_bookmarks.id`
)

// Firefox extracts Mozilla Firefox history and bookmarks from
// places.sqlite.
type Firefox struct {
	extractorBase
}

// NewFirefox creates the Firefox extractor.
func NewFirefox(services *ingest.Services) *Firefox {
	return &Firefox{extractorBase: newExtractorBase("Firefox", services)}
}

func (x *Firefox) Process(ctx context.Context, ds ingest.DataSource, status ingest.StatusHelper) ingest.Result {
	defer x.fireProduced()

	tempDir, err := TempPath(x.services.Case, x.name)
	if err != nil {
		return ingest.Failed(ingest.KindUnitFatal, err, "failed to create temp directory")
	}

	files, err := ds.FindFiles(ctx, "places.sqlite", "Firefox")
	if err != nil {
		x.errorf("Error fetching internet history files for Firefox.")
		x.log.Warnw("Failed to find places.sqlite", logger.FieldError, err)
		return ingest.Success()
	}

	for _, f := range files {
		if status.IsCancelled() {
			break
		}
		if f.Size() == 0 {
			continue
		}
		x.processPlaces(ctx, f, tempDir)
	}
	return ingest.Success()
}

func (x *Firefox) processPlaces(ctx context.Context, f ingest.File, tempDir string) {
	path, err := copyToTemp(f, tempDir)
	if err != nil {
		x.log.Warnw("Failed to copy places.sqlite", logger.FieldFile, filePath(f), logger.FieldError, err)
		x.errorf("Error writing the sqlite db file %s to disk.", filePath(f))
		return
	}
	defer os.Remove(path)

	evidence, err := db.OpenEvidence(path)
	if err != nil {
		x.errorf("Error while trying to read into a sqlite db: %s", filePath(f))
		return
	}
	defer evidence.Close()

	history := x.query(ctx, evidence, f, firefoxHistoryQuery, blackboard.ArtifactWebHistory, blackboard.AttrDateTimeAccessed)
	bookmarks := x.query(ctx, evidence, f, firefoxBookmarkQuery, blackboard.ArtifactWebBookmark, blackboard.AttrDateTimeCreated)

	x.log.Infow("Firefox places parsed",
		logger.FieldFile, filePath(f),
		"history", history,
		"bookmarks", bookmarks,
	)
}

// query turns (url, title, PRTime) rows into artifacts of one type.
func (x *Firefox) query(ctx context.Context, evidence *sql.DB, f ingest.File, query string, artifactType blackboard.ArtifactType, timeAttr blackboard.AttributeType) int {
	rows, err := evidence.QueryContext(ctx, query)
	if err != nil {
		x.log.Warnw("Failed to query places.sqlite", logger.FieldFile, filePath(f), logger.FieldError, err)
		x.errorf("Error while trying to analyze file: %s", filePath(f))
		return 0
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var (
			url    string
			title  sql.NullString
			prtime sql.NullInt64
		)
		if err := rows.Scan(&url, &title, &prtime); err != nil {
			x.errorf("Error while trying to analyze file: %s", filePath(f))
			return count
		}

		attrs := []blackboard.Attribute{x.str(blackboard.AttrURL, url)}
		if prtime.Valid && prtime.Int64 > 0 {
			attrs = append(attrs, x.secs(timeAttr, prtime.Int64/1000000))
		}
		if title.Valid && title.String != "" {
			attrs = append(attrs, x.str(blackboard.AttrTitle, title.String))
		}
		attrs = append(attrs, x.str(blackboard.AttrProgName, x.name))
		if domain := domainOf(url); domain != "" {
			attrs = append(attrs, x.str(blackboard.AttrDomain, domain))
		}

		if x.addArtifact(ctx, f.ID(), artifactType, attrs) {
			count++
		}
	}
	if err := rows.Err(); err != nil {
		x.errorf("Error while trying to analyze file: %s", filePath(f))
	}
	return count
}
