// Package recentactivity runs the recent activity extractors (browser
// history, recent documents, search queries, registry) over one data
// source, in a fixed order, and reports what they found.
package recentactivity

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/trawl/am"
	"github.com/teranos/trawl/blackboard"
	"github.com/teranos/trawl/errors"
	"github.com/teranos/trawl/ingest"
	"github.com/teranos/trawl/logger"
)

// Extractor is one analyzer of the pipeline.
//
// Init is called once before any Process. Process is called at most once
// per run and returns a non-OK result only when the whole unit failed;
// per-item failures go to ErrorMessages. Exactly one of Complete and Stop
// ends the extractor's life.
type Extractor interface {
	Name() string
	Init(ctx context.Context) error
	Process(ctx context.Context, ds ingest.DataSource, status ingest.StatusHelper) ingest.Result
	ErrorMessages() []string
	FoundData() bool
	Complete() error
	Stop() error
}

// extractorBase holds the state shared by every extractor.
type extractorBase struct {
	name     string
	services *ingest.Services
	log      *zap.SugaredLogger

	errs     []string
	found    bool
	produced map[blackboard.ArtifactType]int
}

func newExtractorBase(name string, services *ingest.Services) extractorBase {
	return extractorBase{
		name:     name,
		services: services,
		log:      services.Log().Named(strings.ReplaceAll(strings.ToLower(name), " ", "_")),
		produced: make(map[blackboard.ArtifactType]int),
	}
}

func (b *extractorBase) Name() string                   { return b.name }
func (b *extractorBase) FoundData() bool                { return b.found }
func (b *extractorBase) Init(ctx context.Context) error { return nil }
func (b *extractorBase) Complete() error                { return nil }
func (b *extractorBase) Stop() error                    { return nil }

// ErrorMessages returns the recoverable errors recorded so far.
func (b *extractorBase) ErrorMessages() []string {
	return append([]string(nil), b.errs...)
}

// errorf records a recoverable error, prefixed with the extractor name.
func (b *extractorBase) errorf(format string, args ...interface{}) {
	b.errs = append(b.errs, b.name+": "+fmt.Sprintf(format, args...))
}

// addArtifact creates one artifact carrying attrs. Empty attribute sets
// create nothing. Store failures are recorded and reported as false.
func (b *extractorBase) addArtifact(ctx context.Context, contentRef string, artifactType blackboard.ArtifactType, attrs []blackboard.Attribute) bool {
	if len(attrs) == 0 {
		return false
	}

	if _, err := b.services.Blackboard.CreateArtifact(ctx, contentRef, artifactType, attrs); err != nil {
		b.storeError(err, contentRef, artifactType)
		return false
	}

	b.found = true
	b.produced[artifactType]++
	return true
}

func (b *extractorBase) storeError(err error, contentRef string, artifactType blackboard.ArtifactType) {
	b.log.Errorw("Failed to store artifact",
		logger.FieldFile, contentRef,
		logger.FieldArtifactType, artifactType,
		logger.FieldError, fmt.Sprintf("%+v", err),
	)
	b.errorf("Failed to store %s artifact for %s", artifactType.DisplayName(), contentRef)
}

// fireProduced announces every artifact type created since the last call.
func (b *extractorBase) fireProduced() {
	for _, artifactType := range blackboard.ArtifactTypes() {
		n := b.produced[artifactType]
		if n == 0 {
			continue
		}
		b.log.Infow("New artifacts",
			logger.FieldArtifactType, artifactType,
			logger.FieldCount, n,
		)
		b.services.FireModuleDataEvent(ModuleName, artifactType)
		b.produced[artifactType] = 0
	}
}

// Attribute constructors tagged with this extractor as source.

func (b *extractorBase) str(t blackboard.AttributeType, v string) blackboard.Attribute {
	return blackboard.NewStringAttribute(t, b.name, v)
}

func (b *extractorBase) secs(t blackboard.AttributeType, v int64) blackboard.Attribute {
	return blackboard.NewIntAttribute(t, b.name, v)
}

// copyToTemp copies a data source file into dir so it can be opened by
// libraries that need a real path. The copy is named after the file ID.
func copyToTemp(file ingest.File, dir string) (string, error) {
	dst := filepath.Join(dir, safeFileName(file.ID()))

	in, err := file.Open()
	if err != nil {
		return "", errors.Wrapf(err, "failed to open %s", file.Name())
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, am.DefaultFilePermissions)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", errors.Wrapf(err, "failed to copy %s", file.Name())
	}
	if err := out.Close(); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", dst)
	}
	return dst, nil
}

func safeFileName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// filePath renders a file's location for messages.
func filePath(file ingest.File) string {
	return file.ParentPath() + file.Name()
}
