// Package exifparser extracts image EXIF metadata (capture time, GPS
// position, camera make and model) into TSK_METADATA_EXIF artifacts.
package exifparser

import (
	"bufio"
	"context"

	"go.uber.org/zap"

	"github.com/teranos/trawl/blackboard"
	"github.com/teranos/trawl/errors"
	"github.com/teranos/trawl/ingest"
	"github.com/teranos/trawl/logger"
)

// ModuleName tags every attribute and event this module produces.
const ModuleName = "Exif Parser"

// DefaultNotifyBatchSize is the number of files between data events.
const DefaultNotifyBatchSize = 1000

// Options configures a FileModule.
type Options struct {
	// NotifyBatchSize defaults to DefaultNotifyBatchSize when <= 0.
	NotifyBatchSize int
	// Reader defaults to GoexifReader.
	Reader MetadataReader
}

// FileModule is a file-scoped unit: Process is called once per file of
// the data source.
type FileModule struct {
	services  *ingest.Services
	reader    MetadataReader
	batchSize int
	log       *zap.SugaredLogger

	filesProcessed   int
	artifactsCreated int
	// filesToFire is set when artifacts were created since the last event
	filesToFire bool
}

// NewFileModule creates an EXIF unit bound to the host services.
func NewFileModule(services *ingest.Services, opts Options) *FileModule {
	batch := opts.NotifyBatchSize
	if batch <= 0 {
		batch = DefaultNotifyBatchSize
	}
	reader := opts.Reader
	if reader == nil {
		reader = GoexifReader{}
	}
	return &FileModule{
		services:  services,
		reader:    reader,
		batchSize: batch,
		log:       services.Log().Named("exif"),
	}
}

// StartUp resets the run-scoped counters.
func (m *FileModule) StartUp(ctx context.Context) error {
	m.log = logger.LoggerFromContext(ctx, m.services.Log().Named("exif"))
	m.log.Infow("EXIF parser started", "notify_batch_size", m.batchSize)
	m.filesProcessed = 0
	m.artifactsCreated = 0
	m.filesToFire = false
	return nil
}

// Process handles one file. Unallocated, known and non-JPEG files are
// skipped with an OK result.
func (m *FileModule) Process(ctx context.Context, file ingest.File) ingest.Result {
	if file.Type() == ingest.FileTypeUnallocBlocks {
		return ingest.Success()
	}
	if file.Known() == ingest.Known {
		return ingest.Success()
	}

	// Refresh consumers every batch while there is unannounced data
	m.filesProcessed++
	if m.filesToFire && m.filesProcessed%m.batchSize == 0 {
		m.services.FireModuleDataEvent(ModuleName, blackboard.ArtifactMetadataExif)
		m.filesToFire = false
	}

	if !m.parsableFormat(file) {
		return ingest.Success()
	}

	return m.processFile(ctx, file)
}

func (m *FileModule) parsableFormat(file ingest.File) bool {
	header, err := file.ReadHeader(len(jpegSignature))
	if err != nil {
		return false
	}
	return IsJPEGHeader(header)
}

func (m *FileModule) processFile(ctx context.Context, file ingest.File) (result ingest.Result) {
	path := file.ParentPath() + file.Name()

	in, err := file.Open()
	if err != nil {
		m.log.Warnw("Failed to open image file", logger.FieldFile, path, logger.FieldError, err)
		return ingest.Failed(ingest.KindRecoverable, err, "failed to open image file")
	}
	defer func() {
		if cerr := in.Close(); cerr != nil {
			m.log.Warnw("Failed to close image stream", logger.FieldFile, path, logger.FieldError, cerr)
			if result.Err != nil {
				cerr = errors.WithSecondaryError(cerr, result.Err)
			}
			result = ingest.Failed(ingest.KindRecoverable, cerr, "failed to close image stream")
		}
	}()

	md, err := m.reader.ReadMetadata(bufio.NewReader(in))
	if err != nil {
		if errors.Is(err, errors.ErrMalformedContent) {
			m.log.Warnw("Failed to process the image file", logger.FieldFile, path, logger.FieldError, err)
			return ingest.Failed(ingest.KindRecoverable, err, "failed to process the image file")
		}
		m.log.Warnw("I/O error when parsing image file", logger.FieldFile, path, logger.FieldError, err)
		return ingest.Failed(ingest.KindRecoverable, err, "I/O error when parsing image file")
	}

	attrs := attributesFor(md)
	if len(attrs) == 0 {
		return ingest.Success()
	}

	if _, err := m.services.Blackboard.CreateArtifact(ctx, file.ID(), blackboard.ArtifactMetadataExif, attrs); err != nil {
		m.log.Warnw("Failed to create blackboard artifact for exif metadata", logger.FieldFile, path, logger.FieldError, err)
		return ingest.Failed(ingest.KindStore, err, "failed to create artifact")
	}

	m.artifactsCreated++
	m.filesToFire = true
	return ingest.Success()
}

// attributesFor maps metadata to attributes. The lat/long pair is only
// emitted together; altitude stands alone.
func attributesFor(md *Metadata) []blackboard.Attribute {
	if md == nil {
		return nil
	}

	var attrs []blackboard.Attribute
	if md.DateTimeOriginal != nil {
		attrs = append(attrs, blackboard.NewTimeAttribute(blackboard.AttrDateTimeCreated, ModuleName, *md.DateTimeOriginal))
	}
	if md.GPS != nil {
		attrs = append(attrs,
			blackboard.NewDoubleAttribute(blackboard.AttrGeoLatitude, ModuleName, md.GPS.Latitude),
			blackboard.NewDoubleAttribute(blackboard.AttrGeoLongitude, ModuleName, md.GPS.Longitude),
		)
	}
	if md.Altitude != nil {
		attrs = append(attrs, blackboard.NewDoubleAttribute(blackboard.AttrGeoAltitude, ModuleName, *md.Altitude))
	}
	if md.Model != "" {
		attrs = append(attrs, blackboard.NewStringAttribute(blackboard.AttrDeviceModel, ModuleName, md.Model))
	}
	if md.Make != "" {
		attrs = append(attrs, blackboard.NewStringAttribute(blackboard.AttrDeviceMake, ModuleName, md.Make))
	}
	return attrs
}

// ShutDown sends the final data event if artifacts are still unannounced.
func (m *FileModule) ShutDown(cancelled bool) {
	m.log.Infow("Completed exif parsing",
		"files_processed", m.filesProcessed,
		"artifacts_created", m.artifactsCreated,
		"cancelled", cancelled,
	)
	if m.filesToFire {
		m.services.FireModuleDataEvent(ModuleName, blackboard.ArtifactMetadataExif)
		m.filesToFire = false
	}
}

// FilesProcessed counts files that passed the unallocated and known checks.
func (m *FileModule) FilesProcessed() int { return m.filesProcessed }

// ArtifactsCreated counts EXIF artifacts created this run.
func (m *FileModule) ArtifactsCreated() int { return m.artifactsCreated }
