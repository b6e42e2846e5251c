// Package ingest defines the host services extraction units run against:
// data sources and their files, progress sinks, the message inbox and the
// per-case directory layout.
package ingest

import (
	"context"
	"io"
	"time"
)

// FileType distinguishes regular file system content from synthesized
// unallocated-space files.
type FileType int

const (
	FileTypeFS FileType = iota
	FileTypeUnallocBlocks
)

func (t FileType) String() string {
	if t == FileTypeUnallocBlocks {
		return "unalloc_blocks"
	}
	return "fs"
}

// KnownStatus is the hash-lookup verdict for a file.
type KnownStatus int

const (
	Unknown KnownStatus = iota
	Known
	KnownBad
)

func (k KnownStatus) String() string {
	switch k {
	case Known:
		return "known"
	case KnownBad:
		return "known_bad"
	default:
		return "unknown"
	}
}

// File is one content object of a data source.
type File interface {
	// ID is the content reference artifacts are created against.
	ID() string
	Name() string
	// ParentPath is the slash separated directory of the file within the
	// data source, with a leading and trailing slash.
	ParentPath() string
	Type() FileType
	Known() KnownStatus
	Size() int64
	ModTime() time.Time
	Open() (io.ReadCloser, error)
	// ReadHeader returns up to n leading bytes for signature checks.
	ReadHeader(n int) ([]byte, error)
}

// DataSource is the image, device or file collection under analysis.
type DataSource interface {
	Name() string
	// FindFiles returns files whose name matches namePattern (a glob,
	// case-insensitive) and whose parent path contains parentSubstring.
	// An empty parentSubstring matches every directory.
	FindFiles(ctx context.Context, namePattern, parentSubstring string) ([]File, error)
	// Files returns every file of the data source.
	Files(ctx context.Context) ([]File, error)
}

// StatusHelper reports progress of a run and carries its cancellation flag.
type StatusHelper interface {
	SwitchToDeterminate(total int)
	Progress(completed int)
	IsCancelled() bool
}

// ContextStatus adapts a context to StatusHelper for callers without a
// progress display.
type ContextStatus struct {
	Ctx context.Context
}

func (s ContextStatus) SwitchToDeterminate(int) {}
func (s ContextStatus) Progress(int)            {}

func (s ContextStatus) IsCancelled() bool {
	return s.Ctx != nil && s.Ctx.Err() != nil
}
