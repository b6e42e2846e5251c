// Package localfs exposes a directory tree as a logical file collection
// data source.
package localfs

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"go.uber.org/zap"

	"github.com/teranos/trawl/blackboard"
	"github.com/teranos/trawl/errors"
	"github.com/teranos/trawl/ingest"
	"github.com/teranos/trawl/logger"
)

// UnallocDir is the directory name holding carved unallocated space.
// Files below it are reported as ingest.FileTypeUnallocBlocks.
const UnallocDir = "$Unalloc"

// Options configures a directory data source.
type Options struct {
	// Name overrides the data source name (default: base name of root).
	Name   string
	Known  *KnownSet
	Logger *zap.SugaredLogger
}

// DataSource is an ingest.DataSource over a local directory.
type DataSource struct {
	root  string
	name  string
	known *KnownSet
	log   *zap.SugaredLogger
}

var _ ingest.DataSource = (*DataSource)(nil)

// Open validates root and returns a data source rooted there.
func Open(root string, opts Options) (*DataSource, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", root)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open data source %s", root)
	}
	if !info.IsDir() {
		return nil, errors.WithHint(
			errors.Newf("data source %s is not a directory", root),
			"point trawl at the mounted or extracted file collection",
		)
	}

	name := opts.Name
	if name == "" {
		name = filepath.Base(abs)
	}
	log := opts.Logger
	if log == nil {
		log = logger.Logger
	}

	return &DataSource{root: abs, name: name, known: opts.Known, log: log}, nil
}

func (d *DataSource) Name() string { return d.name }

// Root returns the absolute directory backing the data source.
func (d *DataSource) Root() string { return d.root }

// Files walks the whole tree in lexical order.
func (d *DataSource) Files(ctx context.Context) ([]ingest.File, error) {
	return d.walk(ctx, func(*File) bool { return true })
}

// FindFiles matches names with a case-insensitive glob and parent paths
// with a case-insensitive substring.
func (d *DataSource) FindFiles(ctx context.Context, namePattern, parentSubstring string) ([]ingest.File, error) {
	g, err := glob.Compile(strings.ToLower(namePattern))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "bad file name pattern %q: %v", namePattern, err)
	}
	parent := strings.ToLower(parentSubstring)

	return d.walk(ctx, func(f *File) bool {
		if !g.Match(strings.ToLower(f.name)) {
			return false
		}
		return parent == "" || strings.Contains(strings.ToLower(f.parent), parent)
	})
}

func (d *DataSource) walk(ctx context.Context, keep func(*File) bool) ([]ingest.File, error) {
	var files []ingest.File
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			d.log.Warnw("Skipping unreadable path", logger.FieldPath, p, logger.FieldError, err)
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		f, err := d.newFile(p)
		if err != nil {
			return err
		}
		if keep(f) {
			files = append(files, f)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list files of %s", d.name)
	}
	return files, nil
}

func (d *DataSource) newFile(p string) (*File, error) {
	rel, err := filepath.Rel(d.root, p)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to relativize %s", p)
	}
	rel = filepath.ToSlash(rel)

	dir := path.Dir(rel)
	parent := "/"
	if dir != "." {
		parent = "/" + dir + "/"
	}

	fileType := ingest.FileTypeFS
	if strings.Contains(parent, "/"+UnallocDir+"/") {
		fileType = ingest.FileTypeUnallocBlocks
	}

	return &File{
		path:     p,
		id:       blackboard.ContentRef(d.name, rel),
		name:     path.Base(rel),
		parent:   parent,
		fileType: fileType,
		known:    d.known,
	}, nil
}

// File is one regular file of a directory data source.
type File struct {
	path     string
	id       string
	name     string
	parent   string
	fileType ingest.FileType
	known    *KnownSet

	statOnce sync.Once
	size     int64
	modTime  time.Time

	knownOnce   sync.Once
	knownStatus ingest.KnownStatus
}

var _ ingest.File = (*File)(nil)

func (f *File) ID() string            { return f.id }
func (f *File) Name() string          { return f.name }
func (f *File) ParentPath() string    { return f.parent }
func (f *File) Type() ingest.FileType { return f.fileType }

// LocalPath is the file's path on the host file system.
func (f *File) LocalPath() string { return f.path }

func (f *File) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

func (f *File) Size() int64 {
	f.stat()
	return f.size
}

func (f *File) ModTime() time.Time {
	f.stat()
	return f.modTime
}

func (f *File) stat() {
	f.statOnce.Do(func() {
		if info, err := os.Stat(f.path); err == nil {
			f.size = info.Size()
			f.modTime = info.ModTime()
		}
	})
}

// Known hashes the file against the known set on first call.
func (f *File) Known() ingest.KnownStatus {
	f.knownOnce.Do(func() {
		if f.known.Len() == 0 {
			return
		}
		sum, err := hashFile(f.path)
		if err != nil {
			return
		}
		f.knownStatus = f.known.Lookup(sum)
	})
	return f.knownStatus
}

// ReadHeader reads up to n leading bytes. Short files return what exists.
func (f *File) ReadHeader(n int) ([]byte, error) {
	r, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:read], nil
}
