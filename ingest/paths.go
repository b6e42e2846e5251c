package ingest

import (
	"os"
	"path/filepath"

	"github.com/teranos/trawl/am"
	"github.com/teranos/trawl/errors"
)

// Case locates the per-case scratch and report directories shared by all
// units and runs.
type Case struct {
	Name      string
	TempDir   string
	OutputDir string
}

// CaseFromConfig builds a Case from the loaded configuration.
func CaseFromConfig(cfg *am.Config) Case {
	return Case{
		Name:      cfg.Case.Name,
		TempDir:   cfg.Case.TempDir,
		OutputDir: cfg.Case.OutputDir,
	}
}

// ModuleDir returns <root>/<pipeline>/<unit>, creating it if absent.
// An existing directory is not an error.
func ModuleDir(root, pipeline, unit string) (string, error) {
	if root == "" {
		return "", errors.Wrap(errors.ErrInvalidRequest, "case directory is not configured")
	}
	dir := filepath.Join(root, pipeline, unit)
	if err := os.MkdirAll(dir, am.DefaultDirPermissions); err != nil {
		return "", errors.Wrapf(err, "failed to create module directory %s", dir)
	}
	return dir, nil
}
