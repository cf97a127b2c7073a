package utils

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// OutputManager lays out exported report files as <base>/<runID>/<file>
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// RunDir creates and returns the directory holding one run's exports.
// Path elements in runID are stripped.
func (om *OutputManager) RunDir(runID string) (string, error) {
	if om.BaseOutputDir == "" {
		return "", eris.New("output: no base directory")
	}
	name := filepath.Base(runID)
	if name == "." || name == string(filepath.Separator) {
		return "", eris.Errorf("output: invalid run id %q", runID)
	}
	dir := filepath.Join(om.BaseOutputDir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", eris.Wrapf(err, "output: create %s", dir)
	}
	return dir, nil
}

// FilePath returns where fileName of a run is written
func (om *OutputManager) FilePath(runID, fileName string) (string, error) {
	dir, err := om.RunDir(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.Base(fileName)), nil
}

// WriteRunFile creates fileName in the run directory, fills it with write
// and returns its path and size. A partial file is removed on error.
func (om *OutputManager) WriteRunFile(runID, fileName string, write func(io.Writer) error) (string, int64, error) {
	path, err := om.FilePath(runID, fileName)
	if err != nil {
		return "", 0, err
	}

	file, err := os.Create(path)
	if err != nil {
		return path, 0, eris.Wrapf(err, "output: create %s", path)
	}
	if err := write(file); err != nil {
		file.Close()
		os.Remove(path)
		return path, 0, err
	}
	if err := file.Close(); err != nil {
		return path, 0, eris.Wrapf(err, "output: close %s", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return path, 0, eris.Wrapf(err, "output: stat %s", path)
	}
	return path, info.Size(), nil
}
