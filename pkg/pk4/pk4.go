// Package pk4 provides reading functionality for idTech 4 .pk4 archives,
// which are zip files holding models, animations and textures.
package pk4

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Faultbox/md5skel/pkg/encoding"
)

// ErrNotFound is returned when an archive has no entry for a path.
var ErrNotFound = errors.New("file not found")

// Archive represents an opened pk4 archive.
type Archive struct {
	path     string
	reader   *zip.ReadCloser
	fileList map[string]*zip.File
}

// Entry describes one file of the archive.
type Entry struct {
	Name             string
	CompressedSize   uint64
	UncompressedSize uint64
}

// Open opens a pk4 archive for reading.
func Open(path string) (*Archive, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening pk4 %s: %w", path, err)
	}

	archive := &Archive{
		path:     path,
		reader:   reader,
		fileList: make(map[string]*zip.File, len(reader.File)),
	}
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		archive.fileList[encoding.NormalizePath(f.Name)] = f
	}

	return archive, nil
}

// Path returns the file the archive was opened from.
func (a *Archive) Path() string {
	return a.path
}

// Close closes the archive.
func (a *Archive) Close() error {
	if a.reader != nil {
		return a.reader.Close()
	}
	return nil
}

// List returns all file paths in the archive, sorted.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.fileList))
	for path := range a.fileList {
		result = append(result, path)
	}
	sort.Strings(result)
	return result
}

// Contains checks if a file exists.
func (a *Archive) Contains(path string) bool {
	_, ok := a.fileList[encoding.NormalizePath(path)]
	return ok
}

// Stat returns the entry for a path.
func (a *Archive) Stat(path string) (Entry, error) {
	f, ok := a.fileList[encoding.NormalizePath(path)]
	if !ok {
		return Entry{}, fmt.Errorf("%s in %s: %w", path, a.path, ErrNotFound)
	}
	return Entry{
		Name:             encoding.NormalizePath(f.Name),
		CompressedSize:   f.CompressedSize64,
		UncompressedSize: f.UncompressedSize64,
	}, nil
}

// Read reads a file from the archive.
func (a *Archive) Read(path string) ([]byte, error) {
	f, ok := a.fileList[encoding.NormalizePath(path)]
	if !ok {
		return nil, fmt.Errorf("%s in %s: %w", path, a.path, ErrNotFound)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s in %s: %w", path, a.path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s in %s: %w", path, a.path, err)
	}
	return data, nil
}

// Collect returns the .pk4 files directly inside dir in load order:
// pak000..pak999 first, then the rest alphabetically. Later archives
// override earlier ones.
func Collect(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var paks, others []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pk4") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if isNumberedPak(e.Name()) {
			paks = append(paks, path)
		} else {
			others = append(others, path)
		}
	}

	sort.Strings(paks)
	sort.Strings(others)
	return append(paks, others...), nil
}

// isNumberedPak matches pakNNN.pk4.
func isNumberedPak(name string) bool {
	lower := strings.ToLower(name)
	if len(lower) != len("pak000.pk4") || !strings.HasPrefix(lower, "pak") {
		return false
	}
	for _, c := range lower[3:6] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
